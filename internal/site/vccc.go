package site

import (
	"context"
	"strings"
	"time"

	"github.com/ugfund/ugfsync/internal/airtable"
)

// PageVCCC tags the competition documents.
const PageVCCC = "/vccc"

// VCCC is the competition schedule for one office. Dates the table leaves
// empty or unparseable encode as null.
type VCCC struct {
	Ongoing                    bool       `json:"ongoing"`
	TeamRegDeadline            *time.Time `json:"teamRegDeadline"`
	KickOffMeeting             string     `json:"kickOffMeeting"`
	KickOffVideoLink           string     `json:"kickOffVideoLink"`
	SourcingTraining           string     `json:"sourcingTraining"`
	SourcingTrainingVideoLink  string     `json:"sourcingTrainingVideoLink"`
	DD1Training                string     `json:"dd1Training"`
	DD1TrainingVideoLink       string     `json:"dd1TrainingVideoLink"`
	DD2Training                string     `json:"dd2Training"`
	DD2TrainingVideoLink       string     `json:"dd2TrainingVideoLink"`
	RegionalSemis              string     `json:"regionalSemis"`
	NationalFinals             string     `json:"nationalFinals"`
	ThreeCompSubDeadline       *time.Time `json:"threeCompSubDeadline"`
	PitchDeckDeadline          *time.Time `json:"pitchDeckDeadline"`
	SemisTeamsAnnounced        *time.Time `json:"semisTeamsAnnounced"`
	SemisPresentationDeadline  *time.Time `json:"semisPresentationDeadline"`
	FinalsPresentationDeadline *time.Time `json:"finalsPresentationDeadline"`
	Prize1                     string     `json:"prize1"`
	Prize2                     string     `json:"prize2"`
	Prize3                     string     `json:"prize3"`
	InterestForm               string     `json:"interestForm"`
	RegistrationForm           string     `json:"registrationForm"`
}

// VCCC returns the first competition row for office. Provider failures and
// offices without a row yield the empty schedule dated now.
func (s *Service) VCCC(ctx context.Context, office string) (VCCC, error) {
	records, err := s.records.ListRecords(ctx, s.tables.BaseID, s.tables.VCCCTable, airtable.ListOptions{
		View:            s.tables.VCCCView,
		FilterByFormula: anyOfFormula("Office", office),
	})
	if err != nil {
		s.log.WarnContext(ctx, "list vccc failed, serving empty schedule", "office", office, "error", err)
		return emptyVCCC(s.now()), nil
	}
	if len(records) == 0 {
		s.log.InfoContext(ctx, "no vccc row for office", "office", office)
		return emptyVCCC(s.now()), nil
	}

	record := records[0]
	return VCCC{
		Ongoing:                    record.String("ongoing") == "True",
		TeamRegDeadline:            dateField(record, "teamRegDeadline"),
		KickOffMeeting:             record.String("kickOffMtg"),
		KickOffVideoLink:           record.String("kickOffVideoLink"),
		SourcingTraining:           record.String("sourcingTraining"),
		SourcingTrainingVideoLink:  record.String("sourcingTrainingVideoLink"),
		DD1Training:                record.String("dd1Training"),
		DD1TrainingVideoLink:       record.String("dd1VideoLink"),
		DD2Training:                record.String("dd2Training"),
		DD2TrainingVideoLink:       record.String("dd2VideoLink"),
		RegionalSemis:              record.String("regionalSemis"),
		NationalFinals:             record.String("nationalFinals"),
		ThreeCompSubDeadline:       dateField(record, "threeCompSubDeadline"),
		PitchDeckDeadline:          dateField(record, "pitchDeckDeadline"),
		SemisTeamsAnnounced:        dateField(record, "semisTeamsAnnounced"),
		SemisPresentationDeadline:  dateField(record, "semisPresentationDeadline"),
		FinalsPresentationDeadline: dateField(record, "finalsPresentationDeadline"),
		Prize1:                     record.String("prize1"),
		Prize2:                     record.String("prize2"),
		Prize3:                     record.String("prize3"),
		InterestForm:               record.String("interestForm"),
		RegistrationForm:           record.String("registrationForm"),
	}, nil
}

func emptyVCCC(now time.Time) VCCC {
	now = now.UTC()
	return VCCC{
		TeamRegDeadline:            &now,
		ThreeCompSubDeadline:       &now,
		PitchDeckDeadline:          &now,
		SemisTeamsAnnounced:        &now,
		SemisPresentationDeadline:  &now,
		FinalsPresentationDeadline: &now,
	}
}

var dateLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04", "2006-01-02"}

func dateField(record airtable.Record, field string) *time.Time {
	raw := strings.TrimSpace(record.String(field))
	if raw == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			parsed = parsed.UTC()
			return &parsed
		}
	}
	return nil
}
