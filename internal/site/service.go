// Package site builds the JSON documents the public website reads.
package site

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/ugfund/ugfsync/internal/airtable"
	"github.com/ugfund/ugfsync/internal/blob"
	"github.com/ugfund/ugfsync/internal/mediasync"
)

// Placeholder is the image used when no blob exists for a record.
const Placeholder = "/placeholder.svg"

// Page paths the documents belong to; the sync pipeline invalidates by these.
const (
	PageTeam      = "/team"
	PagePortfolio = "/portfolio"
)

// Blob layouts the photo listings are read from.
var (
	teamPhotos       = mediasync.Category{BlobPrefix: "team/", StripRecordPrefix: true}
	managementPhotos = mediasync.Category{BlobPrefix: "management/", StripRecordPrefix: true}
	portfolioPlaques = mediasync.Category{BlobPrefix: "portfolio/"}
)

// RecordLister lists table records.
type RecordLister interface {
	ListRecords(ctx context.Context, baseID, tableID string, opts airtable.ListOptions) ([]airtable.Record, error)
}

// Tables locates the team, deals and competition tables.
type Tables struct {
	BaseID     string
	TeamTable  string
	TeamView   string
	DealsTable string
	DealsView  string
	VCCCTable  string
	VCCCView   string
}

type Member struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Title    string `json:"title"`
	School   string `json:"school"`
	Degree   string `json:"degree"`
	Photo    string `json:"photo"`
	Bio      string `json:"bio"`
	LinkedIn string `json:"LinkedIn,omitempty"`
	Deals    []Deal `json:"deals,omitempty"`
	Office   string `json:"office"`
}

type Alumnus struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	School   string `json:"school"`
	Degree   string `json:"degree"`
	LinkedIn string `json:"LinkedIn"`
	FirstJob string `json:"firstJob"`
}

type Logo struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type Deal struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Stage         string   `json:"stage"`
	Logo          []Logo   `json:"logo"`
	StageInvested string   `json:"stageInvested"`
	Description   string   `json:"description"`
	Website       string   `json:"website"`
	Sector        string   `json:"sector"`
	Status        string   `json:"status"`
	DealLeads     []string `json:"dealLeads"`
	Jobs          string   `json:"jobs"`
}

// Service reads Airtable and the blob listing to build site documents.
type Service struct {
	records RecordLister
	blobs   blob.Store
	tables  Tables
	log     *slog.Logger
	now     func() time.Time
}

func NewService(records RecordLister, blobs blob.Store, tables Tables, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{records: records, blobs: blobs, tables: tables, log: logger.With("component", "site"), now: time.Now}
}

// ActiveMembers lists current team members, including management, with their photos.
func (s *Service) ActiveMembers(ctx context.Context) ([]Member, error) {
	records, err := s.records.ListRecords(ctx, s.tables.BaseID, s.tables.TeamTable, airtable.ListOptions{
		View:            s.tables.TeamView,
		FilterByFormula: anyOfFormula("Title", mediasync.TeamTitles...),
	})
	if err != nil {
		return nil, fmt.Errorf("list active members: %w", err)
	}
	photos := s.photoMap(ctx, teamPhotos)

	members := make([]Member, 0, len(records))
	for _, record := range records {
		title, _ := NormalizeTitle(record.String("Title"))
		members = append(members, Member{
			ID:       record.ID,
			Name:     record.String("Name"),
			Title:    title,
			School:   record.String("School"),
			Degree:   record.String("Degree"),
			Photo:    orPlaceholder(photos[record.ID]),
			Bio:      record.String("Bio"),
			LinkedIn: LinkedInURL(record.String("LinkedIn")),
			Office:   record.String("Office"),
		})
	}
	return members, nil
}

// ManagementTeam lists management members with photos from the management/ prefix.
func (s *Service) ManagementTeam(ctx context.Context) ([]Member, error) {
	records, err := s.records.ListRecords(ctx, s.tables.BaseID, s.tables.TeamTable, airtable.ListOptions{
		View:            s.tables.TeamView,
		FilterByFormula: anyOfFormula("Title", "Management"),
	})
	if err != nil {
		return nil, fmt.Errorf("list management: %w", err)
	}
	photos := s.photoMap(ctx, managementPhotos)

	members := make([]Member, 0, len(records))
	for _, record := range records {
		members = append(members, Member{
			ID:       record.ID,
			Name:     record.String("Name"),
			Photo:    orPlaceholder(photos[record.ID]),
			Bio:      record.String("Bio"),
			LinkedIn: LinkedInURL(record.String("LinkedIn")),
		})
	}
	return members, nil
}

// Alumni lists former members sorted by name.
func (s *Service) Alumni(ctx context.Context) ([]Alumnus, error) {
	records, err := s.records.ListRecords(ctx, s.tables.BaseID, s.tables.TeamTable, airtable.ListOptions{
		View:            s.tables.TeamView,
		FilterByFormula: anyOfFormula("Title", "Alumni", "Offboarding"),
	})
	if err != nil {
		return nil, fmt.Errorf("list alumni: %w", err)
	}

	alumni := make([]Alumnus, 0, len(records))
	for _, record := range records {
		firstJob := record.String("1st Job - Post Grad")
		if firstJob == "" {
			firstJob = "-"
		}
		alumni = append(alumni, Alumnus{
			ID:       record.ID,
			Name:     record.String("Name"),
			School:   record.String("School"),
			Degree:   record.String("Degree"),
			LinkedIn: LinkedInURL(record.String("LinkedIn")),
			FirstJob: firstJob,
		})
	}
	sort.SliceStable(alumni, func(i, j int) bool {
		return strings.ToLower(alumni[i].Name) < strings.ToLower(alumni[j].Name)
	})
	return alumni, nil
}

// Portfolio lists portfolio and exited companies with plaques and deal lead names.
func (s *Service) Portfolio(ctx context.Context) ([]Deal, error) {
	team, err := s.records.ListRecords(ctx, s.tables.BaseID, s.tables.TeamTable, airtable.ListOptions{
		View: s.tables.TeamView,
	})
	if err != nil {
		return nil, fmt.Errorf("list team for deal leads: %w", err)
	}
	names := make(map[string]string, len(team))
	for _, record := range team {
		names[record.ID] = record.String("Name")
	}

	records, err := s.portfolioRecords(ctx)
	if err != nil {
		return nil, err
	}
	plaques := s.photoMap(ctx, portfolioPlaques)

	deals := make([]Deal, 0, len(records))
	for _, record := range records {
		stage := record.String("Stage")
		status := "active"
		if strings.Contains(stage, "Exited") {
			status = "exited"
		}
		leads := []string{}
		for _, id := range record.Strings("Lead") {
			if name, ok := names[id]; ok && name != "" {
				leads = append(leads, name)
			}
		}
		deals = append(deals, Deal{
			ID:            record.ID,
			Name:          CleanCompanyName(record.String("Name")),
			Stage:         stage,
			Logo:          []Logo{{ID: record.ID, URL: orPlaceholder(plaques[record.ID])}},
			StageInvested: record.String("Stage of Company (for website)"),
			Description:   record.String("Description (for website)"),
			Website:       record.String("Link to Website"),
			Sector:        record.String("Sector (for website)"),
			Status:        status,
			DealLeads:     leads,
			Jobs:          record.String("Jobs"),
		})
	}
	return deals, nil
}

// MembersDeals maps each student member id to the portfolio deals they worked on,
// as [dealID, dealName] pairs.
func (s *Service) MembersDeals(ctx context.Context) (map[string][][2]string, error) {
	deals, err := s.portfolioRecords(ctx)
	if err != nil {
		return nil, err
	}
	dealNames := make(map[string]string, len(deals))
	for _, record := range deals {
		dealNames[record.ID] = CleanCompanyName(record.String("Name"))
	}

	students := make([]string, 0, len(mediasync.TeamTitles))
	for _, title := range mediasync.TeamTitles {
		if title != "Management" {
			students = append(students, title)
		}
	}
	members, err := s.records.ListRecords(ctx, s.tables.BaseID, s.tables.TeamTable, airtable.ListOptions{
		View:            s.tables.TeamView,
		FilterByFormula: anyOfFormula("Title", students...),
	})
	if err != nil {
		return nil, fmt.Errorf("list members for deals: %w", err)
	}

	out := make(map[string][][2]string, len(members))
	for _, member := range members {
		pairs := [][2]string{}
		for _, dealID := range member.Strings("Deals Participated On") {
			if name, ok := dealNames[dealID]; ok {
				pairs = append(pairs, [2]string{dealID, name})
			}
		}
		out[member.ID] = pairs
	}
	return out, nil
}

func (s *Service) portfolioRecords(ctx context.Context) ([]airtable.Record, error) {
	records, err := s.records.ListRecords(ctx, s.tables.BaseID, s.tables.DealsTable, airtable.ListOptions{
		View:            s.tables.DealsView,
		FilterByFormula: anyOfFormula("Stage", mediasync.PortfolioStatuses...),
	})
	if err != nil {
		return nil, fmt.Errorf("list portfolio deals: %w", err)
	}
	return records, nil
}

// photoMap indexes blobs laid out like layout by record id. Listing failures
// degrade to placeholders.
func (s *Service) photoMap(ctx context.Context, layout mediasync.Category) map[string]string {
	out := map[string]string{}
	if s.blobs == nil {
		return out
	}
	blobs, err := s.blobs.List(ctx, layout.BlobPrefix)
	if err != nil {
		s.log.WarnContext(ctx, "blob listing failed", "prefix", layout.BlobPrefix, "error", err)
		return out
	}
	for _, item := range blobs {
		if id, ok := layout.RecordIDFromBlobPath(item.Pathname); ok {
			out[id] = item.URL
		}
	}
	return out
}

func orPlaceholder(url string) string {
	if url == "" {
		return Placeholder
	}
	return url
}
