package mediasync

import (
	"encoding/json"
	"testing"

	"github.com/ugfund/ugfsync/internal/airtable"
	"github.com/ugfund/ugfsync/internal/config"
)

const testTitleField = "fldTitle"

func testTeamCategory() Category {
	return TeamCategory("appBase", config.TableConfig{
		TableID:       "tblTeam",
		WebhookID:     "achTeam",
		StatusFieldID: testTitleField,
	})
}

func testPortfolioCategory() Category {
	return PortfolioCategory("appBase", config.TableConfig{
		TableID:       "tblDeals",
		WebhookID:     "achDeals",
		StatusFieldID: testTitleField,
	}, config.MediaConfig{})
}

// snapshot builds a record snapshot; "" leaves the field absent and "null" sets it to null.
func snapshot(name string) *airtable.RecordSnapshot {
	cells := map[string]json.RawMessage{}
	switch name {
	case "":
	case "null":
		cells[testTitleField] = json.RawMessage("null")
	default:
		raw, _ := json.Marshal(map[string]string{"id": "sel", "name": name})
		cells[testTitleField] = raw
	}
	return &airtable.RecordSnapshot{CellValuesByFieldID: cells}
}

func change(previous, current string) airtable.RecordChange {
	c := airtable.RecordChange{Current: *snapshot(current)}
	if previous != "-" {
		c.Previous = snapshot(previous)
	}
	return c
}

func TestClassifyTeam(t *testing.T) {
	t.Parallel()

	category := testTeamCategory()
	tests := []struct {
		name       string
		previous   string
		current    string
		transition Transition
		action     Action
	}{
		{name: "entered", previous: "Alumni", current: "Associates", transition: TransitionEntered, action: ActionSync},
		{name: "entered without previous", previous: "-", current: "Analyst", transition: TransitionEntered, action: ActionSync},
		{name: "stayed", previous: "Fall Interns", current: "Sr Associates", transition: TransitionStayed, action: ActionSync},
		{name: "left", previous: "Management", current: "Alumni", transition: TransitionLeft, action: ActionDelete},
		{name: "left to null", previous: "Associates", current: "null", transition: TransitionLeft, action: ActionDelete},
		{name: "ambiguous", previous: "", current: "", transition: TransitionAmbiguous, action: ActionSync},
		{name: "ambiguous from non member", previous: "Alumni", current: "null", transition: TransitionAmbiguous, action: ActionSync},
		{name: "ignored", previous: "Alumni", current: "Offboarding", transition: TransitionIgnored, action: ActionNone},
		{name: "case sensitive", previous: "Alumni", current: "associates", transition: TransitionIgnored, action: ActionNone},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			decision := category.Classify("recA", change(tc.previous, tc.current))
			if decision.Transition != tc.transition || decision.Action != tc.action {
				t.Fatalf("unexpected decision: got=%s/%s want=%s/%s", decision.Transition, decision.Action, tc.transition, tc.action)
			}
		})
	}
}

func TestClassifyPortfolioKeepsPlaqueOnExit(t *testing.T) {
	t.Parallel()

	category := testPortfolioCategory()

	decision := category.Classify("recD", change("Portfolio - Fund I", "Passed"))
	if decision.Transition != TransitionLeft || decision.Action != ActionNone {
		t.Fatalf("unexpected exit decision: %+v", decision)
	}
	decision = category.Classify("recD", change("Exited", "null"))
	if decision.Action != ActionSync {
		t.Fatalf("expected unknown current status to retry upload, got %+v", decision)
	}
	decision = category.Classify("recD", change("Diligence", "Portfolio - Fund II"))
	if decision.Transition != TransitionEntered {
		t.Fatalf("unexpected entry decision: %+v", decision)
	}
}

func TestPlanHandlesDestroyedAndCreatedRecords(t *testing.T) {
	t.Parallel()

	payload := airtable.Payload{ChangedTablesByID: map[string]airtable.TableChanges{
		"tblTeam": {
			DestroyedRecordIDs: []string{"recGone"},
			ChangedRecordsByID: map[string]airtable.RecordChange{"recB": change("Alumni", "Analyst")},
			CreatedRecordsByID: map[string]airtable.RecordSnapshot{"recNew": *snapshot("")},
		},
		"tblOther": {DestroyedRecordIDs: []string{"recElse"}},
	}}

	decisions := testTeamCategory().Plan(payload)
	if len(decisions) != 3 {
		t.Fatalf("unexpected decisions len: got=%d want=3", len(decisions))
	}
	if decisions[0].RecordID != "recGone" || decisions[0].Action != ActionDelete {
		t.Fatalf("unexpected destroyed decision: %+v", decisions[0])
	}
	if decisions[1].RecordID != "recB" || decisions[1].Action != ActionSync {
		t.Fatalf("unexpected changed decision: %+v", decisions[1])
	}
	if decisions[2].Transition != TransitionCreated || decisions[2].Action != ActionNone {
		t.Fatalf("unexpected created decision: %+v", decisions[2])
	}

	portfolio := testPortfolioCategory().Plan(airtable.Payload{ChangedTablesByID: map[string]airtable.TableChanges{
		"tblDeals": {DestroyedRecordIDs: []string{"recDeal"}},
	}})
	if len(portfolio) != 1 || portfolio[0].Action != ActionNone {
		t.Fatalf("portfolio destroyed records should keep plaques by default: %+v", portfolio)
	}
}

func TestBlobPaths(t *testing.T) {
	t.Parallel()

	team := testTeamCategory()
	if got := team.BlobPath("recAbcrec1"); got != "team/Abcrec1.jpeg" {
		t.Fatalf("unexpected team path: %q", got)
	}
	if id, ok := team.RecordIDFromBlobPath("team/Abcrec1.jpeg"); !ok || id != "recAbcrec1" {
		t.Fatalf("unexpected team record id: %q ok=%v", id, ok)
	}
	portfolio := testPortfolioCategory()
	if got := portfolio.BlobPath("recXyz"); got != "portfolio/recXyz.jpeg" {
		t.Fatalf("unexpected portfolio path: %q", got)
	}
	if id, ok := portfolio.RecordIDFromBlobPath("portfolio/recXyz.jpeg"); !ok || id != "recXyz" {
		t.Fatalf("unexpected portfolio record id: %q ok=%v", id, ok)
	}
}
