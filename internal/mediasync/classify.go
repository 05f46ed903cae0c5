package mediasync

import (
	"github.com/ugfund/ugfsync/internal/airtable"
)

// Membership is the tri-state reading of a record's membership field.
type Membership int

const (
	MembershipUnknown Membership = iota
	MembershipNonMember
	MembershipMember
)

func (m Membership) String() string {
	switch m {
	case MembershipMember:
		return "member"
	case MembershipNonMember:
		return "non_member"
	default:
		return "unknown"
	}
}

// Transition names how a record's membership moved between two snapshots.
type Transition string

const (
	TransitionEntered   Transition = "entered"
	TransitionStayed    Transition = "stayed"
	TransitionLeft      Transition = "left"
	TransitionAmbiguous Transition = "ambiguous"
	TransitionIgnored   Transition = "ignored"
	TransitionDestroyed Transition = "destroyed"
	TransitionCreated   Transition = "created"
)

// Action is the media operation a transition calls for.
type Action string

const (
	ActionSync   Action = "sync"
	ActionDelete Action = "delete"
	ActionNone   Action = "none"
)

// Decision is the classifier's verdict for one record in one payload.
type Decision struct {
	RecordID   string
	Transition Transition
	Action     Action
	Previous   Membership
	Current    Membership
}

// MembershipOf reads the membership field of a snapshot.
func (c Category) MembershipOf(snapshot *airtable.RecordSnapshot) Membership {
	name, ok := snapshot.SelectName(c.MembershipFieldID)
	if !ok {
		return MembershipUnknown
	}
	if c.IsMember(name) {
		return MembershipMember
	}
	return MembershipNonMember
}

// Classify decides what to do with one changed record.
func (c Category) Classify(recordID string, change airtable.RecordChange) Decision {
	previous := c.MembershipOf(change.Previous)
	current := c.MembershipOf(&change.Current)
	decision := Decision{RecordID: recordID, Previous: previous, Current: current}

	wasMember := previous == MembershipMember
	isMember := current == MembershipMember

	switch {
	case !wasMember && isMember:
		decision.Transition, decision.Action = TransitionEntered, ActionSync
	case wasMember && isMember:
		decision.Transition, decision.Action = TransitionStayed, ActionSync
	case wasMember && c.DeleteOnExit:
		decision.Transition, decision.Action = TransitionLeft, ActionDelete
	case current == MembershipUnknown:
		// Field unset, as on records created in the Airtable UI.
		decision.Transition, decision.Action = TransitionAmbiguous, ActionSync
	case wasMember:
		decision.Transition, decision.Action = TransitionLeft, ActionNone
	default:
		decision.Transition, decision.Action = TransitionIgnored, ActionNone
	}
	return decision
}

// Plan classifies every record change of the category's table in one payload.
// Destroyed records come first, then changed records, then created records.
func (c Category) Plan(payload airtable.Payload) []Decision {
	changes, ok := payload.ChangedTablesByID[c.TableID]
	if !ok {
		return nil
	}

	var decisions []Decision
	for _, recordID := range changes.DestroyedRecordIDs {
		action := ActionNone
		if c.DeleteDestroyed {
			action = ActionDelete
		}
		decisions = append(decisions, Decision{RecordID: recordID, Transition: TransitionDestroyed, Action: action})
	}
	for _, recordID := range changes.ChangedRecordIDs() {
		decisions = append(decisions, c.Classify(recordID, changes.ChangedRecordsByID[recordID]))
	}
	for _, recordID := range changes.CreatedRecordIDs() {
		decisions = append(decisions, Decision{RecordID: recordID, Transition: TransitionCreated, Action: ActionNone})
	}
	return decisions
}
