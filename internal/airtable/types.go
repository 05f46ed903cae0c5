package airtable

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
)

// Notification is the body Airtable posts to a webhook notification URL.
type Notification struct {
	Base      IDRef  `json:"base"`
	Webhook   IDRef  `json:"webhook"`
	Timestamp string `json:"timestamp"`
}

type IDRef struct {
	ID string `json:"id"`
}

// PayloadsPage is one response of the list-payloads endpoint.
type PayloadsPage struct {
	Payloads      []Payload `json:"payloads"`
	Cursor        *int64    `json:"cursor"`
	MightHaveMore bool      `json:"mightHaveMore"`
	PayloadFormat string    `json:"payloadFormat"`
}

// CursorString returns the page cursor as stored by the cursor store.
func (p PayloadsPage) CursorString() (string, bool) {
	if p.Cursor == nil {
		return "", false
	}
	return strconv.FormatInt(*p.Cursor, 10), true
}

// Payload describes the changes of one base transaction.
type Payload struct {
	Timestamp             string                  `json:"timestamp"`
	BaseTransactionNumber int64                   `json:"baseTransactionNumber"`
	PayloadFormat         string                  `json:"payloadFormat"`
	ActionMetadata        ActionMetadata          `json:"actionMetadata"`
	ChangedTablesByID     map[string]TableChanges `json:"changedTablesById"`
}

type ActionMetadata struct {
	Source         string          `json:"source"`
	SourceMetadata json.RawMessage `json:"sourceMetadata,omitempty"`
}

// TableChanges holds the record-level changes to one table.
type TableChanges struct {
	ChangedRecordsByID map[string]RecordChange   `json:"changedRecordsById"`
	CreatedRecordsByID map[string]RecordSnapshot `json:"createdRecordsById"`
	DestroyedRecordIDs []string                  `json:"destroyedRecordIds"`
}

// RecordChange carries the watched field values before and after the change.
type RecordChange struct {
	Current   RecordSnapshot  `json:"current"`
	Previous  *RecordSnapshot `json:"previous,omitempty"`
	Unchanged *RecordSnapshot `json:"unchanged,omitempty"`
}

type RecordSnapshot struct {
	CreatedTime         string                     `json:"createdTime,omitempty"`
	CellValuesByFieldID map[string]json.RawMessage `json:"cellValuesByFieldId"`
}

// SelectName returns the name of a single-select cell. ok is false when the
// field is absent, null or not a select value.
func (s *RecordSnapshot) SelectName(fieldID string) (string, bool) {
	if s == nil {
		return "", false
	}
	raw, ok := s.CellValuesByFieldID[fieldID]
	if !ok || len(raw) == 0 || string(raw) == "null" {
		return "", false
	}
	var value struct {
		Name *string `json:"name"`
	}
	if err := json.Unmarshal(raw, &value); err != nil || value.Name == nil {
		return "", false
	}
	return *value.Name, true
}

// ChangedRecordIDs returns record ids in a stable order.
func (t TableChanges) ChangedRecordIDs() []string {
	return sortedKeys(t.ChangedRecordsByID)
}

// CreatedRecordIDs returns created record ids in a stable order.
func (t TableChanges) CreatedRecordIDs() []string {
	return sortedKeys(t.CreatedRecordsByID)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Record is a table row as returned by the records API.
type Record struct {
	ID          string                     `json:"id"`
	CreatedTime string                     `json:"createdTime"`
	Fields      map[string]json.RawMessage `json:"fields"`
}

// Attachment is one element of an attachment field.
type Attachment struct {
	ID       string `json:"id"`
	URL      string `json:"url"`
	Filename string `json:"filename"`
	Type     string `json:"type"`
	Size     int64  `json:"size"`
}

// Attachments decodes an attachment field; absent or malformed fields yield nil.
func (r Record) Attachments(field string) []Attachment {
	var out []Attachment
	if raw, ok := r.Fields[field]; ok {
		_ = json.Unmarshal(raw, &out)
	}
	return out
}

// FirstAttachmentURL returns the url of the first attachment, or "".
func (r Record) FirstAttachmentURL(field string) string {
	attachments := r.Attachments(field)
	if len(attachments) == 0 {
		return ""
	}
	return strings.TrimSpace(attachments[0].URL)
}

// String decodes a text field. Lookup fields that come back as a one-element
// array are unwrapped.
func (r Record) String(field string) string {
	raw, ok := r.Fields[field]
	if !ok {
		return ""
	}
	var value string
	if err := json.Unmarshal(raw, &value); err == nil {
		return value
	}
	var values []string
	if err := json.Unmarshal(raw, &values); err == nil && len(values) > 0 {
		return values[0]
	}
	var selected struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(raw, &selected); err == nil {
		return selected.Name
	}
	return ""
}

// Strings decodes a multi-value field such as linked record ids.
func (r Record) Strings(field string) []string {
	raw, ok := r.Fields[field]
	if !ok {
		return nil
	}
	var values []string
	if err := json.Unmarshal(raw, &values); err == nil {
		return values
	}
	if value := r.String(field); value != "" {
		return []string{value}
	}
	return nil
}

// ListOptions narrows a records listing.
type ListOptions struct {
	View            string
	FilterByFormula string
	Fields          []string
	PageSize        int
}

// RefreshResult is the response of the webhook refresh endpoint.
type RefreshResult struct {
	ExpirationTime *string `json:"expirationTime"`
}
