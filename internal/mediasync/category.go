// Package mediasync mirrors Airtable attachment images into the blob store
// as records move in and out of the site's public lists.
package mediasync

import (
	"strings"

	"github.com/ugfund/ugfsync/internal/config"
	"github.com/ugfund/ugfsync/internal/cursor"
)

const (
	CategoryTeam      = "team"
	CategoryPortfolio = "portfolio"
)

// TeamTitles are the team table titles shown on the site.
var TeamTitles = []string{
	"Spring Interns",
	"Summer Interns",
	"Fall Interns",
	"Associates",
	"Sr Associates",
	"Analyst",
	"Management",
}

// PortfolioStatuses are the deal statuses shown on the portfolio page.
var PortfolioStatuses = []string{
	"Portfolio - Fund I",
	"Portfolio - Fund II",
	"Exited",
}

// Category binds one webhook subscription to its table, membership rule and blob layout.
type Category struct {
	Name              string
	CursorKey         string
	BaseID            string
	TableID           string
	WebhookID         string
	WebhookSecret     string
	MembershipFieldID string
	AttachmentField   string
	BlobPrefix        string
	RevalidatePath    string
	DeleteOnExit      bool
	DeleteDestroyed   bool
	// StripRecordPrefix drops the first "rec" from the record id in blob keys.
	StripRecordPrefix bool

	members map[string]struct{}
}

// TeamCategory watches the team table's title field and keeps team/<id>.jpeg photos.
func TeamCategory(baseID string, table config.TableConfig) Category {
	return Category{
		Name:              CategoryTeam,
		CursorKey:         cursor.TeamKey,
		BaseID:            baseID,
		TableID:           table.TableID,
		WebhookID:         table.WebhookID,
		WebhookSecret:     table.WebhookSecret,
		MembershipFieldID: table.StatusFieldID,
		AttachmentField:   "Photo",
		BlobPrefix:        "team/",
		RevalidatePath:    "/team",
		DeleteOnExit:      true,
		DeleteDestroyed:   true,
		StripRecordPrefix: true,
		members:           toSet(TeamTitles),
	}
}

// PortfolioCategory watches the deals table's status field and keeps portfolio/<id>.jpeg plaques.
func PortfolioCategory(baseID string, table config.TableConfig, media config.MediaConfig) Category {
	return Category{
		Name:              CategoryPortfolio,
		CursorKey:         cursor.PortfolioKey,
		BaseID:            baseID,
		TableID:           table.TableID,
		WebhookID:         table.WebhookID,
		WebhookSecret:     table.WebhookSecret,
		MembershipFieldID: table.StatusFieldID,
		AttachmentField:   "plaque",
		BlobPrefix:        "portfolio/",
		RevalidatePath:    "/portfolio",
		DeleteOnExit:      media.PortfolioDeleteOnExit,
		DeleteDestroyed:   media.PortfolioDeleteDestroyed,
		members:           toSet(PortfolioStatuses),
	}
}

// Categories returns every category whose table is configured.
func Categories(cfg config.Config) []Category {
	var out []Category
	if cfg.Airtable.Team.Configured() {
		out = append(out, TeamCategory(cfg.Airtable.BaseID, cfg.Airtable.Team))
	}
	if cfg.Airtable.Deals.Configured() {
		out = append(out, PortfolioCategory(cfg.Airtable.BaseID, cfg.Airtable.Deals, cfg.Media))
	}
	return out
}

// IsMember reports whether name is on the allow-list. Matching is exact and case-sensitive.
func (c Category) IsMember(name string) bool {
	_, ok := c.members[name]
	return ok
}

// BlobPath is the deterministic key for a record's image.
func (c Category) BlobPath(recordID string) string {
	id := recordID
	if c.StripRecordPrefix {
		id = strings.Replace(id, "rec", "", 1)
	}
	return c.BlobPrefix + id + ".jpeg"
}

// RecordIDFromBlobPath reverses BlobPath for listings.
func (c Category) RecordIDFromBlobPath(pathname string) (string, bool) {
	if !strings.HasPrefix(pathname, c.BlobPrefix) || !strings.HasSuffix(pathname, ".jpeg") {
		return "", false
	}
	id := strings.TrimSuffix(strings.TrimPrefix(pathname, c.BlobPrefix), ".jpeg")
	if id == "" || strings.Contains(id, "/") {
		return "", false
	}
	if c.StripRecordPrefix {
		id = "rec" + id
	}
	return id, true
}

func toSet(values []string) map[string]struct{} {
	out := make(map[string]struct{}, len(values))
	for _, value := range values {
		out[value] = struct{}{}
	}
	return out
}
