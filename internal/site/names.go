package site

import (
	"regexp"
	"strings"
)

var trailingNumber = regexp.MustCompile(`^(.*)\s+(\d+)$`)

// NormalizeTitle maps team table titles to the labels shown on the site.
// ok is false for titles that are never shown.
func NormalizeTitle(title string) (string, bool) {
	switch title {
	case "Spring Interns", "Summer Interns", "Fall Interns":
		return "Intern", true
	case "Associates":
		return "Associate", true
	case "Sr Associates":
		return "Senior Associate", true
	case "Analyst":
		return "Analyst", true
	case "Alumni", "Offboarding", "Away on Internship":
		return "", false
	default:
		return title, true
	}
}

// CleanCompanyName drops a trailing " <digits>" deal counter from a company name.
func CleanCompanyName(name string) string {
	if match := trailingNumber.FindStringSubmatch(name); match != nil {
		return strings.TrimSpace(match[1])
	}
	return name
}

// LinkedInURL returns an absolute profile URL, or "" when the value is not a link.
func LinkedInURL(raw string) string {
	switch {
	case raw == "":
		return ""
	case strings.HasPrefix(raw, "http://"), strings.HasPrefix(raw, "https://"):
		return raw
	case strings.HasPrefix(raw, "www."):
		return "https://" + raw
	default:
		return ""
	}
}

// anyOfFormula builds an Airtable formula matching field against any of values.
func anyOfFormula(field string, values ...string) string {
	parts := make([]string, 0, len(values))
	for _, value := range values {
		parts = append(parts, "{"+field+"} = '"+strings.ReplaceAll(value, "'", "\\'")+"'")
	}
	return "OR(" + strings.Join(parts, ", ") + ")"
}
