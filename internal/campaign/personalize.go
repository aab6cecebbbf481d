// Package campaign runs bulk email sends: lead resolution, template
// personalization, batched pacing and campaign lifecycle bookkeeping.
package campaign

import (
	"regexp"
	"strings"

	"github.com/crmkit/leadmail/internal/store"
)

var tokenPattern = regexp.MustCompile(`\{\{\s*([a-zA-Z_]+)\s*\}\}`)

// Personalize substitutes {{token}} placeholders in template with the
// lead's fields. Unknown tokens and empty fields become the empty
// string, so a template never leaks placeholder syntax.
//
// Supported tokens: lead_name, full_name (alias), first_name, email,
// company, position, location.
func Personalize(template string, lead *store.Lead) string {
	return tokenPattern.ReplaceAllStringFunc(template, func(match string) string {
		token := strings.ToLower(tokenPattern.FindStringSubmatch(match)[1])
		switch token {
		case "first_name":
			return firstName(lead.FullName)
		case "lead_name", "full_name":
			return lead.FullName
		case "email":
			return lead.Email
		case "company":
			return lead.Company
		case "position":
			return lead.Position
		case "location":
			return lead.Location
		}
		return ""
	})
}

// firstName is the first whitespace-separated word of a full name.
func firstName(fullName string) string {
	fields := strings.Fields(fullName)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
