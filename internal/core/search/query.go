// Package search parses dashboard search box input into an OR of AND-groups
// and matches tickets against it.
//
// Syntax:
//   - whitespace separates terms that must all match (AND)
//   - " OR " (any case) or "|" separates alternatives (OR)
//   - AND binds tighter than OR: "vpn laptop OR printer" is
//     (vpn AND laptop) OR printer
//
// Matching is case-insensitive substring containment over the ticket
// subject, requester name, and category, plus the upstream ticket ID.
package search

import (
	"regexp"
	"strings"

	"github.com/lorrc/helpdesk-analytics/internal/core/domain"
)

var orSeparator = regexp.MustCompile(`(?i)\s+OR\s+|\s*\|\s*`)

// Group is one OR alternative: every term in it must match.
type Group []string

// Query is a parsed search expression. The zero value matches everything.
type Query struct {
	groups []Group
}

// ParseQuery turns raw search input into a Query. It never fails; input it
// cannot make sense of yields fewer or larger groups.
func ParseQuery(term string) Query {
	if strings.TrimSpace(term) == "" {
		return Query{}
	}

	var groups []Group
	for _, part := range orSeparator.Split(term, -1) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		terms := strings.Fields(strings.ToLower(part))
		if len(terms) == 0 {
			continue
		}
		groups = append(groups, Group(terms))
	}

	return Query{groups: groups}
}

// IsEmpty reports whether the query has no groups and so matches everything.
func (q Query) IsEmpty() bool {
	return len(q.groups) == 0
}

// Groups returns a copy of the parsed OR-groups.
func (q Query) Groups() []Group {
	out := make([]Group, len(q.groups))
	for i, g := range q.groups {
		out[i] = append(Group(nil), g...)
	}
	return out
}

// Matches reports whether the ticket satisfies at least one group.
func (q Query) Matches(t domain.Ticket) bool {
	if q.IsEmpty() {
		return true
	}

	text := searchableText(t)
	id := t.FreshserviceTicketID.String()

	for _, g := range q.groups {
		if g.matches(text, id) {
			return true
		}
	}
	return false
}

func (g Group) matches(text, id string) bool {
	for _, term := range g {
		if !strings.Contains(text, term) && !strings.Contains(id, term) {
			return false
		}
	}
	return true
}

// TicketMatchesQuery is the function form of Query.Matches.
func TicketMatchesQuery(t domain.Ticket, q Query) bool {
	return q.Matches(t)
}

func searchableText(t domain.Ticket) string {
	return strings.ToLower(t.Subject + " " + t.Requester() + " " + t.Category())
}
