package services

import (
	"slices"
	"strings"

	"github.com/lorrc/helpdesk-analytics/internal/core/domain"
	"github.com/lorrc/helpdesk-analytics/internal/core/search"
)

// FilterTickets applies the search term and then the category allow-list.
// Surviving tickets keep their input order. The result is never nil.
func FilterTickets(tickets []domain.Ticket, searchTerm string, selectedCategories []string) []domain.Ticket {
	filtered := make([]domain.Ticket, 0, len(tickets))
	if len(tickets) == 0 {
		return filtered
	}

	var query search.Query
	if strings.TrimSpace(searchTerm) != "" {
		query = search.ParseQuery(searchTerm)
	}

	var allowed map[string]struct{}
	if len(selectedCategories) > 0 {
		allowed = make(map[string]struct{}, len(selectedCategories))
		for _, c := range selectedCategories {
			allowed[c] = struct{}{}
		}
	}

	for _, t := range tickets {
		if !query.Matches(t) {
			continue
		}
		if allowed != nil {
			if !t.HasCategory() {
				continue
			}
			if _, ok := allowed[t.Category()]; !ok {
				continue
			}
		}
		filtered = append(filtered, t)
	}

	return filtered
}

// CalculateFilteredStats tallies status and self-picked/assigned counts.
//
// referenceName is the technician whose tickets these are. When it is empty
// the name of the first ticket's assignee is used instead, which is only
// right when every ticket in the list belongs to the same technician.
func CalculateFilteredStats(tickets []domain.Ticket, referenceName string) domain.FilterStats {
	var stats domain.FilterStats
	if len(tickets) == 0 {
		return stats
	}

	if referenceName == "" {
		referenceName = tickets[0].TechnicianName()
	}

	for _, t := range tickets {
		switch {
		case t.Status == domain.StatusOpen:
			stats.OpenOnlyCount++
		case t.Status == domain.StatusPending:
			stats.PendingCount++
		case t.Status.IsClosed():
			stats.ClosedCount++
		}

		if t.IsSelfPickedBy(referenceName) {
			stats.SelfPickedCount++
		} else if assigner := t.Assigner(); assigner != "" && assigner != referenceName {
			stats.AssignedCount++
		}
	}

	return stats
}

// AvailableCategories returns the sorted distinct categories present.
func AvailableCategories(tickets []domain.Ticket) []string {
	seen := make(map[string]struct{})
	categories := make([]string, 0)
	for _, t := range tickets {
		if !t.HasCategory() {
			continue
		}
		c := t.Category()
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		categories = append(categories, c)
	}

	slices.Sort(categories)
	return categories
}
