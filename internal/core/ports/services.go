package ports

import (
	"context"
	"time"

	"github.com/lorrc/helpdesk-analytics/internal/core/domain"
)

// FilterTechnicianTicketsParams defines the input for filtering one
// technician's stored tickets.
type FilterTechnicianTicketsParams struct {
	TechnicianID int64
	From         *time.Time
	To           *time.Time
	Criteria     domain.FilterCriteria
}

// AnalyticsService defines the filter and stats operations exposed to the
// dashboard.
type AnalyticsService interface {
	Filter(ctx context.Context, tickets []domain.Ticket, criteria domain.FilterCriteria) (*domain.FilterResult, error)
	FilterTechnicianTickets(ctx context.Context, params FilterTechnicianTicketsParams) (*domain.FilterResult, error)

	// RefreshTechnician is called after the sync job has written new tickets
	// for a technician. It returns the number of live dashboards told.
	RefreshTechnician(ctx context.Context, technicianID int64) (int, error)
}
