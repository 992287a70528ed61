package ports

import (
	"context"
	"time"

	"github.com/lorrc/helpdesk-analytics/internal/core/domain"
)

// ListTicketsParams defines the input for reading a technician's tickets.
type ListTicketsParams struct {
	TechnicianID int64
	From         *time.Time
	To           *time.Time
	Limit        int
}

// TicketRepository is the read-only port onto tickets synced from the
// ticketing system. Writes belong to the sync job, not this service.
type TicketRepository interface {
	GetTechnician(ctx context.Context, technicianID int64) (*domain.Technician, error)
	ListByTechnician(ctx context.Context, params ListTicketsParams) ([]domain.Ticket, error)
}

// TicketCacheInvalidator drops cached reads for one technician.
type TicketCacheInvalidator interface {
	Invalidate(ctx context.Context, technicianID int64) error
}

// TechnicianNotifier tells live dashboards viewing a technician that the
// stored tickets changed. It returns how many connections were told.
type TechnicianNotifier interface {
	NotifyTechnician(technicianID int64) int
}
