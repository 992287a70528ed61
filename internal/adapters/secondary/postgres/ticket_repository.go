package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lorrc/helpdesk-analytics/internal/core/domain"
	apperrors "github.com/lorrc/helpdesk-analytics/internal/core/errors"
	"github.com/lorrc/helpdesk-analytics/internal/core/ports"
	"github.com/lorrc/helpdesk-analytics/internal/core/utils"
)

// TicketRepository reads tickets synced from the ticketing system.
type TicketRepository struct {
	pool *pgxpool.Pool
}

// Ensure TicketRepository implements the ports.TicketRepository interface.
var _ ports.TicketRepository = (*TicketRepository)(nil)

// NewTicketRepository creates a new ticket repository.
func NewTicketRepository(pool *pgxpool.Pool) ports.TicketRepository {
	return &TicketRepository{pool: pool}
}

// GetTechnician retrieves a single technician by the upstream agent ID.
func (r *TicketRepository) GetTechnician(ctx context.Context, technicianID int64) (*domain.Technician, error) {
	const query = `
SELECT id, name, email
FROM technicians
WHERE id = $1
`

	var (
		tech  domain.Technician
		email pgtype.Text
	)
	err := r.pool.QueryRow(ctx, query, technicianID).Scan(&tech.ID, &tech.Name, &email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrTechnicianNotFound
		}
		return nil, fmt.Errorf("get technician %d: %w", technicianID, err)
	}
	tech.Email = utils.FromString(email)

	return &tech, nil
}

// ListByTechnician returns the technician's tickets, newest first.
// From is inclusive and To exclusive; either may be nil.
func (r *TicketRepository) ListByTechnician(ctx context.Context, params ports.ListTicketsParams) ([]domain.Ticket, error) {
	const query = `
SELECT t.freshservice_ticket_id, t.subject, t.requester_name, t.ticket_category,
       t.status, t.is_self_picked, t.assigned_by, t.created_at, t.resolved_at,
       tech.id, tech.name, tech.email
FROM tickets t
JOIN technicians tech ON tech.id = t.assigned_tech_id
WHERE t.assigned_tech_id = $1
  AND ($2::timestamptz IS NULL OR t.created_at >= $2)
  AND ($3::timestamptz IS NULL OR t.created_at < $3)
ORDER BY t.created_at DESC, t.id DESC
LIMIT $4
`

	limit := pgtype.Int8{Int64: int64(params.Limit), Valid: params.Limit > 0}

	rows, err := r.pool.Query(ctx, query,
		params.TechnicianID,
		utils.ToNullTimestamptz(params.From),
		utils.ToNullTimestamptz(params.To),
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tickets := make([]domain.Ticket, 0)
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, ticket)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return tickets, nil
}

func scanTicket(row pgx.Row) (domain.Ticket, error) {
	var (
		ticket     domain.Ticket
		ticketID   string
		status     string
		requester  pgtype.Text
		category   pgtype.Text
		assignedBy pgtype.Text
		createdAt  pgtype.Timestamptz
		resolvedAt pgtype.Timestamptz
		tech       domain.Technician
		techEmail  pgtype.Text
	)

	err := row.Scan(
		&ticketID, &ticket.Subject, &requester, &category,
		&status, &ticket.IsSelfPicked, &assignedBy, &createdAt, &resolvedAt,
		&tech.ID, &tech.Name, &techEmail,
	)
	if err != nil {
		return domain.Ticket{}, err
	}

	ticket.FreshserviceTicketID = domain.TicketID(ticketID)
	ticket.Status = domain.TicketStatus(status)
	ticket.RequesterName = utils.FromNullString(requester)
	ticket.TicketCategory = utils.FromNullString(category)
	ticket.AssignedBy = utils.FromNullString(assignedBy)
	ticket.CreatedAt = createdAt.Time
	ticket.ResolvedAt = utils.FromNullTimestamptz(resolvedAt)

	tech.Email = utils.FromString(techEmail)
	ticket.AssignedTech = &tech

	return ticket, nil
}
