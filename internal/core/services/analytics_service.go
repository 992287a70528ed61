package services

import (
	"context"
	"fmt"

	"github.com/lorrc/helpdesk-analytics/internal/core/domain"
	apperrors "github.com/lorrc/helpdesk-analytics/internal/core/errors"
	"github.com/lorrc/helpdesk-analytics/internal/core/ports"
)

// DefaultMaxTickets caps how many tickets a single filter pass accepts.
const DefaultMaxTickets = 5000

// AnalyticsService runs the filter and stats pipeline for the dashboard.
type AnalyticsService struct {
	ticketRepo  ports.TicketRepository
	maxTickets  int
	invalidator ports.TicketCacheInvalidator
	notifier    ports.TechnicianNotifier
}

// Option configures optional collaborators of the analytics service.
type Option func(*AnalyticsService)

// WithCacheInvalidator drops cached tickets when a technician is refreshed.
func WithCacheInvalidator(invalidator ports.TicketCacheInvalidator) Option {
	return func(s *AnalyticsService) { s.invalidator = invalidator }
}

// WithNotifier pushes refresh hints to live dashboards.
func WithNotifier(notifier ports.TechnicianNotifier) Option {
	return func(s *AnalyticsService) { s.notifier = notifier }
}

var _ ports.AnalyticsService = (*AnalyticsService)(nil)

// NewAnalyticsService creates a new analytics service. ticketRepo may be nil,
// in which case only Filter over caller-supplied tickets is available.
func NewAnalyticsService(ticketRepo ports.TicketRepository, maxTickets int, opts ...Option) ports.AnalyticsService {
	if maxTickets <= 0 {
		maxTickets = DefaultMaxTickets
	}
	s := &AnalyticsService{
		ticketRepo: ticketRepo,
		maxTickets: maxTickets,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Filter applies criteria to a ticket list supplied by the caller.
func (s *AnalyticsService) Filter(ctx context.Context, tickets []domain.Ticket, criteria domain.FilterCriteria) (*domain.FilterResult, error) {
	if len(tickets) > s.maxTickets {
		return nil, apperrors.NewValidationError(apperrors.ErrTooManyTickets,
			fmt.Sprintf("At most %d tickets can be filtered per request", s.maxTickets),
			map[string]interface{}{"max": s.maxTickets, "received": len(tickets)})
	}

	return buildResult(tickets, criteria), nil
}

// FilterTechnicianTickets loads a technician's synced tickets and filters them.
// The technician's own name is the reference for the self-picked test.
func (s *AnalyticsService) FilterTechnicianTickets(ctx context.Context, params ports.FilterTechnicianTicketsParams) (*domain.FilterResult, error) {
	if s.ticketRepo == nil {
		return nil, apperrors.NewUnavailableError("Ticket store is not configured")
	}
	if params.TechnicianID <= 0 {
		return nil, apperrors.ErrInvalidTechnician
	}
	if params.From != nil && params.To != nil && params.To.Before(*params.From) {
		return nil, apperrors.ErrInvalidDateRange
	}

	tech, err := s.ticketRepo.GetTechnician(ctx, params.TechnicianID)
	if err != nil {
		return nil, err
	}

	tickets, err := s.ticketRepo.ListByTechnician(ctx, ports.ListTicketsParams{
		TechnicianID: params.TechnicianID,
		From:         params.From,
		To:           params.To,
		Limit:        s.maxTickets + 1,
	})
	if err != nil {
		return nil, fmt.Errorf("list tickets for technician %d: %w", params.TechnicianID, err)
	}

	// One extra row tells us whether the cap cut anything off.
	truncated := len(tickets) > s.maxTickets
	if truncated {
		tickets = tickets[:s.maxTickets]
	}

	criteria := params.Criteria
	if criteria.ReferenceName == "" {
		criteria.ReferenceName = tech.Name
	}

	result := buildResult(tickets, criteria)
	result.Truncated = truncated
	return result, nil
}

// RefreshTechnician drops the technician's cached tickets, then tells every
// dashboard viewing that technician to re-request. Dashboards are only told
// once the cache no longer holds the old tickets.
func (s *AnalyticsService) RefreshTechnician(ctx context.Context, technicianID int64) (int, error) {
	if technicianID <= 0 {
		return 0, apperrors.ErrInvalidTechnician
	}

	if s.invalidator != nil {
		if err := s.invalidator.Invalidate(ctx, technicianID); err != nil {
			return 0, fmt.Errorf("invalidate cached tickets for technician %d: %w", technicianID, err)
		}
	}

	if s.notifier == nil {
		return 0, nil
	}
	return s.notifier.NotifyTechnician(technicianID), nil
}

func buildResult(tickets []domain.Ticket, criteria domain.FilterCriteria) *domain.FilterResult {
	filtered := FilterTickets(tickets, criteria.SearchTerm, criteria.SelectedCategories)
	return &domain.FilterResult{
		Tickets:    filtered,
		Stats:      CalculateFilteredStats(filtered, criteria.ReferenceName),
		Categories: AvailableCategories(tickets),
	}
}
