package mocks

import (
	"context"

	"github.com/lorrc/helpdesk-analytics/internal/core/domain"
	"github.com/lorrc/helpdesk-analytics/internal/core/ports"
	"github.com/stretchr/testify/mock"
)

// MockTicketRepository is a mock implementation of ports.TicketRepository
type MockTicketRepository struct {
	mock.Mock
}

var _ ports.TicketRepository = (*MockTicketRepository)(nil)

func NewMockTicketRepository() *MockTicketRepository {
	return &MockTicketRepository{}
}

func (m *MockTicketRepository) GetTechnician(ctx context.Context, technicianID int64) (*domain.Technician, error) {
	args := m.Called(ctx, technicianID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Technician), args.Error(1)
}

func (m *MockTicketRepository) ListByTechnician(ctx context.Context, params ports.ListTicketsParams) ([]domain.Ticket, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Ticket), args.Error(1)
}

// MockAnalyticsService is a mock implementation of ports.AnalyticsService
type MockAnalyticsService struct {
	mock.Mock
}

var _ ports.AnalyticsService = (*MockAnalyticsService)(nil)

func NewMockAnalyticsService() *MockAnalyticsService {
	return &MockAnalyticsService{}
}

func (m *MockAnalyticsService) Filter(ctx context.Context, tickets []domain.Ticket, criteria domain.FilterCriteria) (*domain.FilterResult, error) {
	args := m.Called(ctx, tickets, criteria)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.FilterResult), args.Error(1)
}

func (m *MockAnalyticsService) FilterTechnicianTickets(ctx context.Context, params ports.FilterTechnicianTicketsParams) (*domain.FilterResult, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.FilterResult), args.Error(1)
}

func (m *MockAnalyticsService) RefreshTechnician(ctx context.Context, technicianID int64) (int, error) {
	args := m.Called(ctx, technicianID)
	return args.Int(0), args.Error(1)
}

// MockTicketCacheInvalidator is a mock implementation of ports.TicketCacheInvalidator
type MockTicketCacheInvalidator struct {
	mock.Mock
}

var _ ports.TicketCacheInvalidator = (*MockTicketCacheInvalidator)(nil)

func (m *MockTicketCacheInvalidator) Invalidate(ctx context.Context, technicianID int64) error {
	args := m.Called(ctx, technicianID)
	return args.Error(0)
}

// MockTechnicianNotifier is a mock implementation of ports.TechnicianNotifier
type MockTechnicianNotifier struct {
	mock.Mock
}

var _ ports.TechnicianNotifier = (*MockTechnicianNotifier)(nil)

func (m *MockTechnicianNotifier) NotifyTechnician(technicianID int64) int {
	args := m.Called(technicianID)
	return args.Int(0)
}
