package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lorrc/helpdesk-analytics/internal/core/domain"
	apperrors "github.com/lorrc/helpdesk-analytics/internal/core/errors"
	"github.com/lorrc/helpdesk-analytics/internal/core/mocks"
	"github.com/lorrc/helpdesk-analytics/internal/core/ports"
	"github.com/lorrc/helpdesk-analytics/internal/core/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestAnalyticsService_Filter(t *testing.T) {
	ctx := context.Background()

	t.Run("filters and tallies", func(t *testing.T) {
		svc := services.NewAnalyticsService(nil, 0)

		result, err := svc.Filter(ctx, scenarioTickets(), domain.FilterCriteria{
			SearchTerm:    "printer",
			ReferenceName: "Carol",
		})

		require.NoError(t, err)
		assert.Equal(t, []string{"Printer jam"}, subjects(result.Tickets))
		assert.Equal(t, domain.FilterStats{AssignedCount: 1, ClosedCount: 1}, result.Stats)
		assert.Equal(t, []string{"Hardware", "Network"}, result.Categories, "categories come from the unfiltered input")
	})

	t.Run("nil tickets", func(t *testing.T) {
		svc := services.NewAnalyticsService(nil, 0)

		result, err := svc.Filter(ctx, nil, domain.FilterCriteria{SearchTerm: "vpn"})

		require.NoError(t, err)
		assert.Empty(t, result.Tickets)
		assert.Empty(t, result.Categories)
		assert.Equal(t, domain.FilterStats{}, result.Stats)
	})

	t.Run("rejects oversized input", func(t *testing.T) {
		svc := services.NewAnalyticsService(nil, 1)

		result, err := svc.Filter(ctx, scenarioTickets(), domain.FilterCriteria{})

		assert.Nil(t, result)
		assert.ErrorIs(t, err, apperrors.ErrTooManyTickets)
		var appErr *apperrors.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, 422, appErr.StatusCode)
	})
}

func TestAnalyticsService_FilterTechnicianTickets(t *testing.T) {
	ctx := context.Background()
	carol := &domain.Technician{ID: 7, Name: "Carol"}
	from := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 9, 30, 0, 0, 0, 0, time.UTC)

	t.Run("uses technician name as reference", func(t *testing.T) {
		mockRepo := mocks.NewMockTicketRepository()
		svc := services.NewAnalyticsService(mockRepo, 100)

		tickets := []domain.Ticket{
			{Subject: "VPN drop", Status: domain.StatusOpen, AssignedBy: domain.StringPtr("Carol"), TicketCategory: domain.StringPtr("Network")},
			{Subject: "VPN cert", Status: domain.StatusPending, AssignedBy: domain.StringPtr("Alice"), TicketCategory: domain.StringPtr("Network")},
			{Subject: "Printer jam", Status: domain.StatusClosed, TicketCategory: domain.StringPtr("Hardware")},
		}

		mockRepo.On("GetTechnician", ctx, int64(7)).Return(carol, nil)
		mockRepo.On("ListByTechnician", ctx, ports.ListTicketsParams{
			TechnicianID: 7,
			From:         &from,
			To:           &to,
			Limit:        101,
		}).Return(tickets, nil)

		result, err := svc.FilterTechnicianTickets(ctx, ports.FilterTechnicianTicketsParams{
			TechnicianID: 7,
			From:         &from,
			To:           &to,
			Criteria:     domain.FilterCriteria{SearchTerm: "vpn"},
		})

		require.NoError(t, err)
		assert.Equal(t, []string{"VPN drop", "VPN cert"}, subjects(result.Tickets))
		assert.Equal(t, domain.FilterStats{
			OpenOnlyCount:   1,
			PendingCount:    1,
			SelfPickedCount: 1,
			AssignedCount:   1,
		}, result.Stats)
		assert.Equal(t, []string{"Hardware", "Network"}, result.Categories)
		assert.False(t, result.Truncated)
		mockRepo.AssertExpectations(t)
	})

	t.Run("marks results cut at the ticket cap", func(t *testing.T) {
		mockRepo := mocks.NewMockTicketRepository()
		svc := services.NewAnalyticsService(mockRepo, 2)

		tickets := []domain.Ticket{
			{Subject: "VPN drop", Status: domain.StatusOpen},
			{Subject: "VPN cert", Status: domain.StatusOpen},
			{Subject: "VPN old", Status: domain.StatusClosed},
		}
		mockRepo.On("GetTechnician", ctx, int64(7)).Return(carol, nil)
		mockRepo.On("ListByTechnician", ctx, ports.ListTicketsParams{TechnicianID: 7, Limit: 3}).Return(tickets, nil)

		result, err := svc.FilterTechnicianTickets(ctx, ports.FilterTechnicianTicketsParams{TechnicianID: 7})

		require.NoError(t, err)
		assert.True(t, result.Truncated)
		assert.Equal(t, []string{"VPN drop", "VPN cert"}, subjects(result.Tickets))
		assert.Equal(t, 2, result.Stats.OpenOnlyCount)
		assert.Equal(t, 0, result.Stats.ClosedCount)
	})

	t.Run("explicit reference name overrides technician", func(t *testing.T) {
		mockRepo := mocks.NewMockTicketRepository()
		svc := services.NewAnalyticsService(mockRepo, 100)

		tickets := []domain.Ticket{{AssignedBy: domain.StringPtr("Alice")}}
		mockRepo.On("GetTechnician", ctx, int64(7)).Return(carol, nil)
		mockRepo.On("ListByTechnician", ctx, mock.AnythingOfType("ports.ListTicketsParams")).Return(tickets, nil)

		result, err := svc.FilterTechnicianTickets(ctx, ports.FilterTechnicianTicketsParams{
			TechnicianID: 7,
			Criteria:     domain.FilterCriteria{ReferenceName: "Alice"},
		})

		require.NoError(t, err)
		assert.Equal(t, 1, result.Stats.SelfPickedCount)
		assert.Equal(t, 0, result.Stats.AssignedCount)
	})

	t.Run("technician not found", func(t *testing.T) {
		mockRepo := mocks.NewMockTicketRepository()
		svc := services.NewAnalyticsService(mockRepo, 100)

		mockRepo.On("GetTechnician", ctx, int64(99)).Return(nil, apperrors.ErrTechnicianNotFound)

		result, err := svc.FilterTechnicianTickets(ctx, ports.FilterTechnicianTicketsParams{TechnicianID: 99})

		assert.Nil(t, result)
		assert.ErrorIs(t, err, apperrors.ErrTechnicianNotFound)
		mockRepo.AssertNotCalled(t, "ListByTechnician")
	})

	t.Run("repository failure is wrapped", func(t *testing.T) {
		mockRepo := mocks.NewMockTicketRepository()
		svc := services.NewAnalyticsService(mockRepo, 100)
		dbErr := errors.New("connection reset")

		mockRepo.On("GetTechnician", ctx, int64(7)).Return(carol, nil)
		mockRepo.On("ListByTechnician", ctx, mock.Anything).Return(nil, dbErr)

		result, err := svc.FilterTechnicianTickets(ctx, ports.FilterTechnicianTicketsParams{TechnicianID: 7})

		assert.Nil(t, result)
		assert.ErrorIs(t, err, dbErr)
	})

	t.Run("invalid technician id", func(t *testing.T) {
		mockRepo := mocks.NewMockTicketRepository()
		svc := services.NewAnalyticsService(mockRepo, 100)

		_, err := svc.FilterTechnicianTickets(ctx, ports.FilterTechnicianTicketsParams{TechnicianID: 0})

		assert.ErrorIs(t, err, apperrors.ErrInvalidTechnician)
		mockRepo.AssertNotCalled(t, "GetTechnician")
	})

	t.Run("inverted date range", func(t *testing.T) {
		mockRepo := mocks.NewMockTicketRepository()
		svc := services.NewAnalyticsService(mockRepo, 100)

		_, err := svc.FilterTechnicianTickets(ctx, ports.FilterTechnicianTicketsParams{
			TechnicianID: 7,
			From:         &to,
			To:           &from,
		})

		assert.ErrorIs(t, err, apperrors.ErrInvalidDateRange)
	})

	t.Run("no repository configured", func(t *testing.T) {
		svc := services.NewAnalyticsService(nil, 100)

		_, err := svc.FilterTechnicianTickets(ctx, ports.FilterTechnicianTicketsParams{TechnicianID: 7})

		assert.ErrorIs(t, err, apperrors.ErrUnavailable)
	})
}

func TestAnalyticsService_RefreshTechnician(t *testing.T) {
	ctx := context.Background()

	t.Run("invalidates then notifies", func(t *testing.T) {
		invalidator := &mocks.MockTicketCacheInvalidator{}
		notifier := &mocks.MockTechnicianNotifier{}
		svc := services.NewAnalyticsService(nil, 0,
			services.WithCacheInvalidator(invalidator),
			services.WithNotifier(notifier),
		)

		var order []string
		invalidator.On("Invalidate", ctx, int64(7)).Return(nil).Run(func(mock.Arguments) { order = append(order, "invalidate") })
		notifier.On("NotifyTechnician", int64(7)).Return(2).Run(func(mock.Arguments) { order = append(order, "notify") })

		notified, err := svc.RefreshTechnician(ctx, 7)

		require.NoError(t, err)
		assert.Equal(t, 2, notified)
		assert.Equal(t, []string{"invalidate", "notify"}, order)
	})

	t.Run("cache failure skips notification", func(t *testing.T) {
		invalidator := &mocks.MockTicketCacheInvalidator{}
		notifier := &mocks.MockTechnicianNotifier{}
		svc := services.NewAnalyticsService(nil, 0,
			services.WithCacheInvalidator(invalidator),
			services.WithNotifier(notifier),
		)
		cacheErr := errors.New("redis: connection refused")
		invalidator.On("Invalidate", ctx, int64(7)).Return(cacheErr)

		_, err := svc.RefreshTechnician(ctx, 7)

		assert.ErrorIs(t, err, cacheErr)
		notifier.AssertNotCalled(t, "NotifyTechnician", mock.Anything)
	})

	t.Run("notifies without a cache", func(t *testing.T) {
		notifier := &mocks.MockTechnicianNotifier{}
		svc := services.NewAnalyticsService(nil, 0, services.WithNotifier(notifier))
		notifier.On("NotifyTechnician", int64(7)).Return(0)

		notified, err := svc.RefreshTechnician(ctx, 7)

		require.NoError(t, err)
		assert.Equal(t, 0, notified)
		notifier.AssertExpectations(t)
	})

	t.Run("nothing configured", func(t *testing.T) {
		svc := services.NewAnalyticsService(nil, 0)

		notified, err := svc.RefreshTechnician(ctx, 7)

		require.NoError(t, err)
		assert.Equal(t, 0, notified)
	})

	t.Run("invalid technician id", func(t *testing.T) {
		svc := services.NewAnalyticsService(nil, 0)

		_, err := svc.RefreshTechnician(ctx, 0)

		assert.ErrorIs(t, err, apperrors.ErrInvalidTechnician)
	})
}
