package http

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	stdhttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	mw "github.com/lorrc/helpdesk-analytics/internal/adapters/primary/http/middleware"
	"github.com/lorrc/helpdesk-analytics/internal/core/domain"
	apperrors "github.com/lorrc/helpdesk-analytics/internal/core/errors"
	"github.com/lorrc/helpdesk-analytics/internal/core/mocks"
	"github.com/lorrc/helpdesk-analytics/internal/core/ports"
	"github.com/lorrc/helpdesk-analytics/internal/core/services"
)

const scenarioBody = `{
	"tickets": [
		{"freshserviceTicketId": 101, "subject": "VPN drop", "status": "Open", "ticketCategory": "Network", "isSelfPicked": true},
		{"freshserviceTicketId": "102", "subject": "Printer jam", "status": "Closed", "ticketCategory": "Hardware", "isSelfPicked": false, "assignedBy": "Alice"}
	],
	"searchTerm": %q,
	"selectedCategories": %s
}`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newAnalyticsRouter(svc ports.AnalyticsService) *chi.Mux {
	logger := discardLogger()
	handler := NewAnalyticsHandler(svc, NewErrorHandler(logger), logger)
	handler.now = func() time.Time { return time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC) }

	router := chi.NewRouter()
	router.Use(mw.RequestID)
	router.Route("/api/v1", handler.RegisterRoutes)
	return router
}

func doRequest(t *testing.T, router stdhttp.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	return recorder
}

func decodeFilterResponse(t *testing.T, recorder *httptest.ResponseRecorder) FilterTicketsResponse {
	t.Helper()
	var response FilterTicketsResponse
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&response))
	return response
}

func TestHandleFilterTickets(t *testing.T) {
	router := newAnalyticsRouter(services.NewAnalyticsService(nil, 0))

	t.Run("or query keeps both tickets", func(t *testing.T) {
		body := fmt.Sprintf(scenarioBody, "vpn OR printer", `[]`)
		recorder := doRequest(t, router, stdhttp.MethodPost, "/api/v1/tickets/filter", body)

		require.Equal(t, stdhttp.StatusOK, recorder.Code)
		response := decodeFilterResponse(t, recorder)
		assert.Equal(t, 2, response.Count)
		require.Len(t, response.Data, 2)
		assert.Equal(t, domain.TicketID("101"), response.Data[0].FreshserviceTicketID)
		assert.Equal(t, domain.TicketID("102"), response.Data[1].FreshserviceTicketID)
		assert.Equal(t, domain.FilterStats{
			OpenOnlyCount:   1,
			SelfPickedCount: 1,
			AssignedCount:   1,
			ClosedCount:     1,
		}, response.Stats)
		assert.Equal(t, []string{"Hardware", "Network"}, response.Categories)
	})

	t.Run("search and category exclude everything", func(t *testing.T) {
		body := fmt.Sprintf(scenarioBody, "vpn", `["Hardware"]`)
		recorder := doRequest(t, router, stdhttp.MethodPost, "/api/v1/tickets/filter", body)

		require.Equal(t, stdhttp.StatusOK, recorder.Code)
		response := decodeFilterResponse(t, recorder)
		assert.Equal(t, 0, response.Count)
		assert.NotNil(t, response.Data)
		assert.Empty(t, response.Data)
	})

	t.Run("non-array tickets degrade to empty", func(t *testing.T) {
		recorder := doRequest(t, router, stdhttp.MethodPost, "/api/v1/tickets/filter",
			`{"tickets": {"subject": "not a list"}, "searchTerm": "vpn", "selectedCategories": "Network"}`)

		require.Equal(t, stdhttp.StatusOK, recorder.Code)
		response := decodeFilterResponse(t, recorder)
		assert.Equal(t, 0, response.Count)
		assert.Equal(t, domain.FilterStats{}, response.Stats)
		assert.Equal(t, []string{}, response.Categories)
	})

	t.Run("malformed json", func(t *testing.T) {
		recorder := doRequest(t, router, stdhttp.MethodPost, "/api/v1/tickets/filter", `{"tickets": [`)

		require.Equal(t, stdhttp.StatusBadRequest, recorder.Code)
		var response ErrorResponse
		require.NoError(t, json.NewDecoder(recorder.Body).Decode(&response))
		assert.Equal(t, "BAD_REQUEST", response.Code)
	})

	t.Run("search term too long", func(t *testing.T) {
		body := `{"tickets": [], "searchTerm": "` + strings.Repeat("a", maxSearchTermLength+1) + `"}`
		recorder := doRequest(t, router, stdhttp.MethodPost, "/api/v1/tickets/filter", body)

		require.Equal(t, stdhttp.StatusUnprocessableEntity, recorder.Code)
		var response ValidationErrorResponse
		require.NoError(t, json.NewDecoder(recorder.Body).Decode(&response))
		assert.Contains(t, response.Fields, "searchTerm")
	})
}

func TestHandleFilterTickets_TooManyTickets(t *testing.T) {
	router := newAnalyticsRouter(services.NewAnalyticsService(nil, 1))

	body := fmt.Sprintf(scenarioBody, "", `[]`)
	recorder := doRequest(t, router, stdhttp.MethodPost, "/api/v1/tickets/filter", body)

	require.Equal(t, stdhttp.StatusUnprocessableEntity, recorder.Code)
	var response ErrorResponse
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&response))
	assert.Equal(t, "VALIDATION_ERROR", response.Code)
	assert.EqualValues(t, 1, response.Details["max"])
}

func TestHandleTechnicianTickets(t *testing.T) {
	t.Run("passes criteria and window to the service", func(t *testing.T) {
		svc := mocks.NewMockAnalyticsService()
		router := newAnalyticsRouter(svc)

		from := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
		to := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
		svc.On("FilterTechnicianTickets", mock.Anything, ports.FilterTechnicianTicketsParams{
			TechnicianID: 7,
			From:         &from,
			To:           &to,
			Criteria: domain.FilterCriteria{
				SearchTerm:         "vpn laptop",
				SelectedCategories: []string{"Network", "Hardware", "Software"},
			},
		}).Return(&domain.FilterResult{
			Tickets:    []domain.Ticket{{Subject: "VPN for new laptop", Status: domain.StatusPending}},
			Stats:      domain.FilterStats{PendingCount: 1},
			Categories: []string{"Network"},
			Truncated:  true,
		}, nil)

		recorder := doRequest(t, router, stdhttp.MethodGet,
			"/api/v1/technicians/7/tickets?search=vpn+laptop&category=Network&category=Hardware,Software&from=2026-09-01&to=2026-09-30", "")

		require.Equal(t, stdhttp.StatusOK, recorder.Code)
		response := decodeFilterResponse(t, recorder)
		assert.Equal(t, 1, response.Count)
		assert.Equal(t, 1, response.Stats.PendingCount)
		assert.True(t, response.Truncated)
		svc.AssertExpectations(t)
	})

	t.Run("days sets the lower bound", func(t *testing.T) {
		svc := mocks.NewMockAnalyticsService()
		router := newAnalyticsRouter(svc)

		from := time.Date(2026, 10, 7, 12, 0, 0, 0, time.UTC)
		svc.On("FilterTechnicianTickets", mock.Anything, mock.MatchedBy(func(p ports.FilterTechnicianTicketsParams) bool {
			return p.TechnicianID == 7 && p.From != nil && p.From.Equal(from) && p.To == nil
		})).Return(&domain.FilterResult{}, nil)

		recorder := doRequest(t, router, stdhttp.MethodGet, "/api/v1/technicians/7/tickets?days=7", "")

		require.Equal(t, stdhttp.StatusOK, recorder.Code)
		response := decodeFilterResponse(t, recorder)
		assert.Equal(t, []domain.Ticket{}, response.Data)
		svc.AssertExpectations(t)
	})

	t.Run("invalid parameters", func(t *testing.T) {
		svc := mocks.NewMockAnalyticsService()
		router := newAnalyticsRouter(svc)

		recorder := doRequest(t, router, stdhttp.MethodGet, "/api/v1/technicians/abc/tickets?from=yesterday", "")

		require.Equal(t, stdhttp.StatusUnprocessableEntity, recorder.Code)
		var response ValidationErrorResponse
		require.NoError(t, json.NewDecoder(recorder.Body).Decode(&response))
		assert.Contains(t, response.Fields, "technicianID")
		assert.Contains(t, response.Fields, "from")
		svc.AssertNotCalled(t, "FilterTechnicianTickets")
	})

	t.Run("technician not found", func(t *testing.T) {
		svc := mocks.NewMockAnalyticsService()
		router := newAnalyticsRouter(svc)

		svc.On("FilterTechnicianTickets", mock.Anything, mock.Anything).Return(nil, apperrors.ErrTechnicianNotFound)

		recorder := doRequest(t, router, stdhttp.MethodGet, "/api/v1/technicians/99/tickets", "")

		require.Equal(t, stdhttp.StatusNotFound, recorder.Code)
		var response ErrorResponse
		require.NoError(t, json.NewDecoder(recorder.Body).Decode(&response))
		assert.Equal(t, "TECHNICIAN_NOT_FOUND", response.Code)
	})

	t.Run("no ticket store", func(t *testing.T) {
		router := newAnalyticsRouter(services.NewAnalyticsService(nil, 0))

		recorder := doRequest(t, router, stdhttp.MethodGet, "/api/v1/technicians/7/tickets", "")

		assert.Equal(t, stdhttp.StatusServiceUnavailable, recorder.Code)
	})
}

func TestHandleTechnicianCategories(t *testing.T) {
	svc := mocks.NewMockAnalyticsService()
	router := newAnalyticsRouter(svc)

	svc.On("FilterTechnicianTickets", mock.Anything, mock.MatchedBy(func(p ports.FilterTechnicianTicketsParams) bool {
		return p.TechnicianID == 7 && p.Criteria.SearchTerm == "" && len(p.Criteria.SelectedCategories) == 0
	})).Return(&domain.FilterResult{Categories: []string{"Hardware", "Network"}}, nil)

	recorder := doRequest(t, router, stdhttp.MethodGet, "/api/v1/technicians/7/categories?search=ignored&category=Network", "")

	require.Equal(t, stdhttp.StatusOK, recorder.Code)
	var response ListResponse[string]
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&response))
	assert.Equal(t, []string{"Hardware", "Network"}, response.Data)
	assert.Equal(t, 2, response.Count)
	svc.AssertExpectations(t)
}

func TestHandleRefreshTechnician(t *testing.T) {
	t.Run("reports notified dashboards", func(t *testing.T) {
		svc := mocks.NewMockAnalyticsService()
		router := newAnalyticsRouter(svc)
		svc.On("RefreshTechnician", mock.Anything, int64(7)).Return(3, nil)

		recorder := doRequest(t, router, stdhttp.MethodPost, "/api/v1/technicians/7/refresh", "")

		require.Equal(t, stdhttp.StatusOK, recorder.Code)
		var response RefreshTechnicianResponse
		require.NoError(t, json.NewDecoder(recorder.Body).Decode(&response))
		assert.Equal(t, RefreshTechnicianResponse{TechnicianID: 7, Notified: 3}, response)
		svc.AssertExpectations(t)
	})

	t.Run("invalid technician id", func(t *testing.T) {
		svc := mocks.NewMockAnalyticsService()
		router := newAnalyticsRouter(svc)

		recorder := doRequest(t, router, stdhttp.MethodPost, "/api/v1/technicians/0/refresh", "")

		assert.Equal(t, stdhttp.StatusUnprocessableEntity, recorder.Code)
		svc.AssertNotCalled(t, "RefreshTechnician", mock.Anything, mock.Anything)
	})
}

func TestHandleParseSearch(t *testing.T) {
	router := newAnalyticsRouter(services.NewAnalyticsService(nil, 0))

	tests := []struct {
		name       string
		query      string
		wantGroups [][]string
		matchesAll bool
	}{
		{"empty", "", [][]string{}, true},
		{"and binds tighter than or", "vpn+laptop+OR+printer", [][]string{{"vpn", "laptop"}, {"printer"}}, false},
		{"pipe", "VPN%7Cprinter", [][]string{{"vpn"}, {"printer"}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := doRequest(t, router, stdhttp.MethodGet, "/api/v1/search/parse?q="+tt.query, "")

			require.Equal(t, stdhttp.StatusOK, recorder.Code)
			var response ParseSearchResponse
			require.NoError(t, json.NewDecoder(recorder.Body).Decode(&response))
			assert.Equal(t, tt.wantGroups, response.Groups)
			assert.Equal(t, tt.matchesAll, response.MatchesAll)
		})
	}
}
