package http

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/lorrc/helpdesk-analytics/internal/adapters/primary/validation"
	"github.com/lorrc/helpdesk-analytics/internal/core/domain"
	"github.com/lorrc/helpdesk-analytics/internal/core/ports"
	"github.com/lorrc/helpdesk-analytics/internal/core/search"
	"github.com/lorrc/helpdesk-analytics/internal/infrastructure/logging"
)

const (
	maxSearchTermLength    = 1000
	maxSelectedCategories  = 200
	maxReferenceNameLength = 255
)

// AnalyticsHandler handles ticket filtering and stats requests
type AnalyticsHandler struct {
	analyticsService ports.AnalyticsService
	errorHandler     *ErrorHandler
	logger           *slog.Logger
	now              func() time.Time
}

// NewAnalyticsHandler creates a new analytics handler
func NewAnalyticsHandler(analyticsService ports.AnalyticsService, errorHandler *ErrorHandler, logger *slog.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{
		analyticsService: analyticsService,
		errorHandler:     errorHandler,
		logger:           logger.With("handler", "analytics"),
		now:              time.Now,
	}
}

// RegisterRoutes sets up the routing for all analytics endpoints.
func (h *AnalyticsHandler) RegisterRoutes(r chi.Router) {
	r.Post("/tickets/filter", h.HandleFilterTickets)
	r.Get("/search/parse", h.HandleParseSearch)

	r.Route("/technicians/{technicianID}", func(r chi.Router) {
		r.Get("/tickets", h.HandleTechnicianTickets)
		r.Get("/categories", h.HandleTechnicianCategories)
		r.Post("/refresh", h.HandleRefreshTechnician)
	})
}

// --- Request/Response DTOs ---

// FilterTicketsRequest defines the expected JSON body for filtering tickets
type FilterTicketsRequest struct {
	Tickets            domain.TicketList `json:"tickets"`
	SearchTerm         string            `json:"searchTerm"`
	SelectedCategories domain.StringList `json:"selectedCategories"`
	ReferenceName      string            `json:"referenceName"`
}

// Validate validates the filter request
func (r *FilterTicketsRequest) Validate() error {
	v := validation.NewValidator()

	v.MaxLength("searchTerm", r.SearchTerm, maxSearchTermLength)
	v.MaxItems("selectedCategories", len(r.SelectedCategories), maxSelectedCategories)
	v.MaxLength("referenceName", r.ReferenceName, maxReferenceNameLength)

	if v.HasErrors() {
		return v.Errors()
	}
	return nil
}

// FilterTicketsResponse defines the JSON response for a filter pass.
type FilterTicketsResponse struct {
	Data       []domain.Ticket    `json:"data"`
	Count      int                `json:"count"`
	Stats      domain.FilterStats `json:"stats"`
	Categories []string           `json:"categories"`
	Truncated  bool               `json:"truncated"`
}

// ParseSearchResponse shows how a search term was interpreted.
type ParseSearchResponse struct {
	Query      string     `json:"query"`
	Groups     [][]string `json:"groups"`
	MatchesAll bool       `json:"matchesAll"`
}

// RefreshTechnicianResponse reports how many live dashboards were told to
// re-request after a sync.
type RefreshTechnicianResponse struct {
	TechnicianID int64 `json:"technicianId"`
	Notified     int   `json:"notified"`
}

func toFilterTicketsResponse(result *domain.FilterResult) FilterTicketsResponse {
	tickets := result.Tickets
	if tickets == nil {
		tickets = []domain.Ticket{}
	}
	categories := result.Categories
	if categories == nil {
		categories = []string{}
	}

	return FilterTicketsResponse{
		Data:       tickets,
		Count:      len(tickets),
		Stats:      result.Stats,
		Categories: categories,
		Truncated:  result.Truncated,
	}
}

// --- Handlers ---

// HandleFilterTickets handles POST /tickets/filter
func (h *AnalyticsHandler) HandleFilterTickets(w http.ResponseWriter, r *http.Request) {
	req, err := validation.DecodeAndValidate[FilterTicketsRequest](r)
	if HandleError(w, r, err, h.errorHandler) {
		return
	}

	if HandleError(w, r, req.Validate(), h.errorHandler) {
		return
	}

	result, err := h.analyticsService.Filter(r.Context(), req.Tickets, domain.FilterCriteria{
		SearchTerm:         req.SearchTerm,
		SelectedCategories: req.SelectedCategories,
		ReferenceName:      req.ReferenceName,
	})
	if HandleError(w, r, err, h.errorHandler) {
		return
	}

	logging.LoggerFromContext(r.Context(), h.logger).Debug("tickets filtered",
		"input", len(req.Tickets),
		"matched", len(result.Tickets),
	)

	WriteJSON(w, http.StatusOK, toFilterTicketsResponse(result))
}

// HandleTechnicianTickets handles GET /technicians/{technicianID}/tickets
func (h *AnalyticsHandler) HandleTechnicianTickets(w http.ResponseWriter, r *http.Request) {
	params, err := h.parseTechnicianParams(r)
	if HandleError(w, r, err, h.errorHandler) {
		return
	}

	ctx := logging.WithTechnicianID(r.Context(), strconv.FormatInt(params.TechnicianID, 10))
	result, err := h.analyticsService.FilterTechnicianTickets(ctx, params)
	if HandleError(w, r, err, h.errorHandler) {
		return
	}

	logging.LoggerFromContext(ctx, h.logger).Debug("technician tickets filtered",
		"matched", len(result.Tickets),
		"search", params.Criteria.SearchTerm,
	)

	WriteJSON(w, http.StatusOK, toFilterTicketsResponse(result))
}

// HandleTechnicianCategories handles GET /technicians/{technicianID}/categories
func (h *AnalyticsHandler) HandleTechnicianCategories(w http.ResponseWriter, r *http.Request) {
	params, err := h.parseTechnicianParams(r)
	if HandleError(w, r, err, h.errorHandler) {
		return
	}

	// Categories always describe the full ticket set, so search criteria are ignored.
	params.Criteria = domain.FilterCriteria{}

	ctx := logging.WithTechnicianID(r.Context(), strconv.FormatInt(params.TechnicianID, 10))
	result, err := h.analyticsService.FilterTechnicianTickets(ctx, params)
	if HandleError(w, r, err, h.errorHandler) {
		return
	}

	categories := result.Categories
	if categories == nil {
		categories = []string{}
	}
	WriteList(w, categories)
}

// HandleRefreshTechnician handles POST /technicians/{technicianID}/refresh.
// The sync job calls it after writing a technician's tickets.
func (h *AnalyticsHandler) HandleRefreshTechnician(w http.ResponseWriter, r *http.Request) {
	technicianID, err := parseTechnicianID(r)
	if HandleError(w, r, err, h.errorHandler) {
		return
	}

	ctx := logging.WithTechnicianID(r.Context(), strconv.FormatInt(technicianID, 10))
	notified, err := h.analyticsService.RefreshTechnician(ctx, technicianID)
	if HandleError(w, r, err, h.errorHandler) {
		return
	}

	logging.LoggerFromContext(ctx, h.logger).Info("technician refreshed", "notified", notified)

	WriteJSON(w, http.StatusOK, RefreshTechnicianResponse{
		TechnicianID: technicianID,
		Notified:     notified,
	})
}

func parseTechnicianID(r *http.Request) (int64, error) {
	v := validation.NewValidator()

	technicianID, err := strconv.ParseInt(chi.URLParam(r, "technicianID"), 10, 64)
	if err != nil {
		v.Custom("technicianID", false, "Invalid technician ID")
	} else {
		v.Min("technicianID", technicianID, 1)
	}

	if v.HasErrors() {
		return 0, v.Errors()
	}
	return technicianID, nil
}

// HandleParseSearch handles GET /search/parse
func (h *AnalyticsHandler) HandleParseSearch(w http.ResponseWriter, r *http.Request) {
	term := validation.ParseStringQueryParam(r, "q")

	v := validation.NewValidator()
	v.MaxLength("q", term, maxSearchTermLength)
	if v.HasErrors() {
		h.errorHandler.Handle(w, r, v.Errors())
		return
	}

	query := search.ParseQuery(term)
	groups := make([][]string, 0)
	for _, g := range query.Groups() {
		groups = append(groups, []string(g))
	}

	WriteJSON(w, http.StatusOK, ParseSearchResponse{
		Query:      term,
		Groups:     groups,
		MatchesAll: query.IsEmpty(),
	})
}

func (h *AnalyticsHandler) parseTechnicianParams(r *http.Request) (ports.FilterTechnicianTicketsParams, error) {
	v := validation.NewValidator()

	technicianID, err := strconv.ParseInt(chi.URLParam(r, "technicianID"), 10, 64)
	if err != nil {
		v.Custom("technicianID", false, "Invalid technician ID")
	} else {
		v.Min("technicianID", technicianID, 1)
	}

	searchTerm := validation.ParseStringQueryParam(r, "search")
	v.MaxLength("search", searchTerm, maxSearchTermLength)

	categories := validation.ParseStringSliceQueryParam(r, "category")
	v.MaxItems("category", len(categories), maxSelectedCategories)

	referenceName := validation.ParseStringQueryParam(r, "referenceName")
	v.MaxLength("referenceName", referenceName, maxReferenceNameLength)

	fromParam, err := validation.ParseTimeQueryParam(r, "from")
	if err != nil {
		v.Custom("from", false, "Must be a valid date or timestamp")
	}

	toParam, err := validation.ParseTimeQueryParam(r, "to")
	if err != nil {
		v.Custom("to", false, "Must be a valid date or timestamp")
	}

	var from *time.Time
	if fromParam != nil {
		from = &fromParam.Time
	} else if days := validation.ParseIntQueryParam(r, "days", 0); days > 0 {
		value := h.now().UTC().AddDate(0, 0, -days)
		from = &value
	}

	var to *time.Time
	if toParam != nil {
		adjusted := toParam.Time
		if toParam.DateOnly {
			// Date-only upper bounds include the whole day.
			adjusted = adjusted.Add(24 * time.Hour)
		}
		to = &adjusted
	}

	if from != nil && to != nil && from.After(*to) {
		v.Custom("from", false, "Must be before to")
	}

	if v.HasErrors() {
		return ports.FilterTechnicianTicketsParams{}, v.Errors()
	}

	return ports.FilterTechnicianTicketsParams{
		TechnicianID: technicianID,
		From:         from,
		To:           to,
		Criteria: domain.FilterCriteria{
			SearchTerm:         searchTerm,
			SelectedCategories: categories,
			ReferenceName:      referenceName,
		},
	}, nil
}
