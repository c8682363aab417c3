package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"hydro-dashboard/internal/evaluator"
	"hydro-dashboard/internal/models"
	"hydro-dashboard/internal/repository"
	"hydro-dashboard/internal/services"
	"hydro-dashboard/pkg/logging"
	"hydro-dashboard/pkg/metrics"
)

// Default look-back windows when no dates are given
const (
	defaultHistoryDays = 7
	defaultSearchDays  = 30
)

// DashboardHandler serves the station dashboard API
type DashboardHandler struct {
	dashboard *services.DashboardService
	search    *services.SearchService
	monitor   *services.AlertMonitor
	repo      repository.StationRepository
	logger    *logging.StructuredLogger
	metrics   *metrics.Collector
}

// NewDashboardHandler creates a new dashboard handler. monitor may be nil
// when the background sweep is disabled.
func NewDashboardHandler(
	dashboard *services.DashboardService,
	search *services.SearchService,
	monitor *services.AlertMonitor,
	repo repository.StationRepository,
	logger *logging.StructuredLogger,
	metricsCollector *metrics.Collector,
) *DashboardHandler {
	return &DashboardHandler{
		dashboard: dashboard,
		search:    search,
		monitor:   monitor,
		repo:      repo,
		logger:    logger,
		metrics:   metricsCollector,
	}
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
	Code    int    `json:"code"`
}

func (h *DashboardHandler) observe(endpoint string) func() {
	startTime := time.Now()
	return func() {
		h.metrics.APIRequestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}
}

// ListStations handles GET /api/stations
func (h *DashboardHandler) ListStations(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/api/stations"
	defer h.observe(endpoint)()

	h.metrics.RecordAPIRequest(endpoint, r.Method, "200")
	h.sendJSON(w, models.Stations(), http.StatusOK)
}

// ListProjects handles GET /api/projects
func (h *DashboardHandler) ListProjects(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/api/projects"
	defer h.observe(endpoint)()

	h.metrics.RecordAPIRequest(endpoint, r.Method, "200")
	h.sendJSON(w, models.ProjectOptions, http.StatusOK)
}

// GetOverview handles GET /api/overview
func (h *DashboardHandler) GetOverview(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/api/overview"
	defer h.observe(endpoint)()

	overview, err := h.dashboard.Overview(r.Context())
	if err != nil {
		h.handleServiceError(w, r, endpoint, err)
		return
	}

	h.metrics.RecordAPIRequest(endpoint, r.Method, "200")
	h.sendJSON(w, overview, http.StatusOK)
}

// GetReadings handles GET /api/stations/{station}/readings
func (h *DashboardHandler) GetReadings(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/api/stations/{station}/readings"
	defer h.observe(endpoint)()

	kind, err := h.station(r)
	if err != nil {
		h.handleServiceError(w, r, endpoint, err)
		return
	}

	day, err := h.dateParam(r, "date", h.dashboard.Today())
	if err != nil {
		h.handleServiceError(w, r, endpoint, err)
		return
	}

	project := r.URL.Query().Get("project")
	if project == "All Projects" {
		project = ""
	}

	result, err := h.dashboard.StationDay(r.Context(), kind, day, project)
	if err != nil {
		h.handleServiceError(w, r, endpoint, err)
		return
	}

	h.metrics.RecordAPIRequest(endpoint, r.Method, "200")
	h.sendJSON(w, result, http.StatusOK)
}

// GetHistory handles GET /api/stations/{station}/history
func (h *DashboardHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/api/stations/{station}/history"
	defer h.observe(endpoint)()

	kind, err := h.station(r)
	if err != nil {
		h.handleServiceError(w, r, endpoint, err)
		return
	}

	start, end, err := h.dateRange(r, defaultHistoryDays)
	if err != nil {
		h.handleServiceError(w, r, endpoint, err)
		return
	}

	history, err := h.dashboard.History(r.Context(), kind, start, end, r.URL.Query().Get("parameter"))
	if err != nil {
		h.handleServiceError(w, r, endpoint, err)
		return
	}

	h.metrics.RecordAPIRequest(endpoint, r.Method, "200")
	h.sendJSON(w, history, http.StatusOK)
}

// GetConstraints handles GET /api/stations/{station}/constraints. Without
// start_date and end_date the whole table is checked.
func (h *DashboardHandler) GetConstraints(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/api/stations/{station}/constraints"
	defer h.observe(endpoint)()

	kind, err := h.station(r)
	if err != nil {
		h.handleServiceError(w, r, endpoint, err)
		return
	}

	var opts []models.QueryOption
	q := r.URL.Query()
	if q.Get("start_date") != "" || q.Get("end_date") != "" {
		start, end, err := h.dateRange(r, defaultHistoryDays)
		if err != nil {
			h.handleServiceError(w, r, endpoint, err)
			return
		}
		opts = append(opts, models.WithDateRange(start, end))
	}

	report, err := h.dashboard.Constraints(r.Context(), kind, opts...)
	if err != nil {
		h.handleServiceError(w, r, endpoint, err)
		return
	}

	h.metrics.RecordAPIRequest(endpoint, r.Method, "200")
	h.sendJSON(w, report, http.StatusOK)
}

// GetSeries handles GET /api/stations/{station}/series
func (h *DashboardHandler) GetSeries(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/api/stations/{station}/series"
	defer h.observe(endpoint)()

	kind, err := h.station(r)
	if err != nil {
		h.handleServiceError(w, r, endpoint, err)
		return
	}

	parameter := r.URL.Query().Get("parameter")
	if parameter == "" {
		if fixed := services.SeriesParameters(kind); len(fixed) > 0 {
			parameter = fixed[0]
		}
	}

	series, err := h.dashboard.Series(r.Context(), kind, parameter)
	if err != nil {
		h.handleServiceError(w, r, endpoint, err)
		return
	}

	h.metrics.RecordAPIRequest(endpoint, r.Method, "200")
	h.sendJSON(w, series, http.StatusOK)
}

// Search handles GET /api/search
func (h *DashboardHandler) Search(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/api/search"
	defer h.observe(endpoint)()

	start, end, err := h.dateRange(r, defaultSearchDays)
	if err != nil {
		h.handleServiceError(w, r, endpoint, err)
		return
	}

	q := r.URL.Query()
	by := q.Get("by")
	if by == "" {
		by = services.SearchByLocation
	}

	result, err := h.search.Search(r.Context(), services.SearchRequest{
		By:    by,
		Value: q.Get("value"),
		Start: start,
		End:   end,
	})
	if err != nil {
		h.handleServiceError(w, r, endpoint, err)
		return
	}

	h.metrics.RecordAPIRequest(endpoint, r.Method, "200")
	h.sendJSON(w, result, http.StatusOK)
}

// AlertSummary is the latest background sweep, keyed by station name
type AlertSummary struct {
	Enabled    bool                 `json:"enabled"`
	Thresholds evaluator.Thresholds `json:"thresholds"`
	Stations   map[string]int       `json:"stations"`
}

// GetAlerts handles GET /api/alerts
func (h *DashboardHandler) GetAlerts(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/api/alerts"
	defer h.observe(endpoint)()

	summary := AlertSummary{
		Thresholds: h.dashboard.Thresholds(),
		Stations:   map[string]int{},
	}
	if h.monitor != nil {
		summary.Enabled = true
		for kind, count := range h.monitor.Last() {
			summary.Stations[kind.String()] = count
		}
	}

	h.metrics.RecordAPIRequest(endpoint, r.Method, "200")
	h.sendJSON(w, summary, http.StatusOK)
}

// HealthCheck handles GET /health
func (h *DashboardHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status := map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if err := h.repo.HealthCheck(ctx); err != nil {
		h.logger.Warn(ctx, "[HEALTH_CHECK_FAILED] Store unreachable", logging.Fields{
			"error": err.Error(),
		})
		status["status"] = "degraded"
		status["store"] = "unreachable"
		h.sendJSON(w, status, http.StatusServiceUnavailable)
		return
	}

	h.logger.Debug(ctx, "[HEALTH_CHECK] Health check requested", logging.Fields{})
	h.sendJSON(w, status, http.StatusOK)
}

func (h *DashboardHandler) station(r *http.Request) (models.StationKind, error) {
	return models.ParseStationKind(mux.Vars(r)["station"])
}

func (h *DashboardHandler) dateParam(r *http.Request, name string, fallback time.Time) (time.Time, error) {
	value := r.URL.Query().Get(name)
	if value == "" {
		return fallback, nil
	}
	return models.ParseDate(name, value)
}

// dateRange reads start_date and end_date, defaulting to the last
// lookbackDays days ending today
func (h *DashboardHandler) dateRange(r *http.Request, lookbackDays int) (time.Time, time.Time, error) {
	today := h.dashboard.Today()

	start, err := h.dateParam(r, "start_date", today.AddDate(0, 0, -lookbackDays))
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := h.dateParam(r, "end_date", today)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, end, nil
}

// handleServiceError maps validation failures to 400 and anything else to 500
func (h *DashboardHandler) handleServiceError(w http.ResponseWriter, r *http.Request, endpoint string, err error) {
	var verr *models.ValidationError
	if errors.As(err, &verr) {
		h.metrics.RecordAPIError("validation_error", endpoint)
		h.sendError(w, r, endpoint, verr.Error(), verr.Field, http.StatusBadRequest)
		return
	}

	h.logger.Error(r.Context(), "[API_ERROR] Request failed", logging.Fields{
		"endpoint": endpoint,
	}, err)
	h.metrics.RecordAPIError("internal_error", endpoint)
	h.sendError(w, r, endpoint, "failed to load station data", "", http.StatusInternalServerError)
}

// sendJSON sends a JSON response
func (h *DashboardHandler) sendJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// sendError sends an error response
func (h *DashboardHandler) sendError(w http.ResponseWriter, r *http.Request, endpoint, message, field string, statusCode int) {
	h.metrics.RecordAPIRequest(endpoint, r.Method, strconv.Itoa(statusCode))

	response := ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Field:   field,
		Code:    statusCode,
	}

	h.sendJSON(w, response, statusCode)
}

// RegisterRoutes registers all dashboard API routes
func (h *DashboardHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/health", h.HealthCheck).Methods("GET")

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/stations", h.ListStations).Methods("GET")
	api.HandleFunc("/projects", h.ListProjects).Methods("GET")
	api.HandleFunc("/overview", h.GetOverview).Methods("GET")
	api.HandleFunc("/alerts", h.GetAlerts).Methods("GET")
	api.HandleFunc("/search", h.Search).Methods("GET")
	api.HandleFunc("/stations/{station}/readings", h.GetReadings).Methods("GET")
	api.HandleFunc("/stations/{station}/history", h.GetHistory).Methods("GET")
	api.HandleFunc("/stations/{station}/constraints", h.GetConstraints).Methods("GET")
	api.HandleFunc("/stations/{station}/series", h.GetSeries).Methods("GET")
	api.HandleFunc("/docs", SwaggerUI).Methods("GET")
	api.HandleFunc("/docs/openapi.json", OpenAPISpec).Methods("GET")
}
