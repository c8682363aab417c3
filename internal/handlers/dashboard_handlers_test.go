package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hydro-dashboard/internal/evaluator"
	"hydro-dashboard/internal/repository"
	"hydro-dashboard/internal/services"
	"hydro-dashboard/pkg/database"
	"hydro-dashboard/pkg/logging"
	"hydro-dashboard/pkg/metrics"
)

const riverSchema = `
CREATE TABLE river_data (
	id INTEGER PRIMARY KEY,
	data_date DATE NOT NULL,
	timestamp DATETIME,
	location_id TEXT,
	project_name TEXT,
	water_level REAL,
	batt_volt REAL
);
INSERT INTO river_data (data_date, timestamp, location_id, project_name, water_level, batt_volt) VALUES
	('2025-05-01', '2025-05-01 08:00:00', 'GOD1', 'Godavari', 1500, 12.6),
	('2025-05-02', '2025-05-02 08:00:00', 'GOD1', 'Godavari', 1480, 10.2),
	('2025-05-02', '2025-05-02 09:00:00', 'TAP7', 'Tapi', 2100, 12.1);
`

func newTestRouter(t *testing.T) *mux.Router {
	t.Helper()

	raw, err := sqlx.Open(database.DriverSQLite, ":memory:")
	require.NoError(t, err)
	raw.SetMaxOpenConns(1)
	_, err = raw.Exec(riverSchema)
	require.NoError(t, err)

	logger := logging.NewNopLogger()
	collector := metrics.NewCollector("hydro_test", prometheus.NewRegistry())
	db := database.Wrap(raw, &database.Config{Driver: database.DriverSQLite, Database: "memory"}, logger, collector)
	t.Cleanup(func() { db.Close() })

	allowed, err := repository.NewColumnAllowList(repository.DefaultAllowedColumns)
	require.NoError(t, err)
	repo := repository.NewStationRepository(db, allowed, 0, logger, collector)

	registry, err := evaluator.NewConstraintRegistry(evaluator.DefaultConstraintRules())
	require.NoError(t, err)
	dashboard := services.NewDashboardService(repo, evaluator.NewAlertEvaluator(evaluator.DefaultThresholds()), registry, logger, collector)
	search := services.NewSearchService(repo, logger, collector)

	router := mux.NewRouter()
	router.Use(RequestID, StationContext)
	NewDashboardHandler(dashboard, search, nil, repo, logger, collector).RegisterRoutes(router)
	return router
}

func get(t *testing.T, router http.Handler, target string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var body map[string]interface{}
	if rec.Header().Get("Content-Type") == "application/json" {
		_ = json.Unmarshal(rec.Body.Bytes(), &body)
	}
	return rec, body
}

func TestListStations(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/stations", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var stations []map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stations))
	require.Len(t, stations, 6)
	assert.Equal(t, map[string]string{"station": "River", "table": "river_data"}, stations[0])
	assert.Equal(t, map[string]string{"station": "Gate", "table": "gate_data"}, stations[5])
}

func TestGetReadings(t *testing.T) {
	router := newTestRouter(t)

	rec, body := get(t, router, "/api/stations/River/readings?date=2025-05-02")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "River", body["station"])
	assert.Equal(t, float64(1), body["alert_count"])
	assert.Equal(t, []interface{}{"Godavari", "Tapi"}, body["projects"])

	rec, body = get(t, router, "/api/stations/river_data/readings?date=2025-05-02&project=Tapi")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(0), body["alert_count"])
	readings := body["readings"].(map[string]interface{})
	assert.Len(t, readings["rows"], 1)
}

func TestBadRequests(t *testing.T) {
	router := newTestRouter(t)

	tests := []struct {
		name      string
		target    string
		wantField string
	}{
		{name: "unknown station", target: "/api/stations/Lake/readings", wantField: "station"},
		{name: "malformed date", target: "/api/stations/River/readings?date=02/05/2025", wantField: "date"},
		{name: "malformed start date", target: "/api/stations/River/history?start_date=yesterday", wantField: "start_date"},
		{name: "empty search value", target: "/api/search?by=location_id&value=", wantField: "value"},
		{name: "unsearchable column", target: "/api/search?by=batt_volt&value=12", wantField: "by"},
		{name: "unsupported ARS parameter", target: "/api/stations/ARS/series?parameter=water_level", wantField: "parameter"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := get(t, router, tt.target)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.wantField, body["field"])
			assert.Equal(t, float64(http.StatusBadRequest), body["code"])
		})
	}
}

func TestGetHistory(t *testing.T) {
	router := newTestRouter(t)

	rec, body := get(t, router, "/api/stations/River/history?start_date=2025-05-01&end_date=2025-05-02&parameter=water_level")
	require.Equal(t, http.StatusOK, rec.Code)

	readings := body["readings"].(map[string]interface{})
	columns := readings["columns"].([]interface{})
	assert.Equal(t, []interface{}{"data_date", "water_level"}, columns[:2])
	assert.Len(t, readings["rows"], 3)

	rec, body = get(t, router, "/api/stations/River/history?start_date=2025-05-05&end_date=2025-05-01")
	require.Equal(t, http.StatusOK, rec.Code)
	readings = body["readings"].(map[string]interface{})
	assert.Empty(t, readings["rows"])
}

func TestGetConstraints(t *testing.T) {
	router := newTestRouter(t)

	rec, body := get(t, router, "/api/stations/River/constraints")
	require.Equal(t, http.StatusOK, rec.Code)

	violations := body["violations"].([]interface{})
	require.Len(t, violations, 1)
	assert.Equal(t,
		"Constraint violation in river_data for column 'water_level': Values outside [1000, 2000]. Found 1 invalid entries.",
		violations[0].(map[string]interface{})["message"],
	)
}

func TestOverviewAndSearchReportUnavailableStations(t *testing.T) {
	router := newTestRouter(t)

	rec, body := get(t, router, "/api/overview")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), body["active_stations"])
	assert.Equal(t, float64(3), body["total_records"])

	rec, body = get(t, router, "/api/search?by=Location%20ID&value=GOD1&start_date=2025-05-01&end_date=2025-05-31")
	require.Equal(t, http.StatusOK, rec.Code)
	summary := body["summary"].(map[string]interface{})
	assert.Equal(t, float64(1), summary["sources"])
	assert.Equal(t, float64(2), summary["records"])
	assert.Len(t, body["errors"], 5, "tables missing from the store are reported, not fatal")
}

func TestHealthAndDocs(t *testing.T) {
	router := newTestRouter(t)

	rec, body := get(t, router, "/health")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", body["status"])
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))

	rec, body = get(t, router, "/api/docs/openapi.json")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "3.0.0", body["openapi"])

	rec, _ = get(t, router, "/api/docs")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "swagger-ui")

	rec, body = get(t, router, "/api/alerts")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, body["enabled"])
	thresholds := body["thresholds"].(map[string]interface{})
	assert.Equal(t, 10.5, thresholds["battery_min_volts"])
	assert.Equal(t, float64(50), thresholds["aws_max_rainfall"])
}

func TestRequestIDReusesValidHeader(t *testing.T) {
	router := newTestRouter(t)

	const id = "5f0c6a4e-2b1d-4c35-9c59-4f6d7e8a9b10"
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, id)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, id, rec.Header().Get(RequestIDHeader))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "not-a-uuid")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.NotEqual(t, "not-a-uuid", rec.Header().Get(RequestIDHeader))
}
