package services

import (
	"context"
	"strings"
	"time"

	"hydro-dashboard/internal/models"
	"hydro-dashboard/internal/repository"
	"hydro-dashboard/pkg/logging"
	"hydro-dashboard/pkg/metrics"
)

// Searchable columns
const (
	SearchByLocation = "location_id"
	SearchByProject  = "project_name"
)

// SearchRequest describes a cross-station lookup
type SearchRequest struct {
	By    string
	Value string
	Start time.Time
	End   time.Time
}

// StationSearch is one station's share of a search
type StationSearch struct {
	Station     models.StationKind   `json:"station"`
	Summary     models.ResultSummary `json:"summary"`
	Readings    *models.ResultSet    `json:"readings"`
	Unavailable bool                 `json:"unavailable,omitempty"`
	Error       string               `json:"error,omitempty"`
}

// SearchSummary aggregates the stations that matched
type SearchSummary struct {
	Sources    int        `json:"sources"`
	Records    int        `json:"records"`
	MostRecent *time.Time `json:"most_recent,omitempty"`
}

// SearchResult holds the matching stations and the stations that failed
type SearchResult struct {
	By        string          `json:"by"`
	Value     string          `json:"value"`
	StartDate string          `json:"start_date"`
	EndDate   string          `json:"end_date"`
	Summary   SearchSummary   `json:"summary"`
	Results   []StationSearch `json:"results"`
	Errors    []StationSearch `json:"errors"`
}

// SearchService runs one filtered fetch per station
type SearchService struct {
	repo    repository.StationRepository
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewSearchService creates a new search service
func NewSearchService(repo repository.StationRepository, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *SearchService {
	return &SearchService{
		repo:    repo,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// NormalizeSearchBy maps display labels like "Location ID" to column names
func NormalizeSearchBy(by string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(by)), " ", "_")
}

// Search looks up req.Value in req.By across every station within the
// date range. Stations are searched one after another; a failing station
// is reported in Errors and does not stop the rest.
func (s *SearchService) Search(ctx context.Context, req SearchRequest) (*SearchResult, error) {
	by := NormalizeSearchBy(req.By)
	if by != SearchByLocation && by != SearchByProject {
		return nil, &models.ValidationError{
			Field:   "by",
			Value:   req.By,
			Message: "must be location_id or project_name",
		}
	}

	value := strings.TrimSpace(req.Value)
	if value == "" {
		return nil, &models.ValidationError{
			Field:   "value",
			Message: "search value is required",
		}
	}

	startTime := time.Now()
	s.logger.Info(ctx, "[SEARCH_START] Searching all stations", logging.Fields{
		"by":         by,
		"value":      value,
		"start_date": req.Start.Format(models.DateLayout),
		"end_date":   req.End.Format(models.DateLayout),
	})

	out := &SearchResult{
		By:        by,
		Value:     value,
		StartDate: req.Start.Format(models.DateLayout),
		EndDate:   req.End.Format(models.DateLayout),
		Results:   []StationSearch{},
		Errors:    []StationSearch{},
	}

	for _, kind := range models.AllStationKinds {
		spec, err := models.NewQuerySpec(kind,
			models.WithDateRange(req.Start, req.End),
			models.WithFilter(by, value),
		)
		if err != nil {
			return nil, err
		}

		rs, err := s.repo.Fetch(ctx, spec)
		if err != nil {
			entry := StationSearch{Station: kind, Unavailable: true, Error: err.Error()}
			out.Errors = append(out.Errors, entry)
			s.metrics.RecordAPIError("station_unavailable", "search")
			s.logger.Error(ctx, "[SEARCH_STATION_ERROR] Station search failed", logging.Fields{
				"station": kind.String(),
			}, err)
			continue
		}
		if rs.Len() == 0 {
			continue
		}

		summary := models.Summarize(rs)
		out.Results = append(out.Results, StationSearch{
			Station:  kind,
			Summary:  summary,
			Readings: rs.WithLeadingColumns(models.DefaultDateColumn, "timestamp"),
		})

		out.Summary.Sources++
		out.Summary.Records += summary.Records
		if summary.MostRecent != nil && (out.Summary.MostRecent == nil || summary.MostRecent.After(*out.Summary.MostRecent)) {
			t := *summary.MostRecent
			out.Summary.MostRecent = &t
		}
	}

	s.logger.Info(ctx, "[SEARCH_COMPLETE] Search completed", logging.Fields{
		"by":          by,
		"sources":     out.Summary.Sources,
		"records":     out.Summary.Records,
		"errors":      len(out.Errors),
		"duration_ms": time.Since(startTime).Milliseconds(),
	})

	return out, nil
}
