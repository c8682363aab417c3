package handlers

import (
	"encoding/json"
	"net/http"
)

func queryParam(name, description string, schema map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"name":        name,
		"in":          "query",
		"description": description,
		"required":    false,
		"schema":      schema,
	}
}

var (
	stationPathParam = map[string]interface{}{
		"name":        "station",
		"in":          "path",
		"description": "Station kind (River, Dam, EPAN, AWS, ARS, Gate) or its table name",
		"required":    true,
		"schema": map[string]interface{}{
			"type": "string",
			"enum": []string{"River", "Dam", "EPAN", "AWS", "ARS", "Gate"},
		},
	}
	dateSchema        = map[string]interface{}{"type": "string", "format": "date"}
	stringSchema      = map[string]interface{}{"type": "string"}
	startDateParam    = queryParam("start_date", "Inclusive start date (YYYY-MM-DD)", dateSchema)
	endDateParam      = queryParam("end_date", "Inclusive end date (YYYY-MM-DD); a start after the end yields no rows", dateSchema)
	badRequestRef     = map[string]interface{}{"$ref": "#/components/responses/BadRequest"}
	historyResponse   = jsonResponse("Readings between the dates", map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"readings":   map[string]interface{}{"$ref": "#/components/schemas/ResultSet"},
			"parameters": map[string]interface{}{"type": "array", "items": stringSchema},
			"warning":    stringSchema,
		},
	})
)

func jsonResponse(description string, schema map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"description": description,
		"content": map[string]interface{}{
			"application/json": map[string]interface{}{"schema": schema},
		},
	}
}

func getOperation(summary, description string, params []map[string]interface{}, ok map[string]interface{}) map[string]interface{} {
	op := map[string]interface{}{
		"summary":     summary,
		"description": description,
		"responses": map[string]interface{}{
			"200": ok,
			"400": badRequestRef,
		},
	}
	if len(params) > 0 {
		op["parameters"] = params
	}
	return map[string]interface{}{"get": op}
}

// OpenAPISpec returns the OpenAPI 3.0 specification for the dashboard API
func OpenAPISpec(w http.ResponseWriter, r *http.Request) {
	object := map[string]interface{}{"type": "object"}

	spec := map[string]interface{}{
		"openapi": "3.0.0",
		"info": map[string]interface{}{
			"title":       "Hydrological Station Dashboard API",
			"description": "Read-only access to river, dam, evaporation pan, weather, rain gauge and gate station readings with threshold alerts and range checks",
			"version":     "1.0.0",
		},
		"servers": []map[string]string{
			{"url": "http://localhost:8080", "description": "Local development server"},
		},
		"paths": map[string]interface{}{
			"/health": getOperation("Health check", "Liveness plus a store ping; 503 when the store is unreachable", nil,
				jsonResponse("Service healthy", object)),
			"/api/stations": getOperation("List stations", "The six station kinds and their backing tables", nil,
				jsonResponse("Station list", map[string]interface{}{"type": "array", "items": object})),
			"/api/projects": getOperation("List projects", "Project names offered by the search form", nil,
				jsonResponse("Project names", map[string]interface{}{"type": "array", "items": stringSchema})),
			"/api/overview": getOperation("Overview", "Active stations, total records and per-station counts", nil,
				jsonResponse("Overview", object)),
			"/api/alerts": getOperation("Latest alert sweep", "Alert row counts of today's readings from the last scheduled sweep and the thresholds in use", nil,
				jsonResponse("Alert counts per station", object)),
			"/api/search": getOperation("Search all stations", "Rows matching a location ID or project name in every station table",
				[]map[string]interface{}{
					queryParam("by", "Column to match", map[string]interface{}{
						"type": "string", "enum": []string{"location_id", "project_name"}, "default": "location_id",
					}),
					queryParam("value", "Value to match; required", stringSchema),
					startDateParam,
					endDateParam,
				},
				jsonResponse("Per-station matches with summaries", object)),
			"/api/stations/{station}/readings": getOperation("Readings for one day",
				"Rows of a single day with per-row alert flags, the alerting subset and the project list",
				[]map[string]interface{}{
					stationPathParam,
					queryParam("date", "Day to show (YYYY-MM-DD); defaults to today", dateSchema),
					queryParam("project", "Restrict to one project_name", stringSchema),
				},
				jsonResponse("Readings with alerts", object)),
			"/api/stations/{station}/history": getOperation("Historical readings",
				"Rows between two dates; a parameter is moved to the front after data_date",
				[]map[string]interface{}{
					stationPathParam,
					startDateParam,
					endDateParam,
					queryParam("parameter", "Column to focus on", stringSchema),
				},
				historyResponse),
			"/api/stations/{station}/constraints": getOperation("Constraint violations",
				"Counts of values outside the configured inclusive ranges",
				[]map[string]interface{}{stationPathParam, startDateParam, endDateParam},
				jsonResponse("Constraint report", object)),
			"/api/stations/{station}/series": getOperation("Time series",
				"One parameter plotted against data_date and data_time",
				[]map[string]interface{}{
					stationPathParam,
					queryParam("parameter", "Column to plot; ARS supports hour_rain, daily_rain and batt_volt", stringSchema),
				},
				jsonResponse("Series points and summary statistics", object)),
		},
		"components": map[string]interface{}{
			"schemas": map[string]interface{}{
				"ResultSet": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"table":       stringSchema,
						"columns":     map[string]interface{}{"type": "array", "items": stringSchema},
						"rows":        map[string]interface{}{"type": "array", "items": object},
						"unavailable": map[string]interface{}{"type": "boolean"},
						"error":       stringSchema,
					},
				},
				"Error": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"error":   stringSchema,
						"message": stringSchema,
						"field":   stringSchema,
						"code":    map[string]interface{}{"type": "integer"},
					},
				},
			},
			"responses": map[string]interface{}{
				"BadRequest": jsonResponse("Invalid station, date, parameter or search value",
					map[string]interface{}{"$ref": "#/components/schemas/Error"}),
			},
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(spec)
}
