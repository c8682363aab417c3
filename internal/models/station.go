package models

import (
	"encoding/json"
	"strings"
)

// StationKind identifies one of the six monitored station categories.
// Each kind is backed by exactly one table in the store.
type StationKind int

const (
	River StationKind = iota
	Dam
	EPAN
	AWS
	ARS
	Gate
)

// AllStationKinds lists the station kinds in dashboard display order
var AllStationKinds = []StationKind{River, Dam, EPAN, AWS, ARS, Gate}

var stationNames = map[StationKind]string{
	River: "River",
	Dam:   "Dam",
	EPAN:  "EPAN",
	AWS:   "AWS",
	ARS:   "ARS",
	Gate:  "Gate",
}

var stationTables = map[StationKind]string{
	River: "river_data",
	Dam:   "dam_data",
	EPAN:  "epan_data",
	AWS:   "aws_data",
	ARS:   "ars_data",
	Gate:  "gate_data",
}

// String returns the display name of the station kind
func (k StationKind) String() string {
	if name, ok := stationNames[k]; ok {
		return name
	}
	return "Unknown"
}

// Valid reports whether k is one of the six known kinds
func (k StationKind) Valid() bool {
	_, ok := stationTables[k]
	return ok
}

// Table returns the underlying store table for the kind.
// The second return value is false for unknown kinds.
func (k StationKind) Table() (string, bool) {
	table, ok := stationTables[k]
	return table, ok
}

// MarshalJSON encodes the kind as its display name
func (k StationKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// ParseStationKind resolves a display name ("River", "aws", ...) or a
// table name ("gate_data") to a StationKind.
func ParseStationKind(s string) (StationKind, error) {
	needle := strings.TrimSpace(s)
	for _, kind := range AllStationKinds {
		if strings.EqualFold(stationNames[kind], needle) || stationTables[kind] == needle {
			return kind, nil
		}
	}
	return 0, &ValidationError{
		Field:   "station",
		Value:   s,
		Message: "unknown station, expected one of River, Dam, EPAN, AWS, ARS, Gate",
	}
}

// StationKindForTable resolves a table name back to its station kind
func StationKindForTable(table string) (StationKind, bool) {
	for kind, t := range stationTables {
		if t == table {
			return kind, true
		}
	}
	return 0, false
}

// StationInfo describes a station kind for API consumers
type StationInfo struct {
	Kind  StationKind `json:"station"`
	Table string      `json:"table"`
}

// Stations returns the static station → table mapping in display order
func Stations() []StationInfo {
	out := make([]StationInfo, 0, len(AllStationKinds))
	for _, kind := range AllStationKinds {
		table, _ := kind.Table()
		out = append(out, StationInfo{Kind: kind, Table: table})
	}
	return out
}

// ProjectOptions is the fixed list of irrigation projects offered by the
// search form.
var ProjectOptions = []string{"Godavari", "Godavari Lower", "Kokan", "Krishna Bhima", "Tapi"}
