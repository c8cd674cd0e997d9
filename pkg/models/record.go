package models

import "time"

// Accident dataset column names as they appear in the CSV header
const (
	ColumnID               = "ID"
	ColumnStartTime        = "Start_Time"
	ColumnState            = "State"
	ColumnSeverity         = "Severity"
	ColumnWeatherCondition = "Weather_Condition"
	ColumnCrossing         = "Crossing"
	ColumnTrafficSignal    = "Traffic_Signal"
	ColumnDescription      = "Description"
)

// RequiredColumns are the columns the query battery reads. Any other
// column in the input is carried along untouched.
var RequiredColumns = []string{
	ColumnID,
	ColumnStartTime,
	ColumnState,
	ColumnSeverity,
	ColumnWeatherCondition,
	ColumnCrossing,
	ColumnTrafficSignal,
	ColumnDescription,
}

// AccidentRecord is the typed view of one dataset row restricted to the
// columns the battery uses. Nullable columns are pointers.
type AccidentRecord struct {
	ID               string     `json:"ID"`
	StartTime        *time.Time `json:"Start_Time"`
	State            *string    `json:"State"`
	Severity         *int64     `json:"Severity"`
	WeatherCondition *string    `json:"Weather_Condition"`
	Crossing         *bool      `json:"Crossing"`
	TrafficSignal    *bool      `json:"Traffic_Signal"`
	Description      *string    `json:"Description"`
}
