package model

import "time"

// TelemetryEventType discriminates the telemetry event variants.
type TelemetryEventType string

const (
	EventMoisture TelemetryEventType = "moisture"
	EventPumpOff  TelemetryEventType = "pumpOff"
	EventPumpOn   TelemetryEventType = "pumpOn"
)

// TelemetryEvent is a single fire-and-forget report for the logging endpoint.
// Percent is meaningful only for EventMoisture, Duration only for EventPumpOff.
type TelemetryEvent struct {
	Type     TelemetryEventType `json:"type"`
	At       time.Time          `json:"at"`
	Percent  int                `json:"percent,omitempty"`
	Duration time.Duration      `json:"duration,omitempty"`
}
