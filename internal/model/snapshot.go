package model

// UnknownMoisture is reported while no valid sample has been taken yet.
const UnknownMoisture = -1

// ControllerSnapshot is the read-only view consumed by display sinks: the
// /status endpoint and the MQTT status topic. It carries no internal timers.
type ControllerSnapshot struct {
	Moisture     int       `json:"moisture"` // percent, or UnknownMoisture
	Pump         PumpState `json:"pump"`
	RelayOn      bool      `json:"relay_on"`
	SafetyStop   bool      `json:"safety_stop"` // last stop was the runtime cutoff
	Link         LinkState `json:"link"`
	TimeSynced   bool      `json:"time_synced"`
	Clock        string    `json:"clock"` // "YYYY-MM-DD HH:MM:SS" or placeholder
	LastDelivery string    `json:"last_delivery,omitempty"`
}
