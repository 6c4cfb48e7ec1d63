package model

// PumpState is the controller's position in the pump lifecycle.
type PumpState string

const (
	PumpIdle           PumpState = "idle"
	PumpRunning        PumpState = "running"
	PumpCooldownNormal PumpState = "cooldown"
	PumpCooldownSafety PumpState = "cooldown_safety"
	// PumpBlocked means the sensor reading is implausible; the relay is held
	// off and no start/stop events are produced until a valid reading returns.
	PumpBlocked PumpState = "blocked"
)
