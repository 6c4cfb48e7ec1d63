package model

import "time"

// MoistureReading is one filtered sample: the averaged raw ADC count and the
// calibrated percent. Percent is always within [0,100]; Valid is false when
// the averaged raw count fell outside the configured plausibility bounds.
type MoistureReading struct {
	Raw     int       `json:"raw"`
	Percent int       `json:"percent"`
	Valid   bool      `json:"valid"`
	At      time.Time `json:"at"`
}

// Calibration maps raw ADC counts to moisture percent. AirCount is the count
// read in dry air, WaterCount the count in saturated water. The map works in
// either direction (air above or below water).
type Calibration struct {
	AirCount   int `json:"air_count"`
	WaterCount int `json:"water_count"`
}

// Percent applies the linear calibration map and clamps to [0,100]: the air
// count maps to 0%, the water count to 100%, independent of which of the two
// raw counts is larger.
func (c Calibration) Percent(raw int) int {
	den := c.AirCount - c.WaterCount
	if den == 0 {
		return 0
	}
	p := int(float64(c.AirCount-raw)/float64(den)*100.0 + 0.5)
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
