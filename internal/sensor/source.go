package sensor

import (
	"context"
	"log"
	"time"

	"github.com/mcalderan/irrinode/internal/model"
)

// AnalogReader reads one raw ADC count from the moisture probe.
type AnalogReader interface {
	ReadRaw(ctx context.Context) int
}

// Config tunes the sampling filter and the calibration map.
type Config struct {
	Samples     int           // raw reads per Sample call
	SampleDelay time.Duration // pause between raw reads
	Calibration model.Calibration
	// Plausibility bounds on the averaged raw count. A reading outside
	// [RawMin,RawMax] is returned with Valid=false so the pump controller can
	// block instead of acting on a dead or shorted probe.
	RawMin int
	RawMax int
}

// Source produces filtered moisture readings from repeated raw samples.
// Raw counts are integer-averaged first and mapped to percent once, so
// rounding error is not compounded per sample.
type Source struct {
	cfg    Config
	reader AnalogReader
}

func NewSource(cfg Config, reader AnalogReader) *Source {
	if cfg.Samples < 1 {
		cfg.Samples = 5
	}
	if cfg.SampleDelay < 0 {
		cfg.SampleDelay = 0
	}
	return &Source{cfg: cfg, reader: reader}
}

// Sample takes the configured number of raw reads and returns the filtered
// reading. It never fails: out-of-range averages are flagged, in-range noise
// is clamped by the calibration map.
func (s *Source) Sample(ctx context.Context) model.MoistureReading {
	sum := 0
	for i := 0; i < s.cfg.Samples; i++ {
		if i > 0 && s.cfg.SampleDelay > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(s.cfg.SampleDelay):
			}
		}
		sum += s.reader.ReadRaw(ctx)
	}
	raw := sum / s.cfg.Samples

	r := model.MoistureReading{
		Raw:     raw,
		Percent: s.cfg.Calibration.Percent(raw),
		Valid:   true,
		At:      time.Now().UTC(),
	}
	if s.cfg.RawMax > s.cfg.RawMin && (raw < s.cfg.RawMin || raw > s.cfg.RawMax) {
		r.Valid = false
		log.Printf("sensor: implausible raw=%d outside [%d,%d]", raw, s.cfg.RawMin, s.cfg.RawMax)
	}
	return r
}
