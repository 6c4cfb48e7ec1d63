package sensor

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/mcalderan/irrinode/internal/model"
)

// SimReader is a software probe used when no hardware ADC is attached: soil
// moisture decays slowly while the pump is off and recovers while it is on.
// It keeps the binary runnable end to end on a desk.
type SimReader struct {
	mu       sync.Mutex
	cal      model.Calibration
	moisture float64 // [0..1]
	last     time.Time
	relayOn  bool

	gainPerMin  float64
	decayPerMin float64
	noiseCounts int
}

func NewSimReader(cal model.Calibration, seed float64) *SimReader {
	return &SimReader{
		cal:         cal,
		moisture:    clamp01(seed),
		last:        time.Now(),
		gainPerMin:  0.02,
		decayPerMin: 0.001,
		noiseCounts: 3,
	}
}

// SetRelay tells the simulation whether water is currently flowing.
func (s *SimReader) SetRelay(on bool) {
	s.mu.Lock()
	s.relayOn = on
	s.mu.Unlock()
}

func (s *SimReader) ReadRaw(_ context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	mins := now.Sub(s.last).Minutes()
	s.last = now
	if s.relayOn {
		s.moisture = clamp01(s.moisture + s.gainPerMin*mins)
	} else {
		s.moisture = clamp01(s.moisture - s.decayPerMin*mins)
	}

	span := float64(s.cal.AirCount - s.cal.WaterCount)
	raw := float64(s.cal.WaterCount) + (1.0-s.moisture)*span
	raw += float64(rand.Intn(2*s.noiseCounts+1) - s.noiseCounts)
	return int(math.Round(raw))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
