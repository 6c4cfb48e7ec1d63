package sensor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcalderan/irrinode/internal/model"
)

type fixedReader struct {
	raw   int
	calls int
}

func (f *fixedReader) ReadRaw(context.Context) int {
	f.calls++
	return f.raw
}

type seqReader struct {
	raws []int
	i    int
}

func (s *seqReader) ReadRaw(context.Context) int {
	v := s.raws[s.i%len(s.raws)]
	s.i++
	return v
}

func testCal() model.Calibration {
	// capacitive probe: dry air reads high, saturated water reads low
	return model.Calibration{AirCount: 800, WaterCount: 400}
}

func TestPercentClampsEverywhere(t *testing.T) {
	cal := testCal()
	for raw := -2000; raw <= 3000; raw += 7 {
		p := cal.Percent(raw)
		require.GreaterOrEqual(t, p, 0, "raw=%d", raw)
		require.LessOrEqual(t, p, 100, "raw=%d", raw)
	}
	assert.Equal(t, 0, cal.Percent(800))   // dry air
	assert.Equal(t, 100, cal.Percent(400)) // saturated
	assert.Equal(t, 0, cal.Percent(900))   // beyond dry bound
	assert.Equal(t, 100, cal.Percent(100)) // beyond wet bound
	assert.Equal(t, 50, cal.Percent(600))
}

func TestPercentInvertedCalibration(t *testing.T) {
	// resistive probe: air reads low, water reads high
	cal := model.Calibration{AirCount: 100, WaterCount: 900}
	assert.Equal(t, 0, cal.Percent(100))
	assert.Equal(t, 100, cal.Percent(900))
	assert.Equal(t, 50, cal.Percent(500))
	assert.Equal(t, 0, cal.Percent(0))
	assert.Equal(t, 100, cal.Percent(2000))
}

func TestSampleAveragesRawBeforeMapping(t *testing.T) {
	src := NewSource(Config{Samples: 4, Calibration: testCal()}, &seqReader{raws: []int{600, 601, 602, 603}})
	r := src.Sample(context.Background())
	// integer average: (600+601+602+603)/4 = 601
	assert.Equal(t, 601, r.Raw)
	assert.Equal(t, 50, r.Percent)
	assert.True(t, r.Valid)
}

func TestSampleIsIdempotentOnConstantInput(t *testing.T) {
	fr := &fixedReader{raw: 512}
	src := NewSource(Config{Samples: 5, Calibration: testCal()}, fr)
	first := src.Sample(context.Background())
	for i := 0; i < 10; i++ {
		r := src.Sample(context.Background())
		assert.Equal(t, first.Percent, r.Percent)
		assert.Equal(t, first.Raw, r.Raw)
	}
	assert.Equal(t, 55, fr.calls) // 11 samples x 5 reads
}

func TestSampleFlagsImplausibleAverage(t *testing.T) {
	cfg := Config{Samples: 3, Calibration: testCal(), RawMin: 200, RawMax: 1000}
	low := NewSource(cfg, &fixedReader{raw: 5}).Sample(context.Background())
	assert.False(t, low.Valid)
	assert.Equal(t, 100, low.Percent) // still clamped, never out of range

	high := NewSource(cfg, &fixedReader{raw: 4000}).Sample(context.Background())
	assert.False(t, high.Valid)
	assert.Equal(t, 0, high.Percent)

	ok := NewSource(cfg, &fixedReader{raw: 700}).Sample(context.Background())
	assert.True(t, ok.Valid)
}
