package pump

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcalderan/irrinode/internal/model"
)

func testCfg() Config {
	return Config{
		DryThreshold:   40,
		Hysteresis:     5,
		MaxRunTime:     20 * time.Minute,
		NormalCooldown: 30 * time.Second,
		SafetyCooldown: time.Hour,
	}
}

func reading(pct int) model.MoistureReading {
	return model.MoistureReading{Raw: 500, Percent: pct, Valid: true}
}

func invalidReading() model.MoistureReading {
	return model.MoistureReading{Raw: 0, Percent: 0, Valid: false}
}

func emitted(cmds []Command) []model.TelemetryEvent {
	var evs []model.TelemetryEvent
	for _, c := range cmds {
		if c.Type == CmdEmit {
			evs = append(evs, c.Event)
		}
	}
	return evs
}

func TestStartsBelowHysteresisBand(t *testing.T) {
	c := NewController(testCfg())
	now := time.Now()

	// 35 is exactly threshold-hysteresis: not yet dry enough
	assert.Empty(t, c.Evaluate(now, reading(35)))
	assert.Equal(t, model.PumpIdle, c.State())

	cmds := c.Evaluate(now, reading(34))
	require.Len(t, cmds, 1)
	assert.Equal(t, CmdRelayOn, cmds[0].Type)
	assert.Equal(t, model.PumpRunning, c.State())
	assert.True(t, c.RelayOn())
	assert.Empty(t, emitted(cmds), "start is not telemetered by default")
}

func TestNormalStopEmitsDuration(t *testing.T) {
	c := NewController(testCfg())
	start := time.Now()
	c.Evaluate(start, reading(30))

	// inside the band: no transition either way
	assert.Empty(t, c.Evaluate(start.Add(time.Minute), reading(38)))
	assert.Empty(t, c.Evaluate(start.Add(time.Minute), reading(45)))
	assert.Equal(t, model.PumpRunning, c.State())

	stop := start.Add(3 * time.Minute)
	cmds := c.Evaluate(stop, reading(46))
	require.Len(t, cmds, 2)
	assert.Equal(t, CmdRelayOff, cmds[0].Type)
	evs := emitted(cmds)
	require.Len(t, evs, 1)
	assert.Equal(t, model.EventPumpOff, evs[0].Type)
	assert.Equal(t, 3*time.Minute, evs[0].Duration)
	assert.Equal(t, model.PumpCooldownNormal, c.State())
	assert.False(t, c.RelayOn())
	assert.False(t, c.SafetyStopped())
}

func TestNormalCooldownBlocksRestart(t *testing.T) {
	c := NewController(testCfg())
	start := time.Now()
	c.Evaluate(start, reading(30))
	stop := start.Add(time.Minute)
	c.Evaluate(stop, reading(50))

	// bone dry immediately after the stop: still no restart
	assert.Empty(t, c.Evaluate(stop.Add(10*time.Second), reading(5)))
	assert.Equal(t, model.PumpCooldownNormal, c.State())

	cmds := c.Evaluate(stop.Add(31*time.Second), reading(5))
	require.Len(t, cmds, 1)
	assert.Equal(t, CmdRelayOn, cmds[0].Type)
	assert.Equal(t, model.PumpRunning, c.State())
}

func TestSafetyStopWinsOverMoisture(t *testing.T) {
	c := NewController(testCfg())
	start := time.Now()
	c.Evaluate(start, reading(30))

	// soil still dry, but the runtime limit is hit in the same tick
	at := start.Add(20 * time.Minute)
	cmds := c.Evaluate(at, reading(10))
	require.Len(t, cmds, 2)
	assert.Equal(t, CmdRelayOff, cmds[0].Type)
	evs := emitted(cmds)
	require.Len(t, evs, 1)
	assert.Equal(t, 20*time.Minute, evs[0].Duration)
	assert.Equal(t, model.PumpCooldownSafety, c.State())
	assert.True(t, c.SafetyStopped())

	// the long cooldown gates the restart even at moisture far below threshold
	assert.Empty(t, c.Evaluate(at.Add(30*time.Minute), reading(2)))
	assert.Equal(t, model.PumpCooldownSafety, c.State())

	cmds = c.Evaluate(at.Add(61*time.Minute), reading(2))
	require.Len(t, cmds, 1)
	assert.Equal(t, CmdRelayOn, cmds[0].Type)
	assert.False(t, c.SafetyStopped())
}

func TestTickSafetyWithoutReading(t *testing.T) {
	c := NewController(testCfg())
	start := time.Now()
	c.Evaluate(start, reading(30))

	assert.Empty(t, c.TickSafety(start.Add(19*time.Minute)))
	cmds := c.TickSafety(start.Add(20 * time.Minute))
	require.Len(t, cmds, 2)
	assert.Equal(t, CmdRelayOff, cmds[0].Type)
	assert.Equal(t, model.PumpCooldownSafety, c.State())
}

func TestImplausibleReadingBlocksAndForcesRelayOff(t *testing.T) {
	c := NewController(testCfg())
	start := time.Now()
	c.Evaluate(start, reading(30))
	require.True(t, c.RelayOn())

	cmds := c.Evaluate(start.Add(time.Minute), invalidReading())
	require.Len(t, cmds, 1)
	assert.Equal(t, CmdRelayOff, cmds[0].Type)
	assert.Equal(t, model.PumpBlocked, c.State())
	assert.Empty(t, emitted(cmds), "a block is not a stop")

	// repeated invalid readings are quiet
	assert.Empty(t, c.Evaluate(start.Add(2*time.Minute), invalidReading()))

	// a valid reading resumes control; a fresh dry reading may start again
	cmds = c.Evaluate(start.Add(3*time.Minute), reading(20))
	require.Len(t, cmds, 1)
	assert.Equal(t, CmdRelayOn, cmds[0].Type)
	assert.Equal(t, model.PumpRunning, c.State())
}

func TestBlockPreservesCooldown(t *testing.T) {
	c := NewController(testCfg())
	start := time.Now()
	c.Evaluate(start, reading(30))
	stop := start.Add(time.Minute)
	c.Evaluate(stop, reading(50))
	require.Equal(t, model.PumpCooldownNormal, c.State())

	// sensor glitch mid-cooldown
	c.Evaluate(stop.Add(5*time.Second), invalidReading())
	assert.Equal(t, model.PumpBlocked, c.State())

	// recovery inside the cooldown window: still gated
	assert.Empty(t, c.Evaluate(stop.Add(15*time.Second), reading(5)))
	assert.Equal(t, model.PumpCooldownNormal, c.State())

	// the original stop timestamp still anchors the cooldown
	cmds := c.Evaluate(stop.Add(31*time.Second), reading(5))
	require.Len(t, cmds, 1)
	assert.Equal(t, CmdRelayOn, cmds[0].Type)
}

func TestOptionalStartEvent(t *testing.T) {
	cfg := testCfg()
	cfg.EmitStartEvent = true
	c := NewController(cfg)

	cmds := c.Evaluate(time.Now(), reading(10))
	require.Len(t, cmds, 2)
	evs := emitted(cmds)
	require.Len(t, evs, 1)
	assert.Equal(t, model.EventPumpOn, evs[0].Type)
}
