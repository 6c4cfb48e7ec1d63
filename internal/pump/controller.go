package pump

import (
	"log"
	"time"

	"github.com/mcalderan/irrinode/internal/model"
)

// CommandType labels a side effect requested by a controller transition.
type CommandType string

const (
	CmdRelayOn  CommandType = "relay_on"
	CmdRelayOff CommandType = "relay_off"
	CmdEmit     CommandType = "emit"
)

// Command is a side effect for the caller to execute. The controller itself
// never touches hardware or the network; it only decides.
type Command struct {
	Type  CommandType
	Event model.TelemetryEvent // set when Type == CmdEmit
}

// Config carries the control thresholds and timing limits.
type Config struct {
	DryThreshold   int           // percent below which soil counts as dry
	Hysteresis     int           // percentage points either side of the threshold
	MaxRunTime     time.Duration // runtime safety cutoff
	NormalCooldown time.Duration // min wait before restart after a normal stop
	SafetyCooldown time.Duration // min wait before restart after a safety stop
	EmitStartEvent bool          // also telemeter pump starts, not only stops
}

// Controller is the pump state machine. All timers are in-memory and reset to
// zero on process start; nothing is persisted.
type Controller struct {
	cfg Config

	state     model.PumpState
	startedAt time.Time
	stoppedAt time.Time
	// set while the last stop was the runtime cutoff; drives the long cooldown
	// and the "safety limited" display flag
	safetyStop bool
	relayOn    bool

	// state to resume when a valid reading returns; cooldown bookkeeping is
	// preserved across a block
	resumeState model.PumpState
}

func NewController(cfg Config) *Controller {
	if cfg.Hysteresis < 0 {
		cfg.Hysteresis = 0
	}
	return &Controller{cfg: cfg, state: model.PumpIdle}
}

func (c *Controller) State() model.PumpState { return c.state }
func (c *Controller) RelayOn() bool          { return c.relayOn }
func (c *Controller) SafetyStopped() bool    { return c.safetyStop }

// TickSafety enforces the max-runtime cutoff. It is called every scheduler
// tick, independent of the sampling interval, and takes precedence over any
// moisture-based decision in the same tick.
func (c *Controller) TickSafety(now time.Time) []Command {
	if c.state != model.PumpRunning {
		return nil
	}
	if now.Sub(c.startedAt) < c.cfg.MaxRunTime {
		return nil
	}
	log.Printf("pump: max runtime %s reached, forcing stop", c.cfg.MaxRunTime)
	return c.stop(now, true)
}

// Evaluate advances the state machine for one filtered reading and returns
// the side effects to execute. Safety is re-checked first so a cutoff always
// wins over a moisture decision within the same tick.
func (c *Controller) Evaluate(now time.Time, r model.MoistureReading) []Command {
	if !r.Valid {
		return c.block()
	}
	if c.state == model.PumpBlocked {
		c.unblock()
	}

	if cmds := c.TickSafety(now); cmds != nil {
		return cmds
	}

	// cooldowns expire silently, permitting the next start
	switch c.state {
	case model.PumpCooldownNormal:
		if now.Sub(c.stoppedAt) >= c.cfg.NormalCooldown {
			c.state = model.PumpIdle
		}
	case model.PumpCooldownSafety:
		if now.Sub(c.stoppedAt) >= c.cfg.SafetyCooldown {
			c.state = model.PumpIdle
			c.safetyStop = false
		}
	}

	switch c.state {
	case model.PumpIdle:
		if r.Percent < c.cfg.DryThreshold-c.cfg.Hysteresis {
			return c.start(now)
		}
	case model.PumpRunning:
		if r.Percent > c.cfg.DryThreshold+c.cfg.Hysteresis {
			return c.stop(now, false)
		}
	}
	return nil
}

func (c *Controller) start(now time.Time) []Command {
	c.state = model.PumpRunning
	c.startedAt = now
	c.relayOn = true
	log.Printf("pump: ON")
	cmds := []Command{{Type: CmdRelayOn}}
	if c.cfg.EmitStartEvent {
		cmds = append(cmds, Command{Type: CmdEmit, Event: model.TelemetryEvent{
			Type: model.EventPumpOn,
			At:   now,
		}})
	}
	return cmds
}

func (c *Controller) stop(now time.Time, safety bool) []Command {
	dur := now.Sub(c.startedAt)
	c.stoppedAt = now
	c.relayOn = false
	c.safetyStop = safety
	if safety {
		c.state = model.PumpCooldownSafety
	} else {
		c.state = model.PumpCooldownNormal
	}
	log.Printf("pump: OFF after %s (safety=%v)", dur.Round(time.Second), safety)
	return []Command{
		{Type: CmdRelayOff},
		{Type: CmdEmit, Event: model.TelemetryEvent{
			Type:     model.EventPumpOff,
			At:       now,
			Duration: dur,
		}},
	}
}

// block forces the relay off without recording a stop: an implausible reading
// must never be acted on, and must not produce telemetry or consume cooldown.
func (c *Controller) block() []Command {
	if c.state == model.PumpBlocked {
		return nil
	}
	c.resumeState = c.state
	if c.resumeState == model.PumpRunning {
		// the interrupted run is discarded: no stop event, no cooldown
		c.resumeState = model.PumpIdle
	}
	c.state = model.PumpBlocked
	log.Printf("pump: blocked on implausible reading")
	if c.relayOn {
		c.relayOn = false
		return []Command{{Type: CmdRelayOff}}
	}
	return nil
}

func (c *Controller) unblock() {
	c.state = c.resumeState
	log.Printf("pump: reading valid again, resuming %s", c.state)
}
