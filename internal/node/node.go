package node

import (
	"context"
	"log"
	"time"

	"github.com/mcalderan/irrinode/internal/link"
	"github.com/mcalderan/irrinode/internal/model"
	"github.com/mcalderan/irrinode/internal/pump"
	"github.com/mcalderan/irrinode/internal/telemetry"
)

// Relay drives the pump relay output.
type Relay interface {
	Set(on bool)
}

// LogRelay is the relay used without hardware attached: it only logs.
type LogRelay struct{}

func (LogRelay) Set(on bool) { log.Printf("relay: set on=%v", on) }

// Sampler produces filtered moisture readings.
type Sampler interface {
	Sample(ctx context.Context) model.MoistureReading
}

// LinkKeeper maintains connectivity; satisfied by *link.Manager.
type LinkKeeper interface {
	Tick(now time.Time) link.Event
	Connected() bool
	State() model.LinkState
}

// TimeSyncer keeps wall-clock time; satisfied by *timesync.Source.
type TimeSyncer interface {
	SyncNow(ctx context.Context) error
	Invalidate()
	Synced() bool
	FormatNow() string
	At(local time.Time) (time.Time, bool)
}

// EventRecorder mirrors delivered events into local history; satisfied by
// *recorder.Recorder.
type EventRecorder interface {
	Record(ev model.TelemetryEvent, at time.Time)
}

// EventPublisher delivers telemetry; satisfied by *telemetry.Publisher.
type EventPublisher interface {
	Publish(ctx context.Context, ev model.TelemetryEvent) telemetry.DeliveryResult
}

// StatusSink receives controller snapshots for display rendering.
type StatusSink interface {
	Publish(snap model.ControllerSnapshot)
	Readvertise(snap model.ControllerSnapshot)
}

type Config struct {
	TickInterval      time.Duration
	SampleInterval    time.Duration
	TelemetryInterval time.Duration
	SyncTimeout       time.Duration // budget for one reconnect-triggered time sync
	EventQueueCap     int
}

// Node is the single logical thread of control. Every tick runs the fixed
// step order: link maintenance, safety cutoff, sampling and pump evaluation,
// display refresh, telemetry. No step owns a goroutine and no error here is
// fatal; only the watchdog may take the process down.
type Node struct {
	cfg Config

	sampler  Sampler
	pump     *pump.Controller
	relay    Relay
	link     LinkKeeper
	timesrc  TimeSyncer
	tele     EventPublisher
	status   StatusSink
	recorder EventRecorder
	watchdog *Watchdog
	metrics  *Metrics

	lastReading   model.MoistureReading
	haveReading   bool
	lastSampleAt  time.Time
	lastPublishAt time.Time
	lastDelivery  string
	queue         []model.TelemetryEvent
}

func New(cfg Config, sampler Sampler, pc *pump.Controller, relay Relay,
	lk LinkKeeper, ts TimeSyncer, tele EventPublisher, sink StatusSink,
	rec EventRecorder, wd *Watchdog, m *Metrics) *Node {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	if cfg.SampleInterval <= 0 {
		cfg.SampleInterval = 30 * time.Second
	}
	if cfg.TelemetryInterval <= 0 {
		cfg.TelemetryInterval = 5 * time.Minute
	}
	if cfg.SyncTimeout <= 0 {
		cfg.SyncTimeout = 30 * time.Second
	}
	if cfg.EventQueueCap <= 0 {
		cfg.EventQueueCap = 32
	}
	return &Node{
		cfg:      cfg,
		sampler:  sampler,
		pump:     pc,
		relay:    relay,
		link:     lk,
		timesrc:  ts,
		tele:     tele,
		status:   sink,
		recorder: rec,
		watchdog: wd,
		metrics:  m,
	}
}

// Run drives the control loop until the context is cancelled.
func (n *Node) Run(ctx context.Context) {
	ticker := time.NewTicker(n.cfg.TickInterval)
	defer ticker.Stop()

	// first tick immediately: connect, sample and act before the first period
	n.Tick(ctx, time.Now())

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n.Tick(ctx, now)
		}
	}
}

// Tick executes one full scheduler pass. Exported for tests.
func (n *Node) Tick(ctx context.Context, now time.Time) {
	n.tickLink(ctx, now)
	n.execute(ctx, n.pump.TickSafety(now))
	n.tickSample(ctx, now)
	n.status.Publish(n.Snapshot())
	n.tickTelemetry(ctx, now)
	if n.watchdog != nil {
		n.watchdog.Pat()
	}
}

func (n *Node) tickLink(ctx context.Context, now time.Time) {
	switch n.link.Tick(now) {
	case link.EventDown:
		n.timesrc.Invalidate()
		if n.metrics != nil {
			n.metrics.LinkDrops.Inc()
		}
	case link.EventUp:
		if n.metrics != nil {
			n.metrics.Reconnects.Inc()
		}
		syncCtx, cancel := context.WithTimeout(ctx, n.cfg.SyncTimeout)
		if err := n.timesrc.SyncNow(syncCtx); err != nil {
			log.Printf("node: time sync after reconnect failed: %v", err)
		}
		cancel()
		n.status.Readvertise(n.Snapshot())
	}
}

func (n *Node) tickSample(ctx context.Context, now time.Time) {
	if !n.lastSampleAt.IsZero() && now.Sub(n.lastSampleAt) < n.cfg.SampleInterval {
		return
	}
	n.lastSampleAt = now

	r := n.sampler.Sample(ctx)
	n.lastReading = r
	n.haveReading = true
	if n.metrics != nil && r.Valid {
		n.metrics.Moisture.Set(float64(r.Percent))
	}
	n.execute(ctx, n.pump.Evaluate(now, r))
	if n.metrics != nil {
		n.metrics.SetPumpOn(n.pump.RelayOn())
	}
}

func (n *Node) tickTelemetry(ctx context.Context, now time.Time) {
	if !n.lastPublishAt.IsZero() && now.Sub(n.lastPublishAt) < n.cfg.TelemetryInterval {
		return
	}
	n.lastPublishAt = now

	if n.haveReading && n.lastReading.Valid {
		n.enqueue(model.TelemetryEvent{
			Type:    model.EventMoisture,
			At:      now,
			Percent: n.lastReading.Percent,
		})
	}

	// drain: every event is attempted once and dropped whatever the outcome
	pending := n.queue
	n.queue = nil
	for _, ev := range pending {
		res := n.tele.Publish(ctx, ev)
		n.lastDelivery = string(res.Status)
		if n.metrics != nil {
			n.metrics.Telemetry.WithLabelValues(string(ev.Type), string(res.Status)).Inc()
		}
		if res.Status == telemetry.StatusDelivered && n.recorder != nil {
			// mirror with the same corrected timestamp the wire report carried
			at := ev.At
			if corrected, ok := n.timesrc.At(ev.At); ok {
				at = corrected
			}
			n.recorder.Record(ev, at)
		}
		// each round trip is a bounded suspension, not a hang
		if n.watchdog != nil {
			n.watchdog.Pat()
		}
	}
}

// execute runs the side effects a pump transition asked for.
func (n *Node) execute(_ context.Context, cmds []pump.Command) {
	for _, cmd := range cmds {
		switch cmd.Type {
		case pump.CmdRelayOn:
			n.relay.Set(true)
			if n.metrics != nil {
				n.metrics.PumpStarts.Inc()
			}
		case pump.CmdRelayOff:
			n.relay.Set(false)
			if n.metrics != nil {
				n.metrics.PumpStops.Inc()
				if n.pump.SafetyStopped() {
					n.metrics.SafetyStops.Inc()
				}
			}
		case pump.CmdEmit:
			n.enqueue(cmd.Event)
		}
	}
}

func (n *Node) enqueue(ev model.TelemetryEvent) {
	if len(n.queue) >= n.cfg.EventQueueCap {
		log.Printf("node: event queue full, dropping oldest %s", n.queue[0].Type)
		n.queue = n.queue[1:]
	}
	n.queue = append(n.queue, ev)
}

// Snapshot assembles the display-sink view of the whole node.
func (n *Node) Snapshot() model.ControllerSnapshot {
	moist := model.UnknownMoisture
	if n.haveReading && n.lastReading.Valid {
		moist = n.lastReading.Percent
	}
	return model.ControllerSnapshot{
		Moisture:     moist,
		Pump:         n.pump.State(),
		RelayOn:      n.pump.RelayOn(),
		SafetyStop:   n.pump.SafetyStopped(),
		Link:         n.link.State(),
		TimeSynced:   n.timesrc.Synced(),
		Clock:        n.timesrc.FormatNow(),
		LastDelivery: n.lastDelivery,
	}
}
