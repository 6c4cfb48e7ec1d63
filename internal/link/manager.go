package link

import (
	"log"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/mcalderan/irrinode/internal/model"
)

// Transport is the underlying wireless connection. Connect performs one
// connection attempt; the manager wraps it in the bounded retry schedule.
type Transport interface {
	Connect() error
	IsConnected() bool
	Disconnect()
}

// Event tells the scheduler what happened to the link during a tick, so it
// can run reconnect-dependent work (time re-sync, status re-advertise)
// without the manager calling back into other components.
type Event int

const (
	EventNone Event = iota
	EventUp
	EventDown
)

type Config struct {
	RetryInterval  time.Duration // cadence between reconnect cycles
	SubAttempts    int           // connection attempts within one cycle
	InitialBackoff time.Duration // first inter-attempt sleep
	MaxElapsed     time.Duration // hard bound on one whole cycle
	// Progress is called at the start of every sub-attempt. A reconnect cycle
	// blocks the control loop on purpose; this tells the watchdog the loop is
	// alive inside a bounded suspension, not hung.
	Progress func()
}

// Manager keeps the link alive. One reconnect cycle makes a bounded number
// of sub-attempts with increasing backoff, then gives up until the next
// cadence slot; failures never change the cadence and are never fatal.
type Manager struct {
	cfg       Config
	transport Transport

	state       model.LinkState
	nextRetryAt time.Time
}

func NewManager(cfg Config, t Transport) *Manager {
	if cfg.SubAttempts < 1 {
		cfg.SubAttempts = 4
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 60 * time.Second
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = time.Second
	}
	if cfg.MaxElapsed <= 0 {
		cfg.MaxElapsed = 30 * time.Second
	}
	return &Manager{cfg: cfg, transport: t}
}

func (m *Manager) Connected() bool { return m.state.Connected }

// State returns a read-only copy of the link bookkeeping.
func (m *Manager) State() model.LinkState { return m.state }

// Tick maintains the link. It blocks only while a reconnect cycle is in
// progress, and that cycle is bounded by SubAttempts and MaxElapsed.
func (m *Manager) Tick(now time.Time) Event {
	up := m.transport.IsConnected()

	if m.state.Connected && !up {
		m.state.Connected = false
		m.nextRetryAt = now // first recovery cycle runs immediately
		log.Printf("link: connection lost")
		return EventDown
	}
	if m.state.Connected {
		return EventNone
	}
	if now.Before(m.nextRetryAt) {
		return EventNone
	}

	m.state.LastAttempt = now
	m.nextRetryAt = now.Add(m.cfg.RetryInterval)

	if err := m.connectCycle(); err != nil {
		m.state.ConsecutiveFailures++
		log.Printf("link: reconnect cycle failed (consecutive=%d): %v", m.state.ConsecutiveFailures, err)
		return EventNone
	}

	m.state.Connected = true
	m.state.ConsecutiveFailures = 0
	log.Printf("link: connected")
	return EventUp
}

func (m *Manager) connectCycle() error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = m.cfg.InitialBackoff
	bo.RandomizationFactor = 0
	bo.MaxElapsedTime = m.cfg.MaxElapsed

	return backoff.Retry(func() error {
		if m.cfg.Progress != nil {
			m.cfg.Progress()
		}
		if err := m.transport.Connect(); err != nil {
			log.Printf("link: connect attempt failed: %v", err)
			return err
		}
		return nil
	}, backoff.WithMaxRetries(bo, uint64(m.cfg.SubAttempts-1)))
}

// Close tears the link down deliberately (process shutdown).
func (m *Manager) Close() {
	if m.transport.IsConnected() {
		m.transport.Disconnect()
	}
	m.state.Connected = false
}
