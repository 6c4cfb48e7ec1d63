package timesync

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/beevik/ntp"
)

// UnsyncedPlaceholder is what display sinks show while wall-clock time is
// unknown.
const UnsyncedPlaceholder = "unsynced"

const timestampLayout = "2006-01-02 15:04:05"

// Querier performs one clock query against the time service and returns the
// offset to apply to the local clock.
type Querier interface {
	Offset() (time.Duration, error)
}

// NTPQuerier queries a real NTP server with a per-attempt timeout.
type NTPQuerier struct {
	Host    string
	Timeout time.Duration
}

func (q NTPQuerier) Offset() (time.Duration, error) {
	resp, err := ntp.QueryWithOptions(q.Host, ntp.QueryOptions{Timeout: q.Timeout})
	if err != nil {
		return 0, err
	}
	if err := resp.Validate(); err != nil {
		return 0, fmt.Errorf("ntp response invalid: %w", err)
	}
	return resp.ClockOffset, nil
}

type Config struct {
	Attempts int // bounded sync attempts per SyncNow call
	// Progress is called at the start of every attempt so the watchdog can
	// tell a bounded sync loop from a hung control loop.
	Progress func()
}

// Source keeps a wall-clock offset against the local monotonic clock. It is
// synced on link recovery, never on a periodic timer, and degrades to the
// unsynced placeholder when the time service is unreachable.
type Source struct {
	cfg     Config
	querier Querier

	synced bool
	offset time.Duration
}

func NewSource(cfg Config, q Querier) *Source {
	if cfg.Attempts < 1 {
		cfg.Attempts = 6
	}
	return &Source{cfg: cfg, querier: q}
}

// SyncNow runs the bounded attempt loop. On failure the source is left
// unsynced for the current connectivity session.
func (s *Source) SyncNow(ctx context.Context) error {
	var lastErr error
	for i := 0; i < s.cfg.Attempts; i++ {
		if ctx.Err() != nil {
			break
		}
		if s.cfg.Progress != nil {
			s.cfg.Progress()
		}
		off, err := s.querier.Offset()
		if err != nil {
			lastErr = err
			log.Printf("timesync: attempt %d/%d failed: %v", i+1, s.cfg.Attempts, err)
			continue
		}
		s.offset = off
		s.synced = true
		log.Printf("timesync: synced, offset=%s", off.Round(time.Millisecond))
		return nil
	}
	s.synced = false
	if lastErr == nil {
		lastErr = ctx.Err()
	}
	return fmt.Errorf("time sync failed after %d attempts: %w", s.cfg.Attempts, lastErr)
}

// Invalidate drops the sync state. Called when the link goes down; the next
// reconnect triggers a fresh SyncNow.
func (s *Source) Invalidate() {
	if s.synced {
		log.Printf("timesync: invalidated")
	}
	s.synced = false
}

func (s *Source) Synced() bool { return s.synced }

// Now returns the corrected wall-clock time, or ok=false while unsynced.
func (s *Source) Now() (time.Time, bool) {
	if !s.synced {
		return time.Time{}, false
	}
	return time.Now().Add(s.offset).UTC(), true
}

// At converts a local-clock timestamp to corrected wall-clock time, or
// ok=false while unsynced. Telemetry stamps events through this so an event
// recorded just before a sync invalidation is not misreported.
func (s *Source) At(local time.Time) (time.Time, bool) {
	if !s.synced {
		return time.Time{}, false
	}
	return local.Add(s.offset).UTC(), true
}

// FormatNow renders the current time for displays and telemetry, or the
// placeholder while unsynced.
func (s *Source) FormatNow() string {
	t, ok := s.Now()
	if !ok {
		return UnsyncedPlaceholder
	}
	return t.Format(timestampLayout)
}

// FormatAt renders an arbitrary timestamp in the wire format.
func FormatAt(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}
