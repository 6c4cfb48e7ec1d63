package dedup

import (
	"sync"
	"time"
)

// Guard remembers recently seen identifiers for a TTL so the same work is not
// done twice. Used to stop a telemetry event from being published again by a
// re-entrant or duplicated trigger.
type Guard struct {
	mu   sync.Mutex
	ttl  time.Duration
	max  int
	seen map[string]time.Time
}

func New(ttl time.Duration, max int) *Guard {
	if ttl <= 0 {
		ttl = time.Minute
	}
	if max <= 0 {
		max = 1024
	}
	return &Guard{ttl: ttl, max: max, seen: make(map[string]time.Time, max)}
}

// FirstSeen reports whether id is new within the TTL window, recording it as
// seen. An empty id is always treated as new.
func (g *Guard) FirstSeen(id string) bool {
	if id == "" {
		return true
	}
	now := time.Now()
	g.mu.Lock()
	defer g.mu.Unlock()
	if exp, ok := g.seen[id]; ok && now.Before(exp) {
		return false
	}
	g.seen[id] = now.Add(g.ttl)
	if len(g.seen) > g.max {
		for k, exp := range g.seen {
			if now.After(exp) {
				delete(g.seen, k)
			}
			if len(g.seen) <= g.max {
				break
			}
		}
	}
	return true
}
