package recorder

import (
	"log"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/mcalderan/irrinode/internal/model"
)

// Recorder mirrors telemetry events into InfluxDB for local history. It is
// optional, asynchronous and best-effort: a write failure is logged and aged
// for readiness probes, nothing more. Control flow never waits on it.
type Recorder struct {
	client influxdb2.Client
	write  api.WriteAPI

	mu      sync.RWMutex
	lastErr time.Time
	counts  map[string]int64
}

// New connects the non-blocking write API and starts the async error
// listener. Returns nil when url is empty; a nil Recorder is a no-op.
func New(url, token, org, bucket string) *Recorder {
	if url == "" {
		return nil
	}
	client := influxdb2.NewClient(url, token)
	r := &Recorder{
		client:  client,
		write:   client.WriteAPI(org, bucket),
		lastErr: time.Now().Add(-24 * time.Hour),
		counts:  make(map[string]int64),
	}
	go func() {
		for err := range r.write.Errors() {
			if err != nil {
				r.mu.Lock()
				r.lastErr = time.Now()
				r.mu.Unlock()
				log.Printf("recorder: influx write error: %v", err)
			}
		}
	}()
	return r
}

// Record queues one event point.
func (r *Recorder) Record(ev model.TelemetryEvent, at time.Time) {
	if r == nil {
		return
	}
	p := influxdb2.NewPointWithMeasurement("telemetry").
		AddTag("event_type", string(ev.Type)).
		SetTime(at)
	switch ev.Type {
	case model.EventMoisture:
		p.AddField("moisture_pct", ev.Percent)
	case model.EventPumpOff:
		p.AddField("duration_s", ev.Duration.Seconds())
	default:
		p.AddField("count", 1)
	}
	r.write.WritePoint(p)

	r.mu.Lock()
	r.counts[string(ev.Type)]++
	r.mu.Unlock()
}

// LastErrorAge reports how long ago the last write error happened.
func (r *Recorder) LastErrorAge() time.Duration {
	if r == nil {
		return 99999 * time.Hour
	}
	r.mu.RLock()
	t := r.lastErr
	r.mu.RUnlock()
	return time.Since(t)
}

// Count reads the per-type ingest counter.
func (r *Recorder) Count(eventType model.TelemetryEventType) int64 {
	if r == nil {
		return 0
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.counts[string(eventType)]
}

func (r *Recorder) Close() {
	if r == nil {
		return
	}
	r.write.Flush()
	r.client.Close()
}
