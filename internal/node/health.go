package node

import (
	"encoding/json"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mcalderan/irrinode/internal/recorder"
)

// NewMux wires the node's HTTP surface: liveness, readiness, the display
// snapshot and prometheus metrics.
func NewMux(n *Node, wd *Watchdog, rec *recorder.Recorder, reg *prometheus.Registry) *http.ServeMux {
	mux := http.NewServeMux()

	// staleness follows the watchdog bound: a loop older than that is about
	// to be killed anyway
	stale := wd.bound

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		snap := n.Snapshot()
		type status struct {
			Status         string  `json:"status"`
			LinkConnected  bool    `json:"link_connected"`
			TimeSynced     bool    `json:"time_synced"`
			Pump           string  `json:"pump"`
			LastTickAgeS   float64 `json:"last_tick_age_sec"`
			LastWriteErrS  float64 `json:"last_write_error_age_sec"`
		}
		st := status{
			LinkConnected: snap.Link.Connected,
			TimeSynced:    snap.TimeSynced,
			Pump:          string(snap.Pump),
			LastTickAgeS:  wd.LastTickAge().Seconds(),
			LastWriteErrS: rec.LastErrorAge().Seconds(),
		}
		// the controller is healthy as long as the loop ticks; connectivity
		// only degrades it
		switch {
		case wd.LastTickAge() > stale:
			st.Status = "down"
		case !snap.Link.Connected || !snap.TimeSynced:
			st.Status = "degraded"
		default:
			st.Status = "ok"
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(st)
	})

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		ready := wd.LastTickAge() <= stale
		if !ready {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]bool{"ready": ready})
	})

	mux.HandleFunc("/status", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(n.Snapshot())
	})

	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	return mux
}
