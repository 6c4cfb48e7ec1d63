package node

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is the node's prometheus surface, served on /metrics.
type Metrics struct {
	Moisture    prometheus.Gauge
	PumpOn      prometheus.Gauge
	PumpStarts  prometheus.Counter
	PumpStops   prometheus.Counter
	SafetyStops prometheus.Counter
	Reconnects  prometheus.Counter
	LinkDrops   prometheus.Counter
	Telemetry   *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Moisture: f.NewGauge(prometheus.GaugeOpts{
			Name: "irrinode_moisture_percent",
			Help: "Last valid filtered moisture reading.",
		}),
		PumpOn: f.NewGauge(prometheus.GaugeOpts{
			Name: "irrinode_pump_on",
			Help: "1 while the pump relay is asserted.",
		}),
		PumpStarts: f.NewCounter(prometheus.CounterOpts{
			Name: "irrinode_pump_starts_total",
			Help: "Pump start transitions.",
		}),
		PumpStops: f.NewCounter(prometheus.CounterOpts{
			Name: "irrinode_pump_stops_total",
			Help: "Pump stop transitions, normal and safety.",
		}),
		SafetyStops: f.NewCounter(prometheus.CounterOpts{
			Name: "irrinode_pump_safety_stops_total",
			Help: "Stops forced by the max-runtime cutoff.",
		}),
		Reconnects: f.NewCounter(prometheus.CounterOpts{
			Name: "irrinode_link_reconnects_total",
			Help: "Successful link reconnections.",
		}),
		LinkDrops: f.NewCounter(prometheus.CounterOpts{
			Name: "irrinode_link_drops_total",
			Help: "Detected link losses.",
		}),
		Telemetry: f.NewCounterVec(prometheus.CounterOpts{
			Name: "irrinode_telemetry_events_total",
			Help: "Telemetry publish outcomes.",
		}, []string{"event_type", "result"}),
	}
}

func (m *Metrics) SetPumpOn(on bool) {
	if on {
		m.PumpOn.Set(1)
	} else {
		m.PumpOn.Set(0)
	}
}
