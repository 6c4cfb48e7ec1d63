package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mcalderan/irrinode/internal/link"
	"github.com/mcalderan/irrinode/internal/model"
	"github.com/mcalderan/irrinode/internal/node"
	"github.com/mcalderan/irrinode/internal/pump"
	"github.com/mcalderan/irrinode/internal/recorder"
	"github.com/mcalderan/irrinode/internal/sensor"
	"github.com/mcalderan/irrinode/internal/status"
	"github.com/mcalderan/irrinode/internal/telemetry"
	"github.com/mcalderan/irrinode/internal/timesync"
	"github.com/mcalderan/irrinode/pkg/mqttconn"
)

// simRelay drives the logical relay output and feeds the simulated probe so
// the moisture model reacts to watering. A hardware build swaps this for a
// GPIO-backed Relay.
type simRelay struct {
	sim *sensor.SimReader
}

func (r simRelay) Set(on bool) {
	r.sim.SetRelay(on)
	log.Printf("relay: %v", map[bool]string{true: "ON", false: "OFF"}[on])
}

func main() {
	_ = godotenv.Load()
	cfg := loadConfig()

	cal := model.Calibration{AirCount: cfg.CalAirCount, WaterCount: cfg.CalWaterCount}
	sim := sensor.NewSimReader(cal, cfg.SimSeed)
	src := sensor.NewSource(sensor.Config{
		Samples:     cfg.SensorSamples,
		SampleDelay: time.Duration(cfg.SensorDelayMs) * time.Millisecond,
		Calibration: cal,
		RawMin:      cfg.SensorRawMin,
		RawMax:      cfg.SensorRawMax,
	}, sim)

	pc := pump.NewController(pump.Config{
		DryThreshold:   cfg.DryThresholdPct,
		Hysteresis:     cfg.HysteresisPct,
		MaxRunTime:     cfg.MaxRuntime,
		NormalCooldown: cfg.NormalCooldown,
		SafetyCooldown: cfg.SafetyCooldown,
		EmitStartEvent: cfg.TelemetryStart,
	})

	reg := prometheus.NewRegistry()
	metrics := node.NewMetrics(reg)
	wd := node.NewWatchdog(cfg.WatchdogBound)

	client := mqttconn.NewClient(&mqttconn.Config{
		Host:     cfg.MQTTHost,
		Port:     cfg.MQTTPort,
		User:     cfg.MQTTUser,
		Password: cfg.MQTTPassword,
		ClientID: cfg.MQTTClientID,
	})
	lm := link.NewManager(link.Config{
		RetryInterval:  cfg.LinkRetryInterval,
		SubAttempts:    cfg.LinkSubAttempts,
		InitialBackoff: cfg.LinkBackoff,
		MaxElapsed:     cfg.LinkMaxElapsed,
		Progress:       wd.Pat,
	}, link.NewMQTTTransport(client))
	defer lm.Close()

	ts := timesync.NewSource(timesync.Config{Attempts: cfg.TimesyncAttempts, Progress: wd.Pat},
		timesync.NTPQuerier{Host: cfg.NTPHost, Timeout: cfg.TimesyncTimeout})

	pub := telemetry.NewPublisher(telemetry.Config{
		BaseURL:         cfg.TelemetryURL,
		Timeout:         cfg.TelemetryTimeout,
		BreakerFailures: cfg.BreakerFailures,
		BreakerOpenFor:  cfg.BreakerOpenFor,
	}, lm, ts)

	rec := recorder.New(cfg.InfluxURL, cfg.InfluxToken, cfg.InfluxOrg, cfg.InfluxBucket)
	defer rec.Close()

	sink := status.NewPublisher(mqttconn.NewPublisher(client, cfg.StatusTopic))

	n := node.New(node.Config{
		TickInterval:      cfg.TickInterval,
		SampleInterval:    cfg.SampleInterval,
		TelemetryInterval: cfg.TelemetryInterval,
	}, src, pc, simRelay{sim: sim}, lm, ts, pub, sink, rec, wd, metrics)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go wd.Run(ctx)

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: node.NewMux(n, wd, rec, reg)}
	go func() {
		log.Printf("irrinode listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("http server: %v", err)
		}
	}()

	n.Run(ctx)

	shctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shctx)
}
