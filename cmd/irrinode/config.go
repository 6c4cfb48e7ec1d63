package main

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port string

	// calibration + sampling
	CalAirCount    int
	CalWaterCount  int
	SensorRawMin   int
	SensorRawMax   int
	SensorSamples  int
	SensorDelayMs  int
	SampleInterval time.Duration
	SimSeed        float64

	// pump control
	DryThresholdPct int
	HysteresisPct   int
	MaxRuntime      time.Duration
	NormalCooldown  time.Duration
	SafetyCooldown  time.Duration
	TelemetryStart  bool

	// link
	MQTTHost          string
	MQTTPort          int
	MQTTUser          string
	MQTTPassword      string
	MQTTClientID      string
	StatusTopic       string
	LinkRetryInterval time.Duration
	LinkSubAttempts   int
	LinkBackoff       time.Duration
	LinkMaxElapsed    time.Duration

	// time sync
	NTPHost          string
	TimesyncAttempts int
	TimesyncTimeout  time.Duration

	// telemetry
	TelemetryURL      string
	TelemetryInterval time.Duration
	TelemetryTimeout  time.Duration
	BreakerFailures   int
	BreakerOpenFor    time.Duration

	// optional influx mirror
	InfluxURL    string
	InfluxToken  string
	InfluxOrg    string
	InfluxBucket string

	// scheduler
	TickInterval  time.Duration
	WatchdogBound time.Duration
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func getenvInt(k string, d int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return d
}

func getenvFloat(k string, d float64) float64 {
	if v := os.Getenv(k); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return d
}

func getenvBool(k string, d bool) bool {
	if v := os.Getenv(k); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return d
}

func seconds(k string, d int) time.Duration {
	return time.Duration(getenvInt(k, d)) * time.Second
}

func millis(k string, d int) time.Duration {
	return time.Duration(getenvInt(k, d)) * time.Millisecond
}

func loadConfig() Config {
	return Config{
		Port: getenv("PORT", "8080"),

		CalAirCount:    getenvInt("CAL_AIR_COUNT", 800),
		CalWaterCount:  getenvInt("CAL_WATER_COUNT", 400),
		SensorRawMin:   getenvInt("SENSOR_RAW_MIN", 100),
		SensorRawMax:   getenvInt("SENSOR_RAW_MAX", 1100),
		SensorSamples:  getenvInt("SENSOR_SAMPLES", 5),
		SensorDelayMs:  getenvInt("SENSOR_SAMPLE_DELAY_MS", 10),
		SampleInterval: seconds("SAMPLE_INTERVAL_S", 30),
		SimSeed:        getenvFloat("SIM_SEED", 0.30),

		DryThresholdPct: getenvInt("DRY_THRESHOLD_PCT", 40),
		HysteresisPct:   getenvInt("HYSTERESIS_PCT", 5),
		MaxRuntime:      time.Duration(getenvInt("MAX_RUNTIME_MIN", 20)) * time.Minute,
		NormalCooldown:  seconds("NORMAL_COOLDOWN_S", 30),
		SafetyCooldown:  time.Duration(getenvInt("SAFETY_COOLDOWN_MIN", 60)) * time.Minute,
		TelemetryStart:  getenvBool("TELEMETRY_ON_START", false),

		MQTTHost:          getenv("MQTT_HOST", "localhost"),
		MQTTPort:          getenvInt("MQTT_PORT", 1883),
		MQTTUser:          getenv("MQTT_USER", ""),
		MQTTPassword:      getenv("MQTT_PASSWORD", ""),
		MQTTClientID:      getenv("MQTT_CLIENT_ID", "irrinode"),
		StatusTopic:       getenv("STATUS_TOPIC", "irrinode/status"),
		LinkRetryInterval: seconds("LINK_RETRY_INTERVAL_S", 60),
		LinkSubAttempts:   getenvInt("LINK_SUB_ATTEMPTS", 4),
		LinkBackoff:       millis("LINK_BACKOFF_MS", 1000),
		LinkMaxElapsed:    seconds("LINK_MAX_ELAPSED_S", 30),

		NTPHost:          getenv("NTP_HOST", "pool.ntp.org"),
		TimesyncAttempts: getenvInt("TIMESYNC_ATTEMPTS", 6),
		TimesyncTimeout:  seconds("TIMESYNC_TIMEOUT_S", 5),

		TelemetryURL:      getenv("TELEMETRY_URL", "http://localhost:8000/report"),
		TelemetryInterval: seconds("TELEMETRY_INTERVAL_S", 300),
		TelemetryTimeout:  millis("TELEMETRY_TIMEOUT_MS", 10000),
		BreakerFailures:   getenvInt("BREAKER_FAILURES", 5),
		BreakerOpenFor:    seconds("BREAKER_OPEN_S", 120),

		InfluxURL:    getenv("INFLUX_URL", ""),
		InfluxToken:  getenv("INFLUX_TOKEN", ""),
		InfluxOrg:    getenv("INFLUX_ORG", "irrinode"),
		InfluxBucket: getenv("INFLUX_BUCKET", "telemetry"),

		TickInterval:  millis("TICK_INTERVAL_MS", 1000),
		// must exceed the longest single blocking call inside a tick: one
		// MQTT connect attempt (10s) or one telemetry round trip (10s);
		// the retry loops around them pat the watchdog per attempt
		WatchdogBound: seconds("WATCHDOG_BOUND_S", 30),
	}
}
