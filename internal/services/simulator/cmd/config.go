package main

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port string

	EngineAddr    string
	EngineTimeout time.Duration // 0: no deadline

	CatalogPath string

	CacheDir      string
	CacheMaxAge   time.Duration
	SweepInterval time.Duration

	GridMETURL      string
	AgriMetURL      string
	AgriMetStations string // CSV path; empty disables AgriMet
	AgriMetBufferKm float64
	UpstreamTimeout time.Duration
	BreakerFails    int
	BreakerOpen     time.Duration
	BreakerInterval time.Duration

	// empty MQTTHost disables the MQTT surface
	MQTTHost     string
	MQTTPort     int
	MQTTUser     string
	MQTTPassword string
	MQTTClientID string
	RequestTopic string
	ResultTopic  string
}

func env(k, d string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return d
}

func envInt(k string, d int) int {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return d
}

func envFloat(k string, d float64) float64 {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return d
}

// envDuration accepts Go durations ("6h", "90s").
func envDuration(k string, d time.Duration) time.Duration {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		if dur, err := time.ParseDuration(v); err == nil {
			return dur
		}
	}
	return d
}

func loadConfig() Config {
	return Config{
		Port: env("PORT", "8080"),

		EngineAddr:    env("ENGINE_GRPC_ADDR", "fao56-engine:50051"),
		EngineTimeout: time.Duration(envInt("ENGINE_TIMEOUT_MS", 0)) * time.Millisecond,

		CatalogPath: env("CROP_CATALOG_PATH", ""),

		CacheDir:      env("WEATHER_CACHE_DIR", "/var/cache/cropwater"),
		CacheMaxAge:   envDuration("WEATHER_RETENTION", 6*time.Hour),
		SweepInterval: envDuration("WEATHER_SWEEP_EVERY", 30*time.Minute),

		GridMETURL:      env("GRIDMET_BASE_URL", "http://thredds.northwestknowledge.net:8080"),
		AgriMetURL:      env("AGRIMET_BASE_URL", "https://www.usbr.gov/pn-bin/daily.pl"),
		AgriMetStations: env("AGRIMET_STATIONS_PATH", ""),
		AgriMetBufferKm: envFloat("AGRIMET_BUFFER_KM", 50),
		UpstreamTimeout: time.Duration(envInt("UPSTREAM_TIMEOUT_MS", 30000)) * time.Millisecond,
		BreakerFails:    envInt("CB_FAILS", 3),
		BreakerOpen:     time.Duration(envInt("CB_OPEN_MS", 60000)) * time.Millisecond,
		BreakerInterval: time.Duration(envInt("CB_INTERVAL_MS", 0)) * time.Millisecond,

		MQTTHost:     env("RABBITMQ_HOST", ""),
		MQTTPort:     envInt("RABBITMQ_PORT", 1883),
		MQTTUser:     env("RABBITMQ_USER", "guest"),
		MQTTPassword: env("RABBITMQ_PASSWORD", "guest"),
		MQTTClientID: env("MQTT_CLIENT_ID", env("HOSTNAME", "simulator")),
		RequestTopic: env("SIM_REQUEST_TOPIC", "simulation/request/#"),
		ResultTopic:  env("SIM_RESULT_TOPIC_TMPL", "event/simulationResult/{field}"),
	}
}
