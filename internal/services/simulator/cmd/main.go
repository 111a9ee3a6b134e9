package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/LeonardoBeccarini/cropwater/internal/catalog"
	"github.com/LeonardoBeccarini/cropwater/internal/engine"
	"github.com/LeonardoBeccarini/cropwater/internal/services/simulator"
	"github.com/LeonardoBeccarini/cropwater/internal/weather"
	"github.com/LeonardoBeccarini/cropwater/pkg/dedup"
	"github.com/LeonardoBeccarini/cropwater/pkg/rabbitmq"
)

func main() {
	cfg := loadConfig()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		log.Fatalf("crop catalog: %v", err)
	}
	log.Printf("simulator: %d crops in catalog", len(cat.Names()))

	cache, err := weather.NewFileCache(cfg.CacheDir)
	if err != nil {
		log.Fatalf("weather cache: %v", err)
	}
	go cache.RunSweeper(ctx, cfg.SweepInterval, cfg.CacheMaxAge)

	bs := weather.BreakerSettings{Fails: cfg.BreakerFails, Open: cfg.BreakerOpen, Interval: cfg.BreakerInterval}
	providers := []weather.Provider{
		weather.WithBreaker(weather.NewGridMET(cfg.GridMETURL, cfg.UpstreamTimeout), bs),
	}
	if cfg.AgriMetStations != "" {
		stations, err := weather.LoadStations(cfg.AgriMetStations)
		if err != nil {
			log.Fatalf("agrimet stations: %v", err)
		}
		providers = append(providers,
			weather.WithBreaker(weather.NewAgriMet(cfg.AgriMetURL, stations, cfg.AgriMetBufferKm, cfg.UpstreamTimeout), bs))
		log.Printf("simulator: %d AgriMet stations loaded", len(stations))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := simulator.NewMetrics(reg)

	ws := weather.NewService(cache, providers...)
	ws.OnLookup(metrics.CacheLookup)

	eng, err := engine.Dial(cfg.EngineAddr, cfg.EngineTimeout)
	if err != nil {
		log.Fatalf("engine: %v", err)
	}
	defer eng.Close()

	sim := simulator.New(eng, cat, ws, metrics)

	// MQTT is optional; HTTP stays up without it.
	var client mqtt.Client
	if cfg.MQTTHost != "" {
		client, err = rabbitmq.NewRabbitMQConn(&rabbitmq.RabbitMQConfig{
			Host:     cfg.MQTTHost,
			Port:     cfg.MQTTPort,
			User:     cfg.MQTTUser,
			Password: cfg.MQTTPassword,
			ClientID: cfg.MQTTClientID,
		}, ctx)
		if err != nil {
			log.Fatalf("mqtt connection error: %v", err)
		}
		defer rabbitmq.CloseRabbitMQConn(client)

		c := simulator.NewConsumer(sim,
			rabbitmq.NewConsumer(client, cfg.RequestTopic, nil),
			func(topic string) rabbitmq.IPublisher { return rabbitmq.NewPublisher(client, topic) },
			dedup.New(10*time.Minute, 20000))
		c.SetResultTopicTemplate(cfg.ResultTopic)
		go c.Start(ctx)
		log.Printf("simulator: consuming %s", cfg.RequestTopic)
	}

	ready := func() bool { return client == nil || client.IsConnectionOpen() }

	gin.SetMode(gin.ReleaseMode)
	hs := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           simulator.NewAPI(sim, cache, reg, ready).Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Printf("simulator: HTTP listening on :%s", cfg.Port)
		if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("simulator: shutting down...")
	shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = hs.Shutdown(shCtx)
}
