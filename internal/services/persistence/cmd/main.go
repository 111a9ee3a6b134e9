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

	"github.com/gin-gonic/gin"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"

	"github.com/LeonardoBeccarini/cropwater/internal/services/persistence"
	"github.com/LeonardoBeccarini/cropwater/pkg/dedup"
	"github.com/LeonardoBeccarini/cropwater/pkg/rabbitmq"
)

func main() {
	cfg := loadConfig()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- MQTT ---
	mqClient, err := rabbitmq.NewRabbitMQConn(&rabbitmq.RabbitMQConfig{
		Host:     cfg.MQTTHost,
		Port:     cfg.MQTTPort,
		User:     cfg.MQTTUser,
		Password: cfg.MQTTPassword,
		ClientID: cfg.MQTTClientID,
	}, ctx)
	if err != nil {
		log.Fatalf("mqtt connect failed: %v", err)
	}
	defer rabbitmq.CloseRabbitMQConn(mqClient)

	// --- InfluxDB ---
	influx := influxdb2.NewClient(cfg.InfluxURL, cfg.InfluxToken)
	defer influx.Close()
	writeAPI := influx.WriteAPIBlocking(cfg.InfluxOrg, cfg.InfluxBucket)

	// --- MySQL (optional) ---
	var store persistence.RunStore
	deps := persistence.Deps{MQTT: mqClient.IsConnectionOpen}
	if cfg.MySQLDSN != "" {
		s, err := persistence.OpenMySQL(ctx, cfg.MySQLDSN)
		if err != nil {
			log.Fatalf("mysql: %v", err)
		}
		defer s.Close()
		store = s
		deps.Store = s.Ping
		log.Printf("persistence: run history in mysql")
	}

	svc := persistence.NewService(
		rabbitmq.NewConsumer(mqClient, cfg.Topic, nil),
		writeAPI, store, dedup.New(10*time.Minute, 20000))

	// --- HTTP ---
	gin.SetMode(gin.ReleaseMode)
	api := persistence.NewAPI(svc, persistence.NewInfluxReader(influx, cfg.InfluxOrg, cfg.InfluxBucket), store, deps)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Printf("persistence HTTP listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server error: %v", err)
		}
	}()

	go svc.Start(ctx)

	<-ctx.Done()
	stop()

	shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shCtx)
	log.Println("persistence: shutdown complete")
}
