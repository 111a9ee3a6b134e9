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

	"github.com/LeonardoBeccarini/cropwater/internal/services/gateway/app"
)

func main() {
	cfg := loadConfig()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gw := app.NewGateway(app.Config{
		SimulatorBaseURL:   cfg.SimulatorURL,
		PersistenceBaseURL: cfg.PersistenceURL,
		HTTPTimeout:        time.Duration(cfg.TimeoutMs) * time.Millisecond,
		BreakerFailures:    cfg.CBFails,
		BreakerOpenFor:     time.Duration(cfg.CBOpenMs) * time.Millisecond,
		BreakerInterval:    time.Duration(cfg.CBIntervalMs) * time.Millisecond,
	})

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           gw.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Printf("gateway listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server error: %v", err)
		}
	}()

	<-ctx.Done()
	shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shCtx)
	log.Println("gateway: shutdown complete")
}
