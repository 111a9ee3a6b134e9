package app

import (
	"log"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

type Config struct {
	SimulatorBaseURL   string
	PersistenceBaseURL string
	HTTPTimeout        time.Duration

	BreakerFailures int
	BreakerOpenFor  time.Duration
	BreakerInterval time.Duration

	Logger *log.Logger
}

type Gateway struct {
	cfg         Config
	simulator   *Upstream
	persistence *Upstream

	mu       sync.Mutex
	lastRuns map[string][]RunSummary // last good recent-runs answer per field
}

func NewGateway(cfg Config) *Gateway {
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 3 * time.Second
	}
	// one breaker per upstream
	bs := BreakerSettings{Fails: cfg.BreakerFailures, Open: cfg.BreakerOpenFor, Interval: cfg.BreakerInterval}
	return &Gateway{
		cfg:         cfg,
		simulator:   NewUpstream("simulator", cfg.SimulatorBaseURL, cfg.HTTPTimeout, bs),
		persistence: NewUpstream("persistence", cfg.PersistenceBaseURL, cfg.HTTPTimeout, bs),
		lastRuns:    map[string][]RunSummary{},
	}
}

func (g *Gateway) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) { c.String(200, "ok") })
	r.GET("/dashboard/data", g.HandleDashboard)

	api := r.Group("/api")
	{
		api.POST("/simulations", g.forward(g.simulator, "/simulations"))
		api.POST("/simulations/csv", g.forward(g.simulator, "/simulations/csv"))
		api.GET("/crops", g.forward(g.simulator, "/crops"))
		api.GET("/runs/history", g.forward(g.persistence, "/runs/history"))
	}
	return r
}
