package persistence

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// Deps reports the state of external dependencies for /healthz and /readyz.
type Deps struct {
	MQTT  func() bool
	Store func(ctx context.Context) error
}

type API struct {
	svc    *Service
	recent RecentSource
	store  RunStore
	deps   Deps
}

func NewAPI(svc *Service, recent RecentSource, store RunStore, deps Deps) *API {
	return &API{svc: svc, recent: recent, store: store, deps: deps}
}

func (a *API) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", a.health)
	r.GET("/readyz", a.ready)

	runs := r.Group("/runs")
	{
		// GET /runs/recent?field_id=f1&minutes=1440&limit=20
		runs.GET("/recent", a.recentRuns)
		// GET /runs/history?field_id=f1&limit=50
		runs.GET("/history", a.history)
	}
	return r
}

func intQuery(c *gin.Context, k string, def, min, max int) int {
	if v := strings.TrimSpace(c.Query(k)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			if n < min {
				return min
			}
			if max > 0 && n > max {
				return max
			}
			return n
		}
	}
	return def
}

func (a *API) recentRuns(c *gin.Context) {
	q := RecentQuery{
		FieldID: strings.TrimSpace(c.Query("field_id")),
		Minutes: intQuery(c, "minutes", 1440, 1, 90*24*60),
		Limit:   intQuery(c, "limit", 20, 1, 500),
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	out, err := a.recent.Recent(ctx, q)
	if err != nil {
		log.Printf("persistence: recent runs: %v", err)
		c.Header("X-Error", "influx-query-error")
		if out == nil {
			out = []RecentRun{}
		}
	}
	c.JSON(http.StatusOK, out)
}

func (a *API) history(c *gin.Context) {
	if a.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "run history store not configured"})
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	out, err := a.store.History(ctx, strings.TrimSpace(c.Query("field_id")), intQuery(c, "limit", 50, 1, 500))
	if err != nil {
		log.Printf("persistence: history: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "history query failed"})
		return
	}
	if out == nil {
		out = []RunRecord{}
	}
	c.JSON(http.StatusOK, out)
}

type status struct {
	Status          string  `json:"status"`
	MQTTConnected   bool    `json:"mqtt_connected"`
	StoreOK         bool    `json:"store_ok"`
	LastWriteErrorS float64 `json:"last_write_error_age_sec"`
	Stored          int64   `json:"stored_runs"`
}

func (a *API) check(ctx context.Context) status {
	st := status{
		MQTTConnected:   a.deps.MQTT == nil || a.deps.MQTT(),
		StoreOK:         a.deps.Store == nil || a.deps.Store(ctx) == nil,
		LastWriteErrorS: a.svc.LastErrorAge().Seconds(),
		Stored:          a.svc.Stored(),
	}
	switch {
	case st.MQTTConnected && st.StoreOK && a.svc.LastErrorAge() > 30*time.Second:
		st.Status = "ok"
	case st.MQTTConnected || st.StoreOK:
		st.Status = "degraded"
	default:
		st.Status = "down"
	}
	return st
}

func (a *API) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	c.JSON(http.StatusOK, a.check(ctx))
}

func (a *API) ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	st := a.check(ctx)
	ready := st.MQTTConnected && st.StoreOK && a.svc.LastErrorAge() > 2*time.Second
	code := http.StatusOK
	if !ready {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{"ready": ready})
}
