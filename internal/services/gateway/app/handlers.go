package app

import (
	"context"
	"errors"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

func round2(x float64) float64 { return math.Round(x*100) / 100 }

// computeStats aggregates the OK runs; failed runs are only counted.
func computeStats(runs []RunSummary) Stats {
	var s Stats
	var sumIrr, sumET float64
	for _, r := range runs {
		if r.Status != "OK" {
			s.Failed++
			continue
		}
		s.Runs++
		sumIrr += r.Irrig
		sumET += r.ETcadj
		if r.Irrig > s.MaxIrrig {
			s.MaxIrrig = r.Irrig
		}
	}
	if s.Runs > 0 {
		s.MeanIrrig = round2(sumIrr / float64(s.Runs))
		s.MeanETcadj = round2(sumET / float64(s.Runs))
	}
	return s
}

// GET /dashboard/data?field_id=f1&limit=20
func (g *Gateway) HandleDashboard(c *gin.Context) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(c.Request.Context(), g.cfg.HTTPTimeout)
	defer cancel()

	field := strings.TrimSpace(c.Query("field_id"))
	q := url.Values{"limit": {c.DefaultQuery("limit", "20")}}
	if field != "" {
		q.Set("field_id", field)
	}

	type res struct {
		runs  []RunSummary
		crops []string
		err   error
	}
	runsCh, cropsCh := make(chan res, 1), make(chan res, 1)

	go func() {
		var runs []RunSummary
		err := g.persistence.GetJSON(ctx, "/runs/recent", q, &runs)
		runsCh <- res{runs: runs, err: err}
	}()
	go func() {
		var cl CropList
		err := g.simulator.GetJSON(ctx, "/crops", nil, &cl)
		cropsCh <- res{crops: cl.Crops, err: err}
	}()

	data := DashboardData{Runs: []RunSummary{}, Crops: []string{}}

	if r := <-runsCh; r.err == nil {
		if r.runs != nil {
			data.Runs = r.runs
		}
		g.mu.Lock()
		g.lastRuns[field] = data.Runs
		g.mu.Unlock()
	} else {
		g.mu.Lock()
		if last, ok := g.lastRuns[field]; ok {
			data.Runs, data.Stale = last, true
		}
		g.mu.Unlock()
	}
	if r := <-cropsCh; r.err == nil && r.crops != nil {
		data.Crops = r.crops
	}
	data.Stats = computeStats(data.Runs)

	c.JSON(http.StatusOK, data)
	g.cfg.Logger.Printf("gateway: GET /dashboard/data [%dms] cb[sim]=%v cb[pers]=%v runs=%d stale=%v",
		time.Since(start).Milliseconds(), g.simulator.State(), g.persistence.State(), len(data.Runs), data.Stale)
}

// forward relays the request body and query string to path on u.
func (g *Gateway) forward(u *Upstream, path string) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
			return
		}
		resp, err := u.Do(c.Request.Context(), c.Request.Method, path, c.Request.URL.Query(), c.GetHeader("Content-Type"), body)
		switch {
		case errors.Is(err, ErrNotConfigured):
			c.JSON(http.StatusNotImplemented, gin.H{"error": u.name + " not configured"})
			return
		case err != nil:
			g.cfg.Logger.Printf("gateway: %s %s: %v", c.Request.Method, path, err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": u.name + " unavailable"})
			return
		}
		if resp.Disposition != "" {
			c.Header("Content-Disposition", resp.Disposition)
		}
		ct := resp.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		c.Data(resp.Status, ct, resp.Body)
	}
}
