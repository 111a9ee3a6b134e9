package app

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func init() { gin.SetMode(gin.TestMode) }

func newGateway(sim, pers string) *Gateway {
	return NewGateway(Config{
		SimulatorBaseURL:   sim,
		PersistenceBaseURL: pers,
		HTTPTimeout:        time.Second,
		BreakerFailures:    2,
		BreakerOpenFor:     time.Minute,
		Logger:             log.New(io.Discard, "", 0),
	})
}

func call(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestDashboardAggregates(t *testing.T) {
	var failing atomic.Bool
	pers := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if failing.Load() {
			http.Error(w, "influx down", http.StatusInternalServerError)
			return
		}
		if r.URL.Path != "/runs/recent" || r.URL.Query().Get("field_id") != "f1" {
			t.Errorf("unexpected persistence call %s", r.URL)
		}
		_, _ = w.Write([]byte(`[
			{"run_id":"a","field_id":"f1","status":"OK","irrig":"25","etcadj":400,"time":"2024-09-01T00:00:00Z"},
			{"run_id":"b","field_id":"f1","status":"OK","irrig":75,"etcadj":500},
			{"run_id":"c","field_id":"f1","status":"FAIL"}]`))
	}))
	defer pers.Close()
	sim := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"crops":["maize","wheat"]}`))
	}))
	defer sim.Close()

	r := newGateway(sim.URL, pers.URL).Router()
	w := call(r, http.MethodGet, "/dashboard/data?field_id=f1", "")
	var data DashboardData
	if err := json.Unmarshal(w.Body.Bytes(), &data); err != nil || w.Code != http.StatusOK {
		t.Fatalf("%d %s", w.Code, w.Body)
	}
	want := Stats{Runs: 2, Failed: 1, MeanIrrig: 50, MaxIrrig: 75, MeanETcadj: 450}
	if data.Stats != want || len(data.Crops) != 2 || data.Runs[0].Irrig != 25 || data.Stale {
		t.Fatalf("data = %+v", data)
	}

	failing.Store(true)
	w = call(r, http.MethodGet, "/dashboard/data?field_id=f1", "")
	data = DashboardData{}
	_ = json.Unmarshal(w.Body.Bytes(), &data)
	if !data.Stale || len(data.Runs) != 3 {
		t.Fatalf("fallback = %+v", data)
	}
}

func TestForwardAndBreaker(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusUnprocessableEntity)
	sim := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(int(status.Load()))
		_, _ = w.Write(b)
	}))
	defer sim.Close()

	r := newGateway(sim.URL, "").Router()
	w := call(r, http.MethodPost, "/api/simulations", `{"crop":{"name":"maize"}}`)
	if w.Code != http.StatusUnprocessableEntity || !strings.Contains(w.Body.String(), "maize") {
		t.Fatalf("passthrough: %d %s", w.Code, w.Body)
	}

	status.Store(http.StatusInternalServerError)
	for i := 0; i < 2; i++ {
		if w := call(r, http.MethodPost, "/api/simulations", `{}`); w.Code != http.StatusInternalServerError {
			t.Fatalf("call %d: %d", i, w.Code)
		}
	}
	if w := call(r, http.MethodPost, "/api/simulations", `{}`); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("breaker should be open, got %d", w.Code)
	}

	if w := call(r, http.MethodGet, "/api/runs/history", ""); w.Code != http.StatusNotImplemented {
		t.Fatalf("unconfigured upstream: %d", w.Code)
	}
}
