package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func init() { gin.SetMode(gin.TestMode) }

type fakeRecent struct {
	got RecentQuery
	out []RecentRun
	err error
}

func (f *fakeRecent) Recent(_ context.Context, q RecentQuery) ([]RecentRun, error) {
	f.got = q
	return f.out, f.err
}

func get(r http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestRecentRunsEndpoint(t *testing.T) {
	fr := &fakeRecent{out: []RecentRun{{RunID: "r1", FieldID: "f1", Status: "OK", Irrig: 25}}}
	r := NewAPI(NewService(nil, &fakeWriter{}, nil, nil), fr, nil, Deps{}).Router()

	w := get(r, "/runs/recent?field_id=f1&limit=9999&minutes=abc")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"run_id":"r1"`) {
		t.Fatalf("%d %s", w.Code, w.Body)
	}
	if fr.got.FieldID != "f1" || fr.got.Limit != 500 || fr.got.Minutes != 1440 {
		t.Fatalf("query = %+v", fr.got)
	}

	fr.out, fr.err = nil, errors.New("timeout")
	w = get(r, "/runs/recent")
	if w.Code != http.StatusOK || w.Header().Get("X-Error") != "influx-query-error" || strings.TrimSpace(w.Body.String()) != "[]" {
		t.Fatalf("%d %q %s", w.Code, w.Header().Get("X-Error"), w.Body)
	}
}

func TestHistoryEndpoint(t *testing.T) {
	st := &fakeStore{}
	_ = st.SaveRun(context.Background(), RecordFromEvent(okEvent()))
	other := RecordFromEvent(okEvent())
	other.RunID, other.FieldID = "r2", "f2"
	_ = st.SaveRun(context.Background(), other)

	r := NewAPI(NewService(nil, &fakeWriter{}, st, nil), &fakeRecent{}, st, Deps{}).Router()
	w := get(r, "/runs/history?field_id=f2")
	var out []RunRecord
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil || w.Code != http.StatusOK {
		t.Fatalf("%d %s", w.Code, w.Body)
	}
	if len(out) != 1 || out[0].RunID != "r2" {
		t.Fatalf("history = %+v", out)
	}

	noStore := NewAPI(NewService(nil, &fakeWriter{}, nil, nil), &fakeRecent{}, nil, Deps{}).Router()
	if w := get(noStore, "/runs/history"); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("no store: %d", w.Code)
	}
}

func TestHealthAndReady(t *testing.T) {
	svc := NewService(nil, &fakeWriter{}, nil, nil)
	up := NewAPI(svc, &fakeRecent{}, nil, Deps{MQTT: func() bool { return true }}).Router()
	if w := get(up, "/readyz"); w.Code != http.StatusOK {
		t.Fatalf("readyz = %d", w.Code)
	}
	if w := get(up, "/healthz"); !strings.Contains(w.Body.String(), `"status":"ok"`) {
		t.Fatalf("healthz = %s", w.Body)
	}

	down := NewAPI(svc, &fakeRecent{}, nil, Deps{
		MQTT:  func() bool { return false },
		Store: func(context.Context) error { return errors.New("gone") },
	}).Router()
	if w := get(down, "/readyz"); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz = %d", w.Code)
	}
	if w := get(down, "/healthz"); !strings.Contains(w.Body.String(), `"status":"down"`) {
		t.Fatalf("healthz = %s", w.Body)
	}
}

func TestBuildFlux(t *testing.T) {
	q := buildFlux("sims", RecentQuery{FieldID: "f1", Minutes: 60, Limit: 5})
	for _, want := range []string{`from(bucket: "sims")`, "range(start: -60m)", `r._measurement == "season_summary"`,
		`r.field_id == "f1"`, "pivot(", "limit(n:5)"} {
		if !strings.Contains(q, want) {
			t.Errorf("flux missing %q:\n%s", want, q)
		}
	}
	if strings.Contains(buildFlux("sims", RecentQuery{Minutes: 60, Limit: 5}), "field_id ==") {
		t.Error("unexpected field filter")
	}
}

func TestMigrationsAreOrdered(t *testing.T) {
	ms := migrations()
	for i := 1; i < len(ms); i++ {
		if ms[i-1].Name >= ms[i].Name {
			t.Fatalf("migration %s after %s", ms[i].Name, ms[i-1].Name)
		}
	}
	if got := (MySQLConfig{User: "u", Password: "p", Host: "db:3306", DBName: "cw"}).DSN(); got != "u:p@tcp(db:3306)/cw?parseTime=true&charset=utf8mb4" {
		t.Fatalf("dsn = %s", got)
	}
}
