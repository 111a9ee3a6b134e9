package simulator

import (
	"bytes"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/LeonardoBeccarini/cropwater/internal/model/entities"
	"github.com/LeonardoBeccarini/cropwater/internal/simerr"
	"github.com/LeonardoBeccarini/cropwater/internal/weather"
)

func init() { gin.SetMode(gin.TestMode) }

func newTestRouter(t *testing.T, e *fakeEngine) (*gin.Engine, *weather.FileCache) {
	t.Helper()
	cache, err := weather.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileCache: %v", err)
	}
	reg := prometheus.NewRegistry()
	o := newTestOrchestrator(e)
	o.metrics = NewMetrics(reg)
	return NewAPI(o, cache, reg, nil).Router(), cache
}

func doJSON(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	b, _ := json.Marshal(body)
	req := httptest.NewRequest(method, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSimulateEndpoint(t *testing.T) {
	r, _ := newTestRouter(t, &fakeEngine{})
	w := doJSON(r, http.MethodPost, "/simulations", baseRequest())
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body)
	}
	var body struct {
		RunID    string                `json:"run_id"`
		Daily    []entities.DailyOutput `json:"daily"`
		Summary  entities.SeasonTotals `json:"summary"`
		Timeline []map[string]any      `json:"timeline"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.RunID != "run-1" || len(body.Daily) != 122 || len(body.Timeline) != 123 || body.Summary.ETc != 488 {
		t.Fatalf("body = %+v", body)
	}
}

func TestSimulateErrorStatusCodes(t *testing.T) {
	r, _ := newTestRouter(t, &fakeEngine{})
	req := baseRequest()
	req.Soil.Layers = req.Soil.Layers[:1]
	w := doJSON(r, http.MethodPost, "/simulations", req)
	if w.Code != http.StatusUnprocessableEntity || !strings.Contains(w.Body.String(), `"soil.layers"`) {
		t.Fatalf("shallow soil: %d %s", w.Code, w.Body)
	}

	req = baseRequest()
	req.Weather.Records = req.Weather.Records[:10]
	if w := doJSON(r, http.MethodPost, "/simulations", req); w.Code != http.StatusFailedDependency {
		t.Fatalf("short weather: %d %s", w.Code, w.Body)
	}

	r, _ = newTestRouter(t, &fakeEngine{err: errors.New("bad arrays")})
	if w := doJSON(r, http.MethodPost, "/simulations", baseRequest()); w.Code != http.StatusBadGateway {
		t.Fatalf("engine failure: %d %s", w.Code, w.Body)
	}
}

func TestStatusFor(t *testing.T) {
	cases := map[int]error{
		http.StatusUnprocessableEntity: &simerr.InvalidRangeError{Component: "stages", Reason: "end before start"},
		http.StatusFailedDependency:    &simerr.DataUnavailableError{Source: "gridmet", Reason: "empty result"},
		http.StatusInternalServerError: errors.New("disk full"),
	}
	for want, err := range cases {
		if got := StatusFor(err); got != want {
			t.Errorf("%v: got %d want %d", err, got, want)
		}
	}
}

func TestSimulateCSV(t *testing.T) {
	r, _ := newTestRouter(t, &fakeEngine{})
	w := doJSON(r, http.MethodPost, "/simulations/csv", baseRequest())
	if w.Code != http.StatusOK || !strings.HasPrefix(w.Header().Get("Content-Type"), "text/csv") {
		t.Fatalf("status %d type %q", w.Code, w.Header().Get("Content-Type"))
	}
	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	if len(lines) != 123 || !strings.HasPrefix(lines[0], "Year,DOY,ETref") || !strings.HasPrefix(lines[1], "2024,122,5.0000") {
		t.Fatalf("csv head = %q", lines[:2])
	}
	if !strings.Contains(w.Header().Get("Content-Disposition"), "maize_run-1.csv") {
		t.Fatalf("disposition = %q", w.Header().Get("Content-Disposition"))
	}
}

func TestCropsEndpoints(t *testing.T) {
	r, _ := newTestRouter(t, &fakeEngine{})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/crops/Wheat", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"kcb_mid":1.15`) {
		t.Fatalf("wheat: %d %s", w.Code, w.Body)
	}
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/crops/wheet", nil))
	if w.Code != http.StatusNotFound || !strings.Contains(w.Body.String(), "did you mean") {
		t.Fatalf("typo: %d %s", w.Code, w.Body)
	}
}

func TestValidateIrrigationForm(t *testing.T) {
	r, _ := newTestRouter(t, &fakeEngine{})
	form := url.Values{
		"irrigation_type": {"auto"}, "auto_start": {"2024-06-01"}, "auto_end": {"2024-05-01"},
		"trigger": {"root_depletion"}, "depletion_threshold": {"1.5"},
	}
	req := httptest.NewRequest(http.MethodPost, "/irrigation/validate", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status %d: %s", w.Code, w.Body)
	}
	var body struct {
		Fields []simerr.FieldError `json:"fields"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if len(body.Fields) != 2 || body.Fields[0].Field != "end_date" || body.Fields[1].Field != "depletion_threshold" {
		t.Fatalf("fields = %+v", body.Fields)
	}

	w = doJSON(r, http.MethodPost, "/irrigation/validate", map[string]any{
		"irrigation_type": "auto",
		"auto":            map[string]any{"start_date": "2024-05-01", "end_date": "2024-08-01", "trigger": "et_replacement", "et_upper": "lots"},
	})
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"auto_et_replacement"`) {
		t.Fatalf("et replacement: %d %s", w.Code, w.Body)
	}
}

func multipartBody(t *testing.T, fields map[string]string, file string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		_ = mw.WriteField(k, v)
	}
	if file != "" {
		fw, err := mw.CreateFormFile("file", "upload.csv")
		if err != nil {
			t.Fatalf("CreateFormFile: %v", err)
		}
		_, _ = fw.Write([]byte(file))
	}
	_ = mw.Close()
	return &buf, mw.FormDataContentType()
}

func TestUploadIrrigationCSV(t *testing.T) {
	r, _ := newTestRouter(t, &fakeEngine{})
	body, ct := multipartBody(t, nil, "Date,Amount,Fraction\n2024-06-01,25,\n2024-06-15,30,1\n")
	req := httptest.NewRequest(http.MethodPost, "/irrigation/upload", body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"fixed_events"`) {
		t.Fatalf("status %d: %s", w.Code, w.Body)
	}
}

func TestUploadWeatherStoresInCache(t *testing.T) {
	r, cache := newTestRouter(t, &fakeEngine{})
	csv := "Date,srad,tmmx,tmmn,rmax,rmin,vs,pr\n2024-05-01,20,25,10,90,30,2,0\n2024-05-02,21,26,11,88,32,2.5,4\n"
	body, ct := multipartBody(t, map[string]string{"latitude": "43.6", "longitude": "-116.2"}, csv)
	req := httptest.NewRequest(http.MethodPost, "/weather/upload", body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("status %d: %s", w.Code, w.Body)
	}
	s, ok, err := cache.Load(43.6, -116.2)
	if err != nil || !ok || len(s.Days) != 2 || s.Source != weather.SourceUpload || s.WindHeight != UploadWindHeight {
		t.Fatalf("cached = %+v ok=%v err=%v", s, ok, err)
	}

	body, ct = multipartBody(t, map[string]string{"latitude": "44", "longitude": "-116", "wind_height": "2"}, csv)
	req = httptest.NewRequest(http.MethodPost, "/weather/upload", body)
	req.Header.Set("Content-Type", ct)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if s, _, _ := cache.Load(44, -116); w.Code != http.StatusCreated || s.WindHeight != 2 {
		t.Fatalf("explicit wind height: %d height=%g", w.Code, s.WindHeight)
	}

	body, ct = multipartBody(t, map[string]string{"longitude": "x"}, "")
	req = httptest.NewRequest(http.MethodPost, "/weather/upload", body)
	req.Header.Set("Content-Type", ct)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnprocessableEntity || !strings.Contains(w.Body.String(), `"latitude"`) ||
		!strings.Contains(w.Body.String(), `"file"`) {
		t.Fatalf("bad upload: %d %s", w.Code, w.Body)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	r, _ := newTestRouter(t, &fakeEngine{})
	_ = doJSON(r, http.MethodPost, "/simulations", baseRequest())
	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusOK {
			t.Fatalf("%s: %d", path, w.Code)
		}
		if path == "/metrics" && !strings.Contains(w.Body.String(), `cropwater_simulations_total{outcome="ok"} 1`) {
			t.Fatalf("metrics body missing counter:\n%s", w.Body)
		}
	}

	notReady := NewAPI(newTestOrchestrator(&fakeEngine{}), nil, nil, func() bool { return false }).Router()
	w := httptest.NewRecorder()
	notReady.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz = %d", w.Code)
	}
}
