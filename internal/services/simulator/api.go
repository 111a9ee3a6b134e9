package simulator

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/LeonardoBeccarini/cropwater/internal/irrigation"
	"github.com/LeonardoBeccarini/cropwater/internal/model/entities"
	"github.com/LeonardoBeccarini/cropwater/internal/simerr"
	"github.com/LeonardoBeccarini/cropwater/internal/weather"
)

// API exposes the orchestrator over HTTP.
type API struct {
	sim      *Orchestrator
	cache    weather.Cache
	gatherer prometheus.Gatherer
	ready    func() bool
}

func NewAPI(sim *Orchestrator, cache weather.Cache, g prometheus.Gatherer, ready func() bool) *API {
	if ready == nil {
		ready = func() bool { return true }
	}
	return &API{sim: sim, cache: cache, gatherer: g, ready: ready}
}

// Router builds the gin engine with every route registered.
func (a *API) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/readyz", a.readyz)
	if a.gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(a.gatherer, promhttp.HandlerOpts{})))
	}

	r.GET("/crops", a.listCrops)
	r.GET("/crops/:name", a.getCrop)

	irr := r.Group("/irrigation")
	{
		irr.POST("/validate", a.validateIrrigation)
		irr.POST("/upload", a.uploadIrrigation)
	}
	r.POST("/weather/upload", a.uploadWeather)

	sims := r.Group("/simulations")
	{
		sims.POST("", a.simulate)
		sims.POST("/csv", a.simulateCSV)
	}
	return r
}

func (a *API) readyz(c *gin.Context) {
	ok := a.ready()
	code := http.StatusOK
	if !ok {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{"ready": ok})
}

// StatusFor maps the error taxonomy onto HTTP codes.
func StatusFor(err error) int {
	switch Classify(err) {
	case OutcomeOK:
		return http.StatusOK
	case OutcomeValidation, OutcomeRange:
		return http.StatusUnprocessableEntity
	case OutcomeUnavailable:
		return http.StatusFailedDependency
	case OutcomeEngine:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	body := gin.H{"error": err.Error(), "kind": Classify(err)}
	var ve *simerr.ValidationError
	if errors.As(err, &ve) {
		body["component"] = ve.Component
		body["fields"] = ve.Fields
	}
	c.JSON(StatusFor(err), body)
}

func (a *API) listCrops(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"crops": a.sim.Catalog().Names()})
}

func (a *API) getCrop(c *gin.Context) {
	p, err := a.sim.Catalog().Lookup(c.Param("name"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, p)
}

// readIrrigation accepts a JSON body or a form submission.
func readIrrigation(c *gin.Context) (irrigation.Raw, error) {
	var raw irrigation.Raw
	if strings.HasPrefix(c.ContentType(), "application/json") {
		if err := c.ShouldBindJSON(&raw); err != nil {
			return raw, simerr.Invalid("irrigation", "body", "%v", err)
		}
		return raw, nil
	}
	if err := c.Request.ParseMultipartForm(8 << 20); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return raw, simerr.Invalid("irrigation", "body", "%v", err)
	}
	if c.Request.PostForm == nil {
		if err := c.Request.ParseForm(); err != nil {
			return raw, simerr.Invalid("irrigation", "body", "%v", err)
		}
	}
	return irrigation.FromForm(c.Request.PostForm)
}

func writePlan(c *gin.Context, p entities.IrrigationPlan) {
	b, err := entities.MarshalPlan(p)
	if err != nil {
		writeError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", b)
}

func (a *API) validateIrrigation(c *gin.Context) {
	raw, err := readIrrigation(c)
	if err != nil {
		writeError(c, err)
		return
	}
	p, err := irrigation.Build(raw)
	if err != nil {
		writeError(c, err)
		return
	}
	writePlan(c, p)
}

func (a *API) uploadIrrigation(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		writeError(c, simerr.Invalid("irrigation", "file", "multipart field 'file' is required"))
		return
	}
	f, err := fh.Open()
	if err != nil {
		writeError(c, err)
		return
	}
	defer f.Close()
	rows, err := irrigation.ReadEventsCSV(f)
	if err != nil {
		writeError(c, err)
		return
	}
	p, err := irrigation.BuildFixed(rows)
	if err != nil {
		writeError(c, err)
		return
	}
	writePlan(c, p)
}

func formFloat(c *gin.Context, v *simerr.ValidationError, name string, required bool) float64 {
	s := strings.TrimSpace(c.PostForm(name))
	if s == "" {
		if required {
			v.Add(name, "required")
		}
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		v.Add(name, "not a number: %q", s)
	}
	return f
}

func (a *API) uploadWeather(c *gin.Context) {
	if a.cache == nil {
		writeError(c, &simerr.DataUnavailableError{Source: "weather", Reason: "no cache configured"})
		return
	}
	v := &simerr.ValidationError{Component: "weather"}
	lat := formFloat(c, v, "latitude", true)
	lon := formFloat(c, v, "longitude", true)
	elev := formFloat(c, v, "elevation", false)
	wind := formFloat(c, v, "wind_height", false)
	fh, ferr := c.FormFile("file")
	if ferr != nil {
		v.Add("file", "multipart field 'file' is required")
	}
	if err := v.Err(); err != nil {
		writeError(c, err)
		return
	}
	f, err := fh.Open()
	if err != nil {
		writeError(c, err)
		return
	}
	defer f.Close()
	days, err := weather.ReadCSV(f)
	if err != nil {
		writeError(c, err)
		return
	}
	if len(days) == 0 {
		writeError(c, simerr.Invalid("weather", "file", "no data rows"))
		return
	}
	if wind == 0 {
		wind = UploadWindHeight
	}
	s := entities.WeatherSeries{Latitude: lat, Longitude: lon, Elevation: elev, WindHeight: wind, Source: weather.SourceUpload, Days: days}
	if err := s.Validate(); err != nil {
		writeError(c, err)
		return
	}
	if err := a.cache.Save(lat, lon, s); err != nil {
		writeError(c, fmt.Errorf("store weather: %w", err))
		return
	}
	log.Printf("simulator: stored %d uploaded weather days for %g,%g", len(days), lat, lon)
	c.JSON(http.StatusCreated, gin.H{"latitude": lat, "longitude": lon, "days": len(days),
		"first": days[0].Date.Format(entities.DateLayout), "last": days[len(days)-1].Date.Format(entities.DateLayout)})
}

func (a *API) bindRequest(c *gin.Context) (Request, bool) {
	var req Request
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, simerr.Invalid(component, "body", "%v", err))
		return req, false
	}
	return req, true
}

func (a *API) simulate(c *gin.Context) {
	req, ok := a.bindRequest(c)
	if !ok {
		return
	}
	res, err := a.sim.Simulate(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (a *API) simulateCSV(c *gin.Context) {
	req, ok := a.bindRequest(c)
	if !ok {
		return
	}
	res, err := a.sim.Simulate(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	var buf bytes.Buffer
	if err := WriteDailyCSV(&buf, res.Daily); err != nil {
		writeError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s_%s.csv"`, res.Crop, res.RunID))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}
