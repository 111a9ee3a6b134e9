package weather

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/LeonardoBeccarini/cropwater/internal/model/entities"
	"github.com/LeonardoBeccarini/cropwater/internal/simerr"
)

func day(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

func seriesOf(start time.Time, n int) entities.WeatherSeries {
	s := entities.WeatherSeries{WindHeight: 2}
	for i := 0; i < n; i++ {
		d := entities.MissingDay(start.AddDate(0, 0, i))
		d.Tmax, d.Tmin, d.Rain = 25, 10, float64(i)
		s.Days = append(s.Days, d)
	}
	return s
}

func TestFileCacheRoundTrip(t *testing.T) {
	c, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileCache: %v", err)
	}
	if _, ok, err := c.Load(43.6, -116.2); ok || err != nil {
		t.Fatalf("empty cache: ok=%v err=%v", ok, err)
	}
	in := seriesOf(day(2024, 5, 1), 3)
	if err := c.Save(43.60889, -116.19407, in); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(filepath.Join(c.dir, "weather_43.60889_-116.19407.json")); err != nil {
		t.Fatalf("file name: %v", err)
	}
	got, ok, err := c.Load(43.60889, -116.19407)
	if err != nil || !ok {
		t.Fatalf("Load: ok=%v err=%v", ok, err)
	}
	if len(got.Days) != 3 || got.Days[2].Rain != 2 || !math.IsNaN(got.Days[0].Srad) || got.Latitude != 43.60889 {
		t.Fatalf("got %+v", got)
	}
	if matches, _ := filepath.Glob(filepath.Join(c.dir, "*.tmp")); len(matches) != 0 {
		t.Fatalf("temporary files left: %v", matches)
	}
}

func TestFileCacheSweep(t *testing.T) {
	dir := t.TempDir()
	c, _ := NewFileCache(dir)
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	c.now = func() time.Time { return now.Add(-7 * time.Hour) }
	_ = c.Save(1, 1, seriesOf(day(2024, 5, 1), 1))
	c.now = func() time.Time { return now.Add(-1 * time.Hour) }
	_ = c.Save(2, 2, seriesOf(day(2024, 5, 1), 1))
	_ = os.WriteFile(filepath.Join(dir, "weather_bad.json"), []byte("{not json"), 0o644)
	_ = os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("keep"), 0o644)

	c.now = func() time.Time { return now }
	n, err := c.Sweep(6 * time.Hour)
	if err != nil || n != 1 {
		t.Fatalf("Sweep = %d, %v", n, err)
	}
	if _, ok, _ := c.Load(1, 1); ok {
		t.Fatal("expired file kept")
	}
	if _, ok, _ := c.Load(2, 2); !ok {
		t.Fatal("fresh file removed")
	}
	for _, f := range []string{"weather_bad.json", "notes.txt"} {
		if _, err := os.Stat(filepath.Join(dir, f)); err != nil {
			t.Fatalf("%s removed: %v", f, err)
		}
	}
}

type stubProvider struct {
	name  string
	calls int
	s     entities.WeatherSeries
	err   error
}

func (p *stubProvider) Name() string { return p.name }
func (p *stubProvider) Fetch(context.Context, Query) (entities.WeatherSeries, error) {
	p.calls++
	return p.s, p.err
}

func TestServiceCachesProviderResult(t *testing.T) {
	c, _ := NewFileCache(t.TempDir())
	p := &stubProvider{name: SourceGridMET, s: seriesOf(day(2024, 5, 1), 10)}
	svc := NewService(c, p)
	var hits, misses int
	svc.OnLookup(func(hit bool) {
		if hit {
			hits++
		} else {
			misses++
		}
	})
	q := Query{Latitude: 40, Longitude: -100, Elevation: 900, Start: day(2024, 5, 1), End: day(2024, 5, 10)}
	s, err := svc.Get(context.Background(), SourceGridMET, q)
	if err != nil || len(s.Days) != 10 || s.Elevation != 900 {
		t.Fatalf("first Get: %+v %v", s, err)
	}
	if _, err := svc.Get(context.Background(), SourceGridMET, q); err != nil {
		t.Fatalf("second Get: %v", err)
	}
	if p.calls != 1 || hits != 1 || misses != 1 {
		t.Fatalf("calls=%d hits=%d misses=%d", p.calls, hits, misses)
	}

	q.End = day(2024, 5, 20)
	if _, err := svc.Get(context.Background(), SourceCache, q); !isUnavailable(err) {
		t.Fatalf("partial cache: want DataUnavailableError, got %v", err)
	}
}

func isUnavailable(err error) bool {
	var du *simerr.DataUnavailableError
	return errors.As(err, &du)
}

func TestServiceEmptyOrFailingProvider(t *testing.T) {
	svc := NewService(nil, &stubProvider{name: SourceGridMET}, &stubProvider{name: SourceAgriMet, err: errors.New("timeout")})
	q := Query{Start: day(2024, 5, 1), End: day(2024, 5, 2)}
	if _, err := svc.Get(context.Background(), SourceGridMET, q); !isUnavailable(err) {
		t.Fatalf("empty: got %v", err)
	}
	if _, err := svc.Get(context.Background(), SourceAgriMet, q); !isUnavailable(err) {
		t.Fatalf("failing: got %v", err)
	}
	var ve *simerr.ValidationError
	if _, err := svc.Get(context.Background(), "noaa", q); !errors.As(err, &ve) {
		t.Fatalf("unknown source: got %v", err)
	}
}

func TestBreakerOpensAfterFailures(t *testing.T) {
	p := &stubProvider{name: SourceGridMET, err: errors.New("503")}
	b := WithBreaker(p, BreakerSettings{Fails: 2, Open: time.Minute})
	for i := 0; i < 2; i++ {
		if _, err := b.Fetch(context.Background(), Query{}); err == nil || isUnavailable(err) {
			t.Fatalf("call %d: got %v", i, err)
		}
	}
	_, err := b.Fetch(context.Background(), Query{})
	if !isUnavailable(err) || p.calls != 2 {
		t.Fatalf("open breaker: err=%v calls=%d", err, p.calls)
	}
}

func TestGridMETFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(r.URL.Path, "/")
		v := parts[len(parts)-2]
		if r.URL.Query().Get("accept") != "csv" {
			http.Error(w, "want csv", http.StatusBadRequest)
			return
		}
		val := map[string]string{"srad": "250", "tmmx": "300.15", "tmmn": "283.15", "rmax": "90", "rmin": "35", "vs": "3.2", "pr": "1.5"}[v]
		fmt.Fprintf(w, "time,latitude[unit=\"degrees_north\"],longitude[unit=\"degrees_east\"],%s[unit=\"x\"]\n", v)
		for d := 1; d <= 5; d++ {
			fmt.Fprintf(w, "2024-05-%02dT00:00:00Z,43.6,-116.2,%s\n", d, val)
		}
	}))
	defer srv.Close()

	g := NewGridMET(srv.URL, 5*time.Second)
	s, err := g.Fetch(context.Background(), Query{Latitude: 43.6, Longitude: -116.2, Start: day(2024, 5, 2), End: day(2024, 5, 4)})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(s.Days) != 3 || s.WindHeight != 10 {
		t.Fatalf("got %d days, wind height %g", len(s.Days), s.WindHeight)
	}
	d := s.Days[0]
	if !d.Date.Equal(day(2024, 5, 2)) || d.Srad != 21.6 || d.Tmax != 27 || d.Tmin != 10 || d.RHmin != 35 || d.Rain != 1.5 {
		t.Fatalf("day = %+v", d)
	}
	if !math.IsNaN(d.Tdew) {
		t.Fatalf("tdew should be missing, got %g", d.Tdew)
	}
}

func TestNearbyStations(t *testing.T) {
	st, err := ReadStations(strings.NewReader("siteid,latitude,longitude,install\nBOII,43.60,-116.20,1990-01-01\nFAR,45.0,-110.0,\nNEW,43.61,-116.21,2030-01-01\nNAMP,43.55,-116.50,\n"))
	if err != nil {
		t.Fatalf("ReadStations: %v", err)
	}
	got := Nearby(st, 43.6, -116.2, 50, day(2024, 5, 1))
	if len(got) != 2 || got[0].SiteID != "BOII" || got[1].SiteID != "NAMP" || got[0].Distance > got[1].Distance {
		t.Fatalf("got %+v", got)
	}
}

func TestAgriMetFallsBackToNextStation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		list := r.URL.Query().Get("list")
		if strings.HasPrefix(list, "BOII ") {
			fmt.Fprintln(w, "DateTime,BOII_SR,BOII_MX,BOII_MN,BOII_YM,BOII_UA,BOII_PP")
			return
		}
		fmt.Fprintln(w, "DateTime,NAMP_SR,NAMP_MX,NAMP_MN,NAMP_YM,NAMP_UA,NAMP_PP")
		fmt.Fprintln(w, "2024-05-01,500,86,50,41,10,0.5")
		fmt.Fprintln(w, "2024-05-02,480,,48,40,9,0")
	}))
	defer srv.Close()

	stations := []Station{{SiteID: "BOII", Latitude: 43.6, Longitude: -116.2}, {SiteID: "NAMP", Latitude: 43.55, Longitude: -116.5}}
	a := NewAgriMet(srv.URL, stations, 50, 5*time.Second)
	s, err := a.Fetch(context.Background(), Query{Latitude: 43.6, Longitude: -116.2, Start: day(2024, 5, 1), End: day(2024, 5, 2)})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if s.Source != "agrimet:NAMP" || len(s.Days) != 2 || s.WindHeight != 2 {
		t.Fatalf("got %+v", s)
	}
	d := s.Days[0]
	if math.Abs(d.Srad-20.934) > 1e-9 || d.Tmax != 30 || d.Tmin != 10 || math.Abs(d.Wind-4.4704) > 1e-9 || d.Rain != 12.7 {
		t.Fatalf("conversions: %+v", d)
	}
	if !math.IsNaN(s.Days[1].Tmax) {
		t.Fatalf("blank value should be missing, got %g", s.Days[1].Tmax)
	}
}

func TestReadCSV(t *testing.T) {
	in := "Date,srad,tmmx,tmmn,rmax,rmin,vs,pr\n2024-05-01,20,25,10,90,30,2,0\n2024-05-02,x,26,11,88,32,2.5,4\n"
	days, err := ReadCSV(strings.NewReader(in))
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if len(days) != 2 || !math.IsNaN(days[1].Srad) || days[1].Rain != 4 || !math.IsNaN(days[0].ETref) {
		t.Fatalf("got %+v", days)
	}

	_, err = ReadCSV(strings.NewReader("Date,srad,tmmx\n2024-05-01,1,2\n"))
	var ve *simerr.ValidationError
	if !errors.As(err, &ve) || !strings.Contains(ve.Error(), "rmax, rmin, vs, pr") {
		t.Fatalf("missing columns: got %v", err)
	}
	_, err = ReadCSV(strings.NewReader("Date,srad,tmmx,tmmn,rmax,rmin,vs,pr\nyesterday,1,2,3,4,5,6,7\n"))
	if !errors.As(err, &ve) {
		t.Fatalf("bad date: got %v", err)
	}
}
