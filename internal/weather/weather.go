// Package weather supplies daily weather series: an on-disk cache, remote
// providers (gridMET, AgriMet), and CSV uploads.
package weather

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/LeonardoBeccarini/cropwater/internal/model/entities"
	"github.com/LeonardoBeccarini/cropwater/internal/simerr"
)

const (
	SourceInline  = "inline"
	SourceCache   = "cache"
	SourceGridMET = "gridmet"
	SourceAgriMet = "agrimet"
	SourceUpload  = "upload"
)

type Query struct {
	Latitude  float64
	Longitude float64
	Elevation float64
	Start     time.Time
	End       time.Time
}

// Provider fetches a daily series for a location and date range.
type Provider interface {
	Name() string
	Fetch(ctx context.Context, q Query) (entities.WeatherSeries, error)
}

// Service resolves a series from the cache or, on a miss, from a provider
// whose result is then cached.
type Service struct {
	cache     Cache
	providers map[string]Provider
	observe   func(hit bool)
}

func NewService(cache Cache, providers ...Provider) *Service {
	s := &Service{cache: cache, providers: map[string]Provider{}, observe: func(bool) {}}
	for _, p := range providers {
		if p != nil {
			s.providers[p.Name()] = p
		}
	}
	return s
}

// OnLookup registers a hook called after every cache lookup.
func (s *Service) OnLookup(f func(hit bool)) {
	if f != nil {
		s.observe = f
	}
}

func (s *Service) Cache() Cache { return s.cache }

// Get returns a series covering [q.Start, q.End].
func (s *Service) Get(ctx context.Context, source string, q Query) (entities.WeatherSeries, error) {
	if s.cache != nil {
		cached, ok, err := s.cache.Load(q.Latitude, q.Longitude)
		if err != nil {
			log.Printf("weather: cache load %g,%g: %v", q.Latitude, q.Longitude, err)
		}
		hit := ok && cached.Covers(q.Start, q.End)
		s.observe(hit)
		if hit {
			return cached, nil
		}
	}
	if source == SourceCache || source == "" {
		return entities.WeatherSeries{}, &simerr.DataUnavailableError{Source: "weather",
			Reason: fmt.Sprintf("no cached series for %g,%g covering the season", q.Latitude, q.Longitude)}
	}
	p, ok := s.providers[source]
	if !ok {
		return entities.WeatherSeries{}, simerr.Invalid("weather", "source", "unknown or disabled source %q", source)
	}
	ser, err := p.Fetch(ctx, q)
	if err != nil {
		return entities.WeatherSeries{}, unavailable(p.Name(), "fetch failed", err)
	}
	if len(ser.Days) == 0 {
		return entities.WeatherSeries{}, &simerr.DataUnavailableError{Source: p.Name(), Reason: "empty result"}
	}
	if ser.Elevation == 0 {
		ser.Elevation = q.Elevation
	}
	if s.cache != nil {
		if err := s.cache.Save(q.Latitude, q.Longitude, ser); err != nil {
			log.Printf("weather: cache save %g,%g: %v", q.Latitude, q.Longitude, err)
		}
	}
	return ser, nil
}

func unavailable(source, reason string, err error) error {
	var du *simerr.DataUnavailableError
	if errors.As(err, &du) {
		return err
	}
	return &simerr.DataUnavailableError{Source: source, Reason: reason, Err: err}
}
