package weather

import (
	"context"
	"errors"
	"time"

	"github.com/LeonardoBeccarini/cropwater/internal/model/entities"
	"github.com/LeonardoBeccarini/cropwater/internal/simerr"
	"github.com/sony/gobreaker"
)

type BreakerSettings struct {
	Fails    int
	Open     time.Duration
	Interval time.Duration
}

func newBreaker(name string, s BreakerSettings) *gobreaker.CircuitBreaker {
	fails := s.Fails
	if fails <= 0 {
		fails = 3
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:     name,
		Interval: s.Interval,
		Timeout:  s.Open,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= uint32(fails)
		},
	})
}

type breakerProvider struct {
	next Provider
	cb   *gobreaker.CircuitBreaker
}

// WithBreaker trips after consecutive fetch failures and then fails fast
// with DataUnavailableError until the open period ends.
func WithBreaker(p Provider, s BreakerSettings) Provider {
	return &breakerProvider{next: p, cb: newBreaker(p.Name(), s)}
}

func (b *breakerProvider) Name() string { return b.next.Name() }

func (b *breakerProvider) Fetch(ctx context.Context, q Query) (entities.WeatherSeries, error) {
	res, err := b.cb.Execute(func() (any, error) {
		s, err := b.next.Fetch(ctx, q)
		if err == nil && len(s.Days) == 0 {
			err = errors.New("empty series")
		}
		return s, err
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return entities.WeatherSeries{}, &simerr.DataUnavailableError{Source: b.Name(), Reason: "circuit open", Err: err}
	}
	if err != nil {
		return entities.WeatherSeries{}, err
	}
	return res.(entities.WeatherSeries), nil
}

func (b *breakerProvider) State() gobreaker.State { return b.cb.State() }
