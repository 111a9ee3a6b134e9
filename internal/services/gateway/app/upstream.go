package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"
)

// ErrNotConfigured is returned by an Upstream with an empty base URL.
var ErrNotConfigured = errors.New("upstream not configured")

type BreakerSettings struct {
	Fails    int
	Open     time.Duration
	Interval time.Duration
}

// Upstream wraps HTTP calls to one service with its own circuit breaker.
type Upstream struct {
	name   string
	base   string
	client *http.Client
	cb     *gobreaker.CircuitBreaker
}

func NewUpstream(name, base string, timeout time.Duration, s BreakerSettings) *Upstream {
	fails := s.Fails
	if fails < 1 {
		fails = 3
	}
	open := s.Open
	if open <= 0 {
		open = 10 * time.Second
	}
	return &Upstream{
		name:   name,
		base:   strings.TrimRight(strings.TrimSpace(base), "/"),
		client: &http.Client{Timeout: timeout},
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:     name,
			Interval: s.Interval,
			Timeout:  open,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= uint32(fails)
			},
		}),
	}
}

func (u *Upstream) State() gobreaker.State { return u.cb.State() }

// Response is a buffered upstream answer.
type Response struct {
	Status      int
	ContentType string
	Disposition string
	Body        []byte
}

// Do sends one request through the breaker. Transport errors and 5xx
// answers count as failures; a 5xx is still returned to the caller.
func (u *Upstream) Do(ctx context.Context, method, path string, q url.Values, contentType string, body []byte) (*Response, error) {
	if u == nil || u.base == "" {
		return nil, ErrNotConfigured
	}
	target := u.base + "/" + strings.TrimLeft(path, "/")
	if len(q) > 0 {
		target += "?" + q.Encode()
	}

	var resp *Response
	_, err := u.cb.Execute(func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		res, err := u.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%s request error: %w", u.name, err)
		}
		defer res.Body.Close()
		b, err := io.ReadAll(res.Body)
		if err != nil {
			return nil, fmt.Errorf("%s read error: %w", u.name, err)
		}
		resp = &Response{
			Status:      res.StatusCode,
			ContentType: res.Header.Get("Content-Type"),
			Disposition: res.Header.Get("Content-Disposition"),
			Body:        b,
		}
		if res.StatusCode >= 500 {
			return nil, fmt.Errorf("%s upstream status %d", u.name, res.StatusCode)
		}
		return nil, nil
	})
	if resp != nil {
		return resp, nil
	}
	return nil, err
}

// GetJSON performs a GET and decodes a 2xx body into out.
func (u *Upstream) GetJSON(ctx context.Context, path string, q url.Values, out any) error {
	resp, err := u.Do(ctx, http.MethodGet, path, q, "", nil)
	if err != nil {
		return err
	}
	if resp.Status < 200 || resp.Status >= 300 {
		return fmt.Errorf("%s upstream status %d", u.name, resp.Status)
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return fmt.Errorf("%s decode error: %w", u.name, err)
	}
	return nil
}
