package weather

import (
	"context"
	"encoding/csv"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

type upstream struct {
	http *http.Client
}

func newUpstream(timeout time.Duration) upstream {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return upstream{http: &http.Client{Timeout: timeout}}
}

// getCSV fetches a CSV document and returns all its records, header included.
func (u upstream) getCSV(ctx context.Context, base string, q url.Values) ([][]string, error) {
	target := base
	if len(q) > 0 {
		target += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	res, err := u.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, fmt.Errorf("GET %s -> %s", base, res.Status)
	}
	r := csv.NewReader(res.Body)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	r.Comment = '#'
	r.LazyQuotes = true
	return r.ReadAll()
}
