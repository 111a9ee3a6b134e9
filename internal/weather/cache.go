package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/LeonardoBeccarini/cropwater/internal/model/entities"
)

// Cache stores one series per coordinate pair. Concurrent writers to the
// same key are last-writer-wins.
type Cache interface {
	Load(lat, lon float64) (entities.WeatherSeries, bool, error)
	Save(lat, lon float64, s entities.WeatherSeries) error
}

type cacheFile struct {
	entities.WeatherSeries
	Timestamp float64 `json:"timestamp"` // unix seconds
}

// FileCache keeps weather_<lat>_<lon>.json files in a directory.
type FileCache struct {
	dir string
	now func() time.Time
}

var _ Cache = (*FileCache)(nil)

func NewFileCache(dir string) (*FileCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("weather cache dir: %w", err)
	}
	return &FileCache{dir: dir, now: time.Now}, nil
}

func coord(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }

func (c *FileCache) path(lat, lon float64) string {
	return filepath.Join(c.dir, "weather_"+coord(lat)+"_"+coord(lon)+".json")
}

func (c *FileCache) Load(lat, lon float64) (entities.WeatherSeries, bool, error) {
	b, err := os.ReadFile(c.path(lat, lon))
	if errors.Is(err, fs.ErrNotExist) {
		return entities.WeatherSeries{}, false, nil
	}
	if err != nil {
		return entities.WeatherSeries{}, false, fmt.Errorf("read weather cache: %w", err)
	}
	var f cacheFile
	if err := json.Unmarshal(b, &f); err != nil {
		return entities.WeatherSeries{}, false, fmt.Errorf("decode weather cache: %w", err)
	}
	return f.WeatherSeries, true, nil
}

// Save writes to a temporary file and renames it over the old one.
func (c *FileCache) Save(lat, lon float64, s entities.WeatherSeries) error {
	s.Latitude, s.Longitude = lat, lon
	f := cacheFile{WeatherSeries: s, Timestamp: float64(c.now().UnixNano()) / 1e9}
	b, err := json.MarshalIndent(f, "", "    ")
	if err != nil {
		return fmt.Errorf("encode weather cache: %w", err)
	}
	dst := c.path(lat, lon)
	tmp := dst + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write weather cache: %w", err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write weather cache: %w", err)
	}
	return nil
}

// Sweep deletes cache files whose embedded timestamp is older than maxAge.
// Unreadable files are skipped.
func (c *FileCache) Sweep(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return 0, fmt.Errorf("sweep weather cache: %w", err)
	}
	cutoff := c.now().Add(-maxAge)
	removed := 0
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, "weather_") || !strings.HasSuffix(name, ".json") {
			continue
		}
		p := filepath.Join(c.dir, name)
		b, err := os.ReadFile(p)
		if err != nil {
			log.Printf("weather-cache: skip %s: %v", name, err)
			continue
		}
		var meta struct {
			Timestamp *float64 `json:"timestamp"`
		}
		if err := json.Unmarshal(b, &meta); err != nil || meta.Timestamp == nil {
			log.Printf("weather-cache: skip %s: no readable timestamp", name)
			continue
		}
		saved := time.Unix(0, int64(*meta.Timestamp*1e9))
		if saved.Before(cutoff) {
			if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
				log.Printf("weather-cache: remove %s: %v", name, err)
				continue
			}
			removed++
		}
	}
	return removed, nil
}

// RunSweeper calls Sweep every interval until ctx is done.
func (c *FileCache) RunSweeper(ctx context.Context, every, maxAge time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := c.Sweep(maxAge)
			if err != nil {
				log.Printf("weather-cache: sweep error: %v", err)
			} else if n > 0 {
				log.Printf("weather-cache: removed %d expired files", n)
			}
		}
	}
}
