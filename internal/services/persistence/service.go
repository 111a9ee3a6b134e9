package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/LeonardoBeccarini/cropwater/internal/model/messages"
	"github.com/LeonardoBeccarini/cropwater/pkg/dedup"
	"github.com/LeonardoBeccarini/cropwater/pkg/rabbitmq"
)

const DefaultTopic = "event/simulationResult/#"

// PointWriter is the part of api.WriteAPIBlocking the service needs.
type PointWriter interface {
	WritePoint(ctx context.Context, point ...*write.Point) error
}

// Service stores every SimulationCompletedEvent it receives: the daily
// table and summary go to Influx, the run record to the RunStore.
type Service struct {
	consumer rabbitmq.IConsumer
	writer   PointWriter
	store    RunStore
	dedup    *dedup.Deduper

	mu      sync.RWMutex
	lastErr time.Time
	stored  int64
}

func NewService(c rabbitmq.IConsumer, w PointWriter, store RunStore, d *dedup.Deduper) *Service {
	return &Service{
		consumer: c,
		writer:   w,
		store:    store,
		dedup:    d,
		lastErr:  time.Now().Add(-24 * time.Hour),
	}
}

// Start blocks until ctx is cancelled.
func (s *Service) Start(ctx context.Context) {
	s.consumer.SetHandler(func(topic string, msg mqtt.Message) error {
		return s.Handle(ctx, topic, msg.Payload())
	})
	s.consumer.ConsumeMessage(ctx)
}

func (s *Service) Handle(ctx context.Context, topic string, payload []byte) error {
	key := dedup.Key(payload)
	if s.dedup != nil && !s.dedup.ShouldProcess(key) {
		return nil
	}

	var ev messages.SimulationCompletedEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		log.Printf("persistence: invalid JSON on %s: %v", topic, err)
		return nil
	}
	if ev.RunID == "" {
		log.Printf("persistence: event without run_id on %s dropped", topic)
		return nil
	}

	if err := s.writer.WritePoint(ctx, Points(ev)...); err != nil {
		return s.fail(key, fmt.Errorf("influx write run %s: %w", ev.RunID, err))
	}
	if s.store != nil {
		if err := s.store.SaveRun(ctx, RecordFromEvent(ev)); err != nil {
			return s.fail(key, fmt.Errorf("save run %s: %w", ev.RunID, err))
		}
	}

	s.mu.Lock()
	s.stored++
	s.mu.Unlock()
	log.Printf("persistence: stored run %s field=%s status=%s days=%d", ev.RunID, ev.FieldID, ev.Status, len(ev.Daily))
	return nil
}

func (s *Service) fail(key string, err error) error {
	if s.dedup != nil {
		s.dedup.Forget(key)
	}
	s.mu.Lock()
	s.lastErr = time.Now()
	s.mu.Unlock()
	return err
}

// LastErrorAge is the time since the last failed write.
func (s *Service) LastErrorAge() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return time.Since(s.lastErr)
}

func (s *Service) Stored() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stored
}
