package simulator

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/LeonardoBeccarini/cropwater/internal/model/messages"
	"github.com/LeonardoBeccarini/cropwater/pkg/dedup"
	"github.com/LeonardoBeccarini/cropwater/pkg/rabbitmq"
)

const (
	DefaultRequestTopic = "simulation/request/#"
	DefaultResultTopic  = "event/simulationResult/{field}"
)

type PublisherFactory func(topic string) rabbitmq.IPublisher

// Consumer runs simulations requested over MQTT and publishes a
// SimulationCompletedEvent for each, successful or not.
type Consumer struct {
	sim         *Orchestrator
	consumer    rabbitmq.IConsumer
	publisher   PublisherFactory
	dedup       *dedup.Deduper
	resultTopic string
	now         func() time.Time
}

func NewConsumer(sim *Orchestrator, c rabbitmq.IConsumer, f PublisherFactory, d *dedup.Deduper) *Consumer {
	return &Consumer{sim: sim, consumer: c, publisher: f, dedup: d, resultTopic: DefaultResultTopic, now: time.Now}
}

func (c *Consumer) SetResultTopicTemplate(t string) {
	if strings.TrimSpace(t) != "" {
		c.resultTopic = t
	}
}

// Start blocks until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context) {
	c.consumer.SetHandler(func(_ string, m mqtt.Message) error {
		return c.HandlePayload(ctx, m.Topic(), m.Payload())
	})
	c.consumer.ConsumeMessage(ctx)
}

// fieldFromTopic returns the segment after simulation/request/.
func fieldFromTopic(topic string) string {
	parts := strings.Split(strings.Trim(topic, "/"), "/")
	if len(parts) >= 3 {
		return parts[len(parts)-1]
	}
	return ""
}

// HandlePayload processes one request body. Malformed bodies are answered
// with a FAIL event and do not stop the stream.
func (c *Consumer) HandlePayload(ctx context.Context, topic string, payload []byte) error {
	key := dedup.Key(payload)
	if c.dedup != nil && !c.dedup.ShouldProcess(key) {
		log.Printf("simulator: duplicate request on %s dropped", topic)
		return nil
	}

	var req Request
	if err := json.Unmarshal(payload, &req); err != nil {
		field := fieldFromTopic(topic)
		log.Printf("simulator: invalid JSON on %s: %v", topic, err)
		return c.publish(field, messages.Failed(field, uuid.NewString(), "", fmt.Errorf("invalid request: %w", err), c.now()), key)
	}
	if req.FieldID == "" {
		req.FieldID = fieldFromTopic(topic)
	}
	if req.RunID == "" {
		req.RunID = uuid.NewString()
	}

	res, err := c.sim.Simulate(ctx, req)
	var ev messages.SimulationCompletedEvent
	if err != nil {
		ev = messages.Failed(req.FieldID, req.RunID, req.Crop.Name, err, c.now())
	} else {
		ev = messages.Completed(req.FieldID, &res.SimulationResult, c.now())
	}
	return c.publish(req.FieldID, ev, key)
}

func (c *Consumer) publish(field string, ev messages.SimulationCompletedEvent, key string) error {
	if field == "" {
		field = "unknown"
	}
	topic := strings.ReplaceAll(c.resultTopic, "{field}", field)
	if err := c.publisher(topic).PublishMessage(ev); err != nil {
		// let a redelivery try again
		if c.dedup != nil {
			c.dedup.Forget(key)
		}
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	log.Printf("simulator: run %s field=%s status=%s -> %s", ev.RunID, field, ev.Status, topic)
	return nil
}
