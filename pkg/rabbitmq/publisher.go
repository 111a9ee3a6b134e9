package rabbitmq

import (
	"encoding/json"
	"fmt"
	"log"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

type IPublisher interface {
	PublishMessage(message any) error
	Close()
}

// Publisher sends to a fixed topic.
type Publisher struct {
	client mqtt.Client
	topic  string
	qos    byte
}

var _ IPublisher = (*Publisher)(nil)

// NewPublisher picks the QoS for topic with QoSFor.
func NewPublisher(client mqtt.Client, topic string) *Publisher {
	return &Publisher{client: client, topic: topic, qos: QoSFor(topic)}
}

// PublishMessage sends strings and byte slices as they are; anything else is JSON-encoded.
func (p *Publisher) PublishMessage(message any) error {
	var payload []byte
	switch m := message.(type) {
	case string:
		payload = []byte(m)
	case []byte:
		payload = m
	default:
		b, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("encode message for %s: %w", p.topic, err)
		}
		payload = b
	}

	token := p.client.Publish(p.topic, p.qos, false, payload)
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("failed to publish message: %w", token.Error())
	}
	log.Printf("mqtt: published %d bytes to %s", len(payload), p.topic)
	return nil
}

func (p *Publisher) Close() {
	if p.client.IsConnected() {
		p.client.Disconnect(250)
		log.Println("mqtt: publisher disconnected")
	}
}
