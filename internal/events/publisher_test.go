package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/ayurwell-next/internal/config"
)

func TestNewPublisherSelectsDriver(t *testing.T) {
	pub, err := NewPublisher(config.EventsConfig{})
	if err != nil {
		t.Fatalf("default driver failed: %v", err)
	}
	if _, ok := pub.(LogPublisher); !ok {
		t.Fatalf("expected log publisher, got %T", pub)
	}
	pub, err = NewPublisher(config.EventsConfig{Driver: "NONE"})
	if err != nil {
		t.Fatalf("none driver failed: %v", err)
	}
	if _, ok := pub.(NoopPublisher); !ok {
		t.Fatalf("expected noop publisher, got %T", pub)
	}
	if _, err := NewPublisher(config.EventsConfig{Driver: "sqs"}); err == nil {
		t.Fatalf("expected unsupported driver error")
	}
	if _, err := NewPublisher(config.EventsConfig{Driver: DriverKafka}); err == nil {
		t.Fatalf("expected kafka brokers error")
	}
	if _, err := NewPublisher(config.EventsConfig{Driver: DriverRabbitMQ}); err == nil {
		t.Fatalf("expected rabbitmq url error")
	}
}

func TestEnvelopeKeyAndEncode(t *testing.T) {
	event := Envelope{
		ID:            "evt-1",
		Topic:         "order.paid",
		AggregateType: "order",
		AggregateID:   42,
		Payload:       map[string]interface{}{"order_no": "AW42"},
		OccurredAt:    time.Unix(1700000000, 0).UTC(),
	}
	if event.Key() != "order:42" {
		t.Fatalf("unexpected key: %s", event.Key())
	}
	body, err := event.Encode()
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(body, &decoded); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if decoded["topic"] != "order.paid" || decoded["aggregate_id"].(float64) != 42 {
		t.Fatalf("unexpected envelope: %v", decoded)
	}
}

func TestKafkaTopicPrefix(t *testing.T) {
	pub, err := NewKafkaPublisher(config.KafkaConfig{Brokers: []string{" localhost:9092 "}, TopicPrefix: "ayurwell"})
	if err != nil {
		t.Fatalf("create kafka publisher failed: %v", err)
	}
	defer pub.Close()
	if got := pub.TopicName("refund.success"); got != "ayurwell.refund.success" {
		t.Fatalf("unexpected topic: %s", got)
	}
	if err := (LogPublisher{}).Publish(context.Background(), Envelope{Topic: "x"}); err != nil {
		t.Fatalf("log publish failed: %v", err)
	}
}
