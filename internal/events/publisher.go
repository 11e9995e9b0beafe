package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ayurwell-next/internal/config"
	"github.com/ayurwell-next/internal/logger"
)

// 事件驱动类型
const (
	DriverNone     = "none"
	DriverLog      = "log"
	DriverRabbitMQ = "rabbitmq"
	DriverKafka    = "kafka"
)

// Envelope 对外发布的领域事件
type Envelope struct {
	ID            string                 `json:"id"`
	Topic         string                 `json:"topic"`
	AggregateType string                 `json:"aggregate_type"`
	AggregateID   uint                   `json:"aggregate_id"`
	Payload       map[string]interface{} `json:"payload"`
	OccurredAt    time.Time              `json:"occurred_at"`
}

// Key 分区键，同一聚合的事件保持顺序
func (e Envelope) Key() string {
	return fmt.Sprintf("%s:%d", e.AggregateType, e.AggregateID)
}

// Encode 序列化事件
func (e Envelope) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// Publisher 事件发布器
type Publisher interface {
	Publish(ctx context.Context, event Envelope) error
	Close() error
}

// NewPublisher 按配置创建发布器
func NewPublisher(cfg config.EventsConfig) (Publisher, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", DriverLog:
		return LogPublisher{}, nil
	case DriverNone:
		return NoopPublisher{}, nil
	case DriverRabbitMQ:
		return NewRabbitMQPublisher(cfg.RabbitMQ)
	case DriverKafka:
		return NewKafkaPublisher(cfg.Kafka)
	default:
		return nil, fmt.Errorf("unsupported events driver: %s", cfg.Driver)
	}
}

// LogPublisher 仅写日志
type LogPublisher struct{}

// Publish 输出事件日志
func (LogPublisher) Publish(_ context.Context, event Envelope) error {
	logger.Infow("domain_event",
		"event_id", event.ID,
		"topic", event.Topic,
		"aggregate", event.Key(),
		"payload", event.Payload,
	)
	return nil
}

// Close 无需释放资源
func (LogPublisher) Close() error { return nil }

// NoopPublisher 丢弃所有事件
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, Envelope) error { return nil }

func (NoopPublisher) Close() error { return nil }
