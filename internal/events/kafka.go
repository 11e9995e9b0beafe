package events

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ayurwell-next/internal/config"
	"github.com/ayurwell-next/internal/logger"

	"github.com/segmentio/kafka-go"
)

// KafkaPublisher 每个事件主题映射为一个 Kafka topic
type KafkaPublisher struct {
	writer      *kafka.Writer
	topicPrefix string
}

// NewKafkaPublisher 创建 Kafka 写入器
func NewKafkaPublisher(cfg config.KafkaConfig) (*KafkaPublisher, error) {
	brokers := make([]string, 0, len(cfg.Brokers))
	for _, broker := range cfg.Brokers {
		if trimmed := strings.TrimSpace(broker); trimmed != "" {
			brokers = append(brokers, trimmed)
		}
	}
	if len(brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		MaxAttempts:            3,
		BatchTimeout:           50 * time.Millisecond,
		AllowAutoTopicCreation: true,
		Logger:                 kafka.LoggerFunc(logger.Printf("kafka_writer", false)),
		ErrorLogger:            kafka.LoggerFunc(logger.Printf("kafka_writer", true)),
	}
	logger.Infow("events_kafka_ready", "brokers", brokers)
	return &KafkaPublisher{writer: writer, topicPrefix: strings.TrimSpace(cfg.TopicPrefix)}, nil
}

// TopicName 拼接前缀后的 Kafka topic
func (p *KafkaPublisher) TopicName(topic string) string {
	if p.topicPrefix == "" {
		return topic
	}
	return p.topicPrefix + "." + topic
}

// Publish 以聚合键写入，保证同一聚合落在同一分区
func (p *KafkaPublisher) Publish(ctx context.Context, event Envelope) error {
	body, err := event.Encode()
	if err != nil {
		return fmt.Errorf("encode event failed: %w", err)
	}
	msg := kafka.Message{
		Topic: p.TopicName(event.Topic),
		Key:   []byte(event.Key()),
		Value: body,
		Time:  event.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(event.ID)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish to kafka failed: %w", err)
	}
	return nil
}

// Close 刷新并关闭写入器
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
