package events

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/ayurwell-next/internal/config"
	"github.com/ayurwell-next/internal/logger"

	"github.com/streadway/amqp"
)

const defaultExchange = "fulfillment.events"

// RabbitMQPublisher 发布到 topic 交换机，路由键为事件主题
type RabbitMQPublisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
}

// NewRabbitMQPublisher 建立连接并声明交换机
func NewRabbitMQPublisher(cfg config.RabbitMQConfig) (*RabbitMQPublisher, error) {
	url := strings.TrimSpace(cfg.URL)
	if url == "" {
		return nil, errors.New("rabbitmq url is required")
	}
	exchange := strings.TrimSpace(cfg.Exchange)
	if exchange == "" {
		exchange = defaultExchange
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect rabbitmq failed: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open rabbitmq channel failed: %w", err)
	}
	if err := channel.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = channel.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange failed: %w", err)
	}
	logger.Infow("events_rabbitmq_ready", "exchange", exchange)
	return &RabbitMQPublisher{conn: conn, channel: channel, exchange: exchange}, nil
}

// Publish 发布持久化消息
func (p *RabbitMQPublisher) Publish(_ context.Context, event Envelope) error {
	body, err := event.Encode()
	if err != nil {
		return fmt.Errorf("encode event failed: %w", err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	err = p.channel.Publish(p.exchange, event.Topic, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.ID,
		Timestamp:    event.OccurredAt,
		Type:         event.Topic,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish to rabbitmq failed: %w", err)
	}
	return nil
}

// Close 关闭通道与连接
func (p *RabbitMQPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
