package queue

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ayurwell-next/internal/config"
	"github.com/ayurwell-next/internal/constants"
	"github.com/ayurwell-next/internal/logger"

	"github.com/hibiken/asynq"
)

const (
	// DefaultQueue 默认队列名称
	DefaultQueue = constants.QueueDefault
)

// Client 队列客户端封装
type Client struct {
	client       *asynq.Client
	enabled      bool
	defaultQueue string
}

// NewClient 创建队列客户端
func NewClient(cfg *config.QueueConfig) (*Client, error) {
	if cfg == nil || !cfg.Enabled {
		return &Client{enabled: false, defaultQueue: DefaultQueue}, nil
	}
	opt := buildRedisOpt(cfg)
	client := asynq.NewClient(opt)
	return &Client{
		client:       client,
		enabled:      true,
		defaultQueue: DefaultQueue,
	}, nil
}

// Enabled 判断是否启用
func (c *Client) Enabled() bool {
	return c != nil && c.enabled && c.client != nil
}

// Close 关闭客户端
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// EnqueueOutboxDispatch 推送发件箱投递任务，消息在事务提交后立即投递
func (c *Client) EnqueueOutboxDispatch(payload OutboxDispatchPayload, opts ...asynq.Option) error {
	if !c.Enabled() || len(payload.MessageIDs) == 0 {
		return nil
	}
	task, err := NewOutboxDispatchTask(payload)
	if err != nil {
		return err
	}
	options := append([]asynq.Option{asynq.Queue(c.defaultQueue), asynq.MaxRetry(3)}, opts...)
	_, err = c.client.Enqueue(task, options...)
	return err
}

// NotifyOutbox 提交后推送即时投递任务；队列未启用或推送失败时由定时扫描兜底
func (c *Client) NotifyOutbox(messageIDs []uint) {
	if err := c.EnqueueOutboxDispatch(OutboxDispatchPayload{MessageIDs: messageIDs}); err != nil {
		logger.Warnw("queue_enqueue_outbox_dispatch_failed", "message_ids", messageIDs, "error", err)
	}
}

// EnqueueAssignAWB 推送 AWB 分配任务
func (c *Client) EnqueueAssignAWB(payload AssignAWBPayload, delay time.Duration) error {
	if !c.Enabled() {
		return nil
	}
	if delay < 0 {
		delay = 0
	}
	task, err := NewAssignAWBTask(payload)
	if err != nil {
		return err
	}
	options := []asynq.Option{
		asynq.Queue(c.defaultQueue),
		asynq.ProcessIn(delay),
		asynq.TaskID(fmt.Sprintf("assign-awb-%d", payload.ShipmentID)),
		asynq.Retention(time.Minute),
	}
	_, err = c.client.Enqueue(task, options...)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	return err
}

// ScheduleAWBAssign 延迟推送 AWB 分配；同一运单同时只排队一个任务
func (c *Client) ScheduleAWBAssign(shipmentID uint, delay time.Duration) {
	if err := c.EnqueueAssignAWB(AssignAWBPayload{ShipmentID: shipmentID}, delay); err != nil {
		logger.Warnw("queue_enqueue_assign_awb_failed", "shipment_id", shipmentID, "error", err)
	}
}

// BuildServerConfig 生成队列服务配置
func BuildServerConfig(cfg *config.QueueConfig) (asynq.RedisClientOpt, asynq.Config) {
	opt := buildRedisOpt(cfg)
	concurrency := 10
	if cfg != nil && cfg.Concurrency > 0 {
		concurrency = cfg.Concurrency
	}
	queues := map[string]int{DefaultQueue: 1}
	if cfg != nil && len(cfg.Queues) > 0 {
		queues = cfg.Queues
	}
	return opt, asynq.Config{
		Concurrency: concurrency,
		Queues:      queues,
	}
}

func buildRedisOpt(cfg *config.QueueConfig) asynq.RedisClientOpt {
	host := "127.0.0.1"
	port := 6379
	password := ""
	db := 0
	if cfg != nil {
		if strings.TrimSpace(cfg.Host) != "" {
			host = strings.TrimSpace(cfg.Host)
		}
		if cfg.Port > 0 {
			port = cfg.Port
		}
		password = cfg.Password
		db = cfg.DB
	}
	return asynq.RedisClientOpt{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	}
}
