package service

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/ayurwell-next/internal/constants"
	"github.com/ayurwell-next/internal/events"
	"github.com/ayurwell-next/internal/logger"
	"github.com/ayurwell-next/internal/models"
	"github.com/ayurwell-next/internal/repository"
)

const (
	defaultOutboxBatchSize   = 50
	defaultOutboxMaxAttempts = 8
	outboxBaseBackoff        = 30 * time.Second
	outboxMaxBackoff         = 30 * time.Minute
	outboxClaimTimeout       = 5 * time.Minute
)

// OutboxTaskHandler 发件箱任务处理函数
type OutboxTaskHandler func(ctx context.Context, msg *models.OutboxMessage) error

// OutboxDispatchResult 单轮投递统计
type OutboxDispatchResult struct {
	Claimed int
	Sent    int
	Retried int
	Dead    int
}

// OutboxService 发件箱投递：认领、执行任务或发布事件、失败退避
type OutboxService struct {
	repo        repository.OutboxRepository
	publisher   events.Publisher
	maxAttempts int

	mu       sync.RWMutex
	handlers map[string]OutboxTaskHandler
}

// NewOutboxService 创建发件箱服务
func NewOutboxService(repo repository.OutboxRepository, publisher events.Publisher, maxAttempts int) *OutboxService {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	if maxAttempts <= 0 {
		maxAttempts = defaultOutboxMaxAttempts
	}
	return &OutboxService{
		repo:        repo,
		publisher:   publisher,
		maxAttempts: maxAttempts,
		handlers:    make(map[string]OutboxTaskHandler),
	}
}

// RegisterTaskHandler 注册任务主题的处理函数
func (s *OutboxService) RegisterTaskHandler(topic string, handler OutboxTaskHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[topic] = handler
}

// RegisterFulfillmentHandlers 注册支付成功后的发货任务
func (s *OutboxService) RegisterFulfillmentHandlers(shipments *ShipmentService) {
	s.RegisterTaskHandler(constants.OutboxTaskCreateShipment, func(ctx context.Context, msg *models.OutboxMessage) error {
		return shipments.FulfillPaidOrder(ctx, payloadUint(msg.Payload, "order_id"))
	})
}

func (s *OutboxService) handler(topic string) (OutboxTaskHandler, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	handler, ok := s.handlers[topic]
	return handler, ok
}

// DispatchPending 投递到期消息
func (s *OutboxService) DispatchPending(ctx context.Context, limit int) (OutboxDispatchResult, error) {
	if limit <= 0 {
		limit = defaultOutboxBatchSize
	}
	now := time.Now()
	rows, err := s.repo.ListDue(now, now.Add(-outboxClaimTimeout), limit)
	if err != nil {
		return OutboxDispatchResult{}, err
	}
	var result OutboxDispatchResult
	for i := range rows {
		if ctx.Err() != nil {
			break
		}
		outcome, err := s.dispatch(ctx, &rows[i])
		if err != nil {
			logger.Warnw("outbox_dispatch_failed", "message_id", rows[i].ID, "topic", rows[i].Topic, "error", err)
		}
		result.add(outcome)
	}
	return result, nil
}

// DispatchByID 投递指定消息；消息已被认领或已完成时直接返回
func (s *OutboxService) DispatchByID(ctx context.Context, id uint) error {
	msg, err := s.repo.GetByID(id)
	if err != nil {
		return err
	}
	if msg == nil {
		return ErrOutboxMessageNotFound
	}
	_, err = s.dispatch(ctx, msg)
	return err
}

type dispatchOutcome int

const (
	outcomeSkipped dispatchOutcome = iota
	outcomeSent
	outcomeRetried
	outcomeDead
)

func (r *OutboxDispatchResult) add(outcome dispatchOutcome) {
	switch outcome {
	case outcomeSent:
		r.Claimed++
		r.Sent++
	case outcomeRetried:
		r.Claimed++
		r.Retried++
	case outcomeDead:
		r.Claimed++
		r.Dead++
	}
}

func (s *OutboxService) dispatch(ctx context.Context, msg *models.OutboxMessage) (dispatchOutcome, error) {
	now := time.Now()
	claimed, err := s.repo.Claim(msg.ID, now, now.Add(-outboxClaimTimeout))
	if err != nil {
		return outcomeSkipped, err
	}
	if !claimed {
		return outcomeSkipped, nil
	}

	runErr := s.run(ctx, msg)
	if runErr == nil {
		if err := s.repo.MarkSent(msg.ID, time.Now()); err != nil {
			return outcomeSkipped, err
		}
		return outcomeSent, nil
	}

	attempts := msg.Attempts + 1
	lastError := truncateError(runErr)
	if attempts >= s.maxAttempts {
		logger.Errorw("outbox_message_dead", "message_id", msg.ID, "topic", msg.Topic, "attempts", attempts, "error", runErr)
		if err := s.repo.MarkDead(msg.ID, attempts, lastError); err != nil {
			return outcomeSkipped, err
		}
		return outcomeDead, runErr
	}
	if err := s.repo.MarkRetry(msg.ID, attempts, time.Now().Add(OutboxBackoff(attempts)), lastError); err != nil {
		return outcomeSkipped, err
	}
	return outcomeRetried, runErr
}

func (s *OutboxService) run(ctx context.Context, msg *models.OutboxMessage) error {
	switch msg.Kind {
	case constants.OutboxKindTask:
		handler, ok := s.handler(msg.Topic)
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownOutboxTopic, msg.Topic)
		}
		return handler(ctx, msg)
	case constants.OutboxKindEvent:
		return s.publisher.Publish(ctx, events.Envelope{
			ID:            msg.MessageID,
			Topic:         msg.Topic,
			AggregateType: msg.AggregateType,
			AggregateID:   msg.AggregateID,
			Payload:       map[string]interface{}(msg.Payload),
			OccurredAt:    msg.CreatedAt,
		})
	default:
		return fmt.Errorf("%w: kind %s", ErrUnknownOutboxTopic, msg.Kind)
	}
}

// OutboxBackoff 指数退避：30s、60s、120s…，上限 30 分钟
func OutboxBackoff(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	delay := time.Duration(float64(outboxBaseBackoff) * math.Pow(2, float64(attempts-1)))
	if delay > outboxMaxBackoff || delay <= 0 {
		return outboxMaxBackoff
	}
	return delay
}

// maxErrorBytes last_error 与 failure_reason 的最大字节数
const maxErrorBytes = 1000

func truncateError(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.TrimSpace(err.Error())
	if len(msg) <= maxErrorBytes {
		return msg
	}
	// 按字符边界截断，避免写入半个多字节字符
	cut := maxErrorBytes
	for cut > 0 && !utf8.RuneStart(msg[cut]) {
		cut--
	}
	return msg[:cut]
}

// payloadUint 读取发件箱载荷中的 ID，兼容 JSON 解码后的数字类型
func payloadUint(payload models.JSON, key string) uint {
	switch v := payload[key].(type) {
	case float64:
		return uint(v)
	case int:
		return uint(v)
	case int64:
		return uint(v)
	case uint:
		return v
	case string:
		var parsed uint
		_, _ = fmt.Sscanf(v, "%d", &parsed)
		return parsed
	default:
		return 0
	}
}
