package service

import (
	"time"

	"github.com/ayurwell-next/internal/constants"
	"github.com/ayurwell-next/internal/models"
	"github.com/ayurwell-next/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// outboxWriter 在业务事务内写入发件箱消息，提交后再通知投递
type outboxWriter struct {
	repo *repository.GormOutboxRepository
	ids  []uint
}

func newOutboxWriter(repo repository.OutboxRepository, tx *gorm.DB) *outboxWriter {
	return &outboxWriter{repo: repo.WithTx(tx)}
}

func (w *outboxWriter) task(topic, aggregateType string, aggregateID uint, payload models.JSON) error {
	return w.write(constants.OutboxKindTask, topic, aggregateType, aggregateID, payload)
}

func (w *outboxWriter) event(topic, aggregateType string, aggregateID uint, payload models.JSON) error {
	return w.write(constants.OutboxKindEvent, topic, aggregateType, aggregateID, payload)
}

func (w *outboxWriter) write(kind, topic, aggregateType string, aggregateID uint, payload models.JSON) error {
	msg := &models.OutboxMessage{
		MessageID:     uuid.NewString(),
		Kind:          kind,
		Topic:         topic,
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		Payload:       payload,
		Status:        constants.OutboxStatusPending,
		NextAttemptAt: time.Now(),
	}
	if err := w.repo.Create(msg); err != nil {
		return err
	}
	w.ids = append(w.ids, msg.ID)
	return nil
}

// notifyOutbox 事务提交后触发即时投递，失败时由定时扫描兜底
func notifyOutbox(notifier TaskNotifier, ids []uint) {
	if notifier == nil || len(ids) == 0 {
		return
	}
	notifier.NotifyOutbox(ids)
}

func orderEventPayload(order *models.Order, extra models.JSON) models.JSON {
	payload := models.JSON{
		"order_id":       order.ID,
		"order_no":       order.OrderNo,
		"user_id":        order.UserID,
		"status":         order.Status,
		"payment_method": order.PaymentMethod,
		"total_amount":   order.TotalAmount.String(),
	}
	for key, value := range extra {
		payload[key] = value
	}
	return payload
}
