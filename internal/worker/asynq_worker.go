package worker

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/ayurwell-next/internal/logger"
	"github.com/ayurwell-next/internal/provider"
	"github.com/ayurwell-next/internal/queue"
	"github.com/ayurwell-next/internal/service"

	"github.com/hibiken/asynq"
)

// Consumer 异步任务消费者
type Consumer struct {
	*provider.Container
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
	}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskOutboxDispatch, c.handleOutboxDispatch)
	mux.HandleFunc(queue.TaskAssignAWB, c.handleAssignAWB)
}

// handleOutboxDispatch 事务提交后的即时投递；单条失败由发件箱自身的退避重试负责，不让 asynq 重放整批
func (c *Consumer) handleOutboxDispatch(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil || c.OutboxService == nil {
		logger.Debugw("worker_outbox_dispatch_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.OutboxDispatchPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_outbox_dispatch_unmarshal_failed", "error", err)
		return err
	}
	for _, id := range payload.MessageIDs {
		if id == 0 {
			continue
		}
		err := c.OutboxService.DispatchByID(ctx, id)
		switch {
		case err == nil:
		case errors.Is(err, service.ErrOutboxMessageNotFound):
			logger.Debugw("worker_outbox_dispatch_skip_not_found", "message_id", id)
		default:
			logger.Warnw("worker_outbox_dispatch_failed", "message_id", id, "error", err)
		}
	}
	return nil
}

func (c *Consumer) handleAssignAWB(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil || c.ShipmentService == nil {
		logger.Debugw("worker_assign_awb_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.AssignAWBPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_assign_awb_unmarshal_failed", "error", err)
		return err
	}
	if payload.ShipmentID == 0 {
		logger.Debugw("worker_assign_awb_skip_invalid_payload", "shipment_id", payload.ShipmentID)
		return nil
	}
	shipment, err := c.ShipmentService.AssignAWB(ctx, payload.ShipmentID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrShipmentNotFound):
			logger.Debugw("worker_assign_awb_skip_not_found", "shipment_id", payload.ShipmentID)
			return nil
		case errors.Is(err, service.ErrIllegalTransition):
			logger.Debugw("worker_assign_awb_skip_status", "shipment_id", payload.ShipmentID)
			return nil
		default:
			// 失败已记录在运单上，交给定时补分配
			logger.Warnw("worker_assign_awb_failed", "shipment_id", payload.ShipmentID, "error", err)
			return nil
		}
	}
	if shipment != nil && !shipment.HasAWB() {
		logger.Infow("worker_assign_awb_pending", "shipment_id", payload.ShipmentID)
	}
	return nil
}
