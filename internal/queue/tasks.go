package queue

import (
	"encoding/json"

	"github.com/ayurwell-next/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskOutboxDispatch 发件箱即时投递任务
	TaskOutboxDispatch = constants.TaskOutboxDispatch
	// TaskAssignAWB 运单 AWB 分配任务
	TaskAssignAWB = constants.TaskAssignAWB
)

// OutboxDispatchPayload 发件箱投递任务载荷
type OutboxDispatchPayload struct {
	MessageIDs []uint `json:"message_ids"`
}

// AssignAWBPayload AWB 分配任务载荷
type AssignAWBPayload struct {
	ShipmentID uint `json:"shipment_id"`
}

// NewOutboxDispatchTask 创建发件箱投递任务
func NewOutboxDispatchTask(payload OutboxDispatchPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskOutboxDispatch, body), nil
}

// NewAssignAWBTask 创建 AWB 分配任务
func NewAssignAWBTask(payload AssignAWBPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAssignAWB, body), nil
}
