package service

import (
	"fmt"

	"github.com/ayurwell-next/internal/constants"
)

// 订单事件
const (
	OrderEventPaymentCaptured = "payment_captured"
	OrderEventPaymentRejected = "payment_rejected"
	OrderEventConfirm         = "confirm"
	OrderEventShip            = "ship"
	OrderEventDeliver         = "deliver"
	OrderEventCancel          = "cancel"
	OrderEventRTOInitiate     = "rto_initiate"
	OrderEventRTODeliver      = "rto_deliver"
	OrderEventRefund          = "refund"
	OrderEventFail            = "fail"
)

// 运单事件
const (
	ShipmentEventAssignAWB      = "assign_awb"
	ShipmentEventPickUp         = "pick_up"
	ShipmentEventInTransit      = "in_transit"
	ShipmentEventOutForDelivery = "out_for_delivery"
	ShipmentEventDeliver        = "deliver"
	ShipmentEventCancel         = "cancel"
	ShipmentEventRTOInitiate    = "rto_initiate"
	ShipmentEventRTODeliver     = "rto_deliver"
)

// 退款事件
const (
	RefundEventGatewayAccepted  = "gateway_accepted"
	RefundEventGatewayRejected  = "gateway_rejected"
	RefundEventSettled          = "settled"
	RefundEventSettlementFailed = "settlement_failed"
)

// 退货事件
const (
	ReturnEventApprove        = "approve"
	ReturnEventReject         = "reject"
	ReturnEventCancel         = "cancel"
	ReturnEventSchedulePickup = "schedule_pickup"
	ReturnEventPickUp         = "pick_up"
	ReturnEventReceive        = "receive"
	ReturnEventComplete       = "complete"
)

type transitionKey struct {
	from  string
	event string
}

// StateMachine 状态迁移表：(当前状态, 事件) → 下一状态，表中不存在的组合一律非法
type StateMachine struct {
	name  string
	table map[transitionKey]string
}

type transitionRule struct {
	from []string
	to   string
}

func newStateMachine(name string, rules map[string]transitionRule) StateMachine {
	table := make(map[transitionKey]string)
	for event, rule := range rules {
		for _, from := range rule.from {
			table[transitionKey{from: from, event: event}] = rule.to
		}
	}
	return StateMachine{name: name, table: table}
}

// Next 计算下一状态
func (m StateMachine) Next(current, event string) (string, error) {
	next, ok := m.table[transitionKey{from: current, event: event}]
	if !ok {
		return "", fmt.Errorf("%w: %s %s --%s-->", ErrIllegalTransition, m.name, current, event)
	}
	return next, nil
}

// Can 判断事件在当前状态下是否合法
func (m StateMachine) Can(current, event string) bool {
	_, ok := m.table[transitionKey{from: current, event: event}]
	return ok
}

// EventFor 查找从 current 迁移到 target 的事件
func (m StateMachine) EventFor(current, target string) (string, bool) {
	for key, next := range m.table {
		if key.from == current && next == target {
			return key.event, true
		}
	}
	return "", false
}

// OrderMachine 订单状态机
var OrderMachine = newStateMachine("order", map[string]transitionRule{
	OrderEventPaymentCaptured: {from: []string{constants.OrderStatusPending}, to: constants.OrderStatusPaid},
	OrderEventPaymentRejected: {from: []string{constants.OrderStatusPending}, to: constants.OrderStatusPending},
	OrderEventConfirm:         {from: []string{constants.OrderStatusPending, constants.OrderStatusPaid}, to: constants.OrderStatusConfirmed},
	OrderEventShip:            {from: []string{constants.OrderStatusPaid, constants.OrderStatusConfirmed}, to: constants.OrderStatusShipped},
	OrderEventDeliver: {
		from: []string{constants.OrderStatusPaid, constants.OrderStatusConfirmed, constants.OrderStatusShipped},
		to:   constants.OrderStatusDelivered,
	},
	OrderEventCancel: {
		from: []string{constants.OrderStatusPending, constants.OrderStatusPaid, constants.OrderStatusConfirmed},
		to:   constants.OrderStatusCancelled,
	},
	OrderEventRTOInitiate: {
		from: []string{constants.OrderStatusPaid, constants.OrderStatusConfirmed, constants.OrderStatusShipped},
		to:   constants.OrderStatusRTOInitiated,
	},
	OrderEventRTODeliver: {
		from: []string{constants.OrderStatusRTOInitiated, constants.OrderStatusShipped},
		to:   constants.OrderStatusRTODelivered,
	},
	OrderEventRefund: {
		from: []string{
			constants.OrderStatusPaid, constants.OrderStatusConfirmed, constants.OrderStatusShipped,
			constants.OrderStatusDelivered, constants.OrderStatusRTOInitiated, constants.OrderStatusRTODelivered,
			constants.OrderStatusCancelled,
		},
		to: constants.OrderStatusRefunded,
	},
	OrderEventFail: {from: []string{constants.OrderStatusPending, constants.OrderStatusPaid}, to: constants.OrderStatusFailed},
})

// ShipmentMachine 运单状态机
var ShipmentMachine = newStateMachine("shipment", map[string]transitionRule{
	ShipmentEventAssignAWB: {from: []string{constants.ShipmentStatusCreated}, to: constants.ShipmentStatusAWBAssigned},
	ShipmentEventPickUp: {
		from: []string{constants.ShipmentStatusCreated, constants.ShipmentStatusAWBAssigned},
		to:   constants.ShipmentStatusPickedUp,
	},
	ShipmentEventInTransit: {
		from: []string{constants.ShipmentStatusAWBAssigned, constants.ShipmentStatusPickedUp},
		to:   constants.ShipmentStatusInTransit,
	},
	ShipmentEventOutForDelivery: {
		from: []string{constants.ShipmentStatusPickedUp, constants.ShipmentStatusInTransit},
		to:   constants.ShipmentStatusOutForDelivery,
	},
	ShipmentEventDeliver: {
		from: []string{
			constants.ShipmentStatusAWBAssigned, constants.ShipmentStatusPickedUp,
			constants.ShipmentStatusInTransit, constants.ShipmentStatusOutForDelivery,
		},
		to: constants.ShipmentStatusDelivered,
	},
	ShipmentEventCancel: {
		from: []string{constants.ShipmentStatusCreated, constants.ShipmentStatusAWBAssigned},
		to:   constants.ShipmentStatusCancelled,
	},
	ShipmentEventRTOInitiate: {
		from: []string{constants.ShipmentStatusPickedUp, constants.ShipmentStatusInTransit, constants.ShipmentStatusOutForDelivery},
		to:   constants.ShipmentStatusRTOInitiated,
	},
	ShipmentEventRTODeliver: {
		from: []string{
			constants.ShipmentStatusRTOInitiated, constants.ShipmentStatusPickedUp,
			constants.ShipmentStatusInTransit, constants.ShipmentStatusOutForDelivery,
		},
		to: constants.ShipmentStatusRTODelivered,
	},
})

// RefundMachine 退款状态机
var RefundMachine = newStateMachine("refund", map[string]transitionRule{
	RefundEventGatewayAccepted:  {from: []string{constants.RefundStatusInitiated, constants.RefundStatusFailed}, to: constants.RefundStatusProcessing},
	RefundEventGatewayRejected:  {from: []string{constants.RefundStatusInitiated, constants.RefundStatusFailed}, to: constants.RefundStatusFailed},
	RefundEventSettled:          {from: []string{constants.RefundStatusProcessing}, to: constants.RefundStatusSuccess},
	RefundEventSettlementFailed: {from: []string{constants.RefundStatusProcessing}, to: constants.RefundStatusFailed},
})

// ReturnMachine 退货状态机
var ReturnMachine = newStateMachine("return", map[string]transitionRule{
	ReturnEventApprove: {from: []string{constants.ReturnStatusRequested}, to: constants.ReturnStatusApproved},
	ReturnEventReject:  {from: []string{constants.ReturnStatusRequested, constants.ReturnStatusReceived}, to: constants.ReturnStatusRejected},
	ReturnEventCancel: {
		from: []string{
			constants.ReturnStatusRequested, constants.ReturnStatusApproved,
			constants.ReturnStatusPickupScheduled, constants.ReturnStatusPickedUp,
		},
		to: constants.ReturnStatusCancelled,
	},
	ReturnEventSchedulePickup: {from: []string{constants.ReturnStatusApproved}, to: constants.ReturnStatusPickupScheduled},
	ReturnEventPickUp:         {from: []string{constants.ReturnStatusPickupScheduled}, to: constants.ReturnStatusPickedUp},
	ReturnEventReceive:        {from: []string{constants.ReturnStatusPickedUp}, to: constants.ReturnStatusReceived},
	ReturnEventComplete:       {from: []string{constants.ReturnStatusReceived}, to: constants.ReturnStatusCompleted},
})

// IsOrderStatus 判断是否为合法的订单状态
func IsOrderStatus(status string) bool {
	switch status {
	case constants.OrderStatusPending, constants.OrderStatusPaid, constants.OrderStatusConfirmed,
		constants.OrderStatusShipped, constants.OrderStatusDelivered, constants.OrderStatusCancelled,
		constants.OrderStatusRefunded, constants.OrderStatusRTOInitiated, constants.OrderStatusRTODelivered,
		constants.OrderStatusFailed:
		return true
	}
	return false
}

// isTerminalOrderStatus 终态订单不再接受后台状态变更
func isTerminalOrderStatus(status string) bool {
	switch status {
	case constants.OrderStatusDelivered, constants.OrderStatusCancelled, constants.OrderStatusRefunded:
		return true
	}
	return false
}
