package constants

// 订单状态常量
const (
	OrderStatusPending      = "pending"
	OrderStatusPaid         = "paid"
	OrderStatusConfirmed    = "confirmed"
	OrderStatusShipped      = "shipped"
	OrderStatusDelivered    = "delivered"
	OrderStatusCancelled    = "cancelled"
	OrderStatusRefunded     = "refunded"
	OrderStatusRTOInitiated = "rto_initiated"
	OrderStatusRTODelivered = "rto_delivered"
	OrderStatusFailed       = "failed"
)

// 支付方式常量
const (
	PaymentMethodPrepaid = "prepaid"
	PaymentMethodCOD     = "cod"
)

// 支付状态常量
const (
	PaymentStatusCreated  = "created"
	PaymentStatusPending  = "pending"
	PaymentStatusCaptured = "captured"
	PaymentStatusRefunded = "refunded"
)

// 运单状态常量
const (
	ShipmentStatusCreated        = "created"
	ShipmentStatusAWBAssigned    = "awb_assigned"
	ShipmentStatusPickedUp       = "picked_up"
	ShipmentStatusInTransit      = "in_transit"
	ShipmentStatusOutForDelivery = "out_for_delivery"
	ShipmentStatusDelivered      = "delivered"
	ShipmentStatusCancelled      = "cancelled"
	ShipmentStatusRTOInitiated   = "rto_initiated"
	ShipmentStatusRTODelivered   = "rto_delivered"
)

// 运单类型常量
const (
	ShipmentTypeForward = "forward"
	ShipmentTypeReturn  = "return"
)

// 退款状态常量
const (
	RefundStatusInitiated  = "initiated"
	RefundStatusProcessing = "processing"
	RefundStatusSuccess    = "success"
	RefundStatusFailed     = "failed"
)

// 退款类型常量
const (
	RefundTypeCancellation   = "cancellation"
	RefundTypeRTO            = "rto"
	RefundTypeCustomerReturn = "customer_return"
	RefundTypeDamaged        = "damaged"
	RefundTypeWrongProduct   = "wrong_product"
	RefundTypeAdminInitiated = "admin_initiated"
)

// RefundModeOriginal 原路退回
const RefundModeOriginal = "original"

// 退货申请状态常量
const (
	ReturnStatusRequested       = "requested"
	ReturnStatusApproved        = "approved"
	ReturnStatusPickupScheduled = "pickup_scheduled"
	ReturnStatusPickedUp        = "picked_up"
	ReturnStatusReceived        = "received"
	ReturnStatusCompleted       = "completed"
	ReturnStatusRejected        = "rejected"
	ReturnStatusCancelled       = "cancelled"
)

// 用户角色常量
const (
	UserRoleCustomer = "customer"
	UserRoleAdmin    = "admin"
)

// 发件箱消息类型与状态
const (
	OutboxKindTask  = "task"
	OutboxKindEvent = "event"

	OutboxStatusPending    = "pending"
	OutboxStatusProcessing = "processing"
	OutboxStatusSent       = "sent"
	OutboxStatusDead       = "dead"
)

// 发件箱任务主题
const (
	OutboxTaskCreateShipment = "fulfillment.create_shipment"
)

// 对外事件主题
const (
	EventOrderPaid                 = "order.paid"
	EventOrderCancelled            = "order.cancelled"
	EventOrderDelivered            = "order.delivered"
	EventOrderRTOInitiated         = "order.rto_initiated"
	EventOrderCODSettled           = "order.cod_settled"
	EventPaymentVerificationFailed = "payment.verification_failed"
	EventShipmentCreated           = "shipment.created"
	EventShipmentCancelled         = "shipment.cancelled"
	EventShipmentAWBAssigned       = "shipment.awb_assigned"
	EventShipmentAssignmentFailed  = "shipment.assignment_failed"
	EventRefundInitiated           = "refund.initiated"
	EventRefundSuccess             = "refund.success"
	EventRefundFailed              = "refund.failed"
	EventReturnRequested           = "return.requested"
	EventReturnStatusUpdated       = "return.status_updated"
	EventReturnCancelled           = "return.cancelled"
)

// 聚合类型
const (
	AggregateOrder    = "order"
	AggregateShipment = "shipment"
	AggregateRefund   = "refund"
	AggregateReturn   = "return"
)

// 异步任务名称
const (
	QueueDefault       = "default"
	TaskOutboxDispatch = "outbox:dispatch"
	TaskAssignAWB      = "shipment:assign_awb"
)

// Webhook 来源
const (
	WebhookSourceCarrier = "shiprocket"
	WebhookSourceGateway = "razorpay"
)
