package service

import "errors"

// 通用
var (
	ErrForbidden    = errors.New("forbidden")
	ErrInvalidInput = errors.New("invalid input")
)

// 订单
var (
	ErrOrderNotFound         = errors.New("order not found")
	ErrInvalidOrderItem      = errors.New("invalid order item")
	ErrEmptyCart             = errors.New("cart is empty")
	ErrAddressNotFound       = errors.New("address not found")
	ErrProductNotFound       = errors.New("product not found")
	ErrProductUnavailable    = errors.New("product unavailable")
	ErrInsufficientStock     = errors.New("insufficient stock")
	ErrMissingDimensions     = errors.New("product shipping dimensions missing")
	ErrNoCourierAvailable    = errors.New("no courier available")
	ErrInvalidPaymentMethod  = errors.New("invalid payment method")
	ErrInvalidOrderStatus    = errors.New("invalid order status")
	ErrSameOrderStatus       = errors.New("order already in target status")
	ErrTerminalOrderStatus   = errors.New("order is in a terminal status")
	ErrIllegalTransition     = errors.New("illegal status transition")
	ErrOrderAlreadyCancelled = errors.New("order already cancelled")
	ErrOrderNotCancellable   = errors.New("order cannot be cancelled")
	ErrOrderNotCOD           = errors.New("order is not cash on delivery")
	ErrCODNotCollected       = errors.New("cod amount not collected")
	ErrCODAlreadySettled     = errors.New("cod already settled")
)

// 支付
var (
	ErrPaymentNotFound         = errors.New("payment not found")
	ErrPaymentNotPrepaid       = errors.New("payment requires a prepaid order")
	ErrPaymentAlreadyInitiated = errors.New("payment already initiated")
	ErrPaymentSignatureInvalid = errors.New("payment signature invalid")
	ErrPaymentNotCaptured      = errors.New("payment not captured")
	ErrPaymentAlreadyRefunded  = errors.New("payment already refunded")
	ErrPaymentGatewayFailed    = errors.New("payment gateway request failed")
)

// 运单
var (
	ErrShipmentNotFound           = errors.New("shipment not found")
	ErrShipmentAlreadyExists      = errors.New("shipment already exists")
	ErrShipmentReservationPending = errors.New("shipment reservation awaiting carrier order")
	ErrShipmentNotAllowed         = errors.New("order is not ready for shipment")
	ErrShipmentNotCancellable     = errors.New("shipment cannot be cancelled")
	ErrRTONotAllowed              = errors.New("rto not allowed in current shipment status")
	ErrRTOAlreadyInitiated        = errors.New("rto already initiated")
	ErrCarrierRequestFailed       = errors.New("carrier request failed")
	ErrAWBNotAssigned             = errors.New("awb not assigned yet")
	ErrAWBRetryRunning            = errors.New("awb retry already running")
)

// 退款
var (
	ErrRefundNotFound         = errors.New("refund not found")
	ErrRefundAlreadyInitiated = errors.New("refund already initiated")
	ErrRefundNotRetryable     = errors.New("refund is not in failed status")
	ErrRefundRejected         = errors.New("refund rejected by gateway")
	ErrNothingToRefund        = errors.New("nothing left to refund")
	ErrRefundNotAllowed       = errors.New("refund not allowed for this order")
	ErrCODRefundNotAutomated  = errors.New("cod refunds are processed manually")
)

// 退货
var (
	ErrReturnNotFound       = errors.New("return not found")
	ErrReturnNotEligible    = errors.New("order not eligible for return")
	ErrReturnWindowExpired  = errors.New("return window expired")
	ErrReturnInProgress     = errors.New("return already in progress")
	ErrReturnItemInvalid    = errors.New("return item does not belong to order")
	ErrReturnReasonRequired = errors.New("return reason required")
	ErrReturnNotCancellable = errors.New("return cannot be cancelled")
	ErrReturnNotReceived    = errors.New("return not received")
)

// 回调与发件箱
var (
	ErrWebhookSignatureInvalid = errors.New("webhook signature invalid")
	ErrWebhookTokenInvalid     = errors.New("webhook token invalid")
	ErrWebhookPayloadInvalid   = errors.New("webhook payload invalid")
	ErrOutboxMessageNotFound   = errors.New("outbox message not found")
	ErrUnknownOutboxTopic      = errors.New("unknown outbox topic")
)
