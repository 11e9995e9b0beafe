package service

import (
	"context"
	"time"

	"github.com/ayurwell-next/internal/carrier/shiprocket"
	"github.com/ayurwell-next/internal/payment/razorpay"

	"github.com/shopspring/decimal"
)

// PaymentGateway 支付网关能力，由 *razorpay.Client 实现
type PaymentGateway interface {
	CreateOrder(ctx context.Context, amount decimal.Decimal, currency, receipt string) (string, error)
	FetchPayment(ctx context.Context, paymentID string) (*razorpay.PaymentState, error)
	Refund(ctx context.Context, input razorpay.RefundInput) (*razorpay.RefundResult, error)
	VerifyCheckoutSignature(gatewayOrderID, gatewayPaymentID, signature string) bool
	VerifyWebhookSignature(body []byte, signature string) bool
}

// ShippingCarrier 承运商能力，由 *shiprocket.Client 实现
type ShippingCarrier interface {
	QuoteRates(ctx context.Context, query shiprocket.RateQuery) ([]shiprocket.RateQuote, error)
	CreateShipment(ctx context.Context, req shiprocket.ShipmentRequest) (*shiprocket.ShipmentResult, error)
	CreateReturnShipment(ctx context.Context, req shiprocket.ShipmentRequest, warehouse shiprocket.Party) (*shiprocket.ShipmentResult, error)
	AssignAWB(ctx context.Context, carrierShipmentID, courierID string) (*shiprocket.AWBResult, error)
	CancelShipments(ctx context.Context, carrierOrderIDs []string) error
}

// TaskNotifier 事务提交后的即时投递通知；未启用队列时由定时扫描兜底
type TaskNotifier interface {
	NotifyOutbox(messageIDs []uint)
}

// AWBScheduler 为暂未拿到 AWB 的运单排队延迟重试
type AWBScheduler interface {
	ScheduleAWBAssign(shipmentID uint, delay time.Duration)
}

var (
	_ PaymentGateway  = (*razorpay.Client)(nil)
	_ ShippingCarrier = (*shiprocket.Client)(nil)
)
