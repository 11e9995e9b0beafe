package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ayurwell-next/internal/carrier/shiprocket"
	"github.com/ayurwell-next/internal/constants"
	"github.com/ayurwell-next/internal/logger"
	"github.com/ayurwell-next/internal/models"
	"github.com/ayurwell-next/internal/payment/razorpay"
	"github.com/ayurwell-next/internal/repository"

	"gorm.io/gorm"
)

// 回调处理结果
const (
	WebhookActionApplied   = "applied"
	WebhookActionIgnored   = "ignored"
	WebhookActionDuplicate = "duplicate"
	WebhookActionUnknown   = "unknown_reference"
)

// WebhookResult 回调处理结果
type WebhookResult struct {
	Action string `json:"action"`
	Status string `json:"status,omitempty"`
}

// ShipmentWebhookInput 承运商状态回调
type ShipmentWebhookInput struct {
	CarrierOrderID string
	Status         string
	IsReturn       bool
	AWB            string
	CourierName    string
	EventTime      string
}

// WebhookService 承运商与支付网关回调对账
type WebhookService struct {
	orderRepo    repository.OrderRepository
	shipmentRepo repository.ShipmentRepository
	refundRepo   repository.RefundRepository
	webhookRepo  repository.WebhookEventRepository
	outboxRepo   repository.OutboxRepository
	shipments    *ShipmentService
	refunds      *RefundService
	returns      *ReturnService
	gateway      PaymentGateway
	notifier     TaskNotifier
	carrierToken string
}

// WebhookServiceDeps 回调服务依赖
type WebhookServiceDeps struct {
	OrderRepo    repository.OrderRepository
	ShipmentRepo repository.ShipmentRepository
	RefundRepo   repository.RefundRepository
	WebhookRepo  repository.WebhookEventRepository
	OutboxRepo   repository.OutboxRepository
	Shipments    *ShipmentService
	Refunds      *RefundService
	Returns      *ReturnService
	Gateway      PaymentGateway
	Notifier     TaskNotifier
	CarrierToken string
}

// NewWebhookService 创建回调服务
func NewWebhookService(deps WebhookServiceDeps) *WebhookService {
	return &WebhookService{
		orderRepo:    deps.OrderRepo,
		shipmentRepo: deps.ShipmentRepo,
		refundRepo:   deps.RefundRepo,
		webhookRepo:  deps.WebhookRepo,
		outboxRepo:   deps.OutboxRepo,
		shipments:    deps.Shipments,
		refunds:      deps.Refunds,
		returns:      deps.Returns,
		gateway:      deps.Gateway,
		notifier:     deps.Notifier,
		carrierToken: strings.TrimSpace(deps.CarrierToken),
	}
}

// VerifyCarrierToken 常量时间比较承运商回调令牌
func (s *WebhookService) VerifyCarrierToken(token string) bool {
	if s.carrierToken == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(strings.TrimSpace(token)), []byte(s.carrierToken)) == 1
}

func carrierEventKey(input ShipmentWebhookInput) string {
	if strings.TrimSpace(input.EventTime) == "" {
		return ""
	}
	return fmt.Sprintf("%s:%s:%s", input.CarrierOrderID, shiprocket.NormalizeStatusName(input.Status), strings.TrimSpace(input.EventTime))
}

// HandleShipmentWebhook 处理承运商状态回调；未知运单与重复事件一律确认
func (s *WebhookService) HandleShipmentWebhook(ctx context.Context, token string, input ShipmentWebhookInput) (*WebhookResult, error) {
	if !s.VerifyCarrierToken(token) {
		return nil, ErrWebhookTokenInvalid
	}
	input.CarrierOrderID = strings.TrimSpace(input.CarrierOrderID)
	if input.CarrierOrderID == "" || strings.TrimSpace(input.Status) == "" {
		return nil, ErrWebhookPayloadInvalid
	}
	shipment, err := s.shipmentRepo.GetByCarrierOrderID(input.CarrierOrderID)
	if err != nil {
		return nil, err
	}
	if shipment == nil {
		logger.Infow("webhook_shipment_unknown", "carrier_order_id", input.CarrierOrderID, "status", input.Status)
		return &WebhookResult{Action: WebhookActionUnknown}, nil
	}
	status, ok := shiprocket.MapStatus(input.Status)
	if !ok {
		logger.Infow("webhook_shipment_status_unmapped", "shipment_id", shipment.ID, "status", input.Status)
		return &WebhookResult{Action: WebhookActionIgnored}, nil
	}
	// 正向运单带 is_return 标记表示已转入退回流程
	if input.IsReturn && shipment.Type == constants.ShipmentTypeForward &&
		status != constants.ShipmentStatusRTODelivered && status != constants.ShipmentStatusCancelled {
		status = constants.ShipmentStatusRTOInitiated
	}

	if key := carrierEventKey(input); key != "" {
		fresh, err := s.webhookRepo.Record(&models.WebhookEvent{
			Source:      constants.WebhookSourceCarrier,
			EventKey:    key,
			EventType:   status,
			ReferenceID: input.CarrierOrderID,
		})
		if err != nil {
			return nil, err
		}
		if !fresh {
			return &WebhookResult{Action: WebhookActionDuplicate, Status: shipment.Status}, nil
		}
	}

	if shipment.Type == constants.ShipmentTypeReturn {
		return s.applyReturnShipment(shipment, status, input)
	}

	switch status {
	case constants.ShipmentStatusRTOInitiated:
		return s.applyRTOInitiated(shipment)
	case constants.ShipmentStatusRTODelivered:
		return s.applyRTODelivered(ctx, shipment)
	case constants.ShipmentStatusDelivered:
		return s.applyDelivered(shipment)
	default:
		return s.applyTracking(shipment, status, input)
	}
}

func (s *WebhookService) applyRTOInitiated(shipment *models.Shipment) (*WebhookResult, error) {
	if shipment.Status == constants.ShipmentStatusRTOInitiated || shipment.Status == constants.ShipmentStatusRTODelivered {
		return &WebhookResult{Action: WebhookActionIgnored, Status: shipment.Status}, nil
	}
	if !ShipmentMachine.Can(shipment.Status, ShipmentEventRTOInitiate) {
		logger.Warnw("webhook_rto_initiated_illegal", "shipment_id", shipment.ID, "status", shipment.Status)
		return &WebhookResult{Action: WebhookActionIgnored, Status: shipment.Status}, nil
	}
	ids, err := s.shipments.applyRTOInitiated(shipment, "RTO initiated by carrier")
	if err != nil {
		return nil, err
	}
	notifyOutbox(s.notifier, ids)
	return &WebhookResult{Action: WebhookActionApplied, Status: constants.ShipmentStatusRTOInitiated}, nil
}

// applyRTODelivered 退回签收；预付订单自动退款，退款失败不影响回调确认
func (s *WebhookService) applyRTODelivered(ctx context.Context, shipment *models.Shipment) (*WebhookResult, error) {
	if shipment.Status == constants.ShipmentStatusRTODelivered {
		return &WebhookResult{Action: WebhookActionIgnored, Status: shipment.Status}, nil
	}
	if !ShipmentMachine.Can(shipment.Status, ShipmentEventRTODeliver) {
		logger.Warnw("webhook_rto_delivered_illegal", "shipment_id", shipment.ID, "status", shipment.Status)
		return &WebhookResult{Action: WebhookActionIgnored, Status: shipment.Status}, nil
	}
	var order *models.Order
	err := models.DB.Transaction(func(tx *gorm.DB) error {
		ok, err := s.shipmentRepo.WithTx(tx).TransitionStatus(shipment.ID, shipment.Status, constants.ShipmentStatusRTODelivered, nil)
		if err != nil || !ok {
			return err
		}
		orderRepo := s.orderRepo.WithTx(tx)
		order, err = orderRepo.GetByID(shipment.OrderID)
		if err != nil {
			return err
		}
		if order == nil {
			return ErrOrderNotFound
		}
		if OrderMachine.Can(order.Status, OrderEventRTODeliver) {
			if _, err := orderRepo.TransitionStatus(order.ID, order.Status, constants.OrderStatusRTODelivered, nil); err != nil {
				return err
			}
			order.Status = constants.OrderStatusRTODelivered
		}
		return orderRepo.AppendNote(order.ID, order.Status, "Shipment returned to origin")
	})
	if err != nil {
		return nil, err
	}
	logger.Infow("shipment_rto_delivered", "shipment_id", shipment.ID, "order_id", shipment.OrderID)

	if order != nil && !order.IsCOD() {
		if _, err := s.refunds.ProcessRTORefund(ctx, order.ID); err != nil {
			logger.Warnw("webhook_rto_refund_failed", "order_id", order.ID, "error", err)
		}
	}
	return &WebhookResult{Action: WebhookActionApplied, Status: constants.ShipmentStatusRTODelivered}, nil
}

// applyDelivered 签收仅生效一次，到付订单同时标记已收款
func (s *WebhookService) applyDelivered(shipment *models.Shipment) (*WebhookResult, error) {
	if shipment.Status == constants.ShipmentStatusDelivered {
		return &WebhookResult{Action: WebhookActionIgnored, Status: shipment.Status}, nil
	}
	if !ShipmentMachine.Can(shipment.Status, ShipmentEventDeliver) {
		logger.Warnw("webhook_delivered_illegal", "shipment_id", shipment.ID, "status", shipment.Status)
		return &WebhookResult{Action: WebhookActionIgnored, Status: shipment.Status}, nil
	}
	now := time.Now()
	applied := false
	var outboxIDs []uint
	err := models.DB.Transaction(func(tx *gorm.DB) error {
		ok, err := s.shipmentRepo.WithTx(tx).TransitionStatus(shipment.ID, shipment.Status, constants.ShipmentStatusDelivered, map[string]interface{}{
			"delivered_at": now,
		})
		if err != nil || !ok {
			return err
		}
		applied = true
		orderRepo := s.orderRepo.WithTx(tx)
		order, err := orderRepo.GetByID(shipment.OrderID)
		if err != nil {
			return err
		}
		if order == nil {
			return ErrOrderNotFound
		}
		if !OrderMachine.Can(order.Status, OrderEventDeliver) {
			logger.Warnw("webhook_order_deliver_skipped", "order_id", order.ID, "status", order.Status)
			return nil
		}
		updates := map[string]interface{}{"delivered_at": now}
		if order.IsCOD() {
			updates["cod_collected"] = true
		}
		moved, err := orderRepo.TransitionStatus(order.ID, order.Status, constants.OrderStatusDelivered, updates)
		if err != nil {
			return err
		}
		if !moved {
			logger.Warnw("webhook_order_deliver_skipped", "order_id", order.ID, "status", order.Status)
			return nil
		}
		if err := orderRepo.AppendHistory(order.ID, constants.OrderStatusDelivered, "Delivered by carrier"); err != nil {
			return err
		}
		order.Status = constants.OrderStatusDelivered
		writer := newOutboxWriter(s.outboxRepo, tx)
		if err := writer.event(constants.EventOrderDelivered, constants.AggregateOrder, order.ID, orderEventPayload(order, models.JSON{
			"shipment_id": shipment.ID,
		})); err != nil {
			return err
		}
		outboxIDs = writer.ids
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !applied {
		return &WebhookResult{Action: WebhookActionIgnored, Status: constants.ShipmentStatusDelivered}, nil
	}
	notifyOutbox(s.notifier, outboxIDs)
	logger.Infow("shipment_delivered", "shipment_id", shipment.ID, "order_id", shipment.OrderID)
	return &WebhookResult{Action: WebhookActionApplied, Status: constants.ShipmentStatusDelivered}, nil
}

// applyTracking 其他状态仅在不同且合法时落库；揽收或运输中推进订单为 shipped
func (s *WebhookService) applyTracking(shipment *models.Shipment, status string, input ShipmentWebhookInput) (*WebhookResult, error) {
	if shipment.Status == status {
		return &WebhookResult{Action: WebhookActionIgnored, Status: status}, nil
	}
	event, ok := ShipmentMachine.EventFor(shipment.Status, status)
	if !ok {
		logger.Infow("webhook_shipment_transition_ignored", "shipment_id", shipment.ID, "from", shipment.Status, "to", status)
		return &WebhookResult{Action: WebhookActionIgnored, Status: shipment.Status}, nil
	}
	if event == ShipmentEventCancel {
		return s.applyCarrierCancel(shipment)
	}
	updates := map[string]interface{}{}
	if awb := strings.TrimSpace(input.AWB); awb != "" && !shipment.HasAWB() {
		updates["awb"] = awb
		updates["tracking_url"] = shiprocket.TrackingURL(awb)
	}
	if name := strings.TrimSpace(input.CourierName); name != "" {
		updates["courier_name"] = name
	}
	err := models.DB.Transaction(func(tx *gorm.DB) error {
		ok, err := s.shipmentRepo.WithTx(tx).TransitionStatus(shipment.ID, shipment.Status, status, updates)
		if err != nil || !ok {
			return err
		}
		if status != constants.ShipmentStatusPickedUp && status != constants.ShipmentStatusInTransit {
			return nil
		}
		orderRepo := s.orderRepo.WithTx(tx)
		order, err := orderRepo.GetByID(shipment.OrderID)
		if err != nil {
			return err
		}
		if order == nil || !OrderMachine.Can(order.Status, OrderEventShip) {
			return nil
		}
		if _, err := orderRepo.TransitionStatus(order.ID, order.Status, constants.OrderStatusShipped, nil); err != nil {
			return err
		}
		return orderRepo.AppendHistory(order.ID, constants.OrderStatusShipped, "Shipment picked up by carrier")
	})
	if err != nil {
		return nil, err
	}
	logger.Infow("shipment_status_updated", "shipment_id", shipment.ID, "status", status)
	return &WebhookResult{Action: WebhookActionApplied, Status: status}, nil
}

func (s *WebhookService) applyCarrierCancel(shipment *models.Shipment) (*WebhookResult, error) {
	err := models.DB.Transaction(func(tx *gorm.DB) error {
		ok, err := s.shipmentRepo.WithTx(tx).TransitionStatus(shipment.ID, shipment.Status, constants.ShipmentStatusCancelled, nil)
		if err != nil || !ok {
			return err
		}
		order, err := s.orderRepo.WithTx(tx).GetByID(shipment.OrderID)
		if err != nil || order == nil {
			return err
		}
		return s.orderRepo.WithTx(tx).AppendNote(order.ID, order.Status, "Shipment cancelled by carrier")
	})
	if err != nil {
		return nil, err
	}
	logger.Warnw("shipment_cancelled_by_carrier", "shipment_id", shipment.ID, "order_id", shipment.OrderID)
	return &WebhookResult{Action: WebhookActionApplied, Status: constants.ShipmentStatusCancelled}, nil
}

// applyReturnShipment 退货运单回调同步退货申请状态
func (s *WebhookService) applyReturnShipment(shipment *models.Shipment, status string, input ShipmentWebhookInput) (*WebhookResult, error) {
	if shipment.Status != status {
		updates := map[string]interface{}{"status": status}
		if awb := strings.TrimSpace(input.AWB); awb != "" && !shipment.HasAWB() {
			updates["awb"] = awb
		}
		if status == constants.ShipmentStatusDelivered {
			updates["delivered_at"] = time.Now()
		}
		if err := s.shipmentRepo.Update(shipment.ID, updates); err != nil {
			return nil, err
		}
	}
	if shipment.ReturnID != nil && s.returns != nil {
		if err := s.returns.applyCarrierStatus(*shipment.ReturnID, status); err != nil {
			return nil, err
		}
	}
	return &WebhookResult{Action: WebhookActionApplied, Status: status}, nil
}

// HandlePaymentWebhook 处理网关退款回调：签名错误返回错误以便网关重投，未知退款直接确认
func (s *WebhookService) HandlePaymentWebhook(ctx context.Context, signature, eventID string, body []byte) (*WebhookResult, error) {
	if !s.gateway.VerifyWebhookSignature(body, signature) {
		logger.Warnw("webhook_payment_signature_invalid", "event_id", eventID)
		return nil, ErrWebhookSignatureInvalid
	}
	event, err := razorpay.ParseWebhook(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWebhookPayloadInvalid, err)
	}
	var refundEvent string
	switch event.Event {
	case razorpay.EventRefundProcessed:
		refundEvent = RefundEventSettled
	case razorpay.EventRefundFailed:
		refundEvent = RefundEventSettlementFailed
	default:
		return &WebhookResult{Action: WebhookActionIgnored}, nil
	}
	if event.RefundID == "" {
		return nil, ErrWebhookPayloadInvalid
	}
	refund, err := s.refundRepo.GetByGatewayRefundID(event.RefundID)
	if err != nil {
		return nil, err
	}
	if refund == nil && event.Receipt != "" && s.refunds != nil {
		// 提交时超时的退款没有网关单号，按 receipt（本地退款单号）对账
		refund, err = s.refunds.ReconcileGatewayRefund(ctx, event.Receipt, event.RefundID, refundEvent == RefundEventSettlementFailed)
		if err != nil {
			return nil, err
		}
		if refund != nil && refund.Status == constants.RefundStatusFailed {
			return &WebhookResult{Action: WebhookActionApplied, Status: refund.Status}, nil
		}
	}
	if refund == nil {
		logger.Infow("webhook_refund_unknown", "gateway_refund_id", event.RefundID, "receipt", event.Receipt, "event", event.Event)
		return &WebhookResult{Action: WebhookActionUnknown}, nil
	}
	eventKey := strings.TrimSpace(eventID)
	if eventKey == "" {
		eventKey = event.Event + ":" + event.RefundID
	}

	result := &WebhookResult{Action: WebhookActionIgnored, Status: refund.Status}
	var outboxIDs []uint
	err = models.DB.Transaction(func(tx *gorm.DB) error {
		fresh, err := s.webhookRepo.WithTx(tx).Record(&models.WebhookEvent{
			Source:      constants.WebhookSourceGateway,
			EventKey:    eventKey,
			EventType:   event.Event,
			ReferenceID: event.RefundID,
		})
		if err != nil {
			return err
		}
		if !fresh {
			result.Action = WebhookActionDuplicate
			return nil
		}
		next, err := RefundMachine.Next(refund.Status, refundEvent)
		if err != nil {
			return nil
		}
		updates := map[string]interface{}{"processed_at": time.Now()}
		if refundEvent == RefundEventSettlementFailed {
			updates["failure_reason"] = "Refund failed at gateway"
		}
		ok, err := s.refundRepo.WithTx(tx).TransitionStatus(refund.ID, refund.Status, next, updates)
		if err != nil || !ok {
			return err
		}
		orderRepo := s.orderRepo.WithTx(tx)
		order, err := orderRepo.GetByID(refund.OrderID)
		if err != nil {
			return err
		}
		if order == nil {
			return ErrOrderNotFound
		}
		topic := constants.EventRefundSuccess
		note := fmt.Sprintf("Refund %s completed", refund.RefundNo)
		if next == constants.RefundStatusFailed {
			topic = constants.EventRefundFailed
			note = fmt.Sprintf("Refund %s failed at gateway", refund.RefundNo)
		}
		if err := orderRepo.AppendNote(order.ID, order.Status, note); err != nil {
			return err
		}
		writer := newOutboxWriter(s.outboxRepo, tx)
		if err := writer.event(topic, constants.AggregateRefund, refund.ID, orderEventPayload(order, models.JSON{
			"refund_id": refund.ID,
			"refund_no": refund.RefundNo,
			"amount":    refund.Amount.String(),
		})); err != nil {
			return err
		}
		outboxIDs = writer.ids
		result.Action = WebhookActionApplied
		result.Status = next
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return &WebhookResult{Action: WebhookActionDuplicate, Status: refund.Status}, nil
		}
		return nil, err
	}
	notifyOutbox(s.notifier, outboxIDs)
	if result.Action == WebhookActionApplied {
		logger.Infow("refund_settled", "refund_id", refund.ID, "status", result.Status)
	}
	return result, nil
}
