package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ayurwell-next/internal/constants"
	"github.com/ayurwell-next/internal/logger"
	"github.com/ayurwell-next/internal/models"
	"github.com/ayurwell-next/internal/payment/razorpay"
	"github.com/ayurwell-next/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RefundService 退款引擎：计算可退金额、调用网关并落库
type RefundService struct {
	orderRepo    repository.OrderRepository
	paymentRepo  repository.PaymentRepository
	refundRepo   repository.RefundRepository
	productRepo  repository.ProductRepository
	returnRepo   repository.ReturnRepository
	shipmentRepo repository.ShipmentRepository
	outboxRepo   repository.OutboxRepository
	gateway      PaymentGateway
	notifier     TaskNotifier
}

// NewRefundService 创建退款服务
func NewRefundService(orderRepo repository.OrderRepository, paymentRepo repository.PaymentRepository, refundRepo repository.RefundRepository, productRepo repository.ProductRepository, returnRepo repository.ReturnRepository, shipmentRepo repository.ShipmentRepository, outboxRepo repository.OutboxRepository, gateway PaymentGateway, notifier TaskNotifier) *RefundService {
	return &RefundService{
		orderRepo:    orderRepo,
		paymentRepo:  paymentRepo,
		refundRepo:   refundRepo,
		productRepo:  productRepo,
		returnRepo:   returnRepo,
		shipmentRepo: shipmentRepo,
		outboxRepo:   outboxRepo,
		gateway:      gateway,
		notifier:     notifier,
	}
}

// refundEffects 网关受理后随退款一起提交的副作用
type refundEffects struct {
	restoreStock   bool
	completeReturn bool
	cancelOrder    bool
}

func effectsForType(refundType string, returnID *uint) refundEffects {
	switch refundType {
	case constants.RefundTypeCancellation:
		return refundEffects{restoreStock: true, cancelOrder: true}
	case constants.RefundTypeRTO:
		return refundEffects{restoreStock: true}
	case constants.RefundTypeCustomerReturn:
		return refundEffects{restoreStock: true, completeReturn: returnID != nil}
	default:
		return refundEffects{}
	}
}

type refundRequest struct {
	order       *models.Order
	payment     *models.Payment
	ret         *models.ReturnRequest
	refundType  string
	reason      string
	initiatedBy uint
}

// RefundCancellation 取消已捕获的预付订单并全额退款，订单最终为 refunded
func (s *RefundService) RefundCancellation(ctx context.Context, order *models.Order, actor Actor) (*models.Refund, error) {
	if order == nil {
		return nil, ErrOrderNotFound
	}
	payment, err := s.capturedPayment(order)
	if err != nil {
		return nil, err
	}
	return s.issue(ctx, refundRequest{
		order:       order,
		payment:     payment,
		refundType:  constants.RefundTypeCancellation,
		reason:      "Order cancelled",
		initiatedBy: actor.UserID,
	})
}

// ProcessRTORefund 退回签收后的自动退款
func (s *RefundService) ProcessRTORefund(ctx context.Context, orderID uint) (*models.Refund, error) {
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if order.IsCOD() {
		return nil, ErrCODRefundNotAutomated
	}
	shipment, err := s.shipmentRepo.GetForwardByOrderID(order.ID)
	if err != nil {
		return nil, err
	}
	if shipment == nil {
		return nil, ErrShipmentNotFound
	}
	if shipment.Status != constants.ShipmentStatusRTOInitiated && shipment.Status != constants.ShipmentStatusRTODelivered {
		return nil, ErrRefundNotAllowed
	}
	payment, err := s.capturedPayment(order)
	if err != nil {
		return nil, err
	}
	return s.issue(ctx, refundRequest{
		order:      order,
		payment:    payment,
		refundType: constants.RefundTypeRTO,
		reason:     "Return to origin",
	})
}

// ProcessCustomerReturnRefund 退货入库后的退款，成功受理时退货单完成
func (s *RefundService) ProcessCustomerReturnRefund(ctx context.Context, returnID uint, actor Actor) (*models.Refund, error) {
	ret, err := s.returnRepo.GetByID(returnID)
	if err != nil {
		return nil, err
	}
	if ret == nil {
		return nil, ErrReturnNotFound
	}
	existing, err := s.refundRepo.FindActiveByReturn(ret.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}
	if ret.Status != constants.ReturnStatusReceived {
		return nil, ErrReturnNotReceived
	}
	order, err := s.orderRepo.GetByID(ret.OrderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if order.IsCOD() {
		return nil, ErrCODRefundNotAutomated
	}
	payment, err := s.capturedPayment(order)
	if err != nil {
		return nil, err
	}
	return s.issue(ctx, refundRequest{
		order:       order,
		payment:     payment,
		ret:         ret,
		refundType:  constants.RefundTypeCustomerReturn,
		reason:      "Customer return: " + ret.Reason,
		initiatedBy: actor.UserID,
	})
}

// ProcessAdminRefund 管理员发起退款，按原因归类
func (s *RefundService) ProcessAdminRefund(ctx context.Context, orderID uint, reason string, actor Actor) (*models.Refund, error) {
	if !actor.IsAdmin {
		return nil, ErrForbidden
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, ErrInvalidInput
	}
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if order.PaymentMethod != constants.PaymentMethodPrepaid {
		return nil, ErrPaymentNotPrepaid
	}
	payment, err := s.capturedPayment(order)
	if err != nil {
		return nil, err
	}
	return s.issue(ctx, refundRequest{
		order:       order,
		payment:     payment,
		refundType:  ClassifyAdminRefund(reason),
		reason:      "Admin Refund: " + reason,
		initiatedBy: actor.UserID,
	})
}

// ClassifyAdminRefund 按原因关键字归类退款类型
func ClassifyAdminRefund(reason string) string {
	lower := strings.ToLower(reason)
	switch {
	case strings.Contains(lower, "damage"):
		return constants.RefundTypeDamaged
	case strings.Contains(lower, "wrong"):
		return constants.RefundTypeWrongProduct
	default:
		return constants.RefundTypeAdminInitiated
	}
}

func (s *RefundService) capturedPayment(order *models.Order) (*models.Payment, error) {
	payment, err := s.paymentRepo.GetByOrderID(order.ID)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, ErrPaymentNotFound
	}
	switch payment.Status {
	case constants.PaymentStatusCaptured:
		return payment, nil
	case constants.PaymentStatusRefunded:
		return nil, ErrPaymentAlreadyRefunded
	default:
		return nil, ErrPaymentNotCaptured
	}
}

// refundableAmount 退款金额 = min(订单总额, 网关当前可退余额)
func (s *RefundService) refundableAmount(ctx context.Context, order *models.Order, payment *models.Payment) (models.Money, error) {
	state, err := s.gateway.FetchPayment(ctx, payment.PaymentRef())
	if err != nil {
		return models.Money{}, fmt.Errorf("%w: %v", ErrPaymentGatewayFailed, err)
	}
	if state.Status != razorpay.PaymentStatusCaptured && state.Status != constants.PaymentStatusRefunded {
		return models.Money{}, ErrPaymentNotCaptured
	}
	refundable := models.NewMoneyFromDecimal(state.Refundable())
	if !refundable.IsPositive() {
		return models.Money{}, ErrNothingToRefund
	}
	amount := models.MinMoney(order.TotalAmount, refundable)
	if amount.LessThan(order.TotalAmount.Decimal) {
		logger.Warnw("refund_amount_capped",
			"order_id", order.ID,
			"order_total", order.TotalAmount.String(),
			"refundable", refundable.String(),
		)
	}
	return amount, nil
}

func (s *RefundService) issue(ctx context.Context, req refundRequest) (*models.Refund, error) {
	active, err := s.refundRepo.FindActiveByPayment(req.payment.ID)
	if err != nil {
		return nil, err
	}
	if active != nil {
		if req.ret != nil && active.ReturnID != nil && *active.ReturnID == req.ret.ID {
			return active, nil
		}
		return nil, ErrRefundAlreadyInitiated
	}
	amount, err := s.refundableAmount(ctx, req.order, req.payment)
	if err != nil {
		return nil, err
	}

	refund := &models.Refund{
		RefundNo:    generateRefundNo(),
		PaymentID:   req.payment.ID,
		OrderID:     req.order.ID,
		Amount:      amount,
		Currency:    req.payment.Currency,
		Type:        req.refundType,
		Reason:      req.reason,
		Mode:        constants.RefundModeOriginal,
		Status:      constants.RefundStatusInitiated,
		InitiatedBy: req.initiatedBy,
	}
	if req.ret != nil {
		returnID := req.ret.ID
		refund.ReturnID = &returnID
	}
	err = models.DB.Transaction(func(tx *gorm.DB) error {
		refundRepo := s.refundRepo.WithTx(tx)
		existing, err := refundRepo.FindActiveByPayment(req.payment.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			return ErrRefundAlreadyInitiated
		}
		return refundRepo.Create(refund)
	})
	if err != nil {
		return nil, err
	}
	logger.Infow("refund_initiated", "refund_id", refund.ID, "order_id", req.order.ID, "amount", amount.String(), "type", req.refundType)

	return s.submit(ctx, refund, req.order, req.payment)
}

// submit 调用网关退款并按结果落库
func (s *RefundService) submit(ctx context.Context, refund *models.Refund, order *models.Order, payment *models.Payment) (*models.Refund, error) {
	result, err := s.gateway.Refund(ctx, razorpay.RefundInput{
		PaymentID: payment.PaymentRef(),
		Amount:    refund.Amount.Decimal,
		Receipt:   refund.RefundNo,
		Notes: map[string]string{
			"order_no": order.OrderNo,
			"type":     refund.Type,
		},
	})
	if err != nil {
		if errors.Is(err, razorpay.ErrRefundRejected) {
			s.markRejected(refund, order, err)
			return nil, fmt.Errorf("%w: %v", ErrRefundRejected, err)
		}
		// 超时或传输错误时网关可能已受理，退款保持 initiated，等待回调按 receipt 对账或人工重试
		s.markUncertain(refund, err)
		return nil, fmt.Errorf("%w: %v", ErrPaymentGatewayFailed, err)
	}
	if err := s.finalize(refund, order, payment, result.RefundID); err != nil {
		logger.Errorw("refund_finalize_failed", "refund_id", refund.ID, "gateway_refund_id", result.RefundID, "error", err)
		return nil, err
	}
	return s.refundRepo.GetByID(refund.ID)
}

// markUncertain 记录最近一次失败原因，状态不变
func (s *RefundService) markUncertain(refund *models.Refund, cause error) {
	if err := s.refundRepo.Update(refund.ID, map[string]interface{}{
		"failure_reason": truncateError(cause),
	}); err != nil {
		logger.Errorw("refund_mark_uncertain_error", "refund_id", refund.ID, "error", err)
	}
	logger.Warnw("refund_gateway_outcome_unknown", "refund_id", refund.ID, "refund_no", refund.RefundNo, "error", cause)
}

// markRejected 网关明确拒绝时退款置为 failed，订单与支付保持不变
func (s *RefundService) markRejected(refund *models.Refund, order *models.Order, cause error) {
	var outboxIDs []uint
	err := models.DB.Transaction(func(tx *gorm.DB) error {
		next, err := RefundMachine.Next(refund.Status, RefundEventGatewayRejected)
		if err != nil {
			return err
		}
		if _, err := s.refundRepo.WithTx(tx).TransitionStatus(refund.ID, refund.Status, next, map[string]interface{}{
			"failure_reason": truncateError(cause),
		}); err != nil {
			return err
		}
		writer := newOutboxWriter(s.outboxRepo, tx)
		if err := writer.event(constants.EventRefundFailed, constants.AggregateRefund, refund.ID, orderEventPayload(order, models.JSON{
			"refund_id": refund.ID,
			"amount":    refund.Amount.String(),
			"reason":    truncateError(cause),
		})); err != nil {
			return err
		}
		outboxIDs = writer.ids
		return nil
	})
	if err != nil {
		logger.Errorw("refund_mark_failed_error", "refund_id", refund.ID, "error", err)
		return
	}
	notifyOutbox(s.notifier, outboxIDs)
	logger.Warnw("refund_gateway_rejected", "refund_id", refund.ID, "order_id", order.ID, "error", cause)
}

// finalize 网关受理后：退款 processing、支付与订单 refunded，并按类型执行库存与退货副作用
func (s *RefundService) finalize(refund *models.Refund, order *models.Order, payment *models.Payment, gatewayRefundID string) error {
	effects := effectsForType(refund.Type, refund.ReturnID)
	now := time.Now()
	var outboxIDs []uint
	err := models.DB.Transaction(func(tx *gorm.DB) error {
		next, err := RefundMachine.Next(refund.Status, RefundEventGatewayAccepted)
		if err != nil {
			return err
		}
		ok, err := s.refundRepo.WithTx(tx).TransitionStatus(refund.ID, refund.Status, next, map[string]interface{}{
			"gateway_refund_id": gatewayRefundID,
			"amount":            refund.Amount,
			"failure_reason":    "",
		})
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: refund %d changed concurrently", ErrIllegalTransition, refund.ID)
		}

		refunded := models.NewMoneyFromDecimal(payment.RefundedAmount.Add(refund.Amount.Decimal))
		if err := s.paymentRepo.WithTx(tx).Update(payment.ID, map[string]interface{}{
			"status":          constants.PaymentStatusRefunded,
			"refunded_amount": refunded,
			"refunded_at":     now,
		}); err != nil {
			return err
		}

		orderRepo := s.orderRepo.WithTx(tx)
		current, err := orderRepo.GetByID(order.ID)
		if err != nil {
			return err
		}
		if current == nil {
			return ErrOrderNotFound
		}
		if OrderMachine.Can(current.Status, OrderEventRefund) {
			updates := map[string]interface{}{"updated_at": now}
			if effects.cancelOrder {
				updates["canceled_at"] = now
			}
			if _, err := orderRepo.TransitionStatus(current.ID, current.Status, constants.OrderStatusRefunded, updates); err != nil {
				return err
			}
			current.Status = constants.OrderStatusRefunded
		} else {
			logger.Warnw("refund_order_transition_skipped", "order_id", current.ID, "status", current.Status)
		}

		if effects.restoreStock {
			if err := s.restoreStock(tx, current.Items, refund.ReturnID); err != nil {
				return err
			}
		}
		if effects.completeReturn && refund.ReturnID != nil {
			if _, err := s.returnRepo.WithTx(tx).TransitionStatus(*refund.ReturnID, constants.ReturnStatusReceived, constants.ReturnStatusCompleted, map[string]interface{}{
				"completed_at": now,
			}); err != nil {
				return err
			}
		}

		note := fmt.Sprintf("Refund of %s initiated (%s)", refund.Amount.String(), refund.Type)
		if effects.cancelOrder {
			if err := orderRepo.AppendHistory(current.ID, constants.OrderStatusCancelled, "Order cancelled"); err != nil {
				return err
			}
		}
		if err := orderRepo.AppendNote(current.ID, current.Status, note); err != nil {
			return err
		}

		writer := newOutboxWriter(s.outboxRepo, tx)
		if effects.cancelOrder {
			if err := writer.event(constants.EventOrderCancelled, constants.AggregateOrder, current.ID, orderEventPayload(current, nil)); err != nil {
				return err
			}
		}
		if err := writer.event(constants.EventRefundInitiated, constants.AggregateRefund, refund.ID, orderEventPayload(current, models.JSON{
			"refund_id":   refund.ID,
			"refund_no":   refund.RefundNo,
			"amount":      refund.Amount.String(),
			"refund_type": refund.Type,
		})); err != nil {
			return err
		}
		outboxIDs = writer.ids
		return nil
	})
	if err != nil {
		return err
	}
	notifyOutbox(s.notifier, outboxIDs)
	logger.Infow("refund_processing", "refund_id", refund.ID, "gateway_refund_id", gatewayRefundID)
	return nil
}

// restoreStock 退回库存；部分退货仅退回申请中的订单项
func (s *RefundService) restoreStock(tx *gorm.DB, items []models.OrderItem, returnID *uint) error {
	if returnID != nil {
		ret, err := s.returnRepo.WithTx(tx).GetByID(*returnID)
		if err != nil {
			return err
		}
		if ret != nil {
			items = returnedItems(items, ret.Items)
		}
	}
	productRepo := s.productRepo.WithTx(tx)
	for _, item := range items {
		if err := productRepo.RestoreStock(item.ProductID, item.Quantity); err != nil {
			return err
		}
	}
	return nil
}

// ReconcileGatewayRefund 网关回调按 receipt 找到结果未知的退款时补齐本地状态。
// 只处理 initiated 退款，其余情况返回 nil。
func (s *RefundService) ReconcileGatewayRefund(ctx context.Context, refundNo, gatewayRefundID string, rejected bool) (*models.Refund, error) {
	refund, err := s.refundRepo.GetByRefundNo(refundNo)
	if err != nil || refund == nil {
		return nil, err
	}
	if refund.Status != constants.RefundStatusInitiated {
		return nil, nil
	}
	order, err := s.orderRepo.GetByID(refund.OrderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if rejected {
		s.markRejected(refund, order, errors.New("refund failed at gateway"))
		return s.refundRepo.GetByID(refund.ID)
	}
	payment, err := s.paymentRepo.GetByID(refund.PaymentID)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, ErrPaymentNotFound
	}
	if err := s.finalize(refund, order, payment, gatewayRefundID); err != nil {
		return nil, err
	}
	logger.Infow("refund_reconciled_by_receipt", "refund_id", refund.ID, "refund_no", refundNo, "gateway_refund_id", gatewayRefundID)
	return s.refundRepo.GetByID(refund.ID)
}

// refundRetryable failed 退款，或网关结果未知（initiated 且记录了失败原因）的退款
func refundRetryable(refund *models.Refund) bool {
	switch refund.Status {
	case constants.RefundStatusFailed:
		return true
	case constants.RefundStatusInitiated:
		return refund.FailureReason != ""
	}
	return false
}

// RetryFailedRefund 重试失败的退款，重新计算可退金额
func (s *RefundService) RetryFailedRefund(ctx context.Context, refundID uint, actor Actor) (*models.Refund, error) {
	if !actor.IsAdmin {
		return nil, ErrForbidden
	}
	refund, err := s.refundRepo.GetByID(refundID)
	if err != nil {
		return nil, err
	}
	if refund == nil {
		return nil, ErrRefundNotFound
	}
	if !refundRetryable(refund) {
		return nil, ErrRefundNotRetryable
	}
	payment, err := s.paymentRepo.GetByID(refund.PaymentID)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, ErrPaymentNotFound
	}
	order, err := s.orderRepo.GetByID(refund.OrderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	active, err := s.refundRepo.FindActiveByPayment(payment.ID)
	if err != nil {
		return nil, err
	}
	if active != nil && active.ID != refund.ID {
		return nil, ErrRefundAlreadyInitiated
	}
	// 上一次请求若已在网关落地，可退余额会随之减少
	amount, err := s.refundableAmount(ctx, order, payment)
	if err != nil {
		return nil, err
	}
	refund.Amount = amount
	logger.Infow("refund_retry", "refund_id", refund.ID, "amount", amount.String(), "actor", actor.UserID)
	return s.submit(ctx, refund, order, payment)
}

// GetRefundsByOrder 获取订单的退款记录
func (s *RefundService) GetRefundsByOrder(ctx context.Context, orderID uint, actor Actor) ([]models.Refund, error) {
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if !actor.CanAccess(order.UserID) {
		return nil, ErrForbidden
	}
	return s.refundRepo.ListByOrder(order.ID)
}

// ListRefunds 管理端退款列表
func (s *RefundService) ListRefunds(ctx context.Context, filter repository.RefundListFilter) ([]models.Refund, int64, error) {
	return s.refundRepo.List(filter)
}

// MarkCODRefunded 登记到付订单的线下退款
func (s *RefundService) MarkCODRefunded(ctx context.Context, orderID uint, note string, actor Actor) (*models.Order, error) {
	if !actor.IsAdmin {
		return nil, ErrForbidden
	}
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if !order.IsCOD() {
		return nil, ErrOrderNotCOD
	}
	if !order.CODCollected {
		return nil, ErrCODNotCollected
	}
	next, err := OrderMachine.Next(order.Status, OrderEventRefund)
	if err != nil {
		return nil, err
	}
	message := "COD refund recorded manually"
	if trimmed := strings.TrimSpace(note); trimmed != "" {
		message += ": " + trimmed
	}
	err = models.DB.Transaction(func(tx *gorm.DB) error {
		orderRepo := s.orderRepo.WithTx(tx)
		ok, err := orderRepo.TransitionStatus(order.ID, order.Status, next, nil)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: order %d changed concurrently", ErrIllegalTransition, order.ID)
		}
		return orderRepo.AppendHistory(order.ID, next, message)
	})
	if err != nil {
		return nil, err
	}
	logger.Infow("cod_refund_recorded", "order_id", order.ID, "actor", actor.UserID)
	return s.orderRepo.GetByID(order.ID)
}

func generateRefundNo() string {
	return "RF" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:16])
}
