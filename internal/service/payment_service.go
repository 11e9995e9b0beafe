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
	"github.com/ayurwell-next/internal/repository"

	"gorm.io/gorm"
)

// PaymentService 预付订单的网关下单与结账签名校验
type PaymentService struct {
	orderRepo   repository.OrderRepository
	paymentRepo repository.PaymentRepository
	outboxRepo  repository.OutboxRepository
	gateway     PaymentGateway
	notifier    TaskNotifier
}

// NewPaymentService 创建支付服务
func NewPaymentService(orderRepo repository.OrderRepository, paymentRepo repository.PaymentRepository, outboxRepo repository.OutboxRepository, gateway PaymentGateway, notifier TaskNotifier) *PaymentService {
	return &PaymentService{
		orderRepo:   orderRepo,
		paymentRepo: paymentRepo,
		outboxRepo:  outboxRepo,
		gateway:     gateway,
		notifier:    notifier,
	}
}

// InitiatePayment 为预付订单创建网关订单
func (s *PaymentService) InitiatePayment(ctx context.Context, orderID uint, actor Actor) (*models.Payment, error) {
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return nil, err
	}
	if order == nil || !actor.CanAccess(order.UserID) {
		return nil, ErrOrderNotFound
	}
	if order.PaymentMethod != constants.PaymentMethodPrepaid {
		return nil, ErrPaymentNotPrepaid
	}
	if order.Status != constants.OrderStatusPending {
		return nil, ErrInvalidOrderStatus
	}
	existing, err := s.paymentRepo.GetByOrderID(order.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrPaymentAlreadyInitiated
	}

	gatewayOrderID, err := s.gateway.CreateOrder(ctx, order.TotalAmount.Decimal, order.Currency, order.OrderNo)
	if err != nil {
		logger.Warnw("payment_gateway_order_failed", "order_id", order.ID, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrPaymentGatewayFailed, err)
	}
	payment := &models.Payment{
		OrderID:        order.ID,
		GatewayOrderID: gatewayOrderID,
		Amount:         order.TotalAmount,
		Currency:       order.Currency,
		Status:         constants.PaymentStatusCreated,
	}
	if err := s.paymentRepo.Create(payment); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrPaymentAlreadyInitiated
		}
		return nil, err
	}
	logger.Infow("payment_initiated", "order_id", order.ID, "payment_id", payment.ID, "gateway_order_id", gatewayOrderID)
	return payment, nil
}

// VerifyPaymentInput 结账回传参数
type VerifyPaymentInput struct {
	GatewayOrderID   string
	GatewayPaymentID string
	Signature        string
}

// VerifyPayment 校验结账签名；成功时在同一事务内捕获支付、推进订单并写入发货任务
func (s *PaymentService) VerifyPayment(ctx context.Context, input VerifyPaymentInput, actor Actor) (*models.Payment, error) {
	input.GatewayOrderID = strings.TrimSpace(input.GatewayOrderID)
	input.GatewayPaymentID = strings.TrimSpace(input.GatewayPaymentID)
	if input.GatewayOrderID == "" || input.GatewayPaymentID == "" || strings.TrimSpace(input.Signature) == "" {
		return nil, ErrInvalidInput
	}
	payment, err := s.paymentRepo.GetByGatewayOrderID(input.GatewayOrderID)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, ErrPaymentNotFound
	}
	order, err := s.orderRepo.GetByID(payment.OrderID)
	if err != nil {
		return nil, err
	}
	if order == nil || !actor.CanAccess(order.UserID) {
		return nil, ErrOrderNotFound
	}
	if payment.Status == constants.PaymentStatusCaptured || payment.Status == constants.PaymentStatusRefunded {
		return payment, nil
	}

	if !s.gateway.VerifyCheckoutSignature(input.GatewayOrderID, input.GatewayPaymentID, input.Signature) {
		s.rejectSignature(payment, order, input)
		return nil, ErrPaymentSignatureInvalid
	}

	now := time.Now()
	captured := false
	var outboxIDs []uint
	err = models.DB.Transaction(func(tx *gorm.DB) error {
		ok, err := s.paymentRepo.WithTx(tx).TransitionStatus(payment.ID,
			[]string{constants.PaymentStatusCreated, constants.PaymentStatusPending},
			constants.PaymentStatusCaptured,
			map[string]interface{}{
				"gateway_payment_id": input.GatewayPaymentID,
				"gateway_signature":  input.Signature,
				"captured_at":        now,
			})
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		captured = true

		orderRepo := s.orderRepo.WithTx(tx)
		next, err := OrderMachine.Next(order.Status, OrderEventPaymentCaptured)
		if err != nil {
			return err
		}
		moved, err := orderRepo.TransitionStatus(order.ID, order.Status, next, map[string]interface{}{"paid_at": now})
		if err != nil {
			return err
		}
		if !moved {
			return fmt.Errorf("%w: order %d changed concurrently", ErrIllegalTransition, order.ID)
		}
		if err := orderRepo.AppendHistory(order.ID, next, "Payment captured: "+input.GatewayPaymentID); err != nil {
			return err
		}
		order.Status = next

		writer := newOutboxWriter(s.outboxRepo, tx)
		if err := writer.task(constants.OutboxTaskCreateShipment, constants.AggregateOrder, order.ID, models.JSON{
			"order_id": order.ID,
		}); err != nil {
			return err
		}
		if err := writer.event(constants.EventOrderPaid, constants.AggregateOrder, order.ID, orderEventPayload(order, models.JSON{
			"gateway_payment_id": input.GatewayPaymentID,
		})); err != nil {
			return err
		}
		outboxIDs = writer.ids
		return nil
	})
	if err != nil {
		return nil, err
	}
	if captured {
		notifyOutbox(s.notifier, outboxIDs)
		logger.Infow("payment_captured", "order_id", order.ID, "payment_id", payment.ID, "gateway_payment_id", input.GatewayPaymentID)
	}
	return s.paymentRepo.GetByID(payment.ID)
}

// rejectSignature 签名不一致：支付与订单回到 pending 并留下记录
func (s *PaymentService) rejectSignature(payment *models.Payment, order *models.Order, input VerifyPaymentInput) {
	var outboxIDs []uint
	err := models.DB.Transaction(func(tx *gorm.DB) error {
		if err := s.paymentRepo.WithTx(tx).Update(payment.ID, map[string]interface{}{
			"status":            constants.PaymentStatusPending,
			"gateway_signature": input.Signature,
		}); err != nil {
			return err
		}
		orderRepo := s.orderRepo.WithTx(tx)
		moved := false
		if OrderMachine.Can(order.Status, OrderEventPaymentRejected) {
			next, _ := OrderMachine.Next(order.Status, OrderEventPaymentRejected)
			ok, err := orderRepo.TransitionStatus(order.ID, order.Status, next, nil)
			if err != nil {
				return err
			}
			moved = ok
		}
		appendRow := orderRepo.AppendNote
		if moved {
			appendRow = orderRepo.AppendHistory
		}
		if err := appendRow(order.ID, constants.OrderStatusPending, "Payment verification failed: signature mismatch"); err != nil {
			return err
		}
		writer := newOutboxWriter(s.outboxRepo, tx)
		if err := writer.event(constants.EventPaymentVerificationFailed, constants.AggregateOrder, order.ID, orderEventPayload(order, models.JSON{
			"gateway_order_id":   input.GatewayOrderID,
			"gateway_payment_id": input.GatewayPaymentID,
		})); err != nil {
			return err
		}
		outboxIDs = writer.ids
		return nil
	})
	if err != nil {
		logger.Errorw("payment_signature_reject_failed", "order_id", order.ID, "error", err)
		return
	}
	notifyOutbox(s.notifier, outboxIDs)
	logger.Warnw("payment_signature_mismatch", "order_id", order.ID, "gateway_order_id", input.GatewayOrderID)
}

// GetPaymentByOrder 获取订单支付记录
func (s *PaymentService) GetPaymentByOrder(ctx context.Context, orderID uint, actor Actor) (*models.Payment, error) {
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return nil, err
	}
	if order == nil || !actor.CanAccess(order.UserID) {
		return nil, ErrOrderNotFound
	}
	payment, err := s.paymentRepo.GetByOrderID(order.ID)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, ErrPaymentNotFound
	}
	return payment, nil
}
