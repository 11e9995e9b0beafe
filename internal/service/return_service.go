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

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const defaultReturnWindowDays = 7

// ReturnService 退货申请流程
type ReturnService struct {
	orderRepo  repository.OrderRepository
	returnRepo repository.ReturnRepository
	outboxRepo repository.OutboxRepository
	shipments  *ShipmentService
	refunds    *RefundService
	notifier   TaskNotifier
	window     time.Duration
	now        func() time.Time
}

// NewReturnService 创建退货服务
func NewReturnService(orderRepo repository.OrderRepository, returnRepo repository.ReturnRepository, outboxRepo repository.OutboxRepository, shipments *ShipmentService, refunds *RefundService, notifier TaskNotifier, windowDays int) *ReturnService {
	if windowDays <= 0 {
		windowDays = defaultReturnWindowDays
	}
	return &ReturnService{
		orderRepo:  orderRepo,
		returnRepo: returnRepo,
		outboxRepo: outboxRepo,
		shipments:  shipments,
		refunds:    refunds,
		notifier:   notifier,
		window:     time.Duration(windowDays) * 24 * time.Hour,
		now:        time.Now,
	}
}

// CreateReturnInput 退货申请输入，OrderItemIDs 为空表示整单退货
type CreateReturnInput struct {
	OrderID      uint
	Reason       string
	OrderItemIDs []uint
}

// CreateReturn 创建退货申请：订单需已签收且在退货期内，同一订单仅允许一个进行中的申请
func (s *ReturnService) CreateReturn(ctx context.Context, input CreateReturnInput, actor Actor) (*models.ReturnRequest, error) {
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		return nil, ErrReturnReasonRequired
	}
	order, err := s.orderRepo.GetByID(input.OrderID)
	if err != nil {
		return nil, err
	}
	if order == nil || actor.UserID == 0 || order.UserID != actor.UserID {
		return nil, ErrOrderNotFound
	}
	if order.Status != constants.OrderStatusDelivered {
		return nil, ErrReturnNotEligible
	}
	deliveredAt, err := s.deliveredAt(order)
	if err != nil {
		return nil, err
	}
	if s.now().After(deliveredAt.Add(s.window)) {
		return nil, ErrReturnWindowExpired
	}
	active, err := s.returnRepo.GetActiveByOrder(order.ID)
	if err != nil {
		return nil, err
	}
	if active != nil {
		return nil, ErrReturnInProgress
	}
	itemIDs, err := validateReturnItems(order, input.OrderItemIDs)
	if err != nil {
		return nil, err
	}

	ret := &models.ReturnRequest{
		ReturnNo:  generateReturnNo(),
		OrderID:   order.ID,
		UserID:    order.UserID,
		Reason:    reason,
		Status:    constants.ReturnStatusRequested,
		IsPartial: len(itemIDs) > 0,
	}
	var outboxIDs []uint
	err = models.DB.Transaction(func(tx *gorm.DB) error {
		if err := s.returnRepo.WithTx(tx).Create(ret, itemIDs); err != nil {
			return err
		}
		if err := s.orderRepo.WithTx(tx).AppendNote(order.ID, order.Status, "Return requested: "+reason); err != nil {
			return err
		}
		writer := newOutboxWriter(s.outboxRepo, tx)
		if err := writer.event(constants.EventReturnRequested, constants.AggregateReturn, ret.ID, returnEventPayload(order, ret)); err != nil {
			return err
		}
		outboxIDs = writer.ids
		return nil
	})
	if err != nil {
		return nil, err
	}
	notifyOutbox(s.notifier, outboxIDs)
	logger.Infow("return_requested", "return_id", ret.ID, "order_id", order.ID, "partial", ret.IsPartial)
	return s.returnRepo.GetByID(ret.ID)
}

// deliveredAt 签收时间以最近一条 delivered 历史为准
func (s *ReturnService) deliveredAt(order *models.Order) (time.Time, error) {
	row, err := s.orderRepo.LatestHistoryByStatus(order.ID, constants.OrderStatusDelivered)
	if err != nil {
		return time.Time{}, err
	}
	if row != nil {
		return row.CreatedAt, nil
	}
	if order.DeliveredAt != nil {
		return *order.DeliveredAt, nil
	}
	return time.Time{}, ErrReturnNotEligible
}

func validateReturnItems(order *models.Order, requested []uint) ([]uint, error) {
	if len(requested) == 0 {
		return nil, nil
	}
	owned := make(map[uint]struct{}, len(order.Items))
	for _, item := range order.Items {
		owned[item.ID] = struct{}{}
	}
	seen := make(map[uint]struct{}, len(requested))
	ids := make([]uint, 0, len(requested))
	for _, id := range requested {
		if _, ok := owned[id]; !ok {
			return nil, ErrReturnItemInvalid
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	if len(ids) == len(order.Items) {
		return nil, nil
	}
	return ids, nil
}

// GetReturn 获取退货申请
func (s *ReturnService) GetReturn(ctx context.Context, returnID uint, actor Actor) (*models.ReturnRequest, error) {
	ret, err := s.returnRepo.GetByID(returnID)
	if err != nil {
		return nil, err
	}
	if ret == nil || !actor.CanAccess(ret.UserID) {
		return nil, ErrReturnNotFound
	}
	return ret, nil
}

// ListReturnsByOrder 订单的退货申请
func (s *ReturnService) ListReturnsByOrder(ctx context.Context, orderID uint, actor Actor) ([]models.ReturnRequest, error) {
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return nil, err
	}
	if order == nil || !actor.CanAccess(order.UserID) {
		return nil, ErrOrderNotFound
	}
	return s.returnRepo.ListByOrder(order.ID)
}

// ListReturns 管理端退货列表
func (s *ReturnService) ListReturns(ctx context.Context, filter repository.ReturnListFilter) ([]models.ReturnRequest, int64, error) {
	return s.returnRepo.List(filter)
}

// ReturnStatistics 按状态统计退货数量
func (s *ReturnService) ReturnStatistics(ctx context.Context) (map[string]int64, error) {
	counts, err := s.returnRepo.CountByStatus()
	if err != nil {
		return nil, err
	}
	var total int64
	for _, n := range counts {
		total += n
	}
	counts["total"] = total
	return counts, nil
}

// UpdateReturnStatus 管理端推进退货状态
func (s *ReturnService) UpdateReturnStatus(ctx context.Context, returnID uint, target, note string, actor Actor) (*models.ReturnRequest, error) {
	if !actor.IsAdmin {
		return nil, ErrForbidden
	}
	target = strings.ToLower(strings.TrimSpace(target))
	ret, err := s.returnRepo.GetByID(returnID)
	if err != nil {
		return nil, err
	}
	if ret == nil {
		return nil, ErrReturnNotFound
	}
	event, ok := ReturnMachine.EventFor(ret.Status, target)
	if !ok {
		return nil, fmt.Errorf("%w: return %s -> %s", ErrIllegalTransition, ret.Status, target)
	}
	order, err := s.orderRepo.GetByID(ret.OrderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}

	switch event {
	case ReturnEventSchedulePickup:
		if _, err := s.shipments.CreateReturnShipment(ctx, ret); err != nil {
			return nil, err
		}
	case ReturnEventComplete:
		if !order.IsCOD() {
			if _, err := s.refunds.ProcessCustomerReturnRefund(ctx, ret.ID, actor); err != nil {
				return nil, err
			}
			s.emitStatusUpdated(ret.ID, order, constants.ReturnStatusCompleted, note)
			return s.returnRepo.GetByID(ret.ID)
		}
		if strings.TrimSpace(note) == "" {
			note = "COD return completed, refund handled manually"
		}
	}
	if err := s.transition(ret, order, event, note); err != nil {
		return nil, err
	}
	logger.Infow("return_status_updated", "return_id", ret.ID, "status", target, "actor", actor.UserID)
	return s.returnRepo.GetByID(ret.ID)
}

// CancelReturn 用户撤销退货申请
func (s *ReturnService) CancelReturn(ctx context.Context, returnID uint, actor Actor) (*models.ReturnRequest, error) {
	ret, err := s.returnRepo.GetByID(returnID)
	if err != nil {
		return nil, err
	}
	if ret == nil || !actor.CanAccess(ret.UserID) {
		return nil, ErrReturnNotFound
	}
	if ret.Status != constants.ReturnStatusRequested && ret.Status != constants.ReturnStatusApproved {
		return nil, ErrReturnNotCancellable
	}
	order, err := s.orderRepo.GetByID(ret.OrderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if err := s.transition(ret, order, ReturnEventCancel, "Return cancelled by customer"); err != nil {
		if errors.Is(err, ErrIllegalTransition) {
			return nil, ErrReturnNotCancellable
		}
		return nil, err
	}
	logger.Infow("return_cancelled", "return_id", ret.ID, "actor", actor.UserID)
	return s.returnRepo.GetByID(ret.ID)
}

// applyCarrierStatus 退货运单回调推进退货状态，非法迁移直接忽略
func (s *ReturnService) applyCarrierStatus(returnID uint, shipmentStatus string) error {
	var event string
	switch shipmentStatus {
	case constants.ShipmentStatusPickedUp, constants.ShipmentStatusInTransit:
		event = ReturnEventPickUp
	case constants.ShipmentStatusDelivered:
		event = ReturnEventReceive
	default:
		return nil
	}
	ret, err := s.returnRepo.GetByID(returnID)
	if err != nil {
		return err
	}
	if ret == nil {
		return ErrReturnNotFound
	}
	if event == ReturnEventReceive && ret.Status == constants.ReturnStatusPickupScheduled {
		if err := s.applyCarrierStatus(returnID, constants.ShipmentStatusPickedUp); err != nil {
			return err
		}
		ret.Status = constants.ReturnStatusPickedUp
	}
	if !ReturnMachine.Can(ret.Status, event) {
		return nil
	}
	order, err := s.orderRepo.GetByID(ret.OrderID)
	if err != nil {
		return err
	}
	if order == nil {
		return ErrOrderNotFound
	}
	return s.transition(ret, order, event, "Updated from carrier tracking")
}

func (s *ReturnService) transition(ret *models.ReturnRequest, order *models.Order, event, note string) error {
	next, err := ReturnMachine.Next(ret.Status, event)
	if err != nil {
		return err
	}
	updates := map[string]interface{}{}
	if trimmed := strings.TrimSpace(note); trimmed != "" {
		updates["admin_note"] = trimmed
	}
	if next == constants.ReturnStatusCompleted {
		updates["completed_at"] = s.now()
	}
	topic := constants.EventReturnStatusUpdated
	if next == constants.ReturnStatusCancelled {
		topic = constants.EventReturnCancelled
	}
	var outboxIDs []uint
	err = models.DB.Transaction(func(tx *gorm.DB) error {
		ok, err := s.returnRepo.WithTx(tx).TransitionStatus(ret.ID, ret.Status, next, updates)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: return %d changed concurrently", ErrIllegalTransition, ret.ID)
		}
		historyNote := fmt.Sprintf("Return %s %s", ret.ReturnNo, next)
		if trimmed := strings.TrimSpace(note); trimmed != "" {
			historyNote += ": " + trimmed
		}
		if err := s.orderRepo.WithTx(tx).AppendNote(order.ID, order.Status, historyNote); err != nil {
			return err
		}
		ret.Status = next
		writer := newOutboxWriter(s.outboxRepo, tx)
		if err := writer.event(topic, constants.AggregateReturn, ret.ID, returnEventPayload(order, ret)); err != nil {
			return err
		}
		outboxIDs = writer.ids
		return nil
	})
	if err != nil {
		return err
	}
	notifyOutbox(s.notifier, outboxIDs)
	return nil
}

// emitStatusUpdated 退款流程已完成退货单时补发状态通知
func (s *ReturnService) emitStatusUpdated(returnID uint, order *models.Order, status, note string) {
	var outboxIDs []uint
	err := models.DB.Transaction(func(tx *gorm.DB) error {
		writer := newOutboxWriter(s.outboxRepo, tx)
		payload := orderEventPayload(order, models.JSON{"return_id": returnID, "return_status": status})
		if trimmed := strings.TrimSpace(note); trimmed != "" {
			payload["note"] = trimmed
		}
		if err := writer.event(constants.EventReturnStatusUpdated, constants.AggregateReturn, returnID, payload); err != nil {
			return err
		}
		outboxIDs = writer.ids
		return nil
	})
	if err != nil {
		logger.Errorw("return_status_event_failed", "return_id", returnID, "error", err)
		return
	}
	notifyOutbox(s.notifier, outboxIDs)
}

func returnEventPayload(order *models.Order, ret *models.ReturnRequest) models.JSON {
	return orderEventPayload(order, models.JSON{
		"return_id":     ret.ID,
		"return_no":     ret.ReturnNo,
		"return_status": ret.Status,
		"is_partial":    ret.IsPartial,
	})
}

func generateReturnNo() string {
	return "RT" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:16])
}
