package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ayurwell-next/internal/carrier/shiprocket"
	"github.com/ayurwell-next/internal/constants"
	"github.com/ayurwell-next/internal/logger"
	"github.com/ayurwell-next/internal/models"
	"github.com/ayurwell-next/internal/repository"

	"gorm.io/gorm"
)

// ShipmentOptions 发货相关配置
type ShipmentOptions struct {
	PickupPostcode string
	Warehouse      shiprocket.Party
}

// ShipmentService 运单编排：建单、AWB 分配、取消与 RTO
type ShipmentService struct {
	orderRepo    repository.OrderRepository
	shipmentRepo repository.ShipmentRepository
	userRepo     repository.UserRepository
	outboxRepo   repository.OutboxRepository
	carrier      ShippingCarrier
	notifier     TaskNotifier
	awbScheduler AWBScheduler
	options      ShipmentOptions
}

// awbFollowUpAttempts 超过该次数后不再单独排队，交给定时补分配批次
const awbFollowUpAttempts = 3

// reservationStaleAfter 占位运单超过该时长仍无承运商单号，视为建单中断
const reservationStaleAfter = 2 * time.Minute

// NewShipmentService 创建运单服务
func NewShipmentService(orderRepo repository.OrderRepository, shipmentRepo repository.ShipmentRepository, userRepo repository.UserRepository, outboxRepo repository.OutboxRepository, carrier ShippingCarrier, notifier TaskNotifier, options ShipmentOptions) *ShipmentService {
	if strings.TrimSpace(options.Warehouse.PostalCode) == "" {
		options.Warehouse.PostalCode = options.PickupPostcode
	}
	return &ShipmentService{
		orderRepo:    orderRepo,
		shipmentRepo: shipmentRepo,
		userRepo:     userRepo,
		outboxRepo:   outboxRepo,
		carrier:      carrier,
		notifier:     notifier,
		options:      options,
	}
}

// SetAWBScheduler 设置 AWB 延迟重试的排队实现
func (s *ShipmentService) SetAWBScheduler(scheduler AWBScheduler) {
	s.awbScheduler = scheduler
}

func forwardDedupeKey(orderID uint) string {
	return fmt.Sprintf("order:%d:forward", orderID)
}

func returnDedupeKey(returnID uint) string {
	return fmt.Sprintf("return:%d", returnID)
}

// GetShipmentByOrder 订单的正向运单，非本人订单按不存在处理
func (s *ShipmentService) GetShipmentByOrder(ctx context.Context, orderID uint, actor Actor) (*models.Shipment, error) {
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return nil, err
	}
	if order == nil || !actor.CanAccess(order.UserID) {
		return nil, ErrOrderNotFound
	}
	shipment, err := s.shipmentRepo.GetForwardByOrderID(order.ID)
	if err != nil {
		return nil, err
	}
	if shipment == nil {
		return nil, ErrShipmentNotFound
	}
	return shipment, nil
}

// GetShipment 管理端运单详情
func (s *ShipmentService) GetShipment(ctx context.Context, shipmentID uint) (*models.Shipment, error) {
	shipment, err := s.shipmentRepo.GetByID(shipmentID)
	if err != nil {
		return nil, err
	}
	if shipment == nil {
		return nil, ErrShipmentNotFound
	}
	return shipment, nil
}

// ListShipments 管理端运单列表
func (s *ShipmentService) ListShipments(ctx context.Context, filter repository.ShipmentListFilter) ([]models.Shipment, int64, error) {
	return s.shipmentRepo.List(filter)
}

// canCreateForwardShipment 预付订单需已支付，到付订单在待处理状态即可发货
func canCreateForwardShipment(order *models.Order) bool {
	if order.IsCOD() {
		return order.Status == constants.OrderStatusPending
	}
	return order.Status == constants.OrderStatusPaid
}

// CreateShipment 为订单创建正向运单
func (s *ShipmentService) CreateShipment(ctx context.Context, orderID uint) (*models.Shipment, error) {
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	existing, err := s.shipmentRepo.GetForwardByOrderID(order.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrShipmentAlreadyExists
	}
	if !canCreateForwardShipment(order) {
		return nil, ErrShipmentNotAllowed
	}
	if order.Address == nil {
		return nil, ErrAddressNotFound
	}

	metrics := ComputePackage(packageLinesFromItems(order.Items))
	shipment := &models.Shipment{
		OrderID:          order.ID,
		Type:             constants.ShipmentTypeForward,
		DedupeKey:        forwardDedupeKey(order.ID),
		Status:           constants.ShipmentStatusCreated,
		CourierID:        order.CourierID,
		CourierName:      order.CourierName,
		ActualWeight:     metrics.ActualWeight,
		VolumetricWeight: metrics.VolumetricWeight,
		ChargeableWeight: metrics.ChargeableWeight,
		Length:           metrics.Length,
		Breadth:          metrics.Breadth,
		Height:           metrics.Height,
		DeliveryFee:      order.DeliveryFee,
	}
	created, err := s.shipmentRepo.CreateIfAbsent(shipment)
	if err != nil {
		return nil, err
	}
	if !created {
		return nil, ErrShipmentAlreadyExists
	}

	result, err := s.carrier.CreateShipment(ctx, s.buildShipmentRequest(order, order.OrderNo, order.Items, order.IsCOD(), metrics))
	if err != nil {
		if delErr := s.shipmentRepo.DeleteReservation(shipment.ID); delErr != nil {
			logger.Errorw("shipment_reservation_release_failed", "shipment_id", shipment.ID, "error", delErr)
		}
		logger.Warnw("shipment_create_failed", "order_id", order.ID, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrCarrierRequestFailed, err)
	}
	return s.finalizeCarrierOrder(order, shipment.ID, result, true)
}

// finalizeCarrierOrder 承运商建单成功后落库：回填单号、订单进入 confirmed、写入 shipment.created 事件
func (s *ShipmentService) finalizeCarrierOrder(order *models.Order, shipmentID uint, result *shiprocket.ShipmentResult, fresh bool) (*models.Shipment, error) {
	now := time.Now()
	updates := map[string]interface{}{"updated_at": now}
	if fresh {
		updates["carrier_order_id"] = result.CarrierOrderID
		updates["carrier_shipment_id"] = result.CarrierShipmentID
		updates["tracking_url"] = result.TrackingURL
		updates["cod_fee"] = models.NewMoneyFromFloat(result.CODCharges)
		updates["last_error"] = ""
		if result.FreightCharges > 0 {
			updates["delivery_fee"] = models.NewMoneyFromFloat(result.FreightCharges)
		}
	}
	var outboxIDs []uint
	err := models.DB.Transaction(func(tx *gorm.DB) error {
		shipmentRepo := s.shipmentRepo.WithTx(tx)
		orderRepo := s.orderRepo.WithTx(tx)
		writer := newOutboxWriter(s.outboxRepo, tx)

		if err := shipmentRepo.Update(shipmentID, updates); err != nil {
			return err
		}
		next, err := OrderMachine.Next(order.Status, OrderEventConfirm)
		if err != nil {
			return err
		}
		ok, err := orderRepo.TransitionStatus(order.ID, order.Status, next, map[string]interface{}{"updated_at": now})
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: order %d changed concurrently", ErrIllegalTransition, order.ID)
		}
		if err := orderRepo.AppendHistory(order.ID, next, fmt.Sprintf("Shipment created with carrier order %s", result.CarrierOrderID)); err != nil {
			return err
		}
		if err := writer.event(constants.EventShipmentCreated, constants.AggregateShipment, shipmentID, orderEventPayload(order, models.JSON{
			"shipment_id":      shipmentID,
			"carrier_order_id": result.CarrierOrderID,
			"tracking_url":     result.TrackingURL,
		})); err != nil {
			return err
		}
		outboxIDs = writer.ids
		return nil
	})
	if err != nil {
		// 承运商侧已建单，本地记录保留承运商单号以便续建或人工核对
		logger.Errorw("shipment_finalize_failed", "shipment_id", shipmentID, "carrier_order_id", result.CarrierOrderID, "error", err)
		_ = s.shipmentRepo.Update(shipmentID, map[string]interface{}{
			"carrier_order_id":    result.CarrierOrderID,
			"carrier_shipment_id": result.CarrierShipmentID,
			"last_error":          truncateError(err),
		})
		return nil, err
	}
	notifyOutbox(s.notifier, outboxIDs)
	logger.Infow("shipment_created", "order_id", order.ID, "shipment_id", shipmentID, "carrier_order_id", result.CarrierOrderID)
	return s.shipmentRepo.GetByID(shipmentID)
}

// ResumeReservation 续建中断的正向运单：占位行已存在但承运商单号缺失，或承运商已建单而订单未确认。
// 订单已不可发货时释放占位行并返回 nil。
func (s *ShipmentService) ResumeReservation(ctx context.Context, shipmentID uint) (*models.Shipment, error) {
	shipment, err := s.shipmentRepo.GetByID(shipmentID)
	if err != nil {
		return nil, err
	}
	if shipment == nil {
		return nil, ErrShipmentNotFound
	}
	if shipment.Type != constants.ShipmentTypeForward || shipment.Status != constants.ShipmentStatusCreated {
		return shipment, nil
	}
	order, err := s.orderRepo.GetByID(shipment.OrderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if !canCreateForwardShipment(order) {
		if shipment.CarrierOrderID != "" {
			return shipment, nil
		}
		if err := s.shipmentRepo.DeleteReservation(shipment.ID); err != nil {
			return nil, err
		}
		logger.Infow("shipment_reservation_released", "shipment_id", shipment.ID, "order_id", order.ID, "status", order.Status)
		return nil, nil
	}
	if shipment.CarrierOrderID != "" {
		return s.finalizeCarrierOrder(order, shipment.ID, &shiprocket.ShipmentResult{
			CarrierOrderID:    shipment.CarrierOrderID,
			CarrierShipmentID: shipment.CarrierShipmentID,
			TrackingURL:       shipment.TrackingURL,
		}, false)
	}
	if order.Address == nil {
		return nil, ErrAddressNotFound
	}

	metrics := ComputePackage(packageLinesFromItems(order.Items))
	result, err := s.carrier.CreateShipment(ctx, s.buildShipmentRequest(order, order.OrderNo, order.Items, order.IsCOD(), metrics))
	if err != nil {
		// 占位行保留，等待下一次续建
		_ = s.shipmentRepo.Update(shipment.ID, map[string]interface{}{"last_error": truncateError(err)})
		logger.Warnw("shipment_resume_failed", "shipment_id", shipment.ID, "order_id", order.ID, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrCarrierRequestFailed, err)
	}
	logger.Infow("shipment_reservation_resumed", "shipment_id", shipment.ID, "order_id", order.ID)
	return s.finalizeCarrierOrder(order, shipment.ID, result, true)
}

func (s *ShipmentService) buildShipmentRequest(order *models.Order, reference string, items []models.OrderItem, cod bool, metrics PackageMetrics) shiprocket.ShipmentRequest {
	customer := shiprocket.Party{}
	if order.Address != nil {
		customer = shiprocket.Party{
			Name:       order.Address.Name,
			Phone:      order.Address.Phone,
			Address1:   order.Address.Line1,
			Address2:   order.Address.Line2,
			City:       order.Address.City,
			State:      order.Address.State,
			PostalCode: order.Address.PostalCode,
			Country:    order.Address.Country,
		}
	}
	if s.userRepo != nil {
		if user, err := s.userRepo.GetByID(order.UserID); err == nil && user != nil {
			customer.Email = user.Email
			if customer.Name == "" {
				customer.Name = user.FullName()
			}
		}
	}
	lines := make([]shiprocket.LineItem, 0, len(items))
	subTotal := 0.0
	for _, item := range items {
		price, _ := item.UnitPrice.Float64()
		lines = append(lines, shiprocket.LineItem{
			Name:         item.ProductName,
			SKU:          item.SKU,
			Units:        item.Quantity,
			SellingPrice: price,
		})
		subTotal += price * float64(item.Quantity)
	}
	if cod {
		subTotal, _ = order.TotalAmount.Float64()
	}
	return shiprocket.ShipmentRequest{
		OrderNo:   reference,
		OrderDate: order.CreatedAt,
		Customer:  customer,
		Items:     lines,
		COD:       cod,
		SubTotal:  subTotal,
		Length:    metrics.Length,
		Breadth:   metrics.Breadth,
		Height:    metrics.Height,
		Weight:    metrics.ChargeableWeight,
	}
}

// ConfirmCODOrder 确认到付订单：建单后尽力分配 AWB
func (s *ShipmentService) ConfirmCODOrder(ctx context.Context, orderID uint, actor Actor) (*models.Shipment, error) {
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
	if !order.IsCOD() {
		return nil, ErrOrderNotCOD
	}
	shipment, err := s.CreateShipment(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	return s.assignBestEffort(ctx, shipment), nil
}

// FulfillPaidOrder 支付捕获后的发件箱任务：补建运单并尽力分配 AWB
func (s *ShipmentService) FulfillPaidOrder(ctx context.Context, orderID uint) error {
	shipment, err := s.shipmentRepo.GetForwardByOrderID(orderID)
	if err != nil {
		return err
	}
	if shipment == nil {
		order, err := s.orderRepo.GetByID(orderID)
		if err != nil {
			return err
		}
		if order == nil {
			return ErrOrderNotFound
		}
		if !canCreateForwardShipment(order) {
			logger.Infow("fulfillment_skipped", "order_id", orderID, "status", order.Status)
			return nil
		}
		shipment, err = s.CreateShipment(ctx, orderID)
		if errors.Is(err, ErrShipmentAlreadyExists) {
			shipment, err = s.shipmentRepo.GetForwardByOrderID(orderID)
		}
		if err != nil {
			return err
		}
		if shipment == nil {
			return ErrShipmentNotFound
		}
	} else if shipment.Type == constants.ShipmentTypeForward && shipment.Status == constants.ShipmentStatusCreated {
		if shipment.CarrierOrderID == "" && time.Since(shipment.CreatedAt) < reservationStaleAfter {
			// 可能仍有进行中的建单请求，交给发件箱稍后重试
			return fmt.Errorf("%w: shipment %d", ErrShipmentReservationPending, shipment.ID)
		}
		shipment, err = s.ResumeReservation(ctx, shipment.ID)
		if err != nil {
			return err
		}
		if shipment == nil {
			return nil
		}
	}
	s.assignBestEffort(ctx, shipment)
	return nil
}

func (s *ShipmentService) assignBestEffort(ctx context.Context, shipment *models.Shipment) *models.Shipment {
	if shipment == nil || shipment.HasAWB() || shipment.CarrierShipmentID == "" {
		return shipment
	}
	updated, err := s.AssignAWB(ctx, shipment.ID)
	if err != nil {
		logger.Warnw("shipment_awb_assign_deferred", "shipment_id", shipment.ID, "error", err)
		return shipment
	}
	return updated
}

// AssignAWB 分配追踪号：优先使用下单时选定的快递公司，被拒后交由承运商自动选择
func (s *ShipmentService) AssignAWB(ctx context.Context, shipmentID uint) (*models.Shipment, error) {
	shipment, err := s.shipmentRepo.GetByID(shipmentID)
	if err != nil {
		return nil, err
	}
	if shipment == nil {
		return nil, ErrShipmentNotFound
	}
	if shipment.HasAWB() {
		return shipment, nil
	}
	if !ShipmentMachine.Can(shipment.Status, ShipmentEventAssignAWB) {
		return nil, fmt.Errorf("%w: shipment %s", ErrIllegalTransition, shipment.Status)
	}
	if shipment.CarrierShipmentID == "" {
		return nil, ErrShipmentNotAllowed
	}

	result, err := s.carrier.AssignAWB(ctx, shipment.CarrierShipmentID, shipment.CourierID)
	if err != nil && shipment.CourierID != "" && errors.Is(err, shiprocket.ErrCourierRejected) {
		logger.Infow("shipment_awb_preferred_courier_rejected", "shipment_id", shipment.ID, "courier_id", shipment.CourierID, "error", err)
		result, err = s.carrier.AssignAWB(ctx, shipment.CarrierShipmentID, "")
	}
	attempts := shipment.AssignAttempts + 1
	if err != nil {
		s.recordAssignFailure(shipment, attempts, err.Error(), true)
		return nil, fmt.Errorf("%w: %v", ErrCarrierRequestFailed, err)
	}
	if strings.TrimSpace(result.AWB) == "" {
		logger.Warnw("shipment_awb_not_available", "shipment_id", shipment.ID, "message", result.Message)
		s.recordAssignFailure(shipment, attempts, result.Message, false)
		return s.shipmentRepo.GetByID(shipment.ID)
	}

	courierID := firstNonEmpty(result.CourierID, shipment.CourierID)
	courierName := firstNonEmpty(result.CourierName, shipment.CourierName)
	var outboxIDs []uint
	err = models.DB.Transaction(func(tx *gorm.DB) error {
		shipmentRepo := s.shipmentRepo.WithTx(tx)
		writer := newOutboxWriter(s.outboxRepo, tx)
		ok, err := shipmentRepo.TransitionStatus(shipment.ID, shipment.Status, constants.ShipmentStatusAWBAssigned, map[string]interface{}{
			"awb":             result.AWB,
			"courier_id":      courierID,
			"courier_name":    courierName,
			"tracking_url":    shiprocket.TrackingURL(result.AWB),
			"assign_attempts": attempts,
			"last_error":      "",
		})
		if err != nil || !ok {
			return err
		}
		order, err := s.orderRepo.WithTx(tx).GetByID(shipment.OrderID)
		if err != nil {
			return err
		}
		payload := models.JSON{"shipment_id": shipment.ID, "awb": result.AWB, "courier_name": courierName}
		if order != nil {
			payload = orderEventPayload(order, payload)
		}
		if err := writer.event(constants.EventShipmentAWBAssigned, constants.AggregateShipment, shipment.ID, payload); err != nil {
			return err
		}
		outboxIDs = writer.ids
		return nil
	})
	if err != nil {
		return nil, err
	}
	notifyOutbox(s.notifier, outboxIDs)
	logger.Infow("shipment_awb_assigned", "shipment_id", shipment.ID, "awb", result.AWB, "courier", courierName)
	return s.shipmentRepo.GetByID(shipment.ID)
}

// recordAssignFailure 记录分配失败；承运商拒绝或请求失败时通知下游
func (s *ShipmentService) recordAssignFailure(shipment *models.Shipment, attempts int, reason string, notify bool) {
	var outboxIDs []uint
	err := models.DB.Transaction(func(tx *gorm.DB) error {
		if err := s.shipmentRepo.WithTx(tx).Update(shipment.ID, map[string]interface{}{
			"assign_attempts": attempts,
			"last_error":      truncateError(errors.New(firstNonEmpty(reason, "awb not available"))),
		}); err != nil {
			return err
		}
		if !notify {
			return nil
		}
		writer := newOutboxWriter(s.outboxRepo, tx)
		if err := writer.event(constants.EventShipmentAssignmentFailed, constants.AggregateShipment, shipment.ID, models.JSON{
			"shipment_id": shipment.ID,
			"order_id":    shipment.OrderID,
			"attempts":    attempts,
			"reason":      reason,
		}); err != nil {
			return err
		}
		outboxIDs = writer.ids
		return nil
	})
	if err != nil {
		logger.Errorw("shipment_assign_failure_record_failed", "shipment_id", shipment.ID, "error", err)
		return
	}
	notifyOutbox(s.notifier, outboxIDs)
	if s.awbScheduler != nil && attempts < awbFollowUpAttempts {
		s.awbScheduler.ScheduleAWBAssign(shipment.ID, time.Duration(attempts)*2*time.Minute)
	}
}

// CancelShipment 取消运单：先取消承运商订单，再更新本地状态
func (s *ShipmentService) CancelShipment(ctx context.Context, shipmentID uint) (*models.Shipment, error) {
	shipment, err := s.shipmentRepo.GetByID(shipmentID)
	if err != nil {
		return nil, err
	}
	if shipment == nil {
		return nil, ErrShipmentNotFound
	}
	next, err := ShipmentMachine.Next(shipment.Status, ShipmentEventCancel)
	if err != nil {
		return nil, ErrShipmentNotCancellable
	}
	if shipment.CarrierOrderID != "" {
		if err := s.carrier.CancelShipments(ctx, []string{shipment.CarrierOrderID}); err != nil {
			logger.Warnw("shipment_cancel_failed", "shipment_id", shipment.ID, "error", err)
			return nil, fmt.Errorf("%w: %v", ErrCarrierRequestFailed, err)
		}
	}

	var outboxIDs []uint
	err = models.DB.Transaction(func(tx *gorm.DB) error {
		ok, err := s.shipmentRepo.WithTx(tx).TransitionStatus(shipment.ID, shipment.Status, next, nil)
		if err != nil {
			return err
		}
		if !ok {
			return ErrShipmentNotCancellable
		}
		order, err := s.orderRepo.WithTx(tx).GetByID(shipment.OrderID)
		if err != nil {
			return err
		}
		if order == nil {
			return ErrOrderNotFound
		}
		if err := s.orderRepo.WithTx(tx).AppendNote(order.ID, order.Status, fmt.Sprintf("Shipment %d cancelled", shipment.ID)); err != nil {
			return err
		}
		writer := newOutboxWriter(s.outboxRepo, tx)
		if err := writer.event(constants.EventShipmentCancelled, constants.AggregateShipment, shipment.ID, orderEventPayload(order, models.JSON{
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
	notifyOutbox(s.notifier, outboxIDs)
	logger.Infow("shipment_cancelled", "shipment_id", shipment.ID, "order_id", shipment.OrderID)
	return s.shipmentRepo.GetByID(shipment.ID)
}

// RequestRTO 发起退回：仅限已揽收、运输中、派送中的运单
func (s *ShipmentService) RequestRTO(ctx context.Context, shipmentID uint) (*models.Shipment, error) {
	shipment, err := s.shipmentRepo.GetByID(shipmentID)
	if err != nil {
		return nil, err
	}
	if shipment == nil {
		return nil, ErrShipmentNotFound
	}
	if shipment.Status == constants.ShipmentStatusRTOInitiated || shipment.Status == constants.ShipmentStatusRTODelivered {
		return nil, ErrRTOAlreadyInitiated
	}
	if !ShipmentMachine.Can(shipment.Status, ShipmentEventRTOInitiate) {
		return nil, ErrRTONotAllowed
	}
	ids, err := s.applyRTOInitiated(shipment, "RTO requested by admin")
	if err != nil {
		return nil, err
	}
	notifyOutbox(s.notifier, ids)
	return s.shipmentRepo.GetByID(shipment.ID)
}

// applyRTOInitiated 运单与订单同时进入 rto_initiated
func (s *ShipmentService) applyRTOInitiated(shipment *models.Shipment, note string) ([]uint, error) {
	var outboxIDs []uint
	err := models.DB.Transaction(func(tx *gorm.DB) error {
		ok, err := s.shipmentRepo.WithTx(tx).TransitionStatus(shipment.ID, shipment.Status, constants.ShipmentStatusRTOInitiated, nil)
		if err != nil {
			return err
		}
		if !ok {
			return ErrRTONotAllowed
		}
		orderRepo := s.orderRepo.WithTx(tx)
		order, err := orderRepo.GetByID(shipment.OrderID)
		if err != nil {
			return err
		}
		if order == nil {
			return ErrOrderNotFound
		}
		if OrderMachine.Can(order.Status, OrderEventRTOInitiate) {
			if _, err := orderRepo.TransitionStatus(order.ID, order.Status, constants.OrderStatusRTOInitiated, nil); err != nil {
				return err
			}
			order.Status = constants.OrderStatusRTOInitiated
		}
		if err := orderRepo.AppendNote(order.ID, order.Status, note); err != nil {
			return err
		}
		writer := newOutboxWriter(s.outboxRepo, tx)
		if err := writer.event(constants.EventOrderRTOInitiated, constants.AggregateOrder, order.ID, orderEventPayload(order, models.JSON{
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
	logger.Infow("shipment_rto_initiated", "shipment_id", shipment.ID, "order_id", shipment.OrderID)
	return outboxIDs, nil
}

// CreateReturnShipment 为退货申请预约上门取件
func (s *ShipmentService) CreateReturnShipment(ctx context.Context, ret *models.ReturnRequest) (*models.Shipment, error) {
	if ret == nil {
		return nil, ErrReturnNotFound
	}
	existing, err := s.shipmentRepo.GetByReturnID(ret.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}
	order, err := s.orderRepo.GetByID(ret.OrderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}

	items := returnedItems(order.Items, ret.Items)
	metrics := ComputePackage(packageLinesFromItems(items))
	returnID := ret.ID
	shipment := &models.Shipment{
		OrderID:          order.ID,
		ReturnID:         &returnID,
		Type:             constants.ShipmentTypeReturn,
		DedupeKey:        returnDedupeKey(ret.ID),
		Status:           constants.ShipmentStatusCreated,
		ActualWeight:     metrics.ActualWeight,
		VolumetricWeight: metrics.VolumetricWeight,
		ChargeableWeight: metrics.ChargeableWeight,
		Length:           metrics.Length,
		Breadth:          metrics.Breadth,
		Height:           metrics.Height,
	}
	created, err := s.shipmentRepo.CreateIfAbsent(shipment)
	if err != nil {
		return nil, err
	}
	if !created {
		return s.shipmentRepo.GetByReturnID(ret.ID)
	}

	req := s.buildShipmentRequest(order, order.OrderNo+"-R", items, false, metrics)
	result, err := s.carrier.CreateReturnShipment(ctx, req, s.options.Warehouse)
	if err != nil {
		if delErr := s.shipmentRepo.DeleteReservation(shipment.ID); delErr != nil {
			logger.Errorw("shipment_reservation_release_failed", "shipment_id", shipment.ID, "error", delErr)
		}
		logger.Warnw("return_shipment_create_failed", "return_id", ret.ID, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrCarrierRequestFailed, err)
	}
	updates := map[string]interface{}{
		"carrier_order_id":    result.CarrierOrderID,
		"carrier_shipment_id": result.CarrierShipmentID,
		"tracking_url":        result.TrackingURL,
	}
	if result.AWB != "" {
		updates["awb"] = result.AWB
		updates["status"] = constants.ShipmentStatusAWBAssigned
	}
	if err := s.shipmentRepo.Update(shipment.ID, updates); err != nil {
		return nil, err
	}
	logger.Infow("return_shipment_created", "return_id", ret.ID, "shipment_id", shipment.ID, "carrier_order_id", result.CarrierOrderID)
	return s.shipmentRepo.GetByID(shipment.ID)
}

// returnedItems 部分退货时仅取申请中的订单项
func returnedItems(items []models.OrderItem, selected []models.ReturnItem) []models.OrderItem {
	if len(selected) == 0 {
		return items
	}
	wanted := make(map[uint]struct{}, len(selected))
	for _, item := range selected {
		wanted[item.OrderItemID] = struct{}{}
	}
	result := make([]models.OrderItem, 0, len(selected))
	for _, item := range items {
		if _, ok := wanted[item.ID]; ok {
			result = append(result, item)
		}
	}
	return result
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
