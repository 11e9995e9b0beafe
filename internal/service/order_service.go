package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ayurwell-next/internal/carrier/shiprocket"
	"github.com/ayurwell-next/internal/constants"
	"github.com/ayurwell-next/internal/logger"
	"github.com/ayurwell-next/internal/models"
	"github.com/ayurwell-next/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// OrderOptions 下单配置
type OrderOptions struct {
	Currency              string
	PickupPostcode        string
	FreeDeliveryThreshold decimal.Decimal
	CourierStrategy       CourierStrategy
}

// OrderService 订单生命周期
type OrderService struct {
	orderRepo    repository.OrderRepository
	productRepo  repository.ProductRepository
	cartRepo     repository.CartRepository
	addressRepo  repository.AddressRepository
	paymentRepo  repository.PaymentRepository
	refundRepo   repository.RefundRepository
	shipmentRepo repository.ShipmentRepository
	outboxRepo   repository.OutboxRepository
	carrier      ShippingCarrier
	shipments    *ShipmentService
	refunds      *RefundService
	notifier     TaskNotifier
	options      OrderOptions
}

// OrderServiceDeps 订单服务依赖
type OrderServiceDeps struct {
	OrderRepo    repository.OrderRepository
	ProductRepo  repository.ProductRepository
	CartRepo     repository.CartRepository
	AddressRepo  repository.AddressRepository
	PaymentRepo  repository.PaymentRepository
	RefundRepo   repository.RefundRepository
	ShipmentRepo repository.ShipmentRepository
	OutboxRepo   repository.OutboxRepository
	Carrier      ShippingCarrier
	Shipments    *ShipmentService
	Refunds      *RefundService
	Notifier     TaskNotifier
}

// NewOrderService 创建订单服务
func NewOrderService(deps OrderServiceDeps, options OrderOptions) *OrderService {
	if strings.TrimSpace(options.Currency) == "" {
		options.Currency = "INR"
	}
	if options.CourierStrategy == "" {
		options.CourierStrategy = CourierStrategyCheapest
	}
	return &OrderService{
		orderRepo:    deps.OrderRepo,
		productRepo:  deps.ProductRepo,
		cartRepo:     deps.CartRepo,
		addressRepo:  deps.AddressRepo,
		paymentRepo:  deps.PaymentRepo,
		refundRepo:   deps.RefundRepo,
		shipmentRepo: deps.ShipmentRepo,
		outboxRepo:   deps.OutboxRepo,
		carrier:      deps.Carrier,
		shipments:    deps.Shipments,
		refunds:      deps.Refunds,
		notifier:     deps.Notifier,
		options:      options,
	}
}

// CreateOrderItem 下单商品
type CreateOrderItem struct {
	ProductID uint
	Quantity  int
}

// CreateOrderInput 下单输入，Items 为空时结算购物车
type CreateOrderInput struct {
	UserID        uint
	AddressID     uint
	PaymentMethod string
	Items         []CreateOrderItem
}

type checkoutLine struct {
	product  *models.Product
	quantity int
}

// DeliveryQuote 运费试算结果，下单时按同一口径计算
type DeliveryQuote struct {
	AddressID             uint               `json:"address_id"`
	PaymentMethod         string             `json:"payment_method"`
	Currency              string             `json:"currency"`
	Items                 []models.OrderItem `json:"items"`
	ActualWeight          float64            `json:"actual_weight"`
	VolumetricWeight      float64            `json:"volumetric_weight"`
	ChargeableWeight      float64            `json:"chargeable_weight"`
	Length                float64            `json:"length"`
	Breadth               float64            `json:"breadth"`
	Height                float64            `json:"height"`
	CourierID             string             `json:"courier_id"`
	CourierName           string             `json:"courier_name"`
	EstimatedDeliveryDays float64            `json:"estimated_delivery_days"`
	CourierRate           models.Money       `json:"courier_rate"`
	FreeDelivery          bool               `json:"free_delivery"`
	ItemsAmount           models.Money       `json:"items_amount"`
	DeliveryFee           models.Money       `json:"delivery_fee"`
	TotalAmount           models.Money       `json:"total_amount"`
}

// QuoteDelivery 按购物车或指定商品试算包裹重量、快递与运费，不扣库存也不落单
func (s *OrderService) QuoteDelivery(ctx context.Context, input CreateOrderInput) (*DeliveryQuote, error) {
	method := strings.ToLower(strings.TrimSpace(input.PaymentMethod))
	if method != constants.PaymentMethodPrepaid && method != constants.PaymentMethodCOD {
		return nil, ErrInvalidPaymentMethod
	}
	if input.UserID == 0 {
		return nil, ErrForbidden
	}
	address, err := s.addressRepo.GetByIDAndUser(input.AddressID, input.UserID)
	if err != nil {
		return nil, err
	}
	if address == nil {
		return nil, ErrAddressNotFound
	}
	lines, err := s.resolveLines(input)
	if err != nil {
		return nil, err
	}

	items := make([]models.OrderItem, 0, len(lines))
	itemsAmount := decimal.Zero
	for _, line := range lines {
		product := line.product
		total := product.Price.Mul(decimal.NewFromInt(int64(line.quantity)))
		itemsAmount = itemsAmount.Add(total)
		items = append(items, models.OrderItem{
			ProductID:   product.ID,
			ProductName: product.Name,
			SKU:         product.SKU,
			UnitPrice:   product.Price,
			Quantity:    line.quantity,
			TotalPrice:  models.NewMoneyFromDecimal(total),
			Weight:      *product.Weight,
			Length:      *product.Length,
			Breadth:     *product.Breadth,
			Height:      *product.Height,
		})
	}
	metrics := ComputePackage(packageLinesFromItems(items))

	quotes, err := s.carrier.QuoteRates(ctx, shiprocket.RateQuery{
		PickupPostcode:   s.options.PickupPostcode,
		DeliveryPostcode: address.PostalCode,
		Weight:           metrics.ChargeableWeight,
		COD:              method == constants.PaymentMethodCOD,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCarrierRequestFailed, err)
	}
	courier, err := SelectCourier(quotes, s.options.CourierStrategy)
	if err != nil {
		return nil, err
	}
	rate := decimal.NewFromFloat(*courier.Rate)
	deliveryFee := s.deliveryFee(itemsAmount, *courier.Rate)

	return &DeliveryQuote{
		AddressID:             address.ID,
		PaymentMethod:         method,
		Currency:              s.options.Currency,
		Items:                 items,
		ActualWeight:          metrics.ActualWeight,
		VolumetricWeight:      metrics.VolumetricWeight,
		ChargeableWeight:      metrics.ChargeableWeight,
		Length:                metrics.Length,
		Breadth:               metrics.Breadth,
		Height:                metrics.Height,
		CourierID:             courier.CourierID,
		CourierName:           courier.Name,
		EstimatedDeliveryDays: courier.EstimatedDeliveryDays,
		CourierRate:           models.NewMoneyFromDecimal(rate),
		FreeDelivery:          s.freeDelivery(itemsAmount),
		ItemsAmount:           models.NewMoneyFromDecimal(itemsAmount),
		DeliveryFee:           models.NewMoneyFromDecimal(deliveryFee),
		TotalAmount:           models.NewMoneyFromDecimal(itemsAmount.Add(deliveryFee)),
	}, nil
}

// CreateOrder 复用运费试算结果，在一个事务内扣库存、落单、写历史
func (s *OrderService) CreateOrder(ctx context.Context, input CreateOrderInput) (*models.Order, error) {
	fromCart := len(input.Items) == 0
	quote, err := s.QuoteDelivery(ctx, input)
	if err != nil {
		return nil, err
	}
	items := quote.Items
	method := quote.PaymentMethod

	order := &models.Order{
		OrderNo:          generateOrderNo(),
		UserID:           input.UserID,
		AddressID:        quote.AddressID,
		PaymentMethod:    method,
		Status:           constants.OrderStatusPending,
		Currency:         quote.Currency,
		ItemsAmount:      quote.ItemsAmount,
		DeliveryFee:      quote.DeliveryFee,
		TotalAmount:      quote.TotalAmount,
		ActualWeight:     quote.ActualWeight,
		VolumetricWeight: quote.VolumetricWeight,
		ChargeableWeight: quote.ChargeableWeight,
		CourierID:        quote.CourierID,
		CourierName:      quote.CourierName,
	}
	if method == constants.PaymentMethodCOD {
		order.CODAmount = order.TotalAmount
	}

	err = models.DB.Transaction(func(tx *gorm.DB) error {
		productRepo := s.productRepo.WithTx(tx)
		for _, item := range items {
			affected, err := productRepo.DecrementStock(item.ProductID, item.Quantity)
			if err != nil {
				return err
			}
			if affected == 0 {
				return fmt.Errorf("%w: %s", ErrInsufficientStock, item.SKU)
			}
		}
		orderRepo := s.orderRepo.WithTx(tx)
		if err := orderRepo.Create(order, items); err != nil {
			return err
		}
		if err := orderRepo.AppendHistory(order.ID, constants.OrderStatusPending, "Order placed"); err != nil {
			return err
		}
		if fromCart {
			return s.cartRepo.WithTx(tx).ClearByUser(input.UserID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Infow("order_created",
		"order_id", order.ID,
		"order_no", order.OrderNo,
		"payment_method", method,
		"total_amount", order.TotalAmount.String(),
		"courier_id", order.CourierID,
	)
	return s.orderRepo.GetByID(order.ID)
}

func (s *OrderService) resolveLines(input CreateOrderInput) ([]checkoutLine, error) {
	if len(input.Items) == 0 {
		cart, err := s.cartRepo.ListByUser(input.UserID)
		if err != nil {
			return nil, err
		}
		if len(cart) == 0 {
			return nil, ErrEmptyCart
		}
		lines := make([]checkoutLine, 0, len(cart))
		for i := range cart {
			if cart[i].Product == nil {
				return nil, ErrProductNotFound
			}
			line := checkoutLine{product: cart[i].Product, quantity: cart[i].Quantity}
			if err := validateLine(line); err != nil {
				return nil, err
			}
			lines = append(lines, line)
		}
		return lines, nil
	}

	merged := make(map[uint]int)
	ordered := make([]uint, 0, len(input.Items))
	for _, item := range input.Items {
		if item.ProductID == 0 || item.Quantity <= 0 {
			return nil, ErrInvalidOrderItem
		}
		if _, ok := merged[item.ProductID]; !ok {
			ordered = append(ordered, item.ProductID)
		}
		merged[item.ProductID] += item.Quantity
	}
	products, err := s.productRepo.ListByIDs(ordered)
	if err != nil {
		return nil, err
	}
	byID := make(map[uint]*models.Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}
	lines := make([]checkoutLine, 0, len(ordered))
	for _, id := range ordered {
		product, ok := byID[id]
		if !ok {
			return nil, ErrProductNotFound
		}
		line := checkoutLine{product: product, quantity: merged[id]}
		if err := validateLine(line); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, nil
}

func validateLine(line checkoutLine) error {
	if line.quantity <= 0 {
		return ErrInvalidOrderItem
	}
	if !line.product.IsActive {
		return fmt.Errorf("%w: %s", ErrProductUnavailable, line.product.SKU)
	}
	if !line.product.HasShippingDimensions() {
		return fmt.Errorf("%w: %s", ErrMissingDimensions, line.product.SKU)
	}
	if line.product.StockQuantity < line.quantity {
		return fmt.Errorf("%w: %s", ErrInsufficientStock, line.product.SKU)
	}
	return nil
}

// deliveryFee 商品金额达到门槛免运费，否则按报价向上取整
func (s *OrderService) deliveryFee(itemsAmount decimal.Decimal, rate float64) decimal.Decimal {
	if s.freeDelivery(itemsAmount) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(rate).Ceil()
}

func (s *OrderService) freeDelivery(itemsAmount decimal.Decimal) bool {
	return s.options.FreeDeliveryThreshold.IsPositive() && itemsAmount.GreaterThanOrEqual(s.options.FreeDeliveryThreshold)
}

// GetOrder 获取订单详情
func (s *OrderService) GetOrder(ctx context.Context, orderID uint, actor Actor) (*models.Order, error) {
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if !actor.CanAccess(order.UserID) {
		return nil, ErrOrderNotFound
	}
	history, err := s.orderRepo.ListHistory(order.ID)
	if err != nil {
		return nil, err
	}
	order.StatusHistory = history
	return order, nil
}

// ListOrders 用户订单列表
func (s *OrderService) ListOrders(ctx context.Context, filter repository.OrderListFilter, actor Actor) ([]models.Order, int64, error) {
	filter.UserID = actor.UserID
	return s.orderRepo.ListByUser(filter)
}

// ListAdminOrders 管理端订单列表
func (s *OrderService) ListAdminOrders(ctx context.Context, filter repository.OrderListFilter) ([]models.Order, int64, error) {
	return s.orderRepo.ListAdmin(filter)
}

// UpdateStatus 管理端状态变更，目标状态必须能由迁移表到达
func (s *OrderService) UpdateStatus(ctx context.Context, orderID uint, target, note string, actor Actor) (*models.Order, error) {
	if !actor.IsAdmin {
		return nil, ErrForbidden
	}
	target = strings.ToLower(strings.TrimSpace(target))
	if !IsOrderStatus(target) {
		return nil, ErrInvalidOrderStatus
	}
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if order.Status == target {
		return nil, ErrSameOrderStatus
	}
	if isTerminalOrderStatus(order.Status) {
		return nil, ErrTerminalOrderStatus
	}
	switch target {
	case constants.OrderStatusCancelled:
		return s.Cancel(ctx, order.ID, actor)
	case constants.OrderStatusRefunded:
		return nil, ErrRefundNotAllowed
	}
	event, ok := OrderMachine.EventFor(order.Status, target)
	if !ok {
		return nil, fmt.Errorf("%w: order %s -> %s", ErrIllegalTransition, order.Status, target)
	}
	next, err := OrderMachine.Next(order.Status, event)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	updates := map[string]interface{}{}
	if next == constants.OrderStatusDelivered {
		updates["delivered_at"] = now
		if order.IsCOD() {
			updates["cod_collected"] = true
		}
	}
	message := strings.TrimSpace(note)
	if message == "" {
		message = fmt.Sprintf("Status updated to %s by admin", next)
	}
	var outboxIDs []uint
	err = models.DB.Transaction(func(tx *gorm.DB) error {
		orderRepo := s.orderRepo.WithTx(tx)
		ok, err := orderRepo.TransitionStatus(order.ID, order.Status, next, updates)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: order %d changed concurrently", ErrIllegalTransition, order.ID)
		}
		if err := orderRepo.AppendHistory(order.ID, next, message); err != nil {
			return err
		}
		if next == constants.OrderStatusDelivered {
			order.Status = next
			writer := newOutboxWriter(s.outboxRepo, tx)
			if err := writer.event(constants.EventOrderDelivered, constants.AggregateOrder, order.ID, orderEventPayload(order, nil)); err != nil {
				return err
			}
			outboxIDs = writer.ids
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	notifyOutbox(s.notifier, outboxIDs)
	logger.Infow("order_status_updated", "order_id", order.ID, "status", next, "actor", actor.UserID)
	return s.orderRepo.GetByID(order.ID)
}

// Cancel 取消订单：已捕获的预付订单走退款，其余订单直接取消并回补库存
func (s *OrderService) Cancel(ctx context.Context, orderID uint, actor Actor) (*models.Order, error) {
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return nil, err
	}
	if order == nil || !actor.CanAccess(order.UserID) {
		return nil, ErrOrderNotFound
	}

	var payment *models.Payment
	if !order.IsCOD() {
		payment, err = s.paymentRepo.GetByOrderID(order.ID)
		if err != nil {
			return nil, err
		}
		if payment != nil {
			active, err := s.refundRepo.FindActiveByPayment(payment.ID)
			if err != nil {
				return nil, err
			}
			if active != nil {
				return nil, ErrRefundAlreadyInitiated
			}
		}
	}
	if order.Status == constants.OrderStatusCancelled {
		return nil, ErrOrderAlreadyCancelled
	}
	if !OrderMachine.Can(order.Status, OrderEventCancel) {
		return nil, ErrOrderNotCancellable
	}

	shipment, err := s.shipmentRepo.GetForwardByOrderID(order.ID)
	if err != nil {
		return nil, err
	}
	if shipment != nil && shipment.Status != constants.ShipmentStatusCancelled {
		if !ShipmentMachine.Can(shipment.Status, ShipmentEventCancel) {
			return nil, ErrOrderNotCancellable
		}
		if _, err := s.shipments.CancelShipment(ctx, shipment.ID); err != nil {
			return nil, err
		}
	}

	if payment != nil && payment.Status == constants.PaymentStatusCaptured {
		if _, err := s.refunds.RefundCancellation(ctx, order, actor); err != nil {
			return nil, err
		}
		logger.Infow("order_cancelled_with_refund", "order_id", order.ID, "actor", actor.UserID)
		return s.orderRepo.GetByID(order.ID)
	}

	now := time.Now()
	var outboxIDs []uint
	err = models.DB.Transaction(func(tx *gorm.DB) error {
		orderRepo := s.orderRepo.WithTx(tx)
		ok, err := orderRepo.TransitionStatus(order.ID, order.Status, constants.OrderStatusCancelled, map[string]interface{}{
			"canceled_at": now,
		})
		if err != nil {
			return err
		}
		if !ok {
			return ErrOrderNotCancellable
		}
		productRepo := s.productRepo.WithTx(tx)
		for _, item := range order.Items {
			if err := productRepo.RestoreStock(item.ProductID, item.Quantity); err != nil {
				return err
			}
		}
		if err := orderRepo.AppendHistory(order.ID, constants.OrderStatusCancelled, cancelNote(actor, order)); err != nil {
			return err
		}
		order.Status = constants.OrderStatusCancelled
		writer := newOutboxWriter(s.outboxRepo, tx)
		if err := writer.event(constants.EventOrderCancelled, constants.AggregateOrder, order.ID, orderEventPayload(order, nil)); err != nil {
			return err
		}
		outboxIDs = writer.ids
		return nil
	})
	if err != nil {
		return nil, err
	}
	notifyOutbox(s.notifier, outboxIDs)
	logger.Infow("order_cancelled", "order_id", order.ID, "actor", actor.UserID)
	return s.orderRepo.GetByID(order.ID)
}

// SettleCOD 财务确认到付款项已与承运商结清
func (s *OrderService) SettleCOD(ctx context.Context, orderID uint, actor Actor) (*models.Order, error) {
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
	if order.CODSettled {
		return nil, ErrCODAlreadySettled
	}

	now := time.Now()
	var outboxIDs []uint
	err = models.DB.Transaction(func(tx *gorm.DB) error {
		orderRepo := s.orderRepo.WithTx(tx)
		ok, err := orderRepo.MarkCODSettled(order.ID, now)
		if err != nil {
			return err
		}
		if !ok {
			return ErrCODAlreadySettled
		}
		if err := orderRepo.AppendNote(order.ID, order.Status, fmt.Sprintf("COD amount %s settled by admin", order.CODAmount.String())); err != nil {
			return err
		}
		writer := newOutboxWriter(s.outboxRepo, tx)
		if err := writer.event(constants.EventOrderCODSettled, constants.AggregateOrder, order.ID, orderEventPayload(order, models.JSON{
			"cod_amount": order.CODAmount.String(),
			"settled_by": actor.UserID,
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
	logger.Infow("order_cod_settled", "order_id", order.ID, "amount", order.CODAmount.String(), "actor", actor.UserID)
	return s.orderRepo.GetByID(order.ID)
}

func cancelNote(actor Actor, order *models.Order) string {
	if actor.IsAdmin && actor.UserID != order.UserID {
		return "Order cancelled by admin"
	}
	return "Order cancelled by customer"
}

func generateOrderNo() string {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		n = big.NewInt(time.Now().UnixNano() % 1000000)
	}
	return fmt.Sprintf("AW%s%06d", time.Now().Format("20060102150405"), n.Int64())
}
