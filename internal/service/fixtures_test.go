package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ayurwell-next/internal/carrier/shiprocket"
	"github.com/ayurwell-next/internal/constants"
	"github.com/ayurwell-next/internal/events"
	"github.com/ayurwell-next/internal/models"
	"github.com/ayurwell-next/internal/payment/razorpay"
	"github.com/ayurwell-next/internal/repository"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	testKeySecret     = "rzp_test_secret"
	testWebhookSecret = "rzp_webhook_secret"
	testCarrierToken  = "carrier-hook-token"
)

type fakeGateway struct {
	mu        sync.Mutex
	orderSeq  int
	refundSeq int
	createErr error
	fetchErr  error
	refundErr error
	payments  map[string]*razorpay.PaymentState
	refunds   []razorpay.RefundInput
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{payments: make(map[string]*razorpay.PaymentState)}
}

func (g *fakeGateway) CreateOrder(_ context.Context, amount decimal.Decimal, currency, receipt string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.createErr != nil {
		return "", g.createErr
	}
	g.orderSeq++
	return fmt.Sprintf("order_test_%d", g.orderSeq), nil
}

func (g *fakeGateway) FetchPayment(_ context.Context, paymentID string) (*razorpay.PaymentState, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fetchErr != nil {
		return nil, g.fetchErr
	}
	state, ok := g.payments[paymentID]
	if !ok {
		return nil, fmt.Errorf("%w: unknown payment %s", razorpay.ErrResponseInvalid, paymentID)
	}
	copied := *state
	return &copied, nil
}

func (g *fakeGateway) Refund(_ context.Context, input razorpay.RefundInput) (*razorpay.RefundResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.refundErr != nil {
		return nil, g.refundErr
	}
	g.refundSeq++
	g.refunds = append(g.refunds, input)
	if state, ok := g.payments[input.PaymentID]; ok {
		state.AmountRefunded = state.AmountRefunded.Add(input.Amount)
	}
	return &razorpay.RefundResult{RefundID: fmt.Sprintf("rfnd_test_%d", g.refundSeq), Status: "processed"}, nil
}

func (g *fakeGateway) VerifyCheckoutSignature(gatewayOrderID, gatewayPaymentID, signature string) bool {
	return razorpay.SignCheckout(testKeySecret, gatewayOrderID, gatewayPaymentID) == signature
}

func (g *fakeGateway) VerifyWebhookSignature(body []byte, signature string) bool {
	return razorpay.SignWebhook(testWebhookSecret, body) == signature
}

func (g *fakeGateway) capture(paymentID string, amount decimal.Decimal) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.payments[paymentID] = &razorpay.PaymentState{
		PaymentID:      paymentID,
		Status:         razorpay.PaymentStatusCaptured,
		AmountCaptured: amount,
	}
}

func (g *fakeGateway) refundCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.refunds)
}

type fakeAWBResponse struct {
	result *shiprocket.AWBResult
	err    error
}

type fakeCarrier struct {
	mu            sync.Mutex
	quotes        []shiprocket.RateQuote
	quoteErr      error
	createErr     error
	created       int
	returnCreated int
	awbQueue      []fakeAWBResponse
	assignCalls   []string
	cancelErr     error
	cancelled     []string
}

func newFakeCarrier() *fakeCarrier {
	return &fakeCarrier{quotes: []shiprocket.RateQuote{
		{CourierID: "10", Name: "Delhivery", Rate: floatPtr(120), EstimatedDeliveryDays: 4, Rating: 4.1},
		{CourierID: "24", Name: "Xpressbees", Rate: floatPtr(95.4), EstimatedDeliveryDays: 5, Rating: 3.8},
		{CourierID: "33", Name: "Bluedart", Rate: floatPtr(150), EstimatedDeliveryDays: 2, Rating: 4.6},
	}}
}

func (c *fakeCarrier) QuoteRates(_ context.Context, _ shiprocket.RateQuery) ([]shiprocket.RateQuote, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.quoteErr != nil {
		return nil, c.quoteErr
	}
	return append([]shiprocket.RateQuote(nil), c.quotes...), nil
}

func (c *fakeCarrier) CreateShipment(_ context.Context, req shiprocket.ShipmentRequest) (*shiprocket.ShipmentResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.createErr != nil {
		return nil, c.createErr
	}
	c.created++
	return &shiprocket.ShipmentResult{
		CarrierOrderID:    fmt.Sprintf("SR%d", c.created),
		CarrierShipmentID: fmt.Sprintf("SH%d", c.created),
		FreightCharges:    80,
	}, nil
}

func (c *fakeCarrier) CreateReturnShipment(_ context.Context, req shiprocket.ShipmentRequest, _ shiprocket.Party) (*shiprocket.ShipmentResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.createErr != nil {
		return nil, c.createErr
	}
	c.returnCreated++
	return &shiprocket.ShipmentResult{
		CarrierOrderID:    fmt.Sprintf("RSR%d", c.returnCreated),
		CarrierShipmentID: fmt.Sprintf("RSH%d", c.returnCreated),
	}, nil
}

func (c *fakeCarrier) AssignAWB(_ context.Context, carrierShipmentID, courierID string) (*shiprocket.AWBResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.assignCalls = append(c.assignCalls, courierID)
	if len(c.awbQueue) > 0 {
		next := c.awbQueue[0]
		c.awbQueue = c.awbQueue[1:]
		return next.result, next.err
	}
	return &shiprocket.AWBResult{AWB: "AWB-" + carrierShipmentID, CourierID: courierID, CourierName: "Xpressbees"}, nil
}

func (c *fakeCarrier) CancelShipments(_ context.Context, carrierOrderIDs []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancelErr != nil {
		return c.cancelErr
	}
	c.cancelled = append(c.cancelled, carrierOrderIDs...)
	return nil
}

type recordingNotifier struct {
	mu  sync.Mutex
	ids []uint
}

func (n *recordingNotifier) NotifyOutbox(ids []uint) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.ids = append(n.ids, ids...)
}

type recordingPublisher struct {
	mu     sync.Mutex
	err    error
	topics []string
}

func (p *recordingPublisher) Publish(_ context.Context, event events.Envelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.topics = append(p.topics, event.Topic)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

type testEnv struct {
	db       *gorm.DB
	gateway  *fakeGateway
	carrier  *fakeCarrier
	notifier *recordingNotifier

	orderRepo    *repository.GormOrderRepository
	productRepo  *repository.GormProductRepository
	cartRepo     *repository.GormCartRepository
	addressRepo  *repository.GormAddressRepository
	userRepo     *repository.GormUserRepository
	paymentRepo  *repository.GormPaymentRepository
	refundRepo   *repository.GormRefundRepository
	returnRepo   *repository.GormReturnRepository
	shipmentRepo *repository.GormShipmentRepository
	outboxRepo   *repository.GormOutboxRepository
	webhookRepo  *repository.GormWebhookEventRepository

	shipments *ShipmentService
	refunds   *RefundService
	orders    *OrderService
	payments  *PaymentService
	returns   *ReturnService
	webhooks  *WebhookService
	outbox    *OutboxService
}

func setupServiceTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:service_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(models.AllModels()...); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}
	models.DB = db
	return db
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := setupServiceTestDB(t)
	env := &testEnv{
		db:           db,
		gateway:      newFakeGateway(),
		carrier:      newFakeCarrier(),
		notifier:     &recordingNotifier{},
		orderRepo:    repository.NewOrderRepository(db),
		productRepo:  repository.NewProductRepository(db),
		cartRepo:     repository.NewCartRepository(db),
		addressRepo:  repository.NewAddressRepository(db),
		userRepo:     repository.NewUserRepository(db),
		paymentRepo:  repository.NewPaymentRepository(db),
		refundRepo:   repository.NewRefundRepository(db),
		returnRepo:   repository.NewReturnRepository(db),
		shipmentRepo: repository.NewShipmentRepository(db),
		outboxRepo:   repository.NewOutboxRepository(db),
		webhookRepo:  repository.NewWebhookEventRepository(db),
	}
	env.shipments = NewShipmentService(env.orderRepo, env.shipmentRepo, env.userRepo, env.outboxRepo, env.carrier, env.notifier, ShipmentOptions{
		PickupPostcode: "560001",
		Warehouse:      shiprocket.Party{Name: "Warehouse", City: "Bengaluru"},
	})
	env.refunds = NewRefundService(env.orderRepo, env.paymentRepo, env.refundRepo, env.productRepo, env.returnRepo, env.shipmentRepo, env.outboxRepo, env.gateway, env.notifier)
	env.orders = NewOrderService(OrderServiceDeps{
		OrderRepo:    env.orderRepo,
		ProductRepo:  env.productRepo,
		CartRepo:     env.cartRepo,
		AddressRepo:  env.addressRepo,
		PaymentRepo:  env.paymentRepo,
		RefundRepo:   env.refundRepo,
		ShipmentRepo: env.shipmentRepo,
		OutboxRepo:   env.outboxRepo,
		Carrier:      env.carrier,
		Shipments:    env.shipments,
		Refunds:      env.refunds,
		Notifier:     env.notifier,
	}, OrderOptions{
		Currency:              "INR",
		PickupPostcode:        "560001",
		FreeDeliveryThreshold: decimal.NewFromInt(699),
	})
	env.payments = NewPaymentService(env.orderRepo, env.paymentRepo, env.outboxRepo, env.gateway, env.notifier)
	env.returns = NewReturnService(env.orderRepo, env.returnRepo, env.outboxRepo, env.shipments, env.refunds, env.notifier, 7)
	env.webhooks = NewWebhookService(WebhookServiceDeps{
		OrderRepo:    env.orderRepo,
		ShipmentRepo: env.shipmentRepo,
		RefundRepo:   env.refundRepo,
		WebhookRepo:  env.webhookRepo,
		OutboxRepo:   env.outboxRepo,
		Shipments:    env.shipments,
		Refunds:      env.refunds,
		Returns:      env.returns,
		Gateway:      env.gateway,
		Notifier:     env.notifier,
		CarrierToken: testCarrierToken,
	})
	env.outbox = NewOutboxService(env.outboxRepo, &recordingPublisher{}, 3)
	env.outbox.RegisterFulfillmentHandlers(env.shipments)
	return env
}

func floatPtr(v float64) *float64 {
	return &v
}

func (e *testEnv) seedCustomer(t *testing.T, email string) (*models.User, *models.Address) {
	t.Helper()
	user := &models.User{Email: email, FirstName: "Asha", Role: constants.UserRoleCustomer}
	if err := e.userRepo.Create(user); err != nil {
		t.Fatalf("create user failed: %v", err)
	}
	address := &models.Address{
		UserID:     user.ID,
		Name:       "Asha Rao",
		Phone:      "9800000000",
		Line1:      "12 MG Road",
		City:       "Pune",
		State:      "Maharashtra",
		PostalCode: "411001",
		Country:    "India",
	}
	if err := e.addressRepo.Create(address); err != nil {
		t.Fatalf("create address failed: %v", err)
	}
	return user, address
}

func (e *testEnv) seedProduct(t *testing.T, sku string, price float64, stock int, weight, length, breadth, height float64) *models.Product {
	t.Helper()
	product := &models.Product{
		Name:          "Product " + sku,
		SKU:           sku,
		Price:         models.NewMoneyFromFloat(price),
		StockQuantity: stock,
		Weight:        floatPtr(weight),
		Length:        floatPtr(length),
		Breadth:       floatPtr(breadth),
		Height:        floatPtr(height),
		IsActive:      true,
	}
	if err := e.productRepo.Create(product); err != nil {
		t.Fatalf("create product failed: %v", err)
	}
	return product
}

func (e *testEnv) placeOrder(t *testing.T, user *models.User, address *models.Address, method string, items ...CreateOrderItem) *models.Order {
	t.Helper()
	order, err := e.orders.CreateOrder(context.Background(), CreateOrderInput{
		UserID:        user.ID,
		AddressID:     address.ID,
		PaymentMethod: method,
		Items:         items,
	})
	if err != nil {
		t.Fatalf("create order failed: %v", err)
	}
	return order
}

// capturePrepaid 走完网关下单与签名校验，返回捕获后的支付记录
func (e *testEnv) capturePrepaid(t *testing.T, order *models.Order) *models.Payment {
	t.Helper()
	actor := Actor{UserID: order.UserID}
	payment, err := e.payments.InitiatePayment(context.Background(), order.ID, actor)
	if err != nil {
		t.Fatalf("initiate payment failed: %v", err)
	}
	paymentID := fmt.Sprintf("pay_%d", order.ID)
	e.gateway.capture(paymentID, order.TotalAmount.Decimal)
	captured, err := e.payments.VerifyPayment(context.Background(), VerifyPaymentInput{
		GatewayOrderID:   payment.GatewayOrderID,
		GatewayPaymentID: paymentID,
		Signature:        razorpay.SignCheckout(testKeySecret, payment.GatewayOrderID, paymentID),
	}, actor)
	if err != nil {
		t.Fatalf("verify payment failed: %v", err)
	}
	return captured
}

func (e *testEnv) reloadOrder(t *testing.T, id uint) *models.Order {
	t.Helper()
	order, err := e.orderRepo.GetByID(id)
	if err != nil || order == nil {
		t.Fatalf("reload order failed: %v", err)
	}
	return order
}

func (e *testEnv) reloadProduct(t *testing.T, id uint) *models.Product {
	t.Helper()
	product, err := e.productRepo.GetByID(id)
	if err != nil || product == nil {
		t.Fatalf("reload product failed: %v", err)
	}
	return product
}

func (e *testEnv) countRows(t *testing.T, model interface{}, query string, args ...interface{}) int64 {
	t.Helper()
	var count int64
	if err := e.db.Model(model).Where(query, args...).Count(&count).Error; err != nil {
		t.Fatalf("count rows failed: %v", err)
	}
	return count
}

func (e *testEnv) outboxTopics(t *testing.T) []string {
	t.Helper()
	var rows []models.OutboxMessage
	if err := e.db.Order("id asc").Find(&rows).Error; err != nil {
		t.Fatalf("list outbox failed: %v", err)
	}
	topics := make([]string, 0, len(rows))
	for _, row := range rows {
		topics = append(topics, row.Topic)
	}
	return topics
}

func containsTopic(topics []string, topic string) bool {
	for _, item := range topics {
		if item == topic {
			return true
		}
	}
	return false
}

// setStatus 直接改写状态，用于构造前置场景
func (e *testEnv) setStatus(t *testing.T, model interface{}, id uint, status string) {
	t.Helper()
	if err := e.db.Model(model).Where("id = ?", id).Update("status", status).Error; err != nil {
		t.Fatalf("set status failed: %v", err)
	}
}
