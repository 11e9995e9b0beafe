package provider

import (
	"strings"
	"time"

	"github.com/ayurwell-next/internal/authz"
	"github.com/ayurwell-next/internal/cache"
	"github.com/ayurwell-next/internal/carrier/shiprocket"
	"github.com/ayurwell-next/internal/config"
	"github.com/ayurwell-next/internal/events"
	"github.com/ayurwell-next/internal/logger"
	"github.com/ayurwell-next/internal/models"
	"github.com/ayurwell-next/internal/payment/razorpay"
	"github.com/ayurwell-next/internal/queue"
	"github.com/ayurwell-next/internal/repository"
	"github.com/ayurwell-next/internal/service"

	"github.com/shopspring/decimal"
)

// Container 依赖注入容器
type Container struct {
	Config      *config.Config
	Cache       *cache.Store
	QueueClient *queue.Client
	Publisher   events.Publisher
	Gateway     *razorpay.Client
	Carrier     *shiprocket.Client

	// Repositories
	UserRepo     repository.UserRepository
	AddressRepo  repository.AddressRepository
	ProductRepo  repository.ProductRepository
	CartRepo     repository.CartRepository
	OrderRepo    repository.OrderRepository
	PaymentRepo  repository.PaymentRepository
	ShipmentRepo repository.ShipmentRepository
	RefundRepo   repository.RefundRepository
	ReturnRepo   repository.ReturnRepository
	OutboxRepo   repository.OutboxRepository
	WebhookRepo  repository.WebhookEventRepository

	// Services
	AuthzService      *authz.Service
	TokenIssuer       *service.TokenIssuer
	ShipmentService   *service.ShipmentService
	RefundService     *service.RefundService
	OrderService      *service.OrderService
	PaymentService    *service.PaymentService
	ReturnService     *service.ReturnService
	WebhookService    *service.WebhookService
	OutboxService     *service.OutboxService
	AWBRetryScheduler *service.AWBRetryScheduler
}

// NewContainer 初始化容器
func NewContainer(cfg *config.Config) *Container {
	c := &Container{
		Config: cfg,
		Cache:  cache.NewStore(&cfg.Redis),
	}

	queueClient, err := queue.NewClient(&cfg.Queue)
	if err != nil {
		logger.Errorw("provider_init_queue_client_failed", "error", err)
	}
	c.QueueClient = queueClient

	publisher, err := events.NewPublisher(cfg.Events)
	if err != nil {
		logger.Errorw("provider_init_event_publisher_failed", "driver", cfg.Events.Driver, "error", err)
		publisher = events.LogPublisher{}
	}
	c.Publisher = publisher

	c.initClients()

	// 1. 初始化 Repositories
	c.initRepositories()

	// 2. 初始化 Services
	c.initServices()

	return c
}

func (c *Container) initClients() {
	gatewayCfg := razorpay.Config{
		KeyID:         c.Config.Payment.Razorpay.KeyID,
		KeySecret:     c.Config.Payment.Razorpay.KeySecret,
		WebhookSecret: c.Config.Payment.Razorpay.WebhookSecret,
		APIBaseURL:    c.Config.Payment.Razorpay.APIBaseURL,
		Timeout:       time.Duration(c.Config.Payment.Razorpay.TimeoutSeconds) * time.Second,
	}
	if err := razorpay.ValidateConfig(gatewayCfg); err != nil {
		logger.Warnw("provider_payment_gateway_config_invalid", "error", err)
	}
	c.Gateway = razorpay.NewClient(gatewayCfg)

	sr := c.Config.Carrier.Shiprocket
	carrierCfg := shiprocket.Config{
		Email:          sr.Email,
		Password:       sr.Password,
		APIBaseURL:     sr.APIBaseURL,
		PickupLocation: sr.PickupLocation,
		ChannelID:      sr.ChannelID,
		TokenTTL:       time.Duration(sr.TokenTTLHours) * time.Hour,
		Timeout:        time.Duration(sr.TimeoutSeconds) * time.Second,
	}
	if err := shiprocket.ValidateConfig(carrierCfg); err != nil {
		logger.Warnw("provider_carrier_config_invalid", "error", err)
	}
	c.Carrier = shiprocket.NewClient(carrierCfg, c.Cache)
}

func (c *Container) initRepositories() {
	db := models.DB
	c.UserRepo = repository.NewUserRepository(db)
	c.AddressRepo = repository.NewAddressRepository(db)
	c.ProductRepo = repository.NewProductRepository(db)
	c.CartRepo = repository.NewCartRepository(db)
	c.OrderRepo = repository.NewOrderRepository(db)
	c.PaymentRepo = repository.NewPaymentRepository(db)
	c.ShipmentRepo = repository.NewShipmentRepository(db)
	c.RefundRepo = repository.NewRefundRepository(db)
	c.ReturnRepo = repository.NewReturnRepository(db)
	c.OutboxRepo = repository.NewOutboxRepository(db)
	c.WebhookRepo = repository.NewWebhookEventRepository(db)
}

func (c *Container) initServices() {
	authzService, err := authz.NewService(models.DB)
	if err != nil {
		logger.Errorw("provider_init_authz_failed", "error", err)
		panic(err)
	}
	c.AuthzService = authzService
	if err := c.AuthzService.BootstrapBuiltinRoles(); err != nil {
		logger.Errorw("provider_bootstrap_builtin_roles_failed", "error", err)
		panic(err)
	}
	c.TokenIssuer = service.NewTokenIssuer(c.Config.UserJWT)

	orderCfg := c.Config.Order
	warehouse := orderCfg.Warehouse
	c.ShipmentService = service.NewShipmentService(c.OrderRepo, c.ShipmentRepo, c.UserRepo, c.OutboxRepo, c.Carrier, c.QueueClient, service.ShipmentOptions{
		PickupPostcode: orderCfg.PickupPostcode,
		Warehouse: shiprocket.Party{
			Name:       firstNonEmpty(warehouse.Name, c.Carrier.PickupLocation()),
			Phone:      warehouse.Phone,
			Email:      warehouse.Email,
			Address1:   warehouse.Address1,
			City:       warehouse.City,
			State:      warehouse.State,
			PostalCode: orderCfg.PickupPostcode,
			Country:    warehouse.Country,
		},
	})
	c.ShipmentService.SetAWBScheduler(c.QueueClient)

	c.RefundService = service.NewRefundService(c.OrderRepo, c.PaymentRepo, c.RefundRepo, c.ProductRepo, c.ReturnRepo, c.ShipmentRepo, c.OutboxRepo, c.Gateway, c.QueueClient)
	c.OrderService = service.NewOrderService(service.OrderServiceDeps{
		OrderRepo:    c.OrderRepo,
		ProductRepo:  c.ProductRepo,
		CartRepo:     c.CartRepo,
		AddressRepo:  c.AddressRepo,
		PaymentRepo:  c.PaymentRepo,
		RefundRepo:   c.RefundRepo,
		ShipmentRepo: c.ShipmentRepo,
		OutboxRepo:   c.OutboxRepo,
		Carrier:      c.Carrier,
		Shipments:    c.ShipmentService,
		Refunds:      c.RefundService,
		Notifier:     c.QueueClient,
	}, service.OrderOptions{
		Currency:              orderCfg.Currency,
		PickupPostcode:        orderCfg.PickupPostcode,
		FreeDeliveryThreshold: decimal.NewFromFloat(orderCfg.FreeDeliveryThreshold),
		CourierStrategy:       service.ParseCourierStrategy(orderCfg.CourierStrategy),
	})
	c.PaymentService = service.NewPaymentService(c.OrderRepo, c.PaymentRepo, c.OutboxRepo, c.Gateway, c.QueueClient)
	c.ReturnService = service.NewReturnService(c.OrderRepo, c.ReturnRepo, c.OutboxRepo, c.ShipmentService, c.RefundService, c.QueueClient, orderCfg.ReturnWindowDays)
	c.WebhookService = service.NewWebhookService(service.WebhookServiceDeps{
		OrderRepo:    c.OrderRepo,
		ShipmentRepo: c.ShipmentRepo,
		RefundRepo:   c.RefundRepo,
		WebhookRepo:  c.WebhookRepo,
		OutboxRepo:   c.OutboxRepo,
		Shipments:    c.ShipmentService,
		Refunds:      c.RefundService,
		Returns:      c.ReturnService,
		Gateway:      c.Gateway,
		Notifier:     c.QueueClient,
		CarrierToken: c.Config.Carrier.Shiprocket.WebhookToken,
	})

	c.OutboxService = service.NewOutboxService(c.OutboxRepo, c.Publisher, c.Config.Scheduler.OutboxMaxAttempts)
	c.OutboxService.RegisterFulfillmentHandlers(c.ShipmentService)
	c.AWBRetryScheduler = service.NewAWBRetryScheduler(c.ShipmentRepo, c.ShipmentService, c.Config.Scheduler.AWBRetryBatchSize)
}

// Close 释放外部连接
func (c *Container) Close() {
	if c == nil {
		return
	}
	if c.Publisher != nil {
		if err := c.Publisher.Close(); err != nil {
			logger.Warnw("provider_close_publisher_failed", "error", err)
		}
	}
	if err := c.QueueClient.Close(); err != nil {
		logger.Warnw("provider_close_queue_client_failed", "error", err)
	}
	if err := c.Cache.Close(); err != nil {
		logger.Warnw("provider_close_cache_failed", "error", err)
	}
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
