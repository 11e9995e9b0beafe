package router

import (
	"net/http"
	"sort"
	"strings"

	"github.com/ayurwell-next/internal/authz"
	"github.com/ayurwell-next/internal/config"
	adminhandlers "github.com/ayurwell-next/internal/http/handlers/admin"
	publichandlers "github.com/ayurwell-next/internal/http/handlers/public"
	"github.com/ayurwell-next/internal/http/response"
	"github.com/ayurwell-next/internal/i18n"
	"github.com/ayurwell-next/internal/logger"
	"github.com/ayurwell-next/internal/provider"

	"github.com/gin-gonic/gin"
)

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	r := gin.New()

	publicHandler := publichandlers.New(c)
	adminHandler := adminhandlers.New(c)
	paymentVerifyRule := RuleFromConfig("payment_verify", cfg.Security.PaymentRateLimit)

	// 中间件
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware(cfg.CORS))

	// 第三方回调：承运商与支付网关，各自校验令牌与签名
	webhook := r.Group("/webhook")
	{
		webhook.POST("/shipment", publicHandler.ShipmentWebhook)
		webhook.POST("/payments", publicHandler.PaymentWebhook)
	}

	apiV1 := r.Group("/api/v1")
	{
		userAuth := UserJWTAuthMiddleware(c.TokenIssuer, c.UserRepo, c.Cache)

		// 用户接口（需鉴权）
		user := apiV1.Group("")
		user.Use(userAuth)
		{
			user.POST("/orders", publicHandler.CreateOrder)
			user.POST("/orders/buy-now", publicHandler.BuyNow)
			user.POST("/orders/quote", publicHandler.QuoteDelivery)
			user.GET("/orders", publicHandler.ListOrders)
			user.GET("/orders/:id", publicHandler.GetOrder)
			user.POST("/orders/:id/cancel", publicHandler.CancelOrder)
			user.POST("/orders/:id/cod/confirm", publicHandler.ConfirmCODOrder)
			user.POST("/orders/:id/payments", publicHandler.InitiatePayment)
			user.GET("/orders/:id/payment", publicHandler.GetOrderPayment)
			user.GET("/orders/:id/shipment", publicHandler.GetOrderShipment)
			user.GET("/orders/:id/refunds", publicHandler.ListOrderRefunds)
			user.GET("/orders/:id/returns", publicHandler.ListOrderReturns)
			user.POST("/payments/verify",
				RateLimitMiddleware(c.Cache, paymentVerifyRule, KeyByUserAndJSONField("razorpay_order_id")),
				publicHandler.VerifyPayment,
			)
			user.POST("/returns", publicHandler.CreateReturn)
			user.GET("/returns/:id", publicHandler.GetReturn)
			user.POST("/returns/:id/cancel", publicHandler.CancelReturn)
		}

		// 管理员接口
		admin := apiV1.Group("/admin")
		admin.Use(userAuth, AdminRoleMiddleware())
		{
			// 任意管理员可查看自身权限
			admin.GET("/authz/me", adminHandler.GetAuthzMe)

			authorized := admin.Group("")
			authorized.Use(AdminRBACMiddleware(c.AuthzService))
			{
				// 订单
				authorized.GET("/orders", adminHandler.AdminListOrders)
				authorized.PATCH("/orders/:id/status", adminHandler.AdminUpdateOrderStatus)
				authorized.POST("/orders/:id/cancel", adminHandler.AdminCancelOrder)
				authorized.POST("/orders/:id/shipments", adminHandler.AdminCreateShipment)
				authorized.POST("/orders/:id/refunds", adminHandler.AdminRefundOrder)
				authorized.POST("/orders/:id/cod-refund", adminHandler.AdminMarkCODRefunded)
				authorized.POST("/orders/:id/cod-settle", adminHandler.AdminSettleCOD)

				// 运单
				authorized.GET("/shipments", adminHandler.AdminListShipments)
				authorized.GET("/shipments/:id", adminHandler.AdminGetShipment)
				authorized.POST("/shipments/awb-retry", adminHandler.AdminRunAWBRetry)
				authorized.POST("/shipments/:id/assign-awb", adminHandler.AdminAssignAWB)
				authorized.POST("/shipments/:id/cancel", adminHandler.AdminCancelShipment)
				authorized.POST("/shipments/:id/rto", adminHandler.AdminRequestRTO)

				// 退款
				authorized.GET("/refunds", adminHandler.AdminListRefunds)
				authorized.POST("/refunds/:id/retry", adminHandler.AdminRetryRefund)

				// 退货
				authorized.GET("/returns", adminHandler.AdminListReturns)
				authorized.GET("/returns/stats", adminHandler.AdminReturnStats)
				authorized.PATCH("/returns/:id/status", adminHandler.AdminUpdateReturnStatus)

				// 权限管理
				authorized.GET("/authz/permissions/catalog", func(ctx *gin.Context) {
					response.Success(ctx, buildAdminPermissionCatalog(r))
				})
				authorized.GET("/authz/roles/:role/policies", adminHandler.GetAuthzRolePolicies)
				authorized.POST("/authz/policies", adminHandler.GrantAuthzPolicy)
				authorized.PUT("/authz/users/:id/roles", adminHandler.SetAuthzUserRoles)
			}
		}
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.NoRoute(func(c *gin.Context) {
		response.NotFound(c, i18n.T(i18n.ResolveLocale(c), "error.not_found"))
	})

	return r
}

type adminPermissionCatalogItem struct {
	Module     string `json:"module"`
	Method     string `json:"method"`
	Object     string `json:"object"`
	Permission string `json:"permission"`
}

func buildAdminPermissionCatalog(engine *gin.Engine) []adminPermissionCatalogItem {
	if engine == nil {
		return []adminPermissionCatalogItem{}
	}

	routes := engine.Routes()
	seen := make(map[string]struct{}, len(routes))
	items := make([]adminPermissionCatalogItem, 0, len(routes))

	for _, item := range routes {
		method := strings.ToUpper(strings.TrimSpace(item.Method))
		if method == "" || method == "OPTIONS" || method == "HEAD" {
			continue
		}
		if !strings.HasPrefix(item.Path, "/api/v1/admin/") {
			continue
		}
		object := authz.NormalizeObject(item.Path)
		permission := method + ":" + object
		if _, exists := seen[permission]; exists {
			continue
		}
		seen[permission] = struct{}{}
		items = append(items, adminPermissionCatalogItem{
			Module:     deriveAdminPermissionModule(object),
			Method:     method,
			Object:     object,
			Permission: permission,
		})
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].Module == items[j].Module {
			if items[i].Object == items[j].Object {
				return items[i].Method < items[j].Method
			}
			return items[i].Object < items[j].Object
		}
		return items[i].Module < items[j].Module
	})

	return items
}

func deriveAdminPermissionModule(object string) string {
	normalized := strings.TrimPrefix(strings.TrimSpace(object), "/")
	if normalized == "" {
		return "system"
	}
	segments := strings.Split(normalized, "/")
	if len(segments) <= 1 {
		return segments[0]
	}
	if segments[0] != "admin" {
		return segments[0]
	}
	if segments[1] == "authz" {
		return "authz"
	}
	return segments[1]
}
