package public

import (
	"strings"

	"github.com/ayurwell-next/internal/constants"
	handlershared "github.com/ayurwell-next/internal/http/handlers/shared"
	"github.com/ayurwell-next/internal/http/response"
	"github.com/ayurwell-next/internal/repository"
	"github.com/ayurwell-next/internal/service"

	"github.com/gin-gonic/gin"
)

// CreateOrderRequest 购物车结算请求
type CreateOrderRequest struct {
	AddressID     uint   `json:"address_id" binding:"required"`
	PaymentMethod string `json:"payment_method" binding:"required"`
}

// BuyNowRequest 单品立即购买请求
type BuyNowRequest struct {
	AddressID     uint   `json:"address_id" binding:"required"`
	PaymentMethod string `json:"payment_method" binding:"required"`
	ProductID     uint   `json:"product_id" binding:"required"`
	Quantity      int    `json:"quantity" binding:"required"`
}

// DeliveryQuoteRequest 运费试算请求；不传 product_id 时按购物车试算
type DeliveryQuoteRequest struct {
	AddressID     uint   `json:"address_id" binding:"required"`
	PaymentMethod string `json:"payment_method"`
	ProductID     uint   `json:"product_id"`
	Quantity      int    `json:"quantity"`
}

// QuoteDelivery 下单前试算运费与快递
func (h *Handler) QuoteDelivery(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}
	var req DeliveryQuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	method := strings.ToLower(strings.TrimSpace(req.PaymentMethod))
	if method == "" {
		method = constants.PaymentMethodPrepaid
	}
	input := service.CreateOrderInput{
		UserID:        actor.UserID,
		AddressID:     req.AddressID,
		PaymentMethod: method,
	}
	if req.ProductID != 0 {
		if req.Quantity <= 0 {
			respondError(c, response.CodeBadRequest, "error.order_item_invalid", nil)
			return
		}
		input.Items = []service.CreateOrderItem{{ProductID: req.ProductID, Quantity: req.Quantity}}
	}
	quote, err := h.OrderService.QuoteDelivery(c.Request.Context(), input)
	if err != nil {
		respondDeliveryQuoteError(c, err)
		return
	}
	response.Success(c, quote)
}

// CreateOrder 结算购物车创建订单
func (h *Handler) CreateOrder(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}
	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	order, err := h.OrderService.CreateOrder(c.Request.Context(), service.CreateOrderInput{
		UserID:        actor.UserID,
		AddressID:     req.AddressID,
		PaymentMethod: strings.ToLower(strings.TrimSpace(req.PaymentMethod)),
	})
	if err != nil {
		respondOrderCreateError(c, err)
		return
	}
	response.Success(c, order)
}

// BuyNow 单个商品直接下单
func (h *Handler) BuyNow(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}
	var req BuyNowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	if req.Quantity <= 0 {
		respondError(c, response.CodeBadRequest, "error.order_item_invalid", nil)
		return
	}
	order, err := h.OrderService.CreateOrder(c.Request.Context(), service.CreateOrderInput{
		UserID:        actor.UserID,
		AddressID:     req.AddressID,
		PaymentMethod: strings.ToLower(strings.TrimSpace(req.PaymentMethod)),
		Items: []service.CreateOrderItem{
			{ProductID: req.ProductID, Quantity: req.Quantity},
		},
	})
	if err != nil {
		respondOrderCreateError(c, err)
		return
	}
	response.Success(c, order)
}

// ListOrders 当前用户订单列表
func (h *Handler) ListOrders(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}
	page, pageSize := handlershared.QueryPagination(c)
	orders, total, err := h.OrderService.ListOrders(c.Request.Context(), repository.OrderListFilter{
		Page:     page,
		PageSize: pageSize,
		Status:   strings.TrimSpace(c.Query("status")),
		OrderNo:  strings.TrimSpace(c.Query("order_no")),
	}, actor)
	if err != nil {
		respondError(c, response.CodeInternal, "error.order_fetch_failed", err)
		return
	}
	response.SuccessWithPage(c, orders, response.BuildPagination(page, pageSize, total))
}

// GetOrder 订单详情
func (h *Handler) GetOrder(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}
	id, ok := paramID(c)
	if !ok {
		return
	}
	order, err := h.OrderService.GetOrder(c.Request.Context(), id, actor)
	if err != nil {
		respondOrderQueryError(c, err)
		return
	}
	response.Success(c, order)
}

// CancelOrder 用户取消订单；已支付订单会同步发起取消退款
func (h *Handler) CancelOrder(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}
	id, ok := paramID(c)
	if !ok {
		return
	}
	order, err := h.OrderService.Cancel(c.Request.Context(), id, actor)
	if err != nil {
		respondOrderCancelError(c, err)
		return
	}
	response.Success(c, order)
}

// ConfirmCODOrder 确认货到付款订单并创建运单
func (h *Handler) ConfirmCODOrder(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}
	id, ok := paramID(c)
	if !ok {
		return
	}
	shipment, err := h.ShipmentService.ConfirmCODOrder(c.Request.Context(), id, actor)
	if err != nil {
		respondCODConfirmError(c, err)
		return
	}
	response.Success(c, shipment)
}

// GetOrderShipment 订单运单信息（AWB 与追踪链接）
func (h *Handler) GetOrderShipment(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}
	id, ok := paramID(c)
	if !ok {
		return
	}
	shipment, err := h.ShipmentService.GetShipmentByOrder(c.Request.Context(), id, actor)
	if err != nil {
		respondShipmentQueryError(c, err)
		return
	}
	response.Success(c, shipment)
}
