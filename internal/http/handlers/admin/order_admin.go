package admin

import (
	"errors"
	"strings"

	handlershared "github.com/ayurwell-next/internal/http/handlers/shared"
	"github.com/ayurwell-next/internal/http/response"
	"github.com/ayurwell-next/internal/models"
	"github.com/ayurwell-next/internal/repository"
	"github.com/ayurwell-next/internal/service"

	"github.com/gin-gonic/gin"
)

// AdminOrderListItem 管理端订单列表返回
type AdminOrderListItem struct {
	models.Order
	UserEmail string `json:"user_email,omitempty"`
	UserName  string `json:"user_name,omitempty"`
}

// AdminListOrders 管理端订单列表
func (h *Handler) AdminListOrders(c *gin.Context) {
	page, pageSize := handlershared.QueryPagination(c)
	createdFrom, err := parseTimeNullable(c.Query("created_from"))
	if err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	createdTo, err := parseTimeNullable(c.Query("created_to"))
	if err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	codCollected, codSettled, ok := parseCODStatus(c.Query("cod_status"))
	if !ok {
		respondError(c, response.CodeBadRequest, "error.cod_filter_invalid", nil)
		return
	}

	orders, total, err := h.OrderService.ListAdminOrders(c.Request.Context(), repository.OrderListFilter{
		Page:          page,
		PageSize:      pageSize,
		UserID:        queryUint(c, "user_id"),
		Status:        strings.TrimSpace(c.Query("status")),
		PaymentMethod: strings.TrimSpace(c.Query("payment_method")),
		OrderNo:       strings.TrimSpace(c.Query("order_no")),
		CODCollected:  codCollected,
		CODSettled:    codSettled,
		CreatedFrom:   createdFrom,
		CreatedTo:     createdTo,
	})
	if err != nil {
		respondError(c, response.CodeInternal, "error.order_fetch_failed", err)
		return
	}

	userIDs := make([]uint, 0, len(orders))
	seen := map[uint]struct{}{}
	for _, order := range orders {
		if _, ok := seen[order.UserID]; ok || order.UserID == 0 {
			continue
		}
		seen[order.UserID] = struct{}{}
		userIDs = append(userIDs, order.UserID)
	}
	userMap := map[uint]models.User{}
	if len(userIDs) > 0 {
		users, err := h.UserRepo.ListByIDs(userIDs)
		if err != nil {
			respondError(c, response.CodeInternal, "error.order_fetch_failed", err)
			return
		}
		for _, user := range users {
			userMap[user.ID] = user
		}
	}

	items := make([]AdminOrderListItem, 0, len(orders))
	for _, order := range orders {
		item := AdminOrderListItem{Order: order}
		if user, ok := userMap[order.UserID]; ok {
			item.UserEmail = user.Email
			item.UserName = user.FullName()
		}
		items = append(items, item)
	}
	response.SuccessWithPage(c, items, response.BuildPagination(page, pageSize, total))
}

// parseCODStatus 到付对账筛选：pending 未收款，collected 已收款未结算，settled 已结算
func parseCODStatus(raw string) (collected, settled *bool, ok bool) {
	yes, no := true, false
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "all":
		return nil, nil, true
	case "pending":
		return &no, &no, true
	case "collected":
		return &yes, &no, true
	case "settled":
		return nil, &yes, true
	default:
		return nil, nil, false
	}
}

// AdminUpdateOrderStatusRequest 管理端更新订单状态请求
type AdminUpdateOrderStatusRequest struct {
	Status string `json:"status" binding:"required"`
	Note   string `json:"note"`
}

// AdminUpdateOrderStatus 按状态机推进订单状态
func (h *Handler) AdminUpdateOrderStatus(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}
	orderID, ok := paramID(c)
	if !ok {
		return
	}
	var req AdminUpdateOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}

	order, err := h.OrderService.UpdateStatus(c.Request.Context(), orderID, strings.TrimSpace(req.Status), req.Note, actor)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrOrderNotFound):
			respondError(c, response.CodeNotFound, "error.order_not_found", nil)
		case errors.Is(err, service.ErrInvalidOrderStatus):
			respondError(c, response.CodeBadRequest, "error.order_status_invalid", nil)
		case errors.Is(err, service.ErrSameOrderStatus):
			respondError(c, response.CodeConflict, "error.order_status_same", nil)
		case errors.Is(err, service.ErrTerminalOrderStatus):
			respondError(c, response.CodeBadRequest, "error.order_status_terminal", nil)
		case errors.Is(err, service.ErrIllegalTransition):
			respondError(c, response.CodeBadRequest, "error.order_transition_illegal", nil)
		case errors.Is(err, service.ErrCODNotCollected):
			respondError(c, response.CodeBadRequest, "error.cod_not_collected", nil)
		default:
			respondError(c, response.CodeInternal, "error.order_update_failed", err)
		}
		return
	}
	response.Success(c, order)
}

// AdminCancelOrder 管理端取消订单
func (h *Handler) AdminCancelOrder(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}
	orderID, ok := paramID(c)
	if !ok {
		return
	}
	order, err := h.OrderService.Cancel(c.Request.Context(), orderID, actor)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrOrderNotFound):
			respondError(c, response.CodeNotFound, "error.order_not_found", nil)
		case errors.Is(err, service.ErrOrderAlreadyCancelled):
			respondError(c, response.CodeConflict, "error.order_already_cancelled", nil)
		case errors.Is(err, service.ErrOrderNotCancellable), errors.Is(err, service.ErrIllegalTransition):
			respondError(c, response.CodeBadRequest, "error.order_not_cancellable", nil)
		case errors.Is(err, service.ErrShipmentNotCancellable):
			respondError(c, response.CodeBadRequest, "error.shipment_not_cancellable", nil)
		case errors.Is(err, service.ErrRefundRejected):
			respondUpstreamError(c, response.UpstreamPaymentGateway, "error.refund_rejected", err)
		case errors.Is(err, service.ErrPaymentGatewayFailed):
			respondUpstreamError(c, response.UpstreamPaymentGateway, "error.payment_gateway_failed", err)
		case errors.Is(err, service.ErrCarrierRequestFailed):
			respondUpstreamError(c, response.UpstreamCarrier, "error.carrier_request_failed", err)
		default:
			respondError(c, response.CodeInternal, "error.order_update_failed", err)
		}
		return
	}
	response.Success(c, order)
}

// AdminCreateShipment 为已支付订单手工创建运单
func (h *Handler) AdminCreateShipment(c *gin.Context) {
	orderID, ok := paramID(c)
	if !ok {
		return
	}
	shipment, err := h.ShipmentService.CreateShipment(c.Request.Context(), orderID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrOrderNotFound):
			respondError(c, response.CodeNotFound, "error.order_not_found", nil)
		case errors.Is(err, service.ErrShipmentAlreadyExists):
			respondError(c, response.CodeConflict, "error.shipment_exists", nil)
		case errors.Is(err, service.ErrShipmentNotAllowed), errors.Is(err, service.ErrIllegalTransition):
			respondError(c, response.CodeBadRequest, "error.shipment_not_allowed", nil)
		case errors.Is(err, service.ErrMissingDimensions):
			respondError(c, response.CodeBadRequest, "error.dimensions_missing", nil)
		case errors.Is(err, service.ErrNoCourierAvailable):
			respondError(c, response.CodeBadRequest, "error.courier_unavailable", nil)
		case errors.Is(err, service.ErrCarrierRequestFailed):
			respondUpstreamError(c, response.UpstreamCarrier, "error.carrier_request_failed", err)
		default:
			respondError(c, response.CodeInternal, "error.shipment_create_failed", err)
		}
		return
	}
	response.Success(c, shipment)
}

// AdminSettleCOD 标记到付款项已结算
func (h *Handler) AdminSettleCOD(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}
	orderID, ok := paramID(c)
	if !ok {
		return
	}
	order, err := h.OrderService.SettleCOD(c.Request.Context(), orderID, actor)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrOrderNotFound):
			respondError(c, response.CodeNotFound, "error.order_not_found", nil)
		case errors.Is(err, service.ErrOrderNotCOD):
			respondError(c, response.CodeBadRequest, "error.order_not_cod", nil)
		case errors.Is(err, service.ErrCODNotCollected):
			respondError(c, response.CodeBadRequest, "error.cod_not_collected", nil)
		case errors.Is(err, service.ErrCODAlreadySettled):
			respondError(c, response.CodeConflict, "error.cod_already_settled", nil)
		default:
			respondError(c, response.CodeInternal, "error.order_update_failed", err)
		}
		return
	}
	requestLog(c).Infow("admin_cod_settled", "order_id", order.ID, "amount", order.CODAmount.String())
	response.Success(c, order)
}
