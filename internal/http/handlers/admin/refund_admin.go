package admin

import (
	"errors"
	"strings"

	handlershared "github.com/ayurwell-next/internal/http/handlers/shared"
	"github.com/ayurwell-next/internal/http/response"
	"github.com/ayurwell-next/internal/repository"
	"github.com/ayurwell-next/internal/service"

	"github.com/gin-gonic/gin"
)

// AdminRefundRequest 管理端手工退款
type AdminRefundRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// AdminCODRefundRequest 货到付款线下退款登记
type AdminCODRefundRequest struct {
	Note string `json:"note"`
}

func respondRefundError(c *gin.Context, err error, fallbackKey string) {
	switch {
	case errors.Is(err, service.ErrOrderNotFound):
		respondError(c, response.CodeNotFound, "error.order_not_found", nil)
	case errors.Is(err, service.ErrRefundNotFound):
		respondError(c, response.CodeNotFound, "error.refund_not_found", nil)
	case errors.Is(err, service.ErrPaymentNotFound):
		respondError(c, response.CodeNotFound, "error.payment_not_found", nil)
	case errors.Is(err, service.ErrRefundAlreadyInitiated):
		respondError(c, response.CodeConflict, "error.refund_in_progress", nil)
	case errors.Is(err, service.ErrPaymentAlreadyRefunded):
		respondError(c, response.CodeConflict, "error.payment_already_refunded", nil)
	case errors.Is(err, service.ErrRefundNotRetryable):
		respondError(c, response.CodeBadRequest, "error.refund_not_retryable", nil)
	case errors.Is(err, service.ErrNothingToRefund):
		respondError(c, response.CodeBadRequest, "error.nothing_to_refund", nil)
	case errors.Is(err, service.ErrRefundNotAllowed), errors.Is(err, service.ErrIllegalTransition):
		respondError(c, response.CodeBadRequest, "error.refund_not_allowed", nil)
	case errors.Is(err, service.ErrPaymentNotCaptured):
		respondError(c, response.CodeBadRequest, "error.payment_not_captured", nil)
	case errors.Is(err, service.ErrCODRefundNotAutomated):
		respondError(c, response.CodeBadRequest, "error.cod_refund_manual", nil)
	case errors.Is(err, service.ErrOrderNotCOD):
		respondError(c, response.CodeBadRequest, "error.order_not_cod", nil)
	case errors.Is(err, service.ErrCODNotCollected):
		respondError(c, response.CodeBadRequest, "error.cod_not_collected", nil)
	case errors.Is(err, service.ErrRefundRejected):
		respondUpstreamError(c, response.UpstreamPaymentGateway, "error.refund_rejected", err)
	case errors.Is(err, service.ErrPaymentGatewayFailed):
		respondUpstreamError(c, response.UpstreamPaymentGateway, "error.payment_gateway_failed", err)
	default:
		respondError(c, response.CodeInternal, fallbackKey, err)
	}
}

// AdminRefundOrder 管理端对预付订单发起退款
func (h *Handler) AdminRefundOrder(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}
	orderID, ok := paramID(c)
	if !ok {
		return
	}
	var req AdminRefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	refund, err := h.RefundService.ProcessAdminRefund(c.Request.Context(), orderID, strings.TrimSpace(req.Reason), actor)
	if err != nil {
		respondRefundError(c, err, "error.refund_failed")
		return
	}
	response.Success(c, refund)
}

// AdminMarkCODRefunded 登记货到付款订单已线下退款
func (h *Handler) AdminMarkCODRefunded(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}
	orderID, ok := paramID(c)
	if !ok {
		return
	}
	var req AdminCODRefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	order, err := h.RefundService.MarkCODRefunded(c.Request.Context(), orderID, strings.TrimSpace(req.Note), actor)
	if err != nil {
		respondRefundError(c, err, "error.refund_failed")
		return
	}
	response.Success(c, order)
}

// AdminListRefunds 退款记录列表
func (h *Handler) AdminListRefunds(c *gin.Context) {
	page, pageSize := handlershared.QueryPagination(c)
	refunds, total, err := h.RefundService.ListRefunds(c.Request.Context(), repository.RefundListFilter{
		Page:     page,
		PageSize: pageSize,
		OrderID:  queryUint(c, "order_id"),
		Status:   strings.TrimSpace(c.Query("status")),
		Type:     strings.TrimSpace(c.Query("type")),
	})
	if err != nil {
		respondError(c, response.CodeInternal, "error.refund_fetch_failed", err)
		return
	}
	response.SuccessWithPage(c, refunds, response.BuildPagination(page, pageSize, total))
}

// AdminRetryRefund 重试失败的退款
func (h *Handler) AdminRetryRefund(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}
	refundID, ok := paramID(c)
	if !ok {
		return
	}
	refund, err := h.RefundService.RetryFailedRefund(c.Request.Context(), refundID, actor)
	if err != nil {
		respondRefundError(c, err, "error.refund_failed")
		return
	}
	requestLog(c).Infow("admin_refund_retried", "refund_id", refundID, "status", refund.Status)
	response.Success(c, refund)
}
