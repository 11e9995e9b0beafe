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

// AdminUpdateReturnStatusRequest 管理端推进退货状态
type AdminUpdateReturnStatusRequest struct {
	Status string `json:"status" binding:"required"`
	Note   string `json:"note"`
}

// AdminListReturns 退货申请列表
func (h *Handler) AdminListReturns(c *gin.Context) {
	page, pageSize := handlershared.QueryPagination(c)
	returns, total, err := h.ReturnService.ListReturns(c.Request.Context(), repository.ReturnListFilter{
		Page:     page,
		PageSize: pageSize,
		OrderID:  queryUint(c, "order_id"),
		UserID:   queryUint(c, "user_id"),
		Status:   strings.TrimSpace(c.Query("status")),
	})
	if err != nil {
		respondError(c, response.CodeInternal, "error.return_fetch_failed", err)
		return
	}
	response.SuccessWithPage(c, returns, response.BuildPagination(page, pageSize, total))
}

// AdminReturnStats 按状态统计退货申请
func (h *Handler) AdminReturnStats(c *gin.Context) {
	stats, err := h.ReturnService.ReturnStatistics(c.Request.Context())
	if err != nil {
		respondError(c, response.CodeInternal, "error.return_fetch_failed", err)
		return
	}
	response.Success(c, stats)
}

// AdminUpdateReturnStatus 审核、排期取件、签收或完成退货
func (h *Handler) AdminUpdateReturnStatus(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}
	returnID, ok := paramID(c)
	if !ok {
		return
	}
	var req AdminUpdateReturnStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	ret, err := h.ReturnService.UpdateReturnStatus(c.Request.Context(), returnID, strings.TrimSpace(req.Status), req.Note, actor)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrReturnNotFound):
			respondError(c, response.CodeNotFound, "error.return_not_found", nil)
		case errors.Is(err, service.ErrInvalidInput), errors.Is(err, service.ErrIllegalTransition):
			respondError(c, response.CodeBadRequest, "error.order_transition_illegal", nil)
		case errors.Is(err, service.ErrReturnNotReceived):
			respondError(c, response.CodeBadRequest, "error.return_not_received", nil)
		case errors.Is(err, service.ErrRefundAlreadyInitiated):
			respondError(c, response.CodeConflict, "error.refund_in_progress", nil)
		case errors.Is(err, service.ErrCarrierRequestFailed):
			respondUpstreamError(c, response.UpstreamCarrier, "error.carrier_request_failed", err)
		case errors.Is(err, service.ErrRefundRejected), errors.Is(err, service.ErrPaymentGatewayFailed):
			respondUpstreamError(c, response.UpstreamPaymentGateway, "error.refund_rejected", err)
		default:
			respondError(c, response.CodeInternal, "error.return_update_failed", err)
		}
		return
	}
	response.Success(c, ret)
}
