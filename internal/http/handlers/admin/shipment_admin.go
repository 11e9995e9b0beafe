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

func respondShipmentError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrShipmentNotFound):
		respondError(c, response.CodeNotFound, "error.shipment_not_found", nil)
	case errors.Is(err, service.ErrOrderNotFound):
		respondError(c, response.CodeNotFound, "error.order_not_found", nil)
	case errors.Is(err, service.ErrShipmentNotCancellable):
		respondError(c, response.CodeBadRequest, "error.shipment_not_cancellable", nil)
	case errors.Is(err, service.ErrRTOAlreadyInitiated):
		respondError(c, response.CodeConflict, "error.rto_already_initiated", nil)
	case errors.Is(err, service.ErrRTONotAllowed):
		respondError(c, response.CodeBadRequest, "error.rto_not_allowed", nil)
	case errors.Is(err, service.ErrAWBNotAssigned):
		respondError(c, response.CodeBadRequest, "error.awb_not_assigned", nil)
	case errors.Is(err, service.ErrIllegalTransition):
		respondError(c, response.CodeBadRequest, "error.order_transition_illegal", nil)
	case errors.Is(err, service.ErrCarrierRequestFailed):
		respondUpstreamError(c, response.UpstreamCarrier, "error.carrier_request_failed", err)
	default:
		respondError(c, response.CodeInternal, "error.shipment_update_failed", err)
	}
}

// AdminListShipments 管理端运单列表，支持按订单、状态、类型与 AWB 过滤
func (h *Handler) AdminListShipments(c *gin.Context) {
	page, pageSize := handlershared.QueryPagination(c)
	shipments, total, err := h.ShipmentService.ListShipments(c.Request.Context(), repository.ShipmentListFilter{
		Page:       page,
		PageSize:   pageSize,
		OrderID:    queryUint(c, "order_id"),
		Status:     strings.TrimSpace(c.Query("status")),
		Type:       strings.TrimSpace(c.Query("type")),
		AWB:        strings.TrimSpace(c.Query("awb")),
		PendingAWB: c.Query("pending_awb") == "true",
	})
	if err != nil {
		respondError(c, response.CodeInternal, "error.shipment_fetch_failed", err)
		return
	}
	response.SuccessWithPage(c, shipments, response.BuildPagination(page, pageSize, total))
}

// AdminGetShipment 管理端运单详情
func (h *Handler) AdminGetShipment(c *gin.Context) {
	shipmentID, ok := paramID(c)
	if !ok {
		return
	}
	shipment, err := h.ShipmentService.GetShipment(c.Request.Context(), shipmentID)
	if err != nil {
		respondShipmentError(c, err)
		return
	}
	response.Success(c, shipment)
}

// AdminAssignAWB 手工触发运单号分配
func (h *Handler) AdminAssignAWB(c *gin.Context) {
	shipmentID, ok := paramID(c)
	if !ok {
		return
	}
	shipment, err := h.ShipmentService.AssignAWB(c.Request.Context(), shipmentID)
	if err != nil {
		respondShipmentError(c, err)
		return
	}
	response.Success(c, shipment)
}

// AdminCancelShipment 取消尚未揽收的运单
func (h *Handler) AdminCancelShipment(c *gin.Context) {
	shipmentID, ok := paramID(c)
	if !ok {
		return
	}
	shipment, err := h.ShipmentService.CancelShipment(c.Request.Context(), shipmentID)
	if err != nil {
		respondShipmentError(c, err)
		return
	}
	response.Success(c, shipment)
}

// AdminRequestRTO 对在途运单发起退回
func (h *Handler) AdminRequestRTO(c *gin.Context) {
	shipmentID, ok := paramID(c)
	if !ok {
		return
	}
	shipment, err := h.ShipmentService.RequestRTO(c.Request.Context(), shipmentID)
	if err != nil {
		respondShipmentError(c, err)
		return
	}
	response.Success(c, shipment)
}

// AdminRunAWBRetry 立即执行一轮运单号补分配
func (h *Handler) AdminRunAWBRetry(c *gin.Context) {
	result, err := h.AWBRetryScheduler.RunOnce(c.Request.Context())
	if err != nil {
		if errors.Is(err, service.ErrAWBRetryRunning) {
			respondError(c, response.CodeConflict, "error.awb_retry_running", nil)
			return
		}
		respondError(c, response.CodeInternal, "error.shipment_update_failed", err)
		return
	}
	requestLog(c).Infow("admin_awb_retry_finished",
		"resumed", result.Resumed,
		"scanned", result.Scanned,
		"assigned", result.Assigned,
		"pending", result.Pending,
		"failed", result.Failed,
	)
	response.Success(c, result)
}
