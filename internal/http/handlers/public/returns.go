package public

import (
	"github.com/ayurwell-next/internal/http/response"
	"github.com/ayurwell-next/internal/service"

	"github.com/gin-gonic/gin"
)

// CreateReturnRequest 退货申请请求；order_item_ids 为空表示整单退货
type CreateReturnRequest struct {
	OrderID      uint   `json:"order_id" binding:"required"`
	Reason       string `json:"reason" binding:"required"`
	OrderItemIDs []uint `json:"order_item_ids"`
}

// CreateReturn 提交退货申请
func (h *Handler) CreateReturn(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}
	var req CreateReturnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	ret, err := h.ReturnService.CreateReturn(c.Request.Context(), service.CreateReturnInput{
		OrderID:      req.OrderID,
		Reason:       req.Reason,
		OrderItemIDs: req.OrderItemIDs,
	}, actor)
	if err != nil {
		respondReturnCreateError(c, err)
		return
	}
	response.Success(c, ret)
}

// GetReturn 退货申请详情
func (h *Handler) GetReturn(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}
	id, ok := paramID(c)
	if !ok {
		return
	}
	ret, err := h.ReturnService.GetReturn(c.Request.Context(), id, actor)
	if err != nil {
		respondReturnQueryError(c, err)
		return
	}
	response.Success(c, ret)
}

// ListOrderReturns 订单下的退货申请
func (h *Handler) ListOrderReturns(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}
	id, ok := paramID(c)
	if !ok {
		return
	}
	returns, err := h.ReturnService.ListReturnsByOrder(c.Request.Context(), id, actor)
	if err != nil {
		respondReturnQueryError(c, err)
		return
	}
	response.Success(c, returns)
}

// CancelReturn 用户撤销退货申请
func (h *Handler) CancelReturn(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}
	id, ok := paramID(c)
	if !ok {
		return
	}
	ret, err := h.ReturnService.CancelReturn(c.Request.Context(), id, actor)
	if err != nil {
		respondReturnCancelError(c, err)
		return
	}
	response.Success(c, ret)
}
