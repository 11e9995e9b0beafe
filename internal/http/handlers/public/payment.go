package public

import (
	"github.com/ayurwell-next/internal/http/response"
	"github.com/ayurwell-next/internal/service"

	"github.com/gin-gonic/gin"
)

// VerifyPaymentRequest 结账回传参数
type VerifyPaymentRequest struct {
	GatewayOrderID   string `json:"razorpay_order_id" binding:"required"`
	GatewayPaymentID string `json:"razorpay_payment_id" binding:"required"`
	Signature        string `json:"razorpay_signature" binding:"required"`
}

// InitiatePayment 为预付订单创建网关订单
func (h *Handler) InitiatePayment(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}
	id, ok := paramID(c)
	if !ok {
		return
	}
	payment, err := h.PaymentService.InitiatePayment(c.Request.Context(), id, actor)
	if err != nil {
		respondPaymentInitiateError(c, err)
		return
	}
	response.Success(c, gin.H{
		"payment":          payment,
		"gateway_order_id": payment.GatewayOrderID,
		"key_id":           h.Config.Payment.Razorpay.KeyID,
	})
}

// VerifyPayment 校验结账签名并捕获支付
func (h *Handler) VerifyPayment(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}
	var req VerifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	payment, err := h.PaymentService.VerifyPayment(c.Request.Context(), service.VerifyPaymentInput{
		GatewayOrderID:   req.GatewayOrderID,
		GatewayPaymentID: req.GatewayPaymentID,
		Signature:        req.Signature,
	}, actor)
	if err != nil {
		requestLog(c).Warnw("payment_verify_rejected", "gateway_order_id", req.GatewayOrderID, "error", err)
		respondPaymentVerifyError(c, err)
		return
	}
	response.Success(c, payment)
}

// GetOrderPayment 订单支付记录
func (h *Handler) GetOrderPayment(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}
	id, ok := paramID(c)
	if !ok {
		return
	}
	payment, err := h.PaymentService.GetPaymentByOrder(c.Request.Context(), id, actor)
	if err != nil {
		respondWithMappedError(c, err, concatMappedHandlerErrors(orderAccessErrorRules, []mappedHandlerError{
			{target: service.ErrPaymentNotFound, code: response.CodeNotFound, key: "error.payment_not_found"},
		}), response.CodeInternal, "error.order_fetch_failed")
		return
	}
	response.Success(c, payment)
}

// ListOrderRefunds 订单退款记录
func (h *Handler) ListOrderRefunds(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}
	id, ok := paramID(c)
	if !ok {
		return
	}
	refunds, err := h.RefundService.GetRefundsByOrder(c.Request.Context(), id, actor)
	if err != nil {
		respondWithMappedError(c, err, orderAccessErrorRules, response.CodeInternal, "error.refund_fetch_failed")
		return
	}
	response.Success(c, refunds)
}
