package public

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/ayurwell-next/internal/http/response"
	"github.com/ayurwell-next/internal/i18n"
	"github.com/ayurwell-next/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	carrierTokenHeader     = "X-Api-Key"
	gatewaySignatureHeader = "X-Razorpay-Signature"
	gatewayEventIDHeader   = "X-Razorpay-Event-Id"
	webhookBodyLimit       = 1 << 20
)

// flexString 兼容数字或字符串形式的 JSON 字段
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

// flexBool 兼容 0/1、"1"、true 等写法
type flexBool bool

func (f *flexBool) UnmarshalJSON(data []byte) error {
	var raw flexString
	if err := raw.UnmarshalJSON(data); err != nil {
		return err
	}
	switch strings.ToLower(string(raw)) {
	case "1", "true", "yes":
		*f = true
	default:
		*f = false
	}
	return nil
}

// ShipmentWebhookRequest 承运商状态推送
type ShipmentWebhookRequest struct {
	CarrierOrderID flexString `json:"sr_order_id"`
	Status         string     `json:"shipment_status"`
	CurrentStatus  string     `json:"current_status"`
	IsReturn       flexBool   `json:"is_return"`
	AWB            flexString `json:"awb"`
	CourierName    string     `json:"courier_name"`
	EventTime      string     `json:"current_timestamp"`
}

// ShipmentWebhook 承运商回调；除系统错误外一律以 200 确认，避免对方无意义重投
func (h *Handler) ShipmentWebhook(c *gin.Context) {
	log := requestLog(c)
	var req ShipmentWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnw("webhook_shipment_payload_invalid", "error", err)
		c.JSON(http.StatusOK, gin.H{"success": false})
		return
	}
	status := strings.TrimSpace(req.Status)
	if status == "" {
		status = strings.TrimSpace(req.CurrentStatus)
	}
	result, err := h.WebhookService.HandleShipmentWebhook(c.Request.Context(), c.GetHeader(carrierTokenHeader), service.ShipmentWebhookInput{
		CarrierOrderID: string(req.CarrierOrderID),
		Status:         status,
		IsReturn:       bool(req.IsReturn),
		AWB:            string(req.AWB),
		CourierName:    strings.TrimSpace(req.CourierName),
		EventTime:      strings.TrimSpace(req.EventTime),
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrWebhookTokenInvalid):
			log.Warnw("webhook_shipment_token_invalid", "client_ip", c.ClientIP())
		case errors.Is(err, service.ErrWebhookPayloadInvalid):
			log.Warnw("webhook_shipment_payload_invalid", "carrier_order_id", string(req.CarrierOrderID))
		default:
			log.Errorw("webhook_shipment_handle_failed", "carrier_order_id", string(req.CarrierOrderID), "status", status, "error", err)
		}
		c.JSON(http.StatusOK, gin.H{"success": false})
		return
	}
	log.Infow("webhook_shipment_handled",
		"carrier_order_id", string(req.CarrierOrderID),
		"status", status,
		"action", result.Action,
	)
	c.JSON(http.StatusOK, gin.H{"success": true, "action": result.Action})
}

// PaymentWebhook 网关退款回调；签名错误返回 400 以便网关重投
func (h *Handler) PaymentWebhook(c *gin.Context) {
	log := requestLog(c)
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, webhookBodyLimit))
	if err != nil {
		log.Warnw("webhook_payment_body_read_failed", "error", err)
		respondWebhookStatus(c, http.StatusBadRequest, "error.bad_request")
		return
	}
	eventID := strings.TrimSpace(c.GetHeader(gatewayEventIDHeader))
	result, err := h.WebhookService.HandlePaymentWebhook(c.Request.Context(), c.GetHeader(gatewaySignatureHeader), eventID, body)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrWebhookSignatureInvalid):
			respondWebhookStatus(c, http.StatusBadRequest, "error.webhook_signature_invalid")
		case errors.Is(err, service.ErrWebhookPayloadInvalid):
			log.Warnw("webhook_payment_payload_invalid", "event_id", eventID, "error", err)
			respondWebhookStatus(c, http.StatusBadRequest, "error.webhook_payload_invalid")
		default:
			log.Errorw("webhook_payment_handle_failed", "event_id", eventID, "error", err)
			respondWebhookStatus(c, http.StatusInternalServerError, "error.internal")
		}
		return
	}
	log.Infow("webhook_payment_handled", "event_id", eventID, "action", result.Action)
	response.Success(c, result)
}

func respondWebhookStatus(c *gin.Context, httpStatus int, key string) {
	c.JSON(httpStatus, response.Response{
		StatusCode: httpStatus,
		Msg:        i18n.T(i18n.ResolveLocale(c), key),
	})
}
