package razorpay

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrConfigInvalid    = errors.New("razorpay config invalid")
	ErrRequestFailed    = errors.New("razorpay request failed")
	ErrResponseInvalid  = errors.New("razorpay response invalid")
	ErrSignatureInvalid = errors.New("razorpay signature invalid")
	ErrRefundRejected   = errors.New("razorpay refund rejected")
)

const (
	defaultAPIBaseURL = "https://api.razorpay.com/v1"
	defaultTimeout    = 15 * time.Second

	// PaymentStatusCaptured 网关侧已捕获
	PaymentStatusCaptured = "captured"

	EventRefundProcessed = "refund.processed"
	EventRefundFailed    = "refund.failed"
)

// Config Razorpay 网关配置。
type Config struct {
	KeyID         string
	KeySecret     string
	WebhookSecret string
	APIBaseURL    string
	Timeout       time.Duration
}

// Client Razorpay 网关客户端，进程启动时创建一次并注入各服务。
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// PaymentState 网关侧支付状态。
type PaymentState struct {
	PaymentID      string
	Status         string
	AmountCaptured decimal.Decimal
	AmountRefunded decimal.Decimal
}

// Refundable 当前可退余额
func (p *PaymentState) Refundable() decimal.Decimal {
	if p == nil {
		return decimal.Zero
	}
	return p.AmountCaptured.Sub(p.AmountRefunded)
}

// RefundInput 发起退款输入。
type RefundInput struct {
	PaymentID string
	Amount    decimal.Decimal
	Receipt   string
	Notes     map[string]string
}

// RefundResult 退款返回。
type RefundResult struct {
	RefundID string
	Status   string
}

// WebhookEvent 退款 Webhook 解析结果。
type WebhookEvent struct {
	Event     string
	RefundID  string
	PaymentID string
	Receipt   string
	Amount    decimal.Decimal
	Status    string
}

// ValidateConfig 校验配置。
func ValidateConfig(cfg Config) error {
	if strings.TrimSpace(cfg.KeyID) == "" {
		return fmt.Errorf("%w: key_id is required", ErrConfigInvalid)
	}
	if strings.TrimSpace(cfg.KeySecret) == "" {
		return fmt.Errorf("%w: key_secret is required", ErrConfigInvalid)
	}
	return nil
}

// NewClient 创建网关客户端
func NewClient(cfg Config) *Client {
	cfg.APIBaseURL = strings.TrimRight(strings.TrimSpace(cfg.APIBaseURL), "/")
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = defaultAPIBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// CreateOrder 创建网关订单，返回网关订单号
func (c *Client) CreateOrder(ctx context.Context, amount decimal.Decimal, currency, receipt string) (string, error) {
	body := map[string]interface{}{
		"amount":   toMinorAmount(amount),
		"currency": strings.ToUpper(strings.TrimSpace(currency)),
		"receipt":  receipt,
	}
	raw, status, err := c.do(ctx, http.MethodPost, "/orders", body)
	if err != nil {
		return "", err
	}
	if status < 200 || status >= 300 {
		return "", fmt.Errorf("%w: create order http %d: %s", ErrResponseInvalid, status, readErrorDescription(raw))
	}
	id := readString(raw, "id")
	if id == "" {
		return "", fmt.Errorf("%w: order id missing", ErrResponseInvalid)
	}
	return id, nil
}

// FetchPayment 查询网关侧支付状态
func (c *Client) FetchPayment(ctx context.Context, paymentID string) (*PaymentState, error) {
	if strings.TrimSpace(paymentID) == "" {
		return nil, fmt.Errorf("%w: payment id is empty", ErrResponseInvalid)
	}
	raw, status, err := c.do(ctx, http.MethodGet, "/payments/"+paymentID, nil)
	if err != nil {
		return nil, err
	}
	if status >= 500 {
		return nil, fmt.Errorf("%w: fetch payment http %d", ErrRequestFailed, status)
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("%w: fetch payment http %d: %s", ErrResponseInvalid, status, readErrorDescription(raw))
	}
	state := &PaymentState{
		PaymentID:      readString(raw, "id"),
		Status:         strings.ToLower(readString(raw, "status")),
		AmountRefunded: fromMinorAmount(readInt64(raw, "amount_refunded")),
	}
	if state.Status == PaymentStatusCaptured || state.Status == "refunded" || readBool(raw, "captured") {
		state.AmountCaptured = fromMinorAmount(readInt64(raw, "amount"))
	}
	return state, nil
}

// Refund 对已捕获的支付发起退款，receipt 作为本地退款单号
func (c *Client) Refund(ctx context.Context, input RefundInput) (*RefundResult, error) {
	if strings.TrimSpace(input.PaymentID) == "" {
		return nil, fmt.Errorf("%w: payment id is empty", ErrRefundRejected)
	}
	body := map[string]interface{}{
		"amount":  toMinorAmount(input.Amount),
		"speed":   "normal",
		"receipt": input.Receipt,
	}
	if len(input.Notes) > 0 {
		body["notes"] = input.Notes
	}
	raw, status, err := c.do(ctx, http.MethodPost, "/payments/"+input.PaymentID+"/refund", body)
	if err != nil {
		return nil, err
	}
	if status >= 500 {
		return nil, fmt.Errorf("%w: refund http %d", ErrRequestFailed, status)
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("%w: %s", ErrRefundRejected, readErrorDescription(raw))
	}
	result := &RefundResult{
		RefundID: readString(raw, "id"),
		Status:   strings.ToLower(readString(raw, "status")),
	}
	if result.RefundID == "" {
		return nil, fmt.Errorf("%w: refund id missing", ErrResponseInvalid)
	}
	if result.Status == "failed" {
		return nil, fmt.Errorf("%w: gateway returned failed status", ErrRefundRejected)
	}
	return result, nil
}

// VerifyCheckoutSignature 校验结账回传签名（HMAC-SHA256，order_id|payment_id）
func (c *Client) VerifyCheckoutSignature(gatewayOrderID, gatewayPaymentID, signature string) bool {
	expected := computeSignature(c.cfg.KeySecret, []byte(gatewayOrderID+"|"+gatewayPaymentID))
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(strings.TrimSpace(signature))))
}

// VerifyWebhookSignature 校验 Webhook 原始请求体签名
func (c *Client) VerifyWebhookSignature(body []byte, signature string) bool {
	if strings.TrimSpace(c.cfg.WebhookSecret) == "" || strings.TrimSpace(signature) == "" {
		return false
	}
	expected := computeSignature(c.cfg.WebhookSecret, body)
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(strings.TrimSpace(signature))))
}

// ParseWebhook 解析退款 Webhook
func ParseWebhook(body []byte) (*WebhookEvent, error) {
	raw, err := decodeRawMap(body)
	if err != nil {
		return nil, err
	}
	event := &WebhookEvent{Event: strings.ToLower(readString(raw, "event"))}
	if event.Event == "" {
		return nil, fmt.Errorf("%w: event is missing", ErrResponseInvalid)
	}
	entity := readMap(readMap(readMap(raw, "payload"), "refund"), "entity")
	if entity != nil {
		event.RefundID = readString(entity, "id")
		event.PaymentID = readString(entity, "payment_id")
		event.Receipt = readString(entity, "receipt")
		event.Status = strings.ToLower(readString(entity, "status"))
		event.Amount = fromMinorAmount(readInt64(entity, "amount"))
	}
	return event, nil
}

// SignCheckout 生成结账签名，供测试与联调工具使用
func SignCheckout(secret, gatewayOrderID, gatewayPaymentID string) string {
	return computeSignature(secret, []byte(gatewayOrderID+"|"+gatewayPaymentID))
}

// SignWebhook 生成 Webhook 签名
func SignWebhook(secret string, body []byte) string {
	return computeSignature(secret, body)
}

func (c *Client) do(ctx context.Context, method, path string, payload interface{}) (map[string]interface{}, int, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	var reader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: encode request failed", ErrRequestFailed)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.APIBaseURL+path, reader)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: build request failed", ErrRequestFailed)
	}
	req.SetBasicAuth(c.cfg.KeyID, c.cfg.KeySecret)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("%w: read response failed", ErrRequestFailed)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return map[string]interface{}{}, resp.StatusCode, nil
	}
	raw, err := decodeRawMap(body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return raw, resp.StatusCode, nil
}

func toMinorAmount(amount decimal.Decimal) int64 {
	return amount.Round(2).Shift(2).IntPart()
}

func fromMinorAmount(minor int64) decimal.Decimal {
	return decimal.New(minor, -2)
}

func computeSignature(secret string, payload []byte) string {
	h := hmac.New(sha256.New, []byte(secret))
	_, _ = h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

func decodeRawMap(body []byte) (map[string]interface{}, error) {
	var raw map[string]interface{}
	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()
	if err := decoder.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: decode response failed", ErrResponseInvalid)
	}
	return raw, nil
}

func readErrorDescription(raw map[string]interface{}) string {
	if desc := readString(readMap(raw, "error"), "description"); desc != "" {
		return desc
	}
	return "unknown error"
}

func readString(raw map[string]interface{}, key string) string {
	if raw == nil {
		return ""
	}
	switch typed := raw[key].(type) {
	case string:
		return strings.TrimSpace(typed)
	case json.Number:
		return typed.String()
	default:
		return ""
	}
}

func readMap(raw map[string]interface{}, key string) map[string]interface{} {
	if raw == nil {
		return nil
	}
	mapped, _ := raw[key].(map[string]interface{})
	return mapped
}

func readInt64(raw map[string]interface{}, key string) int64 {
	if raw == nil {
		return 0
	}
	switch typed := raw[key].(type) {
	case json.Number:
		if parsed, err := typed.Int64(); err == nil {
			return parsed
		}
		if parsed, err := typed.Float64(); err == nil {
			return int64(parsed)
		}
	case string:
		if parsed, err := strconv.ParseInt(strings.TrimSpace(typed), 10, 64); err == nil {
			return parsed
		}
	}
	return 0
}

func readBool(raw map[string]interface{}, key string) bool {
	if raw == nil {
		return false
	}
	value, _ := raw[key].(bool)
	return value
}
