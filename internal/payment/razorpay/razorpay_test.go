package razorpay

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(Config{
		KeyID:         "rzp_test_key",
		KeySecret:     "checkout-secret",
		WebhookSecret: "webhook-secret",
		APIBaseURL:    server.URL,
	})
}

func TestCreateOrderSendsMinorAmount(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/orders", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		require.Equal(t, "rzp_test_key", user)
		require.Equal(t, "checkout-secret", pass)

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.EqualValues(t, 74950, body["amount"])
		require.Equal(t, "INR", body["currency"])
		require.Equal(t, "receipt_AW1001", body["receipt"])
		_, _ = w.Write([]byte(`{"id":"order_abc","status":"created"}`))
	})

	id, err := client.CreateOrder(context.Background(), decimal.RequireFromString("749.50"), "inr", "receipt_AW1001")
	require.NoError(t, err)
	require.Equal(t, "order_abc", id)
}

func TestFetchPaymentComputesRefundable(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/payments/pay_1", r.URL.Path)
		_, _ = w.Write([]byte(`{"id":"pay_1","status":"captured","captured":true,"amount":100000,"amount_refunded":25000}`))
	})

	state, err := client.FetchPayment(context.Background(), "pay_1")
	require.NoError(t, err)
	require.Equal(t, PaymentStatusCaptured, state.Status)
	require.True(t, state.Refundable().Equal(decimal.NewFromInt(750)))
}

func TestRefundRejectedOnClientError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":"BAD_REQUEST_ERROR","description":"The payment has been fully refunded already"}}`))
	})

	_, err := client.Refund(context.Background(), RefundInput{PaymentID: "pay_1", Amount: decimal.NewFromInt(10), Receipt: "RF1"})
	require.ErrorIs(t, err, ErrRefundRejected)
	require.Contains(t, err.Error(), "fully refunded")
}

func TestRefundServerErrorIsRetryable(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.Refund(context.Background(), RefundInput{PaymentID: "pay_1", Amount: decimal.NewFromInt(10), Receipt: "RF1"})
	require.ErrorIs(t, err, ErrRequestFailed)
}

func TestVerifySignatures(t *testing.T) {
	client := NewClient(Config{KeyID: "k", KeySecret: "checkout-secret", WebhookSecret: "webhook-secret"})

	sig := SignCheckout("checkout-secret", "order_1", "pay_1")
	require.True(t, client.VerifyCheckoutSignature("order_1", "pay_1", sig))
	require.False(t, client.VerifyCheckoutSignature("order_1", "pay_2", sig))

	body := []byte(`{"event":"refund.processed"}`)
	require.True(t, client.VerifyWebhookSignature(body, SignWebhook("webhook-secret", body)))
	require.False(t, client.VerifyWebhookSignature(body, SignWebhook("other", body)))
	require.False(t, client.VerifyWebhookSignature(body, ""))
}

func TestParseWebhookReadsRefundEntity(t *testing.T) {
	body := []byte(`{"event":"refund.processed","payload":{"refund":{"entity":{"id":"rfnd_1","payment_id":"pay_1","receipt":"RF-1","amount":50000,"status":"processed"}}}}`)

	event, err := ParseWebhook(body)
	require.NoError(t, err)
	require.Equal(t, EventRefundProcessed, event.Event)
	require.Equal(t, "rfnd_1", event.RefundID)
	require.Equal(t, "pay_1", event.PaymentID)
	require.Equal(t, "RF-1", event.Receipt)
	require.True(t, event.Amount.Equal(decimal.NewFromInt(500)))
}
