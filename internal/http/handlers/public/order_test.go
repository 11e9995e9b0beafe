package public

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ayurwell-next/internal/http/response"
	"github.com/ayurwell-next/internal/service"

	"github.com/gin-gonic/gin"
)

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) response.Response {
	t.Helper()
	var resp response.Response
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response failed: %v body=%s", err, w.Body.String())
	}
	return resp
}

func TestOrderHandlersRequireUser(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/orders/1", nil)
	c.Params = gin.Params{{Key: "id", Value: "1"}}

	(&Handler{}).GetOrder(c)

	if got := decodeEnvelope(t, w).StatusCode; got != response.CodeUnauthorized {
		t.Fatalf("expected unauthorized code, got %d", got)
	}
}

func TestOrderHandlersRejectBadID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	for _, raw := range []string{"abc", "0", "-3"} {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/orders/"+raw+"/cancel", nil)
		c.Params = gin.Params{{Key: "id", Value: raw}}
		c.Set("user_id", uint(7))

		(&Handler{}).CancelOrder(c)

		if got := decodeEnvelope(t, w).StatusCode; got != response.CodeBadRequest {
			t.Fatalf("id %q: expected bad request, got %d", raw, got)
		}
	}
}

func TestBuyNowRejectsNonPositiveQuantity(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body := `{"address_id":1,"payment_method":"cod","product_id":2,"quantity":-1}`
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/orders/buy-now", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Set("user_id", uint(7))

	(&Handler{}).BuyNow(c)

	if got := decodeEnvelope(t, w).StatusCode; got != response.CodeBadRequest {
		t.Fatalf("expected bad request, got %d", got)
	}
}

func TestRespondShipmentQueryErrorMapping(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		err  error
		code int
	}{
		{service.ErrOrderNotFound, response.CodeNotFound},
		{fmt.Errorf("wrap: %w", service.ErrShipmentNotFound), response.CodeNotFound},
		{errors.New("db down"), response.CodeInternal},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/orders/1/shipment", nil)
		respondShipmentQueryError(c, tc.err)
		if got := decodeEnvelope(t, w).StatusCode; got != tc.code {
			t.Fatalf("%v: want %d got %d", tc.err, tc.code, got)
		}
	}
}

func TestQuoteDeliveryRejectsNonPositiveQuantity(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body := `{"address_id":1,"product_id":2,"quantity":0}`
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/orders/quote", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Set("user_id", uint(7))

	(&Handler{}).QuoteDelivery(c)

	if got := decodeEnvelope(t, w).StatusCode; got != response.CodeBadRequest {
		t.Fatalf("expected bad request, got %d", got)
	}
}
