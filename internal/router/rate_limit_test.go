package router

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ayurwell-next/internal/config"

	"github.com/gin-gonic/gin"
)

func TestKeyByUserAndJSONFieldRestoresBody(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/payments/verify", strings.NewReader(`{"razorpay_order_id":" Order_XYZ "}`))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Request.RemoteAddr = "1.2.3.4:5678"

	key := KeyByUserAndJSONField("razorpay_order_id")(c)
	if key != "order_xyz|1.2.3.4" {
		t.Fatalf("key want order_xyz|1.2.3.4 got %s", key)
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		t.Fatalf("read body after key extraction failed: %v", err)
	}
	if !strings.Contains(string(body), "Order_XYZ") {
		t.Fatalf("request body should be restored after reading field")
	}
}

func TestKeyByUserAndJSONField(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/payments/verify", strings.NewReader(`{"razorpay_order_id":"order_ABC"}`))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Request.RemoteAddr = "1.2.3.4:5678"

	if key := KeyByUserAndJSONField("razorpay_order_id")(c); key != "order_abc|1.2.3.4" {
		t.Fatalf("anonymous key want order_abc|1.2.3.4 got %s", key)
	}

	c.Set(ctxUserID, uint(42))
	if key := KeyByUserAndJSONField("razorpay_order_id")(c); key != "order_abc|u42" {
		t.Fatalf("user key want order_abc|u42 got %s", key)
	}
}

func TestRuleFromConfig(t *testing.T) {
	rule := RuleFromConfig("payment_verify", config.RateLimitConfig{WindowSeconds: 60, MaxAttempts: 5, BlockSeconds: 300})
	if rule.Prefix != "payment_verify" || rule.WindowSeconds != 60 || rule.MaxRequests != 5 || rule.BlockSeconds != 300 {
		t.Fatalf("unexpected rule: %+v", rule)
	}
}

func TestRateLimitMiddlewareWithoutClient(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(RateLimitMiddleware(nil, RateLimitRule{WindowSeconds: 60, MaxRequests: 1}, KeyByIP))
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status want 200 got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"ok":true`) {
		t.Fatalf("expected handler response body, got %s", w.Body.String())
	}
}

func TestToInt64(t *testing.T) {
	cases := []struct {
		name  string
		input interface{}
		want  int64
		ok    bool
	}{
		{name: "int64", input: int64(10), want: 10, ok: true},
		{name: "int", input: int(11), want: 11, ok: true},
		{name: "uint8", input: uint8(12), want: 12, ok: true},
		{name: "float64", input: float64(13.9), want: 13, ok: true},
		{name: "string", input: "bad", want: 0, ok: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := toInt64(tc.input)
			if ok != tc.ok {
				t.Fatalf("ok want %v got %v", tc.ok, ok)
			}
			if got != tc.want {
				t.Fatalf("value want %d got %d", tc.want, got)
			}
		})
	}
}
