package admin

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ayurwell-next/internal/authz"
	"github.com/ayurwell-next/internal/http/response"
	"github.com/ayurwell-next/internal/provider"
	"github.com/ayurwell-next/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

type envelope struct {
	StatusCode int             `json:"status_code"`
	Msg        string          `json:"msg"`
	Data       json.RawMessage `json:"data"`
}

func newAdminContext(method, target, body string) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var resp envelope
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response failed: %v body=%s", err, w.Body.String())
	}
	return resp
}

func TestRespondShipmentErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{service.ErrShipmentNotFound, response.CodeNotFound},
		{fmt.Errorf("wrap: %w", service.ErrRTOAlreadyInitiated), response.CodeConflict},
		{service.ErrShipmentNotCancellable, response.CodeBadRequest},
		{service.ErrCarrierRequestFailed, response.CodeBadGateway},
		{errors.New("db down"), response.CodeInternal},
	}
	for _, tc := range cases {
		c, w := newAdminContext(http.MethodPost, "/", "")
		respondShipmentError(c, tc.err)
		if got := decode(t, w).StatusCode; got != tc.code {
			t.Fatalf("%v: want %d got %d", tc.err, tc.code, got)
		}
	}
}

func TestRespondRefundErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{service.ErrRefundAlreadyInitiated, response.CodeConflict},
		{service.ErrRefundNotRetryable, response.CodeBadRequest},
		{service.ErrCODRefundNotAutomated, response.CodeBadRequest},
		{service.ErrRefundRejected, response.CodeBadGateway},
		{fmt.Errorf("%w: timeout", service.ErrPaymentGatewayFailed), response.CodeBadGateway},
		{service.ErrOrderNotFound, response.CodeNotFound},
	}
	for _, tc := range cases {
		c, w := newAdminContext(http.MethodPost, "/", "")
		respondRefundError(c, tc.err, "error.refund_failed")
		if got := decode(t, w).StatusCode; got != tc.code {
			t.Fatalf("%v: want %d got %d", tc.err, tc.code, got)
		}
	}
}

func TestAdminUpdateOrderStatusRequiresUser(t *testing.T) {
	c, w := newAdminContext(http.MethodPatch, "/api/v1/admin/orders/1/status", `{"status":"shipped"}`)
	c.Params = gin.Params{{Key: "id", Value: "1"}}
	(&Handler{}).AdminUpdateOrderStatus(c)
	if got := decode(t, w).StatusCode; got != response.CodeUnauthorized {
		t.Fatalf("expected unauthorized, got %d", got)
	}
}

func TestParseTimeNullable(t *testing.T) {
	if got, err := parseTimeNullable(" "); err != nil || got != nil {
		t.Fatalf("blank should be nil, got %v err=%v", got, err)
	}
	got, err := parseTimeNullable("2026-10-01")
	if err != nil || got == nil || got.Day() != 1 || got.Month() != time.October {
		t.Fatalf("unexpected date parse: %v err=%v", got, err)
	}
	if _, err := parseTimeNullable("2026-10-01T08:00:00Z"); err != nil {
		t.Fatalf("rfc3339 should parse: %v", err)
	}
	if _, err := parseTimeNullable("yesterday"); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestParseCODStatus(t *testing.T) {
	collected, settled, ok := parseCODStatus("collected")
	if !ok || collected == nil || !*collected || settled == nil || *settled {
		t.Fatalf("collected should mean collected and unsettled")
	}
	collected, settled, ok = parseCODStatus(" Settled ")
	if !ok || collected != nil || settled == nil || !*settled {
		t.Fatalf("settled should only filter on settlement")
	}
	collected, settled, ok = parseCODStatus("")
	if !ok || collected != nil || settled != nil {
		t.Fatalf("blank should not filter")
	}
	if _, _, ok := parseCODStatus("lost"); ok {
		t.Fatalf("unknown value should be rejected")
	}
}

func TestAdminSettleCODRequiresUser(t *testing.T) {
	c, w := newAdminContext(http.MethodPost, "/api/v1/admin/orders/1/cod-settle", "")
	c.Params = gin.Params{{Key: "id", Value: "1"}}
	(&Handler{}).AdminSettleCOD(c)
	if got := decode(t, w).StatusCode; got != response.CodeUnauthorized {
		t.Fatalf("expected unauthorized, got %d", got)
	}
}

func TestAuthzUserRolesRoundTrip(t *testing.T) {
	dsn := fmt.Sprintf("file:admin_authz_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	authzService, err := authz.NewService(db)
	if err != nil {
		t.Fatalf("init authz failed: %v", err)
	}
	if err := authzService.BootstrapBuiltinRoles(); err != nil {
		t.Fatalf("bootstrap roles failed: %v", err)
	}
	h := New(&provider.Container{AuthzService: authzService})

	c, w := newAdminContext(http.MethodPut, "/api/v1/admin/authz/users/42/roles", `{"roles":["finance"]}`)
	c.Params = gin.Params{{Key: "id", Value: "42"}}
	c.Set("user_id", uint(1))
	h.SetAuthzUserRoles(c)
	if got := decode(t, w).StatusCode; got != response.CodeOK {
		t.Fatalf("set roles failed: %s", w.Body.String())
	}

	c, w = newAdminContext(http.MethodGet, "/api/v1/admin/authz/me", "")
	c.Set("user_id", uint(42))
	h.GetAuthzMe(c)
	resp := decode(t, w)
	if resp.StatusCode != response.CodeOK {
		t.Fatalf("authz me failed: %s", w.Body.String())
	}
	if !strings.Contains(string(resp.Data), authz.RoleFinance) || !strings.Contains(string(resp.Data), "/admin/refunds/:id/retry") {
		t.Fatalf("expected finance role and its policies, got %s", resp.Data)
	}
}
