package i18n

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func newLocaleContext(target string, headers map[string]string) *gin.Context {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	c.Request = req
	return c
}

func TestResolveLocale(t *testing.T) {
	cases := []struct {
		name    string
		target  string
		headers map[string]string
		want    string
	}{
		{name: "default", target: "/", want: LocaleEN},
		{name: "query wins", target: "/?lang=zh", headers: map[string]string{"X-Locale": "en-US"}, want: LocaleZH},
		{name: "x-locale", target: "/", headers: map[string]string{"X-Locale": "zh_CN"}, want: LocaleZH},
		{name: "accept-language", target: "/", headers: map[string]string{"Accept-Language": "zh-TW,zh;q=0.9,en;q=0.8"}, want: LocaleZH},
		{name: "unsupported falls back", target: "/", headers: map[string]string{"Accept-Language": "fr-FR"}, want: LocaleEN},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ResolveLocale(newLocaleContext(tc.target, tc.headers)); got != tc.want {
				t.Fatalf("want %s got %s", tc.want, got)
			}
		})
	}
	if got := ResolveLocale(nil); got != DefaultLocale {
		t.Fatalf("nil context should use default locale, got %s", got)
	}
}

func TestTranslateFallbacks(t *testing.T) {
	if got := T(LocaleZH, "error.order_not_found"); got != "订单不存在" {
		t.Fatalf("unexpected zh message: %s", got)
	}
	if got := T("ja-JP", "error.order_not_found"); got != "Order not found" {
		t.Fatalf("unknown locale should fall back to default, got %s", got)
	}
	if got := T(LocaleEN, "error.no_such_key"); got != "error.no_such_key" {
		t.Fatalf("missing key should echo the key, got %s", got)
	}
	if got := Sprintf(LocaleEN, "error.rate_limited", 30); got != "Too many requests, retry after 30 seconds" {
		t.Fatalf("unexpected formatted message: %s", got)
	}
}

func TestCatalogLocalesShareKeys(t *testing.T) {
	for key := range catalog[LocaleEN] {
		if _, ok := catalog[LocaleZH][key]; !ok {
			t.Fatalf("zh catalog missing key %s", key)
		}
	}
	for key := range catalog[LocaleZH] {
		if _, ok := catalog[LocaleEN][key]; !ok {
			t.Fatalf("en catalog missing key %s", key)
		}
	}
}
