package router

import (
	"testing"

	"github.com/gin-gonic/gin"
)

func TestBuildAdminPermissionCatalog(t *testing.T) {
	gin.SetMode(gin.TestMode)

	noop := func(c *gin.Context) {}
	r := gin.New()
	r.GET("/api/v1/orders", noop)
	r.GET("/api/v1/admin/orders", noop)
	r.POST("/api/v1/admin/refunds/:id/retry", noop)
	r.PUT("/api/v1/admin/authz/users/:id/roles", noop)

	items := buildAdminPermissionCatalog(r)
	if len(items) != 3 {
		t.Fatalf("catalog should only list admin routes, got %+v", items)
	}
	modules := map[string]string{}
	for _, item := range items {
		modules[item.Permission] = item.Module
	}
	if modules["GET:/admin/orders"] != "orders" {
		t.Fatalf("orders permission missing: %+v", items)
	}
	if modules["POST:/admin/refunds/:id/retry"] != "refunds" {
		t.Fatalf("refund retry permission missing: %+v", items)
	}
	if modules["PUT:/admin/authz/users/:id/roles"] != "authz" {
		t.Fatalf("authz permission missing: %+v", items)
	}
}
