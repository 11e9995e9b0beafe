package authz

import (
	"fmt"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupAuthzServiceTest(t *testing.T) *Service {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	svc, err := NewService(db)
	if err != nil {
		t.Fatalf("new authz service failed: %v", err)
	}
	if err := svc.BootstrapBuiltinRoles(); err != nil {
		t.Fatalf("bootstrap roles failed: %v", err)
	}
	return svc
}

func TestFinanceRoleCanRefundButNotShip(t *testing.T) {
	svc := setupAuthzServiceTest(t)
	if err := svc.SetUserRoles(7, []string{RoleFinance}); err != nil {
		t.Fatalf("set roles failed: %v", err)
	}

	allow, err := svc.EnforceUser(7, "/api/v1/admin/orders/42/refunds", "post")
	if err != nil || !allow {
		t.Fatalf("finance should issue refunds, allow=%v err=%v", allow, err)
	}
	allow, _ = svc.EnforceUser(7, "/api/v1/admin/orders/42/cod-settle", "POST")
	if !allow {
		t.Fatalf("finance should settle cod orders")
	}
	allow, _ = svc.EnforceUser(7, "/api/v1/admin/refunds", "GET")
	if !allow {
		t.Fatalf("finance should inherit read access")
	}
	allow, _ = svc.EnforceUser(7, "/api/v1/admin/shipments/9/rto", "POST")
	if allow {
		t.Fatalf("finance must not trigger rto")
	}
}

func TestSuperAdminWildcard(t *testing.T) {
	svc := setupAuthzServiceTest(t)
	if err := svc.SetUserRoles(1, []string{RoleSuperAdmin}); err != nil {
		t.Fatalf("set roles failed: %v", err)
	}
	for _, path := range []string{"/api/v1/admin/shipments/awb-retry", "/api/v1/admin/returns/3/status"} {
		if allow, _ := svc.EnforceUser(1, path, "PATCH"); !allow {
			t.Fatalf("super admin should access %s", path)
		}
	}
	if allow, _ := svc.EnforceUser(2, "/api/v1/admin/orders", "GET"); allow {
		t.Fatalf("user without roles must be denied")
	}
}

func TestSetUserRolesOverride(t *testing.T) {
	svc := setupAuthzServiceTest(t)
	if err := svc.SetUserRoles(3, []string{RoleSupport}); err != nil {
		t.Fatalf("set first role failed: %v", err)
	}
	if err := svc.SetUserRoles(3, []string{RoleOperations}); err != nil {
		t.Fatalf("set second role failed: %v", err)
	}
	roles, err := svc.UserRoles(3)
	if err != nil {
		t.Fatalf("get roles failed: %v", err)
	}
	if len(roles) != 1 || roles[0] != "role:operations" {
		t.Fatalf("roles want [role:operations], got=%v", roles)
	}
	if allow, _ := svc.EnforceUser(3, "/api/v1/admin/orders/5/cancel", "POST"); allow {
		t.Fatalf("support permission should be gone after override")
	}
}

func TestBootstrapIsIdempotent(t *testing.T) {
	svc := setupAuthzServiceTest(t)
	before, err := svc.RolePolicies(RoleOperations)
	if err != nil {
		t.Fatalf("get policies failed: %v", err)
	}
	if err := svc.BootstrapBuiltinRoles(); err != nil {
		t.Fatalf("second bootstrap failed: %v", err)
	}
	after, _ := svc.RolePolicies(RoleOperations)
	if len(before) != len(after) || len(after) != 5 {
		t.Fatalf("unexpected policy count before=%d after=%d", len(before), len(after))
	}
}

func TestNormalizeHelpers(t *testing.T) {
	if got := NormalizeObject("/api/v1/admin/orders"); got != "/admin/orders" {
		t.Fatalf("unexpected object: %s", got)
	}
	if got := NormalizeObject("admin/refunds"); got != "/admin/refunds" {
		t.Fatalf("unexpected object: %s", got)
	}
	if got := NormalizeObject("/api/v1"); got != "/" {
		t.Fatalf("unexpected object: %s", got)
	}
	if _, err := NormalizeRole("  "); err == nil {
		t.Fatalf("empty role should fail")
	}
	if got, _ := NormalizeRole("order desk"); got != "role:order_desk" {
		t.Fatalf("unexpected role: %s", got)
	}
}
