package authz

import "fmt"

// 预置角色
const (
	RoleSuperAdmin = "super_admin"
	RoleSupport    = "support"
	RoleFinance    = "finance"
	RoleOperations = "operations"
)

// RoleSeed 预置角色定义
type RoleSeed struct {
	Role     string
	Inherits []string
	Policies []Policy
}

// BuiltinRoleSeeds 预置角色矩阵：客服处理订单与退货，财务处理退款，运营处理运单
func BuiltinRoleSeeds() []RoleSeed {
	return []RoleSeed{
		{
			Role:     RoleSuperAdmin,
			Policies: []Policy{{Object: "/admin/*", Action: "*"}},
		},
		{
			Role: "readonly_auditor",
			Policies: []Policy{
				{Object: "/admin/orders", Action: "GET"},
				{Object: "/admin/shipments", Action: "GET"},
				{Object: "/admin/shipments/:id", Action: "GET"},
				{Object: "/admin/refunds", Action: "GET"},
				{Object: "/admin/returns", Action: "GET"},
				{Object: "/admin/returns/stats", Action: "GET"},
			},
		},
		{
			Role:     RoleSupport,
			Inherits: []string{"readonly_auditor"},
			Policies: []Policy{
				{Object: "/admin/orders/:id/status", Action: "PATCH"},
				{Object: "/admin/orders/:id/cancel", Action: "POST"},
				{Object: "/admin/returns/:id/status", Action: "PATCH"},
			},
		},
		{
			Role:     RoleFinance,
			Inherits: []string{"readonly_auditor"},
			Policies: []Policy{
				{Object: "/admin/orders/:id/refunds", Action: "POST"},
				{Object: "/admin/orders/:id/cod-refund", Action: "POST"},
				{Object: "/admin/orders/:id/cod-settle", Action: "POST"},
				{Object: "/admin/refunds/:id/retry", Action: "POST"},
			},
		},
		{
			Role:     RoleOperations,
			Inherits: []string{"readonly_auditor"},
			Policies: []Policy{
				{Object: "/admin/orders/:id/shipments", Action: "POST"},
				{Object: "/admin/shipments/:id/assign-awb", Action: "POST"},
				{Object: "/admin/shipments/:id/cancel", Action: "POST"},
				{Object: "/admin/shipments/:id/rto", Action: "POST"},
				{Object: "/admin/shipments/awb-retry", Action: "POST"},
			},
		},
	}
}

// BootstrapBuiltinRoles 初始化预置角色与默认策略，重复执行不会产生重复规则
func (s *Service) BootstrapBuiltinRoles() error {
	if err := s.ready(); err != nil {
		return err
	}
	for _, seed := range BuiltinRoleSeeds() {
		role, err := s.EnsureRole(seed.Role)
		if err != nil {
			return err
		}
		for _, parent := range seed.Inherits {
			parentRole, err := s.EnsureRole(parent)
			if err != nil {
				return err
			}
			if _, err := s.enforcer.AddNamedGroupingPolicy("g", role, parentRole); err != nil {
				return fmt.Errorf("link role inheritance failed: %w", err)
			}
		}
		for _, policy := range seed.Policies {
			if err := s.GrantRolePolicy(role, policy.Object, policy.Action); err != nil {
				return err
			}
		}
	}
	return nil
}
