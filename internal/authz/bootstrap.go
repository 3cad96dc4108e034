package authz

import "fmt"

// 预置角色名称
const (
	RoleReadonlyAuditor   = "readonly_auditor"
	RoleInventoryOperator = "inventory_operator"
	RoleMerchandiser      = "merchandiser"
	RoleOrderDesk         = "order_desk"
)

// RoleSeed 预置角色定义
type RoleSeed struct {
	Role     string
	Inherits []string
	Policies []Policy
}

// BuiltinRoleSeeds 系统预置角色矩阵
func BuiltinRoleSeeds() []RoleSeed {
	return []RoleSeed{
		{
			Role: RoleReadonlyAuditor,
			Policies: []Policy{
				{Object: "/admin/*", Action: "GET"},
			},
		},
		{
			Role:     RoleInventoryOperator,
			Inherits: []string{RoleReadonlyAuditor},
			Policies: []Policy{
				{Object: "/admin/inventory/variants/:id/reserve", Action: "POST"},
				{Object: "/admin/inventory/variants/:id/release", Action: "POST"},
				{Object: "/admin/inventory/variants/:id/adjust", Action: "POST"},
			},
		},
		{
			Role:     RoleMerchandiser,
			Inherits: []string{RoleReadonlyAuditor},
			Policies: []Policy{
				{Object: "/admin/coupons", Action: "POST"},
				{Object: "/admin/coupons/:id", Action: "PUT"},
				{Object: "/admin/coupons/:id/deactivate", Action: "POST"},
				{Object: "/admin/coupons/validate", Action: "POST"},
			},
		},
		{
			Role:     RoleOrderDesk,
			Inherits: []string{RoleReadonlyAuditor},
			Policies: []Policy{
				{Object: "/admin/coupons/validate", Action: "POST"},
				{Object: "/admin/orders", Action: "POST"},
				{Object: "/admin/orders/price", Action: "POST"},
				{Object: "/admin/orders/:order_no/cancel", Action: "POST"},
				{Object: "/admin/orders/:order_no/reprice", Action: "POST"},
			},
		},
	}
}

// BootstrapBuiltinRoles 初始化预置角色与默认策略（可重复执行）
func (s *Service) BootstrapBuiltinRoles() error {
	if s == nil || s.enforcer == nil {
		return ErrUnavailable
	}

	for _, seed := range BuiltinRoleSeeds() {
		role, err := s.EnsureRole(seed.Role)
		if err != nil {
			return err
		}

		for _, parent := range seed.Inherits {
			parentRole, err := NormalizeRole(parent)
			if err != nil {
				return err
			}
			if _, err := s.enforcer.AddNamedGroupingPolicy("g", role, parentRole); err != nil {
				return fmt.Errorf("link role inheritance failed: %w", err)
			}
		}

		for _, policy := range seed.Policies {
			if err := s.GrantRolePolicy(role, policy.Object, policy.Action); err != nil {
				return fmt.Errorf("add builtin policy failed: %w", err)
			}
		}
	}
	return nil
}
