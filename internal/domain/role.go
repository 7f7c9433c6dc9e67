package domain

import "strings"

type Role string

const (
	RoleAdmin         Role = "admin"
	RoleBranchManager Role = "branch_manager"
	RoleEmployee      Role = "employee"
	RoleUnknown       Role = "unknown"
)

// roleAliases is the single canonical alias table. Keys are lower-cased and
// have '-' and ' ' folded to '_'.
var roleAliases = map[string]Role{
	"admin":          RoleAdmin,
	"administrator":  RoleAdmin,
	"super_admin":    RoleAdmin,
	"superadmin":     RoleAdmin,
	"owner":          RoleAdmin,
	"مدير_النظام":    RoleAdmin,
	"مسؤول":          RoleAdmin,
	"ادمن":           RoleAdmin,
	"أدمن":           RoleAdmin,
	"مالك":           RoleAdmin,
	"branch_manager": RoleBranchManager,
	"branchmanager":  RoleBranchManager,
	"manager":        RoleBranchManager,
	"supervisor":     RoleBranchManager,
	"مدير_فرع":       RoleBranchManager,
	"مدير_الفرع":     RoleBranchManager,
	"مدير":           RoleBranchManager,
	"مشرف":           RoleBranchManager,
	"employee":       RoleEmployee,
	"staff":          RoleEmployee,
	"cashier":        RoleEmployee,
	"worker":         RoleEmployee,
	"موظف":           RoleEmployee,
	"عامل":           RoleEmployee,
	"كاشير":          RoleEmployee,
}

// NormalizeRole maps any raw role string onto a canonical role. It is total:
// unrecognised input maps to RoleUnknown, which grants nothing.
func NormalizeRole(raw string) Role {
	key := strings.ToLower(strings.TrimSpace(raw))
	key = strings.Join(strings.FieldsFunc(key, func(r rune) bool {
		return r == ' ' || r == '-' || r == '_'
	}), "_")
	if role, ok := roleAliases[key]; ok {
		return role
	}
	return RoleUnknown
}

// CanViewReports reports whether the role may read revenue analytics.
func (r Role) CanViewReports() bool {
	return r == RoleAdmin || r == RoleBranchManager
}

// SpansBranches reports whether the role acts across every branch.
func (r Role) SpansBranches() bool {
	return r == RoleAdmin
}

// CanOperateRentals reports whether the role may start or act on rentals.
func (r Role) CanOperateRentals() bool {
	return r == RoleAdmin || r == RoleBranchManager || r == RoleEmployee
}
