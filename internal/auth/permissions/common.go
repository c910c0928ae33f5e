package permissions

// CommonAccess bundles the checks the admin surfaces ask for most.
type CommonAccess struct {
	CanManageUsers bool
	CanCreateUsers bool
	CanViewUsers   bool

	CanManageFinance       bool
	CanApproveTransactions bool
	CanViewFinancials      bool

	CanManageProjects bool
	CanCreateProjects bool
	CanViewProjects   bool

	CanManageInventory bool
	CanUpdateInventory bool
	CanViewInventory   bool

	CanManageHR     bool
	CanViewPayroll  bool
	CanApproveLeave bool

	CanViewAudit   bool
	CanExportAudit bool

	CanManageWorkflows  bool
	CanExecuteWorkflows bool

	CanManageRoles        bool
	CanManagePermissions  bool
	CanViewSystemSettings bool
}

// Common evaluates the standard bundle in one pass.
func (c *Checker) Common() CommonAccess {
	return CommonAccess{
		CanManageUsers: c.Allows("users:manage:all") || c.Allows("users:*"),
		CanCreateUsers: c.Allows("users:create:all"),
		CanViewUsers:   c.Allows("users:read:all"),

		CanManageFinance:       c.Allows("finance:manage:all") || c.Allows("finance:*"),
		CanApproveTransactions: c.Allows("finance:approve:all"),
		CanViewFinancials:      c.Allows("finance:read:all"),

		CanManageProjects: c.Allows("project:manage:all") || c.Allows("project:*"),
		CanCreateProjects: c.Allows("project:create:all"),
		CanViewProjects:   c.Allows("project:read:all"),

		CanManageInventory: c.Allows("inventory:manage:all") || c.Allows("inventory:*"),
		CanUpdateInventory: c.Allows("inventory:update:all"),
		CanViewInventory:   c.Allows("inventory:read:all"),

		CanManageHR:     c.Allows("hr:manage:all") || c.Allows("hr:*"),
		CanViewPayroll:  c.Allows("hr:payroll:read"),
		CanApproveLeave: c.Allows("hr:leave:approve"),

		CanViewAudit:   c.Allows("audit:read:all") || c.Allows("audit:*"),
		CanExportAudit: c.Allows("audit:export"),

		CanManageWorkflows:  c.Allows("workflow:manage:all") || c.Allows("workflow:*"),
		CanExecuteWorkflows: c.Allows("workflow:execute"),

		CanManageRoles:        c.Allows("rbac:manage:all"),
		CanManagePermissions:  c.Allows("rbac:permissions:manage"),
		CanViewSystemSettings: c.Allows("system:settings:read"),
	}
}
