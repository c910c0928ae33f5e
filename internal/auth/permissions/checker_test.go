package permissions

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"atlas/internal/auth/models"
)

type fakeSession struct {
	user  *models.User
	perms map[string]struct{}
}

func newFakeSession(user *models.User, perms ...string) *fakeSession {
	set := make(map[string]struct{}, len(perms))
	for _, p := range perms {
		set[p] = struct{}{}
	}
	return &fakeSession{user: user, perms: set}
}

func (f *fakeSession) HasPermission(permission string) bool {
	_, ok := f.perms[permission]
	return ok
}

func (f *fakeSession) User() (models.User, bool) {
	if f.user == nil {
		return models.User{}, false
	}
	return *f.user, true
}

type CheckerSuite struct {
	suite.Suite
}

func TestCheckerSuite(t *testing.T) {
	suite.Run(t, new(CheckerSuite))
}

func (s *CheckerSuite) TestAllows() {
	regular := &models.User{ID: 1, IsActive: true}

	cases := []struct {
		name       string
		user       *models.User
		grants     []string
		permission string
		want       bool
	}{
		{"no user denies everything", nil, []string{"*"}, "invoices:read", false},
		{"superuser bypasses grants", &models.User{ID: 2, IsSuperuser: true}, nil, "anything:at:all", true},
		{"global wildcard", regular, []string{"*"}, "invoices:delete:all", true},
		{"exact match", regular, []string{"invoices:read:all"}, "invoices:read:all", true},
		{"manage all covers any action", regular, []string{"invoices:manage:all"}, "invoices:delete:own", true},
		{"manage at requested scope", regular, []string{"invoices:manage:department"}, "invoices:read:department", true},
		{"all scope covers narrower request", regular, []string{"invoices:read:all"}, "invoices:read:own", true},
		{"own satisfied by department grant", regular, []string{"invoices:read:department"}, "invoices:read:own", true},
		{"own satisfied by assigned grant", regular, []string{"invoices:read:assigned"}, "invoices:read:own", true},
		{"department request not widened from assigned", regular, []string{"invoices:read:assigned"}, "invoices:read:department", false},
		{"bare grant matches scoped request", regular, []string{"invoices:read"}, "invoices:read:own", true},
		{"missing scope defaults to all", regular, []string{"invoices:read:all"}, "invoices:read", true},
		{"single segment never matches", regular, []string{"invoices:read:all"}, "invoices", false},
		{"different resource denied", regular, []string{"invoices:manage:all"}, "payroll:read:all", false},
	}

	for _, tc := range cases {
		s.Run(tc.name, func() {
			checker := NewChecker(newFakeSession(tc.user, tc.grants...))
			s.Equal(tc.want, checker.Allows(tc.permission))
		})
	}
}

func (s *CheckerSuite) TestAnyAll() {
	checker := NewChecker(newFakeSession(&models.User{ID: 1}, "invoices:read:all"))

	s.True(checker.Any("payroll:read", "invoices:read"))
	s.False(checker.Any("payroll:read", "payroll:update"))
	s.True(checker.All("invoices:read", "invoices:read:own"))
	s.False(checker.All("invoices:read", "payroll:read"))
	s.True(checker.All())
}

func (s *CheckerSuite) TestResource() {
	checker := NewChecker(newFakeSession(&models.User{ID: 1},
		"invoices:read:all", "invoices:create:all"))

	access := checker.Resource("invoices")
	s.True(access.CanRead)
	s.True(access.CanCreate)
	s.False(access.CanUpdate)
	s.False(access.CanDelete)
	s.False(access.CanManage)

	manager := NewChecker(newFakeSession(&models.User{ID: 2}, "invoices:manage:all"))
	access = manager.Resource("invoices")
	s.True(access.CanRead)
	s.True(access.CanCreate)
	s.True(access.CanUpdate)
	s.True(access.CanDelete)
	s.True(access.CanManage)
}

func (s *CheckerSuite) TestCommon() {
	checker := NewChecker(newFakeSession(&models.User{ID: 1},
		"finance:manage:all", "users:read:all"))

	common := checker.Common()
	s.True(common.CanManageFinance)
	s.True(common.CanApproveTransactions)
	s.True(common.CanViewFinancials)
	s.True(common.CanViewUsers)
	s.False(common.CanManageUsers)
	s.False(common.CanViewAudit)
}

func (s *CheckerSuite) TestRoles() {
	dept := int64(4)
	user := &models.User{
		ID:           1,
		IsActive:     true,
		DepartmentID: &dept,
		RolesV2:      []models.Role{{Name: "finance_admin"}},
		Roles:        []models.Role{{Name: "viewer"}},
		Role:         &models.Role{Name: "approver"},
	}
	checker := NewChecker(newFakeSession(user))

	s.True(checker.HasRole("finance_admin"))
	s.True(checker.HasRole("viewer"))
	s.True(checker.HasRole("approver"))
	s.False(checker.HasRole("admin"))
	s.False(checker.IsSuperuser())
	s.True(checker.IsActive())

	id, ok := checker.DepartmentID()
	s.True(ok)
	s.Equal(int64(4), id)

	anonymous := NewChecker(newFakeSession(nil))
	s.False(anonymous.HasRole("viewer"))
	_, ok = anonymous.DepartmentID()
	s.False(ok)
}
