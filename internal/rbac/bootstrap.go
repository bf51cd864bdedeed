package rbac

import (
	"errors"

	"github.com/frahmantamala/property-evaluation/internal"
	rbacDatamodel "github.com/frahmantamala/property-evaluation/internal/core/datamodel/rbac"
)

// Names of the built-in roles.
const (
	RoleViewer     = "Viewer"
	RoleInputter   = "Inputter"
	RoleAuthorizer = "Authorizer"
	RoleAdmin      = "Admin"
)

// Built-in catalog seeded at startup. Changing these lists only affects
// fresh deployments: roles that already exist keep their membership (see
// InitializeDefaultData).
var defaultPermissions = []struct {
	Action      string
	Resource    string
	Description string
}{
	{"read", "collateral_evaluation", "View collateral evaluation data"},
	{"edit", "collateral_evaluation", "Edit collateral evaluation data"},
	{"clear", "collateral_evaluation", "Clear collateral evaluation data"},
	{"authorize", "collateral_evaluation", "Authorize collateral evaluation"},
	{"comment", "collateral_evaluation", "Add comments to evaluations"},
	{"read", "user_management", "View user information"},
	{"edit", "user_management", "Manage users"},
	{"read", "role_management", "View roles and permissions"},
	{"edit", "role_management", "Manage roles and permissions"},
}

var defaultRoles = []struct {
	Name        string
	Description string
}{
	{RoleViewer, "Can only view collateral evaluation data"},
	{RoleInputter, "Can input and edit collateral evaluation data"},
	{RoleAuthorizer, "Can authorize collateral evaluations and manage the system"},
	{RoleAdmin, "Full system administration access"},
}

// defaultRoleActions keys the declarative membership rule on the role name.
// Admin has no entry: it takes every permission in the catalog.
var defaultRoleActions = map[string][]string{
	RoleViewer:     {"read"},
	RoleInputter:   {"read", "edit", "clear"},
	RoleAuthorizer: {"read", "edit", "authorize", "comment"},
}

// InitializeDefaultData seeds the baseline catalog: upsert-by-absence for
// permissions and roles. A role's permission set is attached only when the
// role itself is newly created, so re-running after the built-in catalog
// grew does not reconcile existing roles.
func (s *Service) InitializeDefaultData() error {
	for _, p := range defaultPermissions {
		existing, err := s.repo.GetPermissionByPair(p.Action, p.Resource)
		if err != nil {
			return internal.NewInternalError("failed to check default permission", err)
		}
		if existing != nil {
			continue
		}
		err = s.repo.CreatePermission(&rbacDatamodel.Permission{
			Action:      p.Action,
			Resource:    p.Resource,
			Description: p.Description,
		})
		if err != nil && !errors.Is(err, ErrDuplicateEntry) {
			return internal.NewInternalError("failed to create default permission", err)
		}
	}

	for _, r := range defaultRoles {
		existing, err := s.repo.GetRoleByName(r.Name)
		if err != nil {
			return internal.NewInternalError("failed to check default role", err)
		}
		if existing != nil {
			continue
		}

		role := &rbacDatamodel.Role{
			Name:        r.Name,
			Description: r.Description,
		}
		if err := s.repo.CreateRole(role); err != nil {
			if errors.Is(err, ErrDuplicateEntry) {
				continue
			}
			return internal.NewInternalError("failed to create default role", err)
		}

		var permissions []*rbacDatamodel.Permission
		if actions, ok := defaultRoleActions[r.Name]; ok {
			permissions, err = s.repo.GetPermissionsByActions(actions)
		} else {
			permissions, err = s.repo.GetAllPermissions()
		}
		if err != nil {
			return internal.NewInternalError("failed to load default role permissions", err)
		}

		for _, permission := range permissions {
			err := s.repo.InsertRolePermission(&rbacDatamodel.RolePermission{
				RoleID:       role.ID,
				PermissionID: permission.ID,
			})
			if err != nil && !errors.Is(err, ErrDuplicateEntry) {
				return internal.NewInternalError("failed to attach default role permission", err)
			}
		}

		s.logger.Info("seeded default role", "name", r.Name, "permissions", len(permissions))
	}

	return nil
}
