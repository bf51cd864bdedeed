package rbac

import (
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/frahmantamala/property-evaluation/internal"
	rbacDatamodel "github.com/frahmantamala/property-evaluation/internal/core/datamodel/rbac"
)

// ErrDuplicateEntry is returned by repositories when an insert violates a
// uniqueness constraint. The constraint, not the application pre-check, is
// the authoritative safeguard under concurrent writes.
var ErrDuplicateEntry = errors.New("duplicate entry")

// PasswordHasher keeps credential hashing out of the identity graph; the
// auth module provides the implementation.
type PasswordHasher interface {
	HashPassword(password string) (string, error)
}

type RepositoryAPI interface {
	CreateUser(user *rbacDatamodel.User) error
	GetUserByID(id int64) (*rbacDatamodel.User, error)
	GetUserByUsername(username string) (*rbacDatamodel.User, error)
	GetUserByUsernameOrEmail(username, email string) (*rbacDatamodel.User, error)
	GetAllUsers() ([]*rbacDatamodel.User, error)
	UpdateUser(id int64, fields map[string]interface{}) error
	DeleteUser(id int64) error

	CreateRole(role *rbacDatamodel.Role) error
	GetRoleByID(id int64) (*rbacDatamodel.Role, error)
	GetRoleByName(name string) (*rbacDatamodel.Role, error)
	GetAllRoles() ([]*rbacDatamodel.Role, error)
	UpdateRole(id int64, fields map[string]interface{}) error
	DeleteRole(id int64) error

	CreatePermission(permission *rbacDatamodel.Permission) error
	GetPermissionByID(id int64) (*rbacDatamodel.Permission, error)
	GetPermissionByPair(action, resource string) (*rbacDatamodel.Permission, error)
	GetPermissionsByActions(actions []string) ([]*rbacDatamodel.Permission, error)
	GetAllPermissions() ([]*rbacDatamodel.Permission, error)
	UpdatePermission(id int64, fields map[string]interface{}) error
	DeletePermission(id int64) error

	UserRoleExists(userID, roleID int64) (bool, error)
	InsertUserRole(assignment *rbacDatamodel.UserRole) error
	DeleteUserRole(userID, roleID int64) (int64, error)
	GetRolesForUser(userID int64) ([]*rbacDatamodel.Role, error)

	RolePermissionExists(roleID, permissionID int64) (bool, error)
	InsertRolePermission(assignment *rbacDatamodel.RolePermission) error
	DeleteRolePermission(roleID, permissionID int64) (int64, error)
	GetPermissionsForRoles(roleIDs []int64) (map[int64][]*rbacDatamodel.Permission, error)

	UserHasPermission(userID int64, action, resource string) (bool, error)
	UserHasRole(userID int64, roleName string) (bool, error)
	GetUserPermissionGrants(userID int64) ([]PermissionGrant, error)
}

type Service struct {
	repo   RepositoryAPI
	hasher PasswordHasher
	logger *slog.Logger
}

func NewService(repo RepositoryAPI, hasher PasswordHasher, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		hasher: hasher,
		logger: logger,
	}
}

// ---------------------------------------------------------------------------
// User management

func (s *Service) CreateUser(dto CreateUserDTO) (*User, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	existing, err := s.repo.GetUserByUsernameOrEmail(dto.Username, dto.Email)
	if err != nil {
		return nil, internal.NewInternalError("failed to check existing user", err)
	}
	if existing != nil {
		return nil, internal.ErrDuplicateUser
	}

	hash, err := s.hasher.HashPassword(dto.Password)
	if err != nil {
		return nil, internal.NewInternalError("failed to hash password", err)
	}

	record := &rbacDatamodel.User{
		Username:     dto.Username,
		Email:        dto.Email,
		PasswordHash: hash,
		FullName:     dto.FullName,
		Department:   dto.Department,
		IsActive:     true,
	}
	if err := s.repo.CreateUser(record); err != nil {
		if errors.Is(err, ErrDuplicateEntry) {
			return nil, internal.ErrDuplicateUser
		}
		return nil, internal.NewInternalError("failed to create user", err)
	}

	// Initial role memberships by name: unknown names are skipped, matching
	// the optional nature of the field.
	for _, roleName := range dto.RoleNames {
		role, err := s.repo.GetRoleByName(roleName)
		if err != nil {
			return nil, internal.NewInternalError("failed to resolve role", err)
		}
		if role == nil {
			s.logger.Warn("skipping unknown role on user create", "role", roleName)
			continue
		}
		err = s.repo.InsertUserRole(&rbacDatamodel.UserRole{
			UserID:     record.ID,
			RoleID:     role.ID,
			AssignedAt: time.Now(),
		})
		if err != nil && !errors.Is(err, ErrDuplicateEntry) {
			return nil, internal.NewInternalError("failed to assign initial role", err)
		}
	}

	s.logger.Info("user created", "user_id", record.ID, "username", record.Username)
	return s.GetUserByID(record.ID)
}

func (s *Service) GetUserByID(id int64) (*User, error) {
	record, err := s.repo.GetUserByID(id)
	if err != nil {
		return nil, internal.NewInternalError("failed to get user", err)
	}
	if record == nil {
		return nil, internal.ErrUserNotFound
	}
	return s.expandUser(record)
}

func (s *Service) GetUserByUsername(username string) (*User, error) {
	record, err := s.repo.GetUserByUsername(username)
	if err != nil {
		return nil, internal.NewInternalError("failed to get user", err)
	}
	if record == nil {
		return nil, internal.ErrUserNotFound
	}
	return s.expandUser(record)
}

func (s *Service) ListUsers() ([]*User, error) {
	records, err := s.repo.GetAllUsers()
	if err != nil {
		return nil, internal.NewInternalError("failed to list users", err)
	}

	users := make([]*User, 0, len(records))
	for _, record := range records {
		u, err := s.expandUser(record)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, nil
}

func (s *Service) UpdateUser(id int64, dto UpdateUserDTO) (*User, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	record, err := s.repo.GetUserByID(id)
	if err != nil {
		return nil, internal.NewInternalError("failed to get user", err)
	}
	if record == nil {
		return nil, internal.ErrUserNotFound
	}

	fields := map[string]interface{}{}
	if dto.Username != nil {
		fields["username"] = *dto.Username
	}
	if dto.Email != nil {
		fields["email"] = *dto.Email
	}
	if dto.FullName != nil {
		fields["full_name"] = *dto.FullName
	}
	if dto.Department != nil {
		fields["department"] = *dto.Department
	}
	if dto.IsActive != nil {
		fields["is_active"] = *dto.IsActive
	}
	if dto.Password != nil {
		hash, err := s.hasher.HashPassword(*dto.Password)
		if err != nil {
			return nil, internal.NewInternalError("failed to hash password", err)
		}
		fields["password_hash"] = hash
	}

	if len(fields) > 0 {
		fields["updated_at"] = time.Now()
		if err := s.repo.UpdateUser(id, fields); err != nil {
			if errors.Is(err, ErrDuplicateEntry) {
				return nil, internal.ErrDuplicateUser
			}
			return nil, internal.NewInternalError("failed to update user", err)
		}
	}

	return s.GetUserByID(id)
}

func (s *Service) DeleteUser(id int64) error {
	record, err := s.repo.GetUserByID(id)
	if err != nil {
		return internal.NewInternalError("failed to get user", err)
	}
	if record == nil {
		return internal.ErrUserNotFound
	}

	if err := s.repo.DeleteUser(id); err != nil {
		return internal.NewInternalError("failed to delete user", err)
	}
	s.logger.Info("user deleted", "user_id", id)
	return nil
}

// ---------------------------------------------------------------------------
// Role management

func (s *Service) CreateRole(dto CreateRoleDTO) (*Role, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	existing, err := s.repo.GetRoleByName(dto.Name)
	if err != nil {
		return nil, internal.NewInternalError("failed to check existing role", err)
	}
	if existing != nil {
		return nil, internal.ErrDuplicateRole
	}

	record := &rbacDatamodel.Role{
		Name:        dto.Name,
		Description: dto.Description,
	}
	if err := s.repo.CreateRole(record); err != nil {
		if errors.Is(err, ErrDuplicateEntry) {
			return nil, internal.ErrDuplicateRole
		}
		return nil, internal.NewInternalError("failed to create role", err)
	}

	// Initial permissions as "action:resource" names; a bare name means any
	// resource marker "*", matching how callers registered legacy names.
	for _, permName := range dto.PermissionNames {
		action, resource := permName, "*"
		if idx := strings.Index(permName, ":"); idx >= 0 {
			action, resource = permName[:idx], permName[idx+1:]
		}
		permission, err := s.repo.GetPermissionByPair(action, resource)
		if err != nil {
			return nil, internal.NewInternalError("failed to resolve permission", err)
		}
		if permission == nil {
			s.logger.Warn("skipping unknown permission on role create", "permission", permName)
			continue
		}
		err = s.repo.InsertRolePermission(&rbacDatamodel.RolePermission{
			RoleID:       record.ID,
			PermissionID: permission.ID,
		})
		if err != nil && !errors.Is(err, ErrDuplicateEntry) {
			return nil, internal.NewInternalError("failed to attach initial permission", err)
		}
	}

	s.logger.Info("role created", "role_id", record.ID, "name", record.Name)
	return s.GetRoleByID(record.ID)
}

func (s *Service) GetRoleByID(id int64) (*Role, error) {
	record, err := s.repo.GetRoleByID(id)
	if err != nil {
		return nil, internal.NewInternalError("failed to get role", err)
	}
	if record == nil {
		return nil, internal.ErrRoleNotFound
	}
	return s.expandRole(record)
}

func (s *Service) ListRoles() ([]*Role, error) {
	records, err := s.repo.GetAllRoles()
	if err != nil {
		return nil, internal.NewInternalError("failed to list roles", err)
	}

	roles := make([]*Role, 0, len(records))
	for _, record := range records {
		r, err := s.expandRole(record)
		if err != nil {
			return nil, err
		}
		roles = append(roles, r)
	}
	return roles, nil
}

func (s *Service) UpdateRole(id int64, dto UpdateRoleDTO) (*Role, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	record, err := s.repo.GetRoleByID(id)
	if err != nil {
		return nil, internal.NewInternalError("failed to get role", err)
	}
	if record == nil {
		return nil, internal.ErrRoleNotFound
	}

	fields := map[string]interface{}{}
	if dto.Name != nil {
		fields["name"] = *dto.Name
	}
	if dto.Description != nil {
		fields["description"] = *dto.Description
	}

	if len(fields) > 0 {
		if err := s.repo.UpdateRole(id, fields); err != nil {
			if errors.Is(err, ErrDuplicateEntry) {
				return nil, internal.ErrDuplicateRole
			}
			return nil, internal.NewInternalError("failed to update role", err)
		}
	}

	return s.GetRoleByID(id)
}

func (s *Service) DeleteRole(id int64) error {
	record, err := s.repo.GetRoleByID(id)
	if err != nil {
		return internal.NewInternalError("failed to get role", err)
	}
	if record == nil {
		return internal.ErrRoleNotFound
	}

	if err := s.repo.DeleteRole(id); err != nil {
		return internal.NewInternalError("failed to delete role", err)
	}
	s.logger.Info("role deleted", "role_id", id)
	return nil
}

// ---------------------------------------------------------------------------
// Permission management

func (s *Service) CreatePermission(dto CreatePermissionDTO) (*Permission, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	existing, err := s.repo.GetPermissionByPair(dto.Action, dto.Resource)
	if err != nil {
		return nil, internal.NewInternalError("failed to check existing permission", err)
	}
	if existing != nil {
		return nil, internal.ErrDuplicatePermission
	}

	record := &rbacDatamodel.Permission{
		Action:      dto.Action,
		Resource:    dto.Resource,
		Description: dto.Description,
	}
	if err := s.repo.CreatePermission(record); err != nil {
		if errors.Is(err, ErrDuplicateEntry) {
			return nil, internal.ErrDuplicatePermission
		}
		return nil, internal.NewInternalError("failed to create permission", err)
	}

	s.logger.Info("permission created", "permission_id", record.ID, "action", record.Action, "resource", record.Resource)
	return PermissionFromDataModel(record), nil
}

func (s *Service) GetPermissionByID(id int64) (*Permission, error) {
	record, err := s.repo.GetPermissionByID(id)
	if err != nil {
		return nil, internal.NewInternalError("failed to get permission", err)
	}
	if record == nil {
		return nil, internal.ErrPermissionNotFound
	}
	return PermissionFromDataModel(record), nil
}

func (s *Service) ListPermissions() ([]*Permission, error) {
	records, err := s.repo.GetAllPermissions()
	if err != nil {
		return nil, internal.NewInternalError("failed to list permissions", err)
	}

	permissions := make([]*Permission, 0, len(records))
	for _, record := range records {
		permissions = append(permissions, PermissionFromDataModel(record))
	}
	return permissions, nil
}

func (s *Service) UpdatePermission(id int64, dto UpdatePermissionDTO) (*Permission, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	record, err := s.repo.GetPermissionByID(id)
	if err != nil {
		return nil, internal.NewInternalError("failed to get permission", err)
	}
	if record == nil {
		return nil, internal.ErrPermissionNotFound
	}

	fields := map[string]interface{}{}
	if dto.Action != nil {
		fields["action"] = *dto.Action
	}
	if dto.Resource != nil {
		fields["resource"] = *dto.Resource
	}
	if dto.Description != nil {
		fields["description"] = *dto.Description
	}

	if len(fields) > 0 {
		if err := s.repo.UpdatePermission(id, fields); err != nil {
			if errors.Is(err, ErrDuplicateEntry) {
				return nil, internal.ErrDuplicatePermission
			}
			return nil, internal.NewInternalError("failed to update permission", err)
		}
	}

	return s.GetPermissionByID(id)
}

func (s *Service) DeletePermission(id int64) error {
	record, err := s.repo.GetPermissionByID(id)
	if err != nil {
		return internal.NewInternalError("failed to get permission", err)
	}
	if record == nil {
		return internal.ErrPermissionNotFound
	}

	if err := s.repo.DeletePermission(id); err != nil {
		return internal.NewInternalError("failed to delete permission", err)
	}
	s.logger.Info("permission deleted", "permission_id", id)
	return nil
}

// ---------------------------------------------------------------------------
// Assignments

func (s *Service) AssignRoleToUser(dto AssignRoleDTO) (*UserRoleAssignment, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	user, err := s.repo.GetUserByID(dto.UserID)
	if err != nil {
		return nil, internal.NewInternalError("failed to get user", err)
	}
	if user == nil {
		return nil, internal.ErrUserNotFound
	}

	role, err := s.repo.GetRoleByID(dto.RoleID)
	if err != nil {
		return nil, internal.NewInternalError("failed to get role", err)
	}
	if role == nil {
		return nil, internal.ErrRoleNotFound
	}

	exists, err := s.repo.UserRoleExists(dto.UserID, dto.RoleID)
	if err != nil {
		return nil, internal.NewInternalError("failed to check role assignment", err)
	}
	if exists {
		return nil, internal.ErrUserAlreadyHasRole
	}

	assignment := &rbacDatamodel.UserRole{
		UserID:     dto.UserID,
		RoleID:     dto.RoleID,
		AssignedBy: dto.AssignedBy,
		AssignedAt: time.Now(),
	}
	if err := s.repo.InsertUserRole(assignment); err != nil {
		// Concurrent callers can both pass the pre-check; the composite
		// primary key settles it and we report the same conflict.
		if errors.Is(err, ErrDuplicateEntry) {
			return nil, internal.ErrUserAlreadyHasRole
		}
		return nil, internal.NewInternalError("failed to assign role", err)
	}

	s.logger.Info("role assigned", "user_id", dto.UserID, "role_id", dto.RoleID)
	return &UserRoleAssignment{
		UserID:     assignment.UserID,
		RoleID:     assignment.RoleID,
		AssignedBy: assignment.AssignedBy,
		AssignedAt: assignment.AssignedAt,
	}, nil
}

func (s *Service) RemoveRoleFromUser(userID, roleID int64) error {
	// Affected-row count instead of a pre-read saves a round trip.
	affected, err := s.repo.DeleteUserRole(userID, roleID)
	if err != nil {
		return internal.NewInternalError("failed to remove role", err)
	}
	if affected == 0 {
		return internal.ErrAssignmentNotFound
	}

	s.logger.Info("role removed", "user_id", userID, "role_id", roleID)
	return nil
}

func (s *Service) AssignPermissionToRole(dto AssignPermissionDTO) error {
	if err := dto.Validate(); err != nil {
		return err
	}

	role, err := s.repo.GetRoleByID(dto.RoleID)
	if err != nil {
		return internal.NewInternalError("failed to get role", err)
	}
	if role == nil {
		return internal.ErrRoleNotFound
	}

	permission, err := s.repo.GetPermissionByID(dto.PermissionID)
	if err != nil {
		return internal.NewInternalError("failed to get permission", err)
	}
	if permission == nil {
		return internal.ErrPermissionNotFound
	}

	exists, err := s.repo.RolePermissionExists(dto.RoleID, dto.PermissionID)
	if err != nil {
		return internal.NewInternalError("failed to check permission assignment", err)
	}
	if exists {
		return internal.ErrRoleAlreadyHasPermission
	}

	err = s.repo.InsertRolePermission(&rbacDatamodel.RolePermission{
		RoleID:       dto.RoleID,
		PermissionID: dto.PermissionID,
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateEntry) {
			return internal.ErrRoleAlreadyHasPermission
		}
		return internal.NewInternalError("failed to assign permission", err)
	}

	s.logger.Info("permission assigned", "role_id", dto.RoleID, "permission_id", dto.PermissionID)
	return nil
}

func (s *Service) RemovePermissionFromRole(roleID, permissionID int64) error {
	role, err := s.repo.GetRoleByID(roleID)
	if err != nil {
		return internal.NewInternalError("failed to get role", err)
	}
	if role == nil {
		return internal.ErrRoleNotFound
	}

	permission, err := s.repo.GetPermissionByID(permissionID)
	if err != nil {
		return internal.NewInternalError("failed to get permission", err)
	}
	if permission == nil {
		return internal.ErrPermissionNotFound
	}

	affected, err := s.repo.DeleteRolePermission(roleID, permissionID)
	if err != nil {
		return internal.NewInternalError("failed to remove permission", err)
	}
	if affected == 0 {
		return internal.ErrRolePermissionNotFound
	}

	s.logger.Info("permission removed", "role_id", roleID, "permission_id", permissionID)
	return nil
}

// ---------------------------------------------------------------------------
// Decision engine

// CheckUserPermission answers the permission question for a user id. An
// unknown user yields false, never an error: deny by default.
func (s *Service) CheckUserPermission(userID int64, action, resource string) (bool, error) {
	user, err := s.repo.GetUserByID(userID)
	if err != nil {
		return false, internal.NewInternalError("failed to get user", err)
	}
	if user == nil {
		return false, nil
	}

	has, err := s.repo.UserHasPermission(userID, action, resource)
	if err != nil {
		return false, internal.NewInternalError("failed to check permission", err)
	}
	return has, nil
}

// UserHasRole reports whether the user holds a role with the given name.
func (s *Service) UserHasRole(userID int64, roleName string) (bool, error) {
	user, err := s.repo.GetUserByID(userID)
	if err != nil {
		return false, internal.NewInternalError("failed to get user", err)
	}
	if user == nil {
		return false, nil
	}

	has, err := s.repo.UserHasRole(userID, roleName)
	if err != nil {
		return false, internal.NewInternalError("failed to check role", err)
	}
	return has, nil
}

// GetUserPermissions flattens the role/permission union into grants, one per
// (action, resource, role) triple. An unknown user yields an empty list.
func (s *Service) GetUserPermissions(userID int64) ([]PermissionGrant, error) {
	user, err := s.repo.GetUserByID(userID)
	if err != nil {
		return nil, internal.NewInternalError("failed to get user", err)
	}
	if user == nil {
		return []PermissionGrant{}, nil
	}

	grants, err := s.repo.GetUserPermissionGrants(userID)
	if err != nil {
		return nil, internal.NewInternalError("failed to get permission grants", err)
	}
	if grants == nil {
		grants = []PermissionGrant{}
	}
	return grants, nil
}

// ---------------------------------------------------------------------------
// helpers

// expandUser attaches the user's roles and each role's permissions using one
// query per level instead of per-row traversal.
func (s *Service) expandUser(record *rbacDatamodel.User) (*User, error) {
	u := UserFromDataModel(record)

	roleRecords, err := s.repo.GetRolesForUser(record.ID)
	if err != nil {
		return nil, internal.NewInternalError("failed to get user roles", err)
	}
	if len(roleRecords) == 0 {
		return u, nil
	}

	roleIDs := make([]int64, 0, len(roleRecords))
	for _, r := range roleRecords {
		roleIDs = append(roleIDs, r.ID)
	}
	permsByRole, err := s.repo.GetPermissionsForRoles(roleIDs)
	if err != nil {
		return nil, internal.NewInternalError("failed to get role permissions", err)
	}

	for _, r := range roleRecords {
		role := RoleFromDataModel(r)
		for _, p := range permsByRole[r.ID] {
			role.Permissions = append(role.Permissions, *PermissionFromDataModel(p))
		}
		u.Roles = append(u.Roles, *role)
	}
	return u, nil
}

func (s *Service) expandRole(record *rbacDatamodel.Role) (*Role, error) {
	role := RoleFromDataModel(record)

	permsByRole, err := s.repo.GetPermissionsForRoles([]int64{record.ID})
	if err != nil {
		return nil, internal.NewInternalError("failed to get role permissions", err)
	}
	for _, p := range permsByRole[record.ID] {
		role.Permissions = append(role.Permissions, *PermissionFromDataModel(p))
	}
	return role, nil
}
