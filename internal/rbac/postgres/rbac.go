package postgres

import (
	"errors"
	"fmt"

	rbacDatamodel "github.com/frahmantamala/property-evaluation/internal/core/datamodel/rbac"
	"github.com/frahmantamala/property-evaluation/internal/rbac"
	"gorm.io/gorm"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) rbac.RepositoryAPI {
	return &Repository{db: db}
}

// translateErr maps the driver's duplicate-key translation onto the
// repository contract so the service layer never imports gorm.
func translateErr(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: %v", rbac.ErrDuplicateEntry, err)
	}
	return err
}

// ---------------------------------------------------------------------------
// Users

func (r *Repository) CreateUser(user *rbacDatamodel.User) error {
	return translateErr(r.db.Create(user).Error)
}

func (r *Repository) GetUserByID(id int64) (*rbacDatamodel.User, error) {
	var user rbacDatamodel.User
	err := r.db.Where("id = ?", id).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

func (r *Repository) GetUserByUsername(username string) (*rbacDatamodel.User, error) {
	var user rbacDatamodel.User
	err := r.db.Where("username = ?", username).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

func (r *Repository) GetUserByUsernameOrEmail(username, email string) (*rbacDatamodel.User, error) {
	var user rbacDatamodel.User
	err := r.db.Where("username = ? OR email = ?", username, email).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

func (r *Repository) GetAllUsers() ([]*rbacDatamodel.User, error) {
	var users []*rbacDatamodel.User
	err := r.db.Order("id ASC").Find(&users).Error
	return users, err
}

func (r *Repository) UpdateUser(id int64, fields map[string]interface{}) error {
	return translateErr(r.db.Model(&rbacDatamodel.User{}).Where("id = ?", id).Updates(fields).Error)
}

func (r *Repository) DeleteUser(id int64) error {
	// Association rows go in the same transaction so no dangling membership
	// survives the user.
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", id).Delete(&rbacDatamodel.UserRole{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&rbacDatamodel.User{}).Error
	})
}

// ---------------------------------------------------------------------------
// Roles

func (r *Repository) CreateRole(role *rbacDatamodel.Role) error {
	return translateErr(r.db.Create(role).Error)
}

func (r *Repository) GetRoleByID(id int64) (*rbacDatamodel.Role, error) {
	var role rbacDatamodel.Role
	err := r.db.Where("id = ?", id).First(&role).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &role, nil
}

func (r *Repository) GetRoleByName(name string) (*rbacDatamodel.Role, error) {
	var role rbacDatamodel.Role
	err := r.db.Where("name = ?", name).First(&role).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &role, nil
}

func (r *Repository) GetAllRoles() ([]*rbacDatamodel.Role, error) {
	var roles []*rbacDatamodel.Role
	err := r.db.Order("id ASC").Find(&roles).Error
	return roles, err
}

func (r *Repository) UpdateRole(id int64, fields map[string]interface{}) error {
	return translateErr(r.db.Model(&rbacDatamodel.Role{}).Where("id = ?", id).Updates(fields).Error)
}

func (r *Repository) DeleteRole(id int64) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("role_id = ?", id).Delete(&rbacDatamodel.UserRole{}).Error; err != nil {
			return err
		}
		if err := tx.Where("role_id = ?", id).Delete(&rbacDatamodel.RolePermission{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&rbacDatamodel.Role{}).Error
	})
}

// ---------------------------------------------------------------------------
// Permissions

func (r *Repository) CreatePermission(permission *rbacDatamodel.Permission) error {
	return translateErr(r.db.Create(permission).Error)
}

func (r *Repository) GetPermissionByID(id int64) (*rbacDatamodel.Permission, error) {
	var permission rbacDatamodel.Permission
	err := r.db.Where("id = ?", id).First(&permission).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &permission, nil
}

func (r *Repository) GetPermissionByPair(action, resource string) (*rbacDatamodel.Permission, error) {
	var permission rbacDatamodel.Permission
	err := r.db.Where("action = ? AND resource = ?", action, resource).First(&permission).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &permission, nil
}

func (r *Repository) GetPermissionsByActions(actions []string) ([]*rbacDatamodel.Permission, error) {
	var permissions []*rbacDatamodel.Permission
	err := r.db.Where("action IN ?", actions).Order("id ASC").Find(&permissions).Error
	return permissions, err
}

func (r *Repository) GetAllPermissions() ([]*rbacDatamodel.Permission, error) {
	var permissions []*rbacDatamodel.Permission
	err := r.db.Order("id ASC").Find(&permissions).Error
	return permissions, err
}

func (r *Repository) UpdatePermission(id int64, fields map[string]interface{}) error {
	return translateErr(r.db.Model(&rbacDatamodel.Permission{}).Where("id = ?", id).Updates(fields).Error)
}

func (r *Repository) DeletePermission(id int64) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("permission_id = ?", id).Delete(&rbacDatamodel.RolePermission{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&rbacDatamodel.Permission{}).Error
	})
}

// ---------------------------------------------------------------------------
// User↔Role assignments

func (r *Repository) UserRoleExists(userID, roleID int64) (bool, error) {
	var count int64
	err := r.db.Model(&rbacDatamodel.UserRole{}).
		Where("user_id = ? AND role_id = ?", userID, roleID).
		Count(&count).Error
	return count > 0, err
}

func (r *Repository) InsertUserRole(assignment *rbacDatamodel.UserRole) error {
	return translateErr(r.db.Create(assignment).Error)
}

func (r *Repository) DeleteUserRole(userID, roleID int64) (int64, error) {
	result := r.db.Where("user_id = ? AND role_id = ?", userID, roleID).Delete(&rbacDatamodel.UserRole{})
	return result.RowsAffected, result.Error
}

func (r *Repository) GetRolesForUser(userID int64) ([]*rbacDatamodel.Role, error) {
	var roles []*rbacDatamodel.Role
	err := r.db.
		Joins("JOIN user_roles ON user_roles.role_id = roles.id").
		Where("user_roles.user_id = ?", userID).
		Order("roles.id ASC").
		Find(&roles).Error
	return roles, err
}

// ---------------------------------------------------------------------------
// Role↔Permission assignments

func (r *Repository) RolePermissionExists(roleID, permissionID int64) (bool, error) {
	var count int64
	err := r.db.Model(&rbacDatamodel.RolePermission{}).
		Where("role_id = ? AND permission_id = ?", roleID, permissionID).
		Count(&count).Error
	return count > 0, err
}

func (r *Repository) InsertRolePermission(assignment *rbacDatamodel.RolePermission) error {
	return translateErr(r.db.Create(assignment).Error)
}

func (r *Repository) DeleteRolePermission(roleID, permissionID int64) (int64, error) {
	result := r.db.Where("role_id = ? AND permission_id = ?", roleID, permissionID).Delete(&rbacDatamodel.RolePermission{})
	return result.RowsAffected, result.Error
}

func (r *Repository) GetPermissionsForRoles(roleIDs []int64) (map[int64][]*rbacDatamodel.Permission, error) {
	if len(roleIDs) == 0 {
		return map[int64][]*rbacDatamodel.Permission{}, nil
	}

	type roleGrant struct {
		rbacDatamodel.Permission
		RoleID int64
	}
	var grants []roleGrant
	err := r.db.Model(&rbacDatamodel.Permission{}).
		Select("permissions.*, role_permissions.role_id AS role_id").
		Joins("JOIN role_permissions ON role_permissions.permission_id = permissions.id").
		Where("role_permissions.role_id IN ?", roleIDs).
		Order("permissions.id ASC").
		Find(&grants).Error
	if err != nil {
		return nil, err
	}

	result := make(map[int64][]*rbacDatamodel.Permission, len(roleIDs))
	for i := range grants {
		permission := grants[i].Permission
		result[grants[i].RoleID] = append(result[grants[i].RoleID], &permission)
	}
	return result, nil
}

// ---------------------------------------------------------------------------
// Decision queries

func (r *Repository) UserHasPermission(userID int64, action, resource string) (bool, error) {
	var count int64
	err := r.db.Model(&rbacDatamodel.Permission{}).
		Joins("JOIN role_permissions ON role_permissions.permission_id = permissions.id").
		Joins("JOIN user_roles ON user_roles.role_id = role_permissions.role_id").
		Where("user_roles.user_id = ? AND permissions.action = ? AND permissions.resource = ?", userID, action, resource).
		Count(&count).Error
	return count > 0, err
}

func (r *Repository) UserHasRole(userID int64, roleName string) (bool, error) {
	var count int64
	err := r.db.Model(&rbacDatamodel.Role{}).
		Joins("JOIN user_roles ON user_roles.role_id = roles.id").
		Where("user_roles.user_id = ? AND roles.name = ?", userID, roleName).
		Count(&count).Error
	return count > 0, err
}

func (r *Repository) GetUserPermissionGrants(userID int64) ([]rbac.PermissionGrant, error) {
	var grants []rbac.PermissionGrant
	err := r.db.Model(&rbacDatamodel.Permission{}).
		Select("permissions.action, permissions.resource, roles.name AS role").
		Joins("JOIN role_permissions ON role_permissions.permission_id = permissions.id").
		Joins("JOIN roles ON roles.id = role_permissions.role_id").
		Joins("JOIN user_roles ON user_roles.role_id = roles.id").
		Where("user_roles.user_id = ?", userID).
		Order("roles.id ASC, permissions.id ASC").
		Scan(&grants).Error
	return grants, err
}
