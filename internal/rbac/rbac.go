package rbac

import (
	"time"

	rbacDatamodel "github.com/frahmantamala/property-evaluation/internal/core/datamodel/rbac"
)

type User struct {
	ID           int64      `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	FullName     string     `json:"full_name,omitempty"`
	Department   string     `json:"department,omitempty"`
	IsActive     bool       `json:"is_active"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
	Roles        []Role     `json:"roles"`
}

// HasRole reports whether any held role carries the given name.
func (u *User) HasRole(roleName string) bool {
	for _, role := range u.Roles {
		if role.Name == roleName {
			return true
		}
	}
	return false
}

// HasPermission is the set-union membership check over the user's roles:
// exact string equality on both action and resource, no wildcards.
func (u *User) HasPermission(action, resource string) bool {
	for _, role := range u.Roles {
		for _, permission := range role.Permissions {
			if permission.Action == action && permission.Resource == resource {
				return true
			}
		}
	}
	return false
}

func (u *User) IsActiveUser() bool {
	return u.IsActive
}

type Role struct {
	ID          int64        `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	Permissions []Permission `json:"permissions"`
}

type Permission struct {
	ID          int64     `json:"id"`
	Action      string    `json:"action"`
	Resource    string    `json:"resource"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// PermissionGrant annotates an effective permission with the role that
// granted it. A user holding the same (action, resource) through several
// roles yields one grant per role.
type PermissionGrant struct {
	Action   string `json:"action"`
	Resource string `json:"resource"`
	Role     string `json:"role"`
}

type UserRoleAssignment struct {
	UserID     int64     `json:"user_id"`
	RoleID     int64     `json:"role_id"`
	AssignedBy *int64    `json:"assigned_by,omitempty"`
	AssignedAt time.Time `json:"assigned_at"`
}

func UserToDataModel(u *User) *rbacDatamodel.User {
	return &rbacDatamodel.User{
		ID:           u.ID,
		Username:     u.Username,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		FullName:     u.FullName,
		Department:   u.Department,
		IsActive:     u.IsActive,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
		LastLoginAt:  u.LastLoginAt,
	}
}

func UserFromDataModel(u *rbacDatamodel.User) *User {
	return &User{
		ID:           u.ID,
		Username:     u.Username,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		FullName:     u.FullName,
		Department:   u.Department,
		IsActive:     u.IsActive,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
		LastLoginAt:  u.LastLoginAt,
		Roles:        []Role{},
	}
}

func RoleToDataModel(r *Role) *rbacDatamodel.Role {
	return &rbacDatamodel.Role{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		CreatedAt:   r.CreatedAt,
	}
}

func RoleFromDataModel(r *rbacDatamodel.Role) *Role {
	return &Role{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		CreatedAt:   r.CreatedAt,
		Permissions: []Permission{},
	}
}

func PermissionToDataModel(p *Permission) *rbacDatamodel.Permission {
	return &rbacDatamodel.Permission{
		ID:          p.ID,
		Action:      p.Action,
		Resource:    p.Resource,
		Description: p.Description,
		CreatedAt:   p.CreatedAt,
	}
}

func PermissionFromDataModel(p *rbacDatamodel.Permission) *Permission {
	return &Permission{
		ID:          p.ID,
		Action:      p.Action,
		Resource:    p.Resource,
		Description: p.Description,
		CreatedAt:   p.CreatedAt,
	}
}
