package rbac

import "strings"

// ValidationError represents a simple validation error from DTO validation.
type ValidationError struct {
	Msg string
}

func (v ValidationError) Error() string { return v.Msg }

type CreateUserDTO struct {
	Username   string   `json:"username"`
	Email      string   `json:"email"`
	Password   string   `json:"password"`
	FullName   string   `json:"full_name,omitempty"`
	Department string   `json:"department,omitempty"`
	RoleNames  []string `json:"role_names,omitempty"`
}

func (d CreateUserDTO) Validate() error {
	if len(d.Username) < 3 || len(d.Username) > 100 {
		return ValidationError{Msg: "username must be between 3 and 100 characters"}
	}
	if d.Email == "" || !strings.Contains(d.Email, "@") {
		return ValidationError{Msg: "a valid email is required"}
	}
	if len(d.Password) < 8 {
		return ValidationError{Msg: "password must be at least 8 characters"}
	}
	return nil
}

// UpdateUserDTO carries partial updates: nil fields are left untouched.
type UpdateUserDTO struct {
	Username   *string `json:"username,omitempty"`
	Email      *string `json:"email,omitempty"`
	Password   *string `json:"password,omitempty"`
	FullName   *string `json:"full_name,omitempty"`
	Department *string `json:"department,omitempty"`
	IsActive   *bool   `json:"is_active,omitempty"`
}

func (d UpdateUserDTO) Validate() error {
	if d.Username != nil && (len(*d.Username) < 3 || len(*d.Username) > 100) {
		return ValidationError{Msg: "username must be between 3 and 100 characters"}
	}
	if d.Email != nil && !strings.Contains(*d.Email, "@") {
		return ValidationError{Msg: "a valid email is required"}
	}
	if d.Password != nil && len(*d.Password) < 8 {
		return ValidationError{Msg: "password must be at least 8 characters"}
	}
	return nil
}

type CreateRoleDTO struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	// PermissionNames holds "action:resource" pairs resolved at creation.
	PermissionNames []string `json:"permission_names,omitempty"`
}

func (d CreateRoleDTO) Validate() error {
	if len(d.Name) < 2 || len(d.Name) > 50 {
		return ValidationError{Msg: "role name must be between 2 and 50 characters"}
	}
	return nil
}

type UpdateRoleDTO struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

func (d UpdateRoleDTO) Validate() error {
	if d.Name != nil && (len(*d.Name) < 2 || len(*d.Name) > 50) {
		return ValidationError{Msg: "role name must be between 2 and 50 characters"}
	}
	return nil
}

type CreatePermissionDTO struct {
	Action      string `json:"action"`
	Resource    string `json:"resource"`
	Description string `json:"description,omitempty"`
}

func (d CreatePermissionDTO) Validate() error {
	if len(d.Action) < 2 || len(d.Action) > 50 {
		return ValidationError{Msg: "action must be between 2 and 50 characters"}
	}
	if len(d.Resource) < 2 || len(d.Resource) > 50 {
		return ValidationError{Msg: "resource must be between 2 and 50 characters"}
	}
	return nil
}

type UpdatePermissionDTO struct {
	Action      *string `json:"action,omitempty"`
	Resource    *string `json:"resource,omitempty"`
	Description *string `json:"description,omitempty"`
}

func (d UpdatePermissionDTO) Validate() error {
	if d.Action != nil && (len(*d.Action) < 2 || len(*d.Action) > 50) {
		return ValidationError{Msg: "action must be between 2 and 50 characters"}
	}
	if d.Resource != nil && (len(*d.Resource) < 2 || len(*d.Resource) > 50) {
		return ValidationError{Msg: "resource must be between 2 and 50 characters"}
	}
	return nil
}

type AssignRoleDTO struct {
	UserID     int64  `json:"user_id"`
	RoleID     int64  `json:"role_id"`
	AssignedBy *int64 `json:"assigned_by,omitempty"`
}

func (d AssignRoleDTO) Validate() error {
	if d.UserID <= 0 {
		return ValidationError{Msg: "user_id is required"}
	}
	if d.RoleID <= 0 {
		return ValidationError{Msg: "role_id is required"}
	}
	return nil
}

type AssignPermissionDTO struct {
	RoleID       int64 `json:"role_id"`
	PermissionID int64 `json:"permission_id"`
}

func (d AssignPermissionDTO) Validate() error {
	if d.RoleID <= 0 {
		return ValidationError{Msg: "role_id is required"}
	}
	if d.PermissionID <= 0 {
		return ValidationError{Msg: "permission_id is required"}
	}
	return nil
}

type PermissionCheckDTO struct {
	UserID   int64  `json:"user_id"`
	Action   string `json:"action"`
	Resource string `json:"resource"`
}

func (d PermissionCheckDTO) Validate() error {
	if d.UserID <= 0 {
		return ValidationError{Msg: "user_id is required"}
	}
	if d.Action == "" {
		return ValidationError{Msg: "action is required"}
	}
	if d.Resource == "" {
		return ValidationError{Msg: "resource is required"}
	}
	return nil
}

type PermissionCheckResponse struct {
	HasPermission      bool   `json:"has_permission"`
	RequiredPermission string `json:"required_permission"`
}
