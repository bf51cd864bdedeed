package postgres

import (
	"errors"
	"time"

	"github.com/frahmantamala/property-evaluation/internal/auth"
	rbacDatamodel "github.com/frahmantamala/property-evaluation/internal/core/datamodel/rbac"
	"gorm.io/gorm"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) auth.RepositoryAPI {
	return &Repository{db: db}
}

func (r *Repository) GetCredentialsForUsername(username string) (*auth.Credentials, error) {
	var user rbacDatamodel.User
	err := r.db.Select("id", "username", "password_hash", "is_active").
		Where("username = ?", username).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &auth.Credentials{
		UserID:       user.ID,
		Username:     user.Username,
		PasswordHash: user.PasswordHash,
		IsActive:     user.IsActive,
	}, nil
}

func (r *Repository) UpdateLastLogin(userID int64, at time.Time) error {
	return r.db.Model(&rbacDatamodel.User{}).
		Where("id = ?", userID).
		Update("last_login_at", at).Error
}
