// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the User model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a user is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-movie-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// ErrDuplicate indicates a unique-constraint violation (e.g. registering an
// email that already has an account, or favoriting the same movie twice).
var ErrDuplicate = errors.New("duplicate")

// isUniqueViolation detects unique-constraint failures across the error
// shapes the pure-Go sqlite driver produces.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint failed") ||
		strings.Contains(low, "constraint failed: unique")
}

// CreateUser inserts a new user row with UUID primary key and UTC timestamp.
// Returns ErrDuplicate when the email is already registered.
func CreateUser(ctx context.Context, db *gorm.DB, name, email, passwordHash string) (*domain.User, error) {
	u := &domain.User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(u).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return u, nil
}

// GetUser fetches a user by ID with roles and their permissions preloaded.
func GetUser(ctx context.Context, db *gorm.DB, id string) (*domain.User, error) {
	var u domain.User
	err := db.WithContext(ctx).
		Preload("Roles.Permissions").
		First(&u, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUserByEmail fetches a user by email with roles and permissions preloaded.
func GetUserByEmail(ctx context.Context, db *gorm.DB, email string) (*domain.User, error) {
	var u domain.User
	err := db.WithContext(ctx).
		Preload("Roles.Permissions").
		First(&u, "email = ?", email).Error
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// ListUsersPage returns a page of users ordered by creation time descending,
// with roles preloaded. Use CountUsers for pagination metadata.
func ListUsersPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.User, error) {
	var out []domain.User
	err := db.WithContext(ctx).
		Preload("Roles").
		Order("created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// CountUsers returns the total number of users.
func CountUsers(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Model(&domain.User{}).Count(&total).Error
	return total, err
}

// UpdateUser applies the given column updates to a user by id.
// Returns ErrNotFound when no row matched.
func UpdateUser(ctx context.Context, db *gorm.DB, id string, updates map[string]any) error {
	res := db.WithContext(ctx).
		Model(&domain.User{}).
		Where("id = ?", id).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteUser soft-deletes a user by id. Returns ErrNotFound when absent.
func DeleteUser(ctx context.Context, db *gorm.DB, id string) error {
	res := db.WithContext(ctx).Delete(&domain.User{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkEmailVerified stamps EmailVerifiedAt. Verifying an already-verified
// user leaves the original timestamp untouched.
func MarkEmailVerified(ctx context.Context, db *gorm.DB, id string) error {
	now := time.Now().UTC()
	return db.WithContext(ctx).
		Model(&domain.User{}).
		Where("id = ? AND email_verified_at IS NULL", id).
		Update("email_verified_at", &now).Error
}

// SetPassword replaces the password hash and rotates the remember token so
// sessions bound to the old credential are dropped.
func SetPassword(ctx context.Context, db *gorm.DB, id, passwordHash, rememberToken string) error {
	res := db.WithContext(ctx).
		Model(&domain.User{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"password_hash":  passwordHash,
			"remember_token": rememberToken,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// LinkGoogle attaches a Google subject id to a user and marks the email
// verified (the provider is trusted to have verified it).
func LinkGoogle(ctx context.Context, db *gorm.DB, id, googleID string) error {
	now := time.Now().UTC()
	return db.WithContext(ctx).
		Model(&domain.User{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"google_id":         googleID,
			"email_verified_at": &now,
		}).Error
}

// AssignRole attaches the named role to a user. Missing roles are an error;
// assigning a role twice is a no-op.
func AssignRole(ctx context.Context, db *gorm.DB, userID, roleName string) error {
	var role domain.Role
	if err := db.WithContext(ctx).First(&role, "name = ?", roleName).Error; err != nil {
		return err
	}
	return db.WithContext(ctx).
		Model(&domain.User{ID: userID}).
		Association("Roles").
		Append(&role)
}

// ReplaceRoles sets the user's role membership to exactly the named roles.
func ReplaceRoles(ctx context.Context, db *gorm.DB, userID string, roleNames []string) error {
	var roles []domain.Role
	if err := db.WithContext(ctx).Find(&roles, "name IN ?", roleNames).Error; err != nil {
		return err
	}
	return db.WithContext(ctx).
		Model(&domain.User{ID: userID}).
		Association("Roles").
		Replace(roles)
}
