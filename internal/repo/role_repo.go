// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Role and
// Permission models consumed by the admin resources.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-movie-backend/internal/domain"
)

// CreateRole inserts a role, optionally attaching existing permissions by name.
// Returns ErrDuplicate when the role name is taken.
func CreateRole(ctx context.Context, db *gorm.DB, name string, permissionNames []string) (*domain.Role, error) {
	r := &domain.Role{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	if len(permissionNames) > 0 {
		var perms []domain.Permission
		if err := db.WithContext(ctx).Find(&perms, "name IN ?", permissionNames).Error; err != nil {
			return nil, err
		}
		r.Permissions = perms
	}
	if err := db.WithContext(ctx).Create(r).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return r, nil
}

// ListRoles returns all roles with their permissions preloaded.
func ListRoles(ctx context.Context, db *gorm.DB) ([]domain.Role, error) {
	var out []domain.Role
	err := db.WithContext(ctx).
		Preload("Permissions").
		Order("name asc").
		Find(&out).Error
	return out, err
}

// GetRole fetches a role by id with permissions preloaded.
func GetRole(ctx context.Context, db *gorm.DB, id string) (*domain.Role, error) {
	var r domain.Role
	if err := db.WithContext(ctx).Preload("Permissions").First(&r, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &r, nil
}

// UpdateRolePermissions renames a role and replaces its permission set.
func UpdateRolePermissions(ctx context.Context, db *gorm.DB, id, name string, permissionNames []string) error {
	r, err := GetRole(ctx, db, id)
	if err != nil {
		return err
	}
	if name != "" && name != r.Name {
		if err := db.WithContext(ctx).Model(r).Update("name", name).Error; err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicate
			}
			return err
		}
	}
	var perms []domain.Permission
	if err := db.WithContext(ctx).Find(&perms, "name IN ?", permissionNames).Error; err != nil {
		return err
	}
	return db.WithContext(ctx).Model(r).Association("Permissions").Replace(perms)
}

// DeleteRole soft-deletes a role by id. Returns ErrNotFound when absent.
func DeleteRole(ctx context.Context, db *gorm.DB, id string) error {
	res := db.WithContext(ctx).Delete(&domain.Role{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CreatePermission inserts a permission. Returns ErrDuplicate on name clash.
func CreatePermission(ctx context.Context, db *gorm.DB, name string) (*domain.Permission, error) {
	p := &domain.Permission{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(p).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return p, nil
}

// ListPermissions returns all permissions ordered by name.
func ListPermissions(ctx context.Context, db *gorm.DB) ([]domain.Permission, error) {
	var out []domain.Permission
	err := db.WithContext(ctx).Order("name asc").Find(&out).Error
	return out, err
}

// DeletePermission soft-deletes a permission by id.
func DeletePermission(ctx context.Context, db *gorm.DB, id string) error {
	res := db.WithContext(ctx).Delete(&domain.Permission{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
