// Package services – AdminService
//
// This file implements the AdminService backing the admin-only user, role,
// and permission resources. It is plain orchestration over the repository:
// pagination defaults for user listings, duplicate detection on names, and
// not-found translation for handlers.
package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/tbourn/go-movie-backend/internal/domain"
	"github.com/tbourn/go-movie-backend/internal/repo"
)

// AdminRepo defines the repository contract required by AdminService.
type AdminRepo interface {
	ListUsersPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.User, error)
	CountUsers(ctx context.Context, db *gorm.DB) (int64, error)
	GetUser(ctx context.Context, db *gorm.DB, id string) (*domain.User, error)
	UpdateUser(ctx context.Context, db *gorm.DB, id string, updates map[string]any) error
	DeleteUser(ctx context.Context, db *gorm.DB, id string) error
	ReplaceRoles(ctx context.Context, db *gorm.DB, userID string, roleNames []string) error

	CreateRole(ctx context.Context, db *gorm.DB, name string, permissionNames []string) (*domain.Role, error)
	ListRoles(ctx context.Context, db *gorm.DB) ([]domain.Role, error)
	GetRole(ctx context.Context, db *gorm.DB, id string) (*domain.Role, error)
	UpdateRolePermissions(ctx context.Context, db *gorm.DB, id, name string, permissionNames []string) error
	DeleteRole(ctx context.Context, db *gorm.DB, id string) error

	CreatePermission(ctx context.Context, db *gorm.DB, name string) (*domain.Permission, error)
	ListPermissions(ctx context.Context, db *gorm.DB) ([]domain.Permission, error)
	DeletePermission(ctx context.Context, db *gorm.DB, id string) error
}

// AdminService provides the admin CRUD over users, roles, and permissions.
type AdminService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the admin repository used by this service.
	Repo AdminRepo
}

// NewAdminService constructs an AdminService.
func NewAdminService(db *gorm.DB, r AdminRepo) *AdminService {
	return &AdminService{DB: db, Repo: r}
}

// ListUsers returns a page of accounts with the total count.
// It applies defaults for invalid page/pageSize.
func (s *AdminService) ListUsers(ctx context.Context, page, pageSize int) ([]domain.User, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	total, err := s.Repo.CountUsers(ctx, s.DB)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.User{}, 0, nil
	}

	items, err := s.Repo.ListUsersPage(ctx, s.DB, offset, pageSize)
	return items, total, err
}

// GetUser fetches one account with roles and permissions.
func (s *AdminService) GetUser(ctx context.Context, id string) (*domain.User, error) {
	u, err := s.Repo.GetUser(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return u, nil
}

// UpdateUser renames or re-addresses an account and, when roleNames is
// non-nil, replaces its role set.
func (s *AdminService) UpdateUser(ctx context.Context, id, name, email string, roleNames []string) (*domain.User, error) {
	if _, err := s.GetUser(ctx, id); err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if name != "" {
		updates["name"] = name
	}
	if email != "" {
		updates["email"] = email
	}
	if len(updates) > 0 {
		if err := s.Repo.UpdateUser(ctx, s.DB, id, updates); err != nil {
			if errors.Is(err, repo.ErrDuplicate) {
				return nil, ErrEmailTaken
			}
			return nil, err
		}
	}
	if roleNames != nil {
		if err := s.Repo.ReplaceRoles(ctx, s.DB, id, roleNames); err != nil {
			return nil, err
		}
	}
	return s.GetUser(ctx, id)
}

// DeleteUser removes an account.
func (s *AdminService) DeleteUser(ctx context.Context, id string) error {
	if err := s.Repo.DeleteUser(ctx, s.DB, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	return nil
}

// CreateRole inserts a role with an optional permission set.
func (s *AdminService) CreateRole(ctx context.Context, name string, permissionNames []string) (*domain.Role, error) {
	r, err := s.Repo.CreateRole(ctx, s.DB, name, permissionNames)
	if err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, ErrDuplicateName
		}
		return nil, err
	}
	return r, nil
}

// ListRoles returns every role with permissions preloaded.
func (s *AdminService) ListRoles(ctx context.Context) ([]domain.Role, error) {
	return s.Repo.ListRoles(ctx, s.DB)
}

// GetRole fetches one role with its permissions.
func (s *AdminService) GetRole(ctx context.Context, id string) (*domain.Role, error) {
	r, err := s.Repo.GetRole(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoleNotFound
		}
		return nil, err
	}
	return r, nil
}

// UpdateRole renames a role and replaces its permission set.
func (s *AdminService) UpdateRole(ctx context.Context, id, name string, permissionNames []string) (*domain.Role, error) {
	if err := s.Repo.UpdateRolePermissions(ctx, s.DB, id, name, permissionNames); err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return nil, ErrRoleNotFound
		case errors.Is(err, repo.ErrDuplicate):
			return nil, ErrDuplicateName
		}
		return nil, err
	}
	return s.GetRole(ctx, id)
}

// DeleteRole removes a role.
func (s *AdminService) DeleteRole(ctx context.Context, id string) error {
	if err := s.Repo.DeleteRole(ctx, s.DB, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrRoleNotFound
		}
		return err
	}
	return nil
}

// CreatePermission inserts a permission.
func (s *AdminService) CreatePermission(ctx context.Context, name string) (*domain.Permission, error) {
	p, err := s.Repo.CreatePermission(ctx, s.DB, name)
	if err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, ErrDuplicateName
		}
		return nil, err
	}
	return p, nil
}

// ListPermissions returns every permission.
func (s *AdminService) ListPermissions(ctx context.Context) ([]domain.Permission, error) {
	return s.Repo.ListPermissions(ctx, s.DB)
}

// DeletePermission removes a permission.
func (s *AdminService) DeletePermission(ctx context.Context, id string) error {
	if err := s.Repo.DeletePermission(ctx, s.DB, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrPermissionNotFound
		}
		return err
	}
	return nil
}
