package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-movie-backend/internal/domain"
	"github.com/tbourn/go-movie-backend/internal/http/middleware"
	"github.com/tbourn/go-movie-backend/internal/services"
	"github.com/tbourn/go-movie-backend/internal/utils"
)

// AdminService defines the user/role/permission administration operations
// consumed by HTTP handlers.
type AdminService interface {
	ListUsers(ctx context.Context, page, pageSize int) ([]domain.User, int64, error)
	GetUser(ctx context.Context, id string) (*domain.User, error)
	UpdateUser(ctx context.Context, id, name, email string, roleNames []string) (*domain.User, error)
	DeleteUser(ctx context.Context, id string) error

	CreateRole(ctx context.Context, name string, permissionNames []string) (*domain.Role, error)
	ListRoles(ctx context.Context) ([]domain.Role, error)
	GetRole(ctx context.Context, id string) (*domain.Role, error)
	UpdateRole(ctx context.Context, id, name string, permissionNames []string) (*domain.Role, error)
	DeleteRole(ctx context.Context, id string) error

	CreatePermission(ctx context.Context, name string) (*domain.Permission, error)
	ListPermissions(ctx context.Context) ([]domain.Permission, error)
	DeletePermission(ctx context.Context, id string) error
}

// UpdateUserRequest is the JSON payload for editing an account. Omitted
// fields keep their current value; a nil roles list keeps the current roles.
type UpdateUserRequest struct {
	Name  string   `json:"name,omitempty" binding:"omitempty,max=255"`
	Email string   `json:"email,omitempty" binding:"omitempty,email,max=255"`
	Roles []string `json:"roles,omitempty"`
}

// RoleRequest is the JSON payload for creating or editing a role.
type RoleRequest struct {
	Name        string   `json:"name" binding:"required,max=64" example:"moderator"`
	Permissions []string `json:"permissions" example:"favorites.manage"`
}

// PermissionRequest is the JSON payload for creating a permission.
type PermissionRequest struct {
	Name string `json:"name" binding:"required,max=64" example:"users.manage"`
}

// clampPagination normalizes page/page_size query values: page defaults to 1,
// page_size to 20 with a hard cap of 100.
func clampPagination(c *gin.Context) (page, pageSize int) {
	page = utils.AtoiDefault(c.Query("page"), 1)
	if page < 1 {
		page = 1
	}
	pageSize = utils.AtoiDefault(c.Query("page_size"), 20)
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	return page, pageSize
}

//
// Users
//

// AdminListUsers godoc
// @ID          adminListUsers
// @Summary     List accounts (paginated)
// @Tags        Admin
// @Produce     json
// @Security    BearerAuth
// @Param       page       query  int  false  "Page"       default(1)
// @Param       page_size  query  int  false  "Page size"  default(20)
// @Success     200  {object} map[string]any
// @Failure     403  {object} handlers.ErrorResponse
// @Router      /users [get]
func (h *Handlers) AdminListUsers(c *gin.Context) {
	page, pageSize := clampPagination(c)
	users, total, err := h.adminSvc.ListUsers(c.Request.Context(), page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not list users")
		return
	}
	if users == nil {
		users = []domain.User{}
	}
	ok(c, http.StatusOK, gin.H{
		"data": users,
		"meta": gin.H{"page": page, "page_size": pageSize, "total": total},
	})
}

// AdminGetUser godoc
// @ID          adminGetUser
// @Summary     Get one account with roles and permissions
// @Tags        Admin
// @Produce     json
// @Security    BearerAuth
// @Param       id  path  string  true  "User id"
// @Success     200  {object} domain.User
// @Failure     404  {object} handlers.ErrorResponse
// @Router      /users/{id} [get]
func (h *Handlers) AdminGetUser(c *gin.Context) {
	u, err := h.adminSvc.GetUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "user not found")
		return
	}
	ok(c, http.StatusOK, u)
}

// AdminUpdateUser godoc
// @ID          adminUpdateUser
// @Summary     Edit an account
// @Description Updates name/email and optionally replaces the role set. Role changes apply to tokens minted afterwards.
// @Tags        Admin
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id    path  string                       true  "User id"
// @Param       body  body  handlers.UpdateUserRequest  true  "Fields to update"
// @Success     200  {object} domain.User
// @Failure     404  {object} handlers.ErrorResponse
// @Failure     422  {object} handlers.ErrorResponse
// @Router      /users/{id} [put]
func (h *Handlers) AdminUpdateUser(c *gin.Context) {
	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusUnprocessableEntity, ErrCodeValidation, "invalid payload")
		return
	}

	u, err := h.adminSvc.UpdateUser(c.Request.Context(), c.Param("id"), strings.TrimSpace(req.Name), strings.ToLower(strings.TrimSpace(req.Email)), req.Roles)
	switch {
	case errors.Is(err, services.ErrUserNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "user not found")
	case errors.Is(err, services.ErrEmailTaken):
		fail(c, http.StatusUnprocessableEntity, ErrCodeValidation, "email already registered")
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not update user")
	default:
		ok(c, http.StatusOK, u)
	}
}

// AdminDeleteUser godoc
// @ID          adminDeleteUser
// @Summary     Delete an account
// @Description Deleting your own account is rejected.
// @Tags        Admin
// @Produce     json
// @Security    BearerAuth
// @Param       id  path  string  true  "User id"
// @Success     204  "No Content"
// @Failure     404  {object} handlers.ErrorResponse
// @Failure     422  {object} handlers.ErrorResponse
// @Router      /users/{id} [delete]
func (h *Handlers) AdminDeleteUser(c *gin.Context) {
	id := c.Param("id")
	if id == middleware.UserIDFrom(c) {
		fail(c, http.StatusUnprocessableEntity, ErrCodeValidation, "you cannot delete your own account")
		return
	}
	if err := h.adminSvc.DeleteUser(c.Request.Context(), id); err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "user not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not delete user")
		return
	}
	noContent(c)
}

//
// Roles
//

// AdminListRoles godoc
// @ID          adminListRoles
// @Summary     List roles with their permissions
// @Tags        Admin
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object} map[string][]domain.Role
// @Failure     403  {object} handlers.ErrorResponse
// @Router      /roles [get]
func (h *Handlers) AdminListRoles(c *gin.Context) {
	roles, err := h.adminSvc.ListRoles(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not list roles")
		return
	}
	if roles == nil {
		roles = []domain.Role{}
	}
	ok(c, http.StatusOK, gin.H{"data": roles})
}

// AdminCreateRole godoc
// @ID          adminCreateRole
// @Summary     Create a role
// @Tags        Admin
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body  handlers.RoleRequest  true  "Role payload"
// @Success     201  {object} domain.Role
// @Failure     409  {object} handlers.ErrorResponse
// @Failure     422  {object} handlers.ErrorResponse
// @Router      /roles [post]
func (h *Handlers) AdminCreateRole(c *gin.Context) {
	var req RoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusUnprocessableEntity, ErrCodeValidation, "name is required")
		return
	}
	role, err := h.adminSvc.CreateRole(c.Request.Context(), req.Name, req.Permissions)
	if err != nil {
		if errors.Is(err, services.ErrDuplicateName) {
			fail(c, http.StatusConflict, ErrCodeConflict, "role name already exists")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not create role")
		return
	}
	ok(c, http.StatusCreated, role)
}

// AdminGetRole godoc
// @ID          adminGetRole
// @Summary     Get one role
// @Tags        Admin
// @Produce     json
// @Security    BearerAuth
// @Param       id  path  string  true  "Role id"
// @Success     200  {object} domain.Role
// @Failure     404  {object} handlers.ErrorResponse
// @Router      /roles/{id} [get]
func (h *Handlers) AdminGetRole(c *gin.Context) {
	role, err := h.adminSvc.GetRole(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "role not found")
		return
	}
	ok(c, http.StatusOK, role)
}

// AdminUpdateRole godoc
// @ID          adminUpdateRole
// @Summary     Rename a role and replace its permissions
// @Tags        Admin
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id    path  string                 true  "Role id"
// @Param       body  body  handlers.RoleRequest  true  "Role payload"
// @Success     200  {object} domain.Role
// @Failure     404  {object} handlers.ErrorResponse
// @Failure     409  {object} handlers.ErrorResponse
// @Router      /roles/{id} [put]
func (h *Handlers) AdminUpdateRole(c *gin.Context) {
	var req RoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusUnprocessableEntity, ErrCodeValidation, "name is required")
		return
	}
	role, err := h.adminSvc.UpdateRole(c.Request.Context(), c.Param("id"), req.Name, req.Permissions)
	switch {
	case errors.Is(err, services.ErrRoleNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "role not found")
	case errors.Is(err, services.ErrDuplicateName):
		fail(c, http.StatusConflict, ErrCodeConflict, "role name already exists")
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not update role")
	default:
		ok(c, http.StatusOK, role)
	}
}

// AdminDeleteRole godoc
// @ID          adminDeleteRole
// @Summary     Delete a role
// @Tags        Admin
// @Produce     json
// @Security    BearerAuth
// @Param       id  path  string  true  "Role id"
// @Success     204  "No Content"
// @Failure     404  {object} handlers.ErrorResponse
// @Router      /roles/{id} [delete]
func (h *Handlers) AdminDeleteRole(c *gin.Context) {
	if err := h.adminSvc.DeleteRole(c.Request.Context(), c.Param("id")); err != nil {
		if errors.Is(err, services.ErrRoleNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "role not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not delete role")
		return
	}
	noContent(c)
}

//
// Permissions
//

// AdminListPermissions godoc
// @ID          adminListPermissions
// @Summary     List permissions
// @Tags        Admin
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object} map[string][]domain.Permission
// @Failure     403  {object} handlers.ErrorResponse
// @Router      /permissions [get]
func (h *Handlers) AdminListPermissions(c *gin.Context) {
	perms, err := h.adminSvc.ListPermissions(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not list permissions")
		return
	}
	if perms == nil {
		perms = []domain.Permission{}
	}
	ok(c, http.StatusOK, gin.H{"data": perms})
}

// AdminCreatePermission godoc
// @ID          adminCreatePermission
// @Summary     Create a permission
// @Tags        Admin
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body  handlers.PermissionRequest  true  "Permission payload"
// @Success     201  {object} domain.Permission
// @Failure     409  {object} handlers.ErrorResponse
// @Failure     422  {object} handlers.ErrorResponse
// @Router      /permissions [post]
func (h *Handlers) AdminCreatePermission(c *gin.Context) {
	var req PermissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusUnprocessableEntity, ErrCodeValidation, "name is required")
		return
	}
	perm, err := h.adminSvc.CreatePermission(c.Request.Context(), req.Name)
	if err != nil {
		if errors.Is(err, services.ErrDuplicateName) {
			fail(c, http.StatusConflict, ErrCodeConflict, "permission name already exists")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not create permission")
		return
	}
	ok(c, http.StatusCreated, perm)
}

// AdminDeletePermission godoc
// @ID          adminDeletePermission
// @Summary     Delete a permission
// @Tags        Admin
// @Produce     json
// @Security    BearerAuth
// @Param       id  path  string  true  "Permission id"
// @Success     204  "No Content"
// @Failure     404  {object} handlers.ErrorResponse
// @Router      /permissions/{id} [delete]
func (h *Handlers) AdminDeletePermission(c *gin.Context) {
	if err := h.adminSvc.DeletePermission(c.Request.Context(), c.Param("id")); err != nil {
		if errors.Is(err, services.ErrPermissionNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "permission not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not delete permission")
		return
	}
	noContent(c)
}
