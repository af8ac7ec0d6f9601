// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements bearer-token authentication and the role/capability
// guards layered on top of it:
//
//   - BearerAuth() resolves the Authorization header against the token store
//     and stashes the token record (user id, roles, capability set) in the
//     Gin context.
//   - RequireRole() gates a route group on a role carried by the token.
//   - RequirePermission() gates a route group on the capability set attached
//     to the token at issuance; permissions are never re-read from the
//     database mid-session.
package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-movie-backend/internal/token"
)

// Context keys used by the auth middleware. "userID" doubles as the identity
// consumed by the access log and the rate limiter key function.
const (
	ctxKeyUserID      = "userID"
	ctxKeyTokenRecord = "tokenRecord"
	ctxKeyBearer      = "bearerToken"
)

// TokenResolver resolves a presented bearer token to its record. Satisfied by
// *token.Store.
type TokenResolver interface {
	Lookup(ctx context.Context, plain string) (*token.Record, error)
}

// BearerAuth authenticates requests carrying "Authorization: Bearer <token>".
//
// Behavior:
//   - Missing or malformed header: 401 with code "unauthorized".
//   - Unknown, revoked, or expired token: 401 with code "unauthorized".
//   - Store failure (e.g. Redis down): 503 with code "auth_unavailable".
//   - On success, the user id, the raw token, and the full record are stored
//     in the Gin context for handlers and downstream guards.
func BearerAuth(resolver TokenResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		plain, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || plain == "" {
			abortAuth(c, http.StatusUnauthorized, "unauthorized", "authentication required")
			return
		}

		rec, err := resolver.Lookup(c.Request.Context(), plain)
		if err != nil {
			if errors.Is(err, token.ErrNotFound) {
				abortAuth(c, http.StatusUnauthorized, "unauthorized", "invalid or expired token")
				return
			}
			abortAuth(c, http.StatusServiceUnavailable, "auth_unavailable", "authentication backend unavailable")
			return
		}

		c.Set(ctxKeyUserID, rec.UserID)
		c.Set(ctxKeyBearer, plain)
		c.Set(ctxKeyTokenRecord, rec)
		c.Next()
	}
}

// RequireRole allows the request through only when the authenticated token
// carries the named role. Responds 403 with code "forbidden" otherwise.
// Must run after BearerAuth.
func RequireRole(name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		rec := RecordFrom(c)
		if rec == nil || !rec.HasRole(name) {
			abortAuth(c, http.StatusForbidden, "forbidden", "insufficient role")
			return
		}
		c.Next()
	}
}

// RequirePermission allows the request through only when the capability set
// attached to the token at issuance contains the named permission.
// Must run after BearerAuth.
func RequirePermission(name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		rec := RecordFrom(c)
		if rec == nil || !rec.Permissions.Has(name) {
			abortAuth(c, http.StatusForbidden, "forbidden", "insufficient permission")
			return
		}
		c.Next()
	}
}

// RecordFrom returns the token record stashed by BearerAuth, or nil when the
// request is unauthenticated.
func RecordFrom(c *gin.Context) *token.Record {
	if v, ok := c.Get(ctxKeyTokenRecord); ok {
		if rec, ok := v.(*token.Record); ok {
			return rec
		}
	}
	return nil
}

// UserIDFrom returns the authenticated user id, or "" when unauthenticated.
func UserIDFrom(c *gin.Context) string {
	if v, ok := c.Get(ctxKeyUserID); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// BearerFrom returns the raw bearer token presented on the request, or "".
// Used by the logout handler to revoke the exact token.
func BearerFrom(c *gin.Context) string {
	if v, ok := c.Get(ctxKeyBearer); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func abortAuth(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"request_id": c.Writer.Header().Get(requestIDHeader),
		"code":       code,
		"message":    message,
	})
}
