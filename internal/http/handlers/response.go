// Package handlers implements the HTTP endpoints of the movie catalog API.
//
// This file holds the response utilities every endpoint builds on: the
// structured error envelope, the failure helper that logs server errors with
// request context, and small wrappers for the success shapes. Keeping the
// envelope in one place means a client can branch on `code` regardless of
// which endpoint produced the error.
//
// Conventions:
//   - Error responses carry an ErrorResponse with a stable `code` from
//     errors.go. The one exception is the TMDB proxy surface, whose error
//     contract predates this API and stays flat (see tmdb_handler.go).
//   - fail() is the single choke point for error formatting; 5xx responses
//     are logged through the request-scoped logger before they leave.
//
// Example error response:
//
//	HTTP/1.1 404 Not Found
//	{
//	  "request_id": "123e4567-e89b-12d3-a456-426614174000",
//	  "code": "not_found",
//	  "message": "favorite not found"
//	}
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-movie-backend/internal/http/middleware"
)

// ErrorResponse is the error envelope shared by all non-proxy endpoints.
// RequestID echoes X-Request-ID so a client report can be matched against
// server logs; Code is machine-readable, Message is safe to show to users.
// The struct doubles as the Swagger schema for error responses.
type ErrorResponse struct {
	// Correlates server logs and client errors
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable, machine-readable code (see errors.go constants)
	Code string `json:"code" example:"not_found"`
	// Human-readable message (safe to show to users)
	Message string `json:"message" example:"favorite not found"`
}

// fail aborts the request with the standard envelope. Server-side failures
// (>= 500) are logged with the request-scoped logger so the request id and
// route travel with the error.
func fail(c *gin.Context, status int, code, msg string) {
	resp := ErrorResponse{
		RequestID: c.Writer.Header().Get("X-Request-ID"),
		Code:      code,
		Message:   msg,
	}

	if status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("api error")
	}

	c.AbortWithStatusJSON(status, resp)
}

// Fail exposes fail() for router-level fallbacks (NoRoute, NoMethod) so they
// produce the same envelope as the handlers.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// ok writes a success JSON response with the given status.
func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}

// noContent answers 204, used by deletes that have nothing to report back.
func noContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
