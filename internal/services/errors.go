// Package services defines the business logic for authentication, favorites,
// and the admin resources. This file centralizes common service-level error
// values so that they can be consistently returned by service methods and
// checked by callers.
//
// These errors are intended for internal use by the service layer and
// translation into user-facing messages or HTTP status codes should be
// performed at the handler/controller layer.
package services

import "errors"

// Authentication errors.
var (
	// ErrInvalidCredentials is returned on login when the email is unknown or
	// the password does not match. The two cases are indistinguishable so the
	// endpoint never reveals whether an account exists.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrEmailTaken is returned on registration when the email address is
	// already associated with an account.
	ErrEmailTaken = errors.New("email already registered")

	// ErrUserNotFound indicates the referenced account does not exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrLinkInvalid is returned when a signed link's signature does not
	// verify, or its subject material does not match the account.
	ErrLinkInvalid = errors.New("link invalid")

	// ErrLinkExpired is returned when a signed link's expiry has passed.
	ErrLinkExpired = errors.New("link expired")

	// ErrResetTokenInvalid is returned when a password reset token is
	// unknown, already used, or past its window.
	ErrResetTokenInvalid = errors.New("reset token invalid or expired")

	// ErrGoogleNotConfigured indicates the Google OAuth client credentials
	// are missing from the environment.
	ErrGoogleNotConfigured = errors.New("google oauth not configured")

	// ErrGoogleUserData is returned when the provider callback did not yield
	// a usable profile (no email).
	ErrGoogleUserData = errors.New("could not obtain user data from google")
)

// Favorites errors.
var (
	// ErrFavoriteExists is returned when the movie is already on the user's
	// favorites list.
	ErrFavoriteExists = errors.New("favorite already exists")

	// ErrFavoriteNotFound indicates that the requested favorite does not
	// exist or does not belong to the current user.
	ErrFavoriteNotFound = errors.New("favorite not found")
)

// Admin resource errors.
var (
	// ErrRoleNotFound indicates the referenced role does not exist.
	ErrRoleNotFound = errors.New("role not found")

	// ErrPermissionNotFound indicates the referenced permission does not
	// exist.
	ErrPermissionNotFound = errors.New("permission not found")

	// ErrDuplicateName is returned when creating or renaming a role or
	// permission to a name already in use.
	ErrDuplicateName = errors.New("name already in use")
)
