// Authentication HTTP handlers.
//
// This file exposes the account lifecycle endpoints:
//   - POST /login, /logout
//   - POST /register
//   - GET  /email/verify        (signed link redemption)
//   - POST /email/resend
//   - POST /forgot-password, /reset-password
//   - GET  /auth/google/redirect, /auth/google/callback
//   - GET  /user
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses. The Google callback responds with
// browser redirects to the SPA instead of JSON because it terminates a
// provider round trip.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-movie-backend/internal/domain"
	"github.com/tbourn/go-movie-backend/internal/http/middleware"
	"github.com/tbourn/go-movie-backend/internal/services"
)

//
// Service contracts (context-aware)
//

// AuthService defines the account lifecycle operations consumed by HTTP
// handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type AuthService interface {
	// Register creates a pending-verification account and mails the link.
	Register(ctx context.Context, name, email, password string) (*domain.User, error)
	// Verify redeems a verification link.
	Verify(ctx context.Context, userID, emailHash string, expires int64, signature string) error
	// ResendVerification re-mails the verification link.
	ResendVerification(ctx context.Context, email string) error
	// Login checks credentials and mints a bearer token.
	Login(ctx context.Context, email, password string) (*services.LoginResult, error)
	// Logout revokes the presented bearer token.
	Logout(ctx context.Context, bearer string) error
	// ForgotPassword stores a reset token and mails the signed link.
	ForgotPassword(ctx context.Context, email string) (resetURL string, mailed bool, err error)
	// ResetPassword redeems a reset token and replaces the password.
	ResetPassword(ctx context.Context, req services.ResetRequest) error
	// GoogleLoginURL returns the provider consent URL.
	GoogleLoginURL(ctx context.Context) (string, error)
	// GoogleCallback completes the provider round trip.
	GoogleCallback(ctx context.Context, code string) (string, *domain.User, error)
}

// UserService loads a single account with roles and permissions.
type UserService interface {
	GetUser(ctx context.Context, id string) (*domain.User, error)
}

//
// Handler wiring
//

// Handlers groups the HTTP endpoints for auth, the TMDB proxy, favorites, and
// the admin resources. It depends on abstract service interfaces to keep
// transport concerns separate from business logic.
type Handlers struct {
	authSvc  AuthService
	userSvc  UserService
	favSvc   FavoriteService
	adminSvc AdminService
	proxy    MovieProxy

	// frontendURL is the SPA base the Google callback redirects to.
	frontendURL string
}

// New constructs and returns a Handlers instance bound to the given services.
func New(authSvc AuthService, userSvc UserService, favSvc FavoriteService, adminSvc AdminService, proxy MovieProxy, frontendURL string) *Handlers {
	return &Handlers{
		authSvc:     authSvc,
		userSvc:     userSvc,
		favSvc:      favSvc,
		adminSvc:    adminSvc,
		proxy:       proxy,
		frontendURL: frontendURL,
	}
}

//
// DTOs
//

// LoginRequest is the JSON payload for password login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email" example:"ana@example.com"`
	Password string `json:"password" binding:"required" example:"secret123"`
}

// RegisterRequest is the JSON payload for account creation.
type RegisterRequest struct {
	Name                 string `json:"name" binding:"required,max=255" example:"Ana Souza"`
	Email                string `json:"email" binding:"required,email,max=255" example:"ana@example.com"`
	Password             string `json:"password" binding:"required,min=8" example:"secret123"`
	PasswordConfirmation string `json:"password_confirmation" binding:"required,eqfield=Password" example:"secret123"`
}

// ResendRequest is the JSON payload for re-sending the verification e-mail.
type ResendRequest struct {
	Email string `json:"email" binding:"required,email" example:"ana@example.com"`
}

// ForgotPasswordRequest is the JSON payload for requesting a reset link.
type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email" example:"ana@example.com"`
}

// ResetPasswordRequest is the JSON payload for redeeming a reset link. The
// expires/signature pair is optional: legacy links carry only the token.
type ResetPasswordRequest struct {
	Token                string `json:"token" binding:"required"`
	Email                string `json:"email" binding:"required,email"`
	Password             string `json:"password" binding:"required,min=8"`
	PasswordConfirmation string `json:"password_confirmation" binding:"required,eqfield=Password"`
	Expires              *int64 `json:"expires,omitempty"`
	Signature            string `json:"signature,omitempty"`
}

// LoginResponse is returned on a successful login.
type LoginResponse struct {
	Token string       `json:"token"`
	User  *domain.User `json:"user"`
}

// MessageResponse is a generic confirmation body.
type MessageResponse struct {
	Message string `json:"message" example:"ok"`
}

//
// Handlers
//

// Login godoc
// @ID          login
// @Summary     Password login
// @Description Checks credentials and returns a bearer token with the account. Unverified accounts receive 403 with the account id so the client can offer a resend.
// @Tags        Auth
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.LoginRequest  true  "Credentials"
// @Success     200  {object} handlers.LoginResponse
// @Failure     403  {object} map[string]any "E-mail not verified"
// @Failure     422  {object} handlers.ErrorResponse "Invalid credentials or payload"
// @Router      /login [post]
func (h *Handlers) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusUnprocessableEntity, ErrCodeValidation, "email and password are required")
		return
	}

	res, err := h.authSvc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			fail(c, http.StatusUnprocessableEntity, ErrCodeInvalidCredentials, "the provided credentials are incorrect")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "login failed")
		return
	}
	if res.PendingVerification {
		// Distinguished outcome, not an error envelope: the client needs the
		// account id to trigger a resend.
		c.JSON(http.StatusForbidden, gin.H{
			"message":        "e-mail not verified",
			"email_verified": false,
			"user_id":        res.User.ID,
		})
		return
	}
	ok(c, http.StatusOK, LoginResponse{Token: res.Token, User: res.User})
}

// Logout godoc
// @ID          logout
// @Summary     Revoke the current bearer token
// @Tags        Auth
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object} handlers.MessageResponse
// @Failure     401  {object} handlers.ErrorResponse
// @Router      /logout [post]
func (h *Handlers) Logout(c *gin.Context) {
	if err := h.authSvc.Logout(c.Request.Context(), middleware.BearerFrom(c)); err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "logout failed")
		return
	}
	ok(c, http.StatusOK, MessageResponse{Message: "logged out"})
}

// CurrentUser godoc
// @ID          currentUser
// @Summary     Get the authenticated account
// @Tags        Auth
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object} domain.User
// @Failure     401  {object} handlers.ErrorResponse
// @Router      /user [get]
func (h *Handlers) CurrentUser(c *gin.Context) {
	u, err := h.userSvc.GetUser(c.Request.Context(), middleware.UserIDFrom(c))
	if err != nil {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "account no longer exists")
		return
	}
	ok(c, http.StatusOK, u)
}

// Register godoc
// @ID          register
// @Summary     Create an account
// @Description Creates a pending-verification account and mails a verification link valid for 24 hours.
// @Tags        Auth
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.RegisterRequest  true  "Account payload"
// @Success     201  {object} map[string]any
// @Failure     422  {object} handlers.ErrorResponse
// @Router      /register [post]
func (h *Handlers) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusUnprocessableEntity, ErrCodeValidation, "name, email, and a confirmed password of at least 8 characters are required")
		return
	}

	u, err := h.authSvc.Register(c.Request.Context(), strings.TrimSpace(req.Name), strings.ToLower(strings.TrimSpace(req.Email)), req.Password)
	if err != nil {
		if errors.Is(err, services.ErrEmailTaken) {
			fail(c, http.StatusUnprocessableEntity, ErrCodeValidation, "email already registered")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not create account")
		return
	}
	ok(c, http.StatusCreated, gin.H{
		"message": "account created, check your e-mail to activate it",
		"user":    gin.H{"id": u.ID, "name": u.Name, "email": u.Email},
	})
}

// VerifyEmail godoc
// @ID          verifyEmail
// @Summary     Redeem an e-mail verification link
// @Description Verifies the signature and expiry carried by the link. Idempotent: an already-verified account reports success.
// @Tags        Auth
// @Produce     json
// @Param       id         query  string  true  "Account id"
// @Param       hash       query  string  true  "E-mail hash bound into the link"
// @Param       expires    query  int     true  "Expiry (epoch seconds)"
// @Param       signature  query  string  true  "HMAC signature"
// @Success     200  {object} handlers.MessageResponse
// @Failure     400  {object} handlers.ErrorResponse "Invalid or expired link"
// @Router      /email/verify [get]
func (h *Handlers) VerifyEmail(c *gin.Context) {
	id := c.Query("id")
	hash := c.Query("hash")
	signature := c.Query("signature")
	expires, expErr := strconv.ParseInt(c.Query("expires"), 10, 64)
	if id == "" || hash == "" || signature == "" || expErr != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "id, hash, expires, and signature are required")
		return
	}

	switch err := h.authSvc.Verify(c.Request.Context(), id, hash, expires, signature); {
	case errors.Is(err, services.ErrLinkExpired):
		fail(c, http.StatusBadRequest, ErrCodeLinkExpired, "verification link expired")
	case errors.Is(err, services.ErrLinkInvalid):
		fail(c, http.StatusBadRequest, ErrCodeLinkInvalid, "verification link invalid")
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not verify e-mail")
	default:
		ok(c, http.StatusOK, MessageResponse{Message: "e-mail verified"})
	}
}

// ResendVerification godoc
// @ID          resendVerification
// @Summary     Re-send the verification e-mail
// @Tags        Auth
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.ResendRequest  true  "Account e-mail"
// @Success     200  {object} handlers.MessageResponse
// @Failure     422  {object} handlers.ErrorResponse
// @Router      /email/resend [post]
func (h *Handlers) ResendVerification(c *gin.Context) {
	var req ResendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusUnprocessableEntity, ErrCodeValidation, "a valid email is required")
		return
	}
	if err := h.authSvc.ResendVerification(c.Request.Context(), req.Email); err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			fail(c, http.StatusUnprocessableEntity, ErrCodeValidation, "no account for this email")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not send verification e-mail")
		return
	}
	ok(c, http.StatusOK, MessageResponse{Message: "verification e-mail sent"})
}

// ForgotPassword godoc
// @ID          forgotPassword
// @Summary     Request a password reset link
// @Description Mails a signed reset link valid for 60 minutes. Outside production, when mail delivery fails the reset URL is returned directly.
// @Tags        Auth
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.ForgotPasswordRequest  true  "Account e-mail"
// @Success     200  {object} map[string]any
// @Failure     422  {object} handlers.ErrorResponse
// @Failure     500  {object} handlers.ErrorResponse
// @Router      /forgot-password [post]
func (h *Handlers) ForgotPassword(c *gin.Context) {
	var req ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusUnprocessableEntity, ErrCodeValidation, "a valid email is required")
		return
	}

	resetURL, mailed, err := h.authSvc.ForgotPassword(c.Request.Context(), req.Email)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			fail(c, http.StatusUnprocessableEntity, ErrCodeValidation, "no account for this email")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not send reset e-mail")
		return
	}
	if !mailed {
		ok(c, http.StatusOK, gin.H{
			"message":   "reset link generated (e-mail not sent in development)",
			"reset_url": resetURL,
		})
		return
	}
	ok(c, http.StatusOK, MessageResponse{Message: "password reset link sent to your e-mail"})
}

// ResetPassword godoc
// @ID          resetPassword
// @Summary     Redeem a password reset link
// @Description Consumes the single-use reset token and replaces the password. When the request carries expires+signature the signed-link check runs first.
// @Tags        Auth
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.ResetPasswordRequest  true  "Reset payload"
// @Success     200  {object} handlers.MessageResponse
// @Failure     400  {object} handlers.ErrorResponse "Invalid or expired token/link"
// @Failure     422  {object} handlers.ErrorResponse
// @Router      /reset-password [post]
func (h *Handlers) ResetPassword(c *gin.Context) {
	var req ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusUnprocessableEntity, ErrCodeValidation, "token, email, and a confirmed password of at least 8 characters are required")
		return
	}

	svcReq := services.ResetRequest{
		Token:    req.Token,
		Email:    req.Email,
		Password: req.Password,
	}
	// Both halves present makes this the signed variant; anything else is a
	// legacy request carrying only the store token.
	if req.Expires != nil && req.Signature != "" {
		svcReq.Signed = &services.SignedParams{Expires: *req.Expires, Signature: req.Signature}
	}

	switch err := h.authSvc.ResetPassword(c.Request.Context(), svcReq); {
	case errors.Is(err, services.ErrLinkExpired):
		fail(c, http.StatusBadRequest, ErrCodeLinkExpired, "reset link expired")
	case errors.Is(err, services.ErrLinkInvalid):
		fail(c, http.StatusBadRequest, ErrCodeLinkInvalid, "reset link invalid")
	case errors.Is(err, services.ErrResetTokenInvalid):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "reset token invalid or expired")
	case errors.Is(err, services.ErrUserNotFound):
		fail(c, http.StatusUnprocessableEntity, ErrCodeValidation, "no account for this email")
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not reset password")
	default:
		ok(c, http.StatusOK, MessageResponse{Message: "password reset"})
	}
}

// GoogleRedirect godoc
// @ID          googleRedirect
// @Summary     Start Google login
// @Description Returns the provider consent URL the SPA should navigate to.
// @Tags        Auth
// @Produce     json
// @Success     200  {object} map[string]string
// @Failure     500  {object} handlers.ErrorResponse "Provider not configured"
// @Router      /auth/google/redirect [get]
func (h *Handlers) GoogleRedirect(c *gin.Context) {
	u, err := h.authSvc.GoogleLoginURL(c.Request.Context())
	if err != nil {
		if errors.Is(err, services.ErrGoogleNotConfigured) {
			fail(c, http.StatusInternalServerError, ErrCodeNotConfigured, "google credentials not configured")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not start google login")
		return
	}
	ok(c, http.StatusOK, gin.H{"url": u})
}

// GoogleCallback godoc
// @ID          googleCallback
// @Summary     Complete Google login
// @Description Terminates the provider round trip with a browser redirect to the SPA, carrying the bearer token in the URL on success or an error message on failure.
// @Tags        Auth
// @Success     302  {string} string "Redirect to the frontend"
// @Router      /auth/google/callback [get]
func (h *Handlers) GoogleCallback(c *gin.Context) {
	if provErr := c.Query("error"); provErr != "" {
		msg := "google authentication failed"
		if provErr == "access_denied" {
			msg = "authentication cancelled"
		}
		h.redirectLoginError(c, msg)
		return
	}

	code := c.Query("code")
	if code == "" {
		h.redirectLoginError(c, "google authentication failed")
		return
	}

	tok, u, err := h.authSvc.GoogleCallback(c.Request.Context(), code)
	if err != nil {
		middleware.LoggerFrom(c).Error().Err(err).Msg("google callback failed")
		switch {
		case errors.Is(err, services.ErrGoogleNotConfigured):
			h.redirectLoginError(c, "google credentials not configured")
		case errors.Is(err, services.ErrGoogleUserData):
			h.redirectLoginError(c, "could not obtain google account data")
		default:
			h.redirectLoginError(c, "google authentication failed")
		}
		return
	}

	userData, _ := json.Marshal(gin.H{"id": u.ID, "name": u.Name, "email": u.Email})
	q := url.Values{}
	q.Set("token", tok)
	q.Set("user", string(userData))
	c.Redirect(http.StatusFound, h.frontendURL+"/auth/google/callback?"+q.Encode())
}

// redirectLoginError sends the browser back to the SPA login page with a
// human-readable error message.
func (h *Handlers) redirectLoginError(c *gin.Context, msg string) {
	c.Redirect(http.StatusFound, h.frontendURL+"/login?error="+url.QueryEscape(msg))
}
