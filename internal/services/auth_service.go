// Package services – AuthService
//
// This file implements the AuthService, which orchestrates the account
// lifecycle: registration with e-mail verification, login with opaque bearer
// tokens, password recovery over signed links, and Google-delegated login.
// Accounts move through pending-verification into verified; login against a
// pending account yields a distinguished outcome rather than a hard failure
// so clients can offer a resend.
//
// Service-level errors (e.g., ErrInvalidCredentials) are returned for
// predictable cases so handlers can map them to HTTP results consistently.
package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/tbourn/go-movie-backend/internal/domain"
	"github.com/tbourn/go-movie-backend/internal/mail"
	"github.com/tbourn/go-movie-backend/internal/repo"
	"github.com/tbourn/go-movie-backend/internal/signedlink"
	"github.com/tbourn/go-movie-backend/internal/token"
)

const (
	// DefaultRole is attached to every self-registered account.
	DefaultRole = "user"

	verificationTTL = 24 * time.Hour
	resetTTL        = 60 * time.Minute
)

// AuthRepo defines the repository contract required by AuthService.
type AuthRepo interface {
	// CreateUser inserts a new account in the pending-verification state.
	CreateUser(ctx context.Context, db *gorm.DB, name, email, passwordHash string) (*domain.User, error)

	// GetUser fetches an account by id with roles and permissions preloaded.
	GetUser(ctx context.Context, db *gorm.DB, id string) (*domain.User, error)

	// GetUserByEmail fetches an account by e-mail with roles and permissions
	// preloaded.
	GetUserByEmail(ctx context.Context, db *gorm.DB, email string) (*domain.User, error)

	// MarkEmailVerified stamps the verification time. Idempotent.
	MarkEmailVerified(ctx context.Context, db *gorm.DB, id string) error

	// SetPassword replaces the password hash and rotates the remember token.
	SetPassword(ctx context.Context, db *gorm.DB, id, passwordHash, rememberToken string) error

	// LinkGoogle attaches the provider id and marks the e-mail verified.
	LinkGoogle(ctx context.Context, db *gorm.DB, id, googleID string) error

	// AssignRole attaches a role by name to the account.
	AssignRole(ctx context.Context, db *gorm.DB, userID, roleName string) error

	// SavePasswordReset stores the hashed reset token for the e-mail,
	// replacing any outstanding one.
	SavePasswordReset(ctx context.Context, db *gorm.DB, email, token string) error

	// ConsumePasswordReset redeems a reset token exactly once within ttl.
	ConsumePasswordReset(ctx context.Context, db *gorm.DB, email, token string, ttl time.Duration) error
}

// TokenIssuer mints and revokes opaque bearer tokens.
type TokenIssuer interface {
	Mint(ctx context.Context, rec token.Record) (string, error)
	Revoke(ctx context.Context, plain string) error
	RevokeAll(ctx context.Context, userID string) error
}

// LoginResult is the outcome of a successful or verification-pending login.
type LoginResult struct {
	// Token is the minted bearer token. Empty when PendingVerification.
	Token string
	// User is the account with roles and permissions loaded.
	User *domain.User
	// PendingVerification is set when the credentials were correct but the
	// account has not verified its e-mail. No token is issued in that case.
	PendingVerification bool
}

// ResetRequest is a password reset submission. The two accepted variants are
// a legacy request (Signed nil, store token only) and a signed request
// (Signed set, store token plus link signature checked first).
type ResetRequest struct {
	Token    string
	Email    string
	Password string
	Signed   *SignedParams
}

// SignedParams carries the signed-link half of a reset request.
type SignedParams struct {
	Expires   int64
	Signature string
}

// AuthService orchestrates registration, verification, login, password
// recovery, and Google-delegated login.
type AuthService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the user repository used by this service.
	Repo AuthRepo
	// Codec signs and verifies the expiring links embedded in e-mails.
	Codec *signedlink.Codec
	// Tokens mints and revokes bearer tokens.
	Tokens TokenIssuer
	// Mail delivers verification and reset e-mails.
	Mail mail.Mailer
	// Google resolves OAuth redirects and callbacks. Nil when not configured.
	Google GoogleProvider

	// FrontendURL is the SPA base used to build link targets.
	FrontendURL string
	// DevMode enables the reset-URL fallback when mail delivery fails.
	DevMode bool
}

// NewAuthService constructs an AuthService.
func NewAuthService(db *gorm.DB, r AuthRepo, codec *signedlink.Codec, tokens TokenIssuer, mailer mail.Mailer) *AuthService {
	return &AuthService{
		DB:     db,
		Repo:   r,
		Codec:  codec,
		Tokens: tokens,
		Mail:   mailer,
	}
}

// Register creates a pending-verification account, assigns the default role,
// and dispatches the welcome e-mail carrying a 24-hour verification link.
// A mail delivery failure is logged but does not undo the registration.
func (s *AuthService) Register(ctx context.Context, name, email, password string) (*domain.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	u, err := s.Repo.CreateUser(ctx, s.DB, name, email, string(hash))
	if err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	if err := s.Repo.AssignRole(ctx, s.DB, u.ID, DefaultRole); err != nil {
		log.Error().Err(err).Str("user_id", u.ID).Msg("auth: assigning default role failed")
	}

	if err := s.Mail.SendWelcome(ctx, u.Email, u.Name, s.verificationURL(u)); err != nil {
		log.Error().Err(err).Str("user_id", u.ID).Msg("auth: welcome e-mail delivery failed")
	}
	return u, nil
}

// Verify redeems a verification link and marks the account verified.
// The signature is checked first, then expiry, then the e-mail hash bound
// into the link must match the account's current e-mail. Verifying an
// already-verified account succeeds with no side effect.
func (s *AuthService) Verify(ctx context.Context, userID, emailHash string, expires int64, signature string) error {
	switch err := s.Codec.Verify(userID, emailHash, expires, signature); {
	case errors.Is(err, signedlink.ErrInvalid):
		return ErrLinkInvalid
	case errors.Is(err, signedlink.ErrExpired):
		return ErrLinkExpired
	case err != nil:
		return err
	}

	u, err := s.Repo.GetUser(ctx, s.DB, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrLinkInvalid
		}
		return err
	}
	// The link binds the e-mail at issuance; a changed address voids it.
	if !signedlink.EqualMaterial(emailHash, u.EmailHash()) {
		return ErrLinkInvalid
	}
	if u.Verified() {
		return nil
	}
	return s.Repo.MarkEmailVerified(ctx, s.DB, u.ID)
}

// ResendVerification issues a fresh verification link for a pending account.
// Resending for an already-verified account succeeds with no mail sent.
func (s *AuthService) ResendVerification(ctx context.Context, email string) error {
	u, err := s.Repo.GetUserByEmail(ctx, s.DB, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	if u.Verified() {
		return nil
	}
	return s.Mail.SendWelcome(ctx, u.Email, u.Name, s.verificationURL(u))
}

// Login checks the credentials and mints a bearer token. Unknown e-mail and
// wrong password are indistinguishable. A correct password against a
// pending-verification account yields PendingVerification instead of a token.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	u, err := s.Repo.GetUserByEmail(ctx, s.DB, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Burn a hash comparison so the miss costs as much as a mismatch.
			_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	if !u.Verified() {
		return &LoginResult{User: u, PendingVerification: true}, nil
	}

	tok, err := s.Tokens.Mint(ctx, token.Record{
		UserID:      u.ID,
		Roles:       u.RoleNames(),
		Permissions: u.PermissionNames(),
	})
	if err != nil {
		return nil, err
	}
	return &LoginResult{Token: tok, User: u}, nil
}

// Logout revokes the presented bearer token. Unknown tokens are a no-op.
func (s *AuthService) Logout(ctx context.Context, bearer string) error {
	return s.Tokens.Revoke(ctx, bearer)
}

// ForgotPassword stores a single-use reset token for the account and mails a
// 60-minute signed reset link. When delivery fails in development the reset
// URL is handed back to the caller instead; in production the failure
// propagates.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) (resetURL string, mailed bool, err error) {
	u, err := s.Repo.GetUserByEmail(ctx, s.DB, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, ErrUserNotFound
		}
		return "", false, err
	}

	plain, err := randomToken()
	if err != nil {
		return "", false, err
	}
	if err := s.Repo.SavePasswordReset(ctx, s.DB, u.Email, plain); err != nil {
		return "", false, err
	}

	link := s.Codec.Issue(plain, u.Email, resetTTL)
	url := s.Codec.URL(s.FrontendURL+"/reset-password", map[string]string{
		"token": plain,
		"email": u.Email,
	}, link)

	if err := s.Mail.SendPasswordReset(ctx, u.Email, u.Name, url); err != nil {
		log.Error().Err(err).Msg("auth: password reset e-mail delivery failed")
		if s.DevMode {
			return url, false, nil
		}
		return "", false, err
	}
	return url, true, nil
}

// ResetPassword redeems a reset token and replaces the account password.
// Signed requests verify the link signature and expiry before the store token
// is consumed. The store token is single-use either way. On success the
// password is re-hashed, the remember token rotated, and every outstanding
// bearer token for the account revoked.
func (s *AuthService) ResetPassword(ctx context.Context, req ResetRequest) error {
	if req.Signed != nil {
		switch err := s.Codec.Verify(req.Token, req.Email, req.Signed.Expires, req.Signed.Signature); {
		case errors.Is(err, signedlink.ErrInvalid):
			return ErrLinkInvalid
		case errors.Is(err, signedlink.ErrExpired):
			return ErrLinkExpired
		case err != nil:
			return err
		}
	}

	u, err := s.Repo.GetUserByEmail(ctx, s.DB, req.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	if err := s.Repo.ConsumePasswordReset(ctx, s.DB, req.Email, req.Token, resetTTL); err != nil {
		return ErrResetTokenInvalid
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	remember, err := randomToken()
	if err != nil {
		return err
	}
	if err := s.Repo.SetPassword(ctx, s.DB, u.ID, string(hash), remember); err != nil {
		return err
	}
	if err := s.Tokens.RevokeAll(ctx, u.ID); err != nil {
		log.Error().Err(err).Str("user_id", u.ID).Msg("auth: revoking sessions after reset failed")
	}
	return nil
}

// GoogleLoginURL returns the provider consent URL the SPA should send the
// browser to.
func (s *AuthService) GoogleLoginURL(ctx context.Context) (string, error) {
	if s.Google == nil {
		return "", ErrGoogleNotConfigured
	}
	state, err := randomToken()
	if err != nil {
		return "", err
	}
	return s.Google.AuthURL(state), nil
}

// GoogleCallback completes the OAuth exchange. An existing account gets the
// provider id attached and is marked verified; an unknown e-mail gets a fresh
// verified account with an unusable random password and the default role.
// A bearer token is minted either way.
func (s *AuthService) GoogleCallback(ctx context.Context, code string) (string, *domain.User, error) {
	if s.Google == nil {
		return "", nil, ErrGoogleNotConfigured
	}
	gu, err := s.Google.FetchUser(ctx, code)
	if err != nil {
		return "", nil, err
	}
	if gu.Email == "" {
		return "", nil, ErrGoogleUserData
	}

	u, err := s.Repo.GetUserByEmail(ctx, s.DB, gu.Email)
	switch {
	case err == nil:
		if u.GoogleID == "" {
			if err := s.Repo.LinkGoogle(ctx, s.DB, u.ID, gu.ID); err != nil {
				return "", nil, err
			}
			u.GoogleID = gu.ID
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		name := gu.Name
		if name == "" {
			name = gu.Email
		}
		placeholder, err := randomToken()
		if err != nil {
			return "", nil, err
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(placeholder), bcrypt.DefaultCost)
		if err != nil {
			return "", nil, err
		}
		u, err = s.Repo.CreateUser(ctx, s.DB, name, gu.Email, string(hash))
		if err != nil {
			return "", nil, err
		}
		if err := s.Repo.LinkGoogle(ctx, s.DB, u.ID, gu.ID); err != nil {
			return "", nil, err
		}
		if err := s.Repo.AssignRole(ctx, s.DB, u.ID, DefaultRole); err != nil {
			log.Error().Err(err).Str("user_id", u.ID).Msg("auth: assigning default role failed")
		}
		if u, err = s.Repo.GetUser(ctx, s.DB, u.ID); err != nil {
			return "", nil, err
		}
	default:
		return "", nil, err
	}

	tok, err := s.Tokens.Mint(ctx, token.Record{
		UserID:      u.ID,
		Roles:       u.RoleNames(),
		Permissions: u.PermissionNames(),
	})
	if err != nil {
		return "", nil, err
	}
	return tok, u, nil
}

// verificationURL builds the frontend link the welcome e-mail points at.
func (s *AuthService) verificationURL(u *domain.User) string {
	link := s.Codec.Issue(u.ID, u.EmailHash(), verificationTTL)
	return s.Codec.URL(s.FrontendURL+"/verify-email", map[string]string{
		"id":   u.ID,
		"hash": u.EmailHash(),
	}, link)
}

// dummyHash is compared against when the e-mail is unknown so login timing
// does not reveal account existence.
var dummyHash = func() []byte {
	h, _ := bcrypt.GenerateFromPassword([]byte("-"), bcrypt.DefaultCost)
	return h
}()

func randomToken() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return hex.EncodeToString(raw), nil
}
