package services

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/tbourn/go-movie-backend/internal/domain"
	"github.com/tbourn/go-movie-backend/internal/repo"
	"github.com/tbourn/go-movie-backend/internal/signedlink"
	"github.com/tbourn/go-movie-backend/internal/token"
)

// ----- Fake repo -----

type fakeAuthRepo struct {
	usersByEmail map[string]*domain.User
	usersByID    map[string]*domain.User

	verifiedIDs   []string
	assignedRoles map[string][]string

	setPasswordID   string
	setPasswordHash string
	setRemember     string

	linkedGoogleID string

	savedResetEmail string
	savedResetToken string
	consumeErr      error
	consumedToken   string
}

func newFakeAuthRepo() *fakeAuthRepo {
	return &fakeAuthRepo{
		usersByEmail:  map[string]*domain.User{},
		usersByID:     map[string]*domain.User{},
		assignedRoles: map[string][]string{},
	}
}

func (r *fakeAuthRepo) add(u *domain.User) *domain.User {
	r.usersByEmail[u.Email] = u
	r.usersByID[u.ID] = u
	return u
}

func (r *fakeAuthRepo) CreateUser(ctx context.Context, db *gorm.DB, name, email, passwordHash string) (*domain.User, error) {
	if _, ok := r.usersByEmail[email]; ok {
		return nil, repo.ErrDuplicate
	}
	return r.add(&domain.User{ID: "u-" + email, Name: name, Email: email, PasswordHash: passwordHash}), nil
}

func (r *fakeAuthRepo) GetUser(ctx context.Context, db *gorm.DB, id string) (*domain.User, error) {
	if u, ok := r.usersByID[id]; ok {
		return u, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeAuthRepo) GetUserByEmail(ctx context.Context, db *gorm.DB, email string) (*domain.User, error) {
	if u, ok := r.usersByEmail[email]; ok {
		return u, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeAuthRepo) MarkEmailVerified(ctx context.Context, db *gorm.DB, id string) error {
	r.verifiedIDs = append(r.verifiedIDs, id)
	now := time.Now()
	r.usersByID[id].EmailVerifiedAt = &now
	return nil
}

func (r *fakeAuthRepo) SetPassword(ctx context.Context, db *gorm.DB, id, passwordHash, rememberToken string) error {
	r.setPasswordID, r.setPasswordHash, r.setRemember = id, passwordHash, rememberToken
	return nil
}

func (r *fakeAuthRepo) LinkGoogle(ctx context.Context, db *gorm.DB, id, googleID string) error {
	r.linkedGoogleID = googleID
	u := r.usersByID[id]
	u.GoogleID = googleID
	now := time.Now()
	u.EmailVerifiedAt = &now
	return nil
}

func (r *fakeAuthRepo) AssignRole(ctx context.Context, db *gorm.DB, userID, roleName string) error {
	r.assignedRoles[userID] = append(r.assignedRoles[userID], roleName)
	return nil
}

func (r *fakeAuthRepo) SavePasswordReset(ctx context.Context, db *gorm.DB, email, token string) error {
	r.savedResetEmail, r.savedResetToken = email, token
	return nil
}

func (r *fakeAuthRepo) ConsumePasswordReset(ctx context.Context, db *gorm.DB, email, token string, ttl time.Duration) error {
	if r.consumeErr != nil {
		return r.consumeErr
	}
	r.consumedToken = token
	return nil
}

// ----- Fake collaborators -----

type fakeTokens struct {
	minted       []token.Record
	revoked      []string
	revokedUsers []string
	mintErr      error
}

func (f *fakeTokens) Mint(ctx context.Context, rec token.Record) (string, error) {
	if f.mintErr != nil {
		return "", f.mintErr
	}
	f.minted = append(f.minted, rec)
	return "tok-1", nil
}

func (f *fakeTokens) Revoke(ctx context.Context, plain string) error {
	f.revoked = append(f.revoked, plain)
	return nil
}

func (f *fakeTokens) RevokeAll(ctx context.Context, userID string) error {
	f.revokedUsers = append(f.revokedUsers, userID)
	return nil
}

type fakeMailer struct {
	welcomeTo   []string
	welcomeURLs []string
	resetTo     []string
	resetURLs   []string
	sendErr     error
}

func (f *fakeMailer) SendWelcome(ctx context.Context, to, name, verificationURL string) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.welcomeTo = append(f.welcomeTo, to)
	f.welcomeURLs = append(f.welcomeURLs, verificationURL)
	return nil
}

func (f *fakeMailer) SendPasswordReset(ctx context.Context, to, name, resetURL string) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.resetTo = append(f.resetTo, to)
	f.resetURLs = append(f.resetURLs, resetURL)
	return nil
}

type fakeGoogle struct {
	user *GoogleUser
	err  error
}

func (f *fakeGoogle) AuthURL(state string) string { return "https://accounts.google/auth?state=" + state }

func (f *fakeGoogle) FetchUser(ctx context.Context, code string) (*GoogleUser, error) {
	return f.user, f.err
}

func newAuthService(r *fakeAuthRepo, tokens *fakeTokens, mailer *fakeMailer) *AuthService {
	s := NewAuthService(nil, r, signedlink.New("test-secret"), tokens, mailer)
	s.FrontendURL = "http://localhost:5173"
	return s
}

func hashPassword(t *testing.T, plain string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	return string(h)
}

func verifiedUser(t *testing.T, id, email, password string, roles ...string) *domain.User {
	t.Helper()
	now := time.Now()
	u := &domain.User{ID: id, Name: "Ana", Email: email, PasswordHash: hashPassword(t, password), EmailVerifiedAt: &now}
	for _, name := range roles {
		u.Roles = append(u.Roles, domain.Role{ID: "r-" + name, Name: name})
	}
	return u
}

// ----- Register / Verify -----

func TestRegister_SendsVerificationLink(t *testing.T) {
	r := newFakeAuthRepo()
	m := &fakeMailer{}
	s := newAuthService(r, &fakeTokens{}, m)

	u, err := s.Register(context.Background(), "Ana", "ana@x.com", "secret123")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if u.Verified() {
		t.Fatalf("new account must not be verified")
	}
	if got := r.assignedRoles[u.ID]; len(got) != 1 || got[0] != "user" {
		t.Fatalf("default role not assigned: %v", got)
	}
	if len(m.welcomeURLs) != 1 {
		t.Fatalf("welcome mail not sent")
	}

	// The mailed link must redeem.
	parsed, err := url.Parse(m.welcomeURLs[0])
	if err != nil {
		t.Fatalf("mailed url: %v", err)
	}
	if !strings.HasPrefix(m.welcomeURLs[0], "http://localhost:5173/verify-email?") {
		t.Fatalf("unexpected link target: %s", m.welcomeURLs[0])
	}
	q := parsed.Query()
	expires, err := strconv.ParseInt(q.Get("expires"), 10, 64)
	if err != nil {
		t.Fatalf("expires param: %v", err)
	}
	if err := s.Verify(context.Background(), q.Get("id"), q.Get("hash"), expires, q.Get("signature")); err != nil {
		t.Fatalf("mailed link did not verify: %v", err)
	}
	if !r.usersByID[u.ID].Verified() {
		t.Fatalf("account not marked verified")
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	r := newFakeAuthRepo()
	s := newAuthService(r, &fakeTokens{}, &fakeMailer{})

	if _, err := s.Register(context.Background(), "Ana", "ana@x.com", "secret123"); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if _, err := s.Register(context.Background(), "Ana", "ana@x.com", "secret123"); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("want ErrEmailTaken, got %v", err)
	}
}

func TestRegister_MailFailureDoesNotUndoAccount(t *testing.T) {
	r := newFakeAuthRepo()
	s := newAuthService(r, &fakeTokens{}, &fakeMailer{sendErr: errors.New("smtp down")})

	u, err := s.Register(context.Background(), "Ana", "ana@x.com", "secret123")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, ok := r.usersByID[u.ID]; !ok {
		t.Fatalf("account missing after mail failure")
	}
}

func TestVerify_Idempotent(t *testing.T) {
	r := newFakeAuthRepo()
	s := newAuthService(r, &fakeTokens{}, &fakeMailer{})
	u := r.add(&domain.User{ID: "u1", Email: "ana@x.com"})

	link := s.Codec.Issue(u.ID, u.EmailHash(), time.Hour)
	for i := 0; i < 2; i++ {
		if err := s.Verify(context.Background(), u.ID, u.EmailHash(), link.ExpiresAt, link.Signature); err != nil {
			t.Fatalf("verify #%d: %v", i+1, err)
		}
	}
	// Only the first call writes.
	if len(r.verifiedIDs) != 1 {
		t.Fatalf("MarkEmailVerified called %d times", len(r.verifiedIDs))
	}
}

func TestVerify_Failures(t *testing.T) {
	r := newFakeAuthRepo()
	s := newAuthService(r, &fakeTokens{}, &fakeMailer{})
	u := r.add(&domain.User{ID: "u1", Email: "ana@x.com"})

	good := s.Codec.Issue(u.ID, u.EmailHash(), time.Hour)

	if err := s.Verify(context.Background(), u.ID, u.EmailHash(), good.ExpiresAt, "deadbeef"); !errors.Is(err, ErrLinkInvalid) {
		t.Errorf("tampered signature: want ErrLinkInvalid, got %v", err)
	}

	expired := s.Codec.Issue(u.ID, u.EmailHash(), -time.Minute)
	if err := s.Verify(context.Background(), u.ID, u.EmailHash(), expired.ExpiresAt, expired.Signature); !errors.Is(err, ErrLinkExpired) {
		t.Errorf("expired link: want ErrLinkExpired, got %v", err)
	}

	// Signature valid but bound to a different e-mail hash than the account's.
	other := &domain.User{ID: u.ID, Email: "other@x.com"}
	stale := s.Codec.Issue(u.ID, other.EmailHash(), time.Hour)
	if err := s.Verify(context.Background(), u.ID, other.EmailHash(), stale.ExpiresAt, stale.Signature); !errors.Is(err, ErrLinkInvalid) {
		t.Errorf("stale e-mail material: want ErrLinkInvalid, got %v", err)
	}

	unknown := s.Codec.Issue("ghost", "feed", time.Hour)
	if err := s.Verify(context.Background(), "ghost", "feed", unknown.ExpiresAt, unknown.Signature); !errors.Is(err, ErrLinkInvalid) {
		t.Errorf("unknown account: want ErrLinkInvalid, got %v", err)
	}
}

func TestResendVerification(t *testing.T) {
	r := newFakeAuthRepo()
	m := &fakeMailer{}
	s := newAuthService(r, &fakeTokens{}, m)

	r.add(&domain.User{ID: "u1", Name: "Ana", Email: "ana@x.com"})
	if err := s.ResendVerification(context.Background(), "ana@x.com"); err != nil {
		t.Fatalf("resend: %v", err)
	}
	if len(m.welcomeTo) != 1 {
		t.Fatalf("mail not sent for pending account")
	}

	r.add(verifiedUser(t, "u2", "bob@x.com", "pw"))
	if err := s.ResendVerification(context.Background(), "bob@x.com"); err != nil {
		t.Fatalf("resend verified: %v", err)
	}
	if len(m.welcomeTo) != 1 {
		t.Fatalf("verified account must not get mail")
	}

	if err := s.ResendVerification(context.Background(), "ghost@x.com"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("unknown e-mail: want ErrUserNotFound, got %v", err)
	}
}

// ----- Login / Logout -----

func TestLogin_Success(t *testing.T) {
	r := newFakeAuthRepo()
	tok := &fakeTokens{}
	s := newAuthService(r, tok, &fakeMailer{})

	u := verifiedUser(t, "u1", "ana@x.com", "secret123", "user")
	u.Roles[0].Permissions = []domain.Permission{{Name: "favorites.manage"}}
	r.add(u)

	res, err := s.Login(context.Background(), "ana@x.com", "secret123")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if res.PendingVerification || res.Token != "tok-1" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if len(tok.minted) != 1 {
		t.Fatalf("token not minted")
	}
	rec := tok.minted[0]
	if rec.UserID != "u1" || len(rec.Roles) != 1 || rec.Roles[0] != "user" {
		t.Fatalf("unexpected token record: %+v", rec)
	}
	if !rec.Permissions.Has("favorites.manage") {
		t.Fatalf("permission set not attached at issuance: %+v", rec.Permissions)
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	r := newFakeAuthRepo()
	s := newAuthService(r, &fakeTokens{}, &fakeMailer{})
	r.add(verifiedUser(t, "u1", "ana@x.com", "secret123"))

	if _, err := s.Login(context.Background(), "ana@x.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong password: want ErrInvalidCredentials, got %v", err)
	}
	// Unknown e-mail is indistinguishable from a wrong password.
	if _, err := s.Login(context.Background(), "ghost@x.com", "secret123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown e-mail: want ErrInvalidCredentials, got %v", err)
	}
}

func TestRegisterThenLogin_RequiresVerification(t *testing.T) {
	r := newFakeAuthRepo()
	tok := &fakeTokens{}
	s := newAuthService(r, tok, &fakeMailer{})

	if _, err := s.Register(context.Background(), "Ana", "ana@x.com", "secret123"); err != nil {
		t.Fatalf("register: %v", err)
	}
	res, err := s.Login(context.Background(), "ana@x.com", "secret123")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if !res.PendingVerification {
		t.Fatalf("want verification-required outcome, got %+v", res)
	}
	if res.Token != "" || len(tok.minted) != 0 {
		t.Fatalf("no token may be issued before verification")
	}
	if res.User == nil || res.User.ID == "" {
		t.Fatalf("outcome must carry the account id for resend")
	}
}

func TestLogout_RevokesToken(t *testing.T) {
	tok := &fakeTokens{}
	s := newAuthService(newFakeAuthRepo(), tok, &fakeMailer{})

	if err := s.Logout(context.Background(), "tok-1"); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if len(tok.revoked) != 1 || tok.revoked[0] != "tok-1" {
		t.Fatalf("token not revoked: %v", tok.revoked)
	}
}

// ----- Password recovery -----

func TestForgotPassword_MailsSignedLink(t *testing.T) {
	r := newFakeAuthRepo()
	m := &fakeMailer{}
	s := newAuthService(r, &fakeTokens{}, m)
	r.add(verifiedUser(t, "u1", "ana@x.com", "old"))

	_, mailed, err := s.ForgotPassword(context.Background(), "ana@x.com")
	if err != nil {
		t.Fatalf("forgot: %v", err)
	}
	if !mailed || len(m.resetURLs) != 1 {
		t.Fatalf("reset mail not sent")
	}
	if r.savedResetEmail != "ana@x.com" || r.savedResetToken == "" {
		t.Fatalf("reset token not stored")
	}

	parsed, _ := url.Parse(m.resetURLs[0])
	q := parsed.Query()
	if q.Get("token") != r.savedResetToken || q.Get("email") != "ana@x.com" {
		t.Fatalf("link params do not match stored token: %s", m.resetURLs[0])
	}
	expires, err := strconv.ParseInt(q.Get("expires"), 10, 64)
	if err != nil {
		t.Fatalf("expires param: %v", err)
	}
	if err := s.Codec.Verify(q.Get("token"), q.Get("email"), expires, q.Get("signature")); err != nil {
		t.Fatalf("mailed reset link does not verify: %v", err)
	}
}

func TestForgotPassword_DevFallbackOnMailFailure(t *testing.T) {
	r := newFakeAuthRepo()
	s := newAuthService(r, &fakeTokens{}, &fakeMailer{sendErr: errors.New("smtp down")})
	r.add(verifiedUser(t, "u1", "ana@x.com", "old"))

	s.DevMode = true
	resetURL, mailed, err := s.ForgotPassword(context.Background(), "ana@x.com")
	if err != nil {
		t.Fatalf("dev mode must not fail on mail error: %v", err)
	}
	if mailed || resetURL == "" {
		t.Fatalf("dev mode must hand back the reset url, got %q mailed=%v", resetURL, mailed)
	}

	s.DevMode = false
	if _, _, err := s.ForgotPassword(context.Background(), "ana@x.com"); err == nil {
		t.Fatalf("production mail failure must propagate")
	}
}

func TestForgotPassword_UnknownEmail(t *testing.T) {
	s := newAuthService(newFakeAuthRepo(), &fakeTokens{}, &fakeMailer{})
	if _, _, err := s.ForgotPassword(context.Background(), "ghost@x.com"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("want ErrUserNotFound, got %v", err)
	}
}

func TestResetPassword_Legacy(t *testing.T) {
	r := newFakeAuthRepo()
	tok := &fakeTokens{}
	s := newAuthService(r, tok, &fakeMailer{})
	r.add(verifiedUser(t, "u1", "ana@x.com", "old"))

	err := s.ResetPassword(context.Background(), ResetRequest{
		Token:    "reset-token",
		Email:    "ana@x.com",
		Password: "newsecret",
	})
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if r.consumedToken != "reset-token" {
		t.Fatalf("store token not consumed")
	}
	if r.setPasswordID != "u1" || r.setPasswordHash == "" {
		t.Fatalf("password not replaced")
	}
	if bcrypt.CompareHashAndPassword([]byte(r.setPasswordHash), []byte("newsecret")) != nil {
		t.Fatalf("stored hash does not match new password")
	}
	if r.setRemember == "" {
		t.Fatalf("remember token not rotated")
	}
	if len(tok.revokedUsers) != 1 || tok.revokedUsers[0] != "u1" {
		t.Fatalf("outstanding sessions not revoked: %v", tok.revokedUsers)
	}
}

func TestResetPassword_SignedVariant(t *testing.T) {
	r := newFakeAuthRepo()
	s := newAuthService(r, &fakeTokens{}, &fakeMailer{})
	r.add(verifiedUser(t, "u1", "ana@x.com", "old"))

	link := s.Codec.Issue("reset-token", "ana@x.com", time.Hour)
	err := s.ResetPassword(context.Background(), ResetRequest{
		Token:    "reset-token",
		Email:    "ana@x.com",
		Password: "newsecret",
		Signed:   &SignedParams{Expires: link.ExpiresAt, Signature: link.Signature},
	})
	if err != nil {
		t.Fatalf("signed reset: %v", err)
	}

	// Tampered signature fails before the store token is even consulted.
	r.consumedToken = ""
	err = s.ResetPassword(context.Background(), ResetRequest{
		Token:    "reset-token",
		Email:    "ana@x.com",
		Password: "newsecret",
		Signed:   &SignedParams{Expires: link.ExpiresAt, Signature: "deadbeef"},
	})
	if !errors.Is(err, ErrLinkInvalid) {
		t.Fatalf("want ErrLinkInvalid, got %v", err)
	}
	if r.consumedToken != "" {
		t.Fatalf("store token consumed despite invalid signature")
	}

	expired := s.Codec.Issue("reset-token", "ana@x.com", -time.Minute)
	err = s.ResetPassword(context.Background(), ResetRequest{
		Token:    "reset-token",
		Email:    "ana@x.com",
		Password: "newsecret",
		Signed:   &SignedParams{Expires: expired.ExpiresAt, Signature: expired.Signature},
	})
	if !errors.Is(err, ErrLinkExpired) {
		t.Fatalf("want ErrLinkExpired, got %v", err)
	}
}

func TestResetPassword_StoreTokenRejected(t *testing.T) {
	r := newFakeAuthRepo()
	s := newAuthService(r, &fakeTokens{}, &fakeMailer{})
	r.add(verifiedUser(t, "u1", "ana@x.com", "old"))
	r.consumeErr = repo.ErrResetInvalid

	err := s.ResetPassword(context.Background(), ResetRequest{
		Token:    "stale",
		Email:    "ana@x.com",
		Password: "newsecret",
	})
	if !errors.Is(err, ErrResetTokenInvalid) {
		t.Fatalf("want ErrResetTokenInvalid, got %v", err)
	}
	if r.setPasswordID != "" {
		t.Fatalf("password must not change on rejected token")
	}
}

// ----- Google -----

func TestGoogleCallback_LinksExistingAccount(t *testing.T) {
	r := newFakeAuthRepo()
	tok := &fakeTokens{}
	s := newAuthService(r, tok, &fakeMailer{})
	s.Google = &fakeGoogle{user: &GoogleUser{ID: "g-1", Email: "ana@x.com", Name: "Ana"}}

	// Existing password account, never linked.
	r.add(&domain.User{ID: "u1", Name: "Ana", Email: "ana@x.com", PasswordHash: "x"})

	bearer, u, err := s.GoogleCallback(context.Background(), "code")
	if err != nil {
		t.Fatalf("callback: %v", err)
	}
	if bearer != "tok-1" || u.ID != "u1" {
		t.Fatalf("unexpected result: %q %+v", bearer, u)
	}
	if r.linkedGoogleID != "g-1" {
		t.Fatalf("provider id not attached")
	}
	if !r.usersByID["u1"].Verified() {
		t.Fatalf("linked account must be marked verified")
	}
}

func TestGoogleCallback_CreatesVerifiedAccount(t *testing.T) {
	r := newFakeAuthRepo()
	s := newAuthService(r, &fakeTokens{}, &fakeMailer{})
	s.Google = &fakeGoogle{user: &GoogleUser{ID: "g-2", Email: "new@x.com", Name: "New"}}

	bearer, u, err := s.GoogleCallback(context.Background(), "code")
	if err != nil {
		t.Fatalf("callback: %v", err)
	}
	if bearer == "" || u == nil {
		t.Fatalf("no token or user")
	}
	if !r.usersByID[u.ID].Verified() {
		t.Fatalf("provider-created account must be verified")
	}
	if got := r.assignedRoles[u.ID]; len(got) != 1 || got[0] != "user" {
		t.Fatalf("default role not assigned: %v", got)
	}
	if r.usersByID[u.ID].PasswordHash == "" {
		t.Fatalf("placeholder password missing")
	}
}

func TestGoogleCallback_Failures(t *testing.T) {
	s := newAuthService(newFakeAuthRepo(), &fakeTokens{}, &fakeMailer{})

	if _, _, err := s.GoogleCallback(context.Background(), "code"); !errors.Is(err, ErrGoogleNotConfigured) {
		t.Fatalf("nil provider: want ErrGoogleNotConfigured, got %v", err)
	}
	if _, err := s.GoogleLoginURL(context.Background()); !errors.Is(err, ErrGoogleNotConfigured) {
		t.Fatalf("nil provider url: want ErrGoogleNotConfigured, got %v", err)
	}

	s.Google = &fakeGoogle{user: &GoogleUser{ID: "g-3"}}
	if _, _, err := s.GoogleCallback(context.Background(), "code"); !errors.Is(err, ErrGoogleUserData) {
		t.Fatalf("missing e-mail: want ErrGoogleUserData, got %v", err)
	}
}
