package repo

import (
	"context"
	"errors"
	"testing"
)

func TestCreateUser_AndDuplicates(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	u, err := CreateUser(ctx, db, "Ana", "ana@x.com", "hash")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if u.ID == "" || u.Verified() {
		t.Fatalf("new user unexpected: %+v", u)
	}

	if _, err := CreateUser(ctx, db, "Other", "ana@x.com", "hash2"); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("duplicate email: want ErrDuplicate, got %v", err)
	}
}

func TestGetUserByEmail_PreloadsRoles(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	if err := SeedDefaults(db); err != nil {
		t.Fatalf("seed: %v", err)
	}

	u, _ := CreateUser(ctx, db, "Ana", "ana@x.com", "hash")
	if err := AssignRole(ctx, db, u.ID, "admin"); err != nil {
		t.Fatalf("assign role: %v", err)
	}

	got, err := GetUserByEmail(ctx, db, "ana@x.com")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.HasRole("admin") {
		t.Fatalf("admin role not loaded: %+v", got.Roles)
	}
	if perms := got.PermissionNames(); len(perms) != 4 {
		t.Fatalf("admin permissions not preloaded, got %v", perms)
	}

	if _, err := GetUserByEmail(ctx, db, "absent@x.com"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("absent email: want ErrNotFound, got %v", err)
	}
}

func TestMarkEmailVerified_Idempotent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	u, _ := CreateUser(ctx, db, "Ana", "ana@x.com", "hash")
	if err := MarkEmailVerified(ctx, db, u.ID); err != nil {
		t.Fatalf("verify: %v", err)
	}

	first, _ := GetUser(ctx, db, u.ID)
	if !first.Verified() {
		t.Fatalf("user should be verified")
	}

	// Second verification must not move the timestamp.
	if err := MarkEmailVerified(ctx, db, u.ID); err != nil {
		t.Fatalf("second verify: %v", err)
	}
	second, _ := GetUser(ctx, db, u.ID)
	if !second.EmailVerifiedAt.Equal(*first.EmailVerifiedAt) {
		t.Fatalf("verification timestamp moved: %v -> %v", first.EmailVerifiedAt, second.EmailVerifiedAt)
	}
}

func TestSetPassword_RotatesRememberToken(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	u, _ := CreateUser(ctx, db, "Ana", "ana@x.com", "old-hash")
	if err := SetPassword(ctx, db, u.ID, "new-hash", "new-remember"); err != nil {
		t.Fatalf("set password: %v", err)
	}
	got, _ := GetUser(ctx, db, u.ID)
	if got.PasswordHash != "new-hash" || got.RememberToken != "new-remember" {
		t.Fatalf("password/remember not updated: %+v", got)
	}

	if err := SetPassword(ctx, db, "missing", "h", "r"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing user: want ErrNotFound, got %v", err)
	}
}

func TestLinkGoogle_MarksVerified(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	u, _ := CreateUser(ctx, db, "Ana", "ana@x.com", "hash")
	if err := LinkGoogle(ctx, db, u.ID, "google-sub-1"); err != nil {
		t.Fatalf("link: %v", err)
	}
	got, _ := GetUser(ctx, db, u.ID)
	if got.GoogleID != "google-sub-1" || !got.Verified() {
		t.Fatalf("google linkage unexpected: %+v", got)
	}
}

func TestListUsersPage_AndCount(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	for _, email := range []string{"a@x.com", "b@x.com", "c@x.com"} {
		if _, err := CreateUser(ctx, db, "U", email, "h"); err != nil {
			t.Fatalf("create %s: %v", email, err)
		}
	}

	total, err := CountUsers(ctx, db)
	if err != nil || total != 3 {
		t.Fatalf("count = %d, %v", total, err)
	}
	page, err := ListUsersPage(ctx, db, 0, 2)
	if err != nil || len(page) != 2 {
		t.Fatalf("page = %d users, %v", len(page), err)
	}
}

func TestUpdateAndDeleteUser(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	u, _ := CreateUser(ctx, db, "Ana", "ana@x.com", "hash")
	if err := UpdateUser(ctx, db, u.ID, map[string]any{"name": "Ana Maria"}); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ := GetUser(ctx, db, u.ID)
	if got.Name != "Ana Maria" {
		t.Fatalf("name not updated: %q", got.Name)
	}

	if err := DeleteUser(ctx, db, u.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := GetUser(ctx, db, u.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("deleted user should be gone, got %v", err)
	}
	if err := DeleteUser(ctx, db, u.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete: want ErrNotFound, got %v", err)
	}
}

func TestReplaceRoles(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	_ = SeedDefaults(db)

	u, _ := CreateUser(ctx, db, "Ana", "ana@x.com", "hash")
	_ = AssignRole(ctx, db, u.ID, "user")

	if err := ReplaceRoles(ctx, db, u.ID, []string{"admin"}); err != nil {
		t.Fatalf("replace: %v", err)
	}
	got, _ := GetUser(ctx, db, u.ID)
	if !got.HasRole("admin") || got.HasRole("user") {
		t.Fatalf("roles unexpected: %v", got.RoleNames())
	}
}
