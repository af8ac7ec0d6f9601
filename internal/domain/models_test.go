package domain

import (
	"testing"
	"time"
)

func TestUser_Verified(t *testing.T) {
	u := &User{}
	if u.Verified() {
		t.Fatalf("user without EmailVerifiedAt must not be verified")
	}
	now := time.Now()
	u.EmailVerifiedAt = &now
	if !u.Verified() {
		t.Fatalf("user with EmailVerifiedAt must be verified")
	}
}

func TestUser_EmailHash(t *testing.T) {
	u := &User{Email: "ana@x.com"}
	h1 := u.EmailHash()
	if len(h1) != 40 {
		t.Fatalf("sha1 hex should be 40 chars, got %d", len(h1))
	}
	if h1 != (&User{Email: "ana@x.com"}).EmailHash() {
		t.Fatalf("hash must be deterministic")
	}
	u.Email = "other@x.com"
	if u.EmailHash() == h1 {
		t.Fatalf("changed email must change the hash")
	}
}

func TestUser_PermissionNames_Dedup(t *testing.T) {
	u := &User{Roles: []Role{
		{Name: "admin", Permissions: []Permission{{Name: "users.manage"}, {Name: "favorites.manage"}}},
		{Name: "user", Permissions: []Permission{{Name: "favorites.manage"}}},
	}}
	got := u.PermissionNames()
	if len(got) != 2 {
		t.Fatalf("expected deduplicated permissions, got %v", got)
	}
	if !u.HasRole("admin") || u.HasRole("editor") {
		t.Fatalf("HasRole unexpected")
	}
	if names := u.RoleNames(); len(names) != 2 || names[0] != "admin" {
		t.Fatalf("RoleNames unexpected: %v", names)
	}
}

func TestFavorite_HasGenre(t *testing.T) {
	f := &Favorite{GenreIDs: []int64{28, 12}}
	if !f.HasGenre(28) || f.HasGenre(99) {
		t.Fatalf("HasGenre unexpected")
	}
}

func TestTableNames(t *testing.T) {
	if (User{}).TableName() != "users" ||
		(Role{}).TableName() != "roles" ||
		(Permission{}).TableName() != "permissions" ||
		(Favorite{}).TableName() != "favorites" ||
		(PasswordReset{}).TableName() != "password_resets" {
		t.Fatalf("table names unexpected")
	}
}
