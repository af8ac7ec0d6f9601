// Package domain defines the persistence models for users, roles,
// permissions, and favorites. These types are mapped with GORM and form
// the core data layer of the movie catalog application.
package domain

import (
	"crypto/sha1"
	"encoding/hex"
	"time"

	"gorm.io/gorm"
)

// User represents an account holder. Accounts start unverified and move to
// verified either through the signed email link or through a trusted OAuth
// provider (Google).
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - Name / Email: profile data; email is unique and drives login.
//   - PasswordHash: bcrypt hash; never serialized.
//   - EmailVerifiedAt: nil while the account is pending verification.
//   - GoogleID: external identity linkage, set on first OAuth login.
//   - RememberToken: rotated on every password reset to drop old sessions.
//   - Roles: many-to-many role membership.
type User struct {
	ID              string         `json:"id"                gorm:"type:char(36);primaryKey"`
	Name            string         `json:"name"              gorm:"type:varchar(255);not null"`
	Email           string         `json:"email"             gorm:"type:varchar(255);not null;uniqueIndex"`
	PasswordHash    string         `json:"-"                 gorm:"type:varchar(255);not null"`
	EmailVerifiedAt *time.Time     `json:"email_verified_at" gorm:"index"`
	GoogleID        string         `json:"-"                 gorm:"type:varchar(64);index"`
	RememberToken   string         `json:"-"                 gorm:"type:varchar(100)"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `json:"-"                 gorm:"index"`

	Roles []Role `json:"roles,omitempty" gorm:"many2many:user_roles;constraint:OnDelete:CASCADE"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// Verified reports whether the account completed email verification.
func (u *User) Verified() bool { return u.EmailVerifiedAt != nil }

// EmailHash returns the hex SHA-1 of the account email. Signed verification
// links embed this value so a changed email invalidates outstanding links.
func (u *User) EmailHash() string {
	sum := sha1.Sum([]byte(u.Email))
	return hex.EncodeToString(sum[:])
}

// RoleNames returns the role names attached to the user, in load order.
func (u *User) RoleNames() []string {
	out := make([]string, 0, len(u.Roles))
	for _, r := range u.Roles {
		out = append(out, r.Name)
	}
	return out
}

// PermissionNames returns the deduplicated permission names granted through
// the user's roles. The set is attached to bearer tokens at issuance.
func (u *User) PermissionNames() []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, r := range u.Roles {
		for _, p := range r.Permissions {
			if _, ok := seen[p.Name]; ok {
				continue
			}
			seen[p.Name] = struct{}{}
			out = append(out, p.Name)
		}
	}
	return out
}

// HasRole reports whether the user carries the named role.
func (u *User) HasRole(name string) bool {
	for _, r := range u.Roles {
		if r.Name == name {
			return true
		}
	}
	return false
}

// Role groups permissions under a name ("admin", "user").
type Role struct {
	ID        string         `json:"id"         gorm:"type:char(36);primaryKey"`
	Name      string         `json:"name"       gorm:"type:varchar(64);not null;uniqueIndex"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-"          gorm:"index"`

	Permissions []Permission `json:"permissions,omitempty" gorm:"many2many:role_permissions;constraint:OnDelete:CASCADE"`
}

// TableName returns the database table name for Role.
func (Role) TableName() string { return "roles" }

// Permission is a single named capability ("favorites.manage", "users.manage").
type Permission struct {
	ID        string         `json:"id"         gorm:"type:char(36);primaryKey"`
	Name      string         `json:"name"       gorm:"type:varchar(64);not null;uniqueIndex"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-"          gorm:"index"`
}

// TableName returns the database table name for Permission.
func (Permission) TableName() string { return "permissions" }

// Favorite is a movie pinned by a user. TMDB metadata is denormalized at save
// time so the list renders without re-querying the upstream API.
//
// GenreIDs is stored as a JSON array via the GORM serializer so listings can
// be filtered by genre without a join table.
type Favorite struct {
	ID        string         `json:"id"         gorm:"type:char(36);primaryKey"`
	UserID    string         `json:"user_id"    gorm:"type:char(36);not null;index;uniqueIndex:ux_fav_user_movie"`
	TmdbID    int64          `json:"tmdb_id"    gorm:"not null;uniqueIndex:ux_fav_user_movie"`
	Title     string         `json:"title"      gorm:"type:varchar(255);not null"`
	Overview  string         `json:"overview"   gorm:"type:text"`
	Poster    string         `json:"poster"     gorm:"type:varchar(500)"`
	GenreIDs  []int64        `json:"genre_ids"  gorm:"serializer:json"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-"          gorm:"index"`

	User User `json:"-" gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Favorite.
func (Favorite) TableName() string { return "favorites" }

// HasGenre reports whether the favorite carries the given TMDB genre id.
func (f *Favorite) HasGenre(id int64) bool {
	for _, g := range f.GenreIDs {
		if g == id {
			return true
		}
	}
	return false
}

// PasswordReset is the credential store's single-use reset token. Only the
// SHA-256 of the token is persisted; the plaintext travels in the emailed
// link. One row per email: issuing a new token replaces any outstanding one.
type PasswordReset struct {
	Email     string    `json:"email"      gorm:"type:varchar(255);primaryKey"`
	TokenHash string    `json:"-"          gorm:"type:char(64);not null"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for PasswordReset.
func (PasswordReset) TableName() string { return "password_resets" }
