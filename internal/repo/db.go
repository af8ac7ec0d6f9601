// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file contains database bootstrapping helpers for
// SQLite (pure Go driver), schema migrations, and reference-data seeding.
package repo

import (
	"os"
	"path/filepath"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/tbourn/go-movie-backend/internal/domain"
)

// OpenSQLite opens (or creates) a SQLite database and applies PRAGMAs.
// When traced is true the GORM OpenTelemetry plugin is attached so queries
// appear as spans under the request trace.
func OpenSQLite(path string, traced bool) (*gorm.DB, error) {
	// Fail early if parent directory does not exist (instead of sqlite "out of memory (14)" on Windows).
	if dir := filepath.Dir(path); dir != "." {
		if _, err := os.Stat(dir); err != nil {
			return nil, err
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	if traced {
		if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
			return nil, err
		}
	}

	// PRAGMAs
	db.Exec("PRAGMA journal_mode=WAL;")
	db.Exec("PRAGMA synchronous=NORMAL;")
	db.Exec("PRAGMA foreign_keys=ON;")
	db.Exec("PRAGMA busy_timeout=5000;")

	// Pool
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	return db, nil
}

// AutoMigrate creates or updates the schema for all domain models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.User{},
		&domain.Role{},
		&domain.Permission{},
		&domain.Favorite{},
		&domain.PasswordReset{},
	)
}

// SeedDefaults inserts the baseline roles and permissions when missing:
// "user" (favorites.manage) and "admin" (favorites.manage plus the three
// admin resource permissions). Existing rows are left untouched, so the seed
// is safe to run on every start.
func SeedDefaults(db *gorm.DB) error {
	perms := map[string]*domain.Permission{}
	for _, name := range []string{
		"favorites.manage",
		"users.manage",
		"roles.manage",
		"permissions.manage",
	} {
		p := &domain.Permission{ID: uuid.NewString(), Name: name}
		if err := db.Where(domain.Permission{Name: name}).
			Attrs(domain.Permission{ID: p.ID}).
			FirstOrCreate(p).Error; err != nil {
			return err
		}
		perms[name] = p
	}

	seed := []struct {
		role  string
		grant []string
	}{
		{"user", []string{"favorites.manage"}},
		{"admin", []string{"favorites.manage", "users.manage", "roles.manage", "permissions.manage"}},
	}
	for _, s := range seed {
		r := &domain.Role{ID: uuid.NewString(), Name: s.role}
		if err := db.Where(domain.Role{Name: s.role}).
			Attrs(domain.Role{ID: r.ID}).
			FirstOrCreate(r).Error; err != nil {
			return err
		}
		grant := make([]domain.Permission, 0, len(s.grant))
		for _, name := range s.grant {
			grant = append(grant, *perms[name])
		}
		if err := db.Model(r).Association("Permissions").Replace(grant); err != nil {
			return err
		}
	}
	return nil
}
