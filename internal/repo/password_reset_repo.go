// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the single-use password reset token
// store. Only the SHA-256 of a token is persisted; issuing a new token for
// an email replaces any outstanding one, and redeeming a token deletes the
// row so it cannot be replayed.
package repo

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-movie-backend/internal/domain"
)

// ErrResetInvalid is returned when a presented reset token does not match
// the stored hash, does not exist, or has outlived its window.
var ErrResetInvalid = errors.New("reset token invalid or expired")

func hashResetToken(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return hex.EncodeToString(sum[:])
}

// SavePasswordReset stores the hash of a freshly issued reset token for
// email, replacing any previous token.
func SavePasswordReset(ctx context.Context, db *gorm.DB, email, token string) error {
	rec := &domain.PasswordReset{
		Email:     email,
		TokenHash: hashResetToken(token),
		CreatedAt: time.Now().UTC(),
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "email"}},
			DoUpdates: clause.AssignmentColumns([]string{"token_hash", "created_at"}),
		}).
		Create(rec).Error
}

// ConsumePasswordReset validates a presented token for email against the
// stored hash (constant-time) and the ttl window, then deletes the row.
// Returns ErrResetInvalid for any mismatch; the caller cannot distinguish
// "unknown email" from "wrong token" from "expired".
func ConsumePasswordReset(ctx context.Context, db *gorm.DB, email, token string, ttl time.Duration) error {
	var rec domain.PasswordReset
	err := db.WithContext(ctx).First(&rec, "email = ?", email).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrResetInvalid
	}
	if err != nil {
		return err
	}

	presented := hashResetToken(token)
	if subtle.ConstantTimeCompare([]byte(rec.TokenHash), []byte(presented)) != 1 {
		return ErrResetInvalid
	}
	if time.Since(rec.CreatedAt) > ttl {
		// Expired rows are dropped so the table does not accumulate.
		db.WithContext(ctx).Delete(&domain.PasswordReset{}, "email = ?", email)
		return ErrResetInvalid
	}

	return db.WithContext(ctx).Delete(&domain.PasswordReset{}, "email = ?", email).Error
}
