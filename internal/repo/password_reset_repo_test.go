package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tbourn/go-movie-backend/internal/domain"
)

func TestPasswordReset_SingleUse(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if err := SavePasswordReset(ctx, db, "ana@x.com", "token-1"); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := ConsumePasswordReset(ctx, db, "ana@x.com", "token-1", time.Hour); err != nil {
		t.Fatalf("consume: %v", err)
	}
	// The token is gone after redemption.
	if err := ConsumePasswordReset(ctx, db, "ana@x.com", "token-1", time.Hour); !errors.Is(err, ErrResetInvalid) {
		t.Fatalf("replay: want ErrResetInvalid, got %v", err)
	}
}

func TestPasswordReset_WrongTokenOrEmail(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	_ = SavePasswordReset(ctx, db, "ana@x.com", "token-1")

	if err := ConsumePasswordReset(ctx, db, "ana@x.com", "token-2", time.Hour); !errors.Is(err, ErrResetInvalid) {
		t.Fatalf("wrong token: want ErrResetInvalid, got %v", err)
	}
	if err := ConsumePasswordReset(ctx, db, "bob@x.com", "token-1", time.Hour); !errors.Is(err, ErrResetInvalid) {
		t.Fatalf("unknown email: want ErrResetInvalid, got %v", err)
	}
	// A failed attempt does not burn the token.
	if err := ConsumePasswordReset(ctx, db, "ana@x.com", "token-1", time.Hour); err != nil {
		t.Fatalf("valid consume after failed attempts: %v", err)
	}
}

func TestPasswordReset_NewTokenReplacesOld(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	_ = SavePasswordReset(ctx, db, "ana@x.com", "token-1")
	_ = SavePasswordReset(ctx, db, "ana@x.com", "token-2")

	if err := ConsumePasswordReset(ctx, db, "ana@x.com", "token-1", time.Hour); !errors.Is(err, ErrResetInvalid) {
		t.Fatalf("superseded token: want ErrResetInvalid, got %v", err)
	}
	if err := ConsumePasswordReset(ctx, db, "ana@x.com", "token-2", time.Hour); err != nil {
		t.Fatalf("current token: %v", err)
	}
}

func TestPasswordReset_Expiry(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	_ = SavePasswordReset(ctx, db, "ana@x.com", "token-1")

	// Age the row past the window.
	db.Model(&domain.PasswordReset{}).
		Where("email = ?", "ana@x.com").
		Update("created_at", time.Now().Add(-2*time.Hour))

	if err := ConsumePasswordReset(ctx, db, "ana@x.com", "token-1", time.Hour); !errors.Is(err, ErrResetInvalid) {
		t.Fatalf("expired token: want ErrResetInvalid, got %v", err)
	}

	// The expired row was dropped.
	var count int64
	db.Model(&domain.PasswordReset{}).Where("email = ?", "ana@x.com").Count(&count)
	if count != 0 {
		t.Fatalf("expired row should be removed, count = %d", count)
	}
}
