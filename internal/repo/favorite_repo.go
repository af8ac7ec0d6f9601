// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Favorite
// model.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-movie-backend/internal/domain"
)

// CreateFavorite inserts a favorite owned by userID. Returns ErrDuplicate
// when the user already favorited the movie.
func CreateFavorite(ctx context.Context, db *gorm.DB, userID string, tmdbID int64, title, overview, poster string, genreIDs []int64) (*domain.Favorite, error) {
	f := &domain.Favorite{
		ID:        uuid.NewString(),
		UserID:    userID,
		TmdbID:    tmdbID,
		Title:     title,
		Overview:  overview,
		Poster:    poster,
		GenreIDs:  genreIDs,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(f).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return f, nil
}

// ListFavorites returns all favorites belonging to userID, most recent first.
// When genreID is nonzero, only favorites tagged with that genre are kept;
// the filter runs in process because genre ids live in a JSON column.
func ListFavorites(ctx context.Context, db *gorm.DB, userID string, genreID int64) ([]domain.Favorite, error) {
	var out []domain.Favorite
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	if genreID == 0 {
		return out, nil
	}
	filtered := out[:0]
	for i := range out {
		if out[i].HasGenre(genreID) {
			filtered = append(filtered, out[i])
		}
	}
	return filtered, nil
}

// DeleteFavorite removes a favorite by id, enforcing ownership.
// Returns ErrNotFound when the row does not exist or belongs to another user.
func DeleteFavorite(ctx context.Context, db *gorm.DB, id, userID string) error {
	res := db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&domain.Favorite{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
