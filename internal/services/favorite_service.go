// Package services – FavoriteService
//
// This file implements the FavoriteService, which manages a user's saved
// movies. It enforces ownership and uniqueness per (user, movie) and supports
// filtering the list by genre.
package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/tbourn/go-movie-backend/internal/domain"
	"github.com/tbourn/go-movie-backend/internal/repo"
)

// FavoriteRepo defines the repository contract required by FavoriteService.
type FavoriteRepo interface {
	// CreateFavorite inserts a favorite for the user.
	CreateFavorite(ctx context.Context, db *gorm.DB, userID string, tmdbID int64, title, overview, poster string, genreIDs []int64) (*domain.Favorite, error)

	// ListFavorites returns the user's favorites, optionally filtered by
	// genre id (0 means no filter).
	ListFavorites(ctx context.Context, db *gorm.DB, userID string, genreID int64) ([]domain.Favorite, error)

	// DeleteFavorite removes a favorite owned by the user.
	DeleteFavorite(ctx context.Context, db *gorm.DB, id, userID string) error
}

// FavoriteService provides the per-user favorites list.
type FavoriteService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the favorite repository used by this service.
	Repo FavoriteRepo
}

// NewFavoriteService constructs a FavoriteService.
func NewFavoriteService(db *gorm.DB, r FavoriteRepo) *FavoriteService {
	return &FavoriteService{DB: db, Repo: r}
}

// List returns the user's favorites. genreID filters to movies carrying that
// genre; 0 returns everything.
func (s *FavoriteService) List(ctx context.Context, userID string, genreID int64) ([]domain.Favorite, error) {
	return s.Repo.ListFavorites(ctx, s.DB, userID, genreID)
}

// Add saves a movie to the user's favorites. Adding the same movie twice
// fails with ErrFavoriteExists.
func (s *FavoriteService) Add(ctx context.Context, userID string, tmdbID int64, title, overview, poster string, genreIDs []int64) (*domain.Favorite, error) {
	f, err := s.Repo.CreateFavorite(ctx, s.DB, userID, tmdbID, title, overview, poster, genreIDs)
	if err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, ErrFavoriteExists
		}
		return nil, err
	}
	return f, nil
}

// Remove deletes one of the user's favorites by id. Removing a favorite that
// does not exist or belongs to another user fails with ErrFavoriteNotFound.
func (s *FavoriteService) Remove(ctx context.Context, userID, id string) error {
	if err := s.Repo.DeleteFavorite(ctx, s.DB, id, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrFavoriteNotFound
		}
		return err
	}
	return nil
}
