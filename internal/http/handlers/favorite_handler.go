package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-movie-backend/internal/domain"
	"github.com/tbourn/go-movie-backend/internal/http/middleware"
	"github.com/tbourn/go-movie-backend/internal/services"
	"github.com/tbourn/go-movie-backend/internal/utils"
)

// FavoriteService defines the favorites operations consumed by HTTP handlers.
type FavoriteService interface {
	List(ctx context.Context, userID string, genreID int64) ([]domain.Favorite, error)
	Add(ctx context.Context, userID string, tmdbID int64, title, overview, poster string, genreIDs []int64) (*domain.Favorite, error)
	Remove(ctx context.Context, userID, id string) error
}

// FavoriteRequest is the JSON payload for saving a movie.
type FavoriteRequest struct {
	TmdbID   int64   `json:"tmdb_id" binding:"required,gt=0" example:"603"`
	Title    string  `json:"title" binding:"required,max=255" example:"The Matrix"`
	Overview string  `json:"overview" example:"A computer hacker learns the truth."`
	Poster   string  `json:"poster" example:"/f89U3ADr1oiB1s9GkdPOEpXUk5H.jpg"`
	GenreIDs []int64 `json:"genre_ids" example:"28,878"`
}

// ListFavorites godoc
// @ID          listFavorites
// @Summary     List the user's saved movies
// @Description Returns the authenticated user's favorites, newest first. genre_id filters to movies carrying that TMDB genre.
// @Tags        Favorites
// @Produce     json
// @Security    BearerAuth
// @Param       genre_id  query  int  false  "Filter by TMDB genre id"
// @Success     200  {object} map[string][]domain.Favorite
// @Failure     401  {object} handlers.ErrorResponse
// @Router      /favorites [get]
func (h *Handlers) ListFavorites(c *gin.Context) {
	genreID := utils.Atoi64Default(c.Query("genre_id"), 0)
	items, err := h.favSvc.List(c.Request.Context(), middleware.UserIDFrom(c), genreID)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not list favorites")
		return
	}
	if items == nil {
		items = []domain.Favorite{}
	}
	ok(c, http.StatusOK, gin.H{"data": items})
}

// AddFavorite godoc
// @ID          addFavorite
// @Summary     Save a movie to favorites
// @Description Saves the movie with its denormalized TMDB metadata. Saving the same movie twice returns 409.
// @Tags        Favorites
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body  handlers.FavoriteRequest  true  "Movie payload"
// @Success     201  {object} map[string]domain.Favorite
// @Failure     409  {object} handlers.ErrorResponse "Already in favorites"
// @Failure     422  {object} handlers.ErrorResponse
// @Router      /favorites [post]
func (h *Handlers) AddFavorite(c *gin.Context) {
	var req FavoriteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusUnprocessableEntity, ErrCodeValidation, "tmdb_id and title are required")
		return
	}

	f, err := h.favSvc.Add(c.Request.Context(), middleware.UserIDFrom(c), req.TmdbID, req.Title, req.Overview, req.Poster, req.GenreIDs)
	if err != nil {
		if errors.Is(err, services.ErrFavoriteExists) {
			fail(c, http.StatusConflict, ErrCodeConflict, "movie is already in your favorites")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not save favorite")
		return
	}
	ok(c, http.StatusCreated, gin.H{"data": f})
}

// RemoveFavorite godoc
// @ID          removeFavorite
// @Summary     Remove a movie from favorites
// @Description Removes a favorite the authenticated user owns. Another user's favorite reads as not found.
// @Tags        Favorites
// @Produce     json
// @Security    BearerAuth
// @Param       id  path  string  true  "Favorite id"
// @Success     200  {object} handlers.MessageResponse
// @Failure     404  {object} handlers.ErrorResponse
// @Router      /favorites/{id} [delete]
func (h *Handlers) RemoveFavorite(c *gin.Context) {
	err := h.favSvc.Remove(c.Request.Context(), middleware.UserIDFrom(c), c.Param("id"))
	if err != nil {
		if errors.Is(err, services.ErrFavoriteNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "favorite not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not remove favorite")
		return
	}
	ok(c, http.StatusOK, MessageResponse{Message: "favorite removed"})
}
