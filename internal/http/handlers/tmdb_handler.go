package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-movie-backend/internal/tmdb"
	"github.com/tbourn/go-movie-backend/internal/utils"
)

// MovieProxy is the cached movie-metadata lookup consumed by the /tmdb
// endpoints.
type MovieProxy interface {
	Search(ctx context.Context, query string, page int) (*tmdb.Document, error)
	Discover(ctx context.Context, filters map[string]string, page int, sortBy string) (*tmdb.Document, error)
	Details(ctx context.Context, id int64) (json.RawMessage, error)
	Genres(ctx context.Context) (json.RawMessage, error)
}

// SearchMovies godoc
// @ID          searchMovies
// @Summary     Search movies by title
// @Description Proxies a title search to TMDB through the validated cache. Results are capped per page.
// @Tags        Movies
// @Produce     json
// @Param       query  query  string  true   "Title to search for (1-255 chars)"
// @Param       page   query  int     false  "Page (1-1000)"  default(1)
// @Success     200  {object} tmdb.Document
// @Failure     422  {object} handlers.ErrorResponse
// @Failure     429  {object} map[string]string
// @Failure     500  {object} map[string]string
// @Router      /tmdb/search [get]
func (h *Handlers) SearchMovies(c *gin.Context) {
	page := utils.AtoiDefault(c.Query("page"), 1)
	doc, err := h.proxy.Search(c.Request.Context(), c.Query("query"), page)
	if err != nil {
		h.proxyError(c, err)
		return
	}
	ok(c, http.StatusOK, doc)
}

// DiscoverMovies godoc
// @ID          discoverMovies
// @Summary     Browse movies with filters
// @Description Filtered movie listing. Unknown filters are dropped and an unknown sort_by falls back to popularity.desc.
// @Tags        Movies
// @Produce     json
// @Param       with_genres           query  string  false  "Comma-separated genre ids"
// @Param       year                  query  int     false  "Release year"
// @Param       primary_release_year  query  int     false  "Primary release year"
// @Param       sort_by               query  string  false  "Sort order"  default(popularity.desc)
// @Param       page                  query  int     false  "Page (1-1000)"  default(1)
// @Success     200  {object} tmdb.Document
// @Failure     422  {object} handlers.ErrorResponse
// @Failure     429  {object} map[string]string
// @Failure     500  {object} map[string]string
// @Router      /tmdb/discover [get]
func (h *Handlers) DiscoverMovies(c *gin.Context) {
	page := utils.AtoiDefault(c.Query("page"), 1)
	filters := map[string]string{
		"with_genres":          c.Query("with_genres"),
		"year":                 c.Query("year"),
		"primary_release_year": c.Query("primary_release_year"),
	}
	doc, err := h.proxy.Discover(c.Request.Context(), filters, page, c.Query("sort_by"))
	if err != nil {
		h.proxyError(c, err)
		return
	}
	ok(c, http.StatusOK, doc)
}

// MovieDetails godoc
// @ID          movieDetails
// @Summary     Get one movie by TMDB id
// @Tags        Movies
// @Produce     json
// @Param       id  query  int  true  "TMDB movie id"
// @Success     200  {object} map[string]any
// @Failure     422  {object} handlers.ErrorResponse
// @Failure     429  {object} map[string]string
// @Failure     500  {object} map[string]string
// @Router      /tmdb/details [get]
func (h *Handlers) MovieDetails(c *gin.Context) {
	id, err := strconv.ParseInt(c.Query("id"), 10, 64)
	if err != nil || id <= 0 {
		fail(c, http.StatusUnprocessableEntity, ErrCodeValidation, "id must be a positive integer")
		return
	}
	body, err := h.proxy.Details(c.Request.Context(), id)
	if err != nil {
		h.proxyError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", body)
}

// MovieGenres godoc
// @ID          movieGenres
// @Summary     List movie genres
// @Tags        Movies
// @Produce     json
// @Success     200  {object} map[string]any
// @Failure     429  {object} map[string]string
// @Failure     500  {object} map[string]string
// @Router      /tmdb/genres [get]
func (h *Handlers) MovieGenres(c *gin.Context) {
	body, err := h.proxy.Genres(c.Request.Context())
	if err != nil {
		h.proxyError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", body)
}

// proxyError maps proxy failures onto HTTP responses. Rate limiting and
// upstream failures use a flat {error, message} body the SPA renders
// directly; input validation uses the standard envelope.
func (h *Handlers) proxyError(c *gin.Context, err error) {
	var up *tmdb.UpstreamError
	switch {
	case errors.Is(err, tmdb.ErrInvalidQuery):
		fail(c, http.StatusUnprocessableEntity, ErrCodeValidation, tmdb.ErrInvalidQuery.Error())
	case errors.Is(err, tmdb.ErrInvalidPage):
		fail(c, http.StatusUnprocessableEntity, ErrCodeValidation, tmdb.ErrInvalidPage.Error())
	case errors.Is(err, tmdb.ErrRateLimited):
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":   ErrCodeRateLimited,
			"message": "movie service rate limit reached, try again shortly",
		})
	case errors.Is(err, tmdb.ErrNotConfigured):
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   ErrCodeNotConfigured,
			"message": "movie service credentials not configured",
		})
	case errors.As(err, &up), errors.Is(err, tmdb.ErrMalformed):
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   ErrCodeUpstreamError,
			"message": "movie service is unavailable",
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   ErrCodeInternal,
			"message": "movie lookup failed",
		})
	}
}
