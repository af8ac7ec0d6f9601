// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// CORS, security headers, authentication, and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Production-ready CORS and security header posture
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tbourn/go-movie-backend/internal/cache"
	"github.com/tbourn/go-movie-backend/internal/config"
	"github.com/tbourn/go-movie-backend/internal/domain"
	"github.com/tbourn/go-movie-backend/internal/http/handlers"
	"github.com/tbourn/go-movie-backend/internal/http/middleware"
	"github.com/tbourn/go-movie-backend/internal/mail"
	"github.com/tbourn/go-movie-backend/internal/repo"
	"github.com/tbourn/go-movie-backend/internal/services"
	"github.com/tbourn/go-movie-backend/internal/signedlink"
	"github.com/tbourn/go-movie-backend/internal/token"
	"github.com/tbourn/go-movie-backend/internal/tmdb"
)

// authRepoShim adapts the repository free functions to the services.AuthRepo
// interface expected by the AuthService. This keeps services decoupled from
// the concrete repo package while reusing existing functions.
type authRepoShim struct{}

func (authRepoShim) CreateUser(ctx context.Context, db *gorm.DB, name, email, passwordHash string) (*domain.User, error) {
	return repo.CreateUser(ctx, db, name, email, passwordHash)
}

func (authRepoShim) GetUser(ctx context.Context, db *gorm.DB, id string) (*domain.User, error) {
	return repo.GetUser(ctx, db, id)
}

func (authRepoShim) GetUserByEmail(ctx context.Context, db *gorm.DB, email string) (*domain.User, error) {
	return repo.GetUserByEmail(ctx, db, email)
}

func (authRepoShim) MarkEmailVerified(ctx context.Context, db *gorm.DB, id string) error {
	return repo.MarkEmailVerified(ctx, db, id)
}

func (authRepoShim) SetPassword(ctx context.Context, db *gorm.DB, id, passwordHash, rememberToken string) error {
	return repo.SetPassword(ctx, db, id, passwordHash, rememberToken)
}

func (authRepoShim) LinkGoogle(ctx context.Context, db *gorm.DB, id, googleID string) error {
	return repo.LinkGoogle(ctx, db, id, googleID)
}

func (authRepoShim) AssignRole(ctx context.Context, db *gorm.DB, userID, roleName string) error {
	return repo.AssignRole(ctx, db, userID, roleName)
}

func (authRepoShim) SavePasswordReset(ctx context.Context, db *gorm.DB, email, tok string) error {
	return repo.SavePasswordReset(ctx, db, email, tok)
}

func (authRepoShim) ConsumePasswordReset(ctx context.Context, db *gorm.DB, email, tok string, ttl time.Duration) error {
	return repo.ConsumePasswordReset(ctx, db, email, tok, ttl)
}

// favoriteRepoShim adapts the repository free functions to
// services.FavoriteRepo.
type favoriteRepoShim struct{}

func (favoriteRepoShim) CreateFavorite(ctx context.Context, db *gorm.DB, userID string, tmdbID int64, title, overview, poster string, genreIDs []int64) (*domain.Favorite, error) {
	return repo.CreateFavorite(ctx, db, userID, tmdbID, title, overview, poster, genreIDs)
}

func (favoriteRepoShim) ListFavorites(ctx context.Context, db *gorm.DB, userID string, genreID int64) ([]domain.Favorite, error) {
	return repo.ListFavorites(ctx, db, userID, genreID)
}

func (favoriteRepoShim) DeleteFavorite(ctx context.Context, db *gorm.DB, id, userID string) error {
	return repo.DeleteFavorite(ctx, db, id, userID)
}

// adminRepoShim adapts the repository free functions to services.AdminRepo.
type adminRepoShim struct{}

func (adminRepoShim) ListUsersPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.User, error) {
	return repo.ListUsersPage(ctx, db, offset, limit)
}

func (adminRepoShim) CountUsers(ctx context.Context, db *gorm.DB) (int64, error) {
	return repo.CountUsers(ctx, db)
}

func (adminRepoShim) GetUser(ctx context.Context, db *gorm.DB, id string) (*domain.User, error) {
	return repo.GetUser(ctx, db, id)
}

func (adminRepoShim) UpdateUser(ctx context.Context, db *gorm.DB, id string, updates map[string]any) error {
	return repo.UpdateUser(ctx, db, id, updates)
}

func (adminRepoShim) DeleteUser(ctx context.Context, db *gorm.DB, id string) error {
	return repo.DeleteUser(ctx, db, id)
}

func (adminRepoShim) ReplaceRoles(ctx context.Context, db *gorm.DB, userID string, roleNames []string) error {
	return repo.ReplaceRoles(ctx, db, userID, roleNames)
}

func (adminRepoShim) CreateRole(ctx context.Context, db *gorm.DB, name string, permissionNames []string) (*domain.Role, error) {
	return repo.CreateRole(ctx, db, name, permissionNames)
}

func (adminRepoShim) ListRoles(ctx context.Context, db *gorm.DB) ([]domain.Role, error) {
	return repo.ListRoles(ctx, db)
}

func (adminRepoShim) GetRole(ctx context.Context, db *gorm.DB, id string) (*domain.Role, error) {
	return repo.GetRole(ctx, db, id)
}

func (adminRepoShim) UpdateRolePermissions(ctx context.Context, db *gorm.DB, id, name string, permissionNames []string) error {
	return repo.UpdateRolePermissions(ctx, db, id, name, permissionNames)
}

func (adminRepoShim) DeleteRole(ctx context.Context, db *gorm.DB, id string) error {
	return repo.DeleteRole(ctx, db, id)
}

func (adminRepoShim) CreatePermission(ctx context.Context, db *gorm.DB, name string) (*domain.Permission, error) {
	return repo.CreatePermission(ctx, db, name)
}

func (adminRepoShim) ListPermissions(ctx context.Context, db *gorm.DB) ([]domain.Permission, error) {
	return repo.ListPermissions(ctx, db)
}

func (adminRepoShim) DeletePermission(ctx context.Context, db *gorm.DB, id string) error {
	return repo.DeletePermission(ctx, db, id)
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. It configures observability (tracing, metrics), rate limiting,
// CORS and security headers, health and metrics endpoints, and then mounts
// the public and bearer-protected API groups under the configured base path.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Gzip compression
//  7. Metrics
//  8. Rate limiter (per user/IP)
//  9. CORS and Security headers
func RegisterRoutes(r *gin.Engine, db *gorm.DB, tokens *token.Store, kv cache.Cache, mailer mail.Mailer, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction (bearer tokens never hit the logs)
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{
			"Authorization",
		},
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (1 MiB)
	r.Use(limitBody(1 << 20))

	// 6) Compress list-shaped payloads (movie documents are large)
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	// 7) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 8) Token-bucket rate limiter per user/IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())
	r.Use(rl.Handler())

	// 9) CORS posture (safe defaults: allow all if none configured)
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header (helps tests and simple health checks).
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		// Echo ACAO with the request Origin when it is in the allowlist (in addition to gin-contrib/cors).
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// Swagger UI (opt-in)
	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Dependency injection: services ← repo/db/collaborators
	authSvc := services.NewAuthService(db, authRepoShim{}, signedlink.New(cfg.SecretKey), tokens, mailer)
	authSvc.Google = services.NewGoogleProvider(cfg.Google)
	authSvc.FrontendURL = cfg.FrontendURL
	authSvc.DevMode = !cfg.IsProduction()

	favSvc := services.NewFavoriteService(db, favoriteRepoShim{})
	adminSvc := services.NewAdminService(db, adminRepoShim{})
	proxy := tmdb.NewProxy(tmdb.NewClient(cfg.TMDB), kv, cfg.TMDB)

	h := handlers.New(authSvc, adminSvc, favSvc, adminSvc, proxy, cfg.FrontendURL)

	base := groupWithPrefix(r, cfg.APIBasePath)

	// Public endpoints: registration, login, link redemption, Google OAuth
	{
		base.POST("/register", h.Register)
		base.POST("/login", h.Login)
		base.GET("/email/verify", h.VerifyEmail)
		base.POST("/email/resend", h.ResendVerification)
		base.POST("/forgot-password", h.ForgotPassword)
		base.POST("/reset-password", h.ResetPassword)
		base.GET("/auth/google/redirect", h.GoogleRedirect)
		base.GET("/auth/google/callback", h.GoogleCallback)

		// Movie catalog proxy (read-only, cache-backed)
		base.GET("/tmdb/search", h.SearchMovies)
		base.GET("/tmdb/discover", h.DiscoverMovies)
		base.GET("/tmdb/details", h.MovieDetails)
		base.GET("/tmdb/genres", h.MovieGenres)
	}

	// Bearer-protected endpoints
	authed := base.Group("")
	authed.Use(middleware.BearerAuth(tokens))
	{
		authed.POST("/logout", h.Logout)
		authed.GET("/user", h.CurrentUser)
	}

	// Favorites require the capability granted to every seeded role; a role
	// stripped of it loses the surface without a schema change.
	fav := authed.Group("")
	fav.Use(middleware.RequirePermission("favorites.manage"))
	{
		fav.GET("/favorites", h.ListFavorites)
		fav.POST("/favorites", h.AddFavorite)
		fav.DELETE("/favorites/:id", h.RemoveFavorite)
	}

	// Admin endpoints require the admin role on the token snapshot, and each
	// resource additionally checks its own capability.
	admin := authed.Group("")
	admin.Use(middleware.RequireRole("admin"))
	{
		users := admin.Group("", middleware.RequirePermission("users.manage"))
		users.GET("/users", h.AdminListUsers)
		users.GET("/users/:id", h.AdminGetUser)
		users.PUT("/users/:id", h.AdminUpdateUser)
		users.DELETE("/users/:id", h.AdminDeleteUser)

		roles := admin.Group("", middleware.RequirePermission("roles.manage"))
		roles.GET("/roles", h.AdminListRoles)
		roles.POST("/roles", h.AdminCreateRole)
		roles.GET("/roles/:id", h.AdminGetRole)
		roles.PUT("/roles/:id", h.AdminUpdateRole)
		roles.DELETE("/roles/:id", h.AdminDeleteRole)

		perms := admin.Group("", middleware.RequirePermission("permissions.manage"))
		perms.GET("/permissions", h.AdminListPermissions)
		perms.POST("/permissions", h.AdminCreatePermission)
		perms.DELETE("/permissions/:id", h.AdminDeletePermission)
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
