package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-movie-backend/internal/token"
)

type fakeResolver struct {
	records map[string]*token.Record
	err     error
}

func (f *fakeResolver) Lookup(ctx context.Context, plain string) (*token.Record, error) {
	if f.err != nil {
		return nil, f.err
	}
	if rec, ok := f.records[plain]; ok {
		return rec, nil
	}
	return nil, token.ErrNotFound
}

func authRouter(res TokenResolver) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	auth := r.Group("/", BearerAuth(res))
	auth.GET("/me", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": UserIDFrom(c), "bearer": BearerFrom(c)})
	})
	admin := auth.Group("/admin", RequireRole("admin"))
	admin.GET("/users", func(c *gin.Context) { c.Status(http.StatusOK) })
	fav := auth.Group("/favorites", RequirePermission("favorites.manage"))
	fav.POST("", func(c *gin.Context) { c.Status(http.StatusCreated) })
	return r
}

func do(r *gin.Engine, method, path, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestBearerAuth(t *testing.T) {
	res := &fakeResolver{records: map[string]*token.Record{
		"good": {UserID: "u1", Roles: []string{"user"}},
	}}
	r := authRouter(res)

	if w := do(r, http.MethodGet, "/me", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("missing header: want 401, got %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Basic Zm9v")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("non-bearer scheme: want 401, got %d", w.Code)
	}

	if w := do(r, http.MethodGet, "/me", "revoked"); w.Code != http.StatusUnauthorized {
		t.Fatalf("unknown token: want 401, got %d", w.Code)
	}

	w = do(r, http.MethodGet, "/me", "good")
	if w.Code != http.StatusOK {
		t.Fatalf("valid token: want 200, got %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, `"user_id":"u1"`) || !strings.Contains(body, `"bearer":"good"`) {
		t.Fatalf("context not populated: %s", body)
	}
}

func TestBearerAuth_StoreUnavailable(t *testing.T) {
	r := authRouter(&fakeResolver{err: errors.New("redis down")})
	if w := do(r, http.MethodGet, "/me", "good"); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("store failure: want 503, got %d", w.Code)
	}
}

func TestRequireRole(t *testing.T) {
	res := &fakeResolver{records: map[string]*token.Record{
		"admin": {UserID: "u1", Roles: []string{"user", "admin"}},
		"plain": {UserID: "u2", Roles: []string{"user"}},
	}}
	r := authRouter(res)

	if w := do(r, http.MethodGet, "/admin/users", "admin"); w.Code != http.StatusOK {
		t.Fatalf("admin role: want 200, got %d", w.Code)
	}
	if w := do(r, http.MethodGet, "/admin/users", "plain"); w.Code != http.StatusForbidden {
		t.Fatalf("missing role: want 403, got %d", w.Code)
	}
}

func TestRequirePermission_UsesIssuanceSnapshot(t *testing.T) {
	rec := &token.Record{UserID: "u1", Roles: []string{"user"}, Permissions: token.Capabilities{"favorites.manage"}}
	res := &fakeResolver{records: map[string]*token.Record{"cap": rec, "nocap": {UserID: "u2"}}}
	r := authRouter(res)

	if w := do(r, http.MethodPost, "/favorites", "cap"); w.Code != http.StatusCreated {
		t.Fatalf("capability present: want 201, got %d", w.Code)
	}
	if w := do(r, http.MethodPost, "/favorites", "nocap"); w.Code != http.StatusForbidden {
		t.Fatalf("capability absent: want 403, got %d", w.Code)
	}
}
