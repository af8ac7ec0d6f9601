// Package services – Google OAuth provider
//
// Adapts golang.org/x/oauth2 to the narrow GoogleProvider contract the
// AuthService needs: produce a consent URL and turn a callback code into a
// profile. The exchange is stateless; the SPA carries the round trip.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/tbourn/go-movie-backend/internal/config"
)

const googleUserinfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

// GoogleUser is the subset of the provider profile the auth flow consumes.
type GoogleUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// GoogleProvider resolves the OAuth redirect and callback legs.
type GoogleProvider interface {
	// AuthURL returns the provider consent URL for the given state value.
	AuthURL(state string) string

	// FetchUser exchanges the callback code and fetches the profile.
	FetchUser(ctx context.Context, code string) (*GoogleUser, error)
}

// googleOAuth is the production GoogleProvider backed by x/oauth2.
type googleOAuth struct {
	cfg         *oauth2.Config
	userinfoURL string
}

// NewGoogleProvider builds a GoogleProvider from configuration. Returns nil
// when the client credentials are not set, which the AuthService treats as
// Google login being unavailable.
func NewGoogleProvider(cfg config.GoogleConfig) GoogleProvider {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil
	}
	return &googleOAuth{
		cfg: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
		userinfoURL: googleUserinfoURL,
	}
}

// AuthURL implements GoogleProvider.
func (g *googleOAuth) AuthURL(state string) string {
	return g.cfg.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// FetchUser implements GoogleProvider.
func (g *googleOAuth) FetchUser(ctx context.Context, code string) (*GoogleUser, error) {
	tok, err := g.cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("google code exchange: %w", err)
	}

	client := g.cfg.Client(ctx, tok)
	resp, err := client.Get(g.userinfoURL)
	if err != nil {
		return nil, fmt.Errorf("google userinfo: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("google userinfo: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	var gu GoogleUser
	if err := json.Unmarshal(body, &gu); err != nil {
		return nil, fmt.Errorf("google userinfo: %w", err)
	}
	return &gu, nil
}
