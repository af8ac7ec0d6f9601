package tmdb

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/text/language"

	"github.com/tbourn/go-movie-backend/internal/config"
	"github.com/tbourn/go-movie-backend/internal/sysutil"
)

// Doer abstracts the HTTP client so tests can stub the upstream.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// supportedLanguages are the TMDB locales this deployment serves. The
// configured TMDB_LANGUAGE is matched against them so a close-but-unknown
// tag ("pt", "en-GB") degrades to the nearest supported locale instead of
// being sent verbatim upstream.
var supportedLanguages = []language.Tag{
	language.MustParse("pt-BR"), // first entry is the fallback
	language.MustParse("en-US"),
	language.MustParse("es-ES"),
}

var languageMatcher = language.NewMatcher(supportedLanguages)

// matchLanguage maps an arbitrary BCP 47 preference to a supported locale.
func matchLanguage(pref string) string {
	pref = sysutil.FirstNonEmpty(pref, supportedLanguages[0].String())
	tag, err := language.Parse(strings.TrimSpace(pref))
	if err != nil {
		return supportedLanguages[0].String()
	}
	_, i, _ := languageMatcher.Match(tag)
	return supportedLanguages[i].String()
}

// Client issues authenticated requests against the TMDB v3 API. Each call is
// bounded by the configured timeout; there is no retry, a failed call
// surfaces immediately.
type Client struct {
	doer     Doer
	baseURL  string
	apiKey   string
	language string
}

// NewClient builds a Client from the application config. The language
// preference is resolved to a supported locale once, at construction.
func NewClient(cfg config.TMDBConfig) *Client {
	return &Client{
		doer:     &http.Client{Timeout: cfg.Timeout},
		baseURL:  cfg.APIURL,
		apiKey:   cfg.APIKey,
		language: matchLanguage(cfg.Language),
	}
}

// NewClientWith builds a Client with an explicit Doer (tests).
func NewClientWith(doer Doer, baseURL, apiKey, lang string) *Client {
	return &Client{doer: doer, baseURL: baseURL, apiKey: apiKey, language: matchLanguage(lang)}
}

// get performs an authenticated GET of path with the given query parameters
// and classifies the response: 429 maps to ErrRateLimited, any other non-2xx
// to UpstreamError. On success the raw body is returned for the proxy to
// validate and transform.
func (c *Client) get(ctx context.Context, path string, q url.Values) ([]byte, error) {
	if strings.TrimSpace(c.apiKey) == "" {
		return nil, ErrNotConfigured
	}

	q.Set("language", c.language)
	u := c.baseURL + path + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.doer.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, ErrRateLimited
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, &UpstreamError{Status: resp.StatusCode}
	}
	return body, nil
}

// IsTransient reports whether the error should be presented as a retryable
// upstream condition rather than a caller mistake.
func IsTransient(err error) bool {
	var ue *UpstreamError
	return errors.Is(err, ErrRateLimited) || errors.As(err, &ue)
}
