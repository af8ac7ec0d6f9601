// Movie-search cache proxy.
//
// The proxy answers search/discover/details/genre queries against TMDB while
// guaranteeing callers never observe a cached failure: nothing is written to
// the cache unless the upstream document parsed and validated, and every read
// (hit or fresh) is re-validated before it is served. A cached document that
// turns out to be internally inconsistent is evicted so the next call
// re-fetches (self-healing invalidation).
package tmdb

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-movie-backend/internal/cache"
	"github.com/tbourn/go-movie-backend/internal/config"
)

// pageSize caps how many results a single page carries. Upstream pages hold
// 20; capping to 15 bounds payload size and keeps pagination semantics under
// our control, at the cost of recomputing total_pages from the capped count.
const pageSize = 15

const (
	maxQueryLen = 255
	maxPage     = 1000
)

// Allowed discover sort orders. An unknown sort_by silently falls back to
// the default rather than rejecting the request.
const defaultSort = "popularity.desc"

var allowedSorts = map[string]struct{}{
	"popularity.asc":    {},
	"popularity.desc":   {},
	"release_date.asc":  {},
	"release_date.desc": {},
	"vote_average.asc":  {},
	"vote_average.desc": {},
	"vote_count.asc":    {},
	"vote_count.desc":   {},
}

// discoverFilters are the upstream filter parameters the proxy forwards.
var discoverFilters = map[string]struct{}{
	"with_genres":          {},
	"year":                 {},
	"primary_release_year": {},
}

// Document is the list-shaped payload served for search and discover calls.
type Document struct {
	Page         int               `json:"page"`
	Results      []json.RawMessage `json:"results"`
	TotalPages   int               `json:"total_pages"`
	TotalResults int               `json:"total_results"`
}

// Normalizer rewrites a raw query before it is hashed into a cache key and
// sent upstream. The default trims and collapses internal whitespace and
// nothing else: the upstream already performs fuzzy matching, so heavier
// normalization (accent stripping, casefolding) buys nothing.
type Normalizer func(string) string

var whitespaceRE = regexp.MustCompile(`\s+`)

// NormalizeQuery is the default Normalizer.
func NormalizeQuery(s string) string {
	return whitespaceRE.ReplaceAllString(strings.TrimSpace(s), " ")
}

// Proxy serves movie metadata queries through a validated, time-boxed cache.
type Proxy struct {
	Client    *Client
	Cache     cache.Cache
	Normalize Normalizer

	CacheTTL time.Duration // search / discover / details
	GenreTTL time.Duration // genre list (near-static)
}

// NewProxy wires a Proxy with the default normalization policy and the
// configured TTLs.
func NewProxy(client *Client, kv cache.Cache, cfg config.TMDBConfig) *Proxy {
	return &Proxy{
		Client:    client,
		Cache:     kv,
		Normalize: NormalizeQuery,
		CacheTTL:  cfg.CacheTTL,
		GenreTTL:  cfg.GenreTTL,
	}
}

// --- cache keys -------------------------------------------------------------

func md5hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

func searchKey(normalized string, page int) string {
	return fmt.Sprintf("tmdb:search:%s:page:%d", md5hex(normalized), page)
}

func discoverKey(canonical string, page int) string {
	return fmt.Sprintf("tmdb:discover:%s:page:%d", md5hex(canonical), page)
}

func detailsKey(id int64) string { return fmt.Sprintf("tmdb:details:%d", id) }

const genresKey = "tmdb:genres"

// --- operations -------------------------------------------------------------

// Search answers a movie title search. The query must be non-empty and at
// most 255 characters; page must be in [1, 1000].
func (p *Proxy) Search(ctx context.Context, query string, page int) (*Document, error) {
	q := p.Normalize(query)
	if q == "" || len(q) > maxQueryLen {
		return nil, ErrInvalidQuery
	}
	if page < 1 || page > maxPage {
		return nil, ErrInvalidPage
	}

	key := searchKey(q, page)
	if doc, err := p.cachedDocument(ctx, key); doc != nil || err != nil {
		return doc, err
	}

	qs := url.Values{}
	qs.Set("query", q)
	qs.Set("page", strconv.Itoa(page))
	qs.Set("include_adult", "false")

	return p.fetchDocument(ctx, "/search/movie", qs, key)
}

// Discover answers a filtered movie listing. Unknown filter keys are dropped
// and an unknown sortBy falls back to the default order.
func (p *Proxy) Discover(ctx context.Context, filters map[string]string, page int, sortBy string) (*Document, error) {
	if page < 1 || page > maxPage {
		return nil, ErrInvalidPage
	}
	if _, ok := allowedSorts[sortBy]; !ok {
		sortBy = defaultSort
	}

	qs := url.Values{}
	keep := make([]string, 0, len(filters))
	for k, v := range filters {
		if _, ok := discoverFilters[k]; !ok || strings.TrimSpace(v) == "" {
			continue
		}
		qs.Set(k, v)
		keep = append(keep, k+"="+v)
	}
	sort.Strings(keep)
	canonical := strings.Join(keep, "&") + "|sort=" + sortBy

	key := discoverKey(canonical, page)
	if doc, err := p.cachedDocument(ctx, key); doc != nil || err != nil {
		return doc, err
	}

	qs.Set("sort_by", sortBy)
	qs.Set("page", strconv.Itoa(page))
	qs.Set("include_adult", "false")

	return p.fetchDocument(ctx, "/discover/movie", qs, key)
}

// Details answers a single movie lookup by TMDB id.
func (p *Proxy) Details(ctx context.Context, id int64) (json.RawMessage, error) {
	if id <= 0 {
		return nil, ErrInvalidQuery
	}
	key := detailsKey(id)

	if body, _ := p.Cache.Get(ctx, key); body != nil {
		if hasField(body, "id") {
			return json.RawMessage(body), nil
		}
		// Poisoned entry: evict and report, next call re-fetches.
		p.forget(ctx, key)
		return nil, &UpstreamError{Status: http.StatusBadGateway}
	}

	body, err := p.Client.get(ctx, "/movie/"+strconv.FormatInt(id, 10), url.Values{})
	if err != nil {
		return nil, err
	}
	if !hasField(body, "id") || !hasField(body, "title") {
		return nil, ErrMalformed
	}
	p.store(ctx, key, body, p.CacheTTL)
	return json.RawMessage(body), nil
}

// Genres answers the genre reference list, cached for a day.
func (p *Proxy) Genres(ctx context.Context) (json.RawMessage, error) {
	if body, _ := p.Cache.Get(ctx, genresKey); body != nil {
		if hasField(body, "genres") {
			return json.RawMessage(body), nil
		}
		p.forget(ctx, genresKey)
		return nil, &UpstreamError{Status: http.StatusBadGateway}
	}

	body, err := p.Client.get(ctx, "/genre/movie/list", url.Values{})
	if err != nil {
		return nil, err
	}
	if !hasField(body, "genres") {
		return nil, ErrMalformed
	}
	p.store(ctx, genresKey, body, p.GenreTTL)
	return json.RawMessage(body), nil
}

// --- internals --------------------------------------------------------------

// cachedDocument serves a validated hit. It returns (nil, nil) on a miss.
// Two inconsistency classes self-heal here:
//   - a document without a results field is evicted and this call reports an
//     upstream error; the caller's next request repopulates the entry;
//   - a document with zero results but a nonzero total count (the signature
//     of an upstream hiccup cached before validation existed) is evicted but
//     still served this once; only the next call pays for the re-fetch.
func (p *Proxy) cachedDocument(ctx context.Context, key string) (*Document, error) {
	body, err := p.Cache.Get(ctx, key)
	if err != nil || body == nil {
		return nil, nil
	}
	if !hasField(body, "results") {
		p.forget(ctx, key)
		return nil, &UpstreamError{Status: http.StatusBadGateway}
	}
	var doc Document
	if err := json.Unmarshal(body, &doc); err != nil {
		p.forget(ctx, key)
		return nil, &UpstreamError{Status: http.StatusBadGateway}
	}
	if len(doc.Results) == 0 && doc.TotalResults > 0 {
		p.forget(ctx, key)
	}
	return &doc, nil
}

// fetchDocument performs the upstream call for a list endpoint, validates and
// transforms the response, and caches the transformed document. Any error on
// this path leaves the cache untouched for key.
func (p *Proxy) fetchDocument(ctx context.Context, path string, qs url.Values, key string) (*Document, error) {
	body, err := p.Client.get(ctx, path, qs)
	if err != nil {
		return nil, err
	}

	if !hasField(body, "results") {
		return nil, ErrMalformed
	}
	var doc Document
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, ErrMalformed
	}

	// Cap the page and recompute pagination from the capped size.
	if len(doc.Results) > pageSize {
		doc.Results = doc.Results[:pageSize]
	}
	doc.TotalPages = (doc.TotalResults + pageSize - 1) / pageSize

	// Upstream inconsistency (typically transient rate limiting): serve the
	// document but do not let it poison the cache.
	if len(doc.Results) == 0 && doc.TotalResults > 0 {
		return &doc, nil
	}

	if out, err := json.Marshal(&doc); err == nil {
		p.store(ctx, key, out, p.CacheTTL)
	}
	return &doc, nil
}

// store writes a validated document; a failed write is logged and tolerated.
func (p *Proxy) store(ctx context.Context, key string, body []byte, ttl time.Duration) {
	if err := p.Cache.Set(ctx, key, body, ttl); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("tmdb cache write failed")
	}
}

// forget evicts best-effort; a failed eviction only delays self-repair.
func (p *Proxy) forget(ctx context.Context, key string) {
	if err := p.Cache.Del(ctx, key); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("tmdb cache evict failed")
	}
}

// hasField reports whether the JSON object body carries a top-level field.
func hasField(body []byte, field string) bool {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(body, &m); err != nil {
		return false
	}
	_, ok := m[field]
	return ok
}
