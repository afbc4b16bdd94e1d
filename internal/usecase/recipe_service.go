package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"github.com/recipebox/backend/internal/domain"
	"github.com/recipebox/backend/internal/infrastructure/metrics"
	"github.com/recipebox/backend/internal/logging"
)

const (
	cacheKeyPrefix = "@api_cache:"

	searchPath = "complexSearch"
	randomPath = "random"

	// DefaultSearchTTL is how long a search page is served without refreshing
	DefaultSearchTTL = time.Hour
	// DefaultDetailsTTL is how long a recipe detail is served without refreshing
	DefaultDetailsTTL = 24 * time.Hour
	// DefaultRandomTTL is how long a random pick is served without refreshing
	DefaultRandomTTL = 10 * time.Minute

	DefaultRandomCount = 6
)

// Operation names, used in logs and metrics
const (
	OpSearch  = "search"
	OpDetails = "details"
	OpRandom  = "random"
)

var supportedDiets = []string{
	"Gluten Free", "Ketogenic", "Vegetarian", "Vegan", "Pescetarian",
	"Paleo", "Primal", "Whole30", "Low FODMAP", "Dairy Free",
}

var supportedTypes = []string{
	"main course", "side dish", "dessert", "appetizer", "salad", "bread", "breakfast",
	"soup", "beverage", "sauce", "marinade", "fingerfood", "snack", "drink",
}

// RecipeServiceConfig holds configuration for the recipe service
type RecipeServiceConfig struct {
	SearchTTL  time.Duration
	DetailsTTL time.Duration
	RandomTTL  time.Duration
	Now        func() time.Time
	Logger     zerolog.Logger
	Metrics    *metrics.Metrics
}

// RecipeService answers catalog queries through a read-through TTL cache kept
// in the key-value store. When a refresh fails, an expired entry is served
// instead; when there is nothing cached, an empty result is returned. Catalog
// and storage errors never reach the caller.
//
// Concurrent misses for the same key are not merged: each one fetches and
// overwrites the entry with an equivalent payload.
type RecipeService struct {
	store   domain.KeyValueStore
	catalog domain.CatalogClient
	ttl     map[string]time.Duration
	now     func() time.Time
	logger  zerolog.Logger
	metrics *metrics.Metrics
}

// NewRecipeService creates a new recipe service with dependencies
func NewRecipeService(
	store domain.KeyValueStore,
	catalog domain.CatalogClient,
	config RecipeServiceConfig,
) *RecipeService {
	now := config.Now
	if now == nil {
		now = time.Now
	}

	return &RecipeService{
		store:   store,
		catalog: catalog,
		ttl: map[string]time.Duration{
			OpSearch:  orDefault(config.SearchTTL, DefaultSearchTTL),
			OpDetails: orDefault(config.DetailsTTL, DefaultDetailsTTL),
			OpRandom:  orDefault(config.RandomTTL, DefaultRandomTTL),
		},
		now:     now,
		logger:  logging.Component(config.Logger, "recipes"),
		metrics: config.Metrics,
	}
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}

// SupportedDiets lists the diet labels offered as search filters
func SupportedDiets() []string {
	return append([]string(nil), supportedDiets...)
}

// SupportedTypes lists the recipe type labels offered as search filters
func SupportedTypes() []string {
	return append([]string(nil), supportedTypes...)
}

// Search runs a catalog search with recipe information inlined.
// Unset filters are not sent. The result is never nil.
func (s *RecipeService) Search(ctx context.Context, opts domain.SearchOptions) domain.SearchResult {
	opts = PrepareSearchOptions(opts)

	params := domain.QueryParams{
		"query":                optional(opts.Query),
		"diet":                 optional(opts.Diet),
		"cuisine":              optional(opts.Cuisine),
		"type":                 optional(opts.Type),
		"addRecipeInformation": true,
		"instructionsRequired": false,
		"sort":                 opts.Sort,
		"number":               opts.Limit,
		"offset":               opts.Offset,
	}

	result := domain.SearchResult{Results: []domain.RecipeSummary{}}

	data := s.requestWithCache(ctx, OpSearch, searchPath, params, validSearchPayload)
	if data == nil {
		return result
	}

	var decoded domain.SearchResult
	if err := json.Unmarshal(data, &decoded); err != nil {
		s.logger.Warn().Err(err).Msg("failed to decode search payload")
		return result
	}
	if decoded.Results != nil {
		result.Results = decoded.Results
	}
	result.TotalResults = decoded.TotalResults
	return result
}

// GetDetails returns the full recipe with nutrition inlined, or nil when the
// id is empty or nothing could be fetched or served from cache.
func (s *RecipeService) GetDetails(ctx context.Context, id domain.RecipeID) *domain.RecipeDetail {
	if id.IsZero() {
		return nil
	}

	path := url.PathEscape(id.String()) + "/information"
	params := domain.QueryParams{"includeNutrition": true}

	data := s.requestWithCache(ctx, OpDetails, path, params, validDetailsPayload)
	if data == nil {
		return nil
	}

	var detail domain.RecipeDetail
	if err := json.Unmarshal(data, &detail); err != nil {
		s.logger.Warn().Err(err).Str("id", id.String()).Msg("failed to decode recipe payload")
		return nil
	}
	return &detail
}

// GetRandom returns up to count random recipes, optionally restricted by
// tags (diets, types or cuisines). count <= 0 means DefaultRandomCount.
// The result is never nil.
func (s *RecipeService) GetRandom(ctx context.Context, count int, tags []string) []domain.RecipeSummary {
	if count <= 0 {
		count = DefaultRandomCount
	}

	params := domain.QueryParams{
		"number": count,
		"tags":   optional(joinTags(tags)),
	}

	recipes := []domain.RecipeSummary{}

	data := s.requestWithCache(ctx, OpRandom, randomPath, params, validRandomPayload)
	if data == nil {
		return recipes
	}

	var decoded randomResponse
	if err := json.Unmarshal(data, &decoded); err != nil {
		s.logger.Warn().Err(err).Msg("failed to decode random payload")
		return recipes
	}
	if decoded.Recipes != nil {
		recipes = decoded.Recipes
	}
	return recipes
}

// requestWithCache implements the read-through flow:
// fresh entry -> serve it; otherwise fetch; on success store and serve;
// on failure serve the expired entry if any, else nil.
// valid rejects well-formed JSON of the wrong shape, which counts as a failure.
func (s *RecipeService) requestWithCache(
	ctx context.Context,
	operation string,
	path string,
	params domain.QueryParams,
	valid func([]byte) bool,
) []byte {
	key := CacheKey(path, params)
	ttl := s.ttl[operation]
	log := s.logger.With().Str("op", operation).Str("key", key).Logger()

	entry, cached := s.readEntry(ctx, key)
	if cached && entry.Age(s.now()) < ttl {
		log.Debug().Msg("cache fresh")
		s.metrics.ObserveCacheLookup(operation, metrics.OutcomeFresh)
		return entry.Data
	}

	payload, err := s.catalog.Fetch(ctx, path, params)
	if err == nil && !valid(payload) {
		err = domain.ErrMalformedResponse
	}
	if err == nil {
		s.writeEntry(ctx, key, payload)
		log.Debug().Msg("cache refreshed")
		s.metrics.ObserveCacheLookup(operation, metrics.OutcomeRefreshed)
		return payload
	}

	if cached {
		log.Warn().Err(err).Dur("age", entry.Age(s.now())).Msg("catalog unavailable, serving stale cache")
		s.metrics.ObserveCacheLookup(operation, metrics.OutcomeStale)
		return entry.Data
	}

	log.Warn().Err(err).Msg("catalog unavailable and nothing cached")
	s.metrics.ObserveCacheLookup(operation, metrics.OutcomeEmpty)
	return nil
}

// readEntry loads and parses the cache entry for key. Missing, unreadable
// and unparseable entries all count as absent.
func (s *RecipeService) readEntry(ctx context.Context, key string) (domain.CacheEntry, bool) {
	raw, err := s.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, domain.ErrKeyNotFound) {
			s.logger.Warn().Err(err).Str("key", key).Msg("failed to read cache entry")
		}
		return domain.CacheEntry{}, false
	}

	var entry domain.CacheEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil || len(entry.Data) == 0 {
		s.logger.Warn().Err(err).Str("key", key).Msg("discarding unparseable cache entry")
		return domain.CacheEntry{}, false
	}
	return entry, true
}

func (s *RecipeService) writeEntry(ctx context.Context, key string, payload []byte) {
	raw, err := json.Marshal(domain.NewCacheEntry(s.now(), payload))
	if err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("failed to encode cache entry")
		return
	}
	if err := s.store.Set(ctx, key, string(raw)); err != nil {
		// Log but don't fail if caching fails
		s.logger.Warn().Err(err).Str("key", key).Msg("failed to write cache entry")
	}
}

// CacheKey derives the storage key of a request. Parameters are sorted by
// name and nil values dropped, so equal parameter sets always share a key.
// Format: "@api_cache:{path}?{k1=v1&k2=v2}"
func CacheKey(path string, params domain.QueryParams) string {
	keys := make([]string, 0, len(params))
	for k, v := range params {
		if v != nil {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	values := params.Values()
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, encodeComponent(k)+"="+encodeComponent(values.Get(k)))
	}
	return cacheKeyPrefix + path + "?" + strings.Join(pairs, "&")
}

// uriUnreserved restores the marks encodeURIComponent leaves as-is but
// url.QueryEscape escapes. A literal '+' is already %2B at this point.
var uriUnreserved = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)

// encodeComponent percent-encodes like encodeURIComponent
func encodeComponent(s string) string {
	return uriUnreserved.Replace(url.QueryEscape(s))
}

// optional maps the empty string to an unset parameter
func optional(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func joinTags(tags []string) string {
	cleaned := make([]string, 0, len(tags))
	for _, tag := range tags {
		if tag = strings.TrimSpace(tag); tag != "" {
			cleaned = append(cleaned, tag)
		}
	}
	return strings.Join(cleaned, ",")
}

type randomResponse struct {
	Recipes []domain.RecipeSummary `json:"recipes"`
}

// Payload checks run before anything is cached. A failing payload is treated
// like a failed fetch.
var (
	validSearchPayload  = allOf(hasArray("results"), decodesAs[domain.SearchResult])
	validDetailsPayload = allOf(isRecipeObject, decodesAs[domain.RecipeDetail])
	validRandomPayload  = allOf(hasArray("recipes"), decodesAs[randomResponse])
)

// allOf accepts a payload only when every check does
func allOf(checks ...func([]byte) bool) func([]byte) bool {
	return func(data []byte) bool {
		for _, check := range checks {
			if !check(data) {
				return false
			}
		}
		return true
	}
}

// decodesAs reports whether data unmarshals into T, so a payload with the
// right outline but mistyped fields is never cached.
func decodesAs[T any](data []byte) bool {
	var v T
	return json.Unmarshal(data, &v) == nil
}

func hasArray(field string) func([]byte) bool {
	return func(data []byte) bool {
		return gjson.GetBytes(data, field).IsArray()
	}
}

func isRecipeObject(data []byte) bool {
	recipe := gjson.ParseBytes(data)
	return recipe.IsObject() && recipe.Get("id").Exists()
}
