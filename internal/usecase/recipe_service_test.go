package usecase

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recipebox/backend/internal/domain"
	"github.com/recipebox/backend/internal/infrastructure/metrics"
)

const (
	searchPayload  = `{"results":[{"id":715538,"title":"Bruschetta","readyInMinutes":15}],"totalResults":42}`
	detailsPayload = `{"id":715538,"title":"Bruschetta","servings":4,"instructions":"Toast."}`
	randomPayload  = `{"recipes":[{"id":1,"title":"Soup"},{"id":2,"title":"Salad"}]}`

	defaultSearchKey = "@api_cache:complexSearch?addRecipeInformation=true&instructionsRequired=false&number=20&offset=0&sort=popularity"
)

type testClock struct{ now time.Time }

func (c *testClock) Now() time.Time          { return c.now }
func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestRecipeService(store *fakeStore, catalog *fakeCatalog) (*RecipeService, *testClock, *metrics.Metrics) {
	clock := &testClock{now: time.UnixMilli(1_700_000_000_000)}
	m := metrics.New()
	svc := NewRecipeService(store, catalog, RecipeServiceConfig{
		Now:     clock.Now,
		Logger:  zerolog.Nop(),
		Metrics: m,
	})
	return svc, clock, m
}

func TestCacheKey(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		params domain.QueryParams
		want   string
	}{
		{
			name:   "sorted and encoded",
			path:   "complexSearch",
			params: domain.QueryParams{"query": "pasta bake", "number": 20, "diet": nil},
			want:   "@api_cache:complexSearch?number=20&query=pasta%20bake",
		},
		{
			name:   "booleans and reserved characters",
			path:   "random",
			params: domain.QueryParams{"tags": "vegan,dessert", "limitLicense": false},
			want:   "@api_cache:random?limitLicense=false&tags=vegan%2Cdessert",
		},
		{
			name:   "marks left unescaped",
			path:   "complexSearch",
			params: domain.QueryParams{"query": "mac (easy)! 'n' cheese*"},
			want:   "@api_cache:complexSearch?query=mac%20(easy)!%20'n'%20cheese*",
		},
		{
			name:   "literal plus",
			path:   "complexSearch",
			params: domain.QueryParams{"query": "salt+pepper"},
			want:   "@api_cache:complexSearch?query=salt%2Bpepper",
		},
		{
			name:   "no params",
			path:   "715538/information",
			params: nil,
			want:   "@api_cache:715538/information?",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CacheKey(tt.path, tt.params))
		})
	}
}

func TestCacheKey_StableAcrossInsertionOrder(t *testing.T) {
	a := domain.QueryParams{"query": "soup", "diet": "vegan", "number": 10, "offset": 0}
	b := domain.QueryParams{"offset": 0, "number": 10, "diet": "vegan", "query": "soup", "type": nil}

	for i := 0; i < 20; i++ {
		assert.Equal(t, CacheKey("complexSearch", a), CacheKey("complexSearch", b))
	}
}

func TestRecipeService_Search_MissFetchesAndCaches(t *testing.T) {
	store := newFakeStore()
	catalog := &fakeCatalog{payload: []byte(searchPayload)}
	svc, clock, _ := newTestRecipeService(store, catalog)

	result := svc.Search(context.Background(), domain.SearchOptions{})

	require.Len(t, result.Results, 1)
	assert.Equal(t, 715538, result.Results[0].ID)
	assert.Equal(t, 42, result.TotalResults)

	require.Len(t, catalog.calls, 1)
	assert.Equal(t, "complexSearch", catalog.calls[0].path)
	assert.Nil(t, catalog.calls[0].params["query"])
	assert.Equal(t, true, catalog.calls[0].params["addRecipeInformation"])

	raw, ok := store.value(defaultSearchKey)
	require.True(t, ok, "entry should be written under the canonical key")
	var entry domain.CacheEntry
	require.NoError(t, json.Unmarshal([]byte(raw), &entry))
	assert.Equal(t, clock.now.UnixMilli(), entry.Timestamp)
	assert.JSONEq(t, searchPayload, string(entry.Data))

}

func TestRecipeService_Search_SendsFilters(t *testing.T) {
	catalog := &fakeCatalog{payload: []byte(searchPayload)}
	svc, _, _ := newTestRecipeService(newFakeStore(), catalog)

	svc.Search(context.Background(), domain.SearchOptions{
		Query:  "  pasta   bake ",
		Diet:   "Vegan",
		Offset: 40,
		Limit:  10,
	})

	require.Len(t, catalog.calls, 1)
	params := catalog.calls[0].params
	assert.Equal(t, "pasta bake", params["query"])
	assert.Equal(t, "Vegan", params["diet"])
	assert.Nil(t, params["cuisine"])
	assert.Nil(t, params["type"])
	assert.Equal(t, 10, params["number"])
	assert.Equal(t, 40, params["offset"])
	assert.Equal(t, "popularity", params["sort"])
}

func TestRecipeService_TTLBoundary(t *testing.T) {
	store := newFakeStore()
	catalog := &fakeCatalog{payload: []byte(searchPayload)}
	svc, clock, _ := newTestRecipeService(store, catalog)
	ctx := context.Background()

	svc.Search(ctx, domain.SearchOptions{})
	require.Len(t, catalog.calls, 1)

	clock.Advance(DefaultSearchTTL - time.Millisecond)
	svc.Search(ctx, domain.SearchOptions{})
	assert.Len(t, catalog.calls, 1, "entry younger than the TTL must be served without a fetch")

	clock.Advance(2 * time.Millisecond)
	svc.Search(ctx, domain.SearchOptions{})
	assert.Len(t, catalog.calls, 2, "expired entry must trigger a fetch")
}

func TestRecipeService_TTLPerOperation(t *testing.T) {
	store := newFakeStore()
	catalog := &fakeCatalog{payload: []byte(randomPayload)}
	svc, clock, _ := newTestRecipeService(store, catalog)
	ctx := context.Background()

	svc.GetRandom(ctx, 2, nil)
	clock.Advance(DefaultRandomTTL + time.Millisecond)
	svc.GetRandom(ctx, 2, nil)
	assert.Len(t, catalog.calls, 2)

	catalog.payload = []byte(detailsPayload)
	svc.GetDetails(ctx, "715538")
	clock.Advance(DefaultSearchTTL + time.Minute)
	svc.GetDetails(ctx, "715538")
	assert.Len(t, catalog.calls, 3, "details stay fresh for a day")
}

func TestRecipeService_StaleFallback(t *testing.T) {
	store := newFakeStore()
	catalog := &fakeCatalog{payload: []byte(searchPayload)}
	svc, clock, _ := newTestRecipeService(store, catalog)
	ctx := context.Background()

	first := svc.Search(ctx, domain.SearchOptions{})
	rawBefore, _ := store.value(defaultSearchKey)

	clock.Advance(DefaultSearchTTL + time.Second)
	catalog.err = domain.ErrCatalogFailure

	second := svc.Search(ctx, domain.SearchOptions{})

	assert.Equal(t, first, second)
	assert.Len(t, catalog.calls, 2)
	rawAfter, _ := store.value(defaultSearchKey)
	assert.Equal(t, rawBefore, rawAfter, "stale entry must not be rewritten")
}

func TestRecipeService_ColdStartFailureReturnsEmpty(t *testing.T) {
	ctx := context.Background()
	catalog := &fakeCatalog{err: domain.ErrCatalogFailure}
	store := newFakeStore()
	svc, _, _ := newTestRecipeService(store, catalog)

	search := svc.Search(ctx, domain.SearchOptions{Query: "soup"})
	assert.NotNil(t, search.Results)
	assert.Empty(t, search.Results)
	assert.Zero(t, search.TotalResults)

	random := svc.GetRandom(ctx, 0, nil)
	assert.NotNil(t, random)
	assert.Empty(t, random)

	assert.Nil(t, svc.GetDetails(ctx, "715538"))

	assert.Equal(t, 0, store.setCount())
}

func TestRecipeService_MalformedPayloadIsAFailure(t *testing.T) {
	store := newFakeStore()
	catalog := &fakeCatalog{payload: []byte(searchPayload)}
	svc, clock, _ := newTestRecipeService(store, catalog)
	ctx := context.Background()

	svc.Search(ctx, domain.SearchOptions{})
	rawBefore, _ := store.value(defaultSearchKey)

	clock.Advance(DefaultSearchTTL + time.Second)
	catalog.payload = []byte(`{"status":"failure","code":402}`)

	result := svc.Search(ctx, domain.SearchOptions{})
	require.Len(t, result.Results, 1, "stale entry served instead of the wrong-shaped payload")

	rawAfter, _ := store.value(defaultSearchKey)
	assert.Equal(t, rawBefore, rawAfter)
}

func TestRecipeService_MalformedPayloadColdStart(t *testing.T) {
	catalog := &fakeCatalog{payload: []byte(`{"recipes":"nope"}`)}
	store := newFakeStore()
	svc, _, _ := newTestRecipeService(store, catalog)

	assert.Empty(t, svc.GetRandom(context.Background(), 3, nil))
	assert.Equal(t, 0, store.setCount())
}

func TestRecipeService_MistypedPayloadIsNotCached(t *testing.T) {
	store := newFakeStore()
	catalog := &fakeCatalog{payload: []byte(searchPayload)}
	svc, clock, _ := newTestRecipeService(store, catalog)
	ctx := context.Background()

	svc.Search(ctx, domain.SearchOptions{})
	rawBefore, _ := store.value(defaultSearchKey)

	clock.Advance(DefaultSearchTTL + time.Second)
	catalog.payload = []byte(`{"results":[{"id":"abc"}]}`)

	result := svc.Search(ctx, domain.SearchOptions{})
	require.Len(t, result.Results, 1, "stale entry served instead of the mistyped payload")
	rawAfter, _ := store.value(defaultSearchKey)
	assert.Equal(t, rawBefore, rawAfter)

	catalog.payload = []byte(`{"id":"abc","title":"Bruschetta"}`)
	assert.Nil(t, svc.GetDetails(ctx, "715538"))
	catalog.payload = []byte(`{"recipes":[{"id":{}}]}`)
	assert.Empty(t, svc.GetRandom(ctx, 1, nil))
	assert.Equal(t, 1, store.setCount(), "only the first search was cached")
}

func TestRecipeService_UnparseableEntryIsAMiss(t *testing.T) {
	store := newFakeStore()
	store.put(defaultSearchKey, "not json")
	catalog := &fakeCatalog{payload: []byte(searchPayload)}
	svc, _, _ := newTestRecipeService(store, catalog)

	result := svc.Search(context.Background(), domain.SearchOptions{})

	assert.Len(t, result.Results, 1)
	assert.Len(t, catalog.calls, 1)
	raw, _ := store.value(defaultSearchKey)
	assert.NotEqual(t, "not json", raw)
}

func TestRecipeService_StorageErrorsAreAbsorbed(t *testing.T) {
	store := newFakeStore()
	store.getErr = domain.ErrStorageUnavailable
	store.setErr = domain.ErrStorageUnavailable
	catalog := &fakeCatalog{payload: []byte(detailsPayload)}
	svc, _, _ := newTestRecipeService(store, catalog)

	detail := svc.GetDetails(context.Background(), "715538")

	require.NotNil(t, detail)
	assert.Equal(t, "Bruschetta", detail.Title)
}

func TestRecipeService_GetDetails(t *testing.T) {
	t.Run("zero id short-circuits", func(t *testing.T) {
		catalog := &fakeCatalog{payload: []byte(detailsPayload)}
		svc, _, _ := newTestRecipeService(newFakeStore(), catalog)

		assert.Nil(t, svc.GetDetails(context.Background(), ""))
		assert.Nil(t, svc.GetDetails(context.Background(), "0"))
		assert.Empty(t, catalog.calls)
	})

	t.Run("requests nutrition", func(t *testing.T) {
		store := newFakeStore()
		catalog := &fakeCatalog{payload: []byte(detailsPayload)}
		svc, _, _ := newTestRecipeService(store, catalog)

		detail := svc.GetDetails(context.Background(), "715538")

		require.NotNil(t, detail)
		assert.Equal(t, 4, detail.Servings)
		require.Len(t, catalog.calls, 1)
		assert.Equal(t, "715538/information", catalog.calls[0].path)
		_, ok := store.value("@api_cache:715538/information?includeNutrition=true")
		assert.True(t, ok)
	})

	t.Run("object without id is malformed", func(t *testing.T) {
		catalog := &fakeCatalog{payload: []byte(`{"message":"not found"}`)}
		svc, _, _ := newTestRecipeService(newFakeStore(), catalog)

		assert.Nil(t, svc.GetDetails(context.Background(), "715538"))
	})
}

func TestRecipeService_GetRandom(t *testing.T) {
	store := newFakeStore()
	catalog := &fakeCatalog{payload: []byte(randomPayload)}
	svc, _, _ := newTestRecipeService(store, catalog)

	recipes := svc.GetRandom(context.Background(), 0, []string{" vegan ", "", "dessert"})

	require.Len(t, recipes, 2)
	assert.Equal(t, "Soup", recipes[0].Title)
	require.Len(t, catalog.calls, 1)
	assert.Equal(t, "random", catalog.calls[0].path)
	assert.Equal(t, DefaultRandomCount, catalog.calls[0].params["number"])
	assert.Equal(t, "vegan,dessert", catalog.calls[0].params["tags"])
	_, ok := store.value("@api_cache:random?number=6&tags=vegan%2Cdessert")
	assert.True(t, ok)
}

func TestRecipeService_GetRandom_NoTagsOmitsParam(t *testing.T) {
	store := newFakeStore()
	catalog := &fakeCatalog{payload: []byte(randomPayload)}
	svc, _, _ := newTestRecipeService(store, catalog)

	svc.GetRandom(context.Background(), 3, []string{"  "})

	assert.Nil(t, catalog.calls[0].params["tags"])
	_, ok := store.value("@api_cache:random?number=3")
	assert.True(t, ok)
}

func TestSupportedFilters(t *testing.T) {
	diets := SupportedDiets()
	assert.Contains(t, diets, "Vegan")
	assert.Len(t, diets, 10)

	diets[0] = "changed"
	assert.Equal(t, "Gluten Free", SupportedDiets()[0], "callers get a copy")

	assert.Contains(t, SupportedTypes(), "main course")
}
