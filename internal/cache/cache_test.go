package cache

import (
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/lepinkainen/ook/internal/testutil"
	"github.com/spf13/viper"
)

type TestData struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type fakeClock struct {
	t time.Time
}

func (f *fakeClock) now() time.Time { return f.t }

func setupTestCache(t *testing.T) (*CacheDB, *fakeClock) {
	t.Helper()

	viper.Reset()
	t.Cleanup(viper.Reset)

	env := testutil.NewTestEnv(t)
	cache, err := NewCacheDB(filepath.Join(env.RootDir(), "test_cache.db"))
	if err != nil {
		t.Fatalf("Failed to create cache database: %v", err)
	}
	t.Cleanup(func() { _ = cache.Close() })

	for _, schema := range AllCacheSchemas {
		if err := cache.CreateTable(schema); err != nil {
			t.Fatalf("Failed to create cache table: %v", err)
		}
	}

	clock := &fakeClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	cache.now = clock.now

	viper.Set("cache.ttl", "1h")

	return cache, clock
}

func withGlobalCache(t *testing.T, cache *CacheDB) {
	t.Helper()

	oldCache := globalCache
	globalCache = cache
	globalCacheOnce = sync.Once{}
	globalCacheOnce.Do(func() {})

	t.Cleanup(func() {
		globalCache = oldCache
		globalCacheOnce = sync.Once{}
	})
}

func TestCacheDB_GetSet(t *testing.T) {
	cache, _ := setupTestCache(t)

	if err := cache.Set("openlibrary_cache", "9780140447934", `{"title":"x"}`, time.Hour); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	data, ok, err := cache.Get("openlibrary_cache", "9780140447934")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !ok {
		t.Fatal("Expected cache hit")
	}
	if data != `{"title":"x"}` {
		t.Errorf("Unexpected data %q", data)
	}

	_, ok, err = cache.Get("openlibrary_cache", "missing")
	if err != nil || ok {
		t.Errorf("Expected clean miss, got ok=%v err=%v", ok, err)
	}
}

func TestCacheDB_PerEntryTTL(t *testing.T) {
	cache, clock := setupTestCache(t)

	if err := cache.Set("isbndb_cache", "short", "1", time.Minute); err != nil {
		t.Fatal(err)
	}
	if err := cache.Set("isbndb_cache", "long", "2", 48*time.Hour); err != nil {
		t.Fatal(err)
	}

	clock.t = clock.t.Add(2 * time.Hour)

	if _, ok, _ := cache.Get("isbndb_cache", "short"); ok {
		t.Error("Expected short-lived entry to have expired")
	}
	if _, ok, _ := cache.Get("isbndb_cache", "long"); !ok {
		t.Error("Expected long-lived entry to still be valid")
	}
}

func TestCacheDB_ClearExpired(t *testing.T) {
	cache, clock := setupTestCache(t)

	_ = cache.Set("googlebooks_cache", "old", "1", time.Minute)
	_ = cache.Set("googlebooks_cache", "fresh", "2", 24*time.Hour)

	clock.t = clock.t.Add(time.Hour)

	n, err := cache.ClearExpired("googlebooks_cache")
	if err != nil {
		t.Fatalf("ClearExpired failed: %v", err)
	}
	if n != 1 {
		t.Errorf("Expected 1 row removed, got %d", n)
	}
	if cache.CacheExists("googlebooks_cache", "old") {
		t.Error("Expected expired entry to be deleted")
	}
	if !cache.CacheExists("googlebooks_cache", "fresh") {
		t.Error("Expected fresh entry to remain")
	}
}

func TestCacheDB_InvalidateSource(t *testing.T) {
	cache, _ := setupTestCache(t)

	for _, key := range []string{"a", "b", "c"} {
		_ = cache.Set("openlibrary_cache", key, "{}", time.Hour)
	}
	_ = cache.Set("isbndb_cache", "a", "{}", time.Hour)

	n, err := cache.InvalidateSource("openlibrary_cache")
	if err != nil {
		t.Fatalf("InvalidateSource failed: %v", err)
	}
	if n != 3 {
		t.Errorf("Expected 3 rows deleted, got %d", n)
	}
	if !cache.CacheExists("isbndb_cache", "a") {
		t.Error("Expected other tables to be untouched")
	}
}

func TestCacheDB_InvalidTableName(t *testing.T) {
	cache, _ := setupTestCache(t)

	if _, err := cache.InvalidateSource("books; DROP TABLE books"); err == nil {
		t.Error("Expected error for invalid table name")
	}
	if err := cache.Set("tmdb_cache", "k", "v", time.Hour); err == nil {
		t.Error("Expected error for unknown table")
	}
	if cache.CacheExists("nope", "k") {
		t.Error("Expected false for unknown table")
	}
}

func TestGetOrFetch_CacheMissThenHit(t *testing.T) {
	cache, _ := setupTestCache(t)
	withGlobalCache(t, cache)

	calls := 0
	fetch := func() (TestData, error) {
		calls++
		return TestData{ID: 1, Name: "Dune"}, nil
	}

	got, fromCache, err := GetOrFetch("openlibrary_cache", "k1", fetch)
	if err != nil {
		t.Fatalf("GetOrFetch failed: %v", err)
	}
	if fromCache {
		t.Error("Expected first call to miss")
	}
	if got.Name != "Dune" {
		t.Errorf("Unexpected result %+v", got)
	}

	got, fromCache, err = GetOrFetch("openlibrary_cache", "k1", fetch)
	if err != nil {
		t.Fatalf("GetOrFetch failed: %v", err)
	}
	if !fromCache {
		t.Error("Expected second call to hit")
	}
	if got.ID != 1 || calls != 1 {
		t.Errorf("Expected one fetch and cached result, got calls=%d result=%+v", calls, got)
	}
}

func TestGetOrFetch_FetchError(t *testing.T) {
	cache, _ := setupTestCache(t)
	withGlobalCache(t, cache)

	boom := errors.New("boom")
	_, _, err := GetOrFetch("openlibrary_cache", "k", func() (TestData, error) {
		return TestData{}, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Expected wrapped fetch error, got %v", err)
	}
	if cache.CacheExists("openlibrary_cache", "k") {
		t.Error("Errors must not be cached")
	}
}

func TestGetOrFetch_Disabled(t *testing.T) {
	cache, _ := setupTestCache(t)
	withGlobalCache(t, cache)
	viper.Set("cache.enabled", false)

	calls := 0
	fetch := func() (TestData, error) {
		calls++
		return TestData{ID: calls}, nil
	}

	_, _, _ = GetOrFetch("openlibrary_cache", "k", fetch)
	_, fromCache, _ := GetOrFetch("openlibrary_cache", "k", fetch)

	if fromCache || calls != 2 {
		t.Errorf("Expected cache bypass, got fromCache=%v calls=%d", fromCache, calls)
	}
	if cache.CacheExists("openlibrary_cache", "k") {
		t.Error("Disabled cache must not store entries")
	}
}

func TestGetOrFetchWithTTL_NegativeCaching(t *testing.T) {
	cache, clock := setupTestCache(t)
	withGlobalCache(t, cache)
	viper.Set("cache.ttl", "720h")

	type lookup struct {
		Title    string `json:"title"`
		NotFound bool   `json:"not_found"`
	}
	selector := SelectNegativeCacheTTL(func(l lookup) bool { return l.NotFound })

	_, _, err := GetOrFetchWithTTL("isbndb_cache", "none", func() (lookup, error) {
		return lookup{NotFound: true}, nil
	}, selector)
	if err != nil {
		t.Fatal(err)
	}
	_, _, err = GetOrFetchWithTTL("isbndb_cache", "some", func() (lookup, error) {
		return lookup{Title: "Found"}, nil
	}, selector)
	if err != nil {
		t.Fatal(err)
	}

	clock.t = clock.t.Add(NegativeCacheTTL + time.Hour)

	if _, ok, _ := cache.Get("isbndb_cache", "none"); ok {
		t.Error("Expected negative entry to expire after NegativeCacheTTL")
	}
	if _, ok, _ := cache.Get("isbndb_cache", "some"); !ok {
		t.Error("Expected positive entry to outlive the negative TTL")
	}
}

func TestRefreshWithTTL_ReplacesCachedEntry(t *testing.T) {
	cache, _ := setupTestCache(t)
	withGlobalCache(t, cache)

	calls := 0
	fetch := func() (TestData, error) {
		calls++
		return TestData{ID: calls, Name: "Dune"}, nil
	}

	if _, _, err := GetOrFetchWithTTL("googlebooks_cache", "k", fetch, nil); err != nil {
		t.Fatal(err)
	}

	got, err := RefreshWithTTL("googlebooks_cache", "k", fetch, nil)
	if err != nil {
		t.Fatalf("RefreshWithTTL failed: %v", err)
	}
	if calls != 2 || got.ID != 2 {
		t.Fatalf("Expected refresh to fetch again, got calls=%d result=%+v", calls, got)
	}

	got, fromCache, err := GetOrFetchWithTTL("googlebooks_cache", "k", fetch, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !fromCache || got.ID != 2 || calls != 2 {
		t.Errorf("Expected refreshed entry to be cached, got fromCache=%v calls=%d result=%+v", fromCache, calls, got)
	}
}

func TestRefreshWithTTL_FetchErrorKeepsEntry(t *testing.T) {
	cache, _ := setupTestCache(t)
	withGlobalCache(t, cache)

	if _, _, err := GetOrFetchWithTTL("googlebooks_cache", "k", func() (TestData, error) {
		return TestData{ID: 1}, nil
	}, nil); err != nil {
		t.Fatal(err)
	}

	boom := errors.New("boom")
	_, err := RefreshWithTTL("googlebooks_cache", "k", func() (TestData, error) {
		return TestData{}, boom
	}, nil)
	if !errors.Is(err, boom) {
		t.Fatalf("Expected wrapped fetch error, got %v", err)
	}
	if !cache.CacheExists("googlebooks_cache", "k") {
		t.Error("Failed refresh must leave the previous entry in place")
	}
}

func TestSelectNegativeCacheTTL(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	selector := SelectNegativeCacheTTL(func(found bool) bool { return !found })

	if ttl := selector(false); ttl != 168*time.Hour {
		t.Errorf("Expected 168h for not found result, got %v", ttl)
	}
	if ttl := selector(true); ttl != DefaultCacheTTL {
		t.Errorf("Expected DefaultCacheTTL for found result, got %v", ttl)
	}
}

func TestSourceTable(t *testing.T) {
	for _, source := range Sources {
		if _, ok := SourceTable(source); !ok {
			t.Errorf("Expected %s to map to a valid table", source)
		}
	}
	if _, ok := SourceTable("tmdb"); ok {
		t.Error("Expected unknown source to be rejected")
	}
}

func TestInvalidateCacheCmd(t *testing.T) {
	cache, _ := setupTestCache(t)
	withGlobalCache(t, cache)

	_ = cache.Set("googlebooks_cache", "k", "{}", time.Hour)

	if err := (&InvalidateCacheCmd{Source: "googlebooks"}).Run(); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if cache.CacheExists("googlebooks_cache", "k") {
		t.Error("Expected entry to be invalidated")
	}
	if err := (&InvalidateCacheCmd{Source: "steam"}).Run(); err == nil {
		t.Error("Expected error for unknown source")
	}
}

func TestPruneCacheCmd(t *testing.T) {
	cache, clock := setupTestCache(t)
	withGlobalCache(t, cache)

	_ = cache.Set("openlibrary_cache", "old", "{}", time.Minute)
	_ = cache.Set("isbndb_cache", "old", "{}", time.Minute)
	_ = cache.Set("isbndb_cache", "new", "{}", 24*time.Hour)
	clock.t = clock.t.Add(time.Hour)

	if err := (&PruneCacheCmd{}).Run(); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if cache.CacheExists("openlibrary_cache", "old") || cache.CacheExists("isbndb_cache", "old") {
		t.Error("Expected expired entries to be pruned")
	}
	if !cache.CacheExists("isbndb_cache", "new") {
		t.Error("Expected unexpired entry to remain")
	}
}
