package connpager

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_CacheSize(t *testing.T) {
	tests := []struct {
		budget int
		want   int
	}{
		{0, 2},
		{-5, 2},
		{1, 2},
		{150_000, 2},
		{200_000, 2},
		{200_001, 3},
		{DefaultCacheBudget, 525},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CacheSize(tt.budget), "budget %d", tt.budget)
	}
}

type countingCompute struct {
	calls int
}

func (c *countingCompute) compute(document string) (int, error) {
	c.calls++
	if document == "fail" {
		return 0, errors.New("cannot compute")
	}

	return len(document), nil
}

func Test_DocumentCache_GetOrCompute(t *testing.T) {
	cache, err := NewDocumentCache[int](0)
	require.NoError(t, err)

	catalog := &Catalog{}
	counter := &countingCompute{}

	v, err := cache.GetOrCompute(catalog, "abc", counter.compute)
	require.NoError(t, err)
	assert.Equal(t, 3, v)

	v, err = cache.GetOrCompute(catalog, "abc", counter.compute)
	require.NoError(t, err)
	assert.Equal(t, 3, v)
	assert.Equal(t, 1, counter.calls)
	assert.Equal(t, 1, cache.Len())

	_, err = cache.GetOrCompute(catalog, "fail", counter.compute)
	require.Error(t, err)
	_, err = cache.GetOrCompute(catalog, "fail", counter.compute)
	require.Error(t, err)
	assert.Equal(t, 3, counter.calls)
	assert.Equal(t, 1, cache.Len())
}

func Test_DocumentCache_evictsLeastRecentlyUsed(t *testing.T) {
	cache, err := NewDocumentCache[int](0)
	require.NoError(t, err)

	counter := &countingCompute{}
	for _, doc := range []string{"a", "bb", "a", "ccc"} {
		_, err = cache.GetOrCompute(nil, doc, counter.compute)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, cache.Len())
	assert.Equal(t, 3, counter.calls)

	_, err = cache.GetOrCompute(nil, "a", counter.compute)
	require.NoError(t, err)
	assert.Equal(t, 3, counter.calls)

	_, err = cache.GetOrCompute(nil, "bb", counter.compute)
	require.NoError(t, err)
	assert.Equal(t, 4, counter.calls)
}

func Test_DocumentCache_largeDocumentsAreNotCached(t *testing.T) {
	cache, err := NewDocumentCache[int](DefaultCacheBudget)
	require.NoError(t, err)

	counter := &countingCompute{}
	large := strings.Repeat("x", MaxCachedDocumentSize+1)
	limit := strings.Repeat("x", MaxCachedDocumentSize)

	for range 2 {
		v, err := cache.GetOrCompute(nil, large, counter.compute)
		require.NoError(t, err)
		assert.Equal(t, MaxCachedDocumentSize+1, v)

		_, err = cache.GetOrCompute(nil, limit, counter.compute)
		require.NoError(t, err)
	}

	assert.Equal(t, 3, counter.calls)
	assert.Equal(t, 1, cache.Len())
}

func Test_DocumentCache_resetsOnCatalogChange(t *testing.T) {
	cache, err := NewDocumentCache[int](DefaultCacheBudget)
	require.NoError(t, err)

	first, second := &Catalog{}, &Catalog{}
	counter := &countingCompute{}

	_, _ = cache.GetOrCompute(first, "a", counter.compute)
	_, _ = cache.GetOrCompute(first, "b", counter.compute)
	assert.Equal(t, 2, cache.Len())

	_, _ = cache.GetOrCompute(second, "a", counter.compute)
	assert.Equal(t, 1, cache.Len())
	assert.Equal(t, 3, counter.calls)

	_, _ = cache.GetOrCompute(second, "a", counter.compute)
	assert.Equal(t, 3, counter.calls)

	cache.Purge()
	assert.Zero(t, cache.Len())
}

func Test_DocumentCache_staleComputationIsNotCached(t *testing.T) {
	cache, err := NewDocumentCache[string](DefaultCacheBudget)
	require.NoError(t, err)

	oldCatalog, newCatalog := &Catalog{}, &Catalog{}
	started, release := make(chan struct{}), make(chan struct{})
	done := make(chan string)

	go func() {
		v, _ := cache.GetOrCompute(oldCatalog, "doc", func(string) (string, error) {
			close(started)
			<-release

			return "validated against old", nil
		})
		done <- v
	}()

	<-started
	_, err = cache.GetOrCompute(newCatalog, "other", func(string) (string, error) {
		return "other", nil
	})
	require.NoError(t, err)

	close(release)
	assert.Equal(t, "validated against old", <-done)

	v, err := cache.GetOrCompute(newCatalog, "doc", func(string) (string, error) {
		return "validated against new", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "validated against new", v)
	assert.Equal(t, 2, cache.Len())
}

func Test_DocumentCache_concurrentCatalogs(t *testing.T) {
	cache, err := NewDocumentCache[string](0)
	require.NoError(t, err)

	catalogs := []*Catalog{
		{Tables: map[string]CatalogTable{"first": {}}},
		{Tables: map[string]CatalogTable{"second": {}}},
	}
	name := func(catalog *Catalog) string {
		for table := range catalog.Tables {
			return table
		}

		return ""
	}

	var wg sync.WaitGroup
	for i := range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()

			for j := range 200 {
				catalog := catalogs[(i+j)%len(catalogs)]
				document := fmt.Sprintf("doc-%d", j%3)

				v, err := cache.GetOrCompute(catalog, document, func(document string) (string, error) {
					return name(catalog) + "/" + document, nil
				})
				if !assert.NoError(t, err) {
					return
				}
				assert.Equal(t, name(catalog)+"/"+document, v)

				if j%50 == 0 {
					cache.Purge()
				}
			}
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, cache.Len(), CacheSize(0))
}
