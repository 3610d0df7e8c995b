package search_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-product/pkg/catalog"
	"github.com/tendant/simple-product/pkg/catalog/repo/memory"
	"github.com/tendant/simple-product/pkg/catalog/search"
	searchmemory "github.com/tendant/simple-product/pkg/catalog/search/memory"
)

// failingIndex rejects every write
type failingIndex struct{}

func (failingIndex) Save(ctx context.Context, indexName string, record search.Record) error {
	return errors.New("index unreachable")
}

func (failingIndex) Delete(ctx context.Context, indexName, objectID string) error {
	return errors.New("index unreachable")
}

func (failingIndex) Query(ctx context.Context, indexName, query string, params search.Params) (*catalog.SearchResult, error) {
	return nil, errors.New("index unreachable")
}

func sampleProduct(id int64, title, content string) *catalog.Product {
	owner := int64(3)
	return &catalog.Product{
		ID:      id,
		OwnerID: &owner,
		Title:   title,
		Content: content,
		Price:   decimal.RequireFromString("123.1"),
		Public:  true,
	}
}

func TestProject(t *testing.T) {
	p := sampleProduct(12, "IPhone17 Pro pro", "IPhone 17 pro from Apple")

	record := search.Project(p)
	assert.Equal(t, "12", record.ObjectID)
	assert.Equal(t, "IPhone17 Pro pro", record.Title)
	assert.Equal(t, "123.10", record.Price)
	assert.Equal(t, []string{"iphone17", "pro"}, record.Tags)
	assert.Equal(t, "products/3/12", record.Path)
	require.NotNil(t, record.UserID)
	assert.Equal(t, int64(3), *record.UserID)

	p.OwnerID = nil
	record = search.Project(p)
	assert.Equal(t, "products/unowned/12", record.Path)
	assert.Nil(t, record.Fields()["user_id"])
}

func TestParseParams(t *testing.T) {
	p := search.ParseParams(map[string]string{"tags": " Apple, ,PRO", "hitsPerPage": "5", "page": "2"})
	assert.Equal(t, []string{"apple", "pro"}, p.Tags)
	assert.Equal(t, 5, p.HitsPerPage)
	assert.Equal(t, 2, p.Page)

	p = search.ParseParams(nil)
	assert.Empty(t, p.Tags)
	assert.Equal(t, search.DefaultHitsPerPage, p.HitsPerPage)
	assert.Equal(t, 0, p.Page)
}

func TestParseParams_Bounds(t *testing.T) {
	tests := []struct {
		name     string
		raw      map[string]string
		wantHits int
	}{
		{"huge page", map[string]string{"page": "500000000000000000", "hitsPerPage": "20"}, 20},
		{"huge hitsPerPage", map[string]string{"hitsPerPage": "9223372036854775807"}, catalog.MaxPageSize},
		{"both huge", map[string]string{"page": "9223372036854775807", "hitsPerPage": "9223372036854775807"}, catalog.MaxPageSize},
		{"negative page", map[string]string{"page": "-1"}, search.DefaultHitsPerPage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := search.ParseParams(tt.raw)
			assert.Equal(t, tt.wantHits, p.HitsPerPage)
			assert.GreaterOrEqual(t, p.Page, 0)
			assert.LessOrEqual(t, p.Page, math.MaxInt/p.HitsPerPage-1)
			assert.GreaterOrEqual(t, p.Page*p.HitsPerPage+p.HitsPerPage, 0)

			idx := searchmemory.New()
			sync := search.NewSynchronizer(idx, "")
			require.NoError(t, sync.Upsert(t.Context(), sampleProduct(1, "Phone", "Phone")))

			var result *catalog.SearchResult
			require.NotPanics(t, func() {
				var err error
				result, err = sync.Search(t.Context(), catalog.SearchRequest{Params: tt.raw})
				require.NoError(t, err)
			})
			assert.Equal(t, 1, result.Total)
			if tt.raw["page"] == "" || tt.raw["page"] == "-1" {
				assert.Len(t, result.Hits, 1)
			} else {
				assert.Empty(t, result.Hits)
			}
		})
	}
}

func TestSynchronizer_UpsertRespectsVisibility(t *testing.T) {
	idx := searchmemory.New()
	sync := search.NewSynchronizer(idx, "")
	ctx := context.Background()

	p := sampleProduct(1, "Phone", "Phone")
	require.NoError(t, sync.Upsert(ctx, p))
	_, ok := idx.Get(search.DefaultIndexName, "1")
	assert.True(t, ok)

	p.Public = false
	require.NoError(t, sync.Upsert(ctx, p))
	_, ok = idx.Get(search.DefaultIndexName, "1")
	assert.False(t, ok, "non-public products are removed from the index")
}

func TestSynchronizer_UpsertReplacesWholeRecord(t *testing.T) {
	idx := searchmemory.New()
	sync := search.NewSynchronizer(idx, "products")
	ctx := context.Background()

	p := sampleProduct(1, "Phone", "old content")
	require.NoError(t, sync.Upsert(ctx, p))

	p.Content = "new content"
	p.Price = decimal.RequireFromString("9.5")
	require.NoError(t, sync.Upsert(ctx, p))

	record, ok := idx.Get("products", "1")
	require.True(t, ok)
	assert.Equal(t, "new content", record.Content)
	assert.Equal(t, "9.50", record.Price)
	assert.Equal(t, 1, idx.Len("products"))
}

func TestSynchronizer_RemoveIsIdempotent(t *testing.T) {
	idx := searchmemory.New()
	sync := search.NewSynchronizer(idx, "")
	ctx := context.Background()

	require.NoError(t, sync.Upsert(ctx, sampleProduct(1, "Phone", "Phone")))
	require.NoError(t, sync.Remove(ctx, 1))
	require.NoError(t, sync.Remove(ctx, 1))
	assert.Equal(t, 0, idx.Len(search.DefaultIndexName))
}

func TestSynchronizer_CountsFailures(t *testing.T) {
	sync := search.NewSynchronizer(failingIndex{}, "")
	ctx := context.Background()

	assert.Error(t, sync.Upsert(ctx, sampleProduct(1, "Phone", "Phone")))
	assert.Error(t, sync.Remove(ctx, 1))
	assert.Error(t, sync.Remove(ctx, 2))

	assert.Equal(t, 1.0, testutil.ToFloat64(sync.Failures().WithLabelValues("upsert")))
	assert.Equal(t, 2.0, testutil.ToFloat64(sync.Failures().WithLabelValues("remove")))
}

func TestSynchronizer_SearchRanksTitleMatchesFirst(t *testing.T) {
	idx := searchmemory.New()
	sync := search.NewSynchronizer(idx, "")
	ctx := context.Background()

	require.NoError(t, sync.Upsert(ctx, sampleProduct(1, "Case", "fits the iphone")))
	require.NoError(t, sync.Upsert(ctx, sampleProduct(2, "IPhone 17", "iphone from Apple")))
	require.NoError(t, sync.Upsert(ctx, sampleProduct(3, "Macbook", "laptop")))

	result, err := sync.Search(ctx, catalog.SearchRequest{Query: "iphone"})
	require.NoError(t, err)
	assert.Equal(t, search.DefaultIndexName, result.Index)
	assert.Equal(t, 2, result.Total)
	require.Len(t, result.Hits, 2)
	assert.Equal(t, "2", result.Hits[0].ObjectID)
	assert.Equal(t, "1", result.Hits[1].ObjectID)
	assert.Greater(t, result.Hits[0].Score, result.Hits[1].Score)

	result, err = sync.Search(ctx, catalog.SearchRequest{Query: "", Params: map[string]string{"tags": "macbook"}})
	require.NoError(t, err)
	require.Len(t, result.Hits, 1)
	assert.Equal(t, "3", result.Hits[0].ObjectID)

	result, err = sync.Search(ctx, catalog.SearchRequest{Query: "iphone", IndexName: "other"})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Total)
}

func TestMemoryIndex_Pagination(t *testing.T) {
	idx := searchmemory.New()
	sync := search.NewSynchronizer(idx, "")
	ctx := context.Background()

	for i := int64(1); i <= 5; i++ {
		require.NoError(t, sync.Upsert(ctx, sampleProduct(i, "Phone "+search.ObjectID(i), "phone")))
	}

	result, err := sync.Search(ctx, catalog.SearchRequest{
		Query:  "phone",
		Params: map[string]string{"hitsPerPage": "2", "page": "2"},
	})
	require.NoError(t, err)
	assert.Equal(t, 5, result.Total)
	require.Len(t, result.Hits, 1)
	assert.Equal(t, "5", result.Hits[0].ObjectID)
}

func TestSynchronizer_Reindex(t *testing.T) {
	repo := memory.New()
	ctx := context.Background()
	for i := 0; i < 150; i++ {
		p := &catalog.Product{Title: fmt.Sprintf("Phone %d", i), Public: i%3 != 0}
		require.NoError(t, repo.CreateProduct(ctx, p))
	}

	idx := searchmemory.New()
	sync := search.NewSynchronizer(idx, "")
	n, err := sync.Reindex(ctx, repo)
	require.NoError(t, err)
	assert.Equal(t, 150, n)
	assert.Equal(t, 100, idx.Len(search.DefaultIndexName))

	_, err = search.NewSynchronizer(failingIndex{}, "").Reindex(ctx, repo)
	var syncErr *catalog.IndexSyncError
	require.ErrorAs(t, err, &syncErr)
	assert.Equal(t, int64(1), syncErr.ID)
}
