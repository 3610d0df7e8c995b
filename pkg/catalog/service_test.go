package catalog_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-product/pkg/catalog"
	"github.com/tendant/simple-product/pkg/catalog/repo/memory"
	"github.com/tendant/simple-product/pkg/catalog/search"
	searchmemory "github.com/tendant/simple-product/pkg/catalog/search/memory"
)

var (
	staff    = &catalog.Caller{UserID: 1, Username: "admin", Staff: true}
	customer = &catalog.Caller{UserID: 2, Username: "bob"}
)

// recordingIndexer records calls and optionally fails every write
type recordingIndexer struct {
	upserts []int64
	removes []int64
	fail    bool
}

func (r *recordingIndexer) Upsert(ctx context.Context, p *catalog.Product) error {
	r.upserts = append(r.upserts, p.ID)
	if r.fail {
		return errors.New("index unreachable")
	}
	return nil
}

func (r *recordingIndexer) Remove(ctx context.Context, id int64) error {
	r.removes = append(r.removes, id)
	if r.fail {
		return errors.New("index unreachable")
	}
	return nil
}

func (r *recordingIndexer) Search(ctx context.Context, req catalog.SearchRequest) (*catalog.SearchResult, error) {
	if r.fail {
		return nil, errors.New("index unreachable")
	}
	return &catalog.SearchResult{Query: req.Query}, nil
}

func setupService(t *testing.T, opts ...catalog.Option) (catalog.Service, *memory.Repository) {
	t.Helper()
	repo := memory.New()
	svc, err := catalog.New(append([]catalog.Option{catalog.WithRepository(repo)}, opts...)...)
	require.NoError(t, err)
	return svc, repo
}

func create(t *testing.T, svc catalog.Service, title, content, price string) *catalog.Product {
	t.Helper()
	fields := catalog.ProductFields{Title: catalog.StringPtr(title)}
	if content != "" {
		fields.Content = catalog.StringPtr(content)
	}
	if price != "" {
		fields.Price = catalog.StringPtr(price)
	}
	p, err := svc.CreateProduct(context.Background(), staff, catalog.CreateProductRequest{Fields: fields})
	require.NoError(t, err)
	return p
}

func TestNew_RequiresRepository(t *testing.T) {
	_, err := catalog.New()
	assert.Error(t, err)
}

func TestCreateProduct_Scenario(t *testing.T) {
	svc, repo := setupService(t)

	p := create(t, svc, "IPhone17 pro", "IPhone 17 pro from Apple", "123.11")

	assert.NotZero(t, p.ID)
	stored, err := repo.GetProduct(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, "123.11", stored.Price.StringFixed(2))
	assert.Equal(t, "98.49", stored.SalePriceString())
	assert.Equal(t, "10%", stored.Discount())
	require.NotNil(t, stored.OwnerID)
	assert.Equal(t, staff.UserID, *stored.OwnerID)
}

func TestCreateProduct_Defaults(t *testing.T) {
	svc, _ := setupService(t)

	p := create(t, svc, "Phone", "", "")

	assert.Equal(t, "Phone", p.Content, "empty content is backfilled with the title")
	assert.Equal(t, "29.99", p.Price.StringFixed(2))
	assert.True(t, p.Public)
}

func TestCreateProduct_ExplicitEmptyContentIsBackfilled(t *testing.T) {
	svc, _ := setupService(t)

	p, err := svc.CreateProduct(context.Background(), staff, catalog.CreateProductRequest{
		Fields: catalog.ProductFields{Title: catalog.StringPtr("Phone"), Content: catalog.StringPtr("")},
	})
	require.NoError(t, err)
	assert.Equal(t, "Phone", p.Content)
}

func TestCreateProduct_DuplicateTitleIgnoresCase(t *testing.T) {
	indexer := &recordingIndexer{}
	svc, _ := setupService(t, catalog.WithIndexer(indexer))

	create(t, svc, "Phone", "", "")
	_, err := svc.CreateProduct(context.Background(), staff, catalog.CreateProductRequest{
		Fields: catalog.ProductFields{Title: catalog.StringPtr("phone")},
	})

	verr, ok := catalog.AsValidationError(err)
	require.True(t, ok)
	assert.True(t, verr.Has("title", catalog.CodeDuplicateTitle))
	assert.ErrorIs(t, err, catalog.ErrDuplicateTitle)
	assert.Len(t, indexer.upserts, 1, "failed create must not touch the index")
}

func TestCreateProduct_ContentPolicy(t *testing.T) {
	indexer := &recordingIndexer{}
	svc, repo := setupService(t, catalog.WithIndexer(indexer))

	for _, title := range []string{"Hello phone", "say HELLO", "oTHELLO"} {
		_, err := svc.CreateProduct(context.Background(), staff, catalog.CreateProductRequest{
			Fields: catalog.ProductFields{Title: catalog.StringPtr(title)},
		})
		verr, ok := catalog.AsValidationError(err)
		require.True(t, ok, title)
		assert.True(t, verr.Has("title", catalog.CodeContentPolicyViolation), title)
	}

	_, total, err := repo.ListProducts(context.Background(), 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, total)
	assert.Empty(t, indexer.upserts)
}

func TestWrites_RequireStaff(t *testing.T) {
	indexer := &recordingIndexer{}
	svc, repo := setupService(t, catalog.WithIndexer(indexer))
	ctx := context.Background()

	existing := create(t, svc, "Phone", "", "")
	indexer.upserts = nil

	for _, caller := range []*catalog.Caller{nil, customer} {
		_, err := svc.CreateProduct(ctx, caller, catalog.CreateProductRequest{
			Fields: catalog.ProductFields{Title: catalog.StringPtr("Tablet")},
		})
		assert.True(t, catalog.IsForbidden(err))

		_, err = svc.UpdateProduct(ctx, caller, catalog.UpdateProductRequest{
			ID:      existing.ID,
			Fields:  catalog.ProductFields{Price: catalog.StringPtr("1.00")},
			Partial: true,
		})
		assert.True(t, catalog.IsForbidden(err))

		err = svc.DeleteProduct(ctx, caller, existing.ID)
		assert.True(t, catalog.IsForbidden(err))
	}

	_, total, err := repo.ListProducts(ctx, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	stored, err := repo.GetProduct(ctx, existing.ID)
	require.NoError(t, err)
	assert.Equal(t, "29.99", stored.Price.StringFixed(2))
	assert.Empty(t, indexer.upserts)
	assert.Empty(t, indexer.removes)
}

func TestWrites_DenialPrecedesValidation(t *testing.T) {
	svc, _ := setupService(t)

	_, err := svc.CreateProduct(context.Background(), customer, catalog.CreateProductRequest{
		Fields: catalog.ProductFields{Title: catalog.StringPtr("hello")},
	})
	assert.True(t, catalog.IsForbidden(err))
	_, isValidation := catalog.AsValidationError(err)
	assert.False(t, isValidation)
}

func TestReads_FollowReadPolicy(t *testing.T) {
	ctx := context.Background()

	open, _ := setupService(t, catalog.WithGate(catalog.NewStaffGate(catalog.ReadPolicyPublic)))
	p := create(t, open, "Phone", "", "")
	_, err := open.GetProduct(ctx, nil, p.ID)
	assert.NoError(t, err)

	closed, _ := setupService(t, catalog.WithGate(catalog.NewStaffGate(catalog.ReadPolicyAuthenticated)))
	p = create(t, closed, "Phone", "", "")
	_, err = closed.GetProduct(ctx, nil, p.ID)
	assert.True(t, catalog.IsForbidden(err))
	_, err = closed.ListProducts(ctx, nil, catalog.ListProductsRequest{})
	assert.True(t, catalog.IsForbidden(err))
	_, err = closed.GetProduct(ctx, customer, p.ID)
	assert.NoError(t, err)
}

func TestGetProduct_NotFound(t *testing.T) {
	svc, _ := setupService(t)
	_, err := svc.GetProduct(context.Background(), nil, 42)
	assert.ErrorIs(t, err, catalog.ErrProductNotFound)
}

func TestUpdateProduct_PartialChangesOnlyPrice(t *testing.T) {
	svc, _ := setupService(t)
	p := create(t, svc, "Macbook", "laptop", "100.00")

	updated, err := svc.UpdateProduct(context.Background(), staff, catalog.UpdateProductRequest{
		ID:      p.ID,
		Fields:  catalog.ProductFields{Price: catalog.StringPtr("198.65")},
		Partial: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "Macbook", updated.Title)
	assert.Equal(t, "laptop", updated.Content)
	assert.Equal(t, "198.65", updated.Price.StringFixed(2))
}

func TestUpdateProduct_EmptyContentBackfilled(t *testing.T) {
	svc, repo := setupService(t)
	p := create(t, svc, "Macbook", "laptop", "")

	_, err := svc.UpdateProduct(context.Background(), staff, catalog.UpdateProductRequest{
		ID: p.ID,
		Fields: catalog.ProductFields{
			Title:   catalog.StringPtr("Macbook M5 Pro"),
			Content: catalog.StringPtr(""),
		},
	})
	require.NoError(t, err)

	stored, err := repo.GetProduct(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Macbook M5 Pro", stored.Content)
}

func TestUpdateProduct_FullUpdateRequiresTitle(t *testing.T) {
	svc, _ := setupService(t)
	p := create(t, svc, "Macbook", "", "")

	_, err := svc.UpdateProduct(context.Background(), staff, catalog.UpdateProductRequest{
		ID:     p.ID,
		Fields: catalog.ProductFields{Price: catalog.StringPtr("1.00")},
	})
	verr, ok := catalog.AsValidationError(err)
	require.True(t, ok)
	assert.True(t, verr.Has("title", catalog.CodeMissingRequiredField))
}

func TestUpdateProduct_KeepOwnTitle(t *testing.T) {
	svc, _ := setupService(t)
	p := create(t, svc, "Macbook", "", "")
	create(t, svc, "Tablet", "", "")

	_, err := svc.UpdateProduct(context.Background(), staff, catalog.UpdateProductRequest{
		ID:     p.ID,
		Fields: catalog.ProductFields{Title: catalog.StringPtr("MACBOOK")},
	})
	assert.NoError(t, err, "a product does not conflict with itself")

	_, err = svc.UpdateProduct(context.Background(), staff, catalog.UpdateProductRequest{
		ID:      p.ID,
		Fields:  catalog.ProductFields{Title: catalog.StringPtr("tablet")},
		Partial: true,
	})
	assert.ErrorIs(t, err, catalog.ErrDuplicateTitle)
}

func TestUpdateProduct_NotFound(t *testing.T) {
	svc, _ := setupService(t)
	_, err := svc.UpdateProduct(context.Background(), staff, catalog.UpdateProductRequest{
		ID:      7,
		Fields:  catalog.ProductFields{Price: catalog.StringPtr("1.00")},
		Partial: true,
	})
	assert.ErrorIs(t, err, catalog.ErrProductNotFound)
}

func TestUpdateProduct_InvalidLeavesRecordUntouched(t *testing.T) {
	svc, repo := setupService(t)
	p := create(t, svc, "Macbook", "laptop", "10.00")

	_, err := svc.UpdateProduct(context.Background(), staff, catalog.UpdateProductRequest{
		ID: p.ID,
		Fields: catalog.ProductFields{
			Title: catalog.StringPtr("Macbook Air"),
			Price: catalog.StringPtr("-1"),
		},
	})
	verr, ok := catalog.AsValidationError(err)
	require.True(t, ok)
	assert.True(t, verr.Has("price", catalog.CodeMalformedPrice))

	stored, err := repo.GetProduct(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Macbook", stored.Title)
	assert.Equal(t, "10.00", stored.Price.StringFixed(2))
}

func TestDeleteProduct(t *testing.T) {
	indexer := &recordingIndexer{}
	svc, repo := setupService(t, catalog.WithIndexer(indexer))
	ctx := context.Background()

	p := create(t, svc, "Phone", "", "")
	require.NoError(t, svc.DeleteProduct(ctx, staff, p.ID))
	assert.Equal(t, []int64{p.ID}, indexer.removes)

	_, err := repo.GetProduct(ctx, p.ID)
	assert.ErrorIs(t, err, catalog.ErrProductNotFound)
}

func TestDeleteProduct_NotFoundLeavesIndexAlone(t *testing.T) {
	indexer := &recordingIndexer{}
	svc, _ := setupService(t, catalog.WithIndexer(indexer))

	err := svc.DeleteProduct(context.Background(), staff, 404)
	assert.ErrorIs(t, err, catalog.ErrProductNotFound)
	assert.Empty(t, indexer.removes)
}

func TestIndexFailure_DoesNotFailWrites(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	indexer := &recordingIndexer{fail: true}
	svc, repo := setupService(t, catalog.WithIndexer(indexer), catalog.WithLogger(logger))
	ctx := context.Background()

	p := create(t, svc, "Phone", "", "")
	_, err := svc.UpdateProduct(ctx, staff, catalog.UpdateProductRequest{
		ID: p.ID, Fields: catalog.ProductFields{Price: catalog.StringPtr("5")}, Partial: true,
	})
	require.NoError(t, err)
	require.NoError(t, svc.DeleteProduct(ctx, staff, p.ID))

	_, err = repo.GetProduct(ctx, p.ID)
	assert.ErrorIs(t, err, catalog.ErrProductNotFound)
	assert.Len(t, indexer.upserts, 2)
	assert.Len(t, indexer.removes, 1)
	assert.Contains(t, logs.String(), "Failed to sync search index")
	assert.Contains(t, logs.String(), "op=remove")
}

func TestIndexSync_SurvivesCancelledRequest(t *testing.T) {
	idx := searchmemory.New()
	svc, _ := setupService(t, catalog.WithIndexer(search.NewSynchronizer(idx, "")))

	ctx, cancel := context.WithCancel(context.Background())
	p := create(t, svc, "Phone", "", "")
	cancel()

	_, err := svc.UpdateProduct(ctx, staff, catalog.UpdateProductRequest{
		ID: p.ID, Fields: catalog.ProductFields{Content: catalog.StringPtr("updated")}, Partial: true,
	})
	require.NoError(t, err)

	record, ok := idx.Get(search.DefaultIndexName, search.ObjectID(p.ID))
	require.True(t, ok)
	assert.Equal(t, "updated", record.Content)
}

func TestListProducts_Pagination(t *testing.T) {
	svc, _ := setupService(t, catalog.WithPageSize(2))
	for _, title := range []string{"a", "b", "c"} {
		create(t, svc, title, "", "")
	}

	page, err := svc.ListProducts(context.Background(), nil, catalog.ListProductsRequest{})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, 2, page.Limit)
	assert.Len(t, page.Products, 2)
	assert.True(t, page.HasNext())
	assert.False(t, page.HasPrevious())

	page, err = svc.ListProducts(context.Background(), nil, catalog.ListProductsRequest{Limit: 1000, Offset: 2})
	require.NoError(t, err)
	assert.Equal(t, catalog.MaxPageSize, page.Limit)
	assert.Len(t, page.Products, 1)
	assert.False(t, page.HasNext())
	assert.True(t, page.HasPrevious())
}

func TestSearchProducts(t *testing.T) {
	idx := searchmemory.New()
	svc, _ := setupService(t, catalog.WithIndexer(search.NewSynchronizer(idx, "")))
	ctx := context.Background()

	create(t, svc, "IPhone17 pro", "IPhone 17 pro from Apple", "123.11")
	hidden, err := svc.CreateProduct(ctx, staff, catalog.CreateProductRequest{
		Fields: catalog.ProductFields{Title: catalog.StringPtr("IPhone prototype"), Public: catalog.StringPtr("false")},
	})
	require.NoError(t, err)

	result, err := svc.SearchProducts(ctx, nil, catalog.SearchRequest{Query: "iphone"})
	require.NoError(t, err)
	require.Len(t, result.Hits, 1)
	assert.NotEqual(t, search.ObjectID(hidden.ID), result.Hits[0].ObjectID)
}

func TestSearchProducts_Unavailable(t *testing.T) {
	svc, _ := setupService(t, catalog.WithIndexer(&recordingIndexer{fail: true}))
	_, err := svc.SearchProducts(context.Background(), nil, catalog.SearchRequest{Query: "x"})
	assert.ErrorIs(t, err, catalog.ErrSearchUnavailable)
}

func TestDetachOwner(t *testing.T) {
	idx := searchmemory.New()
	svc, repo := setupService(t, catalog.WithIndexer(search.NewSynchronizer(idx, "")))
	ctx := context.Background()

	p := create(t, svc, "Phone", "", "")
	n, err := svc.DetachOwner(ctx, staff.UserID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	stored, err := repo.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.OwnerID)

	record, ok := idx.Get(search.DefaultIndexName, search.ObjectID(p.ID))
	require.True(t, ok)
	assert.Nil(t, record.UserID)
	assert.Equal(t, "products/unowned/1", record.Path)
}
