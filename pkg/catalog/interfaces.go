package catalog

import "context"

// Repository defines the interface for product persistence
type Repository interface {
	// CreateProduct stores a new product and assigns its ID.
	// Returns ErrDuplicateTitle if the title is already taken.
	CreateProduct(ctx context.Context, product *Product) error
	GetProduct(ctx context.Context, id int64) (*Product, error)
	// UpdateProduct replaces a stored product.
	// Returns ErrProductNotFound or ErrDuplicateTitle.
	UpdateProduct(ctx context.Context, product *Product) error
	DeleteProduct(ctx context.Context, id int64) error
	// ListProducts returns a page ordered by ID along with the total count.
	ListProducts(ctx context.Context, limit, offset int) ([]*Product, int, error)

	// FindByTitle performs a case-insensitive exact match on title.
	FindByTitle(ctx context.Context, title string) (*Product, error)

	// ClearOwner detaches every product owned by ownerID and returns the IDs it changed.
	ClearOwner(ctx context.Context, ownerID int64) ([]int64, error)
}

// Indexer defines the interface for keeping the search index in step with the store
type Indexer interface {
	// Upsert pushes the full projection of product into the index.
	Upsert(ctx context.Context, product *Product) error

	// Remove deletes the index entry for the product ID.
	Remove(ctx context.Context, id int64) error

	// Search runs query against the index and returns ranked raw hits.
	Search(ctx context.Context, req SearchRequest) (*SearchResult, error)
}
