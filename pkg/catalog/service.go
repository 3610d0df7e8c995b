package catalog

import "context"

// Service is the main interface for product operations.
// Every method takes the caller so the permission gate runs before any store access.
type Service interface {
	ListProducts(ctx context.Context, caller *Caller, req ListProductsRequest) (*ProductPage, error)
	GetProduct(ctx context.Context, caller *Caller, id int64) (*Product, error)
	CreateProduct(ctx context.Context, caller *Caller, req CreateProductRequest) (*Product, error)
	UpdateProduct(ctx context.Context, caller *Caller, req UpdateProductRequest) (*Product, error)
	DeleteProduct(ctx context.Context, caller *Caller, id int64) error

	// SearchProducts delegates to the search index without re-ranking.
	SearchProducts(ctx context.Context, caller *Caller, req SearchRequest) (*SearchResult, error)

	// Authorize runs the permission gate alone, for callers that must reject a
	// request before it reaches one of the operations above.
	Authorize(caller *Caller, op Operation) error

	// DetachOwner clears the owner of every product belonging to a deleted user.
	DetachOwner(ctx context.Context, ownerID int64) (int64, error)
}
