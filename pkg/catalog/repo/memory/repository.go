package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tendant/simple-product/pkg/catalog"
)

// Repository implements catalog.Repository using in-memory storage
type Repository struct {
	mu       sync.RWMutex
	nextID   int64
	products map[int64]*catalog.Product
	byTitle  map[string]int64 // lower(title) -> id
}

// New creates a new in-memory repository
func New() *Repository {
	return &Repository{
		nextID:   1,
		products: make(map[int64]*catalog.Product),
		byTitle:  make(map[string]int64),
	}
}

func titleKey(title string) string {
	return strings.ToLower(title)
}

func (r *Repository) CreateProduct(ctx context.Context, product *catalog.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := titleKey(product.Title)
	if _, taken := r.byTitle[key]; taken {
		return catalog.ErrDuplicateTitle
	}

	product.ID = r.nextID
	r.nextID++

	// Store a copy to avoid external modifications
	r.products[product.ID] = product.Clone()
	r.byTitle[key] = product.ID

	return nil
}

func (r *Repository) GetProduct(ctx context.Context, id int64) (*catalog.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	product, exists := r.products[id]
	if !exists {
		return nil, catalog.ErrProductNotFound
	}
	return product.Clone(), nil
}

func (r *Repository) UpdateProduct(ctx context.Context, product *catalog.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, exists := r.products[product.ID]
	if !exists {
		return catalog.ErrProductNotFound
	}

	oldKey := titleKey(current.Title)
	newKey := titleKey(product.Title)
	if newKey != oldKey {
		if owner, taken := r.byTitle[newKey]; taken && owner != product.ID {
			return catalog.ErrDuplicateTitle
		}
		delete(r.byTitle, oldKey)
		r.byTitle[newKey] = product.ID
	}

	r.products[product.ID] = product.Clone()
	return nil
}

func (r *Repository) DeleteProduct(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	product, exists := r.products[id]
	if !exists {
		return catalog.ErrProductNotFound
	}

	delete(r.byTitle, titleKey(product.Title))
	delete(r.products, id)
	return nil
}

func (r *Repository) ListProducts(ctx context.Context, limit, offset int) ([]*catalog.Product, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]int64, 0, len(r.products))
	for id := range r.products {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	total := len(ids)
	if offset >= total {
		return []*catalog.Product{}, total, nil
	}
	end := total
	if limit > 0 && offset+limit < total {
		end = offset + limit
	}

	result := make([]*catalog.Product, 0, end-offset)
	for _, id := range ids[offset:end] {
		result = append(result, r.products[id].Clone())
	}
	return result, total, nil
}

func (r *Repository) FindByTitle(ctx context.Context, title string) (*catalog.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, exists := r.byTitle[titleKey(title)]
	if !exists {
		return nil, catalog.ErrProductNotFound
	}
	return r.products[id].Clone(), nil
}

func (r *Repository) ClearOwner(ctx context.Context, ownerID int64) ([]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	var changed []int64
	for id, product := range r.products {
		if product.OwnerID != nil && *product.OwnerID == ownerID {
			product.OwnerID = nil
			product.UpdatedAt = now
			changed = append(changed, id)
		}
	}
	sort.Slice(changed, func(i, j int) bool { return changed[i] < changed[j] })
	return changed, nil
}

var _ catalog.Repository = (*Repository)(nil)
