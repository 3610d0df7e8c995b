package catalog

import "context"

// NoopIndexer is a no-operation implementation of Indexer.
// Used when search indexing is disabled.
type NoopIndexer struct{}

// Upsert does nothing and returns nil
func (NoopIndexer) Upsert(ctx context.Context, product *Product) error {
	return nil
}

// Remove does nothing and returns nil
func (NoopIndexer) Remove(ctx context.Context, id int64) error {
	return nil
}

// Search returns an empty result
func (NoopIndexer) Search(ctx context.Context, req SearchRequest) (*SearchResult, error) {
	return &SearchResult{Index: req.IndexName, Query: req.Query, Hits: []SearchHit{}}, nil
}
