package search

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/tendant/simple-product/pkg/catalog"
)

// DefaultIndexName is the index products are written to unless configured otherwise.
const DefaultIndexName = "catalog_Product"

// Record is the denormalized projection of a product held by the index
type Record struct {
	ObjectID string   `json:"objectID"`
	Title    string   `json:"title"`
	Content  string   `json:"content"`
	Price    string   `json:"price"`
	UserID   *int64   `json:"user_id"`
	Public   bool     `json:"public"`
	Tags     []string `json:"_tags"`
	Path     string   `json:"path"`
}

// Fields returns the record as the generic map handed back in search hits.
func (r Record) Fields() map[string]interface{} {
	fields := map[string]interface{}{
		"title":   r.Title,
		"content": r.Content,
		"price":   r.Price,
		"public":  r.Public,
		"_tags":   r.Tags,
		"path":    r.Path,
		"user_id": nil,
	}
	if r.UserID != nil {
		fields["user_id"] = *r.UserID
	}
	return fields
}

// Index is a search backend that stores records and answers ranked queries
type Index interface {
	Save(ctx context.Context, indexName string, record Record) error
	Delete(ctx context.Context, indexName, objectID string) error
	Query(ctx context.Context, indexName, query string, params Params) (*catalog.SearchResult, error)
}

// Params are the optional query parameters understood by every backend
type Params struct {
	Tags        []string
	HitsPerPage int
	Page        int
}

// DefaultHitsPerPage is used when a query does not ask for a page size.
const DefaultHitsPerPage = 20

// ParseParams reads tags, hitsPerPage and page from raw query parameters.
// hitsPerPage is capped at catalog.MaxPageSize and page is clamped so that
// page*hitsPerPage+hitsPerPage never overflows an int.
func ParseParams(raw map[string]string) Params {
	p := Params{HitsPerPage: DefaultHitsPerPage}
	if tags := strings.TrimSpace(raw["tags"]); tags != "" {
		for _, tag := range strings.Split(tags, ",") {
			if tag = strings.ToLower(strings.TrimSpace(tag)); tag != "" {
				p.Tags = append(p.Tags, tag)
			}
		}
	}
	if n, err := strconv.Atoi(raw["hitsPerPage"]); err == nil && n > 0 {
		p.HitsPerPage = min(n, catalog.MaxPageSize)
	}
	if n, err := strconv.Atoi(raw["page"]); err == nil && n >= 0 {
		p.Page = min(n, maxPage(p.HitsPerPage))
	}
	return p
}

// maxPage is the largest page whose offset and end both fit in an int.
func maxPage(hitsPerPage int) int {
	return math.MaxInt/hitsPerPage - 1
}

// ObjectID is the index key for a product ID.
func ObjectID(id int64) string {
	return strconv.FormatInt(id, 10)
}

// ShouldIndex reports whether a product belongs in the index.
func ShouldIndex(p *catalog.Product) bool {
	return p.Public
}

// Project derives the full index record for a product.
func Project(p *catalog.Product) Record {
	owner := "unowned"
	if p.OwnerID != nil {
		owner = strconv.FormatInt(*p.OwnerID, 10)
	}
	return Record{
		ObjectID: ObjectID(p.ID),
		Title:    p.Title,
		Content:  p.Content,
		Price:    p.Price.StringFixed(catalog.PriceScale),
		UserID:   p.OwnerID,
		Public:   p.Public,
		Tags:     Tags(p.Title),
		Path:     fmt.Sprintf("products/%s/%d", owner, p.ID),
	}
}

// Tags splits a title into distinct lower-case words, sorted.
func Tags(title string) []string {
	words := strings.FieldsFunc(strings.ToLower(title), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]struct{}, len(words))
	tags := make([]string, 0, len(words))
	for _, w := range words {
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		tags = append(tags, w)
	}
	sort.Strings(tags)
	return tags
}

// Synchronizer keeps an Index in step with product writes and implements catalog.Indexer
type Synchronizer struct {
	index     Index
	indexName string
	failures  *prometheus.CounterVec
}

// SyncOption configures a Synchronizer
type SyncOption func(*Synchronizer)

// WithRegisterer registers the failure counter with reg.
func WithRegisterer(reg prometheus.Registerer) SyncOption {
	return func(s *Synchronizer) {
		reg.MustRegister(s.failures)
	}
}

// NewSynchronizer creates a synchronizer writing to indexName on index.
func NewSynchronizer(index Index, indexName string, opts ...SyncOption) *Synchronizer {
	if indexName == "" {
		indexName = DefaultIndexName
	}
	s := &Synchronizer{
		index:     index,
		indexName: indexName,
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "catalog",
			Name:      "index_sync_failures_total",
			Help:      "Number of search index writes that failed.",
		}, []string{"op"}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IndexName returns the index written to.
func (s *Synchronizer) IndexName() string {
	return s.indexName
}

// Failures exposes the failure counter, labelled by op ("upsert", "remove").
func (s *Synchronizer) Failures() *prometheus.CounterVec {
	return s.failures
}

// Upsert writes the product's projection, or removes it when it should not be indexed.
func (s *Synchronizer) Upsert(ctx context.Context, p *catalog.Product) error {
	var err error
	if ShouldIndex(p) {
		err = s.index.Save(ctx, s.indexName, Project(p))
	} else {
		err = s.index.Delete(ctx, s.indexName, ObjectID(p.ID))
	}
	if err != nil {
		s.failures.WithLabelValues("upsert").Inc()
		return err
	}
	return nil
}

// Remove deletes the product's index entry.
func (s *Synchronizer) Remove(ctx context.Context, id int64) error {
	if err := s.index.Delete(ctx, s.indexName, ObjectID(id)); err != nil {
		s.failures.WithLabelValues("remove").Inc()
		return err
	}
	return nil
}

// Search delegates to the backend; results come back in the backend's ranking.
func (s *Synchronizer) Search(ctx context.Context, req catalog.SearchRequest) (*catalog.SearchResult, error) {
	indexName := req.IndexName
	if indexName == "" {
		indexName = s.indexName
	}
	return s.index.Query(ctx, indexName, req.Query, ParseParams(req.Params))
}

// reindexBatch is the page size used when walking the store
const reindexBatch = 100

// Reindex pushes every product in repo through Upsert, repairing entries left
// stale by failed writes. It returns how many products were visited and stops
// at the first index error.
func (s *Synchronizer) Reindex(ctx context.Context, repo catalog.Repository) (int, error) {
	visited := 0
	for offset := 0; ; offset += reindexBatch {
		products, total, err := repo.ListProducts(ctx, reindexBatch, offset)
		if err != nil {
			return visited, fmt.Errorf("failed to list products: %w", err)
		}
		for _, p := range products {
			if err := s.Upsert(ctx, p); err != nil {
				return visited, &catalog.IndexSyncError{ID: p.ID, Op: "upsert", Err: err}
			}
			visited++
		}
		if len(products) == 0 || offset+len(products) >= total {
			return visited, nil
		}
	}
}

var _ catalog.Indexer = (*Synchronizer)(nil)
