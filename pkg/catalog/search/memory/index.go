package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/tendant/simple-product/pkg/catalog"
	"github.com/tendant/simple-product/pkg/catalog/search"
)

const (
	titleWeight   = 2.0
	contentWeight = 1.0
)

// Index implements search.Index in memory with simple term-frequency ranking
type Index struct {
	mu      sync.RWMutex
	indexes map[string]map[string]search.Record
}

// New creates an empty in-memory index
func New() *Index {
	return &Index{
		indexes: make(map[string]map[string]search.Record),
	}
}

func (i *Index) Save(ctx context.Context, indexName string, record search.Record) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	records, ok := i.indexes[indexName]
	if !ok {
		records = make(map[string]search.Record)
		i.indexes[indexName] = records
	}
	record.Tags = append([]string(nil), record.Tags...)
	records[record.ObjectID] = record
	return nil
}

func (i *Index) Delete(ctx context.Context, indexName, objectID string) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	delete(i.indexes[indexName], objectID)
	return nil
}

// Get returns the stored record, for inspection in tests and tooling.
func (i *Index) Get(indexName, objectID string) (search.Record, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	record, ok := i.indexes[indexName][objectID]
	return record, ok
}

// Len returns the number of records held in indexName.
func (i *Index) Len(indexName string) int {
	i.mu.RLock()
	defer i.mu.RUnlock()

	return len(i.indexes[indexName])
}

func (i *Index) Query(ctx context.Context, indexName, query string, params search.Params) (*catalog.SearchResult, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	terms := strings.Fields(strings.ToLower(query))

	hits := []catalog.SearchHit{}
	for _, record := range i.indexes[indexName] {
		if !hasTags(record, params.Tags) {
			continue
		}
		score, matched := rank(record, terms)
		if !matched {
			continue
		}
		hits = append(hits, catalog.SearchHit{
			ObjectID: record.ObjectID,
			Score:    score,
			Fields:   record.Fields(),
		})
	}

	sort.Slice(hits, func(a, b int) bool {
		if hits[a].Score != hits[b].Score {
			return hits[a].Score > hits[b].Score
		}
		return hits[a].ObjectID < hits[b].ObjectID
	})

	total := len(hits)
	start, end := 0, total
	if params.HitsPerPage > 0 {
		// compare by division so huge pages cannot overflow
		start = total
		if params.Page >= 0 && params.Page <= total/params.HitsPerPage {
			start = params.Page * params.HitsPerPage
		}
		end = min(start+params.HitsPerPage, total)
	}

	return &catalog.SearchResult{
		Index: indexName,
		Query: query,
		Total: total,
		Hits:  hits[start:end],
	}, nil
}

// rank requires every term to appear in title or content.
func rank(record search.Record, terms []string) (float64, bool) {
	if len(terms) == 0 {
		return 0, true
	}
	title := strings.ToLower(record.Title)
	content := strings.ToLower(record.Content)

	var score float64
	for _, term := range terms {
		inTitle := strings.Count(title, term)
		inContent := strings.Count(content, term)
		if inTitle == 0 && inContent == 0 {
			return 0, false
		}
		score += titleWeight*float64(inTitle) + contentWeight*float64(inContent)
	}
	return score, true
}

func hasTags(record search.Record, tags []string) bool {
	for _, want := range tags {
		found := false
		for _, tag := range record.Tags {
			if tag == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

var _ search.Index = (*Index)(nil)
