package redisearch

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/tendant/simple-product/pkg/catalog"
	"github.com/tendant/simple-product/pkg/catalog/search"
)

const tagSeparator = ","

// Index implements search.Index on RediSearch. Records are hashes keyed "<index>:<objectID>".
type Index struct {
	client *redis.Client
}

// New wraps an existing client.
func New(client *redis.Client) *Index {
	return &Index{client: client}
}

func key(indexName, objectID string) string {
	return indexName + ":" + objectID
}

// EnsureIndex creates the search schema for indexName if it does not exist yet.
func (i *Index) EnsureIndex(ctx context.Context, indexName string) error {
	err := i.client.FTCreate(ctx, indexName,
		&redis.FTCreateOptions{
			OnHash: true,
			Prefix: []interface{}{indexName + ":"},
		},
		&redis.FieldSchema{FieldName: "title", FieldType: redis.SearchFieldTypeText, Weight: 2},
		&redis.FieldSchema{FieldName: "content", FieldType: redis.SearchFieldTypeText},
		&redis.FieldSchema{FieldName: "price", FieldType: redis.SearchFieldTypeNumeric},
		&redis.FieldSchema{FieldName: "user_id", FieldType: redis.SearchFieldTypeTag},
		&redis.FieldSchema{FieldName: "public", FieldType: redis.SearchFieldTypeTag},
		&redis.FieldSchema{FieldName: "_tags", FieldType: redis.SearchFieldTypeTag, Separator: tagSeparator},
		&redis.FieldSchema{FieldName: "path", FieldType: redis.SearchFieldTypeTag},
	).Err()
	if err != nil && !strings.Contains(err.Error(), "Index already exists") {
		return fmt.Errorf("failed to create search index %s: %w", indexName, err)
	}
	return nil
}

func (i *Index) Save(ctx context.Context, indexName string, record search.Record) error {
	userID := ""
	if record.UserID != nil {
		userID = strconv.FormatInt(*record.UserID, 10)
	}

	return i.client.HSet(ctx, key(indexName, record.ObjectID), map[string]interface{}{
		"title":   record.Title,
		"content": record.Content,
		"price":   record.Price,
		"user_id": userID,
		"public":  strconv.FormatBool(record.Public),
		"_tags":   strings.Join(record.Tags, tagSeparator),
		"path":    record.Path,
	}).Err()
}

func (i *Index) Delete(ctx context.Context, indexName, objectID string) error {
	return i.client.Del(ctx, key(indexName, objectID)).Err()
}

func (i *Index) Query(ctx context.Context, indexName, query string, params search.Params) (*catalog.SearchResult, error) {
	res, err := i.client.FTSearchWithArgs(ctx, indexName, BuildQuery(query, params.Tags), &redis.FTSearchOptions{
		WithScores:  true,
		LimitOffset: params.Page * params.HitsPerPage,
		Limit:       params.HitsPerPage,
	}).Result()
	if err != nil {
		return nil, err
	}

	prefix := indexName + ":"
	hits := make([]catalog.SearchHit, 0, len(res.Docs))
	for _, doc := range res.Docs {
		record := recordFromHash(strings.TrimPrefix(doc.ID, prefix), doc.Fields)
		hit := catalog.SearchHit{
			ObjectID: record.ObjectID,
			Fields:   record.Fields(),
		}
		if doc.Score != nil {
			hit.Score = *doc.Score
		}
		hits = append(hits, hit)
	}

	return &catalog.SearchResult{
		Index: indexName,
		Query: query,
		Total: res.Total,
		Hits:  hits,
	}, nil
}

func recordFromHash(objectID string, fields map[string]string) search.Record {
	record := search.Record{
		ObjectID: objectID,
		Title:    fields["title"],
		Content:  fields["content"],
		Price:    fields["price"],
		Path:     fields["path"],
		Tags:     []string{},
	}
	record.Public, _ = strconv.ParseBool(fields["public"])
	if v := fields["user_id"]; v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			record.UserID = &id
		}
	}
	if v := fields["_tags"]; v != "" {
		record.Tags = strings.Split(v, tagSeparator)
	}
	return record
}

// BuildQuery turns free text and tag filters into a RediSearch query string.
func BuildQuery(text string, tags []string) string {
	var parts []string
	for _, term := range strings.Fields(text) {
		if escaped := escape(term); escaped != "" {
			parts = append(parts, escaped)
		}
	}
	for _, tag := range tags {
		parts = append(parts, fmt.Sprintf("@_tags:{%s}", escape(tag)))
	}
	if len(parts) == 0 {
		return "*"
	}
	return strings.Join(parts, " ")
}

// escape backslash-escapes RediSearch query syntax characters.
func escape(s string) string {
	var b strings.Builder
	for _, r := range s {
		if strings.ContainsRune(",.<>{}[]\"':;!@#$%^&*()-+=~|/\\ ", r) {
			b.WriteRune('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

var _ search.Index = (*Index)(nil)
