package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/theimaginaryfoundation/casebrief/brief"
)

const DefaultRedisPrefix = "casebrief:doc:"

const (
	fieldDocID         = "doc_id"
	fieldQuery         = "query"
	fieldModifiedQuery = "modified_query"
	fieldSummary       = "summary"
)

// Redis keeps one hash per document. A positive ttl is refreshed on every write.
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedis connects using a redis:// URL.
func NewRedis(ctx context.Context, rawURL, prefix string, ttl time.Duration) (*Redis, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewRedisFromClient(client, prefix, ttl), nil
}

func NewRedisFromClient(client *redis.Client, prefix string, ttl time.Duration) *Redis {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &Redis{client: client, prefix: prefix, ttl: ttl}
}

func (r *Redis) Key(docID string) string {
	return r.prefix + docID
}

func (r *Redis) Get(ctx context.Context, docID string) (brief.Record, bool, error) {
	fields, err := r.client.HGetAll(ctx, r.Key(docID)).Result()
	if err != nil {
		return brief.Record{}, false, fmt.Errorf("redis get %s: %w", docID, err)
	}
	if len(fields) == 0 {
		return brief.Record{}, false, nil
	}
	return brief.Record{
		DocID:         docID,
		Query:         fields[fieldQuery],
		ModifiedQuery: fields[fieldModifiedQuery],
		Summary:       fields[fieldSummary],
	}, true, nil
}

func (r *Redis) PutSummary(ctx context.Context, docID, summary string) error {
	return r.put(ctx, docID, fieldSummary, summary)
}

func (r *Redis) PutQuery(ctx context.Context, docID, query, modifiedQuery string) error {
	return r.put(ctx, docID, fieldQuery, query, fieldModifiedQuery, modifiedQuery)
}

func (r *Redis) put(ctx context.Context, docID string, kv ...any) error {
	key := r.Key(docID)
	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, key, append([]any{fieldDocID, docID}, kv...)...)
	if r.ttl > 0 {
		pipe.Expire(ctx, key, r.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis put %s: %w", docID, err)
	}
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
