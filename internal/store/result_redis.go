// Package store keeps merged documents produced by the HTTP service in redis
// so clients can fetch them after the request that built them.
package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// ErrNotFound is returned when a result is missing or expired.
var ErrNotFound = errors.New("result not found")

// Meta describes a stored merge result.
type Meta struct {
	Pages   int       `json:"pages"`
	Sources []string  `json:"sources"`
	Created time.Time `json:"created"`
}

// Result is a stored document with its metadata.
type Result struct {
	ID   string
	PDF  []byte
	Meta Meta
}

type ResultStore struct {
	client *redis.Client
	keyNS  string
	ttl    time.Duration
}

// NewResultStore connects to redisURL and pings it. Results expire after ttl;
// a non-positive ttl keeps them until deleted.
func NewResultStore(redisURL string, ttl time.Duration) (*ResultStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	c := redis.NewClient(opt)
	if err := c.Ping(context.Background()).Err(); err != nil {
		c.Close()
		return nil, err
	}
	return NewResultStoreFromClient(c, ttl), nil
}

// NewResultStoreFromClient wraps an existing client.
func NewResultStoreFromClient(c *redis.Client, ttl time.Duration) *ResultStore {
	return &ResultStore{client: c, keyNS: "merge", ttl: ttl}
}

func (s *ResultStore) key(id string) string { return fmt.Sprintf("%s:%s", s.keyNS, id) }

// Save writes the document and its metadata under id.
func (s *ResultStore) Save(ctx context.Context, id string, pdf []byte, meta Meta) error {
	if meta.Created.IsZero() {
		meta.Created = time.Now().UTC()
	}
	k := s.key(id)
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, k, encodeMeta(pdf, meta))
	if s.ttl > 0 {
		pipe.Expire(ctx, k, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save result %s: %w", id, err)
	}
	return nil
}

// Get returns the stored result or ErrNotFound.
func (s *ResultStore) Get(ctx context.Context, id string) (Result, error) {
	res, err := s.client.HGetAll(ctx, s.key(id)).Result()
	if err != nil {
		return Result{}, err
	}
	if len(res) == 0 {
		return Result{}, ErrNotFound
	}
	pdf, meta := decodeMeta(res)
	return Result{ID: id, PDF: pdf, Meta: meta}, nil
}

// Delete removes a result. Missing results are not an error.
func (s *ResultStore) Delete(ctx context.Context, id string) error {
	return s.client.Del(ctx, s.key(id)).Err()
}

// Ping checks the redis connection.
func (s *ResultStore) Ping(ctx context.Context) error { return s.client.Ping(ctx).Err() }

func (s *ResultStore) Close() error { return s.client.Close() }

func encodeMeta(pdf []byte, meta Meta) map[string]interface{} {
	return map[string]interface{}{
		"pdf":     pdf,
		"pages":   meta.Pages,
		"sources": strings.Join(meta.Sources, "\n"),
		"created": meta.Created.Format(time.RFC3339Nano),
	}
}

func decodeMeta(res map[string]string) ([]byte, Meta) {
	meta := Meta{}
	if p := res["pages"]; p != "" {
		meta.Pages, _ = strconv.Atoi(p)
	}
	if v := res["sources"]; v != "" {
		meta.Sources = strings.Split(v, "\n")
	}
	if v := res["created"]; v != "" {
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			meta.Created = t
		}
	}
	return []byte(res["pdf"]), meta
}
