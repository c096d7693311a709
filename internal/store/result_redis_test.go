package store

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetaRoundTrip(t *testing.T) {
	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	fields := encodeMeta([]byte("%PDF-1.7"), Meta{Pages: 4, Sources: []string{"a.pdf", "s3://b/c.pdf"}, Created: created})

	res := map[string]string{}
	for k, v := range fields {
		switch x := v.(type) {
		case []byte:
			res[k] = string(x)
		case int:
			res[k] = strconv.Itoa(x)
		case string:
			res[k] = x
		}
	}

	pdf, meta := decodeMeta(res)
	assert.Equal(t, "%PDF-1.7", string(pdf))
	assert.Equal(t, 4, meta.Pages)
	assert.Equal(t, []string{"a.pdf", "s3://b/c.pdf"}, meta.Sources)
	assert.True(t, created.Equal(meta.Created))
}

func TestDecodeMetaTolerant(t *testing.T) {
	pdf, meta := decodeMeta(map[string]string{"pdf": "x", "pages": "bad", "created": "yesterday"})
	assert.Equal(t, []byte("x"), pdf)
	assert.Zero(t, meta.Pages)
	assert.Nil(t, meta.Sources)
	assert.True(t, meta.Created.IsZero())
}

func TestKey(t *testing.T) {
	s := NewResultStoreFromClient(nil, time.Minute)
	assert.Equal(t, "merge:abc", s.key("abc"))
}

// TestResultStoreRedis runs against a live server when REDIS_TEST_URL is set.
func TestResultStoreRedis(t *testing.T) {
	url := os.Getenv("REDIS_TEST_URL")
	if url == "" {
		t.Skip("REDIS_TEST_URL not set")
	}
	s, err := NewResultStore(url, time.Minute)
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	id := uuid.NewString()
	require.NoError(t, s.Save(ctx, id, []byte("%PDF-test"), Meta{Pages: 2, Sources: []string{"a.pdf"}}))

	got, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-test"), got.PDF)
	assert.Equal(t, 2, got.Meta.Pages)
	assert.False(t, got.Meta.Created.IsZero())

	ttl, err := s.client.TTL(ctx, s.key(id)).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	require.NoError(t, s.Delete(ctx, id))
	_, err = s.Get(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)
}
