package statuscheck

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

type headFunc func(ctx context.Context, bucket string) error

func (f headFunc) HeadBucket(ctx context.Context, bucket string) error { return f(ctx, bucket) }

func TestSummaryAllDisabled(t *testing.T) {
	s := New(Options{}).Summary(context.Background())
	assert.True(t, s.Ready())
	assert.False(t, s.Redis.Enabled)
	assert.False(t, s.S3.Enabled)
	assert.False(t, s.TempDir.Enabled)
}

func TestSummaryHealthy(t *testing.T) {
	var checked string
	c := New(Options{
		Redis:    pingFunc(func(context.Context) error { return nil }),
		S3:       headFunc(func(_ context.Context, b string) error { checked = b; return nil }),
		S3Bucket: "merged",
		TempDir:  t.TempDir(),
	})
	s := c.Summary(context.Background())
	assert.True(t, s.Ready())
	assert.Equal(t, "merged", checked)
	assert.Equal(t, "Connected", s.Redis.Message)
	assert.Equal(t, "Writable", s.TempDir.Message)
}

func TestSummaryFailures(t *testing.T) {
	c := New(Options{
		Redis:    pingFunc(func(context.Context) error { return errors.New("connection refused") }),
		S3:       headFunc(func(context.Context, string) error { return errors.New(strings.Repeat("x", 300)) }),
		S3Bucket: "merged",
		TempDir:  filepath.Join(t.TempDir(), "missing"),
	})
	s := c.Summary(context.Background())
	assert.False(t, s.Ready())
	assert.False(t, s.Redis.OK)
	assert.Equal(t, "connection refused", s.Redis.Message)
	assert.Len(t, s.S3.Message, 120)
	assert.False(t, s.TempDir.OK)
}

func TestS3WithoutBucketIsDisabled(t *testing.T) {
	c := New(Options{S3: headFunc(func(context.Context, string) error { return errors.New("boom") })})
	s := c.Summary(context.Background())
	assert.False(t, s.S3.Enabled)
	assert.True(t, s.Ready())
}
