package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseURL(t *testing.T) {
	bucket, key, err := ParseURL("s3://docs/in/2024/report.pdf")
	require.NoError(t, err)
	assert.Equal(t, "docs", bucket)
	assert.Equal(t, "in/2024/report.pdf", key)

	for _, bad := range []string{"docs/report.pdf", "s3://", "s3://docs", "s3://docs/", "s3:///report.pdf"} {
		_, _, err := ParseURL(bad)
		assert.Error(t, err, bad)
	}
}

func TestIsURL(t *testing.T) {
	assert.True(t, IsURL("s3://b/k"))
	assert.False(t, IsURL("/tmp/a.pdf"))
	assert.False(t, IsURL("https://example.com/a.pdf"))
}
