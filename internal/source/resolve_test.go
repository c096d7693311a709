package source

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"

	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	objects map[string][]byte
}

func (f *fakeS3) Download(_ context.Context, bucket, key string, w io.WriterAt) (int64, error) {
	data, ok := f.objects[bucket+"/"+key]
	if !ok {
		return 0, &s3types.NoSuchKey{}
	}
	n, err := w.WriteAt(data, 0)
	return int64(n), err
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindS3, KindOf("s3://b/k.pdf"))
	assert.Equal(t, KindHTTP, KindOf("https://example.com/a.pdf"))
	assert.Equal(t, KindHTTP, KindOf("http://example.com/a.pdf"))
	assert.Equal(t, KindFile, KindOf("file:///tmp/a.pdf"))
	assert.Equal(t, KindFile, KindOf("docs/a.pdf"))
}

func TestResolve_LocalFile(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "a.pdf")
	require.NoError(t, os.WriteFile(p, []byte("%PDF-1.4"), 0o644))

	r := &Resolver{}
	got, err := r.Resolve(context.Background(), p, dir)
	require.NoError(t, err)
	assert.Equal(t, Resolved{Path: p, Kind: KindFile}, got)

	got, err = r.Resolve(context.Background(), "file://"+p, dir)
	require.NoError(t, err)
	assert.Equal(t, p, got.Path)
	assert.False(t, got.Temporary)
}

func TestResolve_Missing(t *testing.T) {
	dir := t.TempDir()
	r := &Resolver{}

	_, err := r.Resolve(context.Background(), filepath.Join(dir, "nope.pdf"), dir)
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = r.Resolve(context.Background(), dir, dir)
	assert.True(t, errors.Is(err, ErrNotFound), "directories are not sources")
}

func TestResolve_HTTP(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/a.pdf" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("%PDF-1.4 remote"))
	}))
	defer ts.Close()

	dir := t.TempDir()
	r := &Resolver{HTTP: ts.Client()}

	got, err := r.Resolve(context.Background(), ts.URL+"/a.pdf", dir)
	require.NoError(t, err)
	assert.True(t, got.Temporary)
	assert.Equal(t, KindHTTP, got.Kind)
	assert.Equal(t, dir, filepath.Dir(got.Path))
	data, err := os.ReadFile(got.Path)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 remote", string(data))

	_, err = r.Resolve(context.Background(), ts.URL+"/missing.pdf", dir)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestResolve_S3(t *testing.T) {
	dir := t.TempDir()
	r := &Resolver{S3: &fakeS3{objects: map[string][]byte{"docs/in/a.pdf": []byte("%PDF-1.4 s3")}}}

	got, err := r.Resolve(context.Background(), "s3://docs/in/a.pdf", dir)
	require.NoError(t, err)
	assert.True(t, got.Temporary)
	data, err := os.ReadFile(got.Path)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 s3", string(data))

	_, err = r.Resolve(context.Background(), "s3://docs/in/missing.pdf", dir)
	assert.True(t, errors.Is(err, ErrNotFound))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "failed download must not leave a temp file")

	_, err = (&Resolver{}).Resolve(context.Background(), "s3://docs/in/a.pdf", dir)
	assert.Error(t, err)
}

func TestWriteTemp(t *testing.T) {
	dir := t.TempDir()
	p, err := WriteTemp(dir, []byte("%PDF-1.4"))
	require.NoError(t, err)
	assert.Equal(t, dir, filepath.Dir(p))
	matched, _ := filepath.Match(TempPattern, filepath.Base(p))
	assert.True(t, matched)

	_, err = WriteTemp(filepath.Join(dir, "missing"), []byte("x"))
	assert.Error(t, err)
}

func TestResolve_HTTPSizeLimit(t *testing.T) {
	body := bytes.Repeat([]byte("x"), 4096)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/sized.pdf":
			w.Header().Set("Content-Length", strconv.Itoa(len(body)))
			_, _ = w.Write(body)
		case "/chunked.pdf":
			// flushing first drops Content-Length, so only the copy can catch it
			w.(http.Flusher).Flush()
			_, _ = w.Write(body)
		case "/small.pdf":
			_, _ = w.Write(body[:512])
		}
	}))
	defer ts.Close()

	dir := t.TempDir()
	r := &Resolver{HTTP: ts.Client(), MaxBytes: 1024}

	for _, name := range []string{"/sized.pdf", "/chunked.pdf"} {
		t.Run(name, func(t *testing.T) {
			_, err := r.Resolve(context.Background(), ts.URL+name, dir)
			require.ErrorIs(t, err, ErrTooLarge)
		})
	}
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "oversized downloads must not leave temp files")

	got, err := r.Resolve(context.Background(), ts.URL+"/small.pdf", dir)
	require.NoError(t, err)
	st, err := os.Stat(got.Path)
	require.NoError(t, err)
	assert.Equal(t, int64(512), st.Size())
}

func TestResolve_S3SizeLimit(t *testing.T) {
	dir := t.TempDir()
	r := &Resolver{
		S3:       &fakeS3{objects: map[string][]byte{"docs/big.pdf": bytes.Repeat([]byte("x"), 2048)}},
		MaxBytes: 1024,
	}
	_, err := r.Resolve(context.Background(), "s3://docs/big.pdf", dir)
	require.ErrorIs(t, err, ErrTooLarge)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestResolve_RemoteAccess(t *testing.T) {
	var hits atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path == "/redirect" {
			http.Redirect(w, r, "http://169.254.169.254/latest/meta-data", http.StatusFound)
			return
		}
		_, _ = w.Write([]byte("%PDF-1.4"))
	}))
	defer ts.Close()
	dir := t.TempDir()

	t.Run("http disabled", func(t *testing.T) {
		r := &Resolver{HTTP: ts.Client(), NoHTTP: true}
		_, err := r.Resolve(context.Background(), ts.URL+"/a.pdf", dir)
		require.ErrorIs(t, err, ErrRemoteDenied)
		assert.Zero(t, hits.Load())
	})

	t.Run("host not listed", func(t *testing.T) {
		r := &Resolver{HTTP: ts.Client(), AllowedHosts: []string{"docs.example.com"}}
		_, err := r.Resolve(context.Background(), "http://169.254.169.254/latest/meta-data", dir)
		require.ErrorIs(t, err, ErrRemoteDenied)
		_, err = r.Resolve(context.Background(), ts.URL+"/a.pdf", dir)
		require.ErrorIs(t, err, ErrRemoteDenied)
		assert.Zero(t, hits.Load())
	})

	t.Run("listed host", func(t *testing.T) {
		r := &Resolver{HTTP: ts.Client(), AllowedHosts: []string{"127.0.0.1"}}
		got, err := r.Resolve(context.Background(), ts.URL+"/a.pdf", dir)
		require.NoError(t, err)
		require.NoError(t, os.Remove(got.Path))
	})

	t.Run("redirect to unlisted host", func(t *testing.T) {
		r := &Resolver{HTTP: ts.Client(), AllowedHosts: []string{"127.0.0.1"}}
		_, err := r.Resolve(context.Background(), ts.URL+"/redirect", dir)
		require.ErrorIs(t, err, ErrRemoteDenied)
	})

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestHostAllowed(t *testing.T) {
	r := &Resolver{AllowedHosts: []string{"Docs.Example.com", "*.cdn.example.com"}}
	assert.True(t, r.hostAllowed("docs.example.com"))
	assert.True(t, r.hostAllowed("eu.cdn.example.com"))
	assert.False(t, r.hostAllowed("cdn.example.com"))
	assert.False(t, r.hostAllowed("evil-docs.example.com"))
	assert.False(t, r.hostAllowed("169.254.169.254"))
	assert.True(t, (&Resolver{}).hostAllowed("anything"))
}

func TestToTemp_CloseErrorRemovesFile(t *testing.T) {
	dir := t.TempDir()
	_, err := toTemp(dir, func(f *os.File) error {
		if _, err := f.Write([]byte("%PDF")); err != nil {
			return err
		}
		// a second Close fails like a flush onto a full disk would
		return f.Close()
	})
	require.Error(t, err)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
