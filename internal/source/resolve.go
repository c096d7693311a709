// Package source turns merge source locators into local files.
//
// Supported locators:
//   - absolute/relative filesystem paths and file://path
//   - http(s):// URLs (downloaded to temp)
//   - s3://bucket/key (downloaded to temp via the S3 client)
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"strings"
	"sync/atomic"

	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog/log"

	"github.com/local/pdfmerge/internal/storage"
)

// TempPattern is the name pattern of every temp file created by this module.
const TempPattern = "pdfmerge-*.pdf"

// ErrNotFound is returned when a locator does not name an existing file or object.
var ErrNotFound = errors.New("source not found")

// ErrTooLarge is returned when a download exceeds Resolver.MaxBytes.
var ErrTooLarge = errors.New("source exceeds size limit")

// ErrRemoteDenied is returned for http(s) locators the resolver may not fetch.
var ErrRemoteDenied = errors.New("remote source not allowed")

// Kind classifies a locator.
type Kind string

const (
	KindFile  Kind = "file"
	KindHTTP  Kind = "http"
	KindS3    Kind = "s3"
	KindBytes Kind = "bytes"
)

// Resolved is a locator materialised as a local file.
type Resolved struct {
	Path string
	Kind Kind
	// Temporary is true when Path was created by the resolver and belongs to
	// the caller.
	Temporary bool
}

// S3Downloader is the subset of storage.S3Client used by Resolver.
type S3Downloader interface {
	Download(ctx context.Context, bucket, key string, w io.WriterAt) (int64, error)
}

// Resolver resolves locators. A nil S3 field disables s3:// locators.
type Resolver struct {
	HTTP *http.Client
	S3   S3Downloader

	// MaxBytes caps every download; 0 means no limit.
	MaxBytes int64
	// NoHTTP rejects http(s) locators.
	NoHTTP bool
	// AllowedHosts, when non-empty, restricts http(s) locators and their
	// redirects to these hosts. "*.example.com" matches any subdomain.
	AllowedHosts []string
}

// KindOf returns the locator kind without touching the filesystem or network.
func KindOf(locator string) Kind {
	switch {
	case storage.IsURL(locator):
		return KindS3
	case strings.HasPrefix(locator, "http://") || strings.HasPrefix(locator, "https://"):
		return KindHTTP
	default:
		return KindFile
	}
}

// Resolve returns a local path for locator, downloading remote sources into tempDir.
func (r *Resolver) Resolve(ctx context.Context, locator, tempDir string) (Resolved, error) {
	switch KindOf(locator) {
	case KindS3:
		p, err := r.downloadS3(ctx, locator, tempDir)
		return Resolved{Path: p, Kind: KindS3, Temporary: true}, err
	case KindHTTP:
		p, err := r.downloadHTTP(ctx, locator, tempDir)
		return Resolved{Path: p, Kind: KindHTTP, Temporary: true}, err
	}

	p := strings.TrimPrefix(locator, "file://")
	st, err := os.Stat(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Resolved{}, fmt.Errorf("%s: %w", p, ErrNotFound)
		}
		return Resolved{}, err
	}
	if st.IsDir() {
		return Resolved{}, fmt.Errorf("%s is a directory: %w", p, ErrNotFound)
	}
	return Resolved{Path: p, Kind: KindFile}, nil
}

// WriteTemp persists data to a new temp file in dir.
func WriteTemp(dir string, data []byte) (string, error) {
	return toTemp(dir, func(f *os.File) error {
		_, err := f.Write(data)
		return err
	})
}

// toTemp creates a temp file in dir and fills it. The file is removed when
// fill or Close fails.
func toTemp(dir string, fill func(f *os.File) error) (string, error) {
	f, err := os.CreateTemp(dir, TempPattern)
	if err != nil {
		return "", err
	}
	if err := fill(f); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

func (r *Resolver) hostAllowed(host string) bool {
	if len(r.AllowedHosts) == 0 {
		return true
	}
	host = strings.ToLower(host)
	for _, h := range r.AllowedHosts {
		h = strings.ToLower(h)
		if suffix, ok := strings.CutPrefix(h, "*"); ok {
			if strings.HasSuffix(host, suffix) && len(host) > len(suffix) {
				return true
			}
			continue
		}
		if host == h {
			return true
		}
	}
	return false
}

func (r *Resolver) httpClient() *http.Client {
	base := r.HTTP
	if base == nil {
		base = http.DefaultClient
	}
	if len(r.AllowedHosts) == 0 {
		return base
	}
	c := *base
	next := base.CheckRedirect
	c.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if !r.hostAllowed(req.URL.Hostname()) {
			return fmt.Errorf("redirect to %s: %w", req.URL.Host, ErrRemoteDenied)
		}
		if next != nil {
			return next(req, via)
		}
		if len(via) >= 10 {
			return errors.New("stopped after 10 redirects")
		}
		return nil
	}
	return &c
}

func (r *Resolver) downloadHTTP(ctx context.Context, rawURL, dir string) (string, error) {
	if r.NoHTTP {
		return "", fmt.Errorf("%s: %w", rawURL, ErrRemoteDenied)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", err
	}
	if !r.hostAllowed(req.URL.Hostname()) {
		return "", fmt.Errorf("%s: host %s: %w", rawURL, req.URL.Hostname(), ErrRemoteDenied)
	}
	resp, err := r.httpClient().Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone {
		return "", fmt.Errorf("%s: http %d: %w", rawURL, resp.StatusCode, ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%s: http %d", rawURL, resp.StatusCode)
	}
	if r.MaxBytes > 0 && resp.ContentLength > r.MaxBytes {
		return "", fmt.Errorf("%s: %d bytes: %w", rawURL, resp.ContentLength, ErrTooLarge)
	}

	path, err := toTemp(dir, func(f *os.File) error {
		body := io.Reader(resp.Body)
		if r.MaxBytes > 0 {
			body = io.LimitReader(resp.Body, r.MaxBytes+1)
		}
		n, err := io.Copy(f, body)
		if err != nil {
			return err
		}
		if r.MaxBytes > 0 && n > r.MaxBytes {
			return fmt.Errorf("%s: more than %d bytes: %w", rawURL, r.MaxBytes, ErrTooLarge)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	log.Info().Str("url", rawURL).Str("file", path).Msg("downloaded http source to temp")
	return path, nil
}

func (r *Resolver) downloadS3(ctx context.Context, s3url, dir string) (string, error) {
	if r.S3 == nil {
		return "", fmt.Errorf("%s: s3 storage is not configured", s3url)
	}
	bucket, key, err := storage.ParseURL(s3url)
	if err != nil {
		return "", err
	}
	return toTemp(dir, func(f *os.File) error {
		w := &capWriterAt{w: f, max: r.MaxBytes}
		n, err := r.S3.Download(ctx, bucket, key, w)
		if w.exceeded.Load() {
			return fmt.Errorf("%s: more than %d bytes: %w", s3url, r.MaxBytes, ErrTooLarge)
		}
		if err != nil {
			var nsk *s3types.NoSuchKey
			var nf *s3types.NotFound
			if errors.As(err, &nsk) || errors.As(err, &nf) {
				return fmt.Errorf("%s: %w", s3url, ErrNotFound)
			}
			return err
		}
		if r.MaxBytes > 0 && n > r.MaxBytes {
			return fmt.Errorf("%s: %d bytes: %w", s3url, n, ErrTooLarge)
		}
		return nil
	})
}

// capWriterAt refuses writes past max bytes; max <= 0 disables the cap.
// The S3 downloader writes parts concurrently.
type capWriterAt struct {
	w        io.WriterAt
	max      int64
	exceeded atomic.Bool
}

func (c *capWriterAt) WriteAt(p []byte, off int64) (int, error) {
	if c.max > 0 && off+int64(len(p)) > c.max {
		c.exceeded.Store(true)
		return 0, ErrTooLarge
	}
	return c.w.WriteAt(p, off)
}
