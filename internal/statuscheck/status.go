package statuscheck

import (
	"context"
	"errors"
	"os"
	"time"
)

// Pinger models the minimal Redis capability we need for status checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

// BucketChecker verifies that an S3 bucket is reachable.
type BucketChecker interface {
	HeadBucket(ctx context.Context, bucket string) error
}

// Checker aggregates readiness checks for the merge service's dependencies.
// Unconfigured dependencies are reported as disabled and do not fail readiness.
type Checker struct {
	redis    Pinger
	s3       BucketChecker
	s3Bucket string
	tempDir  string
}

// Options configures the Checker.
type Options struct {
	Redis    Pinger
	S3       BucketChecker
	S3Bucket string
	TempDir  string
}

// Status represents the readiness of a subsystem.
type Status struct {
	OK      bool   `json:"ok"`
	Enabled bool   `json:"enabled"`
	Message string `json:"message"`
}

// Summary bundles all subsystem statuses.
type Summary struct {
	Redis   Status `json:"redis"`
	S3      Status `json:"s3"`
	TempDir Status `json:"temp_dir"`
}

// Ready reports whether every enabled subsystem is healthy.
func (s Summary) Ready() bool {
	for _, st := range []Status{s.Redis, s.S3, s.TempDir} {
		if st.Enabled && !st.OK {
			return false
		}
	}
	return true
}

func New(opts Options) *Checker {
	return &Checker{
		redis:    opts.Redis,
		s3:       opts.S3,
		s3Bucket: opts.S3Bucket,
		tempDir:  opts.TempDir,
	}
}

// Summary returns the current status snapshot.
func (c *Checker) Summary(ctx context.Context) Summary {
	return Summary{
		Redis:   c.checkRedis(ctx),
		S3:      c.checkS3(ctx),
		TempDir: c.checkTempDir(),
	}
}

var disabled = Status{OK: true, Message: "not configured"}

func (c *Checker) checkRedis(ctx context.Context) Status {
	if c.redis == nil {
		return disabled
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := c.redis.Ping(ctx); err != nil {
		return Status{Enabled: true, Message: trimError(err)}
	}
	return Status{OK: true, Enabled: true, Message: "Connected"}
}

func (c *Checker) checkS3(ctx context.Context) Status {
	if c.s3 == nil || c.s3Bucket == "" {
		return disabled
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := c.s3.HeadBucket(ctx, c.s3Bucket); err != nil {
		return Status{Enabled: true, Message: trimError(err)}
	}
	return Status{OK: true, Enabled: true, Message: "Connected"}
}

func (c *Checker) checkTempDir() Status {
	if c.tempDir == "" {
		return disabled
	}
	f, err := os.CreateTemp(c.tempDir, "pdfmerge-probe-*")
	if err != nil {
		return Status{Enabled: true, Message: trimError(err)}
	}
	f.Close()
	_ = os.Remove(f.Name())
	return Status{OK: true, Enabled: true, Message: "Writable"}
}

func trimError(err error) string {
	if err == nil {
		return ""
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}
	msg := err.Error()
	if len(msg) > 120 {
		return msg[:120]
	}
	return msg
}
