package server

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/pdfmerge/internal/metrics"
)

// tempPrefixes are the names of files created by the planner, the source
// resolver and atomic file output.
var tempPrefixes = []string{"pdfmerge-", ".pdfmerge-out-"}

// CleanupTemps removes temp files left in dir by earlier merges that are
// older than maxAge. Subdirectories are not visited.
func CleanupTemps(dir string, maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}
	now := time.Now()
	removed := 0
	for _, e := range entries {
		if e.IsDir() || !isTempName(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) < maxAge {
			continue
		}
		if err := os.Remove(filepath.Join(dir, e.Name())); err == nil {
			removed++
		}
	}
	return removed, nil
}

func isTempName(name string) bool {
	for _, p := range tempPrefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

// StartSweeper runs CleanupTemps every interval until ctx is done.
func StartSweeper(ctx context.Context, dir string, maxAge, interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := CleanupTemps(dir, maxAge)
				if err != nil {
					log.Warn().Err(err).Str("dir", dir).Msg("temp sweep failed")
					continue
				}
				if n > 0 {
					metrics.AddTempSwept(n)
					log.Info().Int("removed", n).Str("dir", dir).Msg("swept stale temp files")
				}
			}
		}
	}()
}
