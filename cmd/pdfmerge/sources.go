package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/cheggaaa/pb/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	cfgpkg "github.com/local/pdfmerge/internal/config"
	"github.com/local/pdfmerge/internal/filetype"
	"github.com/local/pdfmerge/internal/merger"
	"github.com/local/pdfmerge/internal/pagerange"
	"github.com/local/pdfmerge/internal/source"
	"github.com/local/pdfmerge/internal/storage"
	"github.com/local/pdfmerge/internal/toolkit"
)

// sourceSpec is one SOURCE[:SELECTOR] argument or manifest entry.
type sourceSpec struct {
	Locator  string
	Selector string
}

// parseSourceArg splits "a.pdf:1,3-5" into locator and selector. The suffix
// after the last colon is only taken as a selector when it looks like one,
// so URLs and Windows drive letters stay intact.
func parseSourceArg(arg string) sourceSpec {
	i := strings.LastIndex(arg, ":")
	if i <= 0 {
		return sourceSpec{Locator: arg}
	}
	sel := arg[i+1:]
	if !looksLikeSelector(sel) {
		return sourceSpec{Locator: arg}
	}
	return sourceSpec{Locator: arg[:i], Selector: sel}
}

func looksLikeSelector(s string) bool {
	if pagerange.IsAll(s) {
		return true
	}
	if strings.TrimSpace(s) == "" {
		return false
	}
	digit := false
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digit = true
		case r == ',' || r == '-' || r == ' ':
		default:
			return false
		}
	}
	return digit
}

// s3Client is created on first use so plain local merges never load AWS config.
var (
	s3Once   sync.Once
	s3Shared *storage.S3Client
	s3Err    error
)

func s3Client(ctx context.Context) (*storage.S3Client, error) {
	s3Once.Do(func() {
		st := cfgpkg.FromEnv().Storage
		s3Shared, s3Err = storage.NewS3Client(ctx, storage.Options{
			Region:          st.Region,
			Endpoint:        st.Endpoint,
			AccessKeyID:     st.AccessKeyID,
			SecretAccessKey: st.SecretAccessKey,
		})
	})
	return s3Shared, s3Err
}

func needsS3(specs []sourceSpec) bool {
	for _, s := range specs {
		if storage.IsURL(s.Locator) {
			return true
		}
	}
	return false
}

// newPlanner builds a planner from flags/config and adds every source in order.
func newPlanner(cmd *cobra.Command, specs []sourceSpec, cleanup bool, progress func(done, total int)) (*merger.Planner, error) {
	ctx := cmd.Context()
	resolver := &source.Resolver{HTTP: &http.Client{Timeout: viper.GetDuration("http-timeout")}}
	if needsS3(specs) {
		c, err := s3Client(ctx)
		if err != nil {
			return nil, err
		}
		resolver.S3 = c
	}

	opts := []merger.Option{
		merger.WithCleanup(cleanup),
		merger.WithResolver(resolver),
		merger.WithTempDir(viper.GetString("temp-dir")),
		merger.WithMaxPages(viper.GetInt("max-pages")),
	}
	if !viper.GetBool("no-detect") {
		opts = append(opts, merger.WithDetector(filetype.New()))
	}
	if progress != nil {
		opts = append(opts, merger.WithProgress(progress))
	}

	p := merger.New(toolkit.NewPDFCPU(), opts...)
	for _, s := range specs {
		if _, err := p.AddSource(ctx, s.Locator, s.Selector); err != nil {
			removeTemps(p)
			return nil, err
		}
	}
	return p, nil
}

// progressBar returns a planner progress callback drawing on stderr and a
// finish func. The bar starts on the first placed page, once the total is known.
func progressBar() (func(done, total int), func()) {
	var bar *pb.ProgressBar
	update := func(done, total int) {
		if bar == nil {
			bar = pb.New(total).
				SetTemplateString(`{{ bar . " " "━" "━" " " " "}} {{counters .}} {{percent .}} {{etime .}}`).
				SetWriter(os.Stderr).
				Start()
		}
		bar.SetCurrent(int64(done))
	}
	finish := func() {
		if bar != nil {
			bar.Finish()
		}
	}
	return update, finish
}

func collectSpecs(args []string, m *Manifest) ([]sourceSpec, error) {
	var specs []sourceSpec
	if m != nil {
		specs = append(specs, m.specs()...)
	}
	for _, a := range args {
		specs = append(specs, parseSourceArg(a))
	}
	if len(specs) == 0 {
		return nil, fmt.Errorf("provide one or more sources (SOURCE[:PAGES]) or --manifest")
	}
	return specs, nil
}

// removeTemps deletes the downloads a planner still owns.
func removeTemps(p *merger.Planner) {
	for _, f := range p.TempFiles() {
		_ = os.Remove(f)
	}
}
