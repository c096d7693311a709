// Package merger plans and runs the concatenation of selected pages from
// several PDF sources into one document.
package merger

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	logpkg "github.com/local/pdfmerge/internal/logger"
	"github.com/local/pdfmerge/internal/metrics"
	"github.com/local/pdfmerge/internal/pagerange"
	"github.com/local/pdfmerge/internal/source"
	"github.com/local/pdfmerge/internal/toolkit"
)

// Entry is one added source. Pages is nil for "all pages".
type Entry struct {
	Locator string
	Path    string
	Kind    source.Kind
	Pages   []int
	// Remove marks Path as a temp file owned by the planner.
	Remove bool
}

// AllPages reports whether the entry selects every page of its source.
func (e Entry) AllPages() bool { return e.Pages == nil }

// Step is one output page: page Page of source Source.
type Step struct {
	Source string `json:"source" yaml:"source"`
	Page   int    `json:"page" yaml:"page"`
}

// Plan is the ordered list of output pages.
type Plan []Step

// Detector reports whether a file is a PDF document.
type Detector interface {
	IsPDF(path string) (bool, string, error)
}

// Option configures a Planner.
type Option func(*Planner)

// WithCleanup controls whether temp sources are deleted after a successful merge.
func WithCleanup(on bool) Option { return func(p *Planner) { p.cleanup = on } }

// WithTempDir overrides the directory used for raw bytes and downloads.
func WithTempDir(dir string) Option { return func(p *Planner) { p.tempDir = dir } }

// WithResolver sets the locator resolver (remote sources need one with clients configured).
func WithResolver(r *source.Resolver) Option { return func(p *Planner) { p.resolver = r } }

// WithDetector sets the file type check applied at add time; nil disables it.
func WithDetector(d Detector) Option { return func(p *Planner) { p.detector = d } }

// WithMaxPages bounds how many pages one selector or page list may name.
// Non-positive values use pagerange.DefaultMaxPages.
func WithMaxPages(n int) Option { return func(p *Planner) { p.maxPages = n } }

// WithProgress registers a callback invoked after every placed page.
func WithProgress(fn func(done, total int)) Option { return func(p *Planner) { p.progress = fn } }

// Planner accumulates sources and merges them. A Planner is not safe for
// concurrent use.
type Planner struct {
	tk       toolkit.Toolkit
	cleanup  bool
	tempDir  string
	resolver *source.Resolver
	detector Detector
	progress func(done, total int)
	maxPages int
	entries  []Entry
}

// New returns an empty planner. Cleanup is enabled by default and temp
// files go to os.TempDir().
func New(tk toolkit.Toolkit, opts ...Option) *Planner {
	p := &Planner{
		tk:       tk,
		cleanup:  true,
		resolver: &source.Resolver{},
	}
	for _, o := range opts {
		o(p)
	}
	if p.tempDir == "" {
		p.tempDir = os.TempDir()
	}
	return p
}

// Len returns the number of added sources.
func (p *Planner) Len() int { return len(p.entries) }

// Entries returns a copy of the added sources in merge order.
func (p *Planner) Entries() []Entry {
	out := make([]Entry, len(p.entries))
	copy(out, p.entries)
	return out
}

// TempFiles lists the planner owned files of the current entries. With
// cleanup disabled the caller must remove them.
func (p *Planner) TempFiles() []string {
	var out []string
	for _, e := range p.entries {
		if e.Remove {
			out = append(out, e.Path)
		}
	}
	return out
}

// AddSource appends locator with a selector ("all" or e.g. "1,3,5-7"). An
// empty selector means all pages.
func (p *Planner) AddSource(ctx context.Context, locator, selector string) (*Planner, error) {
	return p.add(ctx, locator, false, p.selectorPages(selector))
}

// AddPages appends locator with an explicit page list. Repeats are allowed.
func (p *Planner) AddPages(ctx context.Context, locator string, pages []int) (*Planner, error) {
	return p.add(ctx, locator, false, func() ([]int, error) {
		if err := pagerange.Validate(pages, p.maxPages); err != nil {
			return nil, err
		}
		return append([]int(nil), pages...), nil
	})
}

// AddRawBytes persists data to a temp file and appends it with selector.
// The temp file is removed on cleanup.
func (p *Planner) AddRawBytes(ctx context.Context, data []byte, selector string) (*Planner, error) {
	path, err := source.WriteTemp(p.tempDir, data)
	if err != nil {
		return p, &TempFileError{Err: err}
	}
	if _, err := p.add(ctx, path, true, p.selectorPages(selector)); err != nil {
		os.Remove(path)
		return p, err
	}
	return p, nil
}

func (p *Planner) add(ctx context.Context, locator string, owned bool, selectPages func() ([]int, error)) (*Planner, error) {
	res, err := p.resolver.Resolve(ctx, locator, p.tempDir)
	if err != nil {
		if errors.Is(err, source.ErrNotFound) {
			return p, &SourceNotFoundError{Locator: locator, Err: err}
		}
		return p, err
	}
	if owned {
		res.Kind = source.KindBytes
		res.Temporary = true
	}
	discard := func() {
		if res.Temporary && !owned {
			os.Remove(res.Path)
		}
	}

	pages, err := selectPages()
	if err != nil {
		discard()
		return p, err
	}
	if p.detector != nil {
		ok, mime, err := p.detector.IsPDF(res.Path)
		if err != nil {
			discard()
			return p, err
		}
		if !ok {
			discard()
			return p, &UnsupportedSourceError{Locator: locator, MIME: mime}
		}
	}

	p.entries = append(p.entries, Entry{
		Locator: locator,
		Path:    res.Path,
		Kind:    res.Kind,
		Pages:   pages,
		Remove:  res.Temporary,
	})
	metrics.IncSource(string(res.Kind))
	log.Debug().Str(logpkg.FieldSource, locator).Str("kind", string(res.Kind)).Str(logpkg.FieldPages, describe(pages)).Msg("source added")
	return p, nil
}

func (p *Planner) selectorPages(selector string) func() ([]int, error) {
	return func() ([]int, error) {
		if selector == "" || pagerange.IsAll(selector) {
			return nil, nil
		}
		return pagerange.ParseLimit(selector, p.maxPages)
	}
}

type openedEntry struct {
	entry Entry
	doc   toolkit.Document
	pages []int
}

// open opens every source in order and resolves "all" selectors.
func (p *Planner) open() ([]openedEntry, error) {
	opened := make([]openedEntry, 0, len(p.entries))
	for _, e := range p.entries {
		doc, err := p.tk.Open(e.Path)
		if err != nil {
			closeAll(opened)
			return nil, &OpenError{Source: e.Locator, Err: err}
		}
		pages := e.Pages
		if e.AllPages() {
			pages = pagerange.Sequence(doc.PageCount())
		}
		opened = append(opened, openedEntry{entry: e, doc: doc, pages: pages})
	}
	return opened, nil
}

func closeAll(opened []openedEntry) {
	for _, o := range opened {
		_ = o.doc.Close()
	}
}

// Plan resolves the output page order without composing a document.
func (p *Planner) Plan(ctx context.Context) (Plan, error) {
	if len(p.entries) == 0 {
		return nil, ErrNoSources
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	opened, err := p.open()
	if err != nil {
		return nil, err
	}
	defer closeAll(opened)
	return flatten(opened), nil
}

func flatten(opened []openedEntry) Plan {
	var plan Plan
	for _, o := range opened {
		for _, n := range o.pages {
			plan = append(plan, Step{Source: o.entry.Locator, Page: n})
		}
	}
	return plan
}

// Merge composes every planned page, in order, into one document and
// delivers it according to out. The returned bytes are non-nil only for
// ModeString. With cleanup enabled, temp sources are removed and the planner
// is emptied once all pages are placed.
func (p *Planner) Merge(ctx context.Context, out Output) ([]byte, error) {
	if len(p.entries) == 0 {
		return nil, ErrNoSources
	}
	mode := out.mode()
	id := uuid.NewString()
	start := time.Now()
	logger := logpkg.ForMerge(id, string(mode))

	data, pages, err := p.merge(ctx, out)
	result := "success"
	if err != nil {
		result = "error"
		logger.Error().Err(err).Msg("merge failed")
	} else {
		metrics.AddPagesMerged(pages)
		logger.Info().Int(logpkg.FieldPages, pages).Dur("took", time.Since(start)).Msg("merge completed")
	}
	metrics.ObserveMerge(result, string(mode), time.Since(start))
	return data, err
}

func (p *Planner) merge(ctx context.Context, out Output) ([]byte, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	opened, err := p.open()
	if err != nil {
		return nil, 0, err
	}
	defer closeAll(opened)

	total := 0
	for _, o := range opened {
		total += len(o.pages)
	}

	c := p.tk.NewComposer()
	done := 0
	for _, o := range opened {
		for _, n := range o.pages {
			if err := ctx.Err(); err != nil {
				return nil, 0, err
			}
			tpl, err := o.doc.ImportPage(n)
			if err != nil {
				return nil, 0, &PageImportError{Source: o.entry.Locator, Page: n, Err: err}
			}
			page := c.AddPage(tpl.Size(), toolkit.Portrait)
			if err := c.Place(page, tpl); err != nil {
				return nil, 0, &PageImportError{Source: o.entry.Locator, Page: n, Err: err}
			}
			done++
			if p.progress != nil {
				p.progress(done, total)
			}
		}
	}

	if p.cleanup {
		p.removeTemps()
	}

	data, err := deliver(c, out)
	if err != nil {
		return nil, 0, err
	}
	return data, done, nil
}

// removeTemps deletes planner owned files and clears the entry list.
func (p *Planner) removeTemps() {
	removed := 0
	for _, e := range p.entries {
		if !e.Remove {
			continue
		}
		if err := os.Remove(e.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Warn().Err(err).Str("file", e.Path).Msg("failed to remove temp source")
			continue
		}
		removed++
	}
	metrics.AddTempRemoved(removed)
	p.entries = nil
}

func describe(pages []int) string {
	if pages == nil {
		return pagerange.All
	}
	return pagerange.Format(pages)
}
