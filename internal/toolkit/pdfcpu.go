package toolkit

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"github.com/rs/zerolog/log"
)

var disableConfigDir sync.Once

// PDFCPU implements Toolkit on top of github.com/pdfcpu/pdfcpu.
type PDFCPU struct {
	conf *model.Configuration
}

// NewPDFCPU returns a pdfcpu backed toolkit using relaxed validation.
func NewPDFCPU() *PDFCPU {
	// keep pdfcpu from installing config.yml into the user config dir
	disableConfigDir.Do(api.DisableConfigDir)
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &PDFCPU{conf: conf}
}

// Open reads and validates the PDF at path.
func (p *PDFCPU) Open(path string) (Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	ctx, err := api.ReadValidateAndOptimize(f, p.conf)
	if err != nil {
		return nil, fmt.Errorf("pdfcpu read: %w", err)
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return nil, fmt.Errorf("pdfcpu page count: %w", err)
	}
	dims, err := ctx.PageDims()
	if err != nil {
		return nil, fmt.Errorf("pdfcpu page dims: %w", err)
	}
	log.Debug().Str("file", path).Int("pages", ctx.PageCount).Msg("opened source pdf")
	return &pdfcpuDoc{ctx: ctx, dims: dims}, nil
}

// NewComposer starts an empty output document.
func (p *PDFCPU) NewComposer() Composer {
	return &pdfcpuComposer{conf: p.conf}
}

type pdfcpuDoc struct {
	ctx  *model.Context
	dims []types.Dim
}

func (d *pdfcpuDoc) PageCount() int { return d.ctx.PageCount }

func (d *pdfcpuDoc) ImportPage(n int) (Template, error) {
	if n < 1 || n > d.ctx.PageCount {
		return nil, fmt.Errorf("page %d of %d: %w", n, d.ctx.PageCount, ErrPageOutOfRange)
	}
	r, err := api.ExtractPage(d.ctx, n)
	if err != nil {
		return nil, fmt.Errorf("extract page %d: %w", n, err)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read page %d: %w", n, err)
	}
	var size Size
	if n <= len(d.dims) {
		size = Size{Width: d.dims[n-1].Width, Height: d.dims[n-1].Height}
	}
	return &pdfcpuTemplate{data: data, size: size}, nil
}

func (d *pdfcpuDoc) Close() error {
	d.ctx = nil
	d.dims = nil
	return nil
}

// pdfcpuTemplate holds a single page document extracted from a source.
type pdfcpuTemplate struct {
	data []byte
	size Size
}

func (t *pdfcpuTemplate) Size() Size { return t.size }

type pdfcpuPage struct {
	size   Size
	orient Orientation
	tpl    *pdfcpuTemplate
}

func (p *pdfcpuPage) Size() Size               { return p.size }
func (p *pdfcpuPage) Orientation() Orientation { return p.orient }

// pdfcpuComposer collects single page documents and merges them on write.
// Page boxes are carried over from the source, so every output page keeps
// the size of the template placed on it.
type pdfcpuComposer struct {
	conf  *model.Configuration
	pages []*pdfcpuPage
}

func (c *pdfcpuComposer) AddPage(size Size, o Orientation) Page {
	p := &pdfcpuPage{size: size, orient: o}
	c.pages = append(c.pages, p)
	return p
}

func (c *pdfcpuComposer) Place(p Page, t Template) error {
	page, ok := p.(*pdfcpuPage)
	if !ok {
		return fmt.Errorf("page %T was not created by this composer", p)
	}
	tpl, ok := t.(*pdfcpuTemplate)
	if !ok {
		return fmt.Errorf("template %T was not imported by pdfcpu", t)
	}
	page.tpl = tpl
	return nil
}

func (c *pdfcpuComposer) PageCount() int { return len(c.pages) }

func (c *pdfcpuComposer) WriteTo(w io.Writer) (int64, error) {
	if len(c.pages) == 0 {
		return 0, errors.New("no pages to write")
	}
	readers := make([]io.ReadSeeker, 0, len(c.pages))
	for i, p := range c.pages {
		if p.tpl == nil {
			return 0, fmt.Errorf("output page %d has no content", i+1)
		}
		readers = append(readers, bytes.NewReader(p.tpl.data))
	}
	cw := &countingWriter{w: w}
	if len(readers) == 1 {
		_, err := cw.Write(c.pages[0].tpl.data)
		return cw.n, err
	}
	if err := api.MergeRaw(readers, cw, false, c.conf); err != nil {
		return cw.n, fmt.Errorf("pdfcpu merge: %w", err)
	}
	return cw.n, nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
