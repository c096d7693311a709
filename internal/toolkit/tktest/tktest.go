// Package tktest provides an in-memory Toolkit and a tiny PDF writer for tests.
package tktest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/local/pdfmerge/internal/toolkit"
)

// Placed records one output page produced by a Fake composer.
type Placed struct {
	Source      string
	Page        int
	Size        toolkit.Size
	Orientation toolkit.Orientation
}

// Fake is a Toolkit whose documents are registered by path. Every page has
// the size configured for its document.
type Fake struct {
	mu       sync.Mutex
	docs     map[string]fakeDoc
	opened   []string
	last     *FakeComposer
	WriteErr error
}

type fakeDoc struct {
	pages int
	size  toolkit.Size
}

// NewFake returns an empty fake toolkit.
func NewFake() *Fake {
	return &Fake{docs: map[string]fakeDoc{}}
}

// Register makes path openable with the given page count.
func (f *Fake) Register(path string, pages int) {
	f.RegisterSized(path, pages, toolkit.Size{Width: 595, Height: 842})
}

// RegisterSized is Register with an explicit page size.
func (f *Fake) RegisterSized(path string, pages int, size toolkit.Size) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs[path] = fakeDoc{pages: pages, size: size}
}

// Opened lists the paths opened so far, in order.
func (f *Fake) Opened() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.opened...)
}

// Last returns the most recently created composer.
func (f *Fake) Last() *FakeComposer {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

func (f *Fake) Open(path string) (toolkit.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.docs[path]
	if !ok {
		return nil, fmt.Errorf("fake: %s not registered", path)
	}
	f.opened = append(f.opened, path)
	return &fakeDocument{path: path, doc: d}, nil
}

func (f *Fake) NewComposer() toolkit.Composer {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.last = &FakeComposer{writeErr: f.WriteErr}
	return f.last
}

type fakeDocument struct {
	path string
	doc  fakeDoc
}

func (d *fakeDocument) PageCount() int { return d.doc.pages }

func (d *fakeDocument) ImportPage(n int) (toolkit.Template, error) {
	if n < 1 || n > d.doc.pages {
		return nil, toolkit.ErrPageOutOfRange
	}
	return &fakeTemplate{source: d.path, page: n, size: d.doc.size}, nil
}

func (d *fakeDocument) Close() error { return nil }

type fakeTemplate struct {
	source string
	page   int
	size   toolkit.Size
}

func (t *fakeTemplate) Size() toolkit.Size { return t.size }

type fakePage struct {
	size   toolkit.Size
	orient toolkit.Orientation
	tpl    *fakeTemplate
}

func (p *fakePage) Size() toolkit.Size               { return p.size }
func (p *fakePage) Orientation() toolkit.Orientation { return p.orient }

// FakeComposer serializes its pages as one "source:page" line each.
type FakeComposer struct {
	pages    []*fakePage
	writeErr error
}

func (c *FakeComposer) AddPage(size toolkit.Size, o toolkit.Orientation) toolkit.Page {
	p := &fakePage{size: size, orient: o}
	c.pages = append(c.pages, p)
	return p
}

func (c *FakeComposer) Place(p toolkit.Page, t toolkit.Template) error {
	fp, ok := p.(*fakePage)
	if !ok {
		return errors.New("fake: foreign page")
	}
	ft, ok := t.(*fakeTemplate)
	if !ok {
		return errors.New("fake: foreign template")
	}
	fp.tpl = ft
	return nil
}

func (c *FakeComposer) PageCount() int { return len(c.pages) }

// Placed returns the output pages in order.
func (c *FakeComposer) Placed() []Placed {
	out := make([]Placed, 0, len(c.pages))
	for _, p := range c.pages {
		pl := Placed{Size: p.size, Orientation: p.orient}
		if p.tpl != nil {
			pl.Source = p.tpl.source
			pl.Page = p.tpl.page
		}
		out = append(out, pl)
	}
	return out
}

func (c *FakeComposer) WriteTo(w io.Writer) (int64, error) {
	if c.writeErr != nil {
		return 0, c.writeErr
	}
	var b strings.Builder
	b.WriteString("%PDF-fake\n")
	for _, p := range c.Placed() {
		fmt.Fprintf(&b, "%s:%d\n", filepath.Base(p.Source), p.Page)
	}
	n, err := io.WriteString(w, b.String())
	return int64(n), err
}

// WriteFile writes data to name inside dir and returns the full path.
func WriteFile(t testing.TB, dir, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
	return p
}

// BuildPDF returns a minimal, well-formed PDF with one empty page per size.
func BuildPDF(sizes ...toolkit.Size) []byte {
	var buf bytes.Buffer
	offsets := []int{0}
	obj := func(body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", len(offsets)-1, body)
	}

	buf.WriteString("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n")
	obj("<< /Type /Catalog /Pages 2 0 R >>")

	kids := make([]string, len(sizes))
	for i := range sizes {
		kids[i] = fmt.Sprintf("%d 0 R", 3+2*i)
	}
	obj(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(sizes)))

	for i, s := range sizes {
		content := fmt.Sprintf("q 0 0 %g %g re S Q", s.Width/2, s.Height/2)
		obj(fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %g %g] /Resources << >> /Contents %d 0 R >>",
			s.Width, s.Height, 4+2*i))
		obj(fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content))
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(offsets))
	for _, off := range offsets[1:] {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets), xref)
	return buf.Bytes()
}

// A4 is the portrait A4 page size in points.
var A4 = toolkit.Size{Width: 595, Height: 842}
