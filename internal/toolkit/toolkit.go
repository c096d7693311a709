// Package toolkit abstracts the PDF engine used to read source pages and
// compose the merged document.
package toolkit

import (
	"errors"
	"io"
)

// ErrPageOutOfRange is returned by Document.ImportPage for page numbers
// outside 1..PageCount.
var ErrPageOutOfRange = errors.New("page out of range")

// Size is a page size in PDF points.
type Size struct {
	Width  float64
	Height float64
}

// Orientation of an output page.
type Orientation string

const (
	Portrait  Orientation = "P"
	Landscape Orientation = "L"
)

// Toolkit opens source documents and creates output composers.
type Toolkit interface {
	Open(path string) (Document, error)
	NewComposer() Composer
}

// Document is an opened source PDF.
type Document interface {
	PageCount() int
	// ImportPage returns the content of page n (1-based) as a reusable template.
	ImportPage(n int) (Template, error)
	Close() error
}

// Template is one imported source page.
type Template interface {
	Size() Size
}

// Page is an output page created by a Composer.
type Page interface {
	Size() Size
	Orientation() Orientation
}

// Composer accumulates output pages and serializes the final document.
type Composer interface {
	AddPage(size Size, o Orientation) Page
	Place(p Page, t Template) error
	PageCount() int
	WriteTo(w io.Writer) (int64, error)
}
