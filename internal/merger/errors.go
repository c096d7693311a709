package merger

import (
	"errors"
	"fmt"

	"github.com/local/pdfmerge/internal/pagerange"
)

// ErrNoSources is returned by Merge and Plan when no source was added.
var ErrNoSources = errors.New("no sources to merge")

// Selector errors are defined by the parser; aliased here so callers of the
// planner can match every failure from one package.
type (
	RangeOrderError = pagerange.RangeOrderError
	ParseError      = pagerange.ParseError
)

// SourceNotFoundError is returned when a locator does not exist at add time.
type SourceNotFoundError struct {
	Locator string
	Err     error
}

func (e *SourceNotFoundError) Error() string {
	return fmt.Sprintf("source not found: %s", e.Locator)
}

func (e *SourceNotFoundError) Unwrap() error { return e.Err }

// UnsupportedSourceError is returned when a source is not a PDF document.
type UnsupportedSourceError struct {
	Locator string
	MIME    string
}

func (e *UnsupportedSourceError) Error() string {
	return fmt.Sprintf("source %s is %s, not a PDF", e.Locator, e.MIME)
}

// TempFileError is returned when raw bytes cannot be persisted.
type TempFileError struct {
	Err error
}

func (e *TempFileError) Error() string {
	return fmt.Sprintf("write temp file: %v", e.Err)
}

func (e *TempFileError) Unwrap() error { return e.Err }

// OpenError is returned when the toolkit cannot read a source document.
type OpenError struct {
	Source string
	Err    error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("open %s: %v", e.Source, e.Err)
}

func (e *OpenError) Unwrap() error { return e.Err }

// PageImportError is returned when a requested page is missing or unreadable.
type PageImportError struct {
	Source string
	Page   int
	Err    error
}

func (e *PageImportError) Error() string {
	return fmt.Sprintf("import page %d of %s: %v", e.Page, e.Source, e.Err)
}

func (e *PageImportError) Unwrap() error { return e.Err }

// OutputError is returned when the merged document cannot be delivered.
type OutputError struct {
	Mode Mode
	Err  error
}

func (e *OutputError) Error() string {
	return fmt.Sprintf("output (%s): %v", e.Mode, e.Err)
}

func (e *OutputError) Unwrap() error { return e.Err }
