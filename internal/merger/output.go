package merger

import (
	"bytes"
	"errors"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/local/pdfmerge/internal/toolkit"
)

// Mode selects where the merged document goes.
type Mode string

const (
	ModeFile     Mode = "file"
	ModeDownload Mode = "download"
	ModeString   Mode = "string"
	ModeBrowser  Mode = "browser"
)

// DefaultFilename is used for download and browser output without a target.
const DefaultFilename = "doc.pdf"

// ParseMode maps a case-insensitive mode name to a Mode. Unknown names,
// including the empty string, fall back to browser display.
func ParseMode(s string) Mode {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeFile, ModeDownload, ModeString:
		return m
	default:
		return ModeBrowser
	}
}

// Output describes how to deliver a merge.
//
// Target is the destination path for ModeFile and the suggested file name
// for ModeDownload and ModeBrowser. Writer receives streamed output and
// defaults to stdout; when it is an http.ResponseWriter the PDF headers are
// set before the body is written.
type Output struct {
	Mode   Mode
	Target string
	Writer io.Writer
}

func (o Output) mode() Mode { return ParseMode(string(o.Mode)) }

type headerWriter interface {
	Header() http.Header
}

func deliver(c toolkit.Composer, out Output) ([]byte, error) {
	mode := out.mode()

	var buf bytes.Buffer
	if _, err := c.WriteTo(&buf); err != nil {
		return nil, &OutputError{Mode: mode, Err: err}
	}

	switch mode {
	case ModeString:
		return buf.Bytes(), nil
	case ModeFile:
		if err := writeFileAtomic(out.Target, buf.Bytes()); err != nil {
			return nil, &OutputError{Mode: mode, Err: err}
		}
		return nil, nil
	}

	w := out.Writer
	if w == nil {
		w = os.Stdout
	}
	if hw, ok := w.(headerWriter); ok {
		disposition := "inline"
		if mode == ModeDownload {
			disposition = "attachment"
		}
		name := out.Target
		if name == "" {
			name = DefaultFilename
		}
		h := hw.Header()
		h.Set("Content-Type", "application/pdf")
		h.Set("Content-Disposition", mime.FormatMediaType(disposition, map[string]string{"filename": filepath.Base(name)}))
		h.Set("Content-Length", strconv.Itoa(buf.Len()))
		h.Set("Cache-Control", "private, max-age=0, must-revalidate")
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		return nil, &OutputError{Mode: mode, Err: err}
	}
	return nil, nil
}

// writeFileAtomic writes data next to path and renames it into place.
func writeFileAtomic(path string, data []byte) error {
	if path == "" {
		return errors.New("missing output path")
	}
	f, err := os.CreateTemp(filepath.Dir(path), ".pdfmerge-out-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Chmod(tmp, 0o644); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
