package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"go.yaml.in/yaml/v3"

	"github.com/local/pdfmerge/internal/storage"
)

// Manifest describes a merge in YAML:
//
//	output: merged.pdf
//	mode: file
//	cleanup: true
//	sources:
//	  - path: cover.pdf
//	  - path: body.pdf
//	    pages: 2-10
//	  - url: https://example.com/appendix.pdf
//	    pages: all
type Manifest struct {
	Output  string           `yaml:"output,omitempty"`
	Mode    string           `yaml:"mode,omitempty"`
	Cleanup *bool            `yaml:"cleanup,omitempty"`
	Sources []ManifestSource `yaml:"sources"`
}

// ManifestSource is one manifest entry; exactly one of Path and URL is set.
type ManifestSource struct {
	Path  string `yaml:"path,omitempty"`
	URL   string `yaml:"url,omitempty"`
	Pages string `yaml:"pages,omitempty"`
}

// LoadManifest reads and validates a manifest. Relative local paths are
// resolved against the manifest's directory.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var m Manifest
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}

	base := filepath.Dir(path)
	for i, s := range m.Sources {
		switch {
		case s.Path == "" && s.URL == "":
			return nil, fmt.Errorf("manifest %s: source %d has neither path nor url", path, i+1)
		case s.Path != "" && s.URL != "":
			return nil, fmt.Errorf("manifest %s: source %d has both path and url", path, i+1)
		case s.Path != "" && !filepath.IsAbs(s.Path) && !storage.IsURL(s.Path):
			m.Sources[i].Path = filepath.Join(base, s.Path)
		}
	}
	if m.Output != "" && !filepath.IsAbs(m.Output) && !storage.IsURL(m.Output) {
		m.Output = filepath.Join(base, m.Output)
	}
	return &m, nil
}

func (m *Manifest) specs() []sourceSpec {
	out := make([]sourceSpec, 0, len(m.Sources))
	for _, s := range m.Sources {
		loc := s.Path
		if loc == "" {
			loc = s.URL
		}
		out = append(out, sourceSpec{Locator: loc, Selector: s.Pages})
	}
	return out
}
