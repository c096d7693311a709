package main

import (
	"bytes"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/local/pdfmerge/internal/pagerange"
	"github.com/local/pdfmerge/internal/toolkit"
	"github.com/local/pdfmerge/internal/toolkit/tktest"
)

func TestParseSourceArg(t *testing.T) {
	cases := []struct {
		in   string
		want sourceSpec
	}{
		{"a.pdf", sourceSpec{Locator: "a.pdf"}},
		{"a.pdf:1,3,5-7", sourceSpec{Locator: "a.pdf", Selector: "1,3,5-7"}},
		{"a.pdf:all", sourceSpec{Locator: "a.pdf", Selector: "all"}},
		{"a.pdf:ALL", sourceSpec{Locator: "a.pdf", Selector: "ALL"}},
		{"https://example.com/x.pdf", sourceSpec{Locator: "https://example.com/x.pdf"}},
		{"https://example.com:8443/x.pdf:2", sourceSpec{Locator: "https://example.com:8443/x.pdf", Selector: "2"}},
		{"s3://bucket/key.pdf:4-9", sourceSpec{Locator: "s3://bucket/key.pdf", Selector: "4-9"}},
		{`C:\docs\a.pdf`, sourceSpec{Locator: `C:\docs\a.pdf`}},
		{"a.pdf:", sourceSpec{Locator: "a.pdf:"}},
		{"weird:name.pdf", sourceSpec{Locator: "weird:name.pdf"}},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, parseSourceArg(tc.in), tc.in)
	}
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	path := tktest.WriteFile(t, dir, "plan.yaml", []byte(`
output: out/merged.pdf
mode: file
cleanup: false
sources:
  - path: cover.pdf
  - path: /abs/body.pdf
    pages: 2-4
  - url: https://example.com/appendix.pdf
    pages: all
`))

	m, err := LoadManifest(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "out/merged.pdf"), m.Output)
	assert.Equal(t, "file", m.Mode)
	require.NotNil(t, m.Cleanup)
	assert.False(t, *m.Cleanup)
	assert.Equal(t, []sourceSpec{
		{Locator: filepath.Join(dir, "cover.pdf")},
		{Locator: "/abs/body.pdf", Selector: "2-4"},
		{Locator: "https://example.com/appendix.pdf", Selector: "all"},
	}, m.specs())
}

func TestLoadManifestInvalid(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]string{
		"neither":  "sources:\n  - pages: 1\n",
		"both":     "sources:\n  - path: a.pdf\n    url: https://x/a.pdf\n",
		"unknown":  "sources: []\noutptu: typo.pdf\n",
		"not yaml": "sources: [",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadManifest(tktest.WriteFile(t, dir, name+".yaml", []byte(body)))
			assert.Error(t, err)
		})
	}

	_, err := LoadManifest(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestCollectSpecs(t *testing.T) {
	_, err := collectSpecs(nil, nil)
	assert.Error(t, err)

	m := &Manifest{Sources: []ManifestSource{{Path: "a.pdf", Pages: "1"}}}
	specs, err := collectSpecs([]string{"b.pdf:2"}, m)
	require.NoError(t, err)
	assert.Equal(t, []sourceSpec{{"a.pdf", "1"}, {"b.pdf", "2"}}, specs)
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestMergeCommandWritesFile(t *testing.T) {
	dir := t.TempDir()
	a := tktest.WriteFile(t, dir, "a.pdf", tktest.BuildPDF(tktest.A4, tktest.A4, toolkit.Size{Width: 842, Height: 595}))
	b := tktest.WriteFile(t, dir, "b.pdf", tktest.BuildPDF(tktest.A4))
	out := filepath.Join(dir, "merged.pdf")

	_, err := execute(t, "merge", "-o", out, "--mode", "", "--manifest", "", a+":3,1", b)
	require.NoError(t, err)

	n, err := api.PageCountFile(out)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	dims, err := api.PageDimsFile(out)
	require.NoError(t, err)
	assert.Equal(t, 842.0, dims[0].Width)
}

func TestMergeCommandRejectsBadSelector(t *testing.T) {
	dir := t.TempDir()
	a := tktest.WriteFile(t, dir, "a.pdf", tktest.BuildPDF(tktest.A4))
	out := filepath.Join(dir, "merged.pdf")

	_, err := execute(t, "merge", "-o", out, "--mode", "", "--manifest", "", a+":3-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "3")
	assert.NoFileExists(t, out)
}

func TestPlanCommand(t *testing.T) {
	dir := t.TempDir()
	a := tktest.WriteFile(t, dir, "a.pdf", tktest.BuildPDF(tktest.A4, tktest.A4))

	stdout, err := execute(t, "plan", "--manifest", "", "--yaml=false", a+":2,2", a+":1")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "1\t"+a+"\t2", lines[0])
	assert.Equal(t, "3\t"+a+"\t1", lines[2])
}

func TestPagesCommand(t *testing.T) {
	stdout, err := execute(t, "pages", "5-7,1")
	require.NoError(t, err)
	assert.Equal(t, "5\n6\n7\n1\n", stdout)

	_, err = execute(t, "pages", "7-5")
	assert.Error(t, err)
}

func TestPagesCommandPageLimit(t *testing.T) {
	t.Cleanup(func() { _ = rootCmd.PersistentFlags().Set("max-pages", strconv.Itoa(pagerange.DefaultMaxPages)) })

	_, err := execute(t, "pages", "1-2000000000")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "more than 10000 pages")

	_, err = execute(t, "pages", "--max-pages", "3", "1-4")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "more than 3 pages")

	stdout, err := execute(t, "pages", "--max-pages", "3", "2-4")
	require.NoError(t, err)
	assert.Equal(t, "2\n3\n4\n", stdout)
}

func TestVersionCommand(t *testing.T) {
	stdout, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "pdfmerge dev\n", stdout)
}
