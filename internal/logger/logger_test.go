package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitWritesJSONToConsoleAndFile(t *testing.T) {
	var console bytes.Buffer
	file := filepath.Join(t.TempDir(), "logs", "pdfmerge.log")

	require.NoError(t, Init(Options{Level: "debug", File: file, MaxSizeMB: 1, Console: &console}))
	defer Close()

	log.Info().Str("merge_id", "m1").Int("pages", 3).Msg("merge completed")

	var ev map[string]interface{}
	require.NoError(t, json.Unmarshal(console.Bytes(), &ev))
	assert.Equal(t, "merge completed", ev["message"])
	assert.Equal(t, Service, ev["service"])
	assert.Equal(t, float64(3), ev["pages"])

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"merge_id":"m1"`)
}

func TestInitLevel(t *testing.T) {
	var console bytes.Buffer
	require.NoError(t, Init(Options{Level: "warn", Console: &console}))

	log.Info().Msg("hidden")
	assert.Empty(t, console.String())
	log.Warn().Msg("shown")
	assert.Contains(t, console.String(), "shown")

	console.Reset()
	require.NoError(t, Init(Options{Level: "nonsense", Console: &console}))
	log.Info().Msg("default level is info")
	assert.Contains(t, console.String(), "default level is info")
}

func TestForMergeTagsLines(t *testing.T) {
	var console bytes.Buffer
	require.NoError(t, Init(Options{Level: "info", Console: &console}))

	l := ForMerge("m-42", "download")
	l.Info().Int(FieldPages, 5).Msg("merge completed")

	var ev map[string]interface{}
	require.NoError(t, json.Unmarshal(console.Bytes(), &ev))
	assert.Equal(t, "m-42", ev[FieldMergeID])
	assert.Equal(t, "download", ev[FieldMode])
	assert.Equal(t, float64(5), ev[FieldPages])
	assert.Equal(t, Service, ev["service"])

	console.Reset()
	log.Info().Msg("unrelated")
	assert.NotContains(t, console.String(), FieldMergeID)
}
