package server

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/local/scanprep/internal/config"
)

func TestRunOptionsApplyPartialOverride(t *testing.T) {
	base := config.DefaultRun()

	var opts runOptions
	require.NoError(t, json.Unmarshal([]byte(`{"blank_removal":false,"render_dpi":300}`), &opts))

	got := opts.apply(base)
	assert.False(t, got.BlankRemoval)
	assert.Equal(t, 300, got.RenderDPI)
	// Untouched fields keep the service defaults.
	assert.True(t, got.PageSeparation)
	assert.Equal(t, base.BlankThreshold, got.BlankThreshold)
	assert.Equal(t, base.MarkerPayload, got.MarkerPayload)
}

func TestRunOptionsApplyEmptyKeepsDefaults(t *testing.T) {
	base := config.DefaultRun()
	assert.Equal(t, base, runOptions{}.apply(base))
}

func TestPagesTotalFromMeta(t *testing.T) {
	// Metadata comes back from the status store JSON-decoded, so numbers
	// arrive as float64.
	var meta map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(`{"documents":2,"pages":9,"pages_total":12000}`), &meta))
	assert.Equal(t, 12000, pagesTotalFromMeta(meta))

	assert.Equal(t, 0, pagesTotalFromMeta(map[string]interface{}{}))
	assert.Equal(t, 0, pagesTotalFromMeta(map[string]interface{}{"pages_total": "12"}))
	assert.Equal(t, 7, pagesTotalFromMeta(map[string]interface{}{"pages_total": 7}))
}

func TestS3URLFromMeta(t *testing.T) {
	var meta map[string]interface{}
	require.NoError(t, json.Unmarshal(
		[]byte(`{"s3_urls":["s3://b/results/j/0-a.pdf","s3://b/results/j/1-a.pdf"]}`), &meta))

	url, ok := s3URLFromMeta(meta, 1)
	require.True(t, ok)
	assert.Equal(t, "s3://b/results/j/1-a.pdf", url)

	_, ok = s3URLFromMeta(meta, 2)
	assert.False(t, ok)
	_, ok = s3URLFromMeta(meta, -1)
	assert.False(t, ok)
	_, ok = s3URLFromMeta(map[string]interface{}{}, 0)
	assert.False(t, ok)
}

func TestRunOptionsZeroValuesAreExplicit(t *testing.T) {
	// An explicit false differs from an absent field.
	base := config.DefaultRun()

	var opts runOptions
	require.NoError(t, json.Unmarshal([]byte(`{"page_separation":false,"workers":0}`), &opts))

	got := opts.apply(base)
	assert.False(t, got.PageSeparation)
	assert.Equal(t, 0, got.Workers)
}
