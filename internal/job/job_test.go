package job

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/local/scanprep/internal/config"
)

func TestSourceKind(t *testing.T) {
	assert.Equal(t, SourceS3, Job{Source: "s3://bucket/in/batch.pdf"}.SourceKind())
	assert.Equal(t, SourceHTTP, Job{Source: "https://example.com/batch.pdf"}.SourceKind())
	assert.Equal(t, SourceHTTP, Job{Source: "http://example.com/batch.pdf"}.SourceKind())
	assert.Equal(t, SourceLocal, Job{Source: "uploads/abc.pdf"}.SourceKind())
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	in := Job{
		ID:         "7f1c9a",
		Source:     "s3://bucket/in/batch.pdf",
		FileName:   "batch.pdf",
		Run:        config.DefaultRun(),
		EnqueuedAt: time.Now().UTC().Truncate(time.Second),
	}
	payload, err := in.Encode()
	require.NoError(t, err)

	out, err := Decode(payload)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := Decode([]byte("not json"))
	assert.Error(t, err)

	_, err = Decode([]byte(`{"source":"x.pdf"}`))
	assert.Error(t, err, "missing id must be rejected")
}
