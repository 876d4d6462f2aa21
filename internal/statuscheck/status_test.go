package statuscheck

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePinger struct{ err error }

func (f fakePinger) Ping(ctx context.Context) error { return f.err }

type fakeTool struct{ ok bool }

func (f fakeTool) Available() bool { return f.ok }

func TestRunAllHealthy(t *testing.T) {
	c := New(time.Second)
	c.AddPinger("redis", fakePinger{})
	c.AddLocal("libreoffice", fakeTool{ok: true})

	rep := c.Run(context.Background())
	assert.True(t, rep.OK)
	assert.Len(t, rep.Checks, 2)
	for _, check := range rep.Checks {
		assert.True(t, check.OK, check.Name)
	}
}

func TestRunFailedPingerDegradesReport(t *testing.T) {
	c := New(time.Second)
	c.AddPinger("redis", fakePinger{err: errors.New("connection refused")})

	rep := c.Run(context.Background())
	assert.False(t, rep.OK)
	require.Len(t, rep.Checks, 1)
	assert.False(t, rep.Checks[0].OK)
	assert.Contains(t, rep.Checks[0].Detail, "connection refused")
}

func TestRunMissingLocalToolDoesNotFailReport(t *testing.T) {
	// Conversion is optional; PDF-only deployments run without LibreOffice.
	c := New(time.Second)
	c.AddPinger("redis", fakePinger{})
	c.AddLocal("libreoffice", fakeTool{ok: false})

	rep := c.Run(context.Background())
	assert.True(t, rep.OK)
}

func TestNilDependenciesIgnored(t *testing.T) {
	c := New(time.Second)
	c.AddPinger("s3", nil)
	c.AddLocal("tool", nil)
	rep := c.Run(context.Background())
	assert.True(t, rep.OK)
	assert.Empty(t, rep.Checks)
}
