package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/local/scanprep/internal/config"
)

func TestNoBlankRemovalFlag(t *testing.T) {
	cmd := newProcessCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--no-blank-removal"}))

	run := config.DefaultRun()
	applyNoFlags(cmd.Flags(), &run)
	assert.False(t, run.BlankRemoval)
	assert.True(t, run.PageSeparation)
}

func TestNoPageSeparationFlag(t *testing.T) {
	cmd := newProcessCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--no-page-separation"}))

	run := config.DefaultRun()
	applyNoFlags(cmd.Flags(), &run)
	assert.True(t, run.BlankRemoval)
	assert.False(t, run.PageSeparation)
}

func TestPositiveFlagsUntouchedByNoFlags(t *testing.T) {
	cmd := newProcessCmd()
	require.NoError(t, cmd.ParseFlags([]string{}))

	run := config.DefaultRun()
	applyNoFlags(cmd.Flags(), &run)
	assert.True(t, run.BlankRemoval)
	assert.True(t, run.PageSeparation)
}
