// Package config holds the per-run pipeline configuration and the service
// configuration loaded from the environment.
package config

import (
	"fmt"
	"runtime"

	"github.com/local/scanprep/internal/marker"
	"github.com/local/scanprep/internal/render"
)

// Default blank thresholds. Blank backs from duplex scanning sit near zero
// ink; genuine content pages sit well above 1%. Pages without any text layer
// get the stricter threshold since there is no second signal to lean on.
const (
	DefaultBlankThreshold       = 0.005
	DefaultNoTextBlankThreshold = 0.010
)

// ConfigError reports an invalid configuration value. It is fatal before any
// page is processed.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Field, e.Reason)
}

// RunConfig is the immutable configuration for one pipeline invocation.
// Each run constructs its own RunConfig and passes it explicitly; there is
// no mutable global state.
type RunConfig struct {
	BlankRemoval   bool
	PageSeparation bool

	// BlankThreshold is the ink-ratio fraction below which a page is blank.
	BlankThreshold float64
	// NoTextBlankThreshold applies to pages without an embedded text layer.
	NoTextBlankThreshold float64

	RenderDPI     int
	MarkerPayload string

	// Workers bounds the classification pool. Zero means NumCPU.
	Workers int
}

// DefaultRun returns a RunConfig with both features enabled and default
// policy values.
func DefaultRun() RunConfig {
	return RunConfig{
		BlankRemoval:         true,
		PageSeparation:       true,
		BlankThreshold:       DefaultBlankThreshold,
		NoTextBlankThreshold: DefaultNoTextBlankThreshold,
		RenderDPI:            render.DefaultDPI,
		MarkerPayload:        marker.DefaultPayload,
	}
}

// Validate checks policy values. It must be called before any page is
// processed so a bad run never produces partial output.
func (c RunConfig) Validate() error {
	if c.BlankThreshold < 0 || c.BlankThreshold > 1 {
		return &ConfigError{Field: "blank_threshold", Reason: fmt.Sprintf("must be in [0,1], got %g", c.BlankThreshold)}
	}
	if c.NoTextBlankThreshold < 0 || c.NoTextBlankThreshold > 1 {
		return &ConfigError{Field: "no_text_blank_threshold", Reason: fmt.Sprintf("must be in [0,1], got %g", c.NoTextBlankThreshold)}
	}
	if c.RenderDPI <= 0 {
		return &ConfigError{Field: "render_dpi", Reason: fmt.Sprintf("must be positive, got %d", c.RenderDPI)}
	}
	if c.Workers < 0 {
		return &ConfigError{Field: "workers", Reason: fmt.Sprintf("must not be negative, got %d", c.Workers)}
	}
	if c.PageSeparation && c.MarkerPayload == "" {
		return &ConfigError{Field: "marker_payload", Reason: "required when page separation is enabled"}
	}
	return nil
}

// EffectiveWorkers resolves the worker count for the classification pool.
func (c RunConfig) EffectiveWorkers() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return runtime.NumCPU()
}
