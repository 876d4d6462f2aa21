// Package statuscheck aggregates dependency health for the /health
// endpoint.
package statuscheck

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Pinger is anything with connectivity that can be probed.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Availabler covers local tools that are either present or not.
type Availabler interface {
	Available() bool
}

// Check is the result of probing one dependency.
type Check struct {
	Name   string `json:"name"`
	OK     bool   `json:"ok"`
	Detail string `json:"detail,omitempty"`
}

// Report is the aggregate health snapshot.
type Report struct {
	OK     bool      `json:"ok"`
	Time   time.Time `json:"time"`
	Checks []Check   `json:"checks"`
}

// Checker runs the configured probes.
type Checker struct {
	pingers map[string]Pinger
	locals  map[string]Availabler
	timeout time.Duration
}

func New(timeout time.Duration) *Checker {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Checker{
		pingers: map[string]Pinger{},
		locals:  map[string]Availabler{},
		timeout: timeout,
	}
}

// AddPinger registers a remote dependency. Nil values are ignored so
// optional dependencies can be passed unconditionally.
func (c *Checker) AddPinger(name string, p Pinger) {
	if p != nil {
		c.pingers[name] = p
	}
}

// AddLocal registers a local tool check.
func (c *Checker) AddLocal(name string, a Availabler) {
	if a != nil {
		c.locals[name] = a
	}
}

// Run probes every registered dependency.
func (c *Checker) Run(ctx context.Context) Report {
	rep := Report{OK: true, Time: time.Now().UTC()}

	for name, p := range c.pingers {
		pctx, cancel := context.WithTimeout(ctx, c.timeout)
		err := p.Ping(pctx)
		cancel()
		check := Check{Name: name, OK: err == nil}
		if err != nil {
			check.Detail = err.Error()
			rep.OK = false
			log.Warn().Str("dependency", name).Err(err).Msg("health check failed")
		}
		rep.Checks = append(rep.Checks, check)
	}

	for name, a := range c.locals {
		ok := a.Available()
		check := Check{Name: name, OK: ok}
		if !ok {
			check.Detail = "not available"
			// LibreOffice absence degrades conversion only, not PDF jobs.
			log.Warn().Str("dependency", name).Msg("local tool unavailable")
		}
		rep.Checks = append(rep.Checks, check)
	}

	return rep
}
