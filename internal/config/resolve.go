package config

import (
	"errors"
	"fmt"
	"time"
)

// Default budgets. Attach and per-call RPC share a budget; the liveness
// probe is cheaper and gets half of it.
const (
	DefaultAttachTimeout = 2 * time.Second
	DefaultCallTimeout   = 2 * time.Second
	DefaultProbeTimeout  = time.Second
	DefaultIdleTimeout   = 5 * time.Minute
	DefaultContextRadius = 100
)

// Settings is the resolved, validated runtime configuration.
type Settings struct {
	Socket        string
	AttachTimeout time.Duration
	CallTimeout   time.Duration
	ProbeTimeout  time.Duration
	IdleTimeout   time.Duration
	ContextRadius int
}

// Resolve validates cfg and fills defaults, returning the runtime settings.
// The socket path is not resolved here: flags and the environment may still
// override it, and its absence is only an error at serve time.
func (c *Config) Resolve() (Settings, error) {
	s := Settings{
		Socket:        c.Socket,
		AttachTimeout: DefaultAttachTimeout,
		CallTimeout:   DefaultCallTimeout,
		ProbeTimeout:  DefaultProbeTimeout,
		IdleTimeout:   DefaultIdleTimeout,
		ContextRadius: DefaultContextRadius,
	}

	var errs []error
	parse := func(name, raw string, dst *time.Duration) {
		if raw == "" {
			return
		}
		d, err := time.ParseDuration(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid %s %q: %w", name, raw, err))
			return
		}
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %q", name, raw))
			return
		}
		*dst = d
	}

	parse("attach_timeout", c.AttachTimeout, &s.AttachTimeout)
	parse("call_timeout", c.CallTimeout, &s.CallTimeout)
	parse("probe_timeout", c.ProbeTimeout, &s.ProbeTimeout)
	parse("idle_timeout", c.IdleTimeout, &s.IdleTimeout)

	if c.ContextRadius < 0 {
		errs = append(errs, fmt.Errorf("context_radius must not be negative, got %d", c.ContextRadius))
	} else if c.ContextRadius > 0 {
		s.ContextRadius = c.ContextRadius
	}

	if err := errors.Join(errs...); err != nil {
		return Settings{}, err
	}
	return s, nil
}
