package graph

import (
	"fmt"
	"time"
)

// Options holds engine tuning. The zero value runs without a step limit,
// without node deadlines and without metrics.
type Options struct {
	// MaxSteps caps node executions per run; the run fails with
	// MAX_STEPS_EXCEEDED past it. 0 disables the cap.
	MaxSteps int

	// DefaultNodeTimeout applies to nodes whose NodePolicy sets none.
	DefaultNodeTimeout time.Duration

	Metrics *PrometheusMetrics
}

// Option configures an Engine in New. Options that reject their argument
// make New fail.
//
//	engine, err := graph.New(compiled, reducer, st, emitter,
//	    graph.WithMaxSteps(32),
//	    graph.WithDefaultNodeTimeout(60*time.Second),
//	)
type Option func(*engineConfig) error

type engineConfig struct {
	opts Options
}

// WithMaxSteps sets Options.MaxSteps. Graphs whose loops are bounded by
// routing caps pass the bound those caps imply.
func WithMaxSteps(n int) Option {
	return func(cfg *engineConfig) error {
		if n < 0 {
			return fmt.Errorf("max steps must be >= 0, got %d", n)
		}
		cfg.opts.MaxSteps = n
		return nil
	}
}

// WithDefaultNodeTimeout sets Options.DefaultNodeTimeout.
func WithDefaultNodeTimeout(d time.Duration) Option {
	return func(cfg *engineConfig) error {
		if d < 0 {
			return fmt.Errorf("node timeout must be >= 0, got %v", d)
		}
		cfg.opts.DefaultNodeTimeout = d
		return nil
	}
}

// WithMetrics records step, run and checkpoint metrics.
func WithMetrics(metrics *PrometheusMetrics) Option {
	return func(cfg *engineConfig) error {
		cfg.opts.Metrics = metrics
		return nil
	}
}
