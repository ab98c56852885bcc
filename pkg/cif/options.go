package cif

import "log/slog"

// DefaultLineWidth is the width at which loop rows are wrapped on output.
const DefaultLineWidth = 132

// Option configures a File, Datablock or Category.
type Option func(*options)

type options struct {
	logger    *slog.Logger
	verbosity int
	lineWidth int
}

// WithLogger sets the logger used for non-fatal diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithVerbosity sets the diagnostic level. Zero keeps the engine silent.
func WithVerbosity(level int) Option {
	return func(o *options) { o.verbosity = level }
}

// WithLineWidth sets the output line width for loops.
func WithLineWidth(width int) Option {
	return func(o *options) {
		if width > 0 {
			o.lineWidth = width
		}
	}
}

func newOptions(opts []Option) *options {
	o := &options{
		logger:    slog.New(slog.DiscardHandler),
		lineWidth: DefaultLineWidth,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}
