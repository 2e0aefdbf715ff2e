package emit

import (
	"go.uber.org/zap"

	"github.com/wippyai/ilgen/verify"
)

// Observer is called after each operation verifies, with its position, the
// stored operation and the matched transition.
type Observer func(pos int, op *Operation, m verify.Match)

type options struct {
	logger       *zap.Logger
	observer     Observer
	unverifiable bool
	localReinit  bool
}

func defaultOptions() options {
	return options{localReinit: true}
}

// Option configures a Builder.
type Option func(*options)

// WithLogger sets the builder's logger. Defaults to the package logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithUnverifiable permits operations that need relaxed verification.
func WithUnverifiable(allow bool) Option {
	return func(o *options) {
		o.unverifiable = allow
	}
}

// WithLocalReinit controls whether a reused local slot is reset to its
// default value when redeclared. Enabled by default.
func WithLocalReinit(enabled bool) Option {
	return func(o *options) {
		o.localReinit = enabled
	}
}

// WithObserver installs a callback invoked after every verified operation.
func WithObserver(fn Observer) Option {
	return func(o *options) {
		o.observer = fn
	}
}

// FinalizeOptions controls the whole-routine pass.
type FinalizeOptions struct {
	// TailCalls prefixes a call immediately followed by ret with tail.
	// when neither lies inside an exception region.
	TailCalls bool
}
