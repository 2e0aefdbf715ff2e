package disasm

import (
	"go.uber.org/zap"

	"github.com/wippyai/ilgen/types"
)

type options struct {
	logger    *zap.Logger
	receiver  *types.Type
	maxPasses int
}

// Option configures Disassemble.
type Option func(*options)

// WithLogger sets the logger used for inference passes.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithReceiver supplies the receiver type of an instance routine. Without it
// a disassembly that reads argument 0 cannot be replayed.
func WithReceiver(t *types.Type) Option {
	return func(o *options) {
		o.receiver = t
	}
}

// WithMaxPasses bounds the number of inference passes. Zero means one pass
// per pending instruction plus one.
func WithMaxPasses(n int) Option {
	return func(o *options) {
		o.maxPasses = n
	}
}
