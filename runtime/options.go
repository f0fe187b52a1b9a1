package runtime

import (
	"io"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-bridge/engine"
)

// DefaultStartFunction is run once at instantiation when the guest exports it.
const DefaultStartFunction = "_start"

type options struct {
	logger        *zap.Logger
	startFunction string
	engine        engine.Config
}

// Option configures a Runtime.
type Option func(*options)

func defaultOptions() options {
	return options{
		logger:        engine.Logger(),
		startFunction: DefaultStartFunction,
	}
}

// WithLogger sets the logger for the runtime and everything it creates.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMemoryLimitPages caps each instance's memory in 64KiB pages.
func WithMemoryLimitPages(pages uint32) Option {
	return func(o *options) { o.engine.MemoryLimitPages = pages }
}

// WithWASI provides wasi_snapshot_preview1 with the given standard streams.
func WithWASI(stdout, stderr io.Writer) Option {
	return func(o *options) {
		o.engine.WASI = true
		o.engine.Stdout = stdout
		o.engine.Stderr = stderr
	}
}

// WithStartFunction names the export run at instantiation. Empty disables it.
func WithStartFunction(name string) Option {
	return func(o *options) { o.startFunction = name }
}

// WithCloseOnContextDone aborts guest execution when the call context ends.
func WithCloseOnContextDone(enabled bool) Option {
	return func(o *options) { o.engine.CloseOnContextDone = enabled }
}

// WithInterpreter selects the wazero interpreter.
func WithInterpreter() Option {
	return func(o *options) { o.engine.Interpreter = true }
}
