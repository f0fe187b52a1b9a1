package hostenv

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-bridge/binding"
	"github.com/wippyai/wasm-bridge/errors"
	"github.com/wippyai/wasm-bridge/guest"
	"github.com/wippyai/wasm-bridge/membridge"
)

// HostGreeting is the line call_host writes.
const HostGreeting = "Hello from the Host!"

// Definer registers host imports. *runtime.Runtime implements it.
type Definer interface {
	DefineImport(namespace, name string, sig binding.Signature, fn binding.HostFunc) error
}

// Env holds the output the env imports write to.
type Env struct {
	out    io.Writer
	logger *zap.Logger
	mu     sync.Mutex
}

// Option configures an Env.
type Option func(*Env)

// WithOutput sets the destination for printed lines. Default os.Stdout.
func WithOutput(w io.Writer) Option {
	return func(e *Env) { e.out = w }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Env) {
		if l != nil {
			e.logger = l
		}
	}
}

// New creates an Env.
func New(opts ...Option) *Env {
	e := &Env{out: os.Stdout, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Register defines call_host and print in d.
func (e *Env) Register(d Definer) error {
	if err := d.DefineImport(guest.Namespace, guest.ImportCallHost, guest.CallHostSignature, e.CallHost); err != nil {
		return err
	}
	return d.DefineImport(guest.Namespace, guest.ImportPrint, guest.PrintSignature, e.Print)
}

// CallHost implements env.call_host.
func (e *Env) CallHost(_ context.Context, c binding.Caller, _ []binding.Val) ([]binding.Val, error) {
	e.logger.Debug("env.call_host", zap.String("instance", c.Name()))
	return nil, e.writeLine(HostGreeting)
}

// Print implements env.print(ptr, len).
func (e *Env) Print(ctx context.Context, c binding.Caller, args []binding.Val) ([]binding.Val, error) {
	ref := membridge.StringRef{Ptr: args[0].U32(), Len: args[1].U32()}

	mem := c.Memory()
	if mem == nil {
		return nil, errors.InvalidState(errors.PhaseCall, "caller has no linear memory")
	}
	raw, err := mem.Read(ref)
	if err != nil {
		return nil, err
	}

	alloc := c.Allocator()
	if alloc == nil {
		return nil, errors.New(errors.PhaseMemory, errors.KindOwnership).
			Name(guest.ExportFree).
			Value(ref.Ptr).
			Detail("pointer %d: guest exports no allocator to release print argument", ref.Ptr).
			Build()
	}
	buf := alloc.Adopt(ref)

	text, decodeErr := membridge.DecodeText(errors.PhaseDecode, raw)
	if decodeErr == nil {
		e.logger.Debug("env.print", zap.Uint32("ptr", ref.Ptr), zap.Uint32("len", ref.Len))
		if err := e.writeLine(text); err != nil {
			_ = buf.Release(ctx)
			return nil, err
		}
	}
	if err := buf.Release(ctx); err != nil {
		return nil, err
	}
	return nil, decodeErr
}

func (e *Env) writeLine(s string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, err := fmt.Fprintln(e.out, s)
	return err
}
