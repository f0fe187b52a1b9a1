package binding

import (
	"context"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-bridge/membridge"
)

// Caller is what a host function sees of the instance that called it.
type Caller interface {
	// Name returns the instance name, empty for anonymous instances.
	Name() string
	// Memory returns the instance's linear memory, or nil if it has none.
	Memory() *membridge.Bridge
	// Allocator returns the guest allocator, or nil if the guest exports none.
	Allocator() *membridge.GuestAllocator
	// Export resolves a guest export for a reentrant call on the same stack.
	Export(name string, sig Signature) (*Export, error)
}

type callerKey struct{}

// WithCaller attaches a Caller to ctx. Host functions invoked under ctx
// receive it instead of a caller built from the raw module.
func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, c)
}

// CallerFromContext returns the Caller attached to ctx, or nil.
func CallerFromContext(ctx context.Context) Caller {
	if c, ok := ctx.Value(callerKey{}).(Caller); ok {
		return c
	}
	return nil
}

// ModuleCaller is a Caller over a raw wazero module.
type ModuleCaller struct {
	mod    api.Module
	mem    *membridge.Bridge
	logger *zap.Logger
}

// NewModuleCaller wraps mod. A nil logger disables logging.
func NewModuleCaller(mod api.Module, logger *zap.Logger) *ModuleCaller {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &ModuleCaller{mod: mod, logger: logger}
	if mem := mod.Memory(); mem != nil {
		c.mem = membridge.New(mem)
	}
	return c
}

func (c *ModuleCaller) Name() string { return c.mod.Name() }

func (c *ModuleCaller) Memory() *membridge.Bridge { return c.mem }

func (c *ModuleCaller) Allocator() *membridge.GuestAllocator {
	malloc := c.mod.ExportedFunction(membridge.MallocExport)
	free := c.mod.ExportedFunction(membridge.FreeExport)
	if c.mem == nil || malloc == nil || free == nil {
		return nil
	}
	return membridge.NewGuestAllocator(c.mem, malloc, free, c.logger)
}

func (c *ModuleCaller) Export(name string, sig Signature) (*Export, error) {
	return ResolveExport(c.mod, name, sig)
}

var _ Caller = (*ModuleCaller)(nil)
