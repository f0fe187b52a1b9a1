package runtime

import (
	"context"
	"sync/atomic"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-bridge/binding"
	"github.com/wippyai/wasm-bridge/engine"
	"github.com/wippyai/wasm-bridge/errors"
	"github.com/wippyai/wasm-bridge/membridge"
)

// State is an instance lifecycle state.
type State int32

const (
	StateInstantiated State = iota
	StateRunning
	StateTrapped
	StateCompleted
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateInstantiated:
		return "instantiated"
	case StateRunning:
		return "running"
	case StateTrapped:
		return "trapped"
	case StateCompleted:
		return "completed"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Terminal reports whether no further calls are possible.
func (s State) Terminal() bool {
	return s >= StateTrapped
}

// Instance is one instantiation of a Module with its own linear memory.
type Instance struct {
	module *Module
	mod    api.Module
	mem    *membridge.Bridge
	alloc  *membridge.GuestAllocator
	logger *zap.Logger
	state  atomic.Int32
}

func newInstance(m *Module, mod api.Module, logger *zap.Logger) *Instance {
	i := &Instance{module: m, mod: mod, logger: logger}
	if mem := mod.ExportedMemory("memory"); mem != nil {
		i.mem = membridge.New(mem)
	} else if mem := mod.Memory(); mem != nil {
		i.mem = membridge.New(mem)
	}

	malloc := mod.ExportedFunction(membridge.MallocExport)
	free := mod.ExportedFunction(membridge.FreeExport)
	if i.mem != nil && malloc != nil && free != nil {
		i.alloc = membridge.NewGuestAllocator(i.mem,
			&guardedFunc{inst: i, name: membridge.MallocExport, fn: malloc},
			&guardedFunc{inst: i, name: membridge.FreeExport, fn: free},
			logger)
	}
	return i
}

// start runs the start function once, if the guest exports it.
func (i *Instance) start(ctx context.Context, name string) error {
	if name == "" {
		return nil
	}
	fn := i.mod.ExportedFunction(name)
	if fn == nil {
		return nil
	}
	if sig := binding.SignatureOf(fn.Definition()); !sig.Equal(binding.Signature{}) {
		return errors.SignatureMismatch(errors.PhaseStart, name, binding.Signature{}.String(), sig.String())
	}

	i.state.Store(int32(StateRunning))
	_, err := fn.Call(binding.WithCaller(ctx, instanceCaller{i}))
	if err != nil {
		if engine.IsCleanExit(err) {
			i.state.Store(int32(StateCompleted))
			i.logger.Debug("guest exited during start", zap.String("export", name))
			return nil
		}
		i.state.Store(int32(StateTrapped))
		return errors.Trap(errors.PhaseStart, name, err)
	}
	i.state.Store(int32(StateInstantiated))
	i.logger.Debug("start function completed", zap.String("export", name))
	return nil
}

// State returns the current lifecycle state.
func (i *Instance) State() State {
	return State(i.state.Load())
}

// Module returns the module this instance was created from.
func (i *Instance) Module() *Module {
	return i.module
}

// Logger returns the logger the instance reports to.
func (i *Instance) Logger() *zap.Logger {
	return i.logger
}

// Name returns the instance name. Instances are anonymous.
func (i *Instance) Name() string {
	return i.mod.Name()
}

// Memory returns the instance's linear memory, or nil if it has none.
func (i *Instance) Memory() *membridge.Bridge {
	return i.mem
}

// Allocator returns the guest allocator, or nil if the guest does not
// export malloc and free. A trap inside the allocator traps the instance.
func (i *Instance) Allocator() *membridge.GuestAllocator {
	return i.alloc
}

// Global reads an exported global.
func (i *Instance) Global(name string) (binding.Val, error) {
	g := i.mod.ExportedGlobal(name)
	if g == nil {
		return binding.Val{}, errors.ExportNotFound(errors.PhaseCall, name)
	}
	return binding.Val{Kind: g.Type(), Bits: g.Get()}, nil
}

// Export resolves name against sig. Calls through the handle follow the
// same state rules as Invoke.
func (i *Instance) Export(name string, sig binding.Signature) (*Export, error) {
	if err := i.usable(errors.PhaseCall); err != nil {
		return nil, err
	}
	exp, err := binding.ResolveExport(i.mod, name, sig)
	if err != nil {
		return nil, err
	}
	return &Export{inst: i, exp: exp.OnTrap(i.fail)}, nil
}

// Invoke calls the named export. Arguments are checked against the
// export's signature before the guest runs. A guest exit with code 0
// completes the instance and returns no results.
func (i *Instance) Invoke(ctx context.Context, name string, args ...binding.Val) ([]binding.Val, error) {
	if err := i.usable(errors.PhaseCall); err != nil {
		return nil, err
	}
	exp, err := binding.LookupExport(i.mod, name)
	if err != nil {
		return nil, err
	}
	return i.call(ctx, exp.OnTrap(i.fail), args)
}

func (i *Instance) call(ctx context.Context, exp *binding.Export, args []binding.Val) ([]binding.Val, error) {
	if err := i.enter(errors.PhaseCall); err != nil {
		return nil, err
	}
	res, err := exp.Call(binding.WithCaller(ctx, instanceCaller{i}), args...)
	i.leave()

	if err != nil {
		if i.State() == StateCompleted {
			return nil, nil
		}
		return nil, err
	}
	return res, nil
}

// enter moves the instance from Instantiated to Running.
func (i *Instance) enter(phase errors.Phase) error {
	if i.state.CompareAndSwap(int32(StateInstantiated), int32(StateRunning)) {
		return nil
	}
	if err := i.usable(phase); err != nil {
		return err
	}
	return errors.InvalidState(phase, "a call is already running on this instance")
}

// leave returns a Running instance to Instantiated. Terminal states stick.
func (i *Instance) leave() {
	i.state.CompareAndSwap(int32(StateRunning), int32(StateInstantiated))
}

// usable fails if the instance is in a terminal state.
func (i *Instance) usable(phase errors.Phase) error {
	if s := i.State(); s.Terminal() {
		return errors.InvalidState(phase, "instance is "+s.String())
	}
	return nil
}

// fail moves a live instance to Trapped, or Completed for a clean exit.
func (i *Instance) fail(err error) {
	next := StateTrapped
	if engine.IsCleanExit(err) {
		next = StateCompleted
	}
	for {
		cur := i.state.Load()
		if State(cur).Terminal() {
			return
		}
		if i.state.CompareAndSwap(cur, int32(next)) {
			break
		}
	}
	if next == StateTrapped {
		i.logger.Warn("guest trapped", zap.Error(err))
	} else {
		i.logger.Debug("guest exited")
	}
}

// Close releases the instance. It is safe to call more than once.
func (i *Instance) Close(ctx context.Context) error {
	if State(i.state.Swap(int32(StateClosed))) == StateClosed {
		return nil
	}
	return i.mod.Close(ctx)
}

// Export is an instance export bound to a checked signature.
type Export struct {
	inst *Instance
	exp  *binding.Export
}

// Name returns the export name.
func (e *Export) Name() string { return e.exp.Name() }

// Signature returns the export's signature.
func (e *Export) Signature() binding.Signature { return e.exp.Signature() }

// Call invokes the export under the instance's state rules.
func (e *Export) Call(ctx context.Context, args ...binding.Val) ([]binding.Val, error) {
	return e.inst.call(ctx, e.exp, args)
}

// guardedFunc is an allocator export that refuses to run on a dead
// instance and traps the instance when it fails. Outside a host callback it
// takes the instance like Invoke does; inside one it runs on the current
// stack.
type guardedFunc struct {
	inst *Instance
	fn   api.Function
	name string
}

func (g *guardedFunc) Call(ctx context.Context, params ...uint64) ([]uint64, error) {
	if c, ok := binding.CallerFromContext(ctx).(instanceCaller); ok && c.Instance == g.inst {
		if err := g.inst.usable(errors.PhaseMemory); err != nil {
			return nil, err
		}
	} else {
		if err := g.inst.enter(errors.PhaseMemory); err != nil {
			return nil, err
		}
		defer g.inst.leave()
	}

	res, err := g.fn.Call(binding.WithCaller(ctx, instanceCaller{g.inst}), params...)
	if err != nil {
		g.inst.fail(err)
		return nil, errors.Trap(errors.PhaseMemory, g.name, err)
	}
	return res, nil
}

// instanceCaller is the binding.Caller handed to host functions. Exports
// resolved through it run on the current stack without a state transition.
type instanceCaller struct {
	*Instance
}

func (c instanceCaller) Export(name string, sig binding.Signature) (*binding.Export, error) {
	exp, err := binding.ResolveExport(c.mod, name, sig)
	if err != nil {
		return nil, err
	}
	return exp.OnTrap(c.fail), nil
}

var _ binding.Caller = instanceCaller{}
