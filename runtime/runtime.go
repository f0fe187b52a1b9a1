package runtime

import (
	"context"
	"os"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-bridge/binding"
	"github.com/wippyai/wasm-bridge/engine"
	"github.com/wippyai/wasm-bridge/errors"
)

// Runtime owns the engine and the host import table shared by all modules
// compiled from it.
type Runtime struct {
	engine        *engine.WazeroEngine
	imports       *binding.Table
	logger        *zap.Logger
	startFunction string
}

// New creates a runtime.
func New(ctx context.Context, opts ...Option) (*Runtime, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	o.engine.Logger = o.logger

	eng, err := engine.NewWazeroEngineWithConfig(ctx, &o.engine)
	if err != nil {
		return nil, errors.Load("create engine", err)
	}

	return &Runtime{
		engine:        eng,
		imports:       binding.NewTable(o.logger),
		logger:        o.logger,
		startFunction: o.startFunction,
	}, nil
}

// Close releases all runtime resources, including every instance.
func (r *Runtime) Close(ctx context.Context) error {
	return r.engine.Close(ctx)
}

// Logger returns the runtime's logger.
func (r *Runtime) Logger() *zap.Logger {
	return r.logger
}

// Imports returns the host import table.
func (r *Runtime) Imports() *binding.Table {
	return r.imports
}

// DefineImport registers a host function. It must be called before the
// first instantiation; namespaces provided by the engine are reserved.
func (r *Runtime) DefineImport(namespace, name string, sig binding.Signature, fn binding.HostFunc) error {
	if r.engine.Provides(namespace) {
		return errors.New(errors.PhaseHost, errors.KindInvalidInput).
			Import(namespace, name).
			Detail("namespace is provided by the engine").
			Build()
	}
	return r.imports.Define(namespace, name, sig, fn)
}

// Compile compiles and validates a guest binary.
func (r *Runtime) Compile(ctx context.Context, wasm []byte) (*Module, error) {
	wazeroModule, err := r.engine.LoadModule(ctx, wasm)
	if err != nil {
		return nil, err
	}
	return &Module{runtime: r, wazeroModule: wazeroModule}, nil
}

// CompileFile reads and compiles a guest binary from path.
func (r *Runtime) CompileFile(ctx context.Context, path string) (*Module, error) {
	wasm, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Load("read guest "+path, err)
	}
	return r.Compile(ctx, wasm)
}

// Instantiate links and instantiates m, then runs its start function.
func (r *Runtime) Instantiate(ctx context.Context, m *Module) (*Instance, error) {
	if m.runtime != r {
		return nil, errors.InvalidInput(errors.PhaseLinking, "module was compiled by another runtime")
	}
	if err := m.wazeroModule.CheckImports(r.imports); err != nil {
		return nil, err
	}
	if err := r.imports.Instantiate(ctx, r.engine.Runtime()); err != nil {
		return nil, err
	}

	mod, err := m.wazeroModule.Instantiate(ctx)
	if err != nil {
		return nil, err
	}

	inst := newInstance(m, mod, r.logger)
	if err := inst.start(ctx, r.startFunction); err != nil {
		_ = mod.Close(ctx)
		return nil, err
	}
	return inst, nil
}
