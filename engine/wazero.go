package engine

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-bridge/binding"
	"github.com/wippyai/wasm-bridge/errors"
)

// WazeroEngine owns a wazero runtime and the host modules linked into it.
type WazeroEngine struct {
	runtime      wazero.Runtime
	logger       *zap.Logger
	cfg          Config
	wasiInitMu   sync.Mutex
	wasiInitDone atomic.Bool
}

// Config holds configuration for engine creation
type Config struct {
	// Logger receives engine events. nil falls back to Logger().
	Logger *zap.Logger

	// Stdout and Stderr back WASI file descriptors 1 and 2. nil discards.
	Stdout io.Writer
	Stderr io.Writer

	// MemoryLimitPages sets the maximum memory per instance in pages (64KB each).
	// 0 means default (65536 pages = 4GB).
	// 256 = 16MB, 1024 = 64MB, 4096 = 256MB
	MemoryLimitPages uint32

	// WASI provides wasi_snapshot_preview1 to guests.
	WASI bool

	// CloseOnContextDone aborts running guest code when the call context
	// is canceled or times out.
	CloseOnContextDone bool

	// Interpreter selects the interpreter instead of the compiler.
	Interpreter bool
}

// NewWazeroEngine creates a new wazero-based engine
func NewWazeroEngine(ctx context.Context) (*WazeroEngine, error) {
	return NewWazeroEngineWithConfig(ctx, nil)
}

// NewWazeroEngineWithConfig creates a new engine with custom configuration
func NewWazeroEngineWithConfig(ctx context.Context, cfg *Config) (*WazeroEngine, error) {
	var c Config
	if cfg != nil {
		c = *cfg
	}
	if c.Logger == nil {
		c.Logger = Logger()
	}

	runtimeCfg := wazero.NewRuntimeConfig()
	if c.Interpreter {
		runtimeCfg = wazero.NewRuntimeConfigInterpreter()
	}
	if c.MemoryLimitPages > 0 {
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(c.MemoryLimitPages)
	}
	if c.CloseOnContextDone {
		runtimeCfg = runtimeCfg.WithCloseOnContextDone(true)
	}

	e := &WazeroEngine{
		runtime: wazero.NewRuntimeWithConfig(ctx, runtimeCfg),
		logger:  c.Logger,
		cfg:     c,
	}
	if c.WASI {
		if err := e.InitWASI(ctx); err != nil {
			_ = e.runtime.Close(ctx)
			return nil, err
		}
	}
	return e, nil
}

// Runtime returns the underlying wazero runtime.
func (e *WazeroEngine) Runtime() wazero.Runtime {
	return e.runtime
}

// Provides reports whether the engine itself satisfies imports from namespace.
func (e *WazeroEngine) Provides(namespace string) bool {
	return e.cfg.WASI && namespace == WASINamespace
}

// LoadModule compiles and validates a guest binary.
func (e *WazeroEngine) LoadModule(ctx context.Context, wasmBytes []byte) (*WazeroModule, error) {
	if len(wasmBytes) == 0 {
		return nil, errors.Compile(fmt.Errorf("empty guest binary"))
	}
	compiled, err := e.runtime.CompileModule(ctx, wasmBytes)
	if err != nil {
		return nil, errors.Compile(err)
	}
	e.logger.Debug("guest compiled",
		zap.Int("bytes", len(wasmBytes)),
		zap.Int("imports", len(compiled.ImportedFunctions())),
		zap.Int("exports", len(compiled.ExportedFunctions())))
	return &WazeroModule{engine: e, compiled: compiled}, nil
}

func (e *WazeroEngine) Close(ctx context.Context) error {
	return e.runtime.Close(ctx)
}

// InitWASI instantiates the WASI singleton for this engine's runtime.
// Safe for concurrent calls.
func (e *WazeroEngine) InitWASI(ctx context.Context) error {
	if e.wasiInitDone.Load() {
		return nil
	}

	e.wasiInitMu.Lock()
	defer e.wasiInitMu.Unlock()

	if e.wasiInitDone.Load() {
		return nil
	}

	if e.runtime.Module(WASINamespace) == nil {
		if _, err := InstantiateWASI(ctx, e.runtime); err != nil {
			return errors.New(errors.PhaseHost, errors.KindLink).
				Import(WASINamespace, "").
				Detail("instantiate WASI").
				Cause(err).
				Build()
		}
	}

	e.wasiInitDone.Store(true)
	return nil
}

// WazeroModule is a compiled guest.
type WazeroModule struct {
	engine   *WazeroEngine
	compiled wazero.CompiledModule
}

// ImportedFunctions returns the guest's function imports in declaration order.
func (m *WazeroModule) ImportedFunctions() []api.FunctionDefinition {
	return m.compiled.ImportedFunctions()
}

// ExportNames returns the names of exported functions, sorted.
func (m *WazeroModule) ExportNames() []string {
	exports := m.compiled.ExportedFunctions()
	names := make([]string, 0, len(exports))
	for name := range exports {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ExportedFunction returns the definition of the named export, or nil.
func (m *WazeroModule) ExportedFunction(name string) api.FunctionDefinition {
	return m.compiled.ExportedFunctions()[name]
}

// ExportedMemories returns the names of exported memories, sorted.
func (m *WazeroModule) ExportedMemories() []string {
	mems := m.compiled.ExportedMemories()
	names := make([]string, 0, len(mems))
	for name := range mems {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CheckImports verifies every declared import against table. Function
// imports from namespaces the engine provides are skipped; memory imports
// cannot be satisfied by host functions and are always reported.
func (m *WazeroModule) CheckImports(table *binding.Table) error {
	var unresolved []errors.UnresolvedImport

	if err := table.Check(m.compiled.ImportedFunctions(), m.engine.Provides); err != nil {
		var uie *errors.UnresolvedImportsError
		if !stderrors.As(err, &uie) {
			return err
		}
		unresolved = append(unresolved, uie.Imports...)
	}

	for _, mem := range m.compiled.ImportedMemories() {
		ns, name, _ := mem.Import()
		unresolved = append(unresolved, errors.UnresolvedImport{
			Namespace: ns,
			Function:  name,
			Reason:    "memory imports are not supported",
		})
	}

	if len(unresolved) > 0 {
		return &errors.UnresolvedImportsError{Imports: unresolved}
	}
	return nil
}

// Instantiate creates a new anonymous instance, so the same module can be
// instantiated repeatedly. The start function is not run.
func (m *WazeroModule) Instantiate(ctx context.Context) (api.Module, error) {
	modConfig := wazero.NewModuleConfig().
		WithName("").
		WithStartFunctions()
	if m.engine.cfg.Stdout != nil {
		modConfig = modConfig.WithStdout(m.engine.cfg.Stdout)
	}
	if m.engine.cfg.Stderr != nil {
		modConfig = modConfig.WithStderr(m.engine.cfg.Stderr)
	}

	mod, err := m.engine.runtime.InstantiateModule(ctx, m.compiled, modConfig)
	if err != nil {
		return nil, errors.New(errors.PhaseLinking, errors.KindLink).
			Detail("instantiate guest").
			Cause(err).
			Build()
	}
	return mod, nil
}

// Close releases the compiled module.
func (m *WazeroModule) Close(ctx context.Context) error {
	return m.compiled.Close(ctx)
}
