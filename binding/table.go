package binding

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-bridge/errors"
)

// HostFunc implements a guest import. Returning an error aborts the whole
// guest call chain; it surfaces as a trap from the outermost export call.
type HostFunc func(ctx context.Context, caller Caller, args []Val) ([]Val, error)

// Import is a host function registered under (Namespace, Name).
type Import struct {
	Func      HostFunc
	Namespace string
	Name      string
	Signature Signature
}

type importKey struct {
	namespace string
	name      string
}

// Table holds host imports keyed by (namespace, name). It is safe for
// concurrent use and becomes immutable once instantiated.
type Table struct {
	logger  *zap.Logger
	imports map[importKey]*Import
	mu      sync.RWMutex
	frozen  bool
}

// NewTable creates an empty table. A nil logger disables logging.
func NewTable(logger *zap.Logger) *Table {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Table{
		logger:  logger,
		imports: make(map[importKey]*Import),
	}
}

// Define registers fn under (namespace, name). Redefining a key is an error,
// as is defining into a table that has been instantiated.
func (t *Table) Define(namespace, name string, sig Signature, fn HostFunc) error {
	if namespace == "" || name == "" {
		return errors.InvalidInput(errors.PhaseHost, "import namespace and name cannot be empty")
	}
	if fn == nil {
		return errors.New(errors.PhaseHost, errors.KindInvalidInput).
			Import(namespace, name).
			Detail("host function is nil").
			Build()
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.frozen {
		return errors.New(errors.PhaseHost, errors.KindInvalidState).
			Import(namespace, name).
			Detail("import table is frozen after instantiation").
			Build()
	}
	key := importKey{namespace, name}
	if _, exists := t.imports[key]; exists {
		return errors.DuplicateImport(namespace, name)
	}
	t.imports[key] = &Import{
		Namespace: namespace,
		Name:      name,
		Signature: sig,
		Func:      fn,
	}
	t.logger.Debug("host import defined",
		zap.String("namespace", namespace),
		zap.String("name", name),
		zap.Stringer("signature", sig))
	return nil
}

// Lookup returns the import registered under (namespace, name).
func (t *Table) Lookup(namespace, name string) (*Import, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	imp, ok := t.imports[importKey{namespace, name}]
	return imp, ok
}

// Imports returns all registered imports sorted by namespace then name.
func (t *Table) Imports() []*Import {
	t.mu.RLock()
	out := make([]*Import, 0, len(t.imports))
	for _, imp := range t.imports {
		out = append(out, imp)
	}
	t.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Namespace != out[j].Namespace {
			return out[i].Namespace < out[j].Namespace
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Frozen reports whether the table has been instantiated.
func (t *Table) Frozen() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.frozen
}

// Check matches a guest's declared function imports against the table.
// Imports from namespaces for which provided returns true are satisfied
// elsewhere and skipped. All failures are reported together.
func (t *Table) Check(defs []api.FunctionDefinition, provided func(namespace string) bool) error {
	var unresolved []errors.UnresolvedImport

	for _, def := range defs {
		ns, name, ok := def.Import()
		if !ok {
			continue
		}
		if provided != nil && provided(ns) {
			continue
		}
		imp, found := t.Lookup(ns, name)
		if !found {
			unresolved = append(unresolved, errors.UnresolvedImport{
				Namespace: ns,
				Function:  name,
				Reason:    "not defined",
			})
			continue
		}
		want := SignatureOf(def)
		if !imp.Signature.Equal(want) {
			unresolved = append(unresolved, errors.UnresolvedImport{
				Namespace: ns,
				Function:  name,
				Reason:    fmt.Sprintf("guest wants %s, host defines %s", want, imp.Signature),
			})
		}
	}

	if len(unresolved) > 0 {
		return &errors.UnresolvedImportsError{Imports: unresolved}
	}
	return nil
}

// Instantiate builds one host module per namespace in rt and freezes the
// table. Later calls are no-ops.
func (t *Table) Instantiate(ctx context.Context, rt wazero.Runtime) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.frozen {
		return nil
	}
	t.frozen = true

	byNS := make(map[string][]*Import)
	var nsOrder []string
	for _, imp := range t.imports {
		if _, exists := byNS[imp.Namespace]; !exists {
			nsOrder = append(nsOrder, imp.Namespace)
		}
		byNS[imp.Namespace] = append(byNS[imp.Namespace], imp)
	}
	sort.Strings(nsOrder)

	for _, ns := range nsOrder {
		builder := rt.NewHostModuleBuilder(ns)
		for _, imp := range byNS[ns] {
			builder.NewFunctionBuilder().
				WithGoModuleFunction(imp.goFunc(t.logger), imp.Signature.Params, imp.Signature.Results).
				WithName(imp.Name).
				Export(imp.Name)
		}
		if _, err := builder.Instantiate(ctx); err != nil {
			linkErr := errors.Link(ns, "", fmt.Sprintf("instantiate host module %q", ns))
			linkErr.Cause = err
			return linkErr
		}
		t.logger.Debug("host module instantiated",
			zap.String("namespace", ns),
			zap.Int("functions", len(byNS[ns])))
	}
	return nil
}

// goFunc adapts the import to wazero's raw stack calling convention.
// A failing host function panics with the error; wazero recovers it and
// returns it, wrapped, from the outermost guest call.
func (imp *Import) goFunc(logger *zap.Logger) api.GoModuleFunc {
	sig := imp.Signature
	return func(ctx context.Context, mod api.Module, stack []uint64) {
		caller := CallerFromContext(ctx)
		if caller == nil {
			caller = NewModuleCaller(mod, logger)
		}

		results, err := imp.Func(ctx, caller, decodeVals(sig.Params, stack))
		if err == nil {
			err = sig.CheckResults(errors.PhaseCall, imp.Namespace+"."+imp.Name, results)
		}
		if err != nil {
			logger.Debug("host function failed",
				zap.String("namespace", imp.Namespace),
				zap.String("name", imp.Name),
				zap.Error(err))
			panic(errors.HostFailure(imp.Namespace, imp.Name, err))
		}

		for i, r := range results {
			stack[i] = r.Bits
		}
	}
}
