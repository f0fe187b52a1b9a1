package runtime

import (
	"context"

	"github.com/wippyai/wasm-bridge/binding"
	"github.com/wippyai/wasm-bridge/engine"
)

// Module is a compiled guest. It is immutable and can be instantiated any
// number of times.
type Module struct {
	runtime      *Runtime
	wazeroModule *engine.WazeroModule
}

// ImportInfo describes a declared function import.
type ImportInfo struct {
	Namespace string
	Name      string
	Signature binding.Signature
}

// ExportInfo describes an exported function.
type ExportInfo struct {
	Name      string
	Signature binding.Signature
}

// Imports lists declared function imports in declaration order.
func (m *Module) Imports() []ImportInfo {
	defs := m.wazeroModule.ImportedFunctions()
	out := make([]ImportInfo, 0, len(defs))
	for _, def := range defs {
		ns, name, _ := def.Import()
		out = append(out, ImportInfo{Namespace: ns, Name: name, Signature: binding.SignatureOf(def)})
	}
	return out
}

// Exports lists exported functions sorted by name.
func (m *Module) Exports() []ExportInfo {
	names := m.wazeroModule.ExportNames()
	out := make([]ExportInfo, 0, len(names))
	for _, name := range names {
		def := m.wazeroModule.ExportedFunction(name)
		out = append(out, ExportInfo{Name: name, Signature: binding.SignatureOf(def)})
	}
	return out
}

// Export returns the named export, if present.
func (m *Module) Export(name string) (ExportInfo, bool) {
	def := m.wazeroModule.ExportedFunction(name)
	if def == nil {
		return ExportInfo{}, false
	}
	return ExportInfo{Name: name, Signature: binding.SignatureOf(def)}, true
}

// Memories lists exported memory names.
func (m *Module) Memories() []string {
	return m.wazeroModule.ExportedMemories()
}

// StartFunction is the export Instantiate runs, or "" when none is configured.
func (m *Module) StartFunction() string {
	return m.runtime.startFunction
}

// Instantiate is shorthand for Runtime.Instantiate.
func (m *Module) Instantiate(ctx context.Context) (*Instance, error) {
	return m.runtime.Instantiate(ctx, m)
}

// Close releases the compiled module. Existing instances are unaffected.
func (m *Module) Close(ctx context.Context) error {
	return m.wazeroModule.Close(ctx)
}
