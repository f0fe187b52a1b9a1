// Package engine wraps wazero for core WebAssembly guests.
//
// # Architecture
//
//	WazeroEngine  - owns a wazero runtime and its configuration
//	WazeroModule  - a compiled guest, reusable across instantiations
//
// WazeroEngine.LoadModule compiles and validates guest bytes, reporting
// failures as compile errors. WazeroModule.CheckImports verifies every
// declared import against a binding.Table before anything is instantiated.
// WazeroModule.Instantiate creates an anonymous instance without running
// its start function; the caller decides when start runs.
//
// # WASI
//
// With Config.WASI set, the engine provides wasi_snapshot_preview1 and
// instances inherit the configured stdout and stderr. Imports from that
// namespace are then satisfied by the engine, not the binding table.
//
// # Traps
//
// Classify maps an error returned by a guest call to an Outcome: a guest
// or host trap, a WASI exit with its code, or a context cancellation.
//
// # Thread Safety
//
// WazeroEngine and WazeroModule are safe for concurrent use.
//
// Most users should use the runtime package for a simpler API.
package engine
