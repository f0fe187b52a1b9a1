// Package testguest assembles small WebAssembly binaries for tests.
//
// Module is a minimal binary encoder covering the sections the bridge
// exercises: types, imports, functions, one memory, globals, exports, code
// and active data. Code is an instruction writer for function bodies.
//
// Build produces a guest that follows the env contract: it imports
// env.call_host and env.print, exports memory, a bump allocator
// (malloc/free), _start, __say_hello, __increment and __concat, plus a few
// fault-injection exports used by runtime tests. The exported global
// live_allocs counts allocations not yet freed.
package testguest
