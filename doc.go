// Package wasmbridge provides a host/guest calling convention for core
// WebAssembly modules running on wazero.
//
// A guest exposes nothing but an integer-addressed linear memory and
// functions over primitive values. This library defines how the host
// invokes guest exports, how the guest calls back into host imports, and
// how text crosses the boundary in two encodings: pointer+length and
// null-terminated. Allocation ownership moves explicitly between the two
// sides through the guest's own malloc/free exports.
//
// # Architecture Overview
//
//	wasmbridge/          Root package with core Memory and Allocator interfaces
//	├── runtime/         Compile, link and instantiate guests; invoke exports
//	├── engine/          Low-level wazero integration, WASI, trap classification
//	├── binding/         Import table, caller handle, typed export handles
//	├── membridge/       Bounds-checked memory access and string encodings
//	├── guest/           Guest contract (names, signatures) and typed client
//	├── hostenv/         The "env" namespace imports (call_host, print)
//	├── config/          YAML configuration for the CLI
//	├── errors/          Structured error types
//	└── cmd/wasmbridge/  CLI: run, exports, call, interactive
//
// # Quick Start
//
//	rt, err := runtime.New(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Close(ctx)
//
//	if err := hostenv.New(hostenv.WithOutput(os.Stdout)).Register(rt); err != nil {
//	    log.Fatal(err)
//	}
//
//	mod, err := rt.Compile(ctx, wasmBytes)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	inst, err := mod.Instantiate(ctx) // runs _start once
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer inst.Close(ctx)
//
//	client, err := guest.NewClient(inst)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	s, err := client.Concat(ctx, "Hello ", "World")
//
// # Thread Safety
//
// Runtime and Module are safe for concurrent use. Instance is NOT
// thread-safe: overlapping calls from different goroutines are rejected.
// Host functions may call back into the guest on the same call stack.
//
// # Memory Model
//
// Linear memory only grows, and only through guest logic. The host never
// holds a Go slice aliasing guest memory: every read returns a copy.
package wasmbridge
