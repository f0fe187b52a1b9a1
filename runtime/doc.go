// Package runtime embeds WebAssembly guests and exchanges calls with them.
//
// # Quick Start
//
//	rt, err := runtime.New(ctx, runtime.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	defer rt.Close(ctx)
//
//	// Define imports before the first instantiation.
//	err = rt.DefineImport("env", "call_host", binding.Signature{}, callHost)
//
//	mod, err := rt.CompileFile(ctx, "guest.wasm")
//	inst, err := mod.Instantiate(ctx) // runs _start once
//
//	res, err := inst.Invoke(ctx, "__increment", binding.I32(1))
//
// # Linking
//
// Instantiate checks every declared import against the runtime's import
// table before any guest code runs and reports all missing or mismatched
// imports in one link error. The first instantiation builds host modules
// from the table; the table is immutable afterwards.
//
// # Instance Lifecycle
//
//	Instantiated -> Running -> Instantiated   (call returned)
//	                        -> Trapped        (guest or host fault)
//	                        -> Completed      (guest exited with code 0)
//	any          -> Closed                    (Close)
//
// Trapped, Completed and Closed are terminal: every later call fails with
// an invalid state error. The start function counts as a call.
//
// # Typed Exports
//
// Func1, Func2, Proc1 and Action bind an export to a Go function type after
// checking its signature:
//
//	inc, err := runtime.Func1[int32, int32](inst, "__increment")
//	n, err := inc(ctx, 41) // 42
//
// # Thread Safety
//
// Runtime and Module are safe for concurrent use. Instance is not: calls
// must be serialized by the caller, and an Invoke issued while another is
// running fails. Host functions reach back into the guest through their
// binding.Caller, which runs on the same stack.
package runtime
