// Package errors provides structured error types for the wasm-bridge library.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error
// category). The Error type carries the offending import or export name, a
// detail message, and a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseLinking, errors.KindLink).
//		Import("env", "print").
//		Detail("not defined").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.OutOfBounds(errors.PhaseMemory, ptr, length, size)
//	err := errors.DuplicateImport("env", "print")
//
// Every Kind has a sentinel matched by the standard library's errors.Is:
//
//	if stderrors.Is(err, errors.ErrTrap) { ... }
package errors
