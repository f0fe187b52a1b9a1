// Package guest describes the env guest contract and drives conforming
// guests.
//
// A conforming guest imports env.call_host and env.print, exports its
// linear memory as "memory", a malloc/free allocator, and the functions
// _start, __say_hello, __increment and __concat.
//
// Ownership across the boundary follows one rule per direction:
//
//   - print receives a guest allocation; the host frees it before returning.
//   - __concat receives two host-written allocations and frees both; the
//     pointer it returns is owned by the host, which frees it after reading.
//
// Client wraps an instance and applies these rules so callers deal in Go
// strings only.
package guest
