package wasmbridge

import "context"

// Memory is bounds-checked access to a guest's linear memory.
type Memory interface {
	ReadBytes(ptr, length uint32) ([]byte, error)
	ReadCString(ptr uint32) ([]byte, error)
	WriteBytes(ptr uint32, data []byte) error
	WriteTerminator(ptr uint32) error
}

// MemorySizer provides the current size of WASM linear memory in bytes.
type MemorySizer interface {
	Size() uint32
}

// Allocator allocates memory in WASM linear memory through the guest's
// own allocator exports.
type Allocator interface {
	Malloc(ctx context.Context, size uint32) (uint32, error)
	Free(ctx context.Context, ptr uint32) error
}
