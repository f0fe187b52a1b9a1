package membridge

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	wasmbridge "github.com/wippyai/wasm-bridge"
	"github.com/wippyai/wasm-bridge/errors"
)

// Allocator export names every conforming guest provides.
const (
	MallocExport = "malloc"
	FreeExport   = "free"
)

// Func is the subset of wazero api.Function used to call allocator exports.
type Func interface {
	Call(ctx context.Context, params ...uint64) ([]uint64, error)
}

// GuestAllocator allocates in linear memory through the guest's
// malloc(size) -> ptr and free(ptr) -> () exports.
type GuestAllocator struct {
	mem    *Bridge
	malloc Func
	free   Func
	logger *zap.Logger
}

// NewGuestAllocator creates an allocator over the given exports. A nil
// logger disables logging.
func NewGuestAllocator(mem *Bridge, malloc, free Func, logger *zap.Logger) *GuestAllocator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GuestAllocator{mem: mem, malloc: malloc, free: free, logger: logger}
}

// Memory returns the bridge the allocator writes through.
func (a *GuestAllocator) Memory() *Bridge {
	return a.mem
}

// Malloc allocates size bytes. A zero pointer from the guest is reported as
// an allocation failure, as is a pointer whose range exceeds memory.
func (a *GuestAllocator) Malloc(ctx context.Context, size uint32) (uint32, error) {
	if a.malloc == nil {
		return 0, errors.AllocationFailed(size, fmt.Errorf("guest has no allocator export"))
	}
	results, err := a.malloc.Call(ctx, uint64(size))
	if err != nil {
		return 0, errors.AllocationFailed(size, err)
	}
	if len(results) != 1 {
		return 0, errors.AllocationFailed(size, fmt.Errorf("allocator returned %d results", len(results)))
	}

	ptr := uint32(results[0])
	if ptr == 0 {
		return 0, errors.AllocationFailed(size, nil)
	}
	if err := a.mem.check(errors.PhaseMemory, ptr, uint64(size)); err != nil {
		return 0, errors.AllocationFailed(size, err)
	}

	a.logger.Debug("guest malloc", zap.Uint32("ptr", ptr), zap.Uint32("size", size))
	return ptr, nil
}

// Free returns ptr to the guest allocator. Freeing 0 is a no-op.
func (a *GuestAllocator) Free(ctx context.Context, ptr uint32) error {
	if ptr == 0 {
		return nil
	}
	if a.free == nil {
		return errors.Ownership(ptr, "guest has no free export")
	}
	if _, err := a.free.Call(ctx, uint64(ptr)); err != nil {
		a.logger.Warn("guest free failed", zap.Uint32("ptr", ptr), zap.Error(err))
		return err
	}
	a.logger.Debug("guest free", zap.Uint32("ptr", ptr))
	return nil
}

// Alloc allocates size bytes owned by the host.
func (a *GuestAllocator) Alloc(ctx context.Context, size uint32) (*Buffer, error) {
	ptr, err := a.Malloc(ctx, size)
	if err != nil {
		return nil, err
	}
	return &Buffer{alloc: a, ptr: ptr, size: size}, nil
}

// Adopt takes ownership of an allocation the guest passed to the host.
func (a *GuestAllocator) Adopt(ref StringRef) *Buffer {
	return &Buffer{alloc: a, ptr: ref.Ptr, size: ref.Len}
}

// AllocCString allocates len(s)+1 bytes and writes s null-terminated.
func (a *GuestAllocator) AllocCString(ctx context.Context, s string) (*Buffer, error) {
	if err := ValidateCString(s); err != nil {
		return nil, err
	}
	buf, err := a.Alloc(ctx, uint32(len(s))+1)
	if err != nil {
		return nil, err
	}
	if err := a.mem.WriteCString(buf.ptr, s); err != nil {
		_ = buf.Release(ctx)
		return nil, err
	}
	return buf, nil
}

type bufferState uint8

const (
	bufferOwned bufferState = iota
	bufferReleased
	bufferTransferred
)

func (s bufferState) String() string {
	switch s {
	case bufferOwned:
		return "owned"
	case bufferReleased:
		return "released"
	case bufferTransferred:
		return "transferred"
	}
	return "unknown"
}

// Buffer is a host-owned guest allocation. Ownership ends exactly once,
// either by Release (host frees) or Transfer (guest takes it over).
// A Buffer is not safe for concurrent use.
type Buffer struct {
	alloc *GuestAllocator
	ptr   uint32
	size  uint32
	state bufferState
}

// Ptr returns the allocation offset.
func (b *Buffer) Ptr() uint32 {
	return b.ptr
}

// Size returns the allocation size in bytes.
func (b *Buffer) Size() uint32 {
	return b.size
}

// Ref returns the allocation as a StringRef.
func (b *Buffer) Ref() StringRef {
	return StringRef{Ptr: b.ptr, Len: b.size}
}

// Owned reports whether the host still owns the allocation.
func (b *Buffer) Owned() bool {
	return b.state == bufferOwned
}

// Release frees the allocation. It fails if the host no longer owns it.
func (b *Buffer) Release(ctx context.Context) error {
	if b.state != bufferOwned {
		return errors.Ownership(b.ptr, "release of "+b.state.String()+" buffer")
	}
	// A failed free still ends ownership; the pointer is never freed twice.
	b.state = bufferReleased
	return b.alloc.Free(ctx, b.ptr)
}

// Transfer hands ownership to the guest and returns the pointer to pass.
func (b *Buffer) Transfer() (uint32, error) {
	if b.state != bufferOwned {
		return 0, errors.Ownership(b.ptr, "transfer of "+b.state.String()+" buffer")
	}
	b.state = bufferTransferred
	return b.ptr, nil
}

// Compile-time check that GuestAllocator implements wasmbridge.Allocator
var _ wasmbridge.Allocator = (*GuestAllocator)(nil)
