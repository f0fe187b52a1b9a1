// Package membridge provides bounds-checked access to a guest's linear memory.
//
// The guest exposes memory as a flat byte array addressed by uint32 offsets.
// Bridge wraps it so that every access is range-checked against the current
// memory size and every read returns a copy; host code never aliases guest
// memory directly.
//
// # String Conventions
//
// Two encodings cross the boundary and both are kept:
//
//	(ptr, len)        values the guest returns or hands to host imports
//	ptr + 0x00        values the host sends into guest code that scans for length
//
//	text, err := bridge.ReadString(ptr, length)       // length-paired
//	text, err := bridge.ReadNullTerminatedString(ptr) // null-terminated
//
// All text is UTF-8. Invalid sequences and embedded zero bytes in text bound
// for a null-terminated slot fail with an encoding error.
//
// # Allocation Ownership
//
// GuestAllocator calls the guest's malloc/free exports and hands out Buffer
// handles that record who owns a pointer:
//
//	buf, err := alloc.AllocCString(ctx, "Hello ") // host owns buf
//	ptr, err := buf.Transfer()                    // guest owns ptr now
//
//	buf := alloc.Adopt(ref)                       // guest handed ref to host
//	defer buf.Release(ctx)                        // host frees it exactly once
package membridge
