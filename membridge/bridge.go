package membridge

import (
	"bytes"
	"strings"
	"unicode/utf8"

	wasmbridge "github.com/wippyai/wasm-bridge"
	"github.com/wippyai/wasm-bridge/errors"
)

// Memory is the subset of wazero api.Memory the bridge relies on.
type Memory interface {
	Size() uint32
	Read(offset, byteCount uint32) ([]byte, bool)
	Write(offset uint32, v []byte) bool
}

// StringRef is a cross-boundary string: an offset and byte length into
// linear memory. It carries no ownership by itself.
type StringRef struct {
	Ptr uint32
	Len uint32
}

// End returns the exclusive end offset. It is 64-bit so that ranges near the
// top of the address space do not wrap.
func (r StringRef) End() uint64 {
	return uint64(r.Ptr) + uint64(r.Len)
}

// Bridge is a bounds-checked view over one instance's linear memory.
type Bridge struct {
	mem Memory
}

// New wraps mem. It returns nil for a nil memory.
func New(mem Memory) *Bridge {
	if mem == nil {
		return nil
	}
	return &Bridge{mem: mem}
}

// Size returns the current memory size in bytes.
func (b *Bridge) Size() uint32 {
	return b.mem.Size()
}

func (b *Bridge) check(phase errors.Phase, ptr uint32, length uint64) error {
	size := b.mem.Size()
	if uint64(ptr)+length > uint64(size) {
		return errors.OutOfBounds(phase, ptr, length, size)
	}
	return nil
}

// ReadBytes copies length bytes starting at ptr.
func (b *Bridge) ReadBytes(ptr, length uint32) ([]byte, error) {
	if err := b.check(errors.PhaseMemory, ptr, uint64(length)); err != nil {
		return nil, err
	}
	view, ok := b.mem.Read(ptr, length)
	if !ok {
		return nil, errors.OutOfBounds(errors.PhaseMemory, ptr, uint64(length), b.mem.Size())
	}
	out := make([]byte, len(view))
	copy(out, view)
	return out, nil
}

// ReadCString copies the bytes from ptr up to, not including, the first zero
// byte. It fails if memory ends before a terminator is found.
func (b *Bridge) ReadCString(ptr uint32) ([]byte, error) {
	size := b.mem.Size()
	if ptr >= size {
		return nil, errors.OutOfBounds(errors.PhaseMemory, ptr, 1, size)
	}
	view, ok := b.mem.Read(ptr, size-ptr)
	if !ok {
		return nil, errors.OutOfBounds(errors.PhaseMemory, ptr, uint64(size-ptr), size)
	}
	n := bytes.IndexByte(view, 0)
	if n < 0 {
		return nil, errors.New(errors.PhaseMemory, errors.KindOutOfBounds).
			Value(ptr).
			Detail("no terminator between %d and end of memory (%d)", ptr, size).
			Build()
	}
	out := make([]byte, n)
	copy(out, view[:n])
	return out, nil
}

// WriteBytes copies data verbatim to ptr. The destination must already be
// allocated; memory is never grown.
func (b *Bridge) WriteBytes(ptr uint32, data []byte) error {
	if err := b.check(errors.PhaseMemory, ptr, uint64(len(data))); err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	if !b.mem.Write(ptr, data) {
		return errors.OutOfBounds(errors.PhaseMemory, ptr, uint64(len(data)), b.mem.Size())
	}
	return nil
}

// WriteTerminator writes a single zero byte at ptr.
func (b *Bridge) WriteTerminator(ptr uint32) error {
	return b.WriteBytes(ptr, []byte{0})
}

// Read copies the bytes referenced by ref.
func (b *Bridge) Read(ref StringRef) ([]byte, error) {
	return b.ReadBytes(ref.Ptr, ref.Len)
}

// Text decodes the UTF-8 string referenced by ref.
func (b *Bridge) Text(ref StringRef) (string, error) {
	return b.ReadString(ref.Ptr, ref.Len)
}

// ReadString decodes a length-paired UTF-8 string.
func (b *Bridge) ReadString(ptr, length uint32) (string, error) {
	data, err := b.ReadBytes(ptr, length)
	if err != nil {
		return "", err
	}
	return DecodeText(errors.PhaseDecode, data)
}

// ReadNullTerminatedString decodes a null-terminated UTF-8 string.
func (b *Bridge) ReadNullTerminatedString(ptr uint32) (string, error) {
	data, err := b.ReadCString(ptr)
	if err != nil {
		return "", err
	}
	return DecodeText(errors.PhaseDecode, data)
}

// DecodeText converts bytes already copied out of guest memory to a string.
func DecodeText(phase errors.Phase, data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", errors.InvalidUTF8(phase, data)
	}
	return string(data), nil
}

// WriteString writes s without a terminator and returns its reference.
func (b *Bridge) WriteString(ptr uint32, s string) (StringRef, error) {
	if !utf8.ValidString(s) {
		return StringRef{}, errors.InvalidUTF8(errors.PhaseEncode, []byte(s))
	}
	if err := b.WriteBytes(ptr, []byte(s)); err != nil {
		return StringRef{}, err
	}
	return StringRef{Ptr: ptr, Len: uint32(len(s))}, nil
}

// WriteCString writes s followed by a zero byte, occupying len(s)+1 bytes.
func (b *Bridge) WriteCString(ptr uint32, s string) error {
	if err := ValidateCString(s); err != nil {
		return err
	}
	if err := b.check(errors.PhaseMemory, ptr, uint64(len(s))+1); err != nil {
		return err
	}
	if err := b.WriteBytes(ptr, []byte(s)); err != nil {
		return err
	}
	return b.WriteTerminator(ptr + uint32(len(s)))
}

// ValidateCString reports whether s can be sent as a null-terminated string.
func ValidateCString(s string) error {
	if !utf8.ValidString(s) {
		return errors.InvalidUTF8(errors.PhaseEncode, []byte(s))
	}
	if i := strings.IndexByte(s, 0); i >= 0 {
		return errors.EmbeddedNUL(errors.PhaseEncode, i)
	}
	return nil
}

// Compile-time check that Bridge implements wasmbridge.Memory and MemorySizer
var _ wasmbridge.Memory = (*Bridge)(nil)
var _ wasmbridge.MemorySizer = (*Bridge)(nil)
