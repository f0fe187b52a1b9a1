package membridge

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/wasm-bridge/errors"
)

// sliceMemory is a byte-slice backed Memory with wazero's bounds semantics.
type sliceMemory struct {
	buf []byte
}

func newSliceMemory(size int) *sliceMemory {
	return &sliceMemory{buf: make([]byte, size)}
}

func (m *sliceMemory) Size() uint32 { return uint32(len(m.buf)) }

func (m *sliceMemory) Read(offset, byteCount uint32) ([]byte, bool) {
	if uint64(offset)+uint64(byteCount) > uint64(len(m.buf)) {
		return nil, false
	}
	return m.buf[offset : offset+byteCount : offset+byteCount], true
}

func (m *sliceMemory) Write(offset uint32, v []byte) bool {
	if uint64(offset)+uint64(len(v)) > uint64(len(m.buf)) {
		return false
	}
	copy(m.buf[offset:], v)
	return true
}

func TestNew_NilMemory(t *testing.T) {
	assert.Nil(t, New(nil))
}

func TestBridge_ReadBytes(t *testing.T) {
	mem := newSliceMemory(64)
	copy(mem.buf[8:], "payload")
	b := New(mem)

	got, err := b.ReadBytes(8, 7)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), got)

	// Result is a copy, not a view into guest memory.
	got[0] = 'X'
	assert.Equal(t, byte('p'), mem.buf[8])
}

func TestBridge_ReadBytes_OutOfBounds(t *testing.T) {
	mem := newSliceMemory(64)
	b := New(mem)

	tests := []struct {
		name   string
		ptr    uint32
		length uint32
	}{
		{"past end", 60, 5},
		{"ptr at size", 64, 1},
		{"wraps 32-bit", 0xFFFFFFF0, 0x20},
		{"max length", 0, 0xFFFFFFFF},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := b.ReadBytes(tt.ptr, tt.length)
			require.Error(t, err)
			assert.ErrorIs(t, err, errors.ErrOutOfBounds)
		})
	}

	// Boundary read of the last byte succeeds and nothing was modified.
	_, err := b.ReadBytes(63, 1)
	require.NoError(t, err)
	assert.Equal(t, make([]byte, 64), mem.buf)
}

func TestBridge_ReadBytes_Empty(t *testing.T) {
	b := New(newSliceMemory(16))
	got, err := b.ReadBytes(16, 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestBridge_ReadCString(t *testing.T) {
	mem := newSliceMemory(32)
	copy(mem.buf[4:], "hello\x00world")
	b := New(mem)

	got, err := b.ReadCString(4)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), got)

	// Empty string: pointer directly at a terminator.
	got, err = b.ReadCString(9)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestBridge_ReadCString_NoTerminator(t *testing.T) {
	mem := newSliceMemory(8)
	copy(mem.buf, "abcdefgh")
	b := New(mem)

	_, err := b.ReadCString(2)
	assert.ErrorIs(t, err, errors.ErrOutOfBounds)

	_, err = b.ReadCString(8)
	assert.ErrorIs(t, err, errors.ErrOutOfBounds)
}

func TestBridge_WriteBytes(t *testing.T) {
	mem := newSliceMemory(16)
	b := New(mem)

	require.NoError(t, b.WriteBytes(2, []byte("abc")))
	assert.Equal(t, []byte("abc"), mem.buf[2:5])

	err := b.WriteBytes(14, []byte("abc"))
	assert.ErrorIs(t, err, errors.ErrOutOfBounds)
	assert.Equal(t, []byte{0, 0}, mem.buf[14:], "failed write must not touch memory")

	require.NoError(t, b.WriteBytes(16, nil))
	assert.ErrorIs(t, b.WriteBytes(17, nil), errors.ErrOutOfBounds)
}

func TestBridge_WriteTerminator(t *testing.T) {
	mem := newSliceMemory(4)
	for i := range mem.buf {
		mem.buf[i] = 0xAA
	}
	b := New(mem)

	require.NoError(t, b.WriteTerminator(3))
	assert.Equal(t, byte(0), mem.buf[3])
	assert.ErrorIs(t, b.WriteTerminator(4), errors.ErrOutOfBounds)
}

func TestBridge_CStringRoundTrip(t *testing.T) {
	inputs := []string{"", "Hello ", "World", "héllo wörld", "日本語", "emoji 🎉", strings.Repeat("x", 1000)}

	for _, s := range inputs {
		mem := newSliceMemory(4096)
		b := New(mem)

		// Allocate len(s)+1 bytes at 100, write bytes then terminator.
		require.NoError(t, b.WriteBytes(100, []byte(s)))
		require.NoError(t, b.WriteTerminator(100+uint32(len(s))))

		got, err := b.ReadNullTerminatedString(100)
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
}

func TestBridge_ReadString(t *testing.T) {
	mem := newSliceMemory(32)
	copy(mem.buf, "Hello from the Client!")
	b := New(mem)

	got, err := b.ReadString(0, 22)
	require.NoError(t, err)
	assert.Equal(t, "Hello from the Client!", got)

	got, err = b.Text(StringRef{Ptr: 6, Len: 4})
	require.NoError(t, err)
	assert.Equal(t, "from", got)
}

func TestBridge_InvalidUTF8(t *testing.T) {
	mem := newSliceMemory(16)
	copy(mem.buf, []byte{0xff, 0xfe, 'a', 0})
	b := New(mem)

	_, err := b.ReadString(0, 3)
	assert.ErrorIs(t, err, errors.ErrEncoding)

	_, err = b.ReadNullTerminatedString(0)
	assert.ErrorIs(t, err, errors.ErrEncoding)

	// Raw byte access does not decode.
	raw, err := b.ReadCString(0)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xff, 0xfe, 'a'}, raw)
}

func TestBridge_WriteString(t *testing.T) {
	mem := newSliceMemory(16)
	b := New(mem)

	ref, err := b.WriteString(3, "héllo")
	require.NoError(t, err)
	assert.Equal(t, StringRef{Ptr: 3, Len: 6}, ref)
	assert.Equal(t, uint64(9), ref.End())

	_, err = b.WriteString(0, string([]byte{0xc3}))
	assert.ErrorIs(t, err, errors.ErrEncoding)
}

func TestBridge_WriteCString(t *testing.T) {
	mem := newSliceMemory(8)
	for i := range mem.buf {
		mem.buf[i] = 0xAA
	}
	b := New(mem)

	require.NoError(t, b.WriteCString(1, "abc"))
	assert.Equal(t, []byte{0xAA, 'a', 'b', 'c', 0, 0xAA, 0xAA, 0xAA}, mem.buf)

	// Needs len+1 bytes: "abcd" at 4 ends exactly at 9 > 8.
	assert.ErrorIs(t, b.WriteCString(4, "abcd"), errors.ErrOutOfBounds)
	assert.Equal(t, byte(0xAA), mem.buf[5], "rejected write must not be partial")

	assert.ErrorIs(t, b.WriteCString(0, "a\x00b"), errors.ErrEncoding)
}

func TestValidateCString(t *testing.T) {
	assert.NoError(t, ValidateCString("plain"))
	assert.NoError(t, ValidateCString(""))
	assert.ErrorIs(t, ValidateCString("nul\x00inside"), errors.ErrEncoding)
	assert.ErrorIs(t, ValidateCString(string([]byte{0x80})), errors.ErrEncoding)
}
