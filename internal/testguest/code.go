package testguest

// Instruction opcodes used by the fixtures.
const (
	opUnreachable = 0x00
	opBlock       = 0x02
	opLoop        = 0x03
	opIf          = 0x04
	opEnd         = 0x0B
	opBr          = 0x0C
	opBrIf        = 0x0D
	opReturn      = 0x0F
	opCall        = 0x10
	opLocalGet    = 0x20
	opLocalSet    = 0x21
	opLocalTee    = 0x22
	opGlobalGet   = 0x23
	opGlobalSet   = 0x24
	opI32Load8U   = 0x2D
	opI32Store8   = 0x3A
	opMemorySize  = 0x3F
	opMemoryGrow  = 0x40
	opI32Const    = 0x41
	opI32Eqz      = 0x45
	opI32Eq       = 0x46
	opI32GtU      = 0x4B
	opI32Add      = 0x6A
	opI32Sub      = 0x6B
	opI32DivS     = 0x6D
	opI32And      = 0x71
	opI32Shl      = 0x74
	opI32ShrU     = 0x76
	opPrefixFC    = 0xFC
	opMemoryCopy  = 0x0A // 0xFC sub-opcode

	blockTypeEmpty = 0x40
)

// Code writes a function body. Each method appends one instruction and
// returns the receiver for chaining. The closing end is added on encode.
type Code struct {
	buf Buffer
}

func (c *Code) op(b ...byte) *Code {
	c.buf.AppendByte(b...)
	return c
}

func (c *Code) idx(opcode byte, i uint32) *Code {
	c.buf.AppendByte(opcode)
	c.buf.WriteU32(i)
	return c
}

func (c *Code) Unreachable() *Code { return c.op(opUnreachable) }
func (c *Code) Block() *Code       { return c.op(opBlock, blockTypeEmpty) }
func (c *Code) Loop() *Code        { return c.op(opLoop, blockTypeEmpty) }
func (c *Code) If() *Code          { return c.op(opIf, blockTypeEmpty) }
func (c *Code) End() *Code         { return c.op(opEnd) }
func (c *Code) Return() *Code      { return c.op(opReturn) }

func (c *Code) Br(depth uint32) *Code   { return c.idx(opBr, depth) }
func (c *Code) BrIf(depth uint32) *Code { return c.idx(opBrIf, depth) }
func (c *Code) Call(fn uint32) *Code    { return c.idx(opCall, fn) }

func (c *Code) LocalGet(i uint32) *Code  { return c.idx(opLocalGet, i) }
func (c *Code) LocalSet(i uint32) *Code  { return c.idx(opLocalSet, i) }
func (c *Code) LocalTee(i uint32) *Code  { return c.idx(opLocalTee, i) }
func (c *Code) GlobalGet(i uint32) *Code { return c.idx(opGlobalGet, i) }
func (c *Code) GlobalSet(i uint32) *Code { return c.idx(opGlobalSet, i) }

func (c *Code) I32Const(v int32) *Code {
	c.buf.AppendByte(opI32Const)
	c.buf.WriteI32(v)
	return c
}

// I32Load8U and I32Store8 use byte alignment and a zero offset.
func (c *Code) I32Load8U() *Code { return c.op(opI32Load8U, 0, 0) }
func (c *Code) I32Store8() *Code { return c.op(opI32Store8, 0, 0) }

func (c *Code) MemorySize() *Code { return c.op(opMemorySize, 0) }
func (c *Code) MemoryGrow() *Code { return c.op(opMemoryGrow, 0) }
func (c *Code) MemoryCopy() *Code { return c.op(opPrefixFC, opMemoryCopy, 0, 0) }

func (c *Code) I32Eqz() *Code  { return c.op(opI32Eqz) }
func (c *Code) I32Eq() *Code   { return c.op(opI32Eq) }
func (c *Code) I32GtU() *Code  { return c.op(opI32GtU) }
func (c *Code) I32Add() *Code  { return c.op(opI32Add) }
func (c *Code) I32Sub() *Code  { return c.op(opI32Sub) }
func (c *Code) I32DivS() *Code { return c.op(opI32DivS) }
func (c *Code) I32And() *Code  { return c.op(opI32And) }
func (c *Code) I32Shl() *Code  { return c.op(opI32Shl) }
func (c *Code) I32ShrU() *Code { return c.op(opI32ShrU) }

// Bytes returns the encoded instructions without the closing end.
func (c *Code) Bytes() []byte { return c.buf.Bytes }
