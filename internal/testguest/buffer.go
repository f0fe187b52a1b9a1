package testguest

// Buffer accumulates encoded bytes.
type Buffer struct {
	Bytes []byte
}

func (b *Buffer) AppendByte(v ...byte) {
	b.Bytes = append(b.Bytes, v...)
}

// WriteU32 writes unsigned LEB128 encoding.
func (b *Buffer) WriteU32(v uint32) {
	for {
		byt := byte(v & 0x7F)
		v >>= 7
		if v != 0 {
			byt |= 0x80
		}
		b.AppendByte(byt)
		if v == 0 {
			break
		}
	}
}

// WriteI32 writes signed LEB128 encoding.
func (b *Buffer) WriteI32(v int32) {
	for {
		byt := byte(v & 0x7F)
		v >>= 7
		if (v == 0 && byt&0x40 == 0) || (v == -1 && byt&0x40 != 0) {
			b.AppendByte(byt)
			break
		}
		b.AppendByte(byt | 0x80)
	}
}

// WriteName writes a length-prefixed UTF-8 name.
func (b *Buffer) WriteName(s string) {
	b.WriteU32(uint32(len(s)))
	b.Bytes = append(b.Bytes, s...)
}

// WriteVec writes a length-prefixed byte vector.
func (b *Buffer) WriteVec(v []byte) {
	b.WriteU32(uint32(len(v)))
	b.Bytes = append(b.Bytes, v...)
}

func writeSection(buf *Buffer, id byte, content *Buffer) {
	buf.AppendByte(id)
	buf.WriteVec(content.Bytes)
}
