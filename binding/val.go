package binding

import (
	"fmt"
	"strconv"

	"github.com/tetratelabs/wazero/api"
)

// Val is a primitive wasm value: its kind and raw stack encoding.
type Val struct {
	Kind api.ValueType
	Bits uint64
}

// I32 returns a signed i32 value.
func I32(v int32) Val {
	return Val{Kind: api.ValueTypeI32, Bits: api.EncodeI32(v)}
}

// U32 returns an i32 value from its unsigned interpretation (pointers, lengths).
func U32(v uint32) Val {
	return Val{Kind: api.ValueTypeI32, Bits: api.EncodeU32(v)}
}

// I64 returns an i64 value.
func I64(v int64) Val {
	return Val{Kind: api.ValueTypeI64, Bits: api.EncodeI64(v)}
}

// F32 returns an f32 value.
func F32(v float32) Val {
	return Val{Kind: api.ValueTypeF32, Bits: api.EncodeF32(v)}
}

// F64 returns an f64 value.
func F64(v float64) Val {
	return Val{Kind: api.ValueTypeF64, Bits: api.EncodeF64(v)}
}

// I32 returns the value as a signed 32-bit integer.
func (v Val) I32() int32 { return api.DecodeI32(v.Bits) }

// U32 returns the value as an unsigned 32-bit integer.
func (v Val) U32() uint32 { return api.DecodeU32(v.Bits) }

// I64 returns the value as a signed 64-bit integer.
func (v Val) I64() int64 { return int64(v.Bits) }

// F32 returns the value as a 32-bit float.
func (v Val) F32() float32 { return api.DecodeF32(v.Bits) }

// F64 returns the value as a 64-bit float.
func (v Val) F64() float64 { return api.DecodeF64(v.Bits) }

func (v Val) String() string {
	switch v.Kind {
	case api.ValueTypeI32:
		return strconv.FormatInt(int64(v.I32()), 10) + ":i32"
	case api.ValueTypeI64:
		return strconv.FormatInt(v.I64(), 10) + ":i64"
	case api.ValueTypeF32:
		return strconv.FormatFloat(float64(v.F32()), 'g', -1, 32) + ":f32"
	case api.ValueTypeF64:
		return strconv.FormatFloat(v.F64(), 'g', -1, 64) + ":f64"
	}
	return fmt.Sprintf("%#x:%s", v.Bits, api.ValueTypeName(v.Kind))
}

// ParseVal parses text as a value of the given kind. Integers accept any
// base prefix understood by strconv; i32 also accepts the unsigned range.
func ParseVal(kind api.ValueType, text string) (Val, error) {
	switch kind {
	case api.ValueTypeI32:
		if n, err := strconv.ParseInt(text, 0, 32); err == nil {
			return I32(int32(n)), nil
		}
		n, err := strconv.ParseUint(text, 0, 32)
		if err != nil {
			return Val{}, err
		}
		return U32(uint32(n)), nil
	case api.ValueTypeI64:
		if n, err := strconv.ParseInt(text, 0, 64); err == nil {
			return I64(n), nil
		}
		n, err := strconv.ParseUint(text, 0, 64)
		if err != nil {
			return Val{}, err
		}
		return Val{Kind: api.ValueTypeI64, Bits: n}, nil
	case api.ValueTypeF32:
		f, err := strconv.ParseFloat(text, 32)
		if err != nil {
			return Val{}, err
		}
		return F32(float32(f)), nil
	case api.ValueTypeF64:
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return Val{}, err
		}
		return F64(f), nil
	}
	return Val{}, fmt.Errorf("unsupported value kind %s", api.ValueTypeName(kind))
}

func encodeVals(vals []Val) []uint64 {
	out := make([]uint64, len(vals))
	for i, v := range vals {
		out[i] = v.Bits
	}
	return out
}

func decodeVals(kinds []api.ValueType, raw []uint64) []Val {
	out := make([]Val, len(kinds))
	for i, k := range kinds {
		out[i] = Val{Kind: k, Bits: raw[i]}
	}
	return out
}
