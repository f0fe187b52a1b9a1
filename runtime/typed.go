package runtime

import (
	"context"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/wasm-bridge/binding"
	"github.com/wippyai/wasm-bridge/errors"
)

// Value is a Go type with a direct wasm value kind. int32 and uint32 both
// map to i32, int64 and uint64 to i64.
type Value interface {
	int32 | uint32 | int64 | uint64 | float32 | float64
}

func kindOf[T Value]() api.ValueType {
	var zero T
	switch any(zero).(type) {
	case int32, uint32:
		return api.ValueTypeI32
	case int64, uint64:
		return api.ValueTypeI64
	case float32:
		return api.ValueTypeF32
	default:
		return api.ValueTypeF64
	}
}

func toVal[T Value](v T) binding.Val {
	switch x := any(v).(type) {
	case int32:
		return binding.I32(x)
	case uint32:
		return binding.U32(x)
	case int64:
		return binding.I64(x)
	case uint64:
		return binding.Val{Kind: api.ValueTypeI64, Bits: x}
	case float32:
		return binding.F32(x)
	default:
		return binding.F64(any(v).(float64))
	}
}

func fromVal[T Value](v binding.Val) T {
	var out T
	switch p := any(&out).(type) {
	case *int32:
		*p = v.I32()
	case *uint32:
		*p = v.U32()
	case *int64:
		*p = v.I64()
	case *uint64:
		*p = v.Bits
	case *float32:
		*p = v.F32()
	case *float64:
		*p = v.F64()
	}
	return out
}

func single[R Value](name string, res []binding.Val) (R, error) {
	var zero R
	if len(res) != 1 {
		// Only a clean guest exit returns no results from a typed export.
		return zero, errors.InvalidState(errors.PhaseCall, "instance completed during "+name)
	}
	return fromVal[R](res[0]), nil
}

// Action binds a () -> () export.
func Action(inst *Instance, name string) (func(context.Context) error, error) {
	exp, err := inst.Export(name, binding.Signature{})
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context) error {
		_, err := exp.Call(ctx)
		return err
	}, nil
}

// Proc1 binds a (P) -> () export.
func Proc1[P Value](inst *Instance, name string) (func(context.Context, P) error, error) {
	exp, err := inst.Export(name, binding.Sig(binding.Params(kindOf[P]())))
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context, p P) error {
		_, err := exp.Call(ctx, toVal(p))
		return err
	}, nil
}

// Func1 binds a (P) -> (R) export.
func Func1[P, R Value](inst *Instance, name string) (func(context.Context, P) (R, error), error) {
	exp, err := inst.Export(name, binding.Sig(binding.Params(kindOf[P]()), kindOf[R]()))
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context, p P) (R, error) {
		res, err := exp.Call(ctx, toVal(p))
		if err != nil {
			var zero R
			return zero, err
		}
		return single[R](name, res)
	}, nil
}

// Func2 binds a (P1, P2) -> (R) export.
func Func2[P1, P2, R Value](inst *Instance, name string) (func(context.Context, P1, P2) (R, error), error) {
	exp, err := inst.Export(name, binding.Sig(binding.Params(kindOf[P1](), kindOf[P2]()), kindOf[R]()))
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context, p1 P1, p2 P2) (R, error) {
		res, err := exp.Call(ctx, toVal(p1), toVal(p2))
		if err != nil {
			var zero R
			return zero, err
		}
		return single[R](name, res)
	}, nil
}
