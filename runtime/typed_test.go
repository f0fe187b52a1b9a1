package runtime

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/wasm-bridge/binding"
	"github.com/wippyai/wasm-bridge/errors"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		got  api.ValueType
		want api.ValueType
	}{
		{"int32", kindOf[int32](), api.ValueTypeI32},
		{"uint32", kindOf[uint32](), api.ValueTypeI32},
		{"int64", kindOf[int64](), api.ValueTypeI64},
		{"uint64", kindOf[uint64](), api.ValueTypeI64},
		{"float32", kindOf[float32](), api.ValueTypeF32},
		{"float64", kindOf[float64](), api.ValueTypeF64},
	}
	for _, tc := range tests {
		if tc.got != tc.want {
			t.Errorf("kindOf[%s] = %s, want %s", tc.name, api.ValueTypeName(tc.got), api.ValueTypeName(tc.want))
		}
	}
}

func TestValConversions(t *testing.T) {
	if got := fromVal[int32](toVal(int32(-7))); got != -7 {
		t.Errorf("int32 round trip = %d", got)
	}
	if got := fromVal[uint32](toVal(uint32(0xFFFFFFFF))); got != 0xFFFFFFFF {
		t.Errorf("uint32 round trip = %d", got)
	}
	if got := fromVal[uint64](toVal(uint64(1 << 63))); got != 1<<63 {
		t.Errorf("uint64 round trip = %d", got)
	}
	if got := fromVal[float64](toVal(2.5)); got != 2.5 {
		t.Errorf("float64 round trip = %v", got)
	}
	if got := fromVal[float32](toVal(float32(0.25))); got != 0.25 {
		t.Errorf("float32 round trip = %v", got)
	}
}

func TestFunc1(t *testing.T) {
	ctx := context.Background()
	inst := instantiate(t, newRuntime(t, &testEnv{}))

	inc, err := Func1[int32, int32](inst, "__increment")
	if err != nil {
		t.Fatal(err)
	}
	n, err := inc(ctx, 41)
	if err != nil || n != 42 {
		t.Errorf("inc(41) = %d, %v", n, err)
	}

	if _, err := Func1[int64, int32](inst, "__increment"); !stderrors.Is(err, errors.ErrSignatureMismatch) {
		t.Errorf("expected signature mismatch, got %v", err)
	}
	if _, err := Func1[int32, int32](inst, "__missing"); !stderrors.Is(err, errors.ErrExportNotFound) {
		t.Errorf("expected export not found, got %v", err)
	}
}

func TestFunc2(t *testing.T) {
	ctx := context.Background()
	inst := instantiate(t, newRuntime(t, &testEnv{}))

	div, err := Func2[int32, int32, int32](inst, "__divide")
	if err != nil {
		t.Fatal(err)
	}
	q, err := div(ctx, -9, 3)
	if err != nil || q != -3 {
		t.Errorf("div(-9, 3) = %d, %v", q, err)
	}

	_, err = div(ctx, 1, 0)
	if !stderrors.Is(err, errors.ErrTrap) {
		t.Fatalf("expected trap, got %v", err)
	}
	if _, err := div(ctx, 4, 2); !stderrors.Is(err, errors.ErrInvalidState) {
		t.Errorf("call after trap: %v", err)
	}
}

func TestActionAndProc1(t *testing.T) {
	ctx := context.Background()
	env := &testEnv{}
	inst := instantiate(t, newRuntime(t, env))

	hello, err := Action(inst, "__say_hello")
	if err != nil {
		t.Fatal(err)
	}
	if err := hello(ctx); err != nil {
		t.Fatal(err)
	}
	if len(env.printed) != 1 {
		t.Errorf("printed %d lines", len(env.printed))
	}

	free, err := Proc1[uint32](inst, "free")
	if err != nil {
		t.Fatal(err)
	}
	buf, err := inst.Allocator().Alloc(ctx, 4)
	if err != nil {
		t.Fatal(err)
	}
	ptr, err := buf.Transfer()
	if err != nil {
		t.Fatal(err)
	}
	if err := free(ctx, ptr); err != nil {
		t.Fatal(err)
	}
	if n := liveAllocs(t, inst); n != 0 {
		t.Errorf("live allocations = %d", n)
	}

	if _, err := Action(inst, "__increment"); !stderrors.Is(err, errors.ErrSignatureMismatch) {
		t.Errorf("expected signature mismatch, got %v", err)
	}
}

func TestExport_Handle(t *testing.T) {
	ctx := context.Background()
	inst := instantiate(t, newRuntime(t, &testEnv{}))

	sig := binding.Sig(binding.Params(i32), i32)
	exp, err := inst.Export("__increment", sig)
	if err != nil {
		t.Fatal(err)
	}
	if exp.Name() != "__increment" || !exp.Signature().Equal(sig) {
		t.Errorf("handle = %s %s", exp.Name(), exp.Signature())
	}
	res, err := exp.Call(ctx, binding.I32(1))
	if err != nil || res[0].I32() != 2 {
		t.Errorf("Call = %v, %v", res, err)
	}
}
