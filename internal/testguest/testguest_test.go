package testguest

import (
	"bytes"
	"context"
	"testing"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

func TestBuffer_LEB128(t *testing.T) {
	tests := []struct {
		name string
		fn   func(*Buffer)
		want []byte
	}{
		{"u32 zero", func(b *Buffer) { b.WriteU32(0) }, []byte{0x00}},
		{"u32 127", func(b *Buffer) { b.WriteU32(127) }, []byte{0x7F}},
		{"u32 128", func(b *Buffer) { b.WriteU32(128) }, []byte{0x80, 0x01}},
		{"u32 max", func(b *Buffer) { b.WriteU32(0xFFFFFFFF) }, []byte{0xFF, 0xFF, 0xFF, 0xFF, 0x0F}},
		{"i32 -1", func(b *Buffer) { b.WriteI32(-1) }, []byte{0x7F}},
		{"i32 63", func(b *Buffer) { b.WriteI32(63) }, []byte{0x3F}},
		{"i32 64", func(b *Buffer) { b.WriteI32(64) }, []byte{0xC0, 0x00}},
		{"i32 -8", func(b *Buffer) { b.WriteI32(-8) }, []byte{0x78}},
		{"name", func(b *Buffer) { b.WriteName("env") }, []byte{0x03, 'e', 'n', 'v'}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &Buffer{}
			tt.fn(b)
			if !bytes.Equal(b.Bytes, tt.want) {
				t.Errorf("got %x, want %x", b.Bytes, tt.want)
			}
		})
	}
}

func TestModule_EmptyEncodesHeader(t *testing.T) {
	got := (&Module{}).Encode()
	if !bytes.Equal(got, header) {
		t.Fatalf("got %x, want %x", got, header)
	}
}

func TestModule_ImportAfterFuncPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	m := &Module{}
	m.Func(nil, nil)
	m.Import("env", "late", nil, nil)
}

func TestModule_TypeDedup(t *testing.T) {
	m := &Module{}
	a := m.Func([]byte{I32}, []byte{I32})
	b := m.Func([]byte{I32}, []byte{I32})
	c := m.Func(nil, nil)
	if a.typeIdx != b.typeIdx {
		t.Errorf("identical signatures got types %d and %d", a.typeIdx, b.typeIdx)
	}
	if a.typeIdx == c.typeIdx {
		t.Error("distinct signatures share a type")
	}
	if len(m.types) != 2 {
		t.Errorf("types = %d, want 2", len(m.types))
	}
}

func compile(t *testing.T, r wazero.Runtime, bin []byte) wazero.CompiledModule {
	t.Helper()
	compiled, err := r.CompileModule(context.Background(), bin)
	if err != nil {
		t.Fatalf("compile fixture: %v", err)
	}
	return compiled
}

func TestBuild_Surface(t *testing.T) {
	ctx := context.Background()
	r := wazero.NewRuntime(ctx)
	defer r.Close(ctx)

	compiled := compile(t, r, Build())

	exports := compiled.ExportedFunctions()
	for _, name := range []string{"_start", "__say_hello", "__increment", "__concat", "malloc", "free"} {
		if _, ok := exports[name]; !ok {
			t.Errorf("missing export %q", name)
		}
	}
	if _, ok := compiled.ExportedMemories()["memory"]; !ok {
		t.Error("missing memory export")
	}

	var imports []string
	for _, def := range compiled.ImportedFunctions() {
		mod, name, _ := def.Import()
		imports = append(imports, mod+"."+name)
	}
	if len(imports) != 2 || imports[0] != "env.call_host" || imports[1] != "env.print" {
		t.Errorf("imports = %v", imports)
	}
}

func TestBuild_Options(t *testing.T) {
	ctx := context.Background()
	r := wazero.NewRuntime(ctx)
	defer r.Close(ctx)

	compiled := compile(t, r, Build(
		WithoutStart(),
		WithoutExport("__concat"),
		WithImport("env", "missing", []byte{I32}, nil),
	))
	exports := compiled.ExportedFunctions()
	if _, ok := exports["_start"]; ok {
		t.Error("_start should be omitted")
	}
	if _, ok := exports["__concat"]; ok {
		t.Error("__concat should be omitted")
	}
	if n := len(compiled.ImportedFunctions()); n != 3 {
		t.Errorf("imports = %d, want 3", n)
	}
}

// instantiate links the fixture against a recording env module.
func instantiate(t *testing.T, ctx context.Context, r wazero.Runtime, printed *[]string) api.Module {
	t.Helper()
	_, err := r.NewHostModuleBuilder("env").
		NewFunctionBuilder().
		WithFunc(func() {}).
		Export("call_host").
		NewFunctionBuilder().
		WithFunc(func(_ context.Context, m api.Module, ptr, n uint32) {
			b, _ := m.Memory().Read(ptr, n)
			*printed = append(*printed, string(b))
		}).
		Export("print").
		Instantiate(ctx)
	if err != nil {
		t.Fatalf("instantiate env: %v", err)
	}
	mod, err := r.InstantiateModule(ctx, compile(t, r, Build()), wazero.NewModuleConfig().WithStartFunctions())
	if err != nil {
		t.Fatalf("instantiate fixture: %v", err)
	}
	return mod
}

func TestBuild_Behavior(t *testing.T) {
	ctx := context.Background()
	r := wazero.NewRuntime(ctx)
	defer r.Close(ctx)

	var printed []string
	mod := instantiate(t, ctx, r, &printed)
	live := mod.ExportedGlobal("live_allocs")

	res, err := mod.ExportedFunction("__increment").Call(ctx, api.EncodeI32(41))
	if err != nil || api.DecodeI32(res[0]) != 42 {
		t.Fatalf("__increment(41) = %v, %v", res, err)
	}

	if _, err := mod.ExportedFunction("__say_hello").Call(ctx); err != nil {
		t.Fatalf("__say_hello: %v", err)
	}
	if len(printed) != 1 || printed[0] != Greeting {
		t.Fatalf("printed = %q", printed)
	}
	// print does not free in this stub, so the allocation is still live.
	if got := api.DecodeI32(live.Get()); got != 1 {
		t.Errorf("live_allocs = %d, want 1", got)
	}

	malloc := mod.ExportedFunction("malloc")
	alloc := func(s string) uint64 {
		res, err := malloc.Call(ctx, uint64(len(s)+1))
		if err != nil {
			t.Fatalf("malloc: %v", err)
		}
		if res[0]%8 != 0 || res[0] < HeapBase {
			t.Fatalf("malloc returned %d", res[0])
		}
		mod.Memory().Write(uint32(res[0]), append([]byte(s), 0))
		return res[0]
	}
	l, rr := alloc("Hello "), alloc("World")

	res, err = mod.ExportedFunction("__concat").Call(ctx, l, rr)
	if err != nil {
		t.Fatalf("__concat: %v", err)
	}
	out, _ := mod.Memory().Read(uint32(res[0]), 12)
	if string(out) != "Hello World\x00" {
		t.Errorf("__concat result = %q", out)
	}
	// Both inputs freed, result live: 1 (greeting) + 1.
	if got := api.DecodeI32(live.Get()); got != 2 {
		t.Errorf("live_allocs = %d, want 2", got)
	}

	res, err = malloc.Call(ctx, uint64(MaxAlloc)+1)
	if err != nil || res[0] != 0 {
		t.Errorf("oversized malloc = %v, %v; want 0", res, err)
	}

	// Growth past the initial page.
	res, err = malloc.Call(ctx, 3*65536)
	if err != nil || res[0] == 0 {
		t.Fatalf("large malloc = %v, %v", res, err)
	}
	if size := mod.Memory().Size(); size < uint32(res[0])+3*65536 {
		t.Errorf("memory size %d does not cover allocation at %d", size, res[0])
	}

	if _, err := mod.ExportedFunction("__trap").Call(ctx); err == nil {
		t.Error("__trap should fail")
	}
}
