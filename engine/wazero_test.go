package engine

import (
	"context"
	stderrors "errors"
	"sort"
	"strings"
	"testing"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/wasm-bridge/binding"
	"github.com/wippyai/wasm-bridge/errors"
	"github.com/wippyai/wasm-bridge/internal/testguest"
)

func noop(context.Context, binding.Caller, []binding.Val) ([]binding.Val, error) {
	return nil, nil
}

func envTable(t *testing.T) *binding.Table {
	t.Helper()
	table := binding.NewTable(nil)
	if err := table.Define("env", "call_host", binding.Signature{}, noop); err != nil {
		t.Fatal(err)
	}
	i32 := api.ValueTypeI32
	if err := table.Define("env", "print", binding.Sig(binding.Params(i32, i32)), noop); err != nil {
		t.Fatal(err)
	}
	return table
}

func TestNewWazeroEngineWithConfig(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		cfg  *Config
		name string
	}{
		{nil, "nil config"},
		{&Config{}, "default config"},
		{&Config{MemoryLimitPages: 256}, "16MB limit"},
		{&Config{Interpreter: true}, "interpreter"},
		{&Config{WASI: true, CloseOnContextDone: true}, "wasi"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			engine, err := NewWazeroEngineWithConfig(ctx, tc.cfg)
			if err != nil {
				t.Fatalf("NewWazeroEngineWithConfig failed: %v", err)
			}
			defer engine.Close(ctx)

			if engine.Runtime() == nil {
				t.Error("engine runtime should not be nil")
			}
			wantWASI := tc.cfg != nil && tc.cfg.WASI
			if got := engine.Provides(WASINamespace); got != wantWASI {
				t.Errorf("Provides(wasi) = %v, want %v", got, wantWASI)
			}
			if engine.Provides("env") {
				t.Error("engine must not provide env")
			}
		})
	}
}

func TestWazeroEngine_InitWASI_Idempotent(t *testing.T) {
	ctx := context.Background()
	engine, err := NewWazeroEngineWithConfig(ctx, &Config{WASI: true})
	if err != nil {
		t.Fatal(err)
	}
	defer engine.Close(ctx)

	for i := 0; i < 3; i++ {
		if err := engine.InitWASI(ctx); err != nil {
			t.Fatalf("InitWASI #%d: %v", i, err)
		}
	}
	if engine.Runtime().Module(WASINamespace) == nil {
		t.Error("WASI module not instantiated")
	}
}

func TestLoadModule_Invalid(t *testing.T) {
	ctx := context.Background()
	engine, err := NewWazeroEngine(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer engine.Close(ctx)

	tests := []struct {
		name  string
		input []byte
	}{
		{"empty", nil},
		{"garbage", []byte("not wasm at all")},
		{"truncated", testguest.Build()[:20]},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := engine.LoadModule(ctx, tc.input)
			if !stderrors.Is(err, errors.ErrCompile) {
				t.Fatalf("expected compile error, got %v", err)
			}
		})
	}
}

func TestWazeroModule_Surface(t *testing.T) {
	ctx := context.Background()
	engine, err := NewWazeroEngine(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer engine.Close(ctx)

	mod, err := engine.LoadModule(ctx, testguest.Build())
	if err != nil {
		t.Fatalf("LoadModule: %v", err)
	}
	defer mod.Close(ctx)

	names := mod.ExportNames()
	if !sort.StringsAreSorted(names) {
		t.Fatalf("exports not sorted: %v", names)
	}
	if len(names) != 10 {
		t.Errorf("exports = %d, want 10", len(names))
	}
	if def := mod.ExportedFunction("__concat"); def == nil {
		t.Fatal("__concat missing")
	} else if got := binding.SignatureOf(def).String(); got != "(i32, i32) -> (i32)" {
		t.Errorf("__concat signature = %s", got)
	}
	if mems := mod.ExportedMemories(); len(mems) != 1 || mems[0] != "memory" {
		t.Errorf("memories = %v", mems)
	}
	if n := len(mod.ImportedFunctions()); n != 2 {
		t.Errorf("imports = %d, want 2", n)
	}
}

func TestWazeroModule_CheckImports(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		cfg     *Config
		opts    []testguest.Option
		wantErr []string
	}{
		{name: "satisfied"},
		{
			name:    "missing",
			opts:    []testguest.Option{testguest.WithImport("env", "missing", []byte{testguest.I32}, nil)},
			wantErr: []string{"missing (not defined)"},
		},
		{
			name:    "wasi without engine support",
			opts:    []testguest.Option{testguest.WithExitingStart(0)},
			wantErr: []string{WASINamespace, "proc_exit"},
		},
		{
			name: "wasi provided",
			cfg:  &Config{WASI: true},
			opts: []testguest.Option{testguest.WithExitingStart(0)},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			engine, err := NewWazeroEngineWithConfig(ctx, tc.cfg)
			if err != nil {
				t.Fatal(err)
			}
			defer engine.Close(ctx)

			mod, err := engine.LoadModule(ctx, testguest.Build(tc.opts...))
			if err != nil {
				t.Fatal(err)
			}
			err = mod.CheckImports(envTable(t))
			if len(tc.wantErr) == 0 {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !stderrors.Is(err, errors.ErrLink) {
				t.Fatalf("expected link error, got %v", err)
			}
			for _, want := range tc.wantErr {
				if !strings.Contains(err.Error(), want) {
					t.Errorf("error %q does not mention %q", err, want)
				}
			}
		})
	}
}

func TestWazeroModule_Instantiate(t *testing.T) {
	ctx := context.Background()
	engine, err := NewWazeroEngine(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer engine.Close(ctx)

	if err := envTable(t).Instantiate(ctx, engine.Runtime()); err != nil {
		t.Fatal(err)
	}
	mod, err := engine.LoadModule(ctx, testguest.Build(testguest.WithTrappingStart()))
	if err != nil {
		t.Fatal(err)
	}

	// Two anonymous instances; neither runs the trapping start function.
	for i := 0; i < 2; i++ {
		inst, err := mod.Instantiate(ctx)
		if err != nil {
			t.Fatalf("Instantiate #%d: %v", i, err)
		}
		res, err := inst.ExportedFunction("__increment").Call(ctx, api.EncodeI32(1))
		if err != nil || api.DecodeI32(res[0]) != 2 {
			t.Errorf("__increment(1) = %v, %v", res, err)
		}
		inst.Close(ctx)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected Outcome
	}{
		{"nil error", nil, OutcomeNone},
		{"context canceled", context.Canceled, OutcomeCanceled},
		{"deadline exceeded", context.DeadlineExceeded, OutcomeTimeout},
		{"wrapped canceled", stderrors.Join(stderrors.New("wrap"), context.Canceled), OutcomeCanceled},
		{"generic error", stderrors.New("unreachable"), OutcomeTrap},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, _ := Classify(tc.err)
			if got != tc.expected {
				t.Errorf("Classify(%v) = %v, want %v", tc.err, got, tc.expected)
			}
		})
	}
}

func TestClassify_Exit(t *testing.T) {
	ctx := context.Background()
	engine, err := NewWazeroEngineWithConfig(ctx, &Config{WASI: true})
	if err != nil {
		t.Fatal(err)
	}
	defer engine.Close(ctx)

	if err := envTable(t).Instantiate(ctx, engine.Runtime()); err != nil {
		t.Fatal(err)
	}

	for _, code := range []int32{0, 3} {
		mod, err := engine.LoadModule(ctx, testguest.Build(testguest.WithExitingStart(code)))
		if err != nil {
			t.Fatal(err)
		}
		inst, err := mod.Instantiate(ctx)
		if err != nil {
			t.Fatal(err)
		}
		_, err = inst.ExportedFunction("_start").Call(ctx)
		outcome, got := Classify(err)
		if outcome != OutcomeExit || got != uint32(code) {
			t.Errorf("exit %d: Classify = %v, %d", code, outcome, got)
		}
		if IsCleanExit(err) != (code == 0) {
			t.Errorf("exit %d: IsCleanExit = %v", code, IsCleanExit(err))
		}
	}
}
