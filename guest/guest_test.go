package guest_test

import (
	"bytes"
	"context"
	stderrors "errors"
	"strings"
	"testing"

	"github.com/wippyai/wasm-bridge/errors"
	"github.com/wippyai/wasm-bridge/guest"
	"github.com/wippyai/wasm-bridge/hostenv"
	"github.com/wippyai/wasm-bridge/internal/testguest"
	"github.com/wippyai/wasm-bridge/runtime"
)

func newRuntime(t *testing.T, opts ...runtime.Option) (*runtime.Runtime, *bytes.Buffer) {
	t.Helper()
	ctx := context.Background()
	rt, err := runtime.New(ctx, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { rt.Close(ctx) })

	out := &bytes.Buffer{}
	if err := hostenv.New(hostenv.WithOutput(out)).Register(rt); err != nil {
		t.Fatalf("Register: %v", err)
	}
	return rt, out
}

func compile(t *testing.T, rt *runtime.Runtime, opts ...testguest.Option) *runtime.Module {
	t.Helper()
	mod, err := rt.Compile(context.Background(), testguest.Build(opts...))
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	return mod
}

func newClient(t *testing.T) (*guest.Client, *bytes.Buffer) {
	t.Helper()
	ctx := context.Background()
	rt, out := newRuntime(t)
	inst, err := compile(t, rt).Instantiate(ctx)
	if err != nil {
		t.Fatalf("Instantiate: %v", err)
	}
	t.Cleanup(func() { inst.Close(ctx) })

	c, err := guest.NewClient(inst)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c, out
}

func liveAllocs(t *testing.T, c *guest.Client) int32 {
	t.Helper()
	v, err := c.Instance().Global("live_allocs")
	if err != nil {
		t.Fatalf("Global: %v", err)
	}
	return v.I32()
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		rtOpts  []runtime.Option
		opts    []testguest.Option
		problem string
	}{
		{"conforming", nil, nil, ""},
		{"missing concat", nil, []testguest.Option{testguest.WithoutExport("__concat")}, "missing export __concat"},
		{"missing start", nil, []testguest.Option{testguest.WithoutStart()}, ""},
		{"default start", []runtime.Option{runtime.WithStartFunction(guest.ExportStart)}, nil, ""},
		{"missing configured start", []runtime.Option{runtime.WithStartFunction("boot")}, nil, ""},
		{"start disabled", []runtime.Option{runtime.WithStartFunction("")}, nil, ""},
		{"custom start", []runtime.Option{runtime.WithStartFunction("__say_hello")}, nil, ""},
		{
			"start with parameters",
			[]runtime.Option{runtime.WithStartFunction("__increment")},
			nil,
			"start export __increment: want () -> (), got (i32) -> (i32)",
		},
		{"missing memory", nil, []testguest.Option{testguest.WithoutExport("memory")}, "missing memory export memory"},
		{
			"unknown env import",
			nil,
			[]testguest.Option{testguest.WithImport("env", "log", []byte{testguest.I32}, nil)},
			"unknown import env.log",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rt, _ := newRuntime(t, tc.rtOpts...)
			err := guest.Validate(compile(t, rt, tc.opts...))
			if tc.problem == "" {
				if err != nil {
					t.Fatalf("Validate: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected contract error")
			}
			if !stderrors.Is(err, errors.ErrLink) {
				t.Errorf("error %v should match ErrLink", err)
			}
			var ce *guest.ContractError
			if !stderrors.As(err, &ce) {
				t.Fatalf("error %T is not a ContractError", err)
			}
			found := false
			for _, p := range ce.Problems {
				if p == tc.problem {
					found = true
				}
			}
			if !found {
				t.Errorf("problems %q do not contain %q", ce.Problems, tc.problem)
			}
		})
	}
}

func TestClient_SayHello(t *testing.T) {
	c, out := newClient(t)
	ctx := context.Background()

	out.Reset()
	for i := 0; i < 10; i++ {
		if err := c.SayHello(ctx); err != nil {
			t.Fatalf("SayHello: %v", err)
		}
	}
	if got := strings.Count(out.String(), testguest.Greeting+"\n"); got != 10 {
		t.Errorf("greeting printed %d times, want 10", got)
	}
	if n := liveAllocs(t, c); n != 0 {
		t.Errorf("live allocations = %d, want 0", n)
	}
}

func TestClient_Increment(t *testing.T) {
	c, _ := newClient(t)
	ctx := context.Background()

	tests := []struct {
		in, want int32
	}{
		{1, 2},
		{0, 1},
		{-1, 0},
		{2147483647, -2147483648},
	}
	for _, tc := range tests {
		got, err := c.Increment(ctx, tc.in)
		if err != nil {
			t.Fatalf("Increment(%d): %v", tc.in, err)
		}
		if got != tc.want {
			t.Errorf("Increment(%d) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestClient_Concat(t *testing.T) {
	c, _ := newClient(t)
	ctx := context.Background()

	tests := []struct {
		left, right, want string
	}{
		{"Hello ", "World", "Hello World"},
		{"", "", ""},
		{"", "right", "right"},
		{"héllo ", "wörld", "héllo wörld"},
	}
	for _, tc := range tests {
		got, err := c.Concat(ctx, tc.left, tc.right)
		if err != nil {
			t.Fatalf("Concat(%q, %q): %v", tc.left, tc.right, err)
		}
		if got != tc.want {
			t.Errorf("Concat(%q, %q) = %q, want %q", tc.left, tc.right, got, tc.want)
		}
	}
	if n := liveAllocs(t, c); n != 0 {
		t.Errorf("live allocations = %d, want 0", n)
	}
}

func TestClient_ConcatRejectsNUL(t *testing.T) {
	c, _ := newClient(t)

	_, err := c.Concat(context.Background(), "a\x00b", "c")
	if !stderrors.Is(err, errors.ErrEncoding) {
		t.Fatalf("error = %v, want encoding error", err)
	}
	if n := liveAllocs(t, c); n != 0 {
		t.Errorf("live allocations = %d, want 0", n)
	}

	_, err = c.Concat(context.Background(), "a", "b\x00")
	if !stderrors.Is(err, errors.ErrEncoding) {
		t.Fatalf("error = %v, want encoding error", err)
	}
	if n := liveAllocs(t, c); n != 0 {
		t.Errorf("left input leaked: live allocations = %d", n)
	}
}

func TestNewClient_RequiresAllocator(t *testing.T) {
	rt, _ := newRuntime(t)
	ctx := context.Background()

	inst, err := compile(t, rt, testguest.WithoutExport("free")).Instantiate(ctx)
	if err != nil {
		t.Fatalf("Instantiate: %v", err)
	}
	defer inst.Close(ctx)

	if _, err := guest.NewClient(inst); !stderrors.Is(err, errors.ErrExportNotFound) {
		t.Fatalf("NewClient error = %v, want export not found", err)
	}
}

func TestNewClient_MissingExport(t *testing.T) {
	rt, _ := newRuntime(t)
	ctx := context.Background()

	inst, err := compile(t, rt, testguest.WithoutExport("__increment")).Instantiate(ctx)
	if err != nil {
		t.Fatalf("Instantiate: %v", err)
	}
	defer inst.Close(ctx)

	if _, err := guest.NewClient(inst); !stderrors.Is(err, errors.ErrExportNotFound) {
		t.Fatalf("NewClient error = %v, want export not found", err)
	}
}
