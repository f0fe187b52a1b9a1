package testguest

// Greeting is the text __say_hello passes to env.print.
const Greeting = "Hello from the Client!"

// Memory layout of the fixture guest.
const (
	GreetingOffset = 16
	InvalidOffset  = 64
	HeapBase       = 1024

	// MaxAlloc is the largest size malloc accepts; larger requests return 0.
	MaxAlloc = 0x40000000
)

// InvalidText is stored at InvalidOffset and is not valid UTF-8.
var InvalidText = []byte{0xFF, 0xFE}

type extraImport struct {
	module  string
	name    string
	params  []byte
	results []byte
}

type config struct {
	skip       map[string]bool
	extra      []extraImport
	start      bool
	startTraps bool
	exitCode   *int32
}

// Option customizes the fixture guest.
type Option func(*config)

// WithoutStart omits the _start export.
func WithoutStart() Option {
	return func(c *config) { c.start = false }
}

// WithTrappingStart makes _start execute unreachable.
func WithTrappingStart() Option {
	return func(c *config) { c.startTraps = true }
}

// WithExitingStart makes _start call wasi_snapshot_preview1.proc_exit(code)
// after env.call_host.
func WithExitingStart(code int32) Option {
	return func(c *config) { c.exitCode = &code }
}

// WithImport adds a function import after the env contract imports.
func WithImport(module, name string, params, results []byte) Option {
	return func(c *config) {
		c.extra = append(c.extra, extraImport{module: module, name: name, params: params, results: results})
	}
}

// WithoutExport drops the named export from the export section.
func WithoutExport(name string) Option {
	return func(c *config) { c.skip[name] = true }
}

// Build assembles the fixture guest.
func Build(opts ...Option) []byte {
	cfg := &config{start: true, skip: map[string]bool{}}
	for _, opt := range opts {
		opt(cfg)
	}

	i32 := []byte{I32}
	m := &Module{}

	callHost := m.Import("env", "call_host", nil, nil)
	printFn := m.Import("env", "print", []byte{I32, I32}, nil)
	var procExit uint32
	if cfg.exitCode != nil {
		procExit = m.Import("wasi_snapshot_preview1", "proc_exit", i32, nil)
	}
	for _, e := range cfg.extra {
		m.Import(e.module, e.name, e.params, e.results)
	}

	m.Memory(1)
	heap := m.Global(true, HeapBase)
	live := m.Global(true, 0)
	m.Data(GreetingOffset, []byte(Greeting))
	m.Data(InvalidOffset, InvalidText)

	malloc := m.Func(i32, i32).Locals(I32, I32)
	free := m.Func(i32, nil)
	start := m.Func(nil, nil)
	sayHello := m.Func(nil, nil).Locals(I32)
	increment := m.Func(i32, i32)
	strlen := m.Func(i32, i32).Locals(I32)
	concat := m.Func([]byte{I32, I32}, i32).Locals(I32, I32, I32)
	trap := m.Func(nil, nil)
	divide := m.Func([]byte{I32, I32}, i32)
	printInvalid := m.Func(nil, nil).Locals(I32)
	printOOB := m.Func(nil, nil)

	// malloc(size): 8-byte aligned bump allocation, growing memory on demand.
	// locals: 0 size, 1 ptr, 2 end
	malloc.Body((&Code{}).
		LocalGet(0).I32Const(MaxAlloc).I32GtU().
		If().I32Const(0).Return().End().
		GlobalGet(heap).I32Const(7).I32Add().I32Const(-8).I32And().LocalSet(1).
		LocalGet(1).LocalGet(0).I32Add().LocalSet(2).
		LocalGet(2).MemorySize().I32Const(16).I32Shl().I32GtU().
		If().
		LocalGet(2).MemorySize().I32Const(16).I32Shl().I32Sub().
		I32Const(16).I32ShrU().I32Const(1).I32Add().
		MemoryGrow().I32Const(-1).I32Eq().
		If().I32Const(0).Return().End().
		End().
		LocalGet(2).GlobalSet(heap).
		GlobalGet(live).I32Const(1).I32Add().GlobalSet(live).
		LocalGet(1))

	// free(ptr): bump allocators never reuse memory; only the count moves.
	free.Body((&Code{}).
		LocalGet(0).
		If().GlobalGet(live).I32Const(1).I32Sub().GlobalSet(live).End())

	startCode := &Code{}
	if cfg.startTraps {
		startCode.Unreachable()
	} else {
		startCode.Call(callHost)
		if cfg.exitCode != nil {
			startCode.I32Const(*cfg.exitCode).Call(procExit)
		}
	}
	start.Body(startCode)

	sayHello.Body(printFrom(GreetingOffset, int32(len(Greeting)), malloc.Index, printFn))

	increment.Body((&Code{}).LocalGet(0).I32Const(1).I32Add())

	// strlen(p). locals: 0 p, 1 i
	strlen.Body((&Code{}).
		Block().Loop().
		LocalGet(0).LocalGet(1).I32Add().I32Load8U().I32Eqz().BrIf(1).
		LocalGet(1).I32Const(1).I32Add().LocalSet(1).
		Br(0).
		End().End().
		LocalGet(1))

	// __concat(l, r) frees both inputs and returns a fresh allocation.
	// locals: 0 l, 1 r, 2 llen, 3 rlen, 4 out
	concat.Body((&Code{}).
		LocalGet(0).Call(strlen.Index).LocalSet(2).
		LocalGet(1).Call(strlen.Index).LocalSet(3).
		LocalGet(2).LocalGet(3).I32Add().I32Const(1).I32Add().
		Call(malloc.Index).LocalTee(4).I32Eqz().
		If().Unreachable().End().
		LocalGet(4).LocalGet(0).LocalGet(2).MemoryCopy().
		LocalGet(4).LocalGet(2).I32Add().LocalGet(1).LocalGet(3).MemoryCopy().
		LocalGet(4).LocalGet(2).I32Add().LocalGet(3).I32Add().I32Const(0).I32Store8().
		LocalGet(0).Call(free.Index).
		LocalGet(1).Call(free.Index).
		LocalGet(4))

	trap.Body((&Code{}).Unreachable())

	divide.Body((&Code{}).LocalGet(0).LocalGet(1).I32DivS())

	printInvalid.Body(printFrom(InvalidOffset, int32(len(InvalidText)), malloc.Index, printFn))

	printOOB.Body((&Code{}).I32Const(-65536).I32Const(16).Call(printFn))

	exports := []exportEntry{
		{name: "malloc", idx: malloc.Index},
		{name: "free", idx: free.Index},
		{name: "__say_hello", idx: sayHello.Index},
		{name: "__increment", idx: increment.Index},
		{name: "__concat", idx: concat.Index},
		{name: "__trap", idx: trap.Index},
		{name: "__divide", idx: divide.Index},
		{name: "__print_invalid", idx: printInvalid.Index},
		{name: "__print_oob", idx: printOOB.Index},
	}
	if cfg.start {
		exports = append(exports, exportEntry{name: "_start", idx: start.Index})
	}
	for _, e := range exports {
		if !cfg.skip[e.name] {
			m.ExportFunc(e.name, e.idx)
		}
	}
	if !cfg.skip["memory"] {
		m.ExportMemory("memory")
	}
	m.ExportGlobal("live_allocs", live)

	return m.Encode()
}

// printFrom copies n bytes at src into a fresh allocation and passes it to
// print, which takes ownership. local 0 holds the allocation.
func printFrom(src, n int32, malloc, printFn uint32) *Code {
	return (&Code{}).
		I32Const(n).Call(malloc).LocalTee(0).I32Eqz().
		If().Unreachable().End().
		LocalGet(0).I32Const(src).I32Const(n).MemoryCopy().
		LocalGet(0).I32Const(n).Call(printFn)
}
