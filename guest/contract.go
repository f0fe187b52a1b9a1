package guest

import (
	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/wasm-bridge/binding"
	"github.com/wippyai/wasm-bridge/errors"
	"github.com/wippyai/wasm-bridge/membridge"
	"github.com/wippyai/wasm-bridge/runtime"
)

// Import and export names of the env contract.
const (
	Namespace = "env"

	ImportCallHost = "call_host"
	ImportPrint    = "print"

	ExportStart     = runtime.DefaultStartFunction
	ExportSayHello  = "__say_hello"
	ExportIncrement = "__increment"
	ExportConcat    = "__concat"
	ExportMalloc    = membridge.MallocExport
	ExportFree      = membridge.FreeExport
	ExportMemory    = "memory"
)

var i32 = api.ValueTypeI32

// Contract signatures.
var (
	CallHostSignature  = binding.Signature{}
	PrintSignature     = binding.Sig(binding.Params(i32, i32))
	StartSignature     = binding.Signature{}
	SayHelloSignature  = binding.Signature{}
	IncrementSignature = binding.Sig(binding.Params(i32), i32)
	ConcatSignature    = binding.Sig(binding.Params(i32, i32), i32)
	MallocSignature    = binding.Sig(binding.Params(i32), i32)
	FreeSignature      = binding.Sig(binding.Params(i32))
)

// Exports lists the required function exports and their signatures. The
// start export is optional and checked separately.
var Exports = []runtime.ExportInfo{
	{Name: ExportSayHello, Signature: SayHelloSignature},
	{Name: ExportIncrement, Signature: IncrementSignature},
	{Name: ExportConcat, Signature: ConcatSignature},
	{Name: ExportMalloc, Signature: MallocSignature},
	{Name: ExportFree, Signature: FreeSignature},
}

// Imports lists the env imports a guest may declare.
var Imports = []runtime.ImportInfo{
	{Namespace: Namespace, Name: ImportCallHost, Signature: CallHostSignature},
	{Namespace: Namespace, Name: ImportPrint, Signature: PrintSignature},
}

// ContractError lists every way a module deviates from the contract.
type ContractError struct {
	Problems []string
}

func (e *ContractError) Error() string {
	msg := "[linking] link: guest does not satisfy the env contract:"
	for _, p := range e.Problems {
		msg += "\n  - " + p
	}
	return msg
}

// Is matches errors.ErrLink.
func (e *ContractError) Is(target error) bool {
	t, ok := target.(*errors.Error)
	return ok && t.Kind == errors.KindLink
}

// Validate checks m's export surface against the contract. The configured
// start export may be absent, but when present it must take and return
// nothing. Env imports the guest declares must use the contract signatures;
// unknown env imports are reported too.
func Validate(m *runtime.Module) error {
	var problems []string

	if start := m.StartFunction(); start != "" {
		if got, ok := m.Export(start); ok && !got.Signature.Equal(StartSignature) {
			problems = append(problems, "start export "+start+": want "+StartSignature.String()+", got "+got.Signature.String())
		}
	}

	for _, want := range Exports {
		got, ok := m.Export(want.Name)
		if !ok {
			problems = append(problems, "missing export "+want.Name)
			continue
		}
		if !got.Signature.Equal(want.Signature) {
			problems = append(problems, "export "+want.Name+": want "+want.Signature.String()+", got "+got.Signature.String())
		}
	}

	hasMemory := false
	for _, name := range m.Memories() {
		if name == ExportMemory {
			hasMemory = true
		}
	}
	if !hasMemory {
		problems = append(problems, "missing memory export "+ExportMemory)
	}

	for _, imp := range m.Imports() {
		if imp.Namespace != Namespace {
			continue
		}
		want, ok := contractImport(imp.Name)
		if !ok {
			problems = append(problems, "unknown import env."+imp.Name)
			continue
		}
		if !imp.Signature.Equal(want.Signature) {
			problems = append(problems, "import env."+imp.Name+": want "+want.Signature.String()+", got "+imp.Signature.String())
		}
	}

	if len(problems) > 0 {
		return &ContractError{Problems: problems}
	}
	return nil
}

func contractImport(name string) (runtime.ImportInfo, bool) {
	for _, imp := range Imports {
		if imp.Name == name {
			return imp, true
		}
	}
	return runtime.ImportInfo{}, false
}
