package binding

import (
	"fmt"
	"slices"
	"strings"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/wasm-bridge/errors"
)

// Signature is a function type: parameter and result value kinds.
type Signature struct {
	Params  []api.ValueType
	Results []api.ValueType
}

// Sig builds a Signature.
func Sig(params []api.ValueType, results ...api.ValueType) Signature {
	return Signature{Params: params, Results: results}
}

// Params is shorthand for a parameter list.
func Params(kinds ...api.ValueType) []api.ValueType {
	return kinds
}

// SignatureOf returns the signature of a compiled function definition.
func SignatureOf(def api.FunctionDefinition) Signature {
	return Signature{Params: def.ParamTypes(), Results: def.ResultTypes()}
}

// Equal reports whether both signatures have identical kinds.
func (s Signature) Equal(o Signature) bool {
	return slices.Equal(s.Params, o.Params) && slices.Equal(s.Results, o.Results)
}

// String renders the signature as "(i32, i32) -> (i32)".
func (s Signature) String() string {
	return "(" + kindList(s.Params) + ") -> (" + kindList(s.Results) + ")"
}

func kindList(kinds []api.ValueType) string {
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = api.ValueTypeName(k)
	}
	return strings.Join(names, ", ")
}

func valKinds(vals []Val) []api.ValueType {
	kinds := make([]api.ValueType, len(vals))
	for i, v := range vals {
		kinds[i] = v.Kind
	}
	return kinds
}

// CheckArgs validates argument arity and kinds against the parameters.
func (s Signature) CheckArgs(phase errors.Phase, name string, args []Val) error {
	return checkKinds(phase, name, "argument", s.Params, args)
}

// CheckResults validates result arity and kinds.
func (s Signature) CheckResults(phase errors.Phase, name string, results []Val) error {
	return checkKinds(phase, name, "result", s.Results, results)
}

func checkKinds(phase errors.Phase, name, what string, want []api.ValueType, got []Val) error {
	if len(want) != len(got) {
		return errors.SignatureMismatch(phase, name,
			fmt.Sprintf("%d %s(s) (%s)", len(want), what, kindList(want)),
			fmt.Sprintf("%d (%s)", len(got), kindList(valKinds(got))))
	}
	for i, k := range want {
		if got[i].Kind != k {
			return errors.SignatureMismatch(phase, name,
				fmt.Sprintf("%s %d of kind %s", what, i, api.ValueTypeName(k)),
				api.ValueTypeName(got[i].Kind))
		}
	}
	return nil
}
