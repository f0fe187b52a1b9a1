package binding

import (
	"context"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/wasm-bridge/errors"
)

// ExportSource resolves exported functions by name. api.Module implements it.
type ExportSource interface {
	ExportedFunction(name string) api.Function
}

// Export is a resolved, signature-checked guest export.
type Export struct {
	fn     api.Function
	onTrap func(error)
	name   string
	sig    Signature
}

// ResolveExport looks up name and checks it against want.
func ResolveExport(src ExportSource, name string, want Signature) (*Export, error) {
	fn := src.ExportedFunction(name)
	if fn == nil {
		return nil, errors.ExportNotFound(errors.PhaseCall, name)
	}
	got := SignatureOf(fn.Definition())
	if !got.Equal(want) {
		return nil, errors.SignatureMismatch(errors.PhaseCall, name, want.String(), got.String())
	}
	return &Export{fn: fn, name: name, sig: got}, nil
}

// LookupExport resolves name with whatever signature the guest declares.
func LookupExport(src ExportSource, name string) (*Export, error) {
	fn := src.ExportedFunction(name)
	if fn == nil {
		return nil, errors.ExportNotFound(errors.PhaseCall, name)
	}
	return &Export{fn: fn, name: name, sig: SignatureOf(fn.Definition())}, nil
}

// Name returns the export name.
func (e *Export) Name() string { return e.name }

// Signature returns the export's declared signature.
func (e *Export) Signature() Signature { return e.sig }

// Call invokes the export. Arguments are checked before the guest runs; a
// guest fault or host failure anywhere in the chain is returned as a trap.
func (e *Export) Call(ctx context.Context, args ...Val) ([]Val, error) {
	if err := e.sig.CheckArgs(errors.PhaseCall, e.name, args); err != nil {
		return nil, err
	}
	raw, err := e.fn.Call(ctx, encodeVals(args)...)
	if err != nil {
		if e.onTrap != nil {
			e.onTrap(err)
		}
		return nil, errors.Trap(errors.PhaseCall, e.name, err)
	}
	return decodeVals(e.sig.Results, raw), nil
}

// OnTrap returns a copy of e that reports every failed guest call to fn
// before returning the trap.
func (e *Export) OnTrap(fn func(error)) *Export {
	c := *e
	c.onTrap = fn
	return &c
}
