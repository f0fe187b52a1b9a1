package guest

import (
	"context"
	stderrors "errors"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-bridge/binding"
	"github.com/wippyai/wasm-bridge/errors"
	"github.com/wippyai/wasm-bridge/membridge"
	"github.com/wippyai/wasm-bridge/runtime"
)

// Client calls the contract exports of one instance. It is not safe for
// concurrent use.
type Client struct {
	inst      *runtime.Instance
	sayHello  func(context.Context) error
	increment func(context.Context, int32) (int32, error)
	concat    *runtime.Export
	logger    *zap.Logger
}

// NewClient binds the contract exports of inst.
func NewClient(inst *runtime.Instance) (*Client, error) {
	if inst.Memory() == nil || inst.Allocator() == nil {
		return nil, errors.New(errors.PhaseLinking, errors.KindExportNotFound).
			Detail("guest must export memory, malloc and free").
			Build()
	}

	sayHello, err := runtime.Action(inst, ExportSayHello)
	if err != nil {
		return nil, err
	}
	increment, err := runtime.Func1[int32, int32](inst, ExportIncrement)
	if err != nil {
		return nil, err
	}
	concat, err := inst.Export(ExportConcat, ConcatSignature)
	if err != nil {
		return nil, err
	}

	return &Client{
		inst:      inst,
		sayHello:  sayHello,
		increment: increment,
		concat:    concat,
		logger:    inst.Logger(),
	}, nil
}

// Instance returns the underlying instance.
func (c *Client) Instance() *runtime.Instance {
	return c.inst
}

// SayHello asks the guest to print its greeting through env.print.
func (c *Client) SayHello(ctx context.Context) error {
	return c.sayHello(ctx)
}

// Increment returns n+1 computed by the guest, wrapping at the i32 range.
func (c *Client) Increment(ctx context.Context, n int32) (int32, error) {
	return c.increment(ctx, n)
}

// Concat joins left and right in the guest. Both inputs are written as
// null-terminated guest allocations and handed over; the guest frees them.
// The result is read and then freed by the host.
func (c *Client) Concat(ctx context.Context, left, right string) (string, error) {
	alloc := c.inst.Allocator()

	l, err := alloc.AllocCString(ctx, left)
	if err != nil {
		return "", err
	}
	r, err := alloc.AllocCString(ctx, right)
	if err != nil {
		_ = l.Release(ctx)
		return "", err
	}

	lp, err := l.Transfer()
	if err != nil {
		return "", err
	}
	rp, err := r.Transfer()
	if err != nil {
		return "", err
	}

	res, err := c.concat.Call(ctx, binding.U32(lp), binding.U32(rp))
	if err != nil {
		return "", err
	}
	if len(res) != 1 {
		return "", errors.InvalidState(errors.PhaseCall, "instance completed during "+ExportConcat)
	}

	resultPtr := res[0].U32()
	if resultPtr == 0 {
		return "", errors.AllocationFailed(uint32(len(left)+len(right)+1), nil)
	}

	out := alloc.Adopt(membridge.StringRef{Ptr: resultPtr})
	text, readErr := c.inst.Memory().ReadNullTerminatedString(resultPtr)
	if readErr != nil && stderrors.Is(readErr, errors.ErrOutOfBounds) {
		// Out-of-bounds pointers are never freed.
		return "", readErr
	}
	if err := out.Release(ctx); err != nil {
		return "", err
	}
	if readErr != nil {
		return "", readErr
	}

	c.logger.Debug("guest concat",
		zap.Int("left", len(left)),
		zap.Int("right", len(right)),
		zap.Uint32("result_ptr", resultPtr))
	return text, nil
}
