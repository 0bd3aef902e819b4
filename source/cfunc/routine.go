package cfunc

import (
	"math"

	"github.com/tim-hardcastle/cfunc/source/report"
)

// Native is a loaded routine. The arguments are the routine's locals by position; the store, which
// may be nil, backs its captures.
type Native interface {
	Invoke(args []int64, store CaptureStore) (int64, error)
}

// NativeFunc adapts a Go function to a Native, for backends that don't go through C at all.
type NativeFunc func(args []int64, store CaptureStore) (int64, error)

func (f NativeFunc) Invoke(args []int64, store CaptureStore) (int64, error) {
	return f(args, store)
}

// A Callable is what the dispatcher hands back.
type Callable interface {
	Call(args ...int64) (int64, error)
}

// A routine is a callable with no captures.
type routine struct {
	native  Native
	failure error
}

func (r *routine) Call(args ...int64) (int64, error) {
	return r.invoke(args, nil)
}

func (r *routine) invoke(args []int64, store CaptureStore) (int64, error) {
	if r.native == nil {
		return 0, report.WrapErr(r.failure, "cfunc/call/unusable")
	}
	if len(args) > math.MaxInt32 {
		return 0, report.CreateErr("cfunc/call/args", len(args), math.MaxInt32)
	}
	return r.native.Invoke(args, store)
}

// A closure is a routine bound to the capture storage of the call site that asked for it.
type closure struct {
	*routine
	store CaptureStore
}

func (c *closure) Call(args ...int64) (int64, error) {
	return c.invoke(args, c.store)
}
