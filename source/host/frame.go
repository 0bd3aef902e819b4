package host

// A minimal stand-in for the interpreter that hosts compiled routines: a frame knows the names of
// its locals and captures, and owns the cells the captures live in. The cells are a persistent
// vector, so rebinding the locals or taking a snapshot never copies them.
//
// A Frame is not safe for concurrent use.

import (
	"src.elv.sh/pkg/persistent/vector"

	"github.com/tim-hardcastle/cfunc/source/cfunc"
)

type Frame struct {
	locals   []string
	captures []string
	cells    vector.Vector
}

func NewFrame(locals, captures []string) *Frame {
	cells := vector.Empty
	for range captures {
		cells = cells.Conj(int64(0))
	}
	return &Frame{
		locals:   append([]string{}, locals...),
		captures: append([]string{}, captures...),
		cells:    cells,
	}
}

func (f *Frame) Locals() []string {
	return f.locals
}

func (f *Frame) Captures() []string {
	return f.captures
}

func (f *Frame) Capture(i int) int64 {
	v, ok := f.cells.Index(i)
	if !ok {
		return 0
	}
	return v.(int64)
}

// SetCapture ignores indices out of range, as the generated code can't be stopped from using them.
func (f *Frame) SetCapture(i int, v int64) {
	if i < 0 || i >= f.cells.Len() {
		return
	}
	f.cells = f.cells.Assoc(i, v)
}

// Lookup returns the capture index of a name.
func (f *Frame) Lookup(name string) (int, bool) {
	for i, v := range f.captures {
		if v == name {
			return i, true
		}
	}
	return 0, false
}

// WithLocals returns a frame with different locals sharing the same capture values at the time of
// the call.
func (f *Frame) WithLocals(locals []string) *Frame {
	return &Frame{
		locals:   append([]string{}, locals...),
		captures: f.captures,
		cells:    f.cells,
	}
}

func (f *Frame) Snapshot() []int64 {
	result := make([]int64, 0, f.cells.Len())
	for it := f.cells.Iterator(); it.HasElem(); it.Next() {
		result = append(result, it.Elem().(int64))
	}
	return result
}

// A Routine describes source text in a frame. It is a cfunc.Producer whose bindings and capture
// storage are the frame's.
type Routine struct {
	*Frame
	header any
	impl   any
}

func (f *Frame) Routine(header, impl any) *Routine {
	return &Routine{Frame: f, header: header, impl: impl}
}

func (r *Routine) Produce() (any, any, error) {
	return r.header, r.impl, nil
}

// A Func describes its source by calling a function each time it is asked, as an interpreter does
// when it evaluates the body of the definition that contains the routine.
type Func struct {
	*Frame
	fn func() (any, any, error)
}

func (f *Frame) Func(fn func() (any, any, error)) *Func {
	return &Func{Frame: f, fn: fn}
}

func (f *Func) Produce() (any, any, error) {
	return f.fn()
}

var (
	_ cfunc.Producer     = (*Routine)(nil)
	_ cfunc.CaptureStore = (*Routine)(nil)
	_ cfunc.Producer     = (*Func)(nil)
)
