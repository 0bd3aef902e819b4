package cfunc

import (
	"github.com/spf13/cast"

	"github.com/tim-hardcastle/cfunc/source/report"
)

// Bindings lists the names a routine can see. Locals are addressed by position, captures by capture
// index; the two lists may share names.
type Bindings interface {
	Locals() []string
	Captures() []string
}

// CaptureStore is the storage behind a call site's captured bindings. Indices are 0-based here; the
// generated C numbers captures from 1.
type CaptureStore interface {
	Capture(i int) int64
	SetCapture(i int, v int64)
}

// A Producer describes a routine: it yields the header and implementation text, and it is the
// calling context that supplies the bindings. If the routine has captures the producer must also be
// a CaptureStore, since the routine is returned as a closure over it.
type Producer interface {
	Bindings
	Produce() (header, impl any, err error)
}

// produce calls the producer once and coerces both results to source text.
func produce(p Producer) ([]byte, []byte, error) {
	header, impl, err := p.Produce()
	if err != nil {
		return nil, nil, report.WrapErr(err, "cfunc/producer/a")
	}
	h, ok := toSource(header)
	if !ok {
		return nil, nil, report.CreateErr("cfunc/producer/b", header)
	}
	i, ok := toSource(impl)
	if !ok {
		return nil, nil, report.CreateErr("cfunc/producer/c", impl)
	}
	return h, i, nil
}

// toSource accepts what a scripting host would accept as a string: strings, byte slices and numbers.
func toSource(v any) ([]byte, bool) {
	switch v := v.(type) {
	case nil, bool:
		return nil, false
	case []byte:
		return v, true
	case string:
		return []byte(v), true
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		s, err := cast.ToStringE(v)
		if err != nil {
			return nil, false
		}
		return []byte(s), true
	}
	return nil, false
}
