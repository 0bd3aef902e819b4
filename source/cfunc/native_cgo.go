//go:build cgo && (linux || darwin)

package cfunc

/*
#include <stdint.h>
#include <stddef.h>

typedef long long cfunc_Value;
typedef struct cfunc_State {
	const cfunc_Value *args;
	int nargs;
	uintptr_t captures;
	cfunc_Value (*getcapture)(uintptr_t, int);
	void (*setcapture)(uintptr_t, int, cfunc_Value);
} cfunc_State;

typedef cfunc_Value (*cfunc_fn)(cfunc_State *);

// Defined in Go, see callback_cgo.go.
extern long long cfuncCaptureGet(uintptr_t h, int j);
extern void cfuncCaptureSet(uintptr_t h, int j, long long v);

static cfunc_Value cfunc_get_thunk(uintptr_t h, int j) {
	return cfuncCaptureGet(h, j);
}

static void cfunc_set_thunk(uintptr_t h, int j, cfunc_Value v) {
	cfuncCaptureSet(h, j, v);
}

static cfunc_Value cfunc_invoke(void *fn, const long long *args, int nargs, uintptr_t captures) {
	cfunc_State L;
	L.args = args;
	L.nargs = nargs;
	L.captures = captures;
	L.getcapture = cfunc_get_thunk;
	L.setcapture = cfunc_set_thunk;
	return ((cfunc_fn)fn)(&L);
}
*/
import "C"

import (
	"runtime/cgo"
	"unsafe"
)

// nativeFunc is a routine resolved from a loaded module. The module is never closed: callables
// handed out earlier may still point into it.
type nativeFunc struct {
	lib unsafe.Pointer
	fn  unsafe.Pointer
}

func (n *nativeFunc) Invoke(args []int64, store CaptureStore) (int64, error) {
	var argv *C.longlong
	if len(args) > 0 {
		argv = (*C.longlong)(unsafe.Pointer(&args[0]))
	}
	// The routine reaches its captures only through this handle, and only for the duration of the
	// call.
	var h cgo.Handle
	if store != nil {
		h = cgo.NewHandle(store)
		defer h.Delete()
	}
	result := C.cfunc_invoke(n.fn, argv, C.int(len(args)), C.uintptr_t(h))
	return int64(result), nil
}
