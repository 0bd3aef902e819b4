//go:build cgo && (linux || darwin)

package cfunc

/*
#include <stdint.h>
*/
import "C"

import (
	"runtime/cgo"
)

// These are called from generated code through the state's function pointers. j is the 1-based
// capture index of the generated accessors.

//export cfuncCaptureGet
func cfuncCaptureGet(h C.uintptr_t, j C.int) C.longlong {
	store := captureStore(h)
	if store == nil {
		return 0
	}
	return C.longlong(store.Capture(int(j) - 1))
}

//export cfuncCaptureSet
func cfuncCaptureSet(h C.uintptr_t, j C.int, v C.longlong) {
	store := captureStore(h)
	if store == nil {
		return
	}
	store.SetCapture(int(j)-1, int64(v))
}

func captureStore(h C.uintptr_t) CaptureStore {
	if h == 0 {
		return nil
	}
	store, _ := cgo.Handle(h).Value().(CaptureStore)
	return store
}
