//go:build cgo && (linux || darwin)

package cfunc

/*
#cgo linux LDFLAGS: -ldl
#include <dlfcn.h>
#include <stdlib.h>

static void* cfunc_dlopen(const char* path) {
	return dlopen(path, RTLD_LAZY | RTLD_LOCAL);
}

// Clear dlerror, call dlsym, and return the error (if any) alongside the symbol.
static void* cfunc_dlsym(void* h, const char* name, char** err) {
	dlerror();
	void* p = dlsym(h, name);
	char* e = dlerror();
	if (e) { *err = e; return NULL; }
	*err = NULL;
	return p;
}

static const char* cfunc_dlerror(void) {
	return dlerror();
}
*/
import "C"

import (
	"os"
	"unsafe"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/tim-hardcastle/cfunc/source/report"
	"github.com/tim-hardcastle/cfunc/source/settings"
)

// DlLoader loads artifacts with dlopen, keeping their symbols out of the global namespace.
type DlLoader struct {
	Logger *zap.Logger
}

func NewLoader(logger *zap.Logger) *DlLoader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DlLoader{Logger: logger}
}

// Load opens the artifact, deletes it whatever happened, and resolves the routine's symbol.
func (l *DlLoader) Load(path string) (Native, error) {
	cpath := C.CString(path)
	defer C.free(unsafe.Pointer(cpath))
	lib := C.cfunc_dlopen(cpath)
	var openErr error
	if lib == nil {
		openErr = report.CreateErr("cfunc/load/open", path, dlerr())
	}
	// Once it is open nothing else needs the file. If it was never written there is nothing to
	// delete, which is not worth reporting.
	unlinkErr := unix.Unlink(path)
	if unlinkErr != nil && os.IsNotExist(unlinkErr) {
		unlinkErr = nil
	}
	if openErr != nil {
		return nil, multierr.Combine(openErr, unlinkErr)
	}
	if unlinkErr != nil {
		l.Logger.Warn("Failed to remove artifact", zap.String("path", path), zap.Error(unlinkErr))
	}
	csym := C.CString(settings.SYMBOL)
	defer C.free(unsafe.Pointer(csym))
	var cerr *C.char
	fn := C.cfunc_dlsym(lib, csym, &cerr)
	if cerr != nil || fn == nil {
		msg := "symbol is null"
		if cerr != nil {
			msg = C.GoString(cerr)
		}
		return nil, report.CreateErr("cfunc/load/symbol", settings.SYMBOL, msg)
	}
	return &nativeFunc{lib: lib, fn: fn}, nil
}

// dlerr returns the last dlerror as a Go string, or a fallback label.
func dlerr() string {
	errC := C.cfunc_dlerror()
	if errC != nil {
		return C.GoString(errC)
	}
	return "unknown dlerror"
}
