package cfunc

import (
	"bytes"
	"fmt"

	"github.com/tim-hardcastle/cfunc/source/settings"
)

// The ABI block declares what the generated accessors are written against. The same declarations
// appear in the cgo preamble that calls the routine, and the two must be kept in step.
const abi = `#include <stdint.h>
typedef long long cfunc_Value;
typedef struct cfunc_State {
	const cfunc_Value *args;
	int nargs;
	uintptr_t captures;
	cfunc_Value (*getcapture)(uintptr_t, int);
	void (*setcapture)(uintptr_t, int, cfunc_Value);
} cfunc_State;
static inline cfunc_Value cfunc_arg(cfunc_State *L, int i) {
	return i >= 1 && i <= L->nargs ? L->args[i - 1] : 0;
}
static inline cfunc_Value cfunc_getcapture(cfunc_State *L, int j) {
	return L->getcapture(L->captures, j);
}
static inline void cfunc_setcapture(cfunc_State *L, int j, cfunc_Value v) {
	L->setcapture(L->captures, j, v);
}
`

// Generate returns the translation unit for an entry.
//
// The #line directives are there so that the compiler's diagnostics point into the caller's own
// text: the header is reported from line 100000, the accessors from line 200000, and the
// implementation from line 1, i.e. with its own line numbers.
func Generate(e *Entry) []byte {
	var buf bytes.Buffer
	sb := &buf
	fmt.Fprintf(sb, "#line %d\n", settings.ABI_LINE)
	fmt.Fprint(sb, abi)
	// Region 1: the header.
	fmt.Fprintf(sb, "#line %d\n", settings.HEADER_LINE)
	sb.Write(e.header)
	// Region 2: one reader per local, addressed by position, and a reader and a writer per
	// capture, addressed by capture index.
	fmt.Fprintf(sb, "\n#line %d\n", settings.PRELUDE_LINE)
	for i, name := range e.locals {
		fmt.Fprintf(sb, "#define I_%s %d\n", name, i+1)
		fmt.Fprintf(sb, "#define get_%s cfunc_arg(L, I_%s)\n", name, name)
	}
	for j, name := range e.captures {
		fmt.Fprintf(sb, "#define get_%s cfunc_getcapture(L, %d)\n", name, j+1)
		fmt.Fprintf(sb, "#define set_%s(v) cfunc_setcapture(L, %d, (v))\n", name, j+1)
	}
	// Region 3: the routine itself.
	fmt.Fprintf(sb, "cfunc_Value %s(cfunc_State *L) {\n#line %d\n", settings.SYMBOL, settings.IMPL_LINE)
	sb.Write(e.impl)
	fmt.Fprint(sb, "}")
	return buf.Bytes()
}
