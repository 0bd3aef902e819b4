package report

import (
	"fmt"
	"strings"
)

// A map from error identifiers to functions that supply the corresponding error messages and explanations.
//
// Errors in the map are in alphabetical order of their identifers.
//
// Major categories are cfunc, hub, and journal. Within cfunc the subcategories follow the
// pipeline: producer, build, load, call.
//
// Two otherwise identical errors thrown in different places in the Go code must be assigned
// different identifiers, if only by suffixing /a, /b, etc to the identifier.

var ErrorCreatorMap = map[string]ErrorCreator{

	// TEMPLATE
	"": {
		Message: func(args ...any) string {
			return ""
		},
		Explanation: func(args ...any) string {
			return ""
		},
	},

	"cfunc/build/launch": {
		Message: func(args ...any) string {
			return "failed to launch C compiler " + emph(args[0])
		},
		Explanation: func(args ...any) string {
			return "The external compiler could not be started at all, so nothing was built. " +
				"Check that the compiler named by the 'cc' setting (or the CC environment variable) " +
				"is installed and on the PATH. The routine stays unusable until the process restarts."
		},
	},

	"cfunc/build/stdin": {
		Message: func(args ...any) string {
			return "failed to stream source to C compiler " + emph(args[0])
		},
		Explanation: func(args ...any) string {
			return "The compiler started but the generated translation unit could not be written to its " +
				"standard input, usually because the compiler exited early."
		},
	},

	"cfunc/call/args": {
		Message: func(args ...any) string {
			return fmt.Sprintf("too many arguments: got %v, at most %v can be passed", args[0], args[1])
		},
		Explanation: func(args ...any) string {
			return "The argument count is passed to the routine as a C int."
		},
	},

	"cfunc/call/unusable": {
		Message: func(args ...any) string {
			return "routine was never compiled and cannot be called"
		},
		Explanation: func(args ...any) string {
			return "An earlier request for a routine with this exact source and binding shape failed to build " +
				"or load. Failures are remembered for the lifetime of the process, so every later request " +
				"for the same routine yields this same unusable result. Fix the source (any change to it makes " +
				"a new routine) or enable the 'retry-failed' setting."
		},
	},

	"cfunc/load/open": {
		Message: func(args ...any) string {
			return "failed to load compiled routine from " + emph(args[0]) + ": " + args[1].(string)
		},
		Explanation: func(args ...any) string {
			return "The compiler ran but did not leave a loadable shared object behind. This is nearly always " +
				"a compilation error in the header or implementation text: the compiler's diagnostics refer " +
				"to the implementation from line 1, to the header from line 100000 and to the generated " +
				"accessors from line 200000."
		},
	},

	"cfunc/load/symbol": {
		Message: func(args ...any) string {
			return "compiled routine does not export " + emph(args[0]) + ": " + args[1].(string)
		},
		Explanation: func(args ...any) string {
			return "The shared object loaded, but the routine's entry point is missing from it. The header " +
				"text may have redefined or hidden the entry point with a macro."
		},
	},

	"cfunc/load/unsupported": {
		Message: func(args ...any) string {
			return "dynamic loading is not available in this build"
		},
		Explanation: func(args ...any) string {
			return "This binary was built without cgo, so compiled routines can be generated and built but " +
				"never loaded."
		},
	},

	"cfunc/producer/a": {
		Message: func(args ...any) string {
			return "routine description failed"
		},
		Explanation: func(args ...any) string {
			return "The function describing the routine must return a header and an implementation. " +
				"It returned an error instead."
		},
	},

	"cfunc/producer/b": {
		Message: func(args ...any) string {
			return "header of type " + emphType(args[0]) + " cannot be used as source text"
		},
		Explanation: func(args ...any) string {
			return "The header must be a string, a byte slice or a number."
		},
	},

	"cfunc/producer/c": {
		Message: func(args ...any) string {
			return "implementation of type " + emphType(args[0]) + " cannot be used as source text"
		},
		Explanation: func(args ...any) string {
			return "The implementation must be a string, a byte slice or a number."
		},
	},

	"cfunc/producer/capture": {
		Message: func(args ...any) string {
			return "routine captures " + describeNames(args[0].([]string)) + " but its producer has no capture storage"
		},
		Explanation: func(args ...any) string {
			return "A routine with captured bindings is returned as a closure over the storage of those " +
				"bindings, so whatever describes the routine must also be able to read and write them."
		},
	},

	"hub/call/int": {
		Message: func(args ...any) string {
			return "can't parse " + emph(args[0]) + " as an integer"
		},
		Explanation: func(args ...any) string {
			return "Arguments to 'call' and values given to 'let' must be integers."
		},
	},

	"hub/call/missing": {
		Message: func(args ...any) string {
			return "no implementation has been given"
		},
		Explanation: func(args ...any) string {
			return "Use 'impl <text>' to give the body of the routine before calling it."
		},
	},

	"hub/let/arity": {
		Message: func(args ...any) string {
			return "'let' expects a capture name and a value"
		},
		Explanation: func(args ...any) string {
			return "For example 'let counter 41'."
		},
	},

	"hub/let/name": {
		Message: func(args ...any) string {
			return "there is no capture called " + emph(args[0])
		},
		Explanation: func(args ...any) string {
			return "Only names given with the 'captures' command can be assigned with 'let'."
		},
	},

	"hub/verb": {
		Message: func(args ...any) string {
			return "unknown command " + emph(args[0])
		},
		Explanation: func(args ...any) string {
			return "Type 'help' for the list of commands."
		},
	},

	"journal/driver": {
		Message: func(args ...any) string {
			return "no SQL driver called " + emph(args[0])
		},
		Explanation: func(args ...any) string {
			return "The build journal can use SQLite, Postgres, MySQL, MariaDB, SQL Server, Firebird SQL or Oracle."
		},
	},

	"journal/open": {
		Message: func(args ...any) string {
			return "can't open build journal"
		},
		Explanation: func(args ...any) string {
			return "The database given by 'journal-driver' and 'journal-dsn' could not be reached or prepared."
		},
	},

	"journal/record": {
		Message: func(args ...any) string {
			return "can't record build event"
		},
		Explanation: func(args ...any) string {
			return "The build itself is unaffected; only its journal entry was lost."
		},
	},
}

func emph(s any) string {
	return "'" + fmt.Sprint(s) + "'"
}

func emphType(v any) string {
	if v == nil {
		return "'nil'"
	}
	return "'" + fmt.Sprintf("%T", v) + "'"
}

func describeNames(names []string) string {
	quoted := make([]string, len(names))
	for i, v := range names {
		quoted[i] = emph(v)
	}
	return strings.Join(quoted, ", ")
}
