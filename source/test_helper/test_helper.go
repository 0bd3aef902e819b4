package test_helper

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"github.com/pkg/errors"

	"github.com/tim-hardcastle/cfunc/source/cfunc"
	"github.com/tim-hardcastle/cfunc/source/hub"
	"github.com/tim-hardcastle/cfunc/source/report"
	"github.com/tim-hardcastle/cfunc/source/text"
)

const SHOW_TESTS = false

// Auxiliary types and functions for testing the hub and the dispatcher.

// The Input of a TestItem is a script: each line is given to the function under test in turn, and
// what it returns for the last line is compared with Want. If the last line fails, what is compared
// is the identifier of the error.
type TestItem struct {
	Input string
	Want  string
}

func RunTest(t *testing.T, tests []TestItem, F func(hb *hub.Hub, s string) (string, error)) {
	t.Helper()
	for _, test := range tests {
		if SHOW_TESTS {
			println(text.BULLET + "Running test " + text.Emph(test.Input))
		}
		hb := hub.New(&bytes.Buffer{}, cfunc.New(cfunc.WithBackend(NewFakeBackend())))
		lines := strings.Split(test.Input, "\n")
		var got string
		for i, line := range lines {
			result, err := F(hb, line)
			if err != nil && i < len(lines)-1 {
				t.Fatalf(`Test failed with input %s | Line %s failed : %s.`, test.Input, line, err)
			}
			got = result
			if err != nil {
				got = ErrorId(err)
			}
		}
		if !(test.Want == got) {
			t.Fatalf(`Test failed with input %s | Wanted : %s | Got : %s.`, test.Input, test.Want, got)
		}
	}
}

// ErrorId returns the identifier of the first report error in err's chain, or "" if there is none.
func ErrorId(err error) string {
	var e *report.Error
	if errors.As(err, &e) {
		return e.ErrorId
	}
	return ""
}

// A FakeBackend stands in for the C toolchain. It remembers every translation unit it is asked to
// compile and returns Native, or Err if that is set.
type FakeBackend struct {
	mu     sync.Mutex
	Units  [][]byte
	Native cfunc.Native
	Err    error
}

// NewFakeBackend returns a backend whose routines return the sum of their arguments. A routine
// with captures first increments its first capture and adds that in too.
func NewFakeBackend() *FakeBackend {
	return &FakeBackend{Native: Counter}
}

func (b *FakeBackend) Compile(unit []byte) (cfunc.Native, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Units = append(b.Units, unit)
	if b.Err != nil {
		return nil, b.Err
	}
	return b.Native, nil
}

// Count is the number of compilations so far.
func (b *FakeBackend) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.Units)
}

var Counter = cfunc.NativeFunc(func(args []int64, store cfunc.CaptureStore) (int64, error) {
	var sum int64
	for _, v := range args {
		sum += v
	}
	if store != nil {
		n := store.Capture(0) + 1
		store.SetCapture(0, n)
		sum += n
	}
	return sum, nil
})
