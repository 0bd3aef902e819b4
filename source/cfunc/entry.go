package cfunc

import (
	"container/list"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// An Entry is the identity of one distinct compiled routine together with the result of compiling
// it. Everything but the compilation result is fixed when the entry is created; the compilation
// result is set once, by the dispatcher, straight afterwards.
type Entry struct {
	header   []byte
	impl     []byte
	locals   []string
	captures []string
	key      uint64

	built    bool   // Whether compilation has been attempted.
	compiled Native // Nil if the attempt failed.
	failure  error  // Why it failed.

	elem *list.Element // Position in the cache's recency order.
}

// A candidate is a requested routine, described but not yet known to the cache.
type candidate struct {
	header   []byte
	impl     []byte
	locals   []string
	captures []string
	key      uint64
}

func newCandidate(b Bindings, header, impl []byte) *candidate {
	locals, captures := b.Locals(), b.Captures()
	return &candidate{
		header:   header,
		impl:     impl,
		locals:   locals,
		captures: captures,
		key:      identityKey(header, impl, locals, captures),
	}
}

// identityKey hashes every field that takes part in structural identity. Fields are length-prefixed
// so that no two distinct identities hash the same input stream.
func identityKey(header, impl []byte, locals, captures []string) uint64 {
	d := xxhash.New()
	writeLen := func(n int) {
		d.WriteString(strconv.Itoa(n))
		d.Write([]byte{0})
	}
	writeLen(len(header))
	d.Write(header)
	writeLen(len(impl))
	d.Write(impl)
	writeLen(len(locals))
	for _, name := range locals {
		writeLen(len(name))
		d.WriteString(name)
	}
	writeLen(len(captures))
	for _, name := range captures {
		writeLen(len(name))
		d.WriteString(name)
	}
	return d.Sum64()
}

func (e *Entry) Header() []byte {
	return append([]byte(nil), e.header...)
}

func (e *Entry) Impl() []byte {
	return append([]byte(nil), e.impl...)
}

func (e *Entry) Locals() []string {
	return append([]string(nil), e.locals...)
}

func (e *Entry) Captures() []string {
	return append([]string(nil), e.captures...)
}

// Built reports whether compilation of the entry has been attempted.
func (e *Entry) Built() bool {
	return e.built
}

// Usable reports whether the entry holds a loaded routine.
func (e *Entry) Usable() bool {
	return e.compiled != nil
}

func (e *Entry) Failure() error {
	return e.failure
}

// callable wraps the entry's compiled routine for one caller. A routine with captures closes over
// the caller's capture storage; one without is returned bare.
func (e *Entry) callable(store CaptureStore) Callable {
	r := &routine{native: e.compiled, failure: e.failure}
	if len(e.captures) == 0 {
		return r
	}
	return &closure{routine: r, store: store}
}
