package cfunc_test

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/tim-hardcastle/cfunc/source/cfunc"
	"github.com/tim-hardcastle/cfunc/source/host"
	"github.com/tim-hardcastle/cfunc/source/report"
	"github.com/tim-hardcastle/cfunc/source/test_helper"
)

func newDispatcher(t *testing.T, fb *test_helper.FakeBackend, opts ...cfunc.Option) *cfunc.Dispatcher {
	t.Helper()
	opts = append([]cfunc.Option{cfunc.WithBackend(fb), cfunc.WithLogger(zaptest.NewLogger(t))}, opts...)
	return cfunc.New(opts...)
}

func TestObtainCompilesOnce(t *testing.T) {
	for _, n := range []int{1, 2, 100} {
		fb := test_helper.NewFakeBackend()
		d := newDispatcher(t, fb)
		frame := host.NewFrame([]string{"x"}, nil)
		for i := 0; i < n; i++ {
			fn, err := d.Obtain(frame.Routine("", "return get_x;"))
			require.NoError(t, err)
			got, err := fn.Call(int64(i))
			require.NoError(t, err)
			assert.Equal(t, int64(i), got)
		}
		assert.Equal(t, 1, fb.Count(), "n = %d", n)
		assert.Equal(t, float64(1), testutil.ToFloat64(d.PrometheusCollectors()[1]), "compiles, n = %d", n)
		stats := d.Stats()
		assert.Equal(t, n, stats.Lookups)
		assert.Equal(t, n-1, stats.Hits)
		assert.Equal(t, 1, stats.Misses)
		assert.Len(t, d.Entries(), 1)
	}
}

func TestObtainDistinguishesRoutines(t *testing.T) {
	tests := []struct {
		name   string
		a, b   *host.Routine
		shared bool
	}{
		{"same everything",
			host.NewFrame([]string{"x"}, []string{"c"}).Routine("int h;", "return 1;"),
			host.NewFrame([]string{"x"}, []string{"c"}).Routine("int h;", "return 1;"), true},
		{"header",
			host.NewFrame(nil, nil).Routine("int h;", "return 1;"),
			host.NewFrame(nil, nil).Routine("int g;", "return 1;"), false},
		{"impl",
			host.NewFrame(nil, nil).Routine("", "return 1;"),
			host.NewFrame(nil, nil).Routine("", "return 2;"), false},
		{"locals order",
			host.NewFrame([]string{"x", "y"}, nil).Routine("", "return get_x;"),
			host.NewFrame([]string{"y", "x"}, nil).Routine("", "return get_x;"), false},
		{"captures order",
			host.NewFrame(nil, []string{"a", "b"}).Routine("", "return get_a;"),
			host.NewFrame(nil, []string{"b", "a"}).Routine("", "return get_a;"), false},
		{"local or capture",
			host.NewFrame([]string{"x"}, nil).Routine("", "return get_x;"),
			host.NewFrame(nil, []string{"x"}).Routine("", "return get_x;"), false},
		{"extra local",
			host.NewFrame([]string{"x"}, nil).Routine("", "return 0;"),
			host.NewFrame([]string{"x", "y"}, nil).Routine("", "return 0;"), false},
		{"header and impl split differently",
			host.NewFrame(nil, nil).Routine("ab", "c"),
			host.NewFrame(nil, nil).Routine("a", "bc"), false},
	}
	for _, indexed := range []bool{true, false} {
		for _, test := range tests {
			fb := test_helper.NewFakeBackend()
			d := newDispatcher(t, fb, cfunc.WithIndex(indexed))
			_, err := d.Obtain(test.a)
			require.NoError(t, err)
			_, err = d.Obtain(test.b)
			require.NoError(t, err)
			want := 2
			if test.shared {
				want = 1
			}
			assert.Equal(t, want, fb.Count(), "%s, indexed = %v", test.name, indexed)
			if !test.shared {
				assert.NotEqual(t, string(fb.Units[0]), string(fb.Units[1]), test.name)
			}
		}
	}
}

func TestRecentlyUsedAreComparedFirst(t *testing.T) {
	fb := test_helper.NewFakeBackend()
	d := newDispatcher(t, fb, cfunc.WithIndex(false))
	frame := host.NewFrame(nil, nil)
	for _, impl := range []string{"return 1;", "return 2;", "return 3;"} {
		_, err := d.Obtain(frame.Routine("", impl))
		require.NoError(t, err)
	}
	// Three entries, so the oldest is compared last.
	before := d.Stats().Comparisons
	_, err := d.Obtain(frame.Routine("", "return 1;"))
	require.NoError(t, err)
	assert.Equal(t, 3, d.Stats().Comparisons-before)

	// Now it is the most recent.
	before = d.Stats().Comparisons
	_, err = d.Obtain(frame.Routine("", "return 1;"))
	require.NoError(t, err)
	assert.Equal(t, 1, d.Stats().Comparisons-before)

	var impls []string
	for _, e := range d.Entries() {
		impls = append(impls, string(e.Impl()))
	}
	if diff := cmp.Diff([]string{"return 1;", "return 3;", "return 2;"}, impls); diff != "" {
		t.Fatalf("unexpected recency order (-want +got):\n%s", diff)
	}
	assert.Equal(t, 3, fb.Count())
}

func TestIndexedLookupComparesOnlyCandidates(t *testing.T) {
	fb := test_helper.NewFakeBackend()
	d := newDispatcher(t, fb, cfunc.WithIndex(true))
	frame := host.NewFrame(nil, nil)
	for _, impl := range []string{"return 1;", "return 2;", "return 3;"} {
		_, err := d.Obtain(frame.Routine("", impl))
		require.NoError(t, err)
	}
	before := d.Stats().Comparisons
	_, err := d.Obtain(frame.Routine("", "return 1;"))
	require.NoError(t, err)
	assert.Equal(t, 1, d.Stats().Comparisons-before)
	assert.Equal(t, 3, fb.Count())
}

func TestFailedRoutineStaysUnusable(t *testing.T) {
	fb := test_helper.NewFakeBackend()
	fb.Err = report.CreateErr("cfunc/load/open", "/tmp/cfunc.1.1.so", "no such file")
	d := newDispatcher(t, fb)
	r := host.NewFrame(nil, nil).Routine("", "return oops;")

	for i := 0; i < 3; i++ {
		fn, err := d.Obtain(r)
		require.NoError(t, err, "a failed build is not an error of Obtain")
		_, err = fn.Call()
		require.Error(t, err)
		assert.True(t, report.Is(err, "cfunc/call/unusable"))
		assert.True(t, report.Is(err, "cfunc/load/open"))
	}
	assert.Equal(t, 1, fb.Count())
	entries := d.Entries()
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Built())
	assert.False(t, entries[0].Usable())
	assert.True(t, report.Is(entries[0].Failure(), "cfunc/load/open"))

	// Fixing the toolchain doesn't help a routine that has already failed.
	fb.Err = nil
	fn, err := d.Obtain(r)
	require.NoError(t, err)
	_, err = fn.Call()
	assert.True(t, report.Is(err, "cfunc/call/unusable"))
	assert.Equal(t, 1, fb.Count())
}

func TestRetryFailed(t *testing.T) {
	fb := test_helper.NewFakeBackend()
	fb.Err = errors.New("toolchain on fire")
	d := newDispatcher(t, fb, cfunc.WithRetryFailed(true))
	r := host.NewFrame([]string{"x"}, nil).Routine("", "return get_x;")

	fn, err := d.Obtain(r)
	require.NoError(t, err)
	_, err = fn.Call(1)
	assert.Error(t, err)

	fb.Err = nil
	fn, err = d.Obtain(r)
	require.NoError(t, err)
	got, err := fn.Call(5)
	require.NoError(t, err)
	assert.Equal(t, int64(5), got)
	assert.Equal(t, 2, fb.Count())

	// Once it works it is never rebuilt.
	_, err = d.Obtain(r)
	require.NoError(t, err)
	assert.Equal(t, 2, fb.Count())
	assert.Len(t, d.Entries(), 1)
}

func TestEviction(t *testing.T) {
	fb := test_helper.NewFakeBackend()
	d := newDispatcher(t, fb, cfunc.WithEviction(cfunc.MaxEntries(2)))
	frame := host.NewFrame(nil, nil)
	for _, impl := range []string{"return 1;", "return 2;", "return 3;"} {
		_, err := d.Obtain(frame.Routine("", impl))
		require.NoError(t, err)
	}
	assert.Len(t, d.Entries(), 2)
	assert.Equal(t, 1, d.Stats().Evictions)

	// The first was the least recently used, so it has to be built again.
	_, err := d.Obtain(frame.Routine("", "return 1;"))
	require.NoError(t, err)
	assert.Equal(t, 4, fb.Count())
	assert.Equal(t, 2, d.Stats().Evictions)
	assert.Equal(t, float64(2), testutil.ToFloat64(d.PrometheusCollectors()[3]))
}

func TestClosuresShareCodeNotCells(t *testing.T) {
	fb := test_helper.NewFakeBackend()
	d := newDispatcher(t, fb)
	one := host.NewFrame(nil, []string{"n"})
	two := host.NewFrame(nil, []string{"n"})

	f, err := d.Obtain(one.Routine("", "set_n(get_n + 1); return get_n;"))
	require.NoError(t, err)
	for want := int64(1); want <= 3; want++ {
		got, err := f.Call()
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	g, err := d.Obtain(two.Routine("", "set_n(get_n + 1); return get_n;"))
	require.NoError(t, err)
	got, err := g.Call()
	require.NoError(t, err)
	assert.Equal(t, int64(1), got)

	assert.Equal(t, 1, fb.Count())
	assert.Equal(t, []int64{3}, one.Snapshot())
	assert.Equal(t, []int64{1}, two.Snapshot())
}

type storeless struct {
	locals, captures []string
	header, impl     any
	err              error
	calls            int
}

func (s *storeless) Locals() []string   { return s.locals }
func (s *storeless) Captures() []string { return s.captures }
func (s *storeless) Produce() (any, any, error) {
	s.calls++
	return s.header, s.impl, s.err
}

func TestProducerContract(t *testing.T) {
	tests := []struct {
		p    *storeless
		want string
	}{
		{&storeless{captures: []string{"c"}, header: "", impl: "return 0;"}, "cfunc/producer/capture"},
		{&storeless{err: errors.New("no body")}, "cfunc/producer/a"},
		{&storeless{header: nil, impl: "return 0;"}, "cfunc/producer/b"},
		{&storeless{header: true, impl: "return 0;"}, "cfunc/producer/b"},
		{&storeless{header: "", impl: map[string]int{}}, "cfunc/producer/c"},
		{&storeless{header: "", impl: []string{"return 0;"}}, "cfunc/producer/c"},
	}
	for _, test := range tests {
		fb := test_helper.NewFakeBackend()
		d := newDispatcher(t, fb)
		_, err := d.Obtain(test.p)
		require.Error(t, err)
		assert.Equal(t, test.want, test_helper.ErrorId(err))
		assert.Equal(t, 1, test.p.calls)
		assert.Equal(t, 0, fb.Count())
		assert.Empty(t, d.Entries())
	}
}

func TestProducerResultsAreCoerced(t *testing.T) {
	fb := test_helper.NewFakeBackend()
	d := newDispatcher(t, fb)
	p := &storeless{header: []byte("int h;"), impl: 42}
	_, err := d.Obtain(p)
	require.NoError(t, err)
	require.Len(t, d.Entries(), 1)
	assert.Equal(t, "int h;", string(d.Entries()[0].Header()))
	assert.Equal(t, "42", string(d.Entries()[0].Impl()))

	// A string with the same text is the same routine.
	_, err = d.Obtain(&storeless{header: "int h;", impl: "42"})
	require.NoError(t, err)
	assert.Equal(t, 1, fb.Count())
}

func TestSourceDoesNotCompile(t *testing.T) {
	fb := test_helper.NewFakeBackend()
	d := newDispatcher(t, fb)
	r := host.NewFrame([]string{"x"}, nil).Routine("", "return get_x;")
	unit, err := d.Source(r)
	require.NoError(t, err)
	assert.Contains(t, string(unit), "#define I_x 1\n")
	assert.Equal(t, 0, fb.Count())
	assert.Equal(t, 0, d.Stats().Lookups)

	_, err = d.Obtain(r)
	require.NoError(t, err)
	assert.Equal(t, string(unit), string(fb.Units[0]))
}

type backendFunc func(unit []byte) (cfunc.Native, error)

func (f backendFunc) Compile(unit []byte) (cfunc.Native, error) { return f(unit) }

type recorder struct {
	events []cfunc.BuildEvent
}

func (r *recorder) Record(ev cfunc.BuildEvent) error {
	r.events = append(r.events, ev)
	return nil
}

func TestRecorder(t *testing.T) {
	mock := clock.NewMock()
	mock.Add(time.Hour)
	fail := false
	backend := backendFunc(func(unit []byte) (cfunc.Native, error) {
		mock.Add(2 * time.Second)
		if fail {
			return nil, report.CreateErr("cfunc/build/launch", "cc")
		}
		return test_helper.Counter, nil
	})
	rec := &recorder{}
	d := cfunc.New(cfunc.WithBackend(backend), cfunc.WithClock(mock), cfunc.WithRecorder(rec))
	frame := host.NewFrame([]string{"x"}, []string{"c"})

	_, err := d.Obtain(frame.Routine("int h;", "return 1;"))
	require.NoError(t, err)
	_, err = d.Obtain(frame.Routine("int h;", "return 1;"))
	require.NoError(t, err)
	fail = true
	_, err = d.Obtain(frame.Routine("int h;", "return 2;"))
	require.NoError(t, err)

	require.Len(t, rec.events, 2)
	ev := rec.events[0]
	assert.Equal(t, "ok", ev.Outcome)
	assert.Equal(t, 2*time.Second, ev.Duration)
	assert.Equal(t, mock.Now().Add(-4*time.Second), ev.At)
	assert.Equal(t, "int h;", string(ev.Header))
	assert.Equal(t, []string{"x"}, ev.Locals)
	assert.Equal(t, []string{"c"}, ev.Captures)
	assert.NoError(t, ev.Err)

	assert.Equal(t, "cfunc/build/launch", rec.events[1].Outcome)
	assert.Error(t, rec.events[1].Err)
}

func TestBackendReturningNothing(t *testing.T) {
	d := cfunc.New(cfunc.WithBackend(backendFunc(func([]byte) (cfunc.Native, error) { return nil, nil })))
	fn, err := d.Obtain(host.NewFrame(nil, nil).Routine("", "return 0;"))
	require.NoError(t, err)
	_, err = fn.Call()
	assert.True(t, report.Is(err, "cfunc/call/unusable"))
}
