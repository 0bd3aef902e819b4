package cfunc

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchesIsStructuralIdentity(t *testing.T) {
	e := entryFor("int h;", "return 1;", []string{"x", "y"}, []string{"c"})
	tests := []struct {
		header, impl     string
		locals, captures []string
		want             bool
	}{
		{"int h;", "return 1;", []string{"x", "y"}, []string{"c"}, true},
		{"int g;", "return 1;", []string{"x", "y"}, []string{"c"}, false},
		{"int h;", "return 2;", []string{"x", "y"}, []string{"c"}, false},
		{"int h;", "return 1;", []string{"y", "x"}, []string{"c"}, false},
		{"int h;", "return 1;", []string{"x"}, []string{"c"}, false},
		{"int h;", "return 1;", []string{"x", "y"}, []string{"d"}, false},
		{"int h;", "return 1;", []string{"x", "y"}, nil, false},
		{"int h;", "return 1;", []string{"x", "y", "c"}, nil, false},
	}
	for _, test := range tests {
		cand := newCandidate(names{test.locals, test.captures}, []byte(test.header), []byte(test.impl))
		assert.Equal(t, test.want, e.matches(cand), "%+v", test)
	}
}

func TestIdentityKeyIsUnambiguous(t *testing.T) {
	assert.NotEqual(t,
		identityKey([]byte("ab"), []byte("c"), nil, nil),
		identityKey([]byte("a"), []byte("bc"), nil, nil))
	assert.NotEqual(t,
		identityKey(nil, nil, []string{"ab"}, nil),
		identityKey(nil, nil, []string{"a", "b"}, nil))
	assert.NotEqual(t,
		identityKey(nil, nil, []string{"x"}, nil),
		identityKey(nil, nil, nil, []string{"x"}))
	assert.Equal(t,
		identityKey([]byte("h"), []byte("i"), []string{"x"}, []string{"y"}),
		identityKey([]byte("h"), []byte("i"), []string{"x"}, []string{"y"}))
}

func TestCacheFindAndCreate(t *testing.T) {
	for _, indexed := range []bool{true, false} {
		c := NewCache(indexed, nil)
		b := names{[]string{"x"}, nil}
		assert.Nil(t, c.Find(b, nil, []byte("return 1;")))
		e := c.Create(b, nil, []byte("return 1;"))
		assert.False(t, e.Built())
		assert.Same(t, e, c.Find(b, nil, []byte("return 1;")))
		assert.Nil(t, c.Find(b, nil, []byte("return 2;")))
		assert.Equal(t, Stats{Lookups: 3, Hits: 1, Misses: 2, Comparisons: c.Stats().Comparisons}, c.Stats())
		assert.Equal(t, 1, c.Len())
	}
}

func TestCacheCopiesItsInputs(t *testing.T) {
	c := NewCache(true, nil)
	locals := []string{"x"}
	impl := []byte("return get_x;")
	e := c.Create(names{locals, nil}, nil, impl)
	locals[0] = "y"
	impl[0] = 'R'
	assert.Equal(t, []string{"x"}, e.Locals())
	assert.Equal(t, "return get_x;", string(e.Impl()))

	// Nor can the accessors be used to change an entry.
	e.Locals()[0] = "z"
	assert.Equal(t, []string{"x"}, e.Locals())
}

func TestCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewCache(true, MaxEntries(2))
	b := names{}
	one := c.Create(b, nil, []byte("1"))
	c.Create(b, nil, []byte("2"))
	require.NotNil(t, c.Find(b, nil, []byte("1")))
	c.Create(b, nil, []byte("3"))

	var impls []string
	for _, e := range c.Entries() {
		impls = append(impls, string(e.Impl()))
	}
	if diff := cmp.Diff([]string{"3", "1"}, impls); diff != "" {
		t.Fatalf("unexpected entries (-want +got):\n%s", diff)
	}
	assert.Same(t, one, c.Find(b, nil, []byte("1")))
	assert.Nil(t, c.Find(b, nil, []byte("2")))
	assert.Equal(t, 1, c.Stats().Evictions)
	assert.Len(t, c.index, 2)
}

func TestUnboundedNeverEvicts(t *testing.T) {
	c := NewCache(false, Unbounded{})
	for i := 0; i < 1000; i++ {
		c.Create(names{}, nil, []byte{byte(i), byte(i >> 8)})
	}
	assert.Equal(t, 1000, c.Len())
	assert.Equal(t, 0, c.Stats().Evictions)
}
