package cfunc

import (
	"container/list"
)

// The Cache holds one entry per distinct routine, most recently used first. By default it also
// keeps a hash index over the entries so that a lookup only compares the request against entries
// that could possibly be identical to it; the comparison itself is always the full structural one.
type Cache struct {
	order   *list.List // Of *Entry, front is most recently used.
	index   map[uint64][]*Entry
	indexed bool
	policy  EvictionPolicy
	stats   Stats
}

type Stats struct {
	Lookups     int
	Hits        int
	Misses      int
	Comparisons int // Entries compared against a request, summed over all lookups.
	Evictions   int
}

// An EvictionPolicy decides when the cache is too big.
type EvictionPolicy interface {
	// Evict reports whether a cache holding n entries should drop its least recently used one.
	Evict(n int) bool
}

// Unbounded never evicts.
type Unbounded struct{}

func (Unbounded) Evict(n int) bool { return false }

// MaxEntries keeps at most that many entries.
type MaxEntries int

func (m MaxEntries) Evict(n int) bool { return n > int(m) }

func NewCache(indexed bool, policy EvictionPolicy) *Cache {
	if policy == nil {
		policy = Unbounded{}
	}
	return &Cache{
		order:   list.New(),
		index:   make(map[uint64][]*Entry),
		indexed: indexed,
		policy:  policy,
	}
}

// create makes a new entry for the candidate and puts it at the front. The candidate's fields are
// copied, since they may belong to the caller.
func (c *Cache) create(cand *candidate) *Entry {
	e := &Entry{
		header:   append([]byte{}, cand.header...),
		impl:     append([]byte{}, cand.impl...),
		locals:   append([]string{}, cand.locals...),
		captures: append([]string{}, cand.captures...),
		key:      cand.key,
	}
	e.elem = c.order.PushFront(e)
	c.index[e.key] = append(c.index[e.key], e)
	for c.policy.Evict(c.order.Len()) {
		c.remove(c.order.Back().Value.(*Entry))
		c.stats.Evictions++
	}
	return e
}

// Create adds a new, uncompiled entry for the routine with the given bindings and source.
func (c *Cache) Create(b Bindings, header, impl []byte) *Entry {
	return c.create(newCandidate(b, header, impl))
}

func (c *Cache) remove(e *Entry) {
	c.order.Remove(e.elem)
	bucket := c.index[e.key]
	for i, other := range bucket {
		if other == e {
			bucket = append(bucket[:i], bucket[i+1:]...)
			break
		}
	}
	if len(bucket) == 0 {
		delete(c.index, e.key)
	} else {
		c.index[e.key] = bucket
	}
}

func (c *Cache) Len() int {
	return c.order.Len()
}

// Entries returns the entries, most recently used first.
func (c *Cache) Entries() []*Entry {
	result := make([]*Entry, 0, c.order.Len())
	for el := c.order.Front(); el != nil; el = el.Next() {
		result = append(result, el.Value.(*Entry))
	}
	return result
}

func (c *Cache) Stats() Stats {
	return c.stats
}
