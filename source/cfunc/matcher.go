package cfunc

import "bytes"

// matches applies the identity checks in order of cost, stopping at the first difference: lengths,
// then names, then the source byte by byte.
func (e *Entry) matches(c *candidate) bool {
	if len(e.header) != len(c.header) || len(e.impl) != len(c.impl) || len(e.captures) != len(c.captures) {
		return false
	}
	if !sameNames(e.locals, c.locals) {
		return false
	}
	if !sameNames(e.captures, c.captures) {
		return false
	}
	if !bytes.Equal(e.header, c.header) {
		return false
	}
	return bytes.Equal(e.impl, c.impl)
}

// Same names in the same order.
func sameNames(xs, ys []string) bool {
	if len(xs) != len(ys) {
		return false
	}
	for i, x := range xs {
		if x != ys[i] {
			return false
		}
	}
	return true
}

// find looks for an entry structurally identical to the candidate, checking the most recently used
// first. A found entry is moved to the front.
func (c *Cache) find(cand *candidate) *Entry {
	c.stats.Lookups++
	var found *Entry
	if c.indexed {
		for _, e := range c.index[cand.key] {
			c.stats.Comparisons++
			if e.matches(cand) {
				found = e
				break
			}
		}
	} else {
		for el := c.order.Front(); el != nil; el = el.Next() {
			e := el.Value.(*Entry)
			c.stats.Comparisons++
			if e.matches(cand) {
				found = e
				break
			}
		}
	}
	if found == nil {
		c.stats.Misses++
		return nil
	}
	c.stats.Hits++
	c.order.MoveToFront(found.elem)
	return found
}

// Find returns the cached entry for the routine with the given bindings and source, or nil if
// there is none.
func (c *Cache) Find(b Bindings, header, impl []byte) *Entry {
	return c.find(newCandidate(b, header, impl))
}
