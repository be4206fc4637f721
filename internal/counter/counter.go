// Package counter provides the monotonic id generator that package state
// uses for fact ids. Grounded on
// original_source/ide/src/counter.rs: a single-field wrapper that only ever
// moves forward, scoped to one analysis invocation (no process-wide
// singleton), per spec.md §9's "Global state" design note.
package counter

// Counter hands out monotonically increasing ids starting at 0.
type Counter struct {
	next uint64
}

// Get returns the current value and advances the counter.
func (c *Counter) Get() uint64 {
	v := c.next
	c.next++

	return v
}

// Peek returns the next value that Get would return, without advancing.
func (c *Counter) Peek() uint64 {
	return c.next
}
