package stats

import "sort"

// Entry is one counted key.
type Entry struct {
	Key   string
	Count int
}

// Counter counts string keys while remembering first-encounter order, so
// ties in MostCommon resolve to whichever key was seen first.
type Counter struct {
	order  []string
	counts map[string]int
}

// NewCounter returns an empty counter.
func NewCounter() *Counter {
	return &Counter{counts: make(map[string]int)}
}

// Add increments the count for key.
func (c *Counter) Add(key string) {
	if _, ok := c.counts[key]; !ok {
		c.order = append(c.order, key)
	}
	c.counts[key]++
}

// Get returns the count for key, zero if unseen.
func (c *Counter) Get(key string) int {
	return c.counts[key]
}

// Len returns the number of distinct keys.
func (c *Counter) Len() int {
	return len(c.order)
}

// MostCommon returns entries sorted by descending count, ties in
// first-encounter order. n <= 0 returns all entries.
func (c *Counter) MostCommon(n int) []Entry {
	entries := make([]Entry, 0, len(c.order))
	for _, k := range c.order {
		entries = append(entries, Entry{Key: k, Count: c.counts[k]})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Count > entries[j].Count
	})
	if n > 0 && len(entries) > n {
		entries = entries[:n]
	}
	return entries
}
