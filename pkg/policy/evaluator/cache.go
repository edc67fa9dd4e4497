package evaluator

import (
	"container/list"
	"fmt"
	"sort"
	"strings"
	"sync"

	"praxis-hq/charter/pkg/predicate"
)

// decisionCache is a small LRU keyed by the normalized context. Each snapshot
// owns its own cache, so a generation swap invalidates everything at once
// without any per-entry bookkeeping.
type decisionCache struct {
	mu       sync.Mutex
	capacity int
	order    *list.List
	entries  map[string]*list.Element
}

type cacheEntry struct {
	key      string
	decision Decision
}

func newDecisionCache(capacity int) *decisionCache {
	if capacity <= 0 {
		return nil
	}
	return &decisionCache{
		capacity: capacity,
		order:    list.New(),
		entries:  make(map[string]*list.Element, capacity),
	}
}

// cacheKey builds a stable textual form of the context. Keys are sorted so
// two maps with the same entries always produce the same key.
func cacheKey(ctx predicate.Context) string {
	fields := make([]string, 0, len(ctx))
	for f := range ctx {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	var b strings.Builder
	for _, f := range fields {
		fmt.Fprintf(&b, "%s=%v;", f, ctx[f])
	}
	return b.String()
}

func (c *decisionCache) get(key string) (Decision, bool) {
	if c == nil {
		return Decision{}, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return Decision{}, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*cacheEntry).decision, true
}

func (c *decisionCache) put(key string, d Decision) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		el.Value.(*cacheEntry).decision = d
		c.order.MoveToFront(el)
		return
	}
	c.entries[key] = c.order.PushFront(&cacheEntry{key: key, decision: d})
	if c.order.Len() > c.capacity {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).key)
	}
}
