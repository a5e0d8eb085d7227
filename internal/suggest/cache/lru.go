package cache

import (
	"container/list"

	"github.com/dshills/nextedit/internal/engine/document"
)

// DefaultCapacity is the shared cache's entry limit across all documents.
const DefaultCapacity = 50

// Key identifies a cached suggestion: the document plus the exact text
// the suggestion was computed from.
type Key struct {
	Doc  document.ID
	Text string
}

// lru is a fixed-capacity least-recently-used map from Key to *Entry.
// Not safe for concurrent use; the Store serializes access.
type lru struct {
	capacity int
	ll       *list.List
	items    map[Key]*list.Element

	// onEvict is called for every entry leaving the cache, whether by
	// capacity, replacement, or explicit removal.
	onEvict func(*Entry)
}

type lruItem struct {
	key   Key
	entry *Entry
}

func newLRU(capacity int, onEvict func(*Entry)) *lru {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &lru{
		capacity: capacity,
		ll:       list.New(),
		items:    make(map[Key]*list.Element, capacity),
		onEvict:  onEvict,
	}
}

// get returns the entry for key and marks it most recently used.
func (c *lru) get(key Key) (*Entry, bool) {
	el, ok := c.items[key]
	if !ok {
		return nil, false
	}
	c.ll.MoveToFront(el)
	return el.Value.(*lruItem).entry, true
}

// put inserts or replaces the entry for key, evicting the least recently
// used entry when over capacity.
func (c *lru) put(key Key, e *Entry) {
	if el, ok := c.items[key]; ok {
		old := el.Value.(*lruItem)
		if old.entry != e && c.onEvict != nil {
			c.onEvict(old.entry)
		}
		old.entry = e
		c.ll.MoveToFront(el)
		return
	}
	c.items[key] = c.ll.PushFront(&lruItem{key: key, entry: e})
	for c.ll.Len() > c.capacity {
		c.removeElement(c.ll.Back())
	}
}

// remove deletes the entry for key if present.
func (c *lru) remove(key Key) {
	if el, ok := c.items[key]; ok {
		c.removeElement(el)
	}
}

// removeWhere deletes every entry matching pred.
func (c *lru) removeWhere(pred func(Key, *Entry) bool) {
	var victims []*list.Element
	for el := c.ll.Front(); el != nil; el = el.Next() {
		it := el.Value.(*lruItem)
		if pred(it.key, it.entry) {
			victims = append(victims, el)
		}
	}
	for _, el := range victims {
		c.removeElement(el)
	}
}

func (c *lru) removeElement(el *list.Element) {
	it := el.Value.(*lruItem)
	c.ll.Remove(el)
	delete(c.items, it.key)
	if c.onEvict != nil {
		c.onEvict(it.entry)
	}
}

// len returns the number of cached entries.
func (c *lru) len() int {
	return c.ll.Len()
}
