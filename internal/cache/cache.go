package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// Clock supplies the current time. Tests inject a fake one.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock is the wall clock.
var SystemClock Clock = systemClock{}

// Entry is a stored value and the time it was written.
type Entry[T any] struct {
	Key       string
	Data      T
	Timestamp time.Time
}

// TTLCache is a bounded map whose entries expire ttl after their write.
// When full, the oldest insertion is evicted; reads do not refresh order.
type TTLCache[T any] struct {
	capacity  int
	ttl       time.Duration
	clock     Clock
	items     map[string]*list.Element
	evictList *list.List
	mu        sync.Mutex
}

func New[T any](capacity int, ttl time.Duration, clock Clock) *TTLCache[T] {
	if clock == nil {
		clock = SystemClock
	}
	return &TTLCache[T]{
		capacity:  capacity,
		ttl:       ttl,
		clock:     clock,
		items:     make(map[string]*list.Element),
		evictList: list.New(),
	}
}

// Get returns a live entry. An expired entry is removed and reported as a miss.
func (c *TTLCache[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	elem, ok := c.items[key]
	if !ok {
		return zero, false
	}

	entry := elem.Value.(*Entry[T])
	if !c.alive(entry) {
		c.removeElement(elem)
		return zero, false
	}
	return entry.Data, true
}

func (c *TTLCache[T]) Set(key string, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	if elem, ok := c.items[key]; ok {
		// overwrite counts as a fresh insertion
		c.evictList.Remove(elem)
	}

	entry := &Entry[T]{Key: key, Data: value, Timestamp: now}
	c.items[key] = c.evictList.PushFront(entry)

	for c.capacity > 0 && c.evictList.Len() > c.capacity {
		c.removeOldest()
	}
}

func (c *TTLCache[T]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.removeElement(elem)
	}
}

func (c *TTLCache[T]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*list.Element)
	c.evictList.Init()
}

// Len counts stored entries, expired ones included until swept.
func (c *TTLCache[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.evictList.Len()
}

func (c *TTLCache[T]) alive(entry *Entry[T]) bool {
	return c.clock.Now().Sub(entry.Timestamp) < c.ttl
}

func (c *TTLCache[T]) removeOldest() {
	if elem := c.evictList.Back(); elem != nil {
		c.removeElement(elem)
	}
}

func (c *TTLCache[T]) removeElement(elem *list.Element) {
	c.evictList.Remove(elem)
	delete(c.items, elem.Value.(*Entry[T]).Key)
}

// CleanExpired removes every expired entry and returns how many went.
func (c *TTLCache[T]) CleanExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	var toRemove []*list.Element
	for elem := c.evictList.Back(); elem != nil; elem = elem.Prev() {
		if !c.alive(elem.Value.(*Entry[T])) {
			toRemove = append(toRemove, elem)
		}
	}
	for _, elem := range toRemove {
		c.removeElement(elem)
	}
	return len(toRemove)
}

// StartCleanup sweeps expired entries every interval until ctx is done.
func (c *TTLCache[T]) StartCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.CleanExpired()
			case <-ctx.Done():
				return
			}
		}
	}()
}
