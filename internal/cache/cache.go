// Package cache provides the in-process LRU of compiled rule programs.
//
// Scans carry their rule set in the request, so identical rule sets
// arriving back to back would otherwise recompile the same CEL
// expressions on every call. Compiled programs are not serialisable,
// which is why this cache is local-only.
package cache

import (
	"container/list"
	"sync"

	"github.com/google/cel-go/cel"
)

// ProgramCache is a thread-safe LRU of compiled CEL programs keyed by
// expression text.
type ProgramCache struct {
	mu      sync.Mutex
	maxSize int
	items   map[string]*list.Element
	order   *list.List
}

type programEntry struct {
	expr    string
	program cel.Program
}

// NewProgramCache creates a program cache with the given capacity.
func NewProgramCache(maxSize int) *ProgramCache {
	if maxSize <= 0 {
		maxSize = 1024
	}
	return &ProgramCache{
		maxSize: maxSize,
		items:   make(map[string]*list.Element),
		order:   list.New(),
	}
}

// Get returns the cached program for an expression, if present.
func (c *ProgramCache) Get(expr string) (cel.Program, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[expr]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(elem)
	return elem.Value.(*programEntry).program, true
}

// Put stores a compiled program, evicting the least recently used entry
// when over capacity.
func (c *ProgramCache) Put(expr string, program cel.Program) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[expr]; ok {
		c.order.MoveToFront(elem)
		elem.Value.(*programEntry).program = program
		return
	}

	elem := c.order.PushFront(&programEntry{expr: expr, program: program})
	c.items[expr] = elem

	for c.order.Len() > c.maxSize {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.order.Remove(oldest)
		delete(c.items, oldest.Value.(*programEntry).expr)
	}
}

// Stats returns current size and capacity.
func (c *ProgramCache) Stats() (size int, capacity int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len(), c.maxSize
}
