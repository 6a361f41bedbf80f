package entity

import (
	"container/heap"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"cell-annotator/internal/errs"
)

// idHeap is a min-heap of released ids.
type idHeap []int

func (h idHeap) Len() int           { return len(h) }
func (h idHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h idHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *idHeap) Push(x any)        { *h = append(*h, x.(int)) }
func (h *idHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// idAllocator hands out the smallest positive id not in use.
//
// Every unused id below next is in free; entries in free that have since been
// taken explicitly are skipped when popped. Ids at or above next may be in use
// already and are stepped over when the frontier advances.
type idAllocator struct {
	used map[int]bool
	next int
	free idHeap
}

func newIDAllocator() idAllocator {
	return idAllocator{used: make(map[int]bool), next: 1}
}

func (a *idAllocator) inUse(id int) bool { return a.used[id] }

// take marks id as used.
func (a *idAllocator) take(id int) {
	a.used[id] = true
}

// allocate returns and marks the smallest unused positive id.
func (a *idAllocator) allocate() int {
	for a.free.Len() > 0 {
		id := heap.Pop(&a.free).(int)
		if !a.used[id] {
			a.used[id] = true
			return id
		}
	}
	for a.used[a.next] {
		a.next++
	}
	id := a.next
	a.next++
	a.used[id] = true
	return id
}

// peek returns the id allocate would return without taking it.
func (a *idAllocator) peek() int {
	for a.free.Len() > 0 {
		if !a.used[a.free[0]] {
			return a.free[0]
		}
		heap.Pop(&a.free)
	}
	for a.used[a.next] {
		a.next++
	}
	return a.next
}

// release returns id to the pool.
func (a *idAllocator) release(id int) {
	if !a.used[id] {
		return
	}
	delete(a.used, id)
	if id < a.next {
		heap.Push(&a.free, id)
	}
}

// ParseID validates a loosely typed entity id such as a decoded JSON value.
// Integers and integer strings are accepted; floats, including whole ones
// like 1.0, and non-positive values fail with ErrInvalidID.
func ParseID(v any) (int, error) {
	var id int
	switch x := v.(type) {
	case int:
		id = x
	case int32:
		id = int(x)
	case int64:
		id = int(x)
	case uint32:
		id = int(x)
	case json.Number:
		return parseIDString(x.String())
	case string:
		return parseIDString(x)
	default:
		return 0, fmt.Errorf("%w: %v (%T)", errs.ErrInvalidID, v, v)
	}
	if id <= 0 {
		return 0, fmt.Errorf("%w: %d", errs.ErrInvalidID, id)
	}
	return id, nil
}

func parseIDString(s string) (int, error) {
	id, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", errs.ErrInvalidID, s)
	}
	if id <= 0 {
		return 0, fmt.Errorf("%w: %d", errs.ErrInvalidID, id)
	}
	return id, nil
}
