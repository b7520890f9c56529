package registry

import "fmt"

// Handle addresses one arena slot. A handle outlives its value only as a stale key: once the
// slot is freed its generation moves on and lookups with the old handle miss.
type Handle struct {
	Index      uint32 `json:"index"`
	Generation uint32 `json:"generation"`
}

func (h Handle) String() string {
	return fmt.Sprintf("%d@%d", h.Index, h.Generation)
}

type slot[T any] struct {
	value      T
	generation uint32
	live       bool
}

// Arena is a generation-checked slot map for local objects.
type Arena[T any] struct {
	slots []slot[T]
	free  []uint32
	live  int
}

func NewArena[T any]() *Arena[T] {
	return &Arena[T]{}
}

func (a *Arena[T]) Insert(v T) Handle {
	if n := len(a.free); n > 0 {
		idx := a.free[n-1]
		a.free = a.free[:n-1]
		s := &a.slots[idx]
		s.value = v
		s.live = true
		a.live++
		return Handle{Index: idx, Generation: s.generation}
	}
	a.slots = append(a.slots, slot[T]{value: v, live: true})
	a.live++
	return Handle{Index: uint32(len(a.slots) - 1)}
}

func (a *Arena[T]) Get(h Handle) (T, bool) {
	if p := a.Ptr(h); p != nil {
		return *p, true
	}
	var zero T
	return zero, false
}

// Ptr returns a pointer into the arena for in-place mutation, or nil for stale handles.
func (a *Arena[T]) Ptr(h Handle) *T {
	if int(h.Index) >= len(a.slots) {
		return nil
	}
	s := &a.slots[h.Index]
	if !s.live || s.generation != h.Generation {
		return nil
	}
	return &s.value
}

func (a *Arena[T]) Remove(h Handle) bool {
	if a.Ptr(h) == nil {
		return false
	}
	s := &a.slots[h.Index]
	var zero T
	s.value = zero
	s.live = false
	s.generation++
	a.free = append(a.free, h.Index)
	a.live--
	return true
}

func (a *Arena[T]) Len() int {
	return a.live
}

// Each visits live values in slot order.
func (a *Arena[T]) Each(fn func(Handle, *T)) {
	for i := range a.slots {
		s := &a.slots[i]
		if !s.live {
			continue
		}
		fn(Handle{Index: uint32(i), Generation: s.generation}, &s.value)
	}
}
