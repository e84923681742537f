// Package ring provides a circular FIFO buffer that can either reject
// items when full or grow by a fixed increment.
package ring

import (
	"errors"
	"fmt"
	"reflect"
)

// ErrInvalidArgument is the error wrapped by the panics raised when
// a nil item or an invalid configuration is handed to the buffer.
var ErrInvalidArgument = errors.New("ring: invalid argument")

const (
	defaultCapacity = 1024
	defaultGrowBy   = 2
)

type Config struct {
	// Capacity is the initial size of the backing storage.
	// It must be at least 1 for bounded buffers.
	Capacity int
	// Unbounded makes Add and AddAll always succeed by growing the storage.
	Unbounded bool
	// GrowBy is the number of slots added every time an unbounded buffer grows.
	GrowBy int
}

func NewDefaultConfig() *Config {
	return &Config{
		Capacity:  defaultCapacity,
		Unbounded: false,
		GrowBy:    defaultGrowBy,
	}
}

// Buffer is a circular buffer of non-nil items.
//
// When head == tail the buffer is either empty or full;
// the wrapped flag tells the two states apart.
//
// Buffer is not safe for concurrent use.
type Buffer[T any] struct {
	items []T

	head    int
	tail    int
	wrapped bool

	unbounded bool
	growBy    int
}

// New returns a buffer configured by cfg. A nil cfg selects [NewDefaultConfig].
// It panics with [ErrInvalidArgument] if the configuration is not usable.
func New[T any](cfg *Config) *Buffer[T] {
	if cfg == nil {
		cfg = NewDefaultConfig()
	}

	if cfg.Capacity < 0 || (!cfg.Unbounded && cfg.Capacity == 0) {
		panic(fmt.Errorf("%w: capacity %d", ErrInvalidArgument, cfg.Capacity))
	}

	growBy := cfg.GrowBy
	if growBy == 0 {
		growBy = defaultGrowBy
	}
	if growBy < 0 {
		panic(fmt.Errorf("%w: grow increment %d", ErrInvalidArgument, growBy))
	}

	return &Buffer[T]{
		items: make([]T, cfg.Capacity),

		unbounded: cfg.Unbounded,
		growBy:    growBy,
	}
}

// NewBounded returns a buffer holding at most capacity items.
func NewBounded[T any](capacity int) *Buffer[T] {
	return New[T](&Config{Capacity: capacity})
}

// NewUnbounded returns a buffer that starts with the given capacity
// and grows by the default increment when full.
func NewUnbounded[T any](capacity int) *Buffer[T] {
	return New[T](&Config{Capacity: capacity, Unbounded: true})
}

func (b *Buffer[T]) isEmpty() bool {
	return b.head == b.tail && !b.wrapped
}

func (b *Buffer[T]) isFull() bool {
	return len(b.items) == 0 || b.wrapped
}

// Len returns the number of items in the buffer.
func (b *Buffer[T]) Len() int {
	capacity := len(b.items)

	if b.wrapped {
		return capacity
	}
	if capacity == 0 {
		return 0
	}

	return (b.tail - b.head + capacity) % capacity
}

// Cap returns the current size of the backing storage.
func (b *Buffer[T]) Cap() int {
	return len(b.items)
}

func (b *Buffer[T]) IsUnbounded() bool {
	return b.unbounded
}

// Add appends item to the buffer. It returns false, leaving the buffer
// untouched, if the buffer is bounded and full.
// It panics with [ErrInvalidArgument] if item is nil.
func (b *Buffer[T]) Add(item T) bool {
	if isNil(item) {
		panic(fmt.Errorf("%w: nil item", ErrInvalidArgument))
	}

	if b.isFull() {
		if !b.unbounded {
			return false
		}

		b.grow(b.Len() + 1)
	}

	b.push(item)

	return true
}

// AddAll appends all the items or none of them. On a bounded buffer it
// returns false if the items do not fit in the free slots.
// It panics with [ErrInvalidArgument] if items or any of its elements is nil.
func (b *Buffer[T]) AddAll(items []T) bool {
	if items == nil {
		panic(fmt.Errorf("%w: nil items", ErrInvalidArgument))
	}

	for idx, item := range items {
		if isNil(item) {
			panic(fmt.Errorf("%w: nil item at index %d", ErrInvalidArgument, idx))
		}
	}

	required := b.Len() + len(items)
	if required > len(b.items) {
		if !b.unbounded {
			return false
		}

		b.grow(required)
	}

	for _, item := range items {
		b.push(item)
	}

	return true
}

// push writes item at the tail. The caller guarantees there is a free slot.
func (b *Buffer[T]) push(item T) {
	b.items[b.tail] = item
	b.tail = (b.tail + 1) % len(b.items)

	if b.tail == b.head {
		b.wrapped = true
	}
}

// grow enlarges the storage by whole increments until it can hold
// required items, moving the current items to the start of the new storage.
func (b *Buffer[T]) grow(required int) {
	newCap := len(b.items)
	for newCap < required {
		newCap += b.growBy
	}

	size := b.Len()
	items := make([]T, newCap)
	b.copyTo(items)

	b.items = items
	b.head = 0
	b.tail = size % newCap
	b.wrapped = size == newCap
}

// Pop removes and returns the oldest item.
// The boolean is false if the buffer is empty.
func (b *Buffer[T]) Pop() (T, bool) {
	var zero T

	if b.isEmpty() {
		return zero, false
	}

	item := b.items[b.head]
	b.items[b.head] = zero

	b.head = (b.head + 1) % len(b.items)
	b.wrapped = false

	return item, true
}

// Peek returns the oldest item without removing it.
func (b *Buffer[T]) Peek() (T, bool) {
	if b.isEmpty() {
		var zero T
		return zero, false
	}

	return b.items[b.head], true
}

// ToSlice returns the items from the oldest to the newest.
func (b *Buffer[T]) ToSlice() []T {
	out := make([]T, b.Len())
	b.copyTo(out)
	return out
}

// Clear drops every item, keeping the current storage.
func (b *Buffer[T]) Clear() {
	clear(b.items)
	b.head = 0
	b.tail = 0
	b.wrapped = false
}

func (b *Buffer[T]) copyTo(dst []T) int {
	size := b.Len()
	if size == 0 {
		return 0
	}

	if b.head < b.tail {
		return copy(dst, b.items[b.head:b.tail])
	}

	n := copy(dst, b.items[b.head:])
	n += copy(dst[n:], b.items[:b.tail])

	return n
}

func isNil(v any) bool {
	if v == nil {
		return true
	}

	switch rv := reflect.ValueOf(v); rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func, reflect.Interface, reflect.UnsafePointer:
		return rv.IsNil()
	}

	return false
}
