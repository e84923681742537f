package ring

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_Buffer_BoundedFull(t *testing.T) {
	assert := assert.New(t)

	capacity := 4
	b := NewBounded[int](capacity)

	for i := range capacity {
		assert.True(b.Add(i))
	}

	assert.Equal(capacity, b.Len())
	assert.False(b.Add(99))
	assert.Equal(capacity, b.Len())
	assert.Equal([]int{0, 1, 2, 3}, b.ToSlice())
}

func Test_Buffer_FIFO(t *testing.T) {
	assert := assert.New(t)

	capacity := 16
	for n := 0; n <= capacity; n++ {
		b := NewBounded[int](capacity)

		for i := range n {
			assert.True(b.Add(i))
		}

		for i := range n {
			item, ok := b.Pop()
			assert.True(ok)
			assert.Equal(i, item)
		}

		_, ok := b.Pop()
		assert.False(ok)
		assert.Equal(0, b.Len())
	}
}

func Test_Buffer_WrapAround(t *testing.T) {
	assert := assert.New(t)

	b := NewBounded[int](3)

	assert.True(b.Add(1))
	assert.True(b.Add(2))
	assert.True(b.Add(3))
	assert.Equal(3, b.Len())

	item, ok := b.Pop()
	assert.True(ok)
	assert.Equal(1, item)
	assert.Equal(2, b.Len())

	// the tail wraps to index 0 and reaches the head again
	assert.True(b.Add(4))
	assert.Equal(3, b.Len())
	assert.False(b.Add(5))

	assert.Equal([]int{2, 3, 4}, b.ToSlice())

	for _, expected := range []int{2, 3, 4} {
		item, ok := b.Pop()
		assert.True(ok)
		assert.Equal(expected, item)
	}

	assert.Equal(0, b.Len())
	_, ok = b.Peek()
	assert.False(ok)
}

func Test_Buffer_SizeNeverExceedsCapacity(t *testing.T) {
	assert := assert.New(t)

	capacity := 7
	b := NewBounded[int](capacity)
	model := []int{}

	rng := rand.New(rand.NewSource(42))
	for i := range 10_000 {
		if rng.Intn(3) > 0 {
			added := b.Add(i)
			assert.Equal(len(model) < capacity, added)
			if added {
				model = append(model, i)
			}
		} else {
			item, ok := b.Pop()
			assert.Equal(len(model) > 0, ok)
			if ok {
				assert.Equal(model[0], item)
				model = model[1:]
			}
		}

		assert.LessOrEqual(b.Len(), capacity)
		assert.Equal(len(model), b.Len())
	}
}

func Test_Buffer_AddAllAtomic(t *testing.T) {
	assert := assert.New(t)

	b := NewBounded[int](5)
	assert.True(b.AddAll([]int{1, 2, 3}))

	assert.False(b.AddAll([]int{4, 5, 6}))
	assert.Equal(3, b.Len())
	assert.Equal([]int{1, 2, 3}, b.ToSlice())

	assert.True(b.AddAll([]int{4, 5}))
	assert.Equal(5, b.Len())
	assert.True(b.AddAll([]int{}))
}

func Test_Buffer_Unbounded(t *testing.T) {
	assert := assert.New(t)

	capacity := 4
	b := NewUnbounded[int](capacity)

	for i := range capacity + 1 {
		assert.True(b.Add(i))
	}

	assert.Equal(capacity+1, b.Len())
	assert.Equal(capacity+2, b.Cap())
	assert.Equal([]int{0, 1, 2, 3, 4}, b.ToSlice())
}

func Test_Buffer_UnboundedGrowAfterWrap(t *testing.T) {
	assert := assert.New(t)

	b := NewUnbounded[int](3)
	assert.True(b.AddAll([]int{1, 2, 3}))

	_, _ = b.Pop()
	assert.True(b.Add(4))

	// full with head in the middle of the storage
	assert.True(b.Add(5))
	assert.Equal(5, b.Cap())
	assert.Equal([]int{2, 3, 4, 5}, b.ToSlice())

	assert.True(b.AddAll([]int{6, 7, 8, 9}))
	assert.Equal(9, b.Cap())
	assert.Equal(8, b.Len())
	assert.Equal([]int{2, 3, 4, 5, 6, 7, 8, 9}, b.ToSlice())

	item, ok := b.Peek()
	assert.True(ok)
	assert.Equal(2, item)
}

func Test_Buffer_UnboundedFromZero(t *testing.T) {
	assert := assert.New(t)

	b := New[string](&Config{Unbounded: true, GrowBy: 3})
	assert.Equal(0, b.Cap())
	assert.Equal(0, b.Len())

	assert.True(b.Add("a"))
	assert.Equal(3, b.Cap())
	assert.Equal(1, b.Len())
}

func Test_Buffer_NilItems(t *testing.T) {
	assert := assert.New(t)

	b := NewBounded[*int](2)

	assert.PanicsWithError(ErrInvalidArgument.Error()+": nil item", func() { b.Add(nil) })
	assert.Panics(func() { b.AddAll(nil) })

	one := 1
	assert.Panics(func() { b.AddAll([]*int{&one, nil}) })
	assert.Equal(0, b.Len())

	assert.True(b.Add(&one))
}

func Test_Buffer_InvalidConfig(t *testing.T) {
	assert := assert.New(t)

	assert.Panics(func() { NewBounded[int](0) })
	assert.Panics(func() { NewUnbounded[int](-1) })
	assert.Panics(func() { New[int](&Config{Capacity: 1, GrowBy: -1}) })
	assert.NotPanics(func() { New[int](nil) })
}

func Test_Buffer_Clear(t *testing.T) {
	assert := assert.New(t)

	b := NewBounded[int](2)
	assert.True(b.AddAll([]int{1, 2}))

	b.Clear()
	assert.Equal(0, b.Len())
	assert.True(b.AddAll([]int{3, 4}))
	assert.Equal([]int{3, 4}, b.ToSlice())
}

func Benchmark_Buffer_AddPop(b *testing.B) {
	buf := NewBounded[int](1024)

	b.ReportAllocs()
	for b.Loop() {
		buf.Add(1)
		buf.Pop()
	}
}
