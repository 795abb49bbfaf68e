package cache

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLRU_Capacity(t *testing.T) {
	tests := []struct {
		name     string
		capacity int
		expected int
	}{
		{"positive capacity", 100, 100},
		{"zero capacity defaults", 0, DefaultCapacity},
		{"negative capacity defaults", -10, DefaultCapacity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewLRU[string, int](tt.capacity, nil)
			assert.Equal(t, tt.expected, c.Stats().Capacity)
		})
	}
}

func TestLRU_GetSet(t *testing.T) {
	c := NewLRU[string, int](10, nil)

	_, ok := c.Get("bookings")
	assert.False(t, ok)

	c.Set("bookings", 1)
	v, ok := c.Get("bookings")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	stats := c.Stats()
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
	assert.InDelta(t, 0.5, stats.HitRate, 0.0001)
}

func TestLRU_EvictsLeastRecentlyUsed(t *testing.T) {
	var evicted []string
	c := NewLRU(2, func(k string, _ int) { evicted = append(evicted, k) })

	c.Set("a", 1)
	c.Set("b", 2)
	_, _ = c.Get("a") // b is now the oldest
	c.Set("c", 3)

	_, ok := c.Get("b")
	assert.False(t, ok)
	_, ok = c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, []string{"b"}, evicted)
	assert.Equal(t, uint64(1), c.Stats().Evictions)
}

func TestLRU_SetReplacesAndNotifies(t *testing.T) {
	var replaced []int
	c := NewLRU(2, func(_ string, v int) { replaced = append(replaced, v) })

	c.Set("a", 1)
	c.Set("a", 2)

	v, _ := c.Get("a")
	assert.Equal(t, 2, v)
	assert.Equal(t, []int{1}, replaced)
	assert.Equal(t, 1, c.Len())
}

func TestLRU_PutIfAbsent(t *testing.T) {
	c := NewLRU[string, int](4, nil)

	v, loaded := c.PutIfAbsent("a", 1)
	assert.False(t, loaded)
	assert.Equal(t, 1, v)

	v, loaded = c.PutIfAbsent("a", 2)
	assert.True(t, loaded)
	assert.Equal(t, 1, v)
}

func TestLRU_GetOrCompute(t *testing.T) {
	c := NewLRU[string, int](4, nil)
	calls := 0
	compute := func() (int, error) {
		calls++
		return 42, nil
	}

	v, err := c.GetOrCompute("k", compute)
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	v, err = c.GetOrCompute("k", compute)
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Equal(t, 1, calls)

	_, err = c.GetOrCompute("bad", func() (int, error) { return 0, errors.New("boom") })
	assert.Error(t, err)
	_, ok := c.Get("bad")
	assert.False(t, ok, "errors must not be cached")
}

func TestLRU_Clear(t *testing.T) {
	closed := 0
	c := NewLRU(10, func(string, int) { closed++ })
	for i := 0; i < 5; i++ {
		c.Set(fmt.Sprintf("k%d", i), i)
	}

	c.Clear()
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, 5, closed)
}

func TestLRU_Concurrent(t *testing.T) {
	c := NewLRU[int, int](50, nil)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				c.Set(g*1000+i, i)
				_, _ = c.Get(g*1000 + i)
			}
		}(g)
	}
	wg.Wait()
	assert.LessOrEqual(t, c.Len(), 50)
}
