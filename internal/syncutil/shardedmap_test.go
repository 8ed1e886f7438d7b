package syncutil

import (
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShardedMap_WithAndLen(t *testing.T) {
	var m ShardedMap[int]
	m.With("a", func(s map[string]int) { s["a"] = 1 })
	m.With("b", func(s map[string]int) { s["b"] = 2 })
	m.With("a", func(s map[string]int) { s["a"]++ })

	var got int
	m.With("a", func(s map[string]int) { got = s["a"] })
	assert.Equal(t, 2, got)
	assert.Equal(t, 2, m.Len())
}

func TestShardedMap_ConcurrentIncrements(t *testing.T) {
	var m ShardedMap[int]
	var wg sync.WaitGroup
	for g := 0; g < 16; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				key := "k" + strconv.Itoa(i%10)
				m.With(key, func(s map[string]int) { s[key]++ })
			}
		}()
	}
	wg.Wait()

	total := 0
	m.Range(func(s map[string]int) {
		for _, v := range s {
			total += v
		}
	})
	assert.Equal(t, 16*500, total)
}

func TestIndex_StableAndBounded(t *testing.T) {
	for i := 0; i < 1000; i++ {
		k := strconv.Itoa(i)
		assert.Less(t, Index(k), uint32(ShardCount))
		assert.Equal(t, Index(k), Index(k))
	}
}
