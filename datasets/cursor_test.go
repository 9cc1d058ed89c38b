package datasets

import (
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEpochCursor_Sequential(t *testing.T) {
	c := newEpochCursor(5)
	require.Equal(t, []int{0, 1}, c.take(2))
	require.Equal(t, []int{2, 3}, c.take(2))
	require.Equal(t, []int{4}, c.take(2))
	require.Empty(t, c.take(2))

	c.restart()
	require.Equal(t, []int{0, 1, 2, 3, 4}, c.take(10))
}

func TestEpochCursor_Shuffle(t *testing.T) {
	a, b := newEpochCursor(50), newEpochCursor(50)
	a.setShuffle(3)
	b.setShuffle(3)
	first := a.take(50)
	require.Equal(t, first, b.take(50))

	sorted := append([]int(nil), first...)
	sort.Ints(sorted)
	for i, v := range sorted {
		require.Equal(t, i, v)
	}

	// Each restart draws a new permutation of the same indices.
	a.restart()
	second := a.take(50)
	require.NotEqual(t, first, second)
	require.ElementsMatch(t, first, second)
}

func TestEpochCursor_Concurrent(t *testing.T) {
	c := newEpochCursor(1000)
	c.setShuffle(1)
	var (
		mu   sync.Mutex
		seen = make(map[int]int)
		wg   sync.WaitGroup
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				indices := c.take(7)
				if len(indices) == 0 {
					return
				}
				mu.Lock()
				for _, idx := range indices {
					seen[idx]++
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Len(t, seen, 1000)
	for idx, n := range seen {
		require.Equal(t, 1, n, "index %d", idx)
	}
}
