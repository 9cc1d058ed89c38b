package datasets

import (
	"math/rand"
	"sync"
)

// epochCursor hands out example indices for one epoch at a time. It is shared
// by concurrent Yield calls, so all access goes through mu.
type epochCursor struct {
	mu      sync.Mutex
	order   []int
	next    int
	shuffle bool
	rand    *rand.Rand
}

func newEpochCursor(n int) *epochCursor {
	c := &epochCursor{order: make([]int, n)}
	for i := range c.order {
		c.order[i] = i
	}
	return c
}

// setShuffle enables shuffling with the given seed and restarts the epoch.
func (c *epochCursor) setShuffle(seed int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.shuffle = true
	c.rand = rand.New(rand.NewSource(seed))
	c.lockedRestart()
}

// restart begins a new epoch, reshuffling if shuffling is enabled.
func (c *epochCursor) restart() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lockedRestart()
}

func (c *epochCursor) lockedRestart() {
	c.next = 0
	if c.shuffle {
		c.rand.Shuffle(len(c.order), func(i, j int) {
			c.order[i], c.order[j] = c.order[j], c.order[i]
		})
	}
}

// take returns up to n indices not yet handed out in the current epoch. An
// empty result means the epoch is over.
func (c *epochCursor) take(n int) []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	end := min(c.next+n, len(c.order))
	indices := make([]int, end-c.next)
	copy(indices, c.order[c.next:end])
	c.next = end
	return indices
}
