package service

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSessionStoreKeepsLastFiveTurns(t *testing.T) {
	store := NewSessionStore(5)

	for i := 1; i <= 12; i++ {
		store.Update("s1", fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i))
		assert.LessOrEqual(t, len(store.Turns("s1")), 5)
	}

	turns := store.Turns("s1")
	assert.Len(t, turns, 5)
	assert.Equal(t, "q8", turns[0].Question)
	assert.Equal(t, "a12", turns[4].Answer)
}

func TestSessionStoreTurnsReturnsCopy(t *testing.T) {
	store := NewSessionStore(5)
	store.Update("s1", "q", "a")

	turns := store.Turns("s1")
	turns[0].Answer = "changed"

	assert.Equal(t, "a", store.Turns("s1")[0].Answer)
	assert.Empty(t, store.Turns("unknown"))
}

func TestSessionStoreClear(t *testing.T) {
	store := NewSessionStore(0)
	store.Update("s1", "q", "a")

	assert.True(t, store.Clear("s1"))
	assert.False(t, store.Clear("s1"))
	assert.Empty(t, store.Turns("s1"))
}

// Sessions are never evicted: the map grows with every distinct key.
func TestSessionStoreGrowsWithDistinctKeys(t *testing.T) {
	store := NewSessionStore(5)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			store.Update(fmt.Sprintf("s%d", i), "q", "a")
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 50, store.Len())
}
