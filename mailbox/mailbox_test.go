package mailbox_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lattice-hpc/adws/mailbox"
)

func TestPostAndTryPop(t *testing.T) {
	m := mailbox.New[int]()
	assert.False(t, m.Arrived())

	_, ok := m.TryPop()
	assert.False(t, ok)

	m.Post(7)
	assert.True(t, m.Arrived())

	v, ok := m.TryPop()
	assert.True(t, ok)
	assert.Equal(t, 7, v)
	assert.False(t, m.Arrived())
}

func TestPostOverwritesAndCountsDrop(t *testing.T) {
	m := mailbox.New[string]()
	m.Post("a")
	m.Post("b")
	assert.EqualValues(t, 1, m.Dropped())

	v, ok := m.TryPop()
	assert.True(t, ok)
	assert.Equal(t, "b", v)
}

func TestRegistryRoutesByRank(t *testing.T) {
	reg := mailbox.NewRegistry[int](3)
	reg.PostTo(2, 99)

	assert.False(t, reg.Of(0).Arrived())
	assert.True(t, reg.Of(2).Arrived())

	v, ok := reg.Of(2).TryPop()
	assert.True(t, ok)
	assert.Equal(t, 99, v)
}

func TestConcurrentPostsDoNotRace(t *testing.T) {
	m := mailbox.New[int]()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m.Post(i)
		}(i)
	}
	wg.Wait()
	// At least one post landed; TryPop must not panic or corrupt state.
	_, _ = m.TryPop()
}
