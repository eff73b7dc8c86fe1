package queue

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTableGetMissing(t *testing.T) {
	tbl := NewTable()
	_, ok := tbl.Get("nope")
	assert.False(t, ok)
}

func TestTableGetOrCreateIsIdempotent(t *testing.T) {
	tbl := NewTable()
	q1 := tbl.GetOrCreate("q")
	q2 := tbl.GetOrCreate("q")
	assert.Same(t, q1, q2)
}

func TestTableGetOrCreateConcurrentRaceAliasesOneQueue(t *testing.T) {
	tbl := NewTable()
	const workers = 64

	queues := make([]*Queue, workers)
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		i := i
		go func() {
			defer wg.Done()
			queues[i] = tbl.GetOrCreate("shared")
		}()
	}
	wg.Wait()

	for i := 1; i < workers; i++ {
		assert.Same(t, queues[0], queues[i])
	}

	// Pushing through one alias must be visible through another.
	queues[0].PushBack("v")
	v, ok := queues[workers-1].PopFront()
	assert.True(t, ok)
	assert.Equal(t, "v", v)
}

func TestTableNamesReflectsCreatedQueues(t *testing.T) {
	tbl := NewTable()
	tbl.GetOrCreate("a")
	tbl.GetOrCreate("b")
	names := tbl.Names()
	assert.ElementsMatch(t, []string{"a", "b"}, names)
}
