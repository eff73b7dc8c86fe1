package queue

import "sync"

// Table is the process-wide name -> Queue registry. Lookups are
// read-mostly: Get takes the read lock, GetOrCreate takes the read lock
// first and only escalates to the write lock (re-checking under it) when
// the queue doesn't exist yet, so concurrent creators of the same name
// never end up with two different Queue handles.
type Table struct {
	mu     sync.RWMutex
	queues map[string]*Queue
}

// NewTable returns an empty Table.
func NewTable() *Table {
	return &Table{queues: make(map[string]*Queue)}
}

// Get returns the existing queue named name, or (nil, false) if no queue
// by that name has ever been created.
func (t *Table) Get(name string) (*Queue, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	q, ok := t.queues[name]
	return q, ok
}

// GetOrCreate returns the queue named name, creating it if it doesn't
// already exist. Two concurrent callers racing on the same name always
// observe the same Queue.
func (t *Table) GetOrCreate(name string) *Queue {
	if q, ok := t.Get(name); ok {
		return q
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if q, ok := t.queues[name]; ok {
		return q
	}
	q := New()
	t.queues[name] = q
	return q
}

// Names returns a snapshot of every queue name currently registered.
// Used by metrics sampling; queues are never removed from the table, so
// this only ever grows.
func (t *Table) Names() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	names := make([]string, 0, len(t.queues))
	for name := range t.queues {
		names = append(names, name)
	}
	return names
}
