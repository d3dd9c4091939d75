package fetch

import (
	"sync"

	"github.com/hanpama/fedfetch/internal/graphql"
)

// DeferredRecord is the result of a fetch that deferred executions wait on.
type DeferredRecord struct {
	NodeID string
	Data   any
	Errors []graphql.Error
}

// DeferredFetches routes fetch results to the deferred executions waiting
// for them, keyed by fetch node id. It is shared by every fetch of a
// request.
type DeferredFetches struct {
	mu   sync.Mutex
	subs map[string][]chan DeferredRecord
}

func NewDeferredFetches() *DeferredFetches {
	return &DeferredFetches{subs: make(map[string][]chan DeferredRecord)}
}

// Subscribe returns a channel receiving the results of node id. Records are
// dropped when the buffer is full. A nil *DeferredFetches never delivers, so
// the channel it returns is already closed.
func (d *DeferredFetches) Subscribe(id string, buffer int) <-chan DeferredRecord {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan DeferredRecord, buffer)
	if d == nil {
		close(ch)
		return ch
	}
	d.mu.Lock()
	d.subs[id] = append(d.subs[id], ch)
	d.mu.Unlock()
	return ch
}

// Has reports whether anything waits on node id.
func (d *DeferredFetches) Has(id string) bool {
	if d == nil {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.subs[id]) > 0
}

// Close closes and forgets every channel of node id.
func (d *DeferredFetches) Close(id string) {
	if d == nil {
		return
	}
	d.mu.Lock()
	subs := d.subs[id]
	delete(d.subs, id)
	d.mu.Unlock()
	for _, ch := range subs {
		close(ch)
	}
}

// record delivers rec to the subscribers of rec.NodeID and reports how many
// received it.
func (d *DeferredFetches) record(rec DeferredRecord) int {
	if d == nil {
		return 0
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, ch := range d.subs[rec.NodeID] {
		select {
		case ch <- rec:
			n++
		default:
		}
	}
	return n
}
