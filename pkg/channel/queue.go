package channel

import (
	"context"
	"sync"
	"sync/atomic"
)

// recordQueue is a bounded FIFO of encoded records that drops its oldest
// entry on overflow, favoring freshness over completeness.
type recordQueue struct {
	mu    sync.Mutex
	items [][]byte
	cap   int

	// signal wakes a blocked pop after a push; capacity 1 because the
	// queue has a single consumer.
	signal chan struct{}

	dropped atomic.Int64
}

func newRecordQueue(capacity int) *recordQueue {
	return &recordQueue{
		cap:    capacity,
		signal: make(chan struct{}, 1),
	}
}

// push enqueues data without blocking. It reports whether an older entry
// was dropped to make room.
func (q *recordQueue) push(data []byte) bool {
	q.mu.Lock()
	var dropped bool
	if len(q.items) >= q.cap {
		q.items = q.items[1:]
		dropped = true
		q.dropped.Add(1)
	}
	q.items = append(q.items, data)
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
	return dropped
}

// pop blocks until an entry is available or the context ends.
func (q *recordQueue) pop(ctx context.Context) ([]byte, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			data := q.items[0]
			q.items = q.items[1:]
			q.mu.Unlock()
			return data, nil
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-q.signal:
		}
	}
}

func (q *recordQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
