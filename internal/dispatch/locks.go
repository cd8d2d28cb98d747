package dispatch

import "sync"

// queueLocks hands out one mutex per queue id so that all dispatch calls for
// a queue serialize while different queues stay independent. Entries are
// never removed; the set of queues is small and long-lived.
type queueLocks struct {
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func newQueueLocks() *queueLocks {
	return &queueLocks{locks: make(map[int64]*sync.Mutex)}
}

func (q *queueLocks) get(queueID int64) *sync.Mutex {
	q.mu.Lock()
	defer q.mu.Unlock()

	l, ok := q.locks[queueID]
	if !ok {
		l = &sync.Mutex{}
		q.locks[queueID] = l
	}
	return l
}
