package engine

import "github.com/roach88/bassline/internal/ir"

// workItem is one pending write: deliver value to target, having arrived
// from origin (empty for external writes).
//
// derived marks writes caused by a mirror pushing events. Events emitted
// while processing them are not observed by mirrors again.
type workItem struct {
	target  string
	value   ir.IRValue
	origin  string
	derived bool
}

// workQueue is the FIFO propagation queue.
//
// All access happens inside engine calls, which are whole-network critical
// sections, so the queue carries no lock.
type workQueue struct {
	items []workItem
}

func newWorkQueue() *workQueue {
	return &workQueue{items: make([]workItem, 0, 64)}
}

func (q *workQueue) push(item workItem) {
	q.items = append(q.items, item)
}

// pop removes and returns the front item.
func (q *workQueue) pop() (workItem, bool) {
	if len(q.items) == 0 {
		return workItem{}, false
	}

	item := q.items[0]

	// Nil out the slot so the backing array does not retain the value.
	q.items[0] = workItem{}

	if len(q.items) == 1 {
		q.items = q.items[:0]
	} else {
		q.items = q.items[1:]
	}
	return item, true
}

// clear discards every pending item.
func (q *workQueue) clear() {
	clear(q.items)
	q.items = q.items[:0]
}

func (q *workQueue) Len() int {
	return len(q.items)
}
