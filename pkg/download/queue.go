package download

import (
	"sync"

	"github.com/cperrin88/grinder/pkg/model"
)

// Queue is a FIFO of items shared by all workers of a pool.
type Queue struct {
	mu    sync.Mutex
	items []model.PackageItem
}

// Push appends items to the tail.
func (q *Queue) Push(items ...model.PackageItem) {
	q.mu.Lock()
	q.items = append(q.items, items...)
	q.mu.Unlock()
}

// TryPop removes the head item. It returns false when the queue is empty.
func (q *Queue) TryPop() (model.PackageItem, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return model.PackageItem{}, false
	}
	item := q.items[0]
	q.items[0] = model.PackageItem{}
	q.items = q.items[1:]
	return item, true
}

// Len returns the number of queued items.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
