package coretimer

import (
	"time"

	"github.com/maumercado/corosched/internal/coretask"
)

// entry is one outstanding deadline: {deadline, task_ref, event_id} per
// spec.md §4.4, with an index maintained for container/heap removal.
type entry struct {
	deadline time.Time
	task     *coretask.Task
	seq      uint64
	index    int
	canceled bool
}

// entryHeap is a container/heap min-heap ordered by deadline, tie-broken
// by insertion sequence for FIFO-stable ordering among equal deadlines.
type entryHeap []*entry

func (h entryHeap) Len() int { return len(h) }

func (h entryHeap) Less(i, j int) bool {
	if h[i].deadline.Equal(h[j].deadline) {
		return h[i].seq < h[j].seq
	}
	return h[i].deadline.Before(h[j].deadline)
}

func (h entryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *entryHeap) Push(x any) {
	e := x.(*entry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}
