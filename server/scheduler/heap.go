package scheduler

import (
	"container/heap"
)

// fireItem is one heap slot: an entry UID keyed by its UTC fire time.
type fireItem struct {
	uid    string
	fireTs int64
	index  int
}

// fireHeap is a min-heap over fire times. Only the scheduler loop touches
// it, so it needs no locking.
type fireHeap []*fireItem

func (h fireHeap) Len() int           { return len(h) }
func (h fireHeap) Less(i, j int) bool { return h[i].fireTs < h[j].fireTs }

func (h fireHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *fireHeap) Push(x any) {
	item := x.(*fireItem)
	item.index = len(*h)
	*h = append(*h, item)
}

func (h *fireHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*h = old[:n-1]
	return item
}

func (h *fireHeap) push(uid string, fireTs int64) *fireItem {
	item := &fireItem{uid: uid, fireTs: fireTs}
	heap.Push(h, item)
	return item
}

// peek returns the earliest item without removing it.
func (h fireHeap) peek() *fireItem {
	if len(h) == 0 {
		return nil
	}
	return h[0]
}

func (h *fireHeap) pop() *fireItem {
	if h.Len() == 0 {
		return nil
	}
	return heap.Pop(h).(*fireItem)
}

// remove drops the item if it is still in the heap.
func (h *fireHeap) remove(item *fireItem) {
	if item != nil && item.index >= 0 {
		heap.Remove(h, item.index)
	}
}
