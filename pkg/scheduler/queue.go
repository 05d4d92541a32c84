package scheduler

import "container/heap"

// batchQueue is a min-heap of batches waiting for an async lane, ordered by
// priority.
type batchQueue []*Batch

func (q batchQueue) Len() int { return len(q) }

func (q batchQueue) Less(i, j int) bool {
	return q[i].Priority().Before(q[j].Priority())
}

func (q batchQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *batchQueue) Push(x any) {
	b := x.(*Batch)
	b.index = len(*q)
	*q = append(*q, b)
}

func (q *batchQueue) Pop() any {
	old := *q
	n := len(old)
	b := old[n-1]
	old[n-1] = nil
	b.index = -1
	*q = old[:n-1]
	return b
}

func (q *batchQueue) push(b *Batch) {
	heap.Push(q, b)
}

func (q *batchQueue) pop() *Batch {
	if q.Len() == 0 {
		return nil
	}
	return heap.Pop(q).(*Batch)
}

// remove drops b if it is queued.
func (q *batchQueue) remove(b *Batch) bool {
	if b.index < 0 || b.index >= q.Len() || (*q)[b.index] != b {
		return false
	}
	heap.Remove(q, b.index)
	return true
}
