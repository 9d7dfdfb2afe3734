package ffmpegdecoder

import "container/heap"

// ptsQueue hands out submitted timestamps in ascending order. The decoder
// emits pictures in presentation order, so the n-th frame out carries the
// n-th smallest pending timestamp.
type ptsQueue []int64

func (q ptsQueue) Len() int           { return len(q) }
func (q ptsQueue) Less(i, j int) bool { return q[i] < q[j] }
func (q ptsQueue) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }

func (q *ptsQueue) Push(x any) { *q = append(*q, x.(int64)) }

func (q *ptsQueue) Pop() any {
	old := *q
	n := len(old)
	v := old[n-1]
	*q = old[:n-1]
	return v
}

func (q *ptsQueue) push(pts int64) {
	heap.Push(q, pts)
}

// pop returns the smallest pending timestamp, or fallback when none is left.
func (q *ptsQueue) pop(fallback int64) int64 {
	if q.Len() == 0 {
		return fallback
	}
	return heap.Pop(q).(int64)
}
