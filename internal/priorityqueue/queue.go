package priorityqueue

import "fmt"

// Queue is a banded FIFO queue.
type Queue[T any] struct {
	bands [][]T
	size  int
}

// New creates a queue with the given number of bands.
func New[T any](bands int) *Queue[T] {
	if bands < 1 {
		panic(fmt.Sprintf("priorityqueue: invalid band count %d", bands))
	}
	return &Queue[T]{bands: make([][]T, bands)}
}

// Bands returns the number of bands.
func (q *Queue[T]) Bands() int { return len(q.bands) }

// Push appends v to the tail of band. Out of range bands are clamped to the
// lowest priority.
func (q *Queue[T]) Push(band int, v T) {
	band = q.clamp(band)
	q.bands[band] = append(q.bands[band], v)
	q.size++
}

// Pop removes and returns the head of the highest non-empty band.
func (q *Queue[T]) Pop() (T, bool) {
	for b := range q.bands {
		if len(q.bands[b]) == 0 {
			continue
		}
		v := q.bands[b][0]
		var zero T
		q.bands[b][0] = zero
		q.bands[b] = q.bands[b][1:]
		if len(q.bands[b]) == 0 {
			q.bands[b] = nil
		}
		q.size--
		return v, true
	}
	var zero T
	return zero, false
}

// Peek returns the element Pop would return without removing it.
func (q *Queue[T]) Peek() (T, bool) {
	for b := range q.bands {
		if len(q.bands[b]) > 0 {
			return q.bands[b][0], true
		}
	}
	var zero T
	return zero, false
}

// Len returns the total number of queued elements.
func (q *Queue[T]) Len() int { return q.size }

// LenBand returns the number of elements in one band.
func (q *Queue[T]) LenBand(band int) int {
	if band < 0 || band >= len(q.bands) {
		return 0
	}
	return len(q.bands[band])
}

// Contains reports whether any element satisfies match.
func (q *Queue[T]) Contains(match func(T) bool) bool {
	for _, band := range q.bands {
		for _, v := range band {
			if match(v) {
				return true
			}
		}
	}
	return false
}

// RemoveFunc removes every element satisfying match and returns them in
// queue order. The relative order of the remaining elements is preserved.
func (q *Queue[T]) RemoveFunc(match func(T) bool) []T {
	var removed []T
	for b, band := range q.bands {
		kept := band[:0]
		for _, v := range band {
			if match(v) {
				removed = append(removed, v)
			} else {
				kept = append(kept, v)
			}
		}
		var zero T
		for i := len(kept); i < len(band); i++ {
			band[i] = zero
		}
		q.bands[b] = kept
	}
	q.size -= len(removed)
	return removed
}

// Clear drops every element.
func (q *Queue[T]) Clear() {
	for b := range q.bands {
		q.bands[b] = nil
	}
	q.size = 0
}

func (q *Queue[T]) clamp(band int) int {
	switch {
	case band < 0:
		return 0
	case band >= len(q.bands):
		return len(q.bands) - 1
	}
	return band
}
