// Package priorityqueue provides a banded FIFO queue: a fixed number of
// priority bands, strict ordering across bands and insertion order within a
// band. Band 0 is the highest priority.
//
// Both the still-image request queue and the background job scheduler are
// built on it. The queue is not safe for concurrent use; owners guard it
// with their own mutex.
package priorityqueue
