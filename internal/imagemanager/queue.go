package imagemanager

import (
	"sync"

	"photoalbum/internal/priorityqueue"
)

// RequestQueue holds pending still-image requests and tracks the ones being
// worked on. A request is active from the moment it is handed out until
// Finish; CancelRequests withdraws active requests so that their results
// are discarded.
type RequestQueue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	pending *priorityqueue.Queue[*ImageRequest]
	keys    map[requestKey]*ImageRequest // pending and active, by key
	active  map[*ImageRequest]struct{}   // handed out and still wanted
	working map[*ImageRequest]struct{}   // handed out, not yet finished
	closed  bool
}

// NewRequestQueue creates an empty queue.
func NewRequestQueue() *RequestQueue {
	q := &RequestQueue{
		pending: priorityqueue.New[*ImageRequest](priorityCount),
		keys:    make(map[requestKey]*ImageRequest),
		active:  make(map[*ImageRequest]struct{}),
		working: make(map[*ImageRequest]struct{}),
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// AddRequest queues req unless an equivalent request is pending, or is
// being worked on and still wanted. It wakes one waiting worker.
func (q *RequestQueue) AddRequest(req *ImageRequest) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed || q.duplicateLocked(req) {
		return false
	}
	q.keys[req.key()] = req
	q.pending.Push(int(req.priority), req)
	q.cond.Signal()
	return true
}

// Claim registers a request that is served outside the queue (videos) as
// active, with the same duplicate rule as AddRequest.
func (q *RequestQueue) Claim(req *ImageRequest) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed || q.duplicateLocked(req) {
		return false
	}
	q.keys[req.key()] = req
	q.activateLocked(req)
	return true
}

func (q *RequestQueue) duplicateLocked(req *ImageRequest) bool {
	other, ok := q.keys[req.key()]
	if !ok {
		return false
	}
	if _, isActive := q.active[other]; isActive {
		return other.clientAlive()
	}
	// Still pending.
	return true
}

func (q *RequestQueue) activateLocked(req *ImageRequest) {
	q.active[req] = struct{}{}
	q.working[req] = struct{}{}
}

// PopNext hands out the highest-priority pending request, or nil.
func (q *RequestQueue) PopNext() *ImageRequest {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.popLocked()
}

func (q *RequestQueue) popLocked() *ImageRequest {
	req, ok := q.pending.Pop()
	if !ok {
		return nil
	}
	q.activateLocked(req)
	return req
}

// WaitNext blocks until a request is available. It returns false once the
// queue is closed.
func (q *RequestQueue) WaitNext() (*ImageRequest, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.pending.Len() == 0 && !q.closed {
		q.cond.Wait()
	}
	if q.closed {
		return nil, false
	}
	return q.popLocked(), true
}

// CancelRequests removes the client's pending requests and withdraws its
// active ones. With StopOnlyNonPriorityLoads only requests below
// ThumbnailVisible are affected. The removed pending requests are returned.
func (q *RequestQueue) CancelRequests(client *ClientHandle, action StopAction) []*ImageRequest {
	match := func(r *ImageRequest) bool {
		if r.client != client {
			return false
		}
		return action&StopOnlyNonPriorityLoads == 0 || r.priority > ThumbnailVisible
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	removed := q.pending.RemoveFunc(match)
	for _, r := range removed {
		q.dropKeyLocked(r)
	}
	for r := range q.active {
		if match(r) {
			delete(q.active, r)
			q.dropKeyLocked(r)
		}
	}
	return removed
}

func (q *RequestQueue) dropKeyLocked(r *ImageRequest) {
	if q.keys[r.key()] == r {
		delete(q.keys, r.key())
	}
}

// IsRequestStillValid reports whether req is active and its client live.
func (q *RequestQueue) IsRequestStillValid(req *ImageRequest) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.active[req]
	return ok && req.clientAlive()
}

// Finish drops all bookkeeping for req and reports whether it was still
// valid at that moment.
func (q *RequestQueue) Finish(req *ImageRequest) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	_, ok := q.active[req]
	valid := ok && req.clientAlive()
	delete(q.active, req)
	delete(q.working, req)
	q.dropKeyLocked(req)
	return valid
}

// Len returns the number of pending requests.
func (q *RequestQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending.Len()
}

// InFlight returns the number of requests handed out and not yet finished.
func (q *RequestQueue) InFlight() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.working)
}

// Depth returns the pending count per priority name.
func (q *RequestQueue) Depth() map[string]int {
	q.mu.Lock()
	defer q.mu.Unlock()
	depth := make(map[string]int, priorityCount)
	for p := Priority(0); int(p) < priorityCount; p++ {
		depth[p.String()] = q.pending.LenBand(int(p))
	}
	return depth
}

// Close wakes every waiting worker. Pending requests are dropped.
func (q *RequestQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.pending.Clear()
	q.cond.Broadcast()
}
