package imagemanager

import (
	"testing"
	"time"
)

func TestAddRequestDeduplicates(t *testing.T) {
	a, b := newHandle(), newHandle()
	q := NewRequestQueue()

	tests := []struct {
		name string
		req  *ImageRequest
		want bool
	}{
		{"first", queuedRequest("/p/a.jpg", 128, ThumbnailVisible, a), true},
		{"same key", queuedRequest("/p/a.jpg", 128, ThumbnailVisible, a), false},
		{"same key other priority", queuedRequest("/p/a.jpg", 128, Viewer, a), false},
		{"other size", queuedRequest("/p/a.jpg", 256, ThumbnailVisible, a), true},
		{"other client", queuedRequest("/p/a.jpg", 128, ThumbnailVisible, b), true},
		{"other file", queuedRequest("/p/b.jpg", 128, ThumbnailVisible, a), true},
	}
	for _, tt := range tests {
		if got := q.AddRequest(tt.req); got != tt.want {
			t.Errorf("%s: AddRequest = %v, want %v", tt.name, got, tt.want)
		}
	}
	if q.Len() != 4 {
		t.Errorf("Len = %d, want 4", q.Len())
	}
}

func TestDuplicateOfActiveRequest(t *testing.T) {
	h := newHandle()
	q := NewRequestQueue()

	first := queuedRequest("/p/a.jpg", 128, ThumbnailVisible, h)
	q.AddRequest(first)
	if got := q.PopNext(); got != first {
		t.Fatalf("PopNext = %v, want first", got)
	}
	if q.AddRequest(queuedRequest("/p/a.jpg", 128, ThumbnailVisible, h)) {
		t.Error("request equal to an active one was accepted")
	}

	q.CancelRequests(h, StopAll)
	if !q.AddRequest(queuedRequest("/p/a.jpg", 128, ThumbnailVisible, h)) {
		t.Error("request equal to a withdrawn one was rejected")
	}
}

func TestPopNextPriorityOrder(t *testing.T) {
	h := newHandle()
	q := NewRequestQueue()

	for _, r := range []*ImageRequest{
		queuedRequest("/p/batch.jpg", 1, BatchTask, h),
		queuedRequest("/p/viewer1.jpg", 1, Viewer, h),
		queuedRequest("/p/visible.jpg", 1, ThumbnailVisible, h),
		queuedRequest("/p/viewer2.jpg", 1, Viewer, h),
		queuedRequest("/p/preload.jpg", 1, ViewerPreload, h),
	} {
		q.AddRequest(r)
	}

	want := []string{"/p/viewer1.jpg", "/p/viewer2.jpg", "/p/preload.jpg", "/p/visible.jpg", "/p/batch.jpg"}
	for i, w := range want {
		r := q.PopNext()
		if r == nil || r.FileName() != w {
			t.Fatalf("pop %d = %v, want %s", i, r, w)
		}
	}
	if r := q.PopNext(); r != nil {
		t.Errorf("PopNext on empty queue = %v", r)
	}
	if q.InFlight() != len(want) {
		t.Errorf("InFlight = %d, want %d", q.InFlight(), len(want))
	}
}

func TestCancelRequests(t *testing.T) {
	h, other := newHandle(), newHandle()
	q := NewRequestQueue()

	for _, p := range []Priority{Viewer, ViewerPreload, ThumbnailVisible, ThumbnailInvisible, BatchTask} {
		q.AddRequest(queuedRequest("/p/"+p.String(), 1, p, h))
	}
	q.AddRequest(queuedRequest("/p/other", 1, BatchTask, other))

	removed := q.CancelRequests(h, StopOnlyNonPriorityLoads)
	if len(removed) != 2 {
		t.Fatalf("non-priority cancel removed %d, want 2", len(removed))
	}
	for _, r := range removed {
		if r.Priority() <= ThumbnailVisible {
			t.Errorf("removed priority request %s", r.Priority())
		}
	}

	removed = q.CancelRequests(h, StopAll)
	if len(removed) != 3 {
		t.Errorf("StopAll removed %d, want 3", len(removed))
	}
	if q.Len() != 1 {
		t.Errorf("Len = %d, want the other client's request", q.Len())
	}
}

func TestCancelWithdrawsActiveRequest(t *testing.T) {
	h := newHandle()
	q := NewRequestQueue()

	req := queuedRequest("/p/a.jpg", 1, ThumbnailVisible, h)
	q.AddRequest(req)
	q.PopNext()

	if !q.IsRequestStillValid(req) {
		t.Fatal("active request not valid")
	}
	if removed := q.CancelRequests(h, StopAll); len(removed) != 0 {
		t.Errorf("active request reported as removed pending: %v", removed)
	}
	if q.IsRequestStillValid(req) {
		t.Error("withdrawn request still valid")
	}
	if q.Finish(req) {
		t.Error("Finish reported a withdrawn request as valid")
	}
	if q.InFlight() != 0 {
		t.Errorf("InFlight = %d after Finish", q.InFlight())
	}
}

func TestReleasedClientInvalidatesRequest(t *testing.T) {
	h := newHandle()
	q := NewRequestQueue()
	req := queuedRequest("/p/a.jpg", 1, ThumbnailVisible, h)
	q.AddRequest(req)
	q.PopNext()

	h.alive.Store(false)
	if q.IsRequestStillValid(req) {
		t.Error("request of dead client is valid")
	}
}

func TestWaitNext(t *testing.T) {
	q := NewRequestQueue()
	got := make(chan *ImageRequest, 1)
	go func() {
		r, ok := q.WaitNext()
		if ok {
			got <- r
		}
		close(got)
	}()

	time.Sleep(20 * time.Millisecond)
	req := queuedRequest("/p/a.jpg", 1, BatchTask, nil)
	q.AddRequest(req)

	select {
	case r := <-got:
		if r != req {
			t.Errorf("WaitNext = %v, want %v", r, req)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("WaitNext did not wake")
	}
}

func TestWaitNextClose(t *testing.T) {
	q := NewRequestQueue()
	done := make(chan bool, 1)
	go func() {
		_, ok := q.WaitNext()
		done <- ok
	}()

	time.Sleep(20 * time.Millisecond)
	q.Close()

	select {
	case ok := <-done:
		if ok {
			t.Error("WaitNext returned ok after Close")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("WaitNext did not return after Close")
	}
	if q.AddRequest(queuedRequest("/p/a.jpg", 1, BatchTask, nil)) {
		t.Error("closed queue accepted a request")
	}
}

func TestDepth(t *testing.T) {
	q := NewRequestQueue()
	q.AddRequest(queuedRequest("/p/a.jpg", 1, Viewer, nil))
	q.AddRequest(queuedRequest("/p/b.jpg", 1, BatchTask, nil))
	q.AddRequest(queuedRequest("/p/c.jpg", 1, BatchTask, nil))

	depth := q.Depth()
	if depth["viewer"] != 1 || depth["batch_task"] != 2 || depth["thumbnail_visible"] != 0 {
		t.Errorf("Depth = %v", depth)
	}
}
