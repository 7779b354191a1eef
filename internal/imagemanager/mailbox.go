package imagemanager

import (
	"image"
	"sync"
)

type messageKind int

const (
	msgCompleted messageKind = iota
	msgCancelled
)

// message carries a worker's result, or a cancellation notice, to the
// owning goroutine.
type message struct {
	kind     messageKind
	req      *ImageRequest
	image    image.Image
	fullSize image.Point
	loadedOK bool
}

// mailbox is an unbounded FIFO drained by the owning goroutine. Posting
// never blocks.
type mailbox struct {
	mu     sync.Mutex
	items  []message
	notify chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{notify: make(chan struct{}, 1)}
}

func (m *mailbox) post(msg message) {
	m.mu.Lock()
	m.items = append(m.items, msg)
	m.mu.Unlock()

	select {
	case m.notify <- struct{}{}:
	default:
	}
}

func (m *mailbox) drain() []message {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := m.items
	m.items = nil
	return items
}

func (m *mailbox) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}
