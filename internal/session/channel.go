package session

import (
	"fmt"
	"sync"

	"github.com/diewolke9/flo/internal/protocol"
)

// FrameQueue is a multi-producer single-consumer frame channel. The node
// pump and detached chat-reply goroutines share the sending side; the
// session owns the receiving side and observes loss of the producers
// through Closed. Senders never panic after close; Send just fails.
type FrameQueue struct {
	ch     chan protocol.Frame
	closed chan struct{}
	once   sync.Once
}

// NewFrameQueue creates a queue with the given buffer size.
func NewFrameQueue(size int) *FrameQueue {
	return &FrameQueue{
		ch:     make(chan protocol.Frame, size),
		closed: make(chan struct{}),
	}
}

// Send enqueues a frame, blocking until the consumer has room. Returns an
// error once the queue is closed.
func (q *FrameQueue) Send(f protocol.Frame) error {
	select {
	case <-q.closed:
		return fmt.Errorf("frame queue closed")
	default:
	}

	select {
	case q.ch <- f:
		return nil
	case <-q.closed:
		return fmt.Errorf("frame queue closed")
	}
}

// Frames returns the receiving side of the queue.
func (q *FrameQueue) Frames() <-chan protocol.Frame {
	return q.ch
}

// Closed returns a channel that is closed when the producers drop the queue.
func (q *FrameQueue) Closed() <-chan struct{} {
	return q.closed
}

// Close marks the producer side as dropped. Safe to call more than once.
func (q *FrameQueue) Close() {
	q.once.Do(func() { close(q.closed) })
}

// StatusFeed is a latest-value channel of node game status. Intermediate
// updates are coalesced: the consumer only ever observes the newest value.
type StatusFeed struct {
	mu     sync.Mutex
	ch     chan GameStatus
	closed chan struct{}
	once   sync.Once
}

// NewStatusFeed creates an empty status feed.
func NewStatusFeed() *StatusFeed {
	return &StatusFeed{
		ch:     make(chan GameStatus, 1),
		closed: make(chan struct{}),
	}
}

// Set publishes a new status, replacing any unobserved previous value.
func (f *StatusFeed) Set(status GameStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()

	select {
	case <-f.ch:
	default:
	}
	select {
	case f.ch <- status:
	default:
	}
}

// Changes returns the receiving side of the feed.
func (f *StatusFeed) Changes() <-chan GameStatus {
	return f.ch
}

// Closed returns a channel that is closed when the producer drops the feed.
func (f *StatusFeed) Closed() <-chan struct{} {
	return f.closed
}

// Close marks the producer side as dropped. Safe to call more than once.
func (f *StatusFeed) Close() {
	f.once.Do(func() { close(f.closed) })
}
