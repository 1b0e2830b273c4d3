package statusbar

import (
	"context"
	"errors"
	"sync"
)

// ErrQueueClosed is returned when sending to or receiving from a closed
// [Queue].
var ErrQueueClosed = errors.New("queue is closed")

// Sender is the producer side of a [Queue]. It is handed to notifiers.
type Sender interface {
	Send(msg Message) error
}

// Queue is an unbounded multi-producer, single-consumer FIFO of messages.
//
// Send never blocks on the consumer. Messages of a single producer are
// received in the order they were sent; messages of different producers are
// interleaved in the order their Send calls completed.
type Queue struct {
	mu     sync.Mutex
	items  []Message
	closed bool
	ready  chan struct{}
	done   chan struct{}
}

// NewQueue returns a new empty [Queue].
func NewQueue() *Queue {
	return &Queue{
		ready: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
}

// Send appends msg to the queue.
//
// If Send is called after [Queue.Close], [ErrQueueClosed] is returned.
func (q *Queue) Send(msg Message) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}

	q.items = append(q.items, msg)
	q.mu.Unlock()

	// Wake the consumer. A pending wakeup already covers this message.
	select {
	case q.ready <- struct{}{}:
	default:
	}

	return nil
}

// Receive blocks until a message is available and returns it.
//
// Messages sent before [Queue.Close] are still delivered; once they are
// drained, Receive returns [ErrQueueClosed]. If ctx is done first, its error
// is returned.
func (q *Queue) Receive(ctx context.Context) (Message, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			msg := q.items[0]
			q.items[0] = Message{}
			q.items = q.items[1:]
			q.mu.Unlock()

			return msg, nil
		}

		closed := q.closed
		q.mu.Unlock()

		if closed {
			return Message{}, ErrQueueClosed
		}

		select {
		case <-q.ready:
		case <-q.done:
		case <-ctx.Done():
			return Message{}, ctx.Err()
		}
	}
}

// Len returns the number of queued messages.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.items)
}

// Close stops accepting new messages. Close is idempotent.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.done)
}
