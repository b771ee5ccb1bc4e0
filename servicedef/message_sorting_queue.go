package servicedef

import (
	"errors"
	"sort"
	"sync"
)

var (
	ErrDuplicateCounter = errors.New("message counter was already received")
	ErrQueueClosed      = errors.New("message queue is closed")
)

// MessageSortingQueue releases messages on C in counter order, holding back any message that
// arrives before its predecessors. Counters start at 1.
type MessageSortingQueue struct {
	C           chan []byte
	lastCounter int
	deferred    []deferredMessage
	closed      bool
	lock        sync.Mutex
}

type deferredMessage struct {
	counter int
	message []byte
}

func NewMessageSortingQueue(channelSize int) *MessageSortingQueue {
	return &MessageSortingQueue{C: make(chan []byte, channelSize)}
}

// Accept adds a message. It may block if C is full.
func (q *MessageSortingQueue) Accept(counter int, message []byte) error {
	q.lock.Lock()
	defer q.lock.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	if counter <= q.lastCounter {
		return ErrDuplicateCounter
	}
	if counter > q.lastCounter+1 {
		i := sort.Search(len(q.deferred), func(i int) bool { return q.deferred[i].counter >= counter })
		if i < len(q.deferred) && q.deferred[i].counter == counter {
			return ErrDuplicateCounter
		}
		q.deferred = append(q.deferred, deferredMessage{})
		copy(q.deferred[i+1:], q.deferred[i:])
		q.deferred[i] = deferredMessage{counter: counter, message: message}
		return nil
	}
	q.lastCounter = counter
	q.C <- message
	for len(q.deferred) > 0 && q.deferred[0].counter == q.lastCounter+1 {
		next := q.deferred[0]
		q.deferred = q.deferred[1:]
		q.lastCounter++
		q.C <- next.message
	}
	return nil
}

// Deferred returns the messages that are waiting for an earlier counter, in counter order.
func (q *MessageSortingQueue) Deferred() [][]byte {
	q.lock.Lock()
	ret := make([][]byte, 0, len(q.deferred))
	for _, d := range q.deferred {
		ret = append(ret, d.message)
	}
	q.lock.Unlock()
	return ret
}

// Close closes C. Deferred messages are discarded and returned to the caller.
func (q *MessageSortingQueue) Close() [][]byte {
	q.lock.Lock()
	defer q.lock.Unlock()
	if q.closed {
		return nil
	}
	q.closed = true
	close(q.C)
	var dropped [][]byte
	for _, d := range q.deferred {
		dropped = append(dropped, d.message)
	}
	q.deferred = nil
	return dropped
}
