// Package dispatch delivers callbacks on designated queues.
//
// Callback style calls run the request on a background goroutine
// and then dispatch the callback to a Queue, by default to the Main queue.
// The Main queue is a process-wide serial queue, so callbacks are never run concurrently with each other.
package dispatch

import (
	"sync"
)

// Queue runs submitted functions.
type Queue interface {
	Dispatch(fn func())
}

// QueueFunc is an adapter to use a function as the Queue.
type QueueFunc func(fn func())

func (f QueueFunc) Dispatch(fn func()) {
	f(fn)
}

// Inline runs the function immediately on the calling goroutine.
var Inline Queue = QueueFunc(func(fn func()) { fn() }) //nolint:gochecknoglobals

var (
	mainQueue     *SerialQueue //nolint:gochecknoglobals
	mainQueueOnce sync.Once    //nolint:gochecknoglobals
)

// Main returns the process-wide serial queue.
func Main() *SerialQueue {
	mainQueueOnce.Do(func() {
		mainQueue = NewSerialQueue()
	})
	return mainQueue
}

// SerialQueue runs functions one by one in FIFO order on a single worker goroutine.
// The queue is unbounded, Dispatch never blocks.
type SerialQueue struct {
	lock   *sync.Mutex
	cond   *sync.Cond
	items  []func()
	closed bool
	done   chan struct{}
}

// NewSerialQueue creates the queue and starts its worker goroutine.
func NewSerialQueue() *SerialQueue {
	q := &SerialQueue{lock: &sync.Mutex{}, done: make(chan struct{})}
	q.cond = sync.NewCond(q.lock)
	go q.run()
	return q
}

// Dispatch adds the function to the queue.
// If the queue is closed, the function is run immediately on the calling goroutine.
func (q *SerialQueue) Dispatch(fn func()) {
	q.lock.Lock()
	if q.closed {
		q.lock.Unlock()
		fn()
		return
	}
	q.items = append(q.items, fn)
	q.lock.Unlock()
	q.cond.Signal()
}

// Close stops accepting new functions and waits until all queued functions are done.
func (q *SerialQueue) Close() {
	q.lock.Lock()
	alreadyClosed := q.closed
	q.closed = true
	q.lock.Unlock()
	if !alreadyClosed {
		q.cond.Signal()
	}
	<-q.done
}

func (q *SerialQueue) run() {
	defer close(q.done)
	for {
		q.lock.Lock()
		for len(q.items) == 0 && !q.closed {
			q.cond.Wait()
		}
		if len(q.items) == 0 {
			// Closed and drained
			q.lock.Unlock()
			return
		}
		fn := q.items[0]
		q.items[0] = nil
		q.items = q.items[1:]
		q.lock.Unlock()

		fn()
	}
}
