package broadcast

import "sync"

// Queue is a Subscriber with a bounded FIFO buffer drained by a single
// goroutine calling deliver for every event in the order they were sent.
// The queue closes itself when deliver returns an error.
type Queue[T any] struct {
	c         chan T
	done      chan struct{}
	closeOnce sync.Once
	deliver   func(T) error

	lock sync.Mutex
	err  error
}

var _ Subscriber[int] = (*Queue[int])(nil)

// NewQueue creates a queue with the given capacity and starts its consumer.
func NewQueue[T any](capacity int, deliver func(T) error) *Queue[T] {
	if capacity < 1 {
		capacity = 1
	}
	q := &Queue[T]{
		c:       make(chan T, capacity),
		done:    make(chan struct{}),
		deliver: deliver,
	}
	go q.run()
	return q
}

func (q *Queue[T]) run() {
	for {
		select {
		case <-q.done:
			return
		case e := <-q.c:
			// Both cases may be ready, never deliver after Close.
			select {
			case <-q.done:
				return
			default:
			}
			if err := q.deliver(e); err != nil {
				q.lock.Lock()
				q.err = err
				q.lock.Unlock()
				q.Close()
				return
			}
		}
	}
}

// Send enqueues event. It never blocks: ErrClosed is returned after Close
// and ErrQueueFull if the buffer is exhausted.
func (q *Queue[T]) Send(event T) error {
	select {
	case <-q.done:
		return ErrClosed
	default:
	}
	select {
	case q.c <- event:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops the consumer. Pending events are dropped. Safe to call multiple times.
func (q *Queue[T]) Close() {
	q.closeOnce.Do(func() { close(q.done) })
}

// Done is closed once the queue is closed.
func (q *Queue[T]) Done() <-chan struct{} { return q.done }

// Err returns the delivery error that closed the queue, if any.
func (q *Queue[T]) Err() error {
	q.lock.Lock()
	defer q.lock.Unlock()
	return q.err
}
