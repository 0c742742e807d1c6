package broadcast

import (
	"errors"
	"log/slog"
	"sync"
)

var (
	// ErrClosed is returned by Subscriber.Send after the subscriber was closed.
	ErrClosed = errors.New("subscriber closed")

	// ErrQueueFull is returned by Subscriber.Send when the subscriber
	// can't keep up and its delivery queue has no capacity left.
	ErrQueueFull = errors.New("subscriber queue full")
)

// Subscriber receives events of type T.
// Implementations must be comparable, pointer types are recommended.
type Subscriber[T any] interface {
	// Send hands event over for delivery without blocking.
	Send(event T) error

	// Close releases the subscriber. Subsequent calls to Send return ErrClosed.
	Close()
}

// Registry is a concurrency-safe set of subscribers.
type Registry[T any] struct {
	lock sync.Mutex
	subs map[Subscriber[T]]struct{}
}

// NewRegistry creates a new empty registry.
func NewRegistry[T any]() *Registry[T] {
	return &Registry[T]{subs: make(map[Subscriber[T]]struct{})}
}

// Register adds s. Registering the same subscriber twice is a no-op.
func (r *Registry[T]) Register(s Subscriber[T]) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.subs[s] = struct{}{}
}

// Unregister removes s and reports whether it was registered.
func (r *Registry[T]) Unregister(s Subscriber[T]) (removed bool) {
	r.lock.Lock()
	defer r.lock.Unlock()
	if _, ok := r.subs[s]; !ok {
		return false
	}
	delete(r.subs, s)
	return true
}

// Snapshot returns a point-in-time copy of all registered subscribers.
func (r *Registry[T]) Snapshot() []Subscriber[T] {
	r.lock.Lock()
	defer r.lock.Unlock()
	s := make([]Subscriber[T], 0, len(r.subs))
	for sub := range r.subs {
		s = append(s, sub)
	}
	return s
}

// Len returns the number of registered subscribers.
func (r *Registry[T]) Len() int {
	r.lock.Lock()
	defer r.lock.Unlock()
	return len(r.subs)
}

// CloseAll closes and unregisters all subscribers.
func (r *Registry[T]) CloseAll() {
	r.lock.Lock()
	subs := r.subs
	r.subs = make(map[Subscriber[T]]struct{})
	r.lock.Unlock()

	for s := range subs {
		s.Close()
	}
}

// Broadcaster delivers events to all subscribers of a registry.
type Broadcaster[T any] struct {
	lock     sync.Mutex // Serializes Broadcast calls.
	registry *Registry[T]
}

// NewBroadcaster creates a new broadcaster delivering to the subscribers of r.
func NewBroadcaster[T any](r *Registry[T]) *Broadcaster[T] {
	return &Broadcaster[T]{registry: r}
}

// Registry returns the registry b is delivering to.
func (b *Broadcaster[T]) Registry() *Registry[T] { return b.registry }

// Broadcast sends event to every subscriber registered at the time of the call.
// Closed subscribers are unregistered, subscribers with a full queue are
// closed and unregistered. Any other delivery error is logged and the
// subscriber is kept.
func (b *Broadcaster[T]) Broadcast(event T) (delivered int) {
	b.lock.Lock()
	defer b.lock.Unlock()

	for _, s := range b.registry.Snapshot() {
		err := s.Send(event)
		switch {
		case err == nil:
			delivered++
		case errors.Is(err, ErrClosed):
			b.registry.Unregister(s)
		case errors.Is(err, ErrQueueFull):
			slog.Warn("evicting slow subscriber")
			s.Close()
			b.registry.Unregister(s)
		default:
			slog.Error("delivering event", slog.Any("err", err))
		}
	}
	return delivered
}
