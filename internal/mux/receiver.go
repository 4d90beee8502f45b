package mux

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/iot2db/iot2db/internal/document"
)

// ErrClosed is returned by Recv once the multiplexer stopped.
var ErrClosed = errors.New("multiplexer closed")

// LaggedError reports messages dropped because the receiver fell behind.
// Receiving may continue after it.
type LaggedError struct {
	Missed uint64
}

func (e *LaggedError) Error() string {
	return fmt.Sprintf("receiver lagged, %d messages dropped", e.Missed)
}

// Event is a decoded message delivered to a receiver.
type Event struct {
	Topic    string
	Document document.Document
}

// Receiver is one subscriber's bounded queue. When full, the oldest event
// is dropped.
type Receiver struct {
	pattern string

	mu     sync.Mutex
	ring   []Event
	head   int
	size   int
	missed uint64

	notify chan struct{}
	done   <-chan struct{}
}

func newReceiver(pattern string, capacity int, done <-chan struct{}) *Receiver {
	if capacity < 1 {
		capacity = 1
	}
	return &Receiver{
		pattern: pattern,
		ring:    make([]Event, capacity),
		notify:  make(chan struct{}, 1),
		done:    done,
	}
}

// Pattern returns the pattern the receiver subscribed with.
func (r *Receiver) Pattern() string {
	return r.pattern
}

func (r *Receiver) push(e Event) {
	r.mu.Lock()
	if r.size == len(r.ring) {
		r.ring[r.head] = Event{}
		r.head = (r.head + 1) % len(r.ring)
		r.size--
		r.missed++
	}
	r.ring[(r.head+r.size)%len(r.ring)] = e
	r.size++
	r.mu.Unlock()

	select {
	case r.notify <- struct{}{}:
	default:
	}
}

func (r *Receiver) pop() (Event, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.missed > 0 {
		missed := r.missed
		r.missed = 0
		return Event{}, true, &LaggedError{Missed: missed}
	}
	if r.size == 0 {
		return Event{}, false, nil
	}
	e := r.ring[r.head]
	r.ring[r.head] = Event{}
	r.head = (r.head + 1) % len(r.ring)
	r.size--
	return e, true, nil
}

// Recv blocks until an event is available. A *LaggedError is returned once
// per overflow, before the oldest remaining event.
func (r *Receiver) Recv(ctx context.Context) (Event, error) {
	for {
		if e, ok, err := r.pop(); ok {
			return e, err
		}
		select {
		case <-r.notify:
		case <-ctx.Done():
			return Event{}, ctx.Err()
		case <-r.done:
			if e, ok, err := r.pop(); ok {
				return e, err
			}
			return Event{}, ErrClosed
		}
	}
}
