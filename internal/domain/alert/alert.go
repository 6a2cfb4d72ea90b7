// Package alert implements the user-facing notification queue.
//
// Events are kept in insertion order. Each event owns a timer that removes it
// once its display duration elapses unless it is dismissed first.
package alert

import (
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xenking/kart-storefront/internal/domain/cart"
)

// DefaultTTL is how long an event stays visible.
const DefaultTTL = 3 * time.Second

var (
	// ErrDuplicateID is returned by Push when an event with the same id is queued.
	ErrDuplicateID = errors.New("duplicate alert id")
	// ErrEmptyID is returned by Push for events without an id.
	ErrEmptyID = errors.New("alert id required")
	// ErrClosed is returned by Push once the queue is closed.
	ErrClosed = errors.New("alert queue closed")
)

// Event is a single notification shown to the user.
type Event struct {
	ID        string
	Message   string
	Severity  cart.Severity
	CreatedAt time.Time
}

type queued struct {
	event Event
	timer *time.Timer
}

// Queue is a FIFO of events with independent expiry timers. It is safe for
// concurrent use.
type Queue struct {
	ttl time.Duration
	now func() time.Time

	mu     sync.Mutex
	events []*queued
	closed bool
}

// NewQueue creates a Queue whose events expire after ttl. A non-positive ttl
// selects DefaultTTL.
func NewQueue(ttl time.Duration) *Queue {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Queue{ttl: ttl, now: time.Now}
}

// Push appends e and schedules its removal. A zero CreatedAt is set to now.
func (q *Queue) Push(e Event) error {
	if e.ID == "" {
		return ErrEmptyID
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrClosed
	}
	if q.indexOf(e.ID) >= 0 {
		return errors.Wrapf(ErrDuplicateID, "push %q", e.ID)
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = q.now()
	}

	item := &queued{event: e}
	item.timer = time.AfterFunc(q.ttl, func() { q.expire(item) })
	q.events = append(q.events, item)
	return nil
}

// Dismiss removes the event with the given id. It reports whether the event
// was still queued.
func (q *Queue) Dismiss(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	idx := q.indexOf(id)
	if idx < 0 {
		return false
	}
	q.events[idx].timer.Stop()
	q.removeAt(idx)
	return true
}

// List returns the queued events oldest first.
func (q *Queue) List() []Event {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]Event, len(q.events))
	for i, item := range q.events {
		out[i] = item.event
	}
	return out
}

// Len returns the number of queued events.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Close stops every pending timer and drops the queued events. Later pushes
// fail with ErrClosed.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, item := range q.events {
		item.timer.Stop()
	}
	q.events = nil
	q.closed = true
}

// expire removes item if it is still queued. Identity is by pointer so a
// dismissed-then-repushed id is not removed by the old timer.
func (q *Queue) expire(item *queued) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, it := range q.events {
		if it == item {
			q.removeAt(i)
			return
		}
	}
}

// Caller must hold q.mu.
func (q *Queue) indexOf(id string) int {
	for i, item := range q.events {
		if item.event.ID == id {
			return i
		}
	}
	return -1
}

// Caller must hold q.mu.
func (q *Queue) removeAt(i int) {
	q.events = append(q.events[:i:i], q.events[i+1:]...)
}

// Notifier adapts a Queue to cart.Notifier, generating a random id per event.
// Events the queue refuses are logged.
type Notifier struct {
	q  *Queue
	lg *zap.Logger
}

var _ cart.Notifier = Notifier{}

// NewNotifier returns a Notifier pushing into q.
func NewNotifier(q *Queue, lg *zap.Logger) Notifier {
	if lg == nil {
		lg = zap.NewNop()
	}
	return Notifier{q: q, lg: lg}
}

// Notify implements cart.Notifier.
func (n Notifier) Notify(severity cart.Severity, message string) {
	err := n.q.Push(Event{
		ID:       uuid.NewString(),
		Message:  message,
		Severity: severity,
	})
	if err != nil {
		n.lg.Debug("Alert dropped",
			zap.String("severity", string(severity)),
			zap.String("message", message),
			zap.Error(err),
		)
	}
}
