package alert

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xenking/kart-storefront/internal/domain/cart"
)

func ids(events []Event) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.ID
	}
	return out
}

func TestQueue_PushOrder(t *testing.T) {
	q := NewQueue(time.Minute)
	defer q.Close()

	require.NoError(t, q.Push(Event{ID: "a", Message: "first"}))
	require.NoError(t, q.Push(Event{ID: "b", Message: "second"}))
	require.NoError(t, q.Push(Event{ID: "c", Message: "third"}))

	events := q.List()
	assert.Equal(t, []string{"a", "b", "c"}, ids(events))
	assert.False(t, events[0].CreatedAt.IsZero())
}

func TestQueue_PushRejects(t *testing.T) {
	q := NewQueue(time.Minute)
	defer q.Close()

	require.ErrorIs(t, q.Push(Event{}), ErrEmptyID)
	require.NoError(t, q.Push(Event{ID: "a"}))
	require.ErrorIs(t, q.Push(Event{ID: "a"}), ErrDuplicateID)
	assert.Equal(t, 1, q.Len())
}

func TestQueue_Dismiss(t *testing.T) {
	q := NewQueue(time.Minute)
	defer q.Close()

	require.NoError(t, q.Push(Event{ID: "a"}))
	require.NoError(t, q.Push(Event{ID: "b"}))

	assert.True(t, q.Dismiss("a"))
	assert.False(t, q.Dismiss("a"))
	assert.False(t, q.Dismiss("missing"))
	assert.Equal(t, []string{"b"}, ids(q.List()))
}

func TestQueue_Expiry(t *testing.T) {
	q := NewQueue(20 * time.Millisecond)
	defer q.Close()

	require.NoError(t, q.Push(Event{ID: "a"}))
	assert.Equal(t, 1, q.Len())

	require.Eventually(t, func() bool { return q.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestQueue_ExpiryIsPerEvent(t *testing.T) {
	q := NewQueue(50 * time.Millisecond)
	defer q.Close()

	require.NoError(t, q.Push(Event{ID: "a"}))
	time.Sleep(30 * time.Millisecond)
	require.NoError(t, q.Push(Event{ID: "b"}))

	require.Eventually(t, func() bool {
		events := q.List()
		return len(events) == 1 && events[0].ID == "b"
	}, time.Second, 2*time.Millisecond)
	require.Eventually(t, func() bool { return q.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestQueue_RepushAfterDismiss(t *testing.T) {
	q := NewQueue(40 * time.Millisecond)
	defer q.Close()

	require.NoError(t, q.Push(Event{ID: "a"}))
	time.Sleep(25 * time.Millisecond)
	require.True(t, q.Dismiss("a"))
	require.NoError(t, q.Push(Event{ID: "a"}))

	// The first timer would have fired by now; the new event must survive it.
	time.Sleep(25 * time.Millisecond)
	assert.Equal(t, 1, q.Len())
}

func TestQueue_Close(t *testing.T) {
	q := NewQueue(time.Minute)
	require.NoError(t, q.Push(Event{ID: "a"}))

	q.Close()

	assert.Zero(t, q.Len())
	require.ErrorIs(t, q.Push(Event{ID: "b"}), ErrClosed)
	assert.Zero(t, q.Len())
}

func TestNotifier(t *testing.T) {
	q := NewQueue(time.Minute)
	defer q.Close()
	n := NewNotifier(q, nil)

	n.Notify(cart.SeverityInfo, "Your cart is empty")
	n.Notify(cart.SeverityError, "service unavailable, try again later")

	events := q.List()
	require.Len(t, events, 2)
	assert.NotEqual(t, events[0].ID, events[1].ID)
	assert.Equal(t, cart.SeverityInfo, events[0].Severity)
	assert.Equal(t, "Your cart is empty", events[0].Message)
	assert.Equal(t, cart.SeverityError, events[1].Severity)
}

func TestNotifier_ClosedQueue(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	q := NewQueue(time.Minute)
	n := NewNotifier(q, zap.New(core))
	q.Close()

	n.Notify(cart.SeveritySuccess, "Cart cleared")

	assert.Zero(t, q.Len())
	entries := logs.FilterMessage("Alert dropped").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "Cart cleared", entries[0].ContextMap()["message"])
}
