package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/kart-storefront/internal/domain/auth"
	"github.com/xenking/kart-storefront/internal/domain/cart"
	"github.com/xenking/kart-storefront/internal/domain/storefront"
)

// --- Mock implementations ---

type mockBackend struct {
	storefront.Backend
	cart.Service
	tokens auth.TokenSource
}

func (m *mockBackend) Product(context.Context, string) (*cart.Product, error) {
	return nil, cart.ErrNotFound
}

func newBinder(bound *[]auth.TokenSource) Binder {
	return BinderFunc(func(tokens auth.TokenSource) Backends {
		*bound = append(*bound, tokens)
		b := &mockBackend{tokens: tokens}
		return Backends{Cart: b, Catalog: b, Views: b}
	})
}

// --- Tests ---

func TestRegistry_Get(t *testing.T) {
	var bound []auth.TokenSource
	r := NewRegistry(newBinder(&bound), Config{})

	s1, err := r.Get("tok-a")
	require.NoError(t, err)
	s2, err := r.Get("tok-a")
	require.NoError(t, err)
	s3, err := r.Get("tok-b")
	require.NoError(t, err)

	assert.Same(t, s1, s2)
	assert.NotSame(t, s1, s3)
	assert.Equal(t, 2, r.Len())
	require.Len(t, bound, 2)

	token, err := bound[0].Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-a", token)
	assert.Equal(t, ID("tok-a"), s1.ID)
	assert.NotContains(t, s1.ID, "tok-a")
}

func TestRegistry_GetEmptyToken(t *testing.T) {
	var bound []auth.TokenSource
	r := NewRegistry(newBinder(&bound), Config{})

	_, err := r.Get("")
	require.ErrorIs(t, err, cart.ErrUnauthorized)
	assert.Zero(t, r.Len())
}

func TestRegistry_Drop(t *testing.T) {
	var bound []auth.TokenSource
	r := NewRegistry(newBinder(&bound), Config{})

	s, err := r.Get("tok")
	require.NoError(t, err)

	r.Drop("tok")
	r.Drop("tok")
	assert.Zero(t, r.Len())

	s2, err := r.Get("tok")
	require.NoError(t, err)
	assert.NotSame(t, s, s2)
}

func TestRegistry_Evict(t *testing.T) {
	var bound []auth.TokenSource
	r := NewRegistry(newBinder(&bound), Config{IdleTTL: time.Minute})
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	_, err := r.Get("old")
	require.NoError(t, err)
	now = now.Add(45 * time.Second)
	_, err = r.Get("fresh")
	require.NoError(t, err)

	assert.Equal(t, 1, r.Evict(now.Add(30*time.Second)))
	assert.Equal(t, 1, r.Len())

	s, err := r.Get("fresh")
	require.NoError(t, err)
	assert.True(t, now.Equal(s.LastSeen()))
}

func TestRegistry_Full(t *testing.T) {
	var bound []auth.TokenSource
	r := NewRegistry(newBinder(&bound), Config{IdleTTL: time.Minute, MaxSessions: 2})
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	_, err := r.Get("a")
	require.NoError(t, err)
	_, err = r.Get("b")
	require.NoError(t, err)

	_, err = r.Get("c")
	require.ErrorIs(t, err, ErrFull)
	assert.Equal(t, 2, r.Len())

	// Known tokens still resolve while the registry is full.
	_, err = r.Get("a")
	require.NoError(t, err)

	// Idle sessions make room.
	now = now.Add(2 * time.Minute)
	_, err = r.Get("c")
	require.NoError(t, err)
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_Lookup(t *testing.T) {
	var bound []auth.TokenSource
	r := NewRegistry(newBinder(&bound), Config{})

	_, ok := r.Lookup("tok")
	assert.False(t, ok)
	_, ok = r.Lookup("")
	assert.False(t, ok)
	assert.Zero(t, r.Len())

	s, err := r.Get("tok")
	require.NoError(t, err)
	got, ok := r.Lookup("tok")
	require.True(t, ok)
	assert.Same(t, s, got)
}

func TestRegistry_RunClosesOnCancel(t *testing.T) {
	var bound []auth.TokenSource
	r := NewRegistry(newBinder(&bound), Config{IdleTTL: time.Hour})

	s, err := r.Get("tok")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx, time.Millisecond)
		close(done)
	}()
	cancel()
	<-done

	assert.Zero(t, r.Len())
	assert.Zero(t, s.Alerts.Len())
}

func TestSession_AlertsWired(t *testing.T) {
	var bound []auth.TokenSource
	r := NewRegistry(newBinder(&bound), Config{AlertTTL: time.Minute})

	s, err := r.Get("tok")
	require.NoError(t, err)

	err = s.Cart.AddItem(context.Background(), "p1", 0)
	require.Error(t, err)

	events := s.Alerts.List()
	require.Len(t, events, 1)
	assert.Equal(t, cart.SeverityWarning, events[0].Severity)
}
