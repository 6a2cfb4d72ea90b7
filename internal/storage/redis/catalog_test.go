package redis

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/kart-storefront/internal/domain/cart"
)

// --- Mock implementations ---

type mockStore struct {
	data    map[string]string
	ttls    map[string]time.Duration
	readErr error
	setErr  error
	deleted []string
}

func newMockStore() *mockStore {
	return &mockStore{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *mockStore) Ping(ctx context.Context) *goredis.StatusCmd {
	return goredis.NewStatusResult("PONG", m.readErr)
}

func (m *mockStore) Get(_ context.Context, key string) *goredis.StringCmd {
	if m.readErr != nil {
		return goredis.NewStringResult("", m.readErr)
	}
	v, ok := m.data[key]
	if !ok {
		return goredis.NewStringResult("", goredis.Nil)
	}
	return goredis.NewStringResult(v, nil)
}

func (m *mockStore) Set(_ context.Context, key string, value any, ttl time.Duration) *goredis.StatusCmd {
	if m.setErr != nil {
		return goredis.NewStatusResult("", m.setErr)
	}
	m.data[key] = string(value.([]byte))
	m.ttls[key] = ttl
	return goredis.NewStatusResult("OK", nil)
}

func (m *mockStore) Del(_ context.Context, keys ...string) *goredis.IntCmd {
	for _, k := range keys {
		delete(m.data, k)
	}
	m.deleted = append(m.deleted, keys...)
	return goredis.NewIntResult(int64(len(keys)), nil)
}

type mockCatalog struct {
	products map[string]*cart.Product
	calls    int
	err      error
}

func (m *mockCatalog) Product(_ context.Context, id string) (*cart.Product, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	p, ok := m.products[id]
	if !ok {
		return nil, cart.ErrNotFound
	}
	return p, nil
}

// --- Helpers ---

func newTestProduct() *cart.Product {
	return &cart.Product{
		ID:          "p1",
		Name:        "Headphones",
		Description: "Over-ear",
		Price:       decimal.RequireFromString("49.99"),
		ImageURL:    "https://img/p1.png",
		CategoryID:  "c1",
		Stock:       4,
	}
}

// --- Tests ---

func TestCachedCatalog_MissThenHit(t *testing.T) {
	store := newMockStore()
	next := &mockCatalog{products: map[string]*cart.Product{"p1": newTestProduct()}}
	c := newCachedCatalog(next, store, time.Minute, nil)
	ctx := context.Background()

	p, err := c.Product(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "Headphones", p.Name)
	assert.Equal(t, 1, next.calls)
	assert.Equal(t, time.Minute, store.ttls[Key("p1")])

	p, err = c.Product(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 1, next.calls)
	assert.Equal(t, newTestProduct().ID, p.ID)
	assert.True(t, newTestProduct().Price.Equal(p.Price))
	assert.Equal(t, newTestProduct().ImageURL, p.ImageURL)
	assert.Equal(t, 4, p.Stock)
}

func TestCachedCatalog_NotFoundIsNotCached(t *testing.T) {
	store := newMockStore()
	next := &mockCatalog{}
	c := newCachedCatalog(next, store, 0, nil)

	_, err := c.Product(context.Background(), "p9")
	require.ErrorIs(t, err, cart.ErrNotFound)
	assert.Empty(t, store.data)
}

func TestCachedCatalog_CorruptEntry(t *testing.T) {
	store := newMockStore()
	store.data[Key("p1")] = `{"id": 5`
	next := &mockCatalog{products: map[string]*cart.Product{"p1": newTestProduct()}}
	c := newCachedCatalog(next, store, 0, nil)

	p, err := c.Product(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "Headphones", p.Name)
	assert.Equal(t, []string{Key("p1")}, store.deleted)
	assert.Equal(t, DefaultTTL, store.ttls[Key("p1")])
}

func TestCachedCatalog_StoreDown(t *testing.T) {
	store := newMockStore()
	store.readErr = errors.New("connection refused")
	store.setErr = errors.New("connection refused")
	next := &mockCatalog{products: map[string]*cart.Product{"p1": newTestProduct()}}
	c := newCachedCatalog(next, store, 0, nil)

	p, err := c.Product(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "p1", p.ID)
	assert.Error(t, c.Ping(context.Background()))
}

func TestCachedCatalog_Invalidate(t *testing.T) {
	store := newMockStore()
	next := &mockCatalog{products: map[string]*cart.Product{"p1": newTestProduct()}}
	c := newCachedCatalog(next, store, 0, nil)
	ctx := context.Background()

	_, err := c.Product(ctx, "p1")
	require.NoError(t, err)
	require.NoError(t, c.Invalidate(ctx, "p1"))

	_, err = c.Product(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 2, next.calls)
}
