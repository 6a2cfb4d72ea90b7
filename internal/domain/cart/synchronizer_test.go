package cart

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Mock implementations ---

type mockService struct {
	mu      sync.Mutex
	remote  *Remote
	getErr  error
	echo    func(productID string, quantity int) Entry
	itemErr error
	rmErr   error
	clrErr  error
	receipt *Receipt
	outErr  error
	calls   []string

	// block, when set, holds AddItem and UpdateItem until closed.
	block chan struct{}
	// getHook runs inside Get before the remote cart is returned.
	getHook func()
}

func (m *mockService) record(call string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
}

func (m *mockService) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *mockService) Get(_ context.Context) (*Remote, error) {
	m.record("get")
	m.mu.Lock()
	remote := m.remote
	m.mu.Unlock()

	// The response is taken before the hook so a held fetch returns old data.
	if m.getHook != nil {
		m.getHook()
	}
	if m.getErr != nil {
		return nil, m.getErr
	}
	if remote == nil {
		return &Remote{}, nil
	}
	r := *remote
	r.Entries = append([]Entry(nil), remote.Entries...)
	return &r, nil
}

func (m *mockService) write(call, productID string, quantity int) (Entry, error) {
	m.record(call + ":" + productID)
	if m.block != nil {
		<-m.block
	}
	if m.itemErr != nil {
		return Entry{}, m.itemErr
	}
	if m.echo != nil {
		return m.echo(productID, quantity), nil
	}
	return Entry{ProductID: productID, Quantity: quantity}, nil
}

func (m *mockService) AddItem(_ context.Context, productID string, quantity int) (Entry, error) {
	return m.write("add", productID, quantity)
}

func (m *mockService) UpdateItem(_ context.Context, productID string, quantity int) (Entry, error) {
	return m.write("update", productID, quantity)
}

func (m *mockService) RemoveItem(_ context.Context, productID string) error {
	m.record("remove:" + productID)
	return m.rmErr
}

func (m *mockService) Clear(_ context.Context) error {
	m.record("clear")
	return m.clrErr
}

func (m *mockService) Checkout(_ context.Context) (*Receipt, error) {
	m.record("checkout")
	if m.outErr != nil {
		return nil, m.outErr
	}
	return m.receipt, nil
}

type mockCatalog struct {
	byID map[string]*Product
	err  map[string]error
	// honorCtx makes lookups fail once ctx is done.
	honorCtx bool
}

func (m *mockCatalog) Product(ctx context.Context, id string) (*Product, error) {
	if m.honorCtx && ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if err, ok := m.err[id]; ok {
		return nil, err
	}
	p, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return p, nil
}

type alertRecord struct {
	severity Severity
	message  string
}

type mockNotifier struct {
	mu     sync.Mutex
	alerts []alertRecord
}

func (m *mockNotifier) Notify(severity Severity, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts = append(m.alerts, alertRecord{severity: severity, message: message})
}

func (m *mockNotifier) All() []alertRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]alertRecord(nil), m.alerts...)
}

// --- Helpers ---

func newTestProduct(id, name, price string) *Product {
	return &Product{ID: id, Name: name, Price: decimal.RequireFromString(price), Stock: 10}
}

func newCatalog(products ...*Product) *mockCatalog {
	byID := make(map[string]*Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	return &mockCatalog{byID: byID, err: map[string]error{}}
}

func newSynchronizer(t *testing.T, svc Service, catalog Catalog) (*Synchronizer, *mockNotifier) {
	t.Helper()
	n := &mockNotifier{}
	s, err := NewSynchronizer(svc, catalog, Options{Notifier: n})
	require.NoError(t, err)
	return s, n
}

// --- Tests ---

func TestSynchronizer_InitialSnapshot(t *testing.T) {
	s, _ := newSynchronizer(t, &mockService{}, newCatalog())

	snap := s.Snapshot()
	assert.Equal(t, StatusIdle, snap.Status)
	assert.Empty(t, snap.Items)
	assert.NoError(t, snap.Err)
	assert.True(t, snap.Total().IsZero())
}

func TestSynchronizer_Fetch(t *testing.T) {
	svc := &mockService{remote: &Remote{
		Info:    Info{ID: "c1", UserID: "u1"},
		Entries: []Entry{{ProductID: "p1", Quantity: 2}, {ProductID: "p2", Quantity: 1}},
	}}
	catalog := newCatalog(newTestProduct("p1", "Waffle", "6.50"), newTestProduct("p2", "Brownie", "5.50"))
	s, n := newSynchronizer(t, svc, catalog)

	require.NoError(t, s.Fetch(context.Background()))

	snap := s.Snapshot()
	assert.Equal(t, StatusSucceeded, snap.Status)
	assert.Equal(t, Info{ID: "c1", UserID: "u1"}, snap.Cart)
	require.Len(t, snap.Items, 2)
	assert.Equal(t, "p1", snap.Items[0].ProductID)
	assert.Equal(t, "Waffle", snap.Items[0].DisplayName())
	assert.Equal(t, "p2", snap.Items[1].ProductID)
	assert.Equal(t, "18.5", snap.Total().String())
	assert.Empty(t, n.All())
}

func TestSynchronizer_FetchEmpty(t *testing.T) {
	s, n := newSynchronizer(t, &mockService{}, newCatalog())

	require.NoError(t, s.Fetch(context.Background()))

	assert.Empty(t, s.Snapshot().Items)
	assert.Equal(t, []alertRecord{{SeverityInfo, "Your cart is empty"}}, n.All())
}

func TestSynchronizer_FetchDeduplicates(t *testing.T) {
	svc := &mockService{remote: &Remote{Entries: []Entry{
		{ProductID: "p1", Quantity: 1},
		{ProductID: "p2", Quantity: 1},
		{ProductID: "p1", Quantity: 3},
		{ProductID: "p3", Quantity: 0},
	}}}
	s, _ := newSynchronizer(t, svc, newCatalog(newTestProduct("p1", "A", "1"), newTestProduct("p2", "B", "1")))

	require.NoError(t, s.Fetch(context.Background()))

	items := s.Snapshot().Items
	require.Len(t, items, 2)
	assert.Equal(t, "p1", items[0].ProductID)
	assert.Equal(t, 3, items[0].Quantity)
	assert.Equal(t, "p2", items[1].ProductID)
}

func TestSynchronizer_FetchPartialJoin(t *testing.T) {
	svc := &mockService{remote: &Remote{Entries: []Entry{
		{ProductID: "p1", Quantity: 1},
		{ProductID: "gone", Quantity: 2},
	}}}
	s, n := newSynchronizer(t, svc, newCatalog(newTestProduct("p1", "Waffle", "6.50")))

	require.NoError(t, s.Fetch(context.Background()))

	snap := s.Snapshot()
	require.Len(t, snap.Items, 2)
	assert.Nil(t, snap.Items[1].Product)
	assert.Equal(t, UnknownProductName, snap.Items[1].DisplayName())
	assert.True(t, snap.Items[1].Subtotal().IsZero())
	assert.Equal(t, "6.5", snap.Total().String())

	alerts := n.All()
	require.Len(t, alerts, 1)
	assert.Equal(t, SeverityWarning, alerts[0].severity)
	assert.Contains(t, alerts[0].message, "gone")
}

func TestSynchronizer_FetchError(t *testing.T) {
	svc := &mockService{getErr: &UpstreamError{Op: "get cart", StatusCode: 503}}
	s, n := newSynchronizer(t, svc, newCatalog())

	err := s.Fetch(context.Background())
	require.Error(t, err)

	snap := s.Snapshot()
	assert.Equal(t, StatusFailed, snap.Status)
	assert.ErrorIs(t, snap.Err, err)
	assert.Equal(t, []alertRecord{{SeverityError, "service unavailable, try again later"}}, n.All())
}

func TestSynchronizer_AddItemNoDuplicates(t *testing.T) {
	total := map[string]int{}
	svc := &mockService{echo: func(id string, q int) Entry {
		total[id] += q
		return Entry{ProductID: id, Quantity: total[id]}
	}}
	s, n := newSynchronizer(t, svc, newCatalog(newTestProduct("p1", "Waffle", "6.50")))
	ctx := context.Background()

	require.NoError(t, s.AddItem(ctx, "p1", 1))
	require.NoError(t, s.AddItem(ctx, "p1", 2))

	items := s.Snapshot().Items
	require.Len(t, items, 1)
	assert.Equal(t, 3, items[0].Quantity)
	assert.Equal(t, "19.5", s.Snapshot().Total().String())
	assert.Equal(t, []alertRecord{
		{SeveritySuccess, "Item added to cart"},
		{SeveritySuccess, "Item added to cart"},
	}, n.All())
}

func TestSynchronizer_ServerQuantityWins(t *testing.T) {
	svc := &mockService{echo: func(id string, _ int) Entry {
		return Entry{ProductID: id, Quantity: 5}
	}}
	s, _ := newSynchronizer(t, svc, newCatalog(newTestProduct("p1", "Waffle", "1")))

	require.NoError(t, s.AddItem(context.Background(), "p1", 1))

	li, ok := s.Snapshot().Item("p1")
	require.True(t, ok)
	assert.Equal(t, 5, li.Quantity)
}

func TestSynchronizer_EchoedZeroRemoves(t *testing.T) {
	svc := &mockService{
		remote: &Remote{Entries: []Entry{{ProductID: "p1", Quantity: 2}}},
		echo:   func(id string, _ int) Entry { return Entry{ProductID: id, Quantity: 0} },
	}
	s, _ := newSynchronizer(t, svc, newCatalog(newTestProduct("p1", "Waffle", "1")))
	ctx := context.Background()
	require.NoError(t, s.Fetch(ctx))

	require.NoError(t, s.UpdateItem(ctx, "p1", 1))

	assert.Empty(t, s.Snapshot().Items)
}

func TestSynchronizer_UpdateItemAppendsMissing(t *testing.T) {
	svc := &mockService{}
	s, n := newSynchronizer(t, svc, newCatalog(newTestProduct("p1", "Waffle", "1")))

	require.NoError(t, s.UpdateItem(context.Background(), "p1", 4))

	li, ok := s.Snapshot().Item("p1")
	require.True(t, ok)
	assert.Equal(t, 4, li.Quantity)
	assert.Equal(t, []alertRecord{{SeveritySuccess, "Cart updated"}}, n.All())
}

func TestSynchronizer_UpdateItemValidation(t *testing.T) {
	svc := &mockService{}
	s, n := newSynchronizer(t, svc, newCatalog())

	err := s.UpdateItem(context.Background(), "99", 0)

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "quantity", vErr.Field)
	assert.Empty(t, svc.Calls())
	assert.Equal(t, StatusIdle, s.Snapshot().Status)

	alerts := n.All()
	require.Len(t, alerts, 1)
	assert.Equal(t, SeverityWarning, alerts[0].severity)
}

func TestSynchronizer_AddItemEmptyProduct(t *testing.T) {
	svc := &mockService{}
	s, _ := newSynchronizer(t, svc, newCatalog())

	err := s.AddItem(context.Background(), "", 1)

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "product_id", vErr.Field)
	assert.Empty(t, svc.Calls())
}

func TestSynchronizer_UpdateItemNotFound(t *testing.T) {
	svc := &mockService{itemErr: errors.Wrap(ErrNotFound, "update cart item")}
	s, n := newSynchronizer(t, svc, newCatalog())

	err := s.UpdateItem(context.Background(), "p9", 2)

	require.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, StatusFailed, s.Snapshot().Status)
	assert.Equal(t, []alertRecord{{SeverityError, "item is not in the cart"}}, n.All())
}

func TestSynchronizer_RemoveItemIdempotent(t *testing.T) {
	svc := &mockService{remote: &Remote{Entries: []Entry{{ProductID: "p1", Quantity: 1}}}}
	s, _ := newSynchronizer(t, svc, newCatalog(newTestProduct("p1", "Waffle", "1")))
	ctx := context.Background()
	require.NoError(t, s.Fetch(ctx))

	require.NoError(t, s.RemoveItem(ctx, "p1"))
	assert.Empty(t, s.Snapshot().Items)

	svc.rmErr = errors.Wrap(ErrNotFound, "remove cart item")
	require.NoError(t, s.RemoveItem(ctx, "p1"))
	assert.Equal(t, StatusSucceeded, s.Snapshot().Status)
}

func TestSynchronizer_RemoveItemFailureKeepsItem(t *testing.T) {
	svc := &mockService{remote: &Remote{Entries: []Entry{{ProductID: "p1", Quantity: 1}}}}
	s, _ := newSynchronizer(t, svc, newCatalog(newTestProduct("p1", "Waffle", "1")))
	ctx := context.Background()
	require.NoError(t, s.Fetch(ctx))

	svc.rmErr = &UpstreamError{Op: "remove cart item", StatusCode: 500}
	require.Error(t, s.RemoveItem(ctx, "p1"))

	assert.Len(t, s.Snapshot().Items, 1)
}

func TestSynchronizer_Clear(t *testing.T) {
	svc := &mockService{remote: &Remote{
		Info:    Info{ID: "c1"},
		Entries: []Entry{{ProductID: "p1", Quantity: 1}, {ProductID: "p2", Quantity: 2}},
	}}
	s, n := newSynchronizer(t, svc, newCatalog(newTestProduct("p1", "A", "1"), newTestProduct("p2", "B", "1")))
	ctx := context.Background()
	require.NoError(t, s.Fetch(ctx))

	require.NoError(t, s.Clear(ctx))

	snap := s.Snapshot()
	assert.Empty(t, snap.Items)
	assert.Equal(t, Info{}, snap.Cart)
	assert.Equal(t, StatusSucceeded, snap.Status)
	assert.Equal(t, []alertRecord{{SeveritySuccess, "Cart cleared"}}, n.All())
}

func TestSynchronizer_ClearFailureKeepsItems(t *testing.T) {
	svc := &mockService{
		remote: &Remote{Entries: []Entry{{ProductID: "p1", Quantity: 1}}},
		clrErr: &UpstreamError{Op: "clear cart", StatusCode: 500, Message: "try later"},
	}
	s, n := newSynchronizer(t, svc, newCatalog(newTestProduct("p1", "A", "1")))
	ctx := context.Background()
	require.NoError(t, s.Fetch(ctx))

	require.Error(t, s.Clear(ctx))

	assert.Len(t, s.Snapshot().Items, 1)
	assert.Equal(t, []alertRecord{{SeverityError, "try later"}}, n.All())
}

func TestSynchronizer_Checkout(t *testing.T) {
	svc := &mockService{
		remote:  &Remote{Entries: []Entry{{ProductID: "p1", Quantity: 2}}},
		receipt: &Receipt{OrderID: "o-1"},
	}
	s, n := newSynchronizer(t, svc, newCatalog(newTestProduct("p1", "A", "1")))
	ctx := context.Background()
	require.NoError(t, s.Fetch(ctx))

	receipt, err := s.Checkout(ctx)
	require.NoError(t, err)
	assert.Equal(t, "o-1", receipt.OrderID)
	assert.Empty(t, s.Snapshot().Items)
	assert.Equal(t, []alertRecord{{SeveritySuccess, "Order o-1 placed"}}, n.All())
}

func TestSynchronizer_CheckoutFailureKeepsItems(t *testing.T) {
	svc := &mockService{
		remote: &Remote{Entries: []Entry{{ProductID: "p1", Quantity: 2}}},
		outErr: &UpstreamError{Op: "checkout", StatusCode: 400, Message: "cart is empty"},
	}
	s, n := newSynchronizer(t, svc, newCatalog(newTestProduct("p1", "A", "1")))
	ctx := context.Background()
	require.NoError(t, s.Fetch(ctx))

	_, err := s.Checkout(ctx)
	require.Error(t, err)

	snap := s.Snapshot()
	assert.Len(t, snap.Items, 1)
	assert.Equal(t, StatusFailed, snap.Status)
	assert.Equal(t, []alertRecord{{SeverityError, "cart is empty"}}, n.All())
}

func TestSynchronizer_Total(t *testing.T) {
	svc := &mockService{remote: &Remote{Entries: []Entry{{ProductID: "p1", Quantity: 2}}}}
	s, _ := newSynchronizer(t, svc, newCatalog(newTestProduct("p1", "Headphones", "49.99")))

	require.NoError(t, s.Fetch(context.Background()))

	assert.Equal(t, "99.98", s.Snapshot().Total().StringFixed(2))
}

func TestSynchronizer_SnapshotIsCopy(t *testing.T) {
	svc := &mockService{remote: &Remote{Entries: []Entry{{ProductID: "p1", Quantity: 1}}}}
	s, _ := newSynchronizer(t, svc, newCatalog(newTestProduct("p1", "Waffle", "1")))
	require.NoError(t, s.Fetch(context.Background()))

	snap := s.Snapshot()
	snap.Items[0].Quantity = 99
	snap.Items[0].Product.Name = "changed"

	li, _ := s.Snapshot().Item("p1")
	assert.Equal(t, 1, li.Quantity)
	assert.Equal(t, "Waffle", li.DisplayName())
}

func TestSynchronizer_MutationsSerialized(t *testing.T) {
	block := make(chan struct{})
	svc := &mockService{block: block}
	s, _ := newSynchronizer(t, svc, newCatalog(newTestProduct("p1", "A", "1"), newTestProduct("p2", "B", "1")))
	ctx := context.Background()

	errs := make(chan error, 2)
	go func() { errs <- s.AddItem(ctx, "p1", 1) }()
	require.Eventually(t, func() bool { return len(svc.Calls()) == 1 }, time.Second, time.Millisecond)

	go func() { errs <- s.AddItem(ctx, "p2", 1) }()
	// The second mutation must not reach the service while the first is open.
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, []string{"add:p1"}, svc.Calls())
	assert.Equal(t, StatusLoading, s.Snapshot().Status)

	close(block)
	require.NoError(t, <-errs)
	require.NoError(t, <-errs)

	assert.Equal(t, []string{"add:p1", "add:p2"}, svc.Calls())
	items := s.Snapshot().Items
	require.Len(t, items, 2)
	assert.Equal(t, "p1", items[0].ProductID)
	assert.Equal(t, "p2", items[1].ProductID)
	assert.Equal(t, StatusSucceeded, s.Snapshot().Status)
}

func TestSynchronizer_FetchWaitsForMutation(t *testing.T) {
	block := make(chan struct{})
	svc := &mockService{block: block}
	s, _ := newSynchronizer(t, svc, newCatalog(newTestProduct("p1", "A", "1")))
	ctx := context.Background()

	done := make(chan error, 2)
	go func() { done <- s.AddItem(ctx, "p1", 1) }()
	require.Eventually(t, func() bool { return len(svc.Calls()) == 1 }, time.Second, time.Millisecond)

	go func() { done <- s.Fetch(ctx) }()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, []string{"add:p1"}, svc.Calls())

	close(block)
	require.NoError(t, <-done)
	require.NoError(t, <-done)
	assert.Equal(t, []string{"add:p1", "get"}, svc.Calls())
}

func TestSynchronizer_StaleFetchDiscarded(t *testing.T) {
	release := make(chan struct{})
	var (
		mu    sync.Mutex
		first = true
	)
	svc := &mockService{}
	svc.getHook = func() {
		mu.Lock()
		isFirst := first
		first = false
		mu.Unlock()
		if isFirst {
			<-release
		}
	}
	s, _ := newSynchronizer(t, svc, newCatalog(newTestProduct("p1", "A", "1"), newTestProduct("p2", "B", "1")))
	ctx := context.Background()

	svc.remote = &Remote{Entries: []Entry{{ProductID: "p1", Quantity: 1}}}
	slow := make(chan error, 1)
	go func() { slow <- s.Fetch(ctx) }()
	require.Eventually(t, func() bool { return len(svc.Calls()) == 1 }, time.Second, time.Millisecond)

	svc.mu.Lock()
	svc.remote = &Remote{Entries: []Entry{{ProductID: "p2", Quantity: 1}}}
	svc.mu.Unlock()
	require.NoError(t, s.Fetch(ctx))

	close(release)
	require.NoError(t, <-slow)

	items := s.Snapshot().Items
	require.Len(t, items, 1)
	assert.Equal(t, "p2", items[0].ProductID)
}

func TestSynchronizer_ContextCanceledWhileWaiting(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	svc := &mockService{block: block}
	s, n := newSynchronizer(t, svc, newCatalog(newTestProduct("p1", "A", "1")))

	go func() { _ = s.AddItem(context.Background(), "p1", 1) }()
	require.Eventually(t, func() bool { return len(svc.Calls()) == 1 }, time.Second, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := s.Clear(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, []string{"add:p1"}, svc.Calls())

	assert.Equal(t, []alertRecord{{SeverityError, "request timed out, try again"}}, n.All())
	snap := s.Snapshot()
	assert.ErrorIs(t, snap.Err, context.DeadlineExceeded)
	// The held AddItem is still running.
	assert.Equal(t, StatusLoading, snap.Status)
}

func TestSynchronizer_FetchCanceledDuringJoin(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc := &mockService{remote: &Remote{Entries: []Entry{{ProductID: "p1", Quantity: 2}}}}
	catalog := newCatalog(newTestProduct("p1", "Waffle", "6.50"))
	s, n := newSynchronizer(t, svc, catalog)
	require.NoError(t, s.Fetch(context.Background()))

	catalog.honorCtx = true
	svc.getHook = cancel
	err := s.Fetch(ctx)
	require.ErrorIs(t, err, context.Canceled)

	snap := s.Snapshot()
	assert.Equal(t, StatusFailed, snap.Status)
	require.Len(t, snap.Items, 1)
	require.NotNil(t, snap.Items[0].Product)
	assert.Equal(t, "Waffle", snap.Items[0].DisplayName())
	assert.Equal(t, []alertRecord{{SeverityError, "request was cancelled"}}, n.All())
}

func TestSynchronizer_AddItemCanceledDuringLookup(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc := &mockService{remote: &Remote{Entries: []Entry{{ProductID: "p1", Quantity: 1}}}}
	catalog := newCatalog(newTestProduct("p1", "Waffle", "6.50"))
	s, n := newSynchronizer(t, svc, catalog)
	require.NoError(t, s.Fetch(context.Background()))

	catalog.honorCtx = true
	svc.echo = func(productID string, _ int) Entry {
		cancel()
		return Entry{ProductID: productID, Quantity: 3}
	}
	err := s.AddItem(ctx, "p1", 3)
	require.ErrorIs(t, err, context.Canceled)

	snap := s.Snapshot()
	assert.Equal(t, StatusFailed, snap.Status)
	require.Len(t, snap.Items, 1)
	assert.Equal(t, 3, snap.Items[0].Quantity)
	assert.Equal(t, "Waffle", snap.Items[0].DisplayName())
	assert.Equal(t, []alertRecord{{SeverityError, "request was cancelled"}}, n.All())
}

func TestSynchronizer_CheckoutWithoutReceipt(t *testing.T) {
	svc := &mockService{remote: &Remote{Entries: []Entry{{ProductID: "p1", Quantity: 1}}}}
	s, n := newSynchronizer(t, svc, newCatalog(newTestProduct("p1", "A", "1")))
	require.NoError(t, s.Fetch(context.Background()))

	receipt, err := s.Checkout(context.Background())
	require.Nil(t, receipt)
	var uErr *UpstreamError
	require.ErrorAs(t, err, &uErr)
	assert.Equal(t, StatusFailed, s.Snapshot().Status)
	assert.Len(t, s.Snapshot().Items, 1)
	assert.Equal(t, []alertRecord{{SeverityError, "order was not confirmed"}}, n.All())
}

func TestMessage(t *testing.T) {
	for _, tt := range []struct {
		name string
		err  error
		want string
	}{
		{"Validation", &ValidationError{Field: "quantity", Reason: "must be at least 1, got 0"}, "invalid quantity: must be at least 1, got 0"},
		{"Unauthorized", errors.Wrap(ErrUnauthorized, "get cart"), "please sign in again"},
		{"NotFound", ErrNotFound, "item is not in the cart"},
		{"UpstreamMessage", &UpstreamError{Op: "checkout", Message: "out of stock"}, "out of stock"},
		{"UpstreamBare", &UpstreamError{Op: "checkout", StatusCode: 502}, "service unavailable, try again later"},
		{"Deadline", errors.Wrap(context.DeadlineExceeded, "wait for cart"), "request timed out, try again"},
		{"Canceled", errors.Wrap(context.Canceled, "resolve products"), "request was cancelled"},
	} {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Message(tt.err))
		})
	}
}
