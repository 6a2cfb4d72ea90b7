package cart

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

const (
	// gateWeight is the semaphore weight taken by a mutation. Fetches take 1,
	// so at most gateWeight fetches can run together and none while a mutation
	// holds or waits for the gate.
	gateWeight = 64

	defaultJoinLimit = 8
)

// Operation names used in logs, spans and metrics.
const (
	OpFetch    = "fetch"
	OpAdd      = "add"
	OpUpdate   = "update"
	OpRemove   = "remove"
	OpClear    = "clear"
	OpCheckout = "checkout"
)

const (
	outcomeSucceeded = "succeeded"
	outcomeFailed    = "failed"
	outcomeRejected  = "rejected"
)

// Options configures a Synchronizer. Zero values select no-op telemetry and
// a notifier that drops alerts.
type Options struct {
	Logger         *zap.Logger
	Notifier       Notifier
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
	// JoinLimit bounds concurrent product lookups per operation.
	JoinLimit int
}

func (o *Options) setDefaults() {
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Notifier == nil {
		o.Notifier = NopNotifier{}
	}
	if o.TracerProvider == nil {
		o.TracerProvider = tracenoop.NewTracerProvider()
	}
	if o.MeterProvider == nil {
		o.MeterProvider = metricnoop.NewMeterProvider()
	}
	if o.JoinLimit <= 0 {
		o.JoinLimit = defaultJoinLimit
	}
}

// Synchronizer owns the local, product-joined view of one user's remote cart.
// All mutation goes through its operations; readers get Snapshots.
type Synchronizer struct {
	svc       Service
	catalog   Catalog
	notifier  Notifier
	lg        *zap.Logger
	tracer    trace.Tracer
	ops       metric.Int64Counter
	joinLimit int

	// gate serializes mutations in arrival order and keeps fetches off
	// pending mutations.
	gate *semaphore.Weighted

	mu        sync.Mutex
	info      Info
	items     []LineItem
	status    Status
	err       error
	inflight  int
	fetchSeq  uint64
	installed uint64
}

// NewSynchronizer creates a Synchronizer with an empty idle cart.
func NewSynchronizer(svc Service, catalog Catalog, opts Options) (*Synchronizer, error) {
	opts.setDefaults()

	ops, err := opts.MeterProvider.Meter("cart").Int64Counter("cart.operations",
		metric.WithDescription("Cart operations by name and outcome"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create operations counter")
	}

	return &Synchronizer{
		svc:       svc,
		catalog:   catalog,
		notifier:  opts.Notifier,
		lg:        opts.Logger,
		tracer:    opts.TracerProvider.Tracer("cart"),
		ops:       ops,
		joinLimit: opts.JoinLimit,
		gate:      semaphore.NewWeighted(gateWeight),
		status:    StatusIdle,
	}, nil
}

// Snapshot returns a deep copy of the current state.
func (s *Synchronizer) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := make([]LineItem, len(s.items))
	for i, li := range s.items {
		items[i] = li.clone()
	}
	return Snapshot{
		Cart:   s.info,
		Items:  items,
		Status: s.status,
		Err:    s.err,
	}
}

// Fetch replaces the local items with the remote cart joined with product
// metadata. Lookups run in parallel; a failed lookup leaves the item
// unresolved without failing the fetch.
func (s *Synchronizer) Fetch(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "cart.Fetch")
	defer span.End()

	if err := s.acquire(ctx, span, OpFetch, 1); err != nil {
		return err
	}
	defer s.gate.Release(1)

	s.mu.Lock()
	s.fetchSeq++
	seq := s.fetchSeq
	s.mu.Unlock()

	remote, err := s.svc.Get(ctx)
	if err != nil {
		return s.fail(ctx, span, OpFetch, err)
	}

	entries := dedupe(remote.Entries)
	items, missing := s.join(ctx, entries)
	if err := ctx.Err(); err != nil {
		// Lookups were cut short, not refused: keep the current items.
		return s.fail(ctx, span, OpFetch, errors.Wrap(err, "resolve products"))
	}

	s.mu.Lock()
	stale := seq < s.installed
	if !stale {
		s.installed = seq
		s.info = remote.Info
		s.items = items
	}
	s.mu.Unlock()

	s.succeed(ctx, OpFetch)
	if stale {
		s.lg.Debug("Discarding superseded cart fetch", zap.Uint64("seq", seq))
		return nil
	}
	s.reportMissing(missing)
	if len(items) == 0 {
		s.notifier.Notify(SeverityInfo, "Your cart is empty")
	}
	return nil
}

// AddItem asks the Cart Service to add quantity of productID and merges the
// echoed line item. The service's quantity is authoritative.
func (s *Synchronizer) AddItem(ctx context.Context, productID string, quantity int) error {
	ctx, span := s.tracer.Start(ctx, "cart.AddItem",
		trace.WithAttributes(attribute.String("product.id", productID)),
	)
	defer span.End()

	return s.upsert(ctx, span, OpAdd, productID, quantity, s.svc.AddItem)
}

// UpdateItem sets the quantity of a line item. The Cart Service decides
// whether the item exists; ErrNotFound is returned when it does not.
func (s *Synchronizer) UpdateItem(ctx context.Context, productID string, quantity int) error {
	ctx, span := s.tracer.Start(ctx, "cart.UpdateItem",
		trace.WithAttributes(attribute.String("product.id", productID)),
	)
	defer span.End()

	return s.upsert(ctx, span, OpUpdate, productID, quantity, s.svc.UpdateItem)
}

type upsertFunc func(ctx context.Context, productID string, quantity int) (Entry, error)

func (s *Synchronizer) upsert(ctx context.Context, span trace.Span, op, productID string, quantity int, call upsertFunc) error {
	if err := validateLine(productID, quantity); err != nil {
		return s.reject(ctx, op, err)
	}

	if err := s.acquire(ctx, span, op, gateWeight); err != nil {
		return err
	}
	defer s.gate.Release(gateWeight)

	entry, err := call(ctx, productID, quantity)
	if err != nil {
		return s.fail(ctx, span, op, err)
	}
	if entry.ProductID == "" {
		entry.ProductID = productID
	}

	var missing []string
	var product *Product
	if entry.Quantity >= 1 {
		product, err = s.catalog.Product(ctx, entry.ProductID)
		if err != nil && ctx.Err() != nil {
			// The service already applied the change. Record its quantity and
			// keep whatever product details were known before.
			s.mu.Lock()
			if idx := s.indexOf(entry.ProductID); idx >= 0 {
				product = s.items[idx].Product
			}
			s.merge(LineItem{ProductID: entry.ProductID, Quantity: entry.Quantity, Product: product})
			s.mu.Unlock()
			return s.fail(ctx, span, op, errors.Wrap(ctx.Err(), "resolve product"))
		}
		if err != nil {
			s.lg.Warn("Resolve product",
				zap.String("product_id", entry.ProductID),
				zap.Error(err),
			)
			missing = append(missing, entry.ProductID)
		}
	}

	s.mu.Lock()
	s.merge(LineItem{ProductID: entry.ProductID, Quantity: entry.Quantity, Product: product})
	s.mu.Unlock()

	s.succeed(ctx, op)
	s.reportMissing(missing)
	if op == OpAdd {
		s.notifier.Notify(SeveritySuccess, "Item added to cart")
	} else {
		s.notifier.Notify(SeveritySuccess, "Cart updated")
	}
	return nil
}

// merge installs li keyed by product id: an existing entry is replaced in
// place, a new one is appended, and a non-positive quantity removes it.
// Caller must hold s.mu.
func (s *Synchronizer) merge(li LineItem) {
	idx := s.indexOf(li.ProductID)
	switch {
	case li.Quantity < 1 && idx >= 0:
		s.items = append(s.items[:idx:idx], s.items[idx+1:]...)
	case li.Quantity < 1:
	case idx >= 0:
		s.items[idx] = li
	default:
		s.items = append(s.items, li)
	}
}

// RemoveItem deletes a line item. Removing an absent item succeeds.
func (s *Synchronizer) RemoveItem(ctx context.Context, productID string) error {
	ctx, span := s.tracer.Start(ctx, "cart.RemoveItem",
		trace.WithAttributes(attribute.String("product.id", productID)),
	)
	defer span.End()

	if productID == "" {
		return s.reject(ctx, OpRemove, &ValidationError{Field: "product_id", Reason: "must not be empty"})
	}

	if err := s.acquire(ctx, span, OpRemove, gateWeight); err != nil {
		return err
	}
	defer s.gate.Release(gateWeight)

	if err := s.svc.RemoveItem(ctx, productID); err != nil && !errors.Is(err, ErrNotFound) {
		return s.fail(ctx, span, OpRemove, err)
	}

	s.mu.Lock()
	if idx := s.indexOf(productID); idx >= 0 {
		s.items = append(s.items[:idx:idx], s.items[idx+1:]...)
	}
	s.mu.Unlock()

	s.succeed(ctx, OpRemove)
	s.notifier.Notify(SeveritySuccess, "Item removed from cart")
	return nil
}

// Clear empties the remote cart and then the local items.
func (s *Synchronizer) Clear(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "cart.Clear")
	defer span.End()

	if err := s.acquire(ctx, span, OpClear, gateWeight); err != nil {
		return err
	}
	defer s.gate.Release(gateWeight)

	if err := s.svc.Clear(ctx); err != nil {
		return s.fail(ctx, span, OpClear, err)
	}

	s.mu.Lock()
	s.info = Info{}
	s.items = nil
	s.mu.Unlock()

	s.succeed(ctx, OpClear)
	s.notifier.Notify(SeveritySuccess, "Cart cleared")
	return nil
}

// Checkout places an order from the remote cart. On success the local state
// is reset; on failure items are kept so the user can retry.
func (s *Synchronizer) Checkout(ctx context.Context) (*Receipt, error) {
	ctx, span := s.tracer.Start(ctx, "cart.Checkout")
	defer span.End()

	if err := s.acquire(ctx, span, OpCheckout, gateWeight); err != nil {
		return nil, err
	}
	defer s.gate.Release(gateWeight)

	receipt, err := s.svc.Checkout(ctx)
	if err == nil && receipt == nil {
		err = &UpstreamError{Op: "checkout", Message: "order was not confirmed"}
	}
	if err != nil {
		return nil, s.fail(ctx, span, OpCheckout, err)
	}

	s.mu.Lock()
	s.info = Info{}
	s.items = nil
	s.mu.Unlock()

	s.succeed(ctx, OpCheckout)
	span.SetAttributes(attribute.String("order.id", receipt.OrderID))
	msg := receipt.Message
	if msg == "" {
		msg = fmt.Sprintf("Order %s placed", receipt.OrderID)
	}
	s.notifier.Notify(SeveritySuccess, msg)
	return receipt, nil
}

// acquire waits for the gate and marks the operation in flight. Giving up on
// the wait is reported like any other failure of op.
func (s *Synchronizer) acquire(ctx context.Context, span trace.Span, op string, weight int64) error {
	err := s.gate.Acquire(ctx, weight)
	s.begin()
	if err != nil {
		return s.fail(ctx, span, op, errors.Wrap(err, "wait for cart"))
	}
	return nil
}

func (s *Synchronizer) begin() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inflight++
	s.status = StatusLoading
}

// end records the outcome. While other operations are in flight the status
// stays loading.
func (s *Synchronizer) end(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inflight--
	s.err = err
	if s.inflight > 0 {
		return
	}
	if err != nil {
		s.status = StatusFailed
	} else {
		s.status = StatusSucceeded
	}
}

func (s *Synchronizer) succeed(ctx context.Context, op string) {
	s.end(nil)
	s.count(ctx, op, outcomeSucceeded)
}

func (s *Synchronizer) fail(ctx context.Context, span trace.Span, op string, err error) error {
	s.end(err)
	s.count(ctx, op, outcomeFailed)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	s.lg.Warn("Cart operation failed", zap.String("op", op), zap.Error(err))
	s.notifier.Notify(SeverityError, Message(err))
	return err
}

// reject reports a local validation failure without touching the status.
func (s *Synchronizer) reject(ctx context.Context, op string, err error) error {
	s.count(ctx, op, outcomeRejected)
	s.notifier.Notify(SeverityWarning, Message(err))
	return err
}

func (s *Synchronizer) count(ctx context.Context, op, outcome string) {
	s.ops.Add(ctx, 1, metric.WithAttributes(
		attribute.String("op", op),
		attribute.String("outcome", outcome),
	))
}

func (s *Synchronizer) reportMissing(ids []string) {
	if len(ids) == 0 {
		return
	}
	err := &PartialJoinError{ProductIDs: ids}
	s.lg.Warn("Partial product join", zap.Error(err))
	s.notifier.Notify(SeverityWarning, err.Error())
}

// join resolves product metadata for every entry in parallel. Order follows
// entries; ids of unresolved products are returned separately.
func (s *Synchronizer) join(ctx context.Context, entries []Entry) ([]LineItem, []string) {
	items := make([]LineItem, len(entries))
	failed := make([]bool, len(entries))

	var g errgroup.Group
	g.SetLimit(s.joinLimit)
	for i, e := range entries {
		items[i] = LineItem{ProductID: e.ProductID, Quantity: e.Quantity}
		g.Go(func() error {
			p, err := s.catalog.Product(ctx, e.ProductID)
			if err != nil {
				s.lg.Debug("Resolve product",
					zap.String("product_id", e.ProductID),
					zap.Error(err),
				)
				failed[i] = true
				return nil
			}
			items[i].Product = p
			return nil
		})
	}
	_ = g.Wait()

	var missing []string
	for i, f := range failed {
		if f {
			missing = append(missing, entries[i].ProductID)
		}
	}
	return items, missing
}

// Caller must hold s.mu.
func (s *Synchronizer) indexOf(productID string) int {
	for i, li := range s.items {
		if li.ProductID == productID {
			return i
		}
	}
	return -1
}

// dedupe collapses repeated product ids, keeping the first position and the
// last quantity, and drops entries with a non-positive quantity.
func dedupe(entries []Entry) []Entry {
	out := make([]Entry, 0, len(entries))
	pos := make(map[string]int, len(entries))
	for _, e := range entries {
		if e.Quantity < 1 {
			continue
		}
		if i, ok := pos[e.ProductID]; ok {
			out[i].Quantity = e.Quantity
			continue
		}
		pos[e.ProductID] = len(out)
		out = append(out, e)
	}
	return out
}

func validateLine(productID string, quantity int) error {
	if productID == "" {
		return &ValidationError{Field: "product_id", Reason: "must not be empty"}
	}
	if quantity < 1 {
		return &ValidationError{Field: "quantity", Reason: fmt.Sprintf("must be at least 1, got %d", quantity)}
	}
	return nil
}
