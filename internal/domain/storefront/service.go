package storefront

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-faster/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/kart-storefront/internal/domain/cart"
)

// MaxPageSize bounds Filter.Limit.
const MaxPageSize = 100

// Validate checks the filter before it is sent to the backend.
func (f Filter) Validate() error {
	if f.MinPrice != nil && f.MinPrice.IsNegative() {
		return &cart.ValidationError{Field: "min_price", Reason: "must not be negative"}
	}
	if f.MaxPrice != nil && f.MaxPrice.IsNegative() {
		return &cart.ValidationError{Field: "max_price", Reason: "must not be negative"}
	}
	if f.MinPrice != nil && f.MaxPrice != nil && f.MinPrice.GreaterThan(*f.MaxPrice) {
		return &cart.ValidationError{Field: "min_price", Reason: "must not exceed max_price"}
	}
	if f.Limit < 0 || f.Limit > MaxPageSize {
		return &cart.ValidationError{Field: "limit", Reason: fmt.Sprintf("must be between 1 and %d", MaxPageSize)}
	}
	if f.Offset < 0 {
		return &cart.ValidationError{Field: "offset", Reason: "must not be negative"}
	}
	switch strings.ToLower(f.SortOrder) {
	case "", "asc", "desc":
	default:
		return &cart.ValidationError{Field: "sort_order", Reason: "must be asc or desc"}
	}
	return nil
}

// Service loads the read-only storefront views. Every view reports its
// outcome the same way: a failure produces one error alert and an empty
// result produces one informational alert.
type Service struct {
	backend   Backend
	notifier  cart.Notifier
	lg        *zap.Logger
	joinLimit int
}

// NewService creates a Service. A nil notifier drops alerts.
func NewService(backend Backend, notifier cart.Notifier, lg *zap.Logger) *Service {
	if notifier == nil {
		notifier = cart.NopNotifier{}
	}
	if lg == nil {
		lg = zap.NewNop()
	}
	return &Service{
		backend:   backend,
		notifier:  notifier,
		lg:        lg,
		joinLimit: 8,
	}
}

// Catalog lists products matching f.
func (s *Service) Catalog(ctx context.Context, f Filter) ([]cart.Product, error) {
	if err := f.Validate(); err != nil {
		s.notifier.Notify(cart.SeverityWarning, err.Error())
		return nil, err
	}
	products, err := s.backend.Products(ctx, f)
	if err != nil {
		return nil, s.failed("load catalog", err)
	}
	if len(products) == 0 {
		s.notifier.Notify(cart.SeverityInfo, "No products found")
	}
	return products, nil
}

// Categories lists catalog categories.
func (s *Service) Categories(ctx context.Context) ([]Category, error) {
	categories, err := s.backend.Categories(ctx)
	if err != nil {
		return nil, s.failed("load categories", err)
	}
	if len(categories) == 0 {
		s.notifier.Notify(cart.SeverityInfo, "No categories found")
	}
	return categories, nil
}

// Product returns a single product. A missing product is an empty result:
// it is reported as information and returned as cart.ErrNotFound.
func (s *Service) Product(ctx context.Context, id string) (*cart.Product, error) {
	if id == "" {
		err := &cart.ValidationError{Field: "product_id", Reason: "must not be empty"}
		s.notifier.Notify(cart.SeverityWarning, err.Error())
		return nil, err
	}
	p, err := s.backend.Product(ctx, id)
	if errors.Is(err, cart.ErrNotFound) {
		s.notifier.Notify(cart.SeverityInfo, "Product not found")
		return nil, err
	}
	if err != nil {
		return nil, s.failed("load product", err)
	}
	return p, nil
}

// Stores lists shop locations.
func (s *Service) Stores(ctx context.Context) ([]Store, error) {
	stores, err := s.backend.Stores(ctx)
	if err != nil {
		return nil, s.failed("load stores", err)
	}
	if len(stores) == 0 {
		s.notifier.Notify(cart.SeverityInfo, "No stores found")
	}
	return stores, nil
}

// Store returns a single shop location, cart.ErrNotFound when unknown.
func (s *Service) Store(ctx context.Context, id string) (*Store, error) {
	st, err := s.backend.Store(ctx, id)
	if errors.Is(err, cart.ErrNotFound) {
		s.notifier.Notify(cart.SeverityInfo, "Store not found")
		return nil, err
	}
	if err != nil {
		return nil, s.failed("load store", err)
	}
	return st, nil
}

// Account loads the profile page: the profile, loyalty standing, discount
// card and its QR image, all in parallel. The profile is required; any other
// part that fails is left nil and the degraded parts share one warning.
func (s *Service) Account(ctx context.Context) (*Account, error) {
	var (
		acc      Account
		partErrs [3]error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := s.backend.Profile(gctx)
		if err != nil {
			return err
		}
		acc.Profile = *p
		return nil
	})
	g.Go(func() error {
		acc.Loyalty, partErrs[0] = s.backend.Loyalty(gctx)
		return nil
	})
	g.Go(func() error {
		acc.DiscountCard, partErrs[1] = s.backend.DiscountCard(gctx)
		return nil
	})
	g.Go(func() error {
		acc.QRCode, partErrs[2] = s.backend.QRCode(gctx)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, s.failed("load profile", err)
	}

	var degraded []string
	for i, name := range [...]string{"loyalty", "discount card", "QR code"} {
		if partErrs[i] == nil {
			continue
		}
		s.lg.Warn("Load profile part", zap.String("part", name), zap.Error(partErrs[i]))
		degraded = append(degraded, name)
	}
	if partErrs[0] != nil {
		acc.Loyalty = nil
	}
	if partErrs[1] != nil {
		acc.DiscountCard = nil
	}
	if partErrs[2] != nil {
		acc.QRCode = nil
	}
	if len(degraded) > 0 {
		s.notifier.Notify(cart.SeverityWarning,
			"Some profile details are unavailable: "+strings.Join(degraded, ", "))
	}
	return &acc, nil
}

// LoyaltyTiers lists the levels of the loyalty program.
func (s *Service) LoyaltyTiers(ctx context.Context) ([]Tier, error) {
	tiers, err := s.backend.LoyaltyTiers(ctx)
	if err != nil {
		return nil, s.failed("load loyalty tiers", err)
	}
	if len(tiers) == 0 {
		s.notifier.Notify(cart.SeverityInfo, "No loyalty tiers defined")
	}
	return tiers, nil
}

// QRCode returns the image of the user's discount card code.
func (s *Service) QRCode(ctx context.Context) (*QRCode, error) {
	qr, err := s.backend.QRCode(ctx)
	if err != nil {
		return nil, s.failed("load QR code", err)
	}
	return qr, nil
}

// Orders lists past orders, optionally filtered by payment status, with
// every item joined with product metadata. Failed lookups leave the item
// unresolved.
func (s *Service) Orders(ctx context.Context, paymentStatus string) ([]Order, error) {
	orders, err := s.backend.Orders(ctx, paymentStatus)
	if err != nil {
		return nil, s.failed("load orders", err)
	}
	if len(orders) == 0 {
		s.notifier.Notify(cart.SeverityInfo, "You have no orders yet")
		return orders, nil
	}

	var (
		g       errgroup.Group
		missing = make([][]bool, len(orders))
	)
	g.SetLimit(s.joinLimit)
	for i := range orders {
		missing[i] = make([]bool, len(orders[i].Items))
		for j := range orders[i].Items {
			item := &orders[i].Items[j]
			g.Go(func() error {
				p, err := s.backend.Product(ctx, item.ProductID)
				if err != nil {
					missing[i][j] = true
					return nil
				}
				item.Product = p
				return nil
			})
		}
	}
	_ = g.Wait()

	var ids []string
	for i := range missing {
		for j, m := range missing[i] {
			if m {
				ids = append(ids, orders[i].Items[j].ProductID)
			}
		}
	}
	if len(ids) > 0 {
		err := &cart.PartialJoinError{ProductIDs: ids}
		s.lg.Warn("Partial product join", zap.Error(err))
		s.notifier.Notify(cart.SeverityWarning, err.Error())
	}
	return orders, nil
}

// Notifications lists messages addressed to the user.
func (s *Service) Notifications(ctx context.Context) ([]Notification, error) {
	notifications, err := s.backend.Notifications(ctx)
	if err != nil {
		return nil, s.failed("load notifications", err)
	}
	if len(notifications) == 0 {
		s.notifier.Notify(cart.SeverityInfo, "You have no notifications")
	}
	return notifications, nil
}

func (s *Service) failed(op string, err error) error {
	s.lg.Warn("Storefront view failed", zap.String("op", op), zap.Error(err))

	msg := cart.Message(err)
	if errors.Is(err, cart.ErrNotFound) {
		msg = "not found"
	}
	s.notifier.Notify(cart.SeverityError, fmt.Sprintf("Could not %s: %s", op, msg))
	return errors.Wrap(err, op)
}
