package cart

import (
	"context"

	"github.com/shopspring/decimal"
)

// UnknownProductName is displayed for line items whose product metadata could
// not be resolved.
const UnknownProductName = "unknown product"

// Status is the lifecycle state of the most recent cart operation.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusLoading   Status = "loading"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Product is the display metadata of a catalog item joined into a line item.
type Product struct {
	ID          string
	Name        string
	Description string
	Price       decimal.Decimal
	ImageURL    string
	CategoryID  string
	Stock       int
}

// Info is the remote cart header returned alongside its line items.
type Info struct {
	ID     string
	UserID string
}

// Entry is a line item as known by the Cart Service, before the product join.
type Entry struct {
	ProductID string
	Quantity  int
}

// Remote is the full cart as returned by the Cart Service.
type Remote struct {
	Info    Info
	Entries []Entry
}

// Receipt is returned by the Cart Service when a cart is turned into an order.
type Receipt struct {
	OrderID string
	Message string
}

// LineItem is a cart entry joined with its product metadata. Product is nil
// while unresolved.
type LineItem struct {
	ProductID string
	Quantity  int
	Product   *Product
}

// DisplayName returns the product name or the unknown product fallback.
func (li LineItem) DisplayName() string {
	if li.Product == nil || li.Product.Name == "" {
		return UnknownProductName
	}
	return li.Product.Name
}

// Subtotal is price times quantity, zero for unresolved items.
func (li LineItem) Subtotal() decimal.Decimal {
	if li.Product == nil {
		return decimal.Zero
	}
	return li.Product.Price.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

func (li LineItem) clone() LineItem {
	if li.Product != nil {
		p := *li.Product
		li.Product = &p
	}
	return li
}

// Snapshot is an immutable copy of the cart state. Consumers may keep and read
// it without synchronization.
type Snapshot struct {
	Cart   Info
	Items  []LineItem
	Status Status
	Err    error
}

// Total sums line item subtotals rounded to cents.
func (s Snapshot) Total() decimal.Decimal {
	total := decimal.Zero
	for _, li := range s.Items {
		total = total.Add(li.Subtotal())
	}
	return total.Round(2)
}

// Item returns the line item for productID.
func (s Snapshot) Item(productID string) (LineItem, bool) {
	for _, li := range s.Items {
		if li.ProductID == productID {
			return li, true
		}
	}
	return LineItem{}, false
}

// Service is the remote Cart Service owning persistent per-user cart state.
type Service interface {
	Get(ctx context.Context) (*Remote, error)
	AddItem(ctx context.Context, productID string, quantity int) (Entry, error)
	UpdateItem(ctx context.Context, productID string, quantity int) (Entry, error)
	RemoveItem(ctx context.Context, productID string) error
	Clear(ctx context.Context) error
	Checkout(ctx context.Context) (*Receipt, error)
}

// Catalog resolves a product identifier to its display metadata.
type Catalog interface {
	Product(ctx context.Context, id string) (*Product, error)
}

// Severity classifies a user-visible notification.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Notifier receives user-visible outcomes of cart and storefront operations.
type Notifier interface {
	Notify(severity Severity, message string)
}

// NopNotifier discards notifications.
type NopNotifier struct{}

// Notify implements Notifier.
func (NopNotifier) Notify(Severity, string) {}
