package storefront

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/kart-storefront/internal/domain/cart"
)

// Category groups catalog products.
type Category struct {
	ID   string
	Name string
}

// Filter narrows a catalog listing. Nil prices and empty strings are unset.
type Filter struct {
	CategoryID string
	MinPrice   *decimal.Decimal
	MaxPrice   *decimal.Decimal
	SortBy     string
	SortOrder  string
	Limit      int
	Offset     int
}

// Store is a physical shop location.
type Store struct {
	ID       string
	Name     string
	Address  string
	Location string
	Phone    string
}

// Profile is the signed-in user's account summary.
type Profile struct {
	ID                  string
	PhoneNumber         string
	DiscountLevel       int
	ProgressToNextLevel float64
	LoyaltyStatus       string
	CurrentPoints       int
}

// Tier is a loyalty program level.
type Tier struct {
	ID          string
	Name        string
	MinPoints   int
	Description string
	Benefits    string
}

// Activity is a loyalty event such as a redeemed reward.
type Activity struct {
	ID          string
	Type        string
	Description string
	CreatedAt   string
}

// Loyalty is the user's standing in the loyalty program.
type Loyalty struct {
	CurrentPoints int
	Status        string
	Tier          *Tier
	Activities    []Activity
}

// DiscountCard is the user's store discount card. Code is the value encoded
// in the card's QR image.
type DiscountCard struct {
	ID                  string
	PhoneNumber         string
	DiscountLevel       int
	ProgressToNextLevel float64
	Code                string
}

// QRCode is a rendered QR image.
type QRCode struct {
	ContentType string
	Image       []byte
}

// Account combines the profile page views. Everything but Profile is
// optional and nil when it could not be loaded.
type Account struct {
	Profile      Profile
	Loyalty      *Loyalty
	DiscountCard *DiscountCard
	QRCode       *QRCode
}

// OrderItem is an ordered product, joined with catalog metadata when available.
type OrderItem struct {
	ID        string
	ProductID string
	Quantity  int
	Price     decimal.Decimal
	Product   *cart.Product
}

// DisplayName returns the product name or the unknown product fallback.
func (i OrderItem) DisplayName() string {
	if i.Product == nil || i.Product.Name == "" {
		return cart.UnknownProductName
	}
	return i.Product.Name
}

// Order is a past order of the user.
type Order struct {
	ID          string
	OrderDate   time.Time
	Status      string
	TotalAmount decimal.Decimal
	Items       []OrderItem
}

// Notification is a message pushed to the user by the store.
type Notification struct {
	ID        string
	Type      string
	Title     string
	Message   string
	CreatedAt string
}

// Backend is the read surface of the REST backend used by the views.
type Backend interface {
	cart.Catalog
	Products(ctx context.Context, f Filter) ([]cart.Product, error)
	Categories(ctx context.Context) ([]Category, error)
	Stores(ctx context.Context) ([]Store, error)
	Store(ctx context.Context, id string) (*Store, error)
	Profile(ctx context.Context) (*Profile, error)
	Loyalty(ctx context.Context) (*Loyalty, error)
	LoyaltyTiers(ctx context.Context) ([]Tier, error)
	DiscountCard(ctx context.Context) (*DiscountCard, error)
	QRCode(ctx context.Context) (*QRCode, error)
	Orders(ctx context.Context, paymentStatus string) ([]Order, error)
	Notifications(ctx context.Context) ([]Notification, error)
}
