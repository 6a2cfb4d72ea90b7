package backend

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-storefront/internal/domain/cart"
	"github.com/xenking/kart-storefront/internal/domain/storefront"
)

// ParseError reports a response body that does not match the expected schema.
type ParseError struct {
	Op  string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s response: %v", e.Op, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// normKey folds the backend's mixed key styles ("ImageURL", "image_url",
// "OrderDate") into one form.
func normKey(key []byte) string {
	return strings.ToLower(strings.ReplaceAll(string(key), "_", ""))
}

// decodeObject iterates an object, passing normalized keys. A null object is
// treated as empty.
func decodeObject(d *jx.Decoder, f func(d *jx.Decoder, key string) error) error {
	if d.Next() == jx.Null {
		return d.Null()
	}
	return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		return f(d, normKey(key))
	})
}

// decodeArray iterates an array. A null array is treated as empty.
func decodeArray(d *jx.Decoder, f func(d *jx.Decoder) error) error {
	if d.Next() == jx.Null {
		return d.Null()
	}
	return d.Arr(f)
}

// decodeID accepts string and numeric identifiers.
func decodeID(d *jx.Decoder) (string, error) {
	switch tt := d.Next(); tt {
	case jx.String:
		return d.Str()
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return "", err
		}
		return string(n), nil
	case jx.Null:
		return "", d.Null()
	default:
		return "", errors.Errorf("unexpected %s for identifier", tt)
	}
}

func decodeString(d *jx.Decoder) (string, error) {
	if d.Next() == jx.Null {
		return "", d.Null()
	}
	return d.Str()
}

func decodeInt(d *jx.Decoder) (int, error) {
	if d.Next() == jx.Null {
		return 0, d.Null()
	}
	return d.Int()
}

func decodeFloat(d *jx.Decoder) (float64, error) {
	if d.Next() == jx.Null {
		return 0, d.Null()
	}
	return d.Float64()
}

// decodeDecimal accepts numbers and numeric strings.
func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	switch tt := d.Next(); tt {
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(string(n))
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(s)
	case jx.Null:
		return decimal.Zero, d.Null()
	default:
		return decimal.Zero, errors.Errorf("unexpected %s for amount", tt)
	}
}

func decodeTime(d *jx.Decoder) (time.Time, error) {
	s, err := decodeString(d)
	if err != nil || s == "" {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "parse time %q", s)
	}
	return t, nil
}

type productPayload struct {
	ID          string          `json:"id" validate:"required"`
	Name        string          `json:"name" validate:"required"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price" validate:"-"`
	ImageURL    string          `json:"ImageURL"`
	CategoryID  string          `json:"category_id"`
	Quantity    int             `json:"quantity" validate:"gte=0"`
}

func (p *productPayload) Decode(d *jx.Decoder) error {
	return decodeObject(d, func(d *jx.Decoder, key string) (err error) {
		switch key {
		case "id":
			p.ID, err = decodeID(d)
		case "name":
			p.Name, err = decodeString(d)
		case "description":
			p.Description, err = decodeString(d)
		case "price":
			p.Price, err = decodeDecimal(d)
		case "imageurl":
			p.ImageURL, err = decodeString(d)
		case "categoryid":
			p.CategoryID, err = decodeID(d)
		case "quantity":
			p.Quantity, err = decodeInt(d)
		default:
			err = d.Skip()
		}
		return errors.Wrap(err, key)
	})
}

func (p *productPayload) domain() *cart.Product {
	return &cart.Product{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		ImageURL:    p.ImageURL,
		CategoryID:  p.CategoryID,
		Stock:       p.Quantity,
	}
}

type entryPayload struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"gte=0"`
	seen      bool
}

func (e *entryPayload) Decode(d *jx.Decoder) error {
	return decodeObject(d, func(d *jx.Decoder, key string) (err error) {
		switch key {
		case "productid":
			e.ProductID, err = decodeID(d)
		case "quantity":
			e.seen = true
			e.Quantity, err = decodeInt(d)
		default:
			err = d.Skip()
		}
		return errors.Wrap(err, key)
	})
}

type cartPayload struct {
	Info    cart.Info
	Entries []entryPayload `json:"cart_items" validate:"dive"`
}

func (c *cartPayload) Decode(d *jx.Decoder) error {
	return decodeObject(d, func(d *jx.Decoder, key string) (err error) {
		switch key {
		case "cart":
			err = decodeObject(d, func(d *jx.Decoder, key string) (err error) {
				switch key {
				case "id":
					c.Info.ID, err = decodeID(d)
				case "userid":
					c.Info.UserID, err = decodeID(d)
				default:
					err = d.Skip()
				}
				return errors.Wrap(err, key)
			})
		case "cartitems":
			err = decodeArray(d, func(d *jx.Decoder) error {
				var e entryPayload
				if err := e.Decode(d); err != nil {
					return err
				}
				c.Entries = append(c.Entries, e)
				return nil
			})
		default:
			err = d.Skip()
		}
		return errors.Wrap(err, key)
	})
}

type receiptPayload struct {
	OrderID string `json:"order_id" validate:"required"`
	Message string `json:"message"`
}

func (r *receiptPayload) Decode(d *jx.Decoder) error {
	return decodeObject(d, func(d *jx.Decoder, key string) (err error) {
		switch key {
		case "orderid":
			r.OrderID, err = decodeID(d)
		case "message":
			r.Message, err = decodeString(d)
		default:
			err = d.Skip()
		}
		return errors.Wrap(err, key)
	})
}

type categoryPayload struct {
	ID   string `json:"id" validate:"required"`
	Name string `json:"name" validate:"required"`
}

func (c *categoryPayload) Decode(d *jx.Decoder) error {
	return decodeObject(d, func(d *jx.Decoder, key string) (err error) {
		switch key {
		case "id":
			c.ID, err = decodeID(d)
		case "name":
			c.Name, err = decodeString(d)
		default:
			err = d.Skip()
		}
		return errors.Wrap(err, key)
	})
}

type storePayload struct {
	ID       string `json:"id" validate:"required"`
	Name     string `json:"name" validate:"required"`
	Address  string `json:"address"`
	Location string `json:"location"`
	Phone    string `json:"phone"`
}

func (s *storePayload) Decode(d *jx.Decoder) error {
	return decodeObject(d, func(d *jx.Decoder, key string) (err error) {
		switch key {
		case "id":
			s.ID, err = decodeID(d)
		case "name":
			s.Name, err = decodeString(d)
		case "address":
			s.Address, err = decodeString(d)
		case "location":
			s.Location, err = decodeString(d)
		case "phone":
			s.Phone, err = decodeString(d)
		default:
			err = d.Skip()
		}
		return errors.Wrap(err, key)
	})
}

func (s *storePayload) domain() storefront.Store {
	return storefront.Store{
		ID:       s.ID,
		Name:     s.Name,
		Address:  s.Address,
		Location: s.Location,
		Phone:    s.Phone,
	}
}

type profilePayload struct {
	ID                  string  `json:"id" validate:"required"`
	PhoneNumber         string  `json:"phone_number"`
	DiscountLevel       int     `json:"discount_level" validate:"gte=0"`
	ProgressToNextLevel float64 `json:"progress_to_next_level" validate:"gte=0"`
	LoyaltyStatus       string  `json:"loyalty_status"`
	CurrentPoints       int     `json:"current_points" validate:"gte=0"`
}

func (p *profilePayload) Decode(d *jx.Decoder) error {
	return decodeObject(d, func(d *jx.Decoder, key string) (err error) {
		switch key {
		case "id":
			p.ID, err = decodeID(d)
		case "phonenumber":
			p.PhoneNumber, err = decodeString(d)
		case "discountlevel":
			p.DiscountLevel, err = decodeInt(d)
		case "progresstonextlevel":
			p.ProgressToNextLevel, err = decodeFloat(d)
		case "loyaltystatus":
			p.LoyaltyStatus, err = decodeString(d)
		case "currentpoints":
			p.CurrentPoints, err = decodeInt(d)
		default:
			err = d.Skip()
		}
		return errors.Wrap(err, key)
	})
}

type discountCardPayload struct {
	ID                  string  `json:"id" validate:"required"`
	PhoneNumber         string  `json:"phone_number"`
	DiscountLevel       int     `json:"discount_level" validate:"gte=0"`
	ProgressToNextLevel float64 `json:"progress_to_next_level" validate:"gte=0"`
	QRCode              string  `json:"qr_code"`
}

func (p *discountCardPayload) Decode(d *jx.Decoder) error {
	return decodeObject(d, func(d *jx.Decoder, key string) (err error) {
		switch key {
		case "id":
			p.ID, err = decodeID(d)
		case "phonenumber":
			p.PhoneNumber, err = decodeString(d)
		case "discountlevel":
			p.DiscountLevel, err = decodeInt(d)
		case "progresstonextlevel":
			p.ProgressToNextLevel, err = decodeFloat(d)
		case "qrcode":
			p.QRCode, err = decodeString(d)
		default:
			err = d.Skip()
		}
		return errors.Wrap(err, key)
	})
}

type tierPayload struct {
	ID          string `json:"id" validate:"required"`
	Name        string `json:"name" validate:"required"`
	MinPoints   int    `json:"min_points" validate:"gte=0"`
	Description string `json:"description"`
	Benefits    string `json:"benefits"`
}

func (t *tierPayload) Decode(d *jx.Decoder) error {
	return decodeObject(d, func(d *jx.Decoder, key string) (err error) {
		switch key {
		case "id":
			t.ID, err = decodeID(d)
		case "name":
			t.Name, err = decodeString(d)
		case "minpoints":
			t.MinPoints, err = decodeInt(d)
		case "description":
			t.Description, err = decodeString(d)
		case "benefits":
			t.Benefits, err = decodeString(d)
		default:
			err = d.Skip()
		}
		return errors.Wrap(err, key)
	})
}

func (t *tierPayload) domain() *storefront.Tier {
	return &storefront.Tier{
		ID:          t.ID,
		Name:        t.Name,
		MinPoints:   t.MinPoints,
		Description: t.Description,
		Benefits:    t.Benefits,
	}
}

type activityPayload struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Description string `json:"description"`
	CreatedAt   string `json:"created_at"`
}

func (a *activityPayload) Decode(d *jx.Decoder) error {
	return decodeObject(d, func(d *jx.Decoder, key string) (err error) {
		switch key {
		case "id":
			a.ID, err = decodeID(d)
		case "type":
			a.Type, err = decodeString(d)
		case "description":
			a.Description, err = decodeString(d)
		case "createdat":
			a.CreatedAt, err = decodeString(d)
		default:
			err = d.Skip()
		}
		return errors.Wrap(err, key)
	})
}

type loyaltyPayload struct {
	CurrentPoints int               `json:"current_points" validate:"gte=0"`
	Status        string            `json:"loyalty_status"`
	Tier          *tierPayload      `json:"current_tier" validate:"omitnil"`
	Activities    []activityPayload `json:"loyalty_activities"`
}

func (l *loyaltyPayload) Decode(d *jx.Decoder) error {
	return decodeObject(d, func(d *jx.Decoder, key string) (err error) {
		switch key {
		case "currentpoints":
			l.CurrentPoints, err = decodeInt(d)
		case "loyaltystatus":
			l.Status, err = decodeString(d)
		case "currenttier":
			if d.Next() == jx.Null {
				return d.Null()
			}
			l.Tier = &tierPayload{}
			err = l.Tier.Decode(d)
		case "loyaltyactivities":
			err = decodeArray(d, func(d *jx.Decoder) error {
				var a activityPayload
				if err := a.Decode(d); err != nil {
					return err
				}
				l.Activities = append(l.Activities, a)
				return nil
			})
		default:
			err = d.Skip()
		}
		return errors.Wrap(err, key)
	})
}

func (l *loyaltyPayload) domain() *storefront.Loyalty {
	out := &storefront.Loyalty{
		CurrentPoints: l.CurrentPoints,
		Status:        l.Status,
		Activities:    make([]storefront.Activity, len(l.Activities)),
	}
	if l.Tier != nil {
		out.Tier = l.Tier.domain()
	}
	for i, a := range l.Activities {
		out.Activities[i] = storefront.Activity(a)
	}
	return out
}

type orderItemPayload struct {
	ID        string          `json:"id"`
	ProductID string          `json:"product_id" validate:"required"`
	Quantity  int             `json:"quantity" validate:"gte=1"`
	Price     decimal.Decimal `json:"price" validate:"-"`
}

func (o *orderItemPayload) Decode(d *jx.Decoder) error {
	return decodeObject(d, func(d *jx.Decoder, key string) (err error) {
		switch key {
		case "id":
			o.ID, err = decodeID(d)
		case "productid":
			o.ProductID, err = decodeID(d)
		case "quantity":
			o.Quantity, err = decodeInt(d)
		case "price":
			o.Price, err = decodeDecimal(d)
		default:
			err = d.Skip()
		}
		return errors.Wrap(err, key)
	})
}

type orderPayload struct {
	ID          string             `json:"id" validate:"required"`
	OrderDate   time.Time          `json:"order_date"`
	Status      string             `json:"status"`
	TotalAmount decimal.Decimal    `json:"total_amount" validate:"-"`
	Items       []orderItemPayload `json:"items" validate:"dive"`
}

func (o *orderPayload) Decode(d *jx.Decoder) error {
	return decodeObject(d, func(d *jx.Decoder, key string) (err error) {
		switch key {
		case "id":
			o.ID, err = decodeID(d)
		case "orderdate":
			o.OrderDate, err = decodeTime(d)
		case "status":
			o.Status, err = decodeString(d)
		case "totalamount":
			o.TotalAmount, err = decodeDecimal(d)
		case "items":
			err = decodeArray(d, func(d *jx.Decoder) error {
				var item orderItemPayload
				if err := item.Decode(d); err != nil {
					return err
				}
				o.Items = append(o.Items, item)
				return nil
			})
		default:
			err = d.Skip()
		}
		return errors.Wrap(err, key)
	})
}

func (o *orderPayload) domain() storefront.Order {
	out := storefront.Order{
		ID:          o.ID,
		OrderDate:   o.OrderDate,
		Status:      o.Status,
		TotalAmount: o.TotalAmount,
		Items:       make([]storefront.OrderItem, len(o.Items)),
	}
	for i, item := range o.Items {
		out.Items[i] = storefront.OrderItem{
			ID:        item.ID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     item.Price,
		}
	}
	return out
}

type notificationPayload struct {
	ID        string `json:"id" validate:"required"`
	Type      string `json:"type"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	CreatedAt string `json:"created_at"`
}

func (n *notificationPayload) Decode(d *jx.Decoder) error {
	return decodeObject(d, func(d *jx.Decoder, key string) (err error) {
		switch key {
		case "id":
			n.ID, err = decodeID(d)
		case "type":
			n.Type, err = decodeString(d)
		case "title":
			n.Title, err = decodeString(d)
		case "message":
			n.Message, err = decodeString(d)
		case "createdat":
			n.CreatedAt, err = decodeString(d)
		default:
			err = d.Skip()
		}
		return errors.Wrap(err, key)
	})
}

// decodeList decodes {"<field>": [...]} into a slice. A missing field
// leaves out empty.
func decodeList[T any, PT interface {
	*T
	Decode(d *jx.Decoder) error
}](d *jx.Decoder, field string, out *[]T) error {
	return decodeObject(d, func(d *jx.Decoder, key string) error {
		if key != field {
			return d.Skip()
		}
		return decodeArray(d, func(d *jx.Decoder) error {
			var v T
			if err := PT(&v).Decode(d); err != nil {
				return err
			}
			*out = append(*out, v)
			return nil
		})
	})
}

// decodeField decodes {"<field>": {...}} into v. found is false when the
// field is absent or null.
func decodeField[T any, PT interface {
	*T
	Decode(d *jx.Decoder) error
}](d *jx.Decoder, field string, v *T) (found bool, err error) {
	err = decodeObject(d, func(d *jx.Decoder, key string) error {
		if key != field {
			return d.Skip()
		}
		if d.Next() == jx.Null {
			return d.Null()
		}
		found = true
		return PT(v).Decode(d)
	})
	return found, err
}
