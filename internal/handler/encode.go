package handler

import (
	"encoding/base64"
	"net/http"
	"time"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-storefront/internal/domain/alert"
	"github.com/xenking/kart-storefront/internal/domain/cart"
	"github.com/xenking/kart-storefront/internal/domain/storefront"
)

// encoder renders domain types as JSON.
type encoder struct {
	*jx.Encoder
}

func writeJSON(w http.ResponseWriter, code int, fn func(e *encoder)) {
	je := jx.GetEncoder()
	defer jx.PutEncoder(je)
	fn(&encoder{Encoder: je})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(je.Bytes())
}

func (e *encoder) field(name string, fn func(e *encoder)) {
	e.Encoder.Field(name, func(*jx.Encoder) { fn(e) })
}

func (e *encoder) str(name, v string) {
	e.Encoder.Field(name, func(je *jx.Encoder) { je.Str(v) })
}

func (e *encoder) num(name string, v int) {
	e.Encoder.Field(name, func(je *jx.Encoder) { je.Int(v) })
}

func (e *encoder) amount(name string, v decimal.Decimal) {
	e.Encoder.Field(name, func(je *jx.Encoder) { je.Num(jx.Num(v.StringFixed(2))) })
}

func (e *encoder) timestamp(name string, v time.Time) {
	if v.IsZero() {
		e.Encoder.Field(name, func(je *jx.Encoder) { je.Null() })
		return
	}
	e.str(name, v.UTC().Format(time.RFC3339))
}

func (e *encoder) obj(fn func(e *encoder)) {
	e.Encoder.Obj(func(*jx.Encoder) { fn(e) })
}

func (e *encoder) errorBody(code int, msg string) {
	e.obj(func(e *encoder) {
		e.num("code", code)
		e.str("message", msg)
	})
}

func list[T any](e *encoder, name string, items []T, fn func(e *encoder, v T)) {
	e.obj(func(e *encoder) {
		e.field(name, func(e *encoder) {
			e.ArrStart()
			for _, v := range items {
				fn(e, v)
			}
			e.ArrEnd()
		})
	})
}

func (e *encoder) product(p *cart.Product) {
	if p == nil {
		e.Null()
		return
	}
	e.obj(func(e *encoder) {
		e.str("id", p.ID)
		e.str("name", p.Name)
		e.str("description", p.Description)
		e.amount("price", p.Price)
		e.str("image_url", p.ImageURL)
		e.str("category_id", p.CategoryID)
		e.num("stock", p.Stock)
	})
}

func (e *encoder) snapshot(s cart.Snapshot) {
	e.obj(func(e *encoder) {
		e.field("cart", func(e *encoder) {
			e.obj(func(e *encoder) {
				e.str("id", s.Cart.ID)
				e.str("user_id", s.Cart.UserID)
			})
		})
		e.field("items", func(e *encoder) {
			e.ArrStart()
			for _, li := range s.Items {
				e.obj(func(e *encoder) {
					e.str("product_id", li.ProductID)
					e.str("name", li.DisplayName())
					e.num("quantity", li.Quantity)
					e.amount("subtotal", li.Subtotal())
					e.field("product", func(e *encoder) { e.product(li.Product) })
				})
			}
			e.ArrEnd()
		})
		e.str("status", string(s.Status))
		if s.Err != nil {
			e.str("error", cart.Message(s.Err))
		}
		e.amount("total", s.Total())
	})
}

func (e *encoder) receipt(r *cart.Receipt) {
	e.obj(func(e *encoder) {
		e.str("order_id", r.OrderID)
		e.str("message", r.Message)
	})
}

func (e *encoder) alertEvent(ev alert.Event) {
	e.obj(func(e *encoder) {
		e.str("id", ev.ID)
		e.str("message", ev.Message)
		e.str("severity", string(ev.Severity))
		e.timestamp("created_at", ev.CreatedAt)
	})
}

func (e *encoder) category(c storefront.Category) {
	e.obj(func(e *encoder) {
		e.str("id", c.ID)
		e.str("name", c.Name)
	})
}

func (e *encoder) store(s storefront.Store) {
	e.obj(func(e *encoder) {
		e.str("id", s.ID)
		e.str("name", s.Name)
		e.str("address", s.Address)
		e.str("location", s.Location)
		e.str("phone", s.Phone)
	})
}

func (e *encoder) account(a *storefront.Account) {
	p := a.Profile
	e.obj(func(e *encoder) {
		e.field("profile", func(e *encoder) {
			e.obj(func(e *encoder) {
				e.str("id", p.ID)
				e.str("phone_number", p.PhoneNumber)
				e.num("discount_level", p.DiscountLevel)
				e.Encoder.Field("progress_to_next_level", func(je *jx.Encoder) { je.Float64(p.ProgressToNextLevel) })
				e.str("loyalty_status", p.LoyaltyStatus)
				e.num("current_points", p.CurrentPoints)
			})
		})
		e.field("loyalty", func(e *encoder) { e.loyalty(a.Loyalty) })
		e.field("discount_card", func(e *encoder) { e.discountCard(a.DiscountCard) })
		e.field("qr_code", func(e *encoder) {
			if a.QRCode == nil {
				e.Null()
				return
			}
			e.Str("data:" + a.QRCode.ContentType + ";base64," + base64.StdEncoding.EncodeToString(a.QRCode.Image))
		})
	})
}

func (e *encoder) discountCard(c *storefront.DiscountCard) {
	if c == nil {
		e.Null()
		return
	}
	e.obj(func(e *encoder) {
		e.str("id", c.ID)
		e.str("phone_number", c.PhoneNumber)
		e.num("discount_level", c.DiscountLevel)
		e.Encoder.Field("progress_to_next_level", func(je *jx.Encoder) { je.Float64(c.ProgressToNextLevel) })
		e.str("code", c.Code)
	})
}

func (e *encoder) tier(t *storefront.Tier) {
	if t == nil {
		e.Null()
		return
	}
	e.obj(func(e *encoder) {
		e.str("id", t.ID)
		e.str("name", t.Name)
		e.num("min_points", t.MinPoints)
		e.str("description", t.Description)
		e.str("benefits", t.Benefits)
	})
}

func (e *encoder) loyalty(l *storefront.Loyalty) {
	if l == nil {
		e.Null()
		return
	}
	e.obj(func(e *encoder) {
		e.num("current_points", l.CurrentPoints)
		e.str("status", l.Status)
		e.field("tier", func(e *encoder) { e.tier(l.Tier) })
		e.field("activities", func(e *encoder) {
			e.ArrStart()
			for _, a := range l.Activities {
				e.obj(func(e *encoder) {
					e.str("id", a.ID)
					e.str("type", a.Type)
					e.str("description", a.Description)
					e.str("created_at", a.CreatedAt)
				})
			}
			e.ArrEnd()
		})
	})
}

func (e *encoder) order(o storefront.Order) {
	e.obj(func(e *encoder) {
		e.str("id", o.ID)
		e.timestamp("order_date", o.OrderDate)
		e.str("status", o.Status)
		e.amount("total_amount", o.TotalAmount)
		e.field("items", func(e *encoder) {
			e.ArrStart()
			for _, item := range o.Items {
				e.obj(func(e *encoder) {
					e.str("id", item.ID)
					e.str("product_id", item.ProductID)
					e.str("name", item.DisplayName())
					e.num("quantity", item.Quantity)
					e.amount("price", item.Price)
					e.field("product", func(e *encoder) { e.product(item.Product) })
				})
			}
			e.ArrEnd()
		})
	})
}

func (e *encoder) notification(n storefront.Notification) {
	e.obj(func(e *encoder) {
		e.str("id", n.ID)
		e.str("type", n.Type)
		e.str("title", n.Title)
		e.str("message", n.Message)
		e.str("created_at", n.CreatedAt)
	})
}
