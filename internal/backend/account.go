package backend

import (
	"context"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-playground/validator/v10"

	"github.com/xenking/kart-storefront/internal/domain/cart"
	"github.com/xenking/kart-storefront/internal/domain/storefront"
)

// Credentials are the login form fields.
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Registration is the sign-up form.
type Registration struct {
	Username    string `json:"username" validate:"required,max=64"`
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=6"`
	PhoneNumber string `json:"phone_number" validate:"omitempty,e164"`
}

// Register creates a user account and returns its id.
func (c *Client) Register(ctx context.Context, reg Registration) (string, error) {
	const op = "register"

	if err := c.validate.Struct(reg); err != nil {
		return "", registrationError(err)
	}

	var userID string
	req := request{
		op:     op,
		method: http.MethodPost,
		path:   "/users/register",
		public: true,
		body: func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				e.Field("username", func(e *jx.Encoder) { e.Str(reg.Username) })
				e.Field("email", func(e *jx.Encoder) { e.Str(reg.Email) })
				e.Field("password", func(e *jx.Encoder) { e.Str(reg.Password) })
				e.Field("phoneNumber", func(e *jx.Encoder) { e.Str(reg.PhoneNumber) })
			})
		},
	}
	err := c.do(ctx, req, func(d *jx.Decoder) error {
		return decodeObject(d, func(d *jx.Decoder, key string) (err error) {
			if key != "userid" {
				return d.Skip()
			}
			userID, err = decodeID(d)
			return err
		})
	})
	if err != nil {
		return "", err
	}
	if userID == "" {
		return "", c.parseError(op, http.StatusOK, errors.New("user id missing"))
	}
	return userID, nil
}

// registrationError reports the first invalid registration field.
func registrationError(err error) error {
	var fields validator.ValidationErrors
	if errors.As(err, &fields) && len(fields) > 0 {
		f := fields[0]
		reason := "is invalid"
		switch f.Tag() {
		case "required":
			reason = "is required"
		case "email":
			reason = "must be an email address"
		case "min":
			reason = "must be at least " + f.Param() + " characters"
		case "max":
			reason = "must be at most " + f.Param() + " characters"
		case "e164":
			reason = "must be in international format, e.g. +15551234567"
		}
		return &cart.ValidationError{Field: f.Field(), Reason: reason}
	}
	return &cart.ValidationError{Field: "registration", Reason: err.Error()}
}

// Login exchanges credentials for a bearer token. Rejected credentials are
// cart.ErrUnauthorized.
func (c *Client) Login(ctx context.Context, creds Credentials) (string, error) {
	const op = "login"

	if err := c.validate.Struct(creds); err != nil {
		return "", &cart.ValidationError{Field: "credentials", Reason: "email and password are required"}
	}

	var token string
	req := request{
		op:     op,
		method: http.MethodPost,
		path:   "/users/login",
		public: true,
		body: func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				e.Field("email", func(e *jx.Encoder) { e.Str(creds.Email) })
				e.Field("password", func(e *jx.Encoder) { e.Str(creds.Password) })
			})
		},
	}
	err := c.do(ctx, req, func(d *jx.Decoder) error {
		return decodeObject(d, func(d *jx.Decoder, key string) (err error) {
			if key != "token" {
				return d.Skip()
			}
			token, err = decodeString(d)
			return err
		})
	})
	if err != nil {
		return "", err
	}
	if token == "" {
		return "", c.parseError(op, http.StatusOK, errors.New("token missing"))
	}
	return token, nil
}

// Profile returns the signed-in user's profile.
func (c *Client) Profile(ctx context.Context) (*storefront.Profile, error) {
	const op = "get profile"

	var p profilePayload
	if err := c.do(ctx, request{op: op, method: http.MethodGet, path: "/users/profile"}, p.Decode); err != nil {
		return nil, err
	}
	if err := c.check(op, &p); err != nil {
		return nil, err
	}
	return &storefront.Profile{
		ID:                  p.ID,
		PhoneNumber:         p.PhoneNumber,
		DiscountLevel:       p.DiscountLevel,
		ProgressToNextLevel: p.ProgressToNextLevel,
		LoyaltyStatus:       p.LoyaltyStatus,
		CurrentPoints:       p.CurrentPoints,
	}, nil
}

// Loyalty returns the user's loyalty standing.
func (c *Client) Loyalty(ctx context.Context) (*storefront.Loyalty, error) {
	const op = "get loyalty"

	var p loyaltyPayload
	if err := c.do(ctx, request{op: op, method: http.MethodGet, path: "/users/loyalty"}, p.Decode); err != nil {
		return nil, err
	}
	if err := c.check(op, &p); err != nil {
		return nil, err
	}
	return p.domain(), nil
}

// LoyaltyTiers lists the levels of the loyalty program.
func (c *Client) LoyaltyTiers(ctx context.Context) ([]storefront.Tier, error) {
	const op = "list loyalty tiers"

	var list []tierPayload
	err := c.do(ctx, request{op: op, method: http.MethodGet, path: "/loyalty-tiers"},
		func(d *jx.Decoder) error {
			return decodeArray(d, func(d *jx.Decoder) error {
				var t tierPayload
				if err := t.Decode(d); err != nil {
					return err
				}
				list = append(list, t)
				return nil
			})
		})
	if err != nil {
		return nil, err
	}

	out := make([]storefront.Tier, len(list))
	for i := range list {
		if err := c.check(op, &list[i]); err != nil {
			return nil, err
		}
		out[i] = *list[i].domain()
	}
	return out, nil
}

// DiscountCard returns the user's discount card.
func (c *Client) DiscountCard(ctx context.Context) (*storefront.DiscountCard, error) {
	const op = "get discount card"

	var p discountCardPayload
	if err := c.do(ctx, request{op: op, method: http.MethodGet, path: "/users/discount-card"}, p.Decode); err != nil {
		return nil, err
	}
	if err := c.check(op, &p); err != nil {
		return nil, err
	}
	return &storefront.DiscountCard{
		ID:                  p.ID,
		PhoneNumber:         p.PhoneNumber,
		DiscountLevel:       p.DiscountLevel,
		ProgressToNextLevel: p.ProgressToNextLevel,
		Code:                p.QRCode,
	}, nil
}

// QRCode returns the PNG rendering of the user's discount card code.
func (c *Client) QRCode(ctx context.Context) (*storefront.QRCode, error) {
	const op = "get qr code"

	raw, contentType, err := c.exchange(ctx, request{
		op:     op,
		method: http.MethodGet,
		path:   "/users/qrcode",
		accept: "image/png",
	}, true)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, c.parseError(op, http.StatusOK, errors.New("empty image"))
	}
	if mt, _, _ := mime.ParseMediaType(contentType); !strings.HasPrefix(mt, "image/") {
		return nil, c.parseError(op, http.StatusOK, errors.Errorf("content type %q is not an image", contentType))
	}
	return &storefront.QRCode{ContentType: contentType, Image: raw}, nil
}

// Orders lists the user's orders, filtered by payment status when set.
func (c *Client) Orders(ctx context.Context, paymentStatus string) ([]storefront.Order, error) {
	const op = "list orders"

	var query url.Values
	if paymentStatus != "" {
		query = url.Values{"paymentStatus": {paymentStatus}}
	}

	var list []orderPayload
	err := c.do(ctx, request{op: op, method: http.MethodGet, path: "/orders", query: query},
		func(d *jx.Decoder) error { return decodeList(d, "orders", &list) })
	if err != nil {
		return nil, err
	}

	out := make([]storefront.Order, len(list))
	for i := range list {
		if err := c.check(op, &list[i]); err != nil {
			return nil, err
		}
		out[i] = list[i].domain()
	}
	return out, nil
}

// Notifications lists messages addressed to the user.
func (c *Client) Notifications(ctx context.Context) ([]storefront.Notification, error) {
	const op = "list notifications"

	var list []notificationPayload
	err := c.do(ctx, request{op: op, method: http.MethodGet, path: "/users/notifications"},
		func(d *jx.Decoder) error { return decodeList(d, "notifications", &list) })
	if err != nil {
		return nil, err
	}

	out := make([]storefront.Notification, len(list))
	for i := range list {
		if err := c.check(op, &list[i]); err != nil {
			return nil, err
		}
		out[i] = storefront.Notification(list[i])
	}
	return out, nil
}

// Ping checks that the backend answers HTTP. Any response, including an
// error status, counts as reachable.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/", http.NoBody)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "ping backend")
	}
	_ = resp.Body.Close()
	return nil
}
