package handler

import (
	"io"
	"net/http"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-storefront/internal/domain/cart"
	"github.com/xenking/kart-storefront/internal/domain/storefront"
)

func badBody(reason string) error {
	return &cart.ValidationError{Field: "body", Reason: reason}
}

// decodeBody reads a JSON object from the request, calling fn per field.
func decodeBody(r *http.Request, fn func(d *jx.Decoder, key string) error) error {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize+1))
	if err != nil {
		return errors.Wrap(err, "read body")
	}
	if len(raw) > maxBodySize {
		return badBody("too large")
	}
	if len(raw) == 0 {
		return badBody("must be a JSON object")
	}
	d := jx.DecodeBytes(raw)
	if d.Next() != jx.Object {
		return badBody("must be a JSON object")
	}
	if err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		return fn(d, string(key))
	}); err != nil {
		var vErr *cart.ValidationError
		if errors.As(err, &vErr) {
			return err
		}
		return badBody(err.Error())
	}
	return nil
}

// lineRequest is the body of the cart item endpoints.
type lineRequest struct {
	ProductID string
	Quantity  int
}

func decodeLine(r *http.Request) (lineRequest, error) {
	var (
		req         lineRequest
		hasQuantity bool
	)
	err := decodeBody(r, func(d *jx.Decoder, key string) (err error) {
		switch key {
		case "product_id", "productId":
			switch d.Next() {
			case jx.Number:
				var n jx.Num
				n, err = d.Num()
				req.ProductID = string(n)
			default:
				req.ProductID, err = d.Str()
			}
		case "quantity":
			hasQuantity = true
			req.Quantity, err = d.Int()
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return req, err
	}
	if !hasQuantity {
		return req, &cart.ValidationError{Field: "quantity", Reason: "is required"}
	}
	return req, nil
}

// parseFilter reads catalog filters from the query string.
func parseFilter(r *http.Request) (storefront.Filter, error) {
	q := r.URL.Query()
	f := storefront.Filter{
		CategoryID: q.Get("category_id"),
		SortBy:     q.Get("sort_by"),
		SortOrder:  q.Get("sort_order"),
	}

	for _, p := range []struct {
		name string
		dst  **decimal.Decimal
	}{
		{"min_price", &f.MinPrice},
		{"max_price", &f.MaxPrice},
	} {
		v := q.Get(p.name)
		if v == "" {
			continue
		}
		d, err := decimal.NewFromString(v)
		if err != nil {
			return f, &cart.ValidationError{Field: p.name, Reason: "must be a number"}
		}
		*p.dst = &d
	}

	for _, p := range []struct {
		name string
		dst  *int
	}{
		{"limit", &f.Limit},
		{"offset", &f.Offset},
	} {
		v := q.Get(p.name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return f, &cart.ValidationError{Field: p.name, Reason: "must be an integer"}
		}
		*p.dst = n
	}
	return f, nil
}
