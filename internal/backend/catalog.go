package backend

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/kart-storefront/internal/domain/cart"
	"github.com/xenking/kart-storefront/internal/domain/storefront"
)

var _ storefront.Backend = (*Client)(nil)

// Product resolves a product id to its metadata. A missing or null product
// is cart.ErrNotFound.
func (c *Client) Product(ctx context.Context, id string) (*cart.Product, error) {
	const op = "get product"

	var (
		p     productPayload
		found bool
	)
	err := c.do(ctx, request{op: op, method: http.MethodGet, path: "/products/" + pathID(id)},
		func(d *jx.Decoder) (err error) {
			found, err = decodeField(d, "product", &p)
			return err
		})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errors.Wrap(cart.ErrNotFound, op)
	}
	if err := c.check(op, &p); err != nil {
		return nil, err
	}
	return p.domain(), nil
}

// Products lists the catalog.
func (c *Client) Products(ctx context.Context, f storefront.Filter) ([]cart.Product, error) {
	const op = "list products"

	var list []productPayload
	err := c.do(ctx, request{op: op, method: http.MethodGet, path: "/products", query: filterQuery(f)},
		func(d *jx.Decoder) error { return decodeList(d, "products", &list) })
	if err != nil {
		return nil, err
	}

	out := make([]cart.Product, len(list))
	for i := range list {
		if err := c.check(op, &list[i]); err != nil {
			return nil, err
		}
		out[i] = *list[i].domain()
	}
	return out, nil
}

func filterQuery(f storefront.Filter) url.Values {
	q := url.Values{}
	if f.CategoryID != "" {
		q.Set("category_id", f.CategoryID)
	}
	if f.MinPrice != nil {
		q.Set("min_price", f.MinPrice.String())
	}
	if f.MaxPrice != nil {
		q.Set("max_price", f.MaxPrice.String())
	}
	if f.SortBy != "" {
		q.Set("sort_by", f.SortBy)
	}
	if f.SortOrder != "" {
		q.Set("sort_order", f.SortOrder)
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	if f.Offset > 0 {
		q.Set("offset", strconv.Itoa(f.Offset))
	}
	return q
}

// Categories lists catalog categories.
func (c *Client) Categories(ctx context.Context) ([]storefront.Category, error) {
	const op = "list categories"

	var list []categoryPayload
	err := c.do(ctx, request{op: op, method: http.MethodGet, path: "/categories"},
		func(d *jx.Decoder) error { return decodeList(d, "categories", &list) })
	if err != nil {
		return nil, err
	}

	out := make([]storefront.Category, len(list))
	for i := range list {
		if err := c.check(op, &list[i]); err != nil {
			return nil, err
		}
		out[i] = storefront.Category{ID: list[i].ID, Name: list[i].Name}
	}
	return out, nil
}

// Stores lists shop locations.
func (c *Client) Stores(ctx context.Context) ([]storefront.Store, error) {
	const op = "list stores"

	var list []storePayload
	err := c.do(ctx, request{op: op, method: http.MethodGet, path: "/stores"},
		func(d *jx.Decoder) error { return decodeList(d, "stores", &list) })
	if err != nil {
		return nil, err
	}

	out := make([]storefront.Store, len(list))
	for i := range list {
		if err := c.check(op, &list[i]); err != nil {
			return nil, err
		}
		out[i] = list[i].domain()
	}
	return out, nil
}

// Store returns a shop location by id.
func (c *Client) Store(ctx context.Context, id string) (*storefront.Store, error) {
	const op = "get store"

	var (
		p     storePayload
		found bool
	)
	err := c.do(ctx, request{op: op, method: http.MethodGet, path: "/stores/" + pathID(id)},
		func(d *jx.Decoder) (err error) {
			found, err = decodeField(d, "store", &p)
			return err
		})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errors.Wrap(cart.ErrNotFound, op)
	}
	if err := c.check(op, &p); err != nil {
		return nil, err
	}
	st := p.domain()
	return &st, nil
}
