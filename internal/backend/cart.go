package backend

import (
	"context"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/kart-storefront/internal/domain/cart"
)

var _ cart.Service = (*Client)(nil)

// Get fetches the remote cart with its line items.
func (c *Client) Get(ctx context.Context) (*cart.Remote, error) {
	const op = "get cart"

	var p cartPayload
	if err := c.do(ctx, request{op: op, method: http.MethodGet, path: "/cart"}, p.Decode); err != nil {
		return nil, err
	}
	if err := c.check(op, &p); err != nil {
		return nil, err
	}

	remote := &cart.Remote{
		Info:    p.Info,
		Entries: make([]cart.Entry, len(p.Entries)),
	}
	for i, e := range p.Entries {
		remote.Entries[i] = cart.Entry{ProductID: e.ProductID, Quantity: e.Quantity}
	}
	return remote, nil
}

// AddItem adds quantity of productID and returns the resulting line item.
func (c *Client) AddItem(ctx context.Context, productID string, quantity int) (cart.Entry, error) {
	return c.writeItem(ctx, "add cart item", http.MethodPost, productID, quantity)
}

// UpdateItem sets the quantity of productID and returns the resulting line item.
func (c *Client) UpdateItem(ctx context.Context, productID string, quantity int) (cart.Entry, error) {
	return c.writeItem(ctx, "update cart item", http.MethodPut, productID, quantity)
}

func (c *Client) writeItem(ctx context.Context, op, method, productID string, quantity int) (cart.Entry, error) {
	req := request{
		op:     op,
		method: method,
		path:   "/cart/items",
		body: func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				e.Field("product_id", func(e *jx.Encoder) { e.Str(productID) })
				e.Field("quantity", func(e *jx.Encoder) { e.Int(quantity) })
			})
		},
	}

	var p entryPayload
	if err := c.do(ctx, req, p.Decode); err != nil {
		return cart.Entry{}, err
	}
	if !p.seen {
		return cart.Entry{}, c.parseError(op, http.StatusOK, errors.New("quantity missing"))
	}
	if err := c.check(op, &p); err != nil {
		return cart.Entry{}, err
	}
	return cart.Entry{ProductID: p.ProductID, Quantity: p.Quantity}, nil
}

// RemoveItem deletes the line item for productID.
func (c *Client) RemoveItem(ctx context.Context, productID string) error {
	return c.do(ctx, request{
		op:     "remove cart item",
		method: http.MethodDelete,
		path:   "/cart/items/" + pathID(productID),
	}, nil)
}

// Clear empties the remote cart.
func (c *Client) Clear(ctx context.Context) error {
	return c.do(ctx, request{
		op:     "clear cart",
		method: http.MethodDelete,
		path:   "/cart/clear",
	}, nil)
}

// Checkout places an order from the remote cart.
func (c *Client) Checkout(ctx context.Context) (*cart.Receipt, error) {
	const op = "checkout"

	var p receiptPayload
	if err := c.do(ctx, request{op: op, method: http.MethodPost, path: "/cart/checkout"}, p.Decode); err != nil {
		return nil, err
	}
	if err := c.check(op, &p); err != nil {
		return nil, err
	}
	return &cart.Receipt{OrderID: p.OrderID, Message: p.Message}, nil
}
