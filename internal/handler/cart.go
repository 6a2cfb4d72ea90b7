package handler

import (
	"context"
	"net/http"

	"github.com/xenking/kart-storefront/internal/domain/alert"
	"github.com/xenking/kart-storefront/internal/domain/cart"
	"github.com/xenking/kart-storefront/internal/session"
)

func writeSnapshot(w http.ResponseWriter, s *session.Session) {
	snap := s.Cart.Snapshot()
	writeJSON(w, http.StatusOK, func(e *encoder) { e.snapshot(snap) })
}

// getCart refreshes the cart from the backend and returns it.
func (h *Handler) getCart(w http.ResponseWriter, r *http.Request, s *session.Session) {
	if err := s.Cart.Fetch(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	writeSnapshot(w, s)
}

func (h *Handler) addItem(w http.ResponseWriter, r *http.Request, s *session.Session) {
	writeLine(w, r, s, s.Cart.AddItem)
}

func (h *Handler) updateItem(w http.ResponseWriter, r *http.Request, s *session.Session) {
	writeLine(w, r, s, s.Cart.UpdateItem)
}

func writeLine(w http.ResponseWriter, r *http.Request, s *session.Session,
	op func(ctx context.Context, productID string, quantity int) error,
) {
	req, err := decodeLine(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := op(r.Context(), req.ProductID, req.Quantity); err != nil {
		writeError(w, r, err)
		return
	}
	writeSnapshot(w, s)
}

func (h *Handler) removeItem(w http.ResponseWriter, r *http.Request, s *session.Session) {
	if err := s.Cart.RemoveItem(r.Context(), r.PathValue("productID")); err != nil {
		writeError(w, r, err)
		return
	}
	writeSnapshot(w, s)
}

func (h *Handler) clearCart(w http.ResponseWriter, r *http.Request, s *session.Session) {
	if err := s.Cart.Clear(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	writeSnapshot(w, s)
}

func (h *Handler) checkout(w http.ResponseWriter, r *http.Request, s *session.Session) {
	receipt, err := s.Cart.Checkout(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *encoder) { e.receipt(receipt) })
}

func (h *Handler) listAlerts(w http.ResponseWriter, _ *http.Request, s *session.Session) {
	var events []alert.Event
	if s != nil {
		events = s.Alerts.List()
	}
	writeJSON(w, http.StatusOK, func(e *encoder) { list(e, "alerts", events, (*encoder).alertEvent) })
}

func (h *Handler) dismissAlert(w http.ResponseWriter, r *http.Request, s *session.Session) {
	if s == nil || !s.Alerts.Dismiss(r.PathValue("id")) {
		writeError(w, r, cart.ErrNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
