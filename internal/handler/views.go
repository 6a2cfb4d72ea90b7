package handler

import (
	"net/http"

	"github.com/xenking/kart-storefront/internal/domain/cart"
	"github.com/xenking/kart-storefront/internal/domain/storefront"
	"github.com/xenking/kart-storefront/internal/session"
)

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request, s *session.Session) {
	f, err := parseFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	products, err := s.Views.Catalog(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *encoder) {
		list(e, "products", products, func(e *encoder, p cart.Product) { e.product(&p) })
	})
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request, s *session.Session) {
	p, err := s.Views.Product(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *encoder) {
		e.obj(func(e *encoder) {
			e.field("product", func(e *encoder) { e.product(p) })
		})
	})
}

func (h *Handler) listCategories(w http.ResponseWriter, r *http.Request, s *session.Session) {
	categories, err := s.Views.Categories(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *encoder) { list(e, "categories", categories, (*encoder).category) })
}

func (h *Handler) listStores(w http.ResponseWriter, r *http.Request, s *session.Session) {
	stores, err := s.Views.Stores(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *encoder) { list(e, "stores", stores, (*encoder).store) })
}

func (h *Handler) getStore(w http.ResponseWriter, r *http.Request, s *session.Session) {
	st, err := s.Views.Store(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *encoder) {
		e.obj(func(e *encoder) {
			e.field("store", func(e *encoder) { e.store(*st) })
		})
	})
}

func (h *Handler) getProfile(w http.ResponseWriter, r *http.Request, s *session.Session) {
	account, err := s.Views.Account(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *encoder) { e.account(account) })
}

// getQRCode serves the discount card QR image as is.
func (h *Handler) getQRCode(w http.ResponseWriter, r *http.Request, s *session.Session) {
	qr, err := s.Views.QRCode(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", qr.ContentType)
	w.Header().Set("Cache-Control", "private, max-age=60")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(qr.Image)
}

func (h *Handler) listLoyaltyTiers(w http.ResponseWriter, r *http.Request, s *session.Session) {
	tiers, err := s.Views.LoyaltyTiers(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *encoder) {
		list(e, "tiers", tiers, func(e *encoder, t storefront.Tier) { e.tier(&t) })
	})
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request, s *session.Session) {
	orders, err := s.Views.Orders(r.Context(), r.URL.Query().Get("payment_status"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *encoder) { list(e, "orders", orders, (*encoder).order) })
}

func (h *Handler) listNotifications(w http.ResponseWriter, r *http.Request, s *session.Session) {
	notifications, err := s.Views.Notifications(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *encoder) { list(e, "notifications", notifications, (*encoder).notification) })
}
