// Package handler implements the storefront HTTP API on top of per-user
// sessions.
package handler

import (
	"context"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/kart-storefront/internal/backend"
	"github.com/xenking/kart-storefront/internal/domain/cart"
	"github.com/xenking/kart-storefront/internal/session"
	"github.com/xenking/kart-storefront/pkg/httpmiddleware"
)

// maxBodySize bounds request bodies.
const maxBodySize = 64 << 10

// Authenticator signs users up and exchanges credentials for a backend
// bearer token.
type Authenticator interface {
	Register(ctx context.Context, reg backend.Registration) (string, error)
	Login(ctx context.Context, creds backend.Credentials) (string, error)
}

// Handler serves the /api routes.
type Handler struct {
	sessions *session.Registry
	auth     Authenticator
}

// New creates a Handler.
func New(sessions *session.Registry, auth Authenticator) *Handler {
	return &Handler{sessions: sessions, auth: auth}
}

// sessionHandlerFunc serves a request on behalf of a signed-in user.
type sessionHandlerFunc func(w http.ResponseWriter, r *http.Request, s *session.Session)

// Register adds every route to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	public := []struct {
		pattern string
		fn      http.HandlerFunc
	}{
		{"POST /api/register", h.register},
		{"POST /api/login", h.login},
		{"POST /api/logout", h.logout},
	}
	private := []struct {
		pattern string
		fn      sessionHandlerFunc
	}{
		{"GET /api/cart", h.getCart},
		{"DELETE /api/cart", h.clearCart},
		{"POST /api/cart/items", h.addItem},
		{"PUT /api/cart/items", h.updateItem},
		{"DELETE /api/cart/items/{productID}", h.removeItem},
		{"POST /api/cart/checkout", h.checkout},

		{"GET /api/products", h.listProducts},
		{"GET /api/products/{id}", h.getProduct},
		{"GET /api/categories", h.listCategories},
		{"GET /api/stores", h.listStores},
		{"GET /api/stores/{id}", h.getStore},
		{"GET /api/profile", h.getProfile},
		{"GET /api/profile/qrcode", h.getQRCode},
		{"GET /api/loyalty-tiers", h.listLoyaltyTiers},
		{"GET /api/orders", h.listOrders},
		{"GET /api/notifications", h.listNotifications},
	}

	// Alerts are local to a session and never create one.
	local := []struct {
		pattern string
		fn      sessionHandlerFunc
	}{
		{"GET /api/alerts", h.listAlerts},
		{"DELETE /api/alerts/{id}", h.dismissAlert},
	}

	for _, rt := range public {
		mux.Handle(rt.pattern, httpmiddleware.Route(rt.pattern, rt.fn))
	}
	for _, rt := range private {
		mux.Handle(rt.pattern, httpmiddleware.Route(rt.pattern, h.withSession(rt.fn)))
	}
	for _, rt := range local {
		mux.Handle(rt.pattern, httpmiddleware.Route(rt.pattern, h.withKnownSession(rt.fn)))
	}
}

// session resolves the caller's session from the bearer token.
func (h *Handler) session(r *http.Request) (*session.Session, error) {
	token := httpmiddleware.BearerToken(r)
	if token == "" {
		return nil, errors.Wrap(cart.ErrUnauthorized, "missing bearer token")
	}
	return h.sessions.Get(token)
}

// withSession runs fn with the caller's session or answers 401. A session
// whose token the backend rejects is dropped.
func (h *Handler) withSession(fn sessionHandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := h.session(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		ctx := zctx.With(r.Context(), zap.String("session", s.ID))
		rec := &statusRecorder{ResponseWriter: w}
		fn(rec, r.WithContext(ctx), s)

		if rec.code == http.StatusUnauthorized {
			h.sessions.Drop(httpmiddleware.BearerToken(r))
			zctx.From(ctx).Debug("Dropped session with rejected token")
		}
	}
}

// withKnownSession runs fn with the caller's existing session. fn gets nil
// when the token has none yet.
func (h *Handler) withKnownSession(fn sessionHandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := httpmiddleware.BearerToken(r)
		if token == "" {
			writeError(w, r, errors.Wrap(cart.ErrUnauthorized, "missing bearer token"))
			return
		}
		s, _ := h.sessions.Lookup(token)
		fn(w, r, s)
	}
}

// statusRecorder remembers the status code written through it.
type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (w *statusRecorder) WriteHeader(code int) {
	if w.code == 0 {
		w.code = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusRecorder) Unwrap() http.ResponseWriter { return w.ResponseWriter }

// status maps an error to its HTTP status code.
func status(err error) int {
	var (
		vErr *cart.ValidationError
		uErr *cart.UpstreamError
	)
	switch {
	case errors.As(err, &vErr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, cart.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, cart.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.As(err, &uErr):
		return http.StatusBadGateway
	case errors.Is(err, session.ErrFull):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := status(err)
	msg := cart.Message(err)
	switch code {
	case http.StatusNotFound:
		msg = "not found"
	case http.StatusInternalServerError:
		zctx.From(r.Context()).Error("Request failed", zap.Error(err))
		msg = "internal error"
	}
	writeJSON(w, code, func(e *encoder) { e.errorBody(code, msg) })
}
