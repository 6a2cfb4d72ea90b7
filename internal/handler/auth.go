package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/kart-storefront/internal/backend"
	"github.com/xenking/kart-storefront/pkg/httpmiddleware"
)

// register creates a backend account. The user signs in separately.
func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var reg backend.Registration
	err := decodeBody(r, func(d *jx.Decoder, key string) (err error) {
		switch key {
		case "username":
			reg.Username, err = d.Str()
		case "email":
			reg.Email, err = d.Str()
		case "password":
			reg.Password, err = d.Str()
		case "phone_number", "phoneNumber":
			reg.PhoneNumber, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	userID, err := h.auth.Register(r.Context(), reg)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *encoder) {
		e.obj(func(e *encoder) { e.str("user_id", userID) })
	})
}

// login signs the user in against the backend and opens their session.
func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var creds backend.Credentials
	err := decodeBody(r, func(d *jx.Decoder, key string) (err error) {
		switch key {
		case "email":
			creds.Email, err = d.Str()
		case "password":
			creds.Password, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	token, err := h.auth.Login(r.Context(), creds)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if _, err := h.sessions.Get(token); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *encoder) {
		e.obj(func(e *encoder) { e.str("token", token) })
	})
}

// logout drops the caller's session. It succeeds without a session.
func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	if token := httpmiddleware.BearerToken(r); token != "" {
		h.sessions.Drop(token)
	}
	w.WriteHeader(http.StatusNoContent)
}
