package auth

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/xenking/kart-storefront/internal/domain/cart"
)

// TokenSource provides the bearer token attached to backend requests.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// TokenStore holds the bearer token of one user session in memory.
type TokenStore struct {
	now func() time.Time

	mu    sync.RWMutex
	token string
}

var _ TokenSource = (*TokenStore)(nil)

// NewTokenStore creates a TokenStore holding token, which may be empty.
func NewTokenStore(token string) *TokenStore {
	return &TokenStore{now: time.Now, token: strings.TrimSpace(token)}
}

// Set replaces the stored token. An empty token signs the session out.
func (s *TokenStore) Set(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = strings.TrimSpace(token)
}

// Token returns the stored token, or cart.ErrUnauthorized when it is missing
// or expired.
func (s *TokenStore) Token(_ context.Context) (string, error) {
	s.mu.RLock()
	token := s.token
	s.mu.RUnlock()

	if token == "" {
		return "", cart.ErrUnauthorized
	}
	if exp, ok := Expiry(token); ok && !s.now().Before(exp) {
		return "", cart.ErrUnauthorized
	}
	return token, nil
}

// Expiry reads the exp claim of a JWT without verifying its signature.
// ok is false for opaque tokens and tokens without exp.
func Expiry(token string) (exp time.Time, ok bool) {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
