package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/kart-storefront/internal/domain/cart"
)

func signed(t *testing.T, exp time.Time) string {
	t.Helper()
	claims := jwt.RegisteredClaims{Subject: "u1"}
	if !exp.IsZero() {
		claims.ExpiresAt = jwt.NewNumericDate(exp)
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func TestTokenStore(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	for _, tt := range []struct {
		name    string
		token   string
		wantErr bool
	}{
		{"Empty", "", true},
		{"Blank", "   ", true},
		{"Opaque", "opaque-token", false},
		{"NoExpiry", signed(t, time.Time{}), false},
		{"Valid", signed(t, now.Add(time.Hour)), false},
		{"Expired", signed(t, now.Add(-time.Minute)), true},
	} {
		t.Run(tt.name, func(t *testing.T) {
			s := NewTokenStore(tt.token)
			s.now = func() time.Time { return now }

			got, err := s.Token(ctx)
			if tt.wantErr {
				require.ErrorIs(t, err, cart.ErrUnauthorized)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, got)
		})
	}
}

func TestTokenStore_Set(t *testing.T) {
	ctx := context.Background()
	s := NewTokenStore("first")

	s.Set(" second ")
	got, err := s.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "second", got)

	s.Set("")
	_, err = s.Token(ctx)
	require.ErrorIs(t, err, cart.ErrUnauthorized)
}

func TestExpiry(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)

	got, ok := Expiry(signed(t, exp))
	require.True(t, ok)
	assert.True(t, exp.Equal(got))

	_, ok = Expiry("not-a-jwt")
	assert.False(t, ok)
}
