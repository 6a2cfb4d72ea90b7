package cart

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-faster/errors"
)

var (
	// ErrNotFound is returned when the Cart Service or the catalog does not know
	// the requested line item or product.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized is returned when the bearer token is missing, expired or
	// rejected by the backend.
	ErrUnauthorized = errors.New("unauthorized")
)

// ValidationError rejects bad local input before any network call.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// UpstreamError is a network failure or a non-2xx response from the backend.
// StatusCode is zero for transport failures.
type UpstreamError struct {
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *UpstreamError) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, ": status %d", e.StatusCode)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	} else if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// PartialJoinError lists products whose metadata could not be resolved. It is
// never returned from an operation; it is reported through logs and alerts.
type PartialJoinError struct {
	ProductIDs []string
}

func (e *PartialJoinError) Error() string {
	return fmt.Sprintf("product details unavailable for %d item(s): %s",
		len(e.ProductIDs), strings.Join(e.ProductIDs, ", "))
}

// Message renders err for an alert.
func Message(err error) string {
	var (
		vErr *ValidationError
		uErr *UpstreamError
	)
	switch {
	case errors.As(err, &vErr):
		return vErr.Error()
	case errors.Is(err, ErrUnauthorized):
		return "please sign in again"
	case errors.Is(err, ErrNotFound):
		return "item is not in the cart"
	case errors.As(err, &uErr):
		if uErr.Message != "" {
			return uErr.Message
		}
		return "service unavailable, try again later"
	case errors.Is(err, context.DeadlineExceeded):
		return "request timed out, try again"
	case errors.Is(err, context.Canceled):
		return "request was cancelled"
	default:
		return err.Error()
	}
}
