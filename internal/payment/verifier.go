// Package payment integrates the supported payment providers. Each
// provider exposes verification normalized to a single Result; checkout
// creation lives on the same clients where the provider supports it.
package payment

import (
	"context"
	"errors"
)

// ErrUnsupportedMethod is returned when a request names a payment method no
// verifier is registered for.
var ErrUnsupportedMethod = errors.New("unsupported payment method")

// Result is the normalized outcome of a provider-side payment check.
// Verified is true only for a final "paid"/"finished" status; anything
// ambiguous fails closed.
type Result struct {
	Verified bool
	Email    string
}

// Verifier checks whether a payment identified by the provider's own id has
// settled.
type Verifier interface {
	Verify(ctx context.Context, paymentID string) (Result, error)
}
