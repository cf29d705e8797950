package coupon

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrEmptyCustomer is returned when a claim is attempted without a customer id.
// This is a caller error, not a business rejection.
var ErrEmptyCustomer = errors.New("customer id required")

// Arbiter claims coupon units on behalf of customers. All arbitration happens
// inside the repository's transaction boundary; the Arbiter itself holds no
// state, so a single instance serves arbitrarily many concurrent callers.
type Arbiter struct {
	coupons Repository
}

// NewArbiter creates an Arbiter backed by the given repository.
func NewArbiter(coupons Repository) *Arbiter {
	return &Arbiter{coupons: coupons}
}

// Claim reserves one unit of the coupon for the customer and returns the new
// claim's id. Failure to claim (unknown coupon, exhausted supply, expired
// coupon) is reported via the package's sentinel errors and leaves no state
// behind.
func (a *Arbiter) Claim(ctx context.Context, couponID, customerID string) (string, error) {
	if customerID == "" {
		return "", ErrEmptyCustomer
	}
	if couponID == "" {
		return "", ErrNotFound
	}

	claimID, err := a.coupons.ClaimOne(ctx, couponID, customerID)
	if err != nil {
		return "", err
	}
	return claimID, nil
}
