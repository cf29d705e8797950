package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Business rejections for coupon claims. These are final answers, not
// failures: the caller reports them to the customer and does not retry.
var (
	// ErrNotFound is returned when the coupon id does not exist.
	ErrNotFound = errors.New("coupon not found")
	// ErrExhausted is returned when every unit of the coupon's supply has
	// already been claimed.
	ErrExhausted = errors.New("coupon exhausted")
	// ErrExpired is returned when the coupon's validity window has passed.
	ErrExpired = errors.New("coupon expired")
	// ErrClaimNotFound is returned when a claim id does not resolve to a
	// claim record.
	ErrClaimNotFound = errors.New("coupon claim not found")
	// ErrClaimUsed is returned when a claim has already been consumed by a
	// settled order.
	ErrClaimUsed = errors.New("coupon claim already used")
)

// Coupon is a merchant-issued fixed-amount discount with a limited claimable
// supply. ClaimedQty never exceeds TotalQty, even under concurrent claims;
// the repository enforces this with an atomic conditional increment.
type Coupon struct {
	ID         string
	MerchantID string
	Code       string
	Discount   decimal.Decimal
	ValidUntil *time.Time
	TotalQty   int
	ClaimedQty int
}

// Remaining returns the number of units still claimable.
func (c *Coupon) Remaining() int {
	return c.TotalQty - c.ClaimedQty
}

// Claim is a customer's reservation of one coupon unit, redeemable once.
// The reference fields are immutable; Used flips false to true exactly once,
// when an order consumes the claim.
type Claim struct {
	ID         string
	CouponID   string
	CustomerID string
	Used       bool
}

// ResolvedClaim is a claim joined with its coupon's discount, as read by the
// settlement path.
type ResolvedClaim struct {
	ID         string
	CouponID   string
	CustomerID string
	Used       bool
	Discount   decimal.Decimal
}

// Repository provides coupon lookups and the atomic claim operation.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Coupon, error)

	// ClaimOne claims one unit of the coupon for the customer. The supply
	// check, the claimed-count increment, and the claim row insert must be a
	// single atomic transaction: for N concurrent callers racing on remaining
	// capacity R, exactly min(N, R) succeed. Returns ErrNotFound,
	// ErrExhausted, or ErrExpired as business rejections.
	ClaimOne(ctx context.Context, couponID, customerID string) (claimID string, err error)
}
