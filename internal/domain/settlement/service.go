package settlement

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/avetrov/market-settlement/internal/domain/coupon"
	"github.com/avetrov/market-settlement/internal/domain/customer"
)

// Caller errors. These indicate a malformed request, not a business outcome.
var (
	ErrInvalidGross = errors.New("gross amount must not be negative")
	ErrMissingParty = errors.New("customer and merchant ids required")
)

// Ledger is the transactional persistence boundary for settlements. Every
// call to SettleOrder runs inside exactly one InTx invocation: either all of
// the settlement's writes commit, or none do.
type Ledger interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the set of ledger operations available inside a settlement
// transaction. Row-level reads that feed later writes (claim resolution,
// spend read-modify-write) must lock the rows they read so concurrent
// settlements serialize per claim and per customer.
type Tx interface {
	ResolveClaim(ctx context.Context, claimID string) (*coupon.ResolvedClaim, error)
	MarkClaimUsed(ctx context.Context, claimID string) error
	InsertOrder(ctx context.Context, o *Order) error
	SpendForUpdate(ctx context.Context, customerID string) (decimal.Decimal, error)
	UpsertSpend(ctx context.Context, customerID string, total decimal.Decimal, tier customer.Tier) error
}

// SettleRequest is the input for settling one order. ClaimID is optional;
// Subsidy defaults to zero and is only nonzero for platform-promotional
// flows.
type SettleRequest struct {
	CustomerID string
	MerchantID string
	Gross      decimal.Decimal
	ClaimID    string
	Subsidy    decimal.Decimal
}

// Result is the outcome of a settled order, including the customer's updated
// cumulative spend and tier.
type Result struct {
	Order           *Order
	CumulativeSpend decimal.Decimal
	Tier            customer.Tier
}

// Service orchestrates order settlement: claim consumption, net computation,
// order persistence, and the cumulative-spend/tier update, as one atomic unit
// of work per order.
type Service struct {
	ledger Ledger
	now    func() time.Time
}

// NewService creates a settlement Service on top of the given ledger.
func NewService(ledger Ledger) *Service {
	return &Service{ledger: ledger, now: time.Now}
}

// SettleOrder settles a single order. On success exactly three effects are
// visible: one new order row, at most one claim flipped to used, and one
// spend-record upsert. On any storage failure all three roll back together
// and the error satisfies ledger.IsStorage, signalling the caller may retry.
func (s *Service) SettleOrder(ctx context.Context, req SettleRequest) (*Result, error) {
	if req.CustomerID == "" || req.MerchantID == "" {
		return nil, ErrMissingParty
	}
	if req.Gross.IsNegative() {
		return nil, ErrInvalidGross
	}

	var res Result
	err := s.ledger.InTx(ctx, func(tx Tx) error {
		discount, err := s.applyClaim(ctx, tx, req)
		if err != nil {
			return err
		}

		net := ComputeNet(req.Gross, discount, req.Subsidy)
		o := &Order{
			ID:         uuid.New().String(),
			CustomerID: req.CustomerID,
			MerchantID: req.MerchantID,
			Gross:      req.Gross.Round(2),
			Discount:   discount.Round(2),
			Subsidy:    req.Subsidy.Round(2),
			Net:        net.Round(2),
			Status:     StatusPendingPayment,
			CreatedAt:  s.now().UTC(),
		}
		if err := tx.InsertOrder(ctx, o); err != nil {
			return err
		}

		current, err := tx.SpendForUpdate(ctx, req.CustomerID)
		if err != nil {
			return err
		}

		// A subsidy-driven negative net is recorded on the order as-is but
		// must never reduce cumulative spend.
		delta := net
		if delta.IsNegative() {
			delta = decimal.Zero
		}
		total := current.Add(delta)
		tier := customer.ClassifyTier(total)
		if err := tx.UpsertSpend(ctx, req.CustomerID, total, tier); err != nil {
			return err
		}

		res = Result{Order: o, CumulativeSpend: total, Tier: tier}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// applyClaim resolves the optional coupon claim, clamps its discount to the
// gross amount, and marks the claim used. A claim that cannot be honoured
// (unknown id, already used, owned by another customer) degrades to zero
// discount rather than rejecting the order, matching upstream marketplace
// behaviour; the degradation is logged so it is never silent.
func (s *Service) applyClaim(ctx context.Context, tx Tx, req SettleRequest) (decimal.Decimal, error) {
	if req.ClaimID == "" {
		return decimal.Zero, nil
	}

	rc, err := tx.ResolveClaim(ctx, req.ClaimID)
	switch {
	case errors.Is(err, coupon.ErrClaimNotFound):
		zctx.From(ctx).Warn("settling without discount: claim not found",
			zap.String("claim_id", req.ClaimID))
		return decimal.Zero, nil
	case err != nil:
		return decimal.Zero, err
	}

	if rc.Used || rc.CustomerID != req.CustomerID {
		zctx.From(ctx).Warn("settling without discount: claim unusable",
			zap.String("claim_id", req.ClaimID),
			zap.Bool("used", rc.Used))
		return decimal.Zero, nil
	}

	if err := tx.MarkClaimUsed(ctx, req.ClaimID); err != nil {
		return decimal.Zero, err
	}
	return decimal.Min(rc.Discount, req.Gross), nil
}
