package repository

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/avetrov/market-settlement/internal/domain/coupon"
	"github.com/avetrov/market-settlement/internal/domain/ledger"
)

const (
	getCouponSQL = `SELECT id, merchant_id, code, discount, valid_until, total_qty, claimed_qty
		FROM coupons WHERE id = $1`

	// The supply check and the increment are one conditional UPDATE: the row
	// lock it takes serializes concurrent claimants, so claimed_qty can never
	// pass total_qty no matter how many callers race.
	claimCouponSQL = `UPDATE coupons
		SET claimed_qty = claimed_qty + 1
		WHERE id = $1
		  AND claimed_qty < total_qty
		  AND (valid_until IS NULL OR valid_until > now())`

	classifyRejectionSQL = `SELECT total_qty, claimed_qty, valid_until FROM coupons WHERE id = $1`

	insertClaimSQL = `INSERT INTO coupon_claims (id, coupon_id, customer_id, used)
		VALUES ($1, $2, $3, FALSE)`
)

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// GetByID returns a coupon by its identifier, or coupon.ErrNotFound.
func (r *CouponRepository) GetByID(ctx context.Context, id string) (*coupon.Coupon, error) {
	var c coupon.Coupon
	err := r.pool.QueryRow(ctx, getCouponSQL, id).Scan(
		&c.ID, &c.MerchantID, &c.Code, &c.Discount, &c.ValidUntil, &c.TotalQty, &c.ClaimedQty,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrNotFound
		}
		return nil, ledger.WrapStorage("get coupon", err)
	}
	return &c, nil
}

// ClaimOne claims one unit of the coupon for the customer. The conditional
// increment and the claim insert commit together or not at all.
func (r *CouponRepository) ClaimOne(ctx context.Context, couponID, customerID string) (string, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return "", ledger.WrapStorage("begin claim", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, claimCouponSQL, couponID)
	if err != nil {
		return "", ledger.WrapStorage("increment claimed", err)
	}
	if tag.RowsAffected() == 0 {
		return "", r.classifyRejection(ctx, couponID)
	}

	claimID := uuid.New().String()
	if _, err := tx.Exec(ctx, insertClaimSQL, claimID, couponID, customerID); err != nil {
		return "", ledger.WrapStorage("insert claim", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return "", ledger.WrapStorage("commit claim", err)
	}
	return claimID, nil
}

// classifyRejection turns a zero-row conditional update into the right
// business rejection: missing coupon, expired window, or exhausted supply.
func (r *CouponRepository) classifyRejection(ctx context.Context, couponID string) error {
	var (
		total, claimed int
		validUntil     *time.Time
	)
	err := r.pool.QueryRow(ctx, classifyRejectionSQL, couponID).Scan(&total, &claimed, &validUntil)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return coupon.ErrNotFound
		}
		return ledger.WrapStorage("classify claim rejection", err)
	}
	if validUntil != nil && !validUntil.After(time.Now()) {
		return coupon.ErrExpired
	}
	if claimed >= total {
		return coupon.ErrExhausted
	}
	// Capacity freed up between the update and this read; let the caller retry.
	return coupon.ErrExhausted
}
