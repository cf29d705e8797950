package repository

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/avetrov/market-settlement/internal/domain/coupon"
	"github.com/avetrov/market-settlement/internal/domain/customer"
	"github.com/avetrov/market-settlement/internal/domain/ledger"
	"github.com/avetrov/market-settlement/internal/domain/settlement"
)

const (
	// FOR UPDATE OF uc locks the claim row, serializing concurrent
	// settlements that reference the same claim.
	resolveClaimSQL = `SELECT uc.id, uc.coupon_id, uc.customer_id, uc.used, c.discount
		FROM coupon_claims uc
		JOIN coupons c ON c.id = uc.coupon_id
		WHERE uc.id = $1
		FOR UPDATE OF uc`

	markClaimUsedSQL = `UPDATE coupon_claims SET used = TRUE WHERE id = $1 AND used = FALSE`

	insertOrderSQL = `INSERT INTO orders (id, customer_id, merchant_id, gross, discount, subsidy, net, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	// FOR UPDATE on a missing row locks nothing, so the row is materialized
	// first. Two first purchases for the same customer then serialize on the
	// row lock instead of both reading zero and overwriting each other.
	ensureSpendSQL = `INSERT INTO customer_spend (customer_id) VALUES ($1)
		ON CONFLICT (customer_id) DO NOTHING`

	spendForUpdateSQL = `SELECT total_spent FROM customer_spend WHERE customer_id = $1 FOR UPDATE`

	updateSpendSQL = `UPDATE customer_spend SET total_spent = $2, tier = $3 WHERE customer_id = $1`
)

// defaultTxTimeout bounds how long one settlement may wait on the store,
// including lock acquisition. A timed-out settlement rolls back whole and is
// reported as retryable.
const defaultTxTimeout = 5 * time.Second

var _ settlement.Ledger = (*SettlementRepository)(nil)

// SettlementRepository implements settlement.Ledger on PostgreSQL. Each InTx
// call maps to exactly one database transaction.
type SettlementRepository struct {
	pool      *pgxpool.Pool
	txTimeout time.Duration
}

// NewSettlementRepository returns a SettlementRepository that uses the given
// pool.
func NewSettlementRepository(pool *pgxpool.Pool) *SettlementRepository {
	return &SettlementRepository{pool: pool, txTimeout: defaultTxTimeout}
}

// InTx runs fn inside a single database transaction. Business rejections
// returned by fn pass through untouched; any transaction-level failure is
// wrapped as a retryable storage error.
func (r *SettlementRepository) InTx(ctx context.Context, fn func(tx settlement.Tx) error) error {
	ctx, cancel := context.WithTimeout(ctx, r.txTimeout)
	defer cancel()

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return ledger.WrapStorage("begin settlement", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&settlementTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return ledger.WrapStorage("commit settlement", err)
	}
	return nil
}

// settlementTx implements settlement.Tx over one pgx transaction.
type settlementTx struct {
	tx pgx.Tx
}

func (t *settlementTx) ResolveClaim(ctx context.Context, claimID string) (*coupon.ResolvedClaim, error) {
	var rc coupon.ResolvedClaim
	err := t.tx.QueryRow(ctx, resolveClaimSQL, claimID).Scan(
		&rc.ID, &rc.CouponID, &rc.CustomerID, &rc.Used, &rc.Discount,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrClaimNotFound
		}
		return nil, ledger.WrapStorage("resolve claim", err)
	}
	return &rc, nil
}

func (t *settlementTx) MarkClaimUsed(ctx context.Context, claimID string) error {
	tag, err := t.tx.Exec(ctx, markClaimUsedSQL, claimID)
	if err != nil {
		return ledger.WrapStorage("mark claim used", err)
	}
	if tag.RowsAffected() == 0 {
		return coupon.ErrClaimUsed
	}
	return nil
}

func (t *settlementTx) InsertOrder(ctx context.Context, o *settlement.Order) error {
	_, err := t.tx.Exec(ctx, insertOrderSQL,
		o.ID, o.CustomerID, o.MerchantID,
		o.Gross, o.Discount, o.Subsidy, o.Net,
		string(o.Status), o.CreatedAt,
	)
	if err != nil {
		return ledger.WrapStorage("insert order", err)
	}
	return nil
}

func (t *settlementTx) SpendForUpdate(ctx context.Context, customerID string) (decimal.Decimal, error) {
	if _, err := t.tx.Exec(ctx, ensureSpendSQL, customerID); err != nil {
		return decimal.Zero, ledger.WrapStorage("init spend", err)
	}
	var total decimal.Decimal
	if err := t.tx.QueryRow(ctx, spendForUpdateSQL, customerID).Scan(&total); err != nil {
		return decimal.Zero, ledger.WrapStorage("read spend", err)
	}
	return total, nil
}

func (t *settlementTx) UpsertSpend(ctx context.Context, customerID string, total decimal.Decimal, tier customer.Tier) error {
	if _, err := t.tx.Exec(ctx, updateSpendSQL, customerID, total, string(tier)); err != nil {
		return ledger.WrapStorage("update spend", err)
	}
	return nil
}
