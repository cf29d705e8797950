package repository

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/avetrov/market-settlement/internal/domain/coupon"
)

const (
	// claimed_qty is preserved on conflict so re-seeding never resurrects
	// already-claimed supply.
	upsertCouponSQL = `INSERT INTO coupons (id, merchant_id, code, discount, valid_until, total_qty, claimed_qty)
		VALUES ($1, $2, $3, $4, $5, $6, 0)
		ON CONFLICT (id) DO UPDATE SET
			merchant_id = EXCLUDED.merchant_id,
			code = EXCLUDED.code,
			discount = EXCLUDED.discount,
			valid_until = EXCLUDED.valid_until,
			total_qty = EXCLUDED.total_qty`

	upsertAPIKeySQL = `INSERT INTO api_keys (id, key_hash, name, active)
		VALUES ($1, $2, $3, TRUE)
		ON CONFLICT (id) DO UPDATE SET
			key_hash = EXCLUDED.key_hash,
			name = EXCLUDED.name,
			active = TRUE`
)

// Seeder writes reference data used by the seed and ingest commands.
type Seeder struct {
	pool *pgxpool.Pool
}

// NewSeeder returns a Seeder that uses the given pool.
func NewSeeder(pool *pgxpool.Pool) *Seeder {
	return &Seeder{pool: pool}
}

// UpsertCoupon inserts or updates a coupon definition without touching its
// claimed supply.
func (s *Seeder) UpsertCoupon(ctx context.Context, c *coupon.Coupon) error {
	_, err := s.pool.Exec(ctx, upsertCouponSQL,
		c.ID, c.MerchantID, c.Code, c.Discount, c.ValidUntil, c.TotalQty,
	)
	if err != nil {
		return errors.Wrapf(err, "upsert coupon %s", c.ID)
	}
	return nil
}

// UpsertAPIKey inserts or updates an API key record by id.
func (s *Seeder) UpsertAPIKey(ctx context.Context, id, keyHash, name string) error {
	if _, err := s.pool.Exec(ctx, upsertAPIKeySQL, id, keyHash, name); err != nil {
		return errors.Wrapf(err, "upsert api key %s", id)
	}
	return nil
}
