package repository

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/avetrov/market-settlement/internal/domain/customer"
	"github.com/avetrov/market-settlement/internal/domain/ledger"
)

const getSpendSQL = `SELECT customer_id, total_spent, tier FROM customer_spend WHERE customer_id = $1`

var _ customer.SpendRepository = (*SpendRepository)(nil)

// SpendRepository provides read access to customer spend records.
type SpendRepository struct {
	pool *pgxpool.Pool
}

// NewSpendRepository returns a SpendRepository that uses the given pool.
func NewSpendRepository(pool *pgxpool.Pool) *SpendRepository {
	return &SpendRepository{pool: pool}
}

// Get returns the spend record for the customer. Customers with no settled
// orders get a zero record rather than a not-found error.
func (r *SpendRepository) Get(ctx context.Context, customerID string) (*customer.SpendRecord, error) {
	var (
		rec  customer.SpendRecord
		tier string
	)
	err := r.pool.QueryRow(ctx, getSpendSQL, customerID).Scan(&rec.CustomerID, &rec.TotalSpent, &tier)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &customer.SpendRecord{
				CustomerID: customerID,
				TotalSpent: decimal.Zero,
				Tier:       customer.TierNormal,
			}, nil
		}
		return nil, ledger.WrapStorage("get spend", err)
	}
	rec.Tier = customer.Tier(tier)
	return &rec, nil
}
