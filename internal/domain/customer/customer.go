// Package customer holds the customer-facing ledger records: cumulative
// spend and the loyalty tier derived from it.
package customer

import (
	"context"

	"github.com/shopspring/decimal"
)

// SpendRecord tracks a customer's cumulative net spend and current tier.
// It is created on first settled order and mutated only by the settlement
// orchestrator; cumulative spend never decreases.
type SpendRecord struct {
	CustomerID string
	TotalSpent decimal.Decimal
	Tier       Tier
}

// SpendRepository provides read access to spend records.
type SpendRepository interface {
	// Get returns the spend record for the given customer. Customers without
	// any settled orders get a zero record with TierNormal.
	Get(ctx context.Context, customerID string) (*SpendRecord, error)
}
