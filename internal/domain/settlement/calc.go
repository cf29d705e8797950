package settlement

import "github.com/shopspring/decimal"

// ComputeNet derives the net payable amount from the gross price, the coupon
// discount, and the platform subsidy. It is a pure function and applies no
// clamping: discounts originating from coupons are clamped to gross by the
// orchestrator before this is called, while a subsidy may legitimately drive
// net below zero for accounting purposes.
func ComputeNet(gross, discount, subsidy decimal.Decimal) decimal.Decimal {
	return gross.Sub(discount).Sub(subsidy)
}
