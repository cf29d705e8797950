package settlement

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is an order's lifecycle state. Settlement creates orders in
// StatusPendingPayment; later transitions belong to order-lifecycle code
// outside this core.
type Status string

const (
	StatusPendingPayment Status = "pending_payment"
	StatusPendingShip    Status = "pending_shipment"
	StatusShipped        Status = "shipped"
	StatusCompleted      Status = "completed"
	StatusReturning      Status = "returning"
)

// Order is a settled purchase. Net = Gross - Discount - Subsidy; the
// settlement core never mutates an order after creation.
type Order struct {
	ID         string
	CustomerID string
	MerchantID string
	Gross      decimal.Decimal
	Discount   decimal.Decimal
	Subsidy    decimal.Decimal
	Net        decimal.Decimal
	Status     Status
	CreatedAt  time.Time
}
