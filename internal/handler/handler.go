// Package handler exposes the settlement core over HTTP JSON endpoints.
package handler

import (
	"context"
	"net/http"

	"github.com/avetrov/market-settlement/internal/domain/customer"
	"github.com/avetrov/market-settlement/internal/domain/settlement"
)

// Claimer claims coupon units for customers.
type Claimer interface {
	Claim(ctx context.Context, couponID, customerID string) (string, error)
}

// Settler settles orders.
type Settler interface {
	SettleOrder(ctx context.Context, req settlement.SettleRequest) (*settlement.Result, error)
}

// Handler routes API requests to the settlement domain services.
type Handler struct {
	claims Claimer
	settle Settler
	spend  customer.SpendRepository
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(claims Claimer, settle Settler, spend customer.SpendRepository) *Handler {
	return &Handler{
		claims: claims,
		settle: settle,
		spend:  spend,
	}
}

// Register attaches all API routes to the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/coupons/{id}/claims", h.ClaimCoupon)
	mux.HandleFunc("POST /api/orders", h.SettleOrder)
	mux.HandleFunc("GET /api/customers/{id}/spend", h.GetSpend)
}
