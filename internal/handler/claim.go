package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/avetrov/market-settlement/internal/domain/coupon"
)

type claimRequest struct {
	CustomerID string
}

func decodeClaimRequest(data []byte) (claimRequest, error) {
	var req claimRequest
	d := jx.DecodeBytes(data)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "customerId":
			v, err := d.Str()
			if err != nil {
				return errors.Wrap(err, "customerId")
			}
			req.CustomerID = v
			return nil
		default:
			return d.Skip()
		}
	})
	return req, err
}

// ClaimCoupon handles POST /api/coupons/{id}/claims. A successful claim
// reserves exactly one unit of the coupon's supply for the customer.
func (h *Handler) ClaimCoupon(w http.ResponseWriter, r *http.Request) {
	couponID := r.PathValue("id")

	data, err := readBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "cannot read request body")
		return
	}
	req, err := decodeClaimRequest(data)
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	claimID, err := h.claims.Claim(r.Context(), couponID, req.CustomerID)
	if err != nil {
		switch {
		case errors.Is(err, coupon.ErrNotFound):
			writeError(w, http.StatusNotFound, "coupon not found")
		case errors.Is(err, coupon.ErrExhausted):
			writeError(w, http.StatusConflict, "coupon supply exhausted")
		case errors.Is(err, coupon.ErrExpired):
			writeError(w, http.StatusConflict, "coupon expired")
		case errors.Is(err, coupon.ErrEmptyCustomer):
			writeError(w, http.StatusBadRequest, "customerId is required")
		case writeStorageError(w, r, err):
		default:
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("claimId", func(e *jx.Encoder) { e.Str(claimID) })
			e.Field("couponId", func(e *jx.Encoder) { e.Str(couponID) })
			e.Field("customerId", func(e *jx.Encoder) { e.Str(req.CustomerID) })
		})
	})
}
