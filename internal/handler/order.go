package handler

import (
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/avetrov/market-settlement/internal/domain/settlement"
)

func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	n, err := d.Num()
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(n.String())
}

func decodeSettleRequest(data []byte) (settlement.SettleRequest, error) {
	req := settlement.SettleRequest{Subsidy: decimal.Zero}
	d := jx.DecodeBytes(data)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "customerId":
			req.CustomerID, err = d.Str()
		case "merchantId":
			req.MerchantID, err = d.Str()
		case "gross":
			req.Gross, err = decodeDecimal(d)
		case "subsidy":
			req.Subsidy, err = decodeDecimal(d)
		case "claimId":
			req.ClaimID, err = d.Str()
		default:
			return d.Skip()
		}
		if err != nil {
			return errors.Wrap(err, key)
		}
		return nil
	})
	return req, err
}

func encodeDecimal(e *jx.Encoder, v decimal.Decimal) {
	e.Num(jx.Num(v.String()))
}

// SettleOrder handles POST /api/orders. One call settles one order: pricing,
// coupon redemption and the customer's spend total move together.
func (h *Handler) SettleOrder(w http.ResponseWriter, r *http.Request) {
	data, err := readBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "cannot read request body")
		return
	}
	req, err := decodeSettleRequest(data)
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	res, err := h.settle.SettleOrder(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, settlement.ErrInvalidGross):
			writeError(w, http.StatusBadRequest, "gross must not be negative")
		case errors.Is(err, settlement.ErrMissingParty):
			writeError(w, http.StatusBadRequest, "customerId and merchantId are required")
		case writeStorageError(w, r, err):
		default:
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			o := res.Order
			e.Field("id", func(e *jx.Encoder) { e.Str(o.ID) })
			e.Field("customerId", func(e *jx.Encoder) { e.Str(o.CustomerID) })
			e.Field("merchantId", func(e *jx.Encoder) { e.Str(o.MerchantID) })
			e.Field("gross", func(e *jx.Encoder) { encodeDecimal(e, o.Gross) })
			e.Field("discount", func(e *jx.Encoder) { encodeDecimal(e, o.Discount) })
			e.Field("subsidy", func(e *jx.Encoder) { encodeDecimal(e, o.Subsidy) })
			e.Field("net", func(e *jx.Encoder) { encodeDecimal(e, o.Net) })
			e.Field("status", func(e *jx.Encoder) { e.Str(string(o.Status)) })
			e.Field("createdAt", func(e *jx.Encoder) { e.Str(o.CreatedAt.Format(time.RFC3339)) })
			e.Field("cumulativeSpend", func(e *jx.Encoder) { encodeDecimal(e, res.CumulativeSpend) })
			e.Field("tier", func(e *jx.Encoder) { e.Str(string(res.Tier)) })
		})
	})
}
