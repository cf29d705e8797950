package handler

import (
	"net/http"

	"github.com/go-faster/jx"
)

// GetSpend handles GET /api/customers/{id}/spend.
func (h *Handler) GetSpend(w http.ResponseWriter, r *http.Request) {
	customerID := r.PathValue("id")

	rec, err := h.spend.Get(r.Context(), customerID)
	if err != nil {
		if writeStorageError(w, r, err) {
			return
		}
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("customerId", func(e *jx.Encoder) { e.Str(rec.CustomerID) })
			e.Field("totalSpent", func(e *jx.Encoder) { encodeDecimal(e, rec.TotalSpent) })
			e.Field("tier", func(e *jx.Encoder) { e.Str(string(rec.Tier)) })
		})
	})
}
