package handlers

import (
	"net/http"

	"github.com/nikhilbhutani/fiscalassistant/internal/billing"
)

type BillingHandler struct {
	ledger *billing.Ledger
}

func NewBillingHandler(ledger *billing.Ledger) *BillingHandler {
	return &BillingHandler{ledger: ledger}
}

func (h *BillingHandler) Summary(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}

	s, err := h.ledger.Summary(r.Context(), owner)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}
