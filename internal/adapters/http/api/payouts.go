package api

import (
	"net/http"
	"strings"
)

// PayoutsHandler serves the payouts of a user's connected accounts.
type PayoutsHandler struct{ handler }

// HandleList handles GET payouts[?stripeid=].
func (h *PayoutsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	page, err := h.page(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	stripeID := strings.TrimSpace(r.URL.Query().Get("stripeid"))
	list, err := h.deps.ListPayouts(r.Context(), caller(r), stripeID, page)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, list)
}

// HandleCount handles GET payouts-count[?stripeid=].
func (h *PayoutsHandler) HandleCount(w http.ResponseWriter, r *http.Request) {
	stripeID := strings.TrimSpace(r.URL.Query().Get("stripeid"))
	n, err := h.deps.CountPayouts(r.Context(), caller(r), stripeID)
	h.count(w, r, n, err)
}

// HandleGet handles GET payout?payoutid=.
func (h *PayoutsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_payout"
	payoutID, err := query(op, r, "payoutid")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	p, err := h.deps.GetPayout(r.Context(), caller(r), payoutID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, p)
}
