package api

import (
	"net/http"
)

// AdminHandler serves administrator views over every account.
type AdminHandler struct{ handler }

type rejectRequest struct {
	Reason string `json:"reason"`
}

// HandleListAccounts handles GET stripe-accounts.
func (h *AdminHandler) HandleListAccounts(w http.ResponseWriter, r *http.Request) {
	page, err := h.page(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	list, err := h.deps.ListAllStripeAccounts(r.Context(), page)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, list)
}

// HandleCountAccounts handles GET stripe-accounts-count.
func (h *AdminHandler) HandleCountAccounts(w http.ResponseWriter, r *http.Request) {
	n, err := h.deps.CountAllStripeAccounts(r.Context())
	h.count(w, r, n, err)
}

// HandleGetAccount handles GET stripe-account?stripeid=.
func (h *AdminHandler) HandleGetAccount(w http.ResponseWriter, r *http.Request) {
	const op = "api.admin_get_stripe_account"
	stripeID, err := query(op, r, "stripeid")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	a, err := h.deps.AdminGetStripeAccount(r.Context(), stripeID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, a)
}

// HandleListPayouts handles GET payouts.
func (h *AdminHandler) HandleListPayouts(w http.ResponseWriter, r *http.Request) {
	page, err := h.page(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	list, err := h.deps.ListAllPayouts(r.Context(), page)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, list)
}

// HandleCountPayouts handles GET payouts-count.
func (h *AdminHandler) HandleCountPayouts(w http.ResponseWriter, r *http.Request) {
	n, err := h.deps.CountAllPayouts(r.Context())
	h.count(w, r, n, err)
}

// HandleReject handles PATCH set-stripe-account-rejected?stripeid=. The
// reason comes from the body or the reason query parameter.
func (h *AdminHandler) HandleReject(w http.ResponseWriter, r *http.Request) {
	const op = "api.set_stripe_account_rejected"
	stripeID, err := query(op, r, "stripeid")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	req := rejectRequest{Reason: r.URL.Query().Get("reason")}
	if req.Reason == "" {
		if err := decode(op, w, r, &req); err != nil {
			h.fail(w, r, err)
			return
		}
	}
	a, err := h.deps.SetStripeAccountRejected(r.Context(), stripeID, req.Reason)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, a)
}

// HandleDelete handles DELETE delete-stripe-account?stripeid=.
func (h *AdminHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	const op = "api.admin_delete_stripe_account"
	stripeID, err := query(op, r, "stripeid")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.deps.AdminDeleteStripeAccount(r.Context(), stripeID); err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, statusResponse{Status: "deleted"})
}
