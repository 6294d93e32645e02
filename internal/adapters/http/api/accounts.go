package api

import (
	"context"
	"net/http"

	service "github.com/okian/stripe-connect/internal/app"
	"github.com/okian/stripe-connect/internal/domain/model"
)

// AccountsHandler serves a user's connected accounts.
type AccountsHandler struct{ handler }

type createAccountRequest struct {
	BusinessType string `json:"business_type"`
	Country      string `json:"country"`
}

// HandleCreate handles POST create-stripe-account.
func (h *AccountsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_stripe_account"
	var req createAccountRequest
	if err := decode(op, w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	a, err := h.deps.CreateStripeAccount(r.Context(), caller(r), req.BusinessType, req.Country)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

// HandleList handles GET stripe-accounts.
func (h *AccountsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	page, err := h.page(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	list, err := h.deps.ListStripeAccounts(r.Context(), caller(r), page)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, list)
}

// HandleCount handles GET stripe-accounts-count.
func (h *AccountsHandler) HandleCount(w http.ResponseWriter, r *http.Request) {
	n, err := h.deps.CountStripeAccounts(r.Context(), caller(r))
	h.count(w, r, n, err)
}

// HandleGet handles GET stripe-account?stripeid=.
func (h *AccountsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_stripe_account"
	stripeID, err := query(op, r, "stripeid")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	a, err := h.deps.GetStripeAccount(r.Context(), caller(r), stripeID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, a)
}

// HandleDelete handles DELETE delete-stripe-account?stripeid=.
func (h *AccountsHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	const op = "api.delete_stripe_account"
	stripeID, err := query(op, r, "stripeid")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.deps.DeleteStripeAccount(r.Context(), caller(r), stripeID); err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, statusResponse{Status: "deleted"})
}

// HandleUpdateCompany handles PATCH update-company-registration?stripeid=.
func (h *AccountsHandler) HandleUpdateCompany(w http.ResponseWriter, r *http.Request) {
	h.updateRegistration(w, r, "api.update_company_registration", h.deps.UpdateCompanyRegistration)
}

// HandleUpdateIndividual handles PATCH update-individual-registration?stripeid=.
func (h *AccountsHandler) HandleUpdateIndividual(w http.ResponseWriter, r *http.Request) {
	h.updateRegistration(w, r, "api.update_individual_registration", h.deps.UpdateIndividualRegistration)
}

type registrationUpdate func(ctx context.Context, accountID, stripeID string, fields map[string]string) (model.StripeAccount, error)

func (h *AccountsHandler) updateRegistration(w http.ResponseWriter, r *http.Request, op string, update registrationUpdate) {
	stripeID, err := query(op, r, "stripeid")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	fields, err := decodeFields(op, w, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	a, err := update(r.Context(), caller(r), stripeID, fields)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, a)
}

// HandleUpdatePaymentInformation handles PATCH update-payment-information?stripeid=.
func (h *AccountsHandler) HandleUpdatePaymentInformation(w http.ResponseWriter, r *http.Request) {
	const op = "api.update_payment_information"
	stripeID, err := query(op, r, "stripeid")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var info service.PaymentInformation
	if err := decode(op, w, r, &info); err != nil {
		h.fail(w, r, err)
		return
	}
	a, err := h.deps.UpdatePaymentInformation(r.Context(), caller(r), stripeID, info)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, a)
}

// HandleSubmit handles PATCH submit-stripe-account?stripeid=. The caller's
// address and user agent are recorded as the terms of service acceptance.
func (h *AccountsHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	const op = "api.submit_stripe_account"
	stripeID, err := query(op, r, "stripeid")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	a, err := h.deps.SubmitStripeAccount(r.Context(), caller(r), stripeID, h.clientIP(r), r.UserAgent())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, a)
}

// HandleCountrySpec handles GET country-spec?country=.
func (h *AccountsHandler) HandleCountrySpec(w http.ResponseWriter, r *http.Request) {
	const op = "api.country_spec"
	country, err := query(op, r, "country")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	spec, err := h.deps.GetCountrySpec(r.Context(), country)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, spec)
}

// HandleCountrySpecs handles GET country-specs.
func (h *AccountsHandler) HandleCountrySpecs(w http.ResponseWriter, r *http.Request) {
	specs, err := h.deps.ListCountrySpecs(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, specs)
}
