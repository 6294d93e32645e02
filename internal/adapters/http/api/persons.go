package api

import (
	"net/http"

	"github.com/okian/stripe-connect/internal/domain/registration"
)

// personRoute names the routes of one person role. Roles without a plural
// have a single person per account.
type personRoute struct {
	role   string
	name   string
	plural string
}

var personRoutes = []personRoute{
	{role: registration.RoleOwner, name: "beneficial-owner", plural: "beneficial-owners"},
	{role: registration.RoleDirector, name: "company-director", plural: "company-directors"},
	{role: registration.RoleRepresentative, name: "company-representative"},
}

// PersonsHandler serves the owners, directors and representative of company accounts.
type PersonsHandler struct{ handler }

func (h *PersonsHandler) create(role string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "api.create_person"
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
		p, err := h.deps.CreatePerson(r.Context(), caller(r), stripeID, role, fields)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, p)
	}
}

func (h *PersonsHandler) update(role string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "api.update_person"
		personID, err := query(op, r, "personid")
		if err != nil {
			h.fail(w, r, err)
			return
		}
		fields, err := decodeFields(op, w, r)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		p, err := h.deps.UpdatePerson(r.Context(), caller(r), personID, role, fields)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		h.ok(w, p)
	}
}

func (h *PersonsHandler) delete(role string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "api.delete_person"
		personID, err := query(op, r, "personid")
		if err != nil {
			h.fail(w, r, err)
			return
		}
		if err := h.deps.DeletePerson(r.Context(), caller(r), personID, role); err != nil {
			h.fail(w, r, err)
			return
		}
		h.ok(w, statusResponse{Status: "deleted"})
	}
}

// get reads one person by personid; the representative is read by stripeid.
func (h *PersonsHandler) get(role string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "api.get_person"
		if role == registration.RoleRepresentative {
			stripeID, err := query(op, r, "stripeid")
			if err != nil {
				h.fail(w, r, err)
				return
			}
			p, err := h.deps.GetRepresentative(r.Context(), caller(r), stripeID)
			if err != nil {
				h.fail(w, r, err)
				return
			}
			h.ok(w, p)
			return
		}
		personID, err := query(op, r, "personid")
		if err != nil {
			h.fail(w, r, err)
			return
		}
		p, err := h.deps.GetPerson(r.Context(), caller(r), personID, role)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		h.ok(w, p)
	}
}

func (h *PersonsHandler) list(role string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "api.list_persons"
		stripeID, err := query(op, r, "stripeid")
		if err != nil {
			h.fail(w, r, err)
			return
		}
		page, err := h.page(r)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		list, err := h.deps.ListPersons(r.Context(), caller(r), stripeID, role, page)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		h.ok(w, list)
	}
}

func (h *PersonsHandler) count(role string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "api.count_persons"
		stripeID, err := query(op, r, "stripeid")
		if err != nil {
			h.fail(w, r, err)
			return
		}
		n, err := h.deps.CountPersons(r.Context(), caller(r), stripeID, role)
		h.handler.count(w, r, n, err)
	}
}

func (h *PersonsHandler) submit(role string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "api.submit_persons"
		stripeID, err := query(op, r, "stripeid")
		if err != nil {
			h.fail(w, r, err)
			return
		}
		submit := h.deps.SubmitBeneficialOwners
		if role == registration.RoleDirector {
			submit = h.deps.SubmitCompanyDirectors
		}
		a, err := submit(r.Context(), caller(r), stripeID)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		h.ok(w, a)
	}
}
