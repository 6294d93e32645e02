package registration

import "strings"

// Person roles.
const (
	RoleOwner          = "beneficial_owner"
	RoleDirector       = "director"
	RoleRepresentative = "representative"
)

// RoleSection maps a person role to its requirements section, or "" for an
// unknown role.
func RoleSection(role string) string {
	switch role {
	case RoleOwner:
		return SectionOwners
	case RoleDirector:
		return SectionDirectors
	case RoleRepresentative:
		return SectionRepresentative
	}
	return ""
}

// Onboarding states, from least to most advanced, plus rejected.
const (
	StateNew          = "new"
	StateRegistration = "registration"
	StateReady        = "ready"
	StateSubmitted    = "submitted"
	StateIncomplete   = "incomplete"
	StatePending      = "pending"
	StateVerified     = "verified"
	StateRejected     = "rejected"
)

// Due mirrors the requirements hash Stripe keeps on an account.
type Due struct {
	CurrentlyDue        []string `json:"currently_due"`
	EventuallyDue       []string `json:"eventually_due"`
	PastDue             []string `json:"past_due"`
	PendingVerification []string `json:"pending_verification"`
	DisabledReason      string   `json:"disabled_reason,omitempty"`
}

// Account is what Evaluate needs to know about a connected account.
type Account struct {
	BusinessType       string
	Submitted          bool
	PaymentInformation bool
	OwnersSubmitted    bool
	DirectorsSubmitted bool
	HasRepresentative  bool
	PayoutsEnabled     bool
	Staged             map[string]string
	Due                Due
}

// Progress is the derived onboarding state of an account.
type Progress struct {
	State                   string   `json:"state"`
	Missing                 []string `json:"missing"`
	NeedsPaymentInformation bool     `json:"needs_payment_information"`
	NeedsOwners             bool     `json:"needs_owners"`
	NeedsDirectors          bool     `json:"needs_directors"`
	NeedsRepresentative     bool     `json:"needs_representative"`
	Due
}

// Evaluate derives the onboarding progress of a against req.
func Evaluate(a Account, req Requirements) Progress {
	p := Progress{Due: a.Due, Missing: []string{}}
	if !a.Submitted {
		if m := Missing(a.BusinessType, a.Staged, req); len(m) > 0 {
			p.Missing = m
		}
		p.NeedsPaymentInformation = !a.PaymentInformation
		if a.BusinessType == BusinessCompany {
			p.NeedsOwners = req.Requires(SectionOwners) && !a.OwnersSubmitted
			p.NeedsDirectors = req.Requires(SectionDirectors) && !a.DirectorsSubmitted
			p.NeedsRepresentative = req.Requires(SectionRepresentative) && !a.HasRepresentative
		}
	}
	p.State = state(a, p)
	return p
}

func state(a Account, p Progress) string {
	due := len(a.Due.CurrentlyDue)+len(a.Due.PastDue) > 0
	switch {
	case strings.HasPrefix(a.Due.DisabledReason, "rejected."):
		return StateRejected
	case a.Submitted && a.PayoutsEnabled && !due:
		return StateVerified
	case a.Submitted && len(a.Due.PendingVerification) > 0:
		return StatePending
	case a.Submitted && due:
		return StateIncomplete
	case a.Submitted:
		return StateSubmitted
	case len(p.Missing) == 0 && !p.NeedsPaymentInformation && !p.NeedsOwners &&
		!p.NeedsDirectors && !p.NeedsRepresentative:
		return StateReady
	case len(a.Staged) > 0:
		return StateRegistration
	}
	return StateNew
}

// Ready reports whether an account may be submitted.
func (p Progress) Ready() bool {
	return p.State == StateReady
}

// Blockers lists what stops submission, for error messages.
func (p Progress) Blockers() []string {
	out := append([]string{}, p.Missing...)
	if p.NeedsPaymentInformation {
		out = append(out, SectionExternalAccount)
	}
	if p.NeedsOwners {
		out = append(out, SectionOwners)
	}
	if p.NeedsDirectors {
		out = append(out, SectionDirectors)
	}
	if p.NeedsRepresentative {
		out = append(out, SectionRepresentative)
	}
	return out
}
