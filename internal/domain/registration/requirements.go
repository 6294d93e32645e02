// Package registration classifies Stripe verification fields, validates the
// KYC data users stage for a connected account, and derives the account's
// onboarding state.
//
// Field paths use Stripe's dotted notation: company.address.city,
// individual.dob.day, owners.first_name, external_account.
package registration

import (
	"sort"
	"strings"
)

// Business types.
const (
	BusinessCompany    = "company"
	BusinessIndividual = "individual"
)

// Sections of an account a verification field belongs to.
const (
	SectionCompany         = "company"
	SectionIndividual      = "individual"
	SectionBusinessProfile = "business_profile"
	SectionBusinessType    = "business_type"
	SectionOwners          = "owners"
	SectionDirectors       = "directors"
	SectionExecutives      = "executives"
	SectionRepresentative  = "representative"
	SectionExternalAccount = "external_account"
	SectionTOSAcceptance   = "tos_acceptance"
	SectionOther           = "other"
)

// Requirements are the verification fields a country requires for one
// business type, as published in the country spec.
type Requirements struct {
	Country      string
	BusinessType string
	Minimum      []string
	Additional   []string
}

// ValidBusinessType reports whether t is company or individual.
func ValidBusinessType(t string) bool {
	return t == BusinessCompany || t == BusinessIndividual
}

// SectionOf returns the section a field path belongs to.
func SectionOf(path string) string {
	switch path {
	case "company.owners_provided":
		return SectionOwners
	case "company.directors_provided":
		return SectionDirectors
	case "company.executives_provided":
		return SectionExecutives
	case "external_account":
		return SectionExternalAccount
	case "business_type":
		return SectionBusinessType
	}
	head, _, _ := strings.Cut(path, ".")
	switch head {
	case SectionCompany, SectionIndividual, SectionBusinessProfile, SectionOwners,
		SectionDirectors, SectionExecutives, SectionRepresentative, SectionExternalAccount,
		SectionTOSAcceptance:
		return head
	case "relationship":
		return SectionRepresentative
	}
	return SectionOther
}

// Sections groups field paths by section, each group sorted.
func Sections(paths []string) map[string][]string {
	out := map[string][]string{}
	for _, p := range paths {
		s := SectionOf(p)
		out[s] = append(out[s], p)
	}
	for _, v := range out {
		sort.Strings(v)
	}
	return out
}

// Requires reports whether any minimum field falls in section.
func (r Requirements) Requires(section string) bool {
	for _, p := range r.Minimum {
		if SectionOf(p) == section {
			return true
		}
	}
	return false
}

// MinimumIn returns the minimum fields of section.
func (r Requirements) MinimumIn(section string) []string {
	return Sections(r.Minimum)[section]
}

// allowedIn returns the section-relative paths (minimum and additional) of
// section, merged with the optional fields that are always accepted.
func (r Requirements) allowedIn(section string) map[string]bool {
	out := map[string]bool{}
	for _, list := range [][]string{r.Minimum, r.Additional} {
		for _, p := range list {
			if SectionOf(p) != section {
				continue
			}
			if rel, ok := strings.CutPrefix(p, section+"."); ok {
				out[rel] = true
			}
		}
	}
	for _, rel := range optionalFields[section] {
		out[rel] = true
	}
	return out
}

// optionalFields are accepted in updates even when the country spec does
// not list them.
var optionalFields = map[string][]string{
	SectionCompany: {
		"name", "phone", "tax_id", "vat_id", "registration_number",
		"address.line1", "address.line2", "address.city", "address.state",
		"address.postal_code", "address.country",
	},
	SectionIndividual: {
		"first_name", "last_name", "email", "phone", "maiden_name",
		"dob.day", "dob.month", "dob.year",
		"address.line1", "address.line2", "address.city", "address.state",
		"address.postal_code", "address.country",
	},
	SectionBusinessProfile: {
		"mcc", "url", "name", "product_description", "support_email", "support_phone", "support_url",
	},
	SectionOwners:         personBaseline(),
	SectionDirectors:      personBaseline(),
	SectionExecutives:     personBaseline(),
	SectionRepresentative: personBaseline("relationship.executive", "ssn_last_4", "id_number"),
}

func personBaseline(extra ...string) []string {
	base := []string{
		"first_name", "last_name", "email", "phone",
		"dob.day", "dob.month", "dob.year",
		"address.line1", "address.line2", "address.city", "address.state",
		"address.postal_code", "address.country",
		"relationship.title", "relationship.percent_ownership",
	}
	return append(base, extra...)
}

// sensitiveSuffixes mark values that are never echoed back in full.
var sensitiveSuffixes = []string{"id_number", "ssn_last_4", "tax_id", "vat_id", "account_number", "personal_id_number"}

// Sensitive reports whether a path holds an identity or bank number.
func Sensitive(path string) bool {
	for _, s := range sensitiveSuffixes {
		if path == s || strings.HasSuffix(path, "."+s) {
			return true
		}
	}
	return false
}

// Redact returns a copy of staged with sensitive values masked.
func Redact(staged map[string]string) map[string]string {
	out := make(map[string]string, len(staged))
	for k, v := range staged {
		if Sensitive(k) && v != "" {
			out[k] = "****"
			continue
		}
		out[k] = v
	}
	return out
}

// FormKey turns a dotted path into Stripe's form encoding:
// company.address.city -> company[address][city].
func FormKey(path string) string {
	parts := strings.Split(path, ".")
	if len(parts) == 1 {
		return path
	}
	var b strings.Builder
	b.WriteString(parts[0])
	for _, p := range parts[1:] {
		b.WriteByte('[')
		b.WriteString(p)
		b.WriteByte(']')
	}
	return b.String()
}
