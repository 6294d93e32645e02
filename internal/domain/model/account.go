package model

import (
	"time"

	"github.com/okian/stripe-connect/internal/domain/registration"
)

// StripeAccount is a Connect custom account as shown to its owner.
type StripeAccount struct {
	ID                 string                `json:"id"`
	AccountID          string                `json:"accountid"`
	BusinessType       string                `json:"business_type"`
	Country            string                `json:"country"`
	Email              string                `json:"email,omitempty"`
	DefaultCurrency    string                `json:"default_currency,omitempty"`
	Created            time.Time             `json:"created"`
	ChargesEnabled     bool                  `json:"charges_enabled"`
	PayoutsEnabled     bool                  `json:"payouts_enabled"`
	DetailsSubmitted   bool                  `json:"details_submitted"`
	Submitted          bool                  `json:"submitted"`
	PaymentInformation bool                  `json:"payment_information"`
	OwnersSubmitted    bool                  `json:"owners_submitted"`
	DirectorsSubmitted bool                  `json:"directors_submitted"`
	Registration       map[string]string     `json:"registration"`
	Requirements       registration.Due      `json:"requirements"`
	Progress           registration.Progress `json:"progress"`
	Status             *AccountStatus        `json:"status,omitempty"`

	// Metadata is the raw metadata, kept for computing updates.
	Metadata map[string]string `json:"-"`
}

// Person is a beneficial owner, director or representative of a company account.
type Person struct {
	ID                 string    `json:"id"`
	StripeID           string    `json:"stripeid"`
	Role               string    `json:"role"`
	FirstName          string    `json:"first_name,omitempty"`
	LastName           string    `json:"last_name,omitempty"`
	Email              string    `json:"email,omitempty"`
	Title              string    `json:"title,omitempty"`
	PercentOwnership   float64   `json:"percent_ownership,omitempty"`
	Owner              bool      `json:"owner"`
	Director           bool      `json:"director"`
	Representative     bool      `json:"representative"`
	Executive          bool      `json:"executive"`
	VerificationStatus string    `json:"verification_status,omitempty"`
	CurrentlyDue       []string  `json:"currently_due"`
	Created            time.Time `json:"created"`
}

// RoleOf returns the role a person holds, preferring representative, then
// owner, then director.
func RoleOf(p Person) string {
	switch {
	case p.Representative:
		return registration.RoleRepresentative
	case p.Owner:
		return registration.RoleOwner
	case p.Director:
		return registration.RoleDirector
	}
	return ""
}

// VerificationFields are the minimum and additional fields for a business type.
type VerificationFields struct {
	Minimum    []string `json:"minimum"`
	Additional []string `json:"additional"`
}

// CountrySpec describes what a country requires of connected accounts.
type CountrySpec struct {
	ID                             string                        `json:"id"`
	DefaultCurrency                string                        `json:"default_currency"`
	SupportedBankAccountCurrencies map[string][]string           `json:"supported_bank_account_currencies"`
	SupportedPaymentCurrencies     []string                      `json:"supported_payment_currencies"`
	VerificationFields             map[string]VerificationFields `json:"verification_fields"`
}

// Requirements returns the verification requirements for businessType.
func (c CountrySpec) Requirements(businessType string) registration.Requirements {
	f := c.VerificationFields[businessType]
	return registration.Requirements{
		Country:      c.ID,
		BusinessType: businessType,
		Minimum:      f.Minimum,
		Additional:   f.Additional,
	}
}

// SupportsCurrency reports whether a bank account in currency can be
// attached, and whether country is one of that currency's bank countries.
func (c CountrySpec) SupportsCurrency(currency, country string) bool {
	countries, ok := c.SupportedBankAccountCurrencies[currency]
	if !ok {
		return false
	}
	if country == "" {
		return true
	}
	for _, cc := range countries {
		if cc == country {
			return true
		}
	}
	return false
}
