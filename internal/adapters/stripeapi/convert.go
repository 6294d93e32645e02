package stripeapi

import (
	"time"

	"github.com/stripe/stripe-go/v81"

	"github.com/okian/stripe-connect/internal/domain/model"
	"github.com/okian/stripe-connect/internal/domain/registration"
)

// Metadata keys set on connected accounts.
const (
	MetaAccountID          = "accountid"
	MetaRegistration       = "registration"
	MetaPaymentInformation = "payment_information"
	MetaSubmitted          = "submitted"
	MetaOwnersSubmitted    = "owners_submitted"
	MetaDirectorsSubmitted = "directors_submitted"
)

func unix(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func toAccount(a *stripe.Account) model.StripeAccount {
	md := a.Metadata
	if md == nil {
		md = map[string]string{}
	}
	out := model.StripeAccount{
		ID:                 a.ID,
		AccountID:          md[MetaAccountID],
		BusinessType:       string(a.BusinessType),
		Country:            a.Country,
		Email:              a.Email,
		DefaultCurrency:    string(a.DefaultCurrency),
		Created:            unix(a.Created),
		ChargesEnabled:     a.ChargesEnabled,
		PayoutsEnabled:     a.PayoutsEnabled,
		DetailsSubmitted:   a.DetailsSubmitted,
		Submitted:          md[MetaSubmitted] != "",
		PaymentInformation: md[MetaPaymentInformation] != "",
		OwnersSubmitted:    md[MetaOwnersSubmitted] != "",
		DirectorsSubmitted: md[MetaDirectorsSubmitted] != "",
		Metadata:           md,
		Requirements:       toDue(a.Requirements),
	}
	return out
}

func toDue(r *stripe.AccountRequirements) registration.Due {
	if r == nil {
		return registration.Due{CurrentlyDue: []string{}, EventuallyDue: []string{}, PastDue: []string{}, PendingVerification: []string{}}
	}
	return registration.Due{
		CurrentlyDue:        nonNil(r.CurrentlyDue),
		EventuallyDue:       nonNil(r.EventuallyDue),
		PastDue:             nonNil(r.PastDue),
		PendingVerification: nonNil(r.PendingVerification),
		DisabledReason:      string(r.DisabledReason),
	}
}

// ToAccountStatus builds the snapshot stored on account.updated.
func ToAccountStatus(a *stripe.Account) model.AccountStatus {
	due := toDue(a.Requirements)
	return model.AccountStatus{
		StripeID:         a.ID,
		ChargesEnabled:   a.ChargesEnabled,
		PayoutsEnabled:   a.PayoutsEnabled,
		DetailsSubmitted: a.DetailsSubmitted,
		CurrentlyDue:     due.CurrentlyDue,
		EventuallyDue:    due.EventuallyDue,
		PastDue:          due.PastDue,
		PendingVerify:    due.PendingVerification,
		DisabledReason:   due.DisabledReason,
		UpdatedAt:        time.Now().UTC(),
	}
}

func toPerson(p *stripe.Person) model.Person {
	out := model.Person{
		ID:           p.ID,
		StripeID:     p.Account,
		FirstName:    p.FirstName,
		LastName:     p.LastName,
		Email:        p.Email,
		Created:      unix(p.Created),
		CurrentlyDue: []string{},
	}
	if r := p.Relationship; r != nil {
		out.Owner = r.Owner
		out.Director = r.Director
		out.Representative = r.Representative
		out.Executive = r.Executive
		out.Title = r.Title
		out.PercentOwnership = r.PercentOwnership
	}
	if p.Requirements != nil {
		out.CurrentlyDue = nonNil(p.Requirements.CurrentlyDue)
	}
	if p.Verification != nil {
		out.VerificationStatus = string(p.Verification.Status)
	}
	out.Role = model.RoleOf(out)
	return out
}

func toPayout(stripeID string, p *stripe.Payout) model.Payout {
	return model.Payout{
		ID:              p.ID,
		StripeID:        stripeID,
		Amount:          p.Amount,
		AmountFormatted: model.FormatAmount(p.Amount, string(p.Currency)),
		Currency:        string(p.Currency),
		Status:          string(p.Status),
		Method:          string(p.Method),
		FailureCode:     string(p.FailureCode),
		ArrivalDate:     unix(p.ArrivalDate),
		Created:         unix(p.Created),
	}
}

func toCountrySpec(s *stripe.CountrySpec) model.CountrySpec {
	out := model.CountrySpec{
		ID:                             s.ID,
		DefaultCurrency:                string(s.DefaultCurrency),
		SupportedBankAccountCurrencies: map[string][]string{},
		SupportedPaymentCurrencies:     []string{},
		VerificationFields:             map[string]model.VerificationFields{},
	}
	for cur, countries := range s.SupportedBankAccountCurrencies {
		codes := make([]string, 0, len(countries))
		for _, c := range countries {
			codes = append(codes, string(c))
		}
		out.SupportedBankAccountCurrencies[string(cur)] = codes
	}
	for _, cur := range s.SupportedPaymentCurrencies {
		out.SupportedPaymentCurrencies = append(out.SupportedPaymentCurrencies, string(cur))
	}
	for bt, f := range s.VerificationFields {
		if f == nil {
			continue
		}
		out.VerificationFields[string(bt)] = model.VerificationFields{
			Minimum:    nonNil(f.Minimum),
			Additional: nonNil(f.AdditionalFields),
		}
	}
	return out
}
