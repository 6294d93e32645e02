package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/okian/stripe-connect/internal/adapters/stripeapi"
	"github.com/okian/stripe-connect/internal/domain/errs"
	"github.com/okian/stripe-connect/internal/domain/model"
)

// fakeStripe keeps connected accounts in memory and records what the
// service sends.
type fakeStripe struct {
	mu       sync.Mutex
	seq      int
	accounts map[string]model.StripeAccount
	persons  map[string]model.Person
	payouts  map[string]model.Payout
	specs    map[string]model.CountrySpec
	fields   map[string]map[string]string
	rejected map[string]string
}

func newFakeStripe() *fakeStripe {
	return &fakeStripe{
		accounts: map[string]model.StripeAccount{},
		persons:  map[string]model.Person{},
		payouts:  map[string]model.Payout{},
		specs:    map[string]model.CountrySpec{"DE": germany()},
		fields:   map[string]map[string]string{},
		rejected: map[string]string{},
	}
}

func germany() model.CountrySpec {
	return model.CountrySpec{
		ID:                             "DE",
		DefaultCurrency:                "eur",
		SupportedBankAccountCurrencies: map[string][]string{"eur": {"DE", "FR"}},
		SupportedPaymentCurrencies:     []string{"eur"},
		VerificationFields: map[string]model.VerificationFields{
			"company": {
				Minimum: []string{
					"business_profile.mcc",
					"business_profile.url",
					"company.address.city",
					"company.directors_provided",
					"company.name",
					"company.owners_provided",
					"company.tax_id",
					"directors.first_name",
					"directors.last_name",
					"external_account",
					"owners.first_name",
					"owners.last_name",
					"representative.first_name",
					"representative.last_name",
					"tos_acceptance.date",
				},
				Additional: []string{"company.address.line1"},
			},
			"individual": {
				Minimum: []string{
					"external_account",
					"individual.first_name",
					"individual.last_name",
					"tos_acceptance.date",
				},
			},
		},
	}
}

func (f *fakeStripe) missing(op, code string) error {
	return errs.New(op, errs.ErrNotFound, code)
}

func copyMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (f *fakeStripe) CreateAccount(ctx context.Context, accountID, businessType, country string) (model.StripeAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	a := model.StripeAccount{
		ID:           fmt.Sprintf("acct_%d", f.seq),
		AccountID:    accountID,
		BusinessType: businessType,
		Country:      country,
		Created:      time.Now().UTC(),
		Metadata:     map[string]string{stripeapi.MetaAccountID: accountID},
	}
	f.accounts[a.ID] = a
	return a, nil
}

func (f *fakeStripe) GetAccount(ctx context.Context, stripeID string) (model.StripeAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[stripeID]
	if !ok {
		return model.StripeAccount{}, f.missing("fake.get_account", errs.CodeInvalidStripeID)
	}
	a.Metadata = copyMap(a.Metadata)
	md := a.Metadata
	a.Submitted = md[stripeapi.MetaSubmitted] != ""
	a.PaymentInformation = md[stripeapi.MetaPaymentInformation] != ""
	a.OwnersSubmitted = md[stripeapi.MetaOwnersSubmitted] != ""
	a.DirectorsSubmitted = md[stripeapi.MetaDirectorsSubmitted] != ""
	return a, nil
}

func (f *fakeStripe) UpdateAccount(ctx context.Context, stripeID string, u stripeapi.Update) (model.StripeAccount, error) {
	f.mu.Lock()
	a, ok := f.accounts[stripeID]
	if !ok {
		f.mu.Unlock()
		return model.StripeAccount{}, f.missing("fake.update_account", errs.CodeInvalidStripeID)
	}
	for k, v := range u.Metadata {
		if v == "" {
			delete(a.Metadata, k)
			continue
		}
		a.Metadata[k] = v
	}
	if len(u.Fields) > 0 {
		f.fields[stripeID] = copyMap(u.Fields)
	}
	f.accounts[stripeID] = a
	f.mu.Unlock()
	return f.GetAccount(ctx, stripeID)
}

func (f *fakeStripe) DeleteAccount(ctx context.Context, stripeID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.accounts[stripeID]; !ok {
		return f.missing("fake.delete_account", errs.CodeInvalidStripeID)
	}
	delete(f.accounts, stripeID)
	return nil
}

func (f *fakeStripe) RejectAccount(ctx context.Context, stripeID, reason string) (model.StripeAccount, error) {
	f.mu.Lock()
	a, ok := f.accounts[stripeID]
	if ok {
		a.Requirements.DisabledReason = "rejected." + reason
		f.accounts[stripeID] = a
		f.rejected[stripeID] = reason
	}
	f.mu.Unlock()
	if !ok {
		return model.StripeAccount{}, f.missing("fake.reject_account", errs.CodeInvalidStripeID)
	}
	return f.GetAccount(ctx, stripeID)
}

func (f *fakeStripe) CreatePerson(ctx context.Context, stripeID, role string, u stripeapi.Update) (model.Person, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	p := model.Person{
		ID:           fmt.Sprintf("person_%d", f.seq),
		StripeID:     stripeID,
		Role:         role,
		FirstName:    u.Fields["first_name"],
		LastName:     u.Fields["last_name"],
		CurrentlyDue: []string{},
	}
	f.persons[p.ID] = p
	return p, nil
}

func (f *fakeStripe) GetPerson(ctx context.Context, stripeID, personID string) (model.Person, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.persons[personID]
	if !ok || p.StripeID != stripeID {
		return model.Person{}, f.missing("fake.get_person", errs.CodeInvalidPersonID)
	}
	return p, nil
}

func (f *fakeStripe) UpdatePerson(ctx context.Context, stripeID, personID string, u stripeapi.Update) (model.Person, error) {
	f.mu.Lock()
	p, ok := f.persons[personID]
	if ok {
		if v, set := u.Fields["first_name"]; set {
			p.FirstName = v
		}
		if v, set := u.Fields["last_name"]; set {
			p.LastName = v
		}
		f.persons[personID] = p
	}
	f.mu.Unlock()
	if !ok {
		return model.Person{}, f.missing("fake.update_person", errs.CodeInvalidPersonID)
	}
	return p, nil
}

func (f *fakeStripe) DeletePerson(ctx context.Context, stripeID, personID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.persons, personID)
	return nil
}

func (f *fakeStripe) ListPersons(ctx context.Context, stripeID, role string) ([]model.Person, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.Person{}
	for _, p := range f.persons {
		if p.StripeID == stripeID && (role == "" || p.Role == role) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeStripe) GetPayout(ctx context.Context, stripeID, payoutID string) (model.Payout, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.payouts[payoutID]
	if !ok || p.StripeID != stripeID {
		return model.Payout{}, f.missing("fake.get_payout", errs.CodeInvalidPayoutID)
	}
	return p, nil
}

func (f *fakeStripe) ListPayouts(ctx context.Context, stripeID string, limit int) ([]model.Payout, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.Payout{}
	for _, p := range f.payouts {
		if p.StripeID == stripeID && len(out) < limit {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeStripe) GetCountrySpec(ctx context.Context, country string) (model.CountrySpec, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.specs[strings.ToUpper(country)]
	if !ok {
		return model.CountrySpec{}, errs.New("fake.get_country_spec", errs.ErrNotFound, errs.FieldCode("country"))
	}
	return s, nil
}

func (f *fakeStripe) ListCountrySpecs(ctx context.Context) ([]model.CountrySpec, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.CountrySpec, 0, len(f.specs))
	for _, s := range f.specs {
		out = append(out, s)
	}
	return out, nil
}

// ConstructEvent accepts the signature "valid" only.
func (f *fakeStripe) ConstructEvent(payload []byte, signature string) (model.Event, error) {
	if signature != "valid" {
		return model.Event{}, errs.New("fake.construct_event", errs.ErrInvalid, errs.CodeInvalidSignature)
	}
	var raw struct {
		ID      string `json:"id"`
		Type    string `json:"type"`
		Account string `json:"account"`
		Data    struct {
			Object json.RawMessage `json:"object"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return model.Event{}, errs.Wrap("fake.construct_event", errs.ErrInvalid, errs.CodeInvalidSignature, err)
	}
	return model.Event{ID: raw.ID, Type: raw.Type, Account: raw.Account, Object: raw.Data.Object}, nil
}

func (f *fakeStripe) sentFields(stripeID string) map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return copyMap(f.fields[stripeID])
}

func (f *fakeStripe) metadata(stripeID string) map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return copyMap(f.accounts[stripeID].Metadata)
}

func (f *fakeStripe) addPayout(p model.Payout) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payouts[p.ID] = p
}
