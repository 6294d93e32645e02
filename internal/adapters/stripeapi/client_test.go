package stripeapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/webhook"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/stripe-connect/internal/domain/errs"
	"github.com/okian/stripe-connect/internal/domain/registration"
	"github.com/okian/stripe-connect/pkg/logger"
)

const testWebhookSecret = "whsec_test_secret"

// fakeStripe answers the subset of the Stripe API the client uses and
// records every request form.
type fakeStripe struct {
	mu        sync.Mutex
	forms     map[string]url.Values
	headers   map[string]http.Header
	specCalls atomic.Int32
}

func (f *fakeStripe) form(key string) url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.forms[key]
}

func (f *fakeStripe) header(key string) http.Header {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.headers[key]
}

func (f *fakeStripe) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	form, _ := url.ParseQuery(string(body))
	if r.Method == http.MethodGet {
		form = r.URL.Query()
	}
	key := r.Method + " " + r.URL.Path
	f.mu.Lock()
	f.forms[key] = form
	f.headers[key] = r.Header.Clone()
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch {
	case key == "POST /v1/accounts":
		writeObject(w, account("acct_new", form.Get("business_type"), form.Get("country"), map[string]string{
			"accountid": form.Get("metadata[accountid]"),
		}))
	case key == "GET /v1/accounts/acct_missing":
		writeStripeError(w, http.StatusNotFound, "resource_missing", "", "No such account")
	case key == "POST /v1/accounts/acct_1" && form.Get("company[tax_id]") == "bad":
		writeStripeError(w, http.StatusBadRequest, "invalid_value", "company[tax_id]", "Invalid tax id")
	case key == "GET /v1/accounts/acct_1", key == "POST /v1/accounts/acct_1":
		md := map[string]string{"accountid": "user_1"}
		for k, vs := range form {
			if name, ok := strings.CutPrefix(k, "metadata["); ok {
				md[strings.TrimSuffix(name, "]")] = vs[0]
			}
		}
		writeObject(w, account("acct_1", "company", "DE", md))
	case key == "POST /v1/accounts/acct_1/reject":
		a := account("acct_1", "company", "DE", map[string]string{"accountid": "user_1"})
		a["requirements"] = map[string]any{"disabled_reason": "rejected." + form.Get("reason")}
		writeObject(w, a)
	case key == "DELETE /v1/accounts/acct_1":
		writeObject(w, map[string]any{"id": "acct_1", "object": "account", "deleted": true})
	case key == "POST /v1/accounts/acct_1/persons":
		writeObject(w, person("person_new", form.Get("relationship[owner]") == "true"))
	case key == "GET /v1/accounts/acct_1/persons":
		writeObject(w, map[string]any{
			"object":   "list",
			"url":      "/v1/accounts/acct_1/persons",
			"has_more": false,
			"data":     []any{person("person_1", true), person("person_2", true)},
		})
	case key == "GET /v1/country_specs/DE":
		f.specCalls.Add(1)
		writeObject(w, countrySpec())
	case key == "GET /v1/payouts":
		writeObject(w, map[string]any{
			"object":   "list",
			"url":      "/v1/payouts",
			"has_more": false,
			"data": []any{
				map[string]any{"id": "po_2", "object": "payout", "amount": 1234, "currency": "eur", "status": "paid", "arrival_date": 1700000000},
				map[string]any{"id": "po_1", "object": "payout", "amount": 500, "currency": "jpy", "status": "in_transit"},
			},
		})
	default:
		writeStripeError(w, http.StatusNotFound, "resource_missing", "", "unrouted "+key)
	}
}

func writeObject(w http.ResponseWriter, v any) {
	_ = json.NewEncoder(w).Encode(v)
}

func writeStripeError(w http.ResponseWriter, status int, code, param, msg string) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{
		"type": "invalid_request_error", "code": code, "param": param, "message": msg,
	}})
}

func account(id, businessType, country string, md map[string]string) map[string]any {
	return map[string]any{
		"id": id, "object": "account", "type": "custom", "business_type": businessType,
		"country": country, "created": 1700000000, "metadata": md,
		"requirements": map[string]any{"currently_due": []string{"company.name"}},
	}
}

func person(id string, owner bool) map[string]any {
	return map[string]any{
		"id": id, "object": "person", "account": "acct_1", "first_name": "Ada", "last_name": "Lovelace",
		"relationship": map[string]any{"owner": owner, "percent_ownership": 30, "title": "CEO"},
		"verification": map[string]any{"status": "unverified"},
	}
}

func countrySpec() map[string]any {
	return map[string]any{
		"id": "DE", "object": "country_spec", "default_currency": "eur",
		"supported_bank_account_currencies": map[string][]string{"eur": {"DE", "FR"}},
		"supported_payment_currencies":      []string{"eur", "usd"},
		"verification_fields": map[string]any{
			"company":    map[string]any{"minimum": []string{"company.name", "owners.first_name"}, "additional": []string{}},
			"individual": map[string]any{"minimum": []string{"individual.first_name"}, "additional": []string{"individual.phone"}},
		},
	}
}

func newTestClient() (*Client, *fakeStripe, func()) {
	fake := &fakeStripe{forms: map[string]url.Values{}, headers: map[string]http.Header{}}
	server := httptest.NewServer(fake)
	cfg := &stripe.BackendConfig{
		URL:               stripe.String(server.URL),
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
	}
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, cfg)
	c := New("sk_test_123", testWebhookSecret,
		WithBackends(&stripe.Backends{API: backend, Connect: backend, Uploads: backend}),
		WithLogger(logger.Nop()),
	)
	return c, fake, server.Close
}

func TestAccounts(t *testing.T) {
	ctx := context.Background()

	Convey("Given a client against a fake Stripe", t, func() {
		c, fake, done := newTestClient()
		Reset(done)

		Convey("When an account is created", func() {
			a, err := c.CreateAccount(ctx, "user_1", registration.BusinessCompany, "DE")

			Convey("Then it is a custom account owned by the user", func() {
				So(err, ShouldBeNil)
				So(a.ID, ShouldEqual, "acct_new")
				So(a.AccountID, ShouldEqual, "user_1")
				So(a.BusinessType, ShouldEqual, "company")
				So(a.Requirements.CurrentlyDue, ShouldResemble, []string{"company.name"})

				form := fake.form("POST /v1/accounts")
				So(form.Get("type"), ShouldEqual, "custom")
				So(form.Get("capabilities[card_payments][requested]"), ShouldEqual, "true")
				So(form.Get("capabilities[transfers][requested]"), ShouldEqual, "true")
				So(fake.header("POST /v1/accounts").Get("Idempotency-Key"), ShouldNotBeEmpty)
			})
		})

		Convey("When an update carries fields and metadata", func() {
			a, err := c.UpdateAccount(ctx, "acct_1", Update{
				Fields:   map[string]string{"company.address.city": "Berlin", "tos_acceptance.ip": "127.0.0.1"},
				Metadata: map[string]string{"submitted": "1", "registration0": ""},
			})

			Convey("Then fields are bracket encoded", func() {
				So(err, ShouldBeNil)
				form := fake.form("POST /v1/accounts/acct_1")
				So(form.Get("company[address][city]"), ShouldEqual, "Berlin")
				So(form.Get("tos_acceptance[ip]"), ShouldEqual, "127.0.0.1")
				So(form.Get("metadata[submitted]"), ShouldEqual, "1")
				So(form.Has("metadata[registration0]"), ShouldBeTrue)
				So(a.Submitted, ShouldBeTrue)
			})
		})

		Convey("When Stripe rejects a parameter", func() {
			_, err := c.UpdateAccount(ctx, "acct_1", Update{Fields: map[string]string{"company.tax_id": "bad"}})
			So(errs.CodeOf(err), ShouldEqual, "invalid-company_tax_id")
			So(errs.KindOf(err), ShouldEqual, errs.ErrInvalid)
		})

		Convey("When the account does not exist", func() {
			_, err := c.GetAccount(ctx, "acct_missing")
			So(errs.CodeOf(err), ShouldEqual, errs.CodeInvalidStripeID)
			So(errs.KindOf(err), ShouldEqual, errs.ErrNotFound)
		})

		Convey("When an account is rejected and deleted", func() {
			a, err := c.RejectAccount(ctx, "acct_1", "fraud")
			So(err, ShouldBeNil)
			So(a.Requirements.DisabledReason, ShouldEqual, "rejected.fraud")
			So(c.DeleteAccount(ctx, "acct_1"), ShouldBeNil)
		})
	})
}

func TestPersonsAndPayouts(t *testing.T) {
	ctx := context.Background()

	Convey("Given a client against a fake Stripe", t, func() {
		c, fake, done := newTestClient()
		Reset(done)

		Convey("When a beneficial owner is created", func() {
			p, err := c.CreatePerson(ctx, "acct_1", registration.RoleOwner, Update{
				Fields: map[string]string{"first_name": "Ada", "relationship.percent_ownership": "30"},
			})
			So(err, ShouldBeNil)
			So(p.ID, ShouldEqual, "person_new")
			So(p.Role, ShouldEqual, registration.RoleOwner)
			So(p.PercentOwnership, ShouldEqual, 30.0)
			form := fake.form("POST /v1/accounts/acct_1/persons")
			So(form.Get("relationship[owner]"), ShouldEqual, "true")
			So(form.Get("relationship[percent_ownership]"), ShouldEqual, "30")
		})

		Convey("When owners are listed", func() {
			people, err := c.ListPersons(ctx, "acct_1", registration.RoleOwner)
			So(err, ShouldBeNil)
			So(people, ShouldHaveLength, 2)
			So(people[0].VerificationStatus, ShouldEqual, "unverified")
			So(fake.form("GET /v1/accounts/acct_1/persons").Get("relationship[owner]"), ShouldEqual, "true")
		})

		Convey("When payouts are listed", func() {
			payouts, err := c.ListPayouts(ctx, "acct_1", 10)
			So(err, ShouldBeNil)
			So(payouts, ShouldHaveLength, 2)
			So(payouts[0].AmountFormatted, ShouldEqual, "12.34")
			So(payouts[1].AmountFormatted, ShouldEqual, "500")
			So(payouts[0].StripeID, ShouldEqual, "acct_1")
			So(fake.header("GET /v1/payouts").Get("Stripe-Account"), ShouldEqual, "acct_1")
		})

		Convey("When a country spec is read twice", func() {
			spec, err := c.GetCountrySpec(ctx, "de")
			So(err, ShouldBeNil)
			_, err = c.GetCountrySpec(ctx, "DE")
			So(err, ShouldBeNil)

			So(fake.specCalls.Load(), ShouldEqual, 1)
			So(spec.DefaultCurrency, ShouldEqual, "eur")
			So(spec.SupportsCurrency("eur", "FR"), ShouldBeTrue)
			req := spec.Requirements(registration.BusinessIndividual)
			So(req.Additional, ShouldResemble, []string{"individual.phone"})
		})
	})
}

func TestConstructEvent(t *testing.T) {
	Convey("Given a webhook payload", t, func() {
		c, _, done := newTestClient()
		Reset(done)
		payload := []byte(`{"id":"evt_1","object":"event","type":"payout.paid","account":"acct_1","created":1700000000,` +
			`"api_version":"2020-08-27","data":{"object":{"id":"po_1","object":"payout","amount":100,"currency":"eur"}}}`)

		Convey("When it is signed with the secret", func() {
			signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{Payload: payload, Secret: testWebhookSecret})
			ev, err := c.ConstructEvent(payload, signed.Header)

			Convey("Then the event is decoded", func() {
				So(err, ShouldBeNil)
				So(ev.ID, ShouldEqual, "evt_1")
				So(ev.Type, ShouldEqual, "payout.paid")
				So(ev.Account, ShouldEqual, "acct_1")

				p, err := DecodePayout(ev.Account, ev.Object)
				So(err, ShouldBeNil)
				So(p.AmountFormatted, ShouldEqual, "1.00")
			})
		})

		Convey("When it is signed with another secret", func() {
			signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{Payload: payload, Secret: "whsec_other"})
			_, err := c.ConstructEvent(payload, signed.Header)
			So(errs.CodeOf(err), ShouldEqual, errs.CodeInvalidSignature)
		})
	})
}

func TestParamPath(t *testing.T) {
	Convey("Stripe params become dotted paths", t, func() {
		So(paramPath("company[address][city]"), ShouldEqual, "company.address.city")
		So(paramPath("email"), ShouldEqual, "email")
	})
}

func TestToCountrySpec(t *testing.T) {
	Convey("Given a Stripe country spec", t, func() {
		spec := &stripe.CountrySpec{
			ID:              "DE",
			DefaultCurrency: stripe.CurrencyEUR,
			SupportedBankAccountCurrencies: map[stripe.Currency][]stripe.Country{
				stripe.CurrencyEUR: {"AT", "DE"},
				stripe.CurrencyUSD: {"US"},
			},
			SupportedPaymentCurrencies: []stripe.Currency{stripe.CurrencyEUR, stripe.CurrencyUSD},
			VerificationFields: map[stripe.AccountBusinessType]*stripe.VerificationFieldsList{
				stripe.AccountBusinessTypeCompany:    {Minimum: []string{"company.name"}},
				stripe.AccountBusinessTypeIndividual: nil,
			},
		}

		Convey("When it is converted", func() {
			got := toCountrySpec(spec)

			Convey("Then currencies and countries are plain codes", func() {
				So(got.ID, ShouldEqual, "DE")
				So(got.DefaultCurrency, ShouldEqual, "eur")
				So(got.SupportedBankAccountCurrencies, ShouldResemble, map[string][]string{
					"eur": {"AT", "DE"},
					"usd": {"US"},
				})
				So(got.SupportedPaymentCurrencies, ShouldResemble, []string{"eur", "usd"})
			})

			Convey("Then verification fields are kept per business type", func() {
				So(got.VerificationFields, ShouldHaveLength, 1)
				So(got.VerificationFields["company"].Minimum, ShouldResemble, []string{"company.name"})
				So(got.VerificationFields["company"].Additional, ShouldBeEmpty)
			})
		})
	})
}
