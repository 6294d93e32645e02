package api_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/stripe-connect/internal/adapters/http/api"
	"github.com/okian/stripe-connect/internal/adapters/http/auth"
	service "github.com/okian/stripe-connect/internal/app"
	"github.com/okian/stripe-connect/internal/domain/errs"
	"github.com/okian/stripe-connect/internal/domain/model"
	"github.com/okian/stripe-connect/pkg/logger"
)

// mockDeps implements the handful of operations the tests call; the
// embedded interface panics for anything else.
type mockDeps struct {
	api.Dependencies

	caller   string
	stripeID string
	fields   map[string]string
	page     model.Page
	ip       string
	reason   string
	ingest   string
	err      error
	accounts int
}

func (m *mockDeps) CreateStripeAccount(ctx context.Context, accountID, businessType, country string) (model.StripeAccount, error) {
	m.caller = accountID
	if m.err != nil {
		return model.StripeAccount{}, m.err
	}
	return model.StripeAccount{ID: "acct_1", AccountID: accountID, BusinessType: businessType, Country: country}, nil
}

func (m *mockDeps) ListStripeAccounts(ctx context.Context, accountID string, page model.Page) ([]model.StripeAccount, error) {
	m.caller, m.page = accountID, page
	return []model.StripeAccount{{ID: "acct_2"}, {ID: "acct_1"}}, nil
}

func (m *mockDeps) CountStripeAccounts(ctx context.Context, accountID string) (int, error) {
	return m.accounts, nil
}

func (m *mockDeps) GetStripeAccount(ctx context.Context, accountID, stripeID string) (model.StripeAccount, error) {
	m.caller, m.stripeID = accountID, stripeID
	if m.err != nil {
		return model.StripeAccount{}, m.err
	}
	return model.StripeAccount{ID: stripeID, AccountID: accountID}, nil
}

func (m *mockDeps) UpdateCompanyRegistration(ctx context.Context, accountID, stripeID string, fields map[string]string) (model.StripeAccount, error) {
	m.stripeID, m.fields = stripeID, fields
	return model.StripeAccount{ID: stripeID}, nil
}

func (m *mockDeps) SubmitStripeAccount(ctx context.Context, accountID, stripeID, ip, userAgent string) (model.StripeAccount, error) {
	m.ip = ip
	return model.StripeAccount{ID: stripeID, Submitted: true}, nil
}

func (m *mockDeps) GetRepresentative(ctx context.Context, accountID, stripeID string) (model.Person, error) {
	m.stripeID = stripeID
	return model.Person{ID: "person_1", Role: "representative"}, nil
}

func (m *mockDeps) CountAllStripeAccounts(ctx context.Context) (int, error) {
	return m.accounts, nil
}

func (m *mockDeps) SetStripeAccountRejected(ctx context.Context, stripeID, reason string) (model.StripeAccount, error) {
	m.reason = reason
	if m.err != nil {
		return model.StripeAccount{}, m.err
	}
	return model.StripeAccount{ID: stripeID}, nil
}

func (m *mockDeps) IngestWebhook(ctx context.Context, payload []byte, signature string) (string, error) {
	return m.ingest, m.err
}

func (m *mockDeps) Stats(ctx context.Context) map[string]any {
	return map[string]any{"started": true}
}

type fixture struct {
	deps  *mockDeps
	mux   *http.ServeMux
	authn *auth.Authenticator
}

func newFixture(opts ...api.Option) fixture {
	deps := &mockDeps{}
	authn := auth.New("test-secret", "stripe-connect")
	opts = append([]api.Option{api.WithPageSize(10, 50), api.WithLogger(logger.Nop())}, opts...)
	srv := api.NewServer(deps, authn, opts...)
	mux := http.NewServeMux()
	srv.Register(context.Background(), mux)
	return fixture{deps: deps, mux: mux, authn: authn}
}

func (f fixture) do(method, target, body, accountID string, admin bool) *httptest.ResponseRecorder {
	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		r = httptest.NewRequest(method, target, nil)
	}
	if accountID != "" {
		token, err := f.authn.Issue(accountID, admin, time.Hour)
		So(err, ShouldBeNil)
		r.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.mux.ServeHTTP(w, r)
	return w
}

func decodeError(w *httptest.ResponseRecorder) map[string]string {
	var out map[string]string
	So(json.Unmarshal(w.Body.Bytes(), &out), ShouldBeNil)
	return out
}

func TestHealth(t *testing.T) {
	Convey("GET /healthz reports the service stats", t, func() {
		f := newFixture()
		w := f.do(http.MethodGet, "/healthz", "", "", false)
		So(w.Code, ShouldEqual, http.StatusOK)
		So(w.Body.String(), ShouldContainSubstring, `"started":true`)
	})

	Convey("GET /metrics serves prometheus text", t, func() {
		f := newFixture()
		w := f.do(http.MethodGet, "/metrics", "", "", false)
		So(w.Code, ShouldEqual, http.StatusOK)
		So(w.Body.String(), ShouldContainSubstring, "connect_")
	})
}

func TestAuthentication(t *testing.T) {
	Convey("Given the API", t, func() {
		f := newFixture()

		Convey("user routes need a token", func() {
			w := f.do(http.MethodGet, "/api/user/connect/stripe-accounts", "", "", false)
			So(w.Code, ShouldEqual, http.StatusUnauthorized)
			So(decodeError(w)["code"], ShouldEqual, errs.CodeInvalidAccount)
		})

		Convey("administrator routes need the administrator claim", func() {
			w := f.do(http.MethodGet, "/api/administrator/connect/stripe-accounts-count", "", "user-1", false)
			So(w.Code, ShouldEqual, http.StatusForbidden)
			So(decodeError(w)["code"], ShouldEqual, errs.CodeInvalidAccount)

			f.deps.accounts = 7
			w = f.do(http.MethodGet, "/api/administrator/connect/stripe-accounts-count", "", "admin-1", true)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(strings.TrimSpace(w.Body.String()), ShouldEqual, "7")
		})

		Convey("routes only answer their method", func() {
			w := f.do(http.MethodGet, "/api/user/connect/create-stripe-account", "", "user-1", false)
			So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
		})
	})
}

func TestAccountRoutes(t *testing.T) {
	Convey("Given a signed in user", t, func() {
		f := newFixture()

		Convey("an account is created for the caller", func() {
			w := f.do(http.MethodPost, "/api/user/connect/create-stripe-account", `{"business_type":"company","country":"DE"}`, "user-1", false)
			So(w.Code, ShouldEqual, http.StatusCreated)
			So(f.deps.caller, ShouldEqual, "user-1")
			var a model.StripeAccount
			So(json.Unmarshal(w.Body.Bytes(), &a), ShouldBeNil)
			So(a.Country, ShouldEqual, "DE")
		})

		Convey("a malformed body is invalid", func() {
			w := f.do(http.MethodPost, "/api/user/connect/create-stripe-account", `{`, "user-1", false)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(decodeError(w)["code"], ShouldEqual, "invalid-body")
		})

		Convey("service errors keep their code", func() {
			f.deps.err = errs.Invalid("test", "business_type")
			w := f.do(http.MethodPost, "/api/user/connect/create-stripe-account", `{"business_type":"x"}`, "user-1", false)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(decodeError(w)["code"], ShouldEqual, "invalid-business_type")
		})

		Convey("a missing stripeid is invalid", func() {
			w := f.do(http.MethodGet, "/api/user/connect/stripe-account", "", "user-1", false)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(decodeError(w)["code"], ShouldEqual, errs.CodeInvalidStripeID)
		})

		Convey("ownership failures are forbidden", func() {
			f.deps.err = errs.New("test", errs.ErrForbidden, errs.CodeInvalidAccount)
			w := f.do(http.MethodGet, "/api/user/connect/stripe-account?stripeid=acct_1", "", "user-2", false)
			So(w.Code, ShouldEqual, http.StatusForbidden)
			So(decodeError(w)["code"], ShouldEqual, errs.CodeInvalidAccount)
		})

		Convey("upstream failures hide their cause", func() {
			f.deps.err = errs.Wrap("test", errs.ErrUpstream, errs.CodeUnknown, context.DeadlineExceeded)
			w := f.do(http.MethodGet, "/api/user/connect/stripe-account?stripeid=acct_1", "", "user-1", false)
			So(w.Code, ShouldEqual, http.StatusBadGateway)
			body := decodeError(w)
			So(body["code"], ShouldEqual, errs.CodeUnknown)
			So(body["message"], ShouldNotContainSubstring, "deadline")
		})

		Convey("client errors show a caller message, not the cause", func() {
			f.deps.err = errs.Wrap("service.get_stripe_account", errs.ErrInvalid, errs.FieldCode("company.tax_id"),
				fmt.Errorf("stripe: tax id rejected (request req_123)"))
			w := f.do(http.MethodGet, "/api/user/connect/stripe-account?stripeid=acct_1", "", "user-1", false)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			body := decodeError(w)
			So(body["code"], ShouldEqual, "invalid-company_tax_id")
			So(body["message"], ShouldEqual, "invalid value for company_tax_id")
			So(body["message"], ShouldNotContainSubstring, "service.")
			So(body["message"], ShouldNotContainSubstring, "req_123")
		})

		Convey("messages written for callers pass through", func() {
			f.deps.err = errs.Newf("service.submit_stripe_account", errs.ErrInvalid, errs.CodeInvalidRegistration, "missing company.tax_id")
			w := f.do(http.MethodGet, "/api/user/connect/stripe-account?stripeid=acct_1", "", "user-1", false)
			So(decodeError(w)["message"], ShouldEqual, "missing company.tax_id")

			f.deps.err = errs.New("service.get_payout", errs.ErrNotFound, errs.CodeInvalidPayoutID)
			w = f.do(http.MethodGet, "/api/user/connect/stripe-account?stripeid=acct_1", "", "user-1", false)
			So(w.Code, ShouldEqual, http.StatusNotFound)
			So(decodeError(w)["message"], ShouldEqual, "unknown payout")
		})

		Convey("lists are paged", func() {
			w := f.do(http.MethodGet, "/api/user/connect/stripe-accounts?offset=5&limit=20", "", "user-1", false)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(f.deps.page, ShouldResemble, model.Page{Offset: 5, Limit: 20})
			var list []model.StripeAccount
			So(json.Unmarshal(w.Body.Bytes(), &list), ShouldBeNil)
			So(len(list), ShouldEqual, 2)

			w = f.do(http.MethodGet, "/api/user/connect/stripe-accounts?limit=500", "", "user-1", false)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(decodeError(w)["code"], ShouldEqual, "invalid-limit")
		})

		Convey("registration values are sent as strings", func() {
			w := f.do(http.MethodPatch, "/api/user/connect/update-company-registration?stripeid=acct_1",
				`{"name":"Acme","address.postal_code":10115,"tax_id":null}`, "user-1", false)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(f.deps.fields, ShouldResemble, map[string]string{"name": "Acme", "address.postal_code": "10115", "tax_id": ""})
		})

		submit := func(f fixture) {
			r := httptest.NewRequest(http.MethodPatch, "/api/user/connect/submit-stripe-account?stripeid=acct_1", nil)
			token, err := f.authn.Issue("user-1", false, time.Hour)
			So(err, ShouldBeNil)
			r.Header.Set("Authorization", "Bearer "+token)
			r.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
			w := httptest.NewRecorder()
			f.mux.ServeHTTP(w, r)
			So(w.Code, ShouldEqual, http.StatusOK)
		}

		Convey("submission records the peer address when no proxy is trusted", func() {
			submit(f)
			So(f.deps.ip, ShouldEqual, "192.0.2.1")
		})

		Convey("submission follows X-Forwarded-For through trusted proxies", func() {
			proxied := newFixture(api.WithTrustedProxies([]netip.Prefix{
				netip.MustParsePrefix("192.0.2.1/32"),
				netip.MustParsePrefix("10.0.0.0/8"),
			}))
			submit(proxied)
			So(proxied.deps.ip, ShouldEqual, "203.0.113.7")
		})

		Convey("the representative is read by stripeid", func() {
			w := f.do(http.MethodGet, "/api/user/connect/company-representative?stripeid=acct_1", "", "user-1", false)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(f.deps.stripeID, ShouldEqual, "acct_1")
		})
	})
}

func TestAdminRoutes(t *testing.T) {
	Convey("Given an administrator", t, func() {
		f := newFixture()

		Convey("the rejection reason comes from the body", func() {
			w := f.do(http.MethodPatch, "/api/administrator/connect/set-stripe-account-rejected?stripeid=acct_1", `{"reason":"fraud"}`, "admin-1", true)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(f.deps.reason, ShouldEqual, "fraud")
		})

		Convey("or from the query", func() {
			w := f.do(http.MethodPatch, "/api/administrator/connect/set-stripe-account-rejected?stripeid=acct_1&reason=other", "", "admin-1", true)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(f.deps.reason, ShouldEqual, "other")
		})
	})
}

func TestWebhookRoute(t *testing.T) {
	Convey("Given the webhook endpoint", t, func() {
		f := newFixture()
		post := func(body string, signed bool) *httptest.ResponseRecorder {
			r := httptest.NewRequest(http.MethodPost, "/webhooks/connect/index-connect-data", strings.NewReader(body))
			if signed {
				r.Header.Set("Stripe-Signature", "t=1,v1=abc")
			}
			w := httptest.NewRecorder()
			f.mux.ServeHTTP(w, r)
			return w
		}

		Convey("unsigned requests are refused", func() {
			w := post(`{}`, false)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(decodeError(w)["code"], ShouldEqual, errs.CodeInvalidSignature)
		})

		Convey("accepted events answer 202", func() {
			f.deps.ingest = service.IngestAccepted
			w := post(`{}`, true)
			So(w.Code, ShouldEqual, http.StatusAccepted)
			So(w.Body.String(), ShouldContainSubstring, `"status":"accepted"`)
		})

		Convey("duplicates answer 200", func() {
			f.deps.ingest = service.IngestDuplicate
			w := post(`{}`, true)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"duplicate":true`)
		})

		Convey("a full queue answers 429", func() {
			f.deps.err = errs.New("test", errs.ErrBackpressure, errs.CodeBackpressure)
			w := post(`{}`, true)
			So(w.Code, ShouldEqual, http.StatusTooManyRequests)
			So(decodeError(w)["code"], ShouldEqual, errs.CodeBackpressure)
		})

		Convey("bodies over 64 KiB are refused", func() {
			w := post(strings.Repeat("x", 65<<10), true)
			So(w.Code, ShouldEqual, http.StatusRequestEntityTooLarge)
		})
	})
}
