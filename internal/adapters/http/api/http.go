// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"

	"github.com/okian/stripe-connect/internal/adapters/http/auth"
	service "github.com/okian/stripe-connect/internal/app"
	"github.com/okian/stripe-connect/internal/domain/errs"
	"github.com/okian/stripe-connect/internal/domain/model"
	"github.com/okian/stripe-connect/pkg/logger"
)

// Dependencies required by HTTP handlers.
type Dependencies interface {
	CreateStripeAccount(ctx context.Context, accountID, businessType, country string) (model.StripeAccount, error)
	ListStripeAccounts(ctx context.Context, accountID string, page model.Page) ([]model.StripeAccount, error)
	CountStripeAccounts(ctx context.Context, accountID string) (int, error)
	GetStripeAccount(ctx context.Context, accountID, stripeID string) (model.StripeAccount, error)
	DeleteStripeAccount(ctx context.Context, accountID, stripeID string) error
	UpdateCompanyRegistration(ctx context.Context, accountID, stripeID string, fields map[string]string) (model.StripeAccount, error)
	UpdateIndividualRegistration(ctx context.Context, accountID, stripeID string, fields map[string]string) (model.StripeAccount, error)
	UpdatePaymentInformation(ctx context.Context, accountID, stripeID string, info service.PaymentInformation) (model.StripeAccount, error)
	SubmitStripeAccount(ctx context.Context, accountID, stripeID, ip, userAgent string) (model.StripeAccount, error)

	CreatePerson(ctx context.Context, accountID, stripeID, role string, fields map[string]string) (model.Person, error)
	UpdatePerson(ctx context.Context, accountID, personID, role string, fields map[string]string) (model.Person, error)
	DeletePerson(ctx context.Context, accountID, personID, role string) error
	GetPerson(ctx context.Context, accountID, personID, role string) (model.Person, error)
	ListPersons(ctx context.Context, accountID, stripeID, role string, page model.Page) ([]model.Person, error)
	CountPersons(ctx context.Context, accountID, stripeID, role string) (int, error)
	GetRepresentative(ctx context.Context, accountID, stripeID string) (model.Person, error)
	SubmitBeneficialOwners(ctx context.Context, accountID, stripeID string) (model.StripeAccount, error)
	SubmitCompanyDirectors(ctx context.Context, accountID, stripeID string) (model.StripeAccount, error)

	ListPayouts(ctx context.Context, accountID, stripeID string, page model.Page) ([]model.Payout, error)
	CountPayouts(ctx context.Context, accountID, stripeID string) (int, error)
	GetPayout(ctx context.Context, accountID, payoutID string) (model.Payout, error)
	GetCountrySpec(ctx context.Context, country string) (model.CountrySpec, error)
	ListCountrySpecs(ctx context.Context) ([]model.CountrySpec, error)

	ListAllStripeAccounts(ctx context.Context, page model.Page) ([]model.StripeAccount, error)
	CountAllStripeAccounts(ctx context.Context) (int, error)
	AdminGetStripeAccount(ctx context.Context, stripeID string) (model.StripeAccount, error)
	ListAllPayouts(ctx context.Context, page model.Page) ([]model.Payout, error)
	CountAllPayouts(ctx context.Context) (int, error)
	SetStripeAccountRejected(ctx context.Context, stripeID, reason string) (model.StripeAccount, error)
	AdminDeleteStripeAccount(ctx context.Context, stripeID string) error

	IngestWebhook(ctx context.Context, payload []byte, signature string) (string, error)
	Stats(ctx context.Context) map[string]any
}

var _ Dependencies = (*service.Service)(nil)

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler   *HealthHandler
	accountsHandler *AccountsHandler
	personsHandler  *PersonsHandler
	payoutsHandler  *PayoutsHandler
	adminHandler    *AdminHandler
	webhookHandler  *WebhookHandler

	auth   *auth.Authenticator
	logger logger.Logger
}

// Option configures a Server.
type Option func(*serverOptions)

type serverOptions struct {
	pageSize    int
	maxPageSize int
	trusted     []netip.Prefix
	logger      logger.Logger
}

// WithPageSize sets the default and the largest accepted list limit.
func WithPageSize(def, maxLimit int) Option {
	return func(o *serverOptions) {
		if def > 0 {
			o.pageSize = def
		}
		if maxLimit >= o.pageSize {
			o.maxPageSize = maxLimit
		}
	}
}

// WithTrustedProxies lists the peers whose X-Forwarded-For header is
// believed when recording the client address.
func WithTrustedProxies(prefixes []netip.Prefix) Option {
	return func(o *serverOptions) {
		o.trusted = prefixes
	}
}

// WithLogger sets the request logger.
func WithLogger(l logger.Logger) Option {
	return func(o *serverOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, authn *auth.Authenticator, opts ...Option) *Server {
	o := serverOptions{pageSize: 10, maxPageSize: 100}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logger.Get().Named("http")
	}
	base := handler{deps: deps, pageSize: o.pageSize, maxPageSize: o.maxPageSize, trusted: o.trusted, logger: o.logger}
	return &Server{
		healthHandler:   NewHealthHandler(deps),
		accountsHandler: &AccountsHandler{base},
		personsHandler:  &PersonsHandler{base},
		payoutsHandler:  &PayoutsHandler{base},
		adminHandler:    &AdminHandler{base},
		webhookHandler:  &WebhookHandler{base},
		auth:            authn,
		logger:          o.logger,
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}
	const user = "/api/user/connect/"
	const admin = "/api/administrator/connect/"

	s.handle(mux, "GET /healthz", "healthz", s.healthHandler.HandleHealth)
	mux.Handle("GET /metrics", MetricsMiddleware(s.healthHandler.HandleMetrics, "metrics"))
	s.handle(mux, "POST /webhooks/connect/index-connect-data", "webhook", s.webhookHandler.HandleIndexConnectData)

	a := s.accountsHandler
	s.user(mux, "POST "+user+"create-stripe-account", a.HandleCreate)
	s.user(mux, "GET "+user+"stripe-accounts", a.HandleList)
	s.user(mux, "GET "+user+"stripe-accounts-count", a.HandleCount)
	s.user(mux, "GET "+user+"stripe-account", a.HandleGet)
	s.user(mux, "DELETE "+user+"delete-stripe-account", a.HandleDelete)
	s.user(mux, "PATCH "+user+"update-company-registration", a.HandleUpdateCompany)
	s.user(mux, "PATCH "+user+"update-individual-registration", a.HandleUpdateIndividual)
	s.user(mux, "PATCH "+user+"update-payment-information", a.HandleUpdatePaymentInformation)
	s.user(mux, "PATCH "+user+"submit-stripe-account", a.HandleSubmit)
	s.user(mux, "GET "+user+"country-spec", a.HandleCountrySpec)
	s.user(mux, "GET "+user+"country-specs", a.HandleCountrySpecs)

	p := s.personsHandler
	for _, r := range personRoutes {
		role := r.role
		s.user(mux, "POST "+user+"create-"+r.name, p.create(role))
		s.user(mux, "PATCH "+user+"update-"+r.name, p.update(role))
		s.user(mux, "GET "+user+r.name, p.get(role))
		if r.plural != "" {
			s.user(mux, "DELETE "+user+"delete-"+r.name, p.delete(role))
			s.user(mux, "GET "+user+r.plural, p.list(role))
			s.user(mux, "GET "+user+r.plural+"-count", p.count(role))
			s.user(mux, "PATCH "+user+"submit-"+r.plural, p.submit(role))
		}
	}

	o := s.payoutsHandler
	s.user(mux, "GET "+user+"payouts", o.HandleList)
	s.user(mux, "GET "+user+"payouts-count", o.HandleCount)
	s.user(mux, "GET "+user+"payout", o.HandleGet)

	ad := s.adminHandler
	s.admin(mux, "GET "+admin+"stripe-accounts", ad.HandleListAccounts)
	s.admin(mux, "GET "+admin+"stripe-accounts-count", ad.HandleCountAccounts)
	s.admin(mux, "GET "+admin+"stripe-account", ad.HandleGetAccount)
	s.admin(mux, "GET "+admin+"payouts", ad.HandleListPayouts)
	s.admin(mux, "GET "+admin+"payouts-count", ad.HandleCountPayouts)
	s.admin(mux, "PATCH "+admin+"set-stripe-account-rejected", ad.HandleReject)
	s.admin(mux, "DELETE "+admin+"delete-stripe-account", ad.HandleDelete)
}

// endpoint names a route for metrics: "GET /api/user/connect/payout" -> "payout".
func endpoint(pattern string) string {
	_, path, _ := strings.Cut(pattern, " ")
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[i+1:]
	}
	return path
}

func (s *Server) handle(mux *http.ServeMux, pattern, name string, h http.HandlerFunc) {
	mux.Handle(pattern, MetricsMiddleware(h, name))
}

func (s *Server) user(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	s.handle(mux, pattern, "user_"+endpoint(pattern), RequireIdentity(s.auth, false, h))
}

func (s *Server) admin(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	s.handle(mux, pattern, "admin_"+endpoint(pattern), RequireIdentity(s.auth, true, h))
}

// handler holds what every route handler needs.
type handler struct {
	deps        Dependencies
	pageSize    int
	maxPageSize int
	trusted     []netip.Prefix
	logger      logger.Logger
}

func (h handler) page(r *http.Request) (model.Page, error) {
	q := r.URL.Query()
	return model.ParsePage(q.Get("offset"), q.Get("limit"), q.Get("all"), h.pageSize, h.maxPageSize)
}

// caller returns the account id authenticated by RequireIdentity.
func caller(r *http.Request) string {
	id, _ := auth.FromContext(r.Context())
	return id.AccountID
}

// query returns a required query parameter, or an invalid-<name> error.
func query(op string, r *http.Request, name string) (string, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return "", errs.Invalid(op, name)
	}
	return v, nil
}

const maxBodyBytes = 1 << 20

// decode reads a JSON body into v.
func decode(op string, w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return errs.Wrap(op, errs.ErrInvalid, errs.FieldCode("body"), err)
	}
	return nil
}

// decodeFields reads a flat JSON object of field paths. Numbers and booleans
// are accepted and sent to Stripe as their string form; null clears a field.
func decodeFields(op string, w http.ResponseWriter, r *http.Request) (map[string]string, error) {
	var raw map[string]any
	if err := decode(op, w, r, &raw); err != nil {
		return nil, err
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		switch t := v.(type) {
		case nil:
			out[k] = ""
		case string:
			out[k] = t
		case bool:
			out[k] = strconv.FormatBool(t)
		case float64:
			out[k] = strconv.FormatFloat(t, 'f', -1, 64)
		default:
			return nil, errs.Invalid(op, k)
		}
	}
	return out, nil
}

// clientIP is the peer address. When the peer is a trusted proxy the
// X-Forwarded-For chain is walked from the right and the first hop that is
// not itself a trusted proxy wins.
func (h handler) clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if !h.isTrusted(host) {
		return host
	}
	hops := strings.Split(r.Header.Get("X-Forwarded-For"), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if hop == "" {
			continue
		}
		if !h.isTrusted(hop) {
			return hop
		}
		host = hop
	}
	return host
}

func (h handler) isTrusted(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range h.trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

type statusResponse struct {
	Status string `json:"status"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusOf(err)
	fields := []logger.Field{
		logger.String("path", r.URL.Path),
		logger.String("code", errs.CodeOf(err)),
		logger.Int("status", status),
		logger.Error(err),
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error(r.Context(), "request failed", fields...)
	} else {
		h.logger.Debug(r.Context(), "request rejected", fields...)
	}
	writeError(w, status, errs.CodeOf(err), err)
}

// writeError answers with code and a message safe to show the caller. The
// cause of err stays in the logs.
func writeError(w http.ResponseWriter, status int, code string, err error) {
	writeJSON(w, status, errorResponse{Code: code, Message: publicMessage(status, code, err)})
}

func (h handler) ok(w http.ResponseWriter, v any) {
	writeJSON(w, http.StatusOK, v)
}

func (h handler) count(w http.ResponseWriter, r *http.Request, n int, err error) {
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "%d\n", n)
}
