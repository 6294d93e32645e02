// Package site renders the account pages of signed-in users.
package site

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strings"

	"github.com/okian/stripe-connect/internal/adapters/http/api"
	"github.com/okian/stripe-connect/internal/adapters/http/auth"
	"github.com/okian/stripe-connect/internal/domain/errs"
	"github.com/okian/stripe-connect/internal/domain/model"
	"github.com/okian/stripe-connect/internal/domain/registration"
	"github.com/okian/stripe-connect/pkg/logger"
)

// Error constants
var (
	ErrTemplate = errors.New("site template parse failed")
	ErrRender   = errors.New("site render failed")
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

// recentPayouts is how many payouts the detail page shows.
const recentPayouts = 10

// Dependencies are the reads the pages need.
type Dependencies interface {
	ListStripeAccounts(ctx context.Context, accountID string, page model.Page) ([]model.StripeAccount, error)
	GetStripeAccount(ctx context.Context, accountID, stripeID string) (model.StripeAccount, error)
	ListPersons(ctx context.Context, accountID, stripeID, role string, page model.Page) ([]model.Person, error)
	GetRepresentative(ctx context.Context, accountID, stripeID string) (model.Person, error)
	RecentPayouts(ctx context.Context, accountID, stripeID string, limit int) ([]model.Payout, error)
}

// Pages serves the HTML views.
type Pages struct {
	deps           Dependencies
	auth           *auth.Authenticator
	tmpl           *template.Template
	logger         logger.Logger
	publishableKey string
}

// Option configures Pages.
type Option func(*Pages)

// WithLogger sets the render error logger.
func WithLogger(l logger.Logger) Option {
	return func(p *Pages) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithPublishableKey exposes the Stripe publishable key to the templates.
func WithPublishableKey(key string) Option {
	return func(p *Pages) { p.publishableKey = key }
}

// New parses the embedded templates.
func New(deps Dependencies, authn *auth.Authenticator, opts ...Option) (*Pages, error) {
	tmpl, err := template.New("site").Funcs(template.FuncMap{
		"join":  strings.Join,
		"label": label,
	}).ParseFS(templatesFS, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTemplate, err)
	}
	p := &Pages{deps: deps, auth: authn, tmpl: tmpl}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = logger.Get().Named("site")
	}
	return p, nil
}

// Register attaches the page routes to mux.
func (p *Pages) Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}
	mux.Handle("GET /account/connect", api.MetricsMiddleware(p.HandleAccounts, "page_accounts"))
	mux.Handle("GET /account/connect/stripe-account", api.MetricsMiddleware(p.HandleAccount, "page_account"))
}

type accountsView struct {
	AccountID string
	Accounts  []model.StripeAccount
}

type accountView struct {
	AccountID      string
	PublishableKey string
	Account        model.StripeAccount
	Representative *model.Person
	Owners         []model.Person
	Directors      []model.Person
	Payouts        []model.Payout
}

type errorView struct {
	Status int
	Code   string
}

// HandleAccounts renders GET /account/connect.
func (p *Pages) HandleAccounts(w http.ResponseWriter, r *http.Request) {
	id, ok := p.identify(w, r)
	if !ok {
		return
	}
	list, err := p.deps.ListStripeAccounts(r.Context(), id.AccountID, model.Page{All: true})
	if err != nil {
		p.fail(w, r, err)
		return
	}
	p.render(w, r, http.StatusOK, "accounts", accountsView{AccountID: id.AccountID, Accounts: list})
}

// HandleAccount renders GET /account/connect/stripe-account?stripeid=.
func (p *Pages) HandleAccount(w http.ResponseWriter, r *http.Request) {
	const op = "site.account"
	id, ok := p.identify(w, r)
	if !ok {
		return
	}
	stripeID := strings.TrimSpace(r.URL.Query().Get("stripeid"))
	if stripeID == "" {
		p.fail(w, r, errs.Invalid(op, "stripeid"))
		return
	}
	ctx := r.Context()
	a, err := p.deps.GetStripeAccount(ctx, id.AccountID, stripeID)
	if err != nil {
		p.fail(w, r, err)
		return
	}
	view := accountView{AccountID: id.AccountID, PublishableKey: p.publishableKey, Account: a}

	if a.BusinessType == registration.BusinessCompany {
		all := model.Page{All: true}
		if view.Owners, err = p.deps.ListPersons(ctx, id.AccountID, stripeID, registration.RoleOwner, all); err != nil {
			p.fail(w, r, err)
			return
		}
		if view.Directors, err = p.deps.ListPersons(ctx, id.AccountID, stripeID, registration.RoleDirector, all); err != nil {
			p.fail(w, r, err)
			return
		}
		rep, err := p.deps.GetRepresentative(ctx, id.AccountID, stripeID)
		switch {
		case err == nil:
			view.Representative = &rep
		case !errors.Is(err, errs.ErrNotFound):
			p.fail(w, r, err)
			return
		}
	}
	if view.Payouts, err = p.deps.RecentPayouts(ctx, id.AccountID, stripeID, recentPayouts); err != nil {
		p.fail(w, r, err)
		return
	}
	p.render(w, r, http.StatusOK, "account", view)
}

func (p *Pages) identify(w http.ResponseWriter, r *http.Request) (auth.Identity, bool) {
	id, err := p.auth.FromRequest(r)
	if err != nil {
		p.render(w, r, http.StatusUnauthorized, "error", errorView{Status: http.StatusUnauthorized, Code: errs.CodeInvalidAccount})
		return auth.Identity{}, false
	}
	return id, true
}

func (p *Pages) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := api.StatusOf(err)
	if status >= http.StatusInternalServerError {
		p.logger.Error(r.Context(), "page failed", logger.String("path", r.URL.Path), logger.Error(err))
	}
	p.render(w, r, status, "error", errorView{Status: status, Code: errs.CodeOf(err)})
}

// render executes into a buffer so a template error never leaves a half page.
func (p *Pages) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	var buf bytes.Buffer
	if err := p.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		p.logger.Error(r.Context(), "render failed", logger.String("template", name), logger.Error(fmt.Errorf("%w: %v", ErrRender, err)))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// label turns an onboarding state into a heading: "registration" -> "Registration".
func label(s string) string {
	if s == "" {
		return ""
	}
	return strings.ToUpper(s[:1]) + strings.ReplaceAll(s[1:], "_", " ")
}
