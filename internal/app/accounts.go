package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/okian/stripe-connect/internal/adapters/stripeapi"
	"github.com/okian/stripe-connect/internal/domain/errs"
	"github.com/okian/stripe-connect/internal/domain/metadata"
	"github.com/okian/stripe-connect/internal/domain/model"
	"github.com/okian/stripe-connect/internal/domain/registration"
	"github.com/okian/stripe-connect/pkg/logger"
)

// CreateStripeAccount creates a custom account of businessType in country
// for accountID.
func (s *Service) CreateStripeAccount(ctx context.Context, accountID, businessType, country string) (model.StripeAccount, error) {
	const op = "service.create_stripe_account"
	if accountID == "" {
		return model.StripeAccount{}, errs.New(op, errs.ErrUnauthenticated, errs.CodeInvalidAccount)
	}
	if !registration.ValidBusinessType(businessType) {
		return model.StripeAccount{}, errs.Invalid(op, "business_type")
	}
	country = strings.ToUpper(strings.TrimSpace(country))
	if len(country) != 2 {
		return model.StripeAccount{}, errs.Invalid(op, "country")
	}
	if _, err := s.stripe.GetCountrySpec(ctx, country); err != nil {
		if errors.Is(err, errs.ErrNotFound) || errors.Is(err, errs.ErrInvalid) {
			return model.StripeAccount{}, errs.Wrap(op, errs.ErrInvalid, errs.FieldCode("country"), err)
		}
		return model.StripeAccount{}, err
	}

	a, err := s.stripe.CreateAccount(ctx, accountID, businessType, country)
	if err != nil {
		return model.StripeAccount{}, err
	}
	if err := s.index(ctx, op, accountID, a.ID); err != nil {
		return model.StripeAccount{}, err
	}
	s.logger.Info(ctx, "stripe account created",
		logger.String("accountid", accountID),
		logger.String("stripeid", a.ID),
		logger.String("business_type", businessType),
		logger.String("country", country),
	)
	l, err := s.load(ctx, op, a.ID)
	if err != nil {
		return model.StripeAccount{}, err
	}
	return l.account, nil
}

// ListStripeAccounts returns a page of accountID's connected accounts, newest first.
func (s *Service) ListStripeAccounts(ctx context.Context, accountID string, page model.Page) ([]model.StripeAccount, error) {
	const op = "service.list_stripe_accounts"
	if accountID == "" {
		return nil, errs.New(op, errs.ErrUnauthenticated, errs.CodeInvalidAccount)
	}
	return s.accounts(ctx, op, accountStripeAccountsPath(accountID), page)
}

// CountStripeAccounts counts accountID's connected accounts.
func (s *Service) CountStripeAccounts(ctx context.Context, accountID string) (int, error) {
	const op = "service.count_stripe_accounts"
	if accountID == "" {
		return 0, errs.New(op, errs.ErrUnauthenticated, errs.CodeInvalidAccount)
	}
	return s.count(ctx, op, accountStripeAccountsPath(accountID))
}

func (s *Service) accounts(ctx context.Context, op, path string, page model.Page) ([]model.StripeAccount, error) {
	ids, err := s.window(ctx, op, path, page)
	if err != nil {
		return nil, err
	}
	out := make([]model.StripeAccount, 0, len(ids))
	for _, id := range ids {
		l, err := s.load(ctx, op, id)
		if err != nil {
			return nil, err
		}
		out = append(out, l.account)
	}
	return out, nil
}

// GetStripeAccount returns one of accountID's connected accounts.
func (s *Service) GetStripeAccount(ctx context.Context, accountID, stripeID string) (model.StripeAccount, error) {
	const op = "service.get_stripe_account"
	if err := s.authorize(ctx, op, accountID, stripeID); err != nil {
		return model.StripeAccount{}, err
	}
	l, err := s.load(ctx, op, stripeID)
	if err != nil {
		return model.StripeAccount{}, err
	}
	return l.account, nil
}

// DeleteStripeAccount deletes the account at Stripe and drops its indexes.
func (s *Service) DeleteStripeAccount(ctx context.Context, accountID, stripeID string) error {
	const op = "service.delete_stripe_account"
	if err := s.authorize(ctx, op, accountID, stripeID); err != nil {
		return err
	}
	return s.deleteAccount(ctx, op, accountID, stripeID)
}

func (s *Service) deleteAccount(ctx context.Context, op, owner, stripeID string) error {
	if err := s.stripe.DeleteAccount(ctx, stripeID); err != nil && !errors.Is(err, errs.ErrNotFound) {
		return err
	}
	if err := s.unindex(ctx, op, owner, stripeID); err != nil {
		return err
	}
	s.logger.Info(ctx, "stripe account deleted", logger.String("accountid", owner), logger.String("stripeid", stripeID))
	return nil
}

// UpdateCompanyRegistration stages company KYC fields on a company account.
func (s *Service) UpdateCompanyRegistration(ctx context.Context, accountID, stripeID string, fields map[string]string) (model.StripeAccount, error) {
	return s.updateRegistration(ctx, "service.update_company_registration", registration.BusinessCompany, accountID, stripeID, fields)
}

// UpdateIndividualRegistration stages individual KYC fields on an individual account.
func (s *Service) UpdateIndividualRegistration(ctx context.Context, accountID, stripeID string, fields map[string]string) (model.StripeAccount, error) {
	return s.updateRegistration(ctx, "service.update_individual_registration", registration.BusinessIndividual, accountID, stripeID, fields)
}

func (s *Service) updateRegistration(ctx context.Context, op, businessType, accountID, stripeID string, fields map[string]string) (model.StripeAccount, error) {
	if err := s.authorize(ctx, op, accountID, stripeID); err != nil {
		return model.StripeAccount{}, err
	}
	l, err := s.load(ctx, op, stripeID)
	if err != nil {
		return model.StripeAccount{}, err
	}
	if l.account.BusinessType != businessType || l.account.Submitted {
		return model.StripeAccount{}, errs.New(op, errs.ErrInvalid, errs.CodeInvalidStripeAccount)
	}
	if len(fields) == 0 {
		return model.StripeAccount{}, errs.New(op, errs.ErrInvalid, errs.CodeInvalidRegistration)
	}
	changes, err := registration.ValidateUpdate(op, businessType, l.req, fields)
	if err != nil {
		return model.StripeAccount{}, err
	}

	staged := l.staged
	for k, v := range changes {
		if v == "" {
			delete(staged, k)
			continue
		}
		staged[k] = v
	}
	md, err := metadata.ReplaceJSON(l.account.Metadata, stripeapi.MetaRegistration, staged)
	if err != nil {
		return model.StripeAccount{}, errs.Wrap(op, errs.ErrInvalid, errs.CodeInvalidRegistration, err)
	}
	if _, err := s.stripe.UpdateAccount(ctx, stripeID, stripeapi.Update{Metadata: md}); err != nil {
		return model.StripeAccount{}, err
	}
	s.logger.Debug(ctx, "registration staged",
		logger.String("stripeid", stripeID),
		logger.Int("changed", len(changes)),
		logger.Int("staged", len(staged)),
	)
	l, err = s.load(ctx, op, stripeID)
	if err != nil {
		return model.StripeAccount{}, err
	}
	return l.account, nil
}

// PaymentInformation is the bank account paid out to.
type PaymentInformation struct {
	Currency          string `json:"currency" validate:"required,iso4217"`
	Country           string `json:"country" validate:"required,iso3166_1_alpha2"`
	AccountHolderName string `json:"account_holder_name" validate:"required,max=200"`
	AccountHolderType string `json:"account_holder_type" validate:"required,oneof=individual company"`
	IBAN              string `json:"iban" validate:"required_without=AccountNumber,omitempty,alphanum,min=15,max=34"`
	AccountNumber     string `json:"account_number" validate:"required_without=IBAN,omitempty,alphanum,max=34"`
	RoutingNumber     string `json:"routing_number" validate:"omitempty,max=20"`
}

// routingCountries require a routing_number alongside the account number.
var routingCountries = map[string]bool{
	"AU": true, "BR": true, "CA": true, "HK": true, "IN": true, "JP": true,
	"MX": true, "NZ": true, "SG": true, "US": true,
}

func (p *PaymentInformation) normalize() {
	p.Currency = strings.ToUpper(strings.TrimSpace(p.Currency))
	p.Country = strings.ToUpper(strings.TrimSpace(p.Country))
	p.AccountHolderName = strings.TrimSpace(p.AccountHolderName)
	p.AccountHolderType = strings.TrimSpace(p.AccountHolderType)
	p.IBAN = strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(p.IBAN), " ", ""))
	p.AccountNumber = strings.ReplaceAll(strings.TrimSpace(p.AccountNumber), " ", "")
	p.RoutingNumber = strings.ReplaceAll(strings.TrimSpace(p.RoutingNumber), " ", "")
}

func (p PaymentInformation) number() string {
	if p.IBAN != "" {
		return p.IBAN
	}
	return p.AccountNumber
}

func (p PaymentInformation) last4() string {
	n := p.number()
	if len(n) <= 4 {
		return n
	}
	return n[len(n)-4:]
}

// UpdatePaymentInformation attaches a bank account to the connected account.
func (s *Service) UpdatePaymentInformation(ctx context.Context, accountID, stripeID string, info PaymentInformation) (model.StripeAccount, error) {
	const op = "service.update_payment_information"
	if err := s.authorize(ctx, op, accountID, stripeID); err != nil {
		return model.StripeAccount{}, err
	}
	info.normalize()
	if err := validateStruct(op, info); err != nil {
		return model.StripeAccount{}, err
	}
	l, err := s.load(ctx, op, stripeID)
	if err != nil {
		return model.StripeAccount{}, err
	}
	if !l.spec.SupportsCurrency(strings.ToLower(info.Currency), info.Country) {
		return model.StripeAccount{}, errs.Invalid(op, "currency")
	}
	if routingCountries[info.Country] && info.RoutingNumber == "" {
		return model.StripeAccount{}, errs.Invalid(op, "routing_number")
	}

	fields := map[string]string{
		"external_account.object":              "bank_account",
		"external_account.country":             info.Country,
		"external_account.currency":            strings.ToLower(info.Currency),
		"external_account.account_holder_name": info.AccountHolderName,
		"external_account.account_holder_type": info.AccountHolderType,
		"external_account.account_number":      info.number(),
	}
	if info.RoutingNumber != "" {
		fields["external_account.routing_number"] = info.RoutingNumber
	}
	u := stripeapi.Update{
		Fields:   fields,
		Metadata: map[string]string{stripeapi.MetaPaymentInformation: info.last4()},
	}
	if _, err := s.stripe.UpdateAccount(ctx, stripeID, u); err != nil {
		return model.StripeAccount{}, err
	}
	s.logger.Info(ctx, "payment information updated", logger.String("stripeid", stripeID), logger.String("currency", info.Currency))
	l, err = s.load(ctx, op, stripeID)
	if err != nil {
		return model.StripeAccount{}, err
	}
	return l.account, nil
}

// SubmitStripeAccount sends the staged registration to Stripe, accepts the
// terms of service on behalf of the user and forgets the staged data.
func (s *Service) SubmitStripeAccount(ctx context.Context, accountID, stripeID, ip, userAgent string) (model.StripeAccount, error) {
	const op = "service.submit_stripe_account"
	if err := s.authorize(ctx, op, accountID, stripeID); err != nil {
		return model.StripeAccount{}, err
	}
	l, err := s.load(ctx, op, stripeID)
	if err != nil {
		return model.StripeAccount{}, err
	}
	if l.account.Submitted {
		return model.StripeAccount{}, errs.New(op, errs.ErrInvalid, errs.CodeInvalidStripeAccount)
	}
	if !l.account.Progress.Ready() {
		return model.StripeAccount{}, errs.Newf(op, errs.ErrInvalid, errs.CodeInvalidRegistration,
			"missing "+strings.Join(l.account.Progress.Blockers(), ", "))
	}
	if strings.TrimSpace(ip) == "" {
		return model.StripeAccount{}, errs.Invalid(op, "ip")
	}

	fields := make(map[string]string, len(l.staged)+6)
	for k, v := range l.staged {
		fields[k] = v
	}
	fields["tos_acceptance.date"] = strconv.FormatInt(time.Now().Unix(), 10)
	fields["tos_acceptance.ip"] = ip
	if userAgent != "" {
		fields["tos_acceptance.user_agent"] = userAgent
	}
	if l.account.BusinessType == registration.BusinessCompany {
		if l.req.Requires(registration.SectionOwners) {
			fields["company.owners_provided"] = "true"
		}
		if l.req.Requires(registration.SectionDirectors) {
			fields["company.directors_provided"] = "true"
		}
		if l.req.Requires(registration.SectionExecutives) {
			fields["company.executives_provided"] = "true"
		}
	}
	md := metadata.Clear(l.account.Metadata, stripeapi.MetaRegistration)
	md[stripeapi.MetaSubmitted] = strconv.FormatInt(time.Now().Unix(), 10)

	if _, err := s.stripe.UpdateAccount(ctx, stripeID, stripeapi.Update{Fields: fields, Metadata: md}); err != nil {
		return model.StripeAccount{}, err
	}
	s.logger.Info(ctx, "stripe account submitted", logger.String("accountid", accountID), logger.String("stripeid", stripeID))
	l, err = s.load(ctx, op, stripeID)
	if err != nil {
		return model.StripeAccount{}, err
	}
	return l.account, nil
}
