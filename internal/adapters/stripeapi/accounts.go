package stripeapi

import (
	"context"
	"sort"
	"time"

	"github.com/stripe/stripe-go/v81"

	"github.com/okian/stripe-connect/internal/domain/errs"
	"github.com/okian/stripe-connect/internal/domain/model"
	"github.com/okian/stripe-connect/internal/domain/registration"
)

// Update is a set of changes to an account or person. Fields are dotted
// paths (company.address.city) and are sent as form keys; an empty
// Metadata value deletes that key.
type Update struct {
	Fields   map[string]string
	Metadata map[string]string
}

func (u Update) apply(p *stripe.Params) {
	keys := make([]string, 0, len(u.Fields))
	for k := range u.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		p.AddExtra(registration.FormKey(k), u.Fields[k])
	}
	for k, v := range u.Metadata {
		p.AddMetadata(k, v)
	}
}

// CreateAccount creates a custom account owned by accountID with card
// payments and transfers requested.
func (c *Client) CreateAccount(ctx context.Context, accountID, businessType, country string) (model.StripeAccount, error) {
	const op = "stripe.create_account"
	start := time.Now()
	params := &stripe.AccountParams{
		Type:         stripe.String(string(stripe.AccountTypeCustom)),
		Country:      stripe.String(country),
		BusinessType: stripe.String(businessType),
		Capabilities: &stripe.AccountCapabilitiesParams{
			CardPayments: &stripe.AccountCapabilitiesCardPaymentsParams{Requested: stripe.Bool(true)},
			Transfers:    &stripe.AccountCapabilitiesTransfersParams{Requested: stripe.Bool(true)},
		},
	}
	write(ctx, &params.Params)
	params.AddMetadata(MetaAccountID, accountID)
	a, err := c.api.Accounts.New(params)
	c.observe(ctx, "account.create", start, err)
	if err != nil {
		return model.StripeAccount{}, mapError(op, errs.CodeInvalidStripeAccount, err)
	}
	return toAccount(a), nil
}

// GetAccount fetches an account.
func (c *Client) GetAccount(ctx context.Context, stripeID string) (model.StripeAccount, error) {
	const op = "stripe.get_account"
	start := time.Now()
	params := &stripe.AccountParams{}
	params.Context = ctx
	a, err := c.api.Accounts.GetByID(stripeID, params)
	c.observe(ctx, "account.get", start, err)
	if err != nil {
		return model.StripeAccount{}, mapError(op, errs.CodeInvalidStripeID, err)
	}
	return toAccount(a), nil
}

// UpdateAccount applies u to an account.
func (c *Client) UpdateAccount(ctx context.Context, stripeID string, u Update) (model.StripeAccount, error) {
	const op = "stripe.update_account"
	start := time.Now()
	params := &stripe.AccountParams{}
	write(ctx, &params.Params)
	u.apply(&params.Params)
	a, err := c.api.Accounts.Update(stripeID, params)
	c.observe(ctx, "account.update", start, err)
	if err != nil {
		return model.StripeAccount{}, mapError(op, errs.CodeInvalidStripeID, err)
	}
	return toAccount(a), nil
}

// DeleteAccount deletes an account at Stripe.
func (c *Client) DeleteAccount(ctx context.Context, stripeID string) error {
	const op = "stripe.delete_account"
	start := time.Now()
	params := &stripe.AccountParams{}
	write(ctx, &params.Params)
	_, err := c.api.Accounts.Del(stripeID, params)
	c.observe(ctx, "account.delete", start, err)
	return mapError(op, errs.CodeInvalidStripeID, err)
}

// RejectAccount rejects an account for reason (fraud, terms_of_service, other).
func (c *Client) RejectAccount(ctx context.Context, stripeID, reason string) (model.StripeAccount, error) {
	const op = "stripe.reject_account"
	start := time.Now()
	params := &stripe.AccountRejectParams{Reason: stripe.String(reason)}
	write(ctx, &params.Params)
	a, err := c.api.Accounts.Reject(stripeID, params)
	c.observe(ctx, "account.reject", start, err)
	if err != nil {
		return model.StripeAccount{}, mapError(op, errs.CodeInvalidStripeID, err)
	}
	return toAccount(a), nil
}
