package stripeapi

import (
	"context"
	"time"

	"github.com/stripe/stripe-go/v81"

	"github.com/okian/stripe-connect/internal/domain/errs"
	"github.com/okian/stripe-connect/internal/domain/model"
)

// GetPayout fetches a payout made by a connected account.
func (c *Client) GetPayout(ctx context.Context, stripeID, payoutID string) (model.Payout, error) {
	const op = "stripe.get_payout"
	start := time.Now()
	params := &stripe.PayoutParams{}
	params.Context = ctx
	params.SetStripeAccount(stripeID)
	p, err := c.api.Payouts.Get(payoutID, params)
	c.observe(ctx, "payout.get", start, err)
	if err != nil {
		return model.Payout{}, mapError(op, errs.CodeInvalidPayoutID, err)
	}
	return toPayout(stripeID, p), nil
}

// ListPayouts returns up to limit of an account's most recent payouts.
func (c *Client) ListPayouts(ctx context.Context, stripeID string, limit int) ([]model.Payout, error) {
	const op = "stripe.list_payouts"
	start := time.Now()
	params := &stripe.PayoutListParams{}
	params.Context = ctx
	params.SetStripeAccount(stripeID)
	params.Limit = stripe.Int64(int64(limit))
	out := []model.Payout{}
	it := c.api.Payouts.List(params)
	for len(out) < limit && it.Next() {
		out = append(out, toPayout(stripeID, it.Payout()))
	}
	err := it.Err()
	c.observe(ctx, "payout.list", start, err)
	if err != nil {
		return nil, mapError(op, errs.CodeInvalidStripeID, err)
	}
	return out, nil
}
