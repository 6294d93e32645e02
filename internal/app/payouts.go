package service

import (
	"context"
	"errors"

	"github.com/okian/stripe-connect/internal/domain/errs"
	"github.com/okian/stripe-connect/internal/domain/model"
)

// ListPayouts returns a page of accountID's indexed payouts, optionally
// restricted to one connected account.
func (s *Service) ListPayouts(ctx context.Context, accountID, stripeID string, page model.Page) ([]model.Payout, error) {
	const op = "service.list_payouts"
	path, err := s.payoutsPath(ctx, op, accountID, stripeID)
	if err != nil {
		return nil, err
	}
	return s.payouts(ctx, op, path, page)
}

// CountPayouts counts accountID's indexed payouts, optionally restricted to
// one connected account.
func (s *Service) CountPayouts(ctx context.Context, accountID, stripeID string) (int, error) {
	const op = "service.count_payouts"
	path, err := s.payoutsPath(ctx, op, accountID, stripeID)
	if err != nil {
		return 0, err
	}
	return s.count(ctx, op, path)
}

// RecentPayouts returns at most limit of stripeID's newest payouts as
// Stripe reports them, indexing any the webhooks have not delivered yet.
func (s *Service) RecentPayouts(ctx context.Context, accountID, stripeID string, limit int) ([]model.Payout, error) {
	const op = "service.recent_payouts"
	if err := s.authorize(ctx, op, accountID, stripeID); err != nil {
		return nil, err
	}
	list, err := s.stripe.ListPayouts(ctx, stripeID, limit)
	if err != nil {
		return nil, err
	}
	// Stripe lists newest first; index oldest first so the newest leads.
	for i := len(list) - 1; i >= 0; i-- {
		if err := s.indexPayout(ctx, op, accountID, stripeID, list[i].ID); err != nil {
			return nil, err
		}
	}
	return list, nil
}

func (s *Service) payoutsPath(ctx context.Context, op, accountID, stripeID string) (string, error) {
	if accountID == "" {
		return "", errs.New(op, errs.ErrUnauthenticated, errs.CodeInvalidAccount)
	}
	if stripeID == "" {
		return accountPayoutsPath(accountID), nil
	}
	if err := s.authorize(ctx, op, accountID, stripeID); err != nil {
		return "", err
	}
	return stripePayoutsPath(stripeID), nil
}

// payouts loads the payouts listed under path. Payouts whose connected
// account is gone are skipped.
func (s *Service) payouts(ctx context.Context, op, path string, page model.Page) ([]model.Payout, error) {
	ids, err := s.window(ctx, op, path, page)
	if err != nil {
		return nil, err
	}
	out := make([]model.Payout, 0, len(ids))
	for _, id := range ids {
		stripeID, err := s.lookup(ctx, op, payoutKey(id))
		if err != nil {
			return nil, err
		}
		if stripeID == "" {
			continue
		}
		p, err := s.stripe.GetPayout(ctx, stripeID, id)
		if errors.Is(err, errs.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// GetPayout returns one of accountID's payouts.
func (s *Service) GetPayout(ctx context.Context, accountID, payoutID string) (model.Payout, error) {
	const op = "service.get_payout"
	if payoutID == "" {
		return model.Payout{}, errs.New(op, errs.ErrInvalid, errs.CodeInvalidPayoutID)
	}
	stripeID, err := s.resolve(ctx, op, accountID, payoutKey(payoutID), errs.CodeInvalidPayoutID)
	if err != nil {
		return model.Payout{}, err
	}
	return s.stripe.GetPayout(ctx, stripeID, payoutID)
}

// GetCountrySpec returns the requirements Stripe publishes for country.
func (s *Service) GetCountrySpec(ctx context.Context, country string) (model.CountrySpec, error) {
	const op = "service.get_country_spec"
	if len(country) != 2 {
		return model.CountrySpec{}, errs.Invalid(op, "country")
	}
	return s.stripe.GetCountrySpec(ctx, country)
}

// ListCountrySpecs returns the specs of every supported country.
func (s *Service) ListCountrySpecs(ctx context.Context) ([]model.CountrySpec, error) {
	return s.stripe.ListCountrySpecs(ctx)
}
