package service

import (
	"context"

	"github.com/okian/stripe-connect/internal/domain/errs"
	"github.com/okian/stripe-connect/internal/domain/model"
	"github.com/okian/stripe-connect/pkg/logger"
)

// Reasons an administrator may reject an account for.
var rejectReasons = map[string]bool{
	"fraud":            true,
	"terms_of_service": true,
	"other":            true,
}

// ListAllStripeAccounts returns a page of every connected account.
func (s *Service) ListAllStripeAccounts(ctx context.Context, page model.Page) ([]model.StripeAccount, error) {
	return s.accounts(ctx, "service.list_all_stripe_accounts", pathStripeAccounts, page)
}

// CountAllStripeAccounts counts every connected account.
func (s *Service) CountAllStripeAccounts(ctx context.Context) (int, error) {
	return s.count(ctx, "service.count_all_stripe_accounts", pathStripeAccounts)
}

// ListAllPayouts returns a page of every indexed payout.
func (s *Service) ListAllPayouts(ctx context.Context, page model.Page) ([]model.Payout, error) {
	return s.payouts(ctx, "service.list_all_payouts", pathPayouts, page)
}

// CountAllPayouts counts every indexed payout.
func (s *Service) CountAllPayouts(ctx context.Context) (int, error) {
	return s.count(ctx, "service.count_all_payouts", pathPayouts)
}

// AdminGetStripeAccount returns any connected account.
func (s *Service) AdminGetStripeAccount(ctx context.Context, stripeID string) (model.StripeAccount, error) {
	const op = "service.admin_get_stripe_account"
	if _, err := s.ownerOf(ctx, op, stripeID); err != nil {
		return model.StripeAccount{}, err
	}
	l, err := s.load(ctx, op, stripeID)
	if err != nil {
		return model.StripeAccount{}, err
	}
	return l.account, nil
}

// SetStripeAccountRejected rejects an account at Stripe.
func (s *Service) SetStripeAccountRejected(ctx context.Context, stripeID, reason string) (model.StripeAccount, error) {
	const op = "service.set_stripe_account_rejected"
	if !rejectReasons[reason] {
		return model.StripeAccount{}, errs.New(op, errs.ErrInvalid, errs.CodeInvalidReason)
	}
	if _, err := s.ownerOf(ctx, op, stripeID); err != nil {
		return model.StripeAccount{}, err
	}
	if _, err := s.stripe.RejectAccount(ctx, stripeID, reason); err != nil {
		return model.StripeAccount{}, err
	}
	s.logger.Warn(ctx, "stripe account rejected", logger.String("stripeid", stripeID), logger.String("reason", reason))
	l, err := s.load(ctx, op, stripeID)
	if err != nil {
		return model.StripeAccount{}, err
	}
	return l.account, nil
}

// AdminDeleteStripeAccount deletes any connected account.
func (s *Service) AdminDeleteStripeAccount(ctx context.Context, stripeID string) error {
	const op = "service.admin_delete_stripe_account"
	owner, err := s.ownerOf(ctx, op, stripeID)
	if err != nil {
		return err
	}
	return s.deleteAccount(ctx, op, owner, stripeID)
}
