package service

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/okian/stripe-connect/internal/adapters/storage"
	"github.com/okian/stripe-connect/internal/adapters/stripeapi"
	"github.com/okian/stripe-connect/internal/domain/errs"
	"github.com/okian/stripe-connect/internal/domain/metadata"
	"github.com/okian/stripe-connect/internal/domain/model"
	"github.com/okian/stripe-connect/internal/domain/registration"
)

// Index lists and maps.
const (
	pathStripeAccounts = "stripeAccounts"
	pathPayouts        = "payouts"
)

func accountStripeAccountsPath(accountID string) string { return "account/stripeAccounts/" + accountID }
func accountPayoutsPath(accountID string) string        { return "account/payouts/" + accountID }
func stripePayoutsPath(stripeID string) string          { return "stripeAccount/payouts/" + stripeID }
func ownersPath(stripeID string) string                 { return "stripeAccount/beneficialOwners/" + stripeID }
func directorsPath(stripeID string) string              { return "stripeAccount/companyDirectors/" + stripeID }
func ownerKey(stripeID string) string                   { return "map/stripeid/accountid/" + stripeID }
func personKey(personID string) string                  { return "map/personid/stripeid/" + personID }
func payoutKey(payoutID string) string                  { return "map/payoutid/stripeid/" + payoutID }
func representativeKey(stripeID string) string          { return "map/representative/stripeid/" + stripeID }
func statusKey(stripeID string) string                  { return "status/stripeid/" + stripeID }

func rolePath(role, stripeID string) string {
	switch role {
	case registration.RoleOwner:
		return ownersPath(stripeID)
	case registration.RoleDirector:
		return directorsPath(stripeID)
	}
	return ""
}

func storageErr(op string, err error) error {
	return errs.Wrap(op, errs.ErrUpstream, errs.CodeUnknown, err)
}

// lookup reads a map key, returning "" when it is unset.
func (s *Service) lookup(ctx context.Context, op, key string) (string, error) {
	v, err := s.store.Get(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", storageErr(op, err)
	}
	return v, nil
}

// ownerOf returns the user owning stripeID, or an invalid-stripeid not-found
// error for unknown accounts.
func (s *Service) ownerOf(ctx context.Context, op, stripeID string) (string, error) {
	if stripeID == "" {
		return "", errs.New(op, errs.ErrInvalid, errs.CodeInvalidStripeID)
	}
	owner, err := s.lookup(ctx, op, ownerKey(stripeID))
	if err != nil {
		return "", err
	}
	if owner == "" {
		return "", errs.New(op, errs.ErrNotFound, errs.CodeInvalidStripeID)
	}
	return owner, nil
}

// authorize checks that accountID owns stripeID.
func (s *Service) authorize(ctx context.Context, op, accountID, stripeID string) error {
	if accountID == "" {
		return errs.New(op, errs.ErrUnauthenticated, errs.CodeInvalidAccount)
	}
	owner, err := s.ownerOf(ctx, op, stripeID)
	if err != nil {
		return err
	}
	if owner != accountID {
		return errs.New(op, errs.ErrForbidden, errs.CodeInvalidAccount)
	}
	return nil
}

// resolve follows a person or payout map to its stripe account and checks
// ownership. missing is the code for an unknown id.
func (s *Service) resolve(ctx context.Context, op, accountID, key, missing string) (string, error) {
	stripeID, err := s.lookup(ctx, op, key)
	if err != nil {
		return "", err
	}
	if stripeID == "" {
		return "", errs.New(op, errs.ErrNotFound, missing)
	}
	if err := s.authorize(ctx, op, accountID, stripeID); err != nil {
		return "", err
	}
	return stripeID, nil
}

// loaded is an account together with the data derived from it.
type loaded struct {
	account model.StripeAccount
	staged  map[string]string
	req     registration.Requirements
	spec    model.CountrySpec
}

// load fetches an account from Stripe and computes its onboarding progress.
func (s *Service) load(ctx context.Context, op, stripeID string) (loaded, error) {
	a, err := s.stripe.GetAccount(ctx, stripeID)
	if err != nil {
		return loaded{}, err
	}
	staged, err := metadata.UnpackJSON(a.Metadata, stripeapi.MetaRegistration)
	if err != nil {
		return loaded{}, errs.Wrap(op, errs.ErrUpstream, errs.CodeInvalidRegistration, err)
	}
	spec, err := s.stripe.GetCountrySpec(ctx, a.Country)
	if err != nil {
		return loaded{}, err
	}
	req := spec.Requirements(a.BusinessType)
	rep, err := s.lookup(ctx, op, representativeKey(stripeID))
	if err != nil {
		return loaded{}, err
	}

	a.Registration = registration.Redact(staged)
	a.Progress = registration.Evaluate(registration.Account{
		BusinessType:       a.BusinessType,
		Submitted:          a.Submitted,
		PaymentInformation: a.PaymentInformation,
		OwnersSubmitted:    a.OwnersSubmitted,
		DirectorsSubmitted: a.DirectorsSubmitted,
		HasRepresentative:  rep != "",
		PayoutsEnabled:     a.PayoutsEnabled,
		Staged:             staged,
		Due:                a.Requirements,
	}, req)
	if raw, err := s.lookup(ctx, op, statusKey(stripeID)); err == nil && raw != "" {
		var st model.AccountStatus
		if json.Unmarshal([]byte(raw), &st) == nil {
			a.Status = &st
		}
	}
	return loaded{account: a, staged: staged, req: req, spec: spec}, nil
}

// index records a new connected account for accountID.
func (s *Service) index(ctx context.Context, op, accountID, stripeID string) error {
	if err := s.store.Set(ctx, ownerKey(stripeID), accountID); err != nil {
		return storageErr(op, err)
	}
	if err := s.store.Add(ctx, pathStripeAccounts, stripeID); err != nil {
		return storageErr(op, err)
	}
	if err := s.store.Add(ctx, accountStripeAccountsPath(accountID), stripeID); err != nil {
		return storageErr(op, err)
	}
	return nil
}

// unindex removes every trace of stripeID from the store.
func (s *Service) unindex(ctx context.Context, op, accountID, stripeID string) error {
	for _, path := range []string{ownersPath(stripeID), directorsPath(stripeID)} {
		ids, err := s.store.ListAll(ctx, path)
		if err != nil {
			return storageErr(op, err)
		}
		for _, id := range ids {
			if err := s.store.Delete(ctx, personKey(id)); err != nil {
				return storageErr(op, err)
			}
			if err := s.store.Remove(ctx, path, id); err != nil {
				return storageErr(op, err)
			}
		}
	}
	if rep, err := s.lookup(ctx, op, representativeKey(stripeID)); err != nil {
		return err
	} else if rep != "" {
		if err := s.store.Delete(ctx, personKey(rep)); err != nil {
			return storageErr(op, err)
		}
	}

	payouts, err := s.store.ListAll(ctx, stripePayoutsPath(stripeID))
	if err != nil {
		return storageErr(op, err)
	}
	for _, id := range payouts {
		if err := s.store.Remove(ctx, pathPayouts, id); err != nil {
			return storageErr(op, err)
		}
		if err := s.store.Remove(ctx, accountPayoutsPath(accountID), id); err != nil {
			return storageErr(op, err)
		}
		if err := s.store.Remove(ctx, stripePayoutsPath(stripeID), id); err != nil {
			return storageErr(op, err)
		}
		if err := s.store.Delete(ctx, payoutKey(id)); err != nil {
			return storageErr(op, err)
		}
	}

	for _, key := range []string{representativeKey(stripeID), statusKey(stripeID), ownerKey(stripeID)} {
		if err := s.store.Delete(ctx, key); err != nil {
			return storageErr(op, err)
		}
	}
	if err := s.store.Remove(ctx, pathStripeAccounts, stripeID); err != nil {
		return storageErr(op, err)
	}
	if err := s.store.Remove(ctx, accountStripeAccountsPath(accountID), stripeID); err != nil {
		return storageErr(op, err)
	}
	return nil
}

// window reads a page of ids from path.
func (s *Service) window(ctx context.Context, op, path string, page model.Page) ([]string, error) {
	var (
		ids []string
		err error
	)
	if page.All {
		ids, err = s.store.ListAll(ctx, path)
	} else {
		ids, err = s.store.List(ctx, path, page.Offset, page.Limit)
	}
	if err != nil {
		return nil, storageErr(op, err)
	}
	return ids, nil
}

func (s *Service) count(ctx context.Context, op, path string) (int, error) {
	n, err := s.store.Count(ctx, path)
	if err != nil {
		return 0, storageErr(op, err)
	}
	return n, nil
}
