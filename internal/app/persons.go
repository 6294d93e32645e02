package service

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/okian/stripe-connect/internal/adapters/stripeapi"
	"github.com/okian/stripe-connect/internal/domain/errs"
	"github.com/okian/stripe-connect/internal/domain/model"
	"github.com/okian/stripe-connect/internal/domain/registration"
	"github.com/okian/stripe-connect/pkg/logger"
)

// CreatePerson adds a beneficial owner, director or representative to a
// company account.
func (s *Service) CreatePerson(ctx context.Context, accountID, stripeID, role string, fields map[string]string) (model.Person, error) {
	const op = "service.create_person"
	if registration.RoleSection(role) == "" {
		return model.Person{}, errs.New(op, errs.ErrInvalid, errs.CodeInvalidPerson)
	}
	if err := s.authorize(ctx, op, accountID, stripeID); err != nil {
		return model.Person{}, err
	}
	l, err := s.load(ctx, op, stripeID)
	if err != nil {
		return model.Person{}, err
	}
	a := l.account
	if a.BusinessType != registration.BusinessCompany {
		return model.Person{}, errs.New(op, errs.ErrInvalid, errs.CodeInvalidStripeAccount)
	}
	switch role {
	case registration.RoleOwner:
		if a.OwnersSubmitted {
			return model.Person{}, errs.New(op, errs.ErrInvalid, errs.CodeInvalidStripeAccount)
		}
	case registration.RoleDirector:
		if a.DirectorsSubmitted {
			return model.Person{}, errs.New(op, errs.ErrInvalid, errs.CodeInvalidStripeAccount)
		}
	case registration.RoleRepresentative:
		rep, err := s.lookup(ctx, op, representativeKey(stripeID))
		if err != nil {
			return model.Person{}, err
		}
		if rep != "" {
			return model.Person{}, errs.New(op, errs.ErrConflict, errs.CodeInvalidPerson)
		}
	}
	changes, err := registration.ValidatePerson(op, role, l.req, fields, true)
	if err != nil {
		return model.Person{}, err
	}

	p, err := s.stripe.CreatePerson(ctx, stripeID, role, stripeapi.Update{Fields: nonEmpty(changes)})
	if err != nil {
		return model.Person{}, err
	}
	if err := s.indexPerson(ctx, op, stripeID, p.ID, role); err != nil {
		return model.Person{}, err
	}
	s.logger.Info(ctx, "person created",
		logger.String("stripeid", stripeID),
		logger.String("personid", p.ID),
		logger.String("role", role),
	)
	return p, nil
}

func nonEmpty(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		if v != "" {
			out[k] = v
		}
	}
	return out
}

func (s *Service) indexPerson(ctx context.Context, op, stripeID, personID, role string) error {
	if err := s.store.Set(ctx, personKey(personID), stripeID); err != nil {
		return storageErr(op, err)
	}
	if role == registration.RoleRepresentative {
		if err := s.store.Set(ctx, representativeKey(stripeID), personID); err != nil {
			return storageErr(op, err)
		}
		return nil
	}
	if err := s.store.Add(ctx, rolePath(role, stripeID), personID); err != nil {
		return storageErr(op, err)
	}
	return nil
}

func (s *Service) reconcilePersons(ctx context.Context, op, stripeID, role string) error {
	persons, err := s.stripe.ListPersons(ctx, stripeID, role)
	if err != nil {
		return err
	}
	path := rolePath(role, stripeID)
	for _, p := range persons {
		ok, err := s.store.Exists(ctx, path, p.ID)
		if err != nil {
			return storageErr(op, err)
		}
		if ok {
			continue
		}
		if err := s.indexPerson(ctx, op, stripeID, p.ID, role); err != nil {
			return err
		}
		s.logger.Info(ctx, "person indexed from stripe", logger.String("stripeid", stripeID), logger.String("personid", p.ID), logger.String("role", role))
	}
	return nil
}

func (s *Service) unindexPerson(ctx context.Context, op, stripeID, personID string) error {
	rep, err := s.lookup(ctx, op, representativeKey(stripeID))
	if err != nil {
		return err
	}
	if rep == personID {
		if err := s.store.Delete(ctx, representativeKey(stripeID)); err != nil {
			return storageErr(op, err)
		}
	}
	for _, path := range []string{ownersPath(stripeID), directorsPath(stripeID)} {
		if err := s.store.Remove(ctx, path, personID); err != nil {
			return storageErr(op, err)
		}
	}
	if err := s.store.Delete(ctx, personKey(personID)); err != nil {
		return storageErr(op, err)
	}
	return nil
}

// roleOf returns the role personID is indexed under on stripeID.
func (s *Service) roleOf(ctx context.Context, op, stripeID, personID string) (string, error) {
	rep, err := s.lookup(ctx, op, representativeKey(stripeID))
	if err != nil {
		return "", err
	}
	if rep == personID {
		return registration.RoleRepresentative, nil
	}
	for _, role := range []string{registration.RoleOwner, registration.RoleDirector} {
		ok, err := s.store.Exists(ctx, rolePath(role, stripeID), personID)
		if err != nil {
			return "", storageErr(op, err)
		}
		if ok {
			return role, nil
		}
	}
	return "", nil
}

// person resolves personID for accountID and checks it holds role.
func (s *Service) person(ctx context.Context, op, accountID, personID, role string) (string, error) {
	if personID == "" {
		return "", errs.New(op, errs.ErrInvalid, errs.CodeInvalidPersonID)
	}
	stripeID, err := s.resolve(ctx, op, accountID, personKey(personID), errs.CodeInvalidPersonID)
	if err != nil {
		return "", err
	}
	got, err := s.roleOf(ctx, op, stripeID, personID)
	if err != nil {
		return "", err
	}
	if got != role {
		return "", errs.New(op, errs.ErrNotFound, errs.CodeInvalidPersonID)
	}
	return stripeID, nil
}

// UpdatePerson changes the fields of a person holding role.
func (s *Service) UpdatePerson(ctx context.Context, accountID, personID, role string, fields map[string]string) (model.Person, error) {
	const op = "service.update_person"
	stripeID, err := s.person(ctx, op, accountID, personID, role)
	if err != nil {
		return model.Person{}, err
	}
	if len(fields) == 0 {
		return model.Person{}, errs.New(op, errs.ErrInvalid, errs.CodeInvalidPerson)
	}
	req, err := s.requirementsOf(ctx, stripeID)
	if err != nil {
		return model.Person{}, err
	}
	changes, err := registration.ValidatePerson(op, role, req, fields, false)
	if err != nil {
		return model.Person{}, err
	}
	p, err := s.stripe.UpdatePerson(ctx, stripeID, personID, stripeapi.Update{Fields: changes})
	if err != nil {
		return model.Person{}, err
	}
	p.Role = role
	s.logger.Debug(ctx, "person updated", logger.String("personid", personID), logger.Int("changed", len(changes)))
	return p, nil
}

func (s *Service) requirementsOf(ctx context.Context, stripeID string) (registration.Requirements, error) {
	a, err := s.stripe.GetAccount(ctx, stripeID)
	if err != nil {
		return registration.Requirements{}, err
	}
	spec, err := s.stripe.GetCountrySpec(ctx, a.Country)
	if err != nil {
		return registration.Requirements{}, err
	}
	return spec.Requirements(a.BusinessType), nil
}

// DeletePerson removes a person holding role. The representative of a
// submitted account stays.
func (s *Service) DeletePerson(ctx context.Context, accountID, personID, role string) error {
	const op = "service.delete_person"
	stripeID, err := s.person(ctx, op, accountID, personID, role)
	if err != nil {
		return err
	}
	a, err := s.stripe.GetAccount(ctx, stripeID)
	if err != nil {
		return err
	}
	switch {
	case role == registration.RoleRepresentative && a.Submitted,
		role == registration.RoleOwner && a.OwnersSubmitted,
		role == registration.RoleDirector && a.DirectorsSubmitted:
		return errs.New(op, errs.ErrInvalid, errs.CodeInvalidPerson)
	}
	if err := s.stripe.DeletePerson(ctx, stripeID, personID); err != nil && !errors.Is(err, errs.ErrNotFound) {
		return err
	}
	if err := s.unindexPerson(ctx, op, stripeID, personID); err != nil {
		return err
	}
	s.logger.Info(ctx, "person deleted", logger.String("stripeid", stripeID), logger.String("personid", personID))
	return nil
}

// GetPerson returns a person holding role.
func (s *Service) GetPerson(ctx context.Context, accountID, personID, role string) (model.Person, error) {
	const op = "service.get_person"
	stripeID, err := s.person(ctx, op, accountID, personID, role)
	if err != nil {
		return model.Person{}, err
	}
	p, err := s.stripe.GetPerson(ctx, stripeID, personID)
	if err != nil {
		return model.Person{}, err
	}
	p.Role = role
	return p, nil
}

// ListPersons returns a page of the owners or directors of an account.
func (s *Service) ListPersons(ctx context.Context, accountID, stripeID, role string, page model.Page) ([]model.Person, error) {
	const op = "service.list_persons"
	path := rolePath(role, stripeID)
	if path == "" {
		return nil, errs.New(op, errs.ErrInvalid, errs.CodeInvalidPerson)
	}
	if err := s.authorize(ctx, op, accountID, stripeID); err != nil {
		return nil, err
	}
	ids, err := s.window(ctx, op, path, page)
	if err != nil {
		return nil, err
	}
	out := make([]model.Person, 0, len(ids))
	for _, id := range ids {
		p, err := s.stripe.GetPerson(ctx, stripeID, id)
		if errors.Is(err, errs.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		p.Role = role
		out = append(out, p)
	}
	return out, nil
}

// CountPersons counts the owners or directors of an account.
func (s *Service) CountPersons(ctx context.Context, accountID, stripeID, role string) (int, error) {
	const op = "service.count_persons"
	path := rolePath(role, stripeID)
	if path == "" {
		return 0, errs.New(op, errs.ErrInvalid, errs.CodeInvalidPerson)
	}
	if err := s.authorize(ctx, op, accountID, stripeID); err != nil {
		return 0, err
	}
	return s.count(ctx, op, path)
}

// GetRepresentative returns the representative of a company account.
func (s *Service) GetRepresentative(ctx context.Context, accountID, stripeID string) (model.Person, error) {
	const op = "service.get_representative"
	if err := s.authorize(ctx, op, accountID, stripeID); err != nil {
		return model.Person{}, err
	}
	id, err := s.lookup(ctx, op, representativeKey(stripeID))
	if err != nil {
		return model.Person{}, err
	}
	if id == "" {
		return model.Person{}, errs.New(op, errs.ErrNotFound, errs.CodeInvalidPersonID)
	}
	p, err := s.stripe.GetPerson(ctx, stripeID, id)
	if err != nil {
		return model.Person{}, err
	}
	p.Role = registration.RoleRepresentative
	return p, nil
}

// SubmitBeneficialOwners marks the owner list complete. An empty list means
// nobody holds a reportable share.
func (s *Service) SubmitBeneficialOwners(ctx context.Context, accountID, stripeID string) (model.StripeAccount, error) {
	return s.submitPersons(ctx, "service.submit_beneficial_owners", accountID, stripeID, registration.RoleOwner, stripeapi.MetaOwnersSubmitted)
}

// SubmitCompanyDirectors marks the director list complete.
func (s *Service) SubmitCompanyDirectors(ctx context.Context, accountID, stripeID string) (model.StripeAccount, error) {
	return s.submitPersons(ctx, "service.submit_company_directors", accountID, stripeID, registration.RoleDirector, stripeapi.MetaDirectorsSubmitted)
}

// submitPersons indexes any person Stripe holds in role that the index
// missed, then sets flag.
func (s *Service) submitPersons(ctx context.Context, op, accountID, stripeID, role, flag string) (model.StripeAccount, error) {
	if err := s.authorize(ctx, op, accountID, stripeID); err != nil {
		return model.StripeAccount{}, err
	}
	a, err := s.stripe.GetAccount(ctx, stripeID)
	if err != nil {
		return model.StripeAccount{}, err
	}
	if a.BusinessType != registration.BusinessCompany || a.Metadata[flag] != "" {
		return model.StripeAccount{}, errs.New(op, errs.ErrInvalid, errs.CodeInvalidStripeAccount)
	}
	if err := s.reconcilePersons(ctx, op, stripeID, role); err != nil {
		return model.StripeAccount{}, err
	}
	u := stripeapi.Update{Metadata: map[string]string{flag: strconv.FormatInt(time.Now().Unix(), 10)}}
	if _, err := s.stripe.UpdateAccount(ctx, stripeID, u); err != nil {
		return model.StripeAccount{}, err
	}
	s.logger.Info(ctx, "persons submitted", logger.String("stripeid", stripeID), logger.String("flag", flag))
	l, err := s.load(ctx, op, stripeID)
	if err != nil {
		return model.StripeAccount{}, err
	}
	return l.account, nil
}
