package service

import (
	"context"
	"encoding/json"
	"strings"

	workerpool "github.com/okian/stripe-connect/internal/adapters/mq/worker"
	"github.com/okian/stripe-connect/internal/adapters/stripeapi"
	"github.com/okian/stripe-connect/internal/domain/errs"
	"github.com/okian/stripe-connect/internal/domain/model"
	"github.com/okian/stripe-connect/internal/domain/registration"
	"github.com/okian/stripe-connect/pkg/logger"
	"github.com/okian/stripe-connect/pkg/metrics"
)

// Ingest results.
const (
	IngestAccepted  = "accepted"
	IngestDuplicate = "duplicate"
)

// IngestWebhook verifies a Connect webhook and queues it for dispatch. It
// returns IngestDuplicate for an event id already seen.
func (s *Service) IngestWebhook(ctx context.Context, payload []byte, signature string) (string, error) {
	const op = "service.ingest_webhook"
	e, err := s.stripe.ConstructEvent(payload, signature)
	if err != nil {
		metrics.RecordWebhookEvent("unknown", "rejected")
		return "", err
	}
	if e.ID == "" {
		metrics.RecordWebhookEvent(e.Type, "rejected")
		return "", errs.Invalid(op, "id")
	}
	if s.deduper.SeenAndRecord(ctx, e.ID) {
		metrics.RecordWebhookEvent(e.Type, IngestDuplicate)
		return IngestDuplicate, nil
	}
	if !s.queue.Enqueue(ctx, e) {
		s.deduper.Unrecord(ctx, e.ID)
		metrics.RecordWebhookEvent(e.Type, "backpressure")
		s.logger.Warn(ctx, "webhook queue full", logger.String("event_id", e.ID), logger.String("type", e.Type))
		return "", errs.New(op, errs.ErrBackpressure, errs.CodeBackpressure)
	}
	metrics.RecordWebhookEvent(e.Type, IngestAccepted)
	return IngestAccepted, nil
}

// Dispatch applies one verified event to the index. Events for accounts
// this service did not create are ignored. A failed event is forgotten by
// the deduper so that a redelivery is dispatched again.
func (s *Service) Dispatch(ctx context.Context, e model.Event) (string, error) {
	outcome, err := s.dispatch(ctx, e)
	if err != nil {
		s.deduper.Unrecord(ctx, e.ID)
		return "", err
	}
	return outcome, nil
}

func (s *Service) dispatch(ctx context.Context, e model.Event) (string, error) {
	const op = "service.dispatch"
	if e.Account == "" {
		return workerpool.OutcomeIgnored, nil
	}
	owner, err := s.lookup(ctx, op, ownerKey(e.Account))
	if err != nil {
		return "", err
	}
	if owner == "" {
		return workerpool.OutcomeIgnored, nil
	}

	switch {
	case strings.HasPrefix(e.Type, "payout."):
		return s.onPayout(ctx, op, owner, e)
	case e.Type == "account.updated":
		return s.onAccountUpdated(ctx, op, e)
	case e.Type == "person.created", e.Type == "person.updated":
		return s.onPerson(ctx, op, e)
	case e.Type == "person.deleted":
		p, err := stripeapi.DecodePerson(e.Object)
		if err != nil {
			return "", errs.Wrap(op, errs.ErrInvalid, errs.CodeInvalidPerson, err)
		}
		if err := s.unindexPerson(ctx, op, e.Account, p.ID); err != nil {
			return "", err
		}
		return workerpool.OutcomeProcessed, nil
	case e.Type == "account.application.deauthorized":
		if err := s.unindex(ctx, op, owner, e.Account); err != nil {
			return "", err
		}
		s.logger.Info(ctx, "stripe account deauthorized", logger.String("stripeid", e.Account), logger.String("accountid", owner))
		return workerpool.OutcomeProcessed, nil
	}
	return workerpool.OutcomeIgnored, nil
}

func (s *Service) onPayout(ctx context.Context, op, owner string, e model.Event) (string, error) {
	p, err := stripeapi.DecodePayout(e.Account, e.Object)
	if err != nil {
		return "", errs.Wrap(op, errs.ErrInvalid, errs.CodeInvalidPayout, err)
	}
	if p.ID == "" {
		return "", errs.New(op, errs.ErrInvalid, errs.CodeInvalidPayoutID)
	}
	if err := s.indexPayout(ctx, op, owner, e.Account, p.ID); err != nil {
		return "", err
	}
	return workerpool.OutcomeProcessed, nil
}

func (s *Service) indexPayout(ctx context.Context, op, owner, stripeID, payoutID string) error {
	if err := s.store.Set(ctx, payoutKey(payoutID), stripeID); err != nil {
		return storageErr(op, err)
	}
	for _, path := range []string{pathPayouts, accountPayoutsPath(owner), stripePayoutsPath(stripeID)} {
		if err := s.addOnce(ctx, op, path, payoutID); err != nil {
			return err
		}
	}
	return nil
}

// addOnce adds id to path unless present, keeping the original position.
func (s *Service) addOnce(ctx context.Context, op, path, id string) error {
	ok, err := s.store.Exists(ctx, path, id)
	if err != nil {
		return storageErr(op, err)
	}
	if ok {
		return nil
	}
	if err := s.store.Add(ctx, path, id); err != nil {
		return storageErr(op, err)
	}
	return nil
}

func (s *Service) onAccountUpdated(ctx context.Context, op string, e model.Event) (string, error) {
	_, status, err := stripeapi.DecodeAccount(e.Object)
	if err != nil {
		return "", errs.Wrap(op, errs.ErrInvalid, errs.CodeInvalidStripeAccount, err)
	}
	if status.StripeID == "" {
		status.StripeID = e.Account
	}
	raw, err := json.Marshal(status)
	if err != nil {
		return "", errs.Wrap(op, errs.ErrInvalid, errs.CodeInvalidStripeAccount, err)
	}
	if err := s.store.Set(ctx, statusKey(e.Account), string(raw)); err != nil {
		return "", storageErr(op, err)
	}
	return workerpool.OutcomeProcessed, nil
}

func (s *Service) onPerson(ctx context.Context, op string, e model.Event) (string, error) {
	p, err := stripeapi.DecodePerson(e.Object)
	if err != nil {
		return "", errs.Wrap(op, errs.ErrInvalid, errs.CodeInvalidPerson, err)
	}
	if p.ID == "" {
		return "", errs.New(op, errs.ErrInvalid, errs.CodeInvalidPersonID)
	}
	if err := s.store.Set(ctx, personKey(p.ID), e.Account); err != nil {
		return "", storageErr(op, err)
	}
	rep, err := s.lookup(ctx, op, representativeKey(e.Account))
	if err != nil {
		return "", err
	}
	switch {
	case p.Representative && rep == "":
		if err := s.store.Set(ctx, representativeKey(e.Account), p.ID); err != nil {
			return "", storageErr(op, err)
		}
	case !p.Representative && rep == p.ID:
		if err := s.store.Delete(ctx, representativeKey(e.Account)); err != nil {
			return "", storageErr(op, err)
		}
	}
	for role, holds := range map[string]bool{registration.RoleOwner: p.Owner, registration.RoleDirector: p.Director} {
		path := rolePath(role, e.Account)
		if holds {
			if err := s.addOnce(ctx, op, path, p.ID); err != nil {
				return "", err
			}
			continue
		}
		if err := s.store.Remove(ctx, path, p.ID); err != nil {
			return "", storageErr(op, err)
		}
	}
	return workerpool.OutcomeProcessed, nil
}
