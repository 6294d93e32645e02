package stripeapi

import (
	"encoding/json"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/webhook"

	"github.com/okian/stripe-connect/internal/domain/errs"
	"github.com/okian/stripe-connect/internal/domain/model"
)

// ConstructEvent verifies the Stripe-Signature header of payload and
// returns the event. API version mismatches are tolerated.
func (c *Client) ConstructEvent(payload []byte, signature string) (model.Event, error) {
	const op = "stripe.construct_event"
	ev, err := webhook.ConstructEventWithOptions(payload, signature, c.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return model.Event{}, errs.Wrap(op, errs.ErrInvalid, errs.CodeInvalidSignature, err)
	}
	out := model.Event{
		ID:      ev.ID,
		Type:    string(ev.Type),
		Account: ev.Account,
		Created: unix(ev.Created),
	}
	if ev.Data != nil {
		out.Object = ev.Data.Raw
	}
	return out, nil
}

// DecodeAccount decodes an account object from an event.
func DecodeAccount(raw json.RawMessage) (model.StripeAccount, model.AccountStatus, error) {
	var a stripe.Account
	if err := json.Unmarshal(raw, &a); err != nil {
		return model.StripeAccount{}, model.AccountStatus{}, err
	}
	return toAccount(&a), ToAccountStatus(&a), nil
}

// DecodePerson decodes a person object from an event.
func DecodePerson(raw json.RawMessage) (model.Person, error) {
	var p stripe.Person
	if err := json.Unmarshal(raw, &p); err != nil {
		return model.Person{}, err
	}
	return toPerson(&p), nil
}

// DecodePayout decodes a payout object from an event for stripeID.
func DecodePayout(stripeID string, raw json.RawMessage) (model.Payout, error) {
	var p stripe.Payout
	if err := json.Unmarshal(raw, &p); err != nil {
		return model.Payout{}, err
	}
	return toPayout(stripeID, &p), nil
}
