// Package model contains domain models passed between layers.
package model

import (
	"encoding/json"
	"time"
)

// Event is a verified Stripe webhook event queued for dispatch.
type Event struct {
	ID      string          // evt_ id, used for idempotency
	Type    string          // e.g. "payout.paid", "account.updated"
	Account string          // connected account the event belongs to
	Created time.Time       // event creation time at Stripe
	Object  json.RawMessage // data.object as sent by Stripe
}

// AccountStatus is the last status snapshot received for a connected account.
type AccountStatus struct {
	StripeID         string    `json:"stripeid"`
	ChargesEnabled   bool      `json:"charges_enabled"`
	PayoutsEnabled   bool      `json:"payouts_enabled"`
	DetailsSubmitted bool      `json:"details_submitted"`
	CurrentlyDue     []string  `json:"currently_due"`
	EventuallyDue    []string  `json:"eventually_due"`
	PastDue          []string  `json:"past_due"`
	PendingVerify    []string  `json:"pending_verification"`
	DisabledReason   string    `json:"disabled_reason,omitempty"`
	UpdatedAt        time.Time `json:"updated_at"`
}
