package replay

import (
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// apiVersion stamped on generated events.
const apiVersion = "2024-09-30.acacia"

type builder func(account string, i int, now time.Time) map[string]any

var builders = map[string]builder{
	"payout.created":                   payoutObject("pending"),
	"payout.updated":                   payoutObject("in_transit"),
	"payout.paid":                      payoutObject("paid"),
	"payout.failed":                    payoutObject("failed"),
	"payout.canceled":                  payoutObject("canceled"),
	"account.updated":                  accountObject,
	"person.created":                   personObject,
	"person.updated":                   personObject,
	"person.deleted":                   personObject,
	"account.application.deauthorized": applicationObject,
}

// Supported reports whether events of type t can be generated.
func Supported(t string) bool {
	_, ok := builders[t]
	return ok
}

// Types lists the generated event types.
func Types() []string {
	out := make([]string, 0, len(builders))
	for t := range builders {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Event is one generated webhook body.
type Event struct {
	ID      string
	Payload []byte
}

// Generate builds count events of type t for account.
func Generate(t, account string, count int, now time.Time) ([]Event, error) {
	build := builders[t]
	out := make([]Event, 0, count)
	for i := 0; i < count; i++ {
		id := "evt_" + compactID()
		body, err := json.Marshal(map[string]any{
			"id":          id,
			"object":      "event",
			"api_version": apiVersion,
			"type":        t,
			"account":     account,
			"created":     now.Unix(),
			"livemode":    false,
			"data":        map[string]any{"object": build(account, i, now)},
		})
		if err != nil {
			return nil, err
		}
		out = append(out, Event{ID: id, Payload: body})
	}
	return out, nil
}

func compactID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:24]
}

func payoutObject(status string) builder {
	return func(account string, i int, now time.Time) map[string]any {
		o := map[string]any{
			"id":           "po_" + compactID(),
			"object":       "payout",
			"amount":       1000 + 25*i,
			"currency":     "eur",
			"status":       status,
			"method":       "standard",
			"type":         "bank_account",
			"created":      now.Unix(),
			"arrival_date": now.Add(48 * time.Hour).Unix(),
		}
		if status == "failed" {
			o["failure_code"] = "account_closed"
		}
		return o
	}
}

func accountObject(account string, _ int, _ time.Time) map[string]any {
	return map[string]any{
		"id":                account,
		"object":            "account",
		"type":              "custom",
		"charges_enabled":   false,
		"payouts_enabled":   false,
		"details_submitted": true,
		"requirements": map[string]any{
			"currently_due":        []string{},
			"eventually_due":       []string{"individual.verification.document"},
			"past_due":             []string{},
			"pending_verification": []string{"individual.id_number"},
		},
	}
}

func personObject(account string, i int, now time.Time) map[string]any {
	return map[string]any{
		"id":         "person_" + compactID(),
		"object":     "person",
		"account":    account,
		"first_name": "Replay",
		"last_name":  "Owner",
		"created":    now.Unix(),
		"relationship": map[string]any{
			"owner":             true,
			"director":          i%2 == 1,
			"representative":    false,
			"percent_ownership": 25,
		},
	}
}

func applicationObject(_ string, _ int, _ time.Time) map[string]any {
	return map[string]any{"id": "ca_" + compactID(), "object": "application", "name": "connect-replay"}
}
