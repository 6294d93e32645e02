package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Payout is a transfer from a connected account's balance to its bank.
type Payout struct {
	ID              string    `json:"id"`
	StripeID        string    `json:"stripeid"`
	Amount          int64     `json:"amount"`
	AmountFormatted string    `json:"amount_formatted"`
	Currency        string    `json:"currency"`
	Status          string    `json:"status"`
	Method          string    `json:"method,omitempty"`
	FailureCode     string    `json:"failure_code,omitempty"`
	ArrivalDate     time.Time `json:"arrival_date"`
	Created         time.Time `json:"created"`
}

// minorDigits lists currencies whose minor unit is not a hundredth.
// Everything else has two decimals.
var minorDigits = map[string]int32{
	"bif": 0, "clp": 0, "djf": 0, "gnf": 0, "jpy": 0, "kmf": 0,
	"krw": 0, "mga": 0, "pyg": 0, "rwf": 0, "ugx": 0, "vnd": 0,
	"vuv": 0, "xaf": 0, "xof": 0, "xpf": 0,
	"bhd": 3, "jod": 3, "kwd": 3, "omr": 3, "tnd": 3,
}

// FormatAmount renders an amount in minor units as a decimal string in the
// currency's major unit: 1234 eur -> "12.34", 1234 jpy -> "1234",
// 1234 kwd -> "1.234".
func FormatAmount(amount int64, currency string) string {
	digits, ok := minorDigits[strings.ToLower(currency)]
	if !ok {
		digits = 2
	}
	return decimal.New(amount, -digits).StringFixed(digits)
}
