package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/okian/stripe-connect/internal/domain/errs"
)

var codeMessages = map[string]string{
	errs.CodeInvalidAccount:       "not allowed for this account",
	errs.CodeInvalidStripeAccount: "the stripe account is not in a state that allows this",
	errs.CodeInvalidStripeID:      "unknown stripe account",
	errs.CodeInvalidPersonID:      "unknown person",
	errs.CodeInvalidPayoutID:      "unknown payout",
	errs.CodeInvalidPerson:        "invalid person",
	errs.CodeInvalidPayout:        "invalid payout",
	errs.CodeInvalidReason:        "unknown rejection reason",
	errs.CodeInvalidRegistration:  "registration is incomplete",
	errs.CodeInvalidSignature:     "webhook signature could not be verified",
	errs.CodeBackpressure:         "too many events, retry later",
}

// publicMessage picks the caller-facing text of an error response. Only
// messages written for callers with errs.Newf pass through; op names and
// upstream error text never do.
func publicMessage(status int, code string, err error) string {
	if status >= http.StatusInternalServerError {
		return http.StatusText(status)
	}
	var e *errs.Error
	if asError(err, &e) && e.Message != "" {
		return e.Message
	}
	if msg, ok := codeMessages[code]; ok {
		return msg
	}
	if field, ok := strings.CutPrefix(code, "invalid-"); ok && field != "" {
		return "invalid value for " + field
	}
	return http.StatusText(status)
}

// StatusOf maps the kind of err to an HTTP status.
func StatusOf(err error) int {
	switch errs.KindOf(err) {
	case errs.ErrInvalid:
		return http.StatusBadRequest
	case errs.ErrUnauthenticated:
		return http.StatusUnauthorized
	case errs.ErrForbidden:
		return http.StatusForbidden
	case errs.ErrNotFound:
		return http.StatusNotFound
	case errs.ErrConflict:
		return http.StatusConflict
	case errs.ErrBackpressure:
		return http.StatusTooManyRequests
	}
	return http.StatusBadGateway
}

func asError(err error, target **errs.Error) bool {
	return errors.As(err, target)
}
