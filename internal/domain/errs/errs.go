// Package errs carries the string-keyed error convention of the API
// ("invalid-<field>", "invalid-account", "unknown-error", ...) together with
// a sentinel kind that decides the HTTP status.
package errs

import (
	"errors"
	"strings"
)

// Sentinel kinds.
var (
	ErrInvalid         = errors.New("invalid request")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrBackpressure    = errors.New("backpressure")
	ErrUpstream        = errors.New("upstream failure")
)

// Well-known codes.
const (
	CodeInvalidAccount       = "invalid-account"
	CodeInvalidStripeAccount = "invalid-stripe-account"
	CodeInvalidStripeID      = "invalid-stripeid"
	CodeInvalidPersonID      = "invalid-personid"
	CodeInvalidPayoutID      = "invalid-payoutid"
	CodeInvalidPerson        = "invalid-person"
	CodeInvalidPayout        = "invalid-payout"
	CodeInvalidReason        = "invalid-reason"
	CodeInvalidRegistration  = "invalid-registration"
	CodeInvalidSignature     = "invalid-signature"
	CodeBackpressure         = "backpressure"
	CodeUnknown              = "unknown-error"
)

// Error is the error type returned by the service layer.
type Error struct {
	Op      string
	Kind    error
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Code)
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes both the kind and the cause to errors.Is/As.
func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// New builds an error without a cause.
func New(op string, kind error, code string) *Error {
	return &Error{Op: op, Kind: kind, Code: code}
}

// Newf builds an error with a human readable message.
func Newf(op string, kind error, code, message string) *Error {
	return &Error{Op: op, Kind: kind, Code: code, Message: message}
}

// Wrap builds an error around a cause.
func Wrap(op string, kind error, code string, err error) *Error {
	return &Error{Op: op, Kind: kind, Code: code, Err: err}
}

// Invalid is shorthand for an ErrInvalid error on field, e.g. "invalid-country".
func Invalid(op, field string) *Error {
	return New(op, ErrInvalid, FieldCode(field))
}

// FieldCode turns a field path into its error code:
// "address.postal_code" -> "invalid-address_postal_code".
func FieldCode(field string) string {
	return "invalid-" + strings.ReplaceAll(field, ".", "_")
}

// CodeOf returns the code of the first *Error in err's chain, or unknown-error.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Code != "" {
		return e.Code
	}
	return CodeUnknown
}

// KindOf returns the kind of the outermost *Error in err's chain that has
// one. A chain without an *Error kind falls back to a bare sentinel it
// wraps, then to ErrUpstream.
func KindOf(err error) error {
	for cur := err; cur != nil; {
		var e *Error
		if !errors.As(cur, &e) {
			break
		}
		if e.Kind != nil {
			return e.Kind
		}
		cur = e.Err
	}
	for _, k := range []error{ErrInvalid, ErrUnauthenticated, ErrForbidden, ErrNotFound, ErrConflict, ErrBackpressure} {
		if errors.Is(err, k) {
			return k
		}
	}
	return ErrUpstream
}
