package stripeapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/stripe/stripe-go/v81"

	"github.com/okian/stripe-connect/internal/domain/errs"
)

// mapError converts a stripe-go error into an *errs.Error. A missing
// resource becomes notFound; a rejected parameter becomes invalid-<param>.
func mapError(op, notFound string, err error) error {
	if err == nil {
		return nil
	}
	var se *stripe.Error
	if !errors.As(err, &se) {
		return errs.Wrap(op, errs.ErrUpstream, errs.CodeUnknown, err)
	}
	switch {
	case se.Code == stripe.ErrorCodeResourceMissing || se.HTTPStatusCode == http.StatusNotFound:
		return errs.Wrap(op, errs.ErrNotFound, notFound, err)
	case se.Param != "":
		return errs.Wrap(op, errs.ErrInvalid, errs.FieldCode(paramPath(se.Param)), err)
	case se.HTTPStatusCode == http.StatusBadRequest:
		return errs.Wrap(op, errs.ErrInvalid, notFound, err)
	}
	return errs.Wrap(op, errs.ErrUpstream, errs.CodeUnknown, err)
}

// paramPath turns company[address][city] into company.address.city.
func paramPath(param string) string {
	r := strings.NewReplacer("][", ".", "[", ".", "]", "")
	return r.Replace(param)
}
