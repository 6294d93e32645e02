package service

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/okian/stripe-connect/internal/domain/errs"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// structValidator reports failing fields by their json name.
func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// validateStruct maps the first failing field of v to invalid-<field>.
func validateStruct(op string, v any) error {
	err := structValidator().Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return errs.Invalid(op, verrs[0].Field())
	}
	return errs.Wrap(op, errs.ErrInvalid, errs.CodeUnknown, err)
}
