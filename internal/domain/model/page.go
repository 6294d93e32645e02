package model

import (
	"strconv"

	"github.com/okian/stripe-connect/internal/domain/errs"
)

// Page selects a window of an index list.
type Page struct {
	Offset int
	Limit  int
	All    bool
}

// ParsePage reads offset, limit and all from query values. Empty values
// take the defaults; a limit above maxLimit is invalid.
func ParsePage(offset, limit, all string, def, maxLimit int) (Page, error) {
	const op = "model.parse_page"
	p := Page{Limit: def}
	if offset != "" {
		n, err := strconv.Atoi(offset)
		if err != nil || n < 0 {
			return Page{}, errs.Invalid(op, "offset")
		}
		p.Offset = n
	}
	if limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 1 || n > maxLimit {
			return Page{}, errs.Invalid(op, "limit")
		}
		p.Limit = n
	}
	if all != "" {
		b, err := strconv.ParseBool(all)
		if err != nil {
			return Page{}, errs.Invalid(op, "all")
		}
		p.All = b
	}
	return p, nil
}
