package registration

import (
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/okian/stripe-connect/internal/domain/errs"
)

// rule is the format check applied to a field whose path ends in the rule's key.
type rule struct {
	integer bool
	decimal bool
	tag     string
}

var rules = map[string]rule{
	"dob.day":                        {integer: true, tag: "min=1,max=31"},
	"dob.month":                      {integer: true, tag: "min=1,max=12"},
	"email":                          {tag: "email"},
	"support_email":                  {tag: "email"},
	"phone":                          {tag: "e164"},
	"support_phone":                  {tag: "e164"},
	"url":                            {tag: "url"},
	"support_url":                    {tag: "url"},
	"mcc":                            {tag: "len=4,numeric"},
	"address.country":                {tag: "iso3166_1_alpha2"},
	"relationship.percent_ownership": {decimal: true, tag: "min=0,max=100"},
	"ssn_last_4":                     {tag: "len=4,numeric"},
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// ruleFor returns the most specific rule whose key is path or a dotted
// suffix of path.
func ruleFor(path string) (rule, bool) {
	best, found, bestLen := rule{}, false, 0
	for key, r := range rules {
		if (path == key || strings.HasSuffix(path, "."+key)) && len(key) > bestLen {
			best, found, bestLen = r, true, len(key)
		}
	}
	return best, found
}

// checkValue applies the format rule for path, if any.
func checkValue(path, value string) bool {
	if path == "dob.year" || strings.HasSuffix(path, ".dob.year") {
		year, err := strconv.Atoi(value)
		return err == nil && year >= 1900 && year <= time.Now().Year()
	}
	r, ok := ruleFor(path)
	if !ok {
		return true
	}
	v := validatorInstance()
	switch {
	case r.integer:
		n, err := strconv.Atoi(value)
		return err == nil && v.Var(n, r.tag) == nil
	case r.decimal:
		f, err := strconv.ParseFloat(value, 64)
		return err == nil && v.Var(f, r.tag) == nil
	}
	return v.Var(value, r.tag) == nil
}

// ValidateUpdate checks a registration update for section (company or
// individual). Keys are relative to the section except business_profile.*
// keys, which are accepted for both. It returns the update keyed by full
// path with trimmed values; an empty value means remove the staged field.
func ValidateUpdate(op, section string, req Requirements, fields map[string]string) (map[string]string, error) {
	allowed := req.allowedIn(section)
	profile := req.allowedIn(SectionBusinessProfile)
	out := make(map[string]string, len(fields))
	for _, key := range sortedKeys(fields) {
		value := strings.TrimSpace(fields[key])
		var path string
		if rel, ok := strings.CutPrefix(key, SectionBusinessProfile+"."); ok {
			if !profile[rel] {
				return nil, errs.Invalid(op, key)
			}
			path = key
		} else {
			if !allowed[key] {
				return nil, errs.Invalid(op, key)
			}
			path = section + "." + key
		}
		if value != "" && !checkValue(path, value) {
			return nil, errs.Invalid(op, key)
		}
		out[path] = value
	}
	return out, nil
}

// ValidatePerson checks the fields of a person with role. Keys are relative
// to the person (first_name, address.city, relationship.title). When create
// is set, every minimum field the country requires for the role must be
// present.
func ValidatePerson(op, role string, req Requirements, fields map[string]string, create bool) (map[string]string, error) {
	section := RoleSection(role)
	if section == "" {
		return nil, errs.New(op, errs.ErrInvalid, errs.CodeInvalidPerson)
	}
	allowed := req.allowedIn(section)
	out := make(map[string]string, len(fields))
	for _, key := range sortedKeys(fields) {
		value := strings.TrimSpace(fields[key])
		if !allowed[key] {
			return nil, errs.Invalid(op, key)
		}
		if value != "" && !checkValue(key, value) {
			return nil, errs.Invalid(op, key)
		}
		out[key] = value
	}
	if create {
		for _, key := range personRequired(section, req) {
			if out[key] == "" {
				return nil, errs.Invalid(op, key)
			}
		}
	}
	return out, nil
}

// personRequired lists the section-relative fields a new person must carry.
func personRequired(section string, req Requirements) []string {
	need := []string{"first_name", "last_name"}
	seen := map[string]bool{"first_name": true, "last_name": true}
	for _, p := range req.MinimumIn(section) {
		rel, ok := strings.CutPrefix(p, section+".")
		if !ok || seen[rel] || strings.HasPrefix(rel, "verification.") {
			continue
		}
		seen[rel] = true
		need = append(need, rel)
	}
	return need
}

// Missing returns the minimum fields of the business type's own section and
// of business_profile that are not staged, sorted.
func Missing(businessType string, staged map[string]string, req Requirements) []string {
	var out []string
	for _, p := range req.Minimum {
		s := SectionOf(p)
		if s != businessType && s != SectionBusinessProfile {
			continue
		}
		if strings.Contains(p, ".verification.") {
			continue
		}
		if staged[p] == "" {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
