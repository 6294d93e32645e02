package stripeapi

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v81"

	"github.com/okian/stripe-connect/internal/domain/errs"
	"github.com/okian/stripe-connect/internal/domain/model"
)

// GetCountrySpec returns the spec of country. Specs are cached for the
// lifetime of the process.
func (c *Client) GetCountrySpec(ctx context.Context, country string) (model.CountrySpec, error) {
	const op = "stripe.get_country_spec"
	country = strings.ToUpper(country)
	c.mu.RLock()
	spec, ok := c.specs[country]
	c.mu.RUnlock()
	if ok {
		return spec, nil
	}
	start := time.Now()
	params := &stripe.CountrySpecParams{}
	params.Context = ctx
	s, err := c.api.CountrySpecs.Get(country, params)
	c.observe(ctx, "country_spec.get", start, err)
	if err != nil {
		return model.CountrySpec{}, mapError(op, errs.FieldCode("country"), err)
	}
	spec = toCountrySpec(s)
	c.mu.Lock()
	c.specs[country] = spec
	c.mu.Unlock()
	return spec, nil
}

// ListCountrySpecs returns every country spec sorted by country.
func (c *Client) ListCountrySpecs(ctx context.Context) ([]model.CountrySpec, error) {
	const op = "stripe.list_country_specs"
	c.mu.RLock()
	cached := c.specsList
	c.mu.RUnlock()
	if cached != nil {
		return cached, nil
	}
	start := time.Now()
	params := &stripe.CountrySpecListParams{}
	params.Context = ctx
	out := []model.CountrySpec{}
	it := c.api.CountrySpecs.List(params)
	for it.Next() {
		out = append(out, toCountrySpec(it.CountrySpec()))
	}
	err := it.Err()
	c.observe(ctx, "country_spec.list", start, err)
	if err != nil {
		return nil, mapError(op, errs.CodeUnknown, err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	c.mu.Lock()
	c.specsList = out
	for _, s := range out {
		c.specs[s.ID] = s
	}
	c.mu.Unlock()
	return out, nil
}
