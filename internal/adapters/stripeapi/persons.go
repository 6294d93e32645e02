package stripeapi

import (
	"context"
	"time"

	"github.com/stripe/stripe-go/v81"

	"github.com/okian/stripe-connect/internal/domain/errs"
	"github.com/okian/stripe-connect/internal/domain/model"
	"github.com/okian/stripe-connect/internal/domain/registration"
)

// CreatePerson adds a person with role to a company account. Fields are
// person-relative dotted paths (first_name, relationship.title).
func (c *Client) CreatePerson(ctx context.Context, stripeID, role string, u Update) (model.Person, error) {
	const op = "stripe.create_person"
	start := time.Now()
	params := &stripe.PersonParams{Account: stripe.String(stripeID)}
	write(ctx, &params.Params)
	u.apply(&params.Params)
	if flag := relationshipFlag(role); flag != "" {
		params.AddExtra("relationship["+flag+"]", "true")
	}
	p, err := c.api.Persons.New(params)
	c.observe(ctx, "person.create", start, err)
	if err != nil {
		return model.Person{}, mapError(op, errs.CodeInvalidPerson, err)
	}
	return toPersonWithRole(p, role), nil
}

// GetPerson fetches a person of an account.
func (c *Client) GetPerson(ctx context.Context, stripeID, personID string) (model.Person, error) {
	const op = "stripe.get_person"
	start := time.Now()
	params := &stripe.PersonParams{Account: stripe.String(stripeID)}
	params.Context = ctx
	p, err := c.api.Persons.Get(personID, params)
	c.observe(ctx, "person.get", start, err)
	if err != nil {
		return model.Person{}, mapError(op, errs.CodeInvalidPersonID, err)
	}
	return toPerson(p), nil
}

// UpdatePerson applies u to a person.
func (c *Client) UpdatePerson(ctx context.Context, stripeID, personID string, u Update) (model.Person, error) {
	const op = "stripe.update_person"
	start := time.Now()
	params := &stripe.PersonParams{Account: stripe.String(stripeID)}
	write(ctx, &params.Params)
	u.apply(&params.Params)
	p, err := c.api.Persons.Update(personID, params)
	c.observe(ctx, "person.update", start, err)
	if err != nil {
		return model.Person{}, mapError(op, errs.CodeInvalidPersonID, err)
	}
	return toPerson(p), nil
}

// DeletePerson removes a person from an account.
func (c *Client) DeletePerson(ctx context.Context, stripeID, personID string) error {
	const op = "stripe.delete_person"
	start := time.Now()
	params := &stripe.PersonParams{Account: stripe.String(stripeID)}
	write(ctx, &params.Params)
	_, err := c.api.Persons.Del(personID, params)
	c.observe(ctx, "person.delete", start, err)
	return mapError(op, errs.CodeInvalidPersonID, err)
}

// ListPersons lists the persons of an account holding role.
func (c *Client) ListPersons(ctx context.Context, stripeID, role string) ([]model.Person, error) {
	const op = "stripe.list_persons"
	start := time.Now()
	params := &stripe.PersonListParams{
		Account:      stripe.String(stripeID),
		Relationship: &stripe.PersonListRelationshipParams{},
	}
	params.Context = ctx
	switch role {
	case registration.RoleOwner:
		params.Relationship.Owner = stripe.Bool(true)
	case registration.RoleDirector:
		params.Relationship.Director = stripe.Bool(true)
	case registration.RoleRepresentative:
		params.Relationship.Representative = stripe.Bool(true)
	}
	out := []model.Person{}
	it := c.api.Persons.List(params)
	for it.Next() {
		out = append(out, toPersonWithRole(it.Person(), role))
	}
	err := it.Err()
	c.observe(ctx, "person.list", start, err)
	if err != nil {
		return nil, mapError(op, errs.CodeInvalidStripeID, err)
	}
	return out, nil
}

func relationshipFlag(role string) string {
	switch role {
	case registration.RoleOwner:
		return "owner"
	case registration.RoleDirector:
		return "director"
	case registration.RoleRepresentative:
		return "representative"
	}
	return ""
}

// toPersonWithRole converts p and pins its role to the one it was asked for.
func toPersonWithRole(p *stripe.Person, role string) model.Person {
	out := toPerson(p)
	if role != "" {
		out.Role = role
	}
	return out
}
