package model_test

import (
	"testing"

	"github.com/smartystreets/goconvey/convey"

	model "github.com/okian/stripe-connect/internal/domain/model"
	"github.com/okian/stripe-connect/internal/domain/errs"
	"github.com/okian/stripe-connect/internal/domain/registration"
)

func TestFormatAmount(t *testing.T) {
	convey.Convey("Given payout amounts in minor units", t, func() {
		convey.So(model.FormatAmount(1234, "eur"), convey.ShouldEqual, "12.34")
		convey.So(model.FormatAmount(5, "usd"), convey.ShouldEqual, "0.05")
		convey.So(model.FormatAmount(-250, "gbp"), convey.ShouldEqual, "-2.50")
		convey.So(model.FormatAmount(1234, "JPY"), convey.ShouldEqual, "1234")
		convey.So(model.FormatAmount(0, "eur"), convey.ShouldEqual, "0.00")
		convey.So(model.FormatAmount(1234, "kwd"), convey.ShouldEqual, "1.234")
		convey.So(model.FormatAmount(50, "BHD"), convey.ShouldEqual, "0.050")
		convey.So(model.FormatAmount(-7, "tnd"), convey.ShouldEqual, "-0.007")
	})
}

func TestParsePage(t *testing.T) {
	convey.Convey("Given pagination query values", t, func() {
		convey.Convey("When nothing is given", func() {
			p, err := model.ParsePage("", "", "", 10, 100)
			convey.So(err, convey.ShouldBeNil)
			convey.So(p, convey.ShouldResemble, model.Page{Limit: 10})
		})

		convey.Convey("When offset and limit are given", func() {
			p, err := model.ParsePage("20", "5", "", 10, 100)
			convey.So(err, convey.ShouldBeNil)
			convey.So(p.Offset, convey.ShouldEqual, 20)
			convey.So(p.Limit, convey.ShouldEqual, 5)
		})

		convey.Convey("When values are out of range", func() {
			_, err := model.ParsePage("-1", "", "", 10, 100)
			convey.So(errs.CodeOf(err), convey.ShouldEqual, "invalid-offset")

			_, err = model.ParsePage("", "0", "", 10, 100)
			convey.So(errs.CodeOf(err), convey.ShouldEqual, "invalid-limit")

			_, err = model.ParsePage("", "101", "", 10, 100)
			convey.So(errs.CodeOf(err), convey.ShouldEqual, "invalid-limit")

			_, err = model.ParsePage("", "", "maybe", 10, 100)
			convey.So(errs.CodeOf(err), convey.ShouldEqual, "invalid-all")
		})
	})
}

func TestCountrySpec(t *testing.T) {
	convey.Convey("Given a country spec", t, func() {
		spec := model.CountrySpec{
			ID:              "DE",
			DefaultCurrency: "eur",
			SupportedBankAccountCurrencies: map[string][]string{
				"eur": {"AT", "DE", "FR"},
				"usd": {"US"},
			},
			VerificationFields: map[string]model.VerificationFields{
				"company": {Minimum: []string{"company.name"}, Additional: []string{"company.tax_id"}},
			},
		}

		convey.Convey("Then requirements are selected by business type", func() {
			req := spec.Requirements(registration.BusinessCompany)
			convey.So(req.Country, convey.ShouldEqual, "DE")
			convey.So(req.Minimum, convey.ShouldResemble, []string{"company.name"})
			convey.So(spec.Requirements(registration.BusinessIndividual).Minimum, convey.ShouldBeEmpty)
		})

		convey.Convey("Then bank currencies are checked against countries", func() {
			convey.So(spec.SupportsCurrency("eur", "DE"), convey.ShouldBeTrue)
			convey.So(spec.SupportsCurrency("eur", "US"), convey.ShouldBeFalse)
			convey.So(spec.SupportsCurrency("usd", ""), convey.ShouldBeTrue)
			convey.So(spec.SupportsCurrency("gbp", "DE"), convey.ShouldBeFalse)
		})
	})

	convey.Convey("Given persons with several relationships", t, func() {
		convey.So(model.RoleOf(model.Person{Owner: true, Director: true}), convey.ShouldEqual, registration.RoleOwner)
		convey.So(model.RoleOf(model.Person{Representative: true, Owner: true}), convey.ShouldEqual, registration.RoleRepresentative)
		convey.So(model.RoleOf(model.Person{Director: true}), convey.ShouldEqual, registration.RoleDirector)
		convey.So(model.RoleOf(model.Person{}), convey.ShouldEqual, "")
	})
}
