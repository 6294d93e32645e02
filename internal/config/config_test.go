package config_test

import (
	"errors"
	"testing"

	"github.com/okian/stripe-connect/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func validConfig() *config.Config {
	cfg := config.New()
	cfg.StripeSecretKey = "sk_test_123"
	cfg.WebhookSecret = "whsec_123"
	cfg.JWTSecret = "secret"
	return cfg
}

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.LogLevel, convey.ShouldEqual, "info")
			convey.So(cfg.StorageDriver, convey.ShouldEqual, config.StorageMemory)
			convey.So(cfg.StoragePrefix, convey.ShouldEqual, "connect:")
			convey.So(cfg.PageSize, convey.ShouldEqual, 10)
			convey.So(cfg.MaxPageSize, convey.ShouldEqual, 100)
			convey.So(cfg.QueueSize, convey.ShouldEqual, 10_000)
			convey.So(cfg.WorkerCount, convey.ShouldEqual, 4)
			convey.So(cfg.DedupeSize, convey.ShouldEqual, 50_000)
			convey.So(cfg.JWTIssuer, convey.ShouldEqual, "stripe-connect")
		})

		convey.Convey("Then defaults alone do not validate", func() {
			err := cfg.Validate()
			convey.So(errors.Is(err, config.ErrInvalid), convey.ShouldBeTrue)
			convey.So(err.Error(), convey.ShouldContainSubstring, "stripe_secret_key is required")
			convey.So(err.Error(), convey.ShouldContainSubstring, "webhook_secret is required")
			convey.So(err.Error(), convey.ShouldContainSubstring, "jwt_secret is required")
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given a config with credentials", t, func() {
		cfg := validConfig()

		convey.Convey("Then it validates", func() {
			convey.So(cfg.Validate(), convey.ShouldBeNil)
			convey.So(cfg.LiveMode(), convey.ShouldBeFalse)
		})

		convey.Convey("When trusted proxies are listed", func() {
			cfg.TrustedProxies = "10.0.0.0/8, 192.0.2.7"
			convey.So(cfg.Validate(), convey.ShouldBeNil)
			proxies := cfg.Proxies()
			convey.So(proxies, convey.ShouldHaveLength, 2)
			convey.So(proxies[0].String(), convey.ShouldEqual, "10.0.0.0/8")
			convey.So(proxies[1].String(), convey.ShouldEqual, "192.0.2.7/32")
		})

		convey.Convey("When a trusted proxy entry is malformed", func() {
			cfg.TrustedProxies = "10.0.0.0/8,proxy.internal"
			err := cfg.Validate()
			convey.So(errors.Is(err, config.ErrInvalid), convey.ShouldBeTrue)
			convey.So(err.Error(), convey.ShouldContainSubstring, "trusted_proxies")
		})

		convey.Convey("When the key is a publishable key", func() {
			cfg.StripeSecretKey = "pk_test_123"
			convey.So(cfg.Validate(), convey.ShouldNotBeNil)
		})

		convey.Convey("When the key is live", func() {
			cfg.StripeSecretKey = "sk_live_123"
			convey.So(cfg.Validate(), convey.ShouldBeNil)
			convey.So(cfg.LiveMode(), convey.ShouldBeTrue)
		})

		convey.Convey("When the storage driver is unknown", func() {
			cfg.StorageDriver = "etcd"
			err := cfg.Validate()
			convey.So(err, convey.ShouldNotBeNil)
			convey.So(err.Error(), convey.ShouldContainSubstring, `unknown storage_driver "etcd"`)
		})

		convey.Convey("When redis is selected without an address", func() {
			cfg.StorageDriver = config.StorageRedis
			cfg.RedisAddr = ""
			convey.So(cfg.Validate(), convey.ShouldNotBeNil)
		})

		convey.Convey("When max_page_size is below page_size", func() {
			cfg.PageSize = 20
			cfg.MaxPageSize = 5
			convey.So(cfg.Validate(), convey.ShouldNotBeNil)
		})
	})
}
