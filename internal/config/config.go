// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Defaults live in New; Load layers a YAML file and CONNECT_* env vars on top.
// - Validation failures wrap ErrInvalid, unreadable files and env wrap ErrSource.
package config

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"
)

var (
	// ErrInvalid wraps every validation failure.
	ErrInvalid = errors.New("connect config: invalid")
	// ErrSource wraps failures reading or decoding a config source.
	ErrSource = errors.New("connect config: unreadable source")
)

// Storage drivers.
const (
	StorageMemory = "memory"
	StorageRedis  = "redis"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat selects the slog handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// Stripe credentials. WebhookSecret verifies Stripe-Signature headers.
	StripeSecretKey         string `koanf:"stripe_secret_key"`
	StripePublishableKey    string `koanf:"stripe_publishable_key"`
	WebhookSecret           string `koanf:"webhook_secret"`
	StripeMaxNetworkRetries int    `koanf:"stripe_max_network_retries"`

	// JWTSecret signs and verifies bearer identities.
	JWTSecret string `koanf:"jwt_secret"`
	JWTIssuer string `koanf:"jwt_issuer"`

	// StorageDriver is "memory" or "redis".
	StorageDriver string `koanf:"storage_driver"`
	StoragePrefix string `koanf:"storage_prefix"`
	RedisAddr     string `koanf:"redis_addr"`
	RedisPassword string `koanf:"redis_password"`
	RedisDB       int    `koanf:"redis_db"`

	// PageSize is the default list page size, MaxPageSize caps ?limit.
	PageSize    int `koanf:"page_size"`
	MaxPageSize int `koanf:"max_page_size"`

	// TrustedProxies lists comma-separated CIDRs or addresses of reverse
	// proxies whose X-Forwarded-For header is believed.
	TrustedProxies string `koanf:"trusted_proxies"`

	// Webhook dispatch.
	QueueSize   int `koanf:"queue_size"`
	WorkerCount int `koanf:"worker_count"`
	DedupeSize  int `koanf:"dedupe_size"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:                "info",
		LogFormat:               "text",
		Addr:                    ":9080",
		StripeMaxNetworkRetries: 2,
		JWTIssuer:               "stripe-connect",
		StorageDriver:           StorageMemory,
		StoragePrefix:           "connect:",
		RedisAddr:               "localhost:6379",
		PageSize:                10,
		MaxPageSize:             100,
		QueueSize:               10_000,
		WorkerCount:             4,
		DedupeSize:              50_000,
	}
}

// Validate checks the fields the service cannot run without.
func (c *Config) Validate() error {
	var problems []string
	if strings.TrimSpace(c.Addr) == "" {
		problems = append(problems, "addr must not be empty")
	}
	if c.StripeSecretKey == "" {
		problems = append(problems, "stripe_secret_key is required")
	} else if !strings.HasPrefix(c.StripeSecretKey, "sk_test_") && !strings.HasPrefix(c.StripeSecretKey, "sk_live_") &&
		!strings.HasPrefix(c.StripeSecretKey, "rk_test_") && !strings.HasPrefix(c.StripeSecretKey, "rk_live_") {
		problems = append(problems, "stripe_secret_key must be a secret or restricted key")
	}
	if c.WebhookSecret == "" {
		problems = append(problems, "webhook_secret is required")
	}
	if c.JWTSecret == "" {
		problems = append(problems, "jwt_secret is required")
	}
	switch c.StorageDriver {
	case StorageMemory:
	case StorageRedis:
		if c.RedisAddr == "" {
			problems = append(problems, "redis_addr is required for the redis driver")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown storage_driver %q", c.StorageDriver))
	}
	if _, err := ParseProxies(c.TrustedProxies); err != nil {
		problems = append(problems, err.Error())
	}
	if c.PageSize < 1 {
		problems = append(problems, "page_size must be positive")
	}
	if c.MaxPageSize < c.PageSize {
		problems = append(problems, "max_page_size must be >= page_size")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

// LiveMode reports whether the Stripe key targets live data.
func (c *Config) LiveMode() bool {
	return strings.HasPrefix(c.StripeSecretKey, "sk_live_") || strings.HasPrefix(c.StripeSecretKey, "rk_live_")
}

// Proxies returns the parsed TrustedProxies. Entries are checked by Validate.
func (c *Config) Proxies() []netip.Prefix {
	out, _ := ParseProxies(c.TrustedProxies)
	return out
}

// ParseProxies parses a comma-separated list of CIDRs and bare addresses.
func ParseProxies(list string) ([]netip.Prefix, error) {
	var out []netip.Prefix
	for _, item := range strings.Split(list, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if p, err := netip.ParsePrefix(item); err == nil {
			out = append(out, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(item)
		if err != nil {
			return nil, fmt.Errorf("trusted_proxies: bad entry %q", item)
		}
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}
