package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/stripe-connect/internal/replay"
	"github.com/okian/stripe-connect/pkg/logger"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg := replay.Config{}
	var verbose bool

	cmd := &cobra.Command{
		Use:   "connect-replay",
		Short: "Sign and post sample Stripe Connect webhook events",
		Long: `Sign and post sample Stripe Connect webhook events to a running service.

Supported types: ` + strings.Join(replay.Types(), ", ") + `

Examples:
  connect-replay --secret whsec_... --account acct_123 --type payout.paid --count 100
  connect-replay --secret whsec_... --account acct_123 --repeat 2 --wait 30s --jwt-secret dev`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := logger.Init(); err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			if verbose {
				_ = logger.SetLevelString("debug")
			}
			r, err := replay.New(cfg, logger.Get().Named("replay"))
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			stats, err := r.Run(ctx)
			fmt.Fprintf(cmd.OutOrStdout(), "sent=%d accepted=%d duplicate=%d backpressure=%d rejected=%d duration=%s\n",
				stats.Sent, stats.Accepted, stats.Duplicate, stats.Backpressure, stats.Rejected,
				stats.Duration.Round(time.Millisecond))
			if err != nil {
				return err
			}
			if stats.Rejected > 0 {
				return fmt.Errorf("%d deliveries rejected", stats.Rejected)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfg.BaseURL, "url", "http://localhost:9080", "base URL of the service")
	f.StringVar(&cfg.Secret, "secret", os.Getenv("CONNECT_WEBHOOK_SECRET"), "webhook signing secret")
	f.StringVar(&cfg.Account, "account", "", "connected account id (acct_...)")
	f.StringVar(&cfg.Type, "type", "payout.paid", "event type")
	f.IntVar(&cfg.Count, "count", 10, "number of distinct events")
	f.IntVar(&cfg.Repeat, "repeat", 1, "deliveries per event")
	f.IntVar(&cfg.Concurrency, "concurrency", 4, "concurrent senders")
	f.DurationVar(&cfg.Timeout, "timeout", 10*time.Second, "HTTP request timeout")
	f.DurationVar(&cfg.Wait, "wait", 0, "poll the service until the events are processed, up to this long")
	f.DurationVar(&cfg.PollInterval, "poll-interval", 250*time.Millisecond, "interval between polls")
	f.StringVar(&cfg.JWTSecret, "jwt-secret", os.Getenv("CONNECT_JWT_SECRET"), "JWT secret; enables the payout count check while waiting")
	f.StringVar(&cfg.JWTIssuer, "jwt-issuer", "stripe-connect", "JWT issuer")
	f.BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	_ = cmd.MarkFlagRequired("account")

	return cmd
}
