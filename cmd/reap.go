package cmd

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"accountguard/internal/pkg/clock"
	"accountguard/internal/pkg/mailer"
	"accountguard/internal/repository/storefactory"
	"accountguard/internal/worker"
)

var reapCmd = &cobra.Command{
	Use:   "reap",
	Short: "Run one token reaper pass",
	Long: `Delete expired verification tokens and retry due outbox deliveries once, then exit.
Intended for cron-style scheduling when the server runs with reaper_interval 0.`,
	RunE: runReap,
}

func init() {
	rootCmd.AddCommand(reapCmd)
}

func runReap(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	stores, err := storefactory.New(cfg)
	if err != nil {
		return err
	}
	ctx := context.Background()
	defer func() {
		_ = stores.Close(ctx)
	}()

	notifier, err := mailer.New(&cfg.Mail)
	if err != nil {
		return err
	}

	reaper := worker.NewReaper(stores.Tokens, stores.Outbox, notifier, clock.Real(), 0)
	if err := reaper.RunOnce(ctx); err != nil {
		return fmt.Errorf("reaper pass: %w", err)
	}

	log.Info().Str("store", stores.Driver).Msg("reaper pass finished")
	return nil
}
