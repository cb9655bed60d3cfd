package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"accountguard/internal/model/account"
	"accountguard/internal/pkg/apperr"
	"accountguard/internal/pkg/clock"
	"accountguard/internal/pkg/id"
	"accountguard/internal/pkg/password"
	"accountguard/internal/pkg/validate"
	"accountguard/internal/repository/storefactory"
	"accountguard/internal/service/username"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create a local user with a password",
	Long: `Create a password user for local testing. The username is allocated from the
email local part unless --username is given. Existing users are left untouched.`,
	RunE: runSeed,
}

var (
	seedEmail    string
	seedPassword string
	seedUsername string
	seedVerified bool
)

func init() {
	rootCmd.AddCommand(seedCmd)

	flags := seedCmd.Flags()
	flags.StringVar(&seedEmail, "email", "admin@example.com", "user email")
	flags.StringVar(&seedPassword, "password", "admin12345", "user password (min 8 chars)")
	flags.StringVar(&seedUsername, "username", "", "fixed username (default: allocated from email)")
	flags.BoolVar(&seedVerified, "verified", false, "mark the email as verified")
}

func runSeed(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	email := strings.ToLower(strings.TrimSpace(seedEmail))
	if !validate.Email(email) {
		return fmt.Errorf("invalid email: %s", seedEmail)
	}
	hashed, err := password.Hash(seedPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	stores, err := storefactory.New(cfg)
	if err != nil {
		return err
	}
	ctx := context.Background()
	defer func() {
		_ = stores.Close(ctx)
	}()

	// 已存在则跳过
	existing, err := stores.Users.FindByEmail(ctx, email)
	if err == nil {
		log.Info().Str("user_id", existing.ID).Str("username", existing.Username).Msg("user already exists, skipped")
		return nil
	}
	if !apperr.Is(err, apperr.KindNotFound) {
		return fmt.Errorf("query user: %w", err)
	}

	clk := clock.Real()
	now := clk.Now()
	var created *account.User
	reserve := func(ctx context.Context, name string) error {
		user := &account.User{
			ID:            id.New(),
			Username:      name,
			Email:         email,
			Password:      hashed,
			Provider:      "local",
			EmailVerified: seedVerified,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if seedVerified {
			user.EmailVerifiedAt = &now
		}
		if err := stores.Users.Create(ctx, user); err != nil {
			return err
		}
		created = user
		return nil
	}

	if seedUsername != "" {
		if !validate.Username(seedUsername) {
			return errors.New("username must be 8-20 characters of [a-zA-Z0-9._-]")
		}
		if err := reserve(ctx, seedUsername); err != nil {
			return fmt.Errorf("create user: %w", err)
		}
	} else {
		svc := username.NewService(stores.Users, clk, &cfg.Username)
		profile := username.Profile{Emails: []string{email}}
		if _, err := svc.Allocator().Allocate(ctx, profile, "local", reserve); err != nil {
			return fmt.Errorf("allocate username: %w", err)
		}
	}

	fmt.Printf("User created: id=%s username=%s email=%s verified=%t\n",
		created.ID, created.Username, created.Email, seedVerified)
	return nil
}
