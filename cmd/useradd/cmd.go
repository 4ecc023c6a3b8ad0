package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"gitea.jw6.us/james/caldavgw/internal/auth"
	"gitea.jw6.us/james/caldavgw/internal/config"
	"gitea.jw6.us/james/caldavgw/internal/store"
)

type userOptions struct {
	username string
	email    string
	password string
	label    string
}

func (o userOptions) validate() error {
	switch {
	case strings.TrimSpace(o.username) == "":
		return errors.New("--username is required")
	case !strings.Contains(o.email, "@"):
		return errors.New("--email must be an email address")
	case o.password == "":
		return errors.New("--password is required")
	}
	return nil
}

func cmdUserAdd(run func(ctx context.Context, opts userOptions) error) *cobra.Command {
	var opts userOptions
	c := &cobra.Command{
		Use:   "useradd",
		Short: "useradd --username <name> --email <address> --password <app-password> [--label <label>]",
		Long: `Creates or updates a gateway user and stores an app password for it.

CalDAV clients log in with either the username or the email address and the
app password. Running the command again for an existing username updates its
email and adds another app password.`,
		Example:       "useradd --username alice --email alice@example.com --password s3cret --label phone",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.validate(); err != nil {
				return err
			}
			return run(cmd.Context(), opts)
		},
	}
	c.Flags().StringVar(&opts.username, "username", "", "login name of the user")
	c.Flags().StringVar(&opts.email, "email", "", "email address, also used as calendar owner")
	c.Flags().StringVar(&opts.password, "password", "", "app password to store (bcrypt hashed)")
	c.Flags().StringVar(&opts.label, "label", "default", "label of the app password")
	return c
}

func runUserAdd(ctx context.Context, opts userOptions) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	pool, err := pgxpool.New(ctx, cfg.DB.DSN)
	if err != nil {
		return fmt.Errorf("create db pool: %w", err)
	}
	defer pool.Close()

	if err := store.ApplyMigrations(ctx, pool); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	st := store.New(pool)
	user, token, err := provision(ctx, st.Users, st.AppPasswords, opts)
	if err != nil {
		return err
	}
	fmt.Printf("user %s (%s) id=%d, app password %q id=%d\n", user.Username, user.Email, user.ID, token.Label, token.ID)
	return nil
}

func provision(ctx context.Context, users store.UserRepository, passwords store.AppPasswordRepository, opts userOptions) (*store.User, *store.AppPassword, error) {
	hash, err := auth.HashPassword(opts.password)
	if err != nil {
		return nil, nil, err
	}
	user, err := users.Create(ctx, strings.TrimSpace(opts.username), strings.TrimSpace(opts.email))
	if err != nil {
		return nil, nil, err
	}
	token, err := passwords.Create(ctx, store.AppPassword{UserID: user.ID, Label: opts.label, TokenHash: hash})
	if err != nil {
		return nil, nil, err
	}
	return user, token, nil
}
