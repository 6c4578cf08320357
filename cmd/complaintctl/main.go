package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/complaint-service/internal/auth"
	"github.com/spec-kit/complaint-service/internal/config"
	"github.com/spec-kit/complaint-service/internal/domain"
	"github.com/spec-kit/complaint-service/internal/observability"
	"github.com/spec-kit/complaint-service/internal/persistence"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "complaintctl",
		Short:        "Operator tooling for the complaint service",
		SilenceUsage: true,
	}
	root.AddCommand(newTokenCmd(), newMigrateCmd())
	return root
}

func newTokenCmd() *cobra.Command {
	var (
		subjectID string
		role      string
		secret    string
		ttl       int
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for an existing resident or staff member",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if secret == "" {
				secret = cfg.Auth.JWTSecret
			}
			if ttl <= 0 {
				ttl = cfg.Auth.AccessTokenTTLMinutes
			}

			r := domain.Role(strings.ToUpper(strings.TrimSpace(role)))
			if !r.IsValid() {
				return fmt.Errorf("unknown role %q", role)
			}
			subject := domain.SubjectTypeStaff
			if r == domain.RoleResident {
				subject = domain.SubjectTypeResident
			}

			token, expires, err := auth.NewTokenManager(secret, ttl).GenerateToken(subjectID, subject, r)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s\n# expires %s\n", token, expires.Format(time.RFC3339))
			return err
		},
	}
	cmd.Flags().StringVar(&subjectID, "id", "", "resident or staff id")
	cmd.Flags().StringVar(&role, "role", string(domain.RoleResident), "RESIDENT, STAFF or ADMIN")
	cmd.Flags().StringVar(&secret, "secret", "", "signing secret (defaults to AUTH_JWT_SECRET)")
	cmd.Flags().IntVar(&ttl, "ttl", 0, "lifetime in minutes (defaults to AUTH_ACCESS_TOKEN_TTL_MINUTES)")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func newMigrateCmd() *cobra.Command {
	var dsn string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded schema migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if dsn == "" {
				dsn = cfg.Postgres.DSN
			}
			if dsn == "" {
				return fmt.Errorf("no database: set --dsn or POSTGRES_DSN")
			}

			logger, err := observability.NewLogger(cfg.Logger, cfg.App)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck
			if err := persistence.RunMigrations(dsn, logger.With(zap.String("command", "migrate"))); err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
			return err
		},
	}
	cmd.Flags().StringVar(&dsn, "dsn", "", "postgres url (defaults to POSTGRES_DSN)")
	return cmd
}
