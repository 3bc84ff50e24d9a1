package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/hostops/credbroker/internal/config"
	cberrors "github.com/hostops/credbroker/internal/errors"
	"github.com/hostops/credbroker/internal/logging"
	"github.com/hostops/credbroker/internal/render"
	"github.com/hostops/credbroker/internal/session"
	"github.com/hostops/credbroker/internal/token"
	"github.com/hostops/credbroker/pkg/secretstore"
)

func NewGetCommand(cfg *config.Config) *cobra.Command {
	var (
		serverName      string
		durationSeconds int
		format          string
		fresh           bool
	)

	cmd := &cobra.Command{
		Use:   "get",
		Short: "Get a session token for a server",
		Long: `Fetch the server's secret from the configured store, mint a
short-lived session from it, and print the session for shell consumption.

A still-valid session for the server is reused instead of minting a new
one; pass --fresh to force re-issuance.

Examples:
  # Print session as KEY=value lines
  credbroker get --server db-prod-01

  # Source directly into the current shell
  eval "$(credbroker get --server db-prod-01 --format export)"

  # One-hour session as JSON
  credbroker get --server db-prod-01 --duration 3600 --format json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if serverName == "" {
				return cberrors.UserError{
					Message:    "Server name is required",
					Suggestion: "Use --server <name> to name the target server",
				}
			}
			switch format {
			case "env", "export", "json":
			default:
				return cberrors.UserError{
					Message:    fmt.Sprintf("Unknown output format '%s'", format),
					Suggestion: "Use --format env, export, or json",
				}
			}

			if err := cfg.Load(); err != nil {
				return err
			}

			sessions := openSessionStore(cfg)

			if !fresh {
				existing, err := sessions.FindLatest(serverName)
				if err == nil {
					remaining, verr := session.NewValidator(sessions).Validate(existing)
					if verr == nil {
						cfg.Logger.Debug("reusing session %s for %s (%s remaining)",
							logging.Secret(existing.ID), serverName, remaining.Round(time.Second))
						return printSession(existing, format)
					}
					cfg.Logger.Debug("session %s for %s no longer valid: %v",
						logging.Secret(existing.ID), serverName, verr)
				}
			}

			store, err := buildStore(cfg)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
			defer cancel()

			secret, err := store.Fetch(ctx, serverName)
			if err != nil {
				return fetchError(serverName, err)
			}
			if secret.RotationRequired {
				cfg.Logger.Warn("secret for %s is flagged for rotation; run 'credbroker rotate --server %s'",
					serverName, serverName)
			}

			duration := cfg.DefaultDuration()
			if durationSeconds > 0 {
				duration = time.Duration(durationSeconds) * time.Second
			}

			issuer := token.NewIssuer(cfg.MaxDuration(), cfg.Logger)
			sess, err := issuer.Issue(secret, duration)
			if err != nil {
				var invalid token.InvalidDurationError
				if errors.As(err, &invalid) {
					return cberrors.UserError{
						Message:    "Requested session duration is not allowed",
						Details:    err.Error(),
						Suggestion: fmt.Sprintf("Use a --duration between 1 and %d seconds", int(cfg.MaxDuration().Seconds())),
						Err:        err,
					}
				}
				return err
			}

			if err := sessions.Save(sess); err != nil {
				suggestion := "Check permissions on the session directory"
				if cberrors.IsRetryable(err) {
					suggestion = "This is usually transient. Retry the command; if it keeps failing, check permissions on the session directory"
				}
				return cberrors.UserError{
					Message:    "Failed to persist the session",
					Details:    err.Error(),
					Suggestion: suggestion,
					Err:        err,
				}
			}
			cfg.Logger.Debug("issued session %s for %s, expires %s",
				logging.Secret(sess.ID), serverName, sess.ExpiresAt.Format(time.RFC3339))

			return printSession(sess, format)
		},
	}

	cmd.Flags().StringVar(&serverName, "server", "", "Server name (required)")
	cmd.Flags().IntVar(&durationSeconds, "duration", 0, "Session duration in seconds (default from config)")
	cmd.Flags().StringVar(&format, "format", "env", "Output format (env|export|json)")
	cmd.Flags().BoolVar(&fresh, "fresh", false, "Always mint a new session, ignoring reusable ones")

	_ = cmd.MarkFlagRequired("server")

	return cmd
}

func printSession(s session.Session, format string) error {
	mapping := s.ExportMap()
	switch format {
	case "export":
		fmt.Print(render.Export(mapping))
	case "json":
		out, err := render.JSON(mapping)
		if err != nil {
			return err
		}
		_, _ = os.Stdout.Write(out)
	default:
		fmt.Print(render.Env(mapping))
	}
	return nil
}

func fetchError(serverName string, err error) error {
	var notFound secretstore.NotFoundError
	if errors.As(err, &notFound) {
		return cberrors.UserError{
			Message:    fmt.Sprintf("No secret exists for server '%s'", serverName),
			Suggestion: "Check the server name spelling, or provision the secret in the store first",
			Err:        err,
		}
	}
	return cberrors.UserError{
		Message:    fmt.Sprintf("Failed to fetch the secret for '%s'", serverName),
		Details:    err.Error(),
		Suggestion: cberrors.StoreSuggestion(err),
		Err:        err,
	}
}
