package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hostops/credbroker/internal/config"
	cberrors "github.com/hostops/credbroker/internal/errors"
	"github.com/hostops/credbroker/internal/logging"
	"github.com/hostops/credbroker/internal/rotation"
	"github.com/hostops/credbroker/pkg/secretstore"
)

func NewRotateCommand(cfg *config.Config) *cobra.Command {
	var (
		serverName    string
		force         bool
		materialStdin bool
		repair        bool
	)

	cmd := &cobra.Command{
		Use:   "rotate",
		Short: "Rotate a server's secret and revoke its sessions",
		Long: `Replace the server's password in the secret store with newly
generated material and revoke every outstanding session for it.

By default a random password is generated. With --material-stdin the new
password is read from the first line of standard input instead, so it
never appears in the process argument list. Rotating back to a recently
used value is rejected unless --force is given.

Examples:
  # Rotate with a generated password
  credbroker rotate --server db-prod-01

  # Rotate to operator-supplied material
  printf '%s' "$NEW_PASSWORD" | credbroker rotate --server db-prod-01 --material-stdin`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if serverName == "" {
				return cberrors.UserError{
					Message:    "Server name is required",
					Suggestion: "Use --server <name> to name the target server",
				}
			}

			if err := cfg.Load(); err != nil {
				return err
			}

			if repair {
				sessions := openSessionStore(cfg)
				coord := rotation.NewCoordinator(nil, sessions, cfg.Logger, 0, 0)
				count, err := coord.RepairInvalidate(serverName)
				if err != nil {
					return cberrors.UserError{
						Message:    fmt.Sprintf("Failed to revoke sessions for '%s'", serverName),
						Details:    err.Error(),
						Suggestion: "Check permissions on the session directory and retry",
						Err:        err,
					}
				}
				cfg.Logger.Info("✓ Revoked %d session(s) for %s", count, serverName)
				return nil
			}

			var material []byte
			if materialStdin {
				scanner := bufio.NewScanner(os.Stdin)
				if scanner.Scan() {
					material = []byte(scanner.Text())
				}
				if err := scanner.Err(); err != nil {
					return cberrors.UserError{
						Message: "Failed to read credential material from stdin",
						Details: err.Error(),
						Err:     err,
					}
				}
				if len(material) == 0 {
					return cberrors.UserError{
						Message:    "No credential material on stdin",
						Suggestion: "Pipe the new password in, or drop --material-stdin to generate one",
					}
				}
			}

			store, err := buildStore(cfg)
			if err != nil {
				return err
			}
			sessions := openSessionStore(cfg)

			passwordLength := 0
			if cfg.Definition != nil {
				passwordLength = cfg.Definition.Rotation.PasswordLength
			}
			coord := rotation.NewCoordinator(store, sessions, cfg.Logger, passwordLength, cfg.RecencyWindow())
			coord.Force = force

			ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
			defer cancel()

			// The coordinator zeroes material in place; keep a copy so
			// error text can still be scrubbed afterwards.
			supplied := string(material)
			if err := coord.Rotate(ctx, serverName, material); err != nil {
				return rotateError(serverName, err, supplied)
			}

			cfg.Logger.Info("✓ Rotation complete for %s", serverName)
			return nil
		},
	}

	cmd.Flags().StringVar(&serverName, "server", "", "Server name (required)")
	cmd.Flags().BoolVar(&force, "force", false, "Allow reuse of recently used credential values")
	cmd.Flags().BoolVar(&materialStdin, "material-stdin", false, "Read the new password from stdin instead of generating one")
	cmd.Flags().BoolVar(&repair, "repair", false, "Only retry session revocation after a partial rotation failure")

	_ = cmd.MarkFlagRequired("server")

	return cmd
}

// rotateError maps coordinator failures to operator guidance. supplied
// is the operator-provided material, scrubbed from any error text in
// case the store's SDK echoed the request payload.
func rotateError(serverName string, err error, supplied string) error {
	var partial rotation.PartialFailureError
	if errors.As(err, &partial) {
		return cberrors.UserError{
			Message:    fmt.Sprintf("Secret for '%s' was rotated, but its sessions could not be revoked", serverName),
			Details:    err.Error(),
			Suggestion: fmt.Sprintf("Stale sessions may still look active. Run 'credbroker rotate --server %s --repair' once the session directory is healthy; revocation is safe to repeat", serverName),
			Err:        err,
		}
	}

	var recent rotation.RecentValueError
	if errors.As(err, &recent) {
		return cberrors.UserError{
			Message:    fmt.Sprintf("The new value for '%s' was used recently", serverName),
			Suggestion: "Provide different material, or pass --force to override the reuse guard",
			Err:        err,
		}
	}

	var notFound secretstore.NotFoundError
	if errors.As(err, &notFound) {
		return cberrors.UserError{
			Message:    fmt.Sprintf("No secret exists for server '%s'", serverName),
			Suggestion: "Rotation replaces an existing secret. Provision the secret in the store first",
			Err:        err,
		}
	}

	return cberrors.UserError{
		Message:    fmt.Sprintf("Rotation failed for '%s'", serverName),
		Details:    logging.Redact(err.Error(), []string{supplied}),
		Suggestion: cberrors.StoreSuggestion(err),
		Err:        err,
	}
}
