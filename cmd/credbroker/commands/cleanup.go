package commands

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/hostops/credbroker/internal/config"
	cberrors "github.com/hostops/credbroker/internal/errors"
)

func NewCleanupCommand(cfg *config.Config) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Remove expired and revoked session records",
		Long: `Garbage-collect terminal session records from the local session
store. Only sessions that are expired or revoked AND whose expiry lies
further in the past than --older-than are removed; active sessions are
never touched.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Load(); err != nil {
				return err
			}

			store := openSessionStore(cfg)
			if err := store.Cleanup(olderThan); err != nil {
				return cberrors.UserError{
					Message:    "Session cleanup failed",
					Details:    err.Error(),
					Suggestion: "Check permissions on the session directory",
					Err:        err,
				}
			}
			cfg.Logger.Info("✓ Cleanup complete")
			return nil
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 24*time.Hour, "Only remove records whose expiry is older than this")

	return cmd
}
