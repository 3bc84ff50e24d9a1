package commands

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/hostops/credbroker/internal/config"
	cberrors "github.com/hostops/credbroker/internal/errors"
)

func NewSessionsCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List active sessions",
		Long: `List every active session in the local session store with its
server, identifier, and expiry. Expired and revoked sessions are not
shown; use 'credbroker cleanup' to remove their records.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Load(); err != nil {
				return err
			}

			store := openSessionStore(cfg)
			active, err := store.ListActive()
			if err != nil {
				return cberrors.UserError{
					Message:    "Failed to read the session store",
					Details:    err.Error(),
					Suggestion: "Check permissions on the session directory",
					Err:        err,
				}
			}

			if len(active) == 0 {
				cfg.Logger.Info("No active sessions")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SERVER\tSESSION\tISSUED\tEXPIRES")
			now := time.Now()
			for _, s := range active {
				expires := s.ExpiresAt.Format(time.RFC3339)
				if s.ExpiresAt.After(now) {
					expires = fmt.Sprintf("%s (in %s)", expires, s.ExpiresAt.Sub(now).Round(time.Second))
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					s.ServerName, s.ID, s.IssuedAt.Format(time.RFC3339), expires)
			}
			return w.Flush()
		},
	}

	return cmd
}
