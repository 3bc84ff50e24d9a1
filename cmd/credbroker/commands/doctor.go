package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/hostops/credbroker/internal/config"
	cberrors "github.com/hostops/credbroker/internal/errors"
	"github.com/hostops/credbroker/internal/session"
)

func NewDoctorCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration and store connectivity",
		Long: `Verify that credbroker is ready to issue sessions.

This command checks:
- Configuration file validity
- Secret store reachability and authentication
- Session directory writability`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.Logger.Info("Checking credbroker configuration...")
			if err := cfg.Load(); err != nil {
				cfg.Logger.Error("Configuration error: %v", err)
				return fmt.Errorf("configuration check failed")
			}
			cfg.Logger.Info("✓ Configuration loaded from %s", cfg.Path)

			failed := false

			store, err := buildStore(cfg)
			if err != nil {
				cfg.Logger.Error("✗ Secret store: %v", err)
				failed = true
			} else {
				ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
				defer cancel()
				if err := store.Validate(ctx); err != nil {
					cfg.Logger.Error("✗ Secret store %s: %v", store.Name(), err)
					if suggestion := cberrors.StoreSuggestion(err); suggestion != "" {
						cfg.Logger.Info("  %s", suggestion)
					}
					failed = true
				} else {
					cfg.Logger.Info("✓ Secret store %s reachable", store.Name())
				}
			}

			sessionDir := cfg.Definition.SessionDir
			if sessionDir == "" {
				sessionDir = session.DefaultBaseDir()
			}
			if err := probeSessionDir(sessionDir); err != nil {
				cfg.Logger.Error("✗ Session directory %s: %v", sessionDir, err)
				failed = true
			} else {
				cfg.Logger.Info("✓ Session directory %s writable", sessionDir)
			}

			if failed {
				return fmt.Errorf("doctor found problems")
			}
			cfg.Logger.Info("✓ All checks passed")
			return nil
		},
	}

	return cmd
}

func probeSessionDir(dir string) error {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}
	probe := filepath.Join(dir, ".doctor-probe")
	if err := os.WriteFile(probe, []byte{}, 0600); err != nil {
		return err
	}
	return os.Remove(probe)
}
