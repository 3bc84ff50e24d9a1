package commands

import (
	"time"

	"github.com/hostops/credbroker/internal/audit"
	"github.com/hostops/credbroker/internal/config"
	"github.com/hostops/credbroker/internal/session"
	"github.com/hostops/credbroker/internal/stores"
	"github.com/hostops/credbroker/pkg/secretstore"
)

// storeTimeout bounds every remote store call so a missing network route
// surfaces as Unavailable instead of a hang.
const storeTimeout = 30 * time.Second

// buildStore constructs the configured backend with audit events fanned
// out to the logger and the Prometheus counters.
func buildStore(cfg *config.Config) (secretstore.Store, error) {
	backend, options, err := cfg.StoreBackend()
	if err != nil {
		return nil, err
	}
	sink := audit.Fanout{
		audit.NewLoggerSink(cfg.Logger),
		audit.NewMetricsSink(),
	}
	return stores.New(backend, options, sink)
}

// openSessionStore opens the file-backed session store at the configured
// directory, falling back to the user-private default location.
func openSessionStore(cfg *config.Config) *session.FileStore {
	dir := ""
	if cfg.Definition != nil {
		dir = cfg.Definition.SessionDir
	}
	if dir == "" {
		dir = session.DefaultBaseDir()
	}
	return session.NewFileStore(dir, cfg.Logger)
}
