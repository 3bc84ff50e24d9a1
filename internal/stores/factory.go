package stores

import (
	"context"
	"fmt"
	"sort"

	crederrors "github.com/hostops/credbroker/internal/errors"
	"github.com/hostops/credbroker/pkg/secretstore"
)

// backends maps backend names to constructors. Every constructed store is
// wrapped with audit event emission before it is handed to callers.
var backends = map[string]func(options map[string]interface{}) (secretstore.Store, error){
	"aws.secretsmanager": func(options map[string]interface{}) (secretstore.Store, error) {
		return NewAWSStore(options)
	},
	"gcp.secretmanager": func(options map[string]interface{}) (secretstore.Store, error) {
		return NewGCPStore(options)
	},
	"azure.keyvault": func(options map[string]interface{}) (secretstore.Store, error) {
		return NewAzureStore(options)
	},
	"memory": func(options map[string]interface{}) (secretstore.Store, error) {
		return newSeededMemoryStore(options)
	},
}

// newSeededMemoryStore builds the in-memory backend, optionally seeded
// with secrets from a "seed" option mapping server names to payloads.
// The memory backend holds nothing across invocations, so seeding is the
// only way to make it useful outside of library code.
func newSeededMemoryStore(options map[string]interface{}) (secretstore.Store, error) {
	store := NewMemoryStore()
	seed, ok := options["seed"].(map[string]interface{})
	if !ok {
		return store, nil
	}
	for serverName, raw := range seed {
		entry, ok := raw.(map[string]interface{})
		if !ok {
			return nil, crederrors.ConfigError{
				Field:      "store.seed",
				Value:      serverName,
				Message:    "seed entries must map payload keys to values",
				Suggestion: "Nest username/password pairs under each server name",
			}
		}
		payload := make(map[string]string, len(entry))
		for k, v := range entry {
			payload[k] = fmt.Sprintf("%v", v)
		}
		if err := store.Put(context.Background(), serverName, secretstore.FromPayload(serverName, payload), false); err != nil {
			return nil, err
		}
	}
	return store, nil
}

// Available returns the supported backend names, sorted.
func Available() []string {
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New constructs the named backend and wraps it with the audit sink.
func New(backend string, options map[string]interface{}, sink secretstore.AuditSink) (secretstore.Store, error) {
	construct, ok := backends[backend]
	if !ok {
		return nil, crederrors.ConfigError{
			Field:      "store.backend",
			Value:      backend,
			Message:    "unknown secret store backend",
			Suggestion: fmt.Sprintf("Supported backends: %v", Available()),
		}
	}
	store, err := construct(options)
	if err != nil {
		return nil, err
	}
	return WithAudit(store, sink), nil
}
