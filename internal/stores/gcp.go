package stores

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	crederrors "github.com/hostops/credbroker/internal/errors"
	"github.com/hostops/credbroker/pkg/secretstore"
)

// SecretManagerAPI is the subset of the GCP Secret Manager client the
// broker uses, narrowed for test fakes.
type SecretManagerAPI interface {
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error)
	AddSecretVersion(ctx context.Context, req *secretmanagerpb.AddSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.SecretVersion, error)
	CreateSecret(ctx context.Context, req *secretmanagerpb.CreateSecretRequest, opts ...gax.CallOption) (*secretmanagerpb.Secret, error)
	GetSecret(ctx context.Context, req *secretmanagerpb.GetSecretRequest, opts ...gax.CallOption) (*secretmanagerpb.Secret, error)
	ListSecrets(ctx context.Context, req *secretmanagerpb.ListSecretsRequest, opts ...gax.CallOption) *secretmanager.SecretIterator
}

// GCPStore is a secret store backed by Google Cloud Secret Manager. Each
// managed server maps to one secret; the payload mapping is stored as the
// latest secret version.
type GCPStore struct {
	client    SecretManagerAPI
	projectID string
	prefix    string
}

// GCPOption configures a GCPStore.
type GCPOption func(*GCPStore)

// WithSecretManagerClient injects a custom client, used by tests.
func WithSecretManagerClient(client SecretManagerAPI) GCPOption {
	return func(s *GCPStore) {
		s.client = client
	}
}

// NewGCPStore creates a Secret Manager backed store. Recognized backend
// config keys: "project_id" (required), "credentials_file", "prefix".
func NewGCPStore(backendConfig map[string]interface{}, opts ...GCPOption) (*GCPStore, error) {
	projectID, _ := backendConfig["project_id"].(string)
	if projectID == "" {
		return nil, crederrors.ConfigError{
			Field:      "project_id",
			Message:    "project_id is required for the GCP Secret Manager backend",
			Suggestion: "Set store.options.project_id in the config file",
		}
	}

	store := &GCPStore{projectID: projectID}
	if p, ok := backendConfig["prefix"].(string); ok {
		store.prefix = p
	}

	for _, opt := range opts {
		opt(store)
	}

	if store.client == nil {
		var clientOpts []option.ClientOption
		if keyFile, ok := backendConfig["credentials_file"].(string); ok && keyFile != "" {
			clientOpts = append(clientOpts, option.WithCredentialsFile(keyFile))
		}
		client, err := secretmanager.NewClient(context.Background(), clientOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create GCP Secret Manager client: %w", err)
		}
		store.client = client
	}

	return store, nil
}

// Name implements secretstore.Store.
func (s *GCPStore) Name() string { return "gcp.secretmanager" }

// secretID maps a server name to a Secret Manager secret ID. Secret IDs
// only allow letters, digits, hyphens and underscores.
func (s *GCPStore) secretID(serverName string) string {
	id := s.prefix + serverName
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '-'
		}
	}, id)
}

func (s *GCPStore) secretName(serverName string) string {
	return fmt.Sprintf("projects/%s/secrets/%s", s.projectID, s.secretID(serverName))
}

// Fetch implements secretstore.Store.
func (s *GCPStore) Fetch(ctx context.Context, serverName string) (secretstore.Secret, error) {
	resp, err := s.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: s.secretName(serverName) + "/versions/latest",
	})
	if err != nil {
		return secretstore.Secret{}, s.mapError(err, serverName)
	}

	var payload map[string]string
	if err := json.Unmarshal(resp.GetPayload().GetData(), &payload); err != nil {
		return secretstore.Secret{}, fmt.Errorf("secret '%s' payload is not a flat JSON mapping: %w", serverName, err)
	}
	return secretstore.FromPayload(serverName, payload), nil
}

// Put implements secretstore.Store.
func (s *GCPStore) Put(ctx context.Context, serverName string, secret secretstore.Secret, overwrite bool) error {
	_, getErr := s.client.GetSecret(ctx, &secretmanagerpb.GetSecretRequest{
		Name: s.secretName(serverName),
	})
	exists := getErr == nil
	if getErr != nil && status.Code(getErr) != codes.NotFound {
		return s.mapError(getErr, serverName)
	}

	if exists && !overwrite {
		return secretstore.ConflictError{
			Store:      s.Name(),
			ServerName: serverName,
			Message:    "secret already exists and overwrite was not requested",
		}
	}
	if exists && overwrite && secret.CreatedAt.IsZero() {
		if existing, err := s.Fetch(ctx, serverName); err == nil {
			secret.CreatedAt = existing.CreatedAt
		}
	}
	secret.ServerName = serverName

	if !exists {
		_, err := s.client.CreateSecret(ctx, &secretmanagerpb.CreateSecretRequest{
			Parent:   "projects/" + s.projectID,
			SecretId: s.secretID(serverName),
			Secret: &secretmanagerpb.Secret{
				Replication: &secretmanagerpb.Replication{
					Replication: &secretmanagerpb.Replication_Automatic_{
						Automatic: &secretmanagerpb.Replication_Automatic{},
					},
				},
			},
		})
		if err != nil && status.Code(err) != codes.AlreadyExists {
			return s.mapError(err, serverName)
		}
	}

	data, err := json.Marshal(secret.Payload())
	if err != nil {
		return fmt.Errorf("failed to marshal secret payload: %w", err)
	}

	_, err = s.client.AddSecretVersion(ctx, &secretmanagerpb.AddSecretVersionRequest{
		Parent:  s.secretName(serverName),
		Payload: &secretmanagerpb.SecretPayload{Data: data},
	})
	if err != nil {
		return s.mapError(err, serverName)
	}
	return nil
}

// Exists implements secretstore.Store.
func (s *GCPStore) Exists(ctx context.Context, serverName string) (bool, error) {
	_, err := s.client.GetSecret(ctx, &secretmanagerpb.GetSecretRequest{
		Name: s.secretName(serverName),
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return false, nil
		}
		return false, s.mapError(err, serverName)
	}
	return true, nil
}

// Validate implements secretstore.Store.
func (s *GCPStore) Validate(ctx context.Context) error {
	it := s.client.ListSecrets(ctx, &secretmanagerpb.ListSecretsRequest{
		Parent:   "projects/" + s.projectID,
		PageSize: 1,
	})
	_, err := it.Next()
	if err != nil && err != iterator.Done {
		return secretstore.AccessDeniedError{
			Store:   s.Name(),
			Message: fmt.Sprintf("GCP authentication failed: %v", err),
		}
	}
	return nil
}

func (s *GCPStore) mapError(err error, serverName string) error {
	switch status.Code(err) {
	case codes.NotFound:
		return secretstore.NotFoundError{Store: s.Name(), ServerName: serverName}
	case codes.PermissionDenied, codes.Unauthenticated:
		return secretstore.AccessDeniedError{Store: s.Name(), Message: err.Error()}
	case codes.Aborted, codes.FailedPrecondition:
		return secretstore.ConflictError{Store: s.Name(), ServerName: serverName, Message: err.Error()}
	default:
		return secretstore.UnavailableError{Store: s.Name(), Err: err}
	}
}
