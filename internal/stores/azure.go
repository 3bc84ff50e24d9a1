package stores

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"

	crederrors "github.com/hostops/credbroker/internal/errors"
	"github.com/hostops/credbroker/pkg/secretstore"
)

// KeyVaultAPI is the subset of the Azure Key Vault secrets client the
// broker uses, narrowed for test fakes.
type KeyVaultAPI interface {
	GetSecret(ctx context.Context, name string, version string, options *azsecrets.GetSecretOptions) (azsecrets.GetSecretResponse, error)
	SetSecret(ctx context.Context, name string, parameters azsecrets.SetSecretParameters, options *azsecrets.SetSecretOptions) (azsecrets.SetSecretResponse, error)
}

// AzureStore is a secret store backed by Azure Key Vault. Key Vault keeps
// every SetSecret as a new version, so an overwrite never destroys the
// previous value.
type AzureStore struct {
	client KeyVaultAPI
	prefix string
}

// AzureOption configures an AzureStore.
type AzureOption func(*AzureStore)

// WithKeyVaultClient injects a custom client, used by tests.
func WithKeyVaultClient(client KeyVaultAPI) AzureOption {
	return func(s *AzureStore) {
		s.client = client
	}
}

// NewAzureStore creates a Key Vault backed store. Recognized backend
// config keys: "vault_url" (required), "tenant_id", "client_id",
// "client_secret", "use_managed_identity", "prefix". Without explicit
// service principal settings the default Azure credential chain is used.
func NewAzureStore(backendConfig map[string]interface{}, opts ...AzureOption) (*AzureStore, error) {
	vaultURL, _ := backendConfig["vault_url"].(string)

	store := &AzureStore{}
	if p, ok := backendConfig["prefix"].(string); ok {
		store.prefix = p
	}

	for _, opt := range opts {
		opt(store)
	}

	if store.client == nil {
		if vaultURL == "" {
			return nil, crederrors.ConfigError{
				Field:      "vault_url",
				Message:    "vault_url is required for the Azure Key Vault backend",
				Suggestion: "Set store.options.vault_url in the config file",
			}
		}
		cred, err := azureCredential(backendConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to create Azure credential: %w", err)
		}
		client, err := azsecrets.NewClient(vaultURL, cred, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create Key Vault client: %w", err)
		}
		store.client = client
	}

	return store, nil
}

func azureCredential(backendConfig map[string]interface{}) (azcore.TokenCredential, error) {
	useManaged, _ := backendConfig["use_managed_identity"].(bool)
	if useManaged {
		return azidentity.NewManagedIdentityCredential(nil)
	}
	tenantID, _ := backendConfig["tenant_id"].(string)
	clientID, _ := backendConfig["client_id"].(string)
	clientSecret, _ := backendConfig["client_secret"].(string)
	if clientSecret != "" {
		return azidentity.NewClientSecretCredential(tenantID, clientID, clientSecret, nil)
	}
	return azidentity.NewDefaultAzureCredential(nil)
}

// Name implements secretstore.Store.
func (s *AzureStore) Name() string { return "azure.keyvault" }

// secretName maps a server name to a Key Vault secret name. Key Vault
// only allows letters, digits and hyphens.
func (s *AzureStore) secretName(serverName string) string {
	name := s.prefix + serverName
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			return r
		default:
			return '-'
		}
	}, name)
}

// Fetch implements secretstore.Store.
func (s *AzureStore) Fetch(ctx context.Context, serverName string) (secretstore.Secret, error) {
	resp, err := s.client.GetSecret(ctx, s.secretName(serverName), "", nil)
	if err != nil {
		return secretstore.Secret{}, s.mapError(err, serverName)
	}
	if resp.Value == nil {
		return secretstore.Secret{}, fmt.Errorf("secret '%s' has no value", serverName)
	}

	var payload map[string]string
	if err := json.Unmarshal([]byte(*resp.Value), &payload); err != nil {
		return secretstore.Secret{}, fmt.Errorf("secret '%s' payload is not a flat JSON mapping: %w", serverName, err)
	}
	return secretstore.FromPayload(serverName, payload), nil
}

// Put implements secretstore.Store.
func (s *AzureStore) Put(ctx context.Context, serverName string, secret secretstore.Secret, overwrite bool) error {
	existing, fetchErr := s.Fetch(ctx, serverName)
	exists := fetchErr == nil
	if fetchErr != nil {
		var notFound secretstore.NotFoundError
		if !errors.As(fetchErr, &notFound) {
			return fetchErr
		}
	}

	if exists && !overwrite {
		return secretstore.ConflictError{
			Store:      s.Name(),
			ServerName: serverName,
			Message:    "secret already exists and overwrite was not requested",
		}
	}
	if exists && overwrite && secret.CreatedAt.IsZero() {
		secret.CreatedAt = existing.CreatedAt
	}
	secret.ServerName = serverName

	data, err := json.Marshal(secret.Payload())
	if err != nil {
		return fmt.Errorf("failed to marshal secret payload: %w", err)
	}
	value := string(data)

	_, err = s.client.SetSecret(ctx, s.secretName(serverName), azsecrets.SetSecretParameters{
		Value: &value,
	}, nil)
	if err != nil {
		return s.mapError(err, serverName)
	}
	return nil
}

// Exists implements secretstore.Store.
func (s *AzureStore) Exists(ctx context.Context, serverName string) (bool, error) {
	_, err := s.client.GetSecret(ctx, s.secretName(serverName), "", nil)
	if err != nil {
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) && respErr.StatusCode == 404 {
			return false, nil
		}
		return false, s.mapError(err, serverName)
	}
	return true, nil
}

// Validate implements secretstore.Store.
func (s *AzureStore) Validate(ctx context.Context) error {
	// A probe read of a well-known name: 404 proves connectivity and
	// permissions, anything else surfaces the real failure.
	_, err := s.client.GetSecret(ctx, s.secretName("credbroker-probe"), "", nil)
	if err != nil {
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) && respErr.StatusCode == 404 {
			return nil
		}
		return s.mapError(err, "credbroker-probe")
	}
	return nil
}

func (s *AzureStore) mapError(err error, serverName string) error {
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		switch respErr.StatusCode {
		case 404:
			return secretstore.NotFoundError{Store: s.Name(), ServerName: serverName}
		case 401, 403:
			return secretstore.AccessDeniedError{Store: s.Name(), Message: err.Error()}
		case 409, 412:
			return secretstore.ConflictError{Store: s.Name(), ServerName: serverName, Message: err.Error()}
		}
	}
	return secretstore.UnavailableError{Store: s.Name(), Err: err}
}
