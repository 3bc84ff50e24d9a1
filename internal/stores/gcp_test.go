package stores

import (
	"context"
	"encoding/json"
	"testing"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/hostops/credbroker/pkg/secretstore"
)

// fakeSecretManager implements SecretManagerAPI over a map keyed by full
// secret resource name.
type fakeSecretManager struct {
	payloads map[string][]byte
}

func newFakeSecretManager() *fakeSecretManager {
	return &fakeSecretManager{payloads: make(map[string][]byte)}
}

func (f *fakeSecretManager) AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error) {
	name := req.GetName()
	// Trim the "/versions/latest" suffix.
	name = name[:len(name)-len("/versions/latest")]
	data, ok := f.payloads[name]
	if !ok {
		return nil, status.Error(codes.NotFound, "secret not found")
	}
	return &secretmanagerpb.AccessSecretVersionResponse{
		Payload: &secretmanagerpb.SecretPayload{Data: data},
	}, nil
}

func (f *fakeSecretManager) AddSecretVersion(ctx context.Context, req *secretmanagerpb.AddSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.SecretVersion, error) {
	if _, ok := f.payloads[req.GetParent()]; !ok {
		return nil, status.Error(codes.NotFound, "secret not found")
	}
	f.payloads[req.GetParent()] = req.GetPayload().GetData()
	return &secretmanagerpb.SecretVersion{}, nil
}

func (f *fakeSecretManager) CreateSecret(ctx context.Context, req *secretmanagerpb.CreateSecretRequest, opts ...gax.CallOption) (*secretmanagerpb.Secret, error) {
	name := req.GetParent() + "/secrets/" + req.GetSecretId()
	if _, ok := f.payloads[name]; ok {
		return nil, status.Error(codes.AlreadyExists, "secret exists")
	}
	f.payloads[name] = nil
	return &secretmanagerpb.Secret{Name: name}, nil
}

func (f *fakeSecretManager) GetSecret(ctx context.Context, req *secretmanagerpb.GetSecretRequest, opts ...gax.CallOption) (*secretmanagerpb.Secret, error) {
	if _, ok := f.payloads[req.GetName()]; !ok {
		return nil, status.Error(codes.NotFound, "secret not found")
	}
	return &secretmanagerpb.Secret{Name: req.GetName()}, nil
}

func (f *fakeSecretManager) ListSecrets(ctx context.Context, req *secretmanagerpb.ListSecretsRequest, opts ...gax.CallOption) *secretmanager.SecretIterator {
	return nil
}

func newTestGCPStore(t *testing.T, fake *fakeSecretManager) *GCPStore {
	t.Helper()
	store, err := NewGCPStore(map[string]interface{}{"project_id": "acme-prod"},
		WithSecretManagerClient(fake))
	require.NoError(t, err)
	return store
}

func TestGCPStoreRoundTrip(t *testing.T) {
	t.Parallel()

	fake := newFakeSecretManager()
	store := newTestGCPStore(t, fake)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "db.prod/01", secretstore.Secret{
		Username: "svc",
		Password: "pw-one",
	}, false))

	got, err := store.Fetch(ctx, "db.prod/01")
	require.NoError(t, err)
	assert.Equal(t, "pw-one", got.Password)

	// Resource names use the sanitized secret ID.
	data := fake.payloads["projects/acme-prod/secrets/db-prod-01"]
	var payload map[string]string
	require.NoError(t, json.Unmarshal(data, &payload))
	assert.Equal(t, "svc", payload[secretstore.KeyUsername])
}

func TestGCPStoreNotFound(t *testing.T) {
	t.Parallel()

	store := newTestGCPStore(t, newFakeSecretManager())
	_, err := store.Fetch(context.Background(), "ghost-server")

	var notFound secretstore.NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestGCPStoreConflictWithoutOverwrite(t *testing.T) {
	t.Parallel()

	store := newTestGCPStore(t, newFakeSecretManager())
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "db-01", secretstore.Secret{Password: "a"}, false))
	err := store.Put(ctx, "db-01", secretstore.Secret{Password: "b"}, false)

	var conflict secretstore.ConflictError
	assert.ErrorAs(t, err, &conflict)
}

func TestGCPStoreRequiresProject(t *testing.T) {
	t.Parallel()

	_, err := NewGCPStore(map[string]interface{}{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "project_id")
}

func TestGCPStoreMapError(t *testing.T) {
	t.Parallel()

	store := newTestGCPStore(t, newFakeSecretManager())

	var denied secretstore.AccessDeniedError
	assert.ErrorAs(t, store.mapError(status.Error(codes.PermissionDenied, "no"), "s"), &denied)

	var unavailable secretstore.UnavailableError
	assert.ErrorAs(t, store.mapError(status.Error(codes.Unavailable, "down"), "s"), &unavailable)
}
