package stores

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hostops/credbroker/pkg/secretstore"
)

// fakeSecretsManager implements SecretsManagerAPI over a map.
type fakeSecretsManager struct {
	values map[string]string
	err    error
}

func newFakeSecretsManager() *fakeSecretsManager {
	return &fakeSecretsManager{values: make(map[string]string)}
}

func (f *fakeSecretsManager) GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	value, ok := f.values[*params.SecretId]
	if !ok {
		return nil, &types.ResourceNotFoundException{}
	}
	return &secretsmanager.GetSecretValueOutput{SecretString: &value}, nil
}

func (f *fakeSecretsManager) CreateSecret(ctx context.Context, params *secretsmanager.CreateSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.CreateSecretOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	if _, ok := f.values[*params.Name]; ok {
		return nil, &types.ResourceExistsException{}
	}
	f.values[*params.Name] = *params.SecretString
	return &secretsmanager.CreateSecretOutput{}, nil
}

func (f *fakeSecretsManager) PutSecretValue(ctx context.Context, params *secretsmanager.PutSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.PutSecretValueOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	if _, ok := f.values[*params.SecretId]; !ok {
		return nil, &types.ResourceNotFoundException{}
	}
	f.values[*params.SecretId] = *params.SecretString
	return &secretsmanager.PutSecretValueOutput{}, nil
}

func (f *fakeSecretsManager) DescribeSecret(ctx context.Context, params *secretsmanager.DescribeSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.DescribeSecretOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	if _, ok := f.values[*params.SecretId]; !ok {
		return nil, &types.ResourceNotFoundException{}
	}
	return &secretsmanager.DescribeSecretOutput{}, nil
}

func (f *fakeSecretsManager) ListSecrets(ctx context.Context, params *secretsmanager.ListSecretsInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.ListSecretsOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &secretsmanager.ListSecretsOutput{}, nil
}

func newTestAWSStore(t *testing.T, fake *fakeSecretsManager) *AWSStore {
	t.Helper()
	store, err := NewAWSStore(map[string]interface{}{"prefix": "credbroker/"},
		WithSecretsManagerClient(fake))
	require.NoError(t, err)
	return store
}

func TestAWSStoreRoundTrip(t *testing.T) {
	t.Parallel()

	fake := newFakeSecretsManager()
	store := newTestAWSStore(t, fake)
	ctx := context.Background()

	secret := secretstore.Secret{
		Username:   "svc_app",
		Password:   "first-password",
		ServerType: secretstore.ServerTypeWindows,
		CreatedAt:  time.Now().UTC().Truncate(time.Second),
		Extra:      map[string]string{"owner": "team-db"},
	}
	require.NoError(t, store.Put(ctx, "win-01", secret, false))

	got, err := store.Fetch(ctx, "win-01")
	require.NoError(t, err)
	assert.Equal(t, "win-01", got.ServerName)
	assert.Equal(t, "svc_app", got.Username)
	assert.Equal(t, "first-password", got.Password)
	assert.Equal(t, secretstore.ServerTypeWindows, got.ServerType)
	assert.Equal(t, "team-db", got.Extra["owner"])

	// The stored value is a flat JSON mapping under the prefixed name.
	var payload map[string]string
	require.NoError(t, json.Unmarshal([]byte(fake.values["credbroker/win-01"]), &payload))
	assert.Equal(t, "first-password", payload[secretstore.KeyPassword])
}

func TestAWSStoreFetchNotFound(t *testing.T) {
	t.Parallel()

	store := newTestAWSStore(t, newFakeSecretsManager())
	_, err := store.Fetch(context.Background(), "ghost-server")

	var notFound secretstore.NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "ghost-server", notFound.ServerName)
}

func TestAWSStoreCreateConflict(t *testing.T) {
	t.Parallel()

	store := newTestAWSStore(t, newFakeSecretsManager())
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "db-01", secretstore.Secret{Password: "a"}, false))
	err := store.Put(ctx, "db-01", secretstore.Secret{Password: "b"}, false)

	var conflict secretstore.ConflictError
	require.ErrorAs(t, err, &conflict)
}

func TestAWSStoreOverwritePreservesCreatedAt(t *testing.T) {
	t.Parallel()

	store := newTestAWSStore(t, newFakeSecretsManager())
	ctx := context.Background()
	created := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.Put(ctx, "db-01", secretstore.Secret{
		Password:  "old",
		CreatedAt: created,
	}, false))
	require.NoError(t, store.Put(ctx, "db-01", secretstore.Secret{Password: "new"}, true))

	got, err := store.Fetch(ctx, "db-01")
	require.NoError(t, err)
	assert.Equal(t, "new", got.Password)
	assert.True(t, created.Equal(got.CreatedAt))
}

func TestAWSStoreExists(t *testing.T) {
	t.Parallel()

	store := newTestAWSStore(t, newFakeSecretsManager())
	ctx := context.Background()

	ok, err := store.Exists(ctx, "db-01")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Put(ctx, "db-01", secretstore.Secret{Password: "x"}, false))
	ok, err = store.Exists(ctx, "db-01")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAWSStoreMapsAuthError(t *testing.T) {
	t.Parallel()

	fake := newFakeSecretsManager()
	fake.err = assert.AnError
	store := newTestAWSStore(t, fake)

	_, err := store.Fetch(context.Background(), "db-01")
	var unavailable secretstore.UnavailableError
	assert.ErrorAs(t, err, &unavailable)
}

func TestIsAWSAuthError(t *testing.T) {
	t.Parallel()

	assert.True(t, isAWSAuthError(assertErr("AccessDeniedException: no")))
	assert.True(t, isAWSAuthError(assertErr("ExpiredTokenException")))
	assert.False(t, isAWSAuthError(assertErr("ThrottlingException")))
}

type assertErr string

func (e assertErr) Error() string { return string(e) }
