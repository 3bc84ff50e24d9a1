package stores

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"

	"github.com/hostops/credbroker/pkg/secretstore"
)

// SecretsManagerAPI is the subset of the AWS Secrets Manager client used
// by the broker. Narrowing the SDK client to an interface lets tests
// inject a fake.
type SecretsManagerAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
	CreateSecret(ctx context.Context, params *secretsmanager.CreateSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.CreateSecretOutput, error)
	PutSecretValue(ctx context.Context, params *secretsmanager.PutSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.PutSecretValueOutput, error)
	DescribeSecret(ctx context.Context, params *secretsmanager.DescribeSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.DescribeSecretOutput, error)
	ListSecrets(ctx context.Context, params *secretsmanager.ListSecretsInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.ListSecretsOutput, error)
}

// AWSStore is a secret store backed by AWS Secrets Manager. Each managed
// server maps to one secret whose value is the flat JSON payload mapping.
type AWSStore struct {
	client SecretsManagerAPI
	region string
	prefix string // optional secret name prefix, e.g. "credbroker/"
}

// AWSOption configures an AWSStore.
type AWSOption func(*AWSStore)

// WithSecretsManagerClient injects a custom client, used by tests.
func WithSecretsManagerClient(client SecretsManagerAPI) AWSOption {
	return func(s *AWSStore) {
		s.client = client
	}
}

// NewAWSStore creates a Secrets Manager backed store. Recognized options
// in the backend config map: "region", "endpoint" (for LocalStack),
// "prefix", "access_key_id"/"secret_access_key" (static credentials for
// testing).
func NewAWSStore(backendConfig map[string]interface{}, opts ...AWSOption) (*AWSStore, error) {
	region := "us-east-1"
	if r, ok := backendConfig["region"].(string); ok && r != "" {
		region = r
	}
	var endpoint string
	if e, ok := backendConfig["endpoint"].(string); ok {
		endpoint = e
	}

	store := &AWSStore{region: region}
	if p, ok := backendConfig["prefix"].(string); ok {
		store.prefix = p
	}

	for _, opt := range opts {
		opt(store)
	}

	if store.client == nil {
		var configOpts []func(*awsconfig.LoadOptions) error
		configOpts = append(configOpts, awsconfig.WithRegion(region))

		accessKey, _ := backendConfig["access_key_id"].(string)
		secretKey, _ := backendConfig["secret_access_key"].(string)
		if accessKey != "" && secretKey != "" {
			configOpts = append(configOpts, awsconfig.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
			))
		}

		cfg, err := awsconfig.LoadDefaultConfig(context.Background(), configOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}

		var clientOpts []func(*secretsmanager.Options)
		if endpoint != "" {
			clientOpts = append(clientOpts, func(o *secretsmanager.Options) {
				o.BaseEndpoint = &endpoint
			})
		}
		store.client = secretsmanager.NewFromConfig(cfg, clientOpts...)
	}

	return store, nil
}

// Name implements secretstore.Store.
func (s *AWSStore) Name() string { return "aws.secretsmanager" }

func (s *AWSStore) secretID(serverName string) string {
	return s.prefix + serverName
}

// Fetch implements secretstore.Store.
func (s *AWSStore) Fetch(ctx context.Context, serverName string) (secretstore.Secret, error) {
	out, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(s.secretID(serverName)),
	})
	if err != nil {
		return secretstore.Secret{}, s.mapError(err, serverName)
	}
	if out.SecretString == nil {
		return secretstore.Secret{}, fmt.Errorf("secret '%s' has no string value", serverName)
	}

	var payload map[string]string
	if err := json.Unmarshal([]byte(*out.SecretString), &payload); err != nil {
		return secretstore.Secret{}, fmt.Errorf("secret '%s' payload is not a flat JSON mapping: %w", serverName, err)
	}
	return secretstore.FromPayload(serverName, payload), nil
}

// Put implements secretstore.Store.
func (s *AWSStore) Put(ctx context.Context, serverName string, secret secretstore.Secret, overwrite bool) error {
	if overwrite && secret.CreatedAt.IsZero() {
		if existing, err := s.Fetch(ctx, serverName); err == nil {
			secret.CreatedAt = existing.CreatedAt
		}
	}
	secret.ServerName = serverName

	data, err := json.Marshal(secret.Payload())
	if err != nil {
		return fmt.Errorf("failed to marshal secret payload: %w", err)
	}
	value := string(data)

	if !overwrite {
		_, err := s.client.CreateSecret(ctx, &secretsmanager.CreateSecretInput{
			Name:         aws.String(s.secretID(serverName)),
			SecretString: aws.String(value),
		})
		if err != nil {
			var exists *types.ResourceExistsException
			if errors.As(err, &exists) {
				return secretstore.ConflictError{
					Store:      s.Name(),
					ServerName: serverName,
					Message:    "secret already exists and overwrite was not requested",
				}
			}
			return s.mapError(err, serverName)
		}
		return nil
	}

	_, err = s.client.PutSecretValue(ctx, &secretsmanager.PutSecretValueInput{
		SecretId:     aws.String(s.secretID(serverName)),
		SecretString: aws.String(value),
	})
	if err != nil {
		var notFound *types.ResourceNotFoundException
		if errors.As(err, &notFound) {
			// Update of a secret that vanished: fall back to create.
			_, createErr := s.client.CreateSecret(ctx, &secretsmanager.CreateSecretInput{
				Name:         aws.String(s.secretID(serverName)),
				SecretString: aws.String(value),
			})
			if createErr != nil {
				return s.mapError(createErr, serverName)
			}
			return nil
		}
		return s.mapError(err, serverName)
	}
	return nil
}

// Exists implements secretstore.Store.
func (s *AWSStore) Exists(ctx context.Context, serverName string) (bool, error) {
	_, err := s.client.DescribeSecret(ctx, &secretsmanager.DescribeSecretInput{
		SecretId: aws.String(s.secretID(serverName)),
	})
	if err != nil {
		var notFound *types.ResourceNotFoundException
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, s.mapError(err, serverName)
	}
	return true, nil
}

// Validate implements secretstore.Store.
func (s *AWSStore) Validate(ctx context.Context) error {
	_, err := s.client.ListSecrets(ctx, &secretsmanager.ListSecretsInput{
		MaxResults: aws.Int32(1),
	})
	if err != nil {
		return secretstore.AccessDeniedError{
			Store:   s.Name(),
			Message: fmt.Sprintf("AWS authentication failed: %v", err),
		}
	}
	return nil
}

func (s *AWSStore) mapError(err error, serverName string) error {
	var notFound *types.ResourceNotFoundException
	if errors.As(err, &notFound) {
		return secretstore.NotFoundError{Store: s.Name(), ServerName: serverName}
	}
	if isAWSAuthError(err) {
		return secretstore.AccessDeniedError{Store: s.Name(), Message: err.Error()}
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return secretstore.UnavailableError{Store: s.Name(), Err: err}
	}
	var throttled *types.LimitExceededException
	if errors.As(err, &throttled) {
		return secretstore.UnavailableError{Store: s.Name(), Err: err}
	}
	return secretstore.UnavailableError{Store: s.Name(), Err: err}
}

func isAWSAuthError(err error) bool {
	msg := err.Error()
	for _, marker := range []string{"AccessDenied", "UnrecognizedClient", "InvalidSignature", "ExpiredToken", "not authorized"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
