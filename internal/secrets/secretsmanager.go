package secrets

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

type SecretsManagerAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// SecretsManagerProvider reads the key from a named secret. String secrets
// are used verbatim, binary secrets as raw bytes.
type SecretsManagerProvider struct {
	client SecretsManagerAPI
	name   string
}

func NewSecretsManagerProvider(client SecretsManagerAPI, name string) *SecretsManagerProvider {
	return &SecretsManagerProvider{client: client, name: name}
}

func (p *SecretsManagerProvider) SigningKey(ctx context.Context) ([]byte, error) {
	out, err := p.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(p.name),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get secret %s: %w", p.name, err)
	}

	if out.SecretString != nil && *out.SecretString != "" {
		return []byte(*out.SecretString), nil
	}
	if len(out.SecretBinary) > 0 {
		return out.SecretBinary, nil
	}
	return nil, ErrEmptyKey
}
