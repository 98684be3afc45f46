package secrets

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/kms"
)

type KMSAPI interface {
	Decrypt(ctx context.Context, params *kms.DecryptInput, optFns ...func(*kms.Options)) (*kms.DecryptOutput, error)
}

// KMSProvider decrypts a base64 CiphertextBlob holding the signing key.
type KMSProvider struct {
	client     KMSAPI
	ciphertext string
}

func NewKMSProvider(client KMSAPI, ciphertext string) *KMSProvider {
	return &KMSProvider{client: client, ciphertext: ciphertext}
}

func (p *KMSProvider) SigningKey(ctx context.Context) ([]byte, error) {
	blob, err := base64.StdEncoding.DecodeString(p.ciphertext)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ciphertext: %w", err)
	}

	out, err := p.client.Decrypt(ctx, &kms.DecryptInput{CiphertextBlob: blob})
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt signing key: %w", err)
	}
	if len(out.Plaintext) == 0 {
		return nil, ErrEmptyKey
	}
	return out.Plaintext, nil
}
