// Package secrets resolves the token signing key from the configured source.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"admin-auth/internal/config"
	"admin-auth/internal/util"
)

var (
	ErrKeyUnavailable = errors.New("signing key unavailable")
	ErrEmptyKey       = errors.New("signing key is empty")
)

// KeyProvider returns the HMAC key used to sign and verify session tokens.
type KeyProvider interface {
	SigningKey(ctx context.Context) ([]byte, error)
}

// CachedProvider fetches the key once per process and keeps it. Failed
// fetches are not cached so the next call retries.
type CachedProvider struct {
	source KeyProvider
	name   string

	mu  sync.Mutex
	key []byte
}

func NewCachedProvider(name string, source KeyProvider) *CachedProvider {
	return &CachedProvider{source: source, name: name}
}

func (p *CachedProvider) SigningKey(ctx context.Context) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.key != nil {
		return p.key, nil
	}

	key, err := p.source.SigningKey(ctx)
	if err != nil {
		util.Error("Failed to load signing key",
			util.String("source", p.name),
			util.ErrorField(err))
		return nil, fmt.Errorf("%w: %v", ErrKeyUnavailable, err)
	}
	if len(key) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrKeyUnavailable, ErrEmptyKey)
	}

	util.Info("Signing key loaded", util.String("source", p.name))
	p.key = key
	return p.key, nil
}

// StaticProvider serves a fixed key. Development only.
type StaticProvider struct {
	key []byte
}

func NewStaticProvider(key string) *StaticProvider {
	return &StaticProvider{key: []byte(key)}
}

func (p *StaticProvider) SigningKey(ctx context.Context) ([]byte, error) {
	if len(p.key) == 0 {
		return nil, ErrEmptyKey
	}
	return p.key, nil
}

// Clients carries the AWS API clients a key source may need. Nil entries are
// fine as long as the configured source does not use them.
type Clients struct {
	SecretsManager SecretsManagerAPI
	KMS            KMSAPI
}

// NewProvider builds the cached provider for cfg.KeySource.
func NewProvider(cfg config.TokenConfig, clients Clients) (*CachedProvider, error) {
	var source KeyProvider
	switch cfg.KeySource {
	case config.KeySourceSecretsManager:
		if clients.SecretsManager == nil {
			return nil, errors.New("secrets manager client is required")
		}
		source = NewSecretsManagerProvider(clients.SecretsManager, cfg.SecretName)
	case config.KeySourceKMS:
		if clients.KMS == nil {
			return nil, errors.New("kms client is required")
		}
		source = NewKMSProvider(clients.KMS, cfg.KMSCiphertext)
	case config.KeySourceStatic:
		source = NewStaticProvider(cfg.StaticKey)
	default:
		return nil, fmt.Errorf("unsupported key source %q", cfg.KeySource)
	}
	return NewCachedProvider(cfg.KeySource, source), nil
}
