package service

import (
	"context"
	"sync"

	"gocloud.dev/secrets"
	_ "gocloud.dev/secrets/awskms"
	_ "gocloud.dev/secrets/azurekeyvault"
	_ "gocloud.dev/secrets/gcpkms"
	_ "gocloud.dev/secrets/hashivault"
	_ "gocloud.dev/secrets/localsecrets"

	fledomain "github.com/cosmosfle/fle/internal/fle/domain"
)

// CloudKMSStore is an alternate MasterKeyStore backend: a thin adapter
// over gocloud.dev/secrets.Keeper, giving operators a pluggable KMS
// story (AWS KMS, GCP KMS, Azure Key Vault, HashiCorp Vault transit,
// or a local key for tests) as a drop-in alternative to the
// hand-rolled wire client in client.go. Selected via
// internal/config.Config.MasterKeyStoreProvider.
type CloudKMSStore struct {
	mu      sync.RWMutex
	keepers map[string]*secrets.Keeper
}

// NewCloudKMSStore returns an empty store; keepers are opened lazily
// per KEK URI on first use.
func NewCloudKMSStore() *CloudKMSStore {
	return &CloudKMSStore{keepers: make(map[string]*secrets.Keeper)}
}

// Unwrap implements internal/fle/usecase.MasterKeyStore.
func (s *CloudKMSStore) Unwrap(ctx context.Context, kekMeta fledomain.KeyEncryptionKeyMetadata, wrapped []byte) ([]byte, error) {
	keeper, err := s.keeperFor(ctx, kekMeta.URI)
	if err != nil {
		return nil, err
	}
	plaintext, err := keeper.Decrypt(ctx, wrapped)
	if err != nil {
		return nil, fledomain.KeyUnwrapFailed
	}
	return plaintext, nil
}

// Wrap implements internal/fle/usecase.MasterKeyStore.
func (s *CloudKMSStore) Wrap(ctx context.Context, kekMeta fledomain.KeyEncryptionKeyMetadata, plaintext []byte) ([]byte, error) {
	keeper, err := s.keeperFor(ctx, kekMeta.URI)
	if err != nil {
		return nil, err
	}
	wrapped, err := keeper.Encrypt(ctx, plaintext)
	if err != nil {
		return nil, fledomain.WrapUnwrapFailure
	}
	return wrapped, nil
}

func (s *CloudKMSStore) keeperFor(ctx context.Context, uri string) (*secrets.Keeper, error) {
	s.mu.RLock()
	k, ok := s.keepers[uri]
	s.mu.RUnlock()
	if ok {
		return k, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if k, ok := s.keepers[uri]; ok {
		return k, nil
	}

	k, err := secrets.OpenKeeper(ctx, uri)
	if err != nil {
		return nil, fledomain.KeyVaultServiceUnavailable
	}
	s.keepers[uri] = k
	return k, nil
}

// Close releases every opened keeper.
func (s *CloudKMSStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var firstErr error
	for uri, k := range s.keepers {
		if err := k.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(s.keepers, uri)
	}
	return firstErr
}
