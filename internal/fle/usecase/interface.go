// Package usecase implements the stateful, collaborating parts of the
// encryption engine: the settings cache and the document processor.
package usecase

import (
	"context"

	"github.com/cosmosfle/fle/internal/fle/domain"
)

// DatabaseMetadataSource is the injected collaborator that supplies
// encryption policies and client-encryption-key properties from the
// embedding database layer.
type DatabaseMetadataSource interface {
	GetClientEncryptionPolicy(ctx context.Context, container string, forceRefresh bool) (*domain.ClientEncryptionPolicy, error)
	GetClientEncryptionKeyProperties(
		ctx context.Context,
		container, keyID string,
		forceRefresh bool,
	) (*domain.ClientEncryptionKeyProperties, error)
}

// MasterKeyStore is the injected collaborator that wraps and unwraps
// data-encryption keys under a customer master key. The default
// implementation is
// internal/keyvault/service.Client; other backends (e.g. an HSM, or
// internal/keyvault/service.CloudKMSStore) are permitted.
type MasterKeyStore interface {
	Unwrap(ctx context.Context, kekMeta domain.KeyEncryptionKeyMetadata, wrapped []byte) ([]byte, error)
	Wrap(ctx context.Context, kekMeta domain.KeyEncryptionKeyMetadata, plaintext []byte) ([]byte, error)
}
