package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fledomain "github.com/cosmosfle/fle/internal/fle/domain"
)

func TestCloudKMSStoreRoundTrip(t *testing.T) {
	store := NewCloudKMSStore()
	defer store.Close()

	kekMeta := fledomain.KeyEncryptionKeyMetadata{
		Name:     "local-test-key",
		URI:      "base64key://smGbjm71Nxd1Ig5FS0wj9SlbzAIrnolCz9bQQ6uAhl4=",
		Provider: "LOCAL",
	}

	wrapped, err := store.Wrap(context.Background(), kekMeta, []byte("plaintext-dek-material"))
	require.NoError(t, err)
	assert.NotEqual(t, []byte("plaintext-dek-material"), wrapped)

	unwrapped, err := store.Unwrap(context.Background(), kekMeta, wrapped)
	require.NoError(t, err)
	assert.Equal(t, []byte("plaintext-dek-material"), unwrapped)
}

func TestCloudKMSStoreCachesKeeperPerURI(t *testing.T) {
	store := NewCloudKMSStore()
	defer store.Close()

	kekMeta := fledomain.KeyEncryptionKeyMetadata{
		URI: "base64key://smGbjm71Nxd1Ig5FS0wj9SlbzAIrnolCz9bQQ6uAhl4=",
	}

	_, err := store.Wrap(context.Background(), kekMeta, []byte("a"))
	require.NoError(t, err)
	assert.Len(t, store.keepers, 1)

	_, err = store.Wrap(context.Background(), kekMeta, []byte("b"))
	require.NoError(t, err)
	assert.Len(t, store.keepers, 1)
}

func TestCloudKMSStoreDifferentKeysDoNotInteroperate(t *testing.T) {
	store := NewCloudKMSStore()
	defer store.Close()

	keyA := fledomain.KeyEncryptionKeyMetadata{URI: "base64key://smGbjm71Nxd1Ig5FS0wj9SlbzAIrnolCz9bQQ6uAhl4="}
	keyB := fledomain.KeyEncryptionKeyMetadata{URI: "base64key://AiwjgaYlTSInbMj2allIjSmSEFupVkvqAg4v5LLfQZg="}

	wrapped, err := store.Wrap(context.Background(), keyA, []byte("secret"))
	require.NoError(t, err)

	_, err = store.Unwrap(context.Background(), keyB, wrapped)
	assert.Error(t, err)
}
