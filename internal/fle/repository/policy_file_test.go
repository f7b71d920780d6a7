package repository

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cosmosfle/fle/internal/fle/domain"
)

func policyFileJSON(dekB64 string) string {
	return `{
		"included_paths": [
			{"path": "/email", "key_id": "key1", "type": "deterministic", "algorithm": "AEAD_AES_256_CBC_HMAC_SHA256_Deterministic"}
		],
		"keys": {
			"key1": {
				"wrapped_data_encryption_key_b64": "` + dekB64 + `",
				"key_encryption_key": {"name": "kek1", "uri": "https://vault.vault.azure.net/keys/kek1", "provider": "AZURE_KEY_VAULT"}
			}
		}
	}`
}

func TestDecodePolicyFileAndInstall(t *testing.T) {
	dek := base64.StdEncoding.EncodeToString([]byte("0123456789abcdef0123456789abcdef"))
	pf, err := DecodePolicyFile(strings.NewReader(policyFileJSON(dek)))
	require.NoError(t, err)

	m := NewMemoryMetadataSource()
	require.NoError(t, pf.Install(m, "c1"))

	policy, err := m.GetClientEncryptionPolicy(t.Context(), "c1", false)
	require.NoError(t, err)
	require.Len(t, policy.IncludedPaths, 1)
	assert.Equal(t, "/email", policy.IncludedPaths[0].Path)
	assert.Equal(t, domain.Deterministic, policy.IncludedPaths[0].EncryptionType)

	props, err := m.GetClientEncryptionKeyProperties(t.Context(), "c1", "key1", false)
	require.NoError(t, err)
	assert.Equal(t, "kek1", props.EncryptionKeyWrapMetadata.Name)
	assert.Equal(t, []byte("0123456789abcdef0123456789abcdef"), props.WrappedDataEncryptionKey)
}

func TestDecodePolicyFileInvalidPath(t *testing.T) {
	dek := base64.StdEncoding.EncodeToString([]byte("x"))
	raw := strings.Replace(policyFileJSON(dek), `"path": "/email"`, `"path": "/id"`, 1)
	pf, err := DecodePolicyFile(strings.NewReader(raw))
	require.NoError(t, err)

	_, _, err = pf.ToDomain()
	assert.ErrorIs(t, err, domain.PolicyInvalid)
}
