package commands

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cosmosfle/fle/internal/app"
	"github.com/cosmosfle/fle/internal/config"
	"github.com/cosmosfle/fle/internal/fle/domain"
)

// localSecretsKeyURI returns a fresh base64key:// URI backed by
// gocloud.dev/secrets/localsecrets, so tests exercise the cloud_kms
// master-key-store path without any network dependency.
func localSecretsKeyURI(t *testing.T) string {
	t.Helper()
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return "base64key://" + base64.URLEncoding.EncodeToString(key)
}

func testAppContainer(t *testing.T) *app.Container {
	t.Helper()
	cfg := &config.Config{
		LogLevel:               "error",
		MetricsEnabled:         false,
		MetricsNamespace:       "fle",
		Container:              "default",
		SettingsTTL:            time.Hour,
		APIVersion:             "7.4",
		MasterKeyStoreProvider: "cloud_kms",
	}
	c := app.NewContainer(cfg)
	t.Cleanup(func() { _ = c.Shutdown(context.Background()) })
	return c
}

// writePolicyFile wraps dek under keyURI using the container's master
// key store and writes a policy file referencing it.
func writePolicyFile(t *testing.T, c *app.Container, dir, keyURI string) string {
	t.Helper()

	store, err := c.MasterKeyStore()
	require.NoError(t, err)

	dek := make([]byte, 32)
	_, err = rand.Read(dek)
	require.NoError(t, err)

	wrapped, err := store.Wrap(context.Background(), domain.KeyEncryptionKeyMetadata{URI: keyURI}, dek)
	require.NoError(t, err)

	policy := map[string]interface{}{
		"included_paths": []map[string]string{
			{"path": "/email", "key_id": "key1", "type": "deterministic"},
		},
		"keys": map[string]interface{}{
			"key1": map[string]interface{}{
				"wrapped_data_encryption_key_b64": base64.StdEncoding.EncodeToString(wrapped),
				"key_encryption_key":              map[string]string{"name": "kek1", "uri": keyURI, "provider": "LOCAL"},
			},
		},
	}
	raw, err := json.Marshal(policy)
	require.NoError(t, err)

	path := filepath.Join(dir, "policy.json")
	require.NoError(t, os.WriteFile(path, raw, 0o600))
	return path
}

func TestRunEncryptDecryptRoundTrip(t *testing.T) {
	dir := t.TempDir()
	keyURI := localSecretsKeyURI(t)
	logger := slog.New(slog.DiscardHandler)

	appContainer := testAppContainer(t)
	policyPath := writePolicyFile(t, appContainer, dir, keyURI)

	docPath := filepath.Join(dir, "doc.json")
	original := `{"id":"1","email":"alice@example.com","age":30}`
	require.NoError(t, os.WriteFile(docPath, []byte(original), 0o600))

	var encrypted bytes.Buffer
	err := RunEncrypt(context.Background(), appContainer, logger, "orders", policyPath, docPath, &encrypted)
	require.NoError(t, err)
	assert.NotContains(t, encrypted.String(), "alice@example.com")
	assert.Contains(t, encrypted.String(), `"age":30`)

	encDocPath := filepath.Join(dir, "enc.json")
	require.NoError(t, os.WriteFile(encDocPath, encrypted.Bytes(), 0o600))

	var decrypted bytes.Buffer
	err = RunDecrypt(context.Background(), appContainer, logger, "orders", policyPath, encDocPath, &decrypted)
	require.NoError(t, err)

	var got, want map[string]interface{}
	require.NoError(t, json.Unmarshal(decrypted.Bytes(), &got))
	require.NoError(t, json.Unmarshal([]byte(original), &want))
	assert.Equal(t, want, got)
}

func TestRunEncryptDeterministicIsStable(t *testing.T) {
	dir := t.TempDir()
	keyURI := localSecretsKeyURI(t)
	logger := slog.New(slog.DiscardHandler)

	appContainer := testAppContainer(t)
	policyPath := writePolicyFile(t, appContainer, dir, keyURI)

	docPath := filepath.Join(dir, "doc.json")
	require.NoError(t, os.WriteFile(docPath, []byte(`{"id":"1","email":"bob@example.com"}`), 0o600))

	var first, second bytes.Buffer
	require.NoError(t, RunEncrypt(context.Background(), appContainer, logger, "orders", policyPath, docPath, &first))
	require.NoError(t, RunEncrypt(context.Background(), appContainer, logger, "orders", policyPath, docPath, &second))

	assert.Equal(t, first.String(), second.String())
}

func TestRunEncryptInvalidPolicyPath(t *testing.T) {
	dir := t.TempDir()
	logger := slog.New(slog.DiscardHandler)
	appContainer := testAppContainer(t)

	raw := `{"included_paths":[{"path":"/id","key_id":"key1","type":"deterministic"}],"keys":{}}`
	policyPath := filepath.Join(dir, "policy.json")
	require.NoError(t, os.WriteFile(policyPath, []byte(raw), 0o600))

	docPath := filepath.Join(dir, "doc.json")
	require.NoError(t, os.WriteFile(docPath, []byte(`{"id":"1"}`), 0o600))

	var out bytes.Buffer
	err := RunEncrypt(context.Background(), appContainer, logger, "orders", policyPath, docPath, &out)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "included path"))
}
