package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKeyURI(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
		version string
	}{
		{name: "without version", raw: "https://myvault.vault.azure.net/keys/mykey"},
		{name: "with version", raw: "https://myvault.vault.azure.net/keys/mykey/abc123", version: "abc123"},
		{name: "case insensitive keys segment", raw: "https://myvault.vault.azure.net/Keys/mykey"},
		{name: "missing keys segment", raw: "https://myvault.vault.azure.net/secrets/mykey", wantErr: true},
		{name: "too many segments", raw: "https://myvault.vault.azure.net/keys/mykey/v1/extra", wantErr: true},
		{name: "not https", raw: "http://myvault.vault.azure.net/keys/mykey", wantErr: true},
		{name: "empty name", raw: "https://myvault.vault.azure.net/keys/", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseKeyURI(tt.raw)
			if tt.wantErr {
				assert.ErrorIs(t, err, InvalidKeyURI)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "mykey", got.Name)
			assert.Equal(t, tt.version, got.Version)
		})
	}
}
