package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIncludedPathValidate(t *testing.T) {
	tests := []struct {
		name    string
		path    IncludedPath
		wantErr bool
	}{
		{
			name: "valid deterministic path",
			path: IncludedPath{Path: "/email", ClientEncryptionKeyID: "key1", EncryptionType: Deterministic},
		},
		{
			name: "valid randomized path",
			path: IncludedPath{Path: "/n", ClientEncryptionKeyID: "key1", EncryptionType: Randomized},
		},
		{
			name:    "empty path",
			path:    IncludedPath{Path: "", ClientEncryptionKeyID: "key1", EncryptionType: Deterministic},
			wantErr: true,
		},
		{
			name:    "missing leading slash",
			path:    IncludedPath{Path: "email", ClientEncryptionKeyID: "key1", EncryptionType: Deterministic},
			wantErr: true,
		},
		{
			name:    "nested path",
			path:    IncludedPath{Path: "/a/b", ClientEncryptionKeyID: "key1", EncryptionType: Deterministic},
			wantErr: true,
		},
		{
			name:    "id property",
			path:    IncludedPath{Path: "/id", ClientEncryptionKeyID: "key1", EncryptionType: Deterministic},
			wantErr: true,
		},
		{
			name:    "unknown encryption type",
			path:    IncludedPath{Path: "/email", ClientEncryptionKeyID: "key1", EncryptionType: "weird"},
			wantErr: true,
		},
		{
			name:    "missing key id",
			path:    IncludedPath{Path: "/email", EncryptionType: Deterministic},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.path.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, PolicyInvalid)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestClientEncryptionPolicyKeyIDs(t *testing.T) {
	p := &ClientEncryptionPolicy{
		IncludedPaths: []IncludedPath{
			{Path: "/a", ClientEncryptionKeyID: "key1", EncryptionType: Deterministic},
			{Path: "/b", ClientEncryptionKeyID: "key2", EncryptionType: Randomized},
			{Path: "/c", ClientEncryptionKeyID: "key1", EncryptionType: Deterministic},
		},
	}
	assert.Equal(t, []string{"key1", "key2"}, p.KeyIDs())
}

func TestClientEncryptionPolicyValidate(t *testing.T) {
	p := &ClientEncryptionPolicy{
		IncludedPaths: []IncludedPath{
			{Path: "/a", ClientEncryptionKeyID: "key1", EncryptionType: Deterministic},
			{Path: "/id", ClientEncryptionKeyID: "key1", EncryptionType: Deterministic},
		},
	}
	assert.ErrorIs(t, p.Validate(), PolicyInvalid)
}
