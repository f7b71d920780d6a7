package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cosmosfle/fle/internal/fle/domain"
)

func TestMemoryMetadataSourceMissingPolicyIsNil(t *testing.T) {
	m := NewMemoryMetadataSource()
	policy, err := m.GetClientEncryptionPolicy(context.Background(), "c1", false)
	require.NoError(t, err)
	assert.Nil(t, policy)
}

func TestMemoryMetadataSourcePolicyRoundTrip(t *testing.T) {
	m := NewMemoryMetadataSource()
	policy := &domain.ClientEncryptionPolicy{
		IncludedPaths: []domain.IncludedPath{
			{Path: "/email", ClientEncryptionKeyID: "key1", EncryptionType: domain.Deterministic},
		},
	}
	m.SetPolicy("c1", policy)

	got, err := m.GetClientEncryptionPolicy(context.Background(), "c1", false)
	require.NoError(t, err)
	assert.Equal(t, policy, got)
}

func TestMemoryMetadataSourceKeyPropertiesNotFound(t *testing.T) {
	m := NewMemoryMetadataSource()
	_, err := m.GetClientEncryptionKeyProperties(context.Background(), "c1", "key1", false)
	assert.ErrorIs(t, err, domain.KeyNotFound)
}

func TestMemoryMetadataSourceForceRefreshCount(t *testing.T) {
	m := NewMemoryMetadataSource()
	m.SetKeyProperties("c1", "key1", &domain.ClientEncryptionKeyProperties{ID: "key1"})

	_, err := m.GetClientEncryptionKeyProperties(context.Background(), "c1", "key1", false)
	require.NoError(t, err)
	assert.Equal(t, 0, m.ForceRefreshCount("c1", "key1"))

	_, err = m.GetClientEncryptionKeyProperties(context.Background(), "c1", "key1", true)
	require.NoError(t, err)
	assert.Equal(t, 1, m.ForceRefreshCount("c1", "key1"))
}
