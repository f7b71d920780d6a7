// Package repository holds the in-memory DatabaseMetadataSource used by
// cmd/flectl and the test suites. The policy and key-properties fetch
// operations are exposed as an interface the embedding database layer
// fulfills; the document-database SDK itself is out of scope, so this
// is the demo/test stand-in, adapted from a repository-per-aggregate
// shape (e.g. internal/crypto/repository/postgresql_kek_repository.go)
// but backed by a guarded map instead of SQL, since there is no
// container/item store in scope here.
package repository

import (
	"context"
	"sync"

	"github.com/cosmosfle/fle/internal/fle/domain"
)

// MemoryMetadataSource implements usecase.DatabaseMetadataSource over
// an in-memory map, keyed by container name. ForceRefresh is honored
// as a no-op cache-bypass flag: every read already observes the
// latest installed value, there is nothing to refresh from.
type MemoryMetadataSource struct {
	mu        sync.RWMutex
	policies  map[string]*domain.ClientEncryptionPolicy
	keyProps  map[string]map[string]*domain.ClientEncryptionKeyProperties
	refreshes map[string]int
}

// NewMemoryMetadataSource returns an empty source. Install policies
// and key properties with SetPolicy and SetKeyProperties before use.
func NewMemoryMetadataSource() *MemoryMetadataSource {
	return &MemoryMetadataSource{
		policies:  make(map[string]*domain.ClientEncryptionPolicy),
		keyProps:  make(map[string]map[string]*domain.ClientEncryptionKeyProperties),
		refreshes: make(map[string]int),
	}
}

// SetPolicy installs the encryption policy for a container.
func (m *MemoryMetadataSource) SetPolicy(container string, policy *domain.ClientEncryptionPolicy) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.policies[container] = policy
}

// SetKeyProperties installs the client-encryption-key properties for
// a container/key-id pair.
func (m *MemoryMetadataSource) SetKeyProperties(container, keyID string, props *domain.ClientEncryptionKeyProperties) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.keyProps[container] == nil {
		m.keyProps[container] = make(map[string]*domain.ClientEncryptionKeyProperties)
	}
	m.keyProps[container][keyID] = props
}

// ForceRefreshCount returns how many times GetClientEncryptionKeyProperties
// was called with forceRefresh=true for container/keyID. Used by the
// cache CLI commands and tests to observe the rewrap-recovery path.
func (m *MemoryMetadataSource) ForceRefreshCount(container, keyID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.refreshes[container+"/"+keyID]
}

// GetClientEncryptionPolicy implements usecase.DatabaseMetadataSource.
// A nil, nil result means the container has no installed policy.
func (m *MemoryMetadataSource) GetClientEncryptionPolicy(
	_ context.Context,
	container string,
	_ bool,
) (*domain.ClientEncryptionPolicy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.policies[container], nil
}

// GetClientEncryptionKeyProperties implements
// usecase.DatabaseMetadataSource.
func (m *MemoryMetadataSource) GetClientEncryptionKeyProperties(
	_ context.Context,
	container, keyID string,
	forceRefresh bool,
) (*domain.ClientEncryptionKeyProperties, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if forceRefresh {
		m.refreshes[container+"/"+keyID]++
	}
	byKey := m.keyProps[container]
	if byKey == nil {
		return nil, domain.KeyNotFound
	}
	props, ok := byKey[keyID]
	if !ok {
		return nil, domain.KeyNotFound
	}
	return props, nil
}
