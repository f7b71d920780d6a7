package usecase

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/cosmosfle/fle/internal/fle/domain"
	"github.com/cosmosfle/fle/internal/fle/service"
)

// CipherFactory builds the AEAD state for an unwrapped data-encryption
// key. Injected so tests can substitute a cheap fake; production code
// uses NewAEADCipherFactory.
type CipherFactory func(dek []byte) (domain.Cipher, error)

// NewAEADCipherFactory returns the production CipherFactory, backed by
// service.AEADCipher.
func NewAEADCipherFactory() CipherFactory {
	return func(dek []byte) (domain.Cipher, error) {
		return service.NewAEADCipher(dek)
	}
}

// SettingsCache is a TTL-bounded, single-flight settings cache: a
// mapping key_id → DataEncryptionKeyEntry, shared across every
// document processed for one container.
type SettingsCache struct {
	container      string
	ttl            time.Duration
	metadata       DatabaseMetadataSource
	masterKeyStore MasterKeyStore
	cipherFactory  CipherFactory
	now            func() time.Time

	mu      sync.RWMutex
	entries map[string]*domain.DataEncryptionKeyEntry

	group singleflight.Group
}

// NewSettingsCache constructs a cache for a single container. ttl
// defaults to domain.DefaultSettingsTTLMinutes when zero.
func NewSettingsCache(
	container string,
	ttl time.Duration,
	metadata DatabaseMetadataSource,
	masterKeyStore MasterKeyStore,
) *SettingsCache {
	if ttl <= 0 {
		ttl = time.Duration(domain.DefaultSettingsTTLMinutes) * time.Minute
	}
	return &SettingsCache{
		container:      container,
		ttl:            ttl,
		metadata:       metadata,
		masterKeyStore: masterKeyStore,
		cipherFactory:  NewAEADCipherFactory(),
		now:            time.Now,
		entries:        make(map[string]*domain.DataEncryptionKeyEntry),
	}
}

// EnsureEntry returns a ready DataEncryptionKeyEntry for keyID,
// (re-)initializing it if absent or expired. Concurrent callers for
// the same keyID share one initialization via single-flight.
func (c *SettingsCache) EnsureEntry(ctx context.Context, keyID string) (*domain.DataEncryptionKeyEntry, error) {
	if entry := c.lookup(keyID); entry != nil {
		return entry, nil
	}

	v, err, _ := c.group.Do(keyID, func() (interface{}, error) {
		// Re-check: another caller may have published a fresh entry
		// between our miss above and acquiring the single-flight leader
		// slot.
		if entry := c.lookup(keyID); entry != nil {
			return entry, nil
		}
		return c.initEntry(ctx, keyID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.DataEncryptionKeyEntry), nil
}

// GetForProperty resolves the runtime EncryptionSetting for a property
// covered by path, ensuring the backing entry is initialized.
func (c *SettingsCache) GetForProperty(
	ctx context.Context,
	propertyName string,
	path domain.IncludedPath,
) (*domain.EncryptionSetting, error) {
	entry, err := c.EnsureEntry(ctx, path.ClientEncryptionKeyID)
	if err != nil {
		return nil, err
	}
	return &domain.EncryptionSetting{
		PropertyName:   propertyName,
		KeyID:          path.ClientEncryptionKeyID,
		EncryptionType: path.EncryptionType,
		Entry:          entry,
	}, nil
}

// Invalidate removes the entry for keyID, zeroizing its key material.
// The next use reinitializes from scratch.
func (c *SettingsCache) Invalidate(keyID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if entry, ok := c.entries[keyID]; ok {
		entry.Close()
		delete(c.entries, keyID)
	}
}

func (c *SettingsCache) lookup(keyID string) *domain.DataEncryptionKeyEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[keyID]
	if !ok {
		return nil
	}
	if entry.Expired(c.now()) {
		return nil
	}
	return entry
}

// initEntry performs the fetch → unwrap → derive → publish sequence,
// including the one-shot Forbidden/rewrap recovery.
func (c *SettingsCache) initEntry(ctx context.Context, keyID string) (*domain.DataEncryptionKeyEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.Cancelled
	}

	props, err := c.metadata.GetClientEncryptionKeyProperties(ctx, c.container, keyID, false)
	if err != nil {
		return nil, err
	}

	plaintext, err := c.masterKeyStore.Unwrap(ctx, props.EncryptionKeyWrapMetadata, props.WrappedDataEncryptionKey)
	if err != nil {
		if !domain.Is(err, domain.AuthenticationFailure) {
			return nil, err
		}

		if ctx.Err() != nil {
			return nil, domain.Cancelled
		}

		props, err = c.metadata.GetClientEncryptionKeyProperties(ctx, c.container, keyID, true)
		if err != nil {
			return nil, domain.KeyUnwrapFailed
		}
		plaintext, err = c.masterKeyStore.Unwrap(ctx, props.EncryptionKeyWrapMetadata, props.WrappedDataEncryptionKey)
		if err != nil {
			return nil, domain.KeyUnwrapFailed
		}
	}

	if ctx.Err() != nil {
		domain.Zero(plaintext)
		return nil, domain.Cancelled
	}

	cipher, err := c.cipherFactory(plaintext)
	if err != nil {
		domain.Zero(plaintext)
		return nil, err
	}

	entry := &domain.DataEncryptionKeyEntry{
		KeyID:        keyID,
		PlaintextKey: plaintext,
		Cipher:       cipher,
		ExpiresAt:    c.now().Add(c.ttl),
	}

	c.mu.Lock()
	if old, ok := c.entries[keyID]; ok {
		old.Close()
	}
	c.entries[keyID] = entry
	c.mu.Unlock()

	return entry, nil
}

// Close zeroizes and drops every cached entry. Call on processor
// shutdown.
func (c *SettingsCache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for keyID, entry := range c.entries {
		entry.Close()
		delete(c.entries, keyID)
	}
}
