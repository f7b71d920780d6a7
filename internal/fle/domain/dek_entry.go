package domain

import "time"

// DataEncryptionKeyEntry is a settings-cache slot keyed by client
// encryption key id. It holds the unwrapped plaintext key bytes, the
// protected data-encryption key handle (the AEAD state produced by the
// local key schedule over those bytes) and an absolute expiry.
//
// The single-flight initialization latch lives in the cache that owns
// entries (internal/fle/usecase.SettingsCache), not on the entry
// itself: a pending entry is never published here, so every Entry a
// reader observes is already fully initialized.
type DataEncryptionKeyEntry struct {
	KeyID        string
	PlaintextKey []byte
	Cipher       Cipher
	ExpiresAt    time.Time
}

// Expired reports whether the entry's TTL has elapsed as of now.
func (e *DataEncryptionKeyEntry) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// Close zeroizes the plaintext key material. Called on eviction,
// invalidation, or replacement by a refreshed entry.
func (e *DataEncryptionKeyEntry) Close() {
	Zero(e.PlaintextKey)
}

// String elides key material from any accidental stringification.
func (e *DataEncryptionKeyEntry) String() string {
	return "DataEncryptionKeyEntry{KeyID: " + e.KeyID + ", <redacted>}"
}

// EncryptionSetting is the runtime binding of a property name to a
// data-encryption-key cache entry, an encryption type, and the
// entry's expiry.
type EncryptionSetting struct {
	PropertyName   string
	KeyID          string
	EncryptionType EncryptionType
	Entry          *DataEncryptionKeyEntry
}

// Ready reports whether the setting's backing entry is initialized and
// unexpired as of now.
func (s *EncryptionSetting) Ready(now time.Time) bool {
	return s.Entry != nil && s.Entry.Cipher != nil && !s.Entry.Expired(now)
}
