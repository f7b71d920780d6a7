package domain

// KeyEncryptionKeyMetadata locates the master key that wraps a
// data-encryption key: a name, the key-vault URI, and a provider tag
// (e.g. "AZURE_KEY_VAULT") identifying which MasterKeyStore backend
// resolves it.
type KeyEncryptionKeyMetadata struct {
	Name     string
	URI      string
	Provider string
}

// ClientEncryptionKeyProperties is the metadata fetched from the
// document database for a given client-encryption-key id.
type ClientEncryptionKeyProperties struct {
	ID                        string
	WrappedDataEncryptionKey  []byte
	EncryptionKeyWrapMetadata KeyEncryptionKeyMetadata
	EncryptionAlgorithm       string
}
