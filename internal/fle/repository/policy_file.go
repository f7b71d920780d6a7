package repository

import (
	"encoding/base64"
	"encoding/json"
	"io"

	"github.com/cosmosfle/fle/internal/fle/domain"
)

// PolicyFile is the on-disk shape cmd/flectl reads to install a
// ClientEncryptionPolicy plus the ClientEncryptionKeyProperties it
// references into a MemoryMetadataSource, so the CLI can exercise
// encrypt/decrypt without a real document-database connection.
type PolicyFile struct {
	IncludedPaths []PolicyFileIncludedPath `json:"included_paths"`
	Keys          map[string]PolicyFileKey `json:"keys"`
}

// PolicyFileIncludedPath mirrors domain.IncludedPath at the JSON
// boundary.
type PolicyFileIncludedPath struct {
	Path                  string `json:"path"`
	ClientEncryptionKeyID string `json:"key_id"`
	EncryptionType        string `json:"type"`
	EncryptionAlgorithm   string `json:"algorithm"`
}

// PolicyFileKey mirrors domain.ClientEncryptionKeyProperties at the
// JSON boundary: the wrapped DEK is carried as base64.
type PolicyFileKey struct {
	WrappedDataEncryptionKeyB64 string                `json:"wrapped_data_encryption_key_b64"`
	KeyEncryptionKey            PolicyFileKEKMetadata `json:"key_encryption_key"`
	EncryptionAlgorithm         string                `json:"encryption_algorithm"`
}

// PolicyFileKEKMetadata mirrors domain.KeyEncryptionKeyMetadata at the
// JSON boundary.
type PolicyFileKEKMetadata struct {
	Name     string `json:"name"`
	URI      string `json:"uri"`
	Provider string `json:"provider"`
}

// DecodePolicyFile parses a PolicyFile from r.
func DecodePolicyFile(r io.Reader) (*PolicyFile, error) {
	var pf PolicyFile
	if err := json.NewDecoder(r).Decode(&pf); err != nil {
		return nil, err
	}
	return &pf, nil
}

// ToDomain converts the file into a domain.ClientEncryptionPolicy and
// the set of domain.ClientEncryptionKeyProperties it references,
// validating every included path along the way.
func (pf *PolicyFile) ToDomain() (*domain.ClientEncryptionPolicy, map[string]*domain.ClientEncryptionKeyProperties, error) {
	policy := &domain.ClientEncryptionPolicy{}
	for _, ip := range pf.IncludedPaths {
		included := domain.IncludedPath{
			Path:                  ip.Path,
			ClientEncryptionKeyID: ip.ClientEncryptionKeyID,
			EncryptionType:        domain.EncryptionType(ip.EncryptionType),
			EncryptionAlgorithm:   ip.EncryptionAlgorithm,
		}
		if err := included.Validate(); err != nil {
			return nil, nil, err
		}
		policy.IncludedPaths = append(policy.IncludedPaths, included)
	}

	keyProps := make(map[string]*domain.ClientEncryptionKeyProperties, len(pf.Keys))
	for keyID, k := range pf.Keys {
		wrapped, err := base64.StdEncoding.DecodeString(k.WrappedDataEncryptionKeyB64)
		if err != nil {
			return nil, nil, domain.UnsupportedValue
		}
		keyProps[keyID] = &domain.ClientEncryptionKeyProperties{
			ID:                       keyID,
			WrappedDataEncryptionKey: wrapped,
			EncryptionKeyWrapMetadata: domain.KeyEncryptionKeyMetadata{
				Name:     k.KeyEncryptionKey.Name,
				URI:      k.KeyEncryptionKey.URI,
				Provider: k.KeyEncryptionKey.Provider,
			},
			EncryptionAlgorithm: k.EncryptionAlgorithm,
		}
	}

	return policy, keyProps, nil
}

// Install loads the policy and key properties into dst for container.
func (pf *PolicyFile) Install(dst *MemoryMetadataSource, container string) error {
	policy, keyProps, err := pf.ToDomain()
	if err != nil {
		return err
	}
	dst.SetPolicy(container, policy)
	for keyID, props := range keyProps {
		dst.SetKeyProperties(container, keyID, props)
	}
	return nil
}
