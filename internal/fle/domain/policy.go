package domain

import (
	"strings"
)

// IncludedPath names one property covered by a ClientEncryptionPolicy.
type IncludedPath struct {
	// Path is the restricted JSON path: a single leading slash followed
	// by a property name with no further slashes, e.g. "/email".
	Path string
	// ClientEncryptionKeyID identifies the data-encryption key used for
	// this property. Multiple paths may share a key id.
	ClientEncryptionKeyID string
	// EncryptionType selects deterministic or randomized mode.
	EncryptionType EncryptionType
	// EncryptionAlgorithm is informational only; the AEAD construction is
	// fixed (AES-256-CBC + HMAC-SHA-256).
	EncryptionAlgorithm string
}

// PropertyName returns the property the path refers to, i.e. Path with
// its leading slash stripped.
func (p IncludedPath) PropertyName() string {
	return strings.TrimPrefix(p.Path, "/")
}

// Validate checks the path shape invariants: non-empty, a single
// leading slash, exactly one slash, and not the document id property.
func (p IncludedPath) Validate() error {
	if p.Path == "" {
		return PolicyInvalid
	}
	if !strings.HasPrefix(p.Path, "/") {
		return PolicyInvalid
	}
	if strings.Count(p.Path, "/") != 1 {
		return PolicyInvalid
	}
	name := p.PropertyName()
	if name == "" || name == "id" {
		return PolicyInvalid
	}
	if !p.EncryptionType.Valid() {
		return PolicyInvalid
	}
	if p.ClientEncryptionKeyID == "" {
		return PolicyInvalid
	}
	return nil
}

// ClientEncryptionPolicy is bound to a container and names every
// property path that must be encrypted or decrypted.
type ClientEncryptionPolicy struct {
	IncludedPaths []IncludedPath
}

// Validate checks every included path and returns the first failure.
func (p *ClientEncryptionPolicy) Validate() error {
	for _, ip := range p.IncludedPaths {
		if err := ip.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// KeyIDs returns the distinct client-encryption-key identifiers
// referenced by the policy, in first-seen order. Used to bootstrap the
// settings cache.
func (p *ClientEncryptionPolicy) KeyIDs() []string {
	seen := make(map[string]struct{}, len(p.IncludedPaths))
	ids := make([]string, 0, len(p.IncludedPaths))
	for _, ip := range p.IncludedPaths {
		if _, ok := seen[ip.ClientEncryptionKeyID]; ok {
			continue
		}
		seen[ip.ClientEncryptionKeyID] = struct{}{}
		ids = append(ids, ip.ClientEncryptionKeyID)
	}
	return ids
}
