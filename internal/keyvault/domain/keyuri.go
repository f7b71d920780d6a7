package domain

import (
	"fmt"
	"net/url"
	"strings"
)

// KeyURI is a parsed, validated key-vault key identifier of the shape
// `https://<vault>.vault.azure.net/keys/<name>[/<version>]`.
type KeyURI struct {
	Vault   string
	Name    string
	Version string
	Raw     string
}

// ParseKeyURI validates and parses a raw key URI: it must
// have 3 or 4 path segments (including the leading empty segment from
// the leading slash) with the second segment equal to "keys",
// case-insensitively.
func ParseKeyURI(raw string) (*KeyURI, error) {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "https" || u.Host == "" {
		return nil, InvalidKeyURI
	}

	segments := strings.Split(u.Path, "/")
	if len(segments) != 3 && len(segments) != 4 {
		return nil, InvalidKeyURI
	}
	if !strings.EqualFold(segments[1], "keys") {
		return nil, InvalidKeyURI
	}

	name := segments[2]
	if name == "" {
		return nil, InvalidKeyURI
	}

	version := ""
	if len(segments) == 4 {
		version = segments[3]
	}

	return &KeyURI{Vault: u.Host, Name: name, Version: version, Raw: raw}, nil
}

// String returns the canonical form of the key URI.
func (k *KeyURI) String() string {
	if k.Version != "" {
		return fmt.Sprintf("https://%s/keys/%s/%s", k.Vault, k.Name, k.Version)
	}
	return fmt.Sprintf("https://%s/keys/%s", k.Vault, k.Name)
}
