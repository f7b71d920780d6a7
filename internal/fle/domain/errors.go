// Package domain holds the data model and sentinel errors for the
// field-level encryption engine: policies, key properties, runtime
// settings, cache entries and the JSON document tree.
package domain

import (
	apperrors "github.com/cosmosfle/fle/internal/errors"
)

// Sentinel errors for the encryption engine. Each wraps a standard
// domain error from internal/errors so callers can still test with
// errors.Is against the shared base kinds while distinguishing the
// specific failure with errors.Is against these sentinels.
var (
	// PolicyInvalid indicates an included path is malformed or names the
	// document id property.
	PolicyInvalid = apperrors.Wrap(apperrors.ErrInvalidInput, "policy invalid")

	// UnsupportedValue indicates a scalar outside {bool, int64, float64,
	// string}, or an integer outside the int64 range.
	UnsupportedValue = apperrors.Wrap(apperrors.ErrInvalidInput, "unsupported value")

	// KeyNotFound indicates the key vault returned 404 for a configured KEK.
	KeyNotFound = apperrors.Wrap(apperrors.ErrNotFound, "key not found")

	// AuthenticationFailure indicates a 403 from the vault; the settings
	// cache attempts one rewrap retry before surfacing this.
	AuthenticationFailure = apperrors.Wrap(apperrors.ErrForbidden, "authentication failure")

	// KeyUnwrapFailed indicates the rewrap retry also failed.
	KeyUnwrapFailed = apperrors.New("key unwrap failed")

	// AadUnavailable indicates AAD rejection or persistent transport
	// failure while acquiring a bearer token.
	AadUnavailable = apperrors.New("aad unavailable")

	// KeyVaultServiceUnavailable indicates persistent transport failure to
	// the vault.
	KeyVaultServiceUnavailable = apperrors.New("key vault service unavailable")

	// WrapUnwrapFailure indicates a vault 400 on wrap or unwrap.
	WrapUnwrapFailure = apperrors.Wrap(apperrors.ErrInvalidInput, "wrap/unwrap failure")

	// CryptoIntegrity indicates an AEAD tag mismatch, truncated ciphertext,
	// or version-byte mismatch on decrypt.
	CryptoIntegrity = apperrors.New("crypto integrity failure")

	// Cancelled indicates cooperative cancellation of an in-flight
	// operation.
	Cancelled = apperrors.New("cancelled")
)

// Is reports whether any error in err's tree matches target. Thin
// re-export of internal/errors.Is so callers never need to import
// both packages for a single check.
func Is(err, target error) bool {
	return apperrors.Is(err, target)
}
