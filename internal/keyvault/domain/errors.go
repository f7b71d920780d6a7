// Package domain holds the data model and sentinel errors for the
// key-vault access client: key URIs and the error kinds produced by
// wrap/unwrap and authority discovery.
package domain

import (
	apperrors "github.com/cosmosfle/fle/internal/errors"
)

var (
	// KeyNotFound mirrors fle/domain.KeyNotFound for a 404 from the vault.
	KeyNotFound = apperrors.Wrap(apperrors.ErrNotFound, "key not found")

	// AuthenticationFailure mirrors fle/domain.AuthenticationFailure for a
	// 403 from the vault.
	AuthenticationFailure = apperrors.Wrap(apperrors.ErrForbidden, "authentication failure")

	// WrapUnwrapFailure indicates a vault 400 on wrap or unwrap.
	WrapUnwrapFailure = apperrors.Wrap(apperrors.ErrInvalidInput, "wrap/unwrap failure")

	// ServiceUnavailable indicates a persistent transport failure to the
	// vault, or a non-200/400/403/404 response.
	ServiceUnavailable = apperrors.New("key vault service unavailable")

	// AuthorityDiscoveryFailed indicates the unauthenticated probe did not
	// return a compliant 401 with a parseable WWW-Authenticate header.
	AuthorityDiscoveryFailed = apperrors.New("authority discovery failed")

	// InvalidKeyURI indicates a key URI failed the shape validation in
	// ParseKeyURI.
	InvalidKeyURI = apperrors.Wrap(apperrors.ErrInvalidInput, "invalid key uri")

	// AadUnavailable mirrors fle/domain.AadUnavailable.
	AadUnavailable = apperrors.New("aad unavailable")

	// Cancelled mirrors fle/domain.Cancelled.
	Cancelled = apperrors.New("cancelled")
)

// Is reports whether any error in err's tree matches target.
func Is(err, target error) bool {
	return apperrors.Is(err, target)
}
