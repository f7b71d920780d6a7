// Package validation provides custom validation rules for the application.
package validation

import (
	"strings"

	validation "github.com/jellydator/validation"

	apperrors "github.com/cosmosfle/fle/internal/errors"
)

// WrapValidationError wraps validation errors as domain ErrInvalidInput.
func WrapValidationError(err error) error {
	if err == nil {
		return nil
	}
	return apperrors.Wrap(apperrors.ErrInvalidInput, err.Error())
}

// IncludedPath validates that a policy path string has the restricted
// shape: non-empty, a single leading slash, exactly one slash, and not
// the document id property. It is used by cmd/flectl on every
// included path of an operator-supplied policy file, ahead of
// constructing a domain.IncludedPath.
var IncludedPath = validation.By(func(value interface{}) error {
	s, ok := value.(string)
	if !ok {
		return validation.NewError("validation_included_path_type", "must be a string")
	}
	if s == "" || !strings.HasPrefix(s, "/") || strings.Count(s, "/") != 1 {
		return validation.NewError(
			"validation_included_path_shape",
			"must be a single leading slash followed by a property name",
		)
	}
	if strings.TrimPrefix(s, "/") == "id" {
		return validation.NewError("validation_included_path_id", "must not reference the id property")
	}
	return nil
})
