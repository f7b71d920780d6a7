package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIncludedPathValidate(t *testing.T) {
	tests := []struct {
		name      string
		value     interface{}
		shouldErr bool
	}{
		{name: "valid path", value: "/email", shouldErr: false},
		{name: "not a string", value: 42, shouldErr: true},
		{name: "empty", value: "", shouldErr: true},
		{name: "missing leading slash", value: "email", shouldErr: true},
		{name: "nested path", value: "/a/b", shouldErr: true},
		{name: "id property", value: "/id", shouldErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := IncludedPath.Validate(tt.value)
			if tt.shouldErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestWrapValidationError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "nil error returns nil",
			err:      nil,
			expected: false,
		},
		{
			name:     "wraps validation error",
			err:      assert.AnError,
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := WrapValidationError(tt.err)
			if tt.expected {
				assert.Error(t, result)
				assert.Contains(t, result.Error(), "invalid input")
			} else {
				assert.NoError(t, result)
			}
		})
	}
}
