package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestZero(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
	}{
		{name: "non-empty", in: []byte{1, 2, 3, 4, 5}},
		{name: "empty", in: []byte{}},
		{name: "nil", in: nil},
		{name: "large slice", in: make([]byte, 4096)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for i := range tt.in {
				tt.in[i] = 0xFF
			}
			Zero(tt.in)
			for i, b := range tt.in {
				assert.Equal(t, byte(0), b, "byte %d not zeroed", i)
			}
		})
	}
}
