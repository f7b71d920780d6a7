package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cosmosfle/fle/internal/fle/domain"
)

func TestValueCodecRoundTrip(t *testing.T) {
	codec := NewValueCodec()

	tests := []*domain.Node{
		domain.NewBool(true),
		domain.NewBool(false),
		domain.NewInt(42),
		domain.NewInt(-1),
		domain.NewFloat(3.14159),
		domain.NewString("hello"),
		domain.NewString(""),
	}

	for _, n := range tests {
		marker, b, err := codec.Serialize(n)
		require.NoError(t, err)
		assert.True(t, marker.Valid())

		got, err := codec.Deserialize(marker, b)
		require.NoError(t, err)
		assert.Equal(t, n.Kind, got.Kind)

		switch n.Kind {
		case domain.KindBool:
			assert.Equal(t, n.BoolValue, got.BoolValue)
		case domain.KindInt:
			assert.Equal(t, n.IntValue, got.IntValue)
		case domain.KindFloat:
			assert.Equal(t, n.FloatValue, got.FloatValue)
		case domain.KindString:
			assert.Equal(t, n.StringValue, got.StringValue)
		}
	}
}

func TestValueCodecRejectsNonScalar(t *testing.T) {
	codec := NewValueCodec()
	_, _, err := codec.Serialize(domain.NewArray(nil))
	assert.ErrorIs(t, err, domain.UnsupportedValue)

	_, _, err = codec.Serialize(domain.NewNull())
	assert.ErrorIs(t, err, domain.UnsupportedValue)
}
