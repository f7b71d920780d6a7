// Package service holds the stateless cryptographic primitives of the
// encryption engine: the AEAD cipher, the canonical value codec, and
// the JSON tree parser/encoder the processor walks.
package service

import (
	"encoding/binary"
	"math"

	"github.com/cosmosfle/fle/internal/fle/domain"
)

// ValueCodec is a pure, stateless bidirectional mapping between JSON
// scalars and typed byte strings. It has no collaborators.
type ValueCodec struct{}

// NewValueCodec returns a ValueCodec. It carries no state.
func NewValueCodec() *ValueCodec {
	return &ValueCodec{}
}

// Serialize encodes a scalar node into its marker and canonical byte
// encoding. UnsupportedValue is returned for non-scalar nodes.
func (ValueCodec) Serialize(n *domain.Node) (domain.TypeMarker, []byte, error) {
	switch n.Kind {
	case domain.KindBool:
		b := byte(0x00)
		if n.BoolValue {
			b = 0x01
		}
		return domain.MarkerBool, []byte{b}, nil
	case domain.KindInt:
		buf := make([]byte, 8)
		binary.LittleEndian.PutUint64(buf, uint64(n.IntValue))
		return domain.MarkerInt, buf, nil
	case domain.KindFloat:
		buf := make([]byte, 8)
		binary.LittleEndian.PutUint64(buf, math.Float64bits(n.FloatValue))
		return domain.MarkerFloat, buf, nil
	case domain.KindString:
		return domain.MarkerString, []byte(n.StringValue), nil
	default:
		return 0, nil, domain.UnsupportedValue
	}
}

// Deserialize reconstructs the scalar node from a marker and its
// canonical byte encoding. The marker must have been validated with
// TypeMarker.Valid by the caller.
func (ValueCodec) Deserialize(marker domain.TypeMarker, b []byte) (*domain.Node, error) {
	switch marker {
	case domain.MarkerBool:
		if len(b) != 1 {
			return nil, domain.CryptoIntegrity
		}
		return domain.NewBool(b[0] == 0x01), nil
	case domain.MarkerInt:
		if len(b) != 8 {
			return nil, domain.CryptoIntegrity
		}
		return domain.NewInt(int64(binary.LittleEndian.Uint64(b))), nil
	case domain.MarkerFloat:
		if len(b) != 8 {
			return nil, domain.CryptoIntegrity
		}
		return domain.NewFloat(math.Float64frombits(binary.LittleEndian.Uint64(b))), nil
	case domain.MarkerString:
		return domain.NewString(string(b)), nil
	default:
		return nil, domain.UnsupportedValue
	}
}
