package service

import (
	"bytes"
	"encoding/json"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/cosmosfle/fle/internal/fle/domain"
)

// DecodeTree parses a JSON byte stream into a Node tree, preserving
// object property order. encoding/json's Decode-into-interface{} path
// loses order on objects, so the tree is built by hand from the
// decoder's token stream.
func DecodeTree(r io.Reader) (*domain.Node, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	node, err := decodeValue(dec, tok)
	if err != nil {
		return nil, err
	}
	return node, nil
}

func decodeValue(dec *json.Decoder, tok json.Token) (*domain.Node, error) {
	switch v := tok.(type) {
	case json.Delim:
		switch v {
		case '{':
			return decodeObject(dec)
		case '[':
			return decodeArray(dec)
		default:
			return nil, domain.UnsupportedValue
		}
	case nil:
		return domain.NewNull(), nil
	case bool:
		return domain.NewBool(v), nil
	case string:
		return domain.NewString(v), nil
	case json.Number:
		return decodeNumber(v)
	default:
		return nil, domain.UnsupportedValue
	}
}

func decodeNumber(n json.Number) (*domain.Node, error) {
	if i, err := n.Int64(); err == nil {
		return domain.NewInt(i), nil
	}
	if isIntegerLiteral(n.String()) {
		return nil, domain.UnsupportedValue
	}
	f, err := n.Float64()
	if err != nil {
		return nil, domain.UnsupportedValue
	}
	return domain.NewFloat(f), nil
}

// isIntegerLiteral reports whether s is an integer literal with no
// fractional or exponent part, i.e. it was meant to be a whole number
// too large for int64 rather than genuinely fractional.
func isIntegerLiteral(s string) bool {
	return !strings.ContainsAny(s, ".eE")
}

func decodeObject(dec *json.Decoder) (*domain.Node, error) {
	obj := domain.NewObject()
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, domain.UnsupportedValue
		}
		valTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		val, err := decodeValue(dec, valTok)
		if err != nil {
			return nil, err
		}
		obj.Set(key, val)
	}
	if _, err := dec.Token(); err != nil { // consume closing '}'
		return nil, err
	}
	return obj, nil
}

func decodeArray(dec *json.Decoder) (*domain.Node, error) {
	var items []*domain.Node
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		val, err := decodeValue(dec, tok)
		if err != nil {
			return nil, err
		}
		items = append(items, val)
	}
	if _, err := dec.Token(); err != nil { // consume closing ']'
		return nil, err
	}
	return domain.NewArray(items), nil
}

// EncodeTree serializes a Node tree back into JSON bytes, preserving
// object property order exactly as stored.
func EncodeTree(n *domain.Node) ([]byte, error) {
	var buf bytes.Buffer
	if err := encodeValue(&buf, n); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeValue(buf *bytes.Buffer, n *domain.Node) error {
	switch n.Kind {
	case domain.KindNull:
		buf.WriteString("null")
	case domain.KindBool:
		if n.BoolValue {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case domain.KindInt:
		buf.WriteString(strconv.FormatInt(n.IntValue, 10))
	case domain.KindFloat:
		if math.IsNaN(n.FloatValue) || math.IsInf(n.FloatValue, 0) {
			return domain.UnsupportedValue
		}
		buf.WriteString(strconv.FormatFloat(n.FloatValue, 'g', -1, 64))
	case domain.KindString:
		b, err := json.Marshal(n.StringValue)
		if err != nil {
			return err
		}
		buf.Write(b)
	case domain.KindArray:
		buf.WriteByte('[')
		for i, item := range n.ArrayValue {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeValue(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case domain.KindObject:
		buf.WriteByte('{')
		i := 0
		for el := n.ObjectValue.Front(); el != nil; el = el.Next() {
			if i > 0 {
				buf.WriteByte(',')
			}
			i++
			keyBytes, err := json.Marshal(el.Key)
			if err != nil {
				return err
			}
			buf.Write(keyBytes)
			buf.WriteByte(':')
			if err := encodeValue(buf, el.Value); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return domain.UnsupportedValue
	}
	return nil
}
