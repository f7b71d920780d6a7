package domain

import (
	orderedmap "github.com/elliotchance/orderedmap/v2"
)

// Kind tags the variant held by a Node.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindArray
	KindObject
)

// ObjectMap is the ordered property map backing Kind == KindObject,
// preserving document property order across decode, mutation and
// re-encode (encoding/json's map[string]any cannot do this).
type ObjectMap = orderedmap.OrderedMap[string, *Node]

// Node is a tagged-variant JSON tree: exactly one of the typed fields
// below is meaningful, selected by Kind.
type Node struct {
	Kind        Kind
	BoolValue   bool
	IntValue    int64
	FloatValue  float64
	StringValue string
	ArrayValue  []*Node
	ObjectValue *ObjectMap
}

// NewNull returns a null node.
func NewNull() *Node { return &Node{Kind: KindNull} }

// NewBool returns a boolean node.
func NewBool(b bool) *Node { return &Node{Kind: KindBool, BoolValue: b} }

// NewInt returns an integer node.
func NewInt(i int64) *Node { return &Node{Kind: KindInt, IntValue: i} }

// NewFloat returns a floating point node.
func NewFloat(f float64) *Node { return &Node{Kind: KindFloat, FloatValue: f} }

// NewString returns a string node.
func NewString(s string) *Node { return &Node{Kind: KindString, StringValue: s} }

// NewArray returns an array node wrapping items.
func NewArray(items []*Node) *Node { return &Node{Kind: KindArray, ArrayValue: items} }

// NewObject returns an empty object node with an order-preserving map.
func NewObject() *Node { return &Node{Kind: KindObject, ObjectValue: orderedmap.NewOrderedMap[string, *Node]()} }

// IsNull reports whether the node is JSON null.
func (n *Node) IsNull() bool { return n == nil || n.Kind == KindNull }

// IsScalar reports whether the node is a boolean, number or string —
// the kinds the canonical value codec can serialize.
func (n *Node) IsScalar() bool {
	switch n.Kind {
	case KindBool, KindInt, KindFloat, KindString:
		return true
	default:
		return false
	}
}

// Get returns the child of an object node by property name, or nil if
// absent or n is not an object.
func (n *Node) Get(name string) *Node {
	if n == nil || n.Kind != KindObject {
		return nil
	}
	v, ok := n.ObjectValue.Get(name)
	if !ok {
		return nil
	}
	return v
}

// Set assigns the child of an object node by property name, preserving
// the existing position if the key is already present.
func (n *Node) Set(name string, value *Node) {
	n.ObjectValue.Set(name, value)
}
