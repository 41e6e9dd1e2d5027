// Package pbnode implements the Node Accessor, the read-only typed
// view over a field's parsed values, used by descriptor building and by
// the CLI's message printer to navigate a parsed message without
// touching pbschema or pbvalue directly.
package pbnode

import (
	"encoding/binary"
	"math"

	"github.com/lensframe/dnncore/internal/dnnerrors"
	"github.com/lensframe/dnncore/internal/pbschema"
	"github.com/lensframe/dnncore/internal/pbvalue"
)

// Node is a thin read-only view over a field's parsed value list.
type Node struct {
	values []pbvalue.FieldValue
}

// New wraps a parsed value list as a Node.
func New(values []pbvalue.FieldValue) *Node {
	return &Node{values: values}
}

// ByName requires the node be a singleton Message and forwards to the
// named field, per spec §4.4.
func (n *Node) ByName(name string) (*Node, error) {
	msg, err := n.singletonMessage()
	if err != nil {
		return nil, err
	}
	return New(msg.Get(name)), nil
}

func (n *Node) singletonMessage() (*pbschema.MessageSchema, error) {
	if len(n.values) != 1 {
		return nil, dnnerrors.TypeMismatchf("node is not a singleton (length %d)", len(n.values))
	}
	msg, ok := n.values[0].(*pbschema.MessageSchema)
	if !ok {
		return nil, dnnerrors.TypeMismatchf("node is not a Message")
	}
	return msg, nil
}

// Index selects element i. A singleton PackedPrimitive exposes its
// packed elements; otherwise i selects the i-th node in the list.
func (n *Node) Index(i int) (*Node, error) {
	if len(n.values) == 1 {
		if elem, ok, err := packedElementAt(n.values[0], i); ok || err != nil {
			if err != nil {
				return nil, err
			}
			return New([]pbvalue.FieldValue{elem}), nil
		}
	}
	if i < 0 || i >= len(n.values) {
		return nil, dnnerrors.NotFoundf("index %d out of bounds (length %d)", i, len(n.values))
	}
	return New([]pbvalue.FieldValue{n.values[i]}), nil
}

// Size returns the packed length if this is a singleton packed
// primitive, otherwise the element count.
func (n *Node) Size() int {
	if len(n.values) == 1 {
		if l, ok := packedLen(n.values[0]); ok {
			return l
		}
	}
	return len(n.values)
}

// unwrap requires a singleton node and, if its value is a one-element
// packed primitive, unwraps it to the bare scalar.
func (n *Node) unwrap() (pbvalue.FieldValue, error) {
	if len(n.values) != 1 {
		return nil, dnnerrors.TypeMismatchf("node is not a singleton (length %d)", len(n.values))
	}
	v := n.values[0]
	if l, ok := packedLen(v); ok {
		if l != 1 {
			return nil, dnnerrors.TypeMismatchf("packed field has %d elements, not 1", l)
		}
		elem, _, err := packedElementAt(v, 0)
		if err != nil {
			return nil, err
		}
		return elem, nil
	}
	return v, nil
}

// Int32 extracts a singleton int32 scalar.
func (n *Node) Int32() (int32, error) {
	v, err := n.unwrap()
	if err != nil {
		return 0, err
	}
	s, ok := v.(*pbvalue.Int32)
	if !ok {
		return 0, dnnerrors.TypeMismatchf("field is not int32")
	}
	return s.Value, nil
}

// UInt32 extracts a singleton uint32 scalar.
func (n *Node) UInt32() (uint32, error) {
	v, err := n.unwrap()
	if err != nil {
		return 0, err
	}
	s, ok := v.(*pbvalue.UInt32)
	if !ok {
		return 0, dnnerrors.TypeMismatchf("field is not uint32")
	}
	return s.Value, nil
}

// Int64 extracts a singleton int64 scalar.
func (n *Node) Int64() (int64, error) {
	v, err := n.unwrap()
	if err != nil {
		return 0, err
	}
	s, ok := v.(*pbvalue.Int64)
	if !ok {
		return 0, dnnerrors.TypeMismatchf("field is not int64")
	}
	return s.Value, nil
}

// UInt64 extracts a singleton uint64 scalar.
func (n *Node) UInt64() (uint64, error) {
	v, err := n.unwrap()
	if err != nil {
		return 0, err
	}
	s, ok := v.(*pbvalue.UInt64)
	if !ok {
		return 0, dnnerrors.TypeMismatchf("field is not uint64")
	}
	return s.Value, nil
}

// Float extracts a singleton float32 scalar.
func (n *Node) Float() (float32, error) {
	v, err := n.unwrap()
	if err != nil {
		return 0, err
	}
	s, ok := v.(*pbvalue.Float)
	if !ok {
		return 0, dnnerrors.TypeMismatchf("field is not float")
	}
	return s.Value, nil
}

// Double extracts a singleton float64 scalar.
func (n *Node) Double() (float64, error) {
	v, err := n.unwrap()
	if err != nil {
		return 0, err
	}
	s, ok := v.(*pbvalue.Double)
	if !ok {
		return 0, dnnerrors.TypeMismatchf("field is not double")
	}
	return s.Value, nil
}

// Bool extracts a singleton bool scalar.
func (n *Node) Bool() (bool, error) {
	v, err := n.unwrap()
	if err != nil {
		return false, err
	}
	s, ok := v.(*pbvalue.Bool)
	if !ok {
		return false, dnnerrors.TypeMismatchf("field is not bool")
	}
	return s.Value, nil
}

// String extracts a singleton string scalar.
func (n *Node) String() (string, error) {
	v, err := n.unwrap()
	if err != nil {
		return "", err
	}
	s, ok := v.(*pbvalue.String)
	if !ok {
		return "", dnnerrors.TypeMismatchf("field is not string")
	}
	return s.Value, nil
}

// EnumName extracts a singleton enum scalar's symbolic name.
func (n *Node) EnumName() (string, error) {
	v, err := n.unwrap()
	if err != nil {
		return "", err
	}
	s, ok := v.(*pbvalue.EnumValue)
	if !ok {
		return "", dnnerrors.TypeMismatchf("field is not enum")
	}
	return s.Name(), nil
}

// CopyTo writes this node's elements into dst. If the node is a
// singleton packed primitive, it is a bulk byte copy with an exact
// byte-count assertion; otherwise each node is written scalar-by-
// scalar in its own detected type.
func (n *Node) CopyTo(dst []byte) error {
	if len(n.values) == 1 {
		if count, elemSize, ok := packedBytes(n.values[0]); ok {
			want := count * elemSize
			if len(dst) != want {
				return dnnerrors.TypeMismatchf("copy_to: destination has %d bytes, need %d", len(dst), want)
			}
			copy(dst, packedRawBytes(n.values[0]))
			return nil
		}
	}
	off := 0
	for _, v := range n.values {
		w, err := scalarByteWidth(v)
		if err != nil {
			return err
		}
		if off+w > len(dst) {
			return dnnerrors.TypeMismatchf("copy_to: destination too small at element offset %d", off)
		}
		if err := writeScalar(dst[off:off+w], v); err != nil {
			return err
		}
		off += w
	}
	if off != len(dst) {
		return dnnerrors.TypeMismatchf("copy_to: destination has %d bytes, wrote %d", len(dst), off)
	}
	return nil
}

func scalarByteWidth(v pbvalue.FieldValue) (int, error) {
	switch v.(type) {
	case *pbvalue.Int32, *pbvalue.UInt32, *pbvalue.Float:
		return 4, nil
	case *pbvalue.Int64, *pbvalue.UInt64, *pbvalue.Double:
		return 8, nil
	case *pbvalue.Bool:
		return 1, nil
	default:
		return 0, dnnerrors.TypeMismatchf("copy_to: unsupported element type")
	}
}

func writeScalar(dst []byte, v pbvalue.FieldValue) error {
	switch t := v.(type) {
	case *pbvalue.Int32:
		binary.LittleEndian.PutUint32(dst, uint32(t.Value))
	case *pbvalue.UInt32:
		binary.LittleEndian.PutUint32(dst, t.Value)
	case *pbvalue.Float:
		binary.LittleEndian.PutUint32(dst, math.Float32bits(t.Value))
	case *pbvalue.Int64:
		binary.LittleEndian.PutUint64(dst, uint64(t.Value))
	case *pbvalue.UInt64:
		binary.LittleEndian.PutUint64(dst, t.Value)
	case *pbvalue.Double:
		binary.LittleEndian.PutUint64(dst, math.Float64bits(t.Value))
	case *pbvalue.Bool:
		if t.Value {
			dst[0] = 1
		} else {
			dst[0] = 0
		}
	default:
		return dnnerrors.TypeMismatchf("copy_to: unsupported element type")
	}
	return nil
}

// IsInt32 reports whether every element is convertible as int32.
func (n *Node) IsInt32() bool { return n.allAre(func(v pbvalue.FieldValue) bool { _, ok := v.(*pbvalue.Int32); return ok }) }

// IsFloat reports whether every element is convertible as float32.
func (n *Node) IsFloat() bool { return n.allAre(func(v pbvalue.FieldValue) bool { _, ok := v.(*pbvalue.Float); return ok }) }

// IsDouble reports whether every element is convertible as float64.
func (n *Node) IsDouble() bool { return n.allAre(func(v pbvalue.FieldValue) bool { _, ok := v.(*pbvalue.Double); return ok }) }

// IsString reports whether every element is convertible as string.
func (n *Node) IsString() bool { return n.allAre(func(v pbvalue.FieldValue) bool { _, ok := v.(*pbvalue.String); return ok }) }

// IsMessage reports whether every element is a nested message.
func (n *Node) IsMessage() bool {
	return n.allAre(func(v pbvalue.FieldValue) bool { _, ok := v.(*pbschema.MessageSchema); return ok })
}

func (n *Node) allAre(pred func(pbvalue.FieldValue) bool) bool {
	if len(n.values) == 0 {
		return false
	}
	for _, v := range n.values {
		if !pred(v) {
			return false
		}
	}
	return true
}
