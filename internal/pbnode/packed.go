package pbnode

import (
	"encoding/binary"
	"math"

	"github.com/lensframe/dnncore/internal/dnnerrors"
	"github.com/lensframe/dnncore/internal/pbvalue"
)

// packedLen reports the element count of v if it is a packed
// primitive, and whether v was a packed primitive at all.
func packedLen(v pbvalue.FieldValue) (int, bool) {
	switch t := v.(type) {
	case *pbvalue.PackedInt32:
		return len(t.Values), true
	case *pbvalue.PackedUInt32:
		return len(t.Values), true
	case *pbvalue.PackedInt64:
		return len(t.Values), true
	case *pbvalue.PackedUInt64:
		return len(t.Values), true
	case *pbvalue.PackedFloat:
		return len(t.Values), true
	case *pbvalue.PackedDouble:
		return len(t.Values), true
	case *pbvalue.PackedBool:
		return len(t.Values), true
	default:
		return 0, false
	}
}

// packedElementAt returns element i of v as a bare scalar FieldValue.
// The second return reports whether v was a packed primitive at all
// (false means the caller should fall back to list-index semantics).
func packedElementAt(v pbvalue.FieldValue, i int) (pbvalue.FieldValue, bool, error) {
	switch t := v.(type) {
	case *pbvalue.PackedInt32:
		if i < 0 || i >= len(t.Values) {
			return nil, true, dnnerrors.NotFoundf("packed index %d out of bounds (length %d)", i, len(t.Values))
		}
		return &pbvalue.Int32{Value: t.Values[i]}, true, nil
	case *pbvalue.PackedUInt32:
		if i < 0 || i >= len(t.Values) {
			return nil, true, dnnerrors.NotFoundf("packed index %d out of bounds (length %d)", i, len(t.Values))
		}
		return &pbvalue.UInt32{Value: t.Values[i]}, true, nil
	case *pbvalue.PackedInt64:
		if i < 0 || i >= len(t.Values) {
			return nil, true, dnnerrors.NotFoundf("packed index %d out of bounds (length %d)", i, len(t.Values))
		}
		return &pbvalue.Int64{Value: t.Values[i]}, true, nil
	case *pbvalue.PackedUInt64:
		if i < 0 || i >= len(t.Values) {
			return nil, true, dnnerrors.NotFoundf("packed index %d out of bounds (length %d)", i, len(t.Values))
		}
		return &pbvalue.UInt64{Value: t.Values[i]}, true, nil
	case *pbvalue.PackedFloat:
		if i < 0 || i >= len(t.Values) {
			return nil, true, dnnerrors.NotFoundf("packed index %d out of bounds (length %d)", i, len(t.Values))
		}
		return &pbvalue.Float{Value: t.Values[i]}, true, nil
	case *pbvalue.PackedDouble:
		if i < 0 || i >= len(t.Values) {
			return nil, true, dnnerrors.NotFoundf("packed index %d out of bounds (length %d)", i, len(t.Values))
		}
		return &pbvalue.Double{Value: t.Values[i]}, true, nil
	case *pbvalue.PackedBool:
		if i < 0 || i >= len(t.Values) {
			return nil, true, dnnerrors.NotFoundf("packed index %d out of bounds (length %d)", i, len(t.Values))
		}
		return &pbvalue.Bool{Value: t.Values[i]}, true, nil
	default:
		return nil, false, nil
	}
}

// packedBytes reports the element count and per-element byte width of
// v if it is a fixed-width packed primitive, for CopyTo's bulk path.
func packedBytes(v pbvalue.FieldValue) (count int, elemSize int, ok bool) {
	switch t := v.(type) {
	case *pbvalue.PackedInt32:
		return len(t.Values), 4, true
	case *pbvalue.PackedUInt32:
		return len(t.Values), 4, true
	case *pbvalue.PackedFloat:
		return len(t.Values), 4, true
	case *pbvalue.PackedInt64:
		return len(t.Values), 8, true
	case *pbvalue.PackedUInt64:
		return len(t.Values), 8, true
	case *pbvalue.PackedDouble:
		return len(t.Values), 8, true
	case *pbvalue.PackedBool:
		return len(t.Values), 1, true
	default:
		return 0, 0, false
	}
}

// packedRawBytes serializes a packed primitive's elements to a
// contiguous little-endian byte slice for CopyTo.
func packedRawBytes(v pbvalue.FieldValue) []byte {
	switch t := v.(type) {
	case *pbvalue.PackedInt32:
		out := make([]byte, len(t.Values)*4)
		for i, x := range t.Values {
			binary.LittleEndian.PutUint32(out[i*4:], uint32(x))
		}
		return out
	case *pbvalue.PackedUInt32:
		out := make([]byte, len(t.Values)*4)
		for i, x := range t.Values {
			binary.LittleEndian.PutUint32(out[i*4:], x)
		}
		return out
	case *pbvalue.PackedFloat:
		out := make([]byte, len(t.Values)*4)
		for i, x := range t.Values {
			binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(x))
		}
		return out
	case *pbvalue.PackedInt64:
		out := make([]byte, len(t.Values)*8)
		for i, x := range t.Values {
			binary.LittleEndian.PutUint64(out[i*8:], uint64(x))
		}
		return out
	case *pbvalue.PackedUInt64:
		out := make([]byte, len(t.Values)*8)
		for i, x := range t.Values {
			binary.LittleEndian.PutUint64(out[i*8:], x)
		}
		return out
	case *pbvalue.PackedDouble:
		out := make([]byte, len(t.Values)*8)
		for i, x := range t.Values {
			binary.LittleEndian.PutUint64(out[i*8:], math.Float64bits(x))
		}
		return out
	case *pbvalue.PackedBool:
		out := make([]byte, len(t.Values))
		for i, x := range t.Values {
			if x {
				out[i] = 1
			}
		}
		return out
	default:
		return nil
	}
}
