// Package legacy implements the Legacy Tensor Stream Reader: a
// little-endian, index-deduplicated tagged object stream (originally a
// serialized Lua/Torch table graph) that yields tensors, storages, and
// a raw tree of nn.*/cunn.*/cudnn.*/fbcunn.* module records. Turning
// that raw tree into normalized layer parameters is the Module Tree
// Builder's job (package moduletree).
package legacy

import (
	"encoding/binary"
	"math"
	"strings"

	"github.com/lensframe/dnncore/internal/dnnerrors"
	"github.com/lensframe/dnncore/internal/dnnmetrics"
)

// Tag values for the legacy object stream (spec §4.8).
const (
	TagNil             = 0
	TagNumber          = 1
	TagString          = 2
	TagTable           = 3
	TagTorch           = 4
	TagBoolean         = 5
	TagFunction        = 6
	TagLegacyRecurFunc = 7
	TagRecurFunction   = 8
)

// classesWithNoTable is the fixed set of nn classes that carry no
// parameters of their own: their body is a single generic object read
// (and discarded), not a named scalar/tensor table.
var classesWithNoTable = map[string]bool{
	"ReLU":      true,
	"Tanh":      true,
	"Sigmoid":   true,
	"CAddTable": true,
}

// containerClasses recurse into their table with this module pushed as
// the current container, so nested nn-class reads attach as children.
var containerClasses = map[string]bool{
	"Sequential":  true,
	"Parallel":    true,
	"Concat":      true,
	"ConcatTable": true,
	"JoinTable":   true,
}

// Tensor is a materialized dense f32 tensor: the strided storage view
// has already been densified into row-major contiguous Data.
type Tensor struct {
	Dims []int
	Data []float32
}

// Storage is a flat element buffer read from the stream; every
// element is widened to float64 at read time (Long storage included),
// so Tensor materialization always draws from a single numeric type.
type Storage struct {
	ElementType string
	Values      []float64
}

// RawModule is an unnormalized node straight off the wire: a torch
// index, its stripped nn-class name, a scalar-value dict (numbers,
// strings, bools, and storage-derived arrays), a tensor-valued dict
// keyed by parameter name (with the originating torch index kept
// alongside for indices_blob_id-style lookups), and children attached
// during container recursion.
type RawModule struct {
	Index       int
	ThName      string
	Scalars     map[string]any
	Tensors     map[string]*Tensor
	TensorIndex map[string]int
	Children    []*RawModule
}

// Stream reads the legacy object stream and owns the back-reference
// tables every TORCH object's index is deduplicated against.
type Stream struct {
	buf     []byte
	pos     int
	readIdx map[int]bool
	storage map[int]*Storage
	tensors map[int]*Tensor

	stack []*RawModule
}

// NewStream wraps a byte slice for sequential legacy decoding.
func NewStream(buf []byte) *Stream {
	return &Stream{
		buf:     buf,
		readIdx: make(map[int]bool),
		storage: make(map[int]*Storage),
		tensors: make(map[int]*Tensor),
	}
}

func (s *Stream) top() *RawModule { return s.stack[len(s.stack)-1] }
func (s *Stream) push(m *RawModule) { s.stack = append(s.stack, m) }
func (s *Stream) pop()              { s.stack = s.stack[:len(s.stack)-1] }

func (s *Stream) readBytes(n int) ([]byte, error) {
	if n < 0 || s.pos+n > len(s.buf) {
		return nil, dnnerrors.Parsef("unexpected end of legacy stream reading %d bytes", n)
	}
	b := s.buf[s.pos : s.pos+n]
	s.pos += n
	return b, nil
}

func (s *Stream) readInt32() (int32, error) {
	b, err := s.readBytes(4)
	if err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(b)), nil
}

func (s *Stream) readInt64() (int64, error) {
	b, err := s.readBytes(8)
	if err != nil {
		return 0, err
	}
	return int64(binary.LittleEndian.Uint64(b)), nil
}

func (s *Stream) readFloat64() (float64, error) {
	b, err := s.readBytes(8)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(b)), nil
}

func (s *Stream) readBool() (bool, error) {
	n, err := s.readInt32()
	if err != nil {
		return false, err
	}
	return n != 0, nil
}

func (s *Stream) readString() (string, error) {
	n, err := s.readInt32()
	if err != nil {
		return "", err
	}
	b, err := s.readBytes(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// readClassName reads a class-name line: either "V <version>" followed
// by the real class name, or the class name directly. Every TORCH
// object read — including ones nested inside tables — goes through
// this one function, so the "V "-prefixed form is handled uniformly no
// matter how deep the nesting.
func (s *Stream) readClassName() (string, error) {
	first, err := s.readString()
	if err != nil {
		return "", err
	}
	if strings.HasPrefix(first, "V ") {
		return s.readString()
	}
	return first, nil
}

func parseTorchType(className, suffix string) (string, bool) {
	const prefix = "torch."
	if !strings.HasPrefix(className, prefix) || !strings.HasSuffix(className, suffix) {
		return "", false
	}
	typeStr := className[len(prefix) : len(className)-len(suffix)]
	switch typeStr {
	case "Double":
		return "f64", true
	case "Float", "Cuda":
		return "f32", true
	case "Byte":
		return "u8", true
	case "Char":
		return "i8", true
	case "Short":
		return "i16", true
	case "Int":
		return "i32", true
	case "Long":
		return "i64", true
	default:
		return "", false
	}
}

func isNNClass(className string) (string, bool) {
	for _, prefix := range []string{"nn.", "cunn.", "cudnn.", "fbcunn."} {
		if strings.HasPrefix(className, prefix) {
			return className[len(prefix):], true
		}
	}
	return "", false
}

func elementWidth(elementType string) int {
	switch elementType {
	case "f64", "i64":
		return 8
	case "f32", "i32":
		return 4
	case "i16":
		return 2
	case "u8", "i8":
		return 1
	default:
		return 0
	}
}

// ReadRoot reads one top-level object into a synthetic Sequential root
// (spec §4.9's "output is rooted at a Sequential wrapping the
// top-level object tree").
func (s *Stream) ReadRoot() (*RawModule, error) {
	root := &RawModule{ThName: "Sequential"}
	s.stack = []*RawModule{root}
	if err := s.readObject(); err != nil {
		return nil, err
	}
	return root, nil
}

// readObject consumes one generic object: NIL/NUMBER/BOOLEAN/STRING
// are read and discarded, TABLE is fully walked (for back-reference
// side effects) and discarded, TORCH dispatches to readTorchObject.
func (s *Stream) readObject() error {
	tag, err := s.readInt32()
	if err != nil {
		return err
	}
	switch tag {
	case TagNil:
		return nil
	case TagNumber:
		_, err := s.readFloat64()
		return err
	case TagBoolean:
		_, err := s.readBool()
		return err
	case TagString:
		_, err := s.readString()
		return err
	case TagTable:
		return s.skipTable(-1)
	case TagTorch:
		idx, err := s.readInt32()
		if err != nil {
			return err
		}
		return s.readTorchObject(int(idx))
	default:
		return dnnerrors.NotImplementedf("unsupported legacy object tag %d", tag)
	}
}

// skipTable fully parses a table's keys and values for their
// back-reference side effects, without collecting them into a dict.
func (s *Stream) skipTable(index int) error {
	if index < 0 {
		n, err := s.readInt32()
		if err != nil {
			return err
		}
		index = int(n)
	}
	if s.readIdx[index] {
		dnnmetrics.BackReferenceHits.Inc()
		return nil
	}
	s.readIdx[index] = true

	n, err := s.readInt32()
	if err != nil {
		return err
	}
	for i := int32(0); i < n; i++ {
		if err := s.readObject(); err != nil {
			return err
		}
		if err := s.readObject(); err != nil {
			return err
		}
	}
	return nil
}

func (s *Stream) readTorchObject(index int) error {
	if s.readIdx[index] {
		dnnmetrics.BackReferenceHits.Inc()
		return nil
	}
	className, err := s.readClassName()
	if err != nil {
		return err
	}

	switch {
	case func() bool { _, ok := parseTorchType(className, "Tensor"); return ok }():
		elemType, _ := parseTorchType(className, "Tensor")
		if err := s.readTensor(index, elemType); err != nil {
			return err
		}
	case func() bool { _, ok := parseTorchType(className, "Storage"); return ok }():
		elemType, _ := parseTorchType(className, "Storage")
		if err := s.readStorage(index, elemType); err != nil {
			return err
		}
	default:
		nnName, ok := isNNClass(className)
		if !ok {
			return dnnerrors.NotImplementedf("unsupported torch class %q", className)
		}
		if err := s.readModule(index, nnName); err != nil {
			return err
		}
	}

	s.readIdx[index] = true
	return nil
}

func (s *Stream) readModule(index int, thName string) error {
	m := &RawModule{Index: index, ThName: thName}

	if containerClasses[thName] {
		s.top().Children = append(s.top().Children, m)
		s.push(m)
		scalars, tensors, tensorIdx, err := s.readTable()
		s.pop()
		if err != nil {
			return err
		}
		m.Scalars, m.Tensors, m.TensorIndex = scalars, tensors, tensorIdx
		return nil
	}

	if classesWithNoTable[thName] {
		s.top().Children = append(s.top().Children, m)
		return s.readObject()
	}

	scalars, tensors, tensorIdx, err := s.readTable()
	if err != nil {
		return err
	}
	m.Scalars, m.Tensors, m.TensorIndex = scalars, tensors, tensorIdx
	s.top().Children = append(s.top().Children, m)
	return nil
}

// readTable reads a TABLE object's generic (luaType, index) preamble,
// then its key/value pairs, collecting string-keyed entries into
// scalar and tensor dicts. A non-string key is read-and-discarded
// (its bytes are still fully consumed, preserving stream position) —
// this applies uniformly whether the key itself is a scalar or a
// nested TABLE/TORCH object.
func (s *Stream) readTable() (map[string]any, map[string]*Tensor, map[string]int, error) {
	luaType, err := s.readInt32()
	if err != nil {
		return nil, nil, nil, err
	}
	if luaType != TagTable {
		return nil, nil, nil, dnnerrors.Parsef("expected table tag, got %d", luaType)
	}
	index, err := s.readInt32()
	if err != nil {
		return nil, nil, nil, err
	}
	if s.readIdx[int(index)] {
		return nil, nil, nil, dnnerrors.Parsef("table index %d already read", index)
	}
	s.readIdx[int(index)] = true

	scalars := make(map[string]any)
	tensors := make(map[string]*Tensor)
	tensorIdx := make(map[string]int)

	n, err := s.readInt32()
	if err != nil {
		return nil, nil, nil, err
	}
	for i := int32(0); i < n; i++ {
		keyPos := s.pos
		ktype, err := s.readInt32()
		if err != nil {
			return nil, nil, nil, err
		}
		if ktype != TagString {
			s.pos = keyPos
			if err := s.readObject(); err != nil { // key
				return nil, nil, nil, err
			}
			if err := s.readObject(); err != nil { // value
				return nil, nil, nil, err
			}
			continue
		}
		key, err := s.readString()
		if err != nil {
			return nil, nil, nil, err
		}

		valPos := s.pos
		vtype, err := s.readInt32()
		if err != nil {
			return nil, nil, nil, err
		}
		switch vtype {
		case TagTorch:
			vidx, err := s.readInt32()
			if err != nil {
				return nil, nil, nil, err
			}
			if err := s.readTorchObject(int(vidx)); err != nil {
				return nil, nil, nil, err
			}
			if t, ok := s.tensors[int(vidx)]; ok {
				tensors[key] = t
				tensorIdx[key] = int(vidx)
			} else if st, ok := s.storage[int(vidx)]; ok {
				arr := make([]float64, len(st.Values))
				copy(arr, st.Values)
				scalars[key] = arr
			}
		case TagNumber:
			v, err := s.readFloat64()
			if err != nil {
				return nil, nil, nil, err
			}
			scalars[key] = v
		case TagString:
			v, err := s.readString()
			if err != nil {
				return nil, nil, nil, err
			}
			scalars[key] = v
		case TagBoolean:
			v, err := s.readBool()
			if err != nil {
				return nil, nil, nil, err
			}
			scalars[key] = v
		default:
			s.pos = valPos
			if err := s.readObject(); err != nil {
				return nil, nil, nil, err
			}
		}
	}
	return scalars, tensors, tensorIdx, nil
}

func (s *Stream) readStorage(index int, elemType string) error {
	length, err := s.readInt64()
	if err != nil {
		return err
	}
	width := elementWidth(elemType)
	values := make([]float64, length)
	for i := int64(0); i < length; i++ {
		raw, err := s.readBytes(width)
		if err != nil {
			return err
		}
		values[i] = decodeElement(elemType, raw)
	}
	s.storage[index] = &Storage{ElementType: elemType, Values: values}
	return nil
}

func decodeElement(elemType string, raw []byte) float64 {
	switch elemType {
	case "f32":
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(raw)))
	case "f64":
		return math.Float64frombits(binary.LittleEndian.Uint64(raw))
	case "u8":
		return float64(raw[0])
	case "i8":
		return float64(int8(raw[0]))
	case "i16":
		return float64(int16(binary.LittleEndian.Uint16(raw)))
	case "i32":
		return float64(int32(binary.LittleEndian.Uint32(raw)))
	case "i64":
		return float64(int64(binary.LittleEndian.Uint64(raw)))
	default:
		return 0
	}
}

func (s *Stream) readTensor(index int, elemType string) error {
	ndimsN, err := s.readInt32()
	if err != nil {
		return err
	}
	ndims := int(ndimsN)

	sizes := make([]int64, ndims)
	for i := range sizes {
		if sizes[i], err = s.readInt64(); err != nil {
			return err
		}
	}
	strides := make([]int64, ndims)
	for i := range strides {
		if strides[i], err = s.readInt64(); err != nil {
			return err
		}
	}
	offset1based, err := s.readInt64()
	if err != nil {
		return err
	}
	offset := offset1based - 1

	typeidx, err := s.readInt32()
	if err != nil {
		return err
	}
	if typeidx == TagNil {
		if ndims != 0 {
			return dnnerrors.Parsef("tensor %d: nil storage but ndims=%d", index, ndims)
		}
		s.tensors[index] = &Tensor{Dims: []int{}, Data: nil}
		return nil
	}
	if typeidx != TagTorch {
		return dnnerrors.Parsef("tensor %d: expected nested storage object", index)
	}

	storageIdx, err := s.readInt32()
	if err != nil {
		return err
	}
	if !s.readIdx[int(storageIdx)] {
		className, err := s.readClassName()
		if err != nil {
			return err
		}
		storageType, ok := parseTorchType(className, "Storage")
		if !ok || storageType != elemType {
			return dnnerrors.Parsef("tensor %d: storage type %q does not match tensor type %q", index, storageType, elemType)
		}
		if err := s.readStorage(int(storageIdx), storageType); err != nil {
			return err
		}
		s.readIdx[int(storageIdx)] = true
	}

	st := s.storage[int(storageIdx)]
	var requireElems int64
	if ndims > 0 {
		requireElems = offset + strides[0]*sizes[0]
	} else {
		requireElems = offset
	}
	if requireElems > int64(len(st.Values)) {
		return dnnerrors.Parsef("tensor %d: storage has insufficient elements for requested tensor", index)
	}

	dims := make([]int, ndims)
	for i, v := range sizes {
		dims[i] = int(v)
	}
	data := densify(st.Values, dims, strides, offset)

	s.tensors[index] = &Tensor{Dims: dims, Data: data}
	return nil
}

// densify walks a strided view over flat in row-major order, producing
// a dense contiguous float32 copy.
func densify(flat []float64, dims []int, strides []int64, offset int64) []float32 {
	total := 1
	for _, d := range dims {
		total *= d
	}
	out := make([]float32, total)
	if total == 0 {
		return out
	}
	idx := make([]int, len(dims))
	for i := 0; i < total; i++ {
		var pos int64 = offset
		for d := range dims {
			pos += int64(idx[d]) * strides[d]
		}
		out[i] = float32(flat[pos])
		for d := len(dims) - 1; d >= 0; d-- {
			idx[d]++
			if idx[d] < dims[d] {
				break
			}
			idx[d] = 0
		}
	}
	return out
}
