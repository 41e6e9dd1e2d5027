package pbschema

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lensframe/dnncore/internal/pbtext"
	"github.com/lensframe/dnncore/internal/pbvalue"
	"github.com/lensframe/dnncore/internal/wire"
)

func buildTestSchema(t *testing.T) *MessageSchema {
	t.Helper()
	m := NewMessageSchema("M")
	require.NoError(t, m.AddField(&pbvalue.Int32{}, "a", 1, false))
	require.NoError(t, m.AddField(&pbvalue.PackedFloat{}, "b", 2, false))
	return m
}

func TestAddFieldRejectsDuplicateTag(t *testing.T) {
	m := NewMessageSchema("M")
	require.NoError(t, m.AddField(&pbvalue.Int32{}, "a", 1, false))
	err := m.AddField(&pbvalue.Int32{}, "a2", 1, false)
	require.Error(t, err)
}

func TestAddFieldRejectsDuplicateName(t *testing.T) {
	m := NewMessageSchema("M")
	require.NoError(t, m.AddField(&pbvalue.Int32{}, "a", 1, false))
	err := m.AddField(&pbvalue.Int32{}, "a", 2, false)
	require.Error(t, err)
}

// TestReadBinaryTopLevel exercises S1 from the spec: M{int32 a=1;
// repeated float b=2 [packed=true];} with payload
// 08 07 12 08 followed by 2 packed floats (8 bytes).
func TestReadBinaryTopLevel(t *testing.T) {
	m := buildTestSchema(t)

	var buf []byte
	buf = append(buf, 0x08, 0x07) // key tag=1 varint, value=7
	buf = append(buf, 0x12, 0x08) // key tag=2 length-delimited, length=8
	buf = append(buf, 0x00, 0x00, 0x80, 0x3f) // 1.0f
	buf = append(buf, 0x00, 0x00, 0x40, 0x40) // 3.0f

	r := wire.NewReader(buf)
	require.NoError(t, m.ReadBinary(r))

	a := m.Get("a")
	require.Len(t, a, 1)
	require.Equal(t, int32(7), a[0].(*pbvalue.Int32).Value)

	b := m.Get("b")
	require.Len(t, b, 1)
	require.Equal(t, []float32{1.0, 3.0}, b[0].(*pbvalue.PackedFloat).Values)
}

func TestReadBinarySkipsUnknownTag(t *testing.T) {
	m := buildTestSchema(t)

	var buf []byte
	buf = append(buf, 0x18, 0x05) // tag=3 (unknown), varint 5
	buf = append(buf, 0x08, 0x07) // tag=1, value 7

	r := wire.NewReader(buf)
	require.NoError(t, m.ReadBinary(r))
	require.True(t, m.Has("a"))
	require.False(t, m.Has("c"))
}

func TestGetReturnsDefaultWhenNotParsed(t *testing.T) {
	m := NewMessageSchema("M")
	require.NoError(t, m.AddField(pbvalue.NewInt32("5"), "a", 1, true))

	require.False(t, m.Has("a"))
	vs := m.Get("a")
	require.Len(t, vs, 1)
	require.Equal(t, int32(5), vs[0].(*pbvalue.Int32).Value)
}

func TestGetReturnsEmptyWithNoDefault(t *testing.T) {
	m := buildTestSchema(t)
	require.Nil(t, m.Get("a"))
}

func TestRemoveDropsOccurrence(t *testing.T) {
	m := buildTestSchema(t)
	buf := append(wire.EncodeVarint(nil, uint64(1<<3|0)), wire.EncodeVarint(nil, 1)...)
	buf = append(buf, wire.EncodeVarint(nil, uint64(1<<3|0))...)
	buf = append(buf, wire.EncodeVarint(nil, 2)...)
	r := wire.NewReader(buf)
	require.NoError(t, m.ReadBinary(r))
	require.Len(t, m.Get("a"), 2)

	require.NoError(t, m.Remove("a", 0))
	vs := m.Get("a")
	require.Len(t, vs, 1)
	require.Equal(t, int32(2), vs[0].(*pbvalue.Int32).Value)
}

func TestReadTextRequiresOpenBrace(t *testing.T) {
	m := buildTestSchema(t)
	c := pbtext.NewCursor(pbtext.Tokenize("a: 1"))
	require.Error(t, m.ReadText(c))
}

func TestReadTextParsesFields(t *testing.T) {
	m := buildTestSchema(t)
	c := pbtext.NewCursor(pbtext.TokenizePayload([]byte("a: 7")))
	require.NoError(t, m.ReadText(c))
	require.True(t, m.Has("a"))
	require.Equal(t, int32(7), m.Get("a")[0].(*pbvalue.Int32).Value)
}

func TestReadTextRejectsUnknownField(t *testing.T) {
	m := buildTestSchema(t)
	c := pbtext.NewCursor(pbtext.TokenizePayload([]byte("z: 7")))
	require.Error(t, m.ReadText(c))
}

func TestNestedMessageField(t *testing.T) {
	inner := NewMessageSchema("Inner")
	require.NoError(t, inner.AddField(&pbvalue.Int32{}, "x", 1, false))

	outer := NewMessageSchema("Outer")
	require.NoError(t, outer.AddField(inner, "child", 1, false))

	c := pbtext.NewCursor(pbtext.TokenizePayload([]byte("child { x: 9 }")))
	require.NoError(t, outer.ReadText(c))

	childVals := outer.Get("child")
	require.Len(t, childVals, 1)
	child := childVals[0].(*MessageSchema)
	require.Equal(t, int32(9), child.Get("x")[0].(*pbvalue.Int32).Value)
}

func TestCloneAsTemplateSharesSchemaNotValues(t *testing.T) {
	m := buildTestSchema(t)
	c := pbtext.NewCursor(pbtext.TokenizePayload([]byte("a: 1")))
	require.NoError(t, m.ReadText(c))

	clone := m.CloneAsTemplate().(*MessageSchema)
	require.False(t, clone.Has("a"))
	require.Len(t, clone.Fields(), 2)
}
