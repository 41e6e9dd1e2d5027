package pbbuilder

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lensframe/dnncore/internal/pbdescriptor"
	"github.com/lensframe/dnncore/internal/pbschema"
	"github.com/lensframe/dnncore/internal/pbtext"
	"github.com/lensframe/dnncore/internal/pbvalue"
)

func parseDescriptorSet(t *testing.T, src string) *pbschema.MessageSchema {
	t.Helper()
	set := pbdescriptor.FileDescriptorSet(pbdescriptor.DefaultMaxDepth)
	c := pbtext.NewCursor(pbtext.TokenizePayload([]byte(src)))
	require.NoError(t, set.ReadText(c))
	return set
}

const testProto = `
file {
  name: "test.proto"
  package: "pkg"
  syntax: "proto3"
  message_type {
    name: "M"
    field { name: "a" number: 1 label: 1 type: 5 default_value: "5" }
    field { name: "xs" number: 2 label: 3 type: 5 }
    field { name: "child" number: 3 label: 1 type: 11 type_name: ".pkg.M" }
    field { name: "color" number: 4 label: 1 type: 14 type_name: ".pkg.Color" }
  }
  enum_type {
    name: "Color"
    value { name: "RED" number: 0 }
    value { name: "BLUE" number: 1 }
  }
}
`

func TestBuildMessageProducesExpectedFields(t *testing.T) {
	set := parseDescriptorSet(t, testProto)
	b, err := NewBuilder(set)
	require.NoError(t, err)

	schema, err := b.Build("pkg.M")
	require.NoError(t, err)
	require.Equal(t, "M", schema.Name())
	require.Len(t, schema.Fields(), 4)
}

func TestBuildMessageDetectsProto3PackedRepeated(t *testing.T) {
	set := parseDescriptorSet(t, testProto)
	b, err := NewBuilder(set)
	require.NoError(t, err)

	schema, err := b.Build(".pkg.M")
	require.NoError(t, err)

	var xsTemplate interface{}
	for _, f := range schema.Fields() {
		if f.Name == "xs" {
			xsTemplate = f.Template
		}
	}
	_, ok := xsTemplate.(*pbvalue.PackedInt32)
	require.True(t, ok, "expected proto3 repeated int32 to build as a packed template")
}

func TestBuildMessageAppliesDefaultValue(t *testing.T) {
	set := parseDescriptorSet(t, testProto)
	b, err := NewBuilder(set)
	require.NoError(t, err)

	schema, err := b.Build(".pkg.M")
	require.NoError(t, err)

	require.False(t, schema.Has("a"))
	vs := schema.Get("a")
	require.Len(t, vs, 1)
	require.Equal(t, int32(5), vs[0].(*pbvalue.Int32).Value)
}

func TestBuildMessageSelfReferenceResolvesToSameSchema(t *testing.T) {
	set := parseDescriptorSet(t, testProto)
	b, err := NewBuilder(set)
	require.NoError(t, err)

	schema, err := b.Build(".pkg.M")
	require.NoError(t, err)

	var childTemplate *pbschema.MessageSchema
	for _, f := range schema.Fields() {
		if f.Name == "child" {
			childTemplate = f.Template.(*pbschema.MessageSchema)
		}
	}
	require.NotNil(t, childTemplate)
	require.Same(t, schema, childTemplate)
}

func TestBuildMessageResolvesEnumField(t *testing.T) {
	set := parseDescriptorSet(t, testProto)
	b, err := NewBuilder(set)
	require.NoError(t, err)

	schema, err := b.Build(".pkg.M")
	require.NoError(t, err)

	var colorTemplate *pbvalue.EnumValue
	for _, f := range schema.Fields() {
		if f.Name == "color" {
			colorTemplate = f.Template.(*pbvalue.EnumValue)
		}
	}
	require.NotNil(t, colorTemplate)

	clone := colorTemplate.CloneAsTemplate().(*pbvalue.EnumValue)
	c := pbtext.NewCursor(pbtext.Tokenize("BLUE"))
	require.NoError(t, clone.ReadText(c))
	require.Equal(t, "BLUE", clone.Name())
}

func TestBuildMessageUnknownRootFails(t *testing.T) {
	set := parseDescriptorSet(t, testProto)
	b, err := NewBuilder(set)
	require.NoError(t, err)

	_, err = b.Build(".pkg.Nonexistent")
	require.Error(t, err)
}

func TestRoundTripTextThroughBuiltSchema(t *testing.T) {
	set := parseDescriptorSet(t, testProto)
	b, err := NewBuilder(set)
	require.NoError(t, err)

	schema, err := b.Build(".pkg.M")
	require.NoError(t, err)

	inst := schema.CloneAsTemplate().(*pbschema.MessageSchema)
	c := pbtext.NewCursor(pbtext.TokenizePayload([]byte(`a: 9 xs: 1 xs: 2 xs: 3`)))
	require.NoError(t, inst.ReadText(c))
	require.Equal(t, int32(9), inst.Get("a")[0].(*pbvalue.Int32).Value)
}
