package pbdescriptor

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lensframe/dnncore/internal/pbschema"
)

func fieldNamed(m *pbschema.MessageSchema, name string) bool {
	for _, f := range m.Fields() {
		if f.Name == name {
			return true
		}
	}
	return false
}

func TestMessageDescriptorDepthBoundDropsFieldAtZero(t *testing.T) {
	top := MessageDescriptor(0)
	require.False(t, fieldNamed(top, "message_type"))
}

func TestMessageDescriptorNestsUpToDepth(t *testing.T) {
	top := MessageDescriptor(2)
	require.True(t, fieldNamed(top, "message_type"))

	var nested *pbschema.MessageSchema
	for _, f := range top.Fields() {
		if f.Name == "message_type" {
			nested = f.Template.(*pbschema.MessageSchema)
		}
	}
	require.NotNil(t, nested)
	require.True(t, fieldNamed(nested, "message_type"))
}

func TestEnumDescriptorNeverSelfReferences(t *testing.T) {
	enum := EnumDescriptor()
	for _, f := range enum.Fields() {
		if m, ok := f.Template.(*pbschema.MessageSchema); ok {
			require.NotEqual(t, "EnumDescriptor", m.Name())
		}
	}
}

func TestTypeAndLabelMaps(t *testing.T) {
	require.Equal(t, "int32", TypeName[5])
	require.Equal(t, "message", TypeName[11])
	require.Equal(t, "repeated", LabelName[3])
}

func TestFileDescriptorSetHasFileField(t *testing.T) {
	set := FileDescriptorSet(DefaultMaxDepth)
	require.True(t, fieldNamed(set, "file"))
}
