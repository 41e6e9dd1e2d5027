package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lensframe/dnncore/internal/pbschema"
	"github.com/lensframe/dnncore/internal/pbvalue"
	"github.com/lensframe/dnncore/internal/wire"
)

func buildPrintTestSchema(t *testing.T) *pbschema.MessageSchema {
	t.Helper()
	child := pbschema.NewMessageSchema("Child")
	require.NoError(t, child.AddField(&pbvalue.Int32{}, "b", 1, false))

	root := pbschema.NewMessageSchema("Root")
	require.NoError(t, root.AddField(&pbvalue.Int32{}, "a", 1, false))
	require.NoError(t, root.AddField(child, "child", 2, false))
	return root
}

func TestPrintMessageRecursesIntoNestedMessage(t *testing.T) {
	root := buildPrintTestSchema(t)

	var buf []byte
	buf = append(buf, 0x08, 0x05) // a=5
	inner := []byte{0x08, 0x09}   // child.b=9
	buf = append(buf, 0x12, byte(len(inner)))
	buf = append(buf, inner...)

	require.NoError(t, root.ReadBinary(wire.NewReader(buf)))

	var out bytes.Buffer
	require.NoError(t, printMessage(&out, root, 0))

	got := out.String()
	require.Contains(t, got, "a: 5 (x1)")
	require.Contains(t, got, "child (message, 1):")
	require.Contains(t, got, "b: 9 (x1)")
}
