package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/lensframe/dnncore/internal/dnnerrors"
	"github.com/lensframe/dnncore/internal/pbbuilder"
	"github.com/lensframe/dnncore/internal/pbdescriptor"
	"github.com/lensframe/dnncore/internal/pbnode"
	"github.com/lensframe/dnncore/internal/pbschema"
	"github.com/lensframe/dnncore/internal/pbtext"
	"github.com/lensframe/dnncore/internal/wire"
)

// importProtobuf bootstraps a FileDescriptorSet schema, parses
// descriptorBytes with it, builds rootName's schema from the
// resulting descriptor tree, then parses payloadBytes (binary or
// text, per format) into that schema.
func importProtobuf(descriptorBytes, payloadBytes []byte, rootName, format string, depth int) (*pbschema.MessageSchema, error) {
	descSet := pbdescriptor.FileDescriptorSet(depth)
	if err := descSet.ReadBinary(wire.NewReader(descriptorBytes)); err != nil {
		return nil, fmt.Errorf("parse descriptor set: %w", err)
	}

	builder, err := pbbuilder.NewBuilder(descSet)
	if err != nil {
		return nil, fmt.Errorf("build schema registry: %w", err)
	}
	root, err := builder.Build(rootName)
	if err != nil {
		return nil, fmt.Errorf("resolve root message %q: %w", rootName, err)
	}

	switch format {
	case "binary", "":
		if err := root.ReadBinary(wire.NewReader(payloadBytes)); err != nil {
			return nil, fmt.Errorf("parse binary payload: %w", err)
		}
	case "text":
		tokens := pbtext.TokenizePayload(payloadBytes)
		if err := root.ReadText(pbtext.NewCursor(tokens)); err != nil {
			return nil, fmt.Errorf("parse text payload: %w", err)
		}
	default:
		return nil, dnnerrors.Parsef("unknown -format %q (want \"binary\" or \"text\")", format)
	}
	return root, nil
}

// printMessage recursively prints a parsed message's fields. Leaf
// scalars print their first value via the Node Accessor's typed
// getters; message fields recurse one level per child.
func printMessage(w io.Writer, m *pbschema.MessageSchema, depth int) error {
	indent := strings.Repeat("  ", depth)
	for _, f := range m.Fields() {
		values := m.Get(f.Name)
		if len(values) == 0 {
			continue
		}
		node := pbnode.New(values)
		if node.IsMessage() {
			fmt.Fprintf(w, "%s%s (message, %d):\n", indent, f.Name, len(values))
			for _, v := range values {
				childMsg, ok := v.(*pbschema.MessageSchema)
				if !ok {
					continue
				}
				if err := printMessage(w, childMsg, depth+1); err != nil {
					return err
				}
			}
			continue
		}
		fmt.Fprintf(w, "%s%s: %s\n", indent, f.Name, previewScalar(node))
	}
	return nil
}

func previewScalar(n *pbnode.Node) string {
	switch {
	case n.IsInt32():
		v, err := n.Int32()
		if err == nil {
			return fmt.Sprintf("%d (x%d)", v, n.Size())
		}
	case n.IsFloat():
		v, err := n.Float()
		if err == nil {
			return fmt.Sprintf("%g (x%d)", v, n.Size())
		}
	case n.IsDouble():
		v, err := n.Double()
		if err == nil {
			return fmt.Sprintf("%g (x%d)", v, n.Size())
		}
	case n.IsString():
		v, err := n.String()
		if err == nil {
			return fmt.Sprintf("%q (x%d)", v, n.Size())
		}
	}
	return fmt.Sprintf("<%d value(s)>", n.Size())
}
