// Package rtgraph implements the Runtime Graph (spec §4.11): a
// process-wide Layer registry lookup per added node, parent-first
// shape propagation and blob allocation (with in-place aliasing when
// a layer allows it), and topological forward execution. Net owns a
// sentinel input layer at id 0; ids are assigned sequentially from 1
// as layers are added, which is also the insertion order Allocate and
// Forward walk in — callers (the Graph Lowerer) are responsible for
// adding and connecting layers in parent-before-child order.
package rtgraph

import (
	"github.com/lensframe/dnncore/internal/dnnerrors"
	"github.com/lensframe/dnncore/internal/layer"
)

// Pin identifies one producer output: (layer id, output index).
type Pin struct {
	SrcID  int
	SrcOut int
}

type node struct {
	id       int
	typeName string
	name     string
	impl     layer.Layer
	inputs   []Pin

	outShapes      [][]int
	internalShapes [][]int
	outputs        []*layer.Blob
	internals      []*layer.Blob
}

// Net is one runtime graph instance. Concurrent forwards on the same
// Net are undefined, matching spec §5's single-threaded model —
// callers serialize their own use.
type Net struct {
	nodes      []*node // nodes[0] is the sentinel input layer
	referenced map[int]bool
	required   map[int]int
	allocated  bool
}

// NewNet creates an empty network with its sentinel input at id 0.
func NewNet() *Net {
	return &Net{
		nodes:      []*node{{id: 0, typeName: "Input"}},
		referenced: make(map[int]bool),
		required:   make(map[int]int),
	}
}

// SetInput seeds the sentinel input layer's sole output with the
// caller-provided blob (the tensor the imported graph runs over).
func (n *Net) SetInput(blob *layer.Blob) {
	n.nodes[0].outputs = []*layer.Blob{blob}
}

// AddLayer constructs typeName's Layer from params/blobs via the
// process-wide registry and appends it to the graph, returning its
// assigned id.
func (n *Net) AddLayer(name, typeName string, params map[string]any, blobs []*layer.Blob) (int, error) {
	ctor, ok := layer.Lookup(typeName)
	if !ok {
		return 0, dnnerrors.NotFoundf("unknown layer type %q", typeName)
	}
	impl, err := ctor(params, blobs)
	if err != nil {
		return 0, err
	}
	id := len(n.nodes)
	n.nodes = append(n.nodes, &node{id: id, typeName: typeName, name: name, impl: impl})
	return id, nil
}

func (n *Net) nodeByID(id int) (*node, error) {
	if id < 0 || id >= len(n.nodes) {
		return nil, dnnerrors.NotFoundf("unknown layer id %d", id)
	}
	return n.nodes[id], nil
}

// Connect binds dst's dstIn-th input pin to (srcID, srcOut).
func (n *Net) Connect(srcID, srcOut, dstID, dstIn int) error {
	if _, err := n.nodeByID(srcID); err != nil {
		return err
	}
	dst, err := n.nodeByID(dstID)
	if err != nil {
		return err
	}
	for len(dst.inputs) <= dstIn {
		dst.inputs = append(dst.inputs, Pin{SrcID: -1, SrcOut: -1})
	}
	dst.inputs[dstIn] = Pin{SrcID: srcID, SrcOut: srcOut}
	n.referenced[srcID] = true
	if srcOut+1 > n.required[srcID] {
		n.required[srcID] = srcOut + 1
	}
	return nil
}

// GetUnconnectedOutLayers returns, in ascending id order, every added
// layer (sentinel excluded) none of whose outputs is currently used as
// any other layer's input — the net-wide query JoinTable/CAddTable
// lowering consumes (spec §4.10).
func (n *Net) GetUnconnectedOutLayers() []int {
	var out []int
	for _, nd := range n.nodes[1:] {
		if !n.referenced[nd.id] {
			out = append(out, nd.id)
		}
	}
	return out
}

// Allocate computes every layer's output/internal shapes in insertion
// order (parents allocate before children, by construction), aliasing
// the input blob in place when the layer allows it and the element
// counts match, then calls Finalize.
func (n *Net) Allocate() error {
	for _, nd := range n.nodes[1:] {
		inputs, inShapes, err := n.resolveInputs(nd)
		if err != nil {
			return err
		}
		required := n.required[nd.id]
		if required == 0 {
			required = 1
		}
		outShapes, internalShapes, inplaceAllowed := nd.impl.GetMemoryShapes(inShapes, required)
		nd.outShapes = outShapes
		nd.internalShapes = internalShapes

		nd.outputs = make([]*layer.Blob, len(outShapes))
		for i, shape := range outShapes {
			if i == 0 && inplaceAllowed && len(inputs) == 1 && elemCount(shape) == inputs[0].Len() {
				nd.outputs[i] = &layer.Blob{Shape: append([]int{}, shape...), Data: inputs[0].Data}
				continue
			}
			nd.outputs[i] = layer.NewBlob(shape)
		}
		nd.internals = make([]*layer.Blob, len(internalShapes))
		for i, shape := range internalShapes {
			nd.internals[i] = layer.NewBlob(shape)
		}
		if err := nd.impl.Finalize(inputs, nd.outputs); err != nil {
			return dnnerrors.Wrap(dnnerrors.KindInternal, err, "finalize layer %q", nd.name)
		}
	}
	n.allocated = true
	return nil
}

func elemCount(shape []int) int {
	c := 1
	for _, d := range shape {
		c *= d
	}
	return c
}

func (n *Net) resolveInputs(nd *node) ([]*layer.Blob, [][]int, error) {
	inputs := make([]*layer.Blob, len(nd.inputs))
	shapes := make([][]int, len(nd.inputs))
	for i, pin := range nd.inputs {
		src, err := n.nodeByID(pin.SrcID)
		if err != nil {
			return nil, nil, err
		}
		if pin.SrcOut < 0 || pin.SrcOut >= len(src.outputs) {
			return nil, nil, dnnerrors.Internalf("layer %q: source %q has no output %d", nd.name, src.name, pin.SrcOut)
		}
		inputs[i] = src.outputs[pin.SrcOut]
		shapes[i] = inputs[i].Shape
	}
	return inputs, shapes, nil
}

// Forward runs every layer once, in insertion (parent-before-child)
// order, allocating first if this is the first call.
func (n *Net) Forward() error {
	if !n.allocated {
		if err := n.Allocate(); err != nil {
			return err
		}
	}
	for _, nd := range n.nodes[1:] {
		inputs, _, err := n.resolveInputs(nd)
		if err != nil {
			return err
		}
		if err := nd.impl.Forward(inputs, nd.outputs, nd.internals); err != nil {
			return dnnerrors.Wrap(dnnerrors.KindInternal, err, "forward layer %q", nd.name)
		}
	}
	return nil
}

// NodeInfo is a read-only snapshot of one placed layer, for
// introspection tooling (internal/dnndump, cmd/dnnimport -dump) that
// has no business touching a node's Layer impl or live blobs.
type NodeInfo struct {
	ID           int
	TypeName     string
	Name         string
	Inputs       []Pin
	OutputShapes [][]int
}

// Describe snapshots every placed layer (sentinel excluded) in
// insertion order. Output shapes are only populated once Allocate has
// run; callers that dump before running a graph get nil shapes.
func (n *Net) Describe() []NodeInfo {
	out := make([]NodeInfo, 0, len(n.nodes)-1)
	for _, nd := range n.nodes[1:] {
		out = append(out, NodeInfo{
			ID:           nd.id,
			TypeName:     nd.typeName,
			Name:         nd.name,
			Inputs:       append([]Pin{}, nd.inputs...),
			OutputShapes: nd.outShapes,
		})
	}
	return out
}

// Output returns the blob at (layerID, outIndex), forwarding first if
// the network has not been allocated yet. After Allocate alone, without
// Forward, it returns the allocated blob without running the layers.
func (n *Net) Output(layerID, outIndex int) (*layer.Blob, error) {
	if !n.allocated {
		if err := n.Forward(); err != nil {
			return nil, err
		}
	}
	nd, err := n.nodeByID(layerID)
	if err != nil {
		return nil, err
	}
	if outIndex < 0 || outIndex >= len(nd.outputs) {
		return nil, dnnerrors.NotFoundf("layer %q has no output %d", nd.name, outIndex)
	}
	return nd.outputs[outIndex], nil
}
