// Package graphlower implements the Graph Lowerer (spec §4.10): it
// walks a normalized moduletree.Module tree and places runtime layers
// into an internal/rtgraph.Net, threading connections the way
// torch_importer.cpp's fill() does for each container kind.
package graphlower

import (
	"github.com/lensframe/dnncore/internal/dnnerrors"
	"github.com/lensframe/dnncore/internal/dnnmetrics"
	"github.com/lensframe/dnncore/internal/layer"
	"github.com/lensframe/dnncore/internal/legacy"
	"github.com/lensframe/dnncore/internal/moduletree"
	"github.com/lensframe/dnncore/internal/rtgraph"
)

// pin identifies one producer output, mirroring rtgraph.Pin.
type pin struct {
	layerID int
	output  int
}

type addedEntry struct {
	layerID int
	module  *moduletree.Module
}

type lowerer struct {
	net   *rtgraph.Net
	added []addedEntry
}

// Lower places root into a fresh runtime graph, feeding its top level
// from the network's sentinel input (layer id 0, output 0), and
// returns the populated graph.
func Lower(root *moduletree.Module) (*rtgraph.Net, error) {
	l := &lowerer{net: rtgraph.NewNet()}
	if _, err := l.place(root, pin{0, 0}); err != nil {
		return nil, err
	}
	dnnmetrics.GraphDepth.Set(float64(graphDepth(l.net)))
	return l.net, nil
}

// graphDepth walks net's nodes in insertion (parent-before-child) order,
// accumulating each node's longest path from the sentinel input, and
// returns the longest chain found.
func graphDepth(net *rtgraph.Net) int {
	depth := map[int]int{0: 0}
	longest := 0
	for _, nd := range net.Describe() {
		d := 0
		for _, in := range nd.Inputs {
			if depth[in.SrcID]+1 > d {
				d = depth[in.SrcID] + 1
			}
		}
		depth[nd.ID] = d
		if d > longest {
			longest = d
		}
	}
	return longest
}

func (l *lowerer) place(m *moduletree.Module, prev pin) (pin, error) {
	if m.APIType != "" {
		return l.placePrimitive(m, prev)
	}
	switch m.ClassName {
	case "Sequential":
		return l.placeSequential(m, prev)
	case "Concat":
		return l.placeConcat(m, prev)
	case "Parallel":
		return l.placeParallel(m, prev)
	case "ConcatTable":
		return l.placeConcatTable(m, prev)
	case "JoinTable":
		return l.placeJoinTable(m, prev)
	case "CAddTable":
		return l.placeCAddTable(m, prev)
	case "SpatialMaxUnpooling":
		return l.placeMaxUnpool(m, prev)
	default:
		return pin{}, dnnerrors.Internalf("graphlower: unhandled container class %q", m.ClassName)
	}
}

func blobsFromTensors(tensors []*legacy.Tensor) []*layer.Blob {
	out := make([]*layer.Blob, len(tensors))
	for i, t := range tensors {
		out[i] = layer.NewBlobFromData(t.Dims, t.Data)
	}
	return out
}

func dimParam(m *moduletree.Module, key string) int {
	v, _ := m.Params[key].(float64)
	return int(v)
}

func (l *lowerer) addLayer(name, apiType string, params map[string]any, blobs []*layer.Blob) (int, error) {
	id, err := l.net.AddLayer(name, apiType, params, blobs)
	if err != nil {
		return 0, dnnerrors.Wrap(dnnerrors.KindInternal, err, "graphlower: adding %q", apiType)
	}
	return id, nil
}

// placePrimitive adds a single layer node for m and wires prev into
// its sole input.
func (l *lowerer) placePrimitive(m *moduletree.Module, prev pin) (pin, error) {
	id, err := l.addLayer(m.ClassName, m.APIType, m.Params, blobsFromTensors(m.Blobs))
	if err != nil {
		return pin{}, err
	}
	if err := l.net.Connect(prev.layerID, prev.output, id, 0); err != nil {
		return pin{}, err
	}
	l.added = append(l.added, addedEntry{layerID: id, module: m})
	return pin{id, 0}, nil
}

// placeSequential folds over children, threading prev through each in
// turn.
func (l *lowerer) placeSequential(m *moduletree.Module, prev pin) (pin, error) {
	cur := prev
	for _, child := range m.Children {
		next, err := l.place(child, cur)
		if err != nil {
			return pin{}, err
		}
		cur = next
	}
	return cur, nil
}

// placeConcat inserts a Split ahead of every branch, then merges the
// branch outputs with a Concat along dimension-1.
func (l *lowerer) placeConcat(m *moduletree.Module, prev pin) (pin, error) {
	split, err := l.addLayer("Concat/split", "Split", nil, nil)
	if err != nil {
		return pin{}, err
	}
	if err := l.net.Connect(prev.layerID, prev.output, split, 0); err != nil {
		return pin{}, err
	}

	branches := make([]pin, len(m.Children))
	for i, child := range m.Children {
		p, err := l.place(child, pin{split, i})
		if err != nil {
			return pin{}, err
		}
		branches[i] = p
	}

	concat, err := l.addLayer("Concat", "Concat", map[string]any{"axis": float64(dimParam(m, "dimension") - 1)}, nil)
	if err != nil {
		return pin{}, err
	}
	for i, b := range branches {
		if err := l.net.Connect(b.layerID, b.output, concat, i); err != nil {
			return pin{}, err
		}
	}
	return pin{concat, 0}, nil
}

// placeParallel slices the input along inputDimension-1, reshapes away
// that axis with a single multi-port Reshape (axis, num_axes=1) shared
// across every branch the way torch_importer.cpp's fill() wires one
// reshapeId's distinct ports into each branch, threads each reshaped
// port into its corresponding child, and merges the children's outputs
// with a Concat along outputDimension-1.
func (l *lowerer) placeParallel(m *moduletree.Module, prev pin) (pin, error) {
	inAxis := dimParam(m, "inputDimension") - 1
	slice, err := l.addLayer("Parallel/slice", "Slice", map[string]any{"axis": float64(inAxis)}, nil)
	if err != nil {
		return pin{}, err
	}
	if err := l.net.Connect(prev.layerID, prev.output, slice, 0); err != nil {
		return pin{}, err
	}

	reshape, err := l.addLayer("Parallel/reshape", "Reshape", map[string]any{"axis": float64(inAxis), "num_axes": float64(1)}, nil)
	if err != nil {
		return pin{}, err
	}

	branches := make([]pin, len(m.Children))
	for i, child := range m.Children {
		if err := l.net.Connect(slice, i, reshape, i); err != nil {
			return pin{}, err
		}
		p, err := l.place(child, pin{reshape, i})
		if err != nil {
			return pin{}, err
		}
		branches[i] = p
	}

	outAxis := dimParam(m, "outputDimension") - 1
	concat, err := l.addLayer("Parallel/concat", "Concat", map[string]any{"axis": float64(outAxis)}, nil)
	if err != nil {
		return pin{}, err
	}
	for i, b := range branches {
		if err := l.net.Connect(b.layerID, b.output, concat, i); err != nil {
			return pin{}, err
		}
	}
	return pin{concat, 0}, nil
}

// placeConcatTable splits and hangs each child off its own split
// output, returning the last child placed — callers typically follow
// with a JoinTable or CAddTable that gathers every dangling branch.
func (l *lowerer) placeConcatTable(m *moduletree.Module, prev pin) (pin, error) {
	split, err := l.addLayer("ConcatTable/split", "Split", nil, nil)
	if err != nil {
		return pin{}, err
	}
	if err := l.net.Connect(prev.layerID, prev.output, split, 0); err != nil {
		return pin{}, err
	}

	var last pin
	for i, child := range m.Children {
		p, err := l.place(child, pin{split, i})
		if err != nil {
			return pin{}, err
		}
		last = p
	}
	return last, nil
}

// placeJoinTable ignores prev (spec §4.10) and instead merges every
// currently-unconnected output layer in the net with a Concat along
// dimension-1.
func (l *lowerer) placeJoinTable(m *moduletree.Module, _ pin) (pin, error) {
	srcs := l.net.GetUnconnectedOutLayers()
	if len(srcs) == 0 {
		return pin{}, dnnerrors.Internalf("JoinTable: no unconnected output layers to join")
	}
	concat, err := l.addLayer("JoinTable", "Concat", map[string]any{"axis": float64(dimParam(m, "dimension") - 1)}, nil)
	if err != nil {
		return pin{}, err
	}
	for i, src := range srcs {
		if err := l.net.Connect(src, 0, concat, i); err != nil {
			return pin{}, err
		}
	}
	return pin{concat, 0}, nil
}

// placeCAddTable ignores prev and sums every currently-unconnected
// output layer element-wise.
func (l *lowerer) placeCAddTable(m *moduletree.Module, _ pin) (pin, error) {
	srcs := l.net.GetUnconnectedOutLayers()
	if len(srcs) == 0 {
		return pin{}, dnnerrors.Internalf("CAddTable: no unconnected output layers to add")
	}
	add, err := l.addLayer("CAddTable", "Eltwise", map[string]any{"operation": "sum"}, nil)
	if err != nil {
		return pin{}, err
	}
	for i, src := range srcs {
		if err := l.net.Connect(src, 0, add, i); err != nil {
			return pin{}, err
		}
	}
	return pin{add, 0}, nil
}

// placeMaxUnpool resolves m's indices blob id against every Pooling
// layer placed so far, copies that pool's kernel/stride/pad params,
// and wires a 2-input MaxUnpool: the previous pin, and the pool's
// second output (the recorded max indices). Fails if no pool matches.
func (l *lowerer) placeMaxUnpool(m *moduletree.Module, prev pin) (pin, error) {
	target, ok := m.Params["indices_blob_id"].(int)
	if !ok {
		return pin{}, dnnerrors.Parsef("SpatialMaxUnpooling: missing indices_blob_id")
	}

	var poolID int
	var pool *moduletree.Module
	for _, e := range l.added {
		if e.module.APIType != "Pooling" {
			continue
		}
		if id, ok := e.module.Params["indices_blob_id"].(int); ok && id == target {
			poolID, pool = e.layerID, e.module
			break
		}
	}
	if pool == nil {
		return pin{}, dnnerrors.NotFoundf("SpatialMaxUnpooling: no pooling layer producing indices blob %d", target)
	}

	params := map[string]any{
		"pool_k_h":      pool.Params["kernel_h"],
		"pool_k_w":      pool.Params["kernel_w"],
		"pool_stride_h": pool.Params["stride_h"],
		"pool_stride_w": pool.Params["stride_w"],
		"pool_pad_h":    pool.Params["pad_h"],
		"pool_pad_w":    pool.Params["pad_w"],
	}
	unpool, err := l.addLayer(m.ClassName, "MaxUnpool", params, nil)
	if err != nil {
		return pin{}, err
	}
	if err := l.net.Connect(prev.layerID, prev.output, unpool, 0); err != nil {
		return pin{}, err
	}
	if err := l.net.Connect(poolID, 1, unpool, 1); err != nil {
		return pin{}, err
	}
	l.added = append(l.added, addedEntry{layerID: unpool, module: m})
	return pin{unpool, 0}, nil
}
