package rtgraph

import (
	"math"

	"github.com/lensframe/dnncore/internal/layer"
)

// The layer kernels themselves are out of this repo's scope (spec
// §1) — Net only ever sees the Layer trait. These fakes exist purely
// to exercise Net's own plumbing (connection wiring, shape
// propagation, in-place aliasing, topological forward order) and
// carry no claim to being a faithful numeric implementation.

type fakeReLU struct{}

func (fakeReLU) GetMemoryShapes(in [][]int, required int) ([][]int, [][]int, bool) {
	out := make([][]int, required)
	for i := range out {
		out[i] = in[0]
	}
	return out, nil, true
}
func (fakeReLU) Finalize([]*layer.Blob, []*layer.Blob) error { return nil }
func (fakeReLU) Forward(inputs, outputs, _ []*layer.Blob) error {
	for i, v := range inputs[0].Data {
		if v > 0 {
			outputs[0].Data[i] = v
		} else {
			outputs[0].Data[i] = 0
		}
	}
	return nil
}

type fakeTanH struct{}

func (fakeTanH) GetMemoryShapes(in [][]int, required int) ([][]int, [][]int, bool) {
	out := make([][]int, required)
	for i := range out {
		out[i] = in[0]
	}
	return out, nil, true
}
func (fakeTanH) Finalize([]*layer.Blob, []*layer.Blob) error { return nil }
func (fakeTanH) Forward(inputs, outputs, _ []*layer.Blob) error {
	for i, v := range inputs[0].Data {
		outputs[0].Data[i] = float32(math.Tanh(float64(v)))
	}
	return nil
}

type fakeSplit struct{}

func (fakeSplit) GetMemoryShapes(in [][]int, required int) ([][]int, [][]int, bool) {
	out := make([][]int, required)
	for i := range out {
		out[i] = in[0]
	}
	return out, nil, false
}
func (fakeSplit) Finalize([]*layer.Blob, []*layer.Blob) error { return nil }
func (fakeSplit) Forward(inputs, outputs, _ []*layer.Blob) error {
	for _, out := range outputs {
		copy(out.Data, inputs[0].Data)
	}
	return nil
}

type fakeEltwiseSum struct{}

func (fakeEltwiseSum) GetMemoryShapes(in [][]int, _ int) ([][]int, [][]int, bool) {
	return [][]int{in[0]}, nil, false
}
func (fakeEltwiseSum) Finalize([]*layer.Blob, []*layer.Blob) error { return nil }
func (fakeEltwiseSum) Forward(inputs, outputs, _ []*layer.Blob) error {
	dst := outputs[0].Data
	for i := range dst {
		dst[i] = 0
	}
	for _, in := range inputs {
		for i, v := range in.Data {
			dst[i] += v
		}
	}
	return nil
}

func init() {
	must(layer.Register("ReLU", func(map[string]any, []*layer.Blob) (layer.Layer, error) { return fakeReLU{}, nil }))
	must(layer.Register("TanH", func(map[string]any, []*layer.Blob) (layer.Layer, error) { return fakeTanH{}, nil }))
	must(layer.Register("Split", func(map[string]any, []*layer.Blob) (layer.Layer, error) { return fakeSplit{}, nil }))
	must(layer.Register("Eltwise", func(map[string]any, []*layer.Blob) (layer.Layer, error) { return fakeEltwiseSum{}, nil }))
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}
