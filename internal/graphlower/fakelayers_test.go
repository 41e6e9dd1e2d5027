package graphlower

import (
	"math"

	"github.com/lensframe/dnncore/internal/layer"
)

// Concrete layer kernels are out of this repo's scope (spec §1); the
// Graph Lowerer only ever constructs layers through the registry by
// name. These fakes exist solely to exercise lowering + the resulting
// graph's plumbing end to end and carry no claim to faithful numeric
// behavior beyond what each test checks.

type fakeElementwise struct {
	fn func(float32) float32
}

func (fakeElementwise) GetMemoryShapes(in [][]int, required int) ([][]int, [][]int, bool) {
	out := make([][]int, required)
	for i := range out {
		out[i] = in[0]
	}
	return out, nil, true
}
func (fakeElementwise) Finalize([]*layer.Blob, []*layer.Blob) error { return nil }
func (l fakeElementwise) Forward(inputs, outputs, _ []*layer.Blob) error {
	for i, v := range inputs[0].Data {
		outputs[0].Data[i] = l.fn(v)
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

type fakeConcat struct{ axis int }

func splitDims(shape []int, axis int) (outer, axisLen, inner int) {
	outer, axisLen, inner = 1, shape[axis], 1
	for i := 0; i < axis; i++ {
		outer *= shape[i]
	}
	for i := axis + 1; i < len(shape); i++ {
		inner *= shape[i]
	}
	return
}

func (l fakeConcat) GetMemoryShapes(in [][]int, _ int) ([][]int, [][]int, bool) {
	out := append([]int{}, in[0]...)
	sum := 0
	for _, s := range in {
		sum += s[l.axis]
	}
	out[l.axis] = sum
	return [][]int{out}, nil, false
}
func (fakeConcat) Finalize([]*layer.Blob, []*layer.Blob) error { return nil }
func (l fakeConcat) Forward(inputs, outputs, _ []*layer.Blob) error {
	out := outputs[0]
	outer, outAxisLen, inner := splitDims(out.Shape, l.axis)
	offset := 0
	for _, in := range inputs {
		_, axisLen, _ := splitDims(in.Shape, l.axis)
		for o := 0; o < outer; o++ {
			srcBase := o * axisLen * inner
			dstBase := o*outAxisLen*inner + offset*inner
			copy(out.Data[dstBase:dstBase+axisLen*inner], in.Data[srcBase:srcBase+axisLen*inner])
		}
		offset += axisLen
	}
	return nil
}

func newFakeConcat(params map[string]any, _ []*layer.Blob) (layer.Layer, error) {
	axis, _ := params["axis"].(float64)
	return fakeConcat{axis: int(axis)}, nil
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

// fakeSlice splits its single input into `required` equal-sized pieces
// along axis, the way nn.Parallel's Slice divides its input one piece
// per branch.
type fakeSlice struct{ axis int }

func (l fakeSlice) GetMemoryShapes(in [][]int, required int) ([][]int, [][]int, bool) {
	axisLen := in[0][l.axis]
	per := axisLen / required
	out := make([][]int, required)
	for i := range out {
		shape := append([]int{}, in[0]...)
		shape[l.axis] = per
		out[i] = shape
	}
	return out, nil, false
}
func (fakeSlice) Finalize([]*layer.Blob, []*layer.Blob) error { return nil }
func (l fakeSlice) Forward(inputs, outputs, _ []*layer.Blob) error {
	in := inputs[0]
	outer, axisLen, inner := splitDims(in.Shape, l.axis)
	per := axisLen / len(outputs)
	for i, out := range outputs {
		for o := 0; o < outer; o++ {
			srcBase := o*axisLen*inner + i*per*inner
			dstBase := o * per * inner
			copy(out.Data[dstBase:dstBase+per*inner], in.Data[srcBase:srcBase+per*inner])
		}
	}
	return nil
}

func newFakeSlice(params map[string]any, _ []*layer.Blob) (layer.Layer, error) {
	axis, _ := params["axis"].(float64)
	return fakeSlice{axis: int(axis)}, nil
}

// fakeReshapeSqueeze drops a single axis of size 1 off each of its
// per-branch inputs, matching nn.Parallel's shared axis,num_axes=1
// Reshape — data is unchanged, only the shape loses that axis.
type fakeReshapeSqueeze struct{ axis int }

func (l fakeReshapeSqueeze) GetMemoryShapes(in [][]int, _ int) ([][]int, [][]int, bool) {
	out := make([][]int, len(in))
	for i, shape := range in {
		ns := append([]int{}, shape[:l.axis]...)
		ns = append(ns, shape[l.axis+1:]...)
		out[i] = ns
	}
	return out, nil, false
}
func (fakeReshapeSqueeze) Finalize([]*layer.Blob, []*layer.Blob) error { return nil }
func (fakeReshapeSqueeze) Forward(inputs, outputs, _ []*layer.Blob) error {
	for i, in := range inputs {
		copy(outputs[i].Data, in.Data)
	}
	return nil
}

func newFakeReshapeSqueeze(params map[string]any, _ []*layer.Blob) (layer.Layer, error) {
	axis, _ := params["axis"].(float64)
	return fakeReshapeSqueeze{axis: int(axis)}, nil
}

// fakePooling implements just enough of SpatialMaxPooling to exercise
// the unpool back-link: 2x2/stride2/pad0 MAX only.
type fakePooling struct{}

func (fakePooling) GetMemoryShapes(in [][]int, required int) ([][]int, [][]int, bool) {
	n, c, h, w := in[0][0], in[0][1], in[0][2], in[0][3]
	shape := []int{n, c, h / 2, w / 2}
	out := make([][]int, required)
	for i := range out {
		out[i] = shape
	}
	return out, nil, false
}
func (fakePooling) Finalize([]*layer.Blob, []*layer.Blob) error { return nil }
func (fakePooling) Forward(inputs, outputs, _ []*layer.Blob) error {
	in := inputs[0]
	out := outputs[0]
	var indices *layer.Blob
	if len(outputs) > 1 {
		indices = outputs[1]
	}
	n, c, h, w := in.Shape[0], in.Shape[1], in.Shape[2], in.Shape[3]
	outH, outW := out.Shape[2], out.Shape[3]
	for ni := 0; ni < n; ni++ {
		for ci := 0; ci < c; ci++ {
			for oy := 0; oy < outH; oy++ {
				for ox := 0; ox < outW; ox++ {
					best := float32(math.Inf(-1))
					bestIdx := 0
					for ky := 0; ky < 2; ky++ {
						iy := oy*2 + ky
						for kx := 0; kx < 2; kx++ {
							ix := ox*2 + kx
							if iy >= h || ix >= w {
								continue
							}
							v := in.Data[((ni*c+ci)*h+iy)*w+ix]
							if v > best {
								best = v
								bestIdx = iy*w + ix
							}
						}
					}
					outIdx := ((ni*c+ci)*outH+oy)*outW + ox
					out.Data[outIdx] = best
					if indices != nil {
						indices.Data[outIdx] = float32(bestIdx)
					}
				}
			}
		}
	}
	return nil
}

// fakeMaxUnpool reverses fakePooling using the copied kernel/stride
// params the Graph Lowerer attaches. It scales its output by
// pool_k_h/2 purely so tests can observe which matched pool's params
// the lowerer actually copied (the baseline kernel_h=2 case leaves the
// output unscaled).
type fakeMaxUnpool struct{ scale float32 }

func newFakeMaxUnpool(params map[string]any, _ []*layer.Blob) (layer.Layer, error) {
	kh, _ := params["pool_k_h"].(float64)
	scale := float32(1)
	if kh != 0 {
		scale = float32(kh) / 2
	}
	return fakeMaxUnpool{scale: scale}, nil
}

func (fakeMaxUnpool) GetMemoryShapes(in [][]int, _ int) ([][]int, [][]int, bool) {
	n, c, h, w := in[0][0], in[0][1], in[0][2], in[0][3]
	return [][]int{{n, c, h * 2, w * 2}}, nil, false
}
func (fakeMaxUnpool) Finalize([]*layer.Blob, []*layer.Blob) error { return nil }
func (l fakeMaxUnpool) Forward(inputs, outputs, _ []*layer.Blob) error {
	values, indices := inputs[0], inputs[1]
	out := outputs[0]
	for i := range out.Data {
		out.Data[i] = 0
	}
	n, c, h, w := values.Shape[0], values.Shape[1], values.Shape[2], values.Shape[3]
	outW := out.Shape[3]
	for ni := 0; ni < n; ni++ {
		for ci := 0; ci < c; ci++ {
			for iy := 0; iy < h; iy++ {
				for ix := 0; ix < w; ix++ {
					inIdx := ((ni*c+ci)*h+iy)*w + ix
					flat := int(math.Round(float64(indices.Data[inIdx])))
					oy, ox := flat/outW, flat%outW
					outIdx := ((ni*c+ci)*out.Shape[2]+oy)*outW + ox
					out.Data[outIdx] = values.Data[inIdx] * l.scale
				}
			}
		}
	}
	return nil
}

func elementwise(fn func(float32) float32) layer.Constructor {
	return func(map[string]any, []*layer.Blob) (layer.Layer, error) {
		return fakeElementwise{fn: fn}, nil
	}
}

func init() {
	must(layer.Register("ReLU", elementwise(func(v float32) float32 {
		if v > 0 {
			return v
		}
		return 0
	})))
	must(layer.Register("TanH", elementwise(func(v float32) float32 { return float32(math.Tanh(float64(v))) })))
	must(layer.Register("Sigmoid", elementwise(func(v float32) float32 { return float32(1 / (1 + math.Exp(-float64(v)))) })))
	must(layer.Register("Identity", elementwise(func(v float32) float32 { return v })))
	must(layer.Register("Split", func(map[string]any, []*layer.Blob) (layer.Layer, error) { return fakeSplit{}, nil }))
	must(layer.Register("Slice", newFakeSlice))
	must(layer.Register("Reshape", newFakeReshapeSqueeze))
	must(layer.Register("Concat", newFakeConcat))
	must(layer.Register("Eltwise", func(map[string]any, []*layer.Blob) (layer.Layer, error) { return fakeEltwiseSum{}, nil }))
	must(layer.Register("Pooling", func(map[string]any, []*layer.Blob) (layer.Layer, error) { return fakePooling{}, nil }))
	must(layer.Register("MaxUnpool", newFakeMaxUnpool))
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}
