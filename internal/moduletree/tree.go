// Package moduletree implements the Module Tree Builder: it walks the
// raw nn-class tree the Legacy Tensor Stream Reader (package legacy)
// produced and, for every recognized primitive, copies and normalizes
// the parameters the runtime layer actually needs — renaming kernel
// params, splitting scalar-vs-per-channel PReLU, converting 1-based
// indices to 0-based, and collecting weight/bias tensors into an
// ordered Blobs slice. Container classes (Sequential, Concat,
// Parallel, ConcatTable, JoinTable, CAddTable, SpatialMaxUnpooling)
// carry no api type of their own — placing them into a runtime graph
// is the Graph Lowerer's job (package graphlower).
package moduletree

import (
	"github.com/lensframe/dnncore/internal/dnnerrors"
	"github.com/lensframe/dnncore/internal/legacy"
)

// Module is a normalized node: a leaf carries ClassName == APIType and
// a Params/Blobs pair the Graph Lowerer hands straight to the runtime
// layer factory; a container carries ClassName only (APIType empty)
// and Children to recurse into.
type Module struct {
	ClassName string
	APIType   string
	Params    map[string]any
	Blobs     []*legacy.Tensor
	Children  []*Module
}

// Build walks a raw module tree (legacy.Stream.ReadRoot's output) and
// normalizes every node it recognizes. An unrecognized nn class name
// fails with NotImplemented, the same as the original class switch's
// default case.
func Build(root *legacy.RawModule) (*Module, error) {
	return build(root)
}

func build(raw *legacy.RawModule) (*Module, error) {
	children, err := buildChildren(raw.Children)
	if err != nil {
		return nil, err
	}

	switch raw.ThName {
	case "Sequential", "Parallel", "Concat", "ConcatTable", "JoinTable", "CAddTable":
		return buildContainer(raw, children)
	case "SpatialConvolution":
		return buildSpatialConvolution(raw)
	case "SpatialDilatedConvolution":
		return buildSpatialDilatedConvolution(raw)
	case "SpatialFullConvolution":
		return buildSpatialFullConvolution(raw)
	case "SpatialMaxPooling":
		return buildPooling(raw, "MAX")
	case "SpatialAveragePooling":
		return buildPooling(raw, "AVE")
	case "SpatialMaxUnpooling":
		return buildSpatialMaxUnpooling(raw, children)
	case "Linear":
		return buildLinear(raw)
	case "Reshape":
		return buildReshape(raw)
	case "ReLU":
		return leaf(raw, "ReLU", nil), nil
	case "Tanh":
		return leaf(raw, "TanH", nil), nil
	case "Sigmoid":
		return leaf(raw, "Sigmoid", nil), nil
	case "SpatialBatchNormalization":
		return buildBatchNorm(raw)
	case "PReLU":
		return buildPReLU(raw)
	case "SpatialDropout":
		return buildSpatialDropout(raw)
	case "Identity":
		return &Module{ClassName: raw.ThName, APIType: "Identity", Params: map[string]any{}}, nil
	case "Padding":
		return buildPadding(raw)
	default:
		return nil, dnnerrors.NotImplementedf("unknown nn class %q", raw.ThName)
	}
}

func buildChildren(raws []*legacy.RawModule) ([]*Module, error) {
	out := make([]*Module, 0, len(raws))
	for _, r := range raws {
		m, err := build(r)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func buildContainer(raw *legacy.RawModule, children []*Module) (*Module, error) {
	m := &Module{ClassName: raw.ThName, Children: children}
	switch raw.ThName {
	case "Parallel":
		m.Params = map[string]any{
			"inputDimension":  mustNumber(raw, "inputDimension"),
			"outputDimension": mustNumber(raw, "outputDimension"),
		}
	case "Concat", "JoinTable":
		m.Params = map[string]any{"dimension": mustNumber(raw, "dimension")}
	default:
		m.Params = map[string]any{}
	}
	return m, nil
}

func leaf(raw *legacy.RawModule, apiType string, params map[string]any) *Module {
	if params == nil {
		params = map[string]any{}
	}
	return &Module{ClassName: raw.ThName, APIType: apiType, Params: params}
}

func mustNumber(raw *legacy.RawModule, key string) float64 {
	v, _ := raw.Scalars[key].(float64)
	return v
}

func numberOr(raw *legacy.RawModule, key string, def float64) float64 {
	if v, ok := raw.Scalars[key].(float64); ok {
		return v
	}
	return def
}

func stringVal(raw *legacy.RawModule, key string) (string, bool) {
	v, ok := raw.Scalars[key].(string)
	return v, ok
}

func boolVal(raw *legacy.RawModule, key string) (bool, bool) {
	v, ok := raw.Scalars[key].(bool)
	return v, ok
}

// convertTorchKernelsParams renames the shared SpatialConvolution/
// SpatialMaxPooling/SpatialAveragePooling kernel params into the
// runtime layer's names, defaulting the pad params to 0.
func convertTorchKernelsParams(raw *legacy.RawModule, params map[string]any) {
	params["kernel_h"] = mustNumber(raw, "kH")
	params["kernel_w"] = mustNumber(raw, "kW")
	params["stride_h"] = mustNumber(raw, "dH")
	params["stride_w"] = mustNumber(raw, "dW")
	params["pad_h"] = numberOr(raw, "padH", 0)
	params["pad_w"] = numberOr(raw, "padW", 0)
}

func buildSpatialConvolution(raw *legacy.RawModule) (*Module, error) {
	weight, ok := raw.Tensors["weight"]
	if !ok {
		return nil, dnnerrors.Parsef("SpatialConvolution: missing weight")
	}
	params := map[string]any{"num_output": mustNumber(raw, "nOutputPlane")}
	convertTorchKernelsParams(raw, params)
	blobs := []*legacy.Tensor{weight}
	if bias, ok := raw.Tensors["bias"]; ok {
		params["bias_term"] = true
		blobs = append(blobs, bias)
	} else {
		params["bias_term"] = false
	}
	return &Module{ClassName: raw.ThName, APIType: "Convolution", Params: params, Blobs: blobs}, nil
}

func buildSpatialDilatedConvolution(raw *legacy.RawModule) (*Module, error) {
	weight, ok := raw.Tensors["weight"]
	if !ok {
		return nil, dnnerrors.Parsef("SpatialDilatedConvolution: missing weight")
	}
	params := map[string]any{
		"kernel_w":    mustNumber(raw, "kW"),
		"kernel_h":    mustNumber(raw, "kH"),
		"pad_w":       mustNumber(raw, "padW"),
		"pad_h":       mustNumber(raw, "padH"),
		"stride_w":    mustNumber(raw, "dW"),
		"stride_h":    mustNumber(raw, "dH"),
		"dilation_w":  mustNumber(raw, "dilationW"),
		"dilation_h":  mustNumber(raw, "dilationH"),
		"num_output":  mustNumber(raw, "nOutputPlane"),
	}
	blobs := []*legacy.Tensor{weight}
	if bias, ok := raw.Tensors["bias"]; ok {
		params["bias_term"] = true
		blobs = append(blobs, bias)
	} else {
		params["bias_term"] = false
	}
	return &Module{ClassName: raw.ThName, APIType: "Convolution", Params: params, Blobs: blobs}, nil
}

// reorderDeconvWeight relabels a 4-dim [o,i,h,w] weight's shape to
// [i,o,h,w] without moving the underlying data — the original reorder
// is a dims-only Mat::reshape, not a transpose, so the flat Data here
// is left untouched and only Dims changes.
func reorderDeconvWeight(weight *legacy.Tensor) (*legacy.Tensor, error) {
	if len(weight.Dims) != 4 {
		return nil, dnnerrors.Parsef("SpatialFullConvolution: weight must have 4 dims, got %d", len(weight.Dims))
	}
	reordered := &legacy.Tensor{
		Dims: []int{weight.Dims[1], weight.Dims[0], weight.Dims[2], weight.Dims[3]},
		Data: weight.Data,
	}
	return reordered, nil
}

func buildSpatialFullConvolution(raw *legacy.RawModule) (*Module, error) {
	weight, ok := raw.Tensors["weight"]
	if !ok {
		return nil, dnnerrors.Parsef("SpatialFullConvolution: missing weight")
	}
	reordered, err := reorderDeconvWeight(weight)
	if err != nil {
		return nil, err
	}
	params := map[string]any{
		"kernel_w":   mustNumber(raw, "kW"),
		"kernel_h":   mustNumber(raw, "kH"),
		"pad_w":      mustNumber(raw, "padW"),
		"pad_h":      mustNumber(raw, "padH"),
		"stride_w":   mustNumber(raw, "dW"),
		"stride_h":   mustNumber(raw, "dH"),
		"adj_w":      mustNumber(raw, "adjW"),
		"adj_h":      mustNumber(raw, "adjH"),
		"num_output": mustNumber(raw, "nOutputPlane"),
	}
	blobs := []*legacy.Tensor{reordered}
	if bias, ok := raw.Tensors["bias"]; ok {
		params["bias_term"] = true
		blobs = append(blobs, bias)
	} else {
		params["bias_term"] = false
	}
	return &Module{ClassName: raw.ThName, APIType: "Deconvolution", Params: params, Blobs: blobs}, nil
}

func buildPooling(raw *legacy.RawModule, pool string) (*Module, error) {
	params := map[string]any{"pool": pool}
	convertTorchKernelsParams(raw, params)
	if pool == "MAX" {
		if idx, ok := raw.TensorIndex["indices"]; ok {
			params["indices_blob_id"] = idx
		}
	}
	return &Module{ClassName: raw.ThName, APIType: "Pooling", Params: params}, nil
}

func buildSpatialMaxUnpooling(raw *legacy.RawModule, children []*Module) (*Module, error) {
	idx, ok := raw.TensorIndex["indices"]
	if !ok {
		return nil, dnnerrors.Parsef("SpatialMaxUnpooling: missing indices")
	}
	return &Module{
		ClassName: raw.ThName,
		Params:    map[string]any{"indices_blob_id": idx},
		Children:  children,
	}, nil
}

func buildLinear(raw *legacy.RawModule) (*Module, error) {
	weight, ok := raw.Tensors["weight"]
	if !ok {
		return nil, dnnerrors.Parsef("Linear: missing weight")
	}
	if len(weight.Dims) < 1 {
		return nil, dnnerrors.Parsef("Linear: weight has no dims")
	}
	params := map[string]any{"num_output": float64(weight.Dims[0])}
	blobs := []*legacy.Tensor{weight}
	if bias, ok := raw.Tensors["bias"]; ok {
		params["bias_term"] = true
		blobs = append(blobs, bias)
	} else {
		params["bias_term"] = false
	}
	return &Module{ClassName: raw.ThName, APIType: "InnerProduct", Params: params, Blobs: blobs}, nil
}

func buildReshape(raw *legacy.RawModule) (*Module, error) {
	size, ok := raw.Scalars["size"]
	if !ok {
		return nil, dnnerrors.Parsef("Reshape: missing size")
	}
	params := map[string]any{"dim": size}
	if batchMode, ok := boolVal(raw, "batchMode"); ok && batchMode {
		params["axis"] = float64(1)
	}
	return &Module{ClassName: raw.ThName, APIType: "Reshape", Params: params}, nil
}

func buildBatchNorm(raw *legacy.RawModule) (*Module, error) {
	mean, ok := raw.Tensors["running_mean"]
	if !ok {
		return nil, dnnerrors.Parsef("SpatialBatchNormalization: missing running_mean")
	}
	variance, ok := raw.Tensors["running_var"]
	if !ok {
		return nil, dnnerrors.Parsef("SpatialBatchNormalization: missing running_var")
	}
	eps, ok := raw.Scalars["eps"]
	if !ok {
		return nil, dnnerrors.Parsef("SpatialBatchNormalization: missing eps")
	}
	params := map[string]any{"eps": float32(eps.(float64))}
	blobs := []*legacy.Tensor{mean, variance}
	if weight, ok := raw.Tensors["weight"]; ok {
		params["has_weight"] = true
		blobs = append(blobs, weight)
	}
	if bias, ok := raw.Tensors["bias"]; ok {
		params["has_bias"] = true
		blobs = append(blobs, bias)
	}
	return &Module{ClassName: raw.ThName, APIType: "BatchNorm", Params: params, Blobs: blobs}, nil
}

func buildPReLU(raw *legacy.RawModule) (*Module, error) {
	weight, ok := raw.Tensors["weight"]
	if !ok {
		return nil, dnnerrors.Parsef("PReLU: missing weight")
	}
	outputChannels := mustNumber(raw, "nOutputPlane")
	elems := weightElemCount(weight)
	if outputChannels != 0 {
		if elems != int(outputChannels) {
			return nil, dnnerrors.Parsef("PReLU: weight has %d elements, expected %d channels", elems, int(outputChannels))
		}
		return &Module{ClassName: raw.ThName, APIType: "ChannelsPReLU", Params: map[string]any{}, Blobs: []*legacy.Tensor{weight}}, nil
	}
	if elems != 1 {
		return nil, dnnerrors.Parsef("PReLU: scalar form requires exactly 1 weight element, got %d", elems)
	}
	return &Module{ClassName: raw.ThName, APIType: "ReLU", Params: map[string]any{"negative_slope": float64(weight.Data[0])}}, nil
}

func weightElemCount(t *legacy.Tensor) int {
	n := 1
	for _, d := range t.Dims {
		n *= d
	}
	if len(t.Dims) == 0 {
		return 0
	}
	return n
}

func buildSpatialDropout(raw *legacy.RawModule) (*Module, error) {
	p, ok := raw.Scalars["p"]
	if !ok {
		return nil, dnnerrors.Parsef("SpatialDropout: missing p")
	}
	scale := 1 - p.(float64)
	if scale <= 0 {
		return nil, dnnerrors.Parsef("SpatialDropout: scale (1-p) must be positive, got %v", scale)
	}
	return &Module{ClassName: raw.ThName, APIType: "Power", Params: map[string]any{"scale": scale}}, nil
}

func buildPadding(raw *legacy.RawModule) (*Module, error) {
	pad, ok := raw.Scalars["pad"]
	if !ok {
		return nil, dnnerrors.Parsef("Padding: missing pad")
	}
	dim, ok := raw.Scalars["dim"]
	if !ok {
		return nil, dnnerrors.Parsef("Padding: missing dim")
	}
	params := map[string]any{
		"padding_dim": dim.(float64) - 1,
		"padding":     pad,
	}
	if nInputDim, ok := raw.Scalars["nInputDim"]; ok {
		params["input_dims"] = nInputDim
	}
	if value, ok := raw.Scalars["value"]; ok {
		params["value"] = value
	}
	if index, ok := raw.Scalars["index"]; ok {
		params["index"] = index.(float64) - 1
	}
	return &Module{ClassName: raw.ThName, APIType: "Padding", Params: params}, nil
}
