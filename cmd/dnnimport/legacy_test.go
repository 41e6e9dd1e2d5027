package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lensframe/dnncore/internal/legacy"
	"github.com/lensframe/dnncore/internal/moduletree"
)

func TestPrintModuleTreeIndentsChildren(t *testing.T) {
	tree := &moduletree.Module{
		ClassName: "Sequential",
		Children: []*moduletree.Module{
			{ClassName: "SpatialConvolution", APIType: "Convolution", Params: map[string]any{"kernel_h": 3.0}, Blobs: []*legacy.Tensor{{Dims: []int{1}}}},
			{ClassName: "ReLU", APIType: "ReLU"},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, printModuleTree(&buf, tree, 0))

	out := buf.String()
	require.Contains(t, out, "Sequential params=0 blobs=0\n")
	require.Contains(t, out, "  SpatialConvolution (Convolution) params=1 blobs=1\n")
	require.Contains(t, out, "  ReLU (ReLU) params=0 blobs=0\n")
}
