package layer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lensframe/dnncore/internal/dnnerrors"
)

// passthroughLayer is a minimal fake used only to exercise the
// registry's own semantics — it carries no real layer math, since
// concrete kernels are out of this package's scope.
type passthroughLayer struct{}

func (passthroughLayer) GetMemoryShapes(inShapes [][]int, requiredOutputs int) ([][]int, [][]int, bool) {
	out := make([][]int, requiredOutputs)
	for i := range out {
		out[i] = inShapes[0]
	}
	return out, nil, true
}
func (passthroughLayer) Finalize([]*Blob, []*Blob) error { return nil }
func (passthroughLayer) Forward(inputs, outputs, _ []*Blob) error {
	for _, out := range outputs {
		copy(out.Data, inputs[0].Data)
	}
	return nil
}

func TestRegisterIsIdempotentForSameConstructor(t *testing.T) {
	ctor := func(map[string]any, []*Blob) (Layer, error) { return passthroughLayer{}, nil }
	require.NoError(t, Register("test.idempotent", ctor))
	require.NoError(t, Register("test.idempotent", ctor))
}

func TestRegisterRejectsConflictingConstructor(t *testing.T) {
	ctor1 := func(map[string]any, []*Blob) (Layer, error) { return passthroughLayer{}, nil }
	ctor2 := func(map[string]any, []*Blob) (Layer, error) { return nil, dnnerrors.Internalf("other") }
	require.NoError(t, Register("test.conflict", ctor1))
	err := Register("test.conflict", ctor2)
	require.Error(t, err)
	require.ErrorIs(t, err, dnnerrors.ErrDuplicate)
}

func TestLookupIsCaseInsensitive(t *testing.T) {
	require.NoError(t, Register("Test.CaseInsensitive", func(map[string]any, []*Blob) (Layer, error) {
		return passthroughLayer{}, nil
	}))
	t.Cleanup(func() { Unregister("Test.CaseInsensitive") })

	ctor, ok := Lookup("test.caseinsensitive")
	require.True(t, ok)
	l, err := ctor(nil, nil)
	require.NoError(t, err)
	require.IsType(t, passthroughLayer{}, l)
}

func TestLookupReportsMissingType(t *testing.T) {
	_, ok := Lookup("test.never-registered")
	require.False(t, ok)
}

func TestUnregisterRemovesMapping(t *testing.T) {
	require.NoError(t, Register("test.unregister-me", func(map[string]any, []*Blob) (Layer, error) {
		return passthroughLayer{}, nil
	}))
	Unregister("test.unregister-me")
	_, ok := Lookup("test.unregister-me")
	require.False(t, ok)
}

func TestBlobLenReflectsShape(t *testing.T) {
	b := NewBlob([]int{2, 3, 4})
	require.Equal(t, 24, b.Len())
	require.Len(t, b.Data, 24)
}
