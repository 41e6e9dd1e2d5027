// Package layer defines the external Layer trait every primitive
// runtime-graph node implements (spec §4.11), plus the process-wide
// type-name registry the Graph Lowerer and Runtime Graph use to turn a
// lowered node's (type, params, blobs) into a constructed Layer.
//
// Concrete layer kernels — Convolution, Pooling, BatchNorm, and every
// other numeric op the importer can emit — are deliberately out of
// scope (spec §1): this package only sees the trait and the factory
// lookup. A consumer links in its own constructors via Register before
// running a graph built by internal/graphlower.
package layer

import (
	"reflect"
	"strings"
	"sync"

	"github.com/lensframe/dnncore/internal/dnnerrors"
)

// Blob is a dense f32 tensor: every weight/bias lowered from the
// legacy importer, and every layer's input/output, is one of these.
type Blob struct {
	Shape []int
	Data  []float32
}

// NewBlob allocates a zeroed blob of the given shape.
func NewBlob(shape []int) *Blob {
	dims := append([]int{}, shape...)
	return &Blob{Shape: dims, Data: make([]float32, elemCount(dims))}
}

// NewBlobFromData wraps already-materialized data (e.g. a weight blob
// lowered from the legacy importer) without copying it.
func NewBlobFromData(shape []int, data []float32) *Blob {
	return &Blob{Shape: append([]int{}, shape...), Data: data}
}

func (b *Blob) Len() int { return elemCount(b.Shape) }

func elemCount(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

// Layer is the trait every primitive layer type implements.
//
// GetMemoryShapes is a pure function of input shapes and the number of
// outputs the caller actually needs; it reports output shapes,
// internal scratch shapes, and whether the output may alias an input
// blob in place (spec §4.11 step 1).
//
// Finalize runs once, after allocation, with the bound input/output
// blobs, for any one-time precomputation a layer wants.
//
// Forward computes outputs from inputs (and internal scratch) for one
// pass.
type Layer interface {
	GetMemoryShapes(inShapes [][]int, requiredOutputs int) (outShapes [][]int, internalShapes [][]int, inplaceAllowed bool)
	Finalize(inputs, outputs []*Blob) error
	Forward(inputs, outputs, internals []*Blob) error
}

// Constructor builds a Layer from its lowered params and ordered
// blobs (weight, then bias, etc., per spec §6's per-class blob order).
type Constructor func(params map[string]any, blobs []*Blob) (Layer, error)

var (
	mu       sync.RWMutex
	registry = map[string]Constructor{}
)

// Register adds a type-name -> Constructor mapping to the process-wide
// registry. Re-registering the identical constructor for the same
// name is idempotent; registering a different constructor for an
// already-taken name fails with Duplicate (spec §4.11).
func Register(typeName string, ctor Constructor) error {
	key := strings.ToLower(typeName)
	mu.Lock()
	defer mu.Unlock()
	if existing, ok := registry[key]; ok {
		if reflect.ValueOf(existing).Pointer() == reflect.ValueOf(ctor).Pointer() {
			return nil
		}
		return dnnerrors.Duplicatef("layer type %q already registered", typeName)
	}
	registry[key] = ctor
	return nil
}

// Unregister removes typeName from the registry, if present. Exposed
// for tests that need a clean registry between cases; production
// callers normally never unregister a layer type once linked in.
func Unregister(typeName string) {
	mu.Lock()
	defer mu.Unlock()
	delete(registry, strings.ToLower(typeName))
}

// Lookup resolves a type name to its constructor, case-insensitively.
func Lookup(typeName string) (Constructor, bool) {
	mu.RLock()
	defer mu.RUnlock()
	c, ok := registry[strings.ToLower(typeName)]
	return c, ok
}
