package cache

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lensframe/dnncore/internal/pbschema"
)

func TestSchemaCacheGetPutRoundTrips(t *testing.T) {
	c := NewSchemaCache()

	_, ok := c.Get(".pkg.Foo")
	require.False(t, ok)
	require.Zero(t, c.Size())

	schema := pbschema.NewMessageSchema("Foo")
	c.Put(".pkg.Foo", schema)

	got, ok := c.Get(".pkg.Foo")
	require.True(t, ok)
	require.Same(t, schema, got)
	require.Equal(t, 1, c.Size())
}
