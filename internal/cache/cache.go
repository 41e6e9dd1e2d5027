// Package cache provides a small thread-safe memoization cache for
// built MessageSchemas, keyed by fully-qualified message name. It
// backs internal/pbbuilder.Builder so a second reference to the same
// message type — including a cyclic self-reference — resolves to the
// one built instance instead of rebuilding or recursing forever.
package cache

import (
	"sync"

	"github.com/lensframe/dnncore/internal/pbschema"
)

// SchemaCache memoizes built schemas by fully-qualified name.
type SchemaCache struct {
	mu   sync.RWMutex
	data map[string]*pbschema.MessageSchema
}

func NewSchemaCache() *SchemaCache {
	return &SchemaCache{data: make(map[string]*pbschema.MessageSchema)}
}

// Get reports whether fqn has already been built.
func (c *SchemaCache) Get(fqn string) (*pbschema.MessageSchema, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.data[fqn]
	return v, ok
}

// Put records fqn's built schema.
func (c *SchemaCache) Put(fqn string, schema *pbschema.MessageSchema) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[fqn] = schema
}

// Size returns the number of memoized schemas.
func (c *SchemaCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}
