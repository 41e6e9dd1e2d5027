// Package pbschema implements the Message Schema: the template that
// maps field tags and names to FieldValue clones, and — once cloned —
// the live instance that holds one message's parsed field values.
package pbschema

import (
	"github.com/lensframe/dnncore/internal/dnnerrors"
	"github.com/lensframe/dnncore/internal/pbtext"
	"github.com/lensframe/dnncore/internal/pbvalue"
	"github.com/lensframe/dnncore/internal/wire"
)

// Field is one declared field of a message: its wire tag, its name, a
// template value used to clone fresh instances, and whether it carries
// a descriptor-supplied default.
type Field struct {
	Name       string
	Tag        int
	Template   pbvalue.FieldValue
	HasDefault bool
}

// MessageSchema is both the immutable per-message-type template (built
// once during Schema Bootstrap/Build) and, once cloned, a live instance
// holding one message's parsed field values. The byTag/byName/order
// slices are shared across every clone of a given message type; only
// the values map is instance-local.
type MessageSchema struct {
	name   string
	byTag  map[int]*Field
	byName map[string]*Field
	order  []*Field

	values map[string][]pbvalue.FieldValue
}

// NewMessageSchema creates an empty template for a message type.
func NewMessageSchema(name string) *MessageSchema {
	return &MessageSchema{
		name:   name,
		byTag:  make(map[int]*Field),
		byName: make(map[string]*Field),
		values: make(map[string][]pbvalue.FieldValue),
	}
}

// Name returns the message type's name, for error messages.
func (m *MessageSchema) Name() string { return m.name }

// AddField declares one field on the template. A duplicate tag or name
// fails with a Duplicate error.
func (m *MessageSchema) AddField(template pbvalue.FieldValue, name string, tag int, hasDefault bool) error {
	if _, exists := m.byTag[tag]; exists {
		return dnnerrors.Duplicatef("message %q: duplicate field tag %d", m.name, tag)
	}
	if _, exists := m.byName[name]; exists {
		return dnnerrors.Duplicatef("message %q: duplicate field name %q", m.name, name)
	}
	f := &Field{Name: name, Tag: tag, Template: template, HasDefault: hasDefault}
	m.byTag[tag] = f
	m.byName[name] = f
	m.order = append(m.order, f)
	return nil
}

// ReadBinary implements pbvalue.FieldValue. A message invoked at the
// top of a fresh stream (position 0) runs to end-of-stream; any other
// invocation is, by construction, reading an embedded submessage and
// begins with a length prefix bounding how far to read (spec §4.3).
func (m *MessageSchema) ReadBinary(r *wire.Reader) error {
	nested := r.Tell() > 0
	end := r.Len()
	if nested {
		length, ok, err := r.ReadVarint()
		if err != nil {
			return err
		}
		if !ok {
			return dnnerrors.Parsef("message %q: unexpected end of stream reading length prefix", m.name)
		}
		end = r.Tell() + int(length)
		if end > r.Len() {
			return dnnerrors.Parsef("message %q: declared length %d exceeds remaining stream", m.name, length)
		}
	}

	for r.Tell() < end {
		tag, wt, ok, err := r.ReadKey()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		field, known := m.byTag[tag]
		if !known {
			if err := r.SkipByWireType(wt); err != nil {
				return err
			}
			continue
		}
		clone := field.Template.CloneAsTemplate()
		if err := clone.ReadBinary(r); err != nil {
			return err
		}
		m.values[field.Name] = append(m.values[field.Name], clone)
	}

	if r.Tell() != end {
		return dnnerrors.Parsef("message %q: stream position %d does not match expected end %d", m.name, r.Tell(), end)
	}
	return nil
}

// ReadText implements pbvalue.FieldValue. It expects a leading `{`,
// then repeated `name value` pairs (where a message-typed value
// recursively consumes its own `{...}` block), until a closing `}`.
// An unknown field name fails with NotImplemented — text mode never skips.
func (m *MessageSchema) ReadText(c *pbtext.Cursor) error {
	tok, ok := c.Next()
	if !ok || tok != "{" {
		return dnnerrors.Parsef("message %q: expected '{'", m.name)
	}
	for {
		tok, ok := c.Current()
		if !ok {
			return dnnerrors.Parsef("message %q: unexpected end of tokens before '}'", m.name)
		}
		if tok == "}" {
			c.Advance()
			return nil
		}
		c.Advance()
		field, known := m.byName[tok]
		if !known {
			return dnnerrors.NotImplementedf("message %q: unknown field %q", m.name, tok)
		}
		clone := field.Template.CloneAsTemplate()
		if err := clone.ReadText(c); err != nil {
			return err
		}
		m.values[field.Name] = append(m.values[field.Name], clone)
	}
}

// CloneAsTemplate returns a fresh instance sharing this schema's field
// declarations but with no parsed values, the contract every nested
// message field relies on when its own clone is read.
func (m *MessageSchema) CloneAsTemplate() pbvalue.FieldValue {
	return &MessageSchema{
		name:   m.name,
		byTag:  m.byTag,
		byName: m.byName,
		order:  m.order,
		values: make(map[string][]pbvalue.FieldValue),
	}
}

// Get returns the parsed values for name if any were read; otherwise,
// if the field has a descriptor default, a singleton slice holding the
// field's default-valued template; otherwise an empty slice.
func (m *MessageSchema) Get(name string) []pbvalue.FieldValue {
	if vs, ok := m.values[name]; ok {
		return vs
	}
	field, known := m.byName[name]
	if !known || !field.HasDefault {
		return nil
	}
	return []pbvalue.FieldValue{field.Template}
}

// Has reports whether name was actually parsed (defaults do not count).
func (m *MessageSchema) Has(name string) bool {
	vs, ok := m.values[name]
	return ok && len(vs) > 0
}

// Remove drops the i-th parsed occurrence of name.
func (m *MessageSchema) Remove(name string, i int) error {
	vs, ok := m.values[name]
	if !ok || i < 0 || i >= len(vs) {
		return dnnerrors.NotFoundf("message %q: no occurrence %d of field %q", m.name, i, name)
	}
	m.values[name] = append(vs[:i], vs[i+1:]...)
	return nil
}

// Fields returns the declared fields in registration order, for
// callers (the Node Accessor, dump/export code) that need to walk a
// message's full shape rather than look up one field at a time.
func (m *MessageSchema) Fields() []*Field {
	return m.order
}
