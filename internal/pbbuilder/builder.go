// Package pbbuilder implements the Schema Builder: given a parsed
// FileDescriptorSet and a fully-qualified root message name, it
// constructs a ready-to-parse MessageSchema, resolving nested
// messages, enums, defaults, and packed flags, with memoization so
// cyclic message graphs terminate.
package pbbuilder

import (
	"strings"

	"github.com/lensframe/dnncore/internal/cache"
	"github.com/lensframe/dnncore/internal/dnnerrors"
	"github.com/lensframe/dnncore/internal/dnnmetrics"
	"github.com/lensframe/dnncore/internal/pbdescriptor"
	"github.com/lensframe/dnncore/internal/pbnode"
	"github.com/lensframe/dnncore/internal/pbschema"
	"github.com/lensframe/dnncore/internal/pbvalue"
)

// Builder flattens a descriptor set once, then builds MessageSchemas
// from it on demand, caching each fully-qualified name's built schema
// so a second reference (including a cyclic self-reference) resolves
// to the same instance rather than recursing forever.
type Builder struct {
	messages map[string]*pbschema.MessageSchema // fqn -> parsed DescriptorProto instance
	enums    map[string]*pbschema.MessageSchema // fqn -> parsed EnumDescriptor instance
	proto3   bool

	built *cache.SchemaCache // fqn -> built output schema
}

// NewBuilder flattens a parsed FileDescriptorSet instance (the result
// of running pbdescriptor.FileDescriptorSet's ReadBinary/ReadText)
// into fully-qualified-name lookup tables.
func NewBuilder(set *pbschema.MessageSchema) (*Builder, error) {
	b := &Builder{
		messages: make(map[string]*pbschema.MessageSchema),
		enums:    make(map[string]*pbschema.MessageSchema),
		built:    cache.NewSchemaCache(),
	}
	for _, fv := range set.Get("file") {
		file, ok := fv.(*pbschema.MessageSchema)
		if !ok {
			return nil, dnnerrors.Internalf("file entry is not a message")
		}
		pkg, err := optionalString(file, "package")
		if err != nil {
			return nil, err
		}
		syntax, err := optionalString(file, "syntax")
		if err != nil {
			return nil, err
		}
		if syntax == "proto3" {
			b.proto3 = true
		}
		prefix := ""
		if pkg != "" {
			prefix = "." + pkg
		}
		if err := b.walkMessages(file, prefix); err != nil {
			return nil, err
		}
		if err := b.walkEnums(file, prefix); err != nil {
			return nil, err
		}
	}
	return b, nil
}

func (b *Builder) walkMessages(parent *pbschema.MessageSchema, prefix string) error {
	for _, mv := range parent.Get("message_type") {
		msg, ok := mv.(*pbschema.MessageSchema)
		if !ok {
			return dnnerrors.Internalf("message_type entry is not a message")
		}
		name, err := optionalString(msg, "name")
		if err != nil {
			return err
		}
		fqn := prefix + "." + name
		if _, exists := b.messages[fqn]; exists {
			return dnnerrors.Duplicatef("duplicate message name %q", fqn)
		}
		b.messages[fqn] = msg
		if err := b.walkMessages(msg, fqn); err != nil {
			return err
		}
		if err := b.walkEnums(msg, fqn); err != nil {
			return err
		}
	}
	return nil
}

func (b *Builder) walkEnums(parent *pbschema.MessageSchema, prefix string) error {
	for _, ev := range parent.Get("enum_type") {
		enum, ok := ev.(*pbschema.MessageSchema)
		if !ok {
			return dnnerrors.Internalf("enum_type entry is not a message")
		}
		name, err := optionalString(enum, "name")
		if err != nil {
			return err
		}
		fqn := prefix + "." + name
		if _, exists := b.enums[fqn]; exists {
			return dnnerrors.Duplicatef("duplicate enum name %q", fqn)
		}
		b.enums[fqn] = enum
	}
	return nil
}

// Build constructs the MessageSchema for rootName, a fully-qualified
// message name given with or without its leading dot.
func (b *Builder) Build(rootName string) (*pbschema.MessageSchema, error) {
	return b.buildMessage(normalizeRootName(rootName))
}

func (b *Builder) buildMessage(fqn string) (*pbschema.MessageSchema, error) {
	if cached, ok := b.built.Get(fqn); ok {
		dnnmetrics.SchemaCacheHits.Inc()
		return cached, nil
	}
	dnnmetrics.SchemaCacheMisses.Inc()

	desc, ok := b.messages[fqn]
	if !ok {
		return nil, dnnerrors.NotFoundf("unknown message %q", fqn)
	}
	name, err := optionalString(desc, "name")
	if err != nil {
		return nil, err
	}

	schema := pbschema.NewMessageSchema(name)
	// Memoize before recursing into fields so a self-referencing
	// message type (message A contains a field of type A) resolves
	// the nested field's template to this same schema instance.
	b.built.Put(fqn, schema)

	for _, fv := range desc.Get("field") {
		fieldDesc, ok := fv.(*pbschema.MessageSchema)
		if !ok {
			return nil, dnnerrors.Internalf("field entry is not a message")
		}
		if err := b.addField(schema, fieldDesc); err != nil {
			return nil, err
		}
	}
	return schema, nil
}

func (b *Builder) addField(schema *pbschema.MessageSchema, fieldDesc *pbschema.MessageSchema) error {
	name, err := optionalString(fieldDesc, "name")
	if err != nil {
		return err
	}
	number, err := optionalInt32(fieldDesc, "number")
	if err != nil {
		return err
	}
	label, err := optionalInt32(fieldDesc, "label")
	if err != nil {
		return err
	}
	typeName, err := optionalString(fieldDesc, "type_name")
	if err != nil {
		return err
	}
	defaultValue, err := optionalString(fieldDesc, "default_value")
	if err != nil {
		return err
	}
	hasDefault := defaultValue != ""

	var typeStr string
	if typeName != "" {
		if _, ok := b.messages[typeName]; ok {
			typeStr = "message"
		} else if _, ok := b.enums[typeName]; ok {
			typeStr = "enum"
		} else {
			return dnnerrors.NotFoundf("unknown type %q", typeName)
		}
	} else {
		typeID, err := optionalInt32(fieldDesc, "type")
		if err != nil {
			return err
		}
		name, ok := pbdescriptor.TypeName[typeID]
		if !ok {
			return dnnerrors.Parsef("unknown field type id %d", typeID)
		}
		typeStr = name
	}

	explicitPacked := false
	if optsVals := fieldDesc.Get("options"); len(optsVals) > 0 {
		opts, ok := optsVals[0].(*pbschema.MessageSchema)
		if !ok {
			return dnnerrors.Internalf("options entry is not a message")
		}
		if opts.Has("packed") {
			p, err := pbnode.New(opts.Get("packed")).Bool()
			if err != nil {
				return err
			}
			explicitPacked = p
		}
	}

	switch typeStr {
	case "message":
		child, err := b.buildMessage(typeName)
		if err != nil {
			return err
		}
		return schema.AddField(child, name, int(number), hasDefault)
	case "enum":
		enumDesc, ok := b.enums[typeName]
		if !ok {
			return dnnerrors.NotFoundf("unknown enum %q", typeName)
		}
		idToName, err := enumIDToName(enumDesc)
		if err != nil {
			return err
		}
		return schema.AddField(pbvalue.NewEnumValue(idToName, defaultValue), name, int(number), hasDefault)
	default:
		packed := explicitPacked || (b.proto3 && label == 3)
		if packed {
			template, err := packedTemplateFor(typeStr)
			if err != nil {
				return err
			}
			return schema.AddField(template, name, int(number), hasDefault)
		}
		template, err := scalarTemplateFor(typeStr, defaultValue)
		if err != nil {
			return err
		}
		return schema.AddField(template, name, int(number), hasDefault)
	}
}

func enumIDToName(enumDesc *pbschema.MessageSchema) (map[int32]string, error) {
	idToName := make(map[int32]string)
	for _, v := range enumDesc.Get("value") {
		ev, ok := v.(*pbschema.MessageSchema)
		if !ok {
			return nil, dnnerrors.Internalf("enum value entry is not a message")
		}
		name, err := optionalString(ev, "name")
		if err != nil {
			return nil, err
		}
		number, err := optionalInt32(ev, "number")
		if err != nil {
			return nil, err
		}
		idToName[number] = name
	}
	return idToName, nil
}

func scalarTemplateFor(typeStr, defaultValue string) (pbvalue.FieldValue, error) {
	switch typeStr {
	case "int32":
		return pbvalue.NewInt32(defaultValue), nil
	case "uint32":
		return pbvalue.NewUInt32(defaultValue), nil
	case "int64":
		return pbvalue.NewInt64(defaultValue), nil
	case "uint64":
		return pbvalue.NewUInt64(defaultValue), nil
	case "float":
		return pbvalue.NewFloat(defaultValue), nil
	case "double":
		return pbvalue.NewDouble(defaultValue), nil
	case "bool":
		return pbvalue.NewBool(defaultValue), nil
	case "string":
		return pbvalue.NewString(defaultValue), nil
	default:
		return nil, dnnerrors.Parsef("unknown primitive type %q", typeStr)
	}
}

func packedTemplateFor(typeStr string) (pbvalue.FieldValue, error) {
	switch typeStr {
	case "int32":
		return &pbvalue.PackedInt32{}, nil
	case "uint32":
		return &pbvalue.PackedUInt32{}, nil
	case "int64":
		return &pbvalue.PackedInt64{}, nil
	case "uint64":
		return &pbvalue.PackedUInt64{}, nil
	case "float":
		return &pbvalue.PackedFloat{}, nil
	case "double":
		return &pbvalue.PackedDouble{}, nil
	case "bool":
		return &pbvalue.PackedBool{}, nil
	default:
		return nil, dnnerrors.Parsef("type %q cannot be packed", typeStr)
	}
}

func optionalString(m *pbschema.MessageSchema, field string) (string, error) {
	vals := m.Get(field)
	if len(vals) == 0 {
		return "", nil
	}
	return pbnode.New(vals).String()
}

func optionalInt32(m *pbschema.MessageSchema, field string) (int32, error) {
	vals := m.Get(field)
	if len(vals) == 0 {
		return 0, nil
	}
	return pbnode.New(vals).Int32()
}

// normalizeRootName ensures a caller-supplied root message name carries
// the leading dot the flattened fully-qualified-name map uses, so
// "pkg.Message" and ".pkg.Message" both resolve.
func normalizeRootName(name string) string {
	if strings.HasPrefix(name, ".") {
		return name
	}
	return "." + name
}
