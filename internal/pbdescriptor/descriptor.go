// Package pbdescriptor hand-codes the subset of descriptor.proto the
// importer needs to read compiled FileDescriptorSet payloads: the
// schema that bootstraps every other schema the Schema Builder builds.
package pbdescriptor

import (
	"github.com/lensframe/dnncore/internal/pbschema"
	"github.com/lensframe/dnncore/internal/pbvalue"
)

// DefaultMaxDepth is the default nesting bound on MessageDescriptor's
// self-reference (spec §4.5): beyond this many levels, nested messages
// are dropped on read rather than built further.
const DefaultMaxDepth = 3

// TypeName maps a FieldDescriptorProto type id to its descriptor.proto
// name. Unknown ids are the caller's responsibility to reject.
var TypeName = map[int32]string{
	1:  "double",
	2:  "float",
	3:  "int64",
	4:  "uint64",
	5:  "int32",
	8:  "bool",
	9:  "string",
	11: "message",
	12: "string",
	13: "uint32",
	14: "enum",
}

// LabelName maps a FieldDescriptorProto label id to its name.
var LabelName = map[int32]string{
	1: "optional",
	2: "required",
	3: "repeated",
}

// EnumValueDescriptor builds the EnumValueDescriptor{name(1), number(2)}
// template.
func EnumValueDescriptor() *pbschema.MessageSchema {
	m := pbschema.NewMessageSchema("EnumValueDescriptor")
	must(m.AddField(&pbvalue.String{}, "name", 1, false))
	must(m.AddField(&pbvalue.Int32{}, "number", 2, false))
	return m
}

// EnumDescriptor builds the EnumDescriptor{name(1),
// value:repeated EnumValueDescriptor(2)} template. It has no
// self-reference of any kind, so it is built in full at every depth
// and never consumes any of the MessageDescriptor depth budget.
func EnumDescriptor() *pbschema.MessageSchema {
	m := pbschema.NewMessageSchema("EnumDescriptor")
	must(m.AddField(&pbvalue.String{}, "name", 1, false))
	must(m.AddField(EnumValueDescriptor(), "value", 2, false))
	return m
}

// FieldOptions builds the FieldOptions{packed(2:bool)} template.
func FieldOptions() *pbschema.MessageSchema {
	m := pbschema.NewMessageSchema("FieldOptions")
	must(m.AddField(&pbvalue.Bool{}, "packed", 2, false))
	return m
}

// FieldDescriptor builds the FieldDescriptor{name(1), number(3),
// label(4), type(5), type_name(6), default_value(7), options(8)}
// template.
func FieldDescriptor() *pbschema.MessageSchema {
	m := pbschema.NewMessageSchema("FieldDescriptorProto")
	must(m.AddField(&pbvalue.String{}, "name", 1, false))
	must(m.AddField(&pbvalue.Int32{}, "number", 3, false))
	must(m.AddField(&pbvalue.Int32{}, "label", 4, false))
	must(m.AddField(&pbvalue.Int32{}, "type", 5, false))
	must(m.AddField(&pbvalue.String{}, "type_name", 6, false))
	must(m.AddField(&pbvalue.String{}, "default_value", 7, false))
	must(m.AddField(FieldOptions(), "options", 8, false))
	return m
}

// MessageDescriptor builds the MessageDescriptor{name, field:repeated
// FieldDescriptor, message_type:repeated MessageDescriptor (recursive,
// depth-bounded), enum_type:repeated EnumDescriptor} template. Only
// the nested message_type field self-references; it is rebuilt
// recursively up to maxDepth levels, then dropped (the field is simply
// omitted from the schema at the final depth, so a payload nesting
// past the bound parses as if the extra nesting were unknown-tag data
// skipped by wire type).
func MessageDescriptor(maxDepth int) *pbschema.MessageSchema {
	return buildMessageDescriptor(maxDepth)
}

func buildMessageDescriptor(depth int) *pbschema.MessageSchema {
	m := pbschema.NewMessageSchema("DescriptorProto")
	must(m.AddField(&pbvalue.String{}, "name", 1, false))
	must(m.AddField(FieldDescriptor(), "field", 2, false))
	if depth > 0 {
		must(m.AddField(buildMessageDescriptor(depth-1), "message_type", 3, false))
	}
	must(m.AddField(EnumDescriptor(), "enum_type", 4, false))
	return m
}

// FileDescriptor builds the FileDescriptor{name, package,
// syntax(12), message_type:repeated MessageDescriptor,
// enum_type:repeated EnumDescriptor} template.
func FileDescriptor(maxDepth int) *pbschema.MessageSchema {
	m := pbschema.NewMessageSchema("FileDescriptorProto")
	must(m.AddField(&pbvalue.String{}, "name", 1, false))
	must(m.AddField(&pbvalue.String{}, "package", 2, false))
	must(m.AddField(MessageDescriptor(maxDepth), "message_type", 4, false))
	must(m.AddField(EnumDescriptor(), "enum_type", 5, false))
	must(m.AddField(&pbvalue.String{}, "syntax", 12, false))
	return m
}

// FileDescriptorSet builds the FileDescriptorSet{file:repeated
// FileDescriptor} root template, the entry point for reading a
// compiled descriptor set payload.
func FileDescriptorSet(maxDepth int) *pbschema.MessageSchema {
	m := pbschema.NewMessageSchema("FileDescriptorSet")
	must(m.AddField(FileDescriptor(maxDepth), "file", 1, false))
	return m
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}
