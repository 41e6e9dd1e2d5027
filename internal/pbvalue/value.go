// Package pbvalue implements FieldValue, the tagged variant described in
// spec §3/§4.2: every protobuf scalar, string, enum, and packed-repeated
// kind owns its own read/clone logic rather than sharing a class
// hierarchy.
package pbvalue

import (
	"strconv"

	"github.com/lensframe/dnncore/internal/dnnerrors"
	"github.com/lensframe/dnncore/internal/pbtext"
	"github.com/lensframe/dnncore/internal/wire"
)

// FieldValue is implemented by every concrete field kind: scalars,
// strings, enums, packed primitives, and (in package pbschema) nested
// messages.
type FieldValue interface {
	// ReadBinary consumes this value's wire-format encoding from r.
	ReadBinary(r *wire.Reader) error
	// ReadText consumes exactly one token (or, for message-typed
	// fields, a full brace block) from c.
	ReadText(c *pbtext.Cursor) error
	// CloneAsTemplate returns a fresh, default-initialized value of the
	// same shape, carrying no parsed data — the template-cloning
	// contract every schema field relies on at parse time.
	CloneAsTemplate() FieldValue
}

// Int32 is a protobuf int32 scalar (wire type varint).
type Int32 struct{ Value int32 }

func NewInt32(defaultValue string) *Int32 { return &Int32{Value: int32(parseIntDefault(defaultValue))} }

func (v *Int32) ReadBinary(r *wire.Reader) error {
	n, ok, err := r.ReadVarint()
	if err != nil {
		return err
	}
	if !ok {
		return dnnerrors.Parsef("unexpected end of stream reading int32")
	}
	v.Value = int32(n)
	return nil
}

func (v *Int32) ReadText(c *pbtext.Cursor) error {
	tok, ok := c.Next()
	if !ok {
		return dnnerrors.Parsef("unexpected end of tokens reading int32")
	}
	n, err := strconv.ParseInt(tok, 10, 32)
	if err != nil {
		return dnnerrors.Wrap(dnnerrors.KindParse, err, "invalid int32 literal %q", tok)
	}
	v.Value = int32(n)
	return nil
}

func (v *Int32) CloneAsTemplate() FieldValue { return &Int32{} }

// UInt32 is a protobuf uint32 scalar (wire type varint).
type UInt32 struct{ Value uint32 }

func NewUInt32(defaultValue string) *UInt32 {
	return &UInt32{Value: uint32(parseIntDefault(defaultValue))}
}

func (v *UInt32) ReadBinary(r *wire.Reader) error {
	n, ok, err := r.ReadVarint()
	if err != nil {
		return err
	}
	if !ok {
		return dnnerrors.Parsef("unexpected end of stream reading uint32")
	}
	v.Value = uint32(n)
	return nil
}

func (v *UInt32) ReadText(c *pbtext.Cursor) error {
	tok, ok := c.Next()
	if !ok {
		return dnnerrors.Parsef("unexpected end of tokens reading uint32")
	}
	n, err := strconv.ParseUint(tok, 10, 32)
	if err != nil {
		return dnnerrors.Wrap(dnnerrors.KindParse, err, "invalid uint32 literal %q", tok)
	}
	v.Value = uint32(n)
	return nil
}

func (v *UInt32) CloneAsTemplate() FieldValue { return &UInt32{} }

// Int64 is a protobuf int64 scalar (wire type varint).
type Int64 struct{ Value int64 }

func NewInt64(defaultValue string) *Int64 { return &Int64{Value: parseIntDefault(defaultValue)} }

func (v *Int64) ReadBinary(r *wire.Reader) error {
	n, ok, err := r.ReadVarint()
	if err != nil {
		return err
	}
	if !ok {
		return dnnerrors.Parsef("unexpected end of stream reading int64")
	}
	v.Value = int64(n)
	return nil
}

func (v *Int64) ReadText(c *pbtext.Cursor) error {
	tok, ok := c.Next()
	if !ok {
		return dnnerrors.Parsef("unexpected end of tokens reading int64")
	}
	n, err := strconv.ParseInt(tok, 10, 64)
	if err != nil {
		return dnnerrors.Wrap(dnnerrors.KindParse, err, "invalid int64 literal %q", tok)
	}
	v.Value = n
	return nil
}

func (v *Int64) CloneAsTemplate() FieldValue { return &Int64{} }

// UInt64 is a protobuf uint64 scalar (wire type varint).
type UInt64 struct{ Value uint64 }

func NewUInt64(defaultValue string) *UInt64 {
	return &UInt64{Value: uint64(parseIntDefault(defaultValue))}
}

func (v *UInt64) ReadBinary(r *wire.Reader) error {
	n, ok, err := r.ReadVarint()
	if err != nil {
		return err
	}
	if !ok {
		return dnnerrors.Parsef("unexpected end of stream reading uint64")
	}
	v.Value = n
	return nil
}

func (v *UInt64) ReadText(c *pbtext.Cursor) error {
	tok, ok := c.Next()
	if !ok {
		return dnnerrors.Parsef("unexpected end of tokens reading uint64")
	}
	n, err := strconv.ParseUint(tok, 10, 64)
	if err != nil {
		return dnnerrors.Wrap(dnnerrors.KindParse, err, "invalid uint64 literal %q", tok)
	}
	v.Value = n
	return nil
}

func (v *UInt64) CloneAsTemplate() FieldValue { return &UInt64{} }

// Float is a protobuf float scalar (wire type fixed32).
type Float struct{ Value float32 }

func NewFloat(defaultValue string) *Float {
	f, _ := strconv.ParseFloat(orZero(defaultValue), 32)
	return &Float{Value: float32(f)}
}

func (v *Float) ReadBinary(r *wire.Reader) error {
	f, err := r.ReadFloat32()
	if err != nil {
		return err
	}
	v.Value = f
	return nil
}

func (v *Float) ReadText(c *pbtext.Cursor) error {
	tok, ok := c.Next()
	if !ok {
		return dnnerrors.Parsef("unexpected end of tokens reading float")
	}
	f, err := strconv.ParseFloat(tok, 32)
	if err != nil {
		return dnnerrors.Wrap(dnnerrors.KindParse, err, "invalid float literal %q", tok)
	}
	v.Value = float32(f)
	return nil
}

func (v *Float) CloneAsTemplate() FieldValue { return &Float{} }

// Double is a protobuf double scalar (wire type fixed64).
type Double struct{ Value float64 }

func NewDouble(defaultValue string) *Double {
	f, _ := strconv.ParseFloat(orZero(defaultValue), 64)
	return &Double{Value: f}
}

func (v *Double) ReadBinary(r *wire.Reader) error {
	f, err := r.ReadFloat64()
	if err != nil {
		return err
	}
	v.Value = f
	return nil
}

func (v *Double) ReadText(c *pbtext.Cursor) error {
	tok, ok := c.Next()
	if !ok {
		return dnnerrors.Parsef("unexpected end of tokens reading double")
	}
	f, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		return dnnerrors.Wrap(dnnerrors.KindParse, err, "invalid double literal %q", tok)
	}
	v.Value = f
	return nil
}

func (v *Double) CloneAsTemplate() FieldValue { return &Double{} }

// Bool is a protobuf bool scalar (wire type varint: 0 or 1).
type Bool struct{ Value bool }

func NewBool(defaultValue string) *Bool {
	return &Bool{Value: defaultValue == "true"}
}

func (v *Bool) ReadBinary(r *wire.Reader) error {
	n, ok, err := r.ReadVarint()
	if err != nil {
		return err
	}
	if !ok {
		return dnnerrors.Parsef("unexpected end of stream reading bool")
	}
	v.Value = n != 0
	return nil
}

func (v *Bool) ReadText(c *pbtext.Cursor) error {
	tok, ok := c.Next()
	if !ok {
		return dnnerrors.Parsef("unexpected end of tokens reading bool")
	}
	switch tok {
	case "true":
		v.Value = true
	case "false":
		v.Value = false
	default:
		return dnnerrors.Parsef("cannot interpret boolean value: %q", tok)
	}
	return nil
}

func (v *Bool) CloneAsTemplate() FieldValue { return &Bool{} }

// String is a protobuf string/bytes scalar: a length prefix followed by
// raw UTF-8 bytes on the wire; in text mode the tokenizer has already
// stripped the surrounding quotes, so the token is used verbatim.
type String struct{ Value string }

func NewString(defaultValue string) *String { return &String{Value: defaultValue} }

func (v *String) ReadBinary(r *wire.Reader) error {
	b, err := r.ReadLengthDelimited()
	if err != nil {
		return err
	}
	v.Value = string(b)
	return nil
}

func (v *String) ReadText(c *pbtext.Cursor) error {
	tok, ok := c.Next()
	if !ok {
		return dnnerrors.Parsef("unexpected end of tokens reading string")
	}
	v.Value = tok
	return nil
}

func (v *String) CloneAsTemplate() FieldValue { return &String{} }

func parseIntDefault(s string) int64 {
	if s == "" {
		return 0
	}
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}

func orZero(s string) string {
	if s == "" {
		return "0"
	}
	return s
}

// EnumValue is a protobuf enum field: the wire carries a plain integer,
// but the descriptor's id→name map resolves it to a symbolic name for
// every consumer that reads the field back.
type EnumValue struct {
	idToName map[int32]string
	nameToID map[string]int32
	id       int32
	name     string
}

// NewEnumValue builds an enum field template from its descriptor's
// id→name map and default symbolic name.
func NewEnumValue(idToName map[int32]string, defaultName string) *EnumValue {
	nameToID := make(map[string]int32, len(idToName))
	for id, name := range idToName {
		nameToID[name] = id
	}
	ev := &EnumValue{idToName: idToName, nameToID: nameToID}
	if defaultName != "" {
		if id, ok := nameToID[defaultName]; ok {
			ev.id = id
			ev.name = defaultName
		}
	}
	return ev
}

// Name returns the current symbolic value.
func (v *EnumValue) Name() string { return v.name }

// ID returns the current integer value.
func (v *EnumValue) ID() int32 { return v.id }

func (v *EnumValue) resolve(id int32) error {
	name, ok := v.idToName[id]
	if !ok {
		return dnnerrors.Parsef("unknown enum value %d", id)
	}
	v.id = id
	v.name = name
	return nil
}

func (v *EnumValue) ReadBinary(r *wire.Reader) error {
	n, ok, err := r.ReadVarint()
	if err != nil {
		return err
	}
	if !ok {
		return dnnerrors.Parsef("unexpected end of stream reading enum")
	}
	return v.resolve(int32(n))
}

func (v *EnumValue) ReadText(c *pbtext.Cursor) error {
	tok, ok := c.Next()
	if !ok {
		return dnnerrors.Parsef("unexpected end of tokens reading enum")
	}
	id, ok := v.nameToID[tok]
	if !ok {
		return dnnerrors.Parsef("unknown enum symbol %q", tok)
	}
	v.id = id
	v.name = tok
	return nil
}

func (v *EnumValue) CloneAsTemplate() FieldValue {
	return &EnumValue{idToName: v.idToName, nameToID: v.nameToID}
}

// PackedInt32 holds a repeated int32 field encoded as a packed varint
// block (spec §4.2): a length prefix followed by back-to-back varints
// consuming the whole block exactly.
type PackedInt32 struct{ Values []int32 }

func (v *PackedInt32) ReadBinary(r *wire.Reader) error {
	body, err := r.ReadLengthDelimited()
	if err != nil {
		return err
	}
	sub := wire.NewReader(body)
	v.Values = v.Values[:0]
	for !sub.EOF() {
		n, ok, err := sub.ReadVarint()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		v.Values = append(v.Values, int32(n))
	}
	return nil
}

func (v *PackedInt32) ReadText(c *pbtext.Cursor) error {
	tok, ok := c.Next()
	if !ok {
		return dnnerrors.Parsef("unexpected end of tokens reading packed int32")
	}
	n, err := strconv.ParseInt(tok, 10, 32)
	if err != nil {
		return dnnerrors.Wrap(dnnerrors.KindParse, err, "invalid int32 literal %q", tok)
	}
	v.Values = append(v.Values, int32(n))
	return nil
}

func (v *PackedInt32) CloneAsTemplate() FieldValue { return &PackedInt32{} }

// PackedUInt32 is the packed-repeated form of UInt32.
type PackedUInt32 struct{ Values []uint32 }

func (v *PackedUInt32) ReadBinary(r *wire.Reader) error {
	body, err := r.ReadLengthDelimited()
	if err != nil {
		return err
	}
	sub := wire.NewReader(body)
	v.Values = v.Values[:0]
	for !sub.EOF() {
		n, ok, err := sub.ReadVarint()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		v.Values = append(v.Values, uint32(n))
	}
	return nil
}

func (v *PackedUInt32) ReadText(c *pbtext.Cursor) error {
	tok, ok := c.Next()
	if !ok {
		return dnnerrors.Parsef("unexpected end of tokens reading packed uint32")
	}
	n, err := strconv.ParseUint(tok, 10, 32)
	if err != nil {
		return dnnerrors.Wrap(dnnerrors.KindParse, err, "invalid uint32 literal %q", tok)
	}
	v.Values = append(v.Values, uint32(n))
	return nil
}

func (v *PackedUInt32) CloneAsTemplate() FieldValue { return &PackedUInt32{} }

// PackedInt64 is the packed-repeated form of Int64.
type PackedInt64 struct{ Values []int64 }

func (v *PackedInt64) ReadBinary(r *wire.Reader) error {
	body, err := r.ReadLengthDelimited()
	if err != nil {
		return err
	}
	sub := wire.NewReader(body)
	v.Values = v.Values[:0]
	for !sub.EOF() {
		n, ok, err := sub.ReadVarint()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		v.Values = append(v.Values, int64(n))
	}
	return nil
}

func (v *PackedInt64) ReadText(c *pbtext.Cursor) error {
	tok, ok := c.Next()
	if !ok {
		return dnnerrors.Parsef("unexpected end of tokens reading packed int64")
	}
	n, err := strconv.ParseInt(tok, 10, 64)
	if err != nil {
		return dnnerrors.Wrap(dnnerrors.KindParse, err, "invalid int64 literal %q", tok)
	}
	v.Values = append(v.Values, n)
	return nil
}

func (v *PackedInt64) CloneAsTemplate() FieldValue { return &PackedInt64{} }

// PackedUInt64 is the packed-repeated form of UInt64.
type PackedUInt64 struct{ Values []uint64 }

func (v *PackedUInt64) ReadBinary(r *wire.Reader) error {
	body, err := r.ReadLengthDelimited()
	if err != nil {
		return err
	}
	sub := wire.NewReader(body)
	v.Values = v.Values[:0]
	for !sub.EOF() {
		n, ok, err := sub.ReadVarint()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		v.Values = append(v.Values, n)
	}
	return nil
}

func (v *PackedUInt64) ReadText(c *pbtext.Cursor) error {
	tok, ok := c.Next()
	if !ok {
		return dnnerrors.Parsef("unexpected end of tokens reading packed uint64")
	}
	n, err := strconv.ParseUint(tok, 10, 64)
	if err != nil {
		return dnnerrors.Wrap(dnnerrors.KindParse, err, "invalid uint64 literal %q", tok)
	}
	v.Values = append(v.Values, n)
	return nil
}

func (v *PackedUInt64) CloneAsTemplate() FieldValue { return &PackedUInt64{} }

// PackedFloat is the packed-repeated form of Float: a byte run whose
// length must be a multiple of 4, each chunk a little-endian float32.
type PackedFloat struct{ Values []float32 }

func (v *PackedFloat) ReadBinary(r *wire.Reader) error {
	body, err := r.ReadLengthDelimited()
	if err != nil {
		return err
	}
	if len(body)%4 != 0 {
		return dnnerrors.Parsef("packed float body length %d not a multiple of 4", len(body))
	}
	sub := wire.NewReader(body)
	v.Values = v.Values[:0]
	for !sub.EOF() {
		f, err := sub.ReadFloat32()
		if err != nil {
			return err
		}
		v.Values = append(v.Values, f)
	}
	return nil
}

func (v *PackedFloat) ReadText(c *pbtext.Cursor) error {
	tok, ok := c.Next()
	if !ok {
		return dnnerrors.Parsef("unexpected end of tokens reading packed float")
	}
	f, err := strconv.ParseFloat(tok, 32)
	if err != nil {
		return dnnerrors.Wrap(dnnerrors.KindParse, err, "invalid float literal %q", tok)
	}
	v.Values = append(v.Values, float32(f))
	return nil
}

func (v *PackedFloat) CloneAsTemplate() FieldValue { return &PackedFloat{} }

// PackedDouble is the packed-repeated form of Double: a byte run whose
// length must be a multiple of 8, each chunk a little-endian float64.
type PackedDouble struct{ Values []float64 }

func (v *PackedDouble) ReadBinary(r *wire.Reader) error {
	body, err := r.ReadLengthDelimited()
	if err != nil {
		return err
	}
	if len(body)%8 != 0 {
		return dnnerrors.Parsef("packed double body length %d not a multiple of 8", len(body))
	}
	sub := wire.NewReader(body)
	v.Values = v.Values[:0]
	for !sub.EOF() {
		f, err := sub.ReadFloat64()
		if err != nil {
			return err
		}
		v.Values = append(v.Values, f)
	}
	return nil
}

func (v *PackedDouble) ReadText(c *pbtext.Cursor) error {
	tok, ok := c.Next()
	if !ok {
		return dnnerrors.Parsef("unexpected end of tokens reading packed double")
	}
	f, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		return dnnerrors.Wrap(dnnerrors.KindParse, err, "invalid double literal %q", tok)
	}
	v.Values = append(v.Values, f)
	return nil
}

func (v *PackedDouble) CloneAsTemplate() FieldValue { return &PackedDouble{} }

// PackedBool is the packed-repeated form of Bool, one varint (0/1) per
// element.
type PackedBool struct{ Values []bool }

func (v *PackedBool) ReadBinary(r *wire.Reader) error {
	body, err := r.ReadLengthDelimited()
	if err != nil {
		return err
	}
	sub := wire.NewReader(body)
	v.Values = v.Values[:0]
	for !sub.EOF() {
		n, ok, err := sub.ReadVarint()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		v.Values = append(v.Values, n != 0)
	}
	return nil
}

func (v *PackedBool) ReadText(c *pbtext.Cursor) error {
	tok, ok := c.Next()
	if !ok {
		return dnnerrors.Parsef("unexpected end of tokens reading packed bool")
	}
	switch tok {
	case "true":
		v.Values = append(v.Values, true)
	case "false":
		v.Values = append(v.Values, false)
	default:
		return dnnerrors.Parsef("cannot interpret boolean value: %q", tok)
	}
	return nil
}

func (v *PackedBool) CloneAsTemplate() FieldValue { return &PackedBool{} }
