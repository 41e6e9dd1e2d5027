// Package wire decodes the primitive protobuf wire encodings: varints,
// fixed-width little-endian scalars, and length-delimited byte strings.
package wire

import (
	"encoding/binary"
	"math"

	"github.com/lensframe/dnncore/internal/dnnerrors"
)

// WireType is the low 3 bits of a field key.
type WireType int

const (
	Varint       WireType = 0
	Fixed64      WireType = 1
	LengthDelim  WireType = 2
	Fixed32      WireType = 5
)

// maxVarintBytes bounds a varint at 10 bytes (70 data bits), enough for
// any uint64 plus the sign-extended negative encoding protobuf uses for
// small negative int32/int64 values.
const maxVarintBytes = 10

// Reader is a forward-seekable byte stream with a current position and
// an end-of-stream flag, matching the ByteStream contract in the spec.
type Reader struct {
	buf []byte
	pos int
}

// NewReader wraps a byte slice for sequential decoding.
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Tell returns the current byte offset.
func (r *Reader) Tell() int { return r.pos }

// Seek moves the read position to an absolute byte offset.
func (r *Reader) Seek(pos int) {
	r.pos = pos
}

// Len returns the total number of bytes in the stream.
func (r *Reader) Len() int { return len(r.buf) }

// EOF reports whether the reader is positioned exactly at the end of
// the stream (a clean boundary, not a failed read).
func (r *Reader) EOF() bool { return r.pos >= len(r.buf) }

func (r *Reader) readByte() (byte, bool) {
	if r.pos >= len(r.buf) {
		return 0, false
	}
	b := r.buf[r.pos]
	r.pos++
	return b, true
}

// ReadVarint decodes a little-endian base-128 varint with MSB
// continuation, up to 10 bytes, and returns it as an unsigned 64-bit
// value. A clean EOF before any byte is read is reported via ok=false
// with no error; a truncated varint fails with ParseError.
func (r *Reader) ReadVarint() (value uint64, ok bool, err error) {
	b, hasByte := r.readByte()
	if !hasByte {
		return 0, false, nil
	}

	var result uint64
	shift := uint(0)
	for n := 0; ; n++ {
		result |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return result, true, nil
		}
		if n+1 >= maxVarintBytes {
			return 0, true, dnnerrors.Parsef("varint exceeds %d bytes", maxVarintBytes)
		}
		shift += 7
		nb, hasNext := r.readByte()
		if !hasNext {
			return 0, true, dnnerrors.Parsef("unexpected end of stream inside varint")
		}
		b = nb
	}
}

// ReadKey reads one varint key and splits it into tag and wire type per
// spec §4.1: tag = key>>3, wireType = key&7. A clean EOF (no key byte
// at all) is reported via ok=false. Any other wire type, or tag<=0,
// fails with ParseError.
func (r *Reader) ReadKey() (tag int, wt WireType, ok bool, err error) {
	v, hasValue, err := r.ReadVarint()
	if err != nil {
		return 0, 0, false, err
	}
	if !hasValue {
		return 0, 0, false, nil
	}
	tag = int(v >> 3)
	wt = WireType(v & 7)
	if tag <= 0 {
		return 0, 0, true, dnnerrors.Parsef("unsupported tag value [%d]", tag)
	}
	switch wt {
	case Varint, Fixed64, LengthDelim, Fixed32:
	default:
		return 0, 0, true, dnnerrors.Parsef("unsupported wire type [%d]", wt)
	}
	return tag, wt, true, nil
}

// ReadFixed32 reads 4 little-endian bytes.
func (r *Reader) ReadFixed32() (uint32, error) {
	if r.pos+4 > len(r.buf) {
		return 0, dnnerrors.Parsef("unexpected end of stream reading fixed32")
	}
	v := binary.LittleEndian.Uint32(r.buf[r.pos : r.pos+4])
	r.pos += 4
	return v, nil
}

// ReadFixed64 reads 8 little-endian bytes.
func (r *Reader) ReadFixed64() (uint64, error) {
	if r.pos+8 > len(r.buf) {
		return 0, dnnerrors.Parsef("unexpected end of stream reading fixed64")
	}
	v := binary.LittleEndian.Uint64(r.buf[r.pos : r.pos+8])
	r.pos += 8
	return v, nil
}

// ReadFloat32 reads a 32-bit IEEE-754 float.
func (r *Reader) ReadFloat32() (float32, error) {
	v, err := r.ReadFixed32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

// ReadFloat64 reads a 64-bit IEEE-754 double.
func (r *Reader) ReadFloat64() (float64, error) {
	v, err := r.ReadFixed64()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(v), nil
}

// ReadBytes reads n raw bytes.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if n < 0 || r.pos+n > len(r.buf) {
		return nil, dnnerrors.Parsef("unexpected end of stream reading %d bytes", n)
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// ReadLengthDelimited reads a varint length followed by that many raw
// bytes, the shape used by strings, embedded messages, and packed
// repeated fields.
func (r *Reader) ReadLengthDelimited() ([]byte, error) {
	n, hasValue, err := r.ReadVarint()
	if err != nil {
		return nil, err
	}
	if !hasValue {
		return nil, dnnerrors.Parsef("unexpected end of stream reading length prefix")
	}
	return r.ReadBytes(int(n))
}

// SkipByWireType discards the value following a key of the given wire
// type, for fields the caller's schema does not recognize (spec §4.3).
func (r *Reader) SkipByWireType(wt WireType) error {
	switch wt {
	case Varint:
		_, hasValue, err := r.ReadVarint()
		if err != nil {
			return err
		}
		if !hasValue {
			return dnnerrors.Parsef("unexpected end of stream skipping varint")
		}
		return nil
	case Fixed64:
		_, err := r.ReadFixed64()
		return err
	case LengthDelim:
		_, err := r.ReadLengthDelimited()
		return err
	case Fixed32:
		_, err := r.ReadFixed32()
		return err
	default:
		return dnnerrors.Parsef("unsupported wire type [%d]", wt)
	}
}

// EncodeVarint appends the minimum-length varint encoding of v to dst,
// used by tests exercising the round-trip invariant in spec §8.
func EncodeVarint(dst []byte, v uint64) []byte {
	for v >= 0x80 {
		dst = append(dst, byte(v)|0x80)
		v >>= 7
	}
	return append(dst, byte(v))
}
