package npy

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
)

// A field's element type is described by a NumPy typestr of 3 parts:
//   - One character describing the byte order of the data:
//     "<": little-endian; ">": big-endian; "|": not relevant (single byte)
//   - One character code giving the basic type of the field:
//     * "b": boolean
//     * "i": signed integer
//     * "u": unsigned integer
//     * "f": floating point
//     * "c": complex floating point
//   - An integer giving the number of bytes the type uses.
//
// Big-endian data is rejected outright: this package never byte-swaps.

// ByteOrder is the leading character of a typestr.
type ByteOrder rune

const (
	BONotRelevant  ByteOrder = '|'
	BOLittleEndian ByteOrder = '<'
	BOBigEndian    ByteOrder = '>'
)

var byteOrders = map[ByteOrder]struct{}{
	BONotRelevant:  {},
	BOLittleEndian: {},
	BOBigEndian:    {},
}

func ParseByteOrder(r rune) (ByteOrder, error) {
	o := ByteOrder(r)
	if _, ok := byteOrders[o]; !ok {
		return o, fmt.Errorf("%w: unsupported byte order marker: %q", ErrFormat, r)
	}
	return o, nil
}

// TypeCode is the one-character basic type of a field.
type TypeCode rune

const (
	TCBoolean  TypeCode = 'b'
	TCInteger  TypeCode = 'i'
	TCUnsigned TypeCode = 'u'
	TCFloat    TypeCode = 'f'
	TCComplex  TypeCode = 'c'
)

var typeCodes = map[TypeCode]string{
	TCBoolean:  "bool",
	TCInteger:  "int",
	TCUnsigned: "uint",
	TCFloat:    "float",
	TCComplex:  "complex",
}

func ParseTypeCode(r rune) (TypeCode, error) {
	t := TypeCode(r)
	if _, ok := typeCodes[t]; !ok {
		return t, fmt.Errorf("%w: unsupported type code: %q", ErrFormat, r)
	}
	return t, nil
}

func (tc TypeCode) Human() string { return typeCodes[tc] }

// Field describes one column of a record: an optional label, a type code and
// a byte width. A plain (non-structured) array has a single field with an
// empty label.
type Field struct {
	Label string
	Code  TypeCode
	Size  int
}

// descr renders the field as a typestr. Single-byte types carry the
// not-relevant byte order marker, everything else is little-endian.
func (f Field) descr() string {
	order := BOLittleEndian
	if f.Size == 1 {
		order = BONotRelevant
	}
	return string(order) + string(f.Code) + strconv.Itoa(f.Size)
}

// parseDescr parses a typestr such as "<u4" into a Field. The label is left
// empty; callers attach it when parsing structured descriptors.
func parseDescr(s string) (Field, error) {
	if len(s) < 3 {
		return Field{}, fmt.Errorf("%w: typestr %q is too short", ErrFormat, s)
	}
	order, err := ParseByteOrder(rune(s[0]))
	if err != nil {
		return Field{}, err
	}
	if order == BOBigEndian {
		return Field{}, fmt.Errorf("%w: data stored in big-endian format (not supported): %q", ErrFormat, s)
	}
	code, err := ParseTypeCode(rune(s[1]))
	if err != nil {
		return Field{}, err
	}
	size, err := strconv.Atoi(s[2:])
	if err != nil || size <= 0 {
		return Field{}, fmt.Errorf("%w: invalid byte width in typestr %q", ErrFormat, s)
	}
	if code == TCBoolean && size != 1 {
		return Field{}, fmt.Errorf("%w: boolean typestr %q must be 1 byte wide", ErrFormat, s)
	}
	return Field{Code: code, Size: size}, nil
}

// Layout is the byte layout of one record: the ordered fields, the cumulative
// byte offset of each field, and the total record stride. It is computed once
// at construction and never changes.
type Layout struct {
	fields  []Field
	offsets []int
	stride  int
}

// NewLayout builds the layout table for a record type. Boolean fields must be
// exactly one byte wide; the NPY format has no representation for anything
// else.
func NewLayout(fields ...Field) (*Layout, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: layout requires at least one field", ErrUsage)
	}
	l := &Layout{
		fields:  make([]Field, len(fields)),
		offsets: make([]int, len(fields)),
	}
	copy(l.fields, fields)
	for i, f := range fields {
		if _, ok := typeCodes[f.Code]; !ok {
			return nil, fmt.Errorf("%w: field %q: unsupported type code %q", ErrUsage, f.Label, f.Code)
		}
		if f.Size <= 0 {
			return nil, fmt.Errorf("%w: field %q: byte width must be positive", ErrUsage, f.Label)
		}
		if f.Code == TCBoolean && f.Size != 1 {
			return nil, fmt.Errorf("%w: field %q: boolean fields must be 1 byte wide", ErrUsage, f.Label)
		}
		l.offsets[i] = l.stride
		l.stride += f.Size
	}
	return l, nil
}

// Fields returns a copy of the field descriptors.
func (l *Layout) Fields() []Field {
	out := make([]Field, len(l.fields))
	copy(out, l.fields)
	return out
}

// Labels returns the field labels in declaration order.
func (l *Layout) Labels() []string {
	out := make([]string, len(l.fields))
	for i, f := range l.fields {
		out[i] = f.Label
	}
	return out
}

// WordSizes returns the per-field byte widths in declaration order.
func (l *Layout) WordSizes() []int {
	out := make([]int, len(l.fields))
	for i, f := range l.fields {
		out[i] = f.Size
	}
	return out
}

// Offsets returns the cumulative byte offset of each field within one record.
func (l *Layout) Offsets() []int {
	out := make([]int, len(l.offsets))
	copy(out, l.offsets)
	return out
}

// Stride returns the total record width in bytes.
func (l *Layout) Stride() int { return l.stride }

// NumFields returns the number of fields per record.
func (l *Layout) NumFields() int { return len(l.fields) }

// structured reports whether the layout uses the list-of-tuples descriptor
// form. A single unlabelled field is the plain form.
func (l *Layout) structured() bool {
	return len(l.fields) > 1 || l.fields[0].Label != ""
}

func (l *Layout) fieldIndex(label string) int {
	for i, f := range l.fields {
		if f.Label == label {
			return i
		}
	}
	return -1
}

func (l *Layout) equalTypes(other *Layout) bool {
	if len(l.fields) != len(other.fields) {
		return false
	}
	for i := range l.fields {
		if l.fields[i].Code != other.fields[i].Code || l.fields[i].Size != other.fields[i].Size {
			return false
		}
	}
	return true
}

// PutRecord encodes one record into dst, which must be at least one stride
// long. Values are matched positionally against the fields; a value whose Go
// type does not agree with its field's code and width is a usage error.
func (l *Layout) PutRecord(dst []byte, values ...any) error {
	if len(values) != len(l.fields) {
		return fmt.Errorf("%w: record has %d values, layout has %d fields", ErrUsage, len(values), len(l.fields))
	}
	if len(dst) < l.stride {
		return fmt.Errorf("%w: destination shorter than record stride", ErrUsage)
	}
	for i, v := range values {
		f := l.fields[i]
		code, size := scalarType(v)
		if code != f.Code || size != f.Size {
			return fmt.Errorf("%w: field %q wants %d-byte %s, got %T", ErrUsage, f.Label, f.Size, f.Code.Human(), v)
		}
		putScalarAny(dst[l.offsets[i]:], v)
	}
	return nil
}

// Scalar is the closed set of Go types that map onto NPY field types.
type Scalar interface {
	bool | int8 | int16 | int32 | int64 |
		uint8 | uint16 | uint32 | uint64 |
		float32 | float64 | complex64 | complex128
}

// FieldOf returns the field descriptor for Go type T with the given label.
func FieldOf[T Scalar](label string) Field {
	var zero T
	code, size := scalarType(zero)
	return Field{Label: label, Code: code, Size: size}
}

// scalarType maps a Go scalar value to its type code and byte width. Values
// outside the Scalar set report a zero width.
func scalarType(v any) (TypeCode, int) {
	switch v.(type) {
	case bool:
		return TCBoolean, 1
	case int8:
		return TCInteger, 1
	case int16:
		return TCInteger, 2
	case int32:
		return TCInteger, 4
	case int64:
		return TCInteger, 8
	case uint8:
		return TCUnsigned, 1
	case uint16:
		return TCUnsigned, 2
	case uint32:
		return TCUnsigned, 4
	case uint64:
		return TCUnsigned, 8
	case float32:
		return TCFloat, 4
	case float64:
		return TCFloat, 8
	case complex64:
		return TCComplex, 8
	case complex128:
		return TCComplex, 16
	default:
		return 0, 0
	}
}

// putScalarAny encodes v into dst in little-endian order. v must be one of
// the Scalar types; scalarType is the gatekeeper.
func putScalarAny(dst []byte, v any) {
	switch x := v.(type) {
	case bool:
		if x {
			dst[0] = 1
		} else {
			dst[0] = 0
		}
	case int8:
		dst[0] = byte(x)
	case int16:
		binary.LittleEndian.PutUint16(dst, uint16(x))
	case int32:
		binary.LittleEndian.PutUint32(dst, uint32(x))
	case int64:
		binary.LittleEndian.PutUint64(dst, uint64(x))
	case uint8:
		dst[0] = x
	case uint16:
		binary.LittleEndian.PutUint16(dst, x)
	case uint32:
		binary.LittleEndian.PutUint32(dst, x)
	case uint64:
		binary.LittleEndian.PutUint64(dst, x)
	case float32:
		binary.LittleEndian.PutUint32(dst, math.Float32bits(x))
	case float64:
		binary.LittleEndian.PutUint64(dst, math.Float64bits(x))
	case complex64:
		binary.LittleEndian.PutUint32(dst, math.Float32bits(real(x)))
		binary.LittleEndian.PutUint32(dst[4:], math.Float32bits(imag(x)))
	case complex128:
		binary.LittleEndian.PutUint64(dst, math.Float64bits(real(x)))
		binary.LittleEndian.PutUint64(dst[8:], math.Float64bits(imag(x)))
	}
}

func putScalar[T Scalar](dst []byte, v T) {
	putScalarAny(dst, v)
}

func getScalar[T Scalar](src []byte) T {
	var v T
	switch p := any(&v).(type) {
	case *bool:
		*p = src[0] != 0
	case *int8:
		*p = int8(src[0])
	case *int16:
		*p = int16(binary.LittleEndian.Uint16(src))
	case *int32:
		*p = int32(binary.LittleEndian.Uint32(src))
	case *int64:
		*p = int64(binary.LittleEndian.Uint64(src))
	case *uint8:
		*p = src[0]
	case *uint16:
		*p = binary.LittleEndian.Uint16(src)
	case *uint32:
		*p = binary.LittleEndian.Uint32(src)
	case *uint64:
		*p = binary.LittleEndian.Uint64(src)
	case *float32:
		*p = math.Float32frombits(binary.LittleEndian.Uint32(src))
	case *float64:
		*p = math.Float64frombits(binary.LittleEndian.Uint64(src))
	case *complex64:
		re := math.Float32frombits(binary.LittleEndian.Uint32(src))
		im := math.Float32frombits(binary.LittleEndian.Uint32(src[4:]))
		*p = complex(re, im)
	case *complex128:
		re := math.Float64frombits(binary.LittleEndian.Uint64(src))
		im := math.Float64frombits(binary.LittleEndian.Uint64(src[8:]))
		*p = complex(re, im)
	}
	return v
}
