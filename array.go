package npy

import (
	"bytes"
	"fmt"
)

// Array is a loaded or constructed NPY value: an immutable shape, field
// layout and memory order, plus exactly one Buffer holding the payload for
// the lifetime of the Array. It is never mutated after construction; Close
// releases or unmaps the Buffer.
type Array struct {
	shape  Shape
	layout *Layout
	order  MemoryOrder
	buf    Buffer
}

// NewArray constructs an Array from caller-supplied components. The buffer
// must hold exactly shape.Elements() records of layout.Stride() bytes.
func NewArray(shape Shape, layout *Layout, order MemoryOrder, buf Buffer) (*Array, error) {
	if err := shape.validate(); err != nil {
		return nil, err
	}
	want := shape.Elements() * layout.Stride()
	if got := len(buf.Data()); got != want {
		return nil, fmt.Errorf("%w: buffer holds %d bytes, shape and layout require %d", ErrUsage, got, want)
	}
	return &Array{shape: shape.clone(), layout: layout, order: order, buf: buf}, nil
}

// Shape returns a copy of the array's dimensions.
func (a *Array) Shape() Shape { return a.shape.clone() }

// Layout returns the record layout (fields, offsets, stride).
func (a *Array) Layout() *Layout { return a.layout }

// Labels returns the field labels; empty strings for plain arrays.
func (a *Array) Labels() []string { return a.layout.Labels() }

// WordSizes returns the per-field byte widths.
func (a *Array) WordSizes() []int { return a.layout.WordSizes() }

// Order returns the memory order of the payload.
func (a *Array) Order() MemoryOrder { return a.order }

// Len returns the element count, the product of the shape.
func (a *Array) Len() int { return a.shape.Elements() }

// Stride returns the byte width of one record.
func (a *Array) Stride() int { return a.layout.Stride() }

// NumBytes returns the payload size in bytes.
func (a *Array) NumBytes() int { return a.Len() * a.Stride() }

// Bytes returns the raw payload. The slice aliases the Array's buffer and is
// only valid until Close.
func (a *Array) Bytes() []byte { return a.buf.Data() }

// RecordBytes returns the raw bytes of record i.
func (a *Array) RecordBytes(i int) ([]byte, error) {
	if i < 0 || i >= a.Len() {
		return nil, fmt.Errorf("%w: record index %d out of range [0,%d)", ErrUsage, i, a.Len())
	}
	stride := a.Stride()
	return a.buf.Data()[i*stride : (i+1)*stride], nil
}

// EqualMetadata reports whether both arrays agree on shape, field widths,
// labels and memory order.
func (a *Array) EqualMetadata(other *Array) bool {
	if !a.shape.Equal(other.shape) || a.order != other.order {
		return false
	}
	al, ol := a.layout, other.layout
	if al.NumFields() != ol.NumFields() {
		return false
	}
	for i := range al.fields {
		if al.fields[i] != ol.fields[i] {
			return false
		}
	}
	return true
}

// Equal reports whether both arrays agree on metadata and payload bytes.
func (a *Array) Equal(other *Array) bool {
	return a.EqualMetadata(other) && bytes.Equal(a.buf.Data(), other.buf.Data())
}

// Close releases the payload buffer. The Array and every view into it are
// invalid afterwards.
func (a *Array) Close() error { return a.buf.Close() }

// Data returns the payload as a flat []T. The array must be plain
// (single-field) and T's width must equal the stored element width.
func Data[T Scalar](a *Array) ([]T, error) {
	var zero T
	code, size := scalarType(zero)
	if a.layout.NumFields() != 1 {
		return nil, fmt.Errorf("%w: Data on structured array with %d fields", ErrUsage, a.layout.NumFields())
	}
	if f := a.layout.fields[0]; f.Code != code || f.Size != size {
		return nil, fmt.Errorf("%w: requested %T does not match stored type %s%d",
			ErrUsage, zero, string(f.Code), f.Size)
	}
	raw := a.buf.Data()
	out := make([]T, a.Len())
	for i := range out {
		out[i] = getScalar[T](raw[i*size:])
	}
	return out, nil
}

// StrideView is a typed, strided view over one field of every record: a view
// cursor advancing by the record stride per logical element, independent of
// the field's own width.
type StrideView[T Scalar] struct {
	raw    []byte
	offset int
	stride int
	n      int
}

// Column returns a strided view of the field with the given label. T's width
// must equal the field's stored width.
func Column[T Scalar](a *Array, label string) (StrideView[T], error) {
	i := a.layout.fieldIndex(label)
	if i < 0 {
		return StrideView[T]{}, fmt.Errorf("%w: label %q not found in labels", ErrUsage, label)
	}
	var zero T
	code, size := scalarType(zero)
	if f := a.layout.fields[i]; f.Code != code || f.Size != size {
		return StrideView[T]{}, fmt.Errorf("%w: field %q holds %s%d, requested %T",
			ErrUsage, label, string(f.Code), f.Size, zero)
	}
	return StrideView[T]{
		raw:    a.buf.Data(),
		offset: a.layout.offsets[i],
		stride: a.layout.Stride(),
		n:      a.Len(),
	}, nil
}

// Len returns the number of elements in the view.
func (v StrideView[T]) Len() int { return v.n }

// At returns element i. Indexing outside [0,Len) panics via the slice bounds
// check rather than reading adjacent fields.
func (v StrideView[T]) At(i int) T {
	if i < 0 || i >= v.n {
		panic(fmt.Sprintf("npy: stride view index %d out of range [0,%d)", i, v.n))
	}
	var zero T
	_, size := scalarType(zero)
	base := i*v.stride + v.offset
	return getScalar[T](v.raw[base : base+size])
}

// Values materialises the view as a slice.
func (v StrideView[T]) Values() []T {
	out := make([]T, v.n)
	for i := range out {
		out[i] = v.At(i)
	}
	return out
}
