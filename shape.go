package npy

import "fmt"

// Shape is the ordered sequence of dimension sizes of an array. The product
// of the dimensions is the element count. A parsed shape always has rank at
// least 1; a scalar is treated as rank-1, size-1.
type Shape []int

// Elements returns the product of the dimensions.
func (s Shape) Elements() int {
	n := 1
	for _, d := range s {
		n *= d
	}
	return n
}

// Rank returns the number of dimensions.
func (s Shape) Rank() int { return len(s) }

// Equal reports whether both shapes have identical rank and dimensions.
func (s Shape) Equal(other Shape) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

func (s Shape) clone() Shape {
	out := make(Shape, len(s))
	copy(out, s)
	return out
}

// validate rejects empty and negative shapes before any file is touched.
func (s Shape) validate() error {
	if len(s) == 0 {
		return fmt.Errorf("%w: shape must have rank >= 1", ErrUsage)
	}
	for i, d := range s {
		if d < 0 {
			return fmt.Errorf("%w: shape dimension %d is negative (%d)", ErrUsage, i, d)
		}
	}
	return nil
}

// MemoryOrder determines the layout of the payload and, on append, which
// dimension grows.
type MemoryOrder int

const (
	// RowMajor ("C" order): the last dimension varies fastest; the first
	// dimension is the growth dimension on append.
	RowMajor MemoryOrder = iota
	// ColumnMajor ("Fortran" order): the first dimension varies fastest; the
	// last dimension is the growth dimension on append.
	ColumnMajor
)

func (o MemoryOrder) String() string {
	if o == ColumnMajor {
		return "ColumnMajor"
	}
	return "RowMajor"
}

// growthDim returns the index of the dimension that grows on append.
func (o MemoryOrder) growthDim(rank int) int {
	if o == ColumnMajor {
		return rank - 1
	}
	return 0
}

// fortran renders the order as the header dictionary's boolean literal.
func (o MemoryOrder) fortran() string {
	if o == ColumnMajor {
		return "True"
	}
	return "False"
}
