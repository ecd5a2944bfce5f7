package npy

import (
	"bufio"
	"fmt"
	"io"
	"os"
)

// Mode selects the behaviour of a save against an existing target.
type Mode string

const (
	// ModeWrite creates the target, truncating it if it exists.
	ModeWrite Mode = "w"
	// ModeAppend grows an existing array along its growth dimension; if the
	// target does not exist it behaves like ModeWrite.
	ModeAppend Mode = "a"
)

func (m Mode) validate() error {
	switch m {
	case ModeWrite, ModeAppend:
		return nil
	}
	return fmt.Errorf("%w: unsupported write mode %q", ErrUsage, string(m))
}

// Save writes data as an NPY file of the given shape. The slice length must
// equal the element count of the shape.
func Save[T Scalar](path string, data []T, shape Shape, mode Mode, order MemoryOrder) error {
	layout, err := NewLayout(FieldOf[T](""))
	if err != nil {
		return err
	}
	if err := shape.validate(); err != nil {
		return err
	}
	if len(data) != shape.Elements() {
		return fmt.Errorf("%w: %d elements for shape with %d", ErrUsage, len(data), shape.Elements())
	}
	return saveFile(path, layout, &sliceSource[T]{data: data}, shape, mode, order)
}

// SaveRange writes data[from:to] as a rank-1 NPY file. A negative-length
// range is a usage error.
func SaveRange[T Scalar](path string, data []T, from, to int, mode Mode) error {
	if to < from {
		return fmt.Errorf("%w: negative-length range [%d,%d)", ErrUsage, from, to)
	}
	if from < 0 || to > len(data) {
		return fmt.Errorf("%w: range [%d,%d) outside data of length %d", ErrUsage, from, to, len(data))
	}
	return Save(path, data[from:to], Shape{to - from}, mode, RowMajor)
}

// SaveRecords writes a structured array: src must produce exactly
// shape.Elements() records of layout.Stride() bytes each.
func SaveRecords(path string, layout *Layout, src ElementSource, shape Shape, mode Mode, order MemoryOrder) error {
	if err := shape.validate(); err != nil {
		return err
	}
	return saveFile(path, layout, src, shape, mode, order)
}

func saveFile(path string, layout *Layout, src ElementSource, shape Shape, mode Mode, order MemoryOrder) error {
	if err := mode.validate(); err != nil {
		return err
	}
	if mode == ModeAppend && fileExists(path) {
		return appendFile(path, layout, src, shape, order)
	}

	hdr, err := generateHeader(shape, layout, order)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	w := bufio.NewWriter(f)
	if _, err := w.Write(hdr); err != nil {
		f.Close()
		return fmt.Errorf("save %s: %w", path, err)
	}
	if err := writeElements(w, src, layout.Stride(), shape.Elements()); err != nil {
		f.Close()
		return fmt.Errorf("save %s: %w", path, err)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("save %s: %w", path, err)
	}
	return f.Close()
}

// appendFile implements append mode against an existing file: parse the
// current header, validate compatibility, rewrite the header in place with
// the grown shape, then append the new payload at end-of-file. All validation
// completes before the first write; a rejected append leaves the file
// byte-identical.
func appendFile(path string, layout *Layout, src ElementSource, shape Shape, order MemoryOrder) error {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("append %s: %w", path, err)
	}
	defer f.Close()

	existing, oldLen, err := parseHeader(f)
	if err != nil {
		return fmt.Errorf("append %s: %w", path, err)
	}

	if err := validateAppend(existing, layout, shape, order); err != nil {
		return fmt.Errorf("append %s: %w", path, err)
	}

	combined := existing.shape.clone()
	g := order.growthDim(len(combined))
	combined[g] += shape[g]

	hdr, err := generateHeader(combined, layout, order)
	if err != nil {
		return fmt.Errorf("append %s: %w", path, err)
	}
	switch {
	case len(hdr) < oldLen:
		// growth consumed fewer digits than the reserved padding; re-pad to
		// the reserved length so the payload offset stays fixed
		hdr = padHeaderTo(hdr, oldLen)
	case len(hdr) > oldLen:
		// the grown shape needs a longer dictionary than the file reserved;
		// overwriting in place would corrupt the leading payload bytes
		return fmt.Errorf("%w: append %s: grown header needs %d bytes but the file reserves %d; rewrite the file instead",
			ErrCompat, path, len(hdr), oldLen)
	}

	if _, err := f.WriteAt(hdr, 0); err != nil {
		return fmt.Errorf("append %s: rewriting header: %w", path, err)
	}
	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("append %s: %w", path, err)
	}
	w := bufio.NewWriter(f)
	if err := writeElements(w, src, layout.Stride(), shape.Elements()); err != nil {
		return fmt.Errorf("append %s: %w", path, err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("append %s: %w", path, err)
	}
	return nil
}

// validateAppend checks the new data against the existing file's header:
// element widths, type codes, labels, memory order, rank, and every
// non-growth dimension must match.
func validateAppend(existing *header, layout *Layout, shape Shape, order MemoryOrder) error {
	el := existing.layout
	if el.NumFields() != layout.NumFields() {
		return fmt.Errorf("%w: field count not matching (file has %d, data has %d)",
			ErrCompat, el.NumFields(), layout.NumFields())
	}
	for i := range layout.fields {
		have, want := el.fields[i], layout.fields[i]
		if have.Size != want.Size {
			return fmt.Errorf("%w: element size not matching for field %d (file has %d, data has %d)",
				ErrCompat, i, have.Size, want.Size)
		}
		if have.Code != want.Code {
			return fmt.Errorf("%w: data type descriptor not matching for field %d (file has %q, data has %q)",
				ErrCompat, i, have.Code, want.Code)
		}
		if have.Label != want.Label {
			return fmt.Errorf("%w: field label not matching (file has %q, data has %q)",
				ErrCompat, have.Label, want.Label)
		}
	}
	if existing.order != order {
		return fmt.Errorf("%w: memory order not matching (file has %s, data has %s)",
			ErrCompat, existing.order, order)
	}
	if existing.shape.Rank() != shape.Rank() {
		return fmt.Errorf("%w: ranks not matching (file has %d, data has %d)",
			ErrCompat, existing.shape.Rank(), shape.Rank())
	}
	g := order.growthDim(shape.Rank())
	for i := range shape {
		if i == g {
			continue
		}
		if existing.shape[i] != shape[i] {
			return fmt.Errorf("%w: attempting to append misshaped data (dimension %d: file has %d, data has %d)",
				ErrCompat, i, existing.shape[i], shape[i])
		}
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
