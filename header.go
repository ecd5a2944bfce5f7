package npy

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
)

// NPY file layout, byte-exact:
//
//	bytes 0-5   magic "\x93NUMPY"
//	byte  6     major version (1)
//	byte  7     minor version (0)
//	bytes 8-9   little-endian uint16 dictionary length L
//	bytes 10..  ASCII dictionary, space-padded, final byte '\n',
//	            such that 10+L is a multiple of 16
//	remainder   raw payload in the declared memory order
const (
	npyMagic    = "\x93NUMPY"
	preambleLen = 10
	headerAlign = 16
	maxDictLen  = 0x10000

	// maxHeaderSize bounds the initial read of an archive entry: large
	// enough to hold any version-1 header.
	maxHeaderSize = preambleLen + maxDictLen
)

// header is the parsed form of the dictionary. It is never cached across
// operations; every append re-reads and re-derives it from the file.
type header struct {
	layout *Layout
	shape  Shape
	order  MemoryOrder
}

func (h *header) numBytes() int {
	return h.shape.Elements() * h.layout.Stride()
}

// generateHeader emits the full header: preamble plus padded dictionary.
// For a single unlabelled field the descriptor is the plain typestr form;
// otherwise it is a list of ('label', 'typestr') tuples. One-element shapes
// and one-tuple lists get a trailing comma, matching the textual convention
// for one-tuples.
func generateHeader(shape Shape, layout *Layout, order MemoryOrder) ([]byte, error) {
	var dict strings.Builder
	dict.WriteString("{'descr': ")

	if layout.structured() {
		dict.WriteByte('[')
		for i, f := range layout.fields {
			fmt.Fprintf(&dict, "('%s', '%s')", f.Label, f.descr())
			if i+1 != len(layout.fields) {
				dict.WriteString(", ")
			}
		}
		if len(layout.fields) == 1 {
			dict.WriteByte(',')
		}
		dict.WriteByte(']')
	} else {
		fmt.Fprintf(&dict, "'%s'", layout.fields[0].descr())
	}

	dict.WriteString(", 'fortran_order': ")
	dict.WriteString(order.fortran())
	dict.WriteString(", 'shape': (")
	dict.WriteString(strconv.Itoa(shape[0]))
	for _, d := range shape[1:] {
		dict.WriteString(", ")
		dict.WriteString(strconv.Itoa(d))
	}
	if len(shape) == 1 {
		dict.WriteByte(',')
	}
	dict.WriteString("), }")

	// pad with spaces so that preamble+dict is a multiple of 16 bytes;
	// the dict must end with '\n'
	pad := headerAlign - (preambleLen+dict.Len())%headerAlign
	dict.WriteString(strings.Repeat(" ", pad-1))
	dict.WriteByte('\n')

	if dict.Len() > maxDictLen {
		return nil, fmt.Errorf("%w: header dictionary exceeds %d bytes", ErrUsage, maxDictLen)
	}

	hdr := make([]byte, 0, preambleLen+dict.Len())
	hdr = append(hdr, npyMagic...)
	hdr = append(hdr, 0x01, 0x00)
	hdr = binary.LittleEndian.AppendUint16(hdr, uint16(dict.Len()))
	hdr = append(hdr, dict.String()...)
	return hdr, nil
}

// padHeaderTo stretches a generated header to total bytes by inserting extra
// spaces before the terminating newline, keeping the padding invariant. The
// difference must be a non-negative multiple of the alignment unit.
func padHeaderTo(hdr []byte, total int) []byte {
	extra := total - len(hdr)
	if extra == 0 {
		return hdr
	}
	out := make([]byte, 0, total)
	out = append(out, hdr[:len(hdr)-1]...)
	out = append(out, bytes.Repeat([]byte{' '}, extra)...)
	out = append(out, '\n')
	binary.LittleEndian.PutUint16(out[8:10], uint16(total-preambleLen))
	return out
}

var (
	fortranRe    = regexp.MustCompile(`'fortran_order': (True|False)`)
	digitsRe     = regexp.MustCompile(`\d+`)
	descrPlainRe = regexp.MustCompile(`'descr': '([^']+)'`)
	descrTupleRe = regexp.MustCompile(`\('(\w+)', '([^']+)'\)`)
)

// parseHeader reads and validates the preamble from r, then the dictionary.
// It returns the parsed header and the total header length in bytes
// (preamble + dictionary), which is also the payload offset.
func parseHeader(r io.Reader) (*header, int, error) {
	preamble := make([]byte, preambleLen)
	if _, err := io.ReadFull(r, preamble); err != nil {
		return nil, 0, fmt.Errorf("%w: reading preamble: %v", ErrFormat, err)
	}
	dictLen, err := parsePreamble(preamble)
	if err != nil {
		return nil, 0, err
	}
	dict := make([]byte, dictLen)
	if _, err := io.ReadFull(r, dict); err != nil {
		return nil, 0, fmt.Errorf("%w: truncated header dictionary: %v", ErrFormat, err)
	}
	h, err := parseDict(dict)
	if err != nil {
		return nil, 0, err
	}
	return h, preambleLen + dictLen, nil
}

// parseHeaderBytes parses a header already held in memory, e.g. the initial
// read of an archive entry. buf may extend past the header.
func parseHeaderBytes(buf []byte) (*header, int, error) {
	if len(buf) < preambleLen {
		return nil, 0, fmt.Errorf("%w: truncated preamble (%d bytes)", ErrFormat, len(buf))
	}
	dictLen, err := parsePreamble(buf[:preambleLen])
	if err != nil {
		return nil, 0, err
	}
	if len(buf) < preambleLen+dictLen {
		return nil, 0, fmt.Errorf("%w: truncated header dictionary (want %d bytes, have %d)",
			ErrFormat, dictLen, len(buf)-preambleLen)
	}
	h, err := parseDict(buf[preambleLen : preambleLen+dictLen])
	if err != nil {
		return nil, 0, err
	}
	return h, preambleLen + dictLen, nil
}

func parsePreamble(p []byte) (dictLen int, err error) {
	if string(p[:len(npyMagic)]) != npyMagic {
		return 0, fmt.Errorf("%w: NPY magic string not found", ErrFormat)
	}
	if major, minor := p[6], p[7]; major != 1 || minor != 0 {
		return 0, fmt.Errorf("%w: NPY format version %d.%d not supported", ErrFormat, major, minor)
	}
	return int(binary.LittleEndian.Uint16(p[8:10])), nil
}

// parseDict extracts field layout, shape and memory order from the
// dictionary text. It is purely functional: no parser state survives a call.
func parseDict(dict []byte) (*header, error) {
	if len(dict) == 0 || dict[len(dict)-1] != '\n' {
		return nil, fmt.Errorf("%w: header dictionary missing terminating newline", ErrFormat)
	}
	if dict[0] != '{' {
		return nil, fmt.Errorf("%w: malformed header dictionary %q", ErrFormat, firstLine(dict))
	}

	var order MemoryOrder
	if m := fortranRe.FindSubmatch(dict); m == nil {
		return nil, fmt.Errorf("%w: header missing 'fortran_order'", ErrFormat)
	} else if string(m[1]) == "True" {
		order = ColumnMajor
	} else {
		order = RowMajor
	}

	shape, err := parseShape(dict)
	if err != nil {
		return nil, err
	}

	layout, err := parseDescrValue(dict)
	if err != nil {
		return nil, err
	}

	return &header{layout: layout, shape: shape, order: order}, nil
}

func parseShape(dict []byte) (Shape, error) {
	const marker = "'shape': ("
	start := bytes.Index(dict, []byte(marker))
	if start < 0 {
		return nil, fmt.Errorf("%w: header missing 'shape'", ErrFormat)
	}
	end := bytes.IndexByte(dict[start:], ')')
	if end < 0 {
		return nil, fmt.Errorf("%w: unterminated shape tuple %q", ErrFormat, firstLine(dict[start:]))
	}
	var shape Shape
	for _, run := range digitsRe.FindAll(dict[start:start+end], -1) {
		d, err := strconv.Atoi(string(run))
		if err != nil {
			return nil, fmt.Errorf("%w: shape dimension %q out of range", ErrFormat, run)
		}
		shape = append(shape, d)
	}
	if len(shape) == 0 {
		// a scalar, stored as an empty tuple; treat as rank-1, size-1
		shape = Shape{1}
	}
	return shape, nil
}

func parseDescrValue(dict []byte) (*Layout, error) {
	const marker = "'descr': "
	start := bytes.Index(dict, []byte(marker))
	if start < 0 {
		return nil, fmt.Errorf("%w: header missing 'descr'", ErrFormat)
	}
	rest := dict[start+len(marker):]
	if len(rest) == 0 {
		return nil, fmt.Errorf("%w: malformed 'descr'", ErrFormat)
	}

	switch rest[0] {
	case '\'':
		m := descrPlainRe.FindSubmatch(dict[start:])
		if m == nil {
			return nil, fmt.Errorf("%w: could not parse data type descriptor %q", ErrFormat, firstLine(rest))
		}
		f, err := parseDescr(string(m[1]))
		if err != nil {
			return nil, err
		}
		return NewLayout(f)

	case '[':
		end := bytes.IndexByte(rest, ']')
		if end < 0 {
			return nil, fmt.Errorf("%w: unterminated list in 'descr'", ErrFormat)
		}
		var fields []Field
		for _, m := range descrTupleRe.FindAllSubmatch(rest[:end], -1) {
			f, err := parseDescr(string(m[2]))
			if err != nil {
				return nil, err
			}
			f.Label = string(m[1])
			fields = append(fields, f)
		}
		if len(fields) == 0 {
			return nil, fmt.Errorf("%w: empty or malformed list in 'descr'", ErrFormat)
		}
		return NewLayout(fields...)

	default:
		return nil, fmt.Errorf("%w: malformed 'descr' value %q", ErrFormat, firstLine(rest))
	}
}

// firstLine trims a header fragment for error messages.
func firstLine(b []byte) string {
	if i := bytes.IndexByte(b, '\n'); i >= 0 {
		b = b[:i]
	}
	const max = 80
	if len(b) > max {
		b = b[:max]
	}
	return string(b)
}
