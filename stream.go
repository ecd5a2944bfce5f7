package npy

import (
	"fmt"
	"io"
)

// ElementSource produces the payload one element at a time: a whole record
// for structured arrays, a single scalar otherwise. Fill encodes exactly one
// element into dst, which is exactly one stride wide, and returns io.EOF once
// the source is exhausted.
type ElementSource interface {
	Fill(dst []byte) error
}

// RecordFunc adapts a record-filling function to ElementSource.
type RecordFunc func(dst []byte) error

func (f RecordFunc) Fill(dst []byte) error { return f(dst) }

// sliceSource feeds scalars from a slice.
type sliceSource[T Scalar] struct {
	data []T
	i    int
}

func (s *sliceSource[T]) Fill(dst []byte) error {
	if s.i == len(s.data) {
		return io.EOF
	}
	putScalar(dst, s.data[s.i])
	s.i++
	return nil
}

// npyStream is a pull-based bridge between an externally paced byte sink and
// the internally paced element producer. The sink controls chunk size and
// timing: each Read call is one pull of len(p) bytes. State carried across
// calls: the unsent tail of the header, a side buffer holding at most one
// element that did not fit the previous chunk, and how much of that side
// buffer has already been drained.
//
// Per pull, the drain order is fixed: header bytes first, then the side
// buffer, then whole elements encoded directly into p. If the trailing space
// of p is not a whole multiple of the stride and elements remain, exactly one
// element is produced into the side buffer; the trailing space is filled from
// its leading bytes and the rest carries over to the next call. An element is
// never split across two Fill destinations.
type npyStream struct {
	header    []byte // unsent header bytes
	src       ElementSource
	stride    int
	remaining int // elements not yet pulled from src

	side    []byte // holds at most one element
	sideLen int    // bytes valid in side (0 or stride)
	sideOff int    // bytes of side already drained
}

func newNpyStream(header []byte, src ElementSource, stride, count int) *npyStream {
	return &npyStream{
		header:    header,
		src:       src,
		stride:    stride,
		remaining: count,
		side:      make([]byte, stride),
	}
}

func (s *npyStream) pull(dst []byte) error {
	err := s.src.Fill(dst)
	if err == io.EOF {
		return fmt.Errorf("%w: element source exhausted with %d elements outstanding", ErrUsage, s.remaining)
	}
	if err != nil {
		return fmt.Errorf("element source: %w", err)
	}
	s.remaining--
	return nil
}

func (s *npyStream) Read(p []byte) (int, error) {
	n := 0

	if len(s.header) > 0 {
		c := copy(p, s.header)
		s.header = s.header[c:]
		n += c
		if len(s.header) > 0 {
			return n, nil
		}
	}

	if s.sideOff < s.sideLen {
		c := copy(p[n:], s.side[s.sideOff:s.sideLen])
		s.sideOff += c
		n += c
		if s.sideOff == s.sideLen {
			s.sideOff, s.sideLen = 0, 0
		}
	}

	if s.sideLen == 0 {
		for s.remaining > 0 && len(p)-n >= s.stride {
			if err := s.pull(p[n : n+s.stride]); err != nil {
				return n, err
			}
			n += s.stride
		}
		if s.remaining > 0 && len(p)-n > 0 {
			// boundary element: produce it whole into the side buffer, then
			// drain what fits so a non-empty pull never comes back empty
			if err := s.pull(s.side); err != nil {
				return n, err
			}
			s.sideLen = s.stride
			s.sideOff = copy(p[n:], s.side[:s.sideLen])
			n += s.sideOff
		}
	}

	if n == 0 && len(p) > 0 && s.remaining == 0 && s.sideLen == 0 {
		return 0, io.EOF
	}
	return n, nil
}

// writeElements drains src into w without the chunk-size bridging: used for
// plain-file payloads where the writer is not externally paced.
func writeElements(w io.Writer, src ElementSource, stride, count int) error {
	buf := make([]byte, stride)
	for i := 0; i < count; i++ {
		if err := src.Fill(buf); err != nil {
			if err == io.EOF {
				return fmt.Errorf("%w: element source exhausted after %d of %d elements", ErrUsage, i, count)
			}
			return fmt.Errorf("element source: %w", err)
		}
		if _, err := w.Write(buf); err != nil {
			return err
		}
	}
	return nil
}
