package npy

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// readChunked drains r with fixed-size pulls, tolerating short and empty
// reads, the way an externally paced sink would.
func readChunked(t *testing.T, r io.Reader, chunk int) []byte {
	t.Helper()
	var out bytes.Buffer
	p := make([]byte, chunk)
	for {
		n, err := r.Read(p)
		out.Write(p[:n])
		if err == io.EOF {
			return out.Bytes()
		}
		require.NoError(t, err)
	}
}

func streamFixture(t *testing.T, n int) (*Layout, []byte, func() *npyStream) {
	t.Helper()
	layout := mustLayout(t, FieldOf[uint32](""))
	hdr, err := generateHeader(Shape{n}, layout, RowMajor)
	require.NoError(t, err)

	newStream := func() *npyStream {
		return newNpyStream(hdr, &sliceSource[uint32]{data: seq32(n)}, layout.Stride(), n)
	}

	want := make([]byte, 0, len(hdr)+4*n)
	want = append(want, hdr...)
	buf := make([]byte, 4)
	for _, v := range seq32(n) {
		putScalar(buf, v)
		want = append(want, buf...)
	}
	return layout, want, newStream
}

func TestStreamOneShot(t *testing.T) {
	_, want, newStream := streamFixture(t, 100)
	got := readChunked(t, newStream(), len(want)+64)
	assert.Equal(t, want, got)
}

func TestStreamChunkSizes(t *testing.T) {
	// chunks smaller than one element's width must still produce a byte
	// stream identical to a single unchunked write
	_, want, newStream := streamFixture(t, 100)
	for _, chunk := range []int{1, 2, 3, 4, 5, 7, 16, 63, 64, 65, 1000} {
		got := readChunked(t, newStream(), chunk)
		assert.Equal(t, want, got, "chunk size %d", chunk)
	}
}

func TestStreamBoundaryElementNeverSplit(t *testing.T) {
	layout := mustLayout(t, FieldOf[uint32](""))
	hdr, err := generateHeader(Shape{2}, layout, RowMajor)
	require.NoError(t, err)
	s := newNpyStream(hdr, &sliceSource[uint32]{data: []uint32{0x11223344, 0x55667788}}, 4, 2)

	// drain the header plus 2 bytes: the boundary element is produced whole
	// into the side buffer, and its leading bytes fill the fractional space
	p := make([]byte, len(hdr)+2)
	n, err := s.Read(p)
	require.NoError(t, err)
	assert.Equal(t, len(p), n, "the fractional space must not go unused")
	assert.Equal(t, []byte{0x44, 0x33}, p[len(hdr):])
	assert.Equal(t, 4, s.sideLen)
	assert.Equal(t, 2, s.sideOff)

	// the next pulls drain the held tail, then the final element
	rest := readChunked(t, s, 3)
	want := []byte{0x22, 0x11, 0x88, 0x77, 0x66, 0x55}
	assert.Equal(t, want, rest)
}

func TestStreamZeroElements(t *testing.T) {
	layout := mustLayout(t, FieldOf[float64](""))
	hdr, err := generateHeader(Shape{0}, layout, RowMajor)
	require.NoError(t, err)
	s := newNpyStream(hdr, &sliceSource[float64]{}, 8, 0)

	got := readChunked(t, s, 7)
	assert.Equal(t, hdr, got)
}

func TestStreamShortSource(t *testing.T) {
	layout := mustLayout(t, FieldOf[uint32](""))
	hdr, err := generateHeader(Shape{5}, layout, RowMajor)
	require.NoError(t, err)
	s := newNpyStream(hdr, &sliceSource[uint32]{data: seq32(2)}, 4, 5)

	p := make([]byte, 4096)
	_, err = s.Read(p)
	require.ErrorIs(t, err, ErrUsage)
}

func TestStreamStrideWiderThanChunk(t *testing.T) {
	layout := mustLayout(t, FieldOf[complex128](""))
	hdr, err := generateHeader(Shape{3}, layout, RowMajor)
	require.NoError(t, err)

	vals := []complex128{complex(1, 2), complex(3, 4), complex(5, 6)}
	s := newNpyStream(hdr, &sliceSource[complex128]{data: vals}, 16, 3)
	got := readChunked(t, s, 5) // chunk far below the 16-byte stride

	want := append([]byte{}, hdr...)
	buf := make([]byte, 16)
	for _, v := range vals {
		putScalar(buf, v)
		want = append(want, buf...)
	}
	assert.Equal(t, want, got)
}
