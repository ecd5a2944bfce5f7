package npy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLayoutOffsetsAndStride(t *testing.T) {
	l, err := NewLayout(
		Field{Label: "a", Code: TCUnsigned, Size: 4},
		Field{Label: "b", Code: TCBoolean, Size: 1},
		Field{Label: "c", Code: TCInteger, Size: 2},
	)
	require.NoError(t, err)

	assert.Equal(t, []int{0, 4, 5}, l.Offsets())
	assert.Equal(t, 7, l.Stride())
	assert.Equal(t, []int{4, 1, 2}, l.WordSizes())
	assert.Equal(t, []string{"a", "b", "c"}, l.Labels())
	assert.Equal(t, 3, l.NumFields())
}

func TestLayoutRejectsWideBool(t *testing.T) {
	_, err := NewLayout(Field{Label: "flag", Code: TCBoolean, Size: 4})
	require.ErrorIs(t, err, ErrUsage)
}

func TestLayoutRejectsEmpty(t *testing.T) {
	_, err := NewLayout()
	require.ErrorIs(t, err, ErrUsage)
}

func TestFieldOf(t *testing.T) {
	assert.Equal(t, Field{Label: "x", Code: TCUnsigned, Size: 4}, FieldOf[uint32]("x"))
	assert.Equal(t, Field{Code: TCInteger, Size: 8}, FieldOf[int64](""))
	assert.Equal(t, Field{Code: TCFloat, Size: 8}, FieldOf[float64](""))
	assert.Equal(t, Field{Code: TCComplex, Size: 16}, FieldOf[complex128](""))
	assert.Equal(t, Field{Code: TCBoolean, Size: 1}, FieldOf[bool](""))
}

func TestFieldDescr(t *testing.T) {
	assert.Equal(t, "<u4", Field{Code: TCUnsigned, Size: 4}.descr())
	assert.Equal(t, "|u1", Field{Code: TCUnsigned, Size: 1}.descr())
	assert.Equal(t, "<f8", Field{Code: TCFloat, Size: 8}.descr())
	assert.Equal(t, "|b1", Field{Code: TCBoolean, Size: 1}.descr())
}

func TestParseDescr(t *testing.T) {
	f, err := parseDescr("<u4")
	require.NoError(t, err)
	assert.Equal(t, Field{Code: TCUnsigned, Size: 4}, f)

	f, err = parseDescr("|i1")
	require.NoError(t, err)
	assert.Equal(t, Field{Code: TCInteger, Size: 1}, f)
}

func TestParseDescrRejectsBigEndian(t *testing.T) {
	_, err := parseDescr(">f8")
	require.ErrorIs(t, err, ErrFormat)
}

func TestParseDescrRejectsMalformed(t *testing.T) {
	for _, s := range []string{"", "<u", "<x4", "?u4", "<u0", "<uA"} {
		_, err := parseDescr(s)
		assert.ErrorIs(t, err, ErrFormat, "typestr %q", s)
	}
}

func TestPutRecord(t *testing.T) {
	l, err := NewLayout(
		FieldOf[uint32]("a"),
		FieldOf[bool]("b"),
		FieldOf[int16]("c"),
	)
	require.NoError(t, err)

	buf := make([]byte, l.Stride())
	require.NoError(t, l.PutRecord(buf, uint32(0x01020304), true, int16(-2)))
	assert.Equal(t, []byte{0x04, 0x03, 0x02, 0x01, 0x01, 0xfe, 0xff}, buf)
}

func TestPutRecordMismatches(t *testing.T) {
	l, err := NewLayout(FieldOf[uint32]("a"), FieldOf[int16]("b"))
	require.NoError(t, err)
	buf := make([]byte, l.Stride())

	// wrong arity
	require.ErrorIs(t, l.PutRecord(buf, uint32(1)), ErrUsage)
	// wrong width
	require.ErrorIs(t, l.PutRecord(buf, uint64(1), int16(2)), ErrUsage)
	// wrong code
	require.ErrorIs(t, l.PutRecord(buf, int32(1), int16(2)), ErrUsage)
	// short destination
	require.ErrorIs(t, l.PutRecord(buf[:3], uint32(1), int16(2)), ErrUsage)
}

func TestScalarRoundTrip(t *testing.T) {
	buf := make([]byte, 16)

	putScalar(buf, int64(-123456789))
	assert.Equal(t, int64(-123456789), getScalar[int64](buf))

	putScalar(buf, float32(3.5))
	assert.Equal(t, float32(3.5), getScalar[float32](buf))

	putScalar(buf, complex(1.25, -2.5))
	assert.Equal(t, complex(1.25, -2.5), getScalar[complex128](buf))

	putScalar(buf, complex64(complex(0.5, 1.5)))
	assert.Equal(t, complex64(complex(0.5, 1.5)), getScalar[complex64](buf))

	putScalar(buf, true)
	assert.True(t, getScalar[bool](buf))
}
