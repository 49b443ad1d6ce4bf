package frame

import (
	"encoding/binary"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/turtacn/Optibench/pkg/errors"
)

func TestDecode_RoundTripAllTypes(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	shapes := [][]int{{1}, {4, 4}, {3, 5, 2}, {2, 1, 1, 3}}
	tags := []string{"uint8", "int8", "uint16", "int16", "uint32", "int32", "float32", "float64"}

	for _, tag := range tags {
		for _, shape := range shapes {
			dt, err := ParseDType(tag)
			require.NoError(t, err)

			payload := make([]byte, elementCount(shape)*dt.ItemSize())
			rng.Read(payload)

			f, err := Decode(payload, shape, tag)
			require.NoError(t, err, "%s %v", tag, shape)
			assert.Equal(t, payload, f.Encode(), "%s %v", tag, shape)
			assert.Equal(t, shape, f.Shape())
			assert.Equal(t, elementCount(shape), f.Len())
		}
	}
}

func TestDecode_NaNPayloadSurvivesRoundTrip(t *testing.T) {
	payload := make([]byte, 8)
	binary.LittleEndian.PutUint32(payload, 0x7fc00001) // quiet NaN with payload bits
	binary.LittleEndian.PutUint32(payload[4:], math.Float32bits(float32(math.Inf(-1))))

	f, err := Decode(payload, []int{2}, "<f4")
	require.NoError(t, err)
	assert.Equal(t, payload, f.Encode())
}

func TestDecode_TypedValues(t *testing.T) {
	payload := []byte{0x01, 0x00, 0xff, 0xff, 0x00, 0x80}
	f, err := Decode(payload, []int{3}, "int16")
	require.NoError(t, err)
	assert.Equal(t, []int16{1, -1, math.MinInt16}, f.Values())

	f, err = Decode(make([]byte, 16), []int{4, 4}, "uint8")
	require.NoError(t, err)
	assert.Equal(t, make([]uint8, 16), f.Values())
}

func TestDecode_DoesNotAliasPayload(t *testing.T) {
	payload := []byte{1, 2, 3, 4}
	f, err := Decode(payload, []int{2, 2}, "uint8")
	require.NoError(t, err)

	payload[0] = 99
	assert.Equal(t, uint8(1), f.Values().([]uint8)[0])
}

func TestDecode_Rejects(t *testing.T) {
	cases := []struct {
		name    string
		payload []byte
		shape   []int
		tag     string
	}{
		{"short payload", make([]byte, 15), []int{4, 4}, "uint8"},
		{"long payload", make([]byte, 17), []int{4, 4}, "uint8"},
		{"itemsize mismatch", make([]byte, 16), []int{4, 4}, "uint16"},
		{"zero dim", nil, []int{0, 4}, "uint8"},
		{"negative dim", make([]byte, 4), []int{-2, -2}, "uint8"},
		{"empty shape", make([]byte, 1), nil, "uint8"},
		{"unknown dtype", make([]byte, 16), []int{16}, "complex64"},
		{"big endian", make([]byte, 8), []int{4}, ">u2"},
		{"overflow", make([]byte, 1), []int{math.MaxInt32, math.MaxInt32, 4}, "uint8"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f, err := Decode(tc.payload, tc.shape, tc.tag)
			require.Error(t, err)
			assert.Nil(t, f)
			assert.Equal(t, errors.ErrCodeDecode, errors.CodeOf(err))
		})
	}
}

func TestParseDType(t *testing.T) {
	cases := map[string]DType{
		"uint8":  Uint8,
		"UINT16": Uint16,
		"|u1":    Uint8,
		"<i2":    Int16,
		"f4":     Float32,
		"<f8":    Float64,
		">u1":    Uint8,
		"=u4":    Uint32,
	}
	for in, want := range cases {
		got, err := ParseDType(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, bad := range []string{"", "bool", ">f8", "<c8", "u3"} {
		_, err := ParseDType(bad)
		assert.Error(t, err, bad)
	}
}
