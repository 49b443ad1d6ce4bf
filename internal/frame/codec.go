// Package frame reconstructs the numeric frames uploaded to the display from
// their wire form: raw little-endian bytes, an ordered shape and an element type.
package frame

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/bits"

	"github.com/turtacn/Optibench/pkg/errors"
)

// Frame is a validated, decoded multi-dimensional buffer.
type Frame struct {
	shape  []int
	dtype  DType
	values any
}

func (f *Frame) Shape() []int { return append([]int(nil), f.shape...) }
func (f *Frame) DType() DType { return f.dtype }

// Len is the number of elements.
func (f *Frame) Len() int { return elementCount(f.shape) }

// Values returns the typed element slice, e.g. []uint8 or []float32.
func (f *Frame) Values() any { return f.values }

// Decode validates payload against shape and the element type tag and
// reconstructs the frame. Any mismatch is a DecodeError and nothing is
// returned; decoding never produces a partial frame.
func Decode(payload []byte, shape []int, tag string) (*Frame, error) {
	dtype, err := ParseDType(tag)
	if err != nil {
		return nil, errors.New(errors.ErrCodeDecode, "Decode", "element type", err)
	}
	if len(shape) == 0 {
		return nil, errors.New(errors.ErrCodeDecode, "Decode", "shape must have at least one dimension", nil)
	}

	count := uint64(1)
	for i, dim := range shape {
		if dim <= 0 {
			return nil, errors.New(errors.ErrCodeDecode, "Decode", fmt.Sprintf("shape[%d] = %d is not positive", i, dim), nil)
		}
		hi, lo := bits.Mul64(count, uint64(dim))
		if hi != 0 || lo > math.MaxInt32 {
			return nil, errors.New(errors.ErrCodeDecode, "Decode", fmt.Sprintf("shape %v is too large", shape), nil)
		}
		count = lo
	}

	want := count * uint64(dtype.ItemSize())
	if uint64(len(payload)) != want {
		return nil, errors.New(errors.ErrCodeDecode, "Decode",
			fmt.Sprintf("payload is %d bytes, shape %v of %s needs %d", len(payload), shape, dtype, want), nil)
	}

	n := int(count)
	le := binary.LittleEndian
	var values any
	switch dtype {
	case Uint8:
		values = append(make([]uint8, 0, n), payload...)
	case Int8:
		values = decodeAs(payload, n, 1, func(b []byte) int8 { return int8(b[0]) })
	case Uint16:
		values = decodeAs(payload, n, 2, le.Uint16)
	case Int16:
		values = decodeAs(payload, n, 2, func(b []byte) int16 { return int16(le.Uint16(b)) })
	case Uint32:
		values = decodeAs(payload, n, 4, le.Uint32)
	case Int32:
		values = decodeAs(payload, n, 4, func(b []byte) int32 { return int32(le.Uint32(b)) })
	case Float32:
		values = decodeAs(payload, n, 4, func(b []byte) float32 { return math.Float32frombits(le.Uint32(b)) })
	case Float64:
		values = decodeAs(payload, n, 8, func(b []byte) float64 { return math.Float64frombits(le.Uint64(b)) })
	}

	return &Frame{shape: append([]int(nil), shape...), dtype: dtype, values: values}, nil
}

// Encode returns the wire bytes of the frame. For any frame produced by
// Decode the result equals the original payload bit for bit.
func (f *Frame) Encode() []byte {
	le := binary.LittleEndian
	out := make([]byte, f.Len()*f.dtype.ItemSize())
	switch v := f.values.(type) {
	case []uint8:
		copy(out, v)
	case []int8:
		for i, x := range v {
			out[i] = byte(x)
		}
	case []uint16:
		for i, x := range v {
			le.PutUint16(out[i*2:], x)
		}
	case []int16:
		for i, x := range v {
			le.PutUint16(out[i*2:], uint16(x))
		}
	case []uint32:
		for i, x := range v {
			le.PutUint32(out[i*4:], x)
		}
	case []int32:
		for i, x := range v {
			le.PutUint32(out[i*4:], uint32(x))
		}
	case []float32:
		for i, x := range v {
			le.PutUint32(out[i*4:], math.Float32bits(x))
		}
	case []float64:
		for i, x := range v {
			le.PutUint64(out[i*8:], math.Float64bits(x))
		}
	}
	return out
}

func decodeAs[T any](payload []byte, n, size int, get func([]byte) T) []T {
	out := make([]T, n)
	for i := range out {
		out[i] = get(payload[i*size : (i+1)*size])
	}
	return out
}

func elementCount(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

// Personal.AI order the ending
