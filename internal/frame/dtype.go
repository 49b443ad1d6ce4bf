package frame

import (
	"fmt"
	"strings"
)

// DType is an element type from the whitelist used by the pattern pipeline.
type DType string

const (
	Uint8   DType = "uint8"
	Int8    DType = "int8"
	Uint16  DType = "uint16"
	Int16   DType = "int16"
	Uint32  DType = "uint32"
	Int32   DType = "int32"
	Float32 DType = "float32"
	Float64 DType = "float64"
)

var itemSizes = map[DType]int{
	Uint8: 1, Int8: 1,
	Uint16: 2, Int16: 2,
	Uint32: 4, Int32: 4,
	Float32: 4, Float64: 8,
}

// NumPy array-protocol type codes, without the byte-order prefix.
var shortCodes = map[string]DType{
	"u1": Uint8, "i1": Int8,
	"u2": Uint16, "i2": Int16,
	"u4": Uint32, "i4": Int32,
	"f4": Float32, "f8": Float64,
}

// ItemSize returns the size in bytes of one element, or 0 for an unknown type.
func (d DType) ItemSize() int { return itemSizes[d] }

// ParseDType resolves a tag such as "uint16", "<u2" or "|u1".
// Big-endian tags are rejected: every element on the wire is little-endian.
func ParseDType(tag string) (DType, error) {
	t := strings.ToLower(strings.TrimSpace(tag))
	if _, ok := itemSizes[DType(t)]; ok {
		return DType(t), nil
	}
	if len(t) > 0 {
		switch t[0] {
		case '>', '!':
			if itemSizes[shortCodes[t[1:]]] > 1 {
				return "", fmt.Errorf("big-endian element type %q is not supported", tag)
			}
			t = t[1:]
		case '<', '|', '=':
			t = t[1:]
		}
	}
	if d, ok := shortCodes[t]; ok {
		return d, nil
	}
	return "", fmt.Errorf("unsupported element type %q", tag)
}

// Personal.AI order the ending
