package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// StageType identifies a motorized axis. Each type maps to exactly one
// (serial, settings profile) pair.
type StageType string

const (
	StageRotation StageType = "rotation" // PRM1-Z8 rotation mount
	StageZAxis    StageType = "zaxis"    // Z825B linear actuator
)

// KnownStageTypes lists the supported stage types in their numeric order.
var KnownStageTypes = []StageType{StageRotation, StageZAxis}

// DefaultStageIdentities are the factory pairings of the bench hardware.
var DefaultStageIdentities = map[StageType]StageIdentity{
	StageRotation: {Serial: "27266129", Profile: "PRM1-Z8"},
	StageZAxis:    {Serial: "27257441", Profile: "Z825B"},
}

// ParseStageType accepts a stage name ("zaxis", "ZAxis", "z-axis") or its
// legacy number ("1" rotation, "2" z-axis).
func ParseStageType(s string) (StageType, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer("-", "", "_", "", " ", "").Replace(norm)
	switch norm {
	case "1", "rotation", "prm1z8":
		return StageRotation, nil
	case "2", "zaxis", "z", "z825b":
		return StageZAxis, nil
	}
	return "", fmt.Errorf("unsupported stage type %q", s)
}

// Number returns the legacy numeric identifier of the stage type.
func (t StageType) Number() int {
	for i, k := range KnownStageTypes {
		if k == t {
			return i + 1
		}
	}
	return 0
}

// Valid reports whether t is one of KnownStageTypes.
func (t StageType) Valid() bool { return t.Number() != 0 }

func (t *StageType) UnmarshalText(b []byte) error {
	v, err := ParseStageType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// UnmarshalJSON accepts either a JSON string or a JSON number.
func (t *StageType) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		return t.UnmarshalText([]byte(s))
	}
	n, err := strconv.Atoi(string(b))
	if err != nil {
		return fmt.Errorf("stage type must be a name or an integer, got %s", b)
	}
	return t.UnmarshalText([]byte(strconv.Itoa(n)))
}

// Personal.AI order the ending
