package motion

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open("kinesis-not-linked")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not available in this build")
}

func TestRegisterAndOpen(t *testing.T) {
	want := Unavailable(errors.New("test"))
	Register("test-registry", func() (Driver, error) { return want, nil })

	got, err := Open("test-registry")
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Contains(t, Available(), "test-registry")
	assert.IsIncreasing(t, Available())
}

func TestUnavailable(t *testing.T) {
	cause := errors.New("Thorlabs.MotionControl.DeviceManagerCLI.dll missing")
	d := Unavailable(cause)

	_, err := d.Discover()
	assert.ErrorIs(t, err, cause)
	_, err = d.Bind("27257441")
	assert.ErrorIs(t, err, cause)
}

func TestToDecimal_ShortestExact(t *testing.T) {
	cases := map[float64]string{
		12.5:       "12.5",
		0.1:        "0.1",
		-3.0000001: "-3.0000001",
		360:        "360",
		1e-7:       "0.0000001",
	}
	for in, want := range cases {
		assert.Equal(t, want, ToDecimal(in).String(), "%v", in)
	}
}
