// Package motion defines the capability a motion-controller driver must
// provide to the stage controllers, and a registry of named drivers.
//
// Vendor adapters (e.g. a Kinesis KCube DC servo binding) register themselves
// from init. Positions cross this boundary as fixed-point decimals because the
// controllers take device units as a decimal type and rounding through a
// binary float would move the stage to the wrong place.
package motion

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrTimeout is returned (possibly wrapped) by a Device when a motion or
	// initialization did not complete within the given bound.
	ErrTimeout = errors.New("motion: operation timed out")
	// ErrNotFound is returned by Bind when no device with the serial is attached.
	ErrNotFound = errors.New("motion: device not found")
)

// Driver enumerates and binds controllers.
type Driver interface {
	// Discover rebuilds the device list and returns the attached serial numbers.
	Discover() ([]string, error)
	// Bind opens the controller with the given serial. The returned Device is
	// owned exclusively by the caller until Disconnect.
	Bind(serial string) (Device, error)
}

// Device is one bound controller. Calls block until the controller reports
// completion or the timeout elapses; timeouts are passed through to the
// controller and are not enforced here.
type Device interface {
	WaitForSettings(timeout time.Duration) error
	StartPolling(interval time.Duration) error
	StopPolling() error
	Enable() error
	// LoadSettings loads the named settings profile from the device database
	// and applies it to the controller.
	LoadSettings(profile string) error
	Home(timeout time.Duration) error
	MoveTo(position decimal.Decimal, timeout time.Duration) error
	Position() (decimal.Decimal, error)
	Disconnect() error
}

// Factory creates a driver instance.
type Factory func() (Driver, error)

var (
	driversMu sync.RWMutex
	drivers   = map[string]Factory{}
)

// Register makes a driver available under name.
func Register(name string, f Factory) {
	driversMu.Lock()
	defer driversMu.Unlock()
	drivers[name] = f
}

// Open instantiates the driver registered under name.
func Open(name string) (Driver, error) {
	driversMu.RLock()
	f, ok := drivers[name]
	driversMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("motion driver %q is not available in this build (have %v)", name, Available())
	}
	return f()
}

// Available returns the registered driver names, sorted.
func Available() []string {
	driversMu.RLock()
	defer driversMu.RUnlock()
	result := make([]string, 0, len(drivers))
	for name := range drivers {
		result = append(result, name)
	}
	sort.Strings(result)
	return result
}

// Unavailable returns a Driver whose every call fails with err. The host uses
// it when the configured driver cannot be opened, so that stage connects
// report the reason instead of the process refusing to start.
func Unavailable(err error) Driver { return unavailable{err} }

type unavailable struct{ err error }

func (u unavailable) Discover() ([]string, error) { return nil, u.err }
func (u unavailable) Bind(string) (Device, error) { return nil, u.err }

// ToDecimal converts a position to the driver's fixed-point form using the
// shortest decimal that round-trips to the same float64, so 12.5 stays 12.5
// and 0.1 stays 0.1.
func ToDecimal(position float64) decimal.Decimal {
	return decimal.NewFromFloat(position)
}

// Personal.AI order the ending
