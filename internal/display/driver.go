package display

import (
	"fmt"
	"sort"
	"sync"

	"github.com/turtacn/Optibench/internal/frame"
	"github.com/turtacn/Optibench/pkg/protocol"
)

// Driver is the capability a physical phase modulator must provide.
// Implementations wrap a vendor SDK; the controller serializes all calls.
type Driver interface {
	// Shape returns the panel resolution as (height, width).
	Shape() (int, int)
	// SetPhase writes one frame to the panel.
	SetPhase(f *frame.Frame) error
	Close() error
}

// Opener binds a driver using the display section of the config.
type Opener func(cfg protocol.DisplayConfig) (Driver, error)

var (
	driversMu sync.RWMutex
	drivers   = map[string]Opener{}
)

// RegisterDriver makes a driver available under name. Vendor adapters call
// it from init so that linking them in is enough to enable them.
func RegisterDriver(name string, open Opener) {
	driversMu.Lock()
	defer driversMu.Unlock()
	drivers[name] = open
}

// AvailableDrivers returns the registered driver names, sorted.
func AvailableDrivers() []string {
	driversMu.RLock()
	defer driversMu.RUnlock()
	result := make([]string, 0, len(drivers))
	for name := range drivers {
		result = append(result, name)
	}
	sort.Strings(result)
	return result
}

func lookupDriver(name string) (Opener, error) {
	driversMu.RLock()
	defer driversMu.RUnlock()
	open, ok := drivers[name]
	if !ok {
		return nil, fmt.Errorf("display driver %q is not available in this build", name)
	}
	return open, nil
}

// Personal.AI order the ending
