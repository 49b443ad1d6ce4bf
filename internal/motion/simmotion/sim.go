// Package simmotion is an in-memory motion driver. It stands in for the
// vendor driver on hosts without controllers attached (motion.driver: sim)
// and gives tests a deterministic device to drive.
package simmotion

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/turtacn/Optibench/internal/motion"
	"github.com/turtacn/Optibench/pkg/protocol"
)

// Name is the registry name of the simulated driver.
const Name = "sim"

func init() {
	motion.Register(Name, func() (motion.Driver, error) {
		serials := make([]string, 0, len(protocol.DefaultStageIdentities))
		for _, id := range protocol.DefaultStageIdentities {
			serials = append(serials, id.Serial)
		}
		return New(serials...), nil
	})
}

// Op names accepted by FailOn.
const (
	OpDiscover     = "discover"
	OpBind         = "bind"
	OpWaitSettings = "wait_settings"
	OpStartPolling = "start_polling"
	OpStopPolling  = "stop_polling"
	OpEnable       = "enable"
	OpLoadSettings = "load_settings"
	OpHome         = "home"
	OpMoveTo       = "move_to"
	OpPosition     = "position"
	OpDisconnect   = "disconnect"
)

// Driver simulates a bus with a fixed set of attached controllers.
type Driver struct {
	mu       sync.Mutex
	attached map[string]bool
	bound    map[string]*Device
	failures map[string]error
	calls    []string
	binds    int
}

func New(serials ...string) *Driver {
	d := &Driver{
		attached: make(map[string]bool),
		bound:    make(map[string]*Device),
		failures: make(map[string]error),
	}
	for _, s := range serials {
		d.attached[s] = true
	}
	return d
}

// FailOn makes every subsequent op of the given name return err.
// A nil err clears the failure.
func (d *Driver) FailOn(op string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err == nil {
		delete(d.failures, op)
		return
	}
	d.failures[op] = err
}

// Calls returns the ops performed so far, as "op" or "op:serial".
func (d *Driver) Calls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.calls...)
}

// Bound returns the number of currently bound devices.
func (d *Driver) Bound() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.bound)
}

// Binds returns how many times Bind has succeeded.
func (d *Driver) Binds() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.binds
}

func (d *Driver) record(op, serial string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if serial != "" {
		d.calls = append(d.calls, op+":"+serial)
	} else {
		d.calls = append(d.calls, op)
	}
	return d.failures[op]
}

func (d *Driver) Discover() ([]string, error) {
	if err := d.record(OpDiscover, ""); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, 0, len(d.attached))
	for s := range d.attached {
		out = append(out, s)
	}
	sort.Strings(out)
	return out, nil
}

func (d *Driver) Bind(serial string) (motion.Device, error) {
	if err := d.record(OpBind, serial); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.attached[serial] {
		return nil, fmt.Errorf("%w: %s", motion.ErrNotFound, serial)
	}
	if _, busy := d.bound[serial]; busy {
		return nil, fmt.Errorf("simmotion: %s is already bound", serial)
	}
	dev := &Device{drv: d, serial: serial, position: decimal.Zero}
	d.bound[serial] = dev
	d.binds++
	return dev, nil
}

// Device is a simulated controller. Moves complete instantly.
type Device struct {
	drv      *Driver
	serial   string
	mu       sync.Mutex
	position decimal.Decimal
	polling  bool
	enabled  bool
	profile  string
	released bool
}

func (v *Device) op(name string) error {
	v.mu.Lock()
	released := v.released
	v.mu.Unlock()
	if released {
		return fmt.Errorf("simmotion: %s used after disconnect", v.serial)
	}
	return v.drv.record(name, v.serial)
}

func (v *Device) WaitForSettings(time.Duration) error { return v.op(OpWaitSettings) }

func (v *Device) StartPolling(time.Duration) error {
	if err := v.op(OpStartPolling); err != nil {
		return err
	}
	v.mu.Lock()
	v.polling = true
	v.mu.Unlock()
	return nil
}

func (v *Device) StopPolling() error {
	if err := v.op(OpStopPolling); err != nil {
		return err
	}
	v.mu.Lock()
	v.polling = false
	v.mu.Unlock()
	return nil
}

func (v *Device) Enable() error {
	if err := v.op(OpEnable); err != nil {
		return err
	}
	v.mu.Lock()
	v.enabled = true
	v.mu.Unlock()
	return nil
}

func (v *Device) LoadSettings(profile string) error {
	if err := v.op(OpLoadSettings); err != nil {
		return err
	}
	v.mu.Lock()
	v.profile = profile
	v.mu.Unlock()
	return nil
}

func (v *Device) Home(time.Duration) error {
	if err := v.op(OpHome); err != nil {
		return err
	}
	v.mu.Lock()
	v.position = decimal.Zero
	v.mu.Unlock()
	return nil
}

func (v *Device) MoveTo(position decimal.Decimal, _ time.Duration) error {
	if err := v.op(OpMoveTo); err != nil {
		return err
	}
	v.mu.Lock()
	v.position = position
	v.mu.Unlock()
	return nil
}

func (v *Device) Position() (decimal.Decimal, error) {
	if err := v.op(OpPosition); err != nil {
		return decimal.Zero, err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.position, nil
}

// Disconnect releases the binding even when a failure is injected, the way
// the vendor driver drops the handle once asked to.
func (v *Device) Disconnect() error {
	err := v.op(OpDisconnect)
	v.mu.Lock()
	v.released = true
	v.polling = false
	v.mu.Unlock()

	v.drv.mu.Lock()
	if v.drv.bound[v.serial] == v {
		delete(v.drv.bound, v.serial)
	}
	v.drv.mu.Unlock()
	return err
}

// Profile returns the last settings profile applied.
func (v *Device) Profile() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.profile
}

// Polling reports whether status polling is active.
func (v *Device) Polling() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.polling
}

// Personal.AI order the ending
