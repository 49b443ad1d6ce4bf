// Package stage drives one motorized axis through its connection lifecycle.
//
//	UNINITIALIZED --connect--> CONNECTING --bound--> CONNECTED --disconnect--> DISCONNECTED
//	                           CONNECTING --fail---> FAILED
//	FAILED, DISCONNECTED --connect--> CONNECTING
//
// Motion and position queries are only served from CONNECTED; in any other
// state they fail without touching the driver.
package stage

import (
	stderrors "errors"
	"fmt"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/turtacn/Optibench/internal/monitor"
	"github.com/turtacn/Optibench/internal/motion"
	"github.com/turtacn/Optibench/pkg/consts"
	"github.com/turtacn/Optibench/pkg/errors"
	"github.com/turtacn/Optibench/pkg/fsm"
	"github.com/turtacn/Optibench/pkg/logger"
	"github.com/turtacn/Optibench/pkg/protocol"
)

const (
	evConnect    fsm.Event = "connect"
	evBound      fsm.Event = "bound"
	evFail       fsm.Event = "fail"
	evDisconnect fsm.Event = "disconnect"
)

// Config is everything a controller needs to know about its axis.
type Config struct {
	Type            protocol.StageType
	Identity        protocol.StageIdentity
	SettingsTimeout time.Duration
	PollInterval    time.Duration
	EnableSettle    time.Duration
	HomeTimeout     time.Duration
	MoveTimeout     time.Duration
}

// ConfigFor extracts the controller config of stage type t.
func ConfigFor(cfg *protocol.Config, t protocol.StageType) (Config, error) {
	id, ok := cfg.Stages[t]
	if !ok {
		return Config{}, errors.New(errors.ErrCodeConfig, "ConfigFor", fmt.Sprintf("no identity configured for stage %q", t), nil)
	}
	return Config{
		Type:            t,
		Identity:        id,
		SettingsTimeout: cfg.Motion.SettingsTimeout.Std(),
		PollInterval:    cfg.Motion.PollInterval.Std(),
		EnableSettle:    cfg.Motion.EnableSettle.Std(),
		HomeTimeout:     cfg.Motion.HomeTimeout.Std(),
		MoveTimeout:     cfg.Motion.MoveTimeout.Std(),
	}, nil
}

// Controller is the handle of one stage. It owns its driver binding
// exclusively, and its mutex is held for the whole of every driver call.
type Controller struct {
	mu     sync.Mutex
	cfg    Config
	driver motion.Driver
	device motion.Device
	fsm    *fsm.StateMachine
	sleep  func(time.Duration)
	log    logger.Logger
}

// New returns a controller in UNINITIALIZED state. Nothing is contacted until Connect.
func New(cfg Config, driver motion.Driver) *Controller {
	if cfg.HomeTimeout <= 0 {
		cfg.HomeTimeout = consts.DefaultHomeTimeout
	}
	if cfg.MoveTimeout <= 0 {
		cfg.MoveTimeout = consts.DefaultMoveTimeout
	}
	c := &Controller{
		cfg:    cfg,
		driver: driver,
		fsm:    fsm.New(fsm.State(consts.StateUninitialized)),
		sleep:  time.Sleep,
		log:    logger.Log.With("stage", string(cfg.Type), "serial", cfg.Identity.Serial),
	}

	for _, from := range []consts.ConnectionState{consts.StateUninitialized, consts.StateFailed, consts.StateDisconnected} {
		c.fsm.AddTransition(fsm.State(from), fsm.State(consts.StateConnecting), evConnect, nil)
	}
	c.fsm.AddTransition(fsm.State(consts.StateConnecting), fsm.State(consts.StateConnected), evBound, nil)
	c.fsm.AddTransition(fsm.State(consts.StateConnecting), fsm.State(consts.StateFailed), evFail, nil)
	c.fsm.AddTransition(fsm.State(consts.StateConnected), fsm.State(consts.StateDisconnected), evDisconnect, nil)

	c.fsm.Observe(func(from, to fsm.State, _ fsm.Event) {
		monitor.SetStageState(string(cfg.Type), consts.ConnectionState(to))
		c.log.Debug("Stage: state change", "from", from, "to", to)
	})
	monitor.SetStageState(string(cfg.Type), consts.StateUninitialized)
	return c
}

func (c *Controller) Type() protocol.StageType { return c.cfg.Type }
func (c *Controller) Serial() string           { return c.cfg.Identity.Serial }
func (c *Controller) Profile() string          { return c.cfg.Identity.Profile }

// State does not wait for an in-flight driver call.
func (c *Controller) State() consts.ConnectionState {
	return consts.ConnectionState(c.fsm.Current())
}

func (c *Controller) IsConnected() bool { return c.State() == consts.StateConnected }

// Connect discovers and binds the controller, waits for its settings, starts
// status polling, enables the motor and applies the settings profile.
// On failure the handle is FAILED, any partial binding is released and the
// error is returned so the caller can decide whether a retry is worthwhile.
func (c *Controller) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.fsm.Can(evConnect) {
		return errors.New(errors.ErrCodeInvalidState, "Connect",
			fmt.Sprintf("stage %s is %s", c.cfg.Type, c.State()), nil)
	}
	_ = c.fsm.Fire(evConnect)
	c.log.Info("Stage: connecting", "profile", c.cfg.Identity.Profile)

	dev, err := c.bind()
	if err != nil {
		if dev != nil {
			if derr := call("Disconnect", dev.Disconnect); derr != nil {
				c.log.Warn("Stage: releasing partial binding failed", "err", derr)
			}
		}
		_ = c.fsm.Fire(evFail)
		c.log.Error("Stage: connection failed", "err", err)
		return err
	}

	c.device = dev
	_ = c.fsm.Fire(evBound)
	c.log.Info("Stage: connected and settings loaded")
	return nil
}

// bind runs the connect sequence. When a step after Bind fails, the bound
// device is returned together with the error so the caller can release it.
func (c *Controller) bind() (motion.Device, error) {
	id := c.cfg.Identity

	var serials []string
	if err := call("Discover", func() (err error) {
		serials, err = c.driver.Discover()
		return err
	}); err != nil {
		return nil, errors.New(errors.ErrCodeConnection, "Connect", "device discovery failed", err)
	}
	if !slices.Contains(serials, id.Serial) {
		return nil, errors.New(errors.ErrCodeConnection, "Connect",
			fmt.Sprintf("serial %s not attached", id.Serial), motion.ErrNotFound)
	}

	var dev motion.Device
	if err := call("Bind", func() (err error) {
		dev, err = c.driver.Bind(id.Serial)
		return err
	}); err != nil {
		return nil, errors.New(errors.ErrCodeConnection, "Connect", "bind by serial failed", err)
	}

	if err := call("WaitForSettings", func() error { return dev.WaitForSettings(c.cfg.SettingsTimeout) }); err != nil {
		return dev, classify("Connect", "settings were not initialized", err, errors.ErrCodeConnection)
	}
	if err := call("StartPolling", func() error { return dev.StartPolling(c.cfg.PollInterval) }); err != nil {
		return dev, errors.New(errors.ErrCodeConnection, "Connect", "start polling failed", err)
	}
	if err := call("Enable", dev.Enable); err != nil {
		return dev, errors.New(errors.ErrCodeConnection, "Connect", "enable failed", err)
	}
	if c.cfg.EnableSettle > 0 {
		c.sleep(c.cfg.EnableSettle)
	}
	if err := call("LoadSettings", func() error { return dev.LoadSettings(id.Profile) }); err != nil {
		return dev, errors.New(errors.ErrCodeConfig, "Connect", fmt.Sprintf("settings profile %s could not be applied", id.Profile), err)
	}
	return dev, nil
}

// Home seeks the reference position, blocking up to timeout (<= 0 selects the
// configured default).
func (c *Controller) Home(timeout time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireConnected("Home"); err != nil {
		return err
	}
	if timeout <= 0 {
		timeout = c.cfg.HomeTimeout
	}
	c.log.Info("Stage: homing", "timeout", timeout)
	if err := call("Home", func() error { return c.device.Home(timeout) }); err != nil {
		return classify("Home", "homing failed", err, errors.ErrCodeDriver)
	}
	c.log.Info("Stage: homing complete")
	return nil
}

// Position returns the current position in device units (degrees or mm).
func (c *Controller) Position() (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireConnected("Position"); err != nil {
		return 0, err
	}
	var pos float64
	err := call("Position", func() error {
		d, err := c.device.Position()
		pos = d.InexactFloat64()
		return err
	})
	if err != nil {
		return 0, errors.New(errors.ErrCodeDriver, "Position", "position query failed", err)
	}
	return pos, nil
}

// MoveTo moves to an absolute position, blocking up to timeout (<= 0 selects
// the configured default). The position reaches the driver as the shortest
// decimal that represents it exactly.
func (c *Controller) MoveTo(position float64, timeout time.Duration) error {
	if math.IsNaN(position) || math.IsInf(position, 0) {
		return errors.New(errors.ErrCodeInvalidArgument, "MoveTo", fmt.Sprintf("position %v is not finite", position), nil)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireConnected("MoveTo"); err != nil {
		return err
	}
	if timeout <= 0 {
		timeout = c.cfg.MoveTimeout
	}
	target := motion.ToDecimal(position)
	c.log.Info("Stage: moving", "target", target.String(), "timeout", timeout)
	if err := call("MoveTo", func() error { return c.device.MoveTo(target, timeout) }); err != nil {
		return classify("MoveTo", "move to "+target.String()+" failed", err, errors.ErrCodeDriver)
	}
	c.log.Info("Stage: move complete", "target", target.String())
	return nil
}

// Disconnect stops polling and releases the binding. It is a no-op unless the
// stage is CONNECTED. The handle ends DISCONNECTED even when the driver
// reports an error while letting go; that error is returned.
func (c *Controller) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.State() != consts.StateConnected {
		c.log.Debug("Stage: already disconnected or never connected")
		return nil
	}
	c.log.Info("Stage: disconnecting")

	errStop := call("StopPolling", c.device.StopPolling)
	errDisc := call("Disconnect", c.device.Disconnect)
	c.device = nil
	_ = c.fsm.Fire(evDisconnect)

	if err := stderrors.Join(errStop, errDisc); err != nil {
		c.log.Warn("Stage: error during disconnect", "err", err)
		return errors.New(errors.ErrCodeDriver, "Disconnect", "driver reported errors while releasing", err)
	}
	return nil
}

func (c *Controller) requireConnected(op string) error {
	if s := c.State(); s != consts.StateConnected {
		return errors.New(errors.ErrCodeInvalidState, op, fmt.Sprintf("stage %s is %s", c.cfg.Type, s), nil)
	}
	return nil
}

// call runs one driver operation, turning a panic inside the vendor binding
// into an error.
func call(op string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s panicked: %v", op, r)
		}
	}()
	return fn()
}

func classify(op, msg string, err error, fallback errors.ErrorCode) error {
	if stderrors.Is(err, motion.ErrTimeout) {
		return errors.New(errors.ErrCodeTimeoutExceeded, op, msg, err)
	}
	return errors.New(fallback, op, msg, err)
}

// Personal.AI order the ending
