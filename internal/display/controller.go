// Package display owns the binding to the spatial light modulator.
//
// A Controller runs in one of two modes chosen at construction: connected to a
// physical driver, or simulated when no driver could be bound. The mode never
// changes afterwards.
package display

import (
	"fmt"
	"sync"

	"github.com/turtacn/Optibench/internal/frame"
	"github.com/turtacn/Optibench/internal/monitor"
	"github.com/turtacn/Optibench/pkg/consts"
	"github.com/turtacn/Optibench/pkg/logger"
	"github.com/turtacn/Optibench/pkg/protocol"
)

type Controller struct {
	mu     sync.Mutex
	mode   consts.DisplayMode
	driver Driver
	height int
	width  int
	closed bool
	log    logger.Logger
}

// New binds the configured driver, or falls back to simulated mode with the
// configured default resolution. It never fails.
func New(cfg protocol.DisplayConfig) *Controller {
	c := &Controller{
		mode:   consts.DisplaySimulated,
		height: consts.DefaultDisplayHeight,
		width:  consts.DefaultDisplayWidth,
		log:    logger.Log.With("component", "display"),
	}
	if len(cfg.DefaultShape) == 2 {
		c.height, c.width = cfg.DefaultShape[0], cfg.DefaultShape[1]
	}

	if cfg.Simulate {
		c.log.Info("Display: simulation mode requested", "shape", c.shapeString())
		return c
	}

	drv, err := openDriver(cfg)
	if err != nil {
		c.log.Warn("Display: failed to bind SLM, running in simulation mode",
			"driver", cfg.Driver, "err", err, "shape", c.shapeString())
		return c
	}

	c.mode = consts.DisplayConnected
	c.driver = drv
	c.height, c.width = drv.Shape()
	c.log.Info("Display: SLM connected", "driver", cfg.Driver, "shape", c.shapeString())
	return c
}

// NewWithDriver builds a connected controller around an already bound driver.
func NewWithDriver(drv Driver) *Controller {
	h, w := drv.Shape()
	return &Controller{
		mode:   consts.DisplayConnected,
		driver: drv,
		height: h,
		width:  w,
		log:    logger.Log.With("component", "display"),
	}
}

func openDriver(cfg protocol.DisplayConfig) (drv Driver, err error) {
	open, err := lookupDriver(cfg.Driver)
	if err != nil {
		return nil, err
	}
	// Vendor bindings load native libraries; a panic there must not take the host down.
	defer func() {
		if r := recover(); r != nil {
			drv, err = nil, fmt.Errorf("driver panicked: %v", r)
		}
	}()
	return open(cfg)
}

func (c *Controller) Mode() consts.DisplayMode { return c.mode }

// Shape returns (height, width).
func (c *Controller) Shape() (int, int) { return c.height, c.width }

func (c *Controller) Info() protocol.DisplayInfo {
	return protocol.DisplayInfo{Mode: string(c.mode), Shape: []int{c.height, c.width}}
}

// Upload writes f to the panel. In connected mode the result is the driver's
// own outcome; driver errors are logged, not returned. In simulated mode it is
// a no-op that reports success.
func (c *Controller) Upload(f *frame.Frame) (ok bool) {
	if c.mode == consts.DisplaySimulated {
		c.log.Debug("Display (simulation): frame would be uploaded", "shape", f.Shape(), "dtype", f.DType())
		monitor.DisplayUploads.WithLabelValues(string(c.mode), "ok").Inc()
		return true
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("Display: driver panicked during upload", "panic", r)
			ok = false
		}
		outcome := "ok"
		if !ok {
			outcome = "error"
		}
		monitor.DisplayUploads.WithLabelValues(string(c.mode), outcome).Inc()
	}()

	if c.closed {
		c.log.Error("Display: upload after close")
		return false
	}
	if err := c.driver.SetPhase(f); err != nil {
		c.log.Error("Display: failed to upload phase pattern", "err", err)
		return false
	}
	c.log.Debug("Display: phase pattern uploaded", "shape", f.Shape())
	return true
}

// Close releases the driver. It is safe to call more than once.
func (c *Controller) Close() error {
	if c.mode == consts.DisplaySimulated {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.log.Info("Display: releasing SLM")
	return c.driver.Close()
}

func (c *Controller) shapeString() string {
	return fmt.Sprintf("%dx%d", c.height, c.width)
}

// Personal.AI order the ending
