// Package registry holds the devices owned by the host for its whole life:
// one display, one automation bridge and at most one handle per stage type.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/turtacn/Optibench/internal/automation"
	"github.com/turtacn/Optibench/internal/display"
	"github.com/turtacn/Optibench/internal/motion"
	"github.com/turtacn/Optibench/internal/stage"
	"github.com/turtacn/Optibench/internal/supervisor"
	"github.com/turtacn/Optibench/pkg/errors"
	"github.com/turtacn/Optibench/pkg/logger"
	"github.com/turtacn/Optibench/pkg/protocol"
)

// Context is the single owner of every device binding. It is built once at
// start-up, handed to the RPC service, and torn down only by the shutdown
// coordinator.
type Context struct {
	Display    *display.Controller
	Automation *automation.Bridge

	cfg    *protocol.Config
	driver motion.Driver

	mu     sync.Mutex
	stages map[protocol.StageType]*stage.Controller
}

// New builds the context from config. The display is bound (or simulated)
// immediately; stage handles are created lazily by Stage.
func New(cfg *protocol.Config) *Context {
	drv, err := motion.Open(cfg.Motion.Driver)
	if err != nil {
		logger.Log.Warn("Registry: motion driver unavailable, stage connects will fail",
			"driver", cfg.Motion.Driver, "err", err)
		drv = motion.Unavailable(err)
	}
	return NewWithDevices(cfg, display.New(cfg.Display), drv, automation.New(cfg.Automation, supervisor.ExecRunner{}))
}

// NewWithDevices builds a context around already constructed devices.
func NewWithDevices(cfg *protocol.Config, disp *display.Controller, drv motion.Driver, auto *automation.Bridge) *Context {
	return &Context{
		Display:    disp,
		Automation: auto,
		cfg:        cfg,
		driver:     drv,
		stages:     make(map[protocol.StageType]*stage.Controller),
	}
}

// Stage returns the handle of stage type t, creating it UNINITIALIZED on
// first use. An existing handle is never replaced.
func (c *Context) Stage(t protocol.StageType) (*stage.Controller, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if h, ok := c.stages[t]; ok {
		return h, nil
	}
	if !t.Valid() {
		return nil, errors.New(errors.ErrCodeInvalidArgument, "Stage", fmt.Sprintf("unknown stage type %q", t), nil)
	}
	sc, err := stage.ConfigFor(c.cfg, t)
	if err != nil {
		return nil, err
	}
	h := stage.New(sc, c.driver)
	c.stages[t] = h
	logger.Log.Debug("Registry: stage handle created", "stage", t, "serial", sc.Identity.Serial)
	return h, nil
}

// Lookup returns the handle of t if one has been created.
func (c *Context) Lookup(t protocol.StageType) (*stage.Controller, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	h, ok := c.stages[t]
	return h, ok
}

// Stages returns a snapshot of the created handles, ordered by stage number.
func (c *Context) Stages() []*stage.Controller {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*stage.Controller, 0, len(c.stages))
	for _, h := range c.stages {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type().Number() < out[j].Type().Number() })
	return out
}

// Personal.AI order the ending
