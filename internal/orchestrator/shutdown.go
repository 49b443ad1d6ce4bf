package orchestrator

import (
	"context"
	"fmt"
	"sync"

	"github.com/turtacn/Optibench/internal/registry"
	"github.com/turtacn/Optibench/pkg/logger"
	"github.com/turtacn/Optibench/pkg/protocol"
)

// Handle is a device binding released at shutdown.
type Handle interface {
	Type() protocol.StageType
	Disconnect() error
}

// Closer is the display side of teardown.
type Closer interface {
	Close() error
}

// Coordinator tears down every device the host owns. It holds explicit
// references to what it must release and runs at most once.
type Coordinator struct {
	handles func() []Handle
	display Closer
	once    sync.Once
}

// NewCoordinator tears down the stages registered in reg at the time of
// teardown, then the display.
func NewCoordinator(reg *registry.Context) *Coordinator {
	return &Coordinator{
		handles: func() []Handle {
			stages := reg.Stages()
			out := make([]Handle, len(stages))
			for i, s := range stages {
				out[i] = s
			}
			return out
		},
		display: reg.Display,
	}
}

// NewCoordinatorFor builds a coordinator over a fixed set of handles.
func NewCoordinatorFor(display Closer, handles ...Handle) *Coordinator {
	return &Coordinator{
		handles: func() []Handle { return handles },
		display: display,
	}
}

// Teardown disconnects every handle concurrently, then closes the display.
// A failing or panicking handle is logged and does not stop the others.
// When ctx ends before every handle has returned, the display is closed
// anyway and the stragglers are left running.
func (c *Coordinator) Teardown(ctx context.Context) {
	c.once.Do(func() { c.teardown(ctx) })
}

func (c *Coordinator) teardown(ctx context.Context) {
	handles := c.handles()
	logger.Log.Info("Shutdown: releasing devices", "stages", len(handles))

	var wg sync.WaitGroup
	for _, h := range handles {
		wg.Add(1)
		go func(h Handle) {
			defer wg.Done()
			if err := safely(h.Disconnect); err != nil {
				logger.Log.Error("Shutdown: stage disconnect failed", "stage", h.Type(), "err", err)
				return
			}
			logger.Log.Info("Shutdown: stage released", "stage", h.Type())
		}(h)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		logger.Log.Warn("Shutdown: grace period over, stages still busy", "err", ctx.Err())
	}

	if c.display == nil {
		return
	}
	if err := safely(c.display.Close); err != nil {
		logger.Log.Error("Shutdown: display close failed", "err", err)
		return
	}
	logger.Log.Info("Shutdown: display released")
}

func safely(fn func() error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return fn()
}

// Personal.AI order the ending
