package orchestrator

import (
	"context"
	stderrors "errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/turtacn/Optibench/internal/registry"
	"github.com/turtacn/Optibench/internal/resource"
	"github.com/turtacn/Optibench/internal/service"
	"github.com/turtacn/Optibench/pkg/consts"
	"github.com/turtacn/Optibench/pkg/errors"
	"github.com/turtacn/Optibench/pkg/fsm"
	"github.com/turtacn/Optibench/pkg/logger"
	"github.com/turtacn/Optibench/pkg/protocol"
)

const (
	evStart  fsm.Event = "start"
	evStable fsm.Event = "stable"
	evDrain  fsm.Event = "drain"
	evStop   fsm.Event = "stop"
	evFail   fsm.Event = "fail"
)

// Engine runs the host: it binds the RPC listener, serves until a stop
// signal, then drains calls and releases every device.
type Engine struct {
	cfg      *protocol.Config
	fsm      *fsm.StateMachine
	socket   *resource.SocketManager
	reg      *registry.Context
	rpc      *service.Server
	server   *http.Server
	shutdown *Coordinator

	ready     chan struct{}
	readyOnce sync.Once
	serveErr  chan error
}

func NewEngine(cfg *protocol.Config) *Engine {
	e := &Engine{
		cfg:      cfg,
		fsm:      fsm.New(fsm.State(consts.ServicePending)),
		socket:   resource.NewSocketManager(),
		ready:    make(chan struct{}),
		serveErr: make(chan error, 1),
	}
	e.setupFSM()
	return e
}

// NewEngineWith runs over an already built registry instead of binding the
// configured devices.
func NewEngineWith(cfg *protocol.Config, reg *registry.Context) *Engine {
	e := NewEngine(cfg)
	e.reg = reg
	return e
}

func (e *Engine) setupFSM() {
	// Start
	e.fsm.AddTransition(fsm.State(consts.ServicePending), fsm.State(consts.ServiceStarting), evStart, e.onStart)
	e.fsm.AddTransition(fsm.State(consts.ServiceStarting), fsm.State(consts.ServiceRunning), evStable, nil)
	e.fsm.AddTransition(fsm.State(consts.ServiceStarting), fsm.State(consts.ServiceFailed), evFail, nil)

	// Stop
	e.fsm.AddTransition(fsm.State(consts.ServiceRunning), fsm.State(consts.ServiceDraining), evDrain, e.onDrain)
	e.fsm.AddTransition(fsm.State(consts.ServiceDraining), fsm.State(consts.ServiceStopped), evStop, nil)

	e.fsm.Observe(func(from, to fsm.State, _ fsm.Event) {
		logger.Log.Info("Engine: state change", "from", from, "to", to)
	})
}

func (e *Engine) State() consts.ServiceState { return consts.ServiceState(e.fsm.Current()) }

// Ready is closed once the listener is bound and calls are being served.
func (e *Engine) Ready() <-chan struct{} { return e.ready }

// Addr returns the bound RPC address, or "" before start.
func (e *Engine) Addr() string {
	if addrs := e.socket.Addrs(); len(addrs) > 0 {
		return addrs[0]
	}
	return ""
}

// Run serves until SIGINT, SIGTERM or the end of ctx, then shuts down.
// Devices are released even when serving failed.
func (e *Engine) Run(ctx context.Context) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	if err := e.fsm.Fire(evStart); err != nil {
		_ = e.fsm.Fire(evFail)
		if e.shutdown != nil {
			tctx, cancel := e.graceContext()
			e.shutdown.Teardown(tctx)
			cancel()
		}
		_ = e.socket.Close()
		return err
	}
	_ = e.fsm.Fire(evStable)
	e.readyOnce.Do(func() { close(e.ready) })
	logger.Log.Info("Engine: serving", "addr", e.Addr(), "path", protocol.RPCPath)

	var runErr error
	select {
	case sig := <-sigCh:
		logger.Log.Info("Signal: Stop received. Shutting down.", "signal", sig.String())
	case <-ctx.Done():
		logger.Log.Info("Engine: context done. Shutting down.")
	case runErr = <-e.serveErr:
		logger.Log.Error("Engine: RPC server failed", "err", runErr)
	}

	_ = e.fsm.Fire(evDrain)
	_ = e.fsm.Fire(evStop)
	return runErr
}

// onStart binds the listener, builds the devices and starts serving.
func (e *Engine) onStart(fsm.Event, ...interface{}) error {
	logger.Log.Info("Phase: Start", "addr", e.cfg.Server.Address)

	l, err := e.socket.EnsureListener(e.cfg.Server.Address)
	if err != nil {
		return err
	}

	if e.reg == nil {
		e.reg = registry.New(e.cfg)
	}
	e.shutdown = NewCoordinator(e.reg)

	e.rpc, err = service.New(e.reg)
	if err != nil {
		return err
	}
	e.server = &http.Server{
		Handler:           e.rpc.Handler(),
		ConnState:         service.LogConnState,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := e.server.Serve(l); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			e.serveErr <- errors.New(errors.ErrCodeConnection, "Serve", "rpc server stopped", err)
		}
	}()
	return nil
}

// onDrain stops accepting, refuses new dispatches, gives in-flight calls the
// grace period, then releases every device whether or not they finished.
func (e *Engine) onDrain(fsm.Event, ...interface{}) error {
	logger.Log.Info("Phase: Drain", "grace", e.grace())

	ctx, cancel := e.graceContext()
	defer cancel()

	drained := make(chan error, 1)
	go func() { drained <- e.rpc.Drain(ctx) }()

	if err := e.server.Shutdown(ctx); err != nil {
		logger.Log.Warn("Engine: grace period over, closing connections", "err", err)
		_ = e.server.Close()
	}
	if err := <-drained; err != nil {
		logger.Log.Warn("Engine: calls still running at teardown", "err", err)
	}
	_ = e.socket.Close()

	tctx, tcancel := e.graceContext()
	defer tcancel()
	e.shutdown.Teardown(tctx)
	logger.Log.Info("Phase: Stopped")
	return nil
}

func (e *Engine) grace() time.Duration {
	if g := e.cfg.Server.ShutdownGrace.Std(); g > 0 {
		return g
	}
	return consts.DefaultShutdownGrace
}

func (e *Engine) graceContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), e.grace())
}

// Personal.AI order the ending
