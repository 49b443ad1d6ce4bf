// Package service exposes the bench hardware as JSON-RPC 2.0 methods.
//
// Every method converts whatever goes wrong underneath into its sentinel
// result (false, or null for value results) and logs the cause on the host.
// A client never receives a fault raised by a device, and no call can take the
// process down.
package service

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/rpc/v2"
	"github.com/gorilla/rpc/v2/json2"
	"github.com/turtacn/Optibench/internal/frame"
	"github.com/turtacn/Optibench/internal/monitor"
	"github.com/turtacn/Optibench/internal/registry"
	"github.com/turtacn/Optibench/pkg/errors"
	"github.com/turtacn/Optibench/pkg/logger"
	"github.com/turtacn/Optibench/pkg/protocol"
)

// Server is the HTTP front end of the Hardware service.
type Server struct {
	rpc *rpc.Server
	hw  *Hardware
}

// New registers the Hardware methods over reg.
func New(reg *registry.Context) (*Server, error) {
	hw := &Hardware{reg: reg, log: logger.Log.With("component", "rpc")}

	s := rpc.NewServer()
	s.RegisterCodec(aliasCodec{inner: json2.NewCodec()}, "application/json")
	if err := s.RegisterService(hw, protocol.ServiceName); err != nil {
		return nil, errors.New(errors.ErrCodeUnknown, "service.New", "cannot register hardware service", err)
	}
	return &Server{rpc: s, hw: hw}, nil
}

// Handler returns a mux serving the service at protocol.RPCPath.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(protocol.RPCPath, s.rpc)
	return mux
}

// Drain refuses every call dispatched from now on and waits for the calls
// already running, or for ctx to end.
func (s *Server) Drain(ctx context.Context) error {
	return s.hw.drain(ctx)
}

// LogConnState is an http.Server ConnState hook. Client connections are
// observed for logging only.
func LogConnState(c net.Conn, state http.ConnState) {
	switch state {
	case http.StateNew:
		logger.Log.Info("RPC: client connected", "remote", c.RemoteAddr().String())
	case http.StateClosed, http.StateHijacked:
		logger.Log.Info("RPC: client disconnected", "remote", c.RemoteAddr().String())
	}
}

// Hardware holds the RPC methods. Its exported method set is the wire surface.
type Hardware struct {
	reg *registry.Context
	log logger.Logger

	gate     sync.Mutex
	draining bool
	inflight sync.WaitGroup
}

func (h *Hardware) enter() bool {
	h.gate.Lock()
	defer h.gate.Unlock()
	if h.draining {
		return false
	}
	h.inflight.Add(1)
	return true
}

func (h *Hardware) drain(ctx context.Context) error {
	h.gate.Lock()
	h.draining = true
	h.gate.Unlock()

	done := make(chan struct{})
	go func() {
		h.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// guard runs fn as one remote call and reports whether it succeeded.
func (h *Hardware) guard(method string, fn func(log logger.Logger) error) (ok bool) {
	start := time.Now()
	log := h.log.With("method", method, "call_id", uuid.NewString())
	outcome := "ok"

	defer func() {
		if r := recover(); r != nil {
			log.Error("RPC: call panicked", "panic", r, "stack", string(debug.Stack()))
			outcome, ok = "panic", false
		}
		monitor.RPCCalls.WithLabelValues(method, outcome).Inc()
		monitor.RPCDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	}()

	if !h.enter() {
		log.Warn("RPC: call refused, service is shutting down")
		outcome = "rejected"
		return false
	}
	defer h.inflight.Done()

	if err := fn(log); err != nil {
		log.Error("RPC: call failed", "code", errors.CodeOf(err).String(), "err", err)
		outcome = "failed"
		return false
	}
	return true
}

func invalid(op, format string, a ...any) error {
	return errors.New(errors.ErrCodeInvalidArgument, op, fmt.Sprintf(format, a...), nil)
}

func timeoutOf(ms int64) time.Duration {
	if ms <= 0 {
		return 0
	}
	return time.Duration(ms) * time.Millisecond
}

// UploadFrame decodes a raw frame and writes it to the display.
func (h *Hardware) UploadFrame(_ *http.Request, args *protocol.UploadFrameArgs, reply *bool) error {
	*reply = h.guard(protocol.MethodUploadFrame, func(log logger.Logger) error {
		f, err := frame.Decode(args.Data, args.Shape, args.DType)
		if err != nil {
			return err
		}
		if !h.reg.Display.Upload(f) {
			return errors.New(errors.ErrCodeDriver, "UploadFrame", "display rejected the frame", nil)
		}
		log.Debug("RPC: frame uploaded", "shape", f.Shape(), "dtype", f.DType())
		return nil
	})
	return nil
}

// StageConnect connects the stage, creating its handle on first use. A stage
// that is already connected is not touched and the call reports false.
func (h *Hardware) StageConnect(_ *http.Request, args *protocol.StageArgs, reply *bool) error {
	*reply = h.guard(protocol.MethodStageConnect, func(log logger.Logger) error {
		st, err := h.reg.Stage(args.StageType)
		if err != nil {
			return err
		}
		return st.Connect()
	})
	return nil
}

func (h *Hardware) StageHome(_ *http.Request, args *protocol.StageHomeArgs, reply *bool) error {
	*reply = h.guard(protocol.MethodStageHome, func(log logger.Logger) error {
		st, err := h.reg.Stage(args.StageType)
		if err != nil {
			return err
		}
		return st.Home(timeoutOf(args.TimeoutMs))
	})
	return nil
}

// StageGetPosition replies null when the stage is not connected or the query fails.
func (h *Hardware) StageGetPosition(_ *http.Request, args *protocol.StageArgs, reply **float64) error {
	var pos float64
	ok := h.guard(protocol.MethodStageGetPosition, func(log logger.Logger) error {
		st, err := h.reg.Stage(args.StageType)
		if err != nil {
			return err
		}
		pos, err = st.Position()
		return err
	})
	if ok {
		*reply = &pos
	}
	return nil
}

func (h *Hardware) StageMoveTo(_ *http.Request, args *protocol.StageMoveArgs, reply *bool) error {
	*reply = h.guard(protocol.MethodStageMoveTo, func(log logger.Logger) error {
		if args.Position == nil {
			return invalid("StageMoveTo", "position is required")
		}
		st, err := h.reg.Stage(args.StageType)
		if err != nil {
			return err
		}
		return st.MoveTo(*args.Position, timeoutOf(args.TimeoutMs))
	})
	return nil
}

// StageDisconnect reports true when the stage ends up released, including
// when it was never connected.
func (h *Hardware) StageDisconnect(_ *http.Request, args *protocol.StageArgs, reply *bool) error {
	*reply = h.guard(protocol.MethodStageDisconnect, func(log logger.Logger) error {
		st, err := h.reg.Stage(args.StageType)
		if err != nil {
			return err
		}
		return st.Disconnect()
	})
	return nil
}

// StageIsConnected never creates a handle.
func (h *Hardware) StageIsConnected(_ *http.Request, args *protocol.StageArgs, reply *bool) error {
	var connected bool
	h.guard(protocol.MethodStageIsConnected, func(log logger.Logger) error {
		if !args.StageType.Valid() {
			return invalid("StageIsConnected", "unknown stage type %q", args.StageType)
		}
		if st, ok := h.reg.Lookup(args.StageType); ok {
			connected = st.IsConnected()
		}
		return nil
	})
	*reply = connected
	return nil
}

// AHKCapturePosition replies null when the capture did not produce a position.
func (h *Hardware) AHKCapturePosition(_ *http.Request, _ *protocol.NoArgs, reply **protocol.Point) error {
	var p protocol.Point
	ok := h.guard(protocol.MethodAHKCapturePos, func(log logger.Logger) (err error) {
		p, err = h.reg.Automation.CapturePosition()
		return err
	})
	if ok {
		*reply = &p
	}
	return nil
}

func (h *Hardware) AHKClickAt(_ *http.Request, args *protocol.ClickArgs, reply *bool) error {
	*reply = h.guard(protocol.MethodAHKClickAt, func(log logger.Logger) error {
		if args.X == nil || args.Y == nil {
			return invalid("AHKClickAt", "x and y are required")
		}
		return h.reg.Automation.ClickAt(*args.X, *args.Y)
	})
	return nil
}

func (h *Hardware) AHKGetConfig(_ *http.Request, _ *protocol.NoArgs, reply *map[string]string) error {
	cfg := map[string]string{}
	h.guard(protocol.MethodAHKGetConfig, func(log logger.Logger) error {
		cfg = h.reg.Automation.ConfigMap()
		return nil
	})
	*reply = cfg
	return nil
}

func (h *Hardware) DisplayInfo(_ *http.Request, _ *protocol.NoArgs, reply *protocol.DisplayInfo) error {
	var info protocol.DisplayInfo
	h.guard(protocol.MethodDisplayInfo, func(log logger.Logger) error {
		info = h.reg.Display.Info()
		return nil
	})
	*reply = info
	return nil
}

// Personal.AI order the ending
