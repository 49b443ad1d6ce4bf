package resource

import (
	stderrors "errors"
	"fmt"
	"net"
	"sort"
	"sync"

	"github.com/turtacn/Optibench/pkg/errors"
	"github.com/turtacn/Optibench/pkg/logger"
	"github.com/turtacn/Optibench/pkg/protocol"
)

// SocketManager owns the TCP listeners of the host. Listeners are only ever
// bound to loopback addresses: the RPC channel is neither authenticated nor
// encrypted.
type SocketManager struct {
	mu sync.Mutex

	// Active listeners keyed by requested and by bound address
	listeners map[string]net.Listener
}

func NewSocketManager() *SocketManager {
	return &SocketManager{
		listeners: make(map[string]net.Listener),
	}
}

// EnsureListener returns the listener for addr, binding it on first use.
// Asking again with either the requested or the bound address ("127.0.0.1:0"
// then "127.0.0.1:41234") returns the same listener.
func (sm *SocketManager) EnsureListener(addr string) (net.Listener, error) {
	if err := protocol.CheckLoopback(addr); err != nil {
		return nil, errors.New(errors.ErrCodeConfig, "EnsureListener", "refusing to listen off loopback", err)
	}

	sm.mu.Lock()
	defer sm.mu.Unlock()

	if l, ok := sm.listeners[addr]; ok {
		return l, nil
	}

	logger.Log.Info("Binding new listener", "addr", addr)
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.New(errors.ErrCodeConnection, "EnsureListener", fmt.Sprintf("cannot listen on %s", addr), err)
	}
	sm.listeners[addr] = l
	sm.listeners[l.Addr().String()] = l
	return l, nil
}

// Addrs returns the bound addresses, sorted.
func (sm *SocketManager) Addrs() []string {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	seen := make(map[string]bool)
	for _, l := range sm.listeners {
		seen[l.Addr().String()] = true
	}
	addrs := make([]string, 0, len(seen))
	for a := range seen {
		addrs = append(addrs, a)
	}
	sort.Strings(addrs)
	return addrs
}

// Close closes every listener. Listeners already closed by an http.Server
// are not reported.
func (sm *SocketManager) Close() error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	var errs []error
	closed := make(map[net.Listener]bool)
	for _, l := range sm.listeners {
		if closed[l] {
			continue
		}
		closed[l] = true
		if err := l.Close(); err != nil && !stderrors.Is(err, net.ErrClosed) {
			errs = append(errs, err)
		}
	}
	sm.listeners = make(map[string]net.Listener)
	return stderrors.Join(errs...)
}

// Personal.AI order the ending
