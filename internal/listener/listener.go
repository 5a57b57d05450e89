// Package listener owns every way a client can reach the broker: plain
// TCP, TLS-wrapped TCP, a Unix-domain socket, and a WebSocket upgrade.
// Each accept loop is transport-specific; every accepted connection is
// handed to the same internal/conn.Dispatcher, which knows nothing about
// where the bytes came from.
package listener

import (
	"errors"
	"log/slog"
	"net"

	"github.com/girish946/psubd/internal/conn"
	"github.com/girish946/psubd/internal/wire"
)

// Acceptor runs an accept loop over a net.Listener, spawning one
// conn.Dispatcher per accepted connection. It is shared by the TCP,
// TLS and Unix transports, which differ only in how they construct the
// net.Listener.
type Acceptor struct {
	ln        net.Listener
	ingress   chan<- *wire.Msg
	logger    *slog.Logger
	transport string
	record    func(event string)
}

// NewAcceptor wraps an already-bound net.Listener.
func NewAcceptor(ln net.Listener, ingress chan<- *wire.Msg, logger *slog.Logger, transport string) *Acceptor {
	return &Acceptor{
		ln:        ln,
		ingress:   ingress,
		logger:    logger.With("transport", transport, "addr", ln.Addr().String()),
		transport: transport,
	}
}

// SetRecorder attaches an audit event recorder passed through to every
// dispatcher Serve spawns from this point on.
func (a *Acceptor) SetRecorder(fn func(event string)) {
	a.record = fn
}

// Addr returns the bound address.
func (a *Acceptor) Addr() net.Addr {
	return a.ln.Addr()
}

// Close stops the accept loop by closing the underlying listener.
func (a *Acceptor) Close() error {
	return a.ln.Close()
}

// Serve accepts connections until the listener is closed, spawning a
// dispatcher goroutine for each one. It returns nil when the listener is
// closed deliberately (net.ErrClosed) and the error otherwise.
func (a *Acceptor) Serve() error {
	a.logger.Info("listener: accepting connections")
	for {
		c, err := a.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				a.logger.Info("listener: closed")
				return nil
			}
			return err
		}
		d := conn.New(c, a.ingress, a.logger)
		d.SetRecorder(a.record)
		go d.Run()
	}
}
