// Package conn implements the per-connection dispatcher: the
// cooperative loop that owns one socket, races "request arrived" against
// "delivery arrived", forwards requests to the hub, writes synchronous
// acks, and relays hub deliveries back down the socket.
package conn

import (
	"errors"
	"log/slog"
	"net"

	"github.com/google/uuid"

	"github.com/girish946/psubd/internal/wire"
)

// deliveryCapacity is the buffer size of a connection's personal
// delivery channel: capacity >= 1 per SPEC_FULL.md/spec.md §5.
const deliveryCapacity = 8

// Dispatcher owns one accepted connection end to end.
type Dispatcher struct {
	conn     net.Conn
	clientID string
	delivery wire.Delivery
	ingress  chan<- *wire.Msg
	logger   *slog.Logger
	record   func(event string)
}

// New constructs a Dispatcher for an accepted connection. ingress is the
// hub's ingress channel, shared across every connection.
func New(c net.Conn, ingress chan<- *wire.Msg, logger *slog.Logger) *Dispatcher {
	id := uuid.NewString()
	return &Dispatcher{
		conn:     c,
		clientID: id,
		delivery: make(wire.Delivery, deliveryCapacity),
		ingress:  ingress,
		logger:   logger.With("client_id", id, "remote_addr", c.RemoteAddr()),
	}
}

// ClientID returns the stable per-connection identifier assigned at
// construction time.
func (d *Dispatcher) ClientID() string {
	return d.clientID
}

// SetRecorder attaches an audit event recorder, called with "connect" and
// "disconnect" once each, and with the request's packet type name for
// every request forwarded to the hub. A nil recorder (the default) turns
// recording into a no-op.
func (d *Dispatcher) SetRecorder(fn func(event string)) {
	d.record = fn
}

func (d *Dispatcher) recordEvent(event string) {
	if d.record != nil {
		d.record(event)
	}
}

// Run drives the dispatcher until the connection ends. It starts one
// reader goroutine feeding decoded Msgs into a local channel, and selects
// between that channel and the delivery channel in the calling
// goroutine, so neither source can starve the other.
func (d *Dispatcher) Run() {
	defer d.conn.Close()
	d.logger.Info("dispatcher: connection accepted")
	d.recordEvent("connect")
	defer d.recordEvent("disconnect")

	requests := make(chan *wire.Msg)
	readErrs := make(chan error, 1)
	go d.readLoop(requests, readErrs)

	for {
		select {
		case m, ok := <-requests:
			if !ok {
				d.logger.Info("dispatcher: connection closed")
				return
			}
			d.handleRequest(m)
		case err := <-readErrs:
			if err != nil && !errors.Is(err, wire.ErrPeerClosed) {
				d.logger.Warn("dispatcher: read error, closing connection", "error", err)
			} else {
				d.logger.Info("dispatcher: peer closed connection")
			}
			return
		case m := <-d.delivery:
			if err := d.writeMsg(m); err != nil {
				d.logger.Warn("dispatcher: delivery write failed, closing connection", "error", err)
				return
			}
		}
	}
}

// readLoop reads Msgs one at a time from the socket and forwards them on
// requests; it signals the end of the connection on readErrs and returns.
func (d *Dispatcher) readLoop(requests chan<- *wire.Msg, readErrs chan<- error) {
	defer close(requests)
	for {
		m, err := wire.ReadMsg(d.conn)
		if err != nil {
			readErrs <- err
			return
		}
		requests <- m
	}
}

func (d *Dispatcher) handleRequest(m *wire.Msg) {
	m.ClientID = d.clientID
	if m.Header.Type != wire.PUBLISH {
		m.Channel = d.delivery
	}
	if m.Topic != "" {
		d.logger.Debug("dispatcher: forwarding request to hub", "type", m.Header.Type, "topic", m.Topic)
		select {
		case d.ingress <- m:
			d.recordEvent(requestEventName(m.Header.Type))
		default:
			d.logger.Warn("dispatcher: hub ingress full, dropping request", "type", m.Header.Type, "topic", m.Topic)
		}
	}

	if m.Header.Type == wire.QUERY {
		// QUERY gets no synchronous ack; the response arrives over the
		// delivery channel as QUERY_RESP.
		return
	}

	if err := d.writeAck(m); err != nil {
		d.logger.Warn("dispatcher: failed to write ack", "error", err)
	}
}

// writeAck writes the synchronous acknowledgement for a non-QUERY
// request, echoing the request payload for PUBLISH/SUBSCRIBE/UNSUBSCRIBE.
func (d *Dispatcher) writeAck(m *wire.Msg) error {
	resp, err := wire.ResponseTo(m, m.Payload)
	if err != nil {
		return err
	}
	return d.writeMsg(resp)
}

func (d *Dispatcher) writeMsg(m *wire.Msg) error {
	_, err := d.conn.Write(m.Bytes())
	return err
}

// requestEventName maps a packet type to the audit event name recorded for
// it. Unrecognized types (acks can never appear as a request) record as
// "unknown" rather than being silently dropped.
func requestEventName(t wire.PacketType) string {
	switch t {
	case wire.PUBLISH:
		return "publish"
	case wire.SUBSCRIBE:
		return "subscribe"
	case wire.UNSUBSCRIBE:
		return "unsubscribe"
	case wire.QUERY:
		return "query"
	default:
		return "unknown"
	}
}
