// Package client implements the broker's Client API: a single type
// parametric over transport (TCP, TLS TCP, or a local Unix-domain
// socket) exposing connect/publish/subscribe/query/read_message.
package client

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net"

	"github.com/girish946/psubd/internal/tlsidentity"
	"github.com/girish946/psubd/internal/wire"
)

// ErrNotConnected is returned by every operation attempted before Connect.
var ErrNotConnected = errors.New("client: not connected")

// Transport selects how Connect dials the broker.
type Transport int

const (
	// TransportTCP dials a plain TCP listener.
	TransportTCP Transport = iota
	// TransportTLS dials a TLS-wrapped TCP listener.
	TransportTLS
	// TransportUnix dials a local Unix-domain socket.
	TransportUnix
)

// Options configures how Connect reaches the broker.
type Options struct {
	Transport Transport

	// Addr is a "host:port" for TransportTCP/TransportTLS, or a
	// filesystem path for TransportUnix.
	Addr string

	// TLSCertPath is the PEM CA certificate used to verify the
	// broker's identity. Required for TransportTLS.
	TLSCertPath string

	// TLSServerName overrides hostname verification; defaults to the
	// host portion of Addr when empty.
	TLSServerName string
}

// Client is a single connection to the broker, good for publish,
// subscribe, query and blocking reads of asynchronous deliveries.
type Client struct {
	opts Options
	conn net.Conn
}

// New constructs a Client that has not yet dialed the broker.
func New(opts Options) *Client {
	return &Client{opts: opts}
}

// Connect establishes the underlying stream per the configured transport.
func (c *Client) Connect() error {
	switch c.opts.Transport {
	case TransportTCP:
		conn, err := net.Dial("tcp", c.opts.Addr)
		if err != nil {
			return fmt.Errorf("client: dial tcp: %w", err)
		}
		c.conn = conn
	case TransportTLS:
		serverName := c.opts.TLSServerName
		if serverName == "" {
			host, _, err := net.SplitHostPort(c.opts.Addr)
			if err != nil {
				return fmt.Errorf("client: determine tls server name: %w", err)
			}
			serverName = host
		}
		cfg, err := tlsidentity.ClientTLSConfig(c.opts.TLSCertPath, serverName)
		if err != nil {
			return fmt.Errorf("client: tls config: %w", err)
		}
		conn, err := tls.Dial("tcp", c.opts.Addr, cfg)
		if err != nil {
			return fmt.Errorf("client: dial tls: %w", err)
		}
		c.conn = conn
	case TransportUnix:
		conn, err := net.Dial("unix", c.opts.Addr)
		if err != nil {
			return fmt.Errorf("client: dial unix: %w", err)
		}
		c.conn = conn
	default:
		return fmt.Errorf("client: unknown transport %d", c.opts.Transport)
	}
	return nil
}

// Close tears down the underlying connection.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// Publish encodes and sends a PUBLISH, then reads the synchronous
// PUBLISH_ACK. It reports success iff the reply parses and is a
// PUBLISH_ACK.
func (c *Client) Publish(topic string, payload []byte) error {
	if c.conn == nil {
		return ErrNotConnected
	}
	msg := wire.NewRequest(wire.PUBLISH, topic, payload)
	if _, err := c.conn.Write(msg.Bytes()); err != nil {
		return fmt.Errorf("client: publish write: %w", err)
	}
	ack, err := wire.ReadMsg(c.conn)
	if err != nil {
		return fmt.Errorf("client: publish ack: %w", err)
	}
	if ack.Header.Type != wire.PUBLISHACK {
		return fmt.Errorf("client: unexpected ack type %v", ack.Header.Type)
	}
	return nil
}

// Subscribe encodes and sends a SUBSCRIBE, then reads the synchronous
// SUBSCRIBE_ACK. Incoming publishes for topic must subsequently be
// pulled by the caller via ReadMessage in a loop.
func (c *Client) Subscribe(topic string) error {
	if c.conn == nil {
		return ErrNotConnected
	}
	msg := wire.NewRequest(wire.SUBSCRIBE, topic, nil)
	if _, err := c.conn.Write(msg.Bytes()); err != nil {
		return fmt.Errorf("client: subscribe write: %w", err)
	}
	ack, err := wire.ReadMsg(c.conn)
	if err != nil {
		return fmt.Errorf("client: subscribe ack: %w", err)
	}
	if ack.Header.Type != wire.SUBSCRIBEACK {
		return fmt.Errorf("client: unexpected ack type %v", ack.Header.Type)
	}
	return nil
}

// Unsubscribe encodes and sends an UNSUBSCRIBE, then reads the
// synchronous UNSUBSCRIBE_ACK.
func (c *Client) Unsubscribe(topic string) error {
	if c.conn == nil {
		return ErrNotConnected
	}
	msg := wire.NewRequest(wire.UNSUBSCRIBE, topic, nil)
	if _, err := c.conn.Write(msg.Bytes()); err != nil {
		return fmt.Errorf("client: unsubscribe write: %w", err)
	}
	ack, err := wire.ReadMsg(c.conn)
	if err != nil {
		return fmt.Errorf("client: unsubscribe ack: %w", err)
	}
	if ack.Header.Type != wire.UNSUBSCRIBEACK {
		return fmt.Errorf("client: unexpected ack type %v", ack.Header.Type)
	}
	return nil
}

// queryFiller is the one-byte payload QUERY requires (message_length >
// 0) when the caller has nothing meaningful to send.
var queryFiller = []byte{0}

// Query encodes and sends a QUERY for topic (use "*" for all topics),
// then reads the QUERY_RESP and returns its UTF-8 decoded payload.
func (c *Client) Query(topic string) (string, error) {
	if c.conn == nil {
		return "", ErrNotConnected
	}
	msg := wire.NewRequest(wire.QUERY, topic, queryFiller)
	if _, err := c.conn.Write(msg.Bytes()); err != nil {
		return "", fmt.Errorf("client: query write: %w", err)
	}
	resp, err := c.ReadMessage()
	if err != nil {
		return "", fmt.Errorf("client: query response: %w", err)
	}
	if resp.Header.Type != wire.QUERYRESP {
		return "", fmt.Errorf("client: unexpected response type %v", resp.Header.Type)
	}
	return string(resp.Payload), nil
}

// ReadMessage reads the next Msg from the connection, blocking until one
// arrives. Used both to drain QUERY_RESPs and to pull asynchronous
// publishes delivered after Subscribe.
func (c *Client) ReadMessage() (*wire.Msg, error) {
	if c.conn == nil {
		return nil, ErrNotConnected
	}
	return wire.ReadMsg(c.conn)
}
