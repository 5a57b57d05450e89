package client

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/girish946/psubd/internal/wire"
)

// fakeServer answers every request on conn with its synchronous ack,
// standing in for the broker's dispatcher so client_test can exercise
// Client without a real hub.
func fakeServer(t *testing.T, conn net.Conn, respond func(*wire.Msg) *wire.Msg) {
	t.Helper()
	go func() {
		for {
			m, err := wire.ReadMsg(conn)
			if err != nil {
				return
			}
			resp := respond(m)
			if resp == nil {
				continue
			}
			if _, err := conn.Write(resp.Bytes()); err != nil {
				return
			}
		}
	}()
}

func ackFor(m *wire.Msg, payload []byte) *wire.Msg {
	resp, err := wire.ResponseTo(m, payload)
	if err != nil {
		panic(err)
	}
	return resp
}

func newConnectedClient(t *testing.T) (*Client, net.Conn) {
	t.Helper()
	clientConn, serverConn := net.Pipe()
	c := &Client{conn: clientConn}
	return c, serverConn
}

func TestOperationsFailBeforeConnect(t *testing.T) {
	c := New(Options{})
	require.ErrorIs(t, c.Publish("abc", nil), ErrNotConnected)
	require.ErrorIs(t, c.Subscribe("abc"), ErrNotConnected)
	require.ErrorIs(t, c.Unsubscribe("abc"), ErrNotConnected)
	_, err := c.Query("abc")
	require.ErrorIs(t, err, ErrNotConnected)
	_, err = c.ReadMessage()
	require.ErrorIs(t, err, ErrNotConnected)
}

func TestPublishSucceedsOnAck(t *testing.T) {
	c, server := newConnectedClient(t)
	defer server.Close()

	fakeServer(t, server, func(m *wire.Msg) *wire.Msg {
		return ackFor(m, m.Payload)
	})

	err := c.Publish("abc", []byte("hello"))
	require.NoError(t, err)
}

func TestSubscribeSucceedsOnAck(t *testing.T) {
	c, server := newConnectedClient(t)
	defer server.Close()

	fakeServer(t, server, func(m *wire.Msg) *wire.Msg {
		return ackFor(m, nil)
	})

	err := c.Subscribe("abc")
	require.NoError(t, err)
}

func TestQueryReturnsDecodedBody(t *testing.T) {
	c, server := newConnectedClient(t)
	defer server.Close()

	fakeServer(t, server, func(m *wire.Msg) *wire.Msg {
		return ackFor(m, []byte(`{"abc":["3"]}`))
	})

	body, err := c.Query("abc")
	require.NoError(t, err)
	require.Equal(t, `{"abc":["3"]}`, body)
}

func TestReadMessageDeliversAsyncPublish(t *testing.T) {
	c, server := newConnectedClient(t)
	defer server.Close()

	go func() {
		pub := wire.NewRequest(wire.PUBLISH, "abc", []byte("hi"))
		_, _ = server.Write(pub.Bytes())
	}()

	done := make(chan struct{})
	go func() {
		m, err := c.ReadMessage()
		require.NoError(t, err)
		require.Equal(t, "abc", m.Topic)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("expected ReadMessage to return the published message")
	}
}
