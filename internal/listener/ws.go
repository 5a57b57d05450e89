package listener

import (
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/girish946/psubd/internal/conn"
	"github.com/girish946/psubd/internal/wire"
)

// wsPath is the upgrade endpoint, matching original_source's pub_sub_ws
// binary (`/ws/`).
const wsPath = "/ws/"

var upgrader = websocket.Upgrader{
	ReadBufferSize:  wire.HeaderLen + 256,
	WriteBufferSize: wire.HeaderLen + 256,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// WSServer serves the WebSocket transport: a plain net/http server whose
// single route upgrades to a WebSocket and hands the connection to the
// same dispatcher every other transport uses.
type WSServer struct {
	addr    string
	ingress chan<- *wire.Msg
	logger  *slog.Logger
	srv     *http.Server
	record  func(event string)
}

// NewWSServer constructs a WebSocket front-end bound to addr.
func NewWSServer(addr string, ingress chan<- *wire.Msg, logger *slog.Logger) *WSServer {
	w := &WSServer{addr: addr, ingress: ingress, logger: logger.With("transport", "ws", "addr", addr)}
	mux := http.NewServeMux()
	mux.HandleFunc(wsPath, w.handleUpgrade)
	w.srv = &http.Server{Addr: addr, Handler: mux}
	return w
}

// SetRecorder attaches an audit event recorder passed through to every
// dispatcher handleUpgrade spawns from this point on.
func (w *WSServer) SetRecorder(fn func(event string)) {
	w.record = fn
}

// ListenAndServe blocks until the server is shut down via Close.
func (w *WSServer) ListenAndServe() error {
	w.logger.Info("listener: accepting websocket connections")
	err := w.srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Close shuts the HTTP server down.
func (w *WSServer) Close() error {
	return w.srv.Close()
}

func (w *WSServer) handleUpgrade(rw http.ResponseWriter, r *http.Request) {
	wsConn, err := upgrader.Upgrade(rw, r, nil)
	if err != nil {
		w.logger.Warn("listener: websocket upgrade failed", "error", err)
		return
	}

	d := conn.New(newWSAdapter(wsConn), w.ingress, w.logger)
	d.SetRecorder(w.record)
	d.Run()
}

// wsAdapter presents a *websocket.Conn as a net.Conn, buffering each
// binary frame so internal/wire's stream-oriented reader can work
// unmodified across both byte-stream and message-oriented transports.
type wsAdapter struct {
	conn    *websocket.Conn
	pending []byte
}

func newWSAdapter(c *websocket.Conn) *wsAdapter {
	return &wsAdapter{conn: c}
}

func (a *wsAdapter) Read(p []byte) (int, error) {
	for len(a.pending) == 0 {
		msgType, data, err := a.conn.ReadMessage()
		if err != nil {
			return 0, err
		}
		if msgType != websocket.BinaryMessage {
			continue
		}
		a.pending = data
	}
	n := copy(p, a.pending)
	a.pending = a.pending[n:]
	return n, nil
}

func (a *wsAdapter) Write(p []byte) (int, error) {
	if err := a.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (a *wsAdapter) Close() error                       { return a.conn.Close() }
func (a *wsAdapter) LocalAddr() net.Addr                { return a.conn.LocalAddr() }
func (a *wsAdapter) RemoteAddr() net.Addr               { return a.conn.RemoteAddr() }
func (a *wsAdapter) SetDeadline(t time.Time) error      { return a.conn.UnderlyingConn().SetDeadline(t) }
func (a *wsAdapter) SetReadDeadline(t time.Time) error  { return a.conn.SetReadDeadline(t) }
func (a *wsAdapter) SetWriteDeadline(t time.Time) error { return a.conn.SetWriteDeadline(t) }
