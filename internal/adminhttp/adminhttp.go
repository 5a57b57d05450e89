// Package adminhttp exposes read-only introspection over the broker:
// liveness/readiness probes, a topic/subscriber-count snapshot, and the
// audit counters. It never touches the hub's topic map directly — doing
// so from an HTTP goroutine would violate the hub's single-writer
// discipline — so /api/topics round-trips an internal QUERY("*") through
// the ordinary ingress channel, the same path any client request takes.
package adminhttp

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/girish946/psubd/internal/audit"
	"github.com/girish946/psubd/internal/wire"
)

const queryTimeout = 2 * time.Second

// Server serves the admin HTTP surface.
type Server struct {
	ingress chan<- *wire.Msg
	audit   *audit.Store
	logger  *slog.Logger
	ready   func() bool
	srv     *http.Server
}

// New constructs an admin server bound to addr. ready reports whether the
// broker's dependencies (hub, audit store) have finished starting up.
func New(addr string, ingress chan<- *wire.Msg, store *audit.Store, logger *slog.Logger, ready func() bool) *Server {
	s := &Server{ingress: ingress, audit: store, logger: logger.With("component", "adminhttp"), ready: ready}
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/readyz", s.handleReadyz)
	mux.HandleFunc("/api/topics", s.handleTopics)
	mux.HandleFunc("/api/stats", s.handleStats)
	s.srv = &http.Server{Addr: addr, Handler: mux}
	return s
}

// ListenAndServe blocks until the server is shut down via Close.
func (s *Server) ListenAndServe() error {
	s.logger.Info("adminhttp: listening", "addr", s.srv.Addr)
	err := s.srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Close shuts the HTTP server down.
func (s *Server) Close() error {
	return s.srv.Close()
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if s.ready != nil && !s.ready() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"starting"}`))
		return
	}
	_, _ = w.Write([]byte(`{"status":"ready"}`))
}

// TopicSnapshot is one entry of the /api/topics response.
type TopicSnapshot struct {
	Topic       string `json:"topic"`
	Subscribers int    `json:"subscribers"`
}

func (s *Server) handleTopics(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	body, err := s.queryAll(ctx)
	if err != nil {
		s.logger.Error("adminhttp: topics query failed", "error", err)
		http.Error(w, "failed to query hub", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(struct {
		Topics []TopicSnapshot `json:"topics"`
	}{Topics: parseQueryAllBody(body)})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		http.Error(w, "audit store not initialized", http.StatusServiceUnavailable)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	counters, err := s.audit.Counters(ctx)
	if err != nil {
		s.logger.Error("adminhttp: stats query failed", "error", err)
		http.Error(w, "failed to read counters", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(counters)
}

// queryAll issues an internal QUERY("*") through the hub's ordinary
// ingress path and waits for the QUERY_RESP, exactly as a connected
// client would.
func (s *Server) queryAll(ctx context.Context) (string, error) {
	delivery := make(wire.Delivery, 1)
	req := wire.NewRequest(wire.QUERY, "*", []byte{0})
	req.ClientID = "adminhttp"
	req.Channel = delivery

	select {
	case s.ingress <- req:
	case <-ctx.Done():
		return "", ctx.Err()
	}

	select {
	case resp := <-delivery:
		return string(resp.Payload), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// parseQueryAllBody parses the hub's QUERY("*") response body,
// `{"*":["topic1: count1","topic2: count2"]}`, into structured entries.
// Malformed entries are skipped rather than failing the whole request.
func parseQueryAllBody(body string) []TopicSnapshot {
	var raw struct {
		All []string `json:"*"`
	}
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return nil
	}

	out := make([]TopicSnapshot, 0, len(raw.All))
	for _, entry := range raw.All {
		topic, countStr, ok := strings.Cut(entry, ": ")
		if !ok {
			continue
		}
		count, err := strconv.Atoi(countStr)
		if err != nil {
			continue
		}
		out = append(out, TopicSnapshot{Topic: topic, Subscribers: count})
	}
	return out
}
