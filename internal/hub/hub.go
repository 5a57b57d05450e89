// Package hub implements psubd's topic router: the single-writer
// goroutine that owns the topic -> subscriber map and performs all
// PUBLISH fan-out, SUBSCRIBE/UNSUBSCRIBE bookkeeping, and QUERY
// resolution. No lock guards the map because exactly one goroutine
// (Hub.Run) ever touches it; every other goroutine in the broker only
// ever sends onto the ingress channel.
package hub

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/girish946/psubd/internal/wire"
)

// DefaultIngressCapacity is the default size of the ingress channel, per
// SPEC_FULL.md's PSUBD_INGRESS_CAPACITY knob.
const DefaultIngressCapacity = 1024

// Hub is the topic router. Construct with New, then run it on its own
// goroutine via Run.
type Hub struct {
	logger  *slog.Logger
	ingress chan *wire.Msg

	// topics maps topic -> (client id -> delivery channel). topicOrder
	// tracks insertion order for deterministic QUERY("*") iteration
	// (open question 3 in SPEC_FULL.md).
	topics     map[string]map[string]wire.Delivery
	topicOrder []string
}

// New constructs a Hub with the given ingress capacity. A non-positive
// capacity falls back to DefaultIngressCapacity.
func New(logger *slog.Logger, ingressCapacity int) *Hub {
	if ingressCapacity <= 0 {
		ingressCapacity = DefaultIngressCapacity
	}
	return &Hub{
		logger:     logger,
		ingress:    make(chan *wire.Msg, ingressCapacity),
		topics:     make(map[string]map[string]wire.Delivery),
		topicOrder: make([]string, 0),
	}
}

// Ingress returns the channel connections send requests on. A raw send on
// it blocks while the ingress is full; TrySend fails fast instead.
func (h *Hub) Ingress() chan<- *wire.Msg {
	return h.ingress
}

// TrySend attempts to enqueue m without blocking. It reports whether the
// send succeeded; a false return means the ingress is at capacity and the
// request was dropped, per the fail-fast overflow policy.
func (h *Hub) TrySend(m *wire.Msg) bool {
	select {
	case h.ingress <- m:
		return true
	default:
		return false
	}
}

// Run is the dispatch loop: the single goroutine that owns the topic
// map. It blocks until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info("hub: dispatch loop starting")
	for {
		select {
		case <-ctx.Done():
			h.logger.Info("hub: dispatch loop stopping")
			return
		case m := <-h.ingress:
			h.dispatch(m)
		}
	}
}

func (h *Hub) dispatch(m *wire.Msg) {
	if m.Topic == "" {
		// soft-failure no-route Msg from the connection reader; discard.
		return
	}

	switch m.Header.Type {
	case wire.PUBLISH:
		h.handlePublish(m)
	case wire.SUBSCRIBE:
		h.handleSubscribe(m)
	case wire.UNSUBSCRIBE:
		h.handleUnsubscribe(m)
	case wire.QUERY:
		h.handleQuery(m)
	default:
		h.logger.Warn("hub: unexpected packet type reached ingress", "type", m.Header.Type)
	}
}

func (h *Hub) handlePublish(m *wire.Msg) {
	subscribers, ok := h.topics[m.Topic]
	if !ok {
		return
	}

	var dead []string
	for clientID, delivery := range subscribers {
		select {
		case delivery <- m.Clone():
		default:
			dead = append(dead, clientID)
		}
	}
	for _, clientID := range dead {
		delete(subscribers, clientID)
		h.logger.Debug("hub: pruned dead subscriber", "topic", m.Topic, "client_id", clientID)
	}
	h.removeTopicIfEmpty(m.Topic, subscribers)
}

func (h *Hub) handleSubscribe(m *wire.Msg) {
	if m.Channel == nil || m.ClientID == "" {
		h.logger.Warn("hub: subscribe missing channel or client id, dropping")
		return
	}
	subscribers, ok := h.topics[m.Topic]
	if !ok {
		subscribers = make(map[string]wire.Delivery)
		h.topics[m.Topic] = subscribers
		h.topicOrder = append(h.topicOrder, m.Topic)
	}
	if _, exists := subscribers[m.ClientID]; exists {
		// idempotent subscribe: preserve the existing entry.
		return
	}
	subscribers[m.ClientID] = m.Channel
}

func (h *Hub) handleUnsubscribe(m *wire.Msg) {
	subscribers, ok := h.topics[m.Topic]
	if !ok {
		return
	}
	delete(subscribers, m.ClientID)
	h.removeTopicIfEmpty(m.Topic, subscribers)
}

// removeTopicIfEmpty deletes topic's entry from h.topics and h.topicOrder
// once its subscriber map is empty, per spec.md's requirement that empty
// topic entries not leak unboundedly across the process lifetime.
func (h *Hub) removeTopicIfEmpty(topic string, subscribers map[string]wire.Delivery) {
	if len(subscribers) > 0 {
		return
	}
	delete(h.topics, topic)
	for i, t := range h.topicOrder {
		if t == topic {
			h.topicOrder = append(h.topicOrder[:i], h.topicOrder[i+1:]...)
			break
		}
	}
}

func (h *Hub) handleQuery(m *wire.Msg) {
	if m.Channel == nil {
		h.logger.Warn("hub: query missing delivery channel, dropping")
		return
	}

	var body string
	if m.Topic == "*" {
		body = h.queryAllBody()
	} else {
		body = h.querySingleBody(m.Topic)
	}

	resp, err := wire.ResponseTo(m, []byte(body))
	if err != nil {
		h.logger.Error("hub: could not build query response", "error", err)
		return
	}

	select {
	case m.Channel <- resp:
	default:
		h.logger.Warn("hub: query response dropped, requester delivery channel full")
	}
}

func (h *Hub) querySingleBody(topic string) string {
	count := len(h.topics[topic])
	return fmt.Sprintf(`{"%s":["%d"]}`, topic, count)
}

func (h *Hub) queryAllBody() string {
	entries := make([]string, 0, len(h.topicOrder))
	for _, topic := range h.topicOrder {
		subscribers, ok := h.topics[topic]
		if !ok {
			continue
		}
		entries = append(entries, fmt.Sprintf("%s: %d", topic, len(subscribers)))
	}
	quoted := make([]string, len(entries))
	for i, e := range entries {
		quoted[i] = fmt.Sprintf("%q", e)
	}
	return fmt.Sprintf(`{"*":[%s]}`, strings.Join(quoted, ","))
}

// Snapshot returns the current topic -> subscriber-count map, used by the
// admin HTTP endpoint's /api/topics route. It must only be called from
// the Run goroutine's perspective via a request/response round trip — in
// practice this repository's admin endpoint issues a QUERY("*") through
// the ordinary client path instead of calling this method from another
// goroutine, which would violate the single-writer discipline. Snapshot
// exists for tests that construct a Hub and drive it synchronously
// without starting Run.
func (h *Hub) Snapshot() map[string]int {
	out := make(map[string]int, len(h.topics))
	for _, topic := range h.topicOrder {
		if subscribers, ok := h.topics[topic]; ok {
			out[topic] = len(subscribers)
		}
	}
	return out
}
