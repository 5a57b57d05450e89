package hub

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/girish946/psubd/internal/wire"
)

func testHub() *Hub {
	return New(slog.New(slog.NewTextHandler(io.Discard, nil)), 16)
}

func subscribeRequest(topic, clientID string) (*wire.Msg, wire.Delivery) {
	delivery := make(wire.Delivery, 4)
	m := wire.NewRequest(wire.SUBSCRIBE, topic, nil)
	m.ClientID = clientID
	m.Channel = delivery
	return m, delivery
}

func TestIdempotentSubscribe(t *testing.T) {
	h := testHub()
	req, _ := subscribeRequest("abc", "client-1")
	h.dispatch(req)
	h.dispatch(req)

	assert.Equal(t, 1, h.Snapshot()["abc"])
}

func TestUnsubscribeOfNeverSubscribedIsNoOp(t *testing.T) {
	h := testHub()
	unsub := wire.NewRequest(wire.UNSUBSCRIBE, "abc", nil)
	unsub.ClientID = "ghost"
	assert.NotPanics(t, func() { h.dispatch(unsub) })
	assert.Equal(t, 0, len(h.Snapshot()))
}

func TestUnsubscribeCancelsDelivery(t *testing.T) {
	h := testHub()
	sub, delivery := subscribeRequest("abc", "client-1")
	h.dispatch(sub)

	unsub := wire.NewRequest(wire.UNSUBSCRIBE, "abc", nil)
	unsub.ClientID = "client-1"
	h.dispatch(unsub)

	pub := wire.NewRequest(wire.PUBLISH, "abc", []byte("hi"))
	h.dispatch(pub)

	select {
	case <-delivery:
		t.Fatal("unsubscribed client should not receive further publishes")
	default:
	}
}

func TestPublishFansOutToAllSubscribers(t *testing.T) {
	h := testHub()
	sub1, d1 := subscribeRequest("abc", "client-1")
	sub2, d2 := subscribeRequest("abc", "client-2")
	h.dispatch(sub1)
	h.dispatch(sub2)

	pub := wire.NewRequest(wire.PUBLISH, "abc", []byte("test message"))
	h.dispatch(pub)

	for _, d := range []wire.Delivery{d1, d2} {
		select {
		case m := <-d:
			assert.Equal(t, "abc", m.Topic)
			assert.Equal(t, []byte("test message"), m.Payload)
		default:
			t.Fatal("expected a delivery")
		}
	}
}

func TestPublishWithoutSubscribersIsNoOp(t *testing.T) {
	h := testHub()
	pub := wire.NewRequest(wire.PUBLISH, "nobody", []byte("hi"))
	assert.NotPanics(t, func() { h.dispatch(pub) })
}

func TestDeadSubscriberPruning(t *testing.T) {
	h := testHub()
	// capacity-1 delivery channel that we fill ourselves, standing in for
	// a dispatcher whose socket/goroutine is gone and is no longer
	// draining its delivery channel.
	delivery := make(wire.Delivery, 1)
	sub := wire.NewRequest(wire.SUBSCRIBE, "abc", nil)
	sub.ClientID = "client-1"
	sub.Channel = delivery
	h.dispatch(sub)

	delivery <- wire.NewRequest(wire.PUBLISH, "abc", []byte("first"))
	require.Equal(t, 1, h.Snapshot()["abc"])

	// the channel is now full; this publish's send attempt fails, so the
	// hub prunes the subscription within this single dispatch call.
	pub := wire.NewRequest(wire.PUBLISH, "abc", []byte("second"))
	h.dispatch(pub)
	assert.Equal(t, 0, h.Snapshot()["abc"])

	// a follow-up query confirms the decremented count.
	queryDelivery := make(wire.Delivery, 1)
	query := wire.NewRequest(wire.QUERY, "abc", []byte{0})
	query.Channel = queryDelivery
	h.dispatch(query)
	resp := <-queryDelivery
	assert.Equal(t, `{"abc":["0"]}`, string(resp.Payload))
}

func TestUnsubscribeLastSubscriberRemovesTopicEntry(t *testing.T) {
	h := testHub()
	sub, _ := subscribeRequest("abc", "client-1")
	h.dispatch(sub)
	require.Len(t, h.topicOrder, 1)

	unsub := wire.NewRequest(wire.UNSUBSCRIBE, "abc", nil)
	unsub.ClientID = "client-1"
	h.dispatch(unsub)

	_, exists := h.topics["abc"]
	assert.False(t, exists, "empty topic entry must not leak in h.topics")
	assert.Empty(t, h.topicOrder, "empty topic must be removed from topicOrder")
}

func TestDeadSubscriberPruningRemovesTopicEntryWhenEmptied(t *testing.T) {
	h := testHub()
	delivery := make(wire.Delivery, 1)
	sub := wire.NewRequest(wire.SUBSCRIBE, "abc", nil)
	sub.ClientID = "client-1"
	sub.Channel = delivery
	h.dispatch(sub)

	delivery <- wire.NewRequest(wire.PUBLISH, "abc", []byte("first"))
	pub := wire.NewRequest(wire.PUBLISH, "abc", []byte("second"))
	h.dispatch(pub)

	_, exists := h.topics["abc"]
	assert.False(t, exists, "dead-subscriber pruning must remove the now-empty topic entry")
	assert.Empty(t, h.topicOrder)
}

func TestQuerySpecificTopic(t *testing.T) {
	h := testHub()
	for i, id := range []string{"c1", "c2", "c3"} {
		req, _ := subscribeRequest("abc", id)
		h.dispatch(req)
		_ = i
	}

	delivery := make(wire.Delivery, 1)
	query := wire.NewRequest(wire.QUERY, "abc", []byte{0})
	query.Channel = delivery
	h.dispatch(query)

	resp := <-delivery
	assert.Equal(t, wire.QUERYRESP, resp.Header.Type)
	assert.Equal(t, `{"abc":["3"]}`, string(resp.Payload))
}

func TestQueryAbsentTopicReturnsZeroCount(t *testing.T) {
	h := testHub()
	delivery := make(wire.Delivery, 1)
	query := wire.NewRequest(wire.QUERY, "nobody-home", []byte{0})
	query.Channel = delivery
	h.dispatch(query)

	resp := <-delivery
	assert.Equal(t, `{"nobody-home":["0"]}`, string(resp.Payload))
}

func TestQueryAllEnumeratesTopics(t *testing.T) {
	h := testHub()
	for _, id := range []string{"c1", "c2"} {
		req, _ := subscribeRequest("abc", id)
		h.dispatch(req)
	}
	req, _ := subscribeRequest("xyz", "c3")
	h.dispatch(req)

	delivery := make(wire.Delivery, 1)
	query := wire.NewRequest(wire.QUERY, "*", []byte{0})
	query.Channel = delivery
	h.dispatch(query)

	resp := <-delivery
	assert.Equal(t, `{"*":["abc: 2","xyz: 1"]}`, string(resp.Payload))
}

func TestEmptyTopicIsDiscarded(t *testing.T) {
	h := testHub()
	m := &wire.Msg{Header: wire.NewHeader(wire.PUBLISH, 0, 2), Topic: "", Payload: []byte("hi")}
	assert.NotPanics(t, func() { h.dispatch(m) })
}

func TestOrderingWithinSinglePublisher(t *testing.T) {
	h := testHub()
	_, d1 := subscribeSetup(h, "abc", "client-1")

	h.dispatch(wire.NewRequest(wire.PUBLISH, "abc", []byte("one")))
	h.dispatch(wire.NewRequest(wire.PUBLISH, "abc", []byte("two")))

	first := <-d1
	second := <-d1
	assert.Equal(t, []byte("one"), first.Payload)
	assert.Equal(t, []byte("two"), second.Payload)
}

func subscribeSetup(h *Hub, topic, clientID string) (*wire.Msg, wire.Delivery) {
	req, delivery := subscribeRequest(topic, clientID)
	h.dispatch(req)
	return req, delivery
}
