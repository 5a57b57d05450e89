package wire

// Delivery is the channel type the hub writes into and a dispatcher reads
// from to receive fan-out deliveries and QUERY responses. Capacity >= 1
// per connection.
type Delivery chan *Msg

// Msg is the runtime record for one packet: a Header, a topic, a payload,
// and two transient routing attachments that only matter inside the
// broker and are never serialized: the delivery channel the hub should
// reach this connection's dispatcher through, and the client id of the
// connection that produced (or should receive) this Msg.
type Msg struct {
	Header  Header
	Topic   string
	Payload []byte

	// ClientID identifies the connection this Msg came from (for
	// requests reaching the hub) or should be delivered to (unused on
	// outbound deliveries, which travel over Channel directly).
	ClientID string

	// Channel is the requesting connection's delivery channel, attached
	// by the dispatcher for SUBSCRIBE/UNSUBSCRIBE/QUERY before the Msg
	// is sent to the hub's ingress. PUBLISH never needs one.
	Channel Delivery
}

// NewRequest builds a request Msg of the given type with a topic and
// payload, using the default protocol version.
func NewRequest(t PacketType, topic string, payload []byte) *Msg {
	return &Msg{
		Header:  NewHeader(t, uint8(len(topic)), uint16(len(payload))),
		Topic:   topic,
		Payload: payload,
	}
}

// Clone returns a copy of m suitable for independent delivery to a
// subscriber; the copy does not share the payload backing array so one
// subscriber's downstream mutation (there should be none, but defense is
// cheap here because the hub fans this out to N independent readers)
// cannot affect another's.
func (m *Msg) Clone() *Msg {
	clone := *m
	if m.Payload != nil {
		clone.Payload = append([]byte(nil), m.Payload...)
	}
	clone.Channel = nil
	return &clone
}

// Bytes encodes the full wire representation of m: header || topic ||
// payload.
func (m *Msg) Bytes() []byte {
	header := m.Header.Bytes()
	out := make([]byte, 0, HeaderLen+len(m.Topic)+len(m.Payload))
	out = append(out, header[:]...)
	out = append(out, m.Topic...)
	out = append(out, m.Payload...)
	return out
}

// ResponseTo builds the ack/response Msg for a request Msg m, with the
// given response payload. SUBSCRIBE_ACK/UNSUBSCRIBE_ACK conventionally
// carry an empty payload; PUBLISH_ACK echoes the request payload;
// QUERY_RESP carries the computed query body.
func ResponseTo(m *Msg, payload []byte) (*Msg, error) {
	respHeader, err := m.Header.ResponseHeader()
	if err != nil {
		return nil, err
	}
	respHeader.MessageLength = uint16(len(payload))
	return &Msg{
		Header:  respHeader,
		Topic:   m.Topic,
		Payload: payload,
	}, nil
}
