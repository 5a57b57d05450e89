package wire

import (
	"io"
	"unicode/utf8"
)

// firstChunkSize is the size of the initial read issued by ReadMsg. It
// must be at least HeaderLen + 1 to make any progress; the original
// implementation used 512 and this codec keeps that figure so that the
// overwhelming majority of topic+payload combinations fit in one read.
const firstChunkSize = 512

// ReadMsg reads exactly one Msg from r. It issues a first read of up to
// firstChunkSize bytes, parses the header from the first 8, and — if the
// frame's declared length exceeds what the first chunk already holds —
// keeps reading until the remainder has arrived.
//
// A malformed UTF-8 topic is a soft failure: ReadMsg returns a Msg with
// an empty topic instead of propagating an error, per the protocol's
// no-route-on-bad-topic rule. All other failures (short buffer, bad
// markers, unsupported version, unknown type, zero-length violations,
// truncated frames, peer closed, short read mid-frame) are hard
// failures that should end the connection.
func ReadMsg(r io.Reader) (*Msg, error) {
	firstChunk := make([]byte, firstChunkSize)
	n, err := r.Read(firstChunk)
	if n == 0 {
		if err != nil && err != io.EOF {
			return nil, err
		}
		return nil, ErrPeerClosed
	}
	firstChunk = firstChunk[:n]

	header, err := DecodeHeader(firstChunk)
	if err != nil {
		return nil, err
	}

	topicEnd := HeaderLen + int(header.TopicLength)
	if n < topicEnd {
		return nil, ErrTruncated
	}
	topicBytes := firstChunk[HeaderLen:topicEnd]
	topic := ""
	if utf8.Valid(topicBytes) {
		topic = string(topicBytes)
	}

	needed := HeaderLen + int(header.TopicLength) + int(header.MessageLength)

	var payload []byte
	if n >= needed {
		payload = append([]byte(nil), firstChunk[topicEnd:needed]...)
	} else {
		payload = append([]byte(nil), firstChunk[topicEnd:n]...)
		remaining := needed - n
		for remaining > 0 {
			buf := make([]byte, remaining)
			rn, rerr := r.Read(buf)
			if rn == 0 {
				if rerr != nil && rerr != io.EOF {
					return nil, rerr
				}
				return nil, ErrShortRead
			}
			payload = append(payload, buf[:rn]...)
			remaining -= rn
		}
	}

	return &Msg{Header: header, Topic: topic, Payload: payload}, nil
}
