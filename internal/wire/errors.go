package wire

import "errors"

// Distinct error kinds for each way header/frame decoding can fail, per
// the broker's error-handling design: framing errors abort the
// connection, the caller is expected to use errors.Is against these.
var (
	ErrShortBuffer        = errors.New("buffer shorter than header length")
	ErrBadMarker          = errors.New("start or end marker mismatch")
	ErrUnsupportedVersion = errors.New("unsupported protocol version")
	ErrUnknownPacketType  = errors.New("unknown packet type")
	ErrZeroTopicLength    = errors.New("zero topic length for a request that requires a topic")
	ErrZeroMessageLength  = errors.New("zero message length for PUBLISH or QUERY")
	ErrInvalidResponseType = errors.New("invalid response type")
	ErrTruncated          = errors.New("declared frame length exceeds available bytes")

	// ErrPeerClosed signals a clean close (zero-byte read) at the start of
	// a frame; ErrShortRead signals a zero-byte read mid-frame, which the
	// broker treats as an aborted connection rather than a clean close.
	ErrPeerClosed = errors.New("peer closed connection")
	ErrShortRead  = errors.New("short read")
)
