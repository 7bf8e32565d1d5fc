// Package protocol implements the binary frame codec for the game traffic
// relayed between a local client and a remote relay node. Frames are
// length-delimited with a 4-byte header: a signature byte, a type id byte,
// and a 2-byte little-endian total length (header included). Payloads are
// opaque and decoded into typed messages only when a handler needs them.
package protocol

// Frame type ids referenced by the relay core.
const (
	TypeChatFromHost      byte = 0x0F // host -> client chat
	TypeIncomingAction    byte = 0x0C // node -> client game action
	TypeLeaveAck          byte = 0x1B // leave handshake acknowledgement
	TypeOutgoingAction    byte = 0x26 // client -> node game action
	TypeOutgoingKeepAlive byte = 0x27 // client keepalive / lockstep ack
	TypeChatToHost        byte = 0x28 // client -> host chat
)

// Control frame ids used on the node link only; they never appear on the
// local client transport.
const (
	TypeSlotStatusUpdate byte = 0x60 // client -> node slot status report
	TypeGameStatus       byte = 0x61 // node -> client match status update
)

// Chat flag bytes used inside chat payloads.
const (
	ChatFlagMessage byte = 0x10 // broadcast text
	ChatFlagScoped  byte = 0x20 // scoped text, carries a 4-byte scope value
)

const (
	// FrameSignature is the first byte of every frame header.
	FrameSignature byte = 0xF7

	// HeaderSize is the size of the frame header in bytes.
	HeaderSize = 4

	// MaxFrameSize is the maximum total frame size (the length field is 16-bit).
	MaxFrameSize = 65535
)

// Frame is a single protocol frame: a numeric type tag plus an opaque
// payload. Frames are created by the codec on receipt and either forwarded
// verbatim or decoded on demand by whichever handler needs the fields.
type Frame struct {
	Type    byte
	Payload []byte
}

// Len returns the total encoded size of the frame, header included.
func (f Frame) Len() int {
	return HeaderSize + len(f.Payload)
}
