package protocol

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// ChatToHost is a chat message sent from a client toward the host.
// Payload format: [recipient count:1][recipient slot ids...][from:1][flags:1]
// [scope:4 LE, scoped flag only][message, null-terminated].
type ChatToHost struct {
	Recipients []byte
	FromPlayer byte
	Flags      byte
	Scope      uint32
	Message    string
}

// Scoped reports whether the message is scoped (restricted to a subset of
// participants) rather than broadcast.
func (m *ChatToHost) Scoped() bool {
	return m.Flags == ChatFlagScoped
}

// DecodeChatToHost decodes a ChatToHost payload.
func DecodeChatToHost(payload []byte) (*ChatToHost, error) {
	r := bytes.NewReader(payload)

	count, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("failed to read chat recipient count: %w", err)
	}

	recipients := make([]byte, count)
	if _, err := io.ReadFull(r, recipients); err != nil {
		return nil, fmt.Errorf("failed to read chat recipients: %w", err)
	}

	msg := &ChatToHost{Recipients: recipients}

	if msg.FromPlayer, err = r.ReadByte(); err != nil {
		return nil, fmt.Errorf("failed to read chat sender: %w", err)
	}
	if msg.Flags, err = r.ReadByte(); err != nil {
		return nil, fmt.Errorf("failed to read chat flags: %w", err)
	}

	if msg.Flags == ChatFlagScoped {
		if err := binary.Read(r, binary.LittleEndian, &msg.Scope); err != nil {
			return nil, fmt.Errorf("failed to read chat scope: %w", err)
		}
	}

	if msg.Message, err = readNullString(r); err != nil {
		return nil, fmt.Errorf("failed to read chat message: %w", err)
	}

	return msg, nil
}

// Encode builds a ChatToHost frame from the message.
func (m *ChatToHost) Encode() Frame {
	return m.encode(TypeChatToHost)
}

func (m *ChatToHost) encode(frameType byte) Frame {
	b := NewPayloadBuilder().
		WriteByte(byte(len(m.Recipients))).
		WriteBytes(m.Recipients).
		WriteByte(m.FromPlayer).
		WriteByte(m.Flags)
	if m.Flags == ChatFlagScoped {
		b.WriteUint32(m.Scope)
	}
	return b.WriteNullString(m.Message).Frame(frameType)
}

// ChatFromHost is a chat message relayed by the host toward a client.
// It shares the ChatToHost payload layout.
type ChatFromHost struct {
	ChatToHost
}

// DecodeChatFromHost decodes a ChatFromHost payload.
func DecodeChatFromHost(payload []byte) (*ChatFromHost, error) {
	inner, err := DecodeChatToHost(payload)
	if err != nil {
		return nil, err
	}
	return &ChatFromHost{ChatToHost: *inner}, nil
}

// Encode builds a ChatFromHost frame from the message.
func (m *ChatFromHost) Encode() Frame {
	return m.encode(TypeChatFromHost)
}

// PrivateChatToSelf builds a scoped ChatFromHost frame addressed only to the
// given slot, appearing to come from that slot. Used for command replies.
func PrivateChatToSelf(slot byte, message string) Frame {
	m := ChatFromHost{ChatToHost{
		Recipients: []byte{slot},
		FromPlayer: slot,
		Flags:      ChatFlagScoped,
		Message:    message,
	}}
	return m.Encode()
}

// LeaveAckFrame builds an empty leave-acknowledgement frame.
func LeaveAckFrame() Frame {
	return Frame{Type: TypeLeaveAck}
}

// readNullString reads a null-terminated string from a reader.
func readNullString(r *bytes.Reader) (string, error) {
	var buf bytes.Buffer
	for {
		b, err := r.ReadByte()
		if err != nil {
			return "", err
		}
		if b == 0 {
			break
		}
		buf.WriteByte(b)
	}
	return buf.String(), nil
}
