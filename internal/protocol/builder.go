package protocol

import (
	"bytes"
	"encoding/binary"
)

// PayloadBuilder constructs frame payloads field by field.
type PayloadBuilder struct {
	buf bytes.Buffer
}

// NewPayloadBuilder creates a new PayloadBuilder.
func NewPayloadBuilder() *PayloadBuilder {
	return &PayloadBuilder{}
}

// Reset clears the builder for reuse.
func (b *PayloadBuilder) Reset() {
	b.buf.Reset()
}

// WriteByte writes a single byte.
func (b *PayloadBuilder) WriteByte(v byte) *PayloadBuilder {
	b.buf.WriteByte(v)
	return b
}

// WriteUint16 writes a uint16 in little-endian order.
func (b *PayloadBuilder) WriteUint16(v uint16) *PayloadBuilder {
	binary.Write(&b.buf, binary.LittleEndian, v)
	return b
}

// WriteUint32 writes a uint32 in little-endian order.
func (b *PayloadBuilder) WriteUint32(v uint32) *PayloadBuilder {
	binary.Write(&b.buf, binary.LittleEndian, v)
	return b
}

// WriteNullString writes a null-terminated string.
func (b *PayloadBuilder) WriteNullString(s string) *PayloadBuilder {
	b.buf.WriteString(s)
	b.buf.WriteByte(0)
	return b
}

// WriteBytes writes raw bytes.
func (b *PayloadBuilder) WriteBytes(data []byte) *PayloadBuilder {
	b.buf.Write(data)
	return b
}

// Frame returns a frame of the given type carrying the built payload.
func (b *PayloadBuilder) Frame(frameType byte) Frame {
	payload := make([]byte, b.buf.Len())
	copy(payload, b.buf.Bytes())
	return Frame{Type: frameType, Payload: payload}
}
