package protocol

import (
	"encoding/binary"
	"fmt"
	"io"
)

// ReadFrame reads a single frame from a byte stream.
// Wire format: [signature:1][type:1][total length:2 LE][payload...].
func ReadFrame(r io.Reader) (Frame, error) {
	var header [HeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return Frame{}, fmt.Errorf("failed to read frame header: %w", err)
	}

	if header[0] != FrameSignature {
		return Frame{}, fmt.Errorf("bad frame signature: 0x%02X", header[0])
	}

	length := binary.LittleEndian.Uint16(header[2:4])
	if int(length) < HeaderSize {
		return Frame{}, fmt.Errorf("frame length too small: %d bytes", length)
	}

	payload := make([]byte, int(length)-HeaderSize)
	if _, err := io.ReadFull(r, payload); err != nil {
		return Frame{}, fmt.Errorf("failed to read frame payload (%d bytes): %w", len(payload), err)
	}

	return Frame{Type: header[1], Payload: payload}, nil
}

// WriteFrame writes a single frame to a byte stream.
func WriteFrame(w io.Writer, f Frame) error {
	if f.Len() > MaxFrameSize {
		return fmt.Errorf("frame too large: %d bytes (max %d)", f.Len(), MaxFrameSize)
	}

	var header [HeaderSize]byte
	header[0] = FrameSignature
	header[1] = f.Type
	binary.LittleEndian.PutUint16(header[2:4], uint16(f.Len()))

	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("failed to write frame header: %w", err)
	}
	if len(f.Payload) > 0 {
		if _, err := w.Write(f.Payload); err != nil {
			return fmt.Errorf("failed to write frame payload: %w", err)
		}
	}
	return nil
}
