// Package network implements the TCP listener and the framed connection
// wrapper used for local game client traffic.
package network

import (
	"bufio"
	"fmt"
	"net"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/diewolke9/flo/internal/protocol"
)

// FrameConn wraps a net.Conn into a bidirectional typed-frame transport.
// Reads are driven by a single goroutine; writes are mutex-guarded so that
// forwarding and handshake echoes can share the connection safely.
type FrameConn struct {
	mu     sync.Mutex
	conn   net.Conn
	r      *bufio.Reader
	w      *bufio.Writer
	logger zerolog.Logger
	closed bool
}

// NewFrameConn wraps an existing net.Conn.
func NewFrameConn(conn net.Conn) *FrameConn {
	return &FrameConn{
		conn:   conn,
		r:      bufio.NewReader(conn),
		w:      bufio.NewWriter(conn),
		logger: log.With().Str("component", "frame_conn").Str("remote", conn.RemoteAddr().String()).Logger(),
	}
}

// ReadFrame reads the next frame from the connection.
// Blocks until a full frame is available or the connection fails.
func (c *FrameConn) ReadFrame() (protocol.Frame, error) {
	return protocol.ReadFrame(c.r)
}

// WriteFrame writes a single frame and flushes it to the socket.
// Frames are coalesced into one write; with Nagle disabled this keeps
// per-frame latency low.
func (c *FrameConn) WriteFrame(f protocol.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return fmt.Errorf("connection is closed")
	}

	if err := protocol.WriteFrame(c.w, f); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	return c.w.Flush()
}

// Flush forces any buffered bytes onto the socket.
func (c *FrameConn) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return fmt.Errorf("connection is closed")
	}
	return c.w.Flush()
}

// Close closes the underlying connection.
func (c *FrameConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	c.logger.Debug().Msg("connection closed")
	return c.conn.Close()
}

// IsClosed returns whether Close has been called.
func (c *FrameConn) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// RemoteAddr returns the remote address of the connection.
func (c *FrameConn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}
