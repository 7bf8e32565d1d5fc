package network

import (
	"context"
	"fmt"
	"net"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Listener accepts local game client connections on an OS-assigned port and
// wraps each accepted socket into a framed transport. The resolved port is
// exposed so an external advertisement collaborator can announce it.
type Listener struct {
	ln     *net.TCPListener
	logger zerolog.Logger

	// StopOnAcceptError controls the accept stream after an accept-level
	// error: false keeps accepting further connections (the error is still
	// surfaced to the handler), true terminates the stream.
	StopOnAcceptError bool
}

// Listen binds a TCP listener on the IPv4 wildcard address with an
// OS-assigned port.
func Listen() (*Listener, error) {
	ln, err := net.ListenTCP("tcp4", &net.TCPAddr{IP: net.IPv4zero, Port: 0})
	if err != nil {
		return nil, fmt.Errorf("failed to bind listener: %w", err)
	}

	l := &Listener{
		ln:     ln,
		logger: log.With().Str("component", "listener").Str("addr", ln.Addr().String()).Logger(),
	}
	l.logger.Info().Msg("listener started")
	return l, nil
}

// Addr returns the resolved local address.
func (l *Listener) Addr() *net.TCPAddr {
	return l.ln.Addr().(*net.TCPAddr)
}

// Port returns the OS-assigned local port.
func (l *Listener) Port() uint16 {
	return uint16(l.Addr().Port)
}

// Accept produces the next item of the accept stream: a framed transport,
// or an accept-level error. The accepted socket has Nagle's algorithm and
// OS keepalive probing disabled, trading throughput and dead-peer detection
// for latency and jitter.
func (l *Listener) Accept() (*FrameConn, error) {
	conn, err := l.ln.AcceptTCP()
	if err != nil {
		return nil, fmt.Errorf("accept failed: %w", err)
	}

	if err := conn.SetNoDelay(true); err != nil {
		l.logger.Warn().Err(err).Msg("failed to disable Nagle's algorithm")
	}
	if err := conn.SetKeepAlive(false); err != nil {
		l.logger.Warn().Err(err).Msg("failed to disable keepalive")
	}

	l.logger.Debug().Str("remote", conn.RemoteAddr().String()).Msg("client connected")
	return NewFrameConn(conn), nil
}

// Serve runs the accept loop until the context is cancelled, invoking
// handle for each accepted transport in its own goroutine. Accept errors
// are logged; whether the loop continues afterwards follows
// StopOnAcceptError.
func (l *Listener) Serve(ctx context.Context, handle func(ctx context.Context, conn *FrameConn)) error {
	go func() {
		<-ctx.Done()
		l.ln.Close()
	}()

	for {
		conn, err := l.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				l.logger.Info().Msg("listener stopping")
				return nil
			default:
			}

			l.logger.Error().Err(err).Msg("failed to accept connection")
			if l.StopOnAcceptError {
				return err
			}
			continue
		}

		go handle(ctx, conn)
	}
}

// Close closes the listener socket.
func (l *Listener) Close() error {
	return l.ln.Close()
}
