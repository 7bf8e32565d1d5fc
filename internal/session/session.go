package session

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/diewolke9/flo/internal/events"
	"github.com/diewolke9/flo/internal/protocol"
)

// ClientTransport is the local game client's typed-frame transport.
type ClientTransport interface {
	ReadFrame() (protocol.Frame, error)
	WriteFrame(f protocol.Frame) error
	Flush() error
}

// NodeLink carries session traffic toward the relay node: frame forwarding
// plus out-of-band slot status reporting.
type NodeLink interface {
	SendFrame(f protocol.Frame) error
	ReportSlotStatus(status SlotStatus) error
}

// Config holds the construction inputs for a Session. Match, Node and
// Roster are shared read-only for the session's lifetime.
type Config struct {
	ID     string
	Match  MatchInfo
	Node   NodeInfo
	Roster Roster
	Client ClientTransport
	Queue  *FrameQueue
	Status *StatusFeed
	Link   NodeLink
	Bus    *events.EventBus // optional
}

// Session is the per-player relay state machine. It owns exclusive mutable
// access to the tick counters and the mute set: both are only ever touched
// by the goroutine running Run. Observers read the counters through
// atomic snapshots.
type Session struct {
	id     string
	match  MatchInfo
	node   NodeInfo
	roster Roster
	logger zerolog.Logger

	client ClientTransport
	queue  *FrameQueue
	status *StatusFeed
	link   NodeLink
	bus    *events.EventBus

	tickRecv   atomic.Uint32
	tickAck    atomic.Uint32
	muted      map[uint8]struct{}
	mutedCount atomic.Int32

	startedAt time.Time
}

// New creates a relay session for one established client/node pairing.
func New(cfg Config) *Session {
	return &Session{
		id:     cfg.ID,
		match:  cfg.Match,
		node:   cfg.Node,
		roster: cfg.Roster,
		client: cfg.Client,
		queue:  cfg.Queue,
		status: cfg.Status,
		link:   cfg.Link,
		bus:    cfg.Bus,
		muted:  make(map[uint8]struct{}),
		logger: log.With().
			Str("component", "session").
			Str("session_id", cfg.ID).
			Uint32("match_id", cfg.Match.ID).
			Logger(),
		startedAt: time.Now(),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Match returns the match descriptor.
func (s *Session) Match() MatchInfo { return s.match }

// Node returns the node descriptor.
func (s *Session) Node() NodeInfo { return s.node }

// StartedAt returns when the session was created.
func (s *Session) StartedAt() time.Time { return s.startedAt }

// TickRecv returns the count of node-originated action frames.
func (s *Session) TickRecv() uint32 { return s.tickRecv.Load() }

// TickAck returns the count of client keepalive acknowledgements.
func (s *Session) TickAck() uint32 { return s.tickAck.Load() }

// MutedCount returns the current size of the mute set.
func (s *Session) MutedCount() int { return int(s.mutedCount.Load()) }

type readResult struct {
	frame protocol.Frame
	err   error
}

// Run multiplexes the three session sources until a terminal outcome.
// A client disconnect ends the session normally with OutcomeDisconnected;
// loss of the node frame producer or the status producer is fatal and
// returns an error wrapping ErrCancelled. There is no cross-source
// priority; within a source, arrival order is preserved.
func (s *Session) Run() (Outcome, error) {
	done := make(chan struct{})
	defer close(done)

	// Pump the client transport into a channel so the loop can select
	// across all three sources without blocking a thread.
	clientCh := make(chan readResult, 1)
	go func() {
		for {
			f, err := s.client.ReadFrame()
			select {
			case clientCh <- readResult{frame: f, err: err}:
			case <-done:
				return
			}
			if err != nil {
				return
			}
		}
	}()

	for {
		select {
		case r := <-clientCh:
			if r.err != nil {
				s.logger.Error().Err(r.err).Msg("game connection lost")
				return OutcomeDisconnected, nil
			}

			if r.frame.Type == protocol.TypeLeaveAck {
				// Two-sided handshake: report, echo, flush, then terminate.
				if err := s.link.ReportSlotStatus(SlotStatusLeft); err != nil {
					s.logger.Warn().Err(err).Msg("failed to report left status")
				}
				if err := s.client.WriteFrame(protocol.LeaveAckFrame()); err != nil {
					return 0, fmt.Errorf("failed to echo leave ack: %w", err)
				}
				if err := s.client.Flush(); err != nil {
					return 0, fmt.Errorf("failed to flush leave ack: %w", err)
				}
				return OutcomeLeave, nil
			}

			if err := s.handleClientFrame(r.frame); err != nil {
				return 0, err
			}

		case f := <-s.queue.Frames():
			if err := s.handleNodeFrame(f); err != nil {
				return 0, err
			}

		case <-s.queue.Closed():
			return 0, fmt.Errorf("%w: node frame producer dropped", ErrCancelled)

		case status := <-s.status.Changes():
			s.handleStatusChange(status)

		case <-s.status.Closed():
			return 0, fmt.Errorf("%w: status producer dropped", ErrCancelled)
		}
	}
}

// handleClientFrame dispatches a frame read from the local client.
// Recognized chat commands are consumed locally; everything else is
// forwarded to the node unchanged.
func (s *Session) handleClientFrame(f protocol.Frame) error {
	switch f.Type {
	case protocol.TypeChatToHost:
		msg, err := protocol.DecodeChatToHost(f.Payload)
		if err != nil {
			return err
		}
		if msg.Scoped() {
			if cmd, ok := parseChatCommand(msg.Message); ok {
				s.handleChatCommand(cmd)
				return nil
			}
		}

	case protocol.TypeOutgoingKeepAlive:
		s.tickAck.Add(1)

	case protocol.TypeIncomingAction, protocol.TypeOutgoingAction:

	default:
		s.logger.Debug().Uint8("type", f.Type).Msg("unknown game frame")
	}

	return s.link.SendFrame(f)
}

// handleNodeFrame dispatches a frame from the node-side queue toward the
// local client. ChatFromHost frames are only decoded while players are
// muted; on the hot path with an empty mute set they are forwarded without
// a parse attempt.
func (s *Session) handleNodeFrame(f protocol.Frame) error {
	switch f.Type {
	case protocol.TypeOutgoingKeepAlive:

	case protocol.TypeIncomingAction:
		s.tickRecv.Add(1)

	case protocol.TypeOutgoingAction:

	case protocol.TypeChatFromHost:
		if len(s.muted) > 0 {
			msg, err := protocol.DecodeChatFromHost(f.Payload)
			if err != nil {
				return err
			}
			if msg.Scoped() {
				if _, ok := s.muted[msg.FromPlayer]; ok {
					return nil
				}
			}
		}
	}

	return s.client.WriteFrame(f)
}

func (s *Session) handleStatusChange(status GameStatus) {
	s.logger.Debug().Stringer("status", status).Msg("game status changed")
	s.emit(events.EventStatusChanged, events.StatusChangedPayload{
		SessionID: s.id,
		Status:    status.String(),
	})
}

func (s *Session) emit(t events.EventType, payload interface{}) {
	if s.bus == nil {
		return
	}
	s.bus.Emit(context.Background(), events.Event{
		Type:    t,
		Source:  fmt.Sprintf("session:%s", s.id),
		Payload: payload,
	})
}

