// Package relay implements the supervising layer above relay sessions: it
// pairs each accepted client transport with a node connection, runs the
// session to completion, and publishes the outcome.
package relay

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/diewolke9/flo/internal/config"
	"github.com/diewolke9/flo/internal/events"
	"github.com/diewolke9/flo/internal/network"
	"github.com/diewolke9/flo/internal/protocol"
	"github.com/diewolke9/flo/internal/records"
	"github.com/diewolke9/flo/internal/session"
	"github.com/diewolke9/flo/internal/util"
)

// Manager supervises relay sessions. One session per accepted client; each
// session is paired with its own node connection.
type Manager struct {
	cfg    *config.Config
	bus    *events.EventBus
	store  *records.Store // optional
	logger zerolog.Logger

	mu       sync.RWMutex
	sessions map[string]*session.Session
}

// NewManager creates a session manager. store may be nil to disable
// persistence.
func NewManager(cfg *config.Config, bus *events.EventBus, store *records.Store) *Manager {
	return &Manager{
		cfg:      cfg,
		bus:      bus,
		store:    store,
		sessions: make(map[string]*session.Session),
		logger:   util.ComponentLogger("relay"),
	}
}

// HandleClient runs a full session lifecycle for one accepted client
// transport: dial the node, pump node traffic, run the session, record the
// result. Blocks until the session ends.
func (m *Manager) HandleClient(ctx context.Context, conn *network.FrameConn) {
	defer conn.Close()

	id := uuid.NewString()
	logger := m.logger.With().Str("session_id", id).Logger()

	nodeConn, err := m.dialNode(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("failed to connect to relay node")
		return
	}
	defer nodeConn.Close()

	relayCfg := m.cfg.GetRelay()
	matchCfg := m.cfg.GetMatch()

	queue := session.NewFrameQueue(relayCfg.QueueSize)
	feed := session.NewStatusFeed()
	go pumpNode(nodeConn, queue, feed, logger)

	sess := session.New(session.Config{
		ID:     id,
		Match:  toMatchInfo(matchCfg),
		Node:   toNodeInfo(matchCfg),
		Roster: toRoster(matchCfg),
		Client: conn,
		Queue:  queue,
		Status: feed,
		Link:   &nodeLink{conn: nodeConn},
		Bus:    m.bus,
	})

	m.register(sess)
	defer m.unregister(id)

	m.bus.Emit(ctx, events.Event{
		Type:   events.EventSessionStarted,
		Source: fmt.Sprintf("session:%s", id),
		Payload: events.SessionStartedPayload{
			SessionID:  id,
			MatchID:    sess.Match().ID,
			MatchName:  sess.Match().Name,
			NodeName:   sess.Node().Name,
			RemoteAddr: conn.RemoteAddr().String(),
			StartedAt:  sess.StartedAt(),
		},
	})

	outcome, runErr := sess.Run()
	endedAt := time.Now()

	ended := events.SessionEndedPayload{
		SessionID: id,
		MatchID:   sess.Match().ID,
		TickRecv:  sess.TickRecv(),
		TickAck:   sess.TickAck(),
		EndedAt:   endedAt,
	}
	if runErr != nil {
		ended.Error = runErr.Error()
		logger.Error().Err(runErr).Msg("session aborted")
	} else {
		ended.Outcome = outcome.String()
		logger.Info().Stringer("outcome", outcome).
			Uint32("tick_recv", sess.TickRecv()).
			Uint32("tick_ack", sess.TickAck()).
			Msg("session ended")
	}

	m.bus.Emit(ctx, events.Event{
		Type:    events.EventSessionEnded,
		Source:  fmt.Sprintf("session:%s", id),
		Payload: ended,
	})

	if m.store != nil {
		rec := records.SessionRecord{
			SessionID: id,
			MatchID:   sess.Match().ID,
			MatchName: sess.Match().Name,
			NodeName:  sess.Node().Name,
			Outcome:   ended.Outcome,
			TickRecv:  sess.TickRecv(),
			TickAck:   sess.TickAck(),
			Error:     ended.Error,
			StartedAt: sess.StartedAt(),
			EndedAt:   endedAt,
		}
		if err := m.store.Insert(rec); err != nil {
			logger.Warn().Err(err).Msg("failed to record session")
		}
	}
}

// dialNode opens the node-side connection with the same low-latency socket
// tuning as the client side.
func (m *Manager) dialNode(ctx context.Context) (*network.FrameConn, error) {
	relayCfg := m.cfg.GetRelay()

	d := net.Dialer{Timeout: time.Duration(relayCfg.DialTimeoutSec) * time.Second}
	conn, err := d.DialContext(ctx, "tcp", relayCfg.NodeAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to dial node %s: %w", relayCfg.NodeAddress, err)
	}

	if tcpConn, ok := conn.(*net.TCPConn); ok {
		tcpConn.SetNoDelay(true)
		tcpConn.SetKeepAlive(false)
	}

	return network.NewFrameConn(conn), nil
}

// pumpNode feeds node traffic into the session's queue and status feed.
// When the node connection dies the queue and feed are closed, which the
// session observes as fatal cancellation.
func pumpNode(conn *network.FrameConn, queue *session.FrameQueue, feed *session.StatusFeed, logger zerolog.Logger) {
	defer queue.Close()
	defer feed.Close()

	for {
		f, err := conn.ReadFrame()
		if err != nil {
			logger.Debug().Err(err).Msg("node connection closed")
			return
		}

		if f.Type == protocol.TypeGameStatus {
			if len(f.Payload) >= 1 {
				feed.Set(session.GameStatus(f.Payload[0]))
			}
			continue
		}

		if err := queue.Send(f); err != nil {
			return
		}
	}
}

func toMatchInfo(m config.MatchConfig) session.MatchInfo {
	return session.MatchInfo{ID: m.ID, Name: m.Name}
}

func toNodeInfo(m config.MatchConfig) session.NodeInfo {
	return session.NodeInfo{
		ID:       m.Node.ID,
		Name:     m.Node.Name,
		Location: m.Node.Location,
		Country:  m.Node.Country,
	}
}

func toRoster(m config.MatchConfig) session.Roster {
	slots := make([]session.Slot, 0, len(m.Slots))
	for _, s := range m.Slots {
		slots = append(slots, session.Slot{ID: s.ID, Name: s.Name, Team: s.Team, Race: s.Race})
	}
	return session.Roster{Slots: slots, LocalID: m.LocalSlot}
}

// nodeLink adapts the node connection to the session's NodeLink.
type nodeLink struct {
	conn *network.FrameConn
}

func (l *nodeLink) SendFrame(f protocol.Frame) error {
	return l.conn.WriteFrame(f)
}

func (l *nodeLink) ReportSlotStatus(status session.SlotStatus) error {
	return l.conn.WriteFrame(protocol.Frame{
		Type:    protocol.TypeSlotStatusUpdate,
		Payload: []byte{byte(status)},
	})
}

func (m *Manager) register(sess *session.Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sess.ID()] = sess
}

func (m *Manager) unregister(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

// SessionSnapshot is a point-in-time view of an active session.
type SessionSnapshot struct {
	SessionID string    `json:"session_id"`
	MatchID   uint32    `json:"match_id"`
	MatchName string    `json:"match_name"`
	NodeName  string    `json:"node_name"`
	TickRecv  uint32    `json:"tick_recv"`
	TickAck   uint32    `json:"tick_ack"`
	Muted     int       `json:"muted_players"`
	StartedAt time.Time `json:"started_at"`
}

// ActiveSessions returns snapshots of all running sessions.
func (m *Manager) ActiveSessions() []SessionSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]SessionSnapshot, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, SessionSnapshot{
			SessionID: s.ID(),
			MatchID:   s.Match().ID,
			MatchName: s.Match().Name,
			NodeName:  s.Node().Name,
			TickRecv:  s.TickRecv(),
			TickAck:   s.TickAck(),
			Muted:     s.MutedCount(),
			StartedAt: s.StartedAt(),
		})
	}
	return out
}

// Count returns the number of active sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
