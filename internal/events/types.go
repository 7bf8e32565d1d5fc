// Package events defines event types and enumerations for the relay event system.
package events

import "time"

// EventType represents the type of event emitted through the EventBus.
type EventType string

const (
	// Session lifecycle events
	EventSessionStarted EventType = "session_started"
	EventSessionEnded   EventType = "session_ended"
	EventStatusChanged  EventType = "status_changed"

	// Policy events
	EventPlayerMuted   EventType = "player_muted"
	EventPlayerUnmuted EventType = "player_unmuted"

	// System events
	EventShutdown EventType = "shutdown"
)

// Event represents a single event in the system.
type Event struct {
	Type    EventType
	Source  string
	Payload interface{}
}

// SessionStartedPayload describes a newly started relay session.
type SessionStartedPayload struct {
	SessionID  string    `json:"session_id"`
	MatchID    uint32    `json:"match_id"`
	MatchName  string    `json:"match_name"`
	NodeName   string    `json:"node_name"`
	RemoteAddr string    `json:"remote_addr"`
	StartedAt  time.Time `json:"started_at"`
}

// SessionEndedPayload describes a completed relay session.
type SessionEndedPayload struct {
	SessionID string    `json:"session_id"`
	MatchID   uint32    `json:"match_id"`
	Outcome   string    `json:"outcome"`
	TickRecv  uint32    `json:"tick_recv"`
	TickAck   uint32    `json:"tick_ack"`
	Error     string    `json:"error,omitempty"`
	EndedAt   time.Time `json:"ended_at"`
}

// StatusChangedPayload describes a node game status transition observed by a session.
type StatusChangedPayload struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
}

// MutePayload describes a mute-set change made through a chat command.
type MutePayload struct {
	SessionID string `json:"session_id"`
	Slot      uint8  `json:"slot"`
	Name      string `json:"name"`
}
