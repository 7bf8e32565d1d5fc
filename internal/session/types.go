// Package session implements the relay session state machine: one session
// per connected player, multiplexing the local client transport, the
// node-side frame queue, and the node status feed.
package session

import (
	"errors"
	"fmt"
)

// ErrCancelled indicates an internal producer went away while the session
// was still running. This is distinct from a peer disconnect, which ends
// the session normally with OutcomeDisconnected.
var ErrCancelled = errors.New("session cancelled")

// Outcome is the terminal result of a relay session.
type Outcome int

const (
	// OutcomeDisconnected means the local client transport closed or failed.
	OutcomeDisconnected Outcome = iota
	// OutcomeLeave means the client completed the leave handshake.
	OutcomeLeave
)

// String returns the string representation of Outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeDisconnected:
		return "disconnected"
	case OutcomeLeave:
		return "leave"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// GameStatus represents the match lifecycle status reported by the node.
type GameStatus int

const (
	GameStatusCreated GameStatus = iota
	GameStatusWaiting
	GameStatusRunning
	GameStatusEnded
)

// String returns the string representation of GameStatus.
func (s GameStatus) String() string {
	switch s {
	case GameStatusCreated:
		return "created"
	case GameStatusWaiting:
		return "waiting"
	case GameStatusRunning:
		return "running"
	case GameStatusEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// SlotStatus represents the client's status within its match slot, reported
// toward the node.
type SlotStatus int

const (
	SlotStatusPending SlotStatus = iota
	SlotStatusConnected
	SlotStatusJoined
	SlotStatusLoaded
	SlotStatusDisconnected
	SlotStatusLeft
)

// String returns the string representation of SlotStatus.
func (s SlotStatus) String() string {
	switch s {
	case SlotStatusPending:
		return "pending"
	case SlotStatusConnected:
		return "connected"
	case SlotStatusJoined:
		return "joined"
	case SlotStatusLoaded:
		return "loaded"
	case SlotStatusDisconnected:
		return "disconnected"
	case SlotStatusLeft:
		return "left"
	default:
		return "unknown"
	}
}

// MatchInfo describes the match a session belongs to. Immutable for the
// session's lifetime.
type MatchInfo struct {
	ID   uint32 `json:"id"`
	Name string `json:"name"`
}

// NodeInfo describes the relay node serving the match. Immutable for the
// session's lifetime.
type NodeInfo struct {
	ID       uint32 `json:"id"`
	Name     string `json:"name"`
	Location string `json:"location"`
	Country  string `json:"country"`
}

// Slot maps an occupied match slot to its player.
type Slot struct {
	ID   uint8  `json:"id"`
	Name string `json:"name"`
	Team uint8  `json:"team"`
	Race string `json:"race"`
}

// Roster is the set of occupied slots plus the local player's own slot id.
// Immutable for the session's lifetime.
type Roster struct {
	Slots   []Slot `json:"slots"`
	LocalID uint8  `json:"local_id"`
}

// Find returns the slot with the given id.
func (r *Roster) Find(id uint8) (Slot, bool) {
	for _, s := range r.Slots {
		if s.ID == id {
			return s, true
		}
	}
	return Slot{}, false
}

// Others returns every slot except the local player's.
func (r *Roster) Others() []Slot {
	out := make([]Slot, 0, len(r.Slots))
	for _, s := range r.Slots {
		if s.ID != r.LocalID {
			out = append(out, s)
		}
	}
	return out
}
