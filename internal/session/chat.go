package session

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/diewolke9/flo/internal/events"
	"github.com/diewolke9/flo/internal/protocol"
)

// parseChatCommand extracts an admin command from scoped chat text.
// Commands carry a leading '!'.
func parseChatCommand(text string) (string, bool) {
	if len(text) < 2 || text[0] != '!' {
		return "", false
	}
	return text[1:], true
}

// handleChatCommand interprets a chat command from the local player over the
// session state and queues private replies. It never writes to transports
// directly and never forwards anything to the node.
func (s *Session) handleChatCommand(cmd string) {
	cmd = strings.TrimRightFunc(cmd, unicode.IsSpace)

	switch {
	case cmd == "help":
		s.sendChatsToSelf(
			"Chat commands:",
			" !flo: print game information.",
			" !tick: print tick counters.",
			" !muteall: Mute all players.",
			" !unmuteall: Unmute all players.",
			" !mute: Mute your opponent (1v1), or display a player list.",
			" !mute <ID>: Mute a player.",
			" !unmute: Unmute your opponent (1v1), or display a player list.",
			" !unmute <ID>: Unmute a player.",
		)

	case cmd == "flo":
		messages := []string{
			fmt.Sprintf("Game: %s (#%d)", s.match.Name, s.match.ID),
			fmt.Sprintf("Server: %s, %s, %s (#%d)", s.node.Name, s.node.Location, s.node.Country, s.node.ID),
			"Players:",
		}
		for _, slot := range s.roster.Slots {
			messages = append(messages, fmt.Sprintf("  %s: Team %d, %s", slot.Name, slot.Team, slot.Race))
		}
		s.sendChatsToSelf(messages...)

	case cmd == "tick":
		s.sendChatsToSelf(fmt.Sprintf("tick_recv = %d, tick_ack = %d", s.tickRecv.Load(), s.tickAck.Load()))

	case cmd == "muteall":
		for _, slot := range s.roster.Others() {
			s.addMute(slot)
		}
		s.sendChatsToSelf("All players muted.")

	case cmd == "unmuteall":
		for _, slot := range s.mutedSlots() {
			s.removeMute(slot)
		}
		s.sendChatsToSelf("All players un-muted.")

	case strings.HasPrefix(cmd, "unmute"):
		s.handleUnmute(cmd)

	case strings.HasPrefix(cmd, "mute"):
		s.handleMute(cmd)

	default:
		s.sendChatsToSelf("Unknown command")
	}
}

func (s *Session) handleMute(cmd string) {
	targets := s.unmutedOthers()

	if cmd == "mute" {
		switch len(targets) {
		case 0:
			s.sendChatsToSelf("You have silenced all the players.")
		case 1:
			s.addMute(targets[0])
			s.sendChatsToSelf("Muted: " + targets[0].Name)
		default:
			msgs := []string{"Type `!mute <ID>` to mute a player:"}
			for _, t := range targets {
				msgs = append(msgs, fmt.Sprintf(" ID=%d %s", t.ID, t.Name))
			}
			s.sendChatsToSelf(msgs...)
		}
		return
	}

	id, ok := parseSlotArg(cmd, "mute")
	if !ok {
		s.sendChatsToSelf("Invalid syntax. Example: !mute 1")
		return
	}

	if slot, found := s.roster.Find(id); found && id != s.roster.LocalID && !s.isMuted(id) {
		s.addMute(slot)
		s.sendChatsToSelf("Muted: " + slot.Name)
		return
	}

	msgs := []string{"Invalid player id. Players:"}
	for _, t := range targets {
		msgs = append(msgs, fmt.Sprintf(" ID=%d %s", t.ID, t.Name))
	}
	s.sendChatsToSelf(msgs...)
}

func (s *Session) handleUnmute(cmd string) {
	targets := s.mutedSlots()

	if cmd == "unmute" {
		switch len(targets) {
		case 0:
			s.sendChatsToSelf("No player to unmute.")
		case 1:
			s.removeMute(targets[0])
			s.sendChatsToSelf("Un-muted: " + targets[0].Name)
		default:
			msgs := []string{"Type `!unmute <ID>` to unmute a player:"}
			for _, t := range targets {
				msgs = append(msgs, fmt.Sprintf(" ID=%d %s", t.ID, t.Name))
			}
			s.sendChatsToSelf(msgs...)
		}
		return
	}

	id, ok := parseSlotArg(cmd, "unmute")
	if !ok {
		s.sendChatsToSelf("Invalid syntax. Example: !unmute 1")
		return
	}

	if slot, found := s.roster.Find(id); found && s.isMuted(id) {
		s.removeMute(slot)
		s.sendChatsToSelf("Un-muted: " + slot.Name)
		return
	}

	msgs := []string{"Invalid player id. Muted players:"}
	for _, t := range targets {
		msgs = append(msgs, fmt.Sprintf(" ID=%d %s", t.ID, t.Name))
	}
	s.sendChatsToSelf(msgs...)
}

// parseSlotArg parses the "<keyword> <id>" argument form.
func parseSlotArg(cmd, keyword string) (uint8, bool) {
	rest := strings.TrimPrefix(cmd, keyword)
	if !strings.HasPrefix(rest, " ") {
		return 0, false
	}
	id, err := strconv.ParseUint(strings.TrimSpace(rest), 10, 8)
	if err != nil {
		return 0, false
	}
	return uint8(id), true
}

func (s *Session) isMuted(id uint8) bool {
	_, ok := s.muted[id]
	return ok
}

// unmutedOthers returns the other players' slots not currently muted.
func (s *Session) unmutedOthers() []Slot {
	out := make([]Slot, 0, len(s.roster.Slots))
	for _, slot := range s.roster.Others() {
		if !s.isMuted(slot.ID) {
			out = append(out, slot)
		}
	}
	return out
}

// mutedSlots resolves the current mute set against the roster, in roster order.
func (s *Session) mutedSlots() []Slot {
	out := make([]Slot, 0, len(s.muted))
	for _, slot := range s.roster.Slots {
		if s.isMuted(slot.ID) {
			out = append(out, slot)
		}
	}
	return out
}

func (s *Session) addMute(slot Slot) {
	if s.isMuted(slot.ID) {
		return
	}
	s.muted[slot.ID] = struct{}{}
	s.mutedCount.Store(int32(len(s.muted)))
	s.emit(events.EventPlayerMuted, events.MutePayload{SessionID: s.id, Slot: slot.ID, Name: slot.Name})
}

func (s *Session) removeMute(slot Slot) {
	if !s.isMuted(slot.ID) {
		return
	}
	delete(s.muted, slot.ID)
	s.mutedCount.Store(int32(len(s.muted)))
	s.emit(events.EventPlayerUnmuted, events.MutePayload{SessionID: s.id, Slot: slot.ID, Name: slot.Name})
}

// sendChatsToSelf queues private chat replies to the local player from a
// detached goroutine so reply delivery never blocks the relay loop. A reply
// that fails to encode is logged and dropped; the rest are still attempted.
func (s *Session) sendChatsToSelf(messages ...string) {
	slot := s.roster.LocalID
	queue := s.queue
	logger := s.logger

	go func() {
		for _, m := range messages {
			f := protocol.PrivateChatToSelf(slot, m)
			if f.Len() > protocol.MaxFrameSize {
				logger.Error().Int("size", f.Len()).Msg("chat reply too large, dropped")
				continue
			}
			if err := queue.Send(f); err != nil {
				logger.Error().Err(err).Msg("failed to queue chat reply")
			}
		}
	}()
}
