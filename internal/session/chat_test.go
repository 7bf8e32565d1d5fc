package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/diewolke9/flo/internal/protocol"
)

// replies collects n queued chat replies and returns their text.
func (h *harness) replies(t *testing.T, n int) []string {
	t.Helper()
	out := make([]string, 0, n)
	for len(out) < n {
		select {
		case f := <-h.queue.Frames():
			require.Equal(t, protocol.TypeChatFromHost, f.Type)
			msg, err := protocol.DecodeChatFromHost(f.Payload)
			require.NoError(t, err)
			require.Equal(t, []byte{h.sess.roster.LocalID}, msg.Recipients)
			out = append(out, msg.Message)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for reply %d of %d, got %v", len(out)+1, n, out)
		}
	}
	return out
}

// noReply asserts nothing further is queued.
func (h *harness) noReply(t *testing.T) {
	t.Helper()
	select {
	case f := <-h.queue.Frames():
		t.Fatalf("unexpected queued frame type 0x%02X", f.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestParseChatCommand(t *testing.T) {
	cmd, ok := parseChatCommand("!mute 3")
	require.True(t, ok)
	require.Equal(t, "mute 3", cmd)

	_, ok = parseChatCommand("mute 3")
	require.False(t, ok)

	_, ok = parseChatCommand("!")
	require.False(t, ok)

	_, ok = parseChatCommand("")
	require.False(t, ok)
}

func TestChatCommandHelp(t *testing.T) {
	h := newHarness(t)
	h.sess.handleChatCommand("help")

	msgs := h.replies(t, 9)
	require.Equal(t, "Chat commands:", msgs[0])
	require.Contains(t, msgs, " !flo: print game information.")
	require.Contains(t, msgs, " !mute <ID>: Mute a player.")
}

func TestChatCommandFlo(t *testing.T) {
	h := newHarness(t)
	h.sess.handleChatCommand("flo")

	msgs := h.replies(t, 6)
	require.Equal(t, []string{
		"Game: tournament finals (#42)",
		"Server: eu-1, Frankfurt, DE (#7)",
		"Players:",
		"  grubby: Team 0, Orc",
		"  moon: Team 1, Night Elf",
		"  happy: Team 1, Undead",
	}, msgs)
}

func TestChatCommandTick(t *testing.T) {
	h := newHarness(t)
	h.sess.tickRecv.Store(120)
	h.sess.tickAck.Store(118)

	h.sess.handleChatCommand("tick")
	require.Equal(t, []string{"tick_recv = 120, tick_ack = 118"}, h.replies(t, 1))
}

func TestChatCommandTrailingWhitespace(t *testing.T) {
	h := newHarness(t)
	h.sess.handleChatCommand("tick   ")
	require.Equal(t, []string{"tick_recv = 0, tick_ack = 0"}, h.replies(t, 1))
}

func TestChatCommandMuteAllIdempotent(t *testing.T) {
	h := newHarness(t)

	h.sess.handleChatCommand("muteall")
	require.Equal(t, []string{"All players muted."}, h.replies(t, 1))
	require.Equal(t, 2, h.sess.MutedCount())

	h.sess.handleChatCommand("muteall")
	require.Equal(t, []string{"All players muted."}, h.replies(t, 1))
	require.Equal(t, 2, h.sess.MutedCount())
}

func TestChatCommandUnmuteAll(t *testing.T) {
	h := newHarness(t)

	h.sess.handleChatCommand("muteall")
	h.replies(t, 1)

	h.sess.handleChatCommand("unmuteall")
	require.Equal(t, []string{"All players un-muted."}, h.replies(t, 1))
	require.Equal(t, 0, h.sess.MutedCount())
}

func TestChatCommandMuteById(t *testing.T) {
	h := newHarness(t)

	h.sess.handleChatCommand("mute 2")
	require.Equal(t, []string{"Muted: moon"}, h.replies(t, 1))
	require.True(t, h.sess.isMuted(2))
}

func TestChatCommandMuteInvalidId(t *testing.T) {
	h := newHarness(t)

	h.sess.handleChatCommand("mute 99")
	msgs := h.replies(t, 3)
	require.Equal(t, "Invalid player id. Players:", msgs[0])
	require.Equal(t, " ID=2 moon", msgs[1])
	require.Equal(t, " ID=3 happy", msgs[2])
	require.Equal(t, 0, h.sess.MutedCount())
}

func TestChatCommandMuteSelfRejected(t *testing.T) {
	h := newHarness(t)

	h.sess.handleChatCommand("mute 1")
	msgs := h.replies(t, 3)
	require.Equal(t, "Invalid player id. Players:", msgs[0])
	require.False(t, h.sess.isMuted(1))
}

func TestChatCommandMuteAlreadyMuted(t *testing.T) {
	h := newHarness(t)

	h.sess.handleChatCommand("mute 2")
	h.replies(t, 1)

	h.sess.handleChatCommand("mute 2")
	msgs := h.replies(t, 2)
	require.Equal(t, "Invalid player id. Players:", msgs[0])
	require.Equal(t, " ID=3 happy", msgs[1])
}

func TestChatCommandMuteBadSyntax(t *testing.T) {
	h := newHarness(t)

	h.sess.handleChatCommand("mute abc")
	require.Equal(t, []string{"Invalid syntax. Example: !mute 1"}, h.replies(t, 1))

	h.sess.handleChatCommand("mute 300")
	require.Equal(t, []string{"Invalid syntax. Example: !mute 1"}, h.replies(t, 1))
}

func TestChatCommandMuteNoArgLists(t *testing.T) {
	h := newHarness(t)

	// more than one candidate: list instead of muting
	h.sess.handleChatCommand("mute")
	msgs := h.replies(t, 3)
	require.Equal(t, "Type `!mute <ID>` to mute a player:", msgs[0])
	require.Equal(t, " ID=2 moon", msgs[1])
	require.Equal(t, " ID=3 happy", msgs[2])
	require.Equal(t, 0, h.sess.MutedCount())
}

func TestChatCommandMuteNoArgSingleOpponent(t *testing.T) {
	h := newHarness(t)
	h.sess.roster = Roster{
		LocalID: 1,
		Slots: []Slot{
			{ID: 1, Name: "grubby", Team: 0, Race: "Orc"},
			{ID: 2, Name: "moon", Team: 1, Race: "Night Elf"},
		},
	}

	h.sess.handleChatCommand("mute")
	require.Equal(t, []string{"Muted: moon"}, h.replies(t, 1))
	require.True(t, h.sess.isMuted(2))

	h.sess.handleChatCommand("mute")
	require.Equal(t, []string{"You have silenced all the players."}, h.replies(t, 1))
}

func TestChatCommandUnmuteNoArg(t *testing.T) {
	h := newHarness(t)

	h.sess.handleChatCommand("unmute")
	require.Equal(t, []string{"No player to unmute."}, h.replies(t, 1))

	h.sess.handleChatCommand("muteall")
	h.replies(t, 1)

	h.sess.handleChatCommand("unmute")
	msgs := h.replies(t, 3)
	require.Equal(t, "Type `!unmute <ID>` to unmute a player:", msgs[0])
}

func TestChatCommandUnmuteById(t *testing.T) {
	h := newHarness(t)

	h.sess.handleChatCommand("mute 3")
	h.replies(t, 1)

	h.sess.handleChatCommand("unmute 3")
	require.Equal(t, []string{"Un-muted: happy"}, h.replies(t, 1))
	require.Equal(t, 0, h.sess.MutedCount())

	h.sess.handleChatCommand("unmute 3")
	require.Equal(t, []string{"Invalid player id. Muted players:"}, h.replies(t, 1))
}

func TestChatCommandUnmuteBadSyntax(t *testing.T) {
	h := newHarness(t)
	h.sess.handleChatCommand("unmute x")
	require.Equal(t, []string{"Invalid syntax. Example: !unmute 1"}, h.replies(t, 1))
}

func TestChatCommandUnknown(t *testing.T) {
	h := newHarness(t)
	h.sess.handleChatCommand("frobnicate")
	require.Equal(t, []string{"Unknown command"}, h.replies(t, 1))
	h.noReply(t)
}
