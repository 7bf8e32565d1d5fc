package session

import (
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/diewolke9/flo/internal/protocol"
)

// fakeClient feeds frames into the session through a channel and records
// everything the session writes back.
type fakeClient struct {
	in chan protocol.Frame

	mu      sync.Mutex
	written []protocol.Frame
	flushes int
}

func newFakeClient() *fakeClient {
	return &fakeClient{in: make(chan protocol.Frame, 16)}
}

func (c *fakeClient) ReadFrame() (protocol.Frame, error) {
	f, ok := <-c.in
	if !ok {
		return protocol.Frame{}, io.EOF
	}
	return f, nil
}

func (c *fakeClient) WriteFrame(f protocol.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.written = append(c.written, f)
	return nil
}

func (c *fakeClient) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flushes++
	return nil
}

func (c *fakeClient) frames() []protocol.Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]protocol.Frame, len(c.written))
	copy(out, c.written)
	return out
}

// fakeLink records frames and slot status reports sent toward the node.
type fakeLink struct {
	mu       sync.Mutex
	sent     []protocol.Frame
	statuses []SlotStatus
}

func (l *fakeLink) SendFrame(f protocol.Frame) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sent = append(l.sent, f)
	return nil
}

func (l *fakeLink) ReportSlotStatus(status SlotStatus) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.statuses = append(l.statuses, status)
	return nil
}

func (l *fakeLink) frames() []protocol.Frame {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]protocol.Frame, len(l.sent))
	copy(out, l.sent)
	return out
}

func (l *fakeLink) slotStatuses() []SlotStatus {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]SlotStatus, len(l.statuses))
	copy(out, l.statuses)
	return out
}

type harness struct {
	sess   *Session
	client *fakeClient
	link   *fakeLink
	queue  *FrameQueue
	status *StatusFeed
}

func testRoster() Roster {
	return Roster{
		LocalID: 1,
		Slots: []Slot{
			{ID: 1, Name: "grubby", Team: 0, Race: "Orc"},
			{ID: 2, Name: "moon", Team: 1, Race: "Night Elf"},
			{ID: 3, Name: "happy", Team: 1, Race: "Undead"},
		},
	}
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		client: newFakeClient(),
		link:   &fakeLink{},
		queue:  NewFrameQueue(16),
		status: NewStatusFeed(),
	}
	h.sess = New(Config{
		ID:     "test-session",
		Match:  MatchInfo{ID: 42, Name: "tournament finals"},
		Node:   NodeInfo{ID: 7, Name: "eu-1", Location: "Frankfurt", Country: "DE"},
		Roster: testRoster(),
		Client: h.client,
		Queue:  h.queue,
		Status: h.status,
		Link:   h.link,
	})
	return h
}

type runResult struct {
	outcome Outcome
	err     error
}

func (h *harness) runAsync() <-chan runResult {
	ch := make(chan runResult, 1)
	go func() {
		o, err := h.sess.Run()
		ch <- runResult{o, err}
	}()
	return ch
}

func (h *harness) wait(t *testing.T, ch <-chan runResult) runResult {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(3 * time.Second):
		t.Fatal("session did not terminate")
		return runResult{}
	}
}

func scopedChatFrame(from byte, text string) protocol.Frame {
	m := &protocol.ChatToHost{
		Recipients: []byte{from},
		FromPlayer: from,
		Flags:      protocol.ChatFlagScoped,
		Scope:      uint32(from),
		Message:    text,
	}
	return m.Encode()
}

func hostChatFrame(from byte, text string) protocol.Frame {
	m := protocol.ChatFromHost{ChatToHost: protocol.ChatToHost{
		Recipients: []byte{1},
		FromPlayer: from,
		Flags:      protocol.ChatFlagScoped,
		Scope:      uint32(from),
		Message:    text,
	}}
	return m.Encode()
}

func TestRunClientDisconnect(t *testing.T) {
	h := newHarness(t)
	done := h.runAsync()

	close(h.client.in)

	r := h.wait(t, done)
	require.NoError(t, r.err)
	require.Equal(t, OutcomeDisconnected, r.outcome)
}

func TestRunLeaveHandshake(t *testing.T) {
	h := newHarness(t)
	done := h.runAsync()

	h.client.in <- protocol.LeaveAckFrame()

	r := h.wait(t, done)
	require.NoError(t, r.err)
	require.Equal(t, OutcomeLeave, r.outcome)

	// left status reported upstream, ack echoed back exactly once
	require.Equal(t, []SlotStatus{SlotStatusLeft}, h.link.slotStatuses())
	written := h.client.frames()
	require.Len(t, written, 1)
	require.Equal(t, protocol.TypeLeaveAck, written[0].Type)

	// the ack itself is not forwarded as traffic
	require.Empty(t, h.link.frames())
}

func TestRunTickCounters(t *testing.T) {
	h := newHarness(t)
	done := h.runAsync()

	for i := 0; i < 3; i++ {
		require.NoError(t, h.queue.Send(protocol.Frame{Type: protocol.TypeIncomingAction}))
	}
	for i := 0; i < 2; i++ {
		h.client.in <- protocol.Frame{Type: protocol.TypeOutgoingKeepAlive}
	}

	require.Eventually(t, func() bool {
		return h.sess.TickRecv() == 3 && h.sess.TickAck() == 2
	}, 2*time.Second, 5*time.Millisecond)

	close(h.client.in)
	h.wait(t, done)
}

func TestRunForwardsActionsInOrder(t *testing.T) {
	h := newHarness(t)
	done := h.runAsync()

	for i := byte(0); i < 10; i++ {
		require.NoError(t, h.queue.Send(protocol.Frame{
			Type:    protocol.TypeIncomingAction,
			Payload: []byte{i},
		}))
	}

	require.Eventually(t, func() bool {
		return len(h.client.frames()) == 10
	}, 2*time.Second, 5*time.Millisecond)

	for i, f := range h.client.frames() {
		require.Equal(t, protocol.TypeIncomingAction, f.Type)
		require.Equal(t, []byte{byte(i)}, f.Payload)
	}

	close(h.client.in)
	h.wait(t, done)
}

func TestRunClientActionsForwardedToNode(t *testing.T) {
	h := newHarness(t)
	done := h.runAsync()

	action := protocol.Frame{Type: protocol.TypeOutgoingAction, Payload: []byte{9, 9}}
	h.client.in <- action
	h.client.in <- protocol.Frame{Type: protocol.TypeOutgoingKeepAlive}

	require.Eventually(t, func() bool {
		return len(h.link.frames()) == 2
	}, 2*time.Second, 5*time.Millisecond)

	sent := h.link.frames()
	require.Equal(t, action, sent[0])
	require.Equal(t, protocol.TypeOutgoingKeepAlive, sent[1].Type)

	close(h.client.in)
	h.wait(t, done)
}

func TestRunChatCommandConsumedLocally(t *testing.T) {
	h := newHarness(t)
	done := h.runAsync()

	h.client.in <- scopedChatFrame(1, "!bogus")

	// the reply is routed back through the node queue and lands at the client
	require.Eventually(t, func() bool {
		return len(h.client.frames()) == 1
	}, 2*time.Second, 5*time.Millisecond)

	msg, err := protocol.DecodeChatFromHost(h.client.frames()[0].Payload)
	require.NoError(t, err)
	require.Equal(t, "Unknown command", msg.Message)
	require.Equal(t, byte(1), msg.FromPlayer)

	// the command never reaches the node
	require.Empty(t, h.link.frames())

	close(h.client.in)
	h.wait(t, done)
}

func TestRunBroadcastChatForwarded(t *testing.T) {
	h := newHarness(t)
	done := h.runAsync()

	m := &protocol.ChatToHost{
		Recipients: []byte{2, 3},
		FromPlayer: 1,
		Flags:      protocol.ChatFlagMessage,
		Message:    "!help",
	}
	h.client.in <- m.Encode()

	// broadcast text is never interpreted, even with a command prefix
	require.Eventually(t, func() bool {
		return len(h.link.frames()) == 1
	}, 2*time.Second, 5*time.Millisecond)
	require.Empty(t, h.client.frames())

	close(h.client.in)
	h.wait(t, done)
}

func TestRunMutedPlayerChatDropped(t *testing.T) {
	h := newHarness(t)
	done := h.runAsync()

	h.client.in <- scopedChatFrame(1, "!muteall")

	require.Eventually(t, func() bool {
		return h.sess.MutedCount() == 2
	}, 2*time.Second, 5*time.Millisecond)

	// drain the confirmation reply
	require.Eventually(t, func() bool {
		return len(h.client.frames()) == 1
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, h.queue.Send(hostChatFrame(2, "you there?")))
	require.NoError(t, h.queue.Send(protocol.Frame{Type: protocol.TypeIncomingAction}))

	// the action arrives, the muted player's chat does not
	require.Eventually(t, func() bool {
		return len(h.client.frames()) == 2
	}, 2*time.Second, 5*time.Millisecond)
	require.Equal(t, protocol.TypeIncomingAction, h.client.frames()[1].Type)

	close(h.client.in)
	h.wait(t, done)
}

func TestRunUndecodableHostChatForwardedWhenUnmuted(t *testing.T) {
	h := newHarness(t)
	done := h.runAsync()

	// with an empty mute set, host chat is forwarded without a parse attempt
	garbage := protocol.Frame{Type: protocol.TypeChatFromHost, Payload: []byte{0xFF}}
	require.NoError(t, h.queue.Send(garbage))

	require.Eventually(t, func() bool {
		return len(h.client.frames()) == 1
	}, 2*time.Second, 5*time.Millisecond)
	require.Equal(t, garbage, h.client.frames()[0])

	close(h.client.in)
	h.wait(t, done)
}

func TestRunUndecodableHostChatFatalWhenMuted(t *testing.T) {
	h := newHarness(t)
	done := h.runAsync()

	h.client.in <- scopedChatFrame(1, "!mute 2")
	require.Eventually(t, func() bool {
		return h.sess.MutedCount() == 1
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, h.queue.Send(protocol.Frame{Type: protocol.TypeChatFromHost, Payload: []byte{0xFF}}))

	r := h.wait(t, done)
	require.Error(t, r.err)
}

func TestRunQueueClosedIsFatal(t *testing.T) {
	h := newHarness(t)
	done := h.runAsync()

	h.queue.Close()

	r := h.wait(t, done)
	require.Error(t, r.err)
	require.True(t, errors.Is(r.err, ErrCancelled))
}

func TestRunStatusFeedClosedIsFatal(t *testing.T) {
	h := newHarness(t)
	done := h.runAsync()

	h.status.Close()

	r := h.wait(t, done)
	require.Error(t, r.err)
	require.True(t, errors.Is(r.err, ErrCancelled))
}

func TestRunStatusChangeObserved(t *testing.T) {
	h := newHarness(t)
	done := h.runAsync()

	h.status.Set(GameStatusRunning)

	// the status update does not produce client traffic and does not
	// terminate the session
	time.Sleep(50 * time.Millisecond)
	require.Empty(t, h.client.frames())

	close(h.client.in)
	r := h.wait(t, done)
	require.NoError(t, r.err)
	require.Equal(t, OutcomeDisconnected, r.outcome)
}
