package session

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classpoll/classpoll-backend/internal/model"
	ws "github.com/classpoll/classpoll-backend/internal/websocket"
)

type recordedMsg struct {
	event  ws.Event
	connID string // empty for broadcasts
	frame  []byte
}

// recordingBus captures every bus call with its payload serialized at call
// time, honoring the Broadcaster contract.
type recordingBus struct {
	mu   sync.Mutex
	msgs []recordedMsg
}

func (b *recordingBus) Broadcast(event ws.Event, payload interface{}) {
	frame, _ := ws.Marshal(event, payload)
	b.mu.Lock()
	b.msgs = append(b.msgs, recordedMsg{event: event, frame: frame})
	b.mu.Unlock()
}

func (b *recordingBus) SendTo(connID string, event ws.Event, payload interface{}) {
	frame, _ := ws.Marshal(event, payload)
	b.mu.Lock()
	b.msgs = append(b.msgs, recordedMsg{event: event, connID: connID, frame: frame})
	b.mu.Unlock()
}

func (b *recordingBus) all() []recordedMsg {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]recordedMsg, len(b.msgs))
	copy(out, b.msgs)
	return out
}

func (b *recordingBus) broadcastEvents() []ws.Event {
	var out []ws.Event
	for _, m := range b.all() {
		if m.connID == "" {
			out = append(out, m.event)
		}
	}
	return out
}

func (b *recordingBus) last(event ws.Event) (recordedMsg, bool) {
	msgs := b.all()
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].event == event {
			return msgs[i], true
		}
	}
	return recordedMsg{}, false
}

func (b *recordingBus) reset() {
	b.mu.Lock()
	b.msgs = nil
	b.mu.Unlock()
}

func decodeData(t *testing.T, frame []byte, v interface{}) {
	t.Helper()
	var env ws.Envelope
	require.NoError(t, json.Unmarshal(frame, &env))
	require.NoError(t, json.Unmarshal(env.Data, v))
}

func newTestManager(t *testing.T) (*Manager, *recordingBus) {
	t.Helper()
	bus := &recordingBus{}
	m := NewManager(NewState(60, 100), bus, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go m.Run(ctx)
	return m, bus
}

// drain flushes the command queue. Snapshot is served by the same Run
// loop, so once it returns every prior command has completed.
func drain(m *Manager) Snapshot {
	return m.Snapshot()
}

func TestManagerJoin(t *testing.T) {
	m, bus := newTestManager(t)

	m.Join("conn-t", "Ms. Smith", true)
	snap := drain(m)

	require.Len(t, snap.Participants, 1)
	assert.Equal(t, "Ms. Smith", snap.Participants[0].Name)

	echo, ok := bus.last(ws.EventUserJoined)
	require.True(t, ok)
	assert.Equal(t, "conn-t", echo.connID)
	var joined ws.JoinedPayload
	decodeData(t, echo.frame, &joined)
	assert.True(t, joined.IsTeacher)

	assert.Contains(t, bus.broadcastEvents(), ws.EventParticipantsUpdate)
	assert.Contains(t, bus.broadcastEvents(), ws.EventValidationUpdate)
}

func TestManagerSendInit(t *testing.T) {
	m, bus := newTestManager(t)
	m.Join("conn-t", "Ms. Smith", true)

	m.SendInit("conn-new")
	drain(m)

	msg, ok := bus.last(ws.EventStateInit)
	require.True(t, ok)
	assert.Equal(t, "conn-new", msg.connID)

	var snap Snapshot
	decodeData(t, msg.frame, &snap)
	assert.Nil(t, snap.CurrentPoll)
	require.Len(t, snap.Participants, 1)
	assert.True(t, snap.TeacherCanAskNew.CanAsk)
}

func TestManagerCreateRejectionIsUnicast(t *testing.T) {
	m, bus := newTestManager(t)
	m.Join("conn-1", "Alice", false)
	drain(m)
	bus.reset()

	m.CreatePoll("conn-1", CreatePollInput{
		Question:         "Q?",
		Options:          []string{"A", "B"},
		CorrectOptionIDs: []int{1},
	})
	snap := drain(m)

	assert.Nil(t, snap.CurrentPoll)
	msg, ok := bus.last(ws.EventCreateError)
	require.True(t, ok)
	assert.Equal(t, "conn-1", msg.connID)

	var reason string
	decodeData(t, msg.frame, &reason)
	assert.Equal(t, string(RejectNotTeacher), reason)

	assert.Empty(t, bus.broadcastEvents(), "a rejected create broadcasts nothing")
}

func TestManagerCreateBroadcastOrder(t *testing.T) {
	m, bus := newTestManager(t)
	m.Join("conn-t", "Ms. Smith", true)
	drain(m)
	bus.reset()

	m.CreatePoll("conn-t", CreatePollInput{
		Question:         "Capital of France?",
		Options:          []string{"Paris", "London"},
		CorrectOptionIDs: []int{1},
	})
	snap := drain(m)

	require.NotNil(t, snap.CurrentPoll)
	assert.Equal(t, []ws.Event{
		ws.EventPollStarted,
		ws.EventHistoryUpdate,
		ws.EventValidationUpdate,
	}, bus.broadcastEvents())

	started, _ := bus.last(ws.EventPollStarted)
	var poll model.Poll
	decodeData(t, started.frame, &poll)
	assert.Equal(t, snap.CurrentPoll.ID, poll.ID)
	assert.True(t, poll.IsActive)
}

func TestManagerAnswerFlow(t *testing.T) {
	m, bus := newTestManager(t)
	m.Join("conn-t", "Ms. Smith", true)
	m.Join("conn-1", "Alice", false)
	m.Join("conn-2", "Bob", false)
	m.CreatePoll("conn-t", CreatePollInput{
		Question:         "Q?",
		Options:          []string{"A", "B"},
		CorrectOptionIDs: []int{2},
	})
	snap := drain(m)
	require.NotNil(t, snap.CurrentPoll)
	pollID := snap.CurrentPoll.ID
	bus.reset()

	m.RecordAnswer("conn-1", pollID, 1)
	drain(m)

	assert.Equal(t, []ws.Event{
		ws.EventPollUpdate,
		ws.EventParticipantsUpdate,
		ws.EventValidationUpdate,
	}, bus.broadcastEvents())

	validation, _ := bus.last(ws.EventValidationUpdate)
	var elig model.Eligibility
	decodeData(t, validation.frame, &elig)
	assert.False(t, elig.CanAsk)
	assert.Equal(t, "Waiting for 1 more students to answer", elig.Reason)

	// Second student answers; eligibility flips to all-answered.
	m.RecordAnswer("conn-2", pollID, 2)
	snap = drain(m)
	require.Len(t, snap.CurrentPoll.Responses, 2)

	validation, _ = bus.last(ws.EventValidationUpdate)
	decodeData(t, validation.frame, &elig)
	assert.True(t, elig.CanAsk)
	assert.Equal(t, ReasonAllAnswered, elig.Reason)
}

func TestManagerStaleAnswerBroadcastsNothing(t *testing.T) {
	m, bus := newTestManager(t)
	m.Join("conn-1", "Alice", false)
	drain(m)
	bus.reset()

	m.RecordAnswer("conn-1", 12345, 1)
	drain(m)
	assert.Empty(t, bus.broadcastEvents())
}

func TestManagerEndPoll(t *testing.T) {
	m, bus := newTestManager(t)
	m.Join("conn-t", "Ms. Smith", true)
	m.CreatePoll("conn-t", CreatePollInput{
		Question:         "Q?",
		Options:          []string{"A", "B"},
		CorrectOptionIDs: []int{1},
	})
	drain(m)
	bus.reset()

	m.EndPoll("conn-t")
	snap := drain(m)

	assert.False(t, snap.CurrentPoll.IsActive)
	require.Len(t, snap.PollHistory, 1)
	assert.Equal(t, []ws.Event{
		ws.EventPollEnded,
		ws.EventHistoryUpdate,
		ws.EventValidationUpdate,
	}, bus.broadcastEvents())

	// Ending again is a structural no-op.
	bus.reset()
	m.EndPoll("conn-t")
	drain(m)
	assert.Empty(t, bus.broadcastEvents())
}

func TestManagerClearResponses(t *testing.T) {
	m, bus := newTestManager(t)
	m.Join("conn-t", "Ms. Smith", true)
	m.Join("conn-1", "Alice", false)
	m.CreatePoll("conn-t", CreatePollInput{
		Question:         "Q?",
		Options:          []string{"A", "B"},
		CorrectOptionIDs: []int{1},
	})
	snap := drain(m)
	m.RecordAnswer("conn-1", snap.CurrentPoll.ID, 1)
	drain(m)
	bus.reset()

	m.ClearResponses("conn-t")
	snap = drain(m)

	assert.Empty(t, snap.CurrentPoll.Responses)
	assert.True(t, snap.CurrentPoll.IsActive)
	assert.Equal(t, []ws.Event{
		ws.EventPollCleared,
		ws.EventPollUpdate,
		ws.EventParticipantsUpdate,
		ws.EventValidationUpdate,
	}, bus.broadcastEvents())

	cleared, _ := bus.last(ws.EventPollCleared)
	assert.NotContains(t, string(cleared.frame), `"data"`, "signal-only event carries no payload")
}

func TestManagerKick(t *testing.T) {
	m, bus := newTestManager(t)
	m.Join("conn-t", "Ms. Smith", true)
	m.Join("conn-1", "Alice", false)
	m.CreatePoll("conn-t", CreatePollInput{
		Question:         "Q?",
		Options:          []string{"A", "B"},
		CorrectOptionIDs: []int{1},
	})
	snap := drain(m)
	m.RecordAnswer("conn-1", snap.CurrentPoll.ID, 1)
	drain(m)
	bus.reset()

	m.Kick("conn-t", "conn-1")
	snap = drain(m)

	require.Len(t, snap.Participants, 1)
	assert.Equal(t, "Ms. Smith", snap.Participants[0].Name)
	assert.Empty(t, snap.CurrentPoll.Responses, "kicked student's answer is purged")

	notice, ok := bus.last(ws.EventUserKicked)
	require.True(t, ok)
	assert.Equal(t, "conn-1", notice.connID)
	assert.Contains(t, bus.broadcastEvents(), ws.EventPollUpdate)
}

func TestManagerKickAuthorization(t *testing.T) {
	m, bus := newTestManager(t)
	m.Join("conn-t", "Ms. Smith", true)
	m.Join("conn-1", "Alice", false)
	m.Join("conn-2", "Bob", false)
	drain(m)
	bus.reset()

	// Students cannot kick, and teachers cannot be kicked.
	m.Kick("conn-1", "conn-2")
	m.Kick("conn-t", "conn-t")
	snap := drain(m)

	assert.Len(t, snap.Participants, 3)
	_, ok := bus.last(ws.EventUserKicked)
	assert.False(t, ok)
}

func TestManagerDisconnectPurgesResponse(t *testing.T) {
	m, bus := newTestManager(t)
	m.Join("conn-t", "Ms. Smith", true)
	m.Join("conn-1", "Alice", false)
	m.CreatePoll("conn-t", CreatePollInput{
		Question:         "Q?",
		Options:          []string{"A", "B"},
		CorrectOptionIDs: []int{1},
	})
	snap := drain(m)
	m.RecordAnswer("conn-1", snap.CurrentPoll.ID, 1)
	drain(m)
	bus.reset()

	m.Disconnect("conn-1")
	snap = drain(m)

	require.Len(t, snap.Participants, 1)
	assert.Empty(t, snap.CurrentPoll.Responses)

	validation, _ := bus.last(ws.EventValidationUpdate)
	var elig model.Eligibility
	decodeData(t, validation.frame, &elig)
	assert.True(t, elig.CanAsk)
	assert.Equal(t, ReasonNoStudents, elig.Reason)

	// Unknown connections disconnect silently.
	bus.reset()
	m.Disconnect("conn-ghost")
	drain(m)
	assert.Empty(t, bus.broadcastEvents())
}

func TestManagerChat(t *testing.T) {
	m, bus := newTestManager(t)
	m.Join("conn-1", "Alice", false)
	drain(m)
	bus.reset()

	m.Chat("conn-1", "hello")
	snap := drain(m)

	require.Len(t, snap.ChatMessages, 1)
	msg, ok := bus.last(ws.EventChatNew)
	require.True(t, ok)
	var chat model.ChatMessage
	decodeData(t, msg.frame, &chat)
	assert.Equal(t, "Alice", chat.SenderName)
	assert.Equal(t, "hello", chat.Message)

	bus.reset()
	m.Chat("conn-ghost", "hi")
	drain(m)
	assert.Empty(t, bus.broadcastEvents())
}

func TestManagerExpiryBroadcast(t *testing.T) {
	m, bus := newTestManager(t)
	m.Join("conn-t", "Ms. Smith", true)
	m.Join("conn-1", "Alice", false)
	m.CreatePoll("conn-t", CreatePollInput{
		Question:         "Q?",
		Options:          []string{"A", "B"},
		TimeLimitSec:     1,
		CorrectOptionIDs: []int{1},
	})
	snap := drain(m)
	require.NotNil(t, snap.CurrentPoll)
	pollID := snap.CurrentPoll.ID

	require.Eventually(t, func() bool {
		msg, ok := bus.last(ws.EventValidationUpdate)
		if !ok {
			return false
		}
		var elig model.Eligibility
		var env ws.Envelope
		if json.Unmarshal(msg.frame, &env) != nil || json.Unmarshal(env.Data, &elig) != nil {
			return false
		}
		return elig.CanAsk && elig.Reason == ReasonTimerExpired
	}, 5*time.Second, 50*time.Millisecond, "expiry tick must broadcast an eligibility flip")

	// The poll itself stays active; a late answer still lands.
	m.RecordAnswer("conn-1", pollID, 2)
	snap = drain(m)
	assert.True(t, snap.CurrentPoll.IsActive)
	assert.Len(t, snap.CurrentPoll.Responses, 1)
}
