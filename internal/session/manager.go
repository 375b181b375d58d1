package session

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/classpoll/classpoll-backend/internal/model"
	ws "github.com/classpoll/classpoll-backend/internal/websocket"
)

// Broadcaster delivers state-change events to connected clients. Broadcast
// fans out to everyone; SendTo targets one connection (kick notices, join
// echoes, create errors, init snapshots). Implementations must serialize
// the payload before returning, so a payload referencing live session state
// is safe to pass from the manager goroutine.
type Broadcaster interface {
	Broadcast(event ws.Event, payload interface{})
	SendTo(connID string, event ws.Event, payload interface{})
}

// Snapshot is a consistent, detached copy of the full session state, sent
// to newly connected clients and served on the read-only HTTP endpoints.
type Snapshot struct {
	CurrentPoll      *model.Poll         `json:"currentPoll"`
	PollHistory      []*model.Poll       `json:"pollHistory"`
	Participants     []model.Participant `json:"participants"`
	ChatMessages     []model.ChatMessage `json:"chatMessages"`
	TeacherCanAskNew model.Eligibility   `json:"teacherCanAskNew"`
}

// Manager owns the session State and serializes every mutation through a
// single command channel consumed by Run. Each command runs to completion
// (mutation plus rebroadcast) before the next is taken, giving a total
// order over state changes without locks.
type Manager struct {
	state *State
	bus   Broadcaster
	log   zerolog.Logger

	commands chan func()

	// cancelWatch stops the current poll's expiry watcher. Touched only
	// from the Run goroutine.
	cancelWatch context.CancelFunc
}

// NewManager creates a Manager around the given state and broadcaster.
func NewManager(state *State, bus Broadcaster, log zerolog.Logger) *Manager {
	return &Manager{
		state:    state,
		bus:      bus,
		log:      log.With().Str("component", "session_manager").Logger(),
		commands: make(chan func(), 256),
	}
}

// Run consumes commands until ctx is cancelled. Call in a goroutine.
func (m *Manager) Run(ctx context.Context) {
	m.log.Info().Msg("Session manager started")
	for {
		select {
		case cmd := <-m.commands:
			cmd()
		case <-ctx.Done():
			m.stopExpiryWatch()
			m.log.Info().Msg("Session manager stopped")
			return
		}
	}
}

func (m *Manager) do(cmd func()) {
	m.commands <- cmd
}

// SendInit delivers the full state snapshot to a newly connected client.
func (m *Manager) SendInit(connID string) {
	m.do(func() {
		m.bus.SendTo(connID, ws.EventStateInit, m.snapshot())
	})
}

// Snapshot returns a detached copy of the session state, consistent with
// respect to the command order.
func (m *Manager) Snapshot() Snapshot {
	out := make(chan Snapshot, 1)
	m.do(func() { out <- m.snapshot() })
	return <-out
}

// Join registers or reconnects a participant and rebroadcasts the roster.
func (m *Manager) Join(connID, name string, isTeacher bool) {
	m.do(func() {
		p := m.state.Registry.Join(connID, name, isTeacher)
		m.log.Info().
			Str("conn_id", connID).
			Str("name", p.Name).
			Bool("is_teacher", p.IsTeacher).
			Msg("Participant joined")

		m.bus.SendTo(connID, ws.EventUserJoined, ws.JoinedPayload{Name: p.Name, IsTeacher: p.IsTeacher})
		m.bus.Broadcast(ws.EventParticipantsUpdate, m.state.Registry.All())
		m.bus.Broadcast(ws.EventValidationUpdate, m.state.Eligibility())
	})
}

// CreatePoll runs the create validation chain. Rejections go back to the
// requesting connection only; success broadcasts the new poll, the updated
// history, and fresh eligibility, and restarts the expiry watcher.
func (m *Manager) CreatePoll(connID string, in CreatePollInput) {
	m.do(func() {
		poll, err := m.state.CreatePoll(connID, in)
		if err != nil {
			m.log.Debug().Str("conn_id", connID).Str("reason", err.Error()).Msg("Poll creation rejected")
			m.bus.SendTo(connID, ws.EventCreateError, err.Error())
			return
		}

		m.log.Info().
			Int64("poll_id", poll.ID).
			Int("sequence", poll.Sequence).
			Int("time_limit_sec", poll.TimeLimitSec).
			Msg("Poll created")

		m.restartExpiryWatch(poll.ID)
		m.bus.Broadcast(ws.EventPollStarted, poll)
		m.bus.Broadcast(ws.EventHistoryUpdate, m.state.History)
		m.bus.Broadcast(ws.EventValidationUpdate, m.state.Eligibility())
	})
}

// EndPoll deactivates and archives the current poll. No-op when nothing is
// active.
func (m *Manager) EndPoll(connID string) {
	m.do(func() {
		poll, ok := m.state.EndPoll()
		if !ok {
			return
		}
		m.stopExpiryWatch()
		m.log.Info().Int64("poll_id", poll.ID).Str("conn_id", connID).Msg("Poll ended")

		m.bus.Broadcast(ws.EventPollEnded, poll)
		m.bus.Broadcast(ws.EventHistoryUpdate, m.state.History)
		m.bus.Broadcast(ws.EventValidationUpdate, m.state.Eligibility())
	})
}

// ClearResponses wipes the current poll's tallies without archiving it, so
// the teacher can restart the same question.
func (m *Manager) ClearResponses(connID string) {
	m.do(func() {
		if !m.state.ClearResponses() {
			return
		}
		m.log.Info().Str("conn_id", connID).Msg("Responses cleared")

		m.bus.Broadcast(ws.EventPollCleared, nil)
		m.bus.Broadcast(ws.EventPollUpdate, m.state.CurrentPoll)
		m.bus.Broadcast(ws.EventParticipantsUpdate, m.state.Registry.All())
		m.bus.Broadcast(ws.EventValidationUpdate, m.state.Eligibility())
	})
}

// RecordAnswer stores a student's answer and rebroadcasts tallies. Stale
// or duplicate submissions are ignored without surfacing an error; they
// are expected races between client timers and server state.
func (m *Manager) RecordAnswer(connID string, pollID int64, optionID int) {
	m.do(func() {
		if !m.state.RecordAnswer(connID, pollID, optionID) {
			m.log.Debug().
				Str("conn_id", connID).
				Int64("poll_id", pollID).
				Int("option_id", optionID).
				Msg("Ignored stale answer")
			return
		}

		m.bus.Broadcast(ws.EventPollUpdate, m.state.CurrentPoll)
		m.bus.Broadcast(ws.EventParticipantsUpdate, m.state.Registry.All())
		m.bus.Broadcast(ws.EventValidationUpdate, m.state.Eligibility())
	})
}

// Kick removes a student at a teacher's request. The kicked connection
// gets a unicast notice; everyone else sees the roster and tallies shrink.
func (m *Manager) Kick(connID, targetID string) {
	m.do(func() {
		requester, ok := m.state.Registry.Find(connID)
		if !ok || !requester.IsTeacher {
			return
		}
		target, ok := m.state.Registry.Find(targetID)
		if !ok || target.IsTeacher {
			return
		}

		m.state.Registry.Remove(targetID)
		m.state.PurgeResponse(targetID)
		m.log.Info().Str("name", target.Name).Str("conn_id", targetID).Msg("Participant kicked")

		m.bus.SendTo(targetID, ws.EventUserKicked, nil)
		m.bus.Broadcast(ws.EventParticipantsUpdate, m.state.Registry.All())
		if m.state.CurrentPoll != nil {
			m.bus.Broadcast(ws.EventPollUpdate, m.state.CurrentPoll)
		}
		m.bus.Broadcast(ws.EventValidationUpdate, m.state.Eligibility())
	})
}

// Chat appends a chat message and broadcasts it.
func (m *Manager) Chat(connID, message string) {
	m.do(func() {
		msg, ok := m.state.AddChat(connID, message)
		if !ok {
			return
		}
		m.bus.Broadcast(ws.EventChatNew, msg)
	})
}

// Disconnect cleans up after a dropped connection: the participant record
// goes away and their response, if any, is purged so tallies reflect who
// is actually present. Unknown connections are a structural no-op.
func (m *Manager) Disconnect(connID string) {
	m.do(func() {
		removed, ok := m.state.Registry.Remove(connID)
		if !ok {
			return
		}
		m.state.PurgeResponse(connID)
		m.log.Info().
			Str("name", removed.Name).
			Str("conn_id", connID).
			Bool("had_answered", removed.HasAnswered).
			Msg("Participant disconnected")

		m.bus.Broadcast(ws.EventParticipantsUpdate, m.state.Registry.All())
		if m.state.CurrentPoll != nil {
			m.bus.Broadcast(ws.EventPollUpdate, m.state.CurrentPoll)
		}
		m.bus.Broadcast(ws.EventValidationUpdate, m.state.Eligibility())
	})
}

// ─── Expiry watcher ─────────────────────────────────────────────────

// restartExpiryWatch replaces the previous poll's watcher with one for the
// given poll. Exactly one watcher is live per active poll; creating many
// polls never accumulates tickers.
func (m *Manager) restartExpiryWatch(pollID int64) {
	m.stopExpiryWatch()
	ctx, cancel := context.WithCancel(context.Background())
	m.cancelWatch = cancel
	go m.watchExpiry(ctx, pollID)
}

func (m *Manager) stopExpiryWatch() {
	if m.cancelWatch != nil {
		m.cancelWatch()
		m.cancelWatch = nil
	}
}

// watchExpiry ticks once per second and posts an expiry check onto the
// command channel, so the check itself runs serialized with every other
// mutation. The watcher stops when the poll is no longer the active one or
// once expiry has been observed and broadcast.
func (m *Manager) watchExpiry(ctx context.Context, pollID int64) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			done := make(chan bool, 1)
			m.do(func() { done <- m.checkExpiry(pollID) })
			select {
			case stop := <-done:
				if stop {
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}
}

// checkExpiry runs on the Run goroutine. Expiry only changes what the
// eligibility evaluator reports — the poll stays active and keeps
// accepting late answers until the teacher acts.
func (m *Manager) checkExpiry(pollID int64) bool {
	cur := m.state.CurrentPoll
	if cur == nil || !cur.IsActive || cur.ID != pollID {
		return true
	}

	elapsed := time.Now().UnixMilli() - cur.StartTime
	if elapsed < int64(cur.TimeLimitSec)*1000 {
		return false
	}

	m.log.Info().Int64("poll_id", pollID).Msg("Poll timer expired")
	m.bus.Broadcast(ws.EventValidationUpdate, m.state.Eligibility())
	return true
}

// snapshot builds a detached copy of the state. Runs on the Run goroutine.
func (m *Manager) snapshot() Snapshot {
	var cur *model.Poll
	if m.state.CurrentPoll != nil {
		cur = m.state.CurrentPoll.Clone()
	}

	// History entries are immutable after archival; copying the slice is
	// enough.
	hist := make([]*model.Poll, len(m.state.History))
	copy(hist, m.state.History)

	live := m.state.Registry.All()
	parts := make([]model.Participant, len(live))
	for i, p := range live {
		parts[i] = *p
	}

	chat := make([]model.ChatMessage, len(m.state.Chat))
	copy(chat, m.state.Chat)

	return Snapshot{
		CurrentPoll:      cur,
		PollHistory:      hist,
		Participants:     parts,
		ChatMessages:     chat,
		TeacherCanAskNew: m.state.Eligibility(),
	}
}
