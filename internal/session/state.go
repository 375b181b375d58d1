package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/classpoll/classpoll-backend/internal/model"
)

// Rejection is a user-correctable reason for refusing an operation. It is
// sent back verbatim to the requesting teacher and never logged as a fault.
type Rejection string

func (r Rejection) Error() string { return string(r) }

// Fixed rejection reasons for poll creation. The waiting-for-students
// reason is built dynamically with the pending count.
const (
	RejectNotTeacher    Rejection = "Only teachers can create polls."
	RejectEmptyQuestion Rejection = "Question cannot be empty."
	RejectBadOptions    Rejection = "At least two non-empty options are required."
	RejectCorrectCount  Rejection = "Exactly one correct answer must be selected."
)

// CreatePollInput carries a teacher's create request into the state machine.
type CreatePollInput struct {
	Question         string
	Options          []string
	TimeLimitSec     int
	CorrectOptionIDs []int
}

// State is the single process-wide polling context: current poll, history,
// participant registry, and chat log. It is constructed once at startup and
// owned by the Manager, which serializes every mutation; State itself is
// not safe for concurrent use.
type State struct {
	Registry    *Registry
	CurrentPoll *model.Poll
	History     []*model.Poll
	Chat        []model.ChatMessage

	sequence   int
	lastPollID int64
	lastChatID int64

	defaultTimeLimitSec int
	chatLimit           int

	now func() time.Time
}

// NewState creates an empty State. defaultTimeLimitSec applies when a
// create request omits a time limit; chatLimit bounds the retained chat log
// (0 means unbounded).
func NewState(defaultTimeLimitSec, chatLimit int) *State {
	return &State{
		Registry:            NewRegistry(),
		defaultTimeLimitSec: defaultTimeLimitSec,
		chatLimit:           chatLimit,
		now:                 time.Now,
	}
}

// Eligibility recomputes whether a new poll may start right now.
func (s *State) Eligibility() model.Eligibility {
	return Evaluate(s.CurrentPoll, s.Registry, s.now())
}

// CreatePoll validates a teacher request and, on success, installs a new
// active poll, superseding (and archiving) any currently active one. The
// checks run in order and short-circuit with a distinct Rejection; nothing
// is mutated on a rejected request.
//
// This is the one place the option invariants (at least two options,
// exactly one correct) are enforced.
func (s *State) CreatePoll(requesterID string, in CreatePollInput) (*model.Poll, error) {
	requester, ok := s.Registry.Find(requesterID)
	if !ok || !requester.IsTeacher {
		return nil, RejectNotTeacher
	}

	if elig := s.Eligibility(); !elig.CanAsk {
		pending := *elig.TotalStudents - *elig.AnsweredCount
		return nil, Rejection(fmt.Sprintf(
			"Cannot create new poll. Waiting for %d more students to answer.", pending))
	}

	if strings.TrimSpace(in.Question) == "" {
		return nil, RejectEmptyQuestion
	}
	if len(in.Options) < 2 {
		return nil, RejectBadOptions
	}
	for _, text := range in.Options {
		if strings.TrimSpace(text) == "" {
			return nil, RejectBadOptions
		}
	}
	if len(in.CorrectOptionIDs) != 1 {
		return nil, RejectCorrectCount
	}
	correctID := in.CorrectOptionIDs[0]
	if correctID < 1 || correctID > len(in.Options) {
		return nil, RejectCorrectCount
	}

	if s.CurrentPoll != nil && s.CurrentPoll.IsActive {
		s.archive(s.CurrentPoll)
	}

	options := make([]model.PollOption, len(in.Options))
	for i, text := range in.Options {
		options[i] = model.PollOption{
			ID:        i + 1,
			Text:      text,
			IsCorrect: i+1 == correctID,
		}
	}

	limit := in.TimeLimitSec
	if limit <= 0 {
		limit = s.defaultTimeLimitSec
	}

	s.sequence++
	s.CurrentPoll = &model.Poll{
		ID:           s.nextPollID(),
		Sequence:     s.sequence,
		Question:     in.Question,
		Options:      options,
		TimeLimitSec: limit,
		StartTime:    s.now().UnixMilli(),
		Responses:    make(map[string]model.PollResponse),
		IsActive:     true,
	}
	s.Registry.ResetAnswers()

	return s.CurrentPoll, nil
}

// EndPoll deactivates the current poll, stamps its end time, and archives a
// snapshot to history. Structural no-op when no poll is active.
func (s *State) EndPoll() (*model.Poll, bool) {
	if s.CurrentPoll == nil || !s.CurrentPoll.IsActive {
		return nil, false
	}
	s.archive(s.CurrentPoll)
	return s.CurrentPoll, true
}

// ClearResponses empties the current poll's responses and resets every
// student's HasAnswered, leaving IsActive, StartTime, sequence, and option
// IDs untouched. Nothing is archived. Lets a teacher restart tallying on
// the same question.
func (s *State) ClearResponses() bool {
	if s.CurrentPoll == nil {
		return false
	}
	s.CurrentPoll.Responses = make(map[string]model.PollResponse)
	s.Registry.ResetAnswers()
	return true
}

// RecordAnswer stores a student's answer on the current poll. The false
// cases are expected races between client UI state and server state, not
// faults: no poll, inactive poll, stale poll ID, an option ID the poll
// never had, unknown connection, teacher connection, or a duplicate
// answer. A student's first stored answer is final; only ClearResponses
// can retract it (for everyone).
func (s *State) RecordAnswer(connID string, pollID int64, optionID int) bool {
	if s.CurrentPoll == nil || !s.CurrentPoll.IsActive || s.CurrentPoll.ID != pollID {
		return false
	}
	if optionID < 1 || optionID > len(s.CurrentPoll.Options) {
		return false
	}
	p, ok := s.Registry.Find(connID)
	if !ok || p.IsTeacher || p.HasAnswered {
		return false
	}
	s.CurrentPoll.Responses[connID] = model.PollResponse{
		OptionID:        optionID,
		ParticipantName: p.Name,
		Timestamp:       s.now().UnixMilli(),
	}
	p.HasAnswered = true
	return true
}

// PurgeResponse removes a connection's entry from the current poll's
// responses, if present. Called on disconnect and kick so tallies and
// eligibility stay consistent with who is actually present.
func (s *State) PurgeResponse(connID string) bool {
	if s.CurrentPoll == nil {
		return false
	}
	if _, ok := s.CurrentPoll.Responses[connID]; !ok {
		return false
	}
	delete(s.CurrentPoll.Responses, connID)
	return true
}

// AddChat appends a chat message with the sender's name snapshotted.
// Messages from unknown connections are dropped.
func (s *State) AddChat(connID, message string) (model.ChatMessage, bool) {
	sender, ok := s.Registry.Find(connID)
	if !ok {
		return model.ChatMessage{}, false
	}

	id := s.now().UnixMilli()
	if id <= s.lastChatID {
		id = s.lastChatID + 1
	}
	s.lastChatID = id

	msg := model.ChatMessage{
		ID:         id,
		SenderID:   connID,
		SenderName: sender.Name,
		Message:    message,
		Timestamp:  s.now().UnixMilli(),
	}
	s.Chat = append(s.Chat, msg)
	if s.chatLimit > 0 && len(s.Chat) > s.chatLimit {
		s.Chat = s.Chat[len(s.Chat)-s.chatLimit:]
	}
	return msg, true
}

// archive marks the poll inactive, stamps its end time, and prepends a deep
// copy to history (most-recent-first). Archived entries never mutate.
func (s *State) archive(p *model.Poll) {
	p.IsActive = false
	p.EndTime = s.now().UnixMilli()
	s.History = append([]*model.Poll{p.Clone()}, s.History...)
}

// nextPollID returns a millisecond-epoch ID, bumped past the previous one
// so IDs stay distinct for polls created within the same millisecond.
func (s *State) nextPollID() int64 {
	id := s.now().UnixMilli()
	if id <= s.lastPollID {
		id = s.lastPollID + 1
	}
	s.lastPollID = id
	return id
}
