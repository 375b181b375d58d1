package websocket

import "encoding/json"

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventStateInit          Event = "state:init"
	EventParticipantsUpdate Event = "participants:update"
	EventPollStarted        Event = "poll:started"
	EventPollUpdate         Event = "poll:update"
	EventPollEnded          Event = "poll:ended"
	EventPollCleared        Event = "poll:cleared"
	EventHistoryUpdate      Event = "history:update"
	EventChatNew            Event = "chat:new"
	EventValidationUpdate   Event = "teacher:validation_update"
	EventUserKicked         Event = "user:kicked"
	EventUserJoined         Event = "user:joined"
	EventCreateError        Event = "teacher:create_error"
	EventError              Event = "error"
)

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionJoin           Action = "user:join"
	ActionCreatePoll     Action = "teacher:create_poll"
	ActionEndPoll        Action = "teacher:end_poll"
	ActionClearResponses Action = "teacher:clear_responses"
	ActionKick           Action = "teacher:kick"
	ActionAnswer         Action = "student:answer"
	ActionChat           Action = "chat:message"
)

// Envelope frames every message in both directions. Data holds the
// event-specific payload and is absent for signal-only events.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// JoinRequest declares a participant's name and role. The role is
// client-declared; there is no authentication beyond it.
type JoinRequest struct {
	Name      string `json:"name" validate:"required"`
	IsTeacher bool   `json:"isTeacher"`
}

// OptionInput is one answer choice in a create request.
type OptionInput struct {
	Text string `json:"text"`
}

// CreatePollRequest is a teacher's request to start a new poll. Semantic
// validation (question text, option count, correct markers) is the state
// machine's job, so the teacher sees its distinct rejection reasons; only
// the JSON shape is checked at the boundary.
type CreatePollRequest struct {
	Question         string        `json:"question"`
	Options          []OptionInput `json:"options"`
	TimeLimitSec     int           `json:"timeLimitSec"`
	CorrectOptionIDs []int         `json:"correctOptionIds"`
}

// AnswerRequest is a student's answer submission for one poll.
type AnswerRequest struct {
	PollID   int64 `json:"pollId" validate:"required"`
	OptionID int   `json:"optionId" validate:"required,min=1"`
}

// KickRequest asks the server to remove a student by connection ID.
type KickRequest struct {
	UserID string `json:"userId" validate:"required"`
}

// ChatRequest carries one chat message.
type ChatRequest struct {
	Message string `json:"message" validate:"required"`
}

// JoinedPayload echoes an accepted join back to that connection only.
type JoinedPayload struct {
	Name      string `json:"name"`
	IsTeacher bool   `json:"isTeacher"`
}

// ErrorPayload reports a boundary rejection (malformed or invalid payload)
// back to the offending connection.
type ErrorPayload struct {
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}
