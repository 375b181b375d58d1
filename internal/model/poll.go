package model

// PollOption is a single answer choice. IDs are 1-based in creation order
// and stable for the poll's lifetime.
type PollOption struct {
	ID        int    `json:"id"`
	Text      string `json:"text"`
	IsCorrect bool   `json:"isCorrect"`
}

// PollResponse is one student's submitted answer, keyed in Poll.Responses
// by connection ID. The name is snapshotted at submission time so history
// stays readable after the student disconnects.
type PollResponse struct {
	OptionID        int    `json:"optionId"`
	ParticipantName string `json:"participantName"`
	Timestamp       int64  `json:"timestamp"`
}

// Poll is the single current poll or an archived history entry.
// Timestamps are millisecond epoch to match the wire protocol.
type Poll struct {
	ID           int64                   `json:"id"`
	Sequence     int                     `json:"sequence"`
	Question     string                  `json:"question"`
	Options      []PollOption            `json:"options"`
	TimeLimitSec int                     `json:"timeLimitSec"`
	StartTime    int64                   `json:"startTime"`
	EndTime      int64                   `json:"endTime,omitempty"`
	Responses    map[string]PollResponse `json:"responses"`
	IsActive     bool                    `json:"isActive"`
}

// Clone returns a deep copy. History archives clones so that later
// mutations of the live poll can never touch an archived entry.
func (p *Poll) Clone() *Poll {
	cp := *p
	cp.Options = make([]PollOption, len(p.Options))
	copy(cp.Options, p.Options)
	cp.Responses = make(map[string]PollResponse, len(p.Responses))
	for id, r := range p.Responses {
		cp.Responses[id] = r
	}
	return &cp
}

// Eligibility is the Evaluator verdict on whether a teacher may start a
// new poll right now. AnsweredCount and TotalStudents are only present
// when CanAsk is false.
type Eligibility struct {
	CanAsk        bool   `json:"canAsk"`
	Reason        string `json:"reason"`
	AnsweredCount *int   `json:"answeredCount,omitempty"`
	TotalStudents *int   `json:"totalStudents,omitempty"`
}
