package session

import (
	"fmt"
	"time"

	"github.com/classpoll/classpoll-backend/internal/model"
)

// Eligibility reason strings surfaced to teachers.
const (
	ReasonNoActivePoll  = "No active poll"
	ReasonNoStudents    = "No students connected"
	ReasonAllAnswered   = "All students have answered"
	ReasonTimerExpired  = "Poll timer has expired"
	reasonWaitingFormat = "Waiting for %d more students to answer"
)

// Evaluate reports whether a teacher may start a new poll right now, and
// why or why not. It is a pure function of the current poll, the registry,
// and the clock; it mutates nothing.
//
// Decision order: no active poll, then no connected students, then all
// students answered, then timer expired, otherwise blocked with the count
// of students still pending.
func Evaluate(poll *model.Poll, reg *Registry, now time.Time) model.Eligibility {
	if poll == nil || !poll.IsActive {
		return model.Eligibility{CanAsk: true, Reason: ReasonNoActivePoll}
	}

	students := reg.Students()
	if len(students) == 0 {
		return model.Eligibility{CanAsk: true, Reason: ReasonNoStudents}
	}

	answered := 0
	for _, s := range students {
		if s.HasAnswered {
			answered++
		}
	}
	if answered == len(students) {
		return model.Eligibility{CanAsk: true, Reason: ReasonAllAnswered}
	}

	if poll.StartTime > 0 && poll.TimeLimitSec > 0 {
		elapsed := now.UnixMilli() - poll.StartTime
		if elapsed >= int64(poll.TimeLimitSec)*1000 {
			return model.Eligibility{CanAsk: true, Reason: ReasonTimerExpired}
		}
	}

	total := len(students)
	return model.Eligibility{
		CanAsk:        false,
		Reason:        fmt.Sprintf(reasonWaitingFormat, total-answered),
		AnsweredCount: &answered,
		TotalStudents: &total,
	}
}
