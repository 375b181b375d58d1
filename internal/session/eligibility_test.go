package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classpoll/classpoll-backend/internal/model"
)

func activePoll(startedAgo time.Duration, limitSec int) *model.Poll {
	return &model.Poll{
		ID:           1,
		Question:     "Q?",
		TimeLimitSec: limitSec,
		StartTime:    time.Now().Add(-startedAgo).UnixMilli(),
		Responses:    map[string]model.PollResponse{},
		IsActive:     true,
	}
}

func TestEvaluateNoActivePoll(t *testing.T) {
	reg := NewRegistry()
	reg.Join("conn-1", "Alice", false)

	elig := Evaluate(nil, reg, time.Now())
	assert.True(t, elig.CanAsk)
	assert.Equal(t, ReasonNoActivePoll, elig.Reason)

	ended := activePoll(time.Second, 60)
	ended.IsActive = false
	elig = Evaluate(ended, reg, time.Now())
	assert.True(t, elig.CanAsk)
	assert.Equal(t, ReasonNoActivePoll, elig.Reason)
}

func TestEvaluateNoStudents(t *testing.T) {
	reg := NewRegistry()
	reg.Join("conn-t", "Ms. Smith", true)

	elig := Evaluate(activePoll(time.Second, 60), reg, time.Now())
	assert.True(t, elig.CanAsk)
	assert.Equal(t, ReasonNoStudents, elig.Reason)
}

func TestEvaluateAllAnswered(t *testing.T) {
	reg := NewRegistry()
	reg.Join("conn-1", "Alice", false).HasAnswered = true
	reg.Join("conn-2", "Bob", false).HasAnswered = true

	// All answered wins regardless of elapsed time.
	elig := Evaluate(activePoll(2*time.Hour, 60), reg, time.Now())
	assert.True(t, elig.CanAsk)
	assert.Equal(t, ReasonAllAnswered, elig.Reason)
}

func TestEvaluateTimerExpired(t *testing.T) {
	reg := NewRegistry()
	reg.Join("conn-1", "Alice", false)

	elig := Evaluate(activePoll(61*time.Second, 60), reg, time.Now())
	assert.True(t, elig.CanAsk)
	assert.Equal(t, ReasonTimerExpired, elig.Reason)
}

func TestEvaluateWaitingForStudents(t *testing.T) {
	reg := NewRegistry()
	reg.Join("conn-1", "Alice", false).HasAnswered = true
	reg.Join("conn-2", "Bob", false)
	reg.Join("conn-3", "Carol", false)

	elig := Evaluate(activePoll(time.Second, 60), reg, time.Now())
	assert.False(t, elig.CanAsk)
	assert.Equal(t, "Waiting for 2 more students to answer", elig.Reason)
	require.NotNil(t, elig.AnsweredCount)
	require.NotNil(t, elig.TotalStudents)
	assert.Equal(t, 1, *elig.AnsweredCount)
	assert.Equal(t, 3, *elig.TotalStudents)
}

func TestEvaluateStudentDisconnectFlipsToNoStudents(t *testing.T) {
	reg := NewRegistry()
	reg.Join("conn-1", "Alice", false)
	poll := activePoll(time.Second, 60)

	elig := Evaluate(poll, reg, time.Now())
	assert.False(t, elig.CanAsk)

	reg.Remove("conn-1")
	elig = Evaluate(poll, reg, time.Now())
	assert.True(t, elig.CanAsk)
	assert.Equal(t, ReasonNoStudents, elig.Reason)
}
