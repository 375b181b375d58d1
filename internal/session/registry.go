package session

import (
	"time"

	"github.com/classpoll/classpoll-backend/internal/model"
)

// Registry tracks connected participants in insertion order. Names are the
// reconnection key: at most one record exists per name, and a rejoin under
// an existing name replaces that record in place (same list position) with
// the new connection ID.
//
// Registry is not safe for concurrent use; the Manager serializes access.
type Registry struct {
	participants []*model.Participant
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Join inserts a participant or, when the name is already present, replaces
// the existing record's connection ID and role. HasAnswered is reset and
// JoinedAt refreshed in both cases. Join never fails; name validation is a
// boundary concern.
func (r *Registry) Join(connID, name string, isTeacher bool) *model.Participant {
	p := &model.Participant{
		ID:          connID,
		Name:        name,
		IsTeacher:   isTeacher,
		HasAnswered: false,
		JoinedAt:    time.Now(),
	}
	for i, existing := range r.participants {
		if existing.Name == name {
			r.participants[i] = p
			return p
		}
	}
	r.participants = append(r.participants, p)
	return p
}

// Remove deletes the participant with the given connection ID. It reports
// whether a removal occurred and returns the removed record so callers can
// purge that connection's poll response.
func (r *Registry) Remove(connID string) (*model.Participant, bool) {
	for i, p := range r.participants {
		if p.ID == connID {
			r.participants = append(r.participants[:i], r.participants[i+1:]...)
			return p, true
		}
	}
	return nil, false
}

// Find returns the participant with the given connection ID.
func (r *Registry) Find(connID string) (*model.Participant, bool) {
	for _, p := range r.participants {
		if p.ID == connID {
			return p, true
		}
	}
	return nil, false
}

// FindByName returns the participant with the given display name.
func (r *Registry) FindByName(name string) (*model.Participant, bool) {
	for _, p := range r.participants {
		if p.Name == name {
			return p, true
		}
	}
	return nil, false
}

// Students returns the connected students in insertion order.
func (r *Registry) Students() []*model.Participant {
	students := make([]*model.Participant, 0, len(r.participants))
	for _, p := range r.participants {
		if !p.IsTeacher {
			students = append(students, p)
		}
	}
	return students
}

// All returns every participant in insertion order.
func (r *Registry) All() []*model.Participant {
	out := make([]*model.Participant, len(r.participants))
	copy(out, r.participants)
	return out
}

// ResetAnswers clears HasAnswered on every student. Called when a new poll
// starts or responses are cleared.
func (r *Registry) ResetAnswers() {
	for _, p := range r.participants {
		if !p.IsTeacher {
			p.HasAnswered = false
		}
	}
}
