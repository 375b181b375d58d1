package model

import "time"

// Participant is a connected teacher or student, keyed by connection ID.
// Name is the reconnection key: joining again under the same name replaces
// the connection ID in place instead of creating a second record.
type Participant struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	IsTeacher   bool      `json:"isTeacher"`
	HasAnswered bool      `json:"hasAnswered"`
	JoinedAt    time.Time `json:"joinedAt"`
}
