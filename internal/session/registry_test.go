package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryJoinAndFind(t *testing.T) {
	r := NewRegistry()

	p := r.Join("conn-1", "Alice", true)
	assert.Equal(t, "conn-1", p.ID)
	assert.True(t, p.IsTeacher)
	assert.False(t, p.HasAnswered)
	assert.False(t, p.JoinedAt.IsZero())

	found, ok := r.Find("conn-1")
	require.True(t, ok)
	assert.Equal(t, "Alice", found.Name)

	_, ok = r.Find("conn-2")
	assert.False(t, ok)

	byName, ok := r.FindByName("Alice")
	require.True(t, ok)
	assert.Equal(t, "conn-1", byName.ID)
}

func TestRegistryReconnectMergesByName(t *testing.T) {
	r := NewRegistry()

	r.Join("conn-1", "Alice", false)
	r.Join("conn-2", "Bob", false)

	// Mark Bob answered, then reconnect under the same name with a new
	// connection ID.
	bob, _ := r.FindByName("Bob")
	bob.HasAnswered = true
	r.Join("conn-3", "Bob", false)

	all := r.All()
	require.Len(t, all, 2, "rejoin must not duplicate the record")
	assert.Equal(t, "Alice", all[0].Name)
	assert.Equal(t, "Bob", all[1].Name, "rejoin keeps the original list position")
	assert.Equal(t, "conn-3", all[1].ID)
	assert.False(t, all[1].HasAnswered, "rejoin resets hasAnswered")

	_, ok := r.Find("conn-2")
	assert.False(t, ok, "old connection ID no longer resolves")
}

func TestRegistryRemove(t *testing.T) {
	r := NewRegistry()
	r.Join("conn-1", "Alice", false)
	r.Join("conn-2", "Bob", false)

	removed, ok := r.Remove("conn-1")
	require.True(t, ok)
	assert.Equal(t, "Alice", removed.Name)
	assert.Len(t, r.All(), 1)

	_, ok = r.Remove("conn-1")
	assert.False(t, ok, "removing an unknown connection is a no-op")
}

func TestRegistryStudentsExcludesTeachers(t *testing.T) {
	r := NewRegistry()
	r.Join("conn-t", "Ms. Smith", true)
	r.Join("conn-1", "Alice", false)
	r.Join("conn-2", "Bob", false)

	students := r.Students()
	require.Len(t, students, 2)
	for _, s := range students {
		assert.False(t, s.IsTeacher)
	}
	assert.Len(t, r.All(), 3)
}

func TestRegistryResetAnswers(t *testing.T) {
	r := NewRegistry()
	r.Join("conn-t", "Ms. Smith", true)
	alice := r.Join("conn-1", "Alice", false)
	bob := r.Join("conn-2", "Bob", false)
	alice.HasAnswered = true
	bob.HasAnswered = true

	r.ResetAnswers()

	for _, s := range r.Students() {
		assert.False(t, s.HasAnswered)
	}
}
