package websocket

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalWithPayload(t *testing.T) {
	frame, err := Marshal(EventUserJoined, JoinedPayload{Name: "Alice", IsTeacher: false})
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"user:joined","data":{"name":"Alice","isTeacher":false}}`, string(frame))
}

func TestMarshalSignalOnlyOmitsData(t *testing.T) {
	frame, err := Marshal(EventPollCleared, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"poll:cleared"}`, string(frame))
	assert.NotContains(t, string(frame), "data")
}

func TestEnvelopeRoundTrip(t *testing.T) {
	var env Envelope
	raw := `{"event":"student:answer","data":{"pollId":1700000000000,"optionId":2}}`
	require.NoError(t, json.Unmarshal([]byte(raw), &env))
	assert.Equal(t, string(ActionAnswer), env.Event)

	var req AnswerRequest
	require.NoError(t, json.Unmarshal(env.Data, &req))
	assert.Equal(t, int64(1700000000000), req.PollID)
	assert.Equal(t, 2, req.OptionID)
}
