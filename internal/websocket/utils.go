package websocket

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
)

// Marshal frames an event and payload into a wire-ready envelope. A nil
// payload produces a signal-only envelope with no data field.
func Marshal(event Event, payload interface{}) ([]byte, error) {
	env := Envelope{Event: string(event)}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		env.Data = data
	}
	return json.Marshal(env)
}

// ReadEnvelope reads and decodes the next client message. It sets a read
// deadline so dead connections are eventually reaped.
func ReadEnvelope(conn *websocket.Conn, env *Envelope) error {
	conn.SetReadDeadline(time.Now().Add(5 * time.Minute))
	return conn.ReadJSON(env)
}
