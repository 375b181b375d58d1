package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	gorillaws "github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/classpoll/classpoll-backend/internal/hub"
	"github.com/classpoll/classpoll-backend/internal/session"
	"github.com/classpoll/classpoll-backend/internal/validator"
	ws "github.com/classpoll/classpoll-backend/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) gorillaws.Upgrader {
	return gorillaws.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler owns the bidirectional event channel: one long-lived WebSocket
// per client, every client event dispatched to the session manager.
type WSHandler struct {
	manager  *session.Manager
	hub      *hub.Hub
	log      zerolog.Logger
	upgrader gorillaws.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(manager *session.Manager, h *hub.Hub, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		manager:  manager,
		hub:      h,
		log:      log.With().Str("component", "ws_handler").Logger(),
		upgrader: buildUpgrader(allowedOrigins),
	}
}

// Stream godoc
// WS /ws
// Upgrades to WebSocket, assigns a connection ID, pushes the state:init
// snapshot, then reads client events until the connection drops.
func (h *WSHandler) Stream(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	client := hub.NewClient(uuid.New().String(), conn)
	h.hub.Register(client)
	go client.WritePump()

	connLog := h.log.With().Str("conn_id", client.ID).Logger()
	connLog.Info().Msg("Client connected")

	h.manager.SendInit(client.ID)

	defer func() {
		h.hub.Unregister(client)
		h.manager.Disconnect(client.ID)
		connLog.Info().Msg("Client disconnected")
	}()

	for {
		var env ws.Envelope
		if err := ws.ReadEnvelope(conn, &env); err != nil {
			if gorillaws.IsUnexpectedCloseError(err, gorillaws.CloseGoingAway, gorillaws.CloseNormalClosure) {
				connLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				connLog.Debug().Msg("Connection closed")
			}
			return
		}
		h.dispatch(client.ID, connLog, &env)
	}
}

// dispatch routes one client event to the session manager. Payloads are
// decoded and validated here, before anything reaches the state machine;
// malformed payloads are rejected, never coerced.
func (h *WSHandler) dispatch(connID string, connLog zerolog.Logger, env *ws.Envelope) {
	switch ws.Action(env.Event) {
	case ws.ActionJoin:
		var req ws.JoinRequest
		if !h.bind(connID, env.Data, &req) {
			return
		}
		h.manager.Join(connID, req.Name, req.IsTeacher)

	case ws.ActionCreatePoll:
		var req ws.CreatePollRequest
		if !h.bind(connID, env.Data, &req) {
			return
		}
		options := make([]string, len(req.Options))
		for i, opt := range req.Options {
			options[i] = opt.Text
		}
		h.manager.CreatePoll(connID, session.CreatePollInput{
			Question:         req.Question,
			Options:          options,
			TimeLimitSec:     req.TimeLimitSec,
			CorrectOptionIDs: req.CorrectOptionIDs,
		})

	case ws.ActionEndPoll:
		h.manager.EndPoll(connID)

	case ws.ActionClearResponses:
		h.manager.ClearResponses(connID)

	case ws.ActionKick:
		var req ws.KickRequest
		if !h.bind(connID, env.Data, &req) {
			return
		}
		h.manager.Kick(connID, req.UserID)

	case ws.ActionAnswer:
		var req ws.AnswerRequest
		if !h.bind(connID, env.Data, &req) {
			return
		}
		h.manager.RecordAnswer(connID, req.PollID, req.OptionID)

	case ws.ActionChat:
		var req ws.ChatRequest
		if !h.bind(connID, env.Data, &req) {
			return
		}
		h.manager.Chat(connID, req.Message)

	default:
		connLog.Warn().Str("event", env.Event).Msg("Unknown event")
		h.hub.SendTo(connID, ws.EventError, ws.ErrorPayload{Message: "unknown event: " + env.Event})
	}
}

// bind decodes and validates an event payload. On failure the offending
// connection gets an error event and the event never reaches the manager.
func (h *WSHandler) bind(connID string, data json.RawMessage, dst interface{}) bool {
	if len(data) == 0 {
		h.hub.SendTo(connID, ws.EventError, ws.ErrorPayload{Message: "missing payload"})
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		h.hub.SendTo(connID, ws.EventError, ws.ErrorPayload{Message: "malformed payload"})
		return false
	}
	if fields := validator.Check(dst); fields != nil {
		h.hub.SendTo(connID, ws.EventError, ws.ErrorPayload{Message: "invalid payload", Fields: fields})
		return false
	}
	return true
}
