package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/classpoll/classpoll-backend/internal/response"
	"github.com/classpoll/classpoll-backend/internal/session"
)

// StateHandler serves read-only snapshots of the session over HTTP, for
// dashboards and debugging. All mutation goes through the event channel.
type StateHandler struct {
	manager *session.Manager
}

// NewStateHandler creates a new StateHandler.
func NewStateHandler(manager *session.Manager) *StateHandler {
	return &StateHandler{manager: manager}
}

// GetCurrentPoll godoc
// GET /api/v1/poll
func (h *StateHandler) GetCurrentPoll(c *gin.Context) {
	snap := h.manager.Snapshot()
	if snap.CurrentPoll == nil {
		response.Fail(c, http.StatusNotFound, response.ErrNoCurrentPoll)
		return
	}
	response.Success(c, http.StatusOK, snap.CurrentPoll)
}

// GetHistory godoc
// GET /api/v1/history
func (h *StateHandler) GetHistory(c *gin.Context) {
	snap := h.manager.Snapshot()
	response.Success(c, http.StatusOK, snap.PollHistory)
}

// GetParticipants godoc
// GET /api/v1/participants
func (h *StateHandler) GetParticipants(c *gin.Context) {
	snap := h.manager.Snapshot()
	response.Success(c, http.StatusOK, snap.Participants)
}

// GetEligibility godoc
// GET /api/v1/eligibility
func (h *StateHandler) GetEligibility(c *gin.Context) {
	snap := h.manager.Snapshot()
	response.Success(c, http.StatusOK, snap.TeacherCanAskNew)
}
