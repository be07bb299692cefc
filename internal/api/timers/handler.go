package timers

import (
	"log/slog"

	"github.com/JorgeSaicoski/microservice-commons/responses"
	"github.com/gin-gonic/gin"

	"github.com/JorgeSaicoski/timesheet-tracker/internal/api"
	"github.com/JorgeSaicoski/timesheet-tracker/internal/apperr"
	"github.com/JorgeSaicoski/timesheet-tracker/internal/services/timers"
)

type TimerHandler struct {
	timerService *timers.Service
}

func NewTimerHandler(timerService *timers.Service) *TimerHandler {
	return &TimerHandler{timerService: timerService}
}

func (h *TimerHandler) StartTimer(c *gin.Context) {
	var req StartTimerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.BadRequest(c, err.Error())
		return
	}

	caller, ok := api.Caller(c)
	if !ok {
		return
	}

	active, err := h.timerService.Start(c.Request.Context(), caller.UserID, req.TaskID, req.Description)
	if err != nil {
		// A running timer or an unknown task are both bad input for start.
		if kind, ok := apperr.KindOf(err); ok && (kind == apperr.KindConflict || kind == apperr.KindNotFound) {
			c.Header(api.ErrorKindHeader, string(kind))
			responses.BadRequest(c, err.Error())
			return
		}
		api.RespondError(c, err)
		return
	}

	responses.Created(c, "Timer started successfully", ActiveTimerToResponse(active))
}

func (h *TimerHandler) StopTimer(c *gin.Context) {
	caller, ok := api.Caller(c)
	if !ok {
		return
	}

	result, err := h.timerService.Stop(c.Request.Context(), caller.UserID)
	if err != nil {
		api.RespondError(c, err)
		return
	}

	responses.Success(c, "Timer stopped successfully", StopResultToResponse(result))
}

func (h *TimerHandler) GetActiveTimer(c *gin.Context) {
	caller, ok := api.Caller(c)
	if !ok {
		return
	}

	active, err := h.timerService.GetActive(c.Request.Context(), caller.UserID)
	if err != nil {
		slog.Error("get active timer", "userID", caller.UserID, "err", err)
		responses.InternalError(c, "failed to get active timer")
		return
	}

	// No timer → 200 with {active:false, timer:null}
	if active == nil {
		responses.Success(c, "ok", ActiveTimerEnvelope{Active: false})
		return
	}

	resp := ActiveTimerToResponse(active)
	responses.Success(c, "ok", ActiveTimerEnvelope{Active: true, Timer: &resp})
}

func (h *TimerHandler) DiscardTimer(c *gin.Context) {
	caller, ok := api.Caller(c)
	if !ok {
		return
	}

	if err := h.timerService.Discard(c.Request.Context(), caller.UserID); err != nil {
		api.RespondError(c, err)
		return
	}

	responses.Success(c, "Timer discarded", nil)
}
