package timelogs

import (
	"time"

	"github.com/JorgeSaicoski/microservice-commons/responses"
	"github.com/gin-gonic/gin"

	"github.com/JorgeSaicoski/timesheet-tracker/internal/api"
	"github.com/JorgeSaicoski/timesheet-tracker/internal/calendar"
	"github.com/JorgeSaicoski/timesheet-tracker/internal/services/timelogs"
)

type TimeLogHandler struct {
	timeLogService *timelogs.Service
}

func NewTimeLogHandler(timeLogService *timelogs.Service) *TimeLogHandler {
	return &TimeLogHandler{timeLogService: timeLogService}
}

func (h *TimeLogHandler) CreateTimeLog(c *gin.Context) {
	var req CreateTimeLogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.BadRequest(c, err.Error())
		return
	}

	caller, ok := api.Caller(c)
	if !ok {
		return
	}

	in := timelogs.CreateInput{
		TaskID:      req.TaskID,
		Start:       req.StartTime,
		End:         req.EndTime,
		Description: req.Description,
		IsManual:    req.IsManual == nil || *req.IsManual,
	}
	if req.Date != "" {
		date, err := time.Parse(calendar.DateLayout, req.Date)
		if err != nil {
			responses.BadRequest(c, "date must be YYYY-MM-DD")
			return
		}
		in.Date = date
	}

	log, err := h.timeLogService.Create(c.Request.Context(), caller.UserID, in)
	if err != nil {
		api.RespondError(c, err)
		return
	}

	responses.Created(c, "Time log created successfully", TimeLogToResponse(log))
}

func (h *TimeLogHandler) UpdateTimeLog(c *gin.Context) {
	id, ok := api.ParseID(c, "id")
	if !ok {
		return
	}

	var req UpdateTimeLogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.BadRequest(c, err.Error())
		return
	}

	caller, ok := api.Caller(c)
	if !ok {
		return
	}

	patch := timelogs.Patch{
		TaskID:      req.TaskID,
		Start:       req.StartTime,
		End:         req.EndTime,
		Description: req.Description,
	}
	if req.Date != nil {
		date, err := time.Parse(calendar.DateLayout, *req.Date)
		if err != nil {
			responses.BadRequest(c, "date must be YYYY-MM-DD")
			return
		}
		patch.Date = &date
	}

	log, err := h.timeLogService.Update(c.Request.Context(), caller.UserID, id, patch)
	if err != nil {
		api.RespondError(c, err)
		return
	}

	responses.Success(c, "Time log updated successfully", TimeLogToResponse(log))
}

func (h *TimeLogHandler) DeleteTimeLog(c *gin.Context) {
	id, ok := api.ParseID(c, "id")
	if !ok {
		return
	}
	caller, ok := api.Caller(c)
	if !ok {
		return
	}

	if err := h.timeLogService.Delete(c.Request.Context(), caller.UserID, id); err != nil {
		api.RespondError(c, err)
		return
	}

	responses.Success(c, "Time log deleted successfully", nil)
}

func (h *TimeLogHandler) GetTimeLog(c *gin.Context) {
	id, ok := api.ParseID(c, "id")
	if !ok {
		return
	}
	caller, ok := api.Caller(c)
	if !ok {
		return
	}

	log, err := h.timeLogService.Get(c.Request.Context(), caller.UserID, id)
	if err != nil {
		api.RespondError(c, err)
		return
	}

	responses.Success(c, "Time log retrieved successfully", TimeLogToResponse(log))
}

// GetMyTimeLogs lists the caller's logs between ?from and ?to (YYYY-MM-DD),
// defaulting to the current week.
func (h *TimeLogHandler) GetMyTimeLogs(c *gin.Context) {
	caller, ok := api.Caller(c)
	if !ok {
		return
	}

	from, to := calendar.WeekBounds(time.Now().UTC())
	if v := c.Query("from"); v != "" {
		d, err := time.Parse(calendar.DateLayout, v)
		if err != nil {
			responses.BadRequest(c, "from must be YYYY-MM-DD")
			return
		}
		from = d
	}
	if v := c.Query("to"); v != "" {
		d, err := time.Parse(calendar.DateLayout, v)
		if err != nil {
			responses.BadRequest(c, "to must be YYYY-MM-DD")
			return
		}
		to = d
	}

	logs, err := h.timeLogService.ListByUserRange(c.Request.Context(), caller.UserID, from, to)
	if err != nil {
		api.RespondError(c, err)
		return
	}

	responses.Success(c, "Time logs retrieved successfully", TimeLogsToResponse(logs))
}

func (h *TimeLogHandler) GetTaskTimeLogs(c *gin.Context) {
	taskID, ok := api.ParseID(c, "taskId")
	if !ok {
		return
	}

	caller, ok := api.Caller(c)
	if !ok {
		return
	}

	logs, err := h.timeLogService.ListByTask(c.Request.Context(), caller, taskID)
	if err != nil {
		api.RespondError(c, err)
		return
	}

	responses.Success(c, "Time logs retrieved successfully", TimeLogsToResponse(logs))
}

func (h *TimeLogHandler) GetProjectTimeLogs(c *gin.Context) {
	projectID, ok := api.ParseID(c, "projectId")
	if !ok {
		return
	}

	caller, ok := api.Caller(c)
	if !ok {
		return
	}

	logs, err := h.timeLogService.ListByProject(c.Request.Context(), caller, projectID)
	if err != nil {
		api.RespondError(c, err)
		return
	}

	responses.Success(c, "Time logs retrieved successfully", TimeLogsToResponse(logs))
}
