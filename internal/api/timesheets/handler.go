package timesheets

import (
	"errors"
	"io"

	"github.com/JorgeSaicoski/microservice-commons/responses"
	"github.com/gin-gonic/gin"

	"github.com/JorgeSaicoski/timesheet-tracker/internal/api"
	"github.com/JorgeSaicoski/timesheet-tracker/internal/services/approvals"
	"github.com/JorgeSaicoski/timesheet-tracker/internal/services/timesheets"
)

type TimesheetHandler struct {
	timesheetService *timesheets.Service
	approvalService  *approvals.Service
}

func NewTimesheetHandler(timesheetService *timesheets.Service, approvalService *approvals.Service) *TimesheetHandler {
	return &TimesheetHandler{
		timesheetService: timesheetService,
		approvalService:  approvalService,
	}
}

// GetWeek returns (creating on first access) the timesheet of ?userId, or of
// the caller, for the week named in the path.
func (h *TimesheetHandler) GetWeek(c *gin.Context) {
	caller, ok := api.Caller(c)
	if !ok {
		return
	}

	ts, err := h.timesheetService.GetOrCreate(c.Request.Context(), caller, c.Query("userId"), c.Param("week"))
	if err != nil {
		api.RespondError(c, err)
		return
	}

	responses.Success(c, "Timesheet retrieved successfully", TimesheetToResponse(ts))
}

func (h *TimesheetHandler) GetTimesheet(c *gin.Context) {
	id, ok := api.ParseID(c, "id")
	if !ok {
		return
	}
	caller, ok := api.Caller(c)
	if !ok {
		return
	}

	ts, err := h.timesheetService.Get(c.Request.Context(), caller, id)
	if err != nil {
		api.RespondError(c, err)
		return
	}

	responses.Success(c, "Timesheet retrieved successfully", TimesheetToResponse(ts))
}

func (h *TimesheetHandler) ListTimesheets(c *gin.Context) {
	caller, ok := api.Caller(c)
	if !ok {
		return
	}

	sheets, err := h.timesheetService.ListForUser(c.Request.Context(), caller, c.Query("userId"))
	if err != nil {
		api.RespondError(c, err)
		return
	}

	responses.Success(c, "Timesheets retrieved successfully", TimesheetsToResponse(sheets))
}

func (h *TimesheetHandler) SaveEntries(c *gin.Context) {
	id, ok := api.ParseID(c, "id")
	if !ok {
		return
	}

	var req SaveEntriesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.BadRequest(c, err.Error())
		return
	}

	caller, ok := api.Caller(c)
	if !ok {
		return
	}

	ts, err := h.timesheetService.ApplyManualEntries(c.Request.Context(), id, caller.UserID, req.toEntries())
	if err != nil {
		api.RespondError(c, err)
		return
	}

	responses.Success(c, "Timesheet entries saved successfully", TimesheetToResponse(ts))
}

func (h *TimesheetHandler) Submit(c *gin.Context) {
	id, ok := api.ParseID(c, "id")
	if !ok {
		return
	}
	caller, ok := api.Caller(c)
	if !ok {
		return
	}

	ts, err := h.approvalService.Submit(c.Request.Context(), id, caller)
	if err != nil {
		api.RespondError(c, err)
		return
	}

	responses.Success(c, "Timesheet submitted successfully", TimesheetToResponse(ts))
}

func (h *TimesheetHandler) Approve(c *gin.Context) {
	id, ok := api.ParseID(c, "id")
	if !ok {
		return
	}

	var req ApproveRequest
	if !bindOptional(c, &req) {
		return
	}

	caller, ok := api.Caller(c)
	if !ok {
		return
	}

	ts, err := h.approvalService.Approve(c.Request.Context(), id, caller, req.Note)
	if err != nil {
		api.RespondError(c, err)
		return
	}

	responses.Success(c, "Timesheet approved successfully", TimesheetToResponse(ts))
}

func (h *TimesheetHandler) Reject(c *gin.Context) {
	id, ok := api.ParseID(c, "id")
	if !ok {
		return
	}

	// A missing body is an empty reason, which the workflow rejects with
	// missing_reason.
	var req RejectRequest
	if !bindOptional(c, &req) {
		return
	}

	caller, ok := api.Caller(c)
	if !ok {
		return
	}

	ts, err := h.approvalService.Reject(c.Request.Context(), id, caller, req.Reason)
	if err != nil {
		api.RespondError(c, err)
		return
	}

	responses.Success(c, "Timesheet rejected", TimesheetToResponse(ts))
}

func (h *TimesheetHandler) ListPending(c *gin.Context) {
	caller, ok := api.Caller(c)
	if !ok {
		return
	}

	pending, err := h.approvalService.ListPending(c.Request.Context(), caller)
	if err != nil {
		api.RespondError(c, err)
		return
	}

	responses.Success(c, "Pending timesheets retrieved successfully", TimesheetsToResponse(pending))
}

// bindOptional decodes a JSON body when one is sent. An absent body leaves
// req at its zero value.
func bindOptional(c *gin.Context, req any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(req); err != nil && !errors.Is(err, io.EOF) {
		responses.BadRequest(c, err.Error())
		return false
	}
	return true
}
