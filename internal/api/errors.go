package api

import (
	"log/slog"

	"github.com/JorgeSaicoski/microservice-commons/responses"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/JorgeSaicoski/timesheet-tracker/internal/apperr"
	"github.com/JorgeSaicoski/timesheet-tracker/internal/auth"
)

// ErrorKindHeader carries the apperr kind of a failed request so clients can
// branch on it without parsing the message.
const ErrorKindHeader = "X-Error-Kind"

// RespondError writes err with the status its kind maps to. Errors that are
// not business-rule failures are logged and reported as 500 without detail.
func RespondError(c *gin.Context, err error) {
	kind, ok := apperr.KindOf(err)
	if !ok {
		slog.Error("request failed", "path", c.FullPath(), "err", err)
		responses.InternalError(c, "internal error")
		return
	}

	c.Header(ErrorKindHeader, string(kind))
	switch kind {
	case apperr.KindNotFound:
		responses.NotFound(c, err.Error())
	case apperr.KindForbidden, apperr.KindNotOwner:
		responses.Forbidden(c, err.Error())
	case apperr.KindConflict:
		responses.Conflict(c, err.Error())
	default:
		responses.BadRequest(c, err.Error())
	}
}

// ParseID reads a uuid path parameter, answering 400 when it is malformed.
func ParseID(c *gin.Context, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		c.Header(ErrorKindHeader, string(apperr.KindValidation))
		responses.BadRequest(c, "invalid "+param)
		return uuid.Nil, false
	}
	return id, true
}

// Caller returns the authenticated identity or answers 401.
func Caller(c *gin.Context) (id auth.Identity, ok bool) {
	id, ok = IdentityFrom(c)
	if !ok {
		responses.Unauthorized(c, "User not authenticated")
	}
	return id, ok
}
