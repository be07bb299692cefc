package timelogs

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	keycloakauth "github.com/JorgeSaicoski/keycloak-auth"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JorgeSaicoski/timesheet-tracker/internal/api"
	"github.com/JorgeSaicoski/timesheet-tracker/internal/lock"
	"github.com/JorgeSaicoski/timesheet-tracker/internal/services/caps"
	"github.com/JorgeSaicoski/timesheet-tracker/internal/services/timelogs"
	"github.com/JorgeSaicoski/timesheet-tracker/internal/store/memstore"
)

type env struct {
	router  *gin.Engine
	project uuid.UUID
	task    uuid.UUID
}

func setup(t *testing.T) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))

	s := memstore.New()
	project := s.Directory.AddProject("Apollo", "pm")
	task := s.Directory.AddTask(project, "Design")
	now := func() time.Time { return time.Date(2026, 10, 15, 17, 0, 0, 0, time.UTC) }

	logs := s.TimeLogs()
	svc := timelogs.NewService(quiet, s, logs, s.Timesheets(), s.Directory,
		caps.NewValidator(logs, 8, quiet), lock.NewLocal(), time.UTC, now)

	kc := keycloakauth.DefaultConfig()
	kc.PublicKeyBase64 = "gateway-only"
	r := gin.New()
	RegisterRoutes(r.Group("/api"), svc, api.AuthMiddleware(kc, true))
	return &env{router: r, project: project, task: task}
}

func (e *env) call(method, path, user, role string, body any) *httptest.ResponseRecorder {
	var rdr io.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		rdr = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", user)
	req.Header.Set("X-User-Role", role)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func span(day, fromHour, toHour int) (time.Time, time.Time) {
	d := time.Date(2026, 10, day, 0, 0, 0, 0, time.UTC)
	return d.Add(time.Duration(fromHour) * time.Hour), d.Add(time.Duration(toHour) * time.Hour)
}

func decodeLog(t *testing.T, w *httptest.ResponseRecorder) TimeLogResponse {
	t.Helper()
	var out struct {
		Data TimeLogResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out.Data
}

func TestCreateUpdateDelete(t *testing.T) {
	e := setup(t)
	start, end := span(14, 9, 12)

	w := e.call(http.MethodPost, "/api/timelogs", "alice", "member",
		CreateTimeLogRequest{TaskID: e.task, StartTime: start, EndTime: end, Description: "specs"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decodeLog(t, w)
	assert.Equal(t, 3.0, created.DurationHours)
	assert.Equal(t, "2026-10-14", created.Date)
	assert.Equal(t, e.project, created.ProjectID)
	assert.True(t, created.IsManual)

	newEnd := end.Add(time.Hour)
	w = e.call(http.MethodPatch, "/api/timelogs/"+created.ID.String(), "alice", "member",
		UpdateTimeLogRequest{EndTime: &newEnd})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 4.0, decodeLog(t, w).DurationHours)

	w = e.call(http.MethodPatch, "/api/timelogs/"+created.ID.String(), "bob", "member",
		UpdateTimeLogRequest{EndTime: &newEnd})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "not_owner", w.Header().Get(api.ErrorKindHeader))

	w = e.call(http.MethodDelete, "/api/timelogs/"+created.ID.String(), "alice", "member", nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = e.call(http.MethodGet, "/api/timelogs/"+created.ID.String(), "alice", "member", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreate_Rejections(t *testing.T) {
	e := setup(t)

	start, end := span(14, 12, 9)
	w := e.call(http.MethodPost, "/api/timelogs", "alice", "member",
		CreateTimeLogRequest{TaskID: e.task, StartTime: start, EndTime: end})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_range", w.Header().Get(api.ErrorKindHeader))

	start, end = span(16, 9, 10)
	w = e.call(http.MethodPost, "/api/timelogs", "alice", "member",
		CreateTimeLogRequest{TaskID: e.task, StartTime: start, EndTime: end})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "future_date", w.Header().Get(api.ErrorKindHeader))

	start, end = span(13, 8, 17)
	w = e.call(http.MethodPost, "/api/timelogs", "alice", "member",
		CreateTimeLogRequest{TaskID: e.task, StartTime: start, EndTime: end})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "cap_exceeded", w.Header().Get(api.ErrorKindHeader))

	start, end = span(13, 8, 9)
	w = e.call(http.MethodPost, "/api/timelogs", "alice", "member",
		map[string]any{"taskId": e.task, "startTime": start, "endTime": end, "date": "13/10/2026"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListing(t *testing.T) {
	e := setup(t)
	for day := 12; day <= 14; day++ {
		start, end := span(day, 9, 11)
		w := e.call(http.MethodPost, "/api/timelogs", "alice", "member",
			CreateTimeLogRequest{TaskID: e.task, StartTime: start, EndTime: end})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}

	var list struct {
		Data []TimeLogResponse `json:"data"`
	}
	w := e.call(http.MethodGet, "/api/timelogs?from=2026-10-13&to=2026-10-14", "alice", "member", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Data, 2)
	assert.Equal(t, "2026-10-13", list.Data[0].Date)

	w = e.call(http.MethodGet, "/api/timelogs?from=2026-10-14&to=2026-10-13", "alice", "member", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.call(http.MethodGet, "/api/timelogs/task/"+e.task.String(), "alice", "member", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = e.call(http.MethodGet, "/api/timelogs/task/"+e.task.String(), "pm", "project_manager", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list.Data, 3)

	w = e.call(http.MethodGet, "/api/timelogs/project/"+e.project.String(), "pm", "project_manager", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list.Data, 3)

	// Manager tier is not enough without supervising the project.
	w = e.call(http.MethodGet, "/api/timelogs/task/"+e.task.String(), "stranger", "project_manager", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = e.call(http.MethodGet, "/api/timelogs/project/"+e.project.String(), "stranger", "project_admin", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = e.call(http.MethodGet, "/api/timelogs/project/"+e.project.String(), "root", "super_admin", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list.Data, 3)
}
