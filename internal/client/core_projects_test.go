package clients

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JorgeSaicoski/timesheet-tracker/internal/apperr"
	"github.com/JorgeSaicoski/timesheet-tracker/internal/directory"
)

func newCore(t *testing.T, h http.HandlerFunc) *CoreDirectoryClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewCoreDirectoryClient(srv.URL+"/", time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestGetTask(t *testing.T) {
	taskID, projectID := uuid.New(), uuid.New()
	c := newCore(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tasks/"+taskID.String(), r.URL.Path)
		_, _ = io.WriteString(w, `{"message":"ok","data":{"id":"`+taskID.String()+
			`","title":"Design","projectId":"`+projectID.String()+`","projectName":"Apollo"},"timestamp":"2026-10-15T10:00:00Z"}`)
	})

	got, err := c.GetTask(context.Background(), taskID)
	require.NoError(t, err)
	assert.Equal(t, directory.TaskInfo{TaskID: taskID, TaskTitle: "Design", ProjectID: projectID, ProjectName: "Apollo"}, got)
}

func TestGetTask_NotFound(t *testing.T) {
	c := newCore(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"error":"task not found"}`)
	})

	_, err := c.GetTask(context.Background(), uuid.New())
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestServerError(t *testing.T) {
	c := newCore(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := c.SuperAdmins(context.Background())
	require.Error(t, err)
	_, isDomain := apperr.KindOf(err)
	assert.False(t, isDomain)
	assert.Contains(t, err.Error(), "502")
}

func TestProjectSupervisors_MixedIDsDeduped(t *testing.T) {
	p1, p2 := uuid.New(), uuid.New()
	c := newCore(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/projects/supervisors", r.URL.Path)
		assert.Equal(t, p1.String()+","+p2.String(), r.URL.Query().Get("ids"))
		_, _ = io.WriteString(w, `{"data":["pm", 42, "pm", "lead"]}`)
	})

	got, err := c.ProjectSupervisors(context.Background(), []uuid.UUID{p1, p2})
	require.NoError(t, err)
	assert.Equal(t, []string{"pm", "42", "lead"}, got)
}

func TestProjectSupervisors_NoProjectsSkipsCall(t *testing.T) {
	c := newCore(t, func(http.ResponseWriter, *http.Request) {
		t.Error("unexpected request")
	})

	got, err := c.ProjectSupervisors(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSuperAdminsAndSupervisedUsers(t *testing.T) {
	c := newCore(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/users":
			assert.Equal(t, "super_admin", r.URL.Query().Get("role"))
			_, _ = io.WriteString(w, `{"data":["root"]}`)
		case "/users/pm/supervised":
			_, _ = io.WriteString(w, `{"data":["alice","bob"]}`)
		default:
			http.NotFound(w, r)
		}
	})
	ctx := context.Background()

	admins, err := c.SuperAdmins(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"root"}, admins)

	ok, err := directory.Supervises(ctx, c, "pm", "bob")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = directory.Supervises(ctx, c, "pm", "carol")
	require.NoError(t, err)
	assert.False(t, ok)
}
