package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/JorgeSaicoski/timesheet-tracker/internal/apperr"
	"github.com/JorgeSaicoski/timesheet-tracker/internal/directory"
)

/* ---------------------------------------------------------------------
   Core-Projects directory client

   The project service owns tasks, projects and memberships. Every
   endpoint answers with the envelope {"message", "data", "timestamp"};
   only "data" matters here.
   ------------------------------------------------------------------ */

type CoreDirectoryClient struct {
	baseURL string // e.g. "http://project-core:8080/api/internal"
	http    *http.Client
	log     *slog.Logger
}

var _ directory.Lookup = (*CoreDirectoryClient)(nil)

// NewCoreDirectoryClient builds a directory.Lookup backed by the Core-Projects
// service. A zero timeout means no client-side deadline.
func NewCoreDirectoryClient(baseURL string, timeout time.Duration, log *slog.Logger) *CoreDirectoryClient {
	return &CoreDirectoryClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		log:     log.With(slog.String("component", "core-directory")),
	}
}

type taskDTO struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	ProjectID   uuid.UUID `json:"projectId"`
	ProjectName string    `json:"projectName"`
}

// GetTask – GET /tasks/:id
func (c *CoreDirectoryClient) GetTask(ctx context.Context, taskID uuid.UUID) (directory.TaskInfo, error) {
	var t taskDTO
	if err := c.get(ctx, "/tasks/"+taskID.String(), nil, &t); err != nil {
		return directory.TaskInfo{}, err
	}
	return directory.TaskInfo{
		TaskID:      t.ID,
		TaskTitle:   t.Title,
		ProjectID:   t.ProjectID,
		ProjectName: t.ProjectName,
	}, nil
}

// ProjectSupervisors – GET /projects/supervisors?ids=a,b
func (c *CoreDirectoryClient) ProjectSupervisors(ctx context.Context, projectIDs []uuid.UUID) ([]string, error) {
	if len(projectIDs) == 0 {
		return nil, nil
	}
	ids := make([]string, len(projectIDs))
	for i, id := range projectIDs {
		ids[i] = id.String()
	}

	var users []userID
	if err := c.get(ctx, "/projects/supervisors", url.Values{"ids": {strings.Join(ids, ",")}}, &users); err != nil {
		return nil, err
	}
	return directory.Dedupe(userIDStrings(users)), nil
}

// SuperAdmins – GET /users?role=super_admin
func (c *CoreDirectoryClient) SuperAdmins(ctx context.Context) ([]string, error) {
	var users []userID
	if err := c.get(ctx, "/users", url.Values{"role": {"super_admin"}}, &users); err != nil {
		return nil, err
	}
	return userIDStrings(users), nil
}

// SupervisedUsers – GET /users/:id/supervised
func (c *CoreDirectoryClient) SupervisedUsers(ctx context.Context, supervisorID string) ([]string, error) {
	var users []userID
	if err := c.get(ctx, "/users/"+url.PathEscape(supervisorID)+"/supervised", nil, &users); err != nil {
		return nil, err
	}
	return userIDStrings(users), nil
}

// userID accepts ids Core sends either as JSON numbers or as strings.
type userID string

func (u *userID) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*u = userID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*u = userID(n.String())
	return nil
}

func userIDStrings(in []userID) []string {
	out := make([]string, len(in))
	for i, id := range in {
		out[i] = string(id)
	}
	return out
}

func (c *CoreDirectoryClient) get(ctx context.Context, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build core request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("core-project call failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	c.log.DebugContext(ctx, "core response", "path", path, "status", resp.StatusCode, "body", string(raw))

	if resp.StatusCode == http.StatusNotFound {
		return apperr.NotFound("%s not found in core", path)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("core-project returned %s – body: %s", resp.Status, raw)
	}

	env := struct {
		Data json.RawMessage `json:"data"`
	}{}
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("decode core envelope: %w", err)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode core %s: %w", path, err)
	}
	return nil
}
