// Package directory describes what the tracker needs to know about tasks,
// projects and the people who supervise them. The project service owns that
// data; the tracker reads it through a Lookup.
package directory

import (
	"context"
	"slices"

	"github.com/google/uuid"
)

// TaskInfo is a task together with the project it belongs to.
type TaskInfo struct {
	TaskID      uuid.UUID `json:"taskId"`
	TaskTitle   string    `json:"taskTitle"`
	ProjectID   uuid.UUID `json:"projectId"`
	ProjectName string    `json:"projectName"`
}

// Lookup resolves tasks and supervision relationships.
type Lookup interface {
	// GetTask returns apperr.ErrNotFound when the task does not exist.
	GetTask(ctx context.Context, taskID uuid.UUID) (TaskInfo, error)

	// ProjectSupervisors returns the owners, managers and leads of the given
	// projects, without duplicates.
	ProjectSupervisors(ctx context.Context, projectIDs []uuid.UUID) ([]string, error)

	SuperAdmins(ctx context.Context) ([]string, error)

	// SupervisedUsers returns every user who is a member of a project the
	// supervisor owns, manages or leads.
	SupervisedUsers(ctx context.Context, supervisorID string) ([]string, error)
}

// Supervises reports whether supervisorID manages or leads a project userID
// belongs to.
func Supervises(ctx context.Context, l Lookup, supervisorID, userID string) (bool, error) {
	users, err := l.SupervisedUsers(ctx, supervisorID)
	if err != nil {
		return false, err
	}
	return slices.Contains(users, userID), nil
}

// Dedupe drops repeated and empty ids while keeping first-seen order.
func Dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
