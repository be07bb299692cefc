package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/JorgeSaicoski/timesheet-tracker/internal/apperr"
	"github.com/JorgeSaicoski/timesheet-tracker/internal/auth"
	"github.com/JorgeSaicoski/timesheet-tracker/internal/db"
	"github.com/JorgeSaicoski/timesheet-tracker/internal/directory"
)

// Directory is an in-memory directory.Lookup seeded by tests.
type Directory struct {
	mu       sync.RWMutex
	users    map[string]db.User
	projects map[uuid.UUID]db.Project
	members  []db.ProjectMember
	tasks    map[uuid.UUID]db.Task
}

var _ directory.Lookup = (*Directory)(nil)

func NewDirectory() *Directory {
	return &Directory{
		users:    map[string]db.User{},
		projects: map[uuid.UUID]db.Project{},
		tasks:    map[uuid.UUID]db.Task{},
	}
}

func (d *Directory) AddUser(id string, role auth.Role) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[id] = db.User{ID: id, Name: id, Role: string(role)}
}

// AddProject registers a project owned by ownerID and returns its id.
func (d *Directory) AddProject(name, ownerID string) uuid.UUID {
	d.mu.Lock()
	defer d.mu.Unlock()
	p := db.Project{ID: uuid.New(), Name: name, OwnerID: ownerID}
	d.projects[p.ID] = p
	return p.ID
}

func (d *Directory) AddMember(projectID uuid.UUID, userID, role string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.members = append(d.members, db.ProjectMember{ProjectID: projectID, UserID: userID, Role: role})
}

// AddTask registers a task under projectID and returns its id.
func (d *Directory) AddTask(projectID uuid.UUID, title string) uuid.UUID {
	d.mu.Lock()
	defer d.mu.Unlock()
	t := db.Task{ID: uuid.New(), ProjectID: projectID, Title: title}
	d.tasks[t.ID] = t
	return t.ID
}

func (d *Directory) GetTask(_ context.Context, taskID uuid.UUID) (directory.TaskInfo, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	t, ok := d.tasks[taskID]
	if !ok {
		return directory.TaskInfo{}, apperr.NotFound("task %s not found", taskID)
	}
	return directory.TaskInfo{
		TaskID:      t.ID,
		TaskTitle:   t.Title,
		ProjectID:   t.ProjectID,
		ProjectName: d.projects[t.ProjectID].Name,
	}, nil
}

func (d *Directory) ProjectSupervisors(_ context.Context, projectIDs []uuid.UUID) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var ids []string
	for _, pid := range projectIDs {
		if p, ok := d.projects[pid]; ok {
			ids = append(ids, p.OwnerID)
		}
		for _, m := range d.members {
			if m.ProjectID == pid && isSupervisorRole(m.Role) {
				ids = append(ids, m.UserID)
			}
		}
	}
	return directory.Dedupe(ids), nil
}

func (d *Directory) SuperAdmins(context.Context) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var ids []string
	for _, u := range d.users {
		if u.Role == string(auth.RoleSuperAdmin) {
			ids = append(ids, u.ID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (d *Directory) SupervisedUsers(_ context.Context, supervisorID string) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	supervised := map[uuid.UUID]bool{}
	for id, p := range d.projects {
		if p.OwnerID == supervisorID {
			supervised[id] = true
		}
	}
	for _, m := range d.members {
		if m.UserID == supervisorID && isSupervisorRole(m.Role) {
			supervised[m.ProjectID] = true
		}
	}

	var ids []string
	for _, m := range d.members {
		if supervised[m.ProjectID] {
			ids = append(ids, m.UserID)
		}
	}
	ids = directory.Dedupe(ids)
	sort.Strings(ids)
	return ids, nil
}

func isSupervisorRole(role string) bool {
	return role == db.MemberRoleLead || role == db.MemberRoleManager
}
