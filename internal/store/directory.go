package store

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/JorgeSaicoski/timesheet-tracker/internal/auth"
	"github.com/JorgeSaicoski/timesheet-tracker/internal/db"
	"github.com/JorgeSaicoski/timesheet-tracker/internal/directory"
)

// Directory answers directory.Lookup from the read-model tables the project
// service replicates into this database.
type Directory struct {
	db *gorm.DB
}

var _ directory.Lookup = (*Directory)(nil)

func NewDirectory(gdb *gorm.DB) *Directory {
	return &Directory{db: gdb}
}

func (d *Directory) GetTask(ctx context.Context, taskID uuid.UUID) (directory.TaskInfo, error) {
	var task db.Task
	err := conn(ctx, d.db).
		Table("tasks").
		Select("tasks.id, tasks.project_id, tasks.title, projects.name AS project_name").
		Joins("JOIN projects ON projects.id = tasks.project_id").
		Where("tasks.id = ?", taskID).
		Take(&task).Error
	if err != nil {
		return directory.TaskInfo{}, mapError(err, "task", taskID)
	}
	return directory.TaskInfo{
		TaskID:      task.ID,
		TaskTitle:   task.Title,
		ProjectID:   task.ProjectID,
		ProjectName: task.ProjectName,
	}, nil
}

func (d *Directory) ProjectSupervisors(ctx context.Context, projectIDs []uuid.UUID) ([]string, error) {
	if len(projectIDs) == 0 {
		return nil, nil
	}

	var owners []string
	err := conn(ctx, d.db).Model(&db.Project{}).
		Where("id IN ?", projectIDs).
		Order("owner_id").
		Pluck("owner_id", &owners).Error
	if err != nil {
		return nil, mapError(err, "project owners", len(projectIDs))
	}

	var leads []string
	err = conn(ctx, d.db).Model(&db.ProjectMember{}).
		Where("project_id IN ? AND role IN ?", projectIDs, []string{db.MemberRoleLead, db.MemberRoleManager}).
		Order("user_id").
		Pluck("user_id", &leads).Error
	if err != nil {
		return nil, mapError(err, "project supervisors", len(projectIDs))
	}

	return directory.Dedupe(append(owners, leads...)), nil
}

func (d *Directory) SuperAdmins(ctx context.Context) ([]string, error) {
	var ids []string
	err := conn(ctx, d.db).Model(&db.User{}).
		Where("role = ?", string(auth.RoleSuperAdmin)).
		Order("id").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, mapError(err, "super admins", "")
	}
	return ids, nil
}

func (d *Directory) SupervisedUsers(ctx context.Context, supervisorID string) ([]string, error) {
	var ids []string
	err := conn(ctx, d.db).Raw(`
		SELECT DISTINCT pm.user_id
		FROM project_members pm
		WHERE pm.project_id IN (
			SELECT p.id FROM projects p WHERE p.owner_id = ?
			UNION
			SELECT m.project_id FROM project_members m
			WHERE m.user_id = ? AND m.role IN (?, ?)
		)
		ORDER BY pm.user_id`,
		supervisorID, supervisorID, db.MemberRoleLead, db.MemberRoleManager,
	).Scan(&ids).Error
	if err != nil {
		return nil, mapError(err, "supervised users", supervisorID)
	}
	return ids, nil
}
