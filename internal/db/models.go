package db

import (
	"time"

	"github.com/google/uuid"
)

// TimeLog is one contiguous span of work by one user on one task.
type TimeLog struct {
	ID            uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	UserID        string     `json:"userId" gorm:"not null"` // Owner
	TaskID        uuid.UUID  `json:"taskId" gorm:"type:uuid;not null"`
	ProjectID     uuid.UUID  `json:"projectId" gorm:"type:uuid;not null"` // Copied from the task for query locality
	Date          time.Time  `json:"date" gorm:"type:date;not null"`      // Calendar day the hours count against
	StartTime     time.Time  `json:"startTime" gorm:"not null"`
	EndTime       time.Time  `json:"endTime" gorm:"not null"`
	DurationHours float64    `json:"durationHours" gorm:"not null"` // Always derived from start/end
	Description   string     `json:"description" gorm:"not null;default:''"`
	IsManual      bool       `json:"isManual" gorm:"not null;default:false"`   // Typed in rather than produced by a timer
	IsApproved    bool       `json:"isApproved" gorm:"not null;default:false"` // Frozen once true
	ApprovedBy    *string    `json:"approvedBy"`
	ApprovedAt    *time.Time `json:"approvedAt"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// TimerSession is a running (or just finished) wall-clock measurement.
type TimerSession struct {
	ID              uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	UserID          string     `json:"userId" gorm:"not null"`
	TaskID          uuid.UUID  `json:"taskId" gorm:"type:uuid;not null"`
	ProjectID       uuid.UUID  `json:"projectId" gorm:"type:uuid;not null"`
	StartTime       time.Time  `json:"startTime" gorm:"not null"`
	EndTime         *time.Time `json:"endTime"` // nil while running
	DurationSeconds int64      `json:"durationSeconds" gorm:"not null;default:0"`
	Description     string     `json:"description" gorm:"not null;default:''"`
	IsActive        bool       `json:"isActive" gorm:"not null"` // Unique per user while true
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// Timesheet is one user's claimed hours for one ISO week. Entries is a
// derived aggregate kept in timesheet_entries and reconciled on every read.
type Timesheet struct {
	ID              uuid.UUID   `json:"id" gorm:"type:uuid;primaryKey"`
	UserID          string      `json:"userId" gorm:"not null"`
	WeekStart       time.Time   `json:"weekStart" gorm:"type:date;not null"` // Monday
	WeekEnd         time.Time   `json:"weekEnd" gorm:"type:date;not null"`   // Sunday
	TotalHours      float64     `json:"totalHours" gorm:"not null;default:0"`
	Status          string      `json:"status" gorm:"not null;default:'draft'"`
	SubmittedAt     *time.Time  `json:"submittedAt"`
	ApprovedBy      *string     `json:"approvedBy"`
	ApprovedAt      *time.Time  `json:"approvedAt"`
	RejectedBy      *string     `json:"rejectedBy"`
	RejectedAt      *time.Time  `json:"rejectedAt"`
	RejectionReason *string     `json:"rejectionReason"`
	ApprovalNote    *string     `json:"approvalNote"` // Audit annotation, kept apart from status fields
	CreatedAt       time.Time   `json:"createdAt"`
	UpdatedAt       time.Time   `json:"updatedAt"`
	Entries         []uuid.UUID `json:"entries" gorm:"-"` // Ordered TimeLog ids
}

// TimesheetEntry is one ordered reference from a timesheet to a time log.
type TimesheetEntry struct {
	TimesheetID uuid.UUID `gorm:"type:uuid;primaryKey"`
	TimeLogID   uuid.UUID `gorm:"type:uuid;primaryKey"`
	Position    int       `gorm:"not null"`
}

// Read models owned by the project service. The tracker only queries them.

type Task struct {
	ID          uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	ProjectID   uuid.UUID `json:"projectId" gorm:"type:uuid;not null"`
	Title       string    `json:"title"`
	ProjectName string    `json:"projectName" gorm:"->;-:migration"` // Filled by joins
}

type Project struct {
	ID      uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	Name    string    `json:"name"`
	OwnerID string    `json:"ownerId"` // Project manager
}

// ProjectMember links a user to a project with a per-project role.
type ProjectMember struct {
	ProjectID uuid.UUID `json:"projectId" gorm:"type:uuid;primaryKey"`
	UserID    string    `json:"userId" gorm:"primaryKey"`
	Role      string    `json:"role" gorm:"not null;default:'member'"` // member, lead, manager
}

type User struct {
	ID   string `json:"id" gorm:"primaryKey"`
	Name string `json:"name"`
	Role string `json:"role"`
}

// TimeLogFilter selects time logs. Zero-valued fields do not filter.
type TimeLogFilter struct {
	UserID    string
	TaskID    *uuid.UUID
	ProjectID *uuid.UUID
	From      *time.Time // inclusive calendar date
	To        *time.Time // inclusive calendar date
	IDs       []uuid.UUID
}

// Timesheet statuses
const (
	TimesheetStatusDraft     = "draft"
	TimesheetStatusSubmitted = "submitted"
	TimesheetStatusApproved  = "approved"
	TimesheetStatusRejected  = "rejected"
)

// Project member roles
const (
	MemberRoleMember  = "member"
	MemberRoleLead    = "lead"
	MemberRoleManager = "manager"
)
