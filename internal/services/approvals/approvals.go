package approvals

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/JorgeSaicoski/timesheet-tracker/internal/apperr"
	"github.com/JorgeSaicoski/timesheet-tracker/internal/auth"
	"github.com/JorgeSaicoski/timesheet-tracker/internal/calendar"
	"github.com/JorgeSaicoski/timesheet-tracker/internal/db"
	"github.com/JorgeSaicoski/timesheet-tracker/internal/directory"
	"github.com/JorgeSaicoski/timesheet-tracker/internal/lock"
	"github.com/JorgeSaicoski/timesheet-tracker/internal/notify"
)

var transitions = map[string][]string{
	db.TimesheetStatusDraft:     {db.TimesheetStatusSubmitted},
	db.TimesheetStatusSubmitted: {db.TimesheetStatusApproved, db.TimesheetStatusRejected},
	db.TimesheetStatusRejected:  {db.TimesheetStatusSubmitted},
}

// CanTransition reports whether a timesheet may move from one status to another.
func CanTransition(from, to string) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type txManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type sheetRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*db.Timesheet, error)
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*db.Timesheet, error)
	Update(ctx context.Context, ts *db.Timesheet) error
	ListByStatus(ctx context.Context, status string, userIDs []string) ([]db.Timesheet, error)
}

type logRepo interface {
	Find(ctx context.Context, filter db.TimeLogFilter) ([]db.TimeLog, error)
	MarkApproved(ctx context.Context, ids []uuid.UUID, approverID string, at time.Time) error
}

type syncer interface {
	Sync(ctx context.Context, ts *db.Timesheet) (bool, error)
}

// Service drives timesheets through draft, submitted, approved and rejected.
type Service struct {
	tx     txManager
	sheets sheetRepo
	logs   logRepo
	agg    syncer
	dir    directory.Lookup
	sink   notify.Sink
	locker lock.Locker
	now    func() time.Time
	log    *slog.Logger
}

func NewService(
	log *slog.Logger,
	tx txManager,
	sheets sheetRepo,
	logs logRepo,
	agg syncer,
	dir directory.Lookup,
	sink notify.Sink,
	locker lock.Locker,
	now func() time.Time,
) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		tx:     tx,
		sheets: sheets,
		logs:   logs,
		agg:    agg,
		dir:    dir,
		sink:   sink,
		locker: locker,
		now:    now,
		log:    log.With(slog.String("layer", "service"), slog.String("service", "ApprovalService")),
	}
}

// Submit hands the owner's draft or rejected timesheet to the approvers.
func (s *Service) Submit(ctx context.Context, id uuid.UUID, caller auth.Identity) (*db.Timesheet, error) {
	s.log.Info("submit-timesheet:start", "timesheetID", id, "callerID", caller.UserID)

	var ts *db.Timesheet
	err := lock.WithLock(ctx, s.locker, lock.UserKey(caller.UserID), func(ctx context.Context) error {
		return s.tx.RunInTx(ctx, func(ctx context.Context) error {
			var err error
			ts, err = s.sheets.GetByIDForUpdate(ctx, id)
			if err != nil {
				return err
			}
			if ts.UserID != caller.UserID {
				return apperr.Forbidden("only the owner can submit timesheet %s", id)
			}
			if err := checkTransition(ts, db.TimesheetStatusSubmitted); err != nil {
				return err
			}
			if _, err := s.agg.Sync(ctx, ts); err != nil {
				return err
			}

			at := s.now().UTC()
			ts.Status = db.TimesheetStatusSubmitted
			ts.SubmittedAt = &at
			ts.RejectionReason = nil
			return s.sheets.Update(ctx, ts)
		})
	})
	if err != nil {
		s.log.Warn("submit-timesheet:failed", "timesheetID", id, "err", err)
		return nil, err
	}

	s.log.Info("submit-timesheet:success", "timesheetID", id, "totalHours", ts.TotalHours)
	s.notifySubmitted(ctx, ts)
	return ts, nil
}

// Approve accepts a submitted timesheet and freezes every log it references.
// The note is stored as an audit annotation and never touches the rejection
// fields.
func (s *Service) Approve(ctx context.Context, id uuid.UUID, caller auth.Identity, note string) (*db.Timesheet, error) {
	s.log.Info("approve-timesheet:start", "timesheetID", id, "callerID", caller.UserID)

	if !caller.IsManagerTier() {
		return nil, apperr.Forbidden("role %s cannot approve timesheets", caller.Role)
	}

	ts, err := s.decide(ctx, id, caller, func(ctx context.Context, ts *db.Timesheet, at time.Time) error {
		if err := s.logs.MarkApproved(ctx, ts.Entries, caller.UserID, at); err != nil {
			return err
		}
		approver := caller.UserID
		ts.Status = db.TimesheetStatusApproved
		ts.ApprovedBy = &approver
		ts.ApprovedAt = &at
		if n := strings.TrimSpace(note); n != "" {
			ts.ApprovalNote = &n
		}
		return nil
	})
	if err != nil {
		s.log.Warn("approve-timesheet:failed", "timesheetID", id, "err", err)
		return nil, err
	}

	s.log.Info("approve-timesheet:success", "timesheetID", id, "frozenLogs", len(ts.Entries))
	notify.SendAll(ctx, s.sink, s.log, []notify.Notification{{
		RecipientID: ts.UserID,
		SenderID:    caller.UserID,
		Type:        notify.TypeTimesheetApproved,
		Title:       "Timesheet approved",
		Message:     fmt.Sprintf("Your timesheet for %s (%.2fh) was approved.", calendar.WeekToken(ts.WeekStart), ts.TotalHours),
		Ref:         notify.Ref{Kind: notify.RefTimesheet, ID: ts.ID},
	}})
	return ts, nil
}

// Reject sends a submitted timesheet back to its owner with a reason.
func (s *Service) Reject(ctx context.Context, id uuid.UUID, caller auth.Identity, reason string) (*db.Timesheet, error) {
	s.log.Info("reject-timesheet:start", "timesheetID", id, "callerID", caller.UserID)

	if !caller.IsManagerTier() {
		return nil, apperr.Forbidden("role %s cannot reject timesheets", caller.Role)
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperr.New(apperr.KindMissingReason, "a reason is required to reject a timesheet")
	}

	ts, err := s.decide(ctx, id, caller, func(_ context.Context, ts *db.Timesheet, at time.Time) error {
		rejecter := caller.UserID
		ts.Status = db.TimesheetStatusRejected
		ts.RejectedBy = &rejecter
		ts.RejectedAt = &at
		ts.RejectionReason = &reason
		return nil
	})
	if err != nil {
		s.log.Warn("reject-timesheet:failed", "timesheetID", id, "err", err)
		return nil, err
	}

	s.log.Info("reject-timesheet:success", "timesheetID", id)
	notify.SendAll(ctx, s.sink, s.log, []notify.Notification{{
		RecipientID: ts.UserID,
		SenderID:    caller.UserID,
		Type:        notify.TypeTimesheetRejected,
		Title:       "Timesheet rejected",
		Message:     fmt.Sprintf("Your timesheet for %s was rejected: %s", calendar.WeekToken(ts.WeekStart), reason),
		Ref:         notify.Ref{Kind: notify.RefTimesheet, ID: ts.ID},
	}})
	return ts, nil
}

// decide runs an approver's transition out of submitted. It holds the owner's
// lock so no log of the week changes while the decision is written.
func (s *Service) decide(
	ctx context.Context,
	id uuid.UUID,
	caller auth.Identity,
	apply func(ctx context.Context, ts *db.Timesheet, at time.Time) error,
) (*db.Timesheet, error) {
	peek, err := s.sheets.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeDecision(ctx, caller, peek.UserID); err != nil {
		return nil, err
	}

	var ts *db.Timesheet
	err = lock.WithLock(ctx, s.locker, lock.UserKey(peek.UserID), func(ctx context.Context) error {
		return s.tx.RunInTx(ctx, func(ctx context.Context) error {
			var err error
			ts, err = s.sheets.GetByIDForUpdate(ctx, id)
			if err != nil {
				return err
			}
			if err := checkTransition(ts, db.TimesheetStatusApproved); err != nil {
				return err
			}
			if _, err := s.agg.Sync(ctx, ts); err != nil {
				return err
			}
			if err := apply(ctx, ts, s.now().UTC()); err != nil {
				return err
			}
			return s.sheets.Update(ctx, ts)
		})
	})
	if err != nil {
		return nil, err
	}
	return ts, nil
}

// authorizeDecision rejects self-review and, below super admin, requires the
// caller to supervise the owner.
func (s *Service) authorizeDecision(ctx context.Context, caller auth.Identity, ownerID string) error {
	if caller.UserID == ownerID {
		return apperr.Forbidden("users cannot review their own timesheet")
	}
	if caller.IsSuperAdmin() {
		return nil
	}
	ok, err := directory.Supervises(ctx, s.dir, caller.UserID, ownerID)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.Forbidden("user %s does not supervise %s", caller.UserID, ownerID)
	}
	return nil
}

// checkTransition fails with apperr.ErrInvalidTransition unless ts can move
// out of its status. Approve and reject share the same source state, so
// checking towards approved covers both.
func checkTransition(ts *db.Timesheet, to string) error {
	if !CanTransition(ts.Status, to) {
		return apperr.New(apperr.KindInvalidTransition,
			"timesheet %s cannot move from %s to %s", ts.ID, ts.Status, to)
	}
	return nil
}

// ListPending returns the submitted timesheets the caller may decide on,
// reconciled with their logs.
func (s *Service) ListPending(ctx context.Context, caller auth.Identity) ([]db.Timesheet, error) {
	if !caller.IsManagerTier() {
		return nil, apperr.Forbidden("role %s cannot review timesheets", caller.Role)
	}

	var users []string // nil: everyone
	if !caller.IsSuperAdmin() {
		supervised, err := s.dir.SupervisedUsers(ctx, caller.UserID)
		if err != nil {
			return nil, err
		}
		users = make([]string, 0, len(supervised))
		for _, u := range supervised {
			if u != caller.UserID {
				users = append(users, u)
			}
		}
	}

	var pending []db.Timesheet
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		pending, err = s.sheets.ListByStatus(ctx, db.TimesheetStatusSubmitted, users)
		if err != nil {
			return err
		}
		for i := range pending {
			if _, err := s.agg.Sync(ctx, &pending[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Debug("list-pending", "callerID", caller.UserID, "count", len(pending))
	return pending, nil
}

// notifySubmitted tells every supervisor of the projects in the timesheet,
// plus all super admins, that it awaits review.
func (s *Service) notifySubmitted(ctx context.Context, ts *db.Timesheet) {
	recipients, err := s.submitRecipients(ctx, ts)
	if err != nil {
		s.log.Warn("submit-timesheet:recipients-failed", "timesheetID", ts.ID, "err", err)
		return
	}

	batch := make([]notify.Notification, 0, len(recipients))
	for _, r := range recipients {
		batch = append(batch, notify.Notification{
			RecipientID: r,
			SenderID:    ts.UserID,
			Type:        notify.TypeTimesheetSubmitted,
			Title:       "Timesheet submitted",
			Message: fmt.Sprintf("%s submitted %.2fh for %s.",
				ts.UserID, ts.TotalHours, calendar.WeekToken(ts.WeekStart)),
			Ref: notify.Ref{Kind: notify.RefTimesheet, ID: ts.ID},
		})
	}
	notify.SendAll(ctx, s.sink, s.log, batch)
}

func (s *Service) submitRecipients(ctx context.Context, ts *db.Timesheet) ([]string, error) {
	var projectIDs []uuid.UUID
	if len(ts.Entries) > 0 {
		logs, err := s.logs.Find(ctx, db.TimeLogFilter{IDs: ts.Entries})
		if err != nil {
			return nil, err
		}
		seen := map[uuid.UUID]bool{}
		for _, l := range logs {
			if !seen[l.ProjectID] {
				seen[l.ProjectID] = true
				projectIDs = append(projectIDs, l.ProjectID)
			}
		}
	}

	supervisors, err := s.dir.ProjectSupervisors(ctx, projectIDs)
	if err != nil {
		return nil, err
	}
	admins, err := s.dir.SuperAdmins(ctx)
	if err != nil {
		return nil, err
	}

	var out []string
	for _, id := range directory.Dedupe(append(supervisors, admins...)) {
		if id != ts.UserID {
			out = append(out, id)
		}
	}
	return out, nil
}
