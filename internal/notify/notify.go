// Package notify delivers workflow notifications. Delivery is best effort:
// callers log failures and never fail the operation that triggered them.
package notify

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// Type identifies what happened.
type Type string

const (
	TypeTimesheetSubmitted Type = "timesheet_submitted"
	TypeTimesheetApproved  Type = "timesheet_approved"
	TypeTimesheetRejected  Type = "timesheet_rejected"
)

// RefKind names the entity a notification points at.
type RefKind string

const (
	RefTimesheet RefKind = "timesheet"
)

// Ref points a notification at one entity.
type Ref struct {
	Kind RefKind   `json:"kind"`
	ID   uuid.UUID `json:"id"`
}

type Notification struct {
	RecipientID string `json:"recipientId"`
	SenderID    string `json:"senderId"`
	Type        Type   `json:"type"`
	Title       string `json:"title"`
	Message     string `json:"message"`
	Ref         Ref    `json:"ref"`
}

// Sink accepts notifications for delivery.
type Sink interface {
	Notify(ctx context.Context, n Notification) error
}

// LogSink writes notifications to the log. It is used when no broker is
// configured.
type LogSink struct {
	log *slog.Logger
}

func NewLogSink(log *slog.Logger) *LogSink {
	return &LogSink{log: log.With("component", "notify")}
}

func (s *LogSink) Notify(ctx context.Context, n Notification) error {
	s.log.InfoContext(ctx, "notification",
		slog.String("recipient", n.RecipientID),
		slog.String("sender", n.SenderID),
		slog.String("type", string(n.Type)),
		slog.String("title", n.Title),
		slog.String("ref_kind", string(n.Ref.Kind)),
		slog.String("ref_id", n.Ref.ID.String()),
	)
	return nil
}

// SendAll delivers each notification and logs failures.
func SendAll(ctx context.Context, sink Sink, log *slog.Logger, batch []Notification) {
	for _, n := range batch {
		if err := sink.Notify(ctx, n); err != nil {
			log.WarnContext(ctx, "notify:failed",
				slog.String("recipient", n.RecipientID),
				slog.String("type", string(n.Type)),
				slog.Any("error", err),
			)
		}
	}
}
