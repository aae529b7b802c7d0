package notify

import (
	"context"
	"log/slog"

	"mediplan/backend/internal/domain"
)

// Notifier hands a notified waitlist entry to the delivery layer. Dispatch
// is fire-and-forget from the matcher's point of view: failures are logged
// by the caller and never block or roll back the state transition.
type Notifier interface {
	NotifyWaitlist(ctx context.Context, entry domain.WaitlistEntry) error
}

// LogNotifier records the offer in the process log. Delivery transport
// (email, SMS, push) lives outside this service.
type LogNotifier struct {
	log *slog.Logger
}

func NewLogNotifier(log *slog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) NotifyWaitlist(ctx context.Context, entry domain.WaitlistEntry) error {
	n.log.Info("waitlist slot offer",
		slog.String("entry_id", entry.ID.String()),
		slog.String("patient_id", entry.PatientID.String()),
		slog.String("doctor_id", entry.DoctorID.String()),
		slog.Time("preferred_start", entry.PreferredStart),
		slog.Time("expires_at", entry.ExpiresAt),
	)
	return nil
}
