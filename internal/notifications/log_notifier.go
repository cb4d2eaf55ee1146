package notifications

import (
	"context"
	"log/slog"
	"time"
)

type LogNotifierConfig struct {
	// SimulatedLatency and SimulateFailure exercise the breaker locally.
	SimulatedLatency time.Duration
	SimulateFailure  bool
}

// LogNotifier stands in for the mail provider: it logs the reminder.
type LogNotifier struct {
	log *slog.Logger
	cfg LogNotifierConfig
}

func NewLogNotifier(log *slog.Logger, cfg LogNotifierConfig) *LogNotifier {
	if log == nil {
		log = slog.Default()
	}
	return &LogNotifier{log: log, cfg: cfg}
}

func (n *LogNotifier) SendWebinarReminder(ctx context.Context, r WebinarReminder) error {
	if n.cfg.SimulatedLatency > 0 {
		select {
		case <-time.After(n.cfg.SimulatedLatency):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if n.cfg.SimulateFailure {
		return ErrProviderDown
	}

	n.log.InfoContext(ctx, "notification.webinar_reminder",
		"email", r.Email,
		"convention_id", r.ConventionID,
		"event", r.EventName,
		"start", r.StartFormatted,
		"hours_before", r.HoursBefore,
	)
	return nil
}
