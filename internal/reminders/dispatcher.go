package reminders

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/geocoder89/conventionhub/internal/notifications"
	"github.com/geocoder89/conventionhub/internal/observability"
)

const dispatchBatch = 50

type DispatcherConfig struct {
	Interval time.Duration
	// RetryDelay is the base delay before a failed send is tried again. The
	// n-th retry waits n*RetryDelay.
	RetryDelay time.Duration
	// MaxAttempts bounds provider attempts per reminder. Sends rejected by an
	// open breaker never reached the provider and do not count.
	MaxAttempts int
}

// Dispatcher polls the store for due reminders and hands them to the
// notifier. A failed send is put back with a delay until MaxAttempts is
// spent, then dropped.
type Dispatcher struct {
	store    Store
	notifier notifications.Notifier
	log      *slog.Logger
	prom     *observability.Prom
	cfg      DispatcherConfig
	now      func() time.Time
}

func NewDispatcher(store Store, n notifications.Notifier, log *slog.Logger, prom *observability.Prom, cfg DispatcherConfig) *Dispatcher {
	if cfg.Interval <= 0 {
		cfg.Interval = 15 * time.Second
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Minute
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{store: store, notifier: n, log: log, prom: prom, cfg: cfg, now: time.Now}
}

func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.cfg.Interval)
	defer ticker.Stop()

	for {
		if _, err := d.DispatchDue(ctx); err != nil && ctx.Err() == nil {
			d.log.WarnContext(ctx, "reminder.dispatch_error", "err", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// DispatchDue sends everything due now and returns how many were sent.
// Entries claimed before a store error are still sent.
func (d *Dispatcher) DispatchDue(ctx context.Context) (int, error) {
	sent := 0

	for {
		entries, claimErr := d.store.ClaimDue(ctx, d.now(), dispatchBatch)

		for _, e := range entries {
			if err := d.notifier.SendWebinarReminder(ctx, e.Payload); err != nil {
				d.retry(ctx, e, err)
				continue
			}
			d.count("sent")
			sent++
		}

		if claimErr != nil {
			return sent, claimErr
		}
		if len(entries) < dispatchBatch {
			return sent, nil
		}
	}
}

func (d *Dispatcher) retry(ctx context.Context, e Entry, sendErr error) {
	log := d.log.With("reminder_id", e.ID, "convention_id", e.Payload.ConventionID)

	if !errors.Is(sendErr, notifications.ErrCircuitOpen) {
		e.Attempts++
	}
	if e.Attempts >= d.cfg.MaxAttempts {
		d.count("failed")
		log.ErrorContext(ctx, "reminder.send_failed", "attempts", e.Attempts, "err", sendErr)
		return
	}

	e.DueAt = d.now().Add(time.Duration(max(e.Attempts, 1)) * d.cfg.RetryDelay)
	if err := d.store.Add(ctx, e); err != nil {
		d.count("failed")
		log.ErrorContext(ctx, "reminder.requeue_failed", "err", err, "send_err", sendErr)
		return
	}

	d.count("retried")
	log.WarnContext(ctx, "reminder.send_retry", "attempts", e.Attempts, "due_at", e.DueAt, "err", sendErr)
}

func (d *Dispatcher) count(result string) {
	if d.prom != nil {
		d.prom.RemindersSent.WithLabelValues(result).Inc()
	}
}
