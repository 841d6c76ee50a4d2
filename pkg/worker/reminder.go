package worker

import (
	"context"
	"time"

	"github.com/Aytsuu/CIUDAD-APP-sub005/internal/model"
	"github.com/Aytsuu/CIUDAD-APP-sub005/internal/repository"
	"github.com/Aytsuu/CIUDAD-APP-sub005/internal/service/notification"
	"github.com/Aytsuu/CIUDAD-APP-sub005/pkg/logger"
	"github.com/Aytsuu/CIUDAD-APP-sub005/pkg/metrics"
)

// ReminderWorker mails a reminder for every pending follow-up visit due
// within the next day, and marks visits whose date has passed without a
// dose as missed.
type ReminderWorker struct {
	followUps repository.FollowUpRepository
	sender    notification.Sender
	interval  time.Duration
	logger    *logger.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

func NewReminderWorker(
	followUps repository.FollowUpRepository,
	sender notification.Sender,
	interval time.Duration,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *ReminderWorker {
	if interval <= 0 {
		interval = time.Hour
	}
	return &ReminderWorker{
		followUps: followUps,
		sender:    sender,
		interval:  interval,
		logger:    logger,
		metrics:   metrics,
		now:       time.Now,
	}
}

func (w *ReminderWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("Starting follow-up reminder worker")

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Shutting down follow-up reminder worker")
			return
		case <-ticker.C:
			w.markMissed(ctx)
			w.remind(ctx)
		}
	}
}

// markMissed flips pending visits whose date has passed to missed. The
// next administration only completes pending visits, so a missed one
// stays missed.
func (w *ReminderWorker) markMissed(ctx context.Context) {
	today := startOfDay(w.now())

	overdue, err := w.followUps.ListDueBetween(ctx, time.Time{}, today)
	if err != nil {
		w.logger.Error(err, "Failed to list overdue follow-ups")
		return
	}

	for _, visit := range overdue {
		if err := w.followUps.UpdateStatus(ctx, visit.ID, model.FollowUpMissed); err != nil {
			w.logger.Error(err, "Failed to mark follow-up missed", "visit_id", visit.ID.String())
		}
	}
	if len(overdue) > 0 {
		w.logger.Info("Marked overdue follow-ups as missed", "count", len(overdue))
	}
}

func (w *ReminderWorker) remind(ctx context.Context) {
	from := startOfDay(w.now()).AddDate(0, 0, 1)
	to := from.AddDate(0, 0, 1)

	visits, err := w.followUps.ListDueBetween(ctx, from, to)
	if err != nil {
		w.logger.Error(err, "Failed to list due follow-ups")
		return
	}

	for _, visit := range visits {
		if err := w.sender.SendFollowUpReminder(visit); err != nil {
			w.metrics.ReminderErrors.Inc()
			w.logger.Error(err, "Failed to send reminder", "visit_id", visit.ID.String())
			continue
		}
		w.metrics.RemindersSent.Inc()
	}
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
