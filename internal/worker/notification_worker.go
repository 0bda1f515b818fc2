package worker

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/curator-desk/internal/service"
)

// CardRefresher renders a ticket card from the current log.
type CardRefresher interface {
	RefreshCard(ctx context.Context, ticketID string) error
}

// NotificationWorker drains the card retry queue.
type NotificationWorker struct {
	queue     *CardRetryQueue
	refresher CardRefresher
	interval  time.Duration
	logger    *zap.Logger
}

// NewNotificationWorker creates a worker polling every interval.
func NewNotificationWorker(queue *CardRetryQueue, refresher CardRefresher, interval time.Duration, logger *zap.Logger) *NotificationWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &NotificationWorker{queue: queue, refresher: refresher, interval: interval, logger: logger}
}

// StartNotificationWorker registers notification handlers and, when a queue
// is configured, starts draining it until ctx is cancelled. The returned
// channel closes once the loop has stopped.
func StartNotificationWorker(ctx context.Context, notificationService *service.NotificationService, queue *CardRetryQueue, interval time.Duration, logger *zap.Logger) <-chan struct{} {
	done := make(chan struct{})
	if notificationService == nil {
		close(done)
		return done
	}
	notificationService.RegisterHandlers()
	if queue == nil {
		close(done)
		return done
	}
	w := NewNotificationWorker(queue, notificationService, interval, logger)
	go func() {
		defer close(done)
		w.Run(ctx)
	}()
	return done
}

// Run polls until ctx is cancelled.
func (w *NotificationWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	w.logger.Info("card refresh worker started", zap.Duration("interval", w.interval))
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("card refresh worker stopped")
			return
		case <-ticker.C:
			w.Drain(ctx)
		}
	}
}

// Drain refreshes every due card once and returns how many succeeded.
func (w *NotificationWorker) Drain(ctx context.Context) int {
	ticketIDs, err := w.queue.Claim(ctx)
	if err != nil {
		w.logger.Warn("card refresh queue unavailable", zap.Error(err))
	}
	refreshed := 0
	for _, ticketID := range ticketIDs {
		if err := w.refresher.RefreshCard(ctx, ticketID); err != nil {
			w.retry(ctx, ticketID, err)
			continue
		}
		refreshed++
		if err := w.queue.Done(ctx, ticketID); err != nil {
			w.logger.Warn("attempt counter not cleared", zap.String("ticket_id", ticketID), zap.Error(err))
		}
	}
	return refreshed
}

func (w *NotificationWorker) retry(ctx context.Context, ticketID string, cause error) {
	err := w.queue.Retry(ctx, ticketID)
	switch {
	case errors.Is(err, ErrGaveUp):
		w.logger.Error("card refresh abandoned", zap.String("ticket_id", ticketID), zap.Error(cause))
	case err != nil:
		w.logger.Error("card refresh not rescheduled", zap.String("ticket_id", ticketID), zap.Error(err))
	default:
		w.logger.Warn("card refresh failed", zap.String("ticket_id", ticketID), zap.Error(cause))
	}
}
