package services

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"github.com/vncsmyrnk/livepoll/internal/core/domain"
	"github.com/vncsmyrnk/livepoll/internal/core/ports"
	"github.com/vncsmyrnk/livepoll/internal/metrics"
)

const (
	archiveMaxRetries     = 4
	archiveInitialBackoff = 200 * time.Millisecond
	archiveMaxBackoff     = 5 * time.Second
)

// ArchiveWriter hands ended polls and chat messages to storage off the
// coordinator's critical section. Each write runs in its own goroutine and
// is retried with exponential backoff.
type ArchiveWriter struct {
	polls     ports.PollArchive
	messages  ports.MessageStore
	publisher ports.ResultPublisher
	timeout   time.Duration
	log       logrus.FieldLogger
	wg        sync.WaitGroup
}

func NewArchiveWriter(polls ports.PollArchive, messages ports.MessageStore, publisher ports.ResultPublisher, timeout time.Duration, log logrus.FieldLogger) *ArchiveWriter {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ArchiveWriter{
		polls:     polls,
		messages:  messages,
		publisher: publisher,
		timeout:   timeout,
		log:       log,
	}
}

func (w *ArchiveWriter) ArchivePoll(poll *domain.ArchivedPoll) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
		defer cancel()

		fields := logrus.Fields{"poll_id": poll.ID, "reason": poll.Reason}
		err := w.retry(ctx, "poll", func() error { return w.polls.Append(ctx, poll) })
		if err != nil {
			metrics.ArchiveWrites.WithLabelValues("poll", "failed").Inc()
			w.log.WithFields(fields).WithError(err).Error("failed to archive poll")
			return
		}
		metrics.ArchiveWrites.WithLabelValues("poll", "ok").Inc()
		w.log.WithFields(fields).Debug("poll archived")

		if w.publisher == nil {
			return
		}
		if err := w.retry(ctx, "publish", func() error { return w.publisher.Publish(ctx, poll) }); err != nil {
			metrics.ResultsPublished.WithLabelValues(w.publisher.Name(), "failed").Inc()
			w.log.WithFields(fields).WithError(err).Warn("failed to publish poll results")
			return
		}
		metrics.ResultsPublished.WithLabelValues(w.publisher.Name(), "ok").Inc()
	}()
}

func (w *ArchiveWriter) ArchiveMessage(msg *domain.ChatMessage) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
		defer cancel()

		if err := w.retry(ctx, "message", func() error { return w.messages.Append(ctx, msg) }); err != nil {
			metrics.ArchiveWrites.WithLabelValues("message", "failed").Inc()
			w.log.WithField("message_id", msg.ID).WithError(err).Error("failed to store chat message")
			return
		}
		metrics.ArchiveWrites.WithLabelValues("message", "ok").Inc()
	}()
}

// Wait blocks until in-flight writes finish or ctx is done.
func (w *ArchiveWriter) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *ArchiveWriter) retry(ctx context.Context, record string, operation func() error) error {
	strategy := backoff.WithContext(
		backoff.WithMaxRetries(
			backoff.NewExponentialBackOff(
				backoff.WithInitialInterval(archiveInitialBackoff),
				backoff.WithMaxInterval(archiveMaxBackoff),
			),
			archiveMaxRetries,
		),
		ctx,
	)

	return backoff.RetryNotify(operation, strategy, func(err error, d time.Duration) {
		metrics.ArchiveRetries.WithLabelValues(record).Inc()
		w.log.WithError(err).WithField("record", record).Warnf("retrying archive write in %s", d)
	})
}
