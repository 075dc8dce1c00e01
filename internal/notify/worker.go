package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/fanclub-backend/internal/domain"
	"github.com/tbourn/fanclub-backend/internal/repo"
)

// deliveries counts delivery attempts by channel and result.
var deliveries = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "notifications_total",
		Help: "Notification delivery attempts, by channel and result.",
	},
	[]string{"channel", "result"},
)

func init() {
	prometheus.MustRegister(deliveries)
}

// Worker drains a Queue with a fixed pool of goroutines.
type Worker struct {
	Queue     Queue
	Directory Directory
	Messenger Messenger // optional
	Mailer    Mailer    // optional

	// OpsChatID receives operator alerts. Zero disables them.
	OpsChatID int64
	// Concurrency is the number of consumer goroutines (default 2).
	Concurrency int
	// MaxAttempts bounds deliveries per job (default 3).
	MaxAttempts int
	// PollWait is how long each Pop blocks (default 1s).
	PollWait time.Duration
	// Backoff is slept after a failed attempt before requeueing.
	Backoff time.Duration
}

// Run consumes jobs until ctx is cancelled and all consumers have returned.
func (w *Worker) Run(ctx context.Context) {
	n := w.Concurrency
	if n <= 0 {
		n = 2
	}
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			w.loop(ctx, id)
		}(i)
	}
	wg.Wait()
}

func (w *Worker) loop(ctx context.Context, id int) {
	wait := w.PollWait
	if wait <= 0 {
		wait = time.Second
	}
	logger := log.With().Int("worker", id).Logger()
	for {
		if ctx.Err() != nil {
			return
		}
		job, err := w.Queue.Pop(ctx, wait)
		switch {
		case errors.Is(err, ErrEmpty):
			continue
		case err != nil:
			if ctx.Err() != nil {
				return
			}
			logger.Warn().Err(err).Msg("queue pop failed")
			sleep(ctx, wait)
			continue
		}
		w.Process(ctx, job)
	}
}

// Process delivers one job, requeueing it on failure until MaxAttempts.
func (w *Worker) Process(ctx context.Context, job *Job) {
	maxAttempts := w.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	n := job.Notification
	logger := log.With().
		Str("job_id", job.ID).
		Str("kind", string(n.Kind)).
		Str("event_id", n.EventID).
		Int64("user_id", n.UserID).
		Logger()

	err := w.deliver(ctx, n)
	if err == nil {
		logger.Debug().Msg("notification delivered")
		return
	}

	job.Attempts++
	if job.Attempts >= maxAttempts || errors.Is(err, repo.ErrNotFound) {
		logger.Error().Err(err).Int("attempts", job.Attempts).Msg("notification dropped")
		return
	}
	logger.Warn().Err(err).Int("attempts", job.Attempts).Msg("notification failed; requeueing")
	sleep(ctx, w.Backoff)
	if perr := w.Queue.Push(context.WithoutCancel(ctx), *job); perr != nil {
		logger.Error().Err(perr).Msg("requeue failed; notification dropped")
	}
}

func (w *Worker) deliver(ctx context.Context, n domain.Notification) error {
	if n.ForOperators() {
		if w.OpsChatID == 0 || w.Messenger == nil {
			log.Error().Str("event_id", n.EventID).Str("message", n.Message).Msg("operator alert (no ops chat configured)")
			return nil
		}
		return record("telegram", w.Messenger.Send(ctx, w.OpsChatID, n.Message))
	}

	rcpt, err := w.Directory.Lookup(ctx, n.UserID)
	if err != nil {
		return fmt.Errorf("lookup user %d: %w", n.UserID, err)
	}

	// Telegram is the primary channel; email is a courtesy copy and its
	// failure alone does not requeue the job.
	var sent bool
	if w.Messenger != nil && rcpt.TelegramID != 0 {
		if err := record("telegram", w.Messenger.Send(ctx, rcpt.TelegramID, n.Message)); err != nil {
			return err
		}
		sent = true
	}
	if w.Mailer != nil && rcpt.Email != "" {
		subject := n.Subject
		if subject == "" {
			subject = "Fan club notification"
		}
		if err := record("email", w.Mailer.Send(ctx, rcpt.Email, subject, n.Message)); err != nil {
			if !sent {
				return err
			}
			log.Warn().Err(err).Int64("user_id", n.UserID).Msg("email copy failed")
		} else {
			sent = true
		}
	}
	if !sent {
		log.Info().Int64("user_id", n.UserID).Str("message", n.Message).Msg("no delivery channel for user; logged only")
		deliveries.WithLabelValues("log", "ok").Inc()
	}
	return nil
}

func record(channel string, err error) error {
	result := "ok"
	if err != nil {
		result = "error"
	}
	deliveries.WithLabelValues(channel, result).Inc()
	return err
}

func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
