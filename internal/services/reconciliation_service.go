// Package services – ReconciliationService
//
// This file implements the engine that applies verified payment events to
// durable state exactly once. Each event id moves through
//
//	unseen → claimed → completed | rejected | ignored
//
// and every later delivery of the same id observes the stored outcome.
//
// The claim row, the domain effect and the recorded outcome share one
// transaction, so a failure at any step leaves no trace and the event is
// safe to redeliver. A competing delivery blocks on the claim row's unique
// key until the winner commits and then reads its outcome.
//
// Notifications are sent only after commit and can never change an outcome.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/fanclub-backend/internal/domain"
	"github.com/tbourn/fanclub-backend/internal/observability"
	"github.com/tbourn/fanclub-backend/internal/repo"
)

// Notifier accepts fire-and-forget notifications. Implementations queue and
// retry on their own; a returned error only means the hand-off failed.
type Notifier interface {
	Notify(ctx context.Context, n domain.Notification) error
}

// Result is what a delivery of an event observes.
type Result struct {
	EventID   string            `json:"event_id"`
	Intent    domain.IntentKind `json:"intent"`
	Outcome   domain.Outcome    `json:"outcome"`
	Reason    string            `json:"reason,omitempty"`
	Duplicate bool              `json:"duplicate"`
}

// ReconciliationService applies payment events against the store.
type ReconciliationService struct {
	DB       *gorm.DB
	Notifier Notifier

	// Now is the clock used for membership expiry. Defaults to time.Now.
	Now func() time.Time

	// ClaimWait bounds how long a delivery waits for a competing delivery
	// that holds the claim but has not recorded an outcome.
	ClaimWait time.Duration
	// ClaimPollInterval is the re-read interval while waiting.
	ClaimPollInterval time.Duration
	// NotifyTimeout bounds each post-commit notification hand-off.
	NotifyTimeout time.Duration
}

// NewReconciliationService constructs a service with default timings.
func NewReconciliationService(db *gorm.DB, n Notifier) *ReconciliationService {
	return &ReconciliationService{
		DB:                db,
		Notifier:          n,
		Now:               time.Now,
		ClaimWait:         2 * time.Second,
		ClaimPollInterval: 50 * time.Millisecond,
		NotifyTimeout:     2 * time.Second,
	}
}

// errClaimLost signals that another delivery already owns the event id.
var errClaimLost = errors.New("claim lost")

// maxClaimAttempts bounds re-claims when a competing claim vanished
// (the winner rolled back).
const maxClaimAttempts = 3

// decision is the effect chosen inside the transaction.
type decision struct {
	outcome domain.Outcome
	reason  string
	notes   []domain.Notification
}

// Reconcile applies ev exactly once and returns the outcome every delivery of
// ev.EventID observes. Terminal business failures (capacity, unknown user or
// tour, payment already applied) are results, not errors. Errors are
// ErrInvalidEvent, ErrInProgress or ErrStoreUnavailable.
func (s *ReconciliationService) Reconcile(ctx context.Context, ev *domain.PaymentEvent) (*Result, error) {
	if ev == nil || ev.EventID == "" || ev.Intent == nil {
		return nil, ErrInvalidEvent
	}
	kind := ev.Intent.Kind()

	tr := otel.Tracer("services/ReconciliationService")
	ctx, span := tr.Start(ctx, "Reconcile",
		trace.WithAttributes(
			attribute.String("event.id", ev.EventID),
			attribute.String("intent.kind", string(kind)),
			attribute.Int64("user.id", ev.Intent.Buyer()),
		),
	)
	defer span.End()

	start := time.Now()
	defer func() { reconcileLat.WithLabelValues(string(kind)).Observe(time.Since(start).Seconds()) }()

	logger := observability.WithTrace(ctx, log.With()).Str("event_id", ev.EventID).Str("intent", string(kind)).Logger()

	for attempt := 0; attempt < maxClaimAttempts; attempt++ {
		d, err := s.apply(ctx, ev)
		switch {
		case err == nil:
			res := &Result{EventID: ev.EventID, Intent: kind, Outcome: d.outcome, Reason: d.reason}
			s.finish(span, res)
			switch d.outcome {
			case domain.OutcomeRejected:
				logger.Error().Str("outcome", string(d.outcome)).Str("reason", d.reason).Msg("payment reconciliation rejected")
			default:
				logger.Info().Str("outcome", string(d.outcome)).Str("reason", d.reason).Msg("payment reconciled")
			}
			s.dispatch(ctx, d.notes)
			return res, nil

		case errors.Is(err, errClaimLost):
			rec, werr := s.awaitOutcome(ctx, ev.EventID)
			if errors.Is(werr, repo.ErrNotFound) {
				// The competing claim rolled back; try to claim again.
				continue
			}
			if werr != nil {
				span.RecordError(werr)
				span.SetStatus(codes.Error, werr.Error())
				logger.Warn().Err(werr).Msg("duplicate delivery while claim is held")
				return nil, werr
			}
			res := &Result{EventID: ev.EventID, Intent: rec.IntentKind, Outcome: rec.Outcome, Reason: rec.Reason, Duplicate: true}
			s.finish(span, res)
			logger.Info().Str("outcome", string(rec.Outcome)).Msg("duplicate delivery")
			return res, nil

		default:
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			logger.Error().Err(err).Msg("payment reconciliation failed")
			return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
		}
	}

	logger.Warn().Msg("claim kept disappearing; giving up for this delivery")
	return nil, ErrInProgress
}

func (s *ReconciliationService) finish(span trace.Span, res *Result) {
	outcome := string(res.Outcome)
	if res.Duplicate {
		outcome = "duplicate"
	}
	reconciliations.WithLabelValues(string(res.Intent), outcome).Inc()
	span.SetAttributes(
		attribute.String("outcome", string(res.Outcome)),
		attribute.String("reason", res.Reason),
		attribute.Bool("duplicate", res.Duplicate),
	)
}

// apply runs claim, effect and outcome in a single transaction.
func (s *ReconciliationService) apply(ctx context.Context, ev *domain.PaymentEvent) (*decision, error) {
	var d *decision
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		received := ev.ReceivedAt
		if received.IsZero() {
			received = s.now()
		}
		claimed, err := repo.ClaimEvent(ctx, tx, &domain.ProcessedEvent{
			EventID:    ev.EventID,
			IntentKind: ev.Intent.Kind(),
			UserID:     ev.Intent.Buyer(),
			ReceivedAt: received,
		})
		if err != nil {
			return fmt.Errorf("claim event: %w", err)
		}
		if !claimed {
			return errClaimLost
		}

		switch in := ev.Intent.(type) {
		case domain.MembershipIntent:
			d, err = s.applyMembership(ctx, tx, ev.EventID, in)
		case domain.TicketIntent:
			d, err = s.applyTicket(ctx, tx, ev.EventID, in)
		default:
			err = fmt.Errorf("unsupported intent %T", in)
		}
		if err != nil {
			return err
		}

		if err := repo.RecordOutcome(ctx, tx, ev.EventID, d.outcome, d.reason); err != nil {
			return fmt.Errorf("record outcome: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (s *ReconciliationService) applyMembership(ctx context.Context, tx *gorm.DB, eventID string, in domain.MembershipIntent) (*decision, error) {
	expires := s.now().UTC().AddDate(0, 1, 0)

	err := repo.ApplyMembership(ctx, tx, in.UserID, in.Tier, expires, in.CustomerRef)
	if errors.Is(err, repo.ErrNotFound) {
		return rejected(eventID, in.Kind(), in.UserID, in.PaidAmount, domain.ReasonUserNotFound), nil
	}
	if err != nil {
		return nil, fmt.Errorf("apply membership: %w", err)
	}
	if err := repo.AddSpend(ctx, tx, in.UserID, in.PaidAmount); err != nil {
		return nil, fmt.Errorf("add spend: %w", err)
	}
	if err := repo.TrackEvent(ctx, tx, "membership_purchased", in.UserID, map[string]any{
		"event_id": eventID,
		"tier":     string(in.Tier),
		"amount":   in.PaidAmount,
	}); err != nil {
		return nil, fmt.Errorf("track event: %w", err)
	}

	return &decision{
		outcome: domain.OutcomeCompleted,
		notes:   []domain.Notification{membershipGranted(eventID, in, expires.Format("Jan 2, 2006"))},
	}, nil
}

func (s *ReconciliationService) applyTicket(ctx context.Context, tx *gorm.DB, eventID string, in domain.TicketIntent) (*decision, error) {
	// Secondary guard: the same provider payment under a new event id.
	if _, err := repo.FindTicketPurchaseByPaymentRef(ctx, tx, in.PaymentRef); err == nil {
		return &decision{outcome: domain.OutcomeIgnored, reason: domain.ReasonDuplicatePayment}, nil
	} else if !errors.Is(err, repo.ErrNotFound) {
		return nil, fmt.Errorf("find purchase: %w", err)
	}

	if _, err := repo.GetUser(ctx, tx, in.UserID); errors.Is(err, repo.ErrNotFound) {
		return rejected(eventID, in.Kind(), in.UserID, in.PaidAmount, domain.ReasonUserNotFound), nil
	} else if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	switch err := repo.ReserveTickets(ctx, tx, in.TourID, in.Quantity); {
	case errors.Is(err, repo.ErrNotFound):
		return rejected(eventID, in.Kind(), in.UserID, in.PaidAmount, domain.ReasonTourNotFound), nil
	case errors.Is(err, repo.ErrCapacityExceeded):
		return rejected(eventID, in.Kind(), in.UserID, in.PaidAmount, domain.ReasonCapacityExceeded), nil
	case err != nil:
		return nil, fmt.Errorf("reserve tickets: %w", err)
	}

	tour, err := repo.GetTour(ctx, tx, in.TourID)
	if err != nil {
		return nil, fmt.Errorf("get tour: %w", err)
	}

	total := in.PaidAmount
	if total <= 0 {
		unit := tour.TicketPrice
		if in.TicketType == domain.TicketVIP {
			unit = tour.VIPPrice
		}
		total = unit * int64(in.Quantity)
	}

	created, err := repo.CreateTicketPurchase(ctx, tx, &domain.TicketPurchase{
		UserID:          in.UserID,
		TourID:          in.TourID,
		TicketType:      in.TicketType,
		Quantity:        in.Quantity,
		TotalAmount:     total,
		StripePaymentID: in.PaymentRef,
		Status:          domain.PurchaseCompleted,
		PurchasedAt:     s.now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("create purchase: %w", err)
	}
	if !created {
		// Lost a race on the payment ref to a concurrent event id.
		if err := repo.ReleaseTickets(ctx, tx, in.TourID, in.Quantity); err != nil {
			return nil, fmt.Errorf("release tickets: %w", err)
		}
		return &decision{outcome: domain.OutcomeIgnored, reason: domain.ReasonDuplicatePayment}, nil
	}

	if err := repo.AddSpend(ctx, tx, in.UserID, total); err != nil {
		return nil, fmt.Errorf("add spend: %w", err)
	}
	if err := repo.TrackEvent(ctx, tx, "ticket_purchased", in.UserID, map[string]any{
		"event_id":    eventID,
		"tour_id":     in.TourID,
		"ticket_type": in.TicketType,
		"quantity":    in.Quantity,
		"amount":      total,
	}); err != nil {
		return nil, fmt.Errorf("track event: %w", err)
	}

	return &decision{
		outcome: domain.OutcomeCompleted,
		notes:   []domain.Notification{ticketConfirmed(eventID, in, tour)},
	}, nil
}

func rejected(eventID string, kind domain.IntentKind, userID, paid int64, reason string) *decision {
	return &decision{
		outcome: domain.OutcomeRejected,
		reason:  reason,
		notes: []domain.Notification{
			unfulfilled(eventID, userID, paid, reason),
			operatorAlert(eventID, kind, userID, paid, reason),
		},
	}
}

// awaitOutcome re-reads the claim row until it carries a terminal outcome,
// the wait budget runs out (ErrInProgress) or the row disappears
// (repo.ErrNotFound).
func (s *ReconciliationService) awaitOutcome(ctx context.Context, eventID string) (*domain.ProcessedEvent, error) {
	poll := s.ClaimPollInterval
	if poll <= 0 {
		poll = 50 * time.Millisecond
	}
	deadline := time.Now().Add(s.ClaimWait)

	for {
		rec, err := repo.GetProcessedEvent(ctx, s.DB, eventID)
		switch {
		case errors.Is(err, repo.ErrNotFound):
			return nil, repo.ErrNotFound
		case err != nil:
			return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
		case rec.Outcome.Terminal():
			return rec, nil
		}

		if !time.Now().Add(poll).Before(deadline) {
			return nil, ErrInProgress
		}
		t := time.NewTimer(poll)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ErrInProgress
		case <-t.C:
		}
	}
}

// dispatch hands notifications to the sink after commit. The request context
// may already be near its deadline, so each hand-off gets its own budget.
func (s *ReconciliationService) dispatch(ctx context.Context, notes []domain.Notification) {
	if s.Notifier == nil || len(notes) == 0 {
		return
	}
	timeout := s.NotifyTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	base := context.WithoutCancel(ctx)
	for _, n := range notes {
		nctx, cancel := context.WithTimeout(base, timeout)
		if err := s.Notifier.Notify(nctx, n); err != nil {
			log.Warn().Err(err).
				Str("event_id", n.EventID).
				Str("kind", string(n.Kind)).
				Int64("user_id", n.UserID).
				Msg("notification hand-off failed")
		}
		cancel()
	}
}

func (s *ReconciliationService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
