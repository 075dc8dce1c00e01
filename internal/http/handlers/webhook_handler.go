// Payment webhook handler.
//
// The gateway retries any non-2xx delivery, so the status code is the only
// retry signal that matters:
//   - 200 for every terminal outcome (completed, rejected, ignored, duplicate)
//     and for authentic events of types we do not act on
//   - 400 when the event cannot be authenticated or decoded; redelivering the
//     same bytes will not help
//   - 503 with Retry-After when nothing was committed and a later delivery
//     can succeed (store failure, claim held by another delivery, timeout)
package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/fanclub-backend/internal/domain"
	"github.com/tbourn/fanclub-backend/internal/http/middleware"
	"github.com/tbourn/fanclub-backend/internal/payments"
	"github.com/tbourn/fanclub-backend/internal/services"
)

// WebhookAck is the body returned to the gateway on acceptance.
type WebhookAck struct {
	Received  bool              `json:"received" example:"true"`
	Ignored   bool              `json:"ignored,omitempty"`
	EventID   string            `json:"event_id,omitempty" example:"evt_1Nf3xY2eZvKYlo2C"`
	Intent    domain.IntentKind `json:"intent,omitempty" example:"ticket"`
	Outcome   domain.Outcome    `json:"outcome,omitempty" example:"completed"`
	Reason    string            `json:"reason,omitempty" example:"capacity_exceeded"`
	Duplicate bool              `json:"duplicate,omitempty"`
}

// StripeWebhook godoc
// @ID          stripeWebhook
// @Summary     Receive a payment confirmation
// @Description Verifies the Stripe-Signature header over the raw body, then applies checkout.session.completed events exactly once. Terminal outcomes (including rejections and duplicates) return 200.
// @Tags        Webhooks
// @Accept      json
// @Produce     json
//
// @Param       Stripe-Signature  header  string  true  "t=<unix>,v1=<hex hmac-sha256>"
// @Param       body              body    object  true  "Raw gateway event"
//
// @Success     200  {object}  handlers.WebhookAck
// @Failure     400  {object}  handlers.ErrorResponse  "Verification failed"
// @Failure     413  {object}  handlers.ErrorResponse  "Body too large"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Failure     503  {object}  handlers.ErrorResponse  "Transient failure; redeliver"
// @Router      /webhook/stripe [post]
func (h *Handlers) StripeWebhook(c *gin.Context) {
	lg := middleware.LoggerFrom(c)

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			fail(c, http.StatusRequestEntityTooLarge, ErrCodePayloadTooLarge, "request body too large")
			return
		}
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unreadable request body")
		return
	}

	ev, err := h.verifier.VerifyAndParse(body, c.GetHeader(payments.SignatureHeader))
	if err != nil {
		if errors.Is(err, payments.ErrEventIgnored) {
			lg.Debug().Msg("webhook event type ignored")
			ok(c, http.StatusOK, WebhookAck{Received: true, Ignored: true})
			return
		}
		var ve *payments.VerificationError
		if errors.As(err, &ve) {
			lg.Warn().Str("code", ve.Code).Err(err).Msg("webhook rejected")
			fail(c, http.StatusBadRequest, ve.Code, ve.Error())
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}

	ctx := c.Request.Context()
	if h.ReconcileTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.ReconcileTimeout)
		defer cancel()
	}

	res, err := h.reconciler.Reconcile(ctx, ev)
	if err != nil {
		if services.IsTransient(err) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			lg.Warn().Err(err).Str("event_id", ev.EventID).Msg("reconciliation deferred")
			failRetry(c, http.StatusServiceUnavailable, h.RetryAfter, ErrCodeStoreUnavailable, "reconciliation temporarily unavailable; retry later")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeReconcileFailed, err.Error())
		return
	}

	ok(c, http.StatusOK, WebhookAck{
		Received:  true,
		EventID:   res.EventID,
		Intent:    res.Intent,
		Outcome:   res.Outcome,
		Reason:    res.Reason,
		Duplicate: res.Duplicate,
	})
}
