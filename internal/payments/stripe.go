// Package payments verifies inbound Stripe webhooks and normalizes them into
// domain.PaymentEvent values.
//
// Only checkout.session.completed carries an intent. Its metadata is decoded
// into exactly one of domain.MembershipIntent or domain.TicketIntent; anything
// ambiguous or malformed is a *VerificationError rather than a guess.
package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/tbourn/fanclub-backend/internal/domain"
)

// SignatureHeader is the header Stripe signs webhook deliveries with.
const SignatureHeader = "Stripe-Signature"

// EventCheckoutCompleted is the only event type that is reconciled.
const EventCheckoutCompleted = "checkout.session.completed"

// StripeAdapter verifies signatures with a shared webhook secret.
type StripeAdapter struct {
	secret    string
	tolerance time.Duration

	// now is swapped in tests.
	now func() time.Time
}

// NewStripeAdapter builds an adapter for secret. A tolerance of zero
// disables the timestamp freshness check.
func NewStripeAdapter(secret string, tolerance time.Duration) *StripeAdapter {
	return &StripeAdapter{
		secret:    strings.TrimSpace(secret),
		tolerance: tolerance,
		now:       time.Now,
	}
}

type stripeEvent struct {
	ID      string          `json:"id"`
	EventID string          `json:"event_id"`
	Type    string          `json:"type"`
	Created int64           `json:"created"`
	Data    stripeEventData `json:"data"`
}

type stripeEventData struct {
	Object json.RawMessage `json:"object"`
}

type checkoutSession struct {
	ID            string         `json:"id"`
	AmountTotal   int64          `json:"amount_total"`
	Customer      *string        `json:"customer"`
	PaymentIntent *string        `json:"payment_intent"`
	Metadata      map[string]any `json:"metadata"`
}

// VerifyAndParse authenticates payload against sigHeader and decodes it.
// It has no side effects. Authentic events of other types return
// ErrEventIgnored.
func (a *StripeAdapter) VerifyAndParse(payload []byte, sigHeader string) (*domain.PaymentEvent, error) {
	if err := a.verify(payload, sigHeader); err != nil {
		return nil, err
	}

	var ev stripeEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, verr(CodeInvalidPayload, "decode event: %v", err)
	}
	id := strings.TrimSpace(ev.ID)
	if id == "" {
		id = strings.TrimSpace(ev.EventID)
	}
	if id == "" {
		return nil, verr(CodeInvalidPayload, "event id is empty")
	}
	if strings.TrimSpace(ev.Type) != EventCheckoutCompleted {
		return nil, ErrEventIgnored
	}

	var session checkoutSession
	if len(ev.Data.Object) == 0 {
		return nil, verr(CodeInvalidPayload, "event has no data.object")
	}
	if err := json.Unmarshal(ev.Data.Object, &session); err != nil {
		return nil, verr(CodeInvalidPayload, "decode checkout session: %v", err)
	}

	intent, err := parseIntent(session)
	if err != nil {
		return nil, err
	}

	received := a.now().UTC()
	if ev.Created > 0 {
		received = time.Unix(ev.Created, 0).UTC()
	}
	return &domain.PaymentEvent{
		EventID:    id,
		Intent:     intent,
		ReceivedAt: received,
	}, nil
}

func (a *StripeAdapter) verify(payload []byte, header string) error {
	header = strings.TrimSpace(header)
	if header == "" {
		return verr(CodeMissingSignature, "%s header is empty", SignatureHeader)
	}
	ts, sigs, ok := parseStripeSignature(header)
	if !ok {
		return verr(CodeInvalidSignature, "malformed %s header", SignatureHeader)
	}

	expected := computeSignature(a.secret, ts, payload)
	matched := false
	for _, s := range sigs {
		if hmac.Equal([]byte(s), []byte(expected)) {
			matched = true
			break
		}
	}
	if !matched {
		return verr(CodeInvalidSignature, "no v1 signature matches")
	}

	if a.tolerance > 0 {
		sec, err := strconv.ParseInt(ts, 10, 64)
		if err != nil {
			return verr(CodeInvalidSignature, "bad timestamp %q", ts)
		}
		age := a.now().Sub(time.Unix(sec, 0))
		if age > a.tolerance || age < -a.tolerance {
			return verr(CodeSignatureExpired, "timestamp outside tolerance (%s)", age.Round(time.Second))
		}
	}
	return nil
}

// computeSignature returns the hex HMAC-SHA256 of "<timestamp>.<payload>".
func computeSignature(secret, timestamp string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(timestamp))
	_, _ = mac.Write([]byte("."))
	_, _ = mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// SignPayload builds a header value for payload signed at ts. Used by tests
// and local tooling that replays webhooks.
func SignPayload(secret string, payload []byte, ts time.Time) string {
	t := strconv.FormatInt(ts.Unix(), 10)
	return "t=" + t + ",v1=" + computeSignature(secret, t, payload)
}

func parseStripeSignature(header string) (string, []string, bool) {
	var (
		timestamp  string
		signatures []string
	)
	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch strings.TrimSpace(kv[0]) {
		case "t":
			timestamp = strings.TrimSpace(kv[1])
		case "v1":
			signatures = append(signatures, strings.TrimSpace(kv[1]))
		}
	}
	return timestamp, signatures, timestamp != "" && len(signatures) > 0
}

func parseIntent(s checkoutSession) (domain.Intent, error) {
	md := s.Metadata
	if len(md) == 0 {
		return nil, verr(CodeMissingMetadata, "session %s has no metadata", s.ID)
	}

	rawUser := readMetadataValue(md, "user_id")
	if rawUser == "" {
		return nil, verr(CodeMissingMetadata, "user_id is required")
	}
	userID, err := strconv.ParseInt(rawUser, 10, 64)
	if err != nil || userID <= 0 {
		return nil, verr(CodeInvalidMetadata, "user_id %q is not a positive integer", rawUser)
	}

	rawTier := readMetadataValue(md, "tier")
	rawTour := readMetadataValue(md, "tour_id")
	switch {
	case rawTier == "" && rawTour == "":
		return nil, verr(CodeMissingMetadata, "one of tier or tour_id is required")
	case rawTier != "" && rawTour != "":
		return nil, verr(CodeInvalidMetadata, "tier and tour_id are mutually exclusive")
	}

	if rawTier != "" {
		tier, ok := domain.ParseTier(rawTier)
		if !ok || tier == domain.TierFree {
			return nil, verr(CodeInvalidMetadata, "unknown tier %q", rawTier)
		}
		return domain.MembershipIntent{
			UserID:      userID,
			Tier:        tier,
			PaidAmount:  s.AmountTotal,
			CustomerRef: deref(s.Customer),
		}, nil
	}

	tourID, err := strconv.ParseInt(rawTour, 10, 64)
	if err != nil || tourID <= 0 {
		return nil, verr(CodeInvalidMetadata, "tour_id %q is not a positive integer", rawTour)
	}

	ticketType := strings.ToLower(readMetadataValue(md, "ticket_type"))
	switch ticketType {
	case "":
		ticketType = domain.TicketGeneral
	case domain.TicketGeneral, domain.TicketVIP:
	default:
		return nil, verr(CodeInvalidMetadata, "unknown ticket_type %q", ticketType)
	}

	quantity := 1
	if rawQty := readMetadataValue(md, "quantity"); rawQty != "" {
		q, err := strconv.Atoi(rawQty)
		if err != nil || q <= 0 {
			return nil, verr(CodeInvalidMetadata, "quantity %q is not a positive integer", rawQty)
		}
		quantity = q
	}

	ref := deref(s.PaymentIntent)
	if ref == "" {
		ref = strings.TrimSpace(s.ID)
	}
	if ref == "" {
		return nil, verr(CodeInvalidPayload, "session has neither payment_intent nor id")
	}

	return domain.TicketIntent{
		UserID:     userID,
		TourID:     tourID,
		TicketType: ticketType,
		Quantity:   quantity,
		PaidAmount: s.AmountTotal,
		PaymentRef: ref,
	}, nil
}

func readMetadataValue(metadata map[string]any, key string) string {
	value, ok := metadata[key]
	if !ok || value == nil {
		return ""
	}
	switch cast := value.(type) {
	case string:
		return strings.TrimSpace(cast)
	case float64:
		if cast != float64(int64(cast)) {
			return strconv.FormatFloat(cast, 'f', -1, 64)
		}
		return strconv.FormatInt(int64(cast), 10)
	case json.Number:
		return cast.String()
	case bool:
		return strconv.FormatBool(cast)
	}
	return ""
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}
