package payments

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbourn/fanclub-backend/internal/domain"
)

const testSecret = "whsec_test"

var fixedNow = time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)

func newTestAdapter(tolerance time.Duration) *StripeAdapter {
	a := NewStripeAdapter(testSecret, tolerance)
	a.now = func() time.Time { return fixedNow }
	return a
}

func checkoutPayload(t *testing.T, id string, metadata map[string]any, extra map[string]any) []byte {
	t.Helper()
	obj := map[string]any{
		"id":             "cs_test_1",
		"amount_total":   2999,
		"customer":       "cus_1",
		"payment_intent": "pi_1",
		"metadata":       metadata,
	}
	for k, v := range extra {
		obj[k] = v
	}
	body, err := json.Marshal(map[string]any{
		"id":      id,
		"type":    EventCheckoutCompleted,
		"created": fixedNow.Unix(),
		"data":    map[string]any{"object": obj},
	})
	require.NoError(t, err)
	return body
}

func verificationCode(t *testing.T, err error) string {
	t.Helper()
	var ve *VerificationError
	require.True(t, errors.As(err, &ve), "expected *VerificationError, got %v", err)
	return ve.Code
}

func TestVerifyAndParse_Membership(t *testing.T) {
	a := newTestAdapter(5 * time.Minute)
	body := checkoutPayload(t, "evt_m1", map[string]any{"user_id": "42", "tier": "Gold"}, nil)

	ev, err := a.VerifyAndParse(body, SignPayload(testSecret, body, fixedNow))
	require.NoError(t, err)

	assert.Equal(t, "evt_m1", ev.EventID)
	assert.Equal(t, fixedNow, ev.ReceivedAt)
	m, ok := ev.Intent.(domain.MembershipIntent)
	require.True(t, ok, "expected MembershipIntent, got %T", ev.Intent)
	assert.Equal(t, int64(42), m.UserID)
	assert.Equal(t, domain.TierGold, m.Tier)
	assert.Equal(t, int64(2999), m.PaidAmount)
	assert.Equal(t, "cus_1", m.CustomerRef)
}

func TestVerifyAndParse_TicketDefaults(t *testing.T) {
	a := newTestAdapter(0)
	body := checkoutPayload(t, "evt_t1", map[string]any{"user_id": "7", "tour_id": "3"}, nil)

	ev, err := a.VerifyAndParse(body, SignPayload(testSecret, body, fixedNow))
	require.NoError(t, err)

	ti, ok := ev.Intent.(domain.TicketIntent)
	require.True(t, ok, "expected TicketIntent, got %T", ev.Intent)
	assert.Equal(t, int64(7), ti.UserID)
	assert.Equal(t, int64(3), ti.TourID)
	assert.Equal(t, domain.TicketGeneral, ti.TicketType)
	assert.Equal(t, 1, ti.Quantity)
	assert.Equal(t, "pi_1", ti.PaymentRef)
}

func TestVerifyAndParse_TicketExplicitFields(t *testing.T) {
	a := newTestAdapter(0)
	body := checkoutPayload(t, "evt_t2",
		map[string]any{"user_id": 7, "tour_id": 3, "ticket_type": "VIP", "quantity": "2"},
		map[string]any{"payment_intent": nil},
	)

	ev, err := a.VerifyAndParse(body, SignPayload(testSecret, body, fixedNow))
	require.NoError(t, err)

	ti := ev.Intent.(domain.TicketIntent)
	assert.Equal(t, domain.TicketVIP, ti.TicketType)
	assert.Equal(t, 2, ti.Quantity)
	// Falls back to the session id when there is no payment intent.
	assert.Equal(t, "cs_test_1", ti.PaymentRef)
}

func TestVerifyAndParse_SignatureFailures(t *testing.T) {
	a := newTestAdapter(5 * time.Minute)
	body := checkoutPayload(t, "evt_s", map[string]any{"user_id": "1", "tier": "gold"}, nil)

	cases := []struct {
		name   string
		header string
		code   string
	}{
		{"missing", "", CodeMissingSignature},
		{"malformed", "garbage", CodeInvalidSignature},
		{"wrong secret", SignPayload("other", body, fixedNow), CodeInvalidSignature},
		{"expired", SignPayload(testSecret, body, fixedNow.Add(-10*time.Minute)), CodeSignatureExpired},
		{"future", SignPayload(testSecret, body, fixedNow.Add(10*time.Minute)), CodeSignatureExpired},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			ev, err := a.VerifyAndParse(body, c.header)
			assert.Nil(t, ev)
			assert.Equal(t, c.code, verificationCode(t, err))
		})
	}
}

func TestVerifyAndParse_TamperedBody(t *testing.T) {
	a := newTestAdapter(0)
	body := checkoutPayload(t, "evt_x", map[string]any{"user_id": "1", "tier": "gold"}, nil)
	header := SignPayload(testSecret, body, fixedNow)

	tampered := checkoutPayload(t, "evt_x", map[string]any{"user_id": "1", "tier": "platinum"}, nil)
	_, err := a.VerifyAndParse(tampered, header)
	assert.Equal(t, CodeInvalidSignature, verificationCode(t, err))
}

func TestVerifyAndParse_AcceptsAnyMatchingV1(t *testing.T) {
	a := newTestAdapter(0)
	body := checkoutPayload(t, "evt_rot", map[string]any{"user_id": "1", "tier": "silver"}, nil)
	good := SignPayload(testSecret, body, fixedNow)

	// Secret rotation: Stripe sends one v1 per active secret.
	header := good + ",v1=deadbeef"
	_, err := a.VerifyAndParse(body, header)
	assert.NoError(t, err)
}

func TestVerifyAndParse_MetadataValidation(t *testing.T) {
	a := newTestAdapter(0)
	cases := []struct {
		name string
		md   map[string]any
		code string
	}{
		{"no metadata", map[string]any{}, CodeMissingMetadata},
		{"no user", map[string]any{"tier": "gold"}, CodeMissingMetadata},
		{"bad user", map[string]any{"user_id": "abc", "tier": "gold"}, CodeInvalidMetadata},
		{"zero user", map[string]any{"user_id": "0", "tier": "gold"}, CodeInvalidMetadata},
		{"neither", map[string]any{"user_id": "1"}, CodeMissingMetadata},
		{"both", map[string]any{"user_id": "1", "tier": "gold", "tour_id": "2"}, CodeInvalidMetadata},
		{"unknown tier", map[string]any{"user_id": "1", "tier": "diamond"}, CodeInvalidMetadata},
		{"free tier", map[string]any{"user_id": "1", "tier": "free"}, CodeInvalidMetadata},
		{"bad tour", map[string]any{"user_id": "1", "tour_id": "x"}, CodeInvalidMetadata},
		{"bad ticket type", map[string]any{"user_id": "1", "tour_id": "2", "ticket_type": "backstage"}, CodeInvalidMetadata},
		{"zero quantity", map[string]any{"user_id": "1", "tour_id": "2", "quantity": "0"}, CodeInvalidMetadata},
		{"fractional quantity", map[string]any{"user_id": "1", "tour_id": "2", "quantity": 1.5}, CodeInvalidMetadata},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			body := checkoutPayload(t, "evt_md", c.md, nil)
			_, err := a.VerifyAndParse(body, SignPayload(testSecret, body, fixedNow))
			assert.Equal(t, c.code, verificationCode(t, err))
		})
	}
}

func TestVerifyAndParse_IgnoredType(t *testing.T) {
	a := newTestAdapter(0)
	body := []byte(`{"id":"evt_other","type":"customer.created","data":{"object":{}}}`)
	_, err := a.VerifyAndParse(body, SignPayload(testSecret, body, fixedNow))
	assert.ErrorIs(t, err, ErrEventIgnored)
	assert.False(t, IsVerificationError(err))
}

func TestVerifyAndParse_InvalidPayload(t *testing.T) {
	a := newTestAdapter(0)

	notJSON := []byte(`{"id":`)
	_, err := a.VerifyAndParse(notJSON, SignPayload(testSecret, notJSON, fixedNow))
	assert.Equal(t, CodeInvalidPayload, verificationCode(t, err))

	noID := []byte(`{"type":"checkout.session.completed","data":{"object":{}}}`)
	_, err = a.VerifyAndParse(noID, SignPayload(testSecret, noID, fixedNow))
	assert.Equal(t, CodeInvalidPayload, verificationCode(t, err))

	legacyID := []byte(`{"event_id":"evt_legacy","type":"checkout.session.completed","data":{"object":{"id":"cs_1","metadata":{"user_id":"5","tier":"gold"}}}}`)
	ev, err := a.VerifyAndParse(legacyID, SignPayload(testSecret, legacyID, fixedNow))
	require.NoError(t, err)
	assert.Equal(t, "evt_legacy", ev.EventID)
}
