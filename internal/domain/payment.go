package domain

import "time"

// PaymentEvent is a verified provider notification normalized into one of
// the intents the reconciliation engine understands.
//
// EventID is unique per provider delivery and is the idempotency key: the
// same EventID must never produce two effects.
type PaymentEvent struct {
	EventID    string
	Intent     Intent
	ReceivedAt time.Time
}

// IntentKind names an Intent variant.
type IntentKind string

const (
	IntentMembership IntentKind = "membership"
	IntentTicket     IntentKind = "ticket"
)

// Intent is the closed set of effects a payment can request. The unexported
// method keeps the set closed to this package.
type Intent interface {
	Kind() IntentKind
	Buyer() int64
	isIntent()
}

// MembershipIntent grants Tier to UserID for one month.
type MembershipIntent struct {
	UserID      int64
	Tier        Tier
	PaidAmount  int64
	CustomerRef string
}

func (MembershipIntent) Kind() IntentKind { return IntentMembership }
func (m MembershipIntent) Buyer() int64   { return m.UserID }
func (MembershipIntent) isIntent()        {}

// TicketIntent buys Quantity tickets of TicketType for TourID.
type TicketIntent struct {
	UserID     int64
	TourID     int64
	TicketType string
	Quantity   int
	PaidAmount int64
	PaymentRef string
}

func (TicketIntent) Kind() IntentKind { return IntentTicket }
func (t TicketIntent) Buyer() int64   { return t.UserID }
func (TicketIntent) isIntent()        {}
