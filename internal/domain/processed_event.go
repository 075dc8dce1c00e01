package domain

import "time"

// Outcome is the terminal (or in-flight) state of a processed event.
type Outcome string

const (
	// OutcomePending marks a claim whose effect has not been recorded yet.
	OutcomePending Outcome = "pending"
	// OutcomeCompleted means the domain effect was applied.
	OutcomeCompleted Outcome = "completed"
	// OutcomeRejected means payment arrived but the effect could not be
	// honored (see Reason). Operators must act on these.
	OutcomeRejected Outcome = "rejected"
	// OutcomeIgnored means the payment was already applied under another
	// event id; nothing was changed.
	OutcomeIgnored Outcome = "ignored"
)

// Terminal reports whether o is a final outcome.
func (o Outcome) Terminal() bool { return o != OutcomePending && o != "" }

// Rejection and ignore reasons stored alongside an outcome.
const (
	ReasonCapacityExceeded = "capacity_exceeded"
	ReasonUserNotFound     = "user_not_found"
	ReasonTourNotFound     = "tour_not_found"
	ReasonDuplicatePayment = "duplicate_payment_ref"
)

// ProcessedEvent is the claim row for one provider event id. It is inserted
// in the same transaction as the domain effect and never deleted.
type ProcessedEvent struct {
	EventID    string     `json:"event_id"    gorm:"type:varchar(255);primaryKey"`
	IntentKind IntentKind `json:"intent"      gorm:"type:varchar(32);not null"`
	UserID     int64      `json:"user_id"     gorm:"index"`
	Outcome    Outcome    `json:"outcome"     gorm:"type:varchar(32);not null;index"`
	Reason     string     `json:"reason"      gorm:"type:text;not null;default:''"`
	ReceivedAt time.Time  `json:"received_at" gorm:"not null"`
	CreatedAt  time.Time  `json:"created_at"  gorm:"not null;index"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// TableName returns the database table name for ProcessedEvent.
func (ProcessedEvent) TableName() string { return "processed_events" }
