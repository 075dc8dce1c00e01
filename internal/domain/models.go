// Package domain defines the persistence models for fans, tours, ticket
// purchases and analytics. These types are mapped with GORM and shared by the
// repository, service and HTTP layers.
package domain

import (
	"time"

	"gorm.io/datatypes"
)

// User is a fan registered through the Telegram bot. Membership state lives
// on the user row and is mutated only by payment reconciliation.
//
// Fields:
//   - ID: serial primary key; this is the value carried as user_id in
//     checkout metadata.
//   - TelegramID: the chat the bot talks to (unique).
//   - MembershipTier / MembershipExpires: current plan and its expiry.
//   - StripeCustomerID: provider customer reference from the last membership checkout.
//   - TotalSpent: lifetime spend in minor currency units.
type User struct {
	ID                int64      `json:"id"                  gorm:"primaryKey;autoIncrement"`
	TelegramID        int64      `json:"telegram_id"         gorm:"not null;uniqueIndex"`
	Username          string     `json:"username,omitempty"  gorm:"type:varchar(255)"`
	FirstName         string     `json:"first_name,omitempty" gorm:"type:varchar(255)"`
	Email             string     `json:"-"                   gorm:"type:varchar(255)"`
	MembershipTier    Tier       `json:"membership_tier"     gorm:"type:varchar(50);not null;default:'free'"`
	MembershipExpires *time.Time `json:"membership_expires,omitempty"`
	StripeCustomerID  string     `json:"-"                   gorm:"type:varchar(255)"`
	TotalSpent        int64      `json:"total_spent"         gorm:"not null;default:0"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// Tour is a single concert date. TicketsAvailable is the fixed capacity set
// when the tour is created; TicketsSold only grows through reconciliation and
// never exceeds TicketsAvailable.
type Tour struct {
	ID               int64     `json:"id"                gorm:"primaryKey;autoIncrement"`
	City             string    `json:"city"              gorm:"type:varchar(255);not null"`
	Venue            string    `json:"venue"             gorm:"type:varchar(255);not null"`
	Date             time.Time `json:"date"              gorm:"not null;index"`
	TicketsAvailable int       `json:"tickets_available" gorm:"not null;default:0;check:tickets_available >= 0"`
	TicketsSold      int       `json:"tickets_sold"      gorm:"not null;default:0;check:tickets_sold >= 0"`
	TicketPrice      int64     `json:"ticket_price"      gorm:"not null;default:0"`
	VIPPrice         int64     `json:"vip_price"         gorm:"not null;default:0"`
	Status           string    `json:"status"            gorm:"type:varchar(50);not null;default:'active'"`
	CreatedAt        time.Time `json:"created_at"`
}

// TableName returns the database table name for Tour.
func (Tour) TableName() string { return "tours" }

// Remaining reports how many tickets can still be sold.
func (t Tour) Remaining() int {
	if r := t.TicketsAvailable - t.TicketsSold; r > 0 {
		return r
	}
	return 0
}

// Ticket purchase statuses.
const (
	PurchasePending   = "pending"
	PurchaseCompleted = "completed"
	PurchaseRefunded  = "refunded"
)

// Ticket types offered at checkout.
const (
	TicketGeneral = "general"
	TicketVIP     = "vip"
)

// TicketPurchase records one completed checkout for a tour. StripePaymentID
// is unique so the same provider payment can never be recorded twice, even
// when it arrives under different event ids.
type TicketPurchase struct {
	ID              int64     `json:"id"                gorm:"primaryKey;autoIncrement"`
	UserID          int64     `json:"user_id"           gorm:"not null;index"`
	TourID          int64     `json:"tour_id"           gorm:"not null;index"`
	TicketType      string    `json:"ticket_type"       gorm:"type:varchar(50);not null;default:'general'"`
	Quantity        int       `json:"quantity"          gorm:"not null;default:1;check:quantity > 0"`
	TotalAmount     int64     `json:"total_amount"      gorm:"not null;default:0"` // minor units
	StripePaymentID string    `json:"stripe_payment_id" gorm:"type:varchar(255);not null;uniqueIndex"`
	Status          string    `json:"status"            gorm:"type:varchar(50);not null;default:'pending'"`
	PurchasedAt     time.Time `json:"purchased_at"      gorm:"not null"`

	User User `json:"-" gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
	Tour Tour `json:"-" gorm:"foreignKey:TourID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
}

// TableName returns the database table name for TicketPurchase.
func (TicketPurchase) TableName() string { return "ticket_purchases" }

// AnalyticsEvent is an append-only product analytics row.
type AnalyticsEvent struct {
	ID        int64             `json:"id"         gorm:"primaryKey;autoIncrement"`
	EventType string            `json:"event_type" gorm:"type:varchar(100);not null;index"`
	UserID    int64             `json:"user_id"    gorm:"index"`
	Metadata  datatypes.JSONMap `json:"metadata"`
	CreatedAt time.Time         `json:"created_at" gorm:"index"`
}

// TableName returns the database table name for AnalyticsEvent.
func (AnalyticsEvent) TableName() string { return "analytics" }
