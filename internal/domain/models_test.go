package domain

import (
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newDomainDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:domain_models?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// One connection so the PRAGMA applies to every statement.
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}
	// Enforce FKs so RESTRICT actually fires.
	db.Exec("PRAGMA foreign_keys=ON;")
	return db
}

func TestTableNames(t *testing.T) {
	cases := map[string]string{
		User{}.TableName():           "users",
		Tour{}.TableName():           "tours",
		TicketPurchase{}.TableName(): "ticket_purchases",
		ProcessedEvent{}.TableName(): "processed_events",
		AnalyticsEvent{}.TableName(): "analytics",
	}
	for got, want := range cases {
		if got != want {
			t.Fatalf("TableName() = %q; want %q", got, want)
		}
	}
}

func TestTourRemaining(t *testing.T) {
	if r := (Tour{TicketsAvailable: 10, TicketsSold: 8}).Remaining(); r != 2 {
		t.Fatalf("Remaining = %d; want 2", r)
	}
	if r := (Tour{TicketsAvailable: 5, TicketsSold: 7}).Remaining(); r != 0 {
		t.Fatalf("Remaining must clamp at 0, got %d", r)
	}
}

func TestOutcomeTerminal(t *testing.T) {
	if OutcomePending.Terminal() || Outcome("").Terminal() {
		t.Fatalf("pending and empty outcomes must not be terminal")
	}
	for _, o := range []Outcome{OutcomeCompleted, OutcomeRejected, OutcomeIgnored} {
		if !o.Terminal() {
			t.Fatalf("%q should be terminal", o)
		}
	}
}

func TestMigrations_Constraints(t *testing.T) {
	db := newDomainDB(t)

	if err := db.AutoMigrate(&User{}, &Tour{}, &TicketPurchase{}, &ProcessedEvent{}, &AnalyticsEvent{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	m := db.Migrator()
	for _, tbl := range []any{&User{}, &Tour{}, &TicketPurchase{}, &ProcessedEvent{}, &AnalyticsEvent{}} {
		if !m.HasTable(tbl) {
			t.Fatalf("expected table for %T to exist", tbl)
		}
	}

	now := time.Now().UTC()
	u := &User{TelegramID: 42, Username: "fan"}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("insert user: %v", err)
	}
	if u.MembershipTier != TierFree {
		var got User
		db.First(&got, u.ID)
		if got.MembershipTier != TierFree {
			t.Fatalf("default tier = %q; want free", got.MembershipTier)
		}
	}

	// Unique telegram id.
	if err := db.Create(&User{TelegramID: 42}).Error; err == nil {
		t.Fatalf("expected unique violation on telegram_id")
	}

	tour := &Tour{City: "Berlin", Venue: "Arena", Date: now, TicketsAvailable: 10}
	if err := db.Create(tour).Error; err != nil {
		t.Fatalf("insert tour: %v", err)
	}

	// tickets_sold can never go negative.
	if err := db.Model(&Tour{}).Where("id = ?", tour.ID).Update("tickets_sold", -1).Error; err == nil {
		t.Fatalf("expected check constraint violation for negative tickets_sold")
	}

	p := &TicketPurchase{UserID: u.ID, TourID: tour.ID, TicketType: TicketGeneral, Quantity: 1, StripePaymentID: "pi_1", Status: PurchaseCompleted, PurchasedAt: now}
	if err := db.Omit("User", "Tour").Create(p).Error; err != nil {
		t.Fatalf("insert purchase: %v", err)
	}
	dup := &TicketPurchase{UserID: u.ID, TourID: tour.ID, TicketType: TicketGeneral, Quantity: 1, StripePaymentID: "pi_1", Status: PurchaseCompleted, PurchasedAt: now}
	if err := db.Omit("User", "Tour").Create(dup).Error; err == nil {
		t.Fatalf("expected unique violation on stripe_payment_id")
	}

	// RESTRICT: a tour with purchases cannot be deleted.
	if err := db.Delete(&Tour{}, tour.ID).Error; err == nil {
		t.Fatalf("expected foreign key restriction when deleting a sold tour")
	}
}
