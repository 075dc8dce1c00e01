package services

import (
	"fmt"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/tbourn/fanclub-backend/internal/domain"
)

// Casers are stateful, so each call builds its own.
func title(s string) string { return cases.Title(language.English).String(s) }

func printer() *message.Printer { return message.NewPrinter(language.English) }

// formatAmount renders minor units as US dollars with grouping.
func formatAmount(minor int64) string {
	return printer().Sprintf("$%.2f", float64(minor)/100)
}

func ticketLabel(ticketType string) string {
	if ticketType == domain.TicketVIP {
		return "VIP"
	}
	return title(ticketType)
}

func membershipGranted(eventID string, in domain.MembershipIntent, expires string) domain.Notification {
	info := in.Tier.Info()
	return domain.Notification{
		Kind:    domain.NotifyMembershipGranted,
		UserID:  in.UserID,
		EventID: eventID,
		Subject: fmt.Sprintf("Welcome to %s", info.Name),
		Message: fmt.Sprintf("🎉 Welcome to %s! Your benefits are now active until %s.", info.Name, expires),
	}
}

func ticketConfirmed(eventID string, in domain.TicketIntent, tour *domain.Tour) domain.Notification {
	where := ""
	if tour != nil {
		where = fmt.Sprintf(" for %s, %s on %s", title(tour.City), tour.Venue, tour.Date.Format("Jan 2, 2006"))
	}
	return domain.Notification{
		Kind:    domain.NotifyTicketConfirmed,
		UserID:  in.UserID,
		EventID: eventID,
		Subject: "Ticket confirmed",
		Message: printer().Sprintf("🎫 Ticket confirmed! %d × %s%s. Check your email for details.",
			in.Quantity, ticketLabel(in.TicketType), where),
	}
}

// unfulfilled tells the fan their payment arrived but nothing was granted.
func unfulfilled(eventID string, userID int64, paid int64, reason string) domain.Notification {
	what := "your purchase"
	switch reason {
	case domain.ReasonCapacityExceeded:
		what = "your tickets: the show sold out before your order completed"
	case domain.ReasonTourNotFound:
		what = "your tickets: the show is no longer available"
	}
	return domain.Notification{
		Kind:    domain.NotifyUnfulfilled,
		UserID:  userID,
		EventID: eventID,
		Subject: "Payment received, order not fulfilled",
		Message: fmt.Sprintf("⚠️ We received your payment of %s but could not fulfil %s. Our team has been notified and will contact you.",
			formatAmount(paid), what),
	}
}

func operatorAlert(eventID string, kind domain.IntentKind, userID int64, paid int64, reason string) domain.Notification {
	return domain.Notification{
		Kind:    domain.NotifyOperatorAlert,
		UserID:  userID,
		EventID: eventID,
		Subject: "Paid reconciliation rejected",
		Message: fmt.Sprintf("🚨 Rejected %s payment %s (user %d, %s): %s. Manual follow-up required.",
			kind, eventID, userID, formatAmount(paid), reason),
	}
}
