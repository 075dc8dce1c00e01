package domain

// NotificationKind selects the template and audience of a notification.
type NotificationKind string

const (
	NotifyMembershipGranted NotificationKind = "membership_granted"
	NotifyTicketConfirmed   NotificationKind = "ticket_confirmed"
	NotifyUnfulfilled       NotificationKind = "payment_unfulfilled"
	NotifyOperatorAlert     NotificationKind = "operator_alert"
)

// Notification is a best-effort message for a fan (UserID) or, for
// NotifyOperatorAlert, for the operations chat.
type Notification struct {
	Kind    NotificationKind `json:"kind"`
	UserID  int64            `json:"user_id,omitempty"`
	Subject string           `json:"subject,omitempty"`
	Message string           `json:"message"`
	EventID string           `json:"event_id,omitempty"`
}

// ForOperators reports whether n targets the operations chat instead of a fan.
func (n Notification) ForOperators() bool { return n.Kind == NotifyOperatorAlert }
