package notify

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/fanclub-backend/internal/repo"
)

// Recipient is where a fan can be reached.
type Recipient struct {
	TelegramID int64
	Email      string
}

// Directory resolves user ids to recipients.
type Directory interface {
	Lookup(ctx context.Context, userID int64) (Recipient, error)
}

// UserDirectory reads recipients from the users table.
type UserDirectory struct {
	DB *gorm.DB
}

// Lookup returns the user's Telegram chat and email.
func (d UserDirectory) Lookup(ctx context.Context, userID int64) (Recipient, error) {
	u, err := repo.GetUser(ctx, d.DB, userID)
	if err != nil {
		return Recipient{}, err
	}
	return Recipient{TelegramID: u.TelegramID, Email: u.Email}, nil
}
