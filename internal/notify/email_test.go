package notify

import (
	"context"
	"net/smtp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSMTPMailer_Send(t *testing.T) {
	var (
		gotAddr string
		gotTo   []string
		gotMsg  string
		gotAuth smtp.Auth
	)
	m := NewSMTPMailer(SMTPConfig{Host: "smtp.example.com", Port: 587, Username: "u", Password: "p", From: "club@example.com"})
	m.sendMail = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotTo, gotMsg, gotAuth = addr, to, string(msg), a
		return nil
	}

	require.NoError(t, m.Send(context.Background(), " fan@example.com ", "Ticket\r\nBcc: evil@example.com", "body"))
	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.Equal(t, []string{"fan@example.com"}, gotTo)
	assert.NotNil(t, gotAuth)
	assert.Contains(t, gotMsg, "Subject: Ticket  Bcc: evil@example.com\r\n")
	assert.False(t, strings.Contains(gotMsg, "\r\nBcc:"), "header injection must be neutralized")
	assert.True(t, strings.HasSuffix(gotMsg, "\r\n\r\nbody"))
}

func TestSMTPMailer_Validation(t *testing.T) {
	m := NewSMTPMailer(SMTPConfig{Host: "h", Port: 25})
	m.sendMail = func(string, smtp.Auth, string, []string, []byte) error { return nil }

	assert.Error(t, m.Send(context.Background(), "", "s", "b"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, m.Send(ctx, "a@b.c", "s", "b"), context.Canceled)
}
