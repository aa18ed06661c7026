// Copyright (c) 2026 Midora. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package notification_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/midora/internal/notification"
	"github.com/taibuivan/midora/internal/platform/apperr"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

/*
TestAccountEventFactories checks the canonical account-event messages.
*/
func TestAccountEventFactories(t *testing.T) {
	welcome := notification.WelcomeEmail("alice@example.com")
	assert.Equal(t, "alice@example.com", welcome.To)
	assert.Equal(t, "Welcome to Midora", welcome.Subject)
	assert.Contains(t, welcome.Body, "Hello alice@example.com")
	assert.Contains(t, welcome.Body, "Thank you for registering")

	assigned := notification.RoleAssignedEmail("bob@example.com", "admin")
	assert.Equal(t, "Role Assignment Notification", assigned.Subject)
	assert.Contains(t, assigned.Body, "assigned the role of 'admin'")

	removed := notification.RoleRemovedEmail("bob@example.com", "admin")
	assert.Equal(t, "Role Removal Notification", removed.Subject)
	assert.Contains(t, removed.Body, "role of 'admin' has been removed")

	deleted := notification.AccountDeletedEmail("carol@example.com")
	assert.Equal(t, "Account Deletion Notification", deleted.Subject)
	assert.Contains(t, deleted.Body, "successfully deleted")
}

/*
TestEmailMessage_WireContract pins the JSON field names shared by the
publisher and the notifier.
*/
func TestEmailMessage_WireContract(t *testing.T) {
	encoded, err := json.Marshal(notification.EmailMessage{
		To:      "dave@example.com",
		Subject: "S",
		Body:    "B",
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"to":"dave@example.com","subject":"S","body":"B"}`, string(encoded))
}

// fakeDispatcher records sends and returns a scripted outcome.
type fakeDispatcher struct {
	sent    []notification.EmailMessage
	failErr error
}

func (d *fakeDispatcher) Send(ctx context.Context, message notification.EmailMessage) (*notification.SendResult, error) {
	if d.failErr != nil {
		return nil, d.failErr
	}
	d.sent = append(d.sent, message)
	return &notification.SendResult{MessageID: "msg-1", Status: notification.StatusSucceeded}, nil
}

/*
TestEmailHandler_Success checks that a well-formed payload is delivered
and acknowledged.
*/
func TestEmailHandler_Success(t *testing.T) {
	dispatcher := &fakeDispatcher{}
	handler := notification.EmailHandler(dispatcher, discardLogger())

	payload, err := json.Marshal(notification.WelcomeEmail("erin@example.com"))
	require.NoError(t, err)

	require.NoError(t, handler(context.Background(), "corr-1", payload))
	require.Len(t, dispatcher.sent, 1)
	assert.Equal(t, "erin@example.com", dispatcher.sent[0].To)
}

/*
TestEmailHandler_MalformedPayload checks that an undecodable payload is
acknowledged (nil return) without reaching the dispatcher.
*/
func TestEmailHandler_MalformedPayload(t *testing.T) {
	dispatcher := &fakeDispatcher{}
	handler := notification.EmailHandler(dispatcher, discardLogger())

	assert.NoError(t, handler(context.Background(), "corr-2", []byte("{not json")))
	assert.Empty(t, dispatcher.sent)
}

/*
TestEmailHandler_ErrorPolicy checks the ack/no-ack split: provider outages
propagate (leaving the message pending), validation failures do not.
*/
func TestEmailHandler_ErrorPolicy(t *testing.T) {
	payload, err := json.Marshal(notification.WelcomeEmail("frank@example.com"))
	require.NoError(t, err)

	// Transient provider failure: the handler must surface it.
	outage := &fakeDispatcher{failErr: apperr.DependencyFailure("Mail provider unavailable", nil)}
	handler := notification.EmailHandler(outage, discardLogger())
	assert.Error(t, handler(context.Background(), "corr-3", payload))

	// Terminal validation failure: redelivery can never succeed, so ack.
	rejected := &fakeDispatcher{failErr: apperr.ValidationError("Email message is incomplete")}
	handler = notification.EmailHandler(rejected, discardLogger())
	assert.NoError(t, handler(context.Background(), "corr-4", payload))
}

/*
TestSMTPDispatcher_Validation checks that incomplete messages are rejected
before any network I/O.
*/
func TestSMTPDispatcher_Validation(t *testing.T) {
	dispatcher, err := notification.NewSMTPDispatcher(notification.SMTPConfig{
		Host: "localhost",
		Port: 2525,
		From: "noreply@midora.app",
	}, discardLogger())
	require.NoError(t, err)

	tests := []struct {
		name    string
		message notification.EmailMessage
		field   string
	}{
		{"missing_to", notification.EmailMessage{Subject: "S", Body: "B"}, "to"},
		{"missing_subject", notification.EmailMessage{To: "a@x.com", Body: "B"}, "subject"},
		{"missing_body", notification.EmailMessage{To: "a@x.com", Subject: "S"}, "body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := dispatcher.Send(context.Background(), tt.message)
			require.Error(t, err)

			ae := apperr.As(err)
			require.NotNil(t, ae)
			assert.Equal(t, "VALIDATION_ERROR", ae.Code)
			require.NotEmpty(t, ae.Details)
			assert.Equal(t, tt.field, ae.Details[0].Field)
		})
	}
}
