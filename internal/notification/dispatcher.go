// Copyright (c) 2026 Midora. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package notification

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/wneessen/go-mail"

	"github.com/taibuivan/midora/internal/platform/apperr"
)

// SendResult reports the outcome of one delivery attempt.
type SendResult struct {
	// MessageID is the provider-assigned identifier of the sent message.
	MessageID string `json:"messageId"`
	// Status is the terminal delivery status, e.g. "succeeded".
	Status string `json:"status"`
}

// StatusSucceeded is the Status of a completed delivery.
const StatusSucceeded = "succeeded"

// Dispatcher is the outbound delivery port for email messages.
type Dispatcher interface {

	/*
		Send validates and delivers one email.

		Parameters:
		  - ctx: context.Context
		  - message: EmailMessage

		Returns:
		  - *SendResult: Message id and terminal status on success
		  - error: apperr.ValidationError for malformed messages,
		    apperr.DependencyFailure when the provider rejects delivery
	*/
	Send(ctx context.Context, message EmailMessage) (*SendResult, error)
}

// SMTPConfig carries the mail provider settings for [SMTPDispatcher].
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPDispatcher delivers email over SMTP.
type SMTPDispatcher struct {
	client *mail.Client
	from   string
	logger *slog.Logger
}

// NewSMTPDispatcher creates a Dispatcher connected to the configured
// SMTP provider.
func NewSMTPDispatcher(config SMTPConfig, logger *slog.Logger) (*SMTPDispatcher, error) {
	options := []mail.Option{
		mail.WithPort(config.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if config.Username != "" {
		options = append(options,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(config.Username),
			mail.WithPassword(config.Password),
		)
	}

	client, err := mail.NewClient(config.Host, options...)
	if err != nil {
		return nil, fmt.Errorf("notification: failed to create smtp client: %w", err)
	}

	return &SMTPDispatcher{
		client: client,
		from:   config.From,
		logger: logger,
	}, nil
}

// Send implements [Dispatcher]. Validation runs before any network I/O so a
// malformed message is rejected without consuming a connection.
func (dispatcher *SMTPDispatcher) Send(ctx context.Context, message EmailMessage) (*SendResult, error) {
	if err := validateMessage(message); err != nil {
		return nil, err
	}

	outbound := mail.NewMsg()
	if err := outbound.From(dispatcher.from); err != nil {
		return nil, apperr.ValidationError(fmt.Sprintf("Invalid sender address: %s", dispatcher.from))
	}
	if err := outbound.To(message.To); err != nil {
		return nil, apperr.ValidationError(fmt.Sprintf("Invalid recipient address: %s", message.To))
	}
	outbound.Subject(message.Subject)
	outbound.SetBodyString(mail.TypeTextPlain, message.Body)
	outbound.SetMessageID()

	if err := dispatcher.client.DialAndSendWithContext(ctx, outbound); err != nil {
		return nil, apperr.DependencyFailure("Mail provider unavailable", err)
	}

	result := &SendResult{
		MessageID: outbound.GetMessageID(),
		Status:    StatusSucceeded,
	}
	dispatcher.logger.Debug("email_delivered",
		slog.String("to", message.To),
		slog.String("message_id", result.MessageID),
	)
	return result, nil
}

// validateMessage enforces the three required fields of the queue contract.
func validateMessage(message EmailMessage) error {
	details := []apperr.FieldError{}
	if message.To == "" {
		details = append(details, apperr.FieldError{Field: "to", Message: "must not be empty"})
	}
	if message.Subject == "" {
		details = append(details, apperr.FieldError{Field: "subject", Message: "must not be empty"})
	}
	if message.Body == "" {
		details = append(details, apperr.FieldError{Field: "body", Message: "must not be empty"})
	}
	if len(details) > 0 {
		return apperr.ValidationError("Email message is incomplete", details...)
	}
	return nil
}
