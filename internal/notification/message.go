// Copyright (c) 2026 Midora. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package notification implements the email notification side of the platform.

It defines the queue payload (EmailMessage), the factory functions producing
the canonical account-event emails, the delivery port (Dispatcher) with its
SMTP implementation, and the queue consumer handler that glues them together.
*/
package notification

import "fmt"

// EmailMessage is the payload carried on the send-email queue.
//
// The JSON field names are the wire contract between the API process (which
// publishes) and the notifier process (which consumes); changing them is a
// breaking change for in-flight messages.
type EmailMessage struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// # Account Event Factories

// WelcomeEmail builds the registration greeting sent to every new account.
func WelcomeEmail(email string) EmailMessage {
	return EmailMessage{
		To:      email,
		Subject: "Welcome to Midora",
		Body:    fmt.Sprintf("Hello %s,\n\nThank you for registering at Midora.\n\nBest regards,\nThe Midora Team", email),
	}
}

// RoleAssignedEmail builds the notification for a role grant.
func RoleAssignedEmail(email, role string) EmailMessage {
	return EmailMessage{
		To:      email,
		Subject: "Role Assignment Notification",
		Body:    fmt.Sprintf("Hello %s,\n\nYou have been assigned the role of '%s' in Midora.\n\nBest regards,\nThe Midora Team", email, role),
	}
}

// RoleRemovedEmail builds the notification for a role revocation.
func RoleRemovedEmail(email, role string) EmailMessage {
	return EmailMessage{
		To:      email,
		Subject: "Role Removal Notification",
		Body:    fmt.Sprintf("Hello %s,\n\nThe role of '%s' has been removed from your account in Midora.\n\nBest regards,\nThe Midora Team", email, role),
	}
}

// AccountDeletedEmail builds the farewell sent after an account is removed.
func AccountDeletedEmail(email string) EmailMessage {
	return EmailMessage{
		To:      email,
		Subject: "Account Deletion Notification",
		Body:    fmt.Sprintf("Hello %s,\n\nYour account has been successfully deleted from Midora.\n\nBest regards,\nThe Midora Team", email),
	}
}
