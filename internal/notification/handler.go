// Copyright (c) 2026 Midora. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package notification

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/taibuivan/midora/internal/messaging"
	"github.com/taibuivan/midora/internal/platform/apperr"
)

// EmailHandler adapts a [Dispatcher] to the queue consumer contract.
//
// Error policy at the consume boundary:
//
//   - Malformed payloads (bad JSON, missing fields) are acknowledged after
//     logging. Redelivering them can never succeed, so leaving them pending
//     would only clog the reclaim loop.
//   - Provider failures are returned, which leaves the message pending for
//     redelivery once the provider recovers.
func EmailHandler(dispatcher Dispatcher, logger *slog.Logger) messaging.Handler {
	return func(ctx context.Context, correlationID string, payload []byte) error {
		var message EmailMessage
		if err := json.Unmarshal(payload, &message); err != nil {
			logger.Error("email_payload_malformed",
				slog.String("correlation_id", correlationID),
				slog.Any("error", err),
			)
			return nil
		}

		result, err := dispatcher.Send(ctx, message)
		if err != nil {
			if apperr.IsDependencyFailure(err) {
				return err
			}
			// Validation failures are terminal; ack and move on.
			logger.Error("email_rejected",
				slog.String("correlation_id", correlationID),
				slog.String("to", message.To),
				slog.Any("error", err),
			)
			return nil
		}

		logger.Info("email_sent",
			slog.String("correlation_id", correlationID),
			slog.String("to", message.To),
			slog.String("message_id", result.MessageID),
			slog.String("status", result.Status),
		)
		return nil
	}
}
