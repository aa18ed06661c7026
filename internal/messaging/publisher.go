// Copyright (c) 2026 Midora. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package messaging provides the durable queue transport between the API and
notifier processes, built on Redis Streams.

Architecture:

  - Publisher: Fire-and-forget enqueue (XADD) with a correlation id per message.
  - Consumer: Consumer-group reader (XREADGROUP) with explicit acknowledgement
    and pending-entry reclaim for at-least-once delivery.

Queue names are namespaced under [constants.StreamKeyPrefix]; the payload is
an opaque JSON document, keeping the transport independent of message schemas.
*/
package messaging

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/taibuivan/midora/internal/platform/apperr"
	"github.com/taibuivan/midora/internal/platform/constants"
)

// # Wire Fields

const (
	fieldCorrelationID = "correlation_id"
	fieldPayload       = "payload"
)

// StreamKey returns the Redis stream key for a logical queue name.
func StreamKey(queue string) string {
	return constants.StreamKeyPrefix + queue
}

// Publisher enqueues messages onto a durable stream.
type Publisher struct {
	client *redis.Client
	logger *slog.Logger
}

// NewPublisher creates a Publisher over the shared Redis client.
func NewPublisher(client *redis.Client, logger *slog.Logger) *Publisher {
	return &Publisher{client: client, logger: logger}
}

/*
Publish serializes payload to JSON and appends it to the queue's stream.

Description: Each message is stamped with a fresh correlation id for
end-to-end tracing. The broker assigns the stream entry id; successful
return means the entry is durably appended, not that it was processed.

Parameters:
  - ctx: context.Context
  - queue: string (logical queue name, e.g. "send-email")
  - payload: any (JSON-serializable message body)

Returns:
  - error: apperr.Internal on serialization failure,
    apperr.DependencyFailure when the broker rejects the append
*/
func (publisher *Publisher) Publish(ctx context.Context, queue string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return apperr.Internal(err)
	}

	correlationID := uuid.NewString()
	entryID, err := publisher.client.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamKey(queue),
		Values: map[string]any{
			fieldCorrelationID: correlationID,
			fieldPayload:       string(body),
		},
	}).Result()
	if err != nil {
		return apperr.DependencyFailure("Message broker unavailable", err)
	}

	publisher.logger.Debug("message_published",
		slog.String("queue", queue),
		slog.String("entry_id", entryID),
		slog.String("correlation_id", correlationID),
	)
	return nil
}
