// Copyright (c) 2026 Midora. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package messaging

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taibuivan/midora/internal/platform/constants"
)

// Handler processes a single dequeued message payload.
//
// A nil return acknowledges the message. A non-nil return leaves it in the
// pending entries list for redelivery, so handlers must be idempotent:
// at-least-once delivery means the same payload may arrive more than once.
type Handler func(ctx context.Context, correlationID string, payload []byte) error

// ConsumerConfig tunes a [Consumer]. Zero-value fields fall back to the
// constants package defaults, which suit production; tests shrink the
// intervals to keep redelivery fast.
type ConsumerConfig struct {
	// Queue is the logical queue name to consume.
	Queue string
	// Group is the consumer group; all notifier replicas share one group.
	Group string
	// Name identifies this consumer within the group.
	Name string
	// Block bounds each blocking read so cancellation is observed.
	Block time.Duration
	// ReclaimInterval is how often the pending entries list is scanned.
	ReclaimInterval time.Duration
	// MinIdle is how long a pending message must sit unacknowledged before
	// it is claimed for redelivery.
	MinIdle time.Duration
}

func (config ConsumerConfig) withDefaults() ConsumerConfig {
	if config.Group == "" {
		config.Group = constants.ConsumerGroup
	}
	if config.Block <= 0 {
		config.Block = constants.ConsumerBlockTimeout
	}
	if config.ReclaimInterval <= 0 {
		config.ReclaimInterval = constants.ConsumerReclaimInterval
	}
	if config.MinIdle <= 0 {
		config.MinIdle = constants.ConsumerMinIdleForReclaim
	}
	return config
}

// Consumer is a consumer-group stream reader with explicit acknowledgement.
//
// Delivery semantics are at-least-once: a message is acknowledged (XACK)
// only after the handler returns nil. Handler failures and consumer crashes
// leave the entry pending; the reclaim loop claims entries idle longer than
// MinIdle and runs them through the handler again.
type Consumer struct {
	client  *redis.Client
	config  ConsumerConfig
	handler Handler
	logger  *slog.Logger
}

// NewConsumer creates a Consumer for the queue described by config.
func NewConsumer(client *redis.Client, config ConsumerConfig, handler Handler, logger *slog.Logger) *Consumer {
	return &Consumer{
		client:  client,
		config:  config.withDefaults(),
		handler: handler,
		logger:  logger,
	}
}

/*
Run consumes the queue until ctx is cancelled.

Description: Ensures the consumer group exists (creating the stream if
needed), then alternates between blocking reads of new messages and
periodic reclaim sweeps of stale pending entries. Transport errors are
logged and retried; only context cancellation ends the loop.

Parameters:
  - ctx: context.Context (cancel to stop)

Returns:
  - error: ctx.Err() after cancellation, or group-creation failures
*/
func (consumer *Consumer) Run(ctx context.Context) error {
	stream := StreamKey(consumer.config.Queue)

	if err := consumer.ensureGroup(ctx, stream); err != nil {
		return err
	}

	consumer.logger.Info("consumer_started",
		slog.String("queue", consumer.config.Queue),
		slog.String("group", consumer.config.Group),
		slog.String("consumer", consumer.config.Name),
	)

	reclaimTicker := time.NewTicker(consumer.config.ReclaimInterval)
	defer reclaimTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			consumer.logger.Info("consumer_stopped", slog.String("queue", consumer.config.Queue))
			return ctx.Err()
		case <-reclaimTicker.C:
			consumer.reclaimStale(ctx, stream)
		default:
			consumer.readBatch(ctx, stream)
		}
	}
}

// ensureGroup creates the consumer group, tolerating the already-exists reply.
func (consumer *Consumer) ensureGroup(ctx context.Context, stream string) error {
	err := consumer.client.XGroupCreateMkStream(ctx, stream, consumer.config.Group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return err
	}
	return nil
}

// readBatch performs one bounded blocking read and processes its messages.
func (consumer *Consumer) readBatch(ctx context.Context, stream string) {
	results, err := consumer.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    consumer.config.Group,
		Consumer: consumer.config.Name,
		Streams:  []string{stream, ">"},
		Count:    10,
		Block:    consumer.config.Block,
	}).Result()
	if err != nil {
		// Nil reply means the block timed out with nothing to read.
		if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) {
			return
		}
		consumer.logger.Error("consumer_read_failed",
			slog.String("queue", consumer.config.Queue),
			slog.Any("error", err),
		)
		return
	}

	for _, result := range results {
		for _, message := range result.Messages {
			consumer.process(ctx, stream, message)
		}
	}
}

// process runs one message through the handler, acknowledging on success.
func (consumer *Consumer) process(ctx context.Context, stream string, message redis.XMessage) {
	correlationID, _ := message.Values[fieldCorrelationID].(string)
	payload, _ := message.Values[fieldPayload].(string)

	if err := consumer.handler(ctx, correlationID, []byte(payload)); err != nil {
		// No ack: the entry stays pending and the reclaim loop redelivers it.
		consumer.logger.Error("message_processing_failed",
			slog.String("queue", consumer.config.Queue),
			slog.String("entry_id", message.ID),
			slog.String("correlation_id", correlationID),
			slog.Any("error", err),
		)
		return
	}

	if err := consumer.client.XAck(ctx, stream, consumer.config.Group, message.ID).Err(); err != nil {
		// The handler succeeded but the ack did not; redelivery will hand
		// the same payload to the (idempotent) handler again.
		consumer.logger.Error("message_ack_failed",
			slog.String("queue", consumer.config.Queue),
			slog.String("entry_id", message.ID),
			slog.Any("error", err),
		)
		return
	}

	consumer.logger.Info("message_processed",
		slog.String("queue", consumer.config.Queue),
		slog.String("entry_id", message.ID),
		slog.String("correlation_id", correlationID),
	)
}

// reclaimStale claims pending entries idle longer than MinIdle and runs
// them through the handler again.
func (consumer *Consumer) reclaimStale(ctx context.Context, stream string) {
	pending, err := consumer.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: stream,
		Group:  consumer.config.Group,
		Start:  "-",
		End:    "+",
		Count:  100,
		Idle:   consumer.config.MinIdle,
	}).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && !errors.Is(err, context.Canceled) {
			consumer.logger.Error("consumer_pending_scan_failed",
				slog.String("queue", consumer.config.Queue),
				slog.Any("error", err),
			)
		}
		return
	}
	if len(pending) == 0 {
		return
	}

	ids := make([]string, 0, len(pending))
	for _, entry := range pending {
		ids = append(ids, entry.ID)
	}

	claimed, err := consumer.client.XClaim(ctx, &redis.XClaimArgs{
		Stream:   stream,
		Group:    consumer.config.Group,
		Consumer: consumer.config.Name,
		MinIdle:  consumer.config.MinIdle,
		Messages: ids,
	}).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && !errors.Is(err, context.Canceled) {
			consumer.logger.Error("consumer_claim_failed",
				slog.String("queue", consumer.config.Queue),
				slog.Any("error", err),
			)
		}
		return
	}

	consumer.logger.Info("messages_reclaimed",
		slog.String("queue", consumer.config.Queue),
		slog.Int("count", len(claimed)),
	)
	for _, message := range claimed {
		consumer.process(ctx, stream, message)
	}
}
