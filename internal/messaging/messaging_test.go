// Copyright (c) 2026 Midora. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package messaging_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/midora/internal/messaging"
)

const testQueue = "send-email"

func newTestBroker(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return server, client
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

/*
TestPublishThenConsume checks the happy path: a published message reaches
the handler with its payload intact and is acknowledged afterwards.
*/
func TestPublishThenConsume(t *testing.T) {
	_, client := newTestBroker(t)
	logger := discardLogger()

	publisher := messaging.NewPublisher(client, logger)
	sent := testPayload{To: "alice@example.com", Subject: "Hello", Body: "Hi Alice"}
	require.NoError(t, publisher.Publish(context.Background(), testQueue, sent))

	type delivery struct {
		correlationID string
		payload       []byte
	}
	received := make(chan delivery, 1)

	consumer := messaging.NewConsumer(client, messaging.ConsumerConfig{
		Queue:           testQueue,
		Name:            "test-consumer",
		Block:           20 * time.Millisecond,
		ReclaimInterval: time.Hour, // Keep the reclaim loop out of this test.
	}, func(ctx context.Context, correlationID string, payload []byte) error {
		received <- delivery{correlationID: correlationID, payload: payload}
		return nil
	}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = consumer.Run(ctx)
		close(done)
	}()

	select {
	case got := <-received:
		assert.NotEmpty(t, got.correlationID)
		var decoded testPayload
		require.NoError(t, json.Unmarshal(got.payload, &decoded))
		assert.Equal(t, sent, decoded)
	case <-time.After(5 * time.Second):
		t.Fatal("message was not delivered")
	}

	// The ack must clear the pending entries list.
	require.Eventually(t, func() bool {
		pending, err := client.XPending(context.Background(), messaging.StreamKey(testQueue), "notifier").Result()
		return err == nil && pending.Count == 0
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	<-done
}

/*
TestFailedMessageRedelivered checks at-least-once delivery: a handler
failure leaves the message pending, and the reclaim loop hands the
identical payload to the handler again.
*/
func TestFailedMessageRedelivered(t *testing.T) {
	server, client := newTestBroker(t)
	logger := discardLogger()

	publisher := messaging.NewPublisher(client, logger)
	sent := testPayload{To: "bob@example.com", Subject: "Retry", Body: "Hi Bob"}
	require.NoError(t, publisher.Publish(context.Background(), testQueue, sent))

	var attempts atomic.Int32
	payloads := make(chan []byte, 4)

	consumer := messaging.NewConsumer(client, messaging.ConsumerConfig{
		Queue:           testQueue,
		Name:            "test-consumer",
		Block:           20 * time.Millisecond,
		ReclaimInterval: 50 * time.Millisecond,
		MinIdle:         10 * time.Millisecond,
	}, func(ctx context.Context, correlationID string, payload []byte) error {
		payloads <- payload
		if attempts.Add(1) == 1 {
			return errors.New("transient delivery failure")
		}
		return nil
	}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = consumer.Run(ctx)
		close(done)
	}()

	var first []byte
	select {
	case first = <-payloads:
	case <-time.After(5 * time.Second):
		t.Fatal("first delivery never happened")
	}

	// Age the pending entry past MinIdle so the reclaim loop picks it up.
	server.FastForward(time.Second)

	var second []byte
	select {
	case second = <-payloads:
	case <-time.After(5 * time.Second):
		t.Fatal("failed message was never redelivered")
	}

	// The duplicate carries the exact same payload.
	assert.Equal(t, first, second)
	assert.GreaterOrEqual(t, attempts.Load(), int32(2))

	// After the successful attempt the entry is acknowledged.
	require.Eventually(t, func() bool {
		pending, err := client.XPending(context.Background(), messaging.StreamKey(testQueue), "notifier").Result()
		return err == nil && pending.Count == 0
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	<-done
}

/*
TestPublisher_BrokerDown checks that an unreachable broker surfaces as a
dependency failure, not a silent drop.
*/
func TestPublisher_BrokerDown(t *testing.T) {
	server, client := newTestBroker(t)
	server.Close()

	publisher := messaging.NewPublisher(client, discardLogger())
	err := publisher.Publish(context.Background(), testQueue, testPayload{To: "x@example.com"})
	require.Error(t, err)
}

/*
TestConsumer_GroupAlreadyExists checks that two consumers joining the same
group do not trip over group creation.
*/
func TestConsumer_GroupAlreadyExists(t *testing.T) {
	_, client := newTestBroker(t)
	logger := discardLogger()

	handler := func(ctx context.Context, correlationID string, payload []byte) error { return nil }

	config := messaging.ConsumerConfig{
		Queue: testQueue,
		Name:  "first",
		Block: 20 * time.Millisecond,
	}
	first := messaging.NewConsumer(client, config, handler, logger)

	config.Name = "second"
	second := messaging.NewConsumer(client, config, handler, logger)

	runBriefly := func(consumer *messaging.Consumer) error {
		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()
		err := consumer.Run(ctx)
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}

	assert.NoError(t, runBriefly(first))
	assert.NoError(t, runBriefly(second))
}
