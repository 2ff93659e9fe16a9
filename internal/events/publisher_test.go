package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRedis creates a miniredis instance and a redis client for testing
func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestRedisPublisherPublishesEndedEvent(t *testing.T) {
	_, client := setupTestRedis(t)
	ctx := context.Background()

	sub := client.Subscribe(ctx, DefaultChannel)
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	pub := NewRedisPublisher(client, "")
	require.NoError(t, pub.Ping(ctx))

	event := InterviewEndedEvent{
		SessionID:     "s1",
		CandidateName: "지원자",
		JobRole:       "백엔드 개발자",
		Rounds:        3,
		Reason:        ReasonRoundLimit,
	}
	require.NoError(t, pub.PublishEnded(ctx, event))

	select {
	case msg := <-sub.Channel():
		var got InterviewEndedEvent
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
		assert.Equal(t, event, got)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestRedisPublisherReportsConnectionErrors(t *testing.T) {
	mr, client := setupTestRedis(t)
	mr.Close()

	err := NewRedisPublisher(client, "custom").PublishEnded(context.Background(), InterviewEndedEvent{SessionID: "s1"})
	assert.Error(t, err)
}

func TestNopPublisher(t *testing.T) {
	assert.NoError(t, NopPublisher{}.PublishEnded(context.Background(), InterviewEndedEvent{}))
}
