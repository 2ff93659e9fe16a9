// Package events announces interview lifecycle changes to other services.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const DefaultChannel = "interview_ended"

// reasons an interview ended
const (
	ReasonRoundLimit = "round_limit"
	ReasonFinished   = "finished"
	ReasonIdle       = "idle_timeout"
)

type InterviewEndedEvent struct {
	SessionID     string `json:"sessionId"`
	UserID        string `json:"userId,omitempty"`
	CandidateName string `json:"candidateName"`
	JobRole       string `json:"jobRole"`
	Rounds        int    `json:"rounds"`
	Reason        string `json:"reason"`
	StartedAt     string `json:"startedAt"`
	EndedAt       string `json:"endedAt"`
	DurationSec   int    `json:"durationSeconds"`
}

type Publisher interface {
	PublishEnded(ctx context.Context, event InterviewEndedEvent) error
}

type RedisPublisher struct {
	rdb     *redis.Client
	channel string
}

func NewRedisPublisher(rdb *redis.Client, channel string) *RedisPublisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisPublisher{rdb: rdb, channel: channel}
}

func (p *RedisPublisher) PublishEnded(ctx context.Context, event InterviewEndedEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if err := p.rdb.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish %s: %w", p.channel, err)
	}
	return nil
}

// Ping reports whether redis is reachable.
func (p *RedisPublisher) Ping(ctx context.Context) error {
	return p.rdb.Ping(ctx).Err()
}

// NopPublisher drops events; used when no redis is configured.
type NopPublisher struct{}

func (NopPublisher) PublishEnded(context.Context, InterviewEndedEvent) error { return nil }
