// Package broadcast hands aggregate deltas to the pub/sub collaborator. The
// core's obligation ends at the publish call; fan-out and subscriptions are
// the consumer's business.
package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/marcelojr/votemap/internal/domain"
	"github.com/marcelojr/votemap/internal/platform/metrics"
)

const (
	EventConstituencyUpdate = "constituency_update"
	EventVoteCount          = "vote_count"
)

// Envelope is the wire shape pushed onto the per-election channel.
type Envelope struct {
	EventID   string    `json:"eventId"`
	Type      string    `json:"type"`
	Payload   any       `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

type voteCountPayload struct {
	ElectionID domain.ElectionID `json:"electionId"`
	TotalVotes int64             `json:"totalVotes"`
}

// RedisPublisher publishes JSON envelopes on votemap:election:{id}.
type RedisPublisher struct {
	client        *redis.Client
	channelPrefix string
}

func NewRedisPublisher(client *redis.Client, channelPrefix string) *RedisPublisher {
	if channelPrefix == "" {
		channelPrefix = "votemap"
	}
	return &RedisPublisher{
		client:        client,
		channelPrefix: channelPrefix,
	}
}

func (p *RedisPublisher) PublishConstituencyUpdate(ctx context.Context, update domain.ConstituencyUpdate) error {
	if err := p.publish(ctx, update.ElectionID, EventConstituencyUpdate, update); err != nil {
		return err
	}
	metrics.IncBroadcastEvent(EventConstituencyUpdate)
	return nil
}

func (p *RedisPublisher) PublishVoteCount(ctx context.Context, electionID domain.ElectionID, totalVotes int64) error {
	payload := voteCountPayload{ElectionID: electionID, TotalVotes: totalVotes}
	if err := p.publish(ctx, electionID, EventVoteCount, payload); err != nil {
		return err
	}
	metrics.IncBroadcastEvent(EventVoteCount)
	return nil
}

func (p *RedisPublisher) publish(ctx context.Context, electionID domain.ElectionID, eventType string, payload any) error {
	envelope := Envelope{
		EventID:   uuid.NewString(),
		Type:      eventType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
	raw, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("broadcast: marshal %s: %w", eventType, err)
	}
	if err := p.client.Publish(ctx, p.Channel(electionID), raw).Err(); err != nil {
		return fmt.Errorf("broadcast: publish %s: %w", eventType, err)
	}
	return nil
}

// Channel names the per-election pub/sub channel subscribers attach to.
func (p *RedisPublisher) Channel(electionID domain.ElectionID) string {
	return fmt.Sprintf("%s:election:%s", p.channelPrefix, electionID)
}

var _ domain.Broadcaster = (*RedisPublisher)(nil)
