package broadcast

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcelojr/votemap/internal/domain"
)

func setupPublisher(t *testing.T) (*RedisPublisher, *redis.Client) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})

	return NewRedisPublisher(client, "votemap"), client
}

func receiveRaw(t *testing.T, sub *redis.PubSub) []byte {
	t.Helper()
	select {
	case msg := <-sub.Channel():
		return []byte(msg.Payload)
	case <-time.After(2 * time.Second):
		t.Fatal("no broadcast received in time")
		return nil
	}
}

func TestRedisPublisher_PublishConstituencyUpdate_ShouldDeliverEnvelope(t *testing.T) {
	publisher, client := setupPublisher(t)
	ctx := context.Background()

	sub := client.Subscribe(ctx, publisher.Channel("election-1"))
	t.Cleanup(func() { sub.Close() })
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	update := domain.ConstituencyUpdate{
		ElectionID:     "election-1",
		ConstituencyID: "const-1",
		Color:          "#3355ff",
		Breakdown: []domain.CandidateShare{
			{CandidateID: "cand-1", CandidateName: "Alice Monteiro", PartyColor: "#3355ff", VoteCount: 10, Percentage: 100},
		},
		TotalVotes: 10,
		WinnerName: "Alice Monteiro",
	}
	require.NoError(t, publisher.PublishConstituencyUpdate(ctx, update))

	raw := receiveRaw(t, sub)

	var envelope struct {
		EventID   string                    `json:"eventId"`
		Type      string                    `json:"type"`
		Payload   domain.ConstituencyUpdate `json:"payload"`
		Timestamp time.Time                 `json:"timestamp"`
	}
	require.NoError(t, json.Unmarshal(raw, &envelope))

	assert.NotEmpty(t, envelope.EventID)
	assert.Equal(t, EventConstituencyUpdate, envelope.Type)
	assert.False(t, envelope.Timestamp.IsZero())
	assert.Equal(t, update, envelope.Payload)
}

func TestRedisPublisher_PublishVoteCount_ShouldDeliverTotal(t *testing.T) {
	publisher, client := setupPublisher(t)
	ctx := context.Background()

	sub := client.Subscribe(ctx, publisher.Channel("election-1"))
	t.Cleanup(func() { sub.Close() })
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	require.NoError(t, publisher.PublishVoteCount(ctx, "election-1", 1234))

	raw := receiveRaw(t, sub)

	var envelope struct {
		Type    string `json:"type"`
		Payload struct {
			ElectionID string `json:"electionId"`
			TotalVotes int64  `json:"totalVotes"`
		} `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(raw, &envelope))

	assert.Equal(t, EventVoteCount, envelope.Type)
	assert.Equal(t, "election-1", envelope.Payload.ElectionID)
	assert.Equal(t, int64(1234), envelope.Payload.TotalVotes)
}

func TestRedisPublisher_Channel_ShouldScopePerElection(t *testing.T) {
	publisher, _ := setupPublisher(t)

	assert.Equal(t, "votemap:election:e1", publisher.Channel("e1"))
	assert.NotEqual(t, publisher.Channel("e1"), publisher.Channel("e2"))
}
