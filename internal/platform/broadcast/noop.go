package broadcast

import (
	"context"

	"github.com/marcelojr/votemap/internal/domain"
)

// Noop discards every event; used when broadcasting is disabled.
type Noop struct{}

func NewNoop() Noop {
	return Noop{}
}

func (Noop) PublishConstituencyUpdate(ctx context.Context, update domain.ConstituencyUpdate) error {
	return nil
}

func (Noop) PublishVoteCount(ctx context.Context, electionID domain.ElectionID, totalVotes int64) error {
	return nil
}

var _ domain.Broadcaster = Noop{}
