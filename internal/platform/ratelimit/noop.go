package ratelimit

import (
	"context"

	"github.com/marcelojr/votemap/internal/domain"
)

// Noop is the disabled-limiter strategy.
type Noop struct{}

func NewNoop() Noop {
	return Noop{}
}

func (Noop) Allow(ctx context.Context, key string) error {
	return nil
}

var _ domain.RateLimiter = Noop{}
