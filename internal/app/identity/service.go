// Package identity resolves device fingerprints into pseudonymous identities
// and runs the single-use voting-session lifecycle.
package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/marcelojr/votemap/internal/domain"
	"github.com/marcelojr/votemap/internal/platform/ids"
	"github.com/marcelojr/votemap/internal/platform/tokens"
)

// Service issues and validates voter sessions. Consumption is not here: the
// has_voted flip happens inside the vote ledger transaction.
type Service struct {
	elections domain.ElectionRepository
	devices   domain.DeviceRepository
	sessions  domain.SessionRepository
	clock     domain.Clock
	ids       *ids.Generator
	ttl       time.Duration
	ipSalt    string
}

func NewService(
	elections domain.ElectionRepository,
	devices domain.DeviceRepository,
	sessions domain.SessionRepository,
	clock domain.Clock,
	idGen *ids.Generator,
	sessionTTL time.Duration,
	ipSalt string,
) *Service {
	if idGen == nil {
		idGen = ids.DefaultGenerator()
	}
	if sessionTTL <= 0 {
		sessionTTL = time.Hour
	}
	return &Service{
		elections: elections,
		devices:   devices,
		sessions:  sessions,
		clock:     clock,
		ids:       idGen,
		ttl:       sessionTTL,
		ipSalt:    ipSalt,
	}
}

// VerifyDevice resolves the device identity and, when the device is eligible,
// issues (or supersedes) the session for this (election, device) pair.
func (s *Service) VerifyDevice(ctx context.Context, descriptor domain.FingerprintDescriptor, electionID domain.ElectionID, clientIP string) (domain.SessionGrant, error) {
	if electionID == "" {
		return domain.SessionGrant{}, fmt.Errorf("%w: missing election id", domain.ErrValidation)
	}

	election, err := s.elections.FindByID(ctx, electionID)
	if err != nil {
		return domain.SessionGrant{}, err
	}

	now := s.clock.Now()
	if election.Status != domain.ElectionActive {
		return domain.SessionGrant{}, fmt.Errorf("%w: election not active", domain.ErrConflict)
	}
	if now.Before(election.StartDate) {
		return domain.SessionGrant{}, fmt.Errorf("%w: voting window not open", domain.ErrConflict)
	}
	if !now.Before(election.EndDate) {
		return domain.SessionGrant{}, fmt.Errorf("%w: voting window closed", domain.ErrExpired)
	}

	hash, err := FingerprintHash(descriptor)
	if err != nil {
		return domain.SessionGrant{}, err
	}

	// Fail-closed: any storage trouble below aborts verification rather than
	// letting an unidentified device through.
	device, err := s.devices.Upsert(ctx, hash, HashIP(s.ipSalt, clientIP), now)
	if err != nil {
		return domain.SessionGrant{}, err
	}

	if device.Flagged {
		return domain.SessionGrant{}, fmt.Errorf("%w: barred by fraud review", domain.ErrFlaggedDevice)
	}

	existing, err := s.sessions.FindByElectionAndDevice(ctx, electionID, device.ID)
	switch {
	case err == nil:
		if existing.HasVoted {
			return domain.SessionGrant{}, fmt.Errorf("%w: device already voted in this election", domain.ErrConflict)
		}
	case errors.Is(err, domain.ErrNotFound):
		// First session for this pair.
	default:
		return domain.SessionGrant{}, err
	}

	token, err := tokens.New()
	if err != nil {
		return domain.SessionGrant{}, err
	}

	expiresAt := now.Add(s.ttl)
	session := domain.VoterSession{
		ID:                  domain.SessionID(s.ids.New()),
		ElectionID:          electionID,
		DeviceFingerprintID: device.ID,
		SessionToken:        token,
		HasVoted:            false,
		ExpiresAt:           expiresAt,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	// Upsert on (election, device): re-issuing supersedes the prior token,
	// which silently invalidates it.
	if err := s.sessions.Issue(ctx, session); err != nil {
		return domain.SessionGrant{}, err
	}

	return domain.SessionGrant{SessionToken: token, ExpiresAt: expiresAt}, nil
}

// ValidateSession checks a token without mutating anything. Expiry is lazy:
// there is no sweeper, stale rows just fail here.
func (s *Service) ValidateSession(ctx context.Context, token string) (domain.VoterSession, error) {
	if token == "" {
		return domain.VoterSession{}, fmt.Errorf("%w: missing session token", domain.ErrValidation)
	}

	session, err := s.sessions.FindByToken(ctx, token)
	if err != nil {
		return domain.VoterSession{}, err
	}

	if session.HasVoted {
		return domain.VoterSession{}, fmt.Errorf("%w: already voted", domain.ErrConflict)
	}

	now := s.clock.Now()
	if !session.ExpiresAt.After(now) {
		return domain.VoterSession{}, fmt.Errorf("%w: session expired", domain.ErrExpired)
	}

	election, err := s.elections.FindByID(ctx, session.ElectionID)
	if err != nil {
		return domain.VoterSession{}, err
	}
	if election.Status != domain.ElectionActive {
		return domain.VoterSession{}, fmt.Errorf("%w: election not active", domain.ErrConflict)
	}

	return session, nil
}

var _ domain.IdentityService = (*Service)(nil)
